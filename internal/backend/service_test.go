package backend

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/critic/internal/review"
)

const validReview = `{"overallSummary":"Looks fine.","feedback":[{"category":"Bug","severity":"High","line":3,"description":"nil deref","suggestion":"check err"}]}`

// scriptedCompleter replays canned replies and records every request.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []completion
}

func (s *scriptedCompleter) complete(_ context.Context, c completion) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.requests)
	s.requests = append(s.requests, c)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func newTestService(c completer) *Service {
	return &Service{
		model:      ModelGemini,
		completer:  c,
		logger:     log.New(io.Discard),
		retryBase:  time.Millisecond,
		chatBudget: defaultChatSeedSize,
		detection:  true,
	}
}

func TestService_GetCodeReview(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"```json\n" + validReview + "\n```"}}
	s := newTestService(c)

	r, err := s.GetCodeReview(context.Background(), "package main\n", "go")
	if err != nil {
		t.Fatalf("GetCodeReview error: %v", err)
	}
	if r.OverallSummary != "Looks fine." || len(r.Feedback) != 1 {
		t.Fatalf("unexpected review: %+v", r)
	}
	if len(c.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(c.requests))
	}
	req := c.requests[0]
	if req.Format != formatReview {
		t.Error("review request should ask for review format")
	}
	if !strings.Contains(req.Turns[0].Text, "package main") {
		t.Error("review prompt should contain the code")
	}
}

func TestService_GetCodeReviewRepair(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"not json", validReview}}
	s := newTestService(c)

	r, err := s.GetCodeReview(context.Background(), "x", "go")
	if err != nil {
		t.Fatalf("GetCodeReview error: %v", err)
	}
	if r.OverallSummary != "Looks fine." {
		t.Errorf("OverallSummary = %q", r.OverallSummary)
	}
	if len(c.requests) != 2 {
		t.Fatalf("expected repair request, got %d requests", len(c.requests))
	}
	turns := c.requests[1].Turns
	if len(turns) != 3 || turns[1].Role != review.RoleModel || turns[1].Text != "not json" {
		t.Errorf("repair turns = %+v", turns)
	}
}

func TestService_GetCodeReviewMalformedTwice(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"nope", "still nope"}}
	s := newTestService(c)

	_, err := s.GetCodeReview(context.Background(), "x", "go")
	if !IsMalformed(err) {
		t.Fatalf("expected malformed error, got %v", err)
	}
	if !errors.Is(err, review.ErrMalformed) {
		t.Errorf("error should wrap review.ErrMalformed: %v", err)
	}
}

func TestService_ConfigError(t *testing.T) {
	c := &scriptedCompleter{}
	s := newTestService(c)
	s.configErr = configError(ModelGemini, "GEMINI_API_KEY environment variable is not set")

	_, err := s.GetCodeReview(context.Background(), "x", "go")
	if !IsConfigError(err) {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, err := s.StartChat(context.Background(), nil, review.BatchCodeReview{}); !IsConfigError(err) {
		t.Fatalf("StartChat: expected config error, got %v", err)
	}
	if len(c.requests) != 0 {
		t.Error("no request should be sent without configuration")
	}
}

func TestService_ConfigErrorNamesEachOp(t *testing.T) {
	s := newTestService(&scriptedCompleter{})
	s.model = ModelClaude
	s.configErr = configError(ModelClaude, "ANTHROPIC_API_KEY environment variable is not set")

	_, reviewErr := s.GetCodeReview(context.Background(), "x", "go")
	_, chatErr := s.StartChat(context.Background(), nil, review.BatchCodeReview{})
	_, summaryErr := s.GetBatchSummary(context.Background(), map[string]review.CodeReview{"a.go": {}})

	if !strings.HasPrefix(reviewErr.Error(), "claude review: ") {
		t.Errorf("review error = %q", reviewErr)
	}
	if !strings.HasPrefix(chatErr.Error(), "claude chat: ") {
		t.Errorf("chat error = %q", chatErr)
	}
	if !strings.HasPrefix(summaryErr.Error(), "claude summary: ") {
		t.Errorf("summary error = %q", summaryErr)
	}
	var be *Error
	if errors.As(s.configErr, &be) && be.Op != "" {
		t.Errorf("shared config error was modified: Op = %q", be.Op)
	}
}

func TestService_EmptyReplyIsMalformed(t *testing.T) {
	s := newTestService(&scriptedCompleter{replies: []string{"   "}})
	_, err := s.GetBatchSummary(context.Background(), map[string]review.CodeReview{"a.go": {}})
	if !IsMalformed(err) {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestService_RetriesTransient(t *testing.T) {
	transient := newError(ModelGemini, KindTransient, errors.New("503"))
	c := &scriptedCompleter{
		errs:    []error{transient, nil},
		replies: []string{"", " Overall fine. "},
	}
	s := newTestService(c)
	s.maxRetries = 2

	summary, err := s.GetBatchSummary(context.Background(), map[string]review.CodeReview{"a.go": {}})
	if err != nil {
		t.Fatalf("GetBatchSummary error: %v", err)
	}
	if summary != "Overall fine." {
		t.Errorf("summary = %q", summary)
	}
	if len(c.requests) != 2 {
		t.Errorf("expected 2 attempts, got %d", len(c.requests))
	}
}

func TestService_ErrorCarriesOp(t *testing.T) {
	s := newTestService(&scriptedCompleter{errs: []error{newError(ModelGemini, KindAuth, errors.New("401"))}})
	_, err := s.GetBatchSummary(context.Background(), map[string]review.CodeReview{"a.go": {}})
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if be.Op != "summary" || be.Kind != KindAuth {
		t.Errorf("error = %+v", be)
	}
}

func TestService_DetectLanguage(t *testing.T) {
	s := newTestService(&scriptedCompleter{replies: []string{"Python\n"}})
	lang, ok, err := s.DetectLanguage(context.Background(), "print('hi')")
	if err != nil || !ok || lang != "python" {
		t.Errorf("DetectLanguage = %q, %v, %v", lang, ok, err)
	}

	s = newTestService(&scriptedCompleter{replies: []string{"Klingon"}})
	if _, ok, _ := s.DetectLanguage(context.Background(), "x"); ok {
		t.Error("unknown language should not be reported")
	}

	s.detection = false
	if s.Supports(CapLanguageDetection) {
		t.Error("Supports should reflect detection flag")
	}
}

func TestDetectLanguageHelper(t *testing.T) {
	s := newTestService(&scriptedCompleter{errs: []error{errors.New("boom")}})
	if got, err := DetectLanguage(context.Background(), s, "code", "go", nil); got != "go" || err != nil {
		t.Errorf("failure should keep current language, got %q, %v", got, err)
	}

	s = newTestService(&scriptedCompleter{replies: []string{"rust"}})
	if got, err := DetectLanguage(context.Background(), s, "fn main() {}", "plaintext", nil); got != "rust" || err != nil {
		t.Errorf("got %q, %v, want rust", got, err)
	}

	s = newTestService(&scriptedCompleter{})
	s.detection = false
	if got, err := DetectLanguage(context.Background(), s, "x", "java", nil); got != "java" || err != nil {
		t.Errorf("backend without detection should keep current language, got %q, %v", got, err)
	}

	got, err := DetectLanguage(context.Background(), NewUnimplemented(ModelVertex), "package main", "go", nil)
	if !IsNotImplemented(err) {
		t.Errorf("unimplemented backend should surface its error, got %q, %v", got, err)
	}
	if got != "go" {
		t.Errorf("language = %q, want current language alongside the error", got)
	}
}

func TestService_StartChatOverBudget(t *testing.T) {
	s := newTestService(&scriptedCompleter{})
	s.chatBudget = 10

	sess, err := s.StartChat(context.Background(),
		[]review.CodeFile{{Name: "a.go", Language: "go", Content: strings.Repeat("x", 100)}},
		review.BatchCodeReview{FileReviews: map[string]review.CodeReview{}})
	if err != nil {
		t.Fatalf("StartChat error: %v", err)
	}
	if sess != nil {
		t.Error("expected no session when seed exceeds budget")
	}
}

func TestSession_Send(t *testing.T) {
	c := &scriptedCompleter{
		replies: []string{"first answer", "", "second answer"},
		errs:    []error{nil, newError(ModelGemini, KindAuth, errors.New("401")), nil},
	}
	s := newTestService(c)
	files := []review.CodeFile{{Name: "a.go", Language: "go", Content: "package a"}}
	batch := review.BatchCodeReview{
		OverallSummary: "ok",
		FileReviews:    map[string]review.CodeReview{"a.go": {OverallSummary: "fine"}},
	}

	sess, err := s.StartChat(context.Background(), files, batch)
	if err != nil || sess == nil {
		t.Fatalf("StartChat = %v, %v", sess, err)
	}
	if sess.ID() == "" {
		t.Error("session ID should not be empty")
	}

	if reply, err := sess.Send(context.Background(), "q1"); err != nil || reply != "first answer" {
		t.Fatalf("Send q1 = %q, %v", reply, err)
	}
	if _, err := sess.Send(context.Background(), "q2"); err == nil {
		t.Fatal("expected failure for q2")
	}
	if reply, err := sess.Send(context.Background(), "q3"); err != nil || reply != "second answer" {
		t.Fatalf("Send q3 = %q, %v", reply, err)
	}

	last := c.requests[2]
	if !strings.Contains(last.System, "package a") {
		t.Error("chat system context should contain file content")
	}
	var texts []string
	for _, tr := range last.Turns {
		texts = append(texts, tr.Text)
	}
	want := []string{"q1", "first answer", "q3"}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Errorf("turns = %v, want %v", texts, want)
	}
}
