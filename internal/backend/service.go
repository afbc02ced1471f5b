package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dshills/critic/internal/review"
)

// maxOutputTokens bounds every completion request.
const maxOutputTokens = 4096

const (
	reviewTemperature   = 0.2
	summaryTemperature  = 0.3
	detectTemperature   = 0.0
	chatTemperature     = 0.7
	defaultChatSeedSize = 2 << 20
)

type responseFormat int

const (
	formatText responseFormat = iota
	formatReview
)

// turn is one message of a conversation sent to a model.
type turn struct {
	Role review.Role
	Text string
}

// completion is a provider-neutral request.
type completion struct {
	System      string
	Turns       []turn
	Format      responseFormat
	Temperature float64
}

// completer sends one completion to a provider and returns the text reply.
// Implementations classify their failures as *Error.
type completer interface {
	complete(ctx context.Context, c completion) (string, error)
}

// detector guesses a language without a backend call.
type detector func(code string) (string, bool)

// Service implements Backend on top of a completer. All concrete LLM
// backends share it.
type Service struct {
	model      Model
	completer  completer
	configErr  error
	guidelines *review.Guidelines
	logger     *log.Logger

	timeout    time.Duration
	maxRetries int
	retryBase  time.Duration
	limiter    *rate.Limiter
	chatBudget int

	detection bool
	detect    detector
}

func (s *Service) Name() Model { return s.model }

// Ready returns the configuration error that prevents calls, if any.
func (s *Service) Ready() error { return s.configErr }

func (s *Service) Supports(c Capability) bool {
	switch c {
	case CapLanguageDetection:
		return s.detection
	case CapChat:
		return true
	}
	return false
}

func (s *Service) GetCodeReview(ctx context.Context, code, language string) (review.CodeReview, error) {
	if language == "" {
		language = "plaintext"
	}
	c := completion{
		System:      review.ReviewSystemPrompt(),
		Turns:       []turn{{Role: review.RoleUser, Text: review.BuildReviewPrompt(code, language, s.guidelines)}},
		Format:      formatReview,
		Temperature: reviewTemperature,
	}

	text, err := s.call(ctx, "review", c)
	if err != nil {
		return review.CodeReview{}, err
	}
	r, perr := review.ParseCodeReview(text)
	if perr == nil {
		return r, nil
	}

	s.logger.Debug("review response malformed, requesting repair", "backend", s.model, "err", perr)
	c.Turns = append(c.Turns,
		turn{Role: review.RoleModel, Text: text},
		turn{Role: review.RoleUser, Text: review.BuildRepairPrompt(perr, text)},
	)
	text, err = s.call(ctx, "review", c)
	if err != nil {
		return review.CodeReview{}, err
	}
	r, perr = review.ParseCodeReview(text)
	if perr != nil {
		return review.CodeReview{}, &Error{Backend: s.model, Op: "review", Kind: KindMalformed, Err: perr}
	}
	return r, nil
}

func (s *Service) GetBatchSummary(ctx context.Context, reviews map[string]review.CodeReview) (string, error) {
	c := completion{
		System:      review.BatchSummarySystemPrompt(),
		Turns:       []turn{{Role: review.RoleUser, Text: review.BuildBatchSummaryPrompt(reviews)}},
		Temperature: summaryTemperature,
	}
	text, err := s.call(ctx, "summary", c)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *Service) DetectLanguage(ctx context.Context, code string) (string, bool, error) {
	if !s.detection {
		return "", false, nil
	}
	if s.detect != nil {
		lang, ok := s.detect(code)
		return lang, ok, nil
	}
	c := completion{
		Turns:       []turn{{Role: review.RoleUser, Text: review.BuildLanguagePrompt(code)}},
		Temperature: detectTemperature,
	}
	text, err := s.call(ctx, "detect", c)
	if err != nil {
		return "", false, err
	}
	lang, ok := review.ParseLanguage(text)
	return lang, ok, nil
}

func (s *Service) StartChat(ctx context.Context, files []review.CodeFile, batch review.BatchCodeReview) (ChatSession, error) {
	if s.configErr != nil {
		return nil, s.opError("chat", s.configErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := review.BuildChatContext(files, batch)
	if s.chatBudget > 0 && len(seed) > s.chatBudget {
		s.logger.Warn("chat context exceeds budget, no session started",
			"backend", s.model, "bytes", len(seed), "budget", s.chatBudget)
		return nil, nil
	}
	return &session{id: uuid.NewString(), svc: s, system: seed}, nil
}

// call runs one completion with timeout, rate limiting, and retries, and
// tags any failure with the backend and operation.
func (s *Service) call(ctx context.Context, op string, c completion) (string, error) {
	if s.configErr != nil {
		return "", s.opError(op, s.configErr)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var out string
	err := retryWithBase(ctx, s.maxRetries, s.retryBase, func() error {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return newError(s.model, KindTransient, fmt.Errorf("rate limiter: %w", err))
			}
		}
		text, err := s.completer.complete(ctx, c)
		if err != nil {
			return s.classify(err)
		}
		if strings.TrimSpace(text) == "" {
			return newError(s.model, KindMalformed, errors.New("empty response"))
		}
		out = text
		return nil
	})
	if err != nil {
		s.logger.Debug("backend call failed", "backend", s.model, "op", op, "err", err)
		return "", s.opError(op, err)
	}
	return out, nil
}

func (s *Service) classify(err error) error {
	var be *Error
	if errors.As(err, &be) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(s.model, KindTransient, err)
	}
	return newError(s.model, KindUnknown, err)
}

func (s *Service) opError(op string, err error) error {
	var be *Error
	if errors.As(err, &be) {
		if be.Op != "" {
			return err
		}
		// configErr is shared by every call, so tag a copy.
		tagged := *be
		tagged.Op = op
		return &tagged
	}
	return &Error{Backend: s.model, Op: op, Kind: KindOf(err), Err: err}
}

// session is a chat conversation held by a Service. History only grows
// when a send succeeds.
type session struct {
	id     string
	svc    *Service
	system string

	mu    sync.Mutex
	turns []turn
}

func (cs *session) ID() string { return cs.id }

func (cs *session) Send(ctx context.Context, message string) (string, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	turns := make([]turn, len(cs.turns), len(cs.turns)+1)
	copy(turns, cs.turns)
	turns = append(turns, turn{Role: review.RoleUser, Text: message})

	reply, err := cs.svc.call(ctx, "chat", completion{
		System:      cs.system,
		Turns:       turns,
		Temperature: chatTemperature,
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	cs.turns = append(turns, turn{Role: review.RoleModel, Text: reply})
	return reply, nil
}
