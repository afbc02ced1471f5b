// Package backendtest provides a scripted backend.Backend for tests.
package backendtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/review"
)

// Fake is a configurable in-memory backend. Nil hooks fall back to simple
// canned behavior. All methods are safe for concurrent use.
type Fake struct {
	Model     backend.Model
	Detection bool

	ReviewFn  func(ctx context.Context, code, language string) (review.CodeReview, error)
	SummaryFn func(ctx context.Context, reviews map[string]review.CodeReview) (string, error)
	DetectFn  func(ctx context.Context, code string) (string, bool, error)
	ChatFn    func(ctx context.Context, files []review.CodeFile, batch review.BatchCodeReview) (backend.ChatSession, error)
	SendFn    func(ctx context.Context, message string) (string, error)

	mu           sync.Mutex
	reviewCalls  []string
	summaryCalls int
	chatStarts   int
}

// New returns a Fake named m with working defaults.
func New(m backend.Model) *Fake {
	return &Fake{Model: m, Detection: true}
}

func (f *Fake) Name() backend.Model { return f.Model }

func (f *Fake) Supports(c backend.Capability) bool {
	switch c {
	case backend.CapLanguageDetection:
		return f.Detection
	case backend.CapChat:
		return true
	}
	return false
}

func (f *Fake) GetCodeReview(ctx context.Context, code, language string) (review.CodeReview, error) {
	f.mu.Lock()
	f.reviewCalls = append(f.reviewCalls, code)
	f.mu.Unlock()
	if f.ReviewFn != nil {
		return f.ReviewFn(ctx, code, language)
	}
	return review.CodeReview{
		OverallSummary: fmt.Sprintf("Review of %d bytes of %s.", len(code), language),
		Feedback: []review.ReviewFeedback{{
			Category:    review.CategoryStyle,
			Severity:    review.SeverityLow,
			Line:        1,
			Description: "example finding",
		}},
	}, nil
}

func (f *Fake) GetBatchSummary(ctx context.Context, reviews map[string]review.CodeReview) (string, error) {
	f.mu.Lock()
	f.summaryCalls++
	f.mu.Unlock()
	if f.SummaryFn != nil {
		return f.SummaryFn(ctx, reviews)
	}
	return fmt.Sprintf("Summary of %d files.", len(reviews)), nil
}

func (f *Fake) DetectLanguage(ctx context.Context, code string) (string, bool, error) {
	if f.DetectFn != nil {
		return f.DetectFn(ctx, code)
	}
	return "", false, nil
}

func (f *Fake) StartChat(ctx context.Context, files []review.CodeFile, batch review.BatchCodeReview) (backend.ChatSession, error) {
	f.mu.Lock()
	f.chatStarts++
	f.mu.Unlock()
	if f.ChatFn != nil {
		return f.ChatFn(ctx, files, batch)
	}
	return &Session{id: uuid.NewString(), send: f.send}, nil
}

func (f *Fake) send(ctx context.Context, message string) (string, error) {
	if f.SendFn != nil {
		return f.SendFn(ctx, message)
	}
	return "echo: " + message, nil
}

// ReviewCalls returns the code of every GetCodeReview call in order.
func (f *Fake) ReviewCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reviewCalls...)
}

// SummaryCalls returns the number of GetBatchSummary calls.
func (f *Fake) SummaryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.summaryCalls
}

// ChatStarts returns the number of StartChat calls.
func (f *Fake) ChatStarts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chatStarts
}

// Session is a chat session driven by a send function.
type Session struct {
	id   string
	send func(ctx context.Context, message string) (string, error)
}

// NewSession returns a session that answers with send.
func NewSession(send func(ctx context.Context, message string) (string, error)) *Session {
	return &Session{id: uuid.NewString(), send: send}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Send(ctx context.Context, message string) (string, error) {
	return s.send(ctx, message)
}
