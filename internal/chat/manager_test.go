package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/backend/backendtest"
	"github.com/dshills/critic/internal/review"
)

var (
	testFiles = []review.CodeFile{{Name: "a.go", Language: "go", Content: "package a"}}
	testBatch = review.BatchCodeReview{
		OverallSummary: "fine",
		FileReviews:    map[string]review.CodeReview{"a.go": {OverallSummary: "fine"}},
	}
)

func newManager() *Manager {
	return NewManager(WithLogger(log.New(io.Discard)))
}

func started(t *testing.T, fake *backendtest.Fake) *Manager {
	t.Helper()
	m := newManager()
	require.NoError(t, m.Start(context.Background(), fake, testFiles, testBatch))
	require.Equal(t, StateActive, m.State())
	return m
}

func TestSend_Success(t *testing.T) {
	m := started(t, backendtest.New(backend.ModelGemini))
	assert.NotEmpty(t, m.SessionID())

	msg, err := m.Send(context.Background(), "  why?  ")
	require.NoError(t, err)
	assert.Equal(t, review.ChatMessage{Role: review.RoleModel, Content: "echo: why?"}, msg)
	assert.Equal(t, []review.ChatMessage{
		{Role: review.RoleUser, Content: "why?"},
		{Role: review.RoleModel, Content: "echo: why?"},
	}, m.Messages())
	assert.Equal(t, StateActive, m.State())
}

func TestSend_TranscriptAlternates(t *testing.T) {
	m := started(t, backendtest.New(backend.ModelGemini))
	questions := []string{"first", "second", "third", "fourth"}
	for _, q := range questions {
		_, err := m.Send(context.Background(), q)
		require.NoError(t, err)
	}

	msgs := m.Messages()
	require.Len(t, msgs, 2*len(questions))
	for i, q := range questions {
		assert.Equal(t, review.ChatMessage{Role: review.RoleUser, Content: q}, msgs[2*i])
		assert.Equal(t, review.ChatMessage{Role: review.RoleModel, Content: "echo: " + q}, msgs[2*i+1])
	}
}

func TestSend_FailureAppendsSyntheticMessage(t *testing.T) {
	fake := backendtest.New(backend.ModelGemini)
	calls := 0
	fake.SendFn = func(_ context.Context, msg string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("quota exceeded")
		}
		return "answer to " + msg, nil
	}
	m := started(t, fake)

	msg, err := m.Send(context.Background(), "first")
	require.Error(t, err)
	assert.Equal(t, review.RoleModel, msg.Role)
	assert.Contains(t, msg.Content, "quota exceeded")
	assert.Equal(t, StateActive, m.State(), "session stays usable after failure")

	_, err = m.Send(context.Background(), "second")
	require.NoError(t, err)

	msgs := m.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, review.RoleModel, msgs[1].Role)
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, "answer to second", msgs[3].Content)
}

func TestSend_Rejections(t *testing.T) {
	m := newManager()
	_, err := m.Send(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoSession)

	m = started(t, backendtest.New(backend.ModelGemini))
	_, err = m.Send(context.Background(), " \x00\x01 ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, m.Messages())
}

func TestSend_Busy(t *testing.T) {
	fake := backendtest.New(backend.ModelGemini)
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.SendFn = func(context.Context, string) (string, error) {
		close(entered)
		<-release
		return "done", nil
	}
	m := started(t, fake)

	done := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), "one")
		done <- err
	}()
	<-entered
	assert.Equal(t, StateSending, m.State())

	_, err := m.Send(context.Background(), "two")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	require.NoError(t, <-done)
	assert.Len(t, m.Messages(), 2, "rejected message must not be recorded")
}

func TestSend_ReplyAfterResetDiscarded(t *testing.T) {
	fake := backendtest.New(backend.ModelGemini)
	entered := make(chan struct{})
	release := make(chan struct{})
	fake.SendFn = func(context.Context, string) (string, error) {
		close(entered)
		<-release
		return "late", nil
	}
	m := started(t, fake)

	done := make(chan error, 1)
	go func() {
		_, err := m.Send(context.Background(), "q")
		done <- err
	}()
	<-entered
	m.Reset()
	close(release)

	assert.ErrorIs(t, <-done, ErrReset)
	assert.Empty(t, m.Messages())
	assert.Equal(t, StateUninitialized, m.State())
	assert.Empty(t, m.SessionID())
}

func TestStart_Unavailable(t *testing.T) {
	fake := backendtest.New(backend.ModelGemini)
	fake.ChatFn = func(context.Context, []review.CodeFile, review.BatchCodeReview) (backend.ChatSession, error) {
		return nil, nil
	}
	m := newManager()
	err := m.Start(context.Background(), fake, testFiles, testBatch)
	assert.ErrorIs(t, err, ErrChatUnavailable)
	assert.Equal(t, StateUninitialized, m.State())

	cause := errors.New("boom")
	fake.ChatFn = func(context.Context, []review.CodeFile, review.BatchCodeReview) (backend.ChatSession, error) {
		return nil, cause
	}
	err = m.Start(context.Background(), fake, testFiles, testBatch)
	assert.ErrorIs(t, err, ErrChatUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, m.Messages())
}

func TestStart_SeedsCopies(t *testing.T) {
	fake := backendtest.New(backend.ModelGemini)
	var seeded review.BatchCodeReview
	fake.ChatFn = func(_ context.Context, _ []review.CodeFile, b review.BatchCodeReview) (backend.ChatSession, error) {
		seeded = b
		return backendtest.NewSession(func(context.Context, string) (string, error) { return "ok", nil }), nil
	}
	batch := testBatch.Clone()
	m := newManager()
	require.NoError(t, m.Start(context.Background(), fake, testFiles, batch))

	batch.FileReviews["a.go"] = review.CodeReview{OverallSummary: "mutated"}
	assert.Equal(t, "fine", seeded.FileReviews["a.go"].OverallSummary)
}

func TestStart_ResetsTranscript(t *testing.T) {
	fake := backendtest.New(backend.ModelGemini)
	m := started(t, fake)
	_, err := m.Send(context.Background(), "q")
	require.NoError(t, err)
	first := m.SessionID()

	require.NoError(t, m.Start(context.Background(), fake, testFiles, testBatch))
	assert.Empty(t, m.Messages())
	assert.NotEqual(t, first, m.SessionID())
}

func TestOnChange(t *testing.T) {
	var states []string
	m := NewManager(WithLogger(log.New(io.Discard)), WithOnChange(func(s Snapshot) {
		states = append(states, s.State)
	}))
	require.NoError(t, m.Start(context.Background(), backendtest.New(backend.ModelGemini), testFiles, testBatch))
	_, err := m.Send(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, "starting,active,sending,active", strings.Join(states, ","))
}

func TestErrorText(t *testing.T) {
	err := &backend.Error{Backend: backend.ModelClaude, Op: "chat", Kind: backend.KindTransient}
	text := ErrorText(err)
	assert.True(t, strings.HasPrefix(text, "Error: claude chat"))
	assert.Contains(t, text, "try again")
}
