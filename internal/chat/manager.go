package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/review"
	"github.com/dshills/critic/internal/sanitize"
)

// State is the lifecycle position of a Manager.
type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateActive
	StateSending
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateSending:
		return "sending"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrChatUnavailable means no session could be established for the
	// current review.
	ErrChatUnavailable = errors.New("chat is unavailable for this review")
	// ErrEmptyMessage rejects a message that is blank after sanitizing.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrBusy rejects a send while another is in flight.
	ErrBusy = errors.New("a message is already being sent")
	// ErrNoSession rejects a send without an active session.
	ErrNoSession = errors.New("no active chat session")
	// ErrReset reports that the session ended while a call was in flight.
	// The late result is discarded.
	ErrReset = errors.New("chat session was reset")
)

// Manager owns the chat session for the current review.
type Manager struct {
	logger   *log.Logger
	maxInput int
	onChange func(Snapshot)

	mu       sync.Mutex
	state    State
	gen      uint64
	session  backend.ChatSession
	messages []review.ChatMessage
}

// Snapshot is a point-in-time copy of the manager's state.
type Snapshot struct {
	State     string               `json:"state"`
	SessionID string               `json:"sessionId,omitempty"`
	Messages  []review.ChatMessage `json:"messages"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithMaxInput caps user message length after sanitizing.
func WithMaxInput(n int) Option { return func(m *Manager) { m.maxInput = n } }

// WithOnChange registers fn to receive a snapshot after every transcript or
// state change. fn runs without the manager lock held.
func WithOnChange(fn func(Snapshot)) Option { return func(m *Manager) { m.onChange = fn } }

// NewManager creates an uninitialized Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:   log.Default(),
		maxInput: sanitize.DefaultMaxLength,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start replaces any existing session with one seeded from files and batch.
// When the backend cannot provide a session the manager returns to
// Uninitialized and the error wraps ErrChatUnavailable.
func (m *Manager) Start(ctx context.Context, b backend.Backend, files []review.CodeFile, batch review.BatchCodeReview) error {
	m.mu.Lock()
	m.resetLocked()
	m.state = StateStarting
	gen := m.gen
	m.mu.Unlock()
	m.notify()

	sess, err := b.StartChat(ctx, review.CloneFiles(files), batch.Clone())

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return ErrReset
	}
	if err != nil || sess == nil {
		m.state = StateUninitialized
		m.mu.Unlock()
		m.notify()
		if err != nil {
			m.logger.Warn("chat session could not be started", "backend", b.Name(), "err", err)
			return fmt.Errorf("%w: %w", ErrChatUnavailable, err)
		}
		m.logger.Debug("backend declined chat session", "backend", b.Name())
		return ErrChatUnavailable
	}
	m.session = sess
	m.state = StateActive
	m.mu.Unlock()
	m.notify()
	return nil
}

// Send delivers text to the model. On backend failure the returned message
// is the synthetic error entry appended to the transcript, and err is the
// cause.
func (m *Manager) Send(ctx context.Context, text string) (review.ChatMessage, error) {
	text = strings.TrimSpace(sanitize.Text(text, m.maxInput))
	if text == "" {
		return review.ChatMessage{}, ErrEmptyMessage
	}

	m.mu.Lock()
	switch m.state {
	case StateSending:
		m.mu.Unlock()
		return review.ChatMessage{}, ErrBusy
	case StateActive:
	default:
		m.mu.Unlock()
		return review.ChatMessage{}, ErrNoSession
	}
	m.messages = append(m.messages, review.ChatMessage{Role: review.RoleUser, Content: text})
	m.state = StateSending
	sess := m.session
	gen := m.gen
	m.mu.Unlock()
	m.notify()

	reply, err := sess.Send(ctx, text)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Debug("discarding chat reply after reset")
		return review.ChatMessage{}, ErrReset
	}
	var msg review.ChatMessage
	if err != nil {
		msg = review.ChatMessage{Role: review.RoleModel, Content: ErrorText(err)}
	} else {
		msg = review.ChatMessage{Role: review.RoleModel, Content: reply}
	}
	m.messages = append(m.messages, msg)
	m.state = StateActive
	m.mu.Unlock()
	m.notify()

	if err != nil {
		m.logger.Warn("chat send failed", "err", err)
		return msg, err
	}
	return msg, nil
}

// Reset ends the session and clears the transcript. A call in flight is
// abandoned and its result discarded.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.resetLocked()
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) resetLocked() {
	m.gen++
	m.state = StateUninitialized
	m.session = nil
	m.messages = nil
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Messages returns a copy of the transcript.
func (m *Manager) Messages() []review.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]review.ChatMessage(nil), m.messages...)
}

// SessionID returns the active session's token, or "" without a session.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.ID()
}

// Snapshot returns a copy of the current state and transcript.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{
		State:    m.state.String(),
		Messages: append([]review.ChatMessage{}, m.messages...),
	}
	if m.session != nil {
		s.SessionID = m.session.ID()
	}
	return s
}

func (m *Manager) notify() {
	if m.onChange == nil {
		return
	}
	m.onChange(m.Snapshot())
}

// ErrorText renders a failed send as the content of a model message.
func ErrorText(err error) string {
	text := "Error: " + err.Error()
	if hint := backend.Hint(err); hint != "" {
		text += "\n\n" + hint
	}
	return text
}
