package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/batch"
	"github.com/dshills/critic/internal/chat"
	"github.com/dshills/critic/internal/history"
	"github.com/dshills/critic/internal/review"
)

// ErrNotFound is returned when a history item does not exist.
var ErrNotFound = errors.New("history item not found")

// EventType names an App event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventChat     EventType = "chat"
	EventModel    EventType = "model"
	EventHistory  EventType = "history"
)

// Event is delivered to subscribers on every observable change.
type Event struct {
	Type     EventType       `json:"type"`
	Progress *batch.Progress `json:"progress,omitempty"`
	Chat     *chat.Snapshot  `json:"chat,omitempty"`
	Model    backend.Model   `json:"model,omitempty"`
}

// Result is the outcome of a review or a history load. ChatErr is set when
// the follow-up chat could not be started; the review itself succeeded.
type Result struct {
	Item    review.HistoryItem
	ChatErr error
}

// App is one interactive review session.
type App struct {
	registry     *backend.Registry
	orchestrator *batch.Orchestrator
	chat         *chat.Manager
	history      *history.Store
	logger       *log.Logger

	mu      sync.Mutex
	model   backend.Model
	current *review.HistoryItem

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// Option configures an App.
type Option func(*options)

type options struct {
	logger   *log.Logger
	model    backend.Model
	maxInput int
}

// WithLogger sets the logger shared by the App's components.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithModel sets the initially selected backend.
func WithModel(m backend.Model) Option { return func(o *options) { o.model = m } }

// WithMaxChatInput caps chat message length.
func WithMaxChatInput(n int) Option { return func(o *options) { o.maxInput = n } }

// New creates an App over the given registry and history store. The
// initial model must be registered.
func New(registry *backend.Registry, store *history.Store, opts ...Option) (*App, error) {
	o := options{logger: log.Default(), model: backend.DefaultModel}
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := registry.Get(o.model); err != nil {
		return nil, err
	}

	a := &App{
		registry: registry,
		history:  store,
		logger:   o.logger,
		model:    o.model,
		subs:     make(map[int]func(Event)),
	}
	a.orchestrator = batch.New(
		batch.WithLogger(o.logger),
		batch.WithObserver(func(p batch.Progress) {
			a.publish(Event{Type: EventProgress, Progress: &p})
		}),
	)
	chatOpts := []chat.Option{
		chat.WithLogger(o.logger),
		chat.WithOnChange(func(s chat.Snapshot) {
			a.publish(Event{Type: EventChat, Chat: &s})
		}),
	}
	if o.maxInput > 0 {
		chatOpts = append(chatOpts, chat.WithMaxInput(o.maxInput))
	}
	a.chat = chat.NewManager(chatOpts...)
	return a, nil
}

// Registry returns the backend registry.
func (a *App) Registry() *backend.Registry { return a.registry }

// Chat returns the chat manager.
func (a *App) Chat() *chat.Manager { return a.chat }

// Model returns the selected backend identifier.
func (a *App) Model() backend.Model {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model
}

// SelectModel changes the selected backend. The identifier is resolved
// first; an unknown one leaves the selection unchanged. Changing the
// selection ends the chat session.
func (a *App) SelectModel(m backend.Model) error {
	if _, err := a.registry.Get(m); err != nil {
		return err
	}
	a.mu.Lock()
	changed := a.model != m
	a.model = m
	a.mu.Unlock()

	if changed {
		a.chat.Reset()
		a.publish(Event{Type: EventModel, Model: m})
	}
	return nil
}

// Backend resolves the selected backend.
func (a *App) Backend() (backend.Backend, error) {
	return a.registry.Get(a.Model())
}

// Busy reports whether a batch is running.
func (a *App) Busy() bool { return a.orchestrator.Running() }

// Progress returns the current batch progress.
func (a *App) Progress() batch.Progress { return a.orchestrator.Progress() }

// Current returns the review on display, if any.
func (a *App) Current() (review.HistoryItem, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return review.HistoryItem{}, false
	}
	return a.current.Clone(), true
}

// Review runs a batch with the backend selected at call time, records it
// in history, and starts a chat about it.
func (a *App) Review(ctx context.Context, files []review.CodeFile) (Result, error) {
	b, err := a.Backend()
	if err != nil {
		return Result{}, err
	}
	if a.orchestrator.Running() {
		return Result{}, batch.ErrBusy
	}
	a.chat.Reset()

	result, err := a.orchestrator.Run(ctx, b, files)
	if err != nil {
		return Result{}, err
	}

	items := a.history.Save(ctx, string(b.Name()), files, result)
	item := items[0]
	a.setCurrent(item)
	a.publish(Event{Type: EventHistory})

	res := Result{Item: item}
	res.ChatErr = a.chat.Start(ctx, b, item.Files, item.Review)
	return res, nil
}

// LoadHistory displays a stored review and reseeds chat with it using the
// currently selected backend. An unknown id leaves the active chat alone.
func (a *App) LoadHistory(ctx context.Context, id string) (Result, error) {
	item, ok := a.history.Get(ctx, id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	a.chat.Reset()
	a.setCurrent(item)

	res := Result{Item: item}
	b, err := a.Backend()
	if err != nil {
		res.ChatErr = err
		return res, nil
	}
	res.ChatErr = a.chat.Start(ctx, b, item.Files, item.Review)
	return res, nil
}

// History returns the stored reviews, most recent first.
func (a *App) History(ctx context.Context) []review.HistoryItem {
	return a.history.Load(ctx)
}

// HistoryItem returns one stored review.
func (a *App) HistoryItem(ctx context.Context, id string) (review.HistoryItem, error) {
	item, ok := a.history.Get(ctx, id)
	if !ok {
		return review.HistoryItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, nil
}

// ClearHistory deletes every stored review.
func (a *App) ClearHistory(ctx context.Context) {
	a.history.Clear(ctx)
	a.publish(Event{Type: EventHistory})
}

// DetectLanguage asks the selected backend for the language of code and
// returns current when detection is unavailable or inconclusive. Errors
// come only from a backend that cannot be resolved or is not implemented.
func (a *App) DetectLanguage(ctx context.Context, code, current string) (string, error) {
	b, err := a.Backend()
	if err != nil {
		return current, err
	}
	return backend.DetectLanguage(ctx, b, code, current, a.logger)
}

// Send forwards a chat message to the active session.
func (a *App) Send(ctx context.Context, text string) (review.ChatMessage, error) {
	return a.chat.Send(ctx, text)
}

// Subscribe registers fn for every Event and returns a function that
// removes it. fn must not block.
func (a *App) Subscribe(fn func(Event)) (unsubscribe func()) {
	a.subMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = fn
	a.subMu.Unlock()
	return func() {
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
}

func (a *App) publish(e Event) {
	a.subMu.Lock()
	subs := make([]func(Event), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.subMu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (a *App) setCurrent(item review.HistoryItem) {
	a.mu.Lock()
	a.current = &item
	a.mu.Unlock()
}
