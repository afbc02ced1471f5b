package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/review"
)

// ErrBusy is returned when Run is called while a batch is in progress.
var ErrBusy = errors.New("a review batch is already running")

// Progress reports how far a batch has advanced. The zero value is idle.
type Progress struct {
	Total       int    `json:"total"`
	Completed   int    `json:"completed"`
	CurrentFile string `json:"currentFile"`
}

// Idle reports whether no batch is running.
func (p Progress) Idle() bool { return p == Progress{} }

// Observer receives every progress change.
type Observer func(Progress)

// FileError reports the file that aborted a batch.
type FileError struct {
	Index int // 1-based position in the batch
	Name  string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("failed to review file %d (%s): %v", e.Index, e.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// SummaryError reports a failed batch summary call.
type SummaryError struct {
	Err error
}

func (e *SummaryError) Error() string {
	return fmt.Sprintf("failed to summarize batch: %v", e.Err)
}

func (e *SummaryError) Unwrap() error { return e.Err }

// Orchestrator sequences per-file reviews and the batch summary. It runs
// one batch at a time.
type Orchestrator struct {
	logger   *log.Logger
	observer Observer

	mu       sync.Mutex
	running  bool
	progress Progress
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

// WithObserver registers fn to receive progress updates. fn is called
// synchronously and must not call back into the Orchestrator's Run.
func WithObserver(fn Observer) Option { return func(o *Orchestrator) { o.observer = fn } }

// New creates an Orchestrator.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{logger: log.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Progress returns the current progress.
func (o *Orchestrator) Progress() Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.progress
}

// Running reports whether a batch is in progress.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Run reviews files with b and returns the combined result.
func (o *Orchestrator) Run(ctx context.Context, b backend.Backend, files []review.CodeFile) (review.BatchCodeReview, error) {
	if err := review.ValidateFiles(files); err != nil {
		return review.BatchCodeReview{}, err
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return review.BatchCodeReview{}, ErrBusy
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.setProgress(Progress{})
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	start := time.Now()
	total := len(files)
	reviews := make(map[string]review.CodeReview, total)

	for i, f := range files {
		o.setProgress(Progress{Total: total, Completed: i, CurrentFile: f.Name})
		if err := ctx.Err(); err != nil {
			return review.BatchCodeReview{}, &FileError{Index: i + 1, Name: f.Name, Err: err}
		}

		fileStart := time.Now()
		r, err := b.GetCodeReview(ctx, f.Content, f.Language)
		if err != nil {
			o.logger.Debug("file review failed", "file", f.Name, "index", i+1, "err", err)
			return review.BatchCodeReview{}, &FileError{Index: i + 1, Name: f.Name, Err: err}
		}
		o.logger.Debug("file reviewed", "file", f.Name, "index", i+1,
			"findings", len(r.Feedback), "ms", time.Since(fileStart).Milliseconds())
		reviews[f.Name] = r
	}

	var summary string
	if total == 1 {
		summary = reviews[files[0].Name].OverallSummary
	} else {
		o.setProgress(Progress{Total: total, Completed: total})
		s, err := b.GetBatchSummary(ctx, reviews)
		if err != nil {
			o.logger.Debug("batch summary failed", "err", err)
			return review.BatchCodeReview{}, &SummaryError{Err: err}
		}
		summary = s
	}

	o.logger.Debug("batch complete", "backend", b.Name(), "files", total,
		"ms", time.Since(start).Milliseconds())
	return review.BatchCodeReview{OverallSummary: summary, FileReviews: reviews}, nil
}

func (o *Orchestrator) setProgress(p Progress) {
	o.mu.Lock()
	o.progress = p
	o.mu.Unlock()
	if o.observer != nil {
		o.observer(p)
	}
}
