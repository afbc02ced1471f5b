package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dshills/critic/internal/review"
	"github.com/dshills/critic/internal/storage"
)

// Capacity is the maximum number of items kept.
const Capacity = 50

// RecordKey names the encrypted history record in storage.
const RecordKey = "critic.history"

// Store is the encrypted history. It is safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	blobs  storage.Store
	keys   KeySource
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed persistence errors.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock overrides the time source used for item ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store persisting through blobs with keys from keys.
func NewStore(blobs storage.Store, keys KeySource, opts ...Option) *Store {
	s := &Store{
		blobs:  blobs,
		keys:   keys,
		logger: log.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the stored items, most recent first. It never fails: a missing
// record yields an empty list, and a record that cannot be decrypted or
// decoded is purged together with its key.
func (s *Store) Load(ctx context.Context) []review.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.load(ctx))
}

// Get returns the item with the given id.
func (s *Store) Get(ctx context.Context, id string) (review.HistoryItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.load(ctx) {
		if item.ID == id {
			return item.Clone(), true
		}
	}
	return review.HistoryItem{}, false
}

// Save records a completed batch as the newest item, trims the list to
// Capacity, and persists it. The returned list is the new history; it is
// returned even when the write fails.
func (s *Store) Save(ctx context.Context, model string, files []review.CodeFile, batch review.BatchCodeReview) []review.HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.load(ctx)
	now := s.now().UTC()
	item := review.HistoryItem{
		ID:        nextID(now, items),
		Timestamp: now.Format(review.TimestampLayout),
		Model:     model,
		Files:     review.CloneFiles(files),
		Review:    batch.Clone(),
	}

	items = append([]review.HistoryItem{item}, items...)
	if len(items) > Capacity {
		items = items[:Capacity]
	}

	if err := s.write(ctx, items); err != nil {
		s.logger.Warn("history write failed", "err", err)
	}
	return cloneItems(items)
}

// Clear removes the record and discards the key.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(ctx)
}

// Stats describes the underlying storage.
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	return s.blobs.Stats(ctx)
}

func (s *Store) load(ctx context.Context) []review.HistoryItem {
	empty := []review.HistoryItem{}

	data, ok, err := s.blobs.Get(ctx, RecordKey)
	if err != nil {
		s.logger.Warn("history read failed", "err", err)
		return empty
	}
	if !ok {
		return empty
	}

	key, err := s.keys.Key(ctx)
	if err != nil {
		s.logger.Warn("history key unavailable", "err", err)
		return empty
	}
	defer zeroBytes(key)

	plain, err := Decrypt(key, string(data))
	if err != nil {
		s.logger.Warn("history record unreadable, clearing", "err", err)
		s.purge(ctx)
		return empty
	}

	var items []review.HistoryItem
	if err := json.Unmarshal(plain, &items); err != nil {
		s.logger.Warn("history record corrupt, clearing", "err", err)
		s.purge(ctx)
		return empty
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			s.logger.Warn("history record invalid, clearing", "err", err)
			s.purge(ctx)
			return empty
		}
	}
	if items == nil {
		return empty
	}
	return items
}

func (s *Store) write(ctx context.Context, items []review.HistoryItem) error {
	plain, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	key, err := s.keys.Key(ctx)
	if err != nil {
		return fmt.Errorf("obtaining key: %w", err)
	}
	defer zeroBytes(key)

	record, err := Encrypt(key, plain)
	if err != nil {
		return fmt.Errorf("encrypting history: %w", err)
	}
	return s.blobs.Put(ctx, RecordKey, []byte(record))
}

func (s *Store) purge(ctx context.Context) {
	if err := s.blobs.Delete(ctx, RecordKey); err != nil {
		s.logger.Warn("history delete failed", "err", err)
	}
	if err := s.keys.Forget(ctx); err != nil {
		s.logger.Warn("history key delete failed", "err", err)
	}
}

// nextID derives an id from the creation time in milliseconds, bumped past
// the current head so ids stay unique and increasing.
func nextID(now time.Time, items []review.HistoryItem) string {
	ms := now.UnixMilli()
	if len(items) > 0 {
		if head, err := strconv.ParseInt(items[0].ID, 10, 64); err == nil && ms <= head {
			ms = head + 1
		}
	}
	return strconv.FormatInt(ms, 10)
}

func cloneItems(items []review.HistoryItem) []review.HistoryItem {
	out := make([]review.HistoryItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
