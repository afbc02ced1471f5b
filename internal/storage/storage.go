package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dshills/critic/internal/config"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// Store is a durable map of named blobs.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put replaces the value for key.
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Stats describes the store's contents.
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats returns information about a store.
type Stats struct {
	Kind       string `json:"kind"`
	Location   string `json:"location"`
	Entries    int    `json:"entries"`
	TotalBytes int64  `json:"totalBytes"`
}

// Open creates the store selected by cfg.History. A disabled history gets a
// MemoryStore so nothing touches disk.
func Open(cfg config.Config) (Store, error) {
	if !cfg.History.Enabled {
		return NewMemoryStore(), nil
	}
	dir, err := config.DataDir(cfg)
	if err != nil {
		return nil, err
	}
	switch cfg.History.Storage {
	case "", "file":
		return NewFileStore(filepath.Join(dir, "store"))
	case "sqlite":
		return OpenSQLite(filepath.Join(dir, "critic.db"))
	default:
		return nil, fmt.Errorf("unknown storage kind: %s", cfg.History.Storage)
	}
}

// HashKey creates a SHA-256 hash of the given key material.
func HashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", h)
}
