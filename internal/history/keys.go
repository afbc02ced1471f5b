package history

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dshills/critic/internal/storage"
)

// KeySource supplies the key that seals the history record.
type KeySource interface {
	// Key returns the current key, creating one if none exists.
	Key(ctx context.Context) ([]byte, error)
	// Forget discards the current key. The next Key call yields a new one.
	Forget(ctx context.Context) error
}

// KeyCache holds a session key for the lifetime of a login session.
type KeyCache interface {
	Load() (key []byte, ok bool, err error)
	Store(key []byte) error
	Clear() error
}

// SessionKeys generates a random key on first use and keeps it in a KeyCache.
type SessionKeys struct {
	mu    sync.Mutex
	cache KeyCache
}

// NewSessionKeys returns a KeySource backed by cache.
func NewSessionKeys(cache KeyCache) *SessionKeys {
	return &SessionKeys{cache: cache}
}

func (s *SessionKeys) Key(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok, err := s.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading session key: %w", err)
	}
	if ok && len(key) == KeySize {
		return key, nil
	}

	key = make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	if err := s.cache.Store(key); err != nil {
		return nil, fmt.Errorf("caching session key: %w", err)
	}
	return key, nil
}

func (s *SessionKeys) Forget(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Clear()
}

// RuntimeKeyCache keeps the session key in a 0600 file, normally under
// $XDG_RUNTIME_DIR which the OS clears at logout.
type RuntimeKeyCache struct {
	path string
}

// NewRuntimeKeyCache returns a cache storing the key at dir/session.key.
func NewRuntimeKeyCache(dir string) *RuntimeKeyCache {
	return &RuntimeKeyCache{path: filepath.Join(dir, "session.key")}
}

// Path returns the key file location.
func (c *RuntimeKeyCache) Path() string {
	return c.path
}

func (c *RuntimeKeyCache) Load() ([]byte, bool, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		// An unreadable key is as good as no key.
		return nil, false, nil
	}
	return key, true, nil
}

func (c *RuntimeKeyCache) Store(key []byte) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("creating runtime directory: %w", err)
	}
	return os.WriteFile(c.path, []byte(base64.StdEncoding.EncodeToString(key)), 0o600)
}

func (c *RuntimeKeyCache) Clear() error {
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryKeyCache keeps the session key in process memory.
type MemoryKeyCache struct {
	mu  sync.Mutex
	key []byte
}

func (c *MemoryKeyCache) Load() ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil {
		return nil, false, nil
	}
	return append([]byte(nil), c.key...), true, nil
}

func (c *MemoryKeyCache) Store(key []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.key = append([]byte(nil), key...)
	return nil
}

func (c *MemoryKeyCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	zeroBytes(c.key)
	c.key = nil
	return nil
}

// PBKDF2 parameters for passphrase-derived keys.
const (
	PBKDF2Iterations = 600000
	SaltSize         = 32
	saltKey          = "critic.history.salt"
)

// ErrEmptyPassphrase is returned when a passphrase key source has no passphrase.
var ErrEmptyPassphrase = errors.New("history passphrase is empty")

// PassphraseKeys derives the key from a passphrase and a random salt stored
// alongside the record.
type PassphraseKeys struct {
	mu         sync.Mutex
	blobs      storage.Store
	passphrase string
	iterations int
	key        []byte
}

// NewPassphraseKeys returns a KeySource deriving keys from passphrase.
func NewPassphraseKeys(blobs storage.Store, passphrase string) *PassphraseKeys {
	return &PassphraseKeys{blobs: blobs, passphrase: passphrase, iterations: PBKDF2Iterations}
}

func (p *PassphraseKeys) Key(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return append([]byte(nil), p.key...), nil
	}
	if p.passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	salt, ok, err := p.blobs.Get(ctx, saltKey)
	if err != nil {
		return nil, fmt.Errorf("loading salt: %w", err)
	}
	if !ok || len(salt) != SaltSize {
		salt = make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("generating salt: %w", err)
		}
		if err := p.blobs.Put(ctx, saltKey, salt); err != nil {
			return nil, fmt.Errorf("saving salt: %w", err)
		}
	}

	p.key = DeriveKey(p.passphrase, salt, p.iterations)
	return append([]byte(nil), p.key...), nil
}

func (p *PassphraseKeys) Forget(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	zeroBytes(p.key)
	p.key = nil
	return p.blobs.Delete(ctx, saltKey)
}

// DeriveKey stretches passphrase into an AES-256 key with PBKDF2-SHA-256.
func DeriveKey(passphrase string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, iterations, KeySize, sha256.New)
}
