package filestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/storage"
	"github.com/yndnr/mirrorsync/pkg/cmap"
)

const (
	fileSuffix = ".val"
	tempPrefix = ".tmp-"
)

// Store is a Backend keeping one file per key in a directory.
type Store struct {
	dir    string
	logger *slog.Logger

	// known holds the last value this process saw for each key. It supplies
	// OldValue for watch events and filters events for unchanged content.
	known *cmap.Map[string, string]

	mu       sync.Mutex
	closed   bool
	fsw      *fsnotify.Watcher
	done     chan struct{}
	watchers map[uint64]func(storage.Change)
	nextID   uint64
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New opens dir as a store, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("filestore: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: create dir: %w", err)
	}

	s := &Store{
		dir:      dir,
		logger:   slog.Default(),
		known:    cmap.New[string, string](),
		watchers: make(map[uint64]func(storage.Change)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements storage.Named.
func (s *Store) Name() string { return "file" }

// Dir returns the backing directory.
func (s *Store) Dir() string { return s.dir }

// FileName returns the file name used for key.
func FileName(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key)) + fileSuffix
}

// KeyOf returns the key encoded in a file name. ok is false for files that
// are not value files.
func KeyOf(name string) (key string, ok bool) {
	name = filepath.Base(name)
	if strings.HasPrefix(name, tempPrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, fileSuffix))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, FileName(key))
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Get reads the file for key.
func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	if s.isClosed() {
		return "", false, domain.ErrBackendClosed
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("filestore: read %q: %w", key, err)
	}
	s.known.Set(key, string(data))
	return string(data), true, nil
}

// Set atomically replaces the file for key.
func (s *Store) Set(_ context.Context, key, value string) error {
	if s.isClosed() {
		return domain.ErrBackendClosed
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("filestore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: write %q: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("filestore: sync %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("filestore: close %q: %w", key, err)
	}

	// Record before the rename so our own event is recognised as unchanged.
	s.known.Set(key, value)
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		s.known.Delete(key)
		os.Remove(tmpName)
		return fmt.Errorf("filestore: rename %q: %w", key, err)
	}
	return nil
}

// Remove deletes the file for key.
func (s *Store) Remove(_ context.Context, key string) error {
	if s.isClosed() {
		return domain.ErrBackendClosed
	}
	s.known.Delete(key)
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: remove %q: %w", key, err)
	}
	return nil
}

// Keys lists the keys of all value files.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if s.isClosed() {
		return nil, domain.ErrBackendClosed
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("filestore: list: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		if key, ok := KeyOf(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Close stops the directory watcher.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	fsw, done := s.fsw, s.done
	s.fsw = nil
	s.watchers = map[uint64]func(storage.Change){}
	s.mu.Unlock()

	if fsw == nil {
		return nil
	}
	err := fsw.Close()
	<-done
	if err != nil {
		return fmt.Errorf("filestore: close watcher: %w", err)
	}
	return nil
}
