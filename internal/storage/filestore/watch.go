package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/mirrorsync/internal/core/domain"
	"github.com/yndnr/mirrorsync/internal/storage"
)

// Watch implements storage.Watchable. The directory watcher starts with the
// first subscription. Events for content this Store already knows about,
// including its own writes, are not reported.
func (s *Store) Watch(fn func(storage.Change)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrBackendClosed
	}
	if s.fsw == nil {
		if err := s.startLocked(); err != nil {
			return nil, err
		}
	}

	id := s.nextID
	s.nextID++
	s.watchers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}, nil
}

// FiltersOwnWrites implements storage.SelfFiltering.
func (s *Store) FiltersOwnWrites() bool { return true }

func (s *Store) startLocked() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("filestore: new watcher: %w", err)
	}
	if err := fsw.Add(s.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("filestore: watch %s: %w", s.dir, err)
	}

	// Prime the cache so removals of keys never read here are still reported.
	entries, err := os.ReadDir(s.dir)
	if err == nil {
		for _, e := range entries {
			key, ok := KeyOf(e.Name())
			if !ok {
				continue
			}
			if data, err := os.ReadFile(s.path(key)); err == nil {
				s.known.Set(key, string(data))
			}
		}
	}

	s.fsw = fsw
	s.done = make(chan struct{})
	go s.loop(fsw, s.done)

	s.logger.Debug("watching storage directory", "dir", s.dir)
	return nil
}

func (s *Store) loop(fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	for {
		select {
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			s.handle(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			s.logger.Warn("storage directory watcher error", "dir", s.dir, "error", err)
		}
	}
}

func (s *Store) handle(event fsnotify.Event) {
	key, ok := KeyOf(event.Name)
	if !ok {
		return
	}

	switch {
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		data, err := os.ReadFile(event.Name)
		if errors.Is(err, fs.ErrNotExist) {
			s.removed(key)
			return
		}
		if err != nil {
			s.logger.Debug("read changed file", "file", event.Name, "error", err)
			return
		}
		value := string(data)
		old, existed := s.known.Swap(key, value)
		if existed && old == value {
			return
		}
		s.emit(storage.Change{Key: key, NewValue: value, OldValue: old})

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		s.removed(key)
	}
}

func (s *Store) removed(key string) {
	old, existed := s.known.Pop(key)
	if !existed {
		return
	}
	s.emit(storage.Change{Key: key, OldValue: old, Removed: true})
}

func (s *Store) emit(c storage.Change) {
	s.mu.Lock()
	fns := make([]func(storage.Change), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
