package preference

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/prefchain/internal/config/loader"
	"github.com/dshills/prefchain/internal/config/watcher"
	"github.com/dshills/prefchain/internal/logging"
)

// FileStore is a MemoryStore whose explicit values persist to a TOML file.
// Defaults are never written.
type FileStore struct {
	*MemoryStore

	path   string
	loader *loader.Loader
	logger *logging.Logger

	wmu     sync.Mutex
	watcher *watcher.Watcher
	cancel  context.CancelFunc
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFileLogger sets the logger used for reload failures.
func WithFileLogger(l *logging.Logger) FileStoreOption {
	return func(s *FileStore) {
		s.logger = l
	}
}

// WithFileLoader sets the loader used to read the file.
func WithFileLoader(l *loader.Loader) FileStoreOption {
	return func(s *FileStore) {
		s.loader = l
	}
}

// NewFileStore creates a store backed by path. Call Load to read it.
func NewFileStore(path string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		MemoryStore: NewMemoryStore(),
		path:        path,
		loader:      loader.New(),
		logger:      logging.Null(),
	}
	s.MemoryStore.owner = s
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load replaces the explicit values with the file contents and fires an
// event for every preference whose effective value changed. A missing file
// clears the values.
func (s *FileStore) Load() error {
	data, err := s.loader.Load(s.path)
	if err != nil {
		return fmt.Errorf("loading preferences: %w", err)
	}

	events := s.replaceValues(data)
	s.MarkSaved()
	for _, ev := range events {
		s.listeners.fire(ev)
	}
	return nil
}

// Save writes the explicit values to the file.
func (s *FileStore) Save() error {
	if err := loader.WriteTOML(s.path, s.Values()); err != nil {
		return fmt.Errorf("saving preferences: %w", err)
	}
	s.MarkSaved()
	return nil
}

// Watch reloads the store whenever its file changes, until ctx is done or
// StopWatching is called. Calling Watch while watching is a no-op.
func (s *FileStore) Watch(ctx context.Context) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	if s.watcher != nil {
		return nil
	}

	w, err := watcher.New(
		watcher.WithDebounce(50*time.Millisecond),
		watcher.WithErrorHandler(func(err error) {
			s.logger.Warn("watching %s: %v", s.path, err)
		}),
	)
	if err != nil {
		return err
	}
	if err := w.Watch(s.path); err != nil {
		_ = w.Close()
		return err
	}
	w.OnChange(func(watcher.Event) {
		if err := s.Load(); err != nil {
			s.logger.Error("reloading %s: %v", s.path, err)
		}
	})

	ctx, cancel := context.WithCancel(ctx)
	if err := w.Start(ctx); err != nil {
		cancel()
		_ = w.Close()
		return err
	}

	s.watcher = w
	s.cancel = cancel
	go func() {
		<-ctx.Done()
		s.wmu.Lock()
		if s.watcher == w {
			s.watcher, s.cancel = nil, nil
		}
		s.wmu.Unlock()
		_ = w.Close()
	}()
	return nil
}

// StopWatching stops a watch started with Watch.
func (s *FileStore) StopWatching() {
	s.wmu.Lock()
	w, cancel := s.watcher, s.cancel
	s.watcher, s.cancel = nil, nil
	s.wmu.Unlock()

	if cancel != nil {
		cancel()
	}
	if w != nil {
		_ = w.Close()
	}
}

// IsWatching reports whether the file is being watched.
func (s *FileStore) IsWatching() bool {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.watcher != nil
}
