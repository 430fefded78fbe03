package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func collect(w *Watcher) <-chan Event {
	ch := make(chan Event, 32)
	w.OnChange(func(e Event) { ch <- e })
	return ch
}

func waitFor(t *testing.T, ch <-chan Event, path string) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Path == path {
				return e
			}
		case <-deadline:
			t.Fatalf("no event for %s", path)
			return Event{}
		}
	}
}

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpWrite, "write"},
		{OpCreate, "create"},
		{OpRemove, "remove"},
		{OpRename, "rename"},
		{Operation(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestWatcher_WatchAndUnwatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prefs.toml")
	if err := os.WriteFile(file, []byte("a = 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t)
	if err := w.Watch(file); err != nil {
		t.Fatalf("Watch(file) error = %v", err)
	}
	if err := w.Watch(filepath.Join(dir, "later.toml")); err != nil {
		t.Fatalf("Watch(missing file) error = %v", err)
	}
	if err := w.Watch(dir); err != nil {
		t.Fatalf("Watch(dir) error = %v", err)
	}
	if n := len(w.WatchedPaths()); n != 3 {
		t.Errorf("WatchedPaths() = %d entries, want 3", n)
	}

	if err := w.Unwatch(file); err != nil {
		t.Errorf("Unwatch(file) error = %v", err)
	}
	if n := len(w.WatchedPaths()); n != 2 {
		t.Errorf("WatchedPaths() after Unwatch = %d entries, want 2", n)
	}
}

func TestWatcher_ReportsWrite(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prefs.toml")
	if err := os.WriteFile(file, []byte("a = 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := newTestWatcher(t, WithDebounce(0))
	if err := w.Watch(file); err != nil {
		t.Fatal(err)
	}
	events := collect(w)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(file, []byte("a = 2"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, events, file)
}

func TestWatcher_IgnoresSiblingsOfWatchedFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "prefs.toml")
	sibling := filepath.Join(dir, "other.toml")

	w := newTestWatcher(t, WithDebounce(0))
	if err := w.Watch(file); err != nil {
		t.Fatal(err)
	}
	events := collect(w)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(sibling, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("a = 1"), 0o644); err != nil {
		t.Fatal(err)
	}

	e := waitFor(t, events, file)
	if e.Path != file {
		t.Errorf("unexpected event path %s", e.Path)
	}
	select {
	case e := <-events:
		if e.Path == sibling {
			t.Errorf("received event for unwatched sibling")
		}
	default:
	}
}

func TestWatcher_DirectoryDebounced(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "m.toml")

	w := newTestWatcher(t, WithDebounce(50*time.Millisecond))
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}
	events := collect(w)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := os.WriteFile(file, []byte{byte('a' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	e := waitFor(t, events, file)
	if e.Op != OpCreate {
		t.Errorf("coalesced op = %v, want create", e.Op)
	}
}

func TestWatcher_QueueCoalescing(t *testing.T) {
	w := newTestWatcher(t)
	now := time.Now()

	tests := []struct {
		first, second, want Operation
	}{
		{OpCreate, OpWrite, OpCreate},
		{OpWrite, OpWrite, OpWrite},
		{OpWrite, OpRemove, OpRemove},
		{OpCreate, OpRename, OpRename},
		{OpRemove, OpCreate, OpWrite},
	}

	for _, tt := range tests {
		w.queueEvent(Event{Path: "/p", Op: tt.first, Time: now})
		w.queueEvent(Event{Path: "/p", Op: tt.second, Time: now})
		if got := w.pendingFiles["/p"].Op; got != tt.want {
			t.Errorf("%v then %v = %v, want %v", tt.first, tt.second, got, tt.want)
		}
		delete(w.pendingFiles, "/p")
	}
}

func TestWatcher_CloseIdempotent(t *testing.T) {
	w, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !w.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := w.Watch(t.TempDir()); err != ErrClosed {
		t.Errorf("Watch after Close error = %v, want ErrClosed", err)
	}
}
