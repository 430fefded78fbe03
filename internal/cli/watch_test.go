package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/prefchain/internal/genericeditor"
	"github.com/dshills/prefchain/internal/logging"
)

// lockedBuffer is a bytes.Buffer safe for concurrent writers.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newFileWatch(t *testing.T) (*fileWatch, string, *lockedBuffer) {
	t.Helper()

	config, doc := setup(t)
	p, err := genericeditor.New(
		genericeditor.WithConfigDir(config),
		genericeditor.WithContributionsDir(filepath.Join(config, ContributionsSubdir)),
		genericeditor.WithLogger(logging.Null()),
	)
	if err != nil {
		t.Fatalf("genericeditor.New() error = %v", err)
	}
	t.Cleanup(p.Close)

	out := &lockedBuffer{}
	w := &fileWatch{path: doc, plugin: p, out: out, logger: logging.Null()}
	return w, config, out
}

func TestFileWatch_PrintsChanges(t *testing.T) {
	w, config, out := newFileWatch(t)
	if err := w.open(); err != nil {
		t.Fatalf("open() error = %v", err)
	}
	defer w.close()

	writeFile(t, filepath.Join(config, ContributionsSubdir, "prefs", "conf.toml"), "tabWidth = 3\n")

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "tabWidth: 2 -> 3") {
		if time.Now().After(deadline) {
			t.Fatalf("change not printed:\n%s", out.String())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestFileWatch_ReopenWhileReloading(t *testing.T) {
	w, config, _ := newFileWatch(t)
	if err := w.open(); err != nil {
		t.Fatalf("open() error = %v", err)
	}

	prefs := filepath.Join(config, ContributionsSubdir, "prefs", "conf.toml")
	stop := make(chan struct{})
	var writers sync.WaitGroup
	writers.Add(1)
	go func() {
		defer writers.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = os.WriteFile(prefs, []byte(fmt.Sprintf("tabWidth = %d\n", 2+i%8)), 0o644)
			time.Sleep(5 * time.Millisecond)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			if err := w.open(); err != nil {
				t.Errorf("open() error = %v", err)
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		w.close()
	}()

	select {
	case <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("reopening the editor while its stores reload did not finish")
	}
	close(stop)
	writers.Wait()
}
