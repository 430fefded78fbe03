package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/prefchain/internal/config/notify"
	"github.com/dshills/prefchain/internal/genericeditor"
	"github.com/dshills/prefchain/internal/logging"
	"github.com/dshills/prefchain/internal/preference"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <file>",
		Short: "Follow the preferences of a file as contributions and preference files change",
		Long: `Watch resolves the preferences of file like resolve, then follows the
contributions directory and the preference files. Every preference change is
printed as it happens.

An editor keeps the preference chain it computed when it was opened, so a
change to the provider contributions reopens the file and prints the new
resolution. Stop with Ctrl-C.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, logger, err := openPlugin(cmd)
	if err != nil {
		return err
	}
	defer p.Close()

	w := &fileWatch{
		path:   args[0],
		plugin: p,
		out:    cmd.OutOrStdout(),
		logger: logger.WithComponent("watch"),
	}
	if err := w.open(); err != nil {
		return err
	}
	defer w.close()

	sub := p.Extensions().AddChangeListener(genericeditor.PreferenceStoreProvidersPoint, func(notify.Change) {
		p.PreferenceStoreRegistry().Invalidate()
		if err := w.open(); err != nil {
			w.logger.Error("reopening %s: %v", w.path, err)
		}
	})
	defer sub.Unsubscribe()

	if err := p.Watch(ctx); err != nil {
		return err
	}
	w.logger.Info("watching %s (contributions: %s)", w.path, p.ContributionsDir())

	<-ctx.Done()
	return nil
}

// fileWatch holds the editor open on the watched file. mu guards the
// editor; outMu serializes output. Editors are closed with neither held,
// since closing waits for store watchers that may be delivering events.
type fileWatch struct {
	path   string
	plugin *genericeditor.Plugin
	out    io.Writer
	logger *logging.Logger

	mu       sync.Mutex
	editor   *genericeditor.TextEditor
	listener preference.Listener

	outMu sync.Mutex
}

// open (re)opens the editor and prints its resolution.
func (w *fileWatch) open() error {
	content, err := os.ReadFile(w.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", w.path, err)
	}

	editor := w.plugin.Open(w.path, content)
	listener := preference.ListenerFunc(w.changed)
	editor.PreferenceStore().AddListener(listener)
	res := resolve(w.plugin, editor, nil)

	w.mu.Lock()
	oldEditor, oldListener := w.editor, w.listener
	w.editor, w.listener = editor, listener
	w.mu.Unlock()

	closeEditor(oldEditor, oldListener)

	w.outMu.Lock()
	defer w.outMu.Unlock()
	return writeResolution(w.out, res)
}

func (w *fileWatch) changed(ev preference.Event) {
	w.outMu.Lock()
	defer w.outMu.Unlock()
	fmt.Fprintf(w.out, "%s: %v -> %v\n", ev.Property, ev.OldValue, ev.NewValue)
}

func (w *fileWatch) close() {
	w.mu.Lock()
	editor, listener := w.editor, w.listener
	w.editor, w.listener = nil, nil
	w.mu.Unlock()

	closeEditor(editor, listener)
}

func closeEditor(editor *genericeditor.TextEditor, listener preference.Listener) {
	if editor == nil {
		return
	}
	editor.PreferenceStore().RemoveListener(listener)
	editor.Close()
}
