package genericeditor

import (
	"bytes"
	"path/filepath"
	"sync"

	"github.com/dshills/prefchain/internal/contenttype"
	"github.com/dshills/prefchain/internal/preference"
)

// Viewer is the text viewer an editor shows its document in.
type Viewer interface {
	LineCount() int
}

// Editor is the editor a preference store is computed for.
type Editor interface {
	Resource() Resource
	ContentTypes() []*contenttype.ContentType
	Viewer() Viewer
}

// StoreProvider supplies a preference store for a resource.
// A nil store means the provider has nothing for that resource.
type StoreProvider interface {
	PreferenceStore(res Resource) preference.Store
}

// EditorAware is implemented by stores that need the editor they serve.
type EditorAware interface {
	SetEditor(ed Editor)
}

// ViewerLifecycle is implemented by stores that attach to the viewer
// while the editor is shown.
type ViewerLifecycle interface {
	Install(v Viewer)
	Uninstall()
}

// Resource identifies the file an editor is editing.
type Resource struct {
	Path string
}

// Name returns the base name of the resource.
func (r Resource) Name() string {
	if r.Path == "" {
		return ""
	}
	return filepath.Base(r.Path)
}

// Ext returns the extension, including the dot.
func (r Resource) Ext() string {
	return filepath.Ext(r.Path)
}

// SourceViewer holds the document shown by a TextEditor.
type SourceViewer struct {
	mu       sync.RWMutex
	document []byte
	lines    int
}

// NewSourceViewer creates an empty viewer.
func NewSourceViewer() *SourceViewer {
	return &SourceViewer{}
}

// SetDocument replaces the shown document.
func (v *SourceViewer) SetDocument(content []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.document = append([]byte(nil), content...)
	v.lines = countLines(content)
}

// Document returns a copy of the shown document.
func (v *SourceViewer) Document() []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]byte(nil), v.document...)
}

// LineCount returns the number of lines in the document.
func (v *SourceViewer) LineCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lines
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// TextEditor edits one resource with per content type preferences.
type TextEditor struct {
	mu           sync.RWMutex
	types        *contenttype.Manager
	resource     Resource
	contentTypes []*contenttype.ContentType
	viewer       *SourceViewer
	store        *StoreWrapper
	shown        bool
}

// SetInput sets the edited resource and its content, detecting its
// content types.
func (e *TextEditor) SetInput(path string, content []byte) {
	types := e.types.SetFor(path, content)

	e.mu.Lock()
	e.resource = Resource{Path: path}
	e.contentTypes = types
	e.mu.Unlock()

	e.viewer.SetDocument(content)
}

// Resource returns the edited resource.
func (e *TextEditor) Resource() Resource {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resource
}

// ContentTypes returns the content type of the input followed by its
// ancestors. It is empty until SetInput is called.
func (e *TextEditor) ContentTypes() []*contenttype.ContentType {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*contenttype.ContentType(nil), e.contentTypes...)
}

// Viewer returns the source viewer.
func (e *TextEditor) Viewer() Viewer {
	return e.viewer
}

// SourceViewer returns the concrete source viewer.
func (e *TextEditor) SourceViewer() *SourceViewer {
	return e.viewer
}

// PreferenceStore returns the editor's preference store.
func (e *TextEditor) PreferenceStore() *StoreWrapper {
	return e.store
}

// Show attaches the preference store to the viewer.
func (e *TextEditor) Show() {
	e.mu.Lock()
	if e.shown {
		e.mu.Unlock()
		return
	}
	e.shown = true
	e.mu.Unlock()

	e.store.Install(e.viewer)
}

// Close detaches the preference store from the viewer.
func (e *TextEditor) Close() {
	e.mu.Lock()
	if !e.shown {
		e.mu.Unlock()
		return
	}
	e.shown = false
	e.mu.Unlock()

	e.store.Uninstall()
}
