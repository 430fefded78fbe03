package genericeditor

import (
	"sync"

	"github.com/dshills/prefchain/internal/contenttype"
	"github.com/dshills/prefchain/internal/preference"
)

// StoreWrapper is the preference store of one editor. It starts out
// delegating to a chain of the default stores. On the first access after
// the editor knows its content types it asks the provider registry for
// custom stores; when there are any, a chain of the custom stores followed
// by the defaults replaces the initial delegate for good and registered
// listeners move over to it.
type StoreWrapper struct {
	mu        sync.Mutex
	editor    Editor
	registry  *ProviderRegistry
	defaults  []preference.Store
	delegate  preference.Store
	computed  bool
	listeners []preference.Listener

	viewer    Viewer
	custom    []preference.Store
	installed bool
}

// NewStoreWrapper creates the store of editor. defaults end every chain.
func NewStoreWrapper(editor Editor, registry *ProviderRegistry, defaults ...preference.Store) *StoreWrapper {
	return &StoreWrapper{
		editor:   editor,
		registry: registry,
		defaults: append([]preference.Store(nil), defaults...),
		delegate: NewCompositeStore(nil, defaults...),
	}
}

// NewCompositeStore chains custom stores in front of the defaults.
func NewCompositeStore(custom []preference.Store, defaults ...preference.Store) *preference.ChainedStore {
	stores := make([]preference.Store, 0, len(custom)+len(defaults))
	stores = append(stores, custom...)
	stores = append(stores, defaults...)
	return preference.NewChainedStore(stores...)
}

// CollectCustomStores asks the providers matching contentTypes for their
// stores for the editor's resource. Stores implementing EditorAware are
// given the editor.
func CollectCustomStores(registry *ProviderRegistry, editor Editor, contentTypes []*contenttype.ContentType) []preference.Store {
	if registry == nil || editor == nil || len(contentTypes) == 0 {
		return nil
	}

	res := editor.Resource()
	var stores []preference.Store
	for _, p := range registry.Providers(editor.Viewer(), editor, contentTypes) {
		store := p.PreferenceStore(res)
		if store == nil {
			continue
		}
		if aware, ok := store.(EditorAware); ok {
			aware.SetEditor(editor)
		}
		stores = append(stores, store)
	}
	return stores
}

// Delegate returns the store operations are forwarded to, computing it
// when needed.
func (w *StoreWrapper) Delegate() preference.Store {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.computeLocked()
	return w.delegate
}

// IsComputed reports whether the delegate is final.
func (w *StoreWrapper) IsComputed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.computed
}

// CustomStores returns the stores contributed by providers, computing the
// delegate when needed.
func (w *StoreWrapper) CustomStores() []preference.Store {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.computeLocked()
	return append([]preference.Store(nil), w.custom...)
}

// computeLocked must be called with w.mu held. Without content types
// nothing is decided yet; with content types the decision is final even
// when no provider applies.
func (w *StoreWrapper) computeLocked() {
	if w.computed {
		return
	}

	contentTypes := w.editor.ContentTypes()
	if len(contentTypes) == 0 {
		return
	}

	custom := CollectCustomStores(w.registry, w.editor, contentTypes)
	w.computed = true
	if len(custom) == 0 {
		return
	}

	w.custom = custom
	if w.viewer != nil {
		w.installLocked()
	}

	store := NewCompositeStore(custom, w.defaults...)
	for _, l := range w.listeners {
		store.AddListener(l)
	}
	for _, l := range w.listeners {
		w.delegate.RemoveListener(l)
	}
	w.delegate = store
}

// Install attaches custom stores implementing ViewerLifecycle to v.
func (w *StoreWrapper) Install(v Viewer) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.viewer = v
	w.installLocked()
}

// Uninstall detaches custom stores from the viewer.
func (w *StoreWrapper) Uninstall() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.installed {
		for _, s := range w.custom {
			if lc, ok := s.(ViewerLifecycle); ok {
				lc.Uninstall()
			}
		}
		w.installed = false
	}
	w.viewer = nil
}

func (w *StoreWrapper) installLocked() {
	if w.installed || w.viewer == nil || len(w.custom) == 0 {
		return
	}
	for _, s := range w.custom {
		if lc, ok := s.(ViewerLifecycle); ok {
			lc.Install(w.viewer)
		}
	}
	w.installed = true
}

// AddListener registers l on the current delegate and remembers it for
// migration.
func (w *StoreWrapper) AddListener(l preference.Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.computeLocked()
	for _, existing := range w.listeners {
		if existing == l {
			return
		}
	}
	w.listeners = append(w.listeners, l)
	w.delegate.AddListener(l)
}

// RemoveListener unregisters l.
func (w *StoreWrapper) RemoveListener(l preference.Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i, existing := range w.listeners {
		if existing == l {
			w.listeners = append(w.listeners[:i:i], w.listeners[i+1:]...)
			break
		}
	}
	w.computeLocked()
	w.delegate.RemoveListener(l)
}

func (w *StoreWrapper) Contains(name string) bool {
	return w.Delegate().Contains(name)
}

func (w *StoreWrapper) Bool(name string) bool {
	return w.Delegate().Bool(name)
}

func (w *StoreWrapper) Int(name string) int {
	return w.Delegate().Int(name)
}

func (w *StoreWrapper) Int64(name string) int64 {
	return w.Delegate().Int64(name)
}

func (w *StoreWrapper) Float64(name string) float64 {
	return w.Delegate().Float64(name)
}

func (w *StoreWrapper) String(name string) string {
	return w.Delegate().String(name)
}

func (w *StoreWrapper) DefaultBool(name string) bool {
	return w.Delegate().DefaultBool(name)
}

func (w *StoreWrapper) DefaultInt(name string) int {
	return w.Delegate().DefaultInt(name)
}

func (w *StoreWrapper) DefaultInt64(name string) int64 {
	return w.Delegate().DefaultInt64(name)
}

func (w *StoreWrapper) DefaultFloat64(name string) float64 {
	return w.Delegate().DefaultFloat64(name)
}

func (w *StoreWrapper) DefaultString(name string) string {
	return w.Delegate().DefaultString(name)
}

func (w *StoreWrapper) IsDefault(name string) bool {
	return w.Delegate().IsDefault(name)
}

func (w *StoreWrapper) NeedsSaving() bool {
	return w.Delegate().NeedsSaving()
}

func (w *StoreWrapper) PutValue(name string, value any) {
	w.Delegate().PutValue(name, value)
}

func (w *StoreWrapper) SetDefault(name string, value any) {
	w.Delegate().SetDefault(name, value)
}

func (w *StoreWrapper) SetToDefault(name string) {
	w.Delegate().SetToDefault(name)
}

func (w *StoreWrapper) SetValue(name string, value any) {
	w.Delegate().SetValue(name, value)
}

func (w *StoreWrapper) FirePropertyChange(name string, oldValue, newValue any) {
	w.Delegate().FirePropertyChange(name, oldValue, newValue)
}

// Keys returns the preference names known to the delegate.
func (w *StoreWrapper) Keys() []string {
	if k, ok := w.Delegate().(preference.Keyed); ok {
		return k.Keys()
	}
	return nil
}

// Value returns the raw effective value of name.
func (w *StoreWrapper) Value(name string) (any, bool) {
	d := w.Delegate()
	if !d.Contains(name) {
		return nil, false
	}
	return preference.ValueOf(d, name), true
}

var (
	_ preference.Store  = (*StoreWrapper)(nil)
	_ preference.Valuer = (*StoreWrapper)(nil)
	_ ViewerLifecycle   = (*StoreWrapper)(nil)
)
