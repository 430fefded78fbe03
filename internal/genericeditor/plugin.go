// Package genericeditor selects editor preferences per content type.
//
// Extensions contribute preference store providers to
// PreferenceStoreProvidersPoint, each targeting one content type. A
// TextEditor's StoreWrapper chains the stores of the providers matching the
// editor's content types in front of the generic editor and text editor
// default stores, most specialized content type first.
package genericeditor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/prefchain/internal/contenttype"
	"github.com/dshills/prefchain/internal/extension"
	"github.com/dshills/prefchain/internal/logging"
	"github.com/dshills/prefchain/internal/preference"
	"github.com/dshills/prefchain/internal/script"
)

// Preference files in the config directory.
const (
	GenericEditorPreferencesFile = "genericeditor.toml"
	TextEditorPreferencesFile    = "texteditor.toml"
)

// Plugin wires content types, the extension registry, the provider
// registry and the default preference stores together.
type Plugin struct {
	configDir     string
	contribDir    string
	scriptTimeout time.Duration
	logger        *logging.Logger

	contentTypes  *contenttype.Manager
	contributions *contenttype.Contributions
	extensions    *extension.Registry
	engine        *script.Engine
	schema        *preference.Schema

	registryMu sync.Mutex
	registry   *ProviderRegistry

	genericStore *preference.FileStore
	textStore    *preference.FileStore
}

// Option configures a Plugin.
type Option func(*Plugin)

// WithConfigDir sets the directory holding the default preference files.
func WithConfigDir(dir string) Option {
	return func(p *Plugin) {
		p.configDir = dir
	}
}

// WithContributionsDir sets the directory manifests are loaded from.
func WithContributionsDir(dir string) Option {
	return func(p *Plugin) {
		p.contribDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(p *Plugin) {
		p.logger = l
	}
}

// WithScriptTimeout bounds enabledWhen and provider script runs.
func WithScriptTimeout(d time.Duration) Option {
	return func(p *Plugin) {
		p.scriptTimeout = d
	}
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/prefchain or its platform
// equivalent.
func DefaultConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".prefchain")
	}
	return filepath.Join(dir, "prefchain")
}

// New creates the plugin: it declares the extension points, loads the
// contributions directory and the default preference files.
// Broken manifests are logged, not fatal.
func New(opts ...Option) (*Plugin, error) {
	p := &Plugin{
		configDir:     DefaultConfigDir(),
		scriptTimeout: script.DefaultTimeout,
		logger:        logging.Null(),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.schema = NewSchema()
	p.contentTypes = contenttype.NewManager()
	p.extensions = extension.NewRegistry(extension.WithLogger(p.logger))
	p.engine = script.New(script.WithTimeout(p.scriptTimeout))

	if err := p.extensions.AddExtensionPoint(PreferenceStoreProvidersPoint, "Preference store providers per content type"); err != nil {
		return nil, err
	}
	if err := p.extensions.AddExtensionPoint(contenttype.ExtensionPoint, "Content type definitions"); err != nil {
		return nil, err
	}

	storeLogger := p.logger.WithComponent("preference")
	p.extensions.RegisterFactory(FileProviderClass, FileProviderFactory(storeLogger))
	p.extensions.RegisterFactory(LuaProviderClass, LuaProviderFactory(p.engine, storeLogger))

	if p.contribDir != "" {
		if err := p.extensions.LoadDir(p.contribDir); err != nil {
			p.logger.Warn("loading contributions: %v", err)
		}
	}
	p.contributions = contenttype.Bind(p.contentTypes, p.extensions, p.logger)

	p.genericStore = p.defaultStore(GenericEditorPreferencesFile, GenericEditorDefaults())
	p.textStore = p.defaultStore(TextEditorPreferencesFile, TextEditorDefaults())

	var errs []error
	for _, s := range []*preference.FileStore{p.genericStore, p.textStore} {
		if err := s.Load(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Path(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.Close()
		return nil, err
	}

	for _, s := range []*preference.FileStore{p.genericStore, p.textStore} {
		for _, err := range p.schema.Check(s, s.Keys()) {
			p.logger.Warn("%s: %v", s.Path(), err)
		}
	}
	return p, nil
}

func (p *Plugin) defaultStore(name string, defaults map[string]any) *preference.FileStore {
	s := preference.NewFileStore(
		filepath.Join(p.configDir, name),
		preference.WithFileLogger(p.logger.WithComponent("preference")),
	)
	for k, v := range defaults {
		s.SetDefault(k, v)
	}
	return s
}

// PreferenceStoreRegistry returns the provider registry, creating it on
// first use.
func (p *Plugin) PreferenceStoreRegistry() *ProviderRegistry {
	p.registryMu.Lock()
	defer p.registryMu.Unlock()

	if p.registry == nil {
		p.registry = NewProviderRegistry(p.extensions, p.engine, p.logger)
	}
	return p.registry
}

// GenericEditorPreferences returns the generic editor defaults store.
func (p *Plugin) GenericEditorPreferences() *preference.FileStore {
	return p.genericStore
}

// TextEditorPreferences returns the text editor defaults store.
func (p *Plugin) TextEditorPreferences() *preference.FileStore {
	return p.textStore
}

// DefaultStores returns the stores ending every editor's chain.
func (p *Plugin) DefaultStores() []preference.Store {
	return []preference.Store{p.genericStore, p.textStore}
}

// Schema returns the definitions of the built-in preferences.
func (p *Plugin) Schema() *preference.Schema {
	return p.schema
}

// ContentTypes returns the content type manager.
func (p *Plugin) ContentTypes() *contenttype.Manager {
	return p.contentTypes
}

// Extensions returns the extension registry.
func (p *Plugin) Extensions() *extension.Registry {
	return p.extensions
}

// Scripts returns the Lua engine.
func (p *Plugin) Scripts() *script.Engine {
	return p.engine
}

// ConfigDir returns the config directory.
func (p *Plugin) ConfigDir() string {
	return p.configDir
}

// ContributionsDir returns the contributions directory, or "".
func (p *Plugin) ContributionsDir() string {
	return p.contribDir
}

// NewEditor creates an editor without input.
func (p *Plugin) NewEditor() *TextEditor {
	e := &TextEditor{
		types:  p.contentTypes,
		viewer: NewSourceViewer(),
	}
	e.store = NewStoreWrapper(e, p.PreferenceStoreRegistry(), p.DefaultStores()...)
	return e
}

// Open creates an editor for path with the given content and shows it.
func (p *Plugin) Open(path string, content []byte) *TextEditor {
	e := p.NewEditor()
	e.SetInput(path, content)
	e.Show()
	return e
}

// Watch follows the contributions directory and the default preference
// files until ctx is done.
func (p *Plugin) Watch(ctx context.Context) error {
	if p.contribDir != "" {
		if err := p.extensions.Watch(ctx, p.contribDir); err != nil {
			return fmt.Errorf("watching contributions: %w", err)
		}
	}
	for _, s := range []*preference.FileStore{p.genericStore, p.textStore} {
		if err := os.MkdirAll(filepath.Dir(s.Path()), 0o755); err != nil {
			return err
		}
		if err := s.Watch(ctx); err != nil {
			return fmt.Errorf("watching %s: %w", s.Path(), err)
		}
	}
	return nil
}

// Save writes the default preference files that changed.
func (p *Plugin) Save() error {
	var errs []error
	for _, s := range []*preference.FileStore{p.genericStore, p.textStore} {
		if s.NeedsSaving() {
			errs = append(errs, s.Save())
		}
	}
	return errors.Join(errs...)
}

// Close releases watchers, subscriptions and the Lua state.
func (p *Plugin) Close() {
	p.registryMu.Lock()
	if p.registry != nil {
		p.registry.Close()
	}
	p.registryMu.Unlock()

	if p.contributions != nil {
		p.contributions.Close()
	}
	p.genericStore.StopWatching()
	p.textStore.StopWatching()
	p.extensions.Close()
	_ = p.engine.Close()
}
