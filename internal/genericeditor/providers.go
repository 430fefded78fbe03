package genericeditor

import (
	"context"
	"fmt"

	"github.com/dshills/prefchain/internal/extension"
	"github.com/dshills/prefchain/internal/logging"
	"github.com/dshills/prefchain/internal/preference"
	"github.com/dshills/prefchain/internal/script"
)

// Built-in provider factory names, used as the class attribute.
const (
	FileProviderClass = "file"
	LuaProviderClass  = "lua"
)

// Provider element attributes and children.
const (
	PathAttribute   = "path"
	ScriptAttribute = "script"
	DefaultElement  = "default"
)

// FileProvider serves a TOML preference file. Child default elements
// (name, value) seed the store defaults.
type FileProvider struct {
	path     string
	defaults map[string]string
	logger   *logging.Logger
}

// FileProviderFactory returns the factory for the file provider class.
func FileProviderFactory(logger *logging.Logger) extension.Factory {
	return func(elem *extension.Element) (any, error) {
		path := elem.Attribute(PathAttribute)
		if path == "" {
			return nil, ErrMissingPath
		}
		p := &FileProvider{
			path:     elem.ResolvePath(path),
			defaults: make(map[string]string),
			logger:   logger,
		}
		for _, d := range elem.Children(DefaultElement) {
			if name := d.Attribute("name"); name != "" {
				p.defaults[name] = d.Attribute("value")
			}
		}
		return p, nil
	}
}

// Path returns the preference file.
func (p *FileProvider) Path() string {
	return p.path
}

// PreferenceStore loads the preference file. A file that fails to load
// leaves the store with its defaults only.
func (p *FileProvider) PreferenceStore(Resource) preference.Store {
	s := &ViewerFileStore{
		FileStore: preference.NewFileStore(p.path, preference.WithFileLogger(p.logger)),
		logger:    p.logger,
	}
	for name, value := range p.defaults {
		s.SetDefault(name, value)
	}
	if err := s.Load(); err != nil {
		p.logger.Warn("%v", err)
	}
	return s
}

// ViewerFileStore is a file store that follows its file while installed
// on a viewer.
type ViewerFileStore struct {
	*preference.FileStore
	logger *logging.Logger
}

// Install starts watching the file.
func (s *ViewerFileStore) Install(Viewer) {
	if err := s.Watch(context.Background()); err != nil {
		s.logger.Warn("watching %s: %v", s.Path(), err)
	}
}

// Uninstall stops watching the file.
func (s *ViewerFileStore) Uninstall() {
	s.StopWatching()
}

// LuaProvider computes preferences with a Lua script. The script returns a
// table of preference defaults, or a function that receives the resource
// table (path, name, ext) and returns one.
type LuaProvider struct {
	script *script.Script
	engine *script.Engine
	logger *logging.Logger
}

// LuaProviderFactory returns the factory for the lua provider class.
func LuaProviderFactory(engine *script.Engine, logger *logging.Logger) extension.Factory {
	return func(elem *extension.Element) (any, error) {
		path := elem.Attribute(ScriptAttribute)
		if path == "" {
			return nil, ErrMissingScript
		}
		s, err := script.CompileFile(elem.ResolvePath(path))
		if err != nil {
			return nil, err
		}
		return &LuaProvider{script: s, engine: engine, logger: logger}, nil
	}
}

// PreferenceStore runs the script for res. Script failures are logged and
// yield no store.
func (p *LuaProvider) PreferenceStore(res Resource) preference.Store {
	prefs, err := p.Evaluate(context.Background(), res)
	if err != nil {
		p.logger.Error("%v", err)
		return nil
	}
	return preference.NewMemoryStoreWithDefaults(prefs)
}

// Evaluate runs the script and returns the preference table.
func (p *LuaProvider) Evaluate(ctx context.Context, res Resource) (map[string]any, error) {
	resource := map[string]any{
		"path": res.Path,
		"name": res.Name(),
		"ext":  res.Ext(),
	}
	out, err := p.engine.Run(ctx, p.script, map[string]any{"resource": resource}, resource)
	if err != nil {
		return nil, err
	}
	prefs, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %T", ErrScriptResult, p.script.Path(), out)
	}
	return prefs, nil
}

var (
	_ StoreProvider   = (*FileProvider)(nil)
	_ StoreProvider   = (*LuaProvider)(nil)
	_ ViewerLifecycle = (*ViewerFileStore)(nil)
)
