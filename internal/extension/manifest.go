package extension

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/prefchain/internal/config/loader"
	"github.com/dshills/prefchain/internal/config/watcher"
)

// Reserved manifest keys. Every other key of an extension table whose value
// is a table or an array of tables becomes a configuration element.
const (
	keyContributor = "contributor"
	keyExtension   = "extension"
	keyPoint       = "point"
	keyID          = "id"
)

// ParseManifest converts a decoded manifest into extensions.
//
//	contributor = "go-support"
//
//	[[extension]]
//	point = "genericeditor.preferenceStoreProviders"
//
//	  [[extension.provider]]
//	  class = "file"
//	  contentType = "go"
//	  path = "go.toml"
func ParseManifest(source string, data map[string]any) ([]*Extension, error) {
	contributor, _ := data[keyContributor].(string)
	if contributor == "" {
		base := filepath.Base(source)
		contributor = strings.TrimSuffix(base, filepath.Ext(base))
	}

	tables, err := tableList(data[keyExtension])
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", source, keyExtension, err)
	}

	exts := make([]*Extension, 0, len(tables))
	for i, table := range tables {
		point, _ := table[keyPoint].(string)
		if point == "" {
			return nil, fmt.Errorf("%s: extension %d: %w", source, i, ErrMissingPoint)
		}

		id, _ := table[keyID].(string)
		if id == "" {
			id = fmt.Sprintf("%s#%d", contributor, i)
		}

		ext := &Extension{
			ID:          id,
			Point:       point,
			Contributor: contributor,
			Source:      source,
		}

		for _, name := range sortedKeys(table) {
			if name == keyPoint || name == keyID {
				continue
			}
			elems, err := parseElements(name, table[name])
			if err != nil {
				return nil, fmt.Errorf("%s: extension %s: %w", source, id, err)
			}
			ext.Elements = append(ext.Elements, elems...)
		}
		exts = append(exts, ext)
	}
	return exts, nil
}

// parseElements returns nil for scalar values; those are extension-level
// properties, not elements.
func parseElements(name string, v any) ([]*Element, error) {
	if !isTable(v) {
		return nil, nil
	}
	tables, err := tableList(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	elems := make([]*Element, 0, len(tables))
	for _, table := range tables {
		attrs := make(map[string]string)
		var children []*Element
		for _, key := range sortedKeys(table) {
			val := table[key]
			if isTable(val) {
				kids, err := parseElements(key, val)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				children = append(children, kids...)
				continue
			}
			attrs[key] = attributeString(val)
		}
		elems = append(elems, NewElement(name, attrs, children...))
	}
	return elems, nil
}

func isTable(v any) bool {
	switch t := v.(type) {
	case map[string]any:
		return true
	case []any:
		if len(t) == 0 {
			return false
		}
		_, ok := t[0].(map[string]any)
		return ok
	}
	return false
}

func tableList(v any) ([]map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		result := make([]map[string]any, 0, len(t))
		for i, item := range t {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("entry %d is %T, want table", i, item)
			}
			result = append(result, m)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("got %T, want table or array of tables", v)
	}
}

// attributeString flattens a scalar or a list of scalars.
// Lists become comma-separated values.
func attributeString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = attributeString(item)
		}
		return strings.Join(parts, ",")
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload replaces the extensions contributed by one manifest file. A file
// that no longer exists only has its extensions removed. When the file fails
// to parse, its previous extensions stay registered.
//
// Listeners are notified once the registry reflects the whole file.
func (r *Registry) Reload(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	data, err := r.loader.Load(abs)
	if err != nil {
		return err
	}

	var exts []*Extension
	if data != nil {
		exts, err = ParseManifest(abs, data)
		if err != nil {
			return err
		}
	}

	batch := r.notifier.NewBatch()

	r.mu.RLock()
	stale := r.extensionsLocked(func(x *Extension) bool { return x.Source == abs })
	r.mu.RUnlock()

	for _, x := range stale {
		if change, ok := r.remove(x.ID); ok {
			batch.Add(change)
		}
	}

	var errs []error
	for _, x := range exts {
		change, err := r.add(x)
		if err != nil {
			r.logger.Warn("skipping extension %s from %s: %v", x.ID, abs, err)
			errs = append(errs, err)
			continue
		}
		batch.Add(change)
	}

	r.logger.Debug("loaded %s: %d extensions (%d replaced)", abs, len(exts)-len(errs), len(stale))
	batch.Commit()
	return errors.Join(errs...)
}

// LoadDir loads every manifest in dir. Files with an unsupported extension
// are ignored; a missing directory is not an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading contributions: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || loader.FormatFor(entry.Name()) == loader.FormatUnknown {
			continue
		}
		if err := r.Reload(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Watch reloads manifests in dir whenever they change, until ctx is done.
// It returns once watching has started.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	w, err := watcher.New(watcher.WithErrorHandler(func(err error) {
		r.logger.Warn("watching %s: %v", dir, err)
	}))
	if err != nil {
		return err
	}

	if err := w.Watch(dir); err != nil {
		_ = w.Close()
		return err
	}

	w.OnChange(func(ev watcher.Event) {
		if loader.FormatFor(ev.Path) == loader.FormatUnknown {
			return
		}
		r.logger.Debug("manifest %s: %s", ev.Op, ev.Path)
		if err := r.Reload(ev.Path); err != nil {
			r.logger.Error("reloading %s: %v", ev.Path, err)
		}
	})

	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return err
	}

	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()
	return nil
}
