package layer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Errors returned by Manager.
var (
	// ErrLayerNotFound indicates the named layer does not exist.
	ErrLayerNotFound = errors.New("layer not found")

	// ErrReadOnly indicates a write to a read-only layer.
	ErrReadOnly = errors.New("layer is read-only")
)

// Manager holds layers sorted by priority and resolves paths across them.
type Manager struct {
	mu     sync.RWMutex
	layers []*Layer // sorted by priority, ascending
	flat   bool
}

// NewManager creates a manager whose layers hold nested maps addressed by
// dot-separated paths.
func NewManager(layers ...*Layer) *Manager {
	m := &Manager{layers: append([]*Layer(nil), layers...)}
	m.sortLayers()
	return m
}

// NewFlatManager creates a manager whose layers hold flat maps: a path is
// a plain key, so "a" and "a.b" are independent entries. Nested data given
// to Replace is flattened first.
func NewFlatManager(layers ...*Layer) *Manager {
	m := NewManager(layers...)
	m.flat = true
	for _, l := range m.layers {
		l.Data = FlattenMap(l.Data)
	}
	return m
}

// IsFlat reports whether paths are plain keys.
func (m *Manager) IsFlat() bool {
	return m.flat
}

func (m *Manager) get(data map[string]any, path string) (any, bool) {
	if m.flat {
		if path == "" {
			return nil, false
		}
		v, ok := data[path]
		return v, ok
	}
	return GetByPath(data, path)
}

func (m *Manager) set(data map[string]any, path string, value any) {
	if m.flat {
		if path != "" {
			data[path] = value
		}
		return
	}
	SetByPath(data, path, value)
}

func (m *Manager) delete(data map[string]any, path string) bool {
	if m.flat {
		if _, ok := data[path]; !ok {
			return false
		}
		delete(data, path)
		return true
	}
	return DeleteByPath(data, path)
}

// AddLayer adds a layer, keeping the priority order.
// A layer with the same name is replaced.
func (m *Manager) AddLayer(layer *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.Name == layer.Name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			break
		}
	}
	m.layers = append(m.layers, layer)
	m.sortLayers()
}

// RemoveLayer removes a layer by name.
// Returns true if the layer was found and removed.
func (m *Manager) RemoveLayer(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, l := range m.layers {
		if l.Name == name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			return true
		}
	}
	return false
}

// Layer returns a layer by name, or nil.
func (m *Manager) Layer(name string) *Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findLayer(name)
}

// Layers returns a copy of the layer list sorted by priority.
func (m *Manager) Layers() []*Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Layer, len(m.layers))
	copy(result, m.layers)
	return result
}

// Get returns the effective value for a path, searching from the highest
// priority layer down. It also returns the layer that supplied the value.
func (m *Manager) Get(path string) (any, *Layer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.layers) - 1; i >= 0; i-- {
		l := m.layers[i]
		if val, ok := m.get(l.Data, path); ok {
			return val, l, true
		}
	}
	return nil, nil, false
}

// Lookup returns the value stored for path in one layer.
func (m *Manager) Lookup(layerName, path string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l := m.findLayer(layerName)
	if l == nil {
		return nil, false
	}
	return m.get(l.Data, path)
}

// Set stores a value in the named layer.
func (m *Manager) Set(layerName, path string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writableLayer(layerName)
	if err != nil {
		return err
	}
	if l.Data == nil {
		l.Data = make(map[string]any)
	}
	m.set(l.Data, path, value)
	return nil
}

// Delete removes a value from the named layer.
// Returns true if a value was removed.
func (m *Manager) Delete(layerName, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writableLayer(layerName)
	if err != nil {
		return false, err
	}
	return m.delete(l.Data, path), nil
}

// Replace swaps the whole data of the named layer and returns the old data.
func (m *Manager) Replace(layerName string, data map[string]any) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, err := m.writableLayer(layerName)
	if err != nil {
		return nil, err
	}
	old := l.Data
	if m.flat {
		l.Data = FlattenMap(cloneMap(data))
	} else {
		l.Data = cloneMap(data)
	}
	if l.Data == nil {
		l.Data = make(map[string]any)
	}
	l.ModTime = time.Now()
	return old, nil
}

// Snapshot returns a deep copy of one layer's data.
func (m *Manager) Snapshot(layerName string) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l := m.findLayer(layerName)
	if l == nil {
		return nil
	}
	return cloneMap(l.Data)
}

// Merge combines all layers into a single map, highest priority winning.
func (m *Manager) Merge() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]any)
	for _, l := range m.layers {
		if m.flat {
			for k, v := range l.Data {
				result[k] = cloneValue(v)
			}
			continue
		}
		result = DeepMerge(result, l.Data)
	}
	return result
}

// Keys returns every leaf path present in any layer, sorted.
func (m *Manager) Keys() []string {
	merged := m.Merge()
	flat := merged
	if !m.flat {
		flat = FlattenMap(merged)
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WhichLayer returns the name of the layer that provides a value.
func (m *Manager) WhichLayer(path string) string {
	_, l, found := m.Get(path)
	if !found {
		return ""
	}
	return l.Name
}

func (m *Manager) sortLayers() {
	sort.SliceStable(m.layers, func(i, j int) bool {
		return m.layers[i].Priority < m.layers[j].Priority
	})
}

// findLayer must be called with the lock held.
func (m *Manager) findLayer(name string) *Layer {
	for _, l := range m.layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// writableLayer must be called with the write lock held.
func (m *Manager) writableLayer(name string) (*Layer, error) {
	l := m.findLayer(name)
	if l == nil {
		return nil, fmt.Errorf("%w: %s", ErrLayerNotFound, name)
	}
	if l.ReadOnly {
		return nil, fmt.Errorf("%w: %s", ErrReadOnly, name)
	}
	return l, nil
}
