package preference

import (
	"sort"
	"sync"

	"github.com/dshills/prefchain/internal/config/layer"
)

const (
	defaultsLayer = "defaults"
	valuesLayer   = "values"
)

// MemoryStore keeps defaults and explicit values in two config layers.
// It is safe for concurrent use; listeners are called without locks held.
type MemoryStore struct {
	mu        sync.Mutex
	layers    *layer.Manager
	dirty     bool
	listeners listenerList

	// owner is reported as the event source; stores embedding a
	// MemoryStore set it to themselves.
	owner Store
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		layers: layer.NewFlatManager(
			layer.NewLayer(defaultsLayer, layer.ScopeDefault),
			layer.NewLayer(valuesLayer, layer.ScopeInstance),
		),
	}
}

// NewMemoryStoreWithDefaults creates a store seeded with defaults.
func NewMemoryStoreWithDefaults(defaults map[string]any) *MemoryStore {
	s := NewMemoryStore()
	for name, v := range layer.FlattenMap(defaults) {
		s.SetDefault(name, v)
	}
	return s
}

func (s *MemoryStore) value(name string) (any, bool) {
	v, _, ok := s.layers.Get(name)
	return v, ok
}

func (s *MemoryStore) defaultValue(name string) (any, bool) {
	return s.layers.Lookup(defaultsLayer, name)
}

// Value returns the effective value of a preference.
func (s *MemoryStore) Value(name string) (any, bool) {
	return s.value(name)
}

// Contains reports whether name has a value or a default.
func (s *MemoryStore) Contains(name string) bool {
	_, ok := s.value(name)
	return ok
}

func (s *MemoryStore) Bool(name string) bool {
	v, _ := s.value(name)
	b, _ := AsBool(name, v)
	return b
}

func (s *MemoryStore) Int(name string) int {
	return int(s.Int64(name))
}

func (s *MemoryStore) Int64(name string) int64 {
	v, _ := s.value(name)
	n, _ := AsInt64(name, v)
	return n
}

func (s *MemoryStore) Float64(name string) float64 {
	v, _ := s.value(name)
	f, _ := AsFloat64(name, v)
	return f
}

func (s *MemoryStore) String(name string) string {
	v, _ := s.value(name)
	return AsString(v)
}

func (s *MemoryStore) DefaultBool(name string) bool {
	v, _ := s.defaultValue(name)
	b, _ := AsBool(name, v)
	return b
}

func (s *MemoryStore) DefaultInt(name string) int {
	return int(s.DefaultInt64(name))
}

func (s *MemoryStore) DefaultInt64(name string) int64 {
	v, _ := s.defaultValue(name)
	n, _ := AsInt64(name, v)
	return n
}

func (s *MemoryStore) DefaultFloat64(name string) float64 {
	v, _ := s.defaultValue(name)
	f, _ := AsFloat64(name, v)
	return f
}

func (s *MemoryStore) DefaultString(name string) string {
	v, _ := s.defaultValue(name)
	return AsString(v)
}

// IsDefault reports whether name has a default and no explicit value.
func (s *MemoryStore) IsDefault(name string) bool {
	if _, ok := s.layers.Lookup(valuesLayer, name); ok {
		return false
	}
	_, ok := s.defaultValue(name)
	return ok
}

// NeedsSaving reports whether explicit values changed since the last
// MarkSaved.
func (s *MemoryStore) NeedsSaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// MarkSaved clears the dirty flag.
func (s *MemoryStore) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// PutValue stores an explicit value without firing an event.
func (s *MemoryStore) PutValue(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, _ := s.layers.Lookup(valuesLayer, name)
	value = normalize(value)
	if layer.ValuesEqual(old, value) {
		return
	}
	_ = s.layers.Set(valuesLayer, name, value)
	s.dirty = true
}

// SetDefault sets the default value. No event is fired.
func (s *MemoryStore) SetDefault(name string, value any) {
	_ = s.layers.Set(defaultsLayer, name, normalize(value))
}

// SetToDefault removes the explicit value of name.
func (s *MemoryStore) SetToDefault(name string) {
	s.mu.Lock()
	old, hadValue := s.layers.Lookup(valuesLayer, name)
	if !hadValue {
		s.mu.Unlock()
		return
	}
	_, _ = s.layers.Delete(valuesLayer, name)
	s.dirty = true
	def, _ := s.defaultValue(name)
	s.mu.Unlock()

	s.FirePropertyChange(name, old, def)
}

// SetValue sets an explicit value and fires an event when the effective
// value changes. A value equal to the default removes the explicit value.
func (s *MemoryStore) SetValue(name string, value any) {
	value = normalize(value)

	s.mu.Lock()
	old, _ := s.value(name)
	if layer.ValuesEqual(old, value) {
		s.mu.Unlock()
		return
	}
	if def, ok := s.defaultValue(name); ok && layer.ValuesEqual(def, value) {
		_, _ = s.layers.Delete(valuesLayer, name)
	} else {
		_ = s.layers.Set(valuesLayer, name, value)
	}
	s.dirty = true
	s.mu.Unlock()

	s.FirePropertyChange(name, old, value)
}

func (s *MemoryStore) AddListener(l Listener) {
	s.listeners.add(l)
}

func (s *MemoryStore) RemoveListener(l Listener) {
	s.listeners.remove(l)
}

// HasListener reports whether l is registered.
func (s *MemoryStore) HasListener(l Listener) bool {
	return s.listeners.contains(l)
}

// FirePropertyChange notifies listeners unless the values are equal.
func (s *MemoryStore) FirePropertyChange(name string, oldValue, newValue any) {
	if oldValue != nil && layer.ValuesEqual(oldValue, newValue) {
		return
	}
	s.listeners.fire(Event{Source: s.source(), Property: name, OldValue: oldValue, NewValue: newValue})
}

// Keys returns every preference with a value or a default, sorted.
func (s *MemoryStore) Keys() []string {
	return s.layers.Keys()
}

// Values returns a copy of the explicit values.
func (s *MemoryStore) Values() map[string]any {
	return s.layers.Snapshot(valuesLayer)
}

// replaceValues swaps all explicit values and returns the events for
// every effective value that changed. The caller fires them.
func (s *MemoryStore) replaceValues(data map[string]any) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := layer.FlattenMap(s.layers.Merge())
	_, _ = s.layers.Replace(valuesLayer, normalizeMap(data))
	after := layer.FlattenMap(s.layers.Merge())

	added, modified, removed := layer.DiffMaps(before, after)
	changed := append(append(added, modified...), removed...)
	sort.Strings(changed)

	events := make([]Event, 0, len(changed))
	for _, name := range changed {
		events = append(events, Event{Source: s.source(), Property: name, OldValue: before[name], NewValue: after[name]})
	}
	return events
}

func (s *MemoryStore) source() Store {
	if s.owner != nil {
		return s.owner
	}
	return s
}

func normalizeMap(data map[string]any) map[string]any {
	result := make(map[string]any, len(data))
	for k, v := range data {
		if m, ok := v.(map[string]any); ok {
			result[k] = normalizeMap(m)
			continue
		}
		result[k] = normalize(v)
	}
	return result
}
