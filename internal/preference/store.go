// Package preference defines the preference store contract and its
// implementations: an in-memory store with defaults, a TOML file-backed
// store and a chained store that layers several stores.
//
// Preference names are dot-separated paths. Values are booleans, int64,
// float64 or strings; other integer and float types are normalized on
// write, and strings are parsed on typed reads.
package preference

import "sync"

// Event describes a change to a preference.
type Event struct {
	// Source is the store the listener is registered on.
	Source Store

	// Property is the preference name.
	Property string

	// OldValue is the previous effective value, or nil.
	OldValue any

	// NewValue is the new effective value, or nil when the preference was
	// removed.
	NewValue any
}

// Listener receives preference change events. Listeners are compared by
// identity, so implementations should be pointers.
type Listener interface {
	PropertyChange(ev Event)
}

// funcListener adapts a function to Listener.
type funcListener struct {
	fn func(Event)
}

func (l *funcListener) PropertyChange(ev Event) {
	l.fn(ev)
}

// ListenerFunc returns a Listener calling fn. Every call returns a distinct
// listener; keep the result to remove it later.
func ListenerFunc(fn func(Event)) Listener {
	return &funcListener{fn: fn}
}

// Store is a key-value settings object with defaults, change notification
// and typed accessors. Typed getters return the zero value when the
// preference is missing or cannot be converted.
type Store interface {
	Contains(name string) bool

	Bool(name string) bool
	Int(name string) int
	Int64(name string) int64
	Float64(name string) float64
	String(name string) string

	DefaultBool(name string) bool
	DefaultInt(name string) int
	DefaultInt64(name string) int64
	DefaultFloat64(name string) float64
	DefaultString(name string) string

	// IsDefault reports whether name has a default and no explicit value.
	IsDefault(name string) bool

	// NeedsSaving reports whether values changed since the last save.
	NeedsSaving() bool

	// PutValue sets a value without firing an event.
	PutValue(name string, value any)
	SetDefault(name string, value any)
	SetToDefault(name string)
	SetValue(name string, value any)

	AddListener(l Listener)
	RemoveListener(l Listener)
	FirePropertyChange(name string, oldValue, newValue any)
}

// Valuer is implemented by stores that expose raw effective values.
type Valuer interface {
	Value(name string) (any, bool)
}

// ValueOf returns the effective value of name in s with its stored type
// when s implements Valuer, and its string form otherwise.
func ValueOf(s Store, name string) any {
	if v, ok := s.(Valuer); ok {
		value, _ := v.Value(name)
		return value
	}
	if !s.Contains(name) {
		return nil
	}
	return s.String(name)
}

// Keyed is implemented by stores that can enumerate their preferences.
type Keyed interface {
	Keys() []string
}

// listenerList is a copy-on-fire set of listeners.
type listenerList struct {
	mu    sync.RWMutex
	items []Listener
}

// add returns true when the list was empty before.
func (ll *listenerList) add(l Listener) (first bool) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	for _, existing := range ll.items {
		if existing == l {
			return false
		}
	}
	ll.items = append(ll.items, l)
	return len(ll.items) == 1
}

// remove returns true when the list became empty.
func (ll *listenerList) remove(l Listener) (last bool) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	for i, existing := range ll.items {
		if existing == l {
			ll.items = append(ll.items[:i:i], ll.items[i+1:]...)
			return len(ll.items) == 0
		}
	}
	return false
}

func (ll *listenerList) contains(l Listener) bool {
	ll.mu.RLock()
	defer ll.mu.RUnlock()

	for _, existing := range ll.items {
		if existing == l {
			return true
		}
	}
	return false
}

func (ll *listenerList) len() int {
	ll.mu.RLock()
	defer ll.mu.RUnlock()
	return len(ll.items)
}

func (ll *listenerList) fire(ev Event) {
	ll.mu.RLock()
	items := append([]Listener(nil), ll.items...)
	ll.mu.RUnlock()

	for _, l := range items {
		l.PropertyChange(ev)
	}
}
