// Package layer stores preference values in priority-ordered layers.
//
// A layer is a nested map addressed with dot-separated paths. Lookups walk
// layers from the highest priority down; the first layer holding a path
// wins. Preference stores keep their defaults and their explicit values in
// two layers of one Manager.
package layer

import (
	"time"
)

// Layer represents a single set of preference values.
type Layer struct {
	// Name identifies the layer (e.g., "defaults", "values").
	Name string

	// Scope tells what kind of values the layer holds.
	Scope Scope

	// Priority determines lookup order (higher shadows lower).
	Priority int

	// Path is the backing file, if any.
	Path string

	// Data holds the values as a nested map.
	Data map[string]any

	// ModTime is when the layer was last replaced.
	ModTime time.Time

	// ReadOnly prevents modifications to this layer.
	ReadOnly bool
}

// NewLayer creates an empty layer using the default priority of its scope.
func NewLayer(name string, scope Scope) *Layer {
	return NewLayerWithData(name, scope, make(map[string]any))
}

// NewLayerWithData creates a layer with initial data.
func NewLayerWithData(name string, scope Scope, data map[string]any) *Layer {
	if data == nil {
		data = make(map[string]any)
	}
	return &Layer{
		Name:     name,
		Scope:    scope,
		Priority: scope.Priority(),
		Data:     data,
		ModTime:  time.Now(),
	}
}

// Clone creates a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	return &Layer{
		Name:     l.Name,
		Scope:    l.Scope,
		Priority: l.Priority,
		Path:     l.Path,
		Data:     cloneMap(l.Data),
		ModTime:  l.ModTime,
		ReadOnly: l.ReadOnly,
	}
}

// Scope indicates what a layer's values mean.
type Scope uint8

const (
	// ScopeDefault holds default values. They are never persisted.
	ScopeDefault Scope = iota
	// ScopeInstance holds values explicitly set by the user.
	ScopeInstance
	// ScopeSession holds in-memory overrides that shadow everything else.
	ScopeSession
)

// Priorities of the standard scopes.
const (
	PriorityDefault  = 0
	PriorityInstance = 100
	PrioritySession  = 1000
)

// Priority returns the standard priority of the scope.
func (s Scope) Priority() int {
	switch s {
	case ScopeInstance:
		return PriorityInstance
	case ScopeSession:
		return PrioritySession
	default:
		return PriorityDefault
	}
}

// String returns a human-readable name for the scope.
func (s Scope) String() string {
	switch s {
	case ScopeDefault:
		return "default"
	case ScopeInstance:
		return "instance"
	case ScopeSession:
		return "session"
	default:
		return "unknown"
	}
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for key, val := range src {
		dst[key] = cloneValue(val)
	}
	return dst
}

func cloneSlice(src []any) []any {
	if src == nil {
		return nil
	}

	dst := make([]any, len(src))
	for i, val := range src {
		dst[i] = cloneValue(val)
	}
	return dst
}

func cloneValue(val any) any {
	switch v := val.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		return cloneSlice(v)
	default:
		return val
	}
}
