package extension

import (
	"path/filepath"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"
)

// Extension is one contribution to an extension point.
type Extension struct {
	// ID identifies the extension. Generated when left empty.
	ID string

	// Point is the extension point ID contributed to.
	Point string

	// Contributor names who contributed the extension, usually the
	// manifest's contributor field.
	Contributor string

	// Source is the manifest path the extension was loaded from. Empty for
	// programmatic contributions.
	Source string

	// Elements are the top-level configuration elements.
	Elements []*Element

	seq   uint64
	valid atomic.Bool
}

// IsValid reports whether the extension is still registered.
func (x *Extension) IsValid() bool {
	return x.valid.Load()
}

// Element is a configuration element of an extension. Elements are compared
// by identity: the same contribution loaded twice yields distinct elements.
type Element struct {
	UID      uuid.UUID
	Name     string
	attrs    map[string]string
	children []*Element
	ext      *Extension
}

// NewElement creates a configuration element.
func NewElement(name string, attrs map[string]string, children ...*Element) *Element {
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &Element{
		UID:      uuid.New(),
		Name:     name,
		attrs:    copied,
		children: children,
	}
}

// Attribute returns the named attribute, or "" when absent.
func (e *Element) Attribute(name string) string {
	return e.attrs[name]
}

// HasAttribute reports whether the attribute is present.
func (e *Element) HasAttribute(name string) bool {
	_, ok := e.attrs[name]
	return ok
}

// AttributeNames returns the attribute names, sorted.
func (e *Element) AttributeNames() []string {
	names := make([]string, 0, len(e.attrs))
	for k := range e.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Children returns child elements with the given name, or all children
// when name is empty.
func (e *Element) Children(name string) []*Element {
	var result []*Element
	for _, c := range e.children {
		if name == "" || c.Name == name {
			result = append(result, c)
		}
	}
	return result
}

// Extension returns the declaring extension.
func (e *Element) Extension() *Extension {
	return e.ext
}

// Contributor returns the contributor of the declaring extension.
func (e *Element) Contributor() string {
	if e.ext == nil {
		return ""
	}
	return e.ext.Contributor
}

// IsValid reports whether the declaring extension is still registered.
func (e *Element) IsValid() bool {
	return e.ext != nil && e.ext.IsValid()
}

// ResolvePath resolves a path attribute relative to the manifest directory.
// Absolute paths and programmatic contributions are returned unchanged.
func (e *Element) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) || e.ext == nil || e.ext.Source == "" {
		return p
	}
	return filepath.Join(filepath.Dir(e.ext.Source), p)
}

func (e *Element) bind(ext *Extension) {
	e.ext = ext
	for _, c := range e.children {
		c.bind(ext)
	}
}
