// Package contenttype classifies documents into a tree of content types.
//
// Every type except the root has a base type; a type is "more specialized"
// than another when it sits deeper in the tree. Languages known to go-enry
// are registered on demand below one of four category types; extensions may
// contribute further types, for example a "go.test" type based on "go" for
// files named *_test.go.
package contenttype

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-enry/go-enry/v2"
)

// Built-in content type IDs.
const (
	Text        = "text"
	Programming = "text.programming"
	Markup      = "text.markup"
	Data        = "text.data"
	Prose       = "text.prose"
)

// Errors returned by Manager.
var (
	// ErrDuplicate is returned when registering an existing ID.
	ErrDuplicate = errors.New("content type already registered")

	// ErrUnknownBase is returned when a base type is not registered.
	ErrUnknownBase = errors.New("unknown base content type")

	// ErrInvalidID is returned for an empty ID.
	ErrInvalidID = errors.New("content type id is required")

	// ErrBuiltin is returned when removing a built-in type.
	ErrBuiltin = errors.New("built-in content types cannot be removed")

	// ErrHasChildren is returned when removing a type other types extend.
	ErrHasChildren = errors.New("content type has specializations")
)

// ContentType is one node of the content type tree.
type ContentType struct {
	ID             string
	Name           string
	Base           *ContentType
	FileExtensions []string
	FileNames      []string
	FilePatterns   []string

	builtin bool
}

// Depth returns the number of ancestors. The root has depth 0.
func (c *ContentType) Depth() int {
	depth := 0
	for b := c.Base; b != nil; b = b.Base {
		depth++
	}
	return depth
}

// IsKindOf reports whether c is other or a specialization of it.
func (c *ContentType) IsKindOf(other *ContentType) bool {
	for t := c; t != nil; t = t.Base {
		if t == other {
			return true
		}
	}
	return false
}

func (c *ContentType) String() string {
	return c.ID
}

// Definition describes a content type to register.
type Definition struct {
	ID             string
	Name           string
	BaseID         string
	FileExtensions []string
	FileNames      []string
	FilePatterns   []string
}

// Manager owns the content type tree.
type Manager struct {
	mu    sync.RWMutex
	types map[string]*ContentType
}

// NewManager creates a manager holding the built-in types.
func NewManager() *Manager {
	m := &Manager{types: make(map[string]*ContentType)}

	root := &ContentType{ID: Text, Name: "Text", FileExtensions: []string{"txt"}, builtin: true}
	m.types[Text] = root
	for _, c := range []struct{ id, name string }{
		{Programming, "Source Code"},
		{Markup, "Markup"},
		{Data, "Data"},
		{Prose, "Prose"},
	} {
		m.types[c.id] = &ContentType{ID: c.id, Name: c.name, Base: root, builtin: true}
	}
	return m
}

// Register adds a content type. An empty BaseID means the text root.
func (m *Manager) Register(def Definition) (*ContentType, error) {
	if def.ID == "" {
		return nil, ErrInvalidID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.types[def.ID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicate, def.ID)
	}

	baseID := def.BaseID
	if baseID == "" {
		baseID = Text
	}
	base, ok := m.types[baseID]
	if !ok {
		return nil, fmt.Errorf("%w: %s (for %s)", ErrUnknownBase, baseID, def.ID)
	}

	name := def.Name
	if name == "" {
		name = def.ID
	}

	ct := &ContentType{
		ID:             def.ID,
		Name:           name,
		Base:           base,
		FileExtensions: normalizeExtensions(def.FileExtensions),
		FileNames:      append([]string(nil), def.FileNames...),
		FilePatterns:   append([]string(nil), def.FilePatterns...),
	}
	m.types[def.ID] = ct
	return ct, nil
}

// Unregister removes a contributed content type.
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ct, ok := m.types[id]
	if !ok {
		return nil
	}
	if ct.builtin {
		return fmt.Errorf("%w: %s", ErrBuiltin, id)
	}
	for _, other := range m.types {
		if other.Base == ct {
			return fmt.Errorf("%w: %s", ErrHasChildren, id)
		}
	}
	delete(m.types, id)
	return nil
}

// ContentType returns a registered type, or nil.
func (m *Manager) ContentType(id string) *ContentType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.types[id]
}

// All returns every registered type sorted by ID.
func (m *Manager) All() []*ContentType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ContentType, 0, len(m.types))
	for _, ct := range m.types {
		result = append(result, ct)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// For returns the most specific content type for a document.
// content may be nil, in which case only the file name is used.
func (m *Manager) For(filename string, content []byte) *ContentType {
	if ct := m.contributedMatch(filename); ct != nil {
		return ct
	}

	if lang := detectLanguage(filename, content); lang != "" {
		return m.languageType(lang)
	}

	return m.ContentType(Text)
}

// SetFor returns the content type of a document followed by its ancestors.
func (m *Manager) SetFor(filename string, content []byte) []*ContentType {
	return Set(m.For(filename, content))
}

// Set returns ct followed by all its ancestors, most specific first.
func Set(ct *ContentType) []*ContentType {
	var result []*ContentType
	for t := ct; t != nil; t = t.Base {
		result = append(result, t)
	}
	return result
}

// IDs returns the IDs of the given types.
func IDs(types []*ContentType) []string {
	ids := make([]string, len(types))
	for i, ct := range types {
		ids[i] = ct.ID
	}
	return ids
}

// match strength of a file name against a type; higher is stronger.
const (
	noMatch = iota
	extensionMatch
	patternMatch
	nameMatch
)

func (m *Manager) contributedMatch(filename string) *ContentType {
	base := filepath.Base(filename)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best      *ContentType
		bestDepth = -1
		bestKind  = noMatch
	)
	for _, ct := range m.types {
		// Language types are left to content detection.
		if ct.builtin {
			continue
		}
		kind := matchKind(ct, base, ext)
		if kind == noMatch {
			continue
		}
		depth := ct.Depth()
		switch {
		case depth > bestDepth,
			depth == bestDepth && kind > bestKind,
			depth == bestDepth && kind == bestKind && ct.ID < best.ID:
			best, bestDepth, bestKind = ct, depth, kind
		}
	}
	return best
}

func matchKind(ct *ContentType, base, ext string) int {
	for _, name := range ct.FileNames {
		if name == base {
			return nameMatch
		}
	}
	for _, pattern := range ct.FilePatterns {
		if ok, _ := path.Match(pattern, base); ok {
			return patternMatch
		}
	}
	if ext != "" {
		for _, e := range ct.FileExtensions {
			if e == ext {
				return extensionMatch
			}
		}
	}
	return noMatch
}

// languageType returns the content type of an enry language, registering
// it below its category on first use.
func (m *Manager) languageType(lang string) *ContentType {
	id := LanguageID(lang)

	m.mu.RLock()
	ct, ok := m.types[id]
	m.mu.RUnlock()
	if ok {
		return ct
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ct, ok := m.types[id]; ok {
		return ct
	}
	ct = &ContentType{
		ID:             id,
		Name:           lang,
		Base:           m.types[categoryOf(lang)],
		FileExtensions: normalizeExtensions(enry.GetLanguageExtensions(lang)),
		builtin:        true,
	}
	m.types[id] = ct
	return ct
}

// LanguageID converts an enry language name into a content type ID,
// e.g. "Go" -> "go", "Protocol Buffer" -> "protocol-buffer".
func LanguageID(lang string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(lang)), " ", "-")
}

func categoryOf(lang string) string {
	switch enry.GetLanguageType(lang) {
	case enry.Programming:
		return Programming
	case enry.Markup:
		return Markup
	case enry.Data:
		return Data
	case enry.Prose:
		return Prose
	default:
		return Text
	}
}

func detectLanguage(filename string, content []byte) string {
	if lang, safe := enry.GetLanguageByExtension(filename); safe && lang != "" {
		return lang
	}
	return enry.GetLanguage(filepath.Base(filename), content)
}

func normalizeExtensions(exts []string) []string {
	result := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(e)), ".")
		if e != "" {
			result = append(result, e)
		}
	}
	return result
}
