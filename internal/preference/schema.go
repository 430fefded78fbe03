package preference

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrDuplicateDefinition is returned when a preference is defined twice.
var ErrDuplicateDefinition = errors.New("preference already defined")

// Type is the value type of a defined preference.
type Type uint8

const (
	// TypeString is a string preference.
	TypeString Type = iota
	// TypeInt is an integer preference.
	TypeInt
	// TypeFloat is a floating-point preference.
	TypeFloat
	// TypeBool is a boolean preference.
	TypeBool
	// TypeColor is a color preference in "#rrggbb" or "r,g,b" form.
	TypeColor
)

// String returns the string representation of the type.
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "number"
	case TypeBool:
		return "boolean"
	case TypeColor:
		return "color"
	default:
		return "unknown"
	}
}

// Definition describes a known preference.
type Definition struct {
	// Name is the preference name.
	Name string

	// Type is the value type.
	Type Type

	// Default is the default value.
	Default any

	// Description is human-readable documentation.
	Description string

	// Enum lists the allowed values of a string preference.
	Enum []string

	// Minimum for numeric types (nil means no minimum).
	Minimum *float64

	// Maximum for numeric types (nil means no maximum).
	Maximum *float64
}

// ValidationError reports a value that does not satisfy its definition.
type ValidationError struct {
	Name   string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("preference %s: invalid value %v: %s", e.Name, e.Value, e.Reason)
}

// Validate checks value against the definition. Strings are parsed the
// way typed getters parse them.
func (d *Definition) Validate(value any) error {
	invalid := func(reason string) error {
		return &ValidationError{Name: d.Name, Value: value, Reason: reason}
	}

	switch d.Type {
	case TypeBool:
		if _, err := AsBool(d.Name, value); err != nil {
			return invalid("expected boolean")
		}
	case TypeInt, TypeFloat:
		var f float64
		if d.Type == TypeInt {
			n, err := AsInt64(d.Name, value)
			if err != nil {
				return invalid("expected integer")
			}
			f = float64(n)
		} else {
			var err error
			if f, err = AsFloat64(d.Name, value); err != nil {
				return invalid("expected number")
			}
		}
		if d.Minimum != nil && f < *d.Minimum {
			return invalid(fmt.Sprintf("less than minimum %v", *d.Minimum))
		}
		if d.Maximum != nil && f > *d.Maximum {
			return invalid(fmt.Sprintf("greater than maximum %v", *d.Maximum))
		}
	case TypeColor:
		if _, err := ParseColor(AsString(value)); err != nil {
			return invalid("expected color")
		}
	case TypeString:
		if len(d.Enum) > 0 {
			s := AsString(value)
			for _, e := range d.Enum {
				if s == e {
					return nil
				}
			}
			return invalid("must be one of " + strings.Join(d.Enum, ", "))
		}
	}
	return nil
}

// MinValue creates a pointer to a float64 for use as Minimum.
func MinValue(v float64) *float64 {
	return &v
}

// MaxValue creates a pointer to a float64 for use as Maximum.
func MaxValue(v float64) *float64 {
	return &v
}

// Schema holds preference definitions.
type Schema struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewSchema creates a schema holding defs. It panics on duplicates.
func NewSchema(defs ...Definition) *Schema {
	s := &Schema{defs: make(map[string]*Definition)}
	for _, d := range defs {
		s.MustRegister(d)
	}
	return s
}

// Register adds a definition.
func (s *Schema) Register(def Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDefinition, def.Name)
	}
	d := def
	s.defs[def.Name] = &d
	return nil
}

// MustRegister registers a definition and panics on error.
// Useful for built-in preferences.
func (s *Schema) MustRegister(def Definition) {
	if err := s.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition of name, or nil.
func (s *Schema) Lookup(name string) *Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defs[name]
}

// All returns every definition sorted by name.
func (s *Schema) All() []*Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Definition, 0, len(s.defs))
	for _, d := range s.defs {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Defaults returns the default values of every definition.
func (s *Schema) Defaults() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]any, len(s.defs))
	for name, d := range s.defs {
		if d.Default != nil {
			result[name] = d.Default
		}
	}
	return result
}

// Validate checks value against the definition of name. Unknown
// preferences are valid; contributed stores may carry their own.
func (s *Schema) Validate(name string, value any) error {
	d := s.Lookup(name)
	if d == nil {
		return nil
	}
	return d.Validate(value)
}

// Check validates the effective values of names in store and returns one
// error per invalid value.
func (s *Schema) Check(store Store, names []string) []error {
	var errs []error
	for _, name := range names {
		if !store.Contains(name) {
			continue
		}
		if err := s.Validate(name, store.String(name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
