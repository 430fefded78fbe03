// Package loader decodes preference and manifest files into nested maps.
//
// TOML is the native format. YAML and JSON are accepted for extension
// manifests; the format is picked from the file extension.
package loader

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnknownFormat is returned for files whose extension has no decoder.
var ErrUnknownFormat = errors.New("unknown file format")

// Format identifies a file encoding.
type Format int

const (
	// FormatUnknown is returned for unsupported extensions.
	FormatUnknown Format = iota
	// FormatTOML is TOML (.toml).
	FormatTOML
	// FormatYAML is YAML (.yaml, .yml).
	FormatYAML
	// FormatJSON is JSON (.json).
	FormatJSON
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatTOML:
		return "toml"
	case FormatYAML:
		return "yaml"
	case FormatJSON:
		return "json"
	default:
		return "unknown"
	}
}

// FormatFor returns the format implied by a file name.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// FileSystem is an abstraction for file system operations.
// Tests pass an in-memory implementation.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Loader reads files of any supported format.
type Loader struct {
	fs FileSystem
}

// New creates a loader over the OS file system.
func New() *Loader {
	return &Loader{fs: OSFS{}}
}

// NewWithFS creates a loader over a custom file system.
func NewWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// Load reads and decodes path.
// A missing file returns nil, nil.
func (l *Loader) Load(path string) (map[string]any, error) {
	format := FormatFor(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	data, err := l.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return Decode(format, path, data)
}

// LoadFromReader decodes a stream in the given format.
func (l *Loader) LoadFromReader(format Format, r io.Reader) (map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return Decode(format, "<reader>", data)
}

// Decode parses data in the given format. source is used in errors.
func Decode(format Format, source string, data []byte) (map[string]any, error) {
	var (
		out map[string]any
		err error
	)

	switch format {
	case FormatTOML:
		out, err = decodeTOML(data)
	case FormatYAML:
		out, err = decodeYAML(data)
	case FormatJSON:
		out, err = decodeJSON(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, source)
	}

	if err != nil {
		pe := &ParseError{Path: source, Format: format, Message: err.Error(), Err: err}
		var le *lineError
		if errors.As(err, &le) {
			pe.Line = le.line
		}
		return nil, pe
	}
	if out == nil {
		out = make(map[string]any)
	}
	return out, nil
}

// ParseError represents an error while decoding a file.
type ParseError struct {
	Path    string
	Format  Format
	Line    int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s parse error in %s at line %d: %s", e.Format, e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s parse error in %s: %s", e.Format, e.Path, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
