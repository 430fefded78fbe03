package genericeditor

import "errors"

// Generic editor errors.
var (
	// ErrMissingContentType is returned for a provider without a contentType.
	ErrMissingContentType = errors.New("provider: contentType attribute is required")

	// ErrWrongType is returned when a factory creates an object of the
	// wrong type for its extension point.
	ErrWrongType = errors.New("extension has the wrong type")

	// ErrMissingPath is returned by the file provider without a path.
	ErrMissingPath = errors.New("file provider: path attribute is required")

	// ErrMissingScript is returned by the lua provider without a script.
	ErrMissingScript = errors.New("lua provider: script attribute is required")

	// ErrScriptResult is returned when a provider script does not produce
	// a table of preferences.
	ErrScriptResult = errors.New("lua provider: script must return a table")
)
