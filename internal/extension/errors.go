package extension

import "errors"

// Extension registry errors.
var (
	// ErrUnknownPoint is returned when contributing to an undeclared point.
	ErrUnknownPoint = errors.New("extension point not declared")

	// ErrDuplicatePoint is returned when declaring a point twice.
	ErrDuplicatePoint = errors.New("extension point already declared")

	// ErrDuplicateExtension is returned when an extension ID is reused.
	ErrDuplicateExtension = errors.New("extension already registered")

	// ErrMissingPoint is returned for a manifest extension without a point.
	ErrMissingPoint = errors.New("manifest: extension point is required")

	// ErrMissingAttribute is returned when a required attribute is empty.
	ErrMissingAttribute = errors.New("missing attribute")

	// ErrUnknownFactory is returned when no factory is registered for a class.
	ErrUnknownFactory = errors.New("no factory registered")

	// ErrClosed is returned after the registry is closed.
	ErrClosed = errors.New("extension registry is closed")
)
