// Package extension implements the extension registry: named extension
// points, extensions contributing configuration elements to them, factories
// that turn elements into executable objects, and manifest files that
// declare extensions on disk.
package extension

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/prefchain/internal/config/loader"
	"github.com/dshills/prefchain/internal/config/notify"
	"github.com/dshills/prefchain/internal/logging"
)

// Point is a declared extension point.
type Point struct {
	ID          string
	Description string
}

// Factory creates the executable object for a configuration element.
type Factory func(elem *Element) (any, error)

// Registry holds extension points and their contributions.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	points     map[string]*Point
	extensions map[string]*Extension
	factories  map[string]Factory
	nextSeq    uint64
	closed     bool

	notifier *notify.Notifier
	loader   *loader.Loader
	logger   *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithLoader sets the manifest loader.
func WithLoader(l *loader.Loader) Option {
	return func(r *Registry) {
		r.loader = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		points:     make(map[string]*Point),
		extensions: make(map[string]*Extension),
		factories:  make(map[string]Factory),
		notifier:   notify.New(),
		loader:     loader.New(),
		logger:     logging.Null(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.WithComponent("extension")
	return r
}

// AddExtensionPoint declares an extension point.
func (r *Registry) AddExtensionPoint(id, description string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if _, exists := r.points[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePoint, id)
	}
	r.points[id] = &Point{ID: id, Description: description}
	return nil
}

// ExtensionPoint returns a declared point, or nil.
func (r *Registry) ExtensionPoint(id string) *Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.points[id]
}

// ExtensionPoints returns all declared points sorted by ID.
func (r *Registry) ExtensionPoints() []*Point {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Point, 0, len(r.points))
	for _, p := range r.points {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// AddExtension registers an extension and notifies listeners of its point.
func (r *Registry) AddExtension(ext *Extension) error {
	change, err := r.add(ext)
	if err != nil {
		return err
	}
	r.notifier.Notify(change)
	return nil
}

func (r *Registry) add(ext *Extension) (notify.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return notify.Change{}, ErrClosed
	}
	if ext.Point == "" {
		return notify.Change{}, ErrMissingPoint
	}
	if _, ok := r.points[ext.Point]; !ok {
		return notify.Change{}, fmt.Errorf("%w: %s", ErrUnknownPoint, ext.Point)
	}
	if ext.ID == "" {
		ext.ID = uuid.NewString()
	}
	if _, exists := r.extensions[ext.ID]; exists {
		return notify.Change{}, fmt.Errorf("%w: %s", ErrDuplicateExtension, ext.ID)
	}

	r.nextSeq++
	ext.seq = r.nextSeq
	for _, e := range ext.Elements {
		e.bind(ext)
	}
	ext.valid.Store(true)
	r.extensions[ext.ID] = ext

	return notify.Change{
		Topic:   ext.Point,
		Type:    notify.ChangeAdded,
		Subject: ext.ID,
		Source:  ext.Source,
	}, nil
}

// RemoveExtension unregisters an extension by ID.
// It returns false if no such extension exists.
func (r *Registry) RemoveExtension(id string) bool {
	change, ok := r.remove(id)
	if ok {
		r.notifier.Notify(change)
	}
	return ok
}

func (r *Registry) remove(id string) (notify.Change, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext, ok := r.extensions[id]
	if !ok {
		return notify.Change{}, false
	}
	delete(r.extensions, id)
	ext.valid.Store(false)

	return notify.Change{
		Topic:   ext.Point,
		Type:    notify.ChangeRemoved,
		Subject: ext.ID,
		Source:  ext.Source,
	}, true
}

// Extension returns a registered extension, or nil.
func (r *Registry) Extension(id string) *Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extensions[id]
}

// Extensions returns the extensions of a point in contribution order.
func (r *Registry) Extensions(point string) []*Extension {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.extensionsLocked(func(x *Extension) bool { return x.Point == point })
}

func (r *Registry) extensionsLocked(keep func(*Extension) bool) []*Extension {
	var result []*Extension
	for _, x := range r.extensions {
		if keep(x) {
			result = append(result, x)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].seq < result[j].seq })
	return result
}

// ConfigurationElementsFor returns the top-level elements contributed to
// a point, in contribution order.
func (r *Registry) ConfigurationElementsFor(point string) []*Element {
	var result []*Element
	for _, x := range r.Extensions(point) {
		result = append(result, x.Elements...)
	}
	return result
}

// AddChangeListener subscribes to additions and removals on a point.
// Listeners also receive reload notifications. Call Unsubscribe on the
// returned subscription to stop listening.
func (r *Registry) AddChangeListener(point string, fn func(notify.Change)) *notify.Subscription {
	return r.notifier.SubscribeTopic(point, fn)
}

// RegisterFactory registers the factory used for elements whose class
// attribute equals name. A later registration replaces an earlier one.
func (r *Registry) RegisterFactory(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Factories returns the registered factory names, sorted.
func (r *Registry) Factories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateExecutableExtension instantiates the object named by an element's
// attribute through the registered factory.
func (r *Registry) CreateExecutableExtension(elem *Element, attr string) (any, error) {
	name := elem.Attribute(attr)
	if name == "" {
		return nil, fmt.Errorf("%w: %s on <%s>", ErrMissingAttribute, attr, elem.Name)
	}

	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFactory, name)
	}

	obj, err := f(elem)
	if err != nil {
		return nil, fmt.Errorf("creating %q for %s: %w", name, elem.Contributor(), err)
	}
	return obj, nil
}

// Close drops all subscriptions. Further contributions are rejected.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	r.notifier.Close()
}
