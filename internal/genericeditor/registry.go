package genericeditor

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/prefchain/internal/config/notify"
	"github.com/dshills/prefchain/internal/contenttype"
	"github.com/dshills/prefchain/internal/extension"
	"github.com/dshills/prefchain/internal/logging"
	"github.com/dshills/prefchain/internal/script"
)

// PreferenceStoreProvidersPoint is the extension point preference store
// providers are contributed to.
const PreferenceStoreProvidersPoint = "genericeditor.preferenceStoreProviders"

// ProviderDescriptor is a cached preference store provider contribution.
type ProviderDescriptor = ContentTypeRelatedExtension[StoreProvider]

// ProviderRegistry caches the preference store provider contributions.
//
// Any change to the extension point marks the cache out of sync; the next
// lookup patches it against the extension registry. Descriptors of elements
// that are still contributed are kept.
type ProviderRegistry struct {
	mu          sync.Mutex
	extensions  *extension.Registry
	engine      *script.Engine
	logger      *logging.Logger
	descriptors map[*extension.Element]*ProviderDescriptor
	nextOrder   int
	outOfSync   atomic.Bool
	sub         *notify.Subscription
}

// NewProviderRegistry creates a registry bound to the providers extension
// point of ext. It starts out of sync.
func NewProviderRegistry(ext *extension.Registry, engine *script.Engine, logger *logging.Logger) *ProviderRegistry {
	if logger == nil {
		logger = logging.Null()
	}
	r := &ProviderRegistry{
		extensions:  ext,
		engine:      engine,
		logger:      logger.WithComponent("genericeditor.registry"),
		descriptors: make(map[*extension.Element]*ProviderDescriptor),
	}
	r.outOfSync.Store(true)
	r.sub = ext.AddChangeListener(PreferenceStoreProvidersPoint, func(notify.Change) {
		r.Invalidate()
	})
	return r
}

// Providers returns new provider instances for the contributions that
// target one of contentTypes and match viewer and editor, more specialized
// content types first. Contributions whose provider cannot be created are
// logged and left out.
func (r *ProviderRegistry) Providers(viewer Viewer, editor Editor, contentTypes []*contenttype.ContentType) []StoreProvider {
	matching := r.Matching(viewer, editor, contentTypes)

	providers := make([]StoreProvider, 0, len(matching))
	for _, d := range matching {
		p, err := d.CreateDelegate()
		if err != nil {
			r.logger.Error("creating preference store provider from %s: %v", d.Element.Contributor(), err)
			continue
		}
		if p == nil {
			continue
		}
		providers = append(providers, p)
	}
	return providers
}

// Matching returns the descriptors Providers would instantiate, in the
// same order.
func (r *ProviderRegistry) Matching(viewer Viewer, editor Editor, contentTypes []*contenttype.ContentType) []*ProviderDescriptor {
	var matching []targeted[StoreProvider]
	for _, d := range r.Descriptors() {
		target, ok := d.Target(contentTypes)
		if !ok || !d.Matches(viewer, editor) {
			continue
		}
		matching = append(matching, targeted[StoreProvider]{ext: d, target: target})
	}

	sortBySpecialization(matching)

	result := make([]*ProviderDescriptor, len(matching))
	for i, m := range matching {
		result[i] = m.ext
	}
	return result
}

// Descriptors returns the cached descriptors in contribution order,
// syncing first when out of sync.
func (r *ProviderRegistry) Descriptors() []*ProviderDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.outOfSync.Load() {
		r.sync()
	}

	result := make([]*ProviderDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].order < result[j].order })
	return result
}

// sync must be called with r.mu held.
func (r *ProviderRegistry) sync() {
	// Clear first so a change arriving during the sync triggers another.
	r.outOfSync.Store(false)

	stale := make(map[*extension.Element]bool, len(r.descriptors))
	for elem := range r.descriptors {
		stale[elem] = true
	}

	for _, elem := range r.extensions.ConfigurationElementsFor(PreferenceStoreProvidersPoint) {
		delete(stale, elem)
		if _, ok := r.descriptors[elem]; ok {
			continue
		}
		d, err := NewContentTypeRelatedExtension[StoreProvider](elem, r.extensions, r.engine, r.logger)
		if err != nil {
			r.logger.Error("ignoring preference store provider from %s: %v", elem.Contributor(), err)
			continue
		}
		d.order = r.nextOrder
		r.nextOrder++
		r.descriptors[elem] = d
	}

	for elem := range stale {
		delete(r.descriptors, elem)
	}
	r.logger.Debug("synced %d preference store providers (%d removed)", len(r.descriptors), len(stale))
}

// Invalidate marks the cache out of sync. Registry change events call it;
// observers of the same events that look providers up should call it first
// since observers run in no particular order.
func (r *ProviderRegistry) Invalidate() {
	r.outOfSync.Store(true)
}

// IsOutOfSync reports whether the next lookup will resync.
func (r *ProviderRegistry) IsOutOfSync() bool {
	return r.outOfSync.Load()
}

// Close stops listening to extension registry changes.
func (r *ProviderRegistry) Close() {
	r.sub.Unsubscribe()
}
