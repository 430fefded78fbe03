package contenttype

import (
	"sort"
	"strings"
	"sync"

	"github.com/dshills/prefchain/internal/config/notify"
	"github.com/dshills/prefchain/internal/extension"
	"github.com/dshills/prefchain/internal/logging"
)

// ExtensionPoint is the extension point content types are contributed to.
const ExtensionPoint = "contentTypes"

const elementName = "content-type"

// Contributions keeps the contributed content types of a Manager in step
// with an extension registry.
type Contributions struct {
	mu         sync.Mutex
	manager    *Manager
	registry   *extension.Registry
	logger     *logging.Logger
	registered map[*extension.Element]string
	sub        *notify.Subscription
}

// Bind registers the content types currently contributed to reg and
// follows later changes until Close is called.
func Bind(m *Manager, reg *extension.Registry, logger *logging.Logger) *Contributions {
	if logger == nil {
		logger = logging.Null()
	}
	c := &Contributions{
		manager:    m,
		registry:   reg,
		logger:     logger.WithComponent("contenttype"),
		registered: make(map[*extension.Element]string),
	}
	c.Sync()
	c.sub = reg.AddChangeListener(ExtensionPoint, func(notify.Change) {
		c.Sync()
	})
	return c
}

// DefinitionFor converts a content-type element into a Definition.
func DefinitionFor(elem *extension.Element) Definition {
	return Definition{
		ID:             elem.Attribute("id"),
		Name:           elem.Attribute("name"),
		BaseID:         elem.Attribute("base-type"),
		FileExtensions: splitList(elem.Attribute("file-extensions")),
		FileNames:      splitList(elem.Attribute("file-names")),
		FilePatterns:   splitList(elem.Attribute("file-patterns")),
	}
}

// Sync applies the difference between the registry and the types
// registered so far.
func (c *Contributions) Sync() {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := make(map[*extension.Element]bool)
	var pending []*extension.Element
	for _, elem := range c.registry.ConfigurationElementsFor(ExtensionPoint) {
		if elem.Name != elementName {
			continue
		}
		current[elem] = true
		if _, ok := c.registered[elem]; !ok {
			pending = append(pending, elem)
		}
	}

	c.removeStale(current)

	// Bases may be contributed after their specializations.
	for len(pending) > 0 {
		var retry []*extension.Element
		for _, elem := range pending {
			def := DefinitionFor(elem)
			if _, err := c.manager.Register(def); err != nil {
				retry = append(retry, elem)
				continue
			}
			c.registered[elem] = def.ID
		}
		if len(retry) == len(pending) {
			for _, elem := range retry {
				_, err := c.manager.Register(DefinitionFor(elem))
				c.logger.Warn("ignoring content type from %s: %v", elem.Contributor(), err)
			}
			return
		}
		pending = retry
	}
}

func (c *Contributions) removeStale(current map[*extension.Element]bool) {
	var stale []string
	for elem, id := range c.registered {
		if !current[elem] {
			stale = append(stale, id)
			delete(c.registered, elem)
		}
	}

	// Specializations go before their bases.
	sort.Slice(stale, func(i, j int) bool {
		return c.depth(stale[i]) > c.depth(stale[j])
	})
	for _, id := range stale {
		if err := c.manager.Unregister(id); err != nil {
			c.logger.Warn("removing content type %s: %v", id, err)
		}
	}
}

func (c *Contributions) depth(id string) int {
	if ct := c.manager.ContentType(id); ct != nil {
		return ct.Depth()
	}
	return 0
}

// Close stops following registry changes.
func (c *Contributions) Close() {
	c.sub.Unsubscribe()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
