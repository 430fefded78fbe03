package preference

import (
	"sort"
	"sync"
)

// ChainedStore layers several stores. Reads resolve against the first
// member that contains the preference; writes go to the first member.
//
// The chained store only listens to its members while it has listeners of
// its own. A member event is forwarded unless an earlier member shadows the
// property.
type ChainedStore struct {
	stores    []Store
	listeners listenerList

	mu         sync.Mutex
	forwarders []*memberForwarder
}

// memberForwarder relays events from one member.
type memberForwarder struct {
	chain *ChainedStore
	index int
}

func (f *memberForwarder) PropertyChange(ev Event) {
	f.chain.memberChanged(f.index, ev)
}

// NewChainedStore creates a chain over stores, first store first.
func NewChainedStore(stores ...Store) *ChainedStore {
	return &ChainedStore{stores: append([]Store(nil), stores...)}
}

// Stores returns the members in precedence order.
func (c *ChainedStore) Stores() []Store {
	return append([]Store(nil), c.stores...)
}

// visibleStore returns the first member containing name, or nil.
func (c *ChainedStore) visibleStore(name string) Store {
	for _, s := range c.stores {
		if s.Contains(name) {
			return s
		}
	}
	return nil
}

func (c *ChainedStore) Contains(name string) bool {
	return c.visibleStore(name) != nil
}

func (c *ChainedStore) Bool(name string) bool {
	if s := c.visibleStore(name); s != nil {
		return s.Bool(name)
	}
	return false
}

func (c *ChainedStore) Int(name string) int {
	if s := c.visibleStore(name); s != nil {
		return s.Int(name)
	}
	return 0
}

func (c *ChainedStore) Int64(name string) int64 {
	if s := c.visibleStore(name); s != nil {
		return s.Int64(name)
	}
	return 0
}

func (c *ChainedStore) Float64(name string) float64 {
	if s := c.visibleStore(name); s != nil {
		return s.Float64(name)
	}
	return 0
}

func (c *ChainedStore) String(name string) string {
	if s := c.visibleStore(name); s != nil {
		return s.String(name)
	}
	return ""
}

func (c *ChainedStore) DefaultBool(name string) bool {
	if s := c.visibleStore(name); s != nil {
		return s.DefaultBool(name)
	}
	return false
}

func (c *ChainedStore) DefaultInt(name string) int {
	if s := c.visibleStore(name); s != nil {
		return s.DefaultInt(name)
	}
	return 0
}

func (c *ChainedStore) DefaultInt64(name string) int64 {
	if s := c.visibleStore(name); s != nil {
		return s.DefaultInt64(name)
	}
	return 0
}

func (c *ChainedStore) DefaultFloat64(name string) float64 {
	if s := c.visibleStore(name); s != nil {
		return s.DefaultFloat64(name)
	}
	return 0
}

func (c *ChainedStore) DefaultString(name string) string {
	if s := c.visibleStore(name); s != nil {
		return s.DefaultString(name)
	}
	return ""
}

func (c *ChainedStore) IsDefault(name string) bool {
	if s := c.visibleStore(name); s != nil {
		return s.IsDefault(name)
	}
	return false
}

// NeedsSaving reports whether any member needs saving.
func (c *ChainedStore) NeedsSaving() bool {
	for _, s := range c.stores {
		if s.NeedsSaving() {
			return true
		}
	}
	return false
}

func (c *ChainedStore) first() Store {
	if len(c.stores) == 0 {
		return nil
	}
	return c.stores[0]
}

func (c *ChainedStore) PutValue(name string, value any) {
	if s := c.first(); s != nil {
		s.PutValue(name, value)
	}
}

func (c *ChainedStore) SetDefault(name string, value any) {
	if s := c.first(); s != nil {
		s.SetDefault(name, value)
	}
}

func (c *ChainedStore) SetToDefault(name string) {
	if s := c.first(); s != nil {
		s.SetToDefault(name)
	}
}

func (c *ChainedStore) SetValue(name string, value any) {
	if s := c.first(); s != nil {
		s.SetValue(name, value)
	}
}

func (c *ChainedStore) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listeners.add(l) {
		c.registerForwarders()
	}
}

func (c *ChainedStore) RemoveListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listeners.remove(l) {
		c.unregisterForwarders()
	}
}

// HasListener reports whether l is registered.
func (c *ChainedStore) HasListener(l Listener) bool {
	return c.listeners.contains(l)
}

// IsListening reports whether the chain is registered on its members.
func (c *ChainedStore) IsListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forwarders != nil
}

// registerForwarders must be called with c.mu held.
func (c *ChainedStore) registerForwarders() {
	if c.forwarders != nil {
		return
	}
	c.forwarders = make([]*memberForwarder, len(c.stores))
	for i, s := range c.stores {
		f := &memberForwarder{chain: c, index: i}
		c.forwarders[i] = f
		s.AddListener(f)
	}
}

// unregisterForwarders must be called with c.mu held.
func (c *ChainedStore) unregisterForwarders() {
	for i, f := range c.forwarders {
		c.stores[i].RemoveListener(f)
	}
	c.forwarders = nil
}

func (c *ChainedStore) FirePropertyChange(name string, oldValue, newValue any) {
	c.listeners.fire(Event{Source: c, Property: name, OldValue: oldValue, NewValue: newValue})
}

func (c *ChainedStore) memberChanged(index int, ev Event) {
	for _, s := range c.stores[:index] {
		if s.Contains(ev.Property) {
			return
		}
	}

	newValue := ev.NewValue
	if newValue == nil {
		// Removed from this member; a later member may now be visible.
		for _, s := range c.stores[index+1:] {
			if s.Contains(ev.Property) {
				newValue = ValueOf(s, ev.Property)
				break
			}
		}
	}
	c.FirePropertyChange(ev.Property, ev.OldValue, newValue)
}

// Value returns the raw value of the first member containing name.
func (c *ChainedStore) Value(name string) (any, bool) {
	if s := c.visibleStore(name); s != nil {
		return ValueOf(s, name), true
	}
	return nil, false
}

// Keys returns the union of the keys of members implementing Keyed.
func (c *ChainedStore) Keys() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, s := range c.stores {
		k, ok := s.(Keyed)
		if !ok {
			continue
		}
		for _, name := range k.Keys() {
			if !seen[name] {
				seen[name] = true
				keys = append(keys, name)
			}
		}
	}
	sort.Strings(keys)
	return keys
}
