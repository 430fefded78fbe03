// Package notify fans out registry change notifications to observers.
//
// Observers subscribe either to every change or to a dot-separated topic
// such as an extension point ID. A topic subscription also receives
// changes published on child topics ("genericeditor" observes
// "genericeditor.preferenceStoreProviders"), and every observer receives
// reload events.
package notify

import (
	"sync"
)

// ChangeType represents the type of registry change.
type ChangeType int

const (
	// ChangeAdded indicates a contribution was added.
	ChangeAdded ChangeType = iota

	// ChangeRemoved indicates a contribution was removed.
	ChangeRemoved

	// ChangeReload indicates every contribution may have changed.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change describes one registry change.
type Change struct {
	// Topic is the dot-separated topic that changed, usually an extension
	// point ID. Empty for reload events.
	Topic string

	// Type is the type of change.
	Type ChangeType

	// Subject identifies what changed (e.g., an extension ID).
	Subject string

	// Source identifies where the change came from (e.g., a manifest path).
	Source string
}

// Observer is called when a change is delivered.
type Observer func(change Change)

// Subscription represents an active observer subscription.
type Subscription struct {
	id       uint64
	topic    string
	notifier *Notifier
}

// Topic returns the subscribed topic; empty for global subscriptions.
func (s *Subscription) Topic() string {
	return s.topic
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier manages change subscriptions.
type Notifier struct {
	mu sync.RWMutex

	globalObservers map[uint64]Observer
	topicObservers  map[string]map[uint64]Observer

	nextID uint64

	async  bool
	buffer chan Change
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithAsync enables asynchronous delivery through a buffer of the given size.
func WithAsync(bufferSize int) Option {
	return func(n *Notifier) {
		if bufferSize > 0 {
			n.async = true
			n.buffer = make(chan Change, bufferSize)
		}
	}
}

// New creates a new Notifier.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		globalObservers: make(map[uint64]Observer),
		topicObservers:  make(map[string]map[uint64]Observer),
		done:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(n)
	}

	if n.async {
		n.wg.Add(1)
		go n.processAsync()
	}

	return n
}

// Subscribe registers an observer for all changes.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.SubscribeTopic("", observer)
}

// SubscribeTopic registers an observer for a topic and its child topics.
// An empty topic subscribes to everything.
func (n *Notifier) SubscribeTopic(topic string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	if topic == "" {
		n.globalObservers[id] = observer
	} else {
		if n.topicObservers[topic] == nil {
			n.topicObservers[topic] = make(map[uint64]Observer)
		}
		n.topicObservers[topic][id] = observer
	}

	return &Subscription{id: id, topic: topic, notifier: n}
}

// Notify delivers a change to all matching observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	n.mu.RUnlock()

	if n.async {
		select {
		case n.buffer <- change:
		case <-n.done:
		}
		return
	}

	n.deliver(change)
}

// NotifyAdded is a convenience method for additions.
func (n *Notifier) NotifyAdded(topic, subject, source string) {
	n.Notify(Change{Topic: topic, Type: ChangeAdded, Subject: subject, Source: source})
}

// NotifyRemoved is a convenience method for removals.
func (n *Notifier) NotifyRemoved(topic, subject, source string) {
	n.Notify(Change{Topic: topic, Type: ChangeRemoved, Subject: subject, Source: source})
}

// NotifyReload is a convenience method for reload events.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{Type: ChangeReload, Source: source})
}

// Close shuts down the notifier. It is safe to call Close multiple times.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.mu.Unlock()

	close(n.done)
	n.wg.Wait()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.globalObservers, id)

	for topic, observers := range n.topicObservers {
		delete(observers, id)
		if len(observers) == 0 {
			delete(n.topicObservers, topic)
		}
	}
}

func (n *Notifier) deliver(change Change) {
	n.mu.RLock()

	var observers []Observer
	for _, obs := range n.globalObservers {
		observers = append(observers, obs)
	}

	for topic, topicObs := range n.topicObservers {
		if change.Topic == "" || topic == change.Topic || isParentTopic(topic, change.Topic) {
			for _, obs := range topicObs {
				observers = append(observers, obs)
			}
		}
	}

	n.mu.RUnlock()

	// Observers run outside the lock so they may subscribe or notify.
	for _, obs := range observers {
		obs(change)
	}
}

func (n *Notifier) processAsync() {
	defer n.wg.Done()

	for {
		select {
		case change := <-n.buffer:
			n.deliver(change)
		case <-n.done:
			for {
				select {
				case change := <-n.buffer:
					n.deliver(change)
				default:
					return
				}
			}
		}
	}
}

// isParentTopic reports whether parent is a proper prefix topic of child,
// e.g. "genericeditor" of "genericeditor.preferenceStoreProviders".
func isParentTopic(parent, child string) bool {
	if parent == "" || len(parent) >= len(child) {
		return false
	}
	return child[:len(parent)] == parent && child[len(parent)] == '.'
}

// Batch collects changes and delivers them together on Commit.
type Batch struct {
	notifier *Notifier
	changes  []Change
	mu       sync.Mutex
}

// NewBatch creates a new batch for collecting changes.
func (n *Notifier) NewBatch() *Batch {
	return &Batch{notifier: n}
}

// Add adds a change to the batch.
func (b *Batch) Add(change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = append(b.changes, change)
}

// Commit delivers all batched changes.
func (b *Batch) Commit() {
	b.mu.Lock()
	changes := b.changes
	b.changes = nil
	b.mu.Unlock()

	for _, change := range changes {
		b.notifier.Notify(change)
	}
}

// Discard clears the batch without delivering.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.changes = nil
}

// Len returns the number of pending changes.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.changes)
}
