package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const point = "genericeditor.preferenceStoreProviders"

func TestChangeType_String(t *testing.T) {
	tests := []struct {
		ct   ChangeType
		want string
	}{
		{ChangeAdded, "added"},
		{ChangeRemoved, "removed"},
		{ChangeReload, "reload"},
		{ChangeType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.ct.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.ct, got, tt.want)
		}
	}
}

func TestNotifier_Subscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var received atomic.Int32
	n.Subscribe(func(Change) { received.Add(1) })

	n.NotifyAdded(point, "ext-1", "a.toml")
	n.NotifyAdded("other.point", "ext-2", "b.toml")

	if got := received.Load(); got != 2 {
		t.Errorf("global observer received %d changes, want 2", got)
	}
}

func TestNotifier_SubscribeTopic(t *testing.T) {
	n := New()
	defer n.Close()

	var exact, parent, other []Change
	n.SubscribeTopic(point, func(c Change) { exact = append(exact, c) })
	n.SubscribeTopic("genericeditor", func(c Change) { parent = append(parent, c) })
	n.SubscribeTopic("contenttypes", func(c Change) { other = append(other, c) })

	n.NotifyRemoved(point, "ext-1", "a.toml")

	if len(exact) != 1 || exact[0].Type != ChangeRemoved || exact[0].Subject != "ext-1" {
		t.Errorf("exact observer got %+v", exact)
	}
	if len(parent) != 1 {
		t.Errorf("parent observer got %d changes, want 1", len(parent))
	}
	if len(other) != 0 {
		t.Errorf("unrelated observer got %d changes, want 0", len(other))
	}
}

func TestNotifier_ReloadReachesEveryone(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int32
	n.Subscribe(func(Change) { count.Add(1) })
	n.SubscribeTopic(point, func(Change) { count.Add(1) })
	n.SubscribeTopic("x", func(Change) { count.Add(1) })

	n.NotifyReload("dir")

	if got := count.Load(); got != 3 {
		t.Errorf("reload reached %d observers, want 3", got)
	}
}

func TestSubscription_Unsubscribe(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int32
	sub := n.SubscribeTopic(point, func(Change) { count.Add(1) })
	if sub.Topic() != point {
		t.Errorf("Topic() = %q", sub.Topic())
	}

	n.NotifyAdded(point, "a", "")
	sub.Unsubscribe()
	sub.Unsubscribe()
	n.NotifyAdded(point, "b", "")

	if got := count.Load(); got != 1 {
		t.Errorf("received %d changes, want 1", got)
	}

	var nilSub *Subscription
	nilSub.Unsubscribe()
}

func TestNotifier_Async(t *testing.T) {
	n := New(WithAsync(16))

	var mu sync.Mutex
	var got []string
	n.Subscribe(func(c Change) {
		mu.Lock()
		got = append(got, c.Subject)
		mu.Unlock()
	})

	n.NotifyAdded(point, "a", "")
	n.NotifyAdded(point, "b", "")
	n.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("async delivery = %v, want [a b]", got)
	}
}

func TestNotifier_ClosedDropsChanges(t *testing.T) {
	n := New()
	var count atomic.Int32
	n.Subscribe(func(Change) { count.Add(1) })

	n.Close()
	n.Close()
	n.NotifyAdded(point, "a", "")

	if count.Load() != 0 {
		t.Error("closed notifier delivered a change")
	}
}

func TestNotifier_ObserverMayResubscribe(t *testing.T) {
	n := New()
	defer n.Close()

	done := make(chan struct{})
	n.Subscribe(func(Change) {
		n.Subscribe(func(Change) {})
		close(done)
	})
	n.NotifyReload("")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("observer deadlocked")
	}
}

func TestBatch(t *testing.T) {
	n := New()
	defer n.Close()

	var count atomic.Int32
	n.Subscribe(func(Change) { count.Add(1) })

	b := n.NewBatch()
	b.Add(Change{Topic: point, Type: ChangeRemoved, Subject: "old"})
	b.Add(Change{Topic: point, Type: ChangeAdded, Subject: "new"})

	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	if count.Load() != 0 {
		t.Error("changes delivered before Commit")
	}

	b.Commit()
	if count.Load() != 2 {
		t.Errorf("delivered %d changes, want 2", count.Load())
	}
	if b.Len() != 0 {
		t.Error("batch not empty after Commit")
	}

	b.Add(Change{Topic: point})
	b.Discard()
	b.Commit()
	if count.Load() != 2 {
		t.Error("discarded change was delivered")
	}
}

func TestIsParentTopic(t *testing.T) {
	tests := []struct {
		parent, child string
		want          bool
	}{
		{"genericeditor", point, true},
		{"generic", point, false},
		{point, point, false},
		{"", point, false},
		{"a.b", "a", false},
	}
	for _, tt := range tests {
		if got := isParentTopic(tt.parent, tt.child); got != tt.want {
			t.Errorf("isParentTopic(%q, %q) = %v, want %v", tt.parent, tt.child, got, tt.want)
		}
	}
}
