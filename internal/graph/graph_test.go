package graph

import (
	"fmt"
	"sync"
	"testing"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

func newTestGraph(t *testing.T) (*Graph, *model.Event) {
	t.Helper()
	root := model.NewScanEvent("test-scan")
	return New(root), root
}

func mustEvent(t *testing.T, typ model.EventType, raw string, parent *model.Event) *model.Event {
	t.Helper()
	ev, err := model.NewEvent(typ, raw, parent, "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return ev
}

func TestGraph_Insert(t *testing.T) {
	t.Parallel()

	t.Run("new value is committed", func(t *testing.T) {
		t.Parallel()
		g, root := newTestGraph(t)

		ev := mustEvent(t, model.EventTypeDNSName, "www.example.com", root)
		canonical, inserted := g.Insert(ev)

		if !inserted {
			t.Error("expected insertion of a new value")
		}
		if canonical != ev {
			t.Error("expected the argument to become the canonical node")
		}
		if got, ok := g.Get(ev.ID()); !ok || got != ev {
			t.Error("expected Get to return the committed event")
		}
		if g.Len() != 2 {
			t.Errorf("expected 2 events (root + 1), got %d", g.Len())
		}
	})

	t.Run("duplicate value is rejected and keeps the canonical node", func(t *testing.T) {
		t.Parallel()
		g, root := newTestGraph(t)

		first := mustEvent(t, model.EventTypeDNSName, "www.example.com", root)
		g.Insert(first)

		// Same normalized value, different raw shape and parent.
		other := mustEvent(t, model.EventTypeDNSName, "WWW.Example.COM.", root)
		canonical, inserted := g.Insert(other)

		if inserted {
			t.Error("expected duplicate to be rejected")
		}
		if canonical != first {
			t.Error("expected the first event to stay canonical")
		}
		if g.Len() != 2 {
			t.Errorf("expected 2 events, got %d", g.Len())
		}
	})

	t.Run("duplicate via a second path adds a parent edge", func(t *testing.T) {
		t.Parallel()
		g, root := newTestGraph(t)

		pathA := mustEvent(t, model.EventTypeDNSName, "a.example.com", root)
		pathB := mustEvent(t, model.EventTypeDNSName, "b.example.com", root)
		g.Insert(pathA)
		g.Insert(pathB)

		shared := mustEvent(t, model.EventTypeIPAddress, "192.0.2.1", pathA)
		g.Insert(shared)

		dup := mustEvent(t, model.EventTypeIPAddress, "192.0.2.1", pathB)
		canonical, inserted := g.Insert(dup)

		if inserted {
			t.Error("expected duplicate to be rejected")
		}
		parents := g.Parents(canonical)
		if len(parents) != 2 {
			t.Fatalf("expected 2 parents, got %d", len(parents))
		}
		if !containsEvent(g.Children(pathB), canonical) {
			t.Error("expected the canonical node among pathB's children")
		}
	})

	t.Run("same value different type is a distinct node", func(t *testing.T) {
		t.Parallel()
		g, root := newTestGraph(t)

		name := mustEvent(t, model.EventTypeDNSName, "example.com", root)
		email := mustEvent(t, model.EventTypeEmailAddress, "user@example.com", root)
		g.Insert(name)

		if _, inserted := g.Insert(email); !inserted {
			t.Error("expected different type to insert separately")
		}
	})
}

func TestGraph_Children(t *testing.T) {
	t.Parallel()
	g, root := newTestGraph(t)

	a := mustEvent(t, model.EventTypeDNSName, "a.example.com", root)
	b := mustEvent(t, model.EventTypeDNSName, "b.example.com", root)
	g.Insert(a)
	g.Insert(b)

	children := g.Children(root)
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if !containsEvent(children, a) || !containsEvent(children, b) {
		t.Error("expected both inserted events among children")
	}
	if got := g.Children(b); len(got) != 0 {
		t.Errorf("expected leaf to have no children, got %d", len(got))
	}
}

func TestGraph_AncestorsToRoot(t *testing.T) {
	t.Parallel()
	g, root := newTestGraph(t)

	name := mustEvent(t, model.EventTypeDNSName, "www.example.com", root)
	g.Insert(name)
	ip := mustEvent(t, model.EventTypeIPAddress, "192.0.2.1", name)
	g.Insert(ip)

	ancestors := g.AncestorsToRoot(ip)
	if len(ancestors) != 2 {
		t.Fatalf("expected 2 ancestors, got %d", len(ancestors))
	}
	if ancestors[0] != name || ancestors[1] != root {
		t.Error("expected lineage ordered nearest-first up to the root")
	}
}

func TestGraph_All(t *testing.T) {
	t.Parallel()
	g, root := newTestGraph(t)

	want := map[string]bool{root.ID(): true}
	for i := 0; i < 20; i++ {
		ev := mustEvent(t, model.EventTypeDNSName, fmt.Sprintf("host%d.example.com", i), root)
		g.Insert(ev)
		want[ev.ID()] = true
	}

	t.Run("yields every committed event once", func(t *testing.T) {
		t.Parallel()
		seen := make(map[string]int)
		for ev := range g.All() {
			seen[ev.ID()]++
		}
		if len(seen) != len(want) {
			t.Errorf("expected %d events, got %d", len(want), len(seen))
		}
		for id, n := range seen {
			if n != 1 {
				t.Errorf("expected event %s once, got %d", id, n)
			}
		}
	})

	t.Run("sequence is restartable", func(t *testing.T) {
		t.Parallel()
		seq := g.All()
		first, second := 0, 0
		for range seq {
			first++
		}
		for range seq {
			second++
		}
		if first != second || first != len(want) {
			t.Errorf("expected both passes to yield %d events, got %d and %d", len(want), first, second)
		}
	})

	t.Run("early break stops the pass", func(t *testing.T) {
		t.Parallel()
		count := 0
		for range g.All() {
			count++
			if count == 3 {
				break
			}
		}
		if count != 3 {
			t.Errorf("expected 3 events before break, got %d", count)
		}
	})
}

func TestGraph_ConcurrentInsert(t *testing.T) {
	t.Parallel()
	g, root := newTestGraph(t)

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				// Every worker inserts the same values: exactly one copy
				// of each must win.
				ev, err := model.NewEvent(model.EventTypeDNSName, fmt.Sprintf("host%d.example.com", i), root, "test")
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				g.Insert(ev)
			}
		}()
	}
	wg.Wait()

	if got := g.Len(); got != perWorker+1 {
		t.Errorf("expected %d events, got %d", perWorker+1, got)
	}
}

func TestGraph_Clear(t *testing.T) {
	t.Parallel()
	g, root := newTestGraph(t)

	g.Insert(mustEvent(t, model.EventTypeDNSName, "www.example.com", root))
	g.Clear()

	if got := g.Len(); got != 0 {
		t.Errorf("expected empty graph, got %d events", got)
	}
	if _, ok := g.Get(root.ID()); ok {
		t.Error("expected root to be dropped by Clear")
	}
}

func containsEvent(events []*model.Event, target *model.Event) bool {
	for _, ev := range events {
		if ev == target {
			return true
		}
	}
	return false
}
