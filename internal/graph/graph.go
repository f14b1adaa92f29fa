package graph

import (
	"hash/fnv"
	"iter"
	"sync"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// shardCount is the number of lock stripes. Inserts for different
// values proceed in parallel; only same-shard inserts serialize.
const shardCount = 64

// node holds an event and its adjacency. Adjacency is guarded by the
// shard owning the node, not by a graph-wide lock.
type node struct {
	event    *model.Event
	parents  []*model.Event
	children []*model.Event
}

// shard is one lock stripe of the graph.
type shard struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

// Graph is the scan-lifetime DAG of discovered events, deduplicated by
// (type, normalized value). An event re-inserted through a different
// discovery path keeps its canonical node and gains a parent edge.
// Events are never deleted mid-scan; Clear tears down the whole
// structure at once.
type Graph struct {
	shards [shardCount]shard
	root   *model.Event
}

// New creates a graph anchored at the given root event, typically the
// SCAN event.
func New(root *model.Event) *Graph {
	g := &Graph{root: root}
	for i := range g.shards {
		g.shards[i].nodes = make(map[string]*node)
	}
	g.shardFor(root.ID()).insert(root)
	return g
}

// Root returns the anchor event.
func (g *Graph) Root() *model.Event {
	return g.root
}

// shardFor maps an event ID onto its lock stripe.
func (g *Graph) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &g.shards[h.Sum32()%shardCount]
}

// Insert commits an event to the graph. The returned event is the
// canonical node: the argument itself when the value is new (inserted
// true), or the previously committed event when the value was already
// known (inserted false). In the duplicate case the new discovery path
// is recorded as an extra parent edge on the canonical node.
//
// The dedup check and insert are atomic per key; unrelated inserts do
// not serialize.
func (g *Graph) Insert(ev *model.Event) (*model.Event, bool) {
	s := g.shardFor(ev.ID())

	s.mu.Lock()
	existing, ok := s.nodes[ev.ID()]
	if ok {
		if p := ev.Parent(); p != nil {
			existing.addParent(p)
		}
		s.mu.Unlock()
		canonical := existing.event
		if p := ev.Parent(); p != nil {
			g.linkChild(p, canonical)
		}
		return canonical, false
	}
	s.insert(ev)
	s.mu.Unlock()

	if p := ev.Parent(); p != nil {
		g.linkChild(p, ev)
	}
	return ev, true
}

// insert adds a node to the shard. Caller holds the shard lock (or has
// exclusive access during construction).
func (s *shard) insert(ev *model.Event) {
	n := &node{event: ev}
	if p := ev.Parent(); p != nil {
		n.parents = append(n.parents, p)
	}
	s.nodes[ev.ID()] = n
}

// addParent records an additional discovery path, skipping duplicates.
func (n *node) addParent(p *model.Event) {
	for _, existing := range n.parents {
		if existing.ID() == p.ID() {
			return
		}
	}
	n.parents = append(n.parents, p)
}

// linkChild records child in the parent's adjacency, if the parent has
// been committed. Parents are committed before their children, so a
// missing parent node only happens for detached events.
func (g *Graph) linkChild(parent, child *model.Event) {
	s := g.shardFor(parent.ID())
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[parent.ID()]
	if !ok {
		return
	}
	for _, existing := range n.children {
		if existing.ID() == child.ID() {
			return
		}
	}
	n.children = append(n.children, child)
}

// Get returns the canonical event for an ID.
func (g *Graph) Get(id string) (*model.Event, bool) {
	s := g.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return n.event, true
}

// Contains reports whether an event with the same identity has been
// committed.
func (g *Graph) Contains(ev *model.Event) bool {
	_, ok := g.Get(ev.ID())
	return ok
}

// Children returns the events derived from ev, in insertion order.
func (g *Graph) Children(ev *model.Event) []*model.Event {
	s := g.shardFor(ev.ID())
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[ev.ID()]
	if !ok {
		return nil
	}
	out := make([]*model.Event, len(n.children))
	copy(out, n.children)
	return out
}

// Parents returns every discovery path of ev: the creation parent plus
// any recorded by duplicate insertions.
func (g *Graph) Parents(ev *model.Event) []*model.Event {
	s := g.shardFor(ev.ID())
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[ev.ID()]
	if !ok {
		return nil
	}
	out := make([]*model.Event, len(n.parents))
	copy(out, n.parents)
	return out
}

// AncestorsToRoot returns the primary discovery lineage from ev's
// parent up to the root, nearest first.
func (g *Graph) AncestorsToRoot(ev *model.Event) []*model.Event {
	var out []*model.Event
	for p := ev.Parent(); p != nil; p = p.Parent() {
		out = append(out, p)
	}
	return out
}

// All returns a lazy, restartable sequence over every committed event.
// Each range starts a fresh pass. Events inserted while a pass is in
// flight may or may not be yielded; events are never yielded twice.
func (g *Graph) All() iter.Seq[*model.Event] {
	return func(yield func(*model.Event) bool) {
		for i := range g.shards {
			s := &g.shards[i]
			s.mu.RLock()
			events := make([]*model.Event, 0, len(s.nodes))
			for _, n := range s.nodes {
				events = append(events, n.event)
			}
			s.mu.RUnlock()
			for _, ev := range events {
				if !yield(ev) {
					return
				}
			}
		}
	}
}

// Len returns the number of committed events, including the root.
func (g *Graph) Len() int {
	total := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.RLock()
		total += len(s.nodes)
		s.mu.RUnlock()
	}
	return total
}

// Clear drops every node at once. Only the scan teardown path calls
// this; no mid-scan deletion exists.
func (g *Graph) Clear() {
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.Lock()
		s.nodes = make(map[string]*node)
		s.mu.Unlock()
	}
}
