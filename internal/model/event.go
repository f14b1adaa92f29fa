package model

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// DistanceUnknown marks an event whose scope distance has not been
// established. Unknown distances are treated as maximally out of scope:
// such events are never processed further and never reported.
const DistanceUnknown = -1

// Well-known tags appended to events during processing.
const (
	// TagTarget marks events that were part of the initial scan target.
	TagTarget = "target"
	// TagInScope marks events at scope distance zero.
	TagInScope = "in-scope"
	// TagResolved marks name-like events with at least one DNS answer.
	TagResolved = "resolved"
	// TagUnresolved marks name-like events that resolved to nothing.
	TagUnresolved = "unresolved"
	// TagWildcard marks events whose value matches a wildcard DNS answer.
	TagWildcard = "wildcard"
	// TagSpiderDanger marks URL events past the spider distance or depth
	// limits; they are recorded but never fetched.
	TagSpiderDanger = "spider-danger"
)

// Event is a typed discovered item: a hostname, address, range, URL or
// email, positioned in the discovery graph by its parent reference.
//
// Events are immutable after creation except for appended tags and the
// one-shot classification stamps (scope distance, spider state), which
// are set before the event becomes visible to consumers.
type Event struct {
	id         string
	typ        EventType
	data       string
	host       string
	port       int
	module     string
	parent     *Event
	parsedURL  *url.URL
	discovered time.Time

	mu            sync.RWMutex
	tags          map[string]struct{}
	scopeDistance int
	classified    bool
	linkDistance  int
	spiderDepth   int
	spiderStamped bool
}

// NewEvent creates an event of an explicit type from a raw value. The
// value is normalized for its type; ErrInvalidEventData is returned when
// it does not parse. The parent may be nil only for SCAN events; module
// names the producer that discovered the value.
func NewEvent(typ EventType, raw string, parent *Event, module string) (*Event, error) {
	e := &Event{
		typ:           typ,
		module:        module,
		parent:        parent,
		discovered:    time.Now(),
		tags:          make(map[string]struct{}),
		scopeDistance: DistanceUnknown,
	}
	if parent != nil {
		e.linkDistance = parent.LinkDistance()
		e.spiderDepth = parent.SpiderDepth()
	}

	var err error
	switch typ {
	case EventTypeScan:
		e.data = raw
	case EventTypeDNSName:
		e.data, err = NormalizeHost(raw)
		e.host = e.data
	case EventTypeIPAddress:
		e.data, err = NormalizeIP(raw)
		e.host = e.data
	case EventTypeIPRange:
		e.data, err = NormalizeCIDR(raw)
	case EventTypeEmailAddress:
		e.data, err = NormalizeEmail(raw)
		if err == nil {
			e.host = e.data[strings.LastIndexByte(e.data, '@')+1:]
		}
	case EventTypeURL:
		var u *url.URL
		e.data, u, err = NormalizeURL(raw)
		if err == nil {
			e.parsedURL = u
			e.host = u.Hostname()
			e.port = URLPort(u)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, typ)
	}
	if err != nil {
		return nil, err
	}

	e.id = eventID(typ, e.data)
	return e, nil
}

// MakeEvent creates an event from a raw value whose type is inferred
// with DetectType.
func MakeEvent(raw string, parent *Event, module string) (*Event, error) {
	typ, err := DetectType(raw)
	if err != nil {
		return nil, err
	}
	return NewEvent(typ, raw, parent, module)
}

// NewScanEvent creates the root SCAN event. It sits at scope distance
// zero and anchors every discovery lineage.
func NewScanEvent(name string) *Event {
	e, _ := NewEvent(EventTypeScan, name, nil, "scan")
	e.SetScopeDistance(0)
	return e
}

// eventID derives the stable identifier for a (type, normalized data)
// pair.
func eventID(typ EventType, data string) string {
	sum := sha1.Sum([]byte(data))
	return string(typ) + ":" + hex.EncodeToString(sum[:])
}

// ID returns the stable identifier, unique per (type, normalized value).
func (e *Event) ID() string { return e.id }

// Type returns the event type.
func (e *Event) Type() EventType { return e.typ }

// Data returns the normalized value.
func (e *Event) Data() string { return e.data }

// Host returns the host component for host-bearing types, or the empty
// string.
func (e *Event) Host() string { return e.host }

// Port returns the effective port for URL events, or zero.
func (e *Event) Port() int { return e.port }

// Module returns the name of the producer that created the event.
func (e *Event) Module() string { return e.module }

// Parent returns the event this one was derived from, or nil for the
// scan root. The returned reference is a back-link; the graph owns the
// event, not the child.
func (e *Event) Parent() *Event { return e.parent }

// ParentID returns the parent's identifier, or the empty string.
func (e *Event) ParentID() string {
	if e.parent == nil {
		return ""
	}
	return e.parent.id
}

// Discovered returns the creation time.
func (e *Event) Discovered() time.Time { return e.discovered }

// URL returns a copy of the parsed URL for URL events, or nil.
func (e *Event) URL() *url.URL {
	if e.parsedURL == nil {
		return nil
	}
	u := *e.parsedURL
	return &u
}

// String renders the event for logs.
func (e *Event) String() string {
	return fmt.Sprintf("%s(%q)", e.typ, e.data)
}

// SetScopeDistance stamps the classified scope distance. The stamp is
// one-shot: the first call wins and later calls are ignored, so a
// re-observed event keeps the distance of its first discovery path.
func (e *Event) SetScopeDistance(distance int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.classified {
		return
	}
	e.scopeDistance = distance
	e.classified = true
	if distance == 0 {
		e.tags[TagInScope] = struct{}{}
	}
}

// ScopeDistance returns the classified scope distance, or
// DistanceUnknown if the event has not been classified.
func (e *Event) ScopeDistance() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scopeDistance
}

// InScope reports whether the event is at scope distance zero.
func (e *Event) InScope() bool {
	return e.ScopeDistance() == 0
}

// SetSpiderState stamps the link-follow distance and path-depth
// watermark of a URL event. One-shot, like SetScopeDistance; events
// created without a stamp inherit both values from their parent.
func (e *Event) SetSpiderState(linkDistance, spiderDepth int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.spiderStamped {
		return
	}
	e.linkDistance = linkDistance
	e.spiderDepth = spiderDepth
	e.spiderStamped = true
}

// LinkDistance returns the number of link-follow hops from the nearest
// non-spidered ancestor.
func (e *Event) LinkDistance() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.linkDistance
}

// SpiderDepth returns the URL path-depth watermark along the discovery
// chain.
func (e *Event) SpiderDepth() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spiderDepth
}

// AddTag appends a derived tag. Tags are the only mutation an event
// accepts after it becomes visible.
func (e *Event) AddTag(tag string) {
	if tag == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tags[tag] = struct{}{}
}

// AddTags appends several derived tags at once.
func (e *Event) AddTags(tags ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tag := range tags {
		if tag != "" {
			e.tags[tag] = struct{}{}
		}
	}
}

// HasTag reports whether the tag has been appended.
func (e *Event) HasTag(tag string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.tags[tag]
	return ok
}

// Tags returns the appended tags in sorted order.
func (e *Event) Tags() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tags := make([]string, 0, len(e.tags))
	for tag := range e.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Resolved reports whether the resolution scheduler found at least one
// answer for this event.
func (e *Event) Resolved() bool { return e.HasTag(TagResolved) }

// EventRecord is the flat, serializable snapshot of an event used for
// persistence and output.
type EventRecord struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Data          string    `json:"data"`
	Host          string    `json:"host,omitempty"`
	Port          int       `json:"port,omitempty"`
	ScopeDistance int       `json:"scope_distance"`
	Module        string    `json:"module,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	ParentID      string    `json:"parent,omitempty"`
	Discovered    time.Time `json:"discovered"`
}

// Record returns a snapshot of the event.
func (e *Event) Record() EventRecord {
	return EventRecord{
		ID:            e.id,
		Type:          string(e.typ),
		Data:          e.data,
		Host:          e.host,
		Port:          e.port,
		ScopeDistance: e.ScopeDistance(),
		Module:        e.module,
		Tags:          e.Tags(),
		ParentID:      e.ParentID(),
		Discovered:    e.discovered,
	}
}
