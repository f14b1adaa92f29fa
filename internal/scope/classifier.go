package scope

import (
	"net/netip"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// Verdict is the classification result for one event.
type Verdict struct {
	// Distance is the scope distance, or model.DistanceUnknown for
	// detached events.
	Distance int
	// InScope is true at distance zero.
	InScope bool
	// ShouldProcess permits derivation: the event may produce children.
	ShouldProcess bool
	// ShouldReport permits output. Reported events are a subset of
	// processed events.
	ShouldReport bool
}

// Classifier computes scope distances and the process/report verdicts
// derived from them. It is read-only after construction and safe for
// concurrent use.
type Classifier struct {
	target            *Target
	whitelist         *Target
	blacklist         *Target
	searchDistance    int
	reportDistance    int
	dnsSearchDistance int
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithWhitelist narrows distance-zero membership to the given target.
// The scan target still seeds the scan; the whitelist only decides
// scope membership.
func WithWhitelist(w *Target) Option {
	return func(c *Classifier) { c.whitelist = w }
}

// WithBlacklist excludes matching events entirely.
func WithBlacklist(b *Target) Option {
	return func(c *Classifier) { c.blacklist = b }
}

// WithSearchDistance sets the maximum distance at which events still
// produce children.
func WithSearchDistance(d int) Option {
	return func(c *Classifier) { c.searchDistance = d }
}

// WithReportDistance sets the maximum distance of reported events.
func WithReportDistance(d int) Option {
	return func(c *Classifier) { c.reportDistance = d }
}

// WithDNSSearchDistance sets the bound for DNS child derivation, which
// may exceed the search distance.
func WithDNSSearchDistance(d int) Option {
	return func(c *Classifier) { c.dnsSearchDistance = d }
}

// NewClassifier creates a Classifier anchored at the scan target.
func NewClassifier(target *Target, opts ...Option) *Classifier {
	c := &Classifier{target: target}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify computes the verdict for an event. The distance is zero iff
// the event's value matches a scope pattern; otherwise it is the
// parent's distance plus one. Events with no parent and no pattern
// match have no computable distance and are maximally out of scope.
func (c *Classifier) Classify(ev *model.Event) Verdict {
	return c.verdict(c.distance(ev))
}

// Stamp classifies the event and stamps the distance onto it.
func (c *Classifier) Stamp(ev *model.Event) Verdict {
	v := c.Classify(ev)
	ev.SetScopeDistance(v.Distance)
	return v
}

// VerdictFor recomputes the verdict for an already-stamped distance.
func (c *Classifier) VerdictFor(distance int) Verdict {
	return c.verdict(distance)
}

func (c *Classifier) distance(ev *model.Event) int {
	if ev.Type() == model.EventTypeScan {
		return 0
	}
	if c.matchesScope(ev) {
		return 0
	}
	parent := ev.Parent()
	if parent == nil {
		return model.DistanceUnknown
	}
	pd := parent.ScopeDistance()
	if pd == model.DistanceUnknown {
		return model.DistanceUnknown
	}
	return pd + 1
}

func (c *Classifier) verdict(distance int) Verdict {
	known := distance != model.DistanceUnknown
	shouldProcess := known && distance <= c.searchDistance
	return Verdict{
		Distance:      distance,
		InScope:       known && distance == 0,
		ShouldProcess: shouldProcess,
		ShouldReport:  shouldProcess && distance <= c.reportDistance,
	}
}

// matchesScope checks the event value against the whitelist, or the
// scan target when no whitelist is set.
func (c *Classifier) matchesScope(ev *model.Event) bool {
	scope := c.whitelist
	if scope.Empty() {
		scope = c.target
	}
	if ev.Type() == model.EventTypeIPRange {
		prefix, err := netip.ParsePrefix(ev.Data())
		if err != nil {
			return false
		}
		return scope.ContainsPrefix(prefix)
	}
	return scope.Contains(ev.Host())
}

// ShouldEmitDNSChildren reports whether resolution results of an event
// at the given distance may enter the graph. The window is strict:
// children are emitted while the parent is closer than the DNS search
// distance, so the final hop's answers are recorded but resolve no
// further.
func (c *Classifier) ShouldEmitDNSChildren(distance int) bool {
	return distance != model.DistanceUnknown && distance < c.dnsSearchDistance
}

// Blacklisted reports whether the event matches the blacklist.
func (c *Classifier) Blacklisted(ev *model.Event) bool {
	if c.blacklist.Empty() {
		return false
	}
	if ev.Type() == model.EventTypeIPRange {
		prefix, err := netip.ParsePrefix(ev.Data())
		if err != nil {
			return false
		}
		return c.blacklist.ContainsPrefix(prefix)
	}
	return c.blacklist.Contains(ev.Host())
}

// BlacklistedHost reports whether a bare host string matches the
// blacklist. The resolution scheduler uses this against DNS answers.
func (c *Classifier) BlacklistedHost(host string) bool {
	return !c.blacklist.Empty() && c.blacklist.Contains(host)
}

// WhitelistedHost reports whether a bare host string is in scope. A
// name resolving to a whitelisted address is itself pulled into scope.
func (c *Classifier) WhitelistedHost(host string) bool {
	scope := c.whitelist
	if scope.Empty() {
		scope = c.target
	}
	return scope.Contains(host)
}
