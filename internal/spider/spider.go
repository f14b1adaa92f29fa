package spider

import (
	"net/url"
	"strings"

	"github.com/gobwas/glob"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// State is the link-follow position of a single discovery edge. A URL
// reached along two paths carries two independent states; limits are
// checked against the edge, never against the URL itself.
type State struct {
	// LinkDistance counts link-follow hops from the nearest URL that
	// was not itself discovered by spidering.
	LinkDistance int

	// PathDepth is the deepest URL path seen along the chain, a
	// watermark that never decreases.
	PathDepth int
}

// Gate is the fetch decision for a URL, taken before any follow state
// is computed.
type Gate int

const (
	// GateFetch fetches the page and feeds its links back in.
	GateFetch Gate = iota
	// GateProbe fetches the page once for content but never follows
	// links out of it.
	GateProbe
	// GateSkip records the URL without touching the network.
	GateSkip
)

// Controller applies the spidering bounds: a per-edge distance limit,
// a path-depth limit and the extension and pattern gates.
type Controller struct {
	maxDistance int
	maxDepth    int
	blacklist   map[string]struct{}
	probeOnly   map[string]struct{}
	ignore      []glob.Glob
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxDistance sets the number of link-follow hops allowed from a
// non-spidered URL. Zero disables following entirely.
func WithMaxDistance(n int) Option {
	return func(c *Controller) {
		c.maxDistance = n
	}
}

// WithMaxDepth sets the deepest URL path, in segments, the spider
// follows into.
func WithMaxDepth(n int) Option {
	return func(c *Controller) {
		c.maxDepth = n
	}
}

// WithExtensionBlacklist sets the extensions that are never fetched.
func WithExtensionBlacklist(exts []string) Option {
	return func(c *Controller) {
		c.blacklist = extensionSet(exts)
	}
}

// WithProbeOnlyExtensions sets the extensions that are fetched for
// content but never spidered for links.
func WithProbeOnlyExtensions(exts []string) Option {
	return func(c *Controller) {
		c.probeOnly = extensionSet(exts)
	}
}

// WithIgnorePatterns sets glob patterns for URL paths the spider never
// fetches, such as "/logout*" or "/admin/**". Invalid patterns are
// dropped.
func WithIgnorePatterns(patterns []string) Option {
	return func(c *Controller) {
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				continue
			}
			c.ignore = append(c.ignore, g)
		}
	}
}

// NewController builds a Controller. With no options it refuses every
// follow: spidering is opt-in.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		maxDepth:  1,
		blacklist: map[string]struct{}{},
		probeOnly: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GateFor decides whether a URL may be fetched at all. The decision
// depends only on the URL, not on how it was reached, and is evaluated
// before any follow state exists.
func (c *Controller) GateFor(u *url.URL) Gate {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	for _, g := range c.ignore {
		if g.Match(path) {
			return GateSkip
		}
	}
	ext := model.URLExtension(u)
	if _, ok := c.blacklist[ext]; ok {
		return GateSkip
	}
	if _, ok := c.probeOnly[ext]; ok {
		return GateProbe
	}
	return GateFetch
}

// ShouldFollow reports whether a link found on a page with the given
// edge state may itself be fetched and spidered. The parent must still
// be under the distance limit and the child's path must stay within the
// depth limit.
func (c *Controller) ShouldFollow(u *url.URL, parent State) bool {
	if c.maxDistance == 0 {
		return false
	}
	if parent.LinkDistance >= c.maxDistance {
		return false
	}
	return c.Advance(u, parent).PathDepth <= c.maxDepth
}

// Advance derives a child edge state from its parent: one more hop,
// and the depth watermark raised to the child's own path depth if that
// is deeper. States only ever grow along a chain.
func (c *Controller) Advance(u *url.URL, parent State) State {
	depth := model.URLPathDepth(u)
	if parent.PathDepth > depth {
		depth = parent.PathDepth
	}
	return State{
		LinkDistance: parent.LinkDistance + 1,
		PathDepth:    depth,
	}
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}
	return set
}
