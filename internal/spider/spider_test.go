package spider

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestController_GateFor(t *testing.T) {
	t.Parallel()

	c := NewController(
		WithExtensionBlacklist([]string{"png", "css", ".PDF"}),
		WithProbeOnlyExtensions([]string{"js"}),
		WithIgnorePatterns([]string{"/logout*", "/admin/**"}),
	)

	tests := []struct {
		name string
		url  string
		want Gate
	}{
		{"plain page", "http://example.com/about", GateFetch},
		{"root", "http://example.com/", GateFetch},
		{"blacklisted image", "http://example.com/logo.png", GateSkip},
		{"blacklisted uppercase", "http://example.com/report.PDF", GateSkip},
		{"dot-normalized blacklist entry", "http://example.com/x.pdf", GateSkip},
		{"probe-only script", "http://example.com/app.js", GateProbe},
		{"ignored logout", "http://example.com/logout?next=/", GateSkip},
		{"ignored admin subtree", "http://example.com/admin/users/1", GateSkip},
		{"extension inside path only", "http://example.com/png/index.html", GateFetch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := c.GateFor(mustParse(t, tt.url)); got != tt.want {
				t.Errorf("GateFor(%s) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

func TestController_GateFor_InvalidIgnorePattern(t *testing.T) {
	t.Parallel()

	c := NewController(WithIgnorePatterns([]string{"[", "/logout*"}))
	if got := c.GateFor(mustParse(t, "http://example.com/logout")); got != GateSkip {
		t.Errorf("valid pattern should survive an invalid sibling, got %v", got)
	}
	if got := c.GateFor(mustParse(t, "http://example.com/login")); got != GateFetch {
		t.Errorf("GateFor(/login) = %v, want GateFetch", got)
	}
}

func TestController_ShouldFollow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		distance int
		depth    int
		url      string
		parent   State
		want     bool
	}{
		{"distance zero disables", 0, 10, "http://example.com/a", State{}, false},
		{"first hop allowed", 2, 3, "http://example.com/a", State{}, true},
		{"parent at distance limit", 2, 3, "http://example.com/a", State{LinkDistance: 2}, false},
		{"parent under distance limit", 2, 3, "http://example.com/a", State{LinkDistance: 1}, true},
		{"child too deep", 2, 1, "http://example.com/a/b/c", State{}, false},
		{"child at depth limit", 2, 3, "http://example.com/a/b/c", State{}, true},
		{"watermark blocks shallow child", 2, 2, "http://example.com/a", State{PathDepth: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewController(WithMaxDistance(tt.distance), WithMaxDepth(tt.depth))
			got := c.ShouldFollow(mustParse(t, tt.url), tt.parent)
			if got != tt.want {
				t.Errorf("ShouldFollow(%s, %+v) = %v, want %v", tt.url, tt.parent, got, tt.want)
			}
		})
	}
}

func TestController_Advance(t *testing.T) {
	t.Parallel()

	c := NewController(WithMaxDistance(5), WithMaxDepth(5))

	child := c.Advance(mustParse(t, "http://example.com/a/b"), State{LinkDistance: 1, PathDepth: 1})
	if child.LinkDistance != 2 {
		t.Errorf("LinkDistance = %d, want 2", child.LinkDistance)
	}
	if child.PathDepth != 2 {
		t.Errorf("PathDepth = %d, want 2", child.PathDepth)
	}

	// The depth watermark never decreases, even through shallower URLs.
	shallow := c.Advance(mustParse(t, "http://example.com/"), child)
	if shallow.PathDepth != 2 {
		t.Errorf("watermark dropped to %d, want 2", shallow.PathDepth)
	}
	if shallow.LinkDistance != 3 {
		t.Errorf("LinkDistance = %d, want 3", shallow.LinkDistance)
	}
}

// TestController_PerEdgeEvaluation pins the contract that limits apply
// to the discovery edge: one URL reached along two chains can be
// followed on one and refused on the other.
func TestController_PerEdgeEvaluation(t *testing.T) {
	t.Parallel()

	c := NewController(WithMaxDistance(2), WithMaxDepth(3))
	u := mustParse(t, "http://example.com/page")

	if !c.ShouldFollow(u, State{LinkDistance: 0}) {
		t.Error("expected follow via the short chain")
	}
	if c.ShouldFollow(u, State{LinkDistance: 2}) {
		t.Error("expected refusal via the long chain")
	}
}
