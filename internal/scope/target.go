package scope

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// Target errors.
var (
	// ErrEmptyTarget is returned when a target has no usable patterns.
	ErrEmptyTarget = errors.New("target has no patterns")
	// ErrInvalidPattern is returned when a seed value cannot be parsed
	// into any pattern kind.
	ErrInvalidPattern = errors.New("invalid target pattern")
)

// Target is an immutable set of scope patterns built once at scan
// start: exact hostnames, domain suffixes and IP prefixes. A bare
// hostname seed is an exact pattern; seeds of the form *.example.com
// or .example.com create suffix patterns that cover the apex and all
// subdomains. IP seeds become single-address prefixes, CIDR seeds keep
// their mask.
type Target struct {
	exact    map[string]struct{}
	suffixes map[string]struct{}
	prefixes []netip.Prefix
}

// NewTarget parses seed values into a Target. Seeds may be hostnames,
// suffix patterns, IP addresses, CIDR ranges, URLs (their host is
// used) or email addresses (their domain is used).
func NewTarget(seeds ...string) (*Target, error) {
	t := &Target{
		exact:    make(map[string]struct{}),
		suffixes: make(map[string]struct{}),
	}
	for _, seed := range seeds {
		if err := t.add(seed); err != nil {
			return nil, err
		}
	}
	if t.Empty() {
		return nil, ErrEmptyTarget
	}
	return t, nil
}

// add parses one seed into the appropriate pattern set.
func (t *Target) add(seed string) error {
	value := strings.TrimSpace(seed)
	if value == "" {
		return fmt.Errorf("%w: empty seed", ErrInvalidPattern)
	}

	if strings.HasPrefix(value, "*.") || strings.HasPrefix(value, ".") {
		host, err := model.NormalizeHost(strings.TrimPrefix(strings.TrimPrefix(value, "*"), "."))
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, seed)
		}
		t.suffixes[host] = struct{}{}
		return nil
	}

	typ, err := model.DetectType(value)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, seed)
	}
	switch typ {
	case model.EventTypeDNSName:
		host, err := model.NormalizeHost(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, seed)
		}
		t.exact[host] = struct{}{}
	case model.EventTypeIPAddress:
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, seed)
		}
		addr = addr.Unmap()
		t.prefixes = append(t.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	case model.EventTypeIPRange:
		prefix, err := netip.ParsePrefix(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, seed)
		}
		t.prefixes = append(t.prefixes, prefix.Masked())
	case model.EventTypeURL:
		_, u, err := model.NormalizeURL(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, seed)
		}
		return t.add(u.Hostname())
	case model.EventTypeEmailAddress:
		email, err := model.NormalizeEmail(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, seed)
		}
		return t.add(email[strings.LastIndexByte(email, '@')+1:])
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPattern, seed)
	}
	return nil
}

// Empty reports whether the target holds no patterns.
func (t *Target) Empty() bool {
	return t == nil || (len(t.exact) == 0 && len(t.suffixes) == 0 && len(t.prefixes) == 0)
}

// Len returns the number of patterns.
func (t *Target) Len() int {
	if t == nil {
		return 0
	}
	return len(t.exact) + len(t.suffixes) + len(t.prefixes)
}

// Contains reports whether a host string (hostname or IP literal)
// matches any pattern.
func (t *Target) Contains(host string) bool {
	if t == nil || host == "" {
		return false
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return t.ContainsAddr(addr)
	}
	return t.containsHost(host)
}

// containsHost matches a normalized hostname against exact and suffix
// patterns.
func (t *Target) containsHost(host string) bool {
	if _, ok := t.exact[host]; ok {
		return true
	}
	for suffix := range t.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// ContainsAddr reports whether an address falls inside any IP pattern.
func (t *Target) ContainsAddr(addr netip.Addr) bool {
	if t == nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range t.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ContainsPrefix reports whether a range is fully contained in any IP
// pattern. A super-range of a target range does not match.
func (t *Target) ContainsPrefix(p netip.Prefix) bool {
	if t == nil {
		return false
	}
	p = p.Masked()
	for _, prefix := range t.prefixes {
		if prefix.Bits() <= p.Bits() && prefix.Contains(p.Addr()) {
			return true
		}
	}
	return false
}

// Patterns returns a sorted, human-readable pattern list for logs and
// config dumps.
func (t *Target) Patterns() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, t.Len())
	for host := range t.exact {
		out = append(out, host)
	}
	for suffix := range t.suffixes {
		out = append(out, "*."+suffix)
	}
	for _, prefix := range t.prefixes {
		out = append(out, prefix.String())
	}
	sort.Strings(out)
	return out
}
