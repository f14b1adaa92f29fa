package resolver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"

	"github.com/gobwas/glob"
	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"
)

// WildcardRecord is the cached verdict for a (domain, record type)
// pair. Immutable once computed. For wildcard domains, Answers holds
// the union of every probe answer; real resolutions matching it are
// wildcard-origin, not fresh discoveries.
type WildcardRecord struct {
	Domain   string
	Rdtype   uint16
	Wildcard bool
	Answers  map[string]struct{}
}

// Matches reports whether a resolved value is part of the wildcard
// answer set.
func (r *WildcardRecord) Matches(value string) bool {
	if r == nil || !r.Wildcard {
		return false
	}
	_, ok := r.Answers[value]
	return ok
}

// Answer is a resolution result after wildcard filtering. Wildcard
// answers are recorded for auditability but must not derive further
// events.
type Answer struct {
	Record
	Wildcard bool
}

// WildcardDetector probes domains for wildcard DNS behavior and
// memoizes the verdict per (domain, record type). Probing is
// single-flight: concurrent resolutions of descendants of the same
// domain share one probe instead of racing their own.
type WildcardDetector struct {
	exchanger Exchanger
	tests     int
	ignore    []glob.Glob
	logger    *slog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	records map[string]*WildcardRecord
}

// DetectorOption configures a WildcardDetector.
type DetectorOption func(*WildcardDetector)

// WithProbeCount sets the number of random-subdomain probes per check.
func WithProbeCount(n int) DetectorOption {
	return func(d *WildcardDetector) {
		if n > 0 {
			d.tests = n
		}
	}
}

// WithIgnoreList sets domain glob patterns that bypass detection
// entirely and are always treated as non-wildcard. Invalid patterns
// are skipped.
func WithIgnoreList(patterns []string) DetectorOption {
	return func(d *WildcardDetector) {
		for _, p := range patterns {
			if g, err := glob.Compile(p, '.'); err == nil {
				d.ignore = append(d.ignore, g)
			}
		}
	}
}

// WithDetectorLogger sets the logger.
func WithDetectorLogger(logger *slog.Logger) DetectorOption {
	return func(d *WildcardDetector) { d.logger = logger }
}

// NewWildcardDetector creates a detector probing through the given
// exchanger.
func NewWildcardDetector(exchanger Exchanger, opts ...DetectorOption) *WildcardDetector {
	d := &WildcardDetector{
		exchanger: exchanger,
		tests:     5,
		records:   make(map[string]*WildcardRecord),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// IsWildcard returns the wildcard verdict for a domain and record
// type, probing on first use. The verdict is memoized: later calls
// return the identical record without network traffic. Ignored domains
// never get a probe and are always non-wildcard.
func (d *WildcardDetector) IsWildcard(ctx context.Context, domain string, rdtype uint16) *WildcardRecord {
	if d.ignored(domain) {
		return &WildcardRecord{Domain: domain, Rdtype: rdtype}
	}

	key := domain + "|" + dns.TypeToString[rdtype]
	if rec := d.cached(key); rec != nil {
		return rec
	}

	// Single-flight per key: the first caller probes, concurrent
	// callers for the same pair block on its result.
	result, _, _ := d.group.Do(key, func() (any, error) {
		if rec := d.cached(key); rec != nil {
			return rec, nil
		}
		rec := d.probe(ctx, domain, rdtype)
		d.mu.Lock()
		d.records[key] = rec
		d.mu.Unlock()
		return rec, nil
	})
	return result.(*WildcardRecord)
}

// Filter compares resolved records against a wildcard verdict and tags
// matching entries as wildcard-origin instead of discarding them.
func (d *WildcardDetector) Filter(rec *WildcardRecord, records []Record) []Answer {
	answers := make([]Answer, 0, len(records))
	for _, r := range records {
		answers = append(answers, Answer{Record: r, Wildcard: rec.Matches(r.Value)})
	}
	return answers
}

func (d *WildcardDetector) cached(key string) *WildcardRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.records[key]
}

func (d *WildcardDetector) ignored(domain string) bool {
	for _, g := range d.ignore {
		if g.Match(domain) {
			return true
		}
	}
	return false
}

// probe issues the configured number of lookups for random, certainly
// nonexistent subdomains. The domain is wildcard iff every probe
// answered non-empty and the answer sets are mutually consistent (at
// least one record common to all of them; round-robin wildcards rotate
// answers). All-probes-failing degrades to non-wildcard with a
// warning: a false negative is preferred over stalling the scan.
func (d *WildcardDetector) probe(ctx context.Context, domain string, rdtype uint16) *WildcardRecord {
	rec := &WildcardRecord{Domain: domain, Rdtype: rdtype}

	var probeErrs error
	union := make(map[string]struct{})
	var common map[string]struct{}
	answered := 0

	for i := 0; i < d.tests; i++ {
		name := randomLabel() + "." + domain
		records, err := d.exchanger.Exchange(ctx, name, rdtype)
		if err != nil {
			probeErrs = multierror.Append(probeErrs, err)
			continue
		}
		answered++
		if len(records) == 0 {
			// A nonexistent subdomain with an empty answer means the
			// domain behaves normally. Verdict settled.
			return rec
		}

		seen := make(map[string]struct{}, len(records))
		for _, r := range records {
			seen[r.Value] = struct{}{}
			union[r.Value] = struct{}{}
		}
		if common == nil {
			common = seen
		} else {
			for v := range common {
				if _, ok := seen[v]; !ok {
					delete(common, v)
				}
			}
		}
	}

	if answered == 0 {
		d.logger.Warn("wildcard probe failed, assuming non-wildcard",
			"domain", domain,
			"rdtype", dns.TypeToString[rdtype],
			"error", probeErrs,
		)
		return rec
	}
	if answered < d.tests || len(common) == 0 {
		// Some probes hit NXDOMAIN or the answers share nothing:
		// inconsistent, so not a wildcard.
		return rec
	}

	rec.Wildcard = true
	rec.Answers = union
	d.logger.Debug("wildcard dns detected",
		"domain", domain,
		"rdtype", dns.TypeToString[rdtype],
		"answers", len(union),
	)
	return rec
}

// randomLabel returns a subdomain label that cannot collide with real
// infrastructure naming.
func randomLabel() string {
	var buf [12]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}
