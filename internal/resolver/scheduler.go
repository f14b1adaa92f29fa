package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/bluele/gcache"
	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// ptrEmbeddedIP matches PTR names that merely embed the queried
// address (1-2-3-4.dynamic.example.com and the dotted variant). Such
// names carry no discovery signal.
var ptrEmbeddedIP = regexp.MustCompile(`(^|[.-])\d{1,3}[.-]\d{1,3}[.-]\d{1,3}[.-]\d{1,3}([.-]|$)`)

// Resolver is the resolution scheduler: it runs lookups under its own
// concurrency cap, independent of the general worker pool, with
// per-attempt timeouts, bounded retries, an answer cache, wildcard
// filtering and per-domain circuit breaking.
type Resolver struct {
	exchanger Exchanger
	detector  *WildcardDetector
	aborts    *abortTable

	retries    int
	filterPTRs bool
	slots      chan struct{}
	limiter    *rate.Limiter
	cache      gcache.Cache
	logger     *slog.Logger
	metrics    *metrics.Set
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRetries sets the retry count for transient failures (timeout or
// SERVFAIL). NXDOMAIN is terminal and never retried.
func WithRetries(n int) Option {
	return func(r *Resolver) {
		if n >= 0 {
			r.retries = n
		}
	}
}

// WithMaxConcurrent caps in-flight lookups across the whole scan.
func WithMaxConcurrent(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.slots = make(chan struct{}, n)
		}
	}
}

// WithRateLimit caps outgoing queries per second. Zero disables.
func WithRateLimit(qps int) Option {
	return func(r *Resolver) {
		if qps > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(qps), qps)
		}
	}
}

// WithCacheSize sets the answer cache capacity. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.cache = gcache.New(n).LRU().Build()
		}
	}
}

// WithAbortThreshold sets the consecutive-failure count that circuit
// breaks a (domain, record type) pair. Zero disables.
func WithAbortThreshold(n int) Option {
	return func(r *Resolver) { r.aborts = newAbortTable(n) }
}

// WithPTRFilter drops PTR answers that embed the queried address.
func WithPTRFilter(enabled bool) Option {
	return func(r *Resolver) { r.filterPTRs = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

// WithMetrics attaches a metrics set for query counters.
func WithMetrics(set *metrics.Set) Option {
	return func(r *Resolver) { r.metrics = set }
}

// New creates a Resolver issuing queries through the exchanger and
// consulting the detector around every real lookup.
func New(exchanger Exchanger, detector *WildcardDetector, opts ...Option) *Resolver {
	r := &Resolver{
		exchanger: exchanger,
		detector:  detector,
		aborts:    newAbortTable(0),
		retries:   1,
		slots:     make(chan struct{}, 100),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Resolve looks up one record type for a name, filtered through
// wildcard detection. The error is one of the package sentinels,
// wrapped with query context.
func (r *Resolver) Resolve(ctx context.Context, name string, rdtype uint16) ([]Answer, error) {
	domain := parentDomain(name)
	if r.aborts.Aborted(domain, rdtype) {
		// The trip was logged once at the transition; stay quiet here.
		r.counter("bbot_dns_aborted_total", rdtype).Inc()
		return nil, fmt.Errorf("%w: %s", ErrAborted, domain)
	}

	cacheKey := name + "|" + dns.TypeToString[rdtype]
	if r.cache != nil {
		if cached, err := r.cache.Get(cacheKey); err == nil {
			r.counter("bbot_dns_cache_hits_total", rdtype).Inc()
			return cached.([]Answer), nil
		}
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	wc := r.wildcardRecord(ctx, domain, rdtype)

	records, err := r.lookup(ctx, name, domain, rdtype)
	if err != nil {
		return nil, err
	}
	if rdtype == dns.TypePTR && r.filterPTRs {
		records = dropEmbeddedIPs(records)
	}

	answers := r.detector.Filter(wc, records)
	if r.cache != nil {
		_ = r.cache.Set(cacheKey, answers)
	}
	return answers, nil
}

// ResolveAll looks up several record types, combining the answers.
// Failures are aggregated; answers from successful types are returned
// alongside the combined error.
func (r *Resolver) ResolveAll(ctx context.Context, name string, rdtypes ...uint16) ([]Answer, error) {
	var answers []Answer
	var errs error
	for _, rdtype := range rdtypes {
		got, err := r.Resolve(ctx, name, rdtype)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		answers = append(answers, got...)
	}
	return answers, errs
}

// lookup runs the attempt loop: transient failures are retried up to
// the configured count, then recorded against the abort counter.
func (r *Resolver) lookup(ctx context.Context, name, domain string, rdtype uint16) ([]Record, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.counter("bbot_dns_queries_total", rdtype).Inc()

		records, err := r.exchanger.Exchange(ctx, name, rdtype)
		if err == nil {
			return records, nil
		}
		if errors.Is(err, ErrNXDomain) {
			// A valid answer: the name does not exist. No retry, no
			// abort accounting.
			return nil, err
		}
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrServfail) {
			return nil, err
		}
		lastErr = err
	}

	r.counter("bbot_dns_failures_total", rdtype).Inc()
	if r.aborts.RecordFailure(domain, rdtype) {
		r.logger.Warn("dns circuit breaker tripped, skipping further queries",
			"domain", domain,
			"rdtype", dns.TypeToString[rdtype],
			"failures", r.aborts.Failures(domain, rdtype),
		)
	}
	return nil, lastErr
}

// wildcardRecord consults the detector for the queried name's parent
// domain. PTR queries carry reversed addresses, not subdomains, and
// public suffixes behave like wildcards by construction; neither is
// probed.
func (r *Resolver) wildcardRecord(ctx context.Context, domain string, rdtype uint16) *WildcardRecord {
	if rdtype == dns.TypePTR {
		return &WildcardRecord{Domain: domain, Rdtype: rdtype}
	}
	if suffix, _ := publicsuffix.PublicSuffix(domain); suffix == domain {
		return &WildcardRecord{Domain: domain, Rdtype: rdtype}
	}
	return r.detector.IsWildcard(ctx, domain, rdtype)
}

func (r *Resolver) counter(name string, rdtype uint16) *metrics.Counter {
	if r.metrics == nil {
		return metrics.GetOrCreateCounter(name)
	}
	return r.metrics.GetOrCreateCounter(fmt.Sprintf(`%s{rdtype=%q}`, name, dns.TypeToString[rdtype]))
}

// parentDomain strips the leftmost label: the wildcard and abort
// domain of www.example.com is example.com. Single-label names are
// their own domain.
func parentDomain(name string) string {
	if idx := strings.IndexByte(name, '.'); idx >= 0 && idx+1 < len(name) {
		return name[idx+1:]
	}
	return name
}

func dropEmbeddedIPs(records []Record) []Record {
	kept := records[:0]
	for _, rec := range records {
		if ptrEmbeddedIP.MatchString(rec.Value) {
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}
