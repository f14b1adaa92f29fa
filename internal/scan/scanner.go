package scan

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/miekg/dns"
	"github.com/tevino/abool"
	"golang.org/x/sync/errgroup"

	"github.com/AnshumanSrivastavaGit/bbot/internal/graph"
	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
	"github.com/AnshumanSrivastavaGit/bbot/internal/resolver"
	"github.com/AnshumanSrivastavaGit/bbot/internal/scope"
)

// ErrNoTargets is returned when a scan starts without a single usable
// target.
var ErrNoTargets = errors.New("scan: no usable targets")

// DNSResolver is the slice of the resolver the scanner consumes.
type DNSResolver interface {
	ResolveAll(ctx context.Context, name string, rdtypes ...uint16) ([]resolver.Answer, error)
}

// Scanner drives one scan over its event graph. Events flow in through
// submit, are classified and inserted on general workers, resolved on
// DNS workers, and fan out into module dispatch; the scan ends when
// every submitted task has finished.
type Scanner struct {
	name       string
	classifier *scope.Classifier
	graph      *graph.Graph
	dns        DNSResolver
	modules    []Module
	watchers   map[model.EventType][]Module
	outputs    []Output
	logger     *slog.Logger
	stats      *Stats

	maxThreads    int
	maxDNSThreads int

	tasks    *queue[*model.Event]
	dnsTasks *queue[*model.Event]
	pending  *pending
	stopping *abool.AtomicBool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithModules registers discovery modules.
func WithModules(modules ...Module) Option {
	return func(s *Scanner) {
		s.modules = append(s.modules, modules...)
	}
}

// WithOutputs registers report writers. The scanner writes to them but
// does not close them.
func WithOutputs(outputs ...Output) Option {
	return func(s *Scanner) {
		s.outputs = append(s.outputs, outputs...)
	}
}

// WithDNSResolver wires the DNS pool. Without one, resolvable events
// are classified and reported but never resolved.
func WithDNSResolver(dns DNSResolver) Option {
	return func(s *Scanner) {
		s.dns = dns
	}
}

// WithMaxThreads caps the general worker pool.
func WithMaxThreads(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxThreads = n
		}
	}
}

// WithMaxDNSThreads caps the DNS worker pool.
func WithMaxDNSThreads(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.maxDNSThreads = n
		}
	}
}

// WithLogger sets the scan logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithStats sets the counter set shared across scan components.
func WithStats(stats *Stats) Option {
	return func(s *Scanner) {
		s.stats = stats
	}
}

// New creates a Scanner rooted at a fresh SCAN event named name.
func New(name string, classifier *scope.Classifier, opts ...Option) *Scanner {
	s := &Scanner{
		name:          name,
		classifier:    classifier,
		maxThreads:    25,
		maxDNSThreads: 100,
		tasks:         newQueue[*model.Event](),
		dnsTasks:      newQueue[*model.Event](),
		pending:       newPending(),
		stopping:      abool.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.stats == nil {
		s.stats = NewStats()
	}

	s.graph = graph.New(model.NewScanEvent(name))
	s.watchers = make(map[model.EventType][]Module)
	for _, m := range s.modules {
		for _, typ := range m.WatchTypes() {
			s.watchers[typ] = append(s.watchers[typ], m)
		}
	}
	return s
}

// Graph returns the event graph. Safe to read concurrently with a
// running scan; complete once Run returns.
func (s *Scanner) Graph() *graph.Graph {
	return s.graph
}

// Stats returns the scan's counter set.
func (s *Scanner) Stats() *Stats {
	return s.stats
}

// Run seeds the scan with targets and processes events until both
// queues drain or the context is cancelled. Partial results stay in
// the graph either way.
func (s *Scanner) Run(ctx context.Context, targets []string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var seedErrs error
	seeded := 0
	for _, target := range targets {
		ev, err := model.MakeEvent(target, s.graph.Root(), "target")
		if err != nil {
			seedErrs = multierror.Append(seedErrs, err)
			continue
		}
		ev.AddTag(model.TagTarget)
		s.submit(ev)
		seeded++
	}
	if seeded == 0 {
		if seedErrs != nil {
			return multierror.Append(ErrNoTargets, seedErrs)
		}
		return ErrNoTargets
	}
	s.logger.Info("scan started", "scan", s.name, "targets", seeded)

	var g errgroup.Group
	for i := 0; i < s.maxThreads; i++ {
		g.Go(func() error {
			s.worker(ctx)
			return nil
		})
	}
	for i := 0; i < s.maxDNSThreads; i++ {
		g.Go(func() error {
			s.dnsWorker(ctx)
			return nil
		})
	}

	go func() {
		select {
		case <-s.pending.drained():
		case <-ctx.Done():
		}
		s.stopping.Set()
		s.tasks.close()
		s.dnsTasks.close()
	}()

	_ = g.Wait()
	s.logger.Info("scan finished", "scan", s.name, "events", s.graph.Len())
	return ctx.Err()
}

// submit queues an event for processing. Events arriving after the
// scan started stopping are dropped.
func (s *Scanner) submit(ev *model.Event) {
	if s.stopping.IsSet() {
		return
	}
	s.stats.EventSubmitted(ev.Type())
	s.pending.add()
	s.tasks.push(ev)
}

func (s *Scanner) worker(ctx context.Context) {
	for {
		ev, ok := s.tasks.pop(ctx)
		if !ok {
			return
		}
		s.process(ctx, ev)
	}
}

func (s *Scanner) dnsWorker(ctx context.Context) {
	for {
		ev, ok := s.dnsTasks.pop(ctx)
		if !ok {
			return
		}
		s.resolve(ctx, ev)
	}
}

// process runs the full per-event pipeline: blacklist, classification,
// graph insertion, reporting, DNS scheduling, host derivation and
// module dispatch. Children are always submitted before the task is
// marked done so the drain condition cannot fire mid-lineage.
func (s *Scanner) process(ctx context.Context, ev *model.Event) {
	defer s.pending.done()

	if s.classifier.Blacklisted(ev) {
		s.stats.EventDropped("blacklisted")
		s.logger.Debug("event blacklisted", "event", ev.String())
		return
	}

	verdict := s.classifier.Stamp(ev)

	canonical, inserted := s.graph.Insert(ev)
	if !inserted {
		// Already known; Insert recorded the additional parent edge.
		s.stats.EventDuplicate()
		s.logger.Debug("duplicate event", "event", canonical.String())
		return
	}
	s.stats.EventInserted()
	s.logger.Debug("event",
		"event", ev.String(),
		"distance", verdict.Distance,
		"module", ev.Module(),
	)

	if verdict.ShouldReport {
		s.report(ev)
	}

	// Wildcard-origin values are recorded for audit but derive nothing:
	// each one is a synthetic answer of its parent's wildcard zone.
	if ev.HasTag(model.TagWildcard) {
		return
	}

	if s.dns != nil && ev.Type().IsResolvable() &&
		(verdict.ShouldProcess || s.classifier.ShouldEmitDNSChildren(verdict.Distance)) {
		s.pending.add()
		s.dnsTasks.push(ev)
	}

	if !verdict.ShouldProcess {
		return
	}

	s.deriveHost(ev)

	for _, m := range s.watchers[ev.Type()] {
		if err := m.Handle(ctx, ev, s.submit); err != nil {
			s.stats.ModuleError(m.Name())
			s.logger.Warn("module failed",
				"module", m.Name(),
				"event", ev.String(),
				"error", err,
			)
		}
	}
}

// deriveHost spawns the hostname behind URL and email events as its
// own DNS_NAME or IP_ADDRESS child.
func (s *Scanner) deriveHost(ev *model.Event) {
	if ev.Type().IsHostType() {
		return
	}
	host := ev.Host()
	if host == "" || s.classifier.BlacklistedHost(host) {
		return
	}
	child, err := model.MakeEvent(host, ev, "host")
	if err != nil {
		s.logger.Debug("host derivation failed", "event", ev.String(), "error", err)
		return
	}
	s.submit(child)
}

// resolve runs one event through the DNS pool and feeds answers back
// as child events, bounded by the DNS search distance.
func (s *Scanner) resolve(ctx context.Context, ev *model.Event) {
	defer s.pending.done()

	var rdtypes []uint16
	switch ev.Type() {
	case model.EventTypeDNSName:
		rdtypes = []uint16{dns.TypeA, dns.TypeAAAA}
	case model.EventTypeIPAddress:
		rdtypes = []uint16{dns.TypePTR}
	default:
		return
	}

	answers, err := s.dns.ResolveAll(ctx, ev.Data(), rdtypes...)
	if err != nil && !errors.Is(err, resolver.ErrNXDomain) && !errors.Is(err, resolver.ErrAborted) {
		s.logger.Debug("resolution failed", "event", ev.String(), "error", err)
	}
	if len(answers) == 0 {
		ev.AddTag(model.TagUnresolved)
		return
	}
	ev.AddTag(model.TagResolved)

	if !s.classifier.ShouldEmitDNSChildren(ev.ScopeDistance()) {
		return
	}
	for _, answer := range answers {
		child, err := model.MakeEvent(answer.Value, ev, "dns")
		if err != nil {
			continue
		}
		if s.classifier.BlacklistedHost(child.Host()) {
			continue
		}
		if answer.Wildcard {
			child.AddTag(model.TagWildcard)
		}
		s.submit(child)
	}
}

// report writes the event to every output.
func (s *Scanner) report(ev *model.Event) {
	s.stats.EventReported()
	rec := ev.Record()
	for _, out := range s.outputs {
		if err := out.Write(rec); err != nil {
			s.logger.Warn("output write failed", "event", ev.String(), "error", err)
		}
	}
}
