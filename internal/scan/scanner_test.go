package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
	"github.com/AnshumanSrivastavaGit/bbot/internal/resolver"
	"github.com/AnshumanSrivastavaGit/bbot/internal/scope"
)

// fakeDNS serves canned answers keyed by name and records every
// queried name.
type fakeDNS struct {
	mu      sync.Mutex
	answers map[string][]resolver.Answer
	queried []string
}

func newFakeDNS() *fakeDNS {
	return &fakeDNS{answers: make(map[string][]resolver.Answer)}
}

func (f *fakeDNS) addAnswer(name string, wildcard bool, values ...string) {
	for _, v := range values {
		f.answers[name] = append(f.answers[name], resolver.Answer{
			Record:   resolver.Record{Value: v},
			Wildcard: wildcard,
		})
	}
}

func (f *fakeDNS) ResolveAll(_ context.Context, name string, _ ...uint16) ([]resolver.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, name)
	answers, ok := f.answers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", resolver.ErrNXDomain, name)
	}
	return answers, nil
}

func (f *fakeDNS) queriedNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.queried)
}

type fakeModule struct {
	name   string
	watch  []model.EventType
	handle func(ctx context.Context, ev *model.Event, emit EmitFunc) error
}

func (m *fakeModule) Name() string                  { return m.name }
func (m *fakeModule) WatchTypes() []model.EventType { return m.watch }
func (m *fakeModule) Handle(ctx context.Context, ev *model.Event, emit EmitFunc) error {
	return m.handle(ctx, ev, emit)
}

// collectOutput records reported events for assertions.
type collectOutput struct {
	mu      sync.Mutex
	records []model.EventRecord
}

func (o *collectOutput) Write(rec model.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
	return nil
}

func (o *collectOutput) Close() error { return nil }

func (o *collectOutput) data() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, len(o.records))
	for i, rec := range o.records {
		out[i] = rec.Data
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustTarget(t *testing.T, seeds ...string) *scope.Target {
	t.Helper()
	target, err := scope.NewTarget(seeds...)
	if err != nil {
		t.Fatalf("NewTarget(%v): %v", seeds, err)
	}
	return target
}

// graphContents returns "TYPE data" strings for every graph node.
func graphContents(s *Scanner) []string {
	var out []string
	for ev := range s.Graph().All() {
		out = append(out, string(ev.Type())+" "+ev.Data())
	}
	return out
}

// TestScanner_DistanceChain follows a CNAME chain out of scope:
// example.com (0) resolves to sub.example.com (1), which resolves to
// a.sub.example.com (2). With a search distance of 1 the grandchild is
// recorded but never resolved, and never reported.
func TestScanner_DistanceChain(t *testing.T) {
	t.Parallel()

	dns := newFakeDNS()
	dns.addAnswer("example.com", false, "sub.example.com")
	dns.addAnswer("sub.example.com", false, "a.sub.example.com")
	dns.addAnswer("a.sub.example.com", false, "192.0.2.10")

	classifier := scope.NewClassifier(mustTarget(t, "example.com"),
		scope.WithSearchDistance(1),
		scope.WithReportDistance(1),
		scope.WithDNSSearchDistance(2),
	)
	out := &collectOutput{}
	s := New("chain", classifier,
		WithDNSResolver(dns),
		WithOutputs(out),
		WithLogger(testLogger()),
	)

	if err := s.Run(context.Background(), []string{"example.com"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	contents := graphContents(s)
	if !slices.Contains(contents, "DNS_NAME a.sub.example.com") {
		t.Errorf("grandchild missing from graph: %v", contents)
	}

	queried := dns.queriedNames()
	if !slices.Contains(queried, "example.com") || !slices.Contains(queried, "sub.example.com") {
		t.Errorf("in-range names not resolved: %v", queried)
	}
	if slices.Contains(queried, "a.sub.example.com") {
		t.Errorf("grandchild past the search distance was resolved: %v", queried)
	}

	reported := out.data()
	if !slices.Contains(reported, "sub.example.com") {
		t.Errorf("distance-1 child not reported: %v", reported)
	}
	if slices.Contains(reported, "a.sub.example.com") {
		t.Errorf("distance-2 grandchild reported: %v", reported)
	}
}

// TestScanner_WildcardAnswersDeriveNothing checks that wildcard-origin
// answers enter the graph tagged but produce no further lookups.
func TestScanner_WildcardAnswersDeriveNothing(t *testing.T) {
	t.Parallel()

	dns := newFakeDNS()
	dns.addAnswer("www.wild.example.com", true, "192.0.2.4")

	classifier := scope.NewClassifier(mustTarget(t, "www.wild.example.com"),
		scope.WithSearchDistance(3),
		scope.WithReportDistance(3),
		scope.WithDNSSearchDistance(3),
	)
	s := New("wildcard", classifier,
		WithDNSResolver(dns),
		WithLogger(testLogger()),
	)

	if err := s.Run(context.Background(), []string{"www.wild.example.com"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var ip *model.Event
	for ev := range s.Graph().All() {
		if ev.Type() == model.EventTypeIPAddress && ev.Data() == "192.0.2.4" {
			ip = ev
		}
	}
	if ip == nil {
		t.Fatalf("wildcard answer missing from graph: %v", graphContents(s))
	}
	if !ip.HasTag(model.TagWildcard) {
		t.Error("wildcard answer not tagged")
	}
	if queried := dns.queriedNames(); slices.Contains(queried, "192.0.2.4") {
		t.Errorf("wildcard-origin event was resolved: %v", queried)
	}
}

func TestScanner_ModuleDispatchAndHostDerivation(t *testing.T) {
	t.Parallel()

	urls := &fakeModule{
		name:  "urls",
		watch: []model.EventType{model.EventTypeDNSName},
		handle: func(_ context.Context, ev *model.Event, emit EmitFunc) error {
			if ev.Data() != "example.com" {
				return nil
			}
			child, err := model.NewEvent(model.EventTypeURL, "http://app.example.com/login", ev, "urls")
			if err != nil {
				return err
			}
			emit(child)
			return nil
		},
	}

	classifier := scope.NewClassifier(mustTarget(t, "example.com"),
		scope.WithSearchDistance(2),
		scope.WithReportDistance(2),
	)
	s := New("modules", classifier,
		WithModules(urls),
		WithLogger(testLogger()),
	)

	if err := s.Run(context.Background(), []string{"example.com"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	contents := graphContents(s)
	if !slices.Contains(contents, "URL http://app.example.com/login") {
		t.Errorf("module discovery missing: %v", contents)
	}
	if !slices.Contains(contents, "DNS_NAME app.example.com") {
		t.Errorf("derived host missing: %v", contents)
	}
}

func TestScanner_ModuleErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	broken := &fakeModule{
		name:  "broken",
		watch: []model.EventType{model.EventTypeDNSName},
		handle: func(context.Context, *model.Event, EmitFunc) error {
			return errors.New("handler exploded")
		},
	}

	classifier := scope.NewClassifier(mustTarget(t, "example.com"))
	s := New("errors", classifier, WithModules(broken), WithLogger(testLogger()))

	if err := s.Run(context.Background(), []string{"example.com"}); err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if !slices.Contains(graphContents(s), "DNS_NAME example.com") {
		t.Error("event lost after module failure")
	}
}

func TestScanner_BlacklistDropsEvents(t *testing.T) {
	t.Parallel()

	dns := newFakeDNS()
	dns.addAnswer("example.com", false, "internal.example.com")

	classifier := scope.NewClassifier(mustTarget(t, "example.com"),
		scope.WithBlacklist(mustTarget(t, "internal.example.com")),
		scope.WithSearchDistance(2),
		scope.WithDNSSearchDistance(2),
	)
	s := New("blacklist", classifier,
		WithDNSResolver(dns),
		WithLogger(testLogger()),
	)

	if err := s.Run(context.Background(), []string{"example.com"}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if slices.Contains(graphContents(s), "DNS_NAME internal.example.com") {
		t.Error("blacklisted host entered the graph")
	}
}

func TestScanner_Run_NoTargets(t *testing.T) {
	t.Parallel()

	classifier := scope.NewClassifier(mustTarget(t, "example.com"))
	s := New("empty", classifier, WithLogger(testLogger()))

	err := s.Run(context.Background(), []string{"not a target", ""})
	if !errors.Is(err, ErrNoTargets) {
		t.Errorf("Run() error = %v, want ErrNoTargets", err)
	}
}

// TestScanner_Cancellation stops a scan whose module blocks; partial
// results stay in the graph.
func TestScanner_Cancellation(t *testing.T) {
	t.Parallel()

	stuck := &fakeModule{
		name:  "stuck",
		watch: []model.EventType{model.EventTypeDNSName},
		handle: func(ctx context.Context, _ *model.Event, _ EmitFunc) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}

	classifier := scope.NewClassifier(mustTarget(t, "example.com"))
	s := New("cancel", classifier, WithModules(stuck), WithLogger(testLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := s.Run(ctx, []string{"example.com"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not propagate promptly")
	}
	if !slices.Contains(graphContents(s), "DNS_NAME example.com") {
		t.Error("partial results discarded on cancellation")
	}
}
