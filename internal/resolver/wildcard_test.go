package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/miekg/dns"
)

// TestWildcardDetector_Idempotent pins the memoization contract:
// the second check returns the identical record and performs no
// second probe.
func TestWildcardDetector_Idempotent(t *testing.T) {
	t.Parallel()

	ex := newFakeExchanger()
	ex.defaultFn = func(name string, _ uint16) ([]Record, error) {
		if strings.HasSuffix(name, ".wild.example.com") {
			return []Record{{Rdtype: dns.TypeA, Value: "1.2.3.4"}}, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrNXDomain, name)
	}

	d := NewWildcardDetector(ex, WithProbeCount(5), WithDetectorLogger(quietLogger()))

	first := d.IsWildcard(context.Background(), "wild.example.com", dns.TypeA)
	if !first.Wildcard {
		t.Fatal("expected wildcard verdict")
	}
	if ex.calls.Load() != 5 {
		t.Fatalf("expected 5 probes, got %d", ex.calls.Load())
	}

	second := d.IsWildcard(context.Background(), "wild.example.com", dns.TypeA)
	if second != first {
		t.Error("expected the identical cached record")
	}
	if ex.calls.Load() != 5 {
		t.Errorf("expected no further probes, got %d calls", ex.calls.Load())
	}
}

func TestWildcardDetector_Verdicts(t *testing.T) {
	t.Parallel()

	t.Run("nxdomain probes mean non-wildcard", func(t *testing.T) {
		t.Parallel()
		ex := newFakeExchanger()
		d := NewWildcardDetector(ex, WithDetectorLogger(quietLogger()))
		if rec := d.IsWildcard(context.Background(), "example.com", dns.TypeA); rec.Wildcard {
			t.Error("expected non-wildcard for nxdomain probes")
		}
	})

	t.Run("empty probe answer means non-wildcard", func(t *testing.T) {
		t.Parallel()
		ex := newFakeExchanger()
		ex.defaultFn = func(string, uint16) ([]Record, error) {
			return nil, nil
		}
		d := NewWildcardDetector(ex, WithDetectorLogger(quietLogger()))
		if rec := d.IsWildcard(context.Background(), "example.com", dns.TypeA); rec.Wildcard {
			t.Error("expected non-wildcard for empty probe answers")
		}
	})

	t.Run("rotating answers with a common record are wildcard", func(t *testing.T) {
		t.Parallel()
		n := 0
		ex := newFakeExchanger()
		ex.defaultFn = func(string, uint16) ([]Record, error) {
			n++
			return []Record{
				{Rdtype: dns.TypeA, Value: "1.2.3.4"},
				{Rdtype: dns.TypeA, Value: fmt.Sprintf("10.0.0.%d", n)},
			}, nil
		}
		d := NewWildcardDetector(ex, WithDetectorLogger(quietLogger()))
		rec := d.IsWildcard(context.Background(), "cdn.example.com", dns.TypeA)
		if !rec.Wildcard {
			t.Fatal("expected wildcard verdict for answers sharing a common record")
		}
		if !rec.Matches("1.2.3.4") {
			t.Error("expected the common record in the answer set")
		}
		if !rec.Matches("10.0.0.1") {
			t.Error("expected the union cached, including rotating records")
		}
	})

	t.Run("disjoint answers are not wildcard", func(t *testing.T) {
		t.Parallel()
		n := 0
		ex := newFakeExchanger()
		ex.defaultFn = func(string, uint16) ([]Record, error) {
			n++
			return []Record{{Rdtype: dns.TypeA, Value: fmt.Sprintf("10.0.0.%d", n)}}, nil
		}
		d := NewWildcardDetector(ex, WithDetectorLogger(quietLogger()))
		if rec := d.IsWildcard(context.Background(), "example.com", dns.TypeA); rec.Wildcard {
			t.Error("expected non-wildcard for mutually inconsistent answers")
		}
	})

	t.Run("all probes failing degrades to non-wildcard", func(t *testing.T) {
		t.Parallel()
		ex := newFakeExchanger()
		ex.defaultFn = func(name string, _ uint16) ([]Record, error) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, name)
		}
		d := NewWildcardDetector(ex, WithDetectorLogger(quietLogger()))
		if rec := d.IsWildcard(context.Background(), "dark.example.com", dns.TypeA); rec.Wildcard {
			t.Error("expected the failure case to assume non-wildcard")
		}
	})
}

func TestWildcardDetector_IgnoreList(t *testing.T) {
	t.Parallel()

	ex := newFakeExchanger()
	d := NewWildcardDetector(ex,
		WithIgnoreList([]string{"*.ignored.example.com", "static.example.com"}),
		WithDetectorLogger(quietLogger()),
	)

	rec := d.IsWildcard(context.Background(), "cdn.ignored.example.com", dns.TypeA)
	if rec.Wildcard {
		t.Error("ignored domains are always non-wildcard")
	}
	if ex.calls.Load() != 0 {
		t.Errorf("ignored domains must not be probed, got %d calls", ex.calls.Load())
	}

	if rec := d.IsWildcard(context.Background(), "static.example.com", dns.TypeA); rec.Wildcard || ex.calls.Load() != 0 {
		t.Error("exact ignore entries must bypass probing")
	}
}

// TestWildcardDetector_SingleFlight drives concurrent checks for the
// same pair and asserts that only one probe run hits the network.
func TestWildcardDetector_SingleFlight(t *testing.T) {
	t.Parallel()

	const tests = 5

	ex := newFakeExchanger()
	ex.defaultFn = func(string, uint16) ([]Record, error) {
		return []Record{{Rdtype: dns.TypeA, Value: "1.2.3.4"}}, nil
	}
	d := NewWildcardDetector(ex, WithProbeCount(tests), WithDetectorLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := d.IsWildcard(context.Background(), "wild.example.com", dns.TypeA)
			if !rec.Wildcard {
				t.Error("expected wildcard verdict")
			}
		}()
	}
	wg.Wait()

	if got := ex.calls.Load(); got != tests {
		t.Errorf("expected exactly %d probes across all callers, got %d", tests, got)
	}
}

func TestWildcardDetector_PerRecordType(t *testing.T) {
	t.Parallel()

	ex := newFakeExchanger()
	ex.defaultFn = func(_ string, rdtype uint16) ([]Record, error) {
		if rdtype == dns.TypeA {
			return []Record{{Rdtype: dns.TypeA, Value: "1.2.3.4"}}, nil
		}
		return nil, fmt.Errorf("%w: no AAAA", ErrNXDomain)
	}
	d := NewWildcardDetector(ex, WithDetectorLogger(quietLogger()))

	if rec := d.IsWildcard(context.Background(), "wild.example.com", dns.TypeA); !rec.Wildcard {
		t.Error("expected A wildcard")
	}
	if rec := d.IsWildcard(context.Background(), "wild.example.com", dns.TypeAAAA); rec.Wildcard {
		t.Error("expected AAAA verdict tracked separately")
	}
}
