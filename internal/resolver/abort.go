package resolver

import (
	"sync"
	"sync/atomic"

	"github.com/miekg/dns"
	"github.com/tevino/abool"
)

// abortTable tracks consecutive lookup failures per (domain, record
// type). When a pair reaches the threshold its latch flips and every
// later query for the pair short-circuits to ErrAborted without
// touching the network. Counters only ever go up within a scan.
type abortTable struct {
	threshold int

	mu      sync.Mutex
	entries map[string]*abortEntry
}

type abortEntry struct {
	failures atomic.Int64
	tripped  *abool.AtomicBool
}

func newAbortTable(threshold int) *abortTable {
	return &abortTable{
		threshold: threshold,
		entries:   make(map[string]*abortEntry),
	}
}

func abortKey(domain string, rdtype uint16) string {
	return domain + "|" + dns.TypeToString[rdtype]
}

// Aborted reports whether the latch for the pair has flipped.
func (t *abortTable) Aborted(domain string, rdtype uint16) bool {
	if t.threshold <= 0 {
		return false
	}
	t.mu.Lock()
	entry, ok := t.entries[abortKey(domain, rdtype)]
	t.mu.Unlock()
	return ok && entry.tripped.IsSet()
}

// RecordFailure counts one timeout or SERVFAIL against the pair.
// It returns true exactly once: on the increment that reaches the
// threshold, so the caller can log the trip without flooding.
func (t *abortTable) RecordFailure(domain string, rdtype uint16) bool {
	if t.threshold <= 0 {
		return false
	}
	entry := t.entry(domain, rdtype)
	if entry.failures.Add(1) >= int64(t.threshold) {
		// SetToIf makes the transition atomic: exactly one caller
		// observes the flip even when failures race.
		return entry.tripped.SetToIf(false, true)
	}
	return false
}

// Failures returns the current tally for a pair.
func (t *abortTable) Failures(domain string, rdtype uint16) int64 {
	t.mu.Lock()
	entry, ok := t.entries[abortKey(domain, rdtype)]
	t.mu.Unlock()
	if !ok {
		return 0
	}
	return entry.failures.Load()
}

func (t *abortTable) entry(domain string, rdtype uint16) *abortEntry {
	key := abortKey(domain, rdtype)
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[key]
	if !ok {
		entry = &abortEntry{tripped: abool.New()}
		t.entries[key] = entry
	}
	return entry
}
