package scan

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// Stats collects scan counters. The underlying set is shared with the
// DNS resolver so one dump covers the whole scan.
type Stats struct {
	set *metrics.Set
}

// NewStats creates an empty counter set.
func NewStats() *Stats {
	return &Stats{set: metrics.NewSet()}
}

// Set exposes the underlying metrics set for components that register
// their own counters.
func (s *Stats) Set() *metrics.Set {
	return s.set
}

// EventSubmitted counts an event entering the queues, by type.
func (s *Stats) EventSubmitted(typ model.EventType) {
	s.set.GetOrCreateCounter(fmt.Sprintf(`bbot_events_submitted_total{type=%q}`, typ)).Inc()
}

// EventInserted counts an event accepted into the graph.
func (s *Stats) EventInserted() {
	s.set.GetOrCreateCounter(`bbot_events_inserted_total`).Inc()
}

// EventDuplicate counts an event deduplicated against the graph.
func (s *Stats) EventDuplicate() {
	s.set.GetOrCreateCounter(`bbot_events_duplicate_total`).Inc()
}

// EventReported counts an event written to the outputs.
func (s *Stats) EventReported() {
	s.set.GetOrCreateCounter(`bbot_events_reported_total`).Inc()
}

// EventDropped counts an event discarded before insertion.
func (s *Stats) EventDropped(reason string) {
	s.set.GetOrCreateCounter(fmt.Sprintf(`bbot_events_dropped_total{reason=%q}`, reason)).Inc()
}

// ModuleError counts a module handler failure.
func (s *Stats) ModuleError(module string) {
	s.set.GetOrCreateCounter(fmt.Sprintf(`bbot_module_errors_total{module=%q}`, module)).Inc()
}

// WritePrometheus dumps all counters in Prometheus text format.
func (s *Stats) WritePrometheus(w io.Writer) {
	s.set.WritePrometheus(w)
}
