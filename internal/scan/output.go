package scan

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// Output receives the record of every reported event. Writers must
// tolerate concurrent calls; the scanner serializes per writer but
// callers outside the scan loop may flush too.
type Output interface {
	// Write records one reported event.
	Write(rec model.EventRecord) error

	// Close flushes and releases the writer.
	Close() error
}

// LineWriter renders reported events as human-readable lines.
type LineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineWriter writes one formatted line per reported event.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// Write implements Output.
func (l *LineWriter) Write(rec model.EventRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := fmt.Sprintf("[%s]\t%s\tdistance=%d", rec.Type, rec.Data, rec.ScopeDistance)
	if rec.Module != "" {
		line += "\tmodule=" + rec.Module
	}
	if len(rec.Tags) > 0 {
		line += "\ttags=" + strings.Join(rec.Tags, ",")
	}
	_, err := fmt.Fprintln(l.w, line)
	return err
}

// Close implements Output.
func (l *LineWriter) Close() error { return nil }

// JSONWriter renders reported events as JSON Lines.
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriter writes one JSON object per reported event.
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

// Write implements Output.
func (j *JSONWriter) Write(rec model.EventRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(rec)
}

// Close implements Output.
func (j *JSONWriter) Close() error { return nil }
