package model

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		typ      EventType
		raw      string
		wantData string
		wantHost string
		wantErr  error
	}{
		{
			name:     "DNS name normalized",
			typ:      EventTypeDNSName,
			raw:      "WWW.Example.COM.",
			wantData: "www.example.com",
			wantHost: "www.example.com",
		},
		{
			name:     "IP address",
			typ:      EventTypeIPAddress,
			raw:      "192.0.2.1",
			wantData: "192.0.2.1",
			wantHost: "192.0.2.1",
		},
		{
			name:     "IP range masks host bits",
			typ:      EventTypeIPRange,
			raw:      "192.0.2.77/24",
			wantData: "192.0.2.0/24",
			wantHost: "",
		},
		{
			name:     "email keeps domain as host",
			typ:      EventTypeEmailAddress,
			raw:      "Admin@Example.com",
			wantData: "admin@example.com",
			wantHost: "example.com",
		},
		{
			name:     "URL extracts host",
			typ:      EventTypeURL,
			raw:      "https://www.example.com:8443/login#top",
			wantData: "https://www.example.com:8443/login",
			wantHost: "www.example.com",
		},
		{
			name:    "invalid DNS name",
			typ:     EventTypeDNSName,
			raw:     "not a hostname",
			wantErr: ErrInvalidEventData,
		},
		{
			name:    "unknown type",
			typ:     EventType("BOGUS"),
			raw:     "whatever",
			wantErr: ErrUnknownEventType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ev, err := NewEvent(tt.typ, tt.raw, nil, "test")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Data() != tt.wantData {
				t.Errorf("expected data %q, got %q", tt.wantData, ev.Data())
			}
			if ev.Host() != tt.wantHost {
				t.Errorf("expected host %q, got %q", tt.wantHost, ev.Host())
			}
			if ev.Module() != "test" {
				t.Errorf("expected module test, got %q", ev.Module())
			}
		})
	}
}

func TestEvent_ID(t *testing.T) {
	t.Parallel()

	t.Run("same normalized value yields same ID", func(t *testing.T) {
		t.Parallel()
		a, err := NewEvent(EventTypeDNSName, "www.example.com", nil, "a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := NewEvent(EventTypeDNSName, "WWW.EXAMPLE.COM.", nil, "b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a.ID() != b.ID() {
			t.Errorf("expected equal IDs, got %s and %s", a.ID(), b.ID())
		}
	})

	t.Run("type participates in identity", func(t *testing.T) {
		t.Parallel()
		name, _ := NewEvent(EventTypeDNSName, "example.com", nil, "a")
		email, _ := NewEvent(EventTypeEmailAddress, "user@example.com", nil, "a")
		if name.ID() == email.ID() {
			t.Error("expected different IDs for different types")
		}
	})

	t.Run("ID has TYPE:digest shape", func(t *testing.T) {
		t.Parallel()
		ev, _ := NewEvent(EventTypeDNSName, "example.com", nil, "a")
		if !strings.HasPrefix(ev.ID(), "DNS_NAME:") {
			t.Errorf("expected DNS_NAME: prefix, got %s", ev.ID())
		}
		if len(ev.ID()) != len("DNS_NAME:")+40 {
			t.Errorf("expected 40 hex digest characters, got %s", ev.ID())
		}
	})
}

func TestEvent_ScopeDistance(t *testing.T) {
	t.Parallel()

	t.Run("unclassified events report DistanceUnknown", func(t *testing.T) {
		t.Parallel()
		ev, _ := NewEvent(EventTypeDNSName, "example.com", nil, "test")
		if got := ev.ScopeDistance(); got != DistanceUnknown {
			t.Errorf("expected DistanceUnknown, got %d", got)
		}
		if ev.InScope() {
			t.Error("expected unclassified event to be out of scope")
		}
	})

	t.Run("first stamp wins", func(t *testing.T) {
		t.Parallel()
		ev, _ := NewEvent(EventTypeDNSName, "example.com", nil, "test")
		ev.SetScopeDistance(2)
		ev.SetScopeDistance(5)
		if got := ev.ScopeDistance(); got != 2 {
			t.Errorf("expected distance 2, got %d", got)
		}
	})

	t.Run("distance zero tags in-scope", func(t *testing.T) {
		t.Parallel()
		ev, _ := NewEvent(EventTypeDNSName, "example.com", nil, "test")
		ev.SetScopeDistance(0)
		if !ev.InScope() {
			t.Error("expected event to be in scope")
		}
		if !ev.HasTag(TagInScope) {
			t.Error("expected in-scope tag")
		}
	})
}

func TestEvent_SpiderState(t *testing.T) {
	t.Parallel()

	t.Run("children inherit spider state", func(t *testing.T) {
		t.Parallel()
		parent, _ := NewEvent(EventTypeURL, "https://example.com/a/b", nil, "test")
		parent.SetSpiderState(2, 2)

		child, err := NewEvent(EventTypeDNSName, "cdn.example.com", parent, "excavate")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := child.LinkDistance(); got != 2 {
			t.Errorf("expected inherited link distance 2, got %d", got)
		}
		if got := child.SpiderDepth(); got != 2 {
			t.Errorf("expected inherited spider depth 2, got %d", got)
		}
	})

	t.Run("stamp is one-shot", func(t *testing.T) {
		t.Parallel()
		ev, _ := NewEvent(EventTypeURL, "https://example.com/", nil, "test")
		ev.SetSpiderState(1, 3)
		ev.SetSpiderState(9, 9)
		if ev.LinkDistance() != 1 || ev.SpiderDepth() != 3 {
			t.Errorf("expected state (1,3), got (%d,%d)", ev.LinkDistance(), ev.SpiderDepth())
		}
	})
}

func TestEvent_Tags(t *testing.T) {
	t.Parallel()

	ev, _ := NewEvent(EventTypeDNSName, "example.com", nil, "test")
	ev.AddTag(TagResolved)
	ev.AddTags("a-record", "cname-record", "")

	if !ev.Resolved() {
		t.Error("expected event to be resolved")
	}
	if !ev.HasTag("a-record") {
		t.Error("expected a-record tag")
	}
	if ev.HasTag("") {
		t.Error("expected empty tag to be ignored")
	}

	want := []string{"a-record", "cname-record", TagResolved}
	got := ev.Tags()
	if len(got) != len(want) {
		t.Fatalf("expected %d tags, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected tag %q at %d, got %q", want[i], i, got[i])
		}
	}
}

func TestEvent_TagsConcurrent(t *testing.T) {
	t.Parallel()

	ev, _ := NewEvent(EventTypeDNSName, "example.com", nil, "test")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev.AddTag(TagResolved)
			_ = ev.Tags()
			_ = ev.HasTag(TagResolved)
		}()
	}
	wg.Wait()

	if !ev.HasTag(TagResolved) {
		t.Error("expected resolved tag after concurrent writes")
	}
}

func TestNewScanEvent(t *testing.T) {
	t.Parallel()

	scan := NewScanEvent("nightly")
	if scan.Type() != EventTypeScan {
		t.Errorf("expected SCAN type, got %s", scan.Type())
	}
	if scan.ScopeDistance() != 0 {
		t.Errorf("expected scan root at distance 0, got %d", scan.ScopeDistance())
	}
	if scan.Parent() != nil {
		t.Error("expected scan root to have no parent")
	}
	if scan.ParentID() != "" {
		t.Error("expected empty parent ID")
	}
}

func TestEvent_Record(t *testing.T) {
	t.Parallel()

	parent := NewScanEvent("test")
	ev, err := NewEvent(EventTypeURL, "https://example.com/login", parent, "spider")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ev.SetScopeDistance(1)
	ev.AddTag(TagSpiderDanger)

	rec := ev.Record()
	if rec.ID != ev.ID() {
		t.Errorf("expected ID %s, got %s", ev.ID(), rec.ID)
	}
	if rec.Type != "URL" {
		t.Errorf("expected type URL, got %s", rec.Type)
	}
	if rec.Host != "example.com" {
		t.Errorf("expected host example.com, got %s", rec.Host)
	}
	if rec.Port != 443 {
		t.Errorf("expected port 443, got %d", rec.Port)
	}
	if rec.ScopeDistance != 1 {
		t.Errorf("expected distance 1, got %d", rec.ScopeDistance)
	}
	if rec.ParentID != parent.ID() {
		t.Errorf("expected parent %s, got %s", parent.ID(), rec.ParentID)
	}
	if len(rec.Tags) != 1 || rec.Tags[0] != TagSpiderDanger {
		t.Errorf("expected spider-danger tag, got %v", rec.Tags)
	}
}

func TestMakeEvent(t *testing.T) {
	t.Parallel()

	ev, err := MakeEvent("192.0.2.0/24", nil, "target")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Type() != EventTypeIPRange {
		t.Errorf("expected IP_RANGE, got %s", ev.Type())
	}

	if _, err := MakeEvent("!!!", nil, "target"); !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("expected ErrUnknownEventType, got %v", err)
	}
}
