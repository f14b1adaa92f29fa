package scan

import (
	"context"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
)

// EmitFunc hands a newly discovered event back to the scanner. The
// event is queued, not processed inline, so modules never recurse into
// the scan.
type EmitFunc func(ev *model.Event)

// Module is a discovery producer. The scanner dispatches every
// processed event whose type appears in WatchTypes to Handle on a
// general worker; discoveries go out through emit with the handled
// event as parent.
//
// A module error never fails the scan. It is logged and the event is
// otherwise processed normally.
type Module interface {
	// Name identifies the module in logs and event provenance.
	Name() string

	// WatchTypes lists the event types the module wants to see.
	WatchTypes() []model.EventType

	// Handle processes one event and emits whatever it finds.
	Handle(ctx context.Context, ev *model.Event, emit EmitFunc) error
}
