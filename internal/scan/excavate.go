package scan

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/AnshumanSrivastavaGit/bbot/internal/model"
	"github.com/AnshumanSrivastavaGit/bbot/internal/spider"
	"github.com/AnshumanSrivastavaGit/bbot/internal/web"
)

// Excavate is the discovery module behind URL events: it fetches the
// page and mines it for links and email addresses. Link children carry
// a spider state advanced from the parent edge; links past the follow
// limits are still emitted, tagged so they are recorded but never
// fetched.
type Excavate struct {
	fetcher    web.Fetcher
	controller *spider.Controller
}

// NewExcavate builds the module from the shared fetcher and the spider
// bounds.
func NewExcavate(fetcher web.Fetcher, controller *spider.Controller) *Excavate {
	return &Excavate{fetcher: fetcher, controller: controller}
}

// Name implements Module.
func (e *Excavate) Name() string { return "excavate" }

// WatchTypes implements Module.
func (e *Excavate) WatchTypes() []model.EventType {
	return []model.EventType{model.EventTypeURL}
}

// Handle fetches one URL event and emits what the page contains.
func (e *Excavate) Handle(ctx context.Context, ev *model.Event, emit EmitFunc) error {
	if ev.HasTag(model.TagSpiderDanger) {
		return nil
	}
	pageURL := ev.URL()
	if pageURL == nil {
		return nil
	}

	gate := e.controller.GateFor(pageURL)
	if gate == spider.GateSkip {
		return nil
	}

	var resp *web.Response
	var err error
	if gate == spider.GateProbe {
		resp, err = e.fetcher.Probe(ctx, ev.Data())
	} else {
		resp, err = e.fetcher.Fetch(ctx, ev.Data())
	}
	if err != nil {
		return err
	}

	// Redirects may have moved the page; relative links resolve
	// against where it landed.
	base := pageURL
	if final, perr := url.Parse(resp.URL); perr == nil {
		base = final
	}
	extraction, err := spider.Extract(base, bytes.NewReader(resp.Body))
	if err != nil {
		return err
	}

	for _, email := range extraction.Emails {
		child, cerr := model.NewEvent(model.EventTypeEmailAddress, email, ev, e.Name())
		if cerr != nil {
			continue
		}
		emit(child)
	}

	// Probe-only pages surface content but are never spidered; link
	// following also requires an HTML body.
	if gate == spider.GateProbe || !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil
	}

	parent := spider.State{LinkDistance: ev.LinkDistance(), PathDepth: ev.SpiderDepth()}
	for _, link := range extraction.Links {
		child, cerr := model.NewEvent(model.EventTypeURL, link, ev, e.Name())
		if cerr != nil {
			continue
		}
		childURL := child.URL()
		state := e.controller.Advance(childURL, parent)
		child.SetSpiderState(state.LinkDistance, state.PathDepth)
		if !e.controller.ShouldFollow(childURL, parent) {
			child.AddTag(model.TagSpiderDanger)
		}
		emit(child)
	}
	return nil
}
