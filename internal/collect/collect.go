// Package collect implements the daemon's event collectors: background
// listeners attached to one page's CDP event stream, each funneling
// structured records into session storage and a shared broadcast
// channel. See network.go, console.go, pageerror.go, issues.go,
// dialog.go, trace.go, and extension.go for the individual collectors.
package collect

import (
	"context"
	"log/slog"

	"github.com/tomasbasham/chrome-daemon/internal/cdpclient"
	"github.com/tomasbasham/chrome-daemon/internal/config"
	"github.com/tomasbasham/chrome-daemon/internal/storage"
)

// Event is broadcast on a session's notification channel whenever any
// collector appends a record, so the IPC layer can push it to
// subscribed clients without polling storage.
type Event struct {
	Collection string
	Type       string
	Data       any
}

// Set is the aggregate of every collector attached to one page's event
// stream. A Session builds a fresh Set for each page it creates or
// restores, so there is one Set per page rather than one per Session; a
// Set is not re-attached to another page. All Sets of a session share its
// storage and event channel.
type Set struct {
	Network   *NetworkCollector
	Console   *ConsoleCollector
	PageError *PageErrorCollector
	Issues    *IssuesCollector
	Dialog    *DialogCollector
	Trace     *TraceCollector
	Extension *ExtensionCollector

	events chan<- Event
}

// NewSet builds a Set backed by store, publishing to events (may be
// nil — a collector silently skips publishing when there's no
// subscriber, matching the "slow subscribers lose events" broadcast
// policy in §5).
func NewSet(store *storage.Storage, filters config.Filter, dialogCfg config.Dialog, events chan<- Event) *Set {
	return &Set{
		Network:   newNetworkCollector(store, filters, events),
		Console:   newConsoleCollector(store, filters, events),
		PageError: newPageErrorCollector(store, events),
		Issues:    newIssuesCollector(store, events),
		Dialog:    newDialogCollector(store, dialogCfg, events),
		Trace:     newTraceCollector(store, events),
		Extension: newExtensionCollector(store, events),
		events:    events,
	}
}

// Attach registers every collector's CDP event listener against page.
// Called once per page, at creation time (§4.5 new_page).
func (s *Set) Attach(ctx context.Context, page *cdpclient.Page) error {
	if err := s.Network.attach(ctx, page); err != nil {
		return err
	}
	if err := s.Console.attach(ctx, page); err != nil {
		return err
	}
	s.PageError.attach(ctx, page)
	s.Issues.attach(ctx, page)
	s.Dialog.attach(ctx, page)
	return nil
}

func (s *Set) publish(collection, eventType string, data any) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- Event{Collection: collection, Type: eventType, Data: data}:
	default:
		slog.Warn("collect: dropping event, subscriber channel full", "collection", collection)
	}
}
