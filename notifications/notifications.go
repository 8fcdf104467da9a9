package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/containrrr/shoutrrr"
	shoutrrrtypes "github.com/containrrr/shoutrrr/pkg/types"
)

var (
	ErrInvalidURI   = errors.New("invalid URI")
	ErrUnknownEvent = errors.New("unknown event")
)

type Event string

const (
	// Complete is sent once a run has tagged every album it found.
	Complete Event = "complete"
	// Mismatch is sent for each album the catalog matched to a different release.
	Mismatch Event = "mismatch"
	// Error is sent for each album that failed for any other reason.
	Error Event = "error"
)

func (e Event) IsValid() bool {
	switch e {
	case Complete, Mismatch, Error:
		return true
	}
	return false
}

// Parse reads a comma separated list of events followed by a space and a shoutrrr URI,
// for example "complete,error generic+https://example.com/hook".
func (n *Notifications) Parse(value string) error {
	eventsRaw, uri, ok := strings.Cut(value, " ")
	if !ok {
		return fmt.Errorf("%w: want \"<event>,... <uri>\"", ErrInvalidURI)
	}
	for _, ev := range strings.Split(eventsRaw, ",") {
		if err := n.AddURI(Event(strings.TrimSpace(ev)), strings.TrimSpace(uri)); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifications) Len() int {
	var l int
	for _, uris := range n.mappings {
		l += len(uris)
	}
	return l
}

type Notifications struct {
	mappings map[Event][]string
}

func (n *Notifications) AddURI(event Event, uri string) error {
	if n.mappings == nil {
		n.mappings = map[Event][]string{}
	}
	if !event.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if u, err := url.Parse(uri); err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	n.mappings[event] = append(n.mappings[event], uri)
	return nil
}

func (n *Notifications) IterMappings(f func(Event, string)) {
	for event, uris := range n.mappings {
		for _, uri := range uris {
			f(event, uri)
		}
	}
}
func (n *Notifications) Sendf(ctx context.Context, event Event, f string, a ...any) {
	n.Send(ctx, event, fmt.Sprintf(f, a...))
}

func (n *Notifications) Send(ctx context.Context, event Event, message string) {
	uris := n.mappings[event]
	if len(uris) == 0 {
		return
	}

	sender, err := shoutrrr.CreateSender(uris...)
	if err != nil {
		slog.ErrorContext(ctx, "create sender", "err", err)
		return
	}

	params := &shoutrrrtypes.Params{}
	params.SetTitle("arctag")

	if err := errors.Join(sender.Send(message, params)...); err != nil {
		slog.ErrorContext(ctx, "sending notifications", "err", err)
		return
	}
}
