// Package notify provides the outbound notification channel for ticket state
// changes.  Every event is a "something changed, re-query" signal – consumers
// are expected to re-fetch the full number list rather than interpret any
// payload.  Publishing is fire-and-forget: failures are logged and never
// propagate back into the request that triggered them.
package notify

import "context"

// Event names emitted on ticket state changes.
const (
    EventNumberReserved = "numberReserved" // a reservation was placed
    EventRefreshNumbers = "refreshNumbers" // any other change (sale, release, sweep)
)

// Sink is the abstract publish channel notified on state changes.  There is
// no delivery guarantee and no error return; implementations must log their
// own failures and return promptly.
type Sink interface {
    Publish(ctx context.Context, event string)
}

// Fanout publishes each event to every wrapped sink in order.
type Fanout []Sink

// Publish implements Sink.
func (f Fanout) Publish(ctx context.Context, event string) {
    for _, s := range f {
        s.Publish(ctx, event)
    }
}

// Discard is a Sink that drops every event.  Useful in tests and when a
// transport is disabled by configuration.
type Discard struct{}

// Publish implements Sink.
func (Discard) Publish(context.Context, string) {}
