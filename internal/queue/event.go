// Package queue defines message payloads exchanged over the message broker.
package queue

// TicketEventName is the queue that carries ticket change signals.  The
// publisher and the audit consumer both declare it so either side can start
// first.
const TicketEventName = "raffle.events"

// TicketEvent is published whenever the ticket pool changes state.  The
// payload deliberately carries no ticket data: consumers re-query the API
// for full state, so the event only needs to say that something changed and
// when.
type TicketEvent struct {
    Event      string `json:"event"`       // numberReserved or refreshNumbers
    OccurredAt string `json:"occurred_at"` // RFC3339 UTC timestamp
}
