// Package service implements the reservation lifecycle state machine.  The
// engine is the single write path to the ticket store: handlers and the
// expiry sweeper both go through it, and it converts every store failure
// into a typed error before the HTTP layer sees it.
package service

import (
    "context"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/raffle-number-reservation/internal/model"
    "github.com/iliyamo/raffle-number-reservation/internal/notify"
)

// TicketStore is the persistence contract required by the engine.  The
// production implementation is repository.TicketRepo; tests substitute an
// in-memory fake.  Bulk mutations must be atomic across the whole set passed
// in one call – the engine assumes no locking beyond that.
type TicketStore interface {
    ListAll(ctx context.Context) ([]model.Ticket, error)
    ReserveNumbers(ctx context.Context, numbers []int, holder model.Holder, reservedAt, expiresAt time.Time) error
    MarkSold(ctx context.Context, numbers []int) (int64, error)
    ReleaseNumbers(ctx context.Context, numbers []int) (int64, error)
    ReleaseExpired(ctx context.Context, now time.Time) (int64, error)
    InsertInitialPool(ctx context.Context, size int) (int, error)
}

// ValidationError reports a malformed request: empty number list or missing
// holder fields.  The Reason is safe to surface to clients as-is.  No
// mutation happens when a ValidationError is returned.
type ValidationError struct {
    Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ReservationEngine applies reserve/confirm/release transitions against the
// store.  All timestamps are stamped in UTC.  Notifications are published
// fire-and-forget after a successful mutation; the engine never blocks on or
// fails because of the sink.
type ReservationEngine struct {
    store TicketStore
    sink  notify.Sink
    ttl   time.Duration

    now func() time.Time // injectable clock for tests
}

// NewReservationEngine constructs an engine.  Store and sink must be
// non-nil; ttl is the reservation hold window (15 minutes in production).
func NewReservationEngine(store TicketStore, sink notify.Sink, ttl time.Duration) *ReservationEngine {
    if store == nil || sink == nil {
        panic("nil dependency passed to NewReservationEngine")
    }
    if ttl <= 0 {
        ttl = 15 * time.Minute
    }
    return &ReservationEngine{store: store, sink: sink, ttl: ttl, now: time.Now}
}

// ListNumbers returns every ticket ordered by number ascending.  Read-only.
func (e *ReservationEngine) ListNumbers(ctx context.Context) ([]model.Ticket, error) {
    tickets, err := e.store.ListAll(ctx)
    if err != nil {
        return nil, fmt.Errorf("list numbers: %w", err)
    }
    return tickets, nil
}

// ReserveNumbers places an all-or-nothing hold on the requested numbers for
// the given holder.  Every number must currently be available; otherwise the
// store reports repository.ErrConflict and nothing is mutated.  On success
// each ticket gets reservation_date = now, reservation_expiry = now + TTL,
// and the holder's contact details, and a numberReserved event is emitted.
func (e *ReservationEngine) ReserveNumbers(ctx context.Context, numbers []int, holder model.Holder) error {
    unique := dedupeNumbers(numbers)
    if len(unique) == 0 {
        return &ValidationError{Reason: "Missing required information."}
    }
    if strings.TrimSpace(holder.Name) == "" ||
        strings.TrimSpace(holder.Email) == "" ||
        strings.TrimSpace(holder.Phone) == "" {
        return &ValidationError{Reason: "Missing required information."}
    }
    now := e.now().UTC()
    if err := e.store.ReserveNumbers(ctx, unique, holder, now, now.Add(e.ttl)); err != nil {
        return fmt.Errorf("reserve numbers: %w", err)
    }
    e.sink.Publish(ctx, notify.EventNumberReserved)
    return nil
}

// ConfirmPayment marks the given numbers as sold.  The transition is applied
// regardless of prior status, matching the behavior the raffle has always
// had; holder details and timestamps are left untouched so the buyer record
// survives the sale.  Emits refreshNumbers on success.
func (e *ReservationEngine) ConfirmPayment(ctx context.Context, numbers []int) error {
    unique := dedupeNumbers(numbers)
    if len(unique) == 0 {
        return &ValidationError{Reason: "No numbers selected for payment confirmation."}
    }
    if _, err := e.store.MarkSold(ctx, unique); err != nil {
        return fmt.Errorf("confirm payment: %w", err)
    }
    e.sink.Publish(ctx, notify.EventRefreshNumbers)
    return nil
}

// ReleaseNumbers resets the given numbers to available unconditionally,
// clearing holder details and timestamps.  An empty selection is a no-op.
// Emits refreshNumbers when anything was submitted for release.
func (e *ReservationEngine) ReleaseNumbers(ctx context.Context, numbers []int) error {
    unique := dedupeNumbers(numbers)
    if len(unique) == 0 {
        return nil
    }
    if _, err := e.store.ReleaseNumbers(ctx, unique); err != nil {
        return fmt.Errorf("release numbers: %w", err)
    }
    e.sink.Publish(ctx, notify.EventRefreshNumbers)
    return nil
}

// SweepExpired releases every reservation whose expiry has passed and
// returns how many were released.  A refreshNumbers event is emitted exactly
// once per sweep, and only when at least one ticket was released – running
// the sweep again immediately produces zero mutations and zero events.
func (e *ReservationEngine) SweepExpired(ctx context.Context) (int64, error) {
    released, err := e.store.ReleaseExpired(ctx, e.now().UTC())
    if err != nil {
        return 0, fmt.Errorf("sweep expired: %w", err)
    }
    if released > 0 {
        e.sink.Publish(ctx, notify.EventRefreshNumbers)
    }
    return released, nil
}

// PopulatePool seeds the pool with numbers 1..size, all available.  The
// store refuses to seed twice (repository.ErrPoolExists).  Returns the
// number of tickets created and emits refreshNumbers so dashboards pick up
// the new pool.
func (e *ReservationEngine) PopulatePool(ctx context.Context, size int) (int, error) {
    if size <= 0 {
        return 0, &ValidationError{Reason: "Pool size must be positive."}
    }
    created, err := e.store.InsertInitialPool(ctx, size)
    if err != nil {
        return 0, fmt.Errorf("populate pool: %w", err)
    }
    e.sink.Publish(ctx, notify.EventRefreshNumbers)
    return created, nil
}

// dedupeNumbers drops non-positive values and duplicates while preserving
// first-seen order, so a repeated number cannot inflate the row count the
// conditional reserve update is checked against.
func dedupeNumbers(numbers []int) []int {
    unique := make([]int, 0, len(numbers))
    seen := make(map[int]struct{}, len(numbers))
    for _, n := range numbers {
        if n <= 0 {
            continue
        }
        if _, ok := seen[n]; !ok {
            seen[n] = struct{}{}
            unique = append(unique, n)
        }
    }
    return unique
}
