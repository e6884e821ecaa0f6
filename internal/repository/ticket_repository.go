package repository

import (
    "context"
    "database/sql"
    "strings"
    "time"

    "github.com/iliyamo/raffle-number-reservation/internal/model"
)

// TicketRepo provides data access to the numbers table.  All timestamps are
// stored and compared in UTC – callers must pass UTC times.  Bulk mutations
// are single statements (or a single transaction) so that the store's own
// atomicity is the only concurrency control the service relies on.
type TicketRepo struct {
    db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the provided database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

// DB exposes the underlying handle for callers that need to manage their own
// transactions.
func (r *TicketRepo) DB() *sql.DB { return r.db }

const ticketColumns = `number, status, name, email, phone, reservation_date, reservation_expiry`

// ListAll returns every ticket ordered by number ascending.
func (r *TicketRepo) ListAll(ctx context.Context) ([]model.Ticket, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+ticketColumns+` FROM numbers ORDER BY number ASC`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanTickets(rows)
}

// GetByNumbers returns the tickets for the given numbers.  Numbers that do
// not exist in the pool are simply absent from the result; callers that care
// must compare lengths.
func (r *TicketRepo) GetByNumbers(ctx context.Context, numbers []int) ([]model.Ticket, error) {
    if len(numbers) == 0 {
        return []model.Ticket{}, nil
    }
    query := `SELECT ` + ticketColumns + ` FROM numbers WHERE number IN (` +
        placeholders(len(numbers)) + `) ORDER BY number ASC`
    rows, err := r.db.QueryContext(ctx, query, numberArgs(numbers)...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return scanTickets(rows)
}

// ReserveNumbers places a hold on every requested number in one atomic step.
// The update is conditioned on status = 'available' at write time and the
// affected row count is compared to the request size; any mismatch rolls the
// transaction back and returns ErrConflict, so a reservation can never be
// partially applied even when two requests race on overlapping numbers.
func (r *TicketRepo) ReserveNumbers(ctx context.Context, numbers []int, holder model.Holder, reservedAt, expiresAt time.Time) error {
    if len(numbers) == 0 {
        return nil
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    query := `UPDATE numbers
              SET status = 'reserved', name = ?, email = ?, phone = ?,
                  reservation_date = ?, reservation_expiry = ?
              WHERE number IN (` + placeholders(len(numbers)) + `) AND status = 'available'`
    args := make([]interface{}, 0, len(numbers)+5)
    args = append(args, holder.Name, holder.Email, holder.Phone, reservedAt.UTC(), expiresAt.UTC())
    args = append(args, numberArgs(numbers)...)
    res, err := tx.ExecContext(ctx, query, args...)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected != int64(len(numbers)) {
        // at least one number was not available; rollback reverts the rest
        return ErrConflict
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// MarkSold sets status = 'sold' for the given numbers.  Holder details and
// reservation timestamps are intentionally left untouched so sold tickets
// keep a record of the buyer.  No prior-status condition is applied.
func (r *TicketRepo) MarkSold(ctx context.Context, numbers []int) (int64, error) {
    if len(numbers) == 0 {
        return 0, nil
    }
    query := `UPDATE numbers SET status = 'sold' WHERE number IN (` + placeholders(len(numbers)) + `)`
    res, err := r.db.ExecContext(ctx, query, numberArgs(numbers)...)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// ReleaseNumbers resets the given numbers to available unconditionally,
// clearing holder details and both reservation timestamps.
func (r *TicketRepo) ReleaseNumbers(ctx context.Context, numbers []int) (int64, error) {
    if len(numbers) == 0 {
        return 0, nil
    }
    query := `UPDATE numbers
              SET status = 'available', name = NULL, email = NULL, phone = NULL,
                  reservation_date = NULL, reservation_expiry = NULL
              WHERE number IN (` + placeholders(len(numbers)) + `)`
    res, err := r.db.ExecContext(ctx, query, numberArgs(numbers)...)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// ReleaseExpired resets every reserved ticket whose hold lapsed before now
// back to available in a single bulk update, and returns how many rows were
// released.  One statement means the sweep is all-or-nothing.
func (r *TicketRepo) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE numbers
         SET status = 'available', name = NULL, email = NULL, phone = NULL,
             reservation_date = NULL, reservation_expiry = NULL
         WHERE status = 'reserved' AND reservation_expiry < ?`,
        now.UTC())
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}

// InsertInitialPool seeds numbers 1..size, all available.  Seeding is
// guarded: when the table already holds rows the transaction is rolled back
// and ErrPoolExists is returned, making the populate endpoint idempotent to
// call but one-shot in effect.  Returns the count of rows inserted.
func (r *TicketRepo) InsertInitialPool(ctx context.Context, size int) (int, error) {
    if size <= 0 {
        return 0, nil
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    var existing int
    if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM numbers`).Scan(&existing); err != nil {
        return 0, err
    }
    if existing > 0 {
        return 0, ErrPoolExists
    }
    query := `INSERT INTO numbers (number, status) VALUES `
    args := make([]interface{}, 0, size)
    for i := 1; i <= size; i++ {
        if i > 1 {
            query += ","
        }
        query += "(?, 'available')"
        args = append(args, i)
    }
    if _, err := tx.ExecContext(ctx, query, args...); err != nil {
        return 0, err
    }
    if err := tx.Commit(); err != nil {
        return 0, err
    }
    committed = true
    return size, nil
}

// scanTickets reads ticket rows, converting nullable columns to pointers.
func scanTickets(rows *sql.Rows) ([]model.Ticket, error) {
    tickets := []model.Ticket{}
    for rows.Next() {
        var t model.Ticket
        var name, email, phone sql.NullString
        var reservedAt, expiresAt sql.NullTime
        if err := rows.Scan(&t.Number, &t.Status, &name, &email, &phone, &reservedAt, &expiresAt); err != nil {
            return nil, err
        }
        if name.Valid {
            v := name.String
            t.Name = &v
        }
        if email.Valid {
            v := email.String
            t.Email = &v
        }
        if phone.Valid {
            v := phone.String
            t.Phone = &v
        }
        if reservedAt.Valid {
            v := reservedAt.Time
            t.ReservationDate = &v
        }
        if expiresAt.Valid {
            v := expiresAt.Time
            t.ReservationExpiry = &v
        }
        tickets = append(tickets, t)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return tickets, nil
}

// placeholders returns "?, ?, ..." with n markers for IN clauses.
func placeholders(n int) string {
    return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func numberArgs(numbers []int) []interface{} {
    args := make([]interface{}, 0, len(numbers))
    for _, n := range numbers {
        args = append(args, n)
    }
    return args
}
