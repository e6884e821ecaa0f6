package model

import "time"

// Ticket status values.  A ticket only ever moves available -> reserved ->
// sold, or back from reserved to available when the hold is released or
// expires.  Sold tickets never change state again.
const (
    StatusAvailable = "available" // no holder, free to reserve
    StatusReserved  = "reserved"  // soft hold with an expiry timestamp
    StatusSold      = "sold"      // payment confirmed, holder kept for record
)

// Ticket represents one raffle number and its reservation state.  There is
// exactly one row per number in the numbers table; rows are created once at
// pool population and never deleted.
//
// Fields:
//  Number            – raffle number, primary key, immutable.
//  Status            – one of the Status* constants above.
//  Name/Email/Phone  – holder contact details; nil while available.  Confirming
//                      payment keeps them on purpose so sold tickets retain a
//                      record of the buyer.
//  ReservationDate   – when the current hold was placed; nil while available.
//  ReservationExpiry – when the current hold lapses; nil while available and
//                      cleared again on release.
type Ticket struct {
    Number            int        `json:"number"`             // numbers.number
    Status            string     `json:"status"`             // numbers.status
    Name              *string    `json:"name"`               // numbers.name (nullable)
    Email             *string    `json:"email"`              // numbers.email (nullable)
    Phone             *string    `json:"phone"`              // numbers.phone (nullable)
    ReservationDate   *time.Time `json:"reservation_date"`   // numbers.reservation_date (nullable)
    ReservationExpiry *time.Time `json:"reservation_expiry"` // numbers.reservation_expiry (nullable)
}

// Holder carries the contact details supplied with a reservation request.
// All three fields are required for a reservation to be accepted.
type Holder struct {
    Name  string `json:"name"`
    Email string `json:"email"`
    Phone string `json:"phone"`
}
