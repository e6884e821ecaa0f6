// Package repository defines error types that are reused across the data
// access layer.  These sentinel values allow higher layers such as the
// reservation engine and handlers to distinguish between failure scenarios
// without string matching.
package repository

import "errors"

// ErrConflict is returned when a conditional bulk update touches fewer rows
// than requested, meaning at least one of the requested numbers was not in
// the expected state.  The whole operation is rolled back before this error
// is returned; callers should translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrPoolExists is returned by InsertInitialPool when the numbers table is
// already populated.  Seeding is a one-time operation; handlers should
// translate this into an HTTP 409 response.
var ErrPoolExists = errors.New("pool already populated")
