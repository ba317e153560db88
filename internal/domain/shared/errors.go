package shared

import (
	"errors"
	"fmt"
)

// Error taxonomy. The four wire-visible kinds are the base sentinels;
// the specific errors wrap them so errors.Is works against either level
// on both sides of a request.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidCode     = errors.New("invalid code")
	ErrAlreadyExists   = errors.New("already exists")
	ErrAlreadyReserved = errors.New("item already reserved")
)

var (
	ErrItemNotFound       = fmt.Errorf("item %w", ErrNotFound)
	ErrTicketNotFound     = fmt.Errorf("ticket %w", ErrNotFound)
	ErrLocationNotFound   = fmt.Errorf("location %w", ErrNotFound)
	ErrUserNotFound       = fmt.Errorf("user %w", ErrNotFound)
	ErrObligationNotFound = fmt.Errorf("payment obligation %w", ErrNotFound)
)

// Validation errors
var (
	ErrInvalidItem   = errors.New("invalid item")
	ErrInvalidPeriod = errors.New("invalid billing period")
)

// Ledger errors
var (
	ErrLedgerMismatch    = errors.New("ledger settlement mismatch")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Transport errors. ErrNoReply covers both a request timeout and an
// unreachable peer; callers cannot tell the two apart.
var (
	ErrNoReply             = errors.New("no reply from peer")
	ErrUnknownMessageType  = errors.New("unknown message type")
	ErrMessageTypeRequired = errors.New("message type is required")
)
