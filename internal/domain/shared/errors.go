package shared

import (
	"errors"
	"fmt"
)

// Domain-specific errors
var (
	// Identity errors
	ErrUnauthenticated = errors.New("you must be logged in")

	// Bid errors
	ErrInvalidAmount = errors.New("bid amount must be a positive number")
	ErrBidTooLow     = errors.New("bid must be higher than the current highest bid")
	ErrAuctionClosed = errors.New("auction has closed")

	// Auction errors
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrInvalidStartingPrice = errors.New("starting price must be greater than 0")
	ErrInvalidDuration      = errors.New("duration must be at least one minute")
	ErrInvalidState         = errors.New("invalid auction state")

	// Profile errors
	ErrProfileNotFound = errors.New("profile not found")

	// Notification errors
	ErrEmptyContent    = errors.New("notification content is required")
	ErrRecipientNeeded = errors.New("notification recipient is required")

	// Validation errors
	ErrInvalidRequest = errors.New("invalid request")

	// WebSocket message validation errors
	ErrMessageTypeRequired = errors.New("message type is required")
	ErrAuctionIDRequired   = errors.New("auction_id is required")
	ErrUnknownMessageType  = errors.New("unknown message type")
)

// StoreError wraps an underlying read/write failure of a store.
// The cause is kept for logs; callers treat it as opaque.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store: %s failed", e.Op)
	}
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError wraps err as a StoreError for operation op
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsStoreError reports whether err carries a StoreError
func IsStoreError(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr)
}

// IsBidRejection reports whether err is a validation outcome rather than a failure
func IsBidRejection(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrBidTooLow) ||
		errors.Is(err, ErrAuctionClosed)
}
