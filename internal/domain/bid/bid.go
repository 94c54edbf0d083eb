package bid

import (
	"math"
	"time"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Bid represents an append-only offer on an auction item
type Bid struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ItemID    uuid.UUID `json:"item_id" db:"item_id"`
	BidderID  uuid.UUID `json:"bidder_id" db:"bidder_id"`
	Amount    float64   `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidAmount returns true if amount is a finite number greater than 0
func ValidAmount(amount float64) bool {
	return !math.IsNaN(amount) && !math.IsInf(amount, 0) && amount > 0
}

// Floor returns the amount a new bid must exceed: the highest bid, or the starting price
func Floor(item *auction.Item, highest *Bid) float64 {
	if highest != nil {
		return highest.Amount
	}
	return item.Price
}

// Validate decides whether a bid of amount may be placed on item at now.
// It has no side effects.
func Validate(item *auction.Item, highest *Bid, amount float64, now time.Time) error {
	if !ValidAmount(amount) {
		return shared.ErrInvalidAmount
	}
	if item.HasEnded(now) {
		return shared.ErrAuctionClosed
	}
	if amount <= Floor(item, highest) {
		return shared.ErrBidTooLow
	}
	return nil
}

// Outbids reports whether next displaced a different bidder than prev
func Outbids(prev, next *Bid) bool {
	return prev != nil && next != nil && prev.BidderID != next.BidderID
}
