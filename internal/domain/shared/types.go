package shared

import "github.com/google/uuid"

// CompletionResult represents the outcome of an auction reaching completed
type CompletionResult struct {
	AuctionID  uuid.UUID  `json:"auction_id"`
	WinnerID   *uuid.UUID `json:"winner_id,omitempty"`
	FinalPrice *float64   `json:"final_price,omitempty"`
}

// SweepResult counts the transitions applied by one lifecycle sweep
type SweepResult struct {
	Started   int64
	Completed []CompletionResult
	Failed    int
}
