package notification

import (
	"fmt"
	"strings"
	"time"

	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// Notification is a message addressed to a single user
type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Content   string    `json:"content" db:"content"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// New builds an unread notification for userID
func New(userID uuid.UUID, content string, now time.Time) (*Notification, error) {
	if userID == uuid.Nil {
		return nil, shared.ErrRecipientNeeded
	}
	if strings.TrimSpace(content) == "" {
		return nil, shared.ErrEmptyContent
	}
	return &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Content:   content,
		CreatedAt: now,
	}, nil
}

// OutbidMessage tells a bidder who overtook them on which auction
func OutbidMessage(auctionName, leader string, amount float64) string {
	return fmt.Sprintf("You have been outbid on %q by %s. New highest bid: $%.2f", auctionName, leader, amount)
}
