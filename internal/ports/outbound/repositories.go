package outbound

//go:generate mockgen -source=repositories.go -destination=mock/repositories.go -package=mock

import (
	"context"
	"time"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// BidCheck decides, against the locked auction row and its current highest bid, whether a bid may be inserted
type BidCheck func(item *auction.Item, highest *bid.Bid) error

// AuctionRepository defines the interface for auction_item data operations
type AuctionRepository interface {
	// Create creates a new auction item
	Create(ctx context.Context, item *auction.Item) error

	// GetByID retrieves an auction item by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error)

	// ListByState retrieves auction items in the given state, oldest start first
	ListByState(ctx context.Context, state auction.State) ([]*auction.Item, error)

	// ListBySeller retrieves auction items created by sellerID
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]*auction.Item, error)

	// ListByBidder retrieves auction items that bidderID has bid on
	ListByBidder(ctx context.Context, bidderID uuid.UUID) ([]*auction.Item, error)

	// PromoteStarted moves every future item whose start time has passed to ongoing
	PromoteStarted(ctx context.Context, now time.Time) (int64, error)

	// TransitionState moves an item from one state to another; it reports false if the item was no longer in from
	TransitionState(ctx context.Context, id uuid.UUID, from, to auction.State) (bool, error)
}

// BidRepository defines the interface for bid data operations
type BidRepository interface {
	// ListByItem retrieves all bids for an item, highest first
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]*bid.Bid, error)

	// GetHighest retrieves the highest bid for an item, or nil if there are none
	GetHighest(ctx context.Context, itemID uuid.UUID) (*bid.Bid, error)

	// PlaceBid atomically reads the highest bid, runs check and appends newBid if check passes.
	// It returns the bid that led before newBid, or nil.
	PlaceBid(ctx context.Context, newBid *bid.Bid, check BidCheck) (*bid.Bid, error)
}

// NotificationRepository defines the interface for notification data operations
type NotificationRepository interface {
	// Create inserts a notification row
	Create(ctx context.Context, n *notification.Notification) error

	// ListByUser retrieves a user's notifications, newest first
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*notification.Notification, error)
}

// ProfileRepository defines the interface for profile data operations
type ProfileRepository interface {
	// GetByID retrieves a profile by user ID
	GetByID(ctx context.Context, id uuid.UUID) (*shared.Profile, error)

	// Upsert creates the profile or refreshes its names
	Upsert(ctx context.Context, profile *shared.Profile) error
}
