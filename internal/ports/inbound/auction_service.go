package inbound

//go:generate mockgen -source=auction_service.go -destination=mock/services.go -package=mock

import (
	"context"
	"time"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"

	"github.com/google/uuid"
)

// AuctionService defines the interface for auction operations
type AuctionService interface {
	// CreateAuction creates a new listing for the current user
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Item, error)

	// GetAuction retrieves a listing with its bids
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionDetail, error)

	// ListAuctions retrieves listings in a lifecycle state
	ListAuctions(ctx context.Context, state auction.State) ([]*auction.Item, error)

	// ListSellerAuctions retrieves the current user's listings
	ListSellerAuctions(ctx context.Context) ([]*auction.Item, error)

	// ListBidderAuctions retrieves listings the current user has bid on
	ListBidderAuctions(ctx context.Context) ([]*auction.Item, error)

	// Sweep advances auction lifecycle states as of now
	Sweep(ctx context.Context, now time.Time) (*shared.SweepResult, error)
}

// BidService defines the interface for bid operations
type BidService interface {
	// PlaceBid places a new bid on an auction for the current user
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*bid.Bid, error)

	// GetBids retrieves bids for an auction, highest first
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
}

// NotificationService defines the interface for notification operations
type NotificationService interface {
	// Send writes a notification for userID
	Send(ctx context.Context, userID uuid.UUID, content string) (*notification.Notification, error)

	// List retrieves the current user's notifications
	List(ctx context.Context) ([]*notification.Notification, error)
}

// NotificationDispatcher queues notifications for delivery without blocking the caller
type NotificationDispatcher interface {
	Dispatch(userID uuid.UUID, content string)
}

// Subscription is a live feed subscription
type Subscription interface {
	// MarkSeen records a row the subscriber already has so the feed skips it
	MarkSeen(rowID uuid.UUID)

	// Close releases the subscription
	Close() error
}

// FeedService defines the interface for realtime row subscriptions
type FeedService interface {
	// SubscribeBids invokes onBid once per new bid on auctionID
	SubscribeBids(ctx context.Context, auctionID uuid.UUID, onBid func(*bid.Bid)) (Subscription, error)

	// SubscribeAuction invokes onCompleted when auctionID completes
	SubscribeAuction(ctx context.Context, auctionID uuid.UUID, onCompleted func(*shared.CompletionResult)) (Subscription, error)

	// SubscribeNotifications invokes onNotification once per new notification for userID
	SubscribeNotifications(ctx context.Context, userID uuid.UUID, onNotification func(*notification.Notification)) (Subscription, error)
}

// request to create an auction
type CreateAuctionRequest struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Price       float64   `json:"price" validate:"gt=0"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	Duration    int       `json:"duration" validate:"gte=1"`
	ImageURL    string    `json:"image_url" validate:"omitempty,max=1024"`
}

// PlaceBidRequest is a bid offer. BidID may be chosen by the caller; a zero BidID gets a fresh one.
type PlaceBidRequest struct {
	BidID     uuid.UUID `json:"-"`
	AuctionID uuid.UUID `json:"auction_id"`
	Amount    float64   `json:"amount"`
}

// AuctionDetail is a listing with its bids, highest first
type AuctionDetail struct {
	Item *auction.Item `json:"item"`
	Bids []*bid.Bid    `json:"bids"`
}

// CurrentPrice returns the floor a new bid has to exceed
func (d *AuctionDetail) CurrentPrice() float64 {
	if len(d.Bids) > 0 {
		return bid.Floor(d.Item, d.Bids[0])
	}
	return bid.Floor(d.Item, nil)
}
