package app

import (
	"context"
	"time"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/inbound"
	"heelbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService implements the bid use cases
type BidService struct {
	bidRepo     outbound.BidRepository
	profileRepo outbound.ProfileRepository
	feed        outbound.Feed
	dispatcher  inbound.NotificationDispatcher
	clock       func() time.Time
	logger      zerolog.Logger
}

type BidServiceParams struct {
	BidRepo     outbound.BidRepository
	ProfileRepo outbound.ProfileRepository
	Feed        outbound.Feed
	Dispatcher  inbound.NotificationDispatcher
	Clock       func() time.Time
	Logger      zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &BidService{
		bidRepo:     params.BidRepo,
		profileRepo: params.ProfileRepo,
		feed:        params.Feed,
		dispatcher:  params.Dispatcher,
		clock:       clock,
		logger:      params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid places a new bid on an auction for the user resolved in ctx
func (service *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, error) {
	user, ok := shared.UserFromContext(ctx)
	if !ok {
		service.logger.Warn().Str("auction_id", req.AuctionID.String()).Msg("Bid attempted without identity")
		return nil, shared.ErrUnauthenticated
	}

	service.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("user_id", user.ID.String()).
		Float64("amount", req.Amount).
		Msg("Attempting to place bid")

	if !bid.ValidAmount(req.Amount) {
		service.logger.Warn().Float64("amount", req.Amount).Msg("Invalid bid amount")
		return nil, shared.ErrInvalidAmount
	}

	bidID := req.BidID
	if bidID == uuid.Nil {
		bidID = uuid.New()
	}

	now := service.clock()
	newBid := &bid.Bid{
		ID:        bidID,
		ItemID:    req.AuctionID,
		BidderID:  user.ID,
		Amount:    req.Amount,
		CreatedAt: now,
	}

	var item *auction.Item
	previous, err := service.bidRepo.PlaceBid(ctx, newBid, func(locked *auction.Item, highest *bid.Bid) error {
		item = locked
		return bid.Validate(locked, highest, newBid.Amount, now)
	})
	if err != nil {
		if shared.IsBidRejection(err) {
			service.logger.Warn().
				Err(err).
				Str("auction_id", req.AuctionID.String()).
				Float64("amount", req.Amount).
				Msg("Bid rejected")
		} else {
			service.logger.Error().Err(err).Str("auction_id", req.AuctionID.String()).Msg("Failed to place bid")
		}
		return nil, err
	}

	service.logger.Info().
		Str("bid_id", newBid.ID.String()).
		Str("auction_id", newBid.ItemID.String()).
		Str("user_id", newBid.BidderID.String()).
		Float64("amount", newBid.Amount).
		Msg("Bid placed successfully")

	service.publishBid(ctx, newBid)

	if bid.Outbids(previous, newBid) {
		service.notifyOutbid(ctx, item, previous, newBid, user)
	}

	return newBid, nil
}

// GetBids retrieves bids for an auction, highest first
func (service *BidService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	return service.bidRepo.ListByItem(ctx, auctionID)
}

func (service *BidService) publishBid(ctx context.Context, newBid *bid.Bid) {
	if service.feed == nil {
		return
	}

	topic := outbound.BidTopic(newBid.ItemID)
	event, err := outbound.NewEvent(outbound.EventTypeBidPlaced, topic, newBid.ID, newBid)
	if err != nil {
		service.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to encode bid event")
		return
	}

	// Log error but don't fail the bid placement
	if err := service.feed.Publish(ctx, topic, event); err != nil {
		service.logger.Error().Err(err).Str("bid_id", newBid.ID.String()).Msg("Failed to broadcast bid event")
	}
}

// notifyOutbid hands the previous leader's notification to the dispatcher; it never fails the bid
func (service *BidService) notifyOutbid(ctx context.Context, item *auction.Item, previous, newBid *bid.Bid, leader *shared.User) {
	if service.dispatcher == nil {
		return
	}

	auctionName := newBid.ItemID.String()
	if item != nil && item.Name != "" {
		auctionName = item.Name
	}

	content := notification.OutbidMessage(auctionName, service.leaderName(ctx, leader), newBid.Amount)
	service.dispatcher.Dispatch(previous.BidderID, content)

	service.logger.Info().
		Str("auction_id", newBid.ItemID.String()).
		Str("outbid_user_id", previous.BidderID.String()).
		Str("leader_id", newBid.BidderID.String()).
		Msg("Outbid notification queued")
}

func (service *BidService) leaderName(ctx context.Context, leader *shared.User) string {
	if service.profileRepo != nil {
		profile, err := service.profileRepo.GetByID(ctx, leader.ID)
		if err == nil {
			return profile.Label()
		}
		service.logger.Debug().Err(err).Str("user_id", leader.ID.String()).Msg("Profile lookup failed, using identity name")
	}
	if leader.DisplayName != "" {
		return leader.DisplayName
	}
	return leader.ID.String()
}
