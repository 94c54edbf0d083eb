package app

import (
	"context"
	"errors"
	"time"

	"heelbid-auction-service/internal/domain/auction"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/inbound"
	"heelbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuctionService implements the auction use cases and the lifecycle sweep
type AuctionService struct {
	auctionRepo outbound.AuctionRepository
	bidRepo     outbound.BidRepository
	feed        outbound.Feed
	sweepOnView bool
	clock       func() time.Time
	logger      zerolog.Logger
}

type AuctionServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	BidRepo     outbound.BidRepository
	Feed        outbound.Feed
	SweepOnView bool
	Clock       func() time.Time
	Logger      zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AuctionService{
		auctionRepo: params.AuctionRepo,
		bidRepo:     params.BidRepo,
		feed:        params.Feed,
		sweepOnView: params.SweepOnView,
		clock:       clock,
		logger:      params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// CreateAuction creates a new listing owned by the current user
func (service *AuctionService) CreateAuction(ctx context.Context, req inbound.CreateAuctionRequest) (*auction.Item, error) {
	user, ok := shared.UserFromContext(ctx)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}

	if req.Price <= 0 {
		return nil, shared.ErrInvalidStartingPrice
	}
	if req.Duration < 1 {
		return nil, shared.ErrInvalidDuration
	}

	now := service.clock()
	item := &auction.Item{
		ID:          uuid.New(),
		SellerID:    user.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		StartTime:   req.StartTime.UTC(),
		Duration:    req.Duration,
		State:       auction.InitialState(req.StartTime, now),
		ImageURL:    req.ImageURL,
	}

	if err := service.auctionRepo.Create(ctx, item); err != nil {
		service.logger.Error().Err(err).Str("auction_id", item.ID.String()).Msg("Failed to save auction")
		return nil, err
	}

	service.logger.Info().
		Str("auction_id", item.ID.String()).
		Str("seller_id", item.SellerID.String()).
		Str("state", string(item.State)).
		Time("start_time", item.StartTime).
		Int("duration", item.Duration).
		Float64("price", item.Price).
		Msg("Auction created successfully")

	return item, nil
}

// GetAuction retrieves a listing and its bids
func (service *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*inbound.AuctionDetail, error) {
	item, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	bids, err := service.bidRepo.ListByItem(ctx, auctionID)
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to retrieve bids")
		return nil, err
	}

	return &inbound.AuctionDetail{Item: item, Bids: bids}, nil
}

// ListAuctions retrieves listings in state. Listing ongoing auctions runs a sweep first when enabled.
func (service *AuctionService) ListAuctions(ctx context.Context, state auction.State) ([]*auction.Item, error) {
	if !state.Valid() {
		return nil, shared.ErrInvalidState
	}

	if state == auction.StateOngoing && service.sweepOnView {
		// sweep failures only delay transitions until the next run
		if _, err := service.Sweep(ctx, service.clock()); err != nil {
			service.logger.Warn().Err(err).Msg("Sweep on view failed")
		}
	}

	return service.auctionRepo.ListByState(ctx, state)
}

// ListSellerAuctions retrieves the current user's listings
func (service *AuctionService) ListSellerAuctions(ctx context.Context) ([]*auction.Item, error) {
	user, ok := shared.UserFromContext(ctx)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	return service.auctionRepo.ListBySeller(ctx, user.ID)
}

// ListBidderAuctions retrieves listings the current user has bid on
func (service *AuctionService) ListBidderAuctions(ctx context.Context) ([]*auction.Item, error) {
	user, ok := shared.UserFromContext(ctx)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	return service.auctionRepo.ListByBidder(ctx, user.ID)
}

// Sweep advances lifecycle states as of now.
// Step one promotes started future auctions in bulk; step two completes ongoing auctions row by row.
// The steps are not transactional; re-running is always safe.
func (service *AuctionService) Sweep(ctx context.Context, now time.Time) (*shared.SweepResult, error) {
	result := &shared.SweepResult{}
	var errs []error

	started, err := service.auctionRepo.PromoteStarted(ctx, now)
	if err != nil {
		service.logger.Error().Err(err).Msg("Failed to promote started auctions")
		errs = append(errs, err)
	}
	result.Started = started

	ongoing, err := service.auctionRepo.ListByState(ctx, auction.StateOngoing)
	if err != nil {
		service.logger.Error().Err(err).Msg("Failed to list ongoing auctions")
		return result, errors.Join(append(errs, err)...)
	}

	for _, item := range ongoing {
		if auction.ComputeState(item, now) != auction.StateCompleted {
			continue
		}

		moved, err := service.auctionRepo.TransitionState(ctx, item.ID, auction.StateOngoing, auction.StateCompleted)
		if err != nil {
			result.Failed++
			service.logger.Error().Err(err).Str("auction_id", item.ID.String()).Msg("Failed to complete auction")
			continue
		}
		if !moved {
			continue
		}

		completion := service.completion(ctx, item)
		result.Completed = append(result.Completed, completion)
		service.publishCompletion(ctx, completion)
	}

	if result.Started > 0 || len(result.Completed) > 0 {
		service.logger.Info().
			Int64("started", result.Started).
			Int("completed", len(result.Completed)).
			Int("failed", result.Failed).
			Time("now", now).
			Msg("Lifecycle sweep applied transitions")
	}

	return result, errors.Join(errs...)
}

func (service *AuctionService) completion(ctx context.Context, item *auction.Item) shared.CompletionResult {
	result := shared.CompletionResult{AuctionID: item.ID}

	highest, err := service.bidRepo.GetHighest(ctx, item.ID)
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", item.ID.String()).Msg("Failed to get highest bid")
		return result
	}

	logger := service.logger.Info().Str("auction_id", item.ID.String())
	if highest != nil {
		result.WinnerID = &highest.BidderID
		result.FinalPrice = &highest.Amount
		logger = logger.Str("winner_id", highest.BidderID.String()).Float64("final_price", highest.Amount)
	}
	logger.Msg("Auction completed")

	return result
}

func (service *AuctionService) publishCompletion(ctx context.Context, completion shared.CompletionResult) {
	if service.feed == nil {
		return
	}

	topic := outbound.AuctionTopic(completion.AuctionID)
	event, err := outbound.NewEvent(outbound.EventTypeAuctionCompleted, topic, completion.AuctionID, completion)
	if err == nil {
		err = service.feed.Publish(ctx, topic, event)
	}
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", completion.AuctionID.String()).Msg("Failed to broadcast auction completion")
	}
}
