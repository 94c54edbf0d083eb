package app

import (
	"context"
	"fmt"
	"sync"

	"heelbid-auction-service/internal/domain/bid"
	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/inbound"
	"heelbid-auction-service/internal/ports/outbound"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
)

const defaultSeenSize = 1024

// FeedService turns raw feed events into per-row callbacks, skipping rows already seen
type FeedService struct {
	feed     outbound.Feed
	seenSize int
	logger   zerolog.Logger
}

type FeedServiceParams struct {
	Feed     outbound.Feed
	SeenSize int
	Logger   zerolog.Logger
}

// NewFeedService creates a new feed service
func NewFeedService(params FeedServiceParams) *FeedService {
	seenSize := params.SeenSize
	if seenSize <= 0 {
		seenSize = defaultSeenSize
	}
	return &FeedService{
		feed:     params.Feed,
		seenSize: seenSize,
		logger:   params.Logger.With().Str("component", "feed_service").Logger(),
	}
}

// SubscribeBids invokes onBid once per new bid row on auctionID
func (service *FeedService) SubscribeBids(ctx context.Context, auctionID uuid.UUID, onBid func(*bid.Bid)) (inbound.Subscription, error) {
	return service.subscribe(ctx, outbound.BidTopic(auctionID), func(event outbound.Event) error {
		var b bid.Bid
		if err := event.Decode(&b); err != nil {
			return err
		}
		onBid(&b)
		return nil
	})
}

// SubscribeAuction invokes onCompleted when auctionID completes
func (service *FeedService) SubscribeAuction(ctx context.Context, auctionID uuid.UUID, onCompleted func(*shared.CompletionResult)) (inbound.Subscription, error) {
	return service.subscribe(ctx, outbound.AuctionTopic(auctionID), func(event outbound.Event) error {
		if event.Type != outbound.EventTypeAuctionCompleted {
			return nil
		}
		var result shared.CompletionResult
		if err := event.Decode(&result); err != nil {
			return err
		}
		onCompleted(&result)
		return nil
	})
}

// SubscribeNotifications invokes onNotification once per new notification row for userID
func (service *FeedService) SubscribeNotifications(ctx context.Context, userID uuid.UUID, onNotification func(*notification.Notification)) (inbound.Subscription, error) {
	return service.subscribe(ctx, outbound.NotificationTopic(userID), func(event outbound.Event) error {
		var n notification.Notification
		if err := event.Decode(&n); err != nil {
			return err
		}
		onNotification(&n)
		return nil
	})
}

func (service *FeedService) subscribe(ctx context.Context, topic outbound.Topic, handle func(outbound.Event) error) (inbound.Subscription, error) {
	seen, err := lru.New(service.seenSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen cache: %w", err)
	}

	sub := &Subscription{
		id:     uuid.NewString(),
		topic:  topic,
		feed:   service.feed,
		events: make(chan outbound.Event, 64),
		seen:   seen,
		done:   make(chan struct{}),
	}
	sub.logger = service.logger.With().Str("subscription_id", sub.id).Str("topic", string(topic)).Logger()

	if err := service.feed.Subscribe(ctx, topic, sub.id, sub.events); err != nil {
		sub.logger.Error().Err(err).Msg("Failed to subscribe to feed")
		return nil, err
	}

	go sub.run(handle)

	sub.logger.Debug().Msg("Feed subscription started")
	return sub, nil
}

// Subscription delivers each feed row to its handler at most once
type Subscription struct {
	id        string
	topic     outbound.Topic
	feed      outbound.Feed
	events    chan outbound.Event
	seen      *lru.Cache
	done      chan struct{}
	closeOnce sync.Once
	logger    zerolog.Logger
}

// MarkSeen records a row the subscriber already merged locally
func (sub *Subscription) MarkSeen(rowID uuid.UUID) {
	sub.seen.Add(rowID, struct{}{})
}

// Close unsubscribes from the feed; it is safe to call more than once
func (sub *Subscription) Close() error {
	var err error
	sub.closeOnce.Do(func() {
		close(sub.done)
		err = sub.feed.Unsubscribe(context.Background(), sub.topic, sub.id)
	})
	return err
}

func (sub *Subscription) run(handle func(outbound.Event) error) {
	for {
		select {
		case event, ok := <-sub.events:
			if !ok {
				return
			}
			if event.RowID != uuid.Nil {
				if dup, _ := sub.seen.ContainsOrAdd(event.RowID, struct{}{}); dup {
					sub.logger.Debug().Str("row_id", event.RowID.String()).Msg("Skipping duplicate row")
					continue
				}
			}
			if err := handle(event); err != nil {
				sub.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to decode feed event")
			}
		case <-sub.done:
			return
		}
	}
}
