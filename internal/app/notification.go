package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"heelbid-auction-service/internal/domain/notification"
	"heelbid-auction-service/internal/domain/shared"
	"heelbid-auction-service/internal/ports/outbound"

	"github.com/alitto/pond"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NotificationService writes and lists user notifications
type NotificationService struct {
	repo   outbound.NotificationRepository
	feed   outbound.Feed
	clock  func() time.Time
	logger zerolog.Logger
}

type NotificationServiceParams struct {
	Repo   outbound.NotificationRepository
	Feed   outbound.Feed
	Clock  func() time.Time
	Logger zerolog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(params NotificationServiceParams) *NotificationService {
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &NotificationService{
		repo:   params.Repo,
		feed:   params.Feed,
		clock:  clock,
		logger: params.Logger.With().Str("component", "notification_service").Logger(),
	}
}

// Send inserts a new notification row for userID. Each call creates a new row.
func (service *NotificationService) Send(ctx context.Context, userID uuid.UUID, content string) (*notification.Notification, error) {
	n, err := notification.New(userID, content, service.clock())
	if err != nil {
		return nil, err
	}

	if err := service.repo.Create(ctx, n); err != nil {
		service.logger.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to write notification")
		return nil, err
	}

	service.logger.Debug().
		Str("notification_id", n.ID.String()).
		Str("user_id", userID.String()).
		Msg("Notification written")

	if service.feed != nil {
		topic := outbound.NotificationTopic(userID)
		event, err := outbound.NewEvent(outbound.EventTypeNotification, topic, n.ID, n)
		if err == nil {
			err = service.feed.Publish(ctx, topic, event)
		}
		if err != nil {
			service.logger.Error().Err(err).Str("notification_id", n.ID.String()).Msg("Failed to broadcast notification")
		}
	}

	return n, nil
}

// List retrieves the current user's notifications, newest first
func (service *NotificationService) List(ctx context.Context) ([]*notification.Notification, error) {
	user, ok := shared.UserFromContext(ctx)
	if !ok {
		return nil, shared.ErrUnauthenticated
	}
	return service.repo.ListByUser(ctx, user.ID)
}

// Sender is what the dispatcher delivers through
type Sender interface {
	Send(ctx context.Context, userID uuid.UUID, content string) (*notification.Notification, error)
}

// Dispatcher delivers notifications asynchronously with bounded retries
type Dispatcher struct {
	sender      Sender
	pool        *pond.WorkerPool
	maxAttempts int
	backoff     time.Duration
	sendTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	stopOnce    sync.Once
	logger      zerolog.Logger
}

type DispatcherParams struct {
	Sender      Sender
	Workers     int
	Capacity    int
	MaxAttempts int
	Backoff     time.Duration
	Logger      zerolog.Logger
}

// NewDispatcher creates a dispatcher backed by a worker pool
func NewDispatcher(params DispatcherParams) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	logger := params.Logger.With().Str("component", "notification_dispatcher").Logger()

	workers := params.Workers
	if workers <= 0 {
		workers = 1
	}
	capacity := params.Capacity
	if capacity <= 0 {
		capacity = 100
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	pool := pond.New(
		workers,
		capacity,
		pond.Strategy(pond.Balanced()),
		pond.PanicHandler(func(p interface{}) {
			logger.Error().Interface("panic", p).Msg("Notification task panicked")
		}),
	)

	return &Dispatcher{
		sender:      params.Sender,
		pool:        pool,
		maxAttempts: maxAttempts,
		backoff:     params.Backoff,
		sendTimeout: 5 * time.Second,
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
	}
}

// Dispatch queues a notification and returns immediately
func (d *Dispatcher) Dispatch(userID uuid.UUID, content string) {
	submitted := d.pool.TrySubmit(func() {
		d.deliver(userID, content)
	})
	if !submitted {
		d.logger.Warn().Str("user_id", userID.String()).Msg("Notification queue full or stopped, dropping notification")
	}
}

// Stop waits for queued notifications to finish and releases the pool
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.logger.Info().Msg("Stopping notification dispatcher")
		d.pool.StopAndWait()
		d.cancel()
	})
}

func (d *Dispatcher) deliver(userID uuid.UUID, content string) {
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(d.ctx, d.sendTimeout)
		_, err := d.sender.Send(ctx, userID, content)
		cancel()
		if err == nil {
			return
		}

		logger := d.logger.Warn().Err(err).Str("user_id", userID.String()).Int("attempt", attempt)
		if errors.Is(err, shared.ErrRecipientNeeded) || errors.Is(err, shared.ErrEmptyContent) {
			logger.Msg("Notification rejected, not retrying")
			return
		}
		logger.Msg("Notification delivery failed")

		if attempt == d.maxAttempts {
			break
		}
		select {
		case <-time.After(d.backoff * time.Duration(attempt)):
		case <-d.ctx.Done():
			return
		}
	}

	d.logger.Error().Str("user_id", userID.String()).Int("attempts", d.maxAttempts).Msg("Giving up on notification")
}
