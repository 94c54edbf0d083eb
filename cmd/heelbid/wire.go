package main

import (
	"context"

	"heelbid-auction-service/internal/adapters/broadcaster"
	"heelbid-auction-service/internal/adapters/cache"
	"heelbid-auction-service/internal/adapters/db"
	"heelbid-auction-service/internal/adapters/memory"
	"heelbid-auction-service/internal/adapters/redis"
	"heelbid-auction-service/internal/adapters/scheduler"
	"heelbid-auction-service/internal/app"
	"heelbid-auction-service/internal/config"
	"heelbid-auction-service/internal/ports/outbound"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sweepLockKey = "heelbid:lifecycle:sweep"

// components is the assembled service graph
type components struct {
	repos         db.Repositories
	feed          outbound.Feed
	redisClient   *goredis.Client
	auctions      *app.AuctionService
	bids          *app.BidService
	notifications *app.NotificationService
	dispatcher    *app.Dispatcher
	feedService   *app.FeedService
	closers       []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// sweepLocker returns the cross-instance sweep lock, or nil when Redis is not used
func (c *components) sweepLocker(cfg *config.Config) scheduler.Locker {
	if c.redisClient == nil {
		return nil
	}
	return redis.NewLock(c.redisClient, sweepLockKey, cfg.Lifecycle.LockTTL)
}

// openRepositories opens the configured store
func openRepositories(cfg *config.Config, logger zerolog.Logger) (db.Repositories, func() error, error) {
	if cfg.Database.InMemory() {
		store := memory.NewStore()
		logger.Warn().Msg("Using in-memory store, data is lost on exit")
		return db.Repositories{
			Auctions:      store.Auctions(),
			Bids:          store.Bids(),
			Notifications: store.Notifications(),
			Profiles:      store.Profiles(),
		}, func() error { return nil }, nil
	}

	conn, err := db.NewConnection(cfg)
	if err != nil {
		return db.Repositories{}, nil, err
	}
	logger.Info().Msg("Database connection established")

	if cfg.Database.MigrateOnStart {
		if err := db.RunMigrations(conn, logger); err != nil {
			conn.Close()
			return db.Repositories{}, nil, err
		}
	}

	return db.NewRepositoryFactory(conn).GetAllRepositories(), conn.Close, nil
}

func buildComponents(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*components, error) {
	c := &components{}

	repos, closeStore, err := openRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, closeStore)

	profiles, err := cache.NewProfileCache(repos.Profiles, cfg.Cache.ProfileSize)
	if err != nil {
		c.Close()
		return nil, err
	}
	repos.Profiles = profiles
	c.repos = repos

	if cfg.Redis.Enabled() && !cfg.Database.InMemory() {
		c.redisClient, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			c.Close()
			return nil, err
		}
		logger.Info().Msg("Redis connection established")

		redisBroadcaster := broadcaster.NewBroadcaster(broadcaster.RedisBroadcasterParams{
			RedisClient: c.redisClient,
			Logger:      logger,
		})
		c.feed = redisBroadcaster
		c.closers = append(c.closers, c.redisClient.Close, redisBroadcaster.Close)
	} else {
		c.feed = memory.NewFeed(logger)
	}

	c.notifications = app.NewNotificationService(app.NotificationServiceParams{
		Repo:   repos.Notifications,
		Feed:   c.feed,
		Logger: logger,
	})

	c.dispatcher = app.NewDispatcher(app.DispatcherParams{
		Sender:      c.notifications,
		Workers:     cfg.Notification.Workers,
		Capacity:    cfg.Notification.QueueCapacity,
		MaxAttempts: cfg.Notification.MaxAttempts,
		Backoff:     cfg.Notification.RetryBackoff,
		Logger:      logger,
	})
	c.closers = append(c.closers, func() error { c.dispatcher.Stop(); return nil })

	c.auctions = app.NewAuctionService(app.AuctionServiceParams{
		AuctionRepo: repos.Auctions,
		BidRepo:     repos.Bids,
		Feed:        c.feed,
		SweepOnView: cfg.Lifecycle.OnView,
		Logger:      logger,
	})

	c.bids = app.NewBidService(app.BidServiceParams{
		BidRepo:     repos.Bids,
		ProfileRepo: repos.Profiles,
		Feed:        c.feed,
		Dispatcher:  c.dispatcher,
		Logger:      logger,
	})

	c.feedService = app.NewFeedService(app.FeedServiceParams{
		Feed:   c.feed,
		Logger: logger,
	})

	return c, nil
}
