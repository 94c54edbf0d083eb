package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"heelbid-auction-service/internal/adapters/db"
	"heelbid-auction-service/internal/adapters/httpapi"
	"heelbid-auction-service/internal/adapters/identity"
	"heelbid-auction-service/internal/adapters/scheduler"
	"heelbid-auction-service/internal/adapters/ws"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP, WebSocket and lifecycle services",
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log.Info().Msg("Starting HeelBid Auction Service...")

			comps, err := buildComponents(c.Context, cfg, log.Logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			verifier := identity.NewVerifier(identity.VerifierParams{
				Secret:   cfg.Identity.Secret,
				Audience: cfg.Identity.Audience,
				Profiles: comps.repos.Profiles,
				Logger:   log.Logger,
			})

			wsHandler := ws.NewHandler(ws.WsHandlerParams{
				Upgrader:    ws.NewUpgrader(cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, nil),
				BidService:  comps.bids,
				FeedService: comps.feedService,
				Logger:      log.Logger,
			})

			router := httpapi.NewRouter(httpapi.RouterParams{
				Handlers: httpapi.NewHandlers(httpapi.HandlersParams{
					AuctionService:      comps.auctions,
					BidService:          comps.bids,
					NotificationService: comps.notifications,
					Logger:              log.Logger,
				}),
				Authenticate:   verifier.Middleware,
				WebSocket:      wsHandler.HandleWebSocket,
				AllowedOrigins: cfg.Server.CORSAllowedOrigins,
				Logger:         log.Logger,
			})

			server := httpapi.NewServer(httpapi.ServerParams{
				Config:  cfg,
				Handler: router,
				Logger:  log.Logger,
			})

			lifecycle := scheduler.NewLifecycleScheduler(scheduler.LifecycleSchedulerParams{
				Sweeper:  comps.auctions,
				Locker:   comps.sweepLocker(cfg),
				Interval: cfg.Lifecycle.Interval,
				Logger:   log.Logger,
			})

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)

			g.Go(server.Start)

			g.Go(func() error {
				lifecycle.Start()
				<-gctx.Done()
				lifecycle.Stop()
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("Starting graceful shutdown...")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()

				wsHandler.CloseAll()
				return server.Stop(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				return err
			}
			log.Info().Msg("Graceful shutdown completed")
			return nil
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "down", Usage: "roll back every migration"},
		},
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)
			if cfg.Database.InMemory() {
				return errors.New("migrations need the postgres store driver")
			}

			conn, err := db.NewConnection(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			if c.Bool("down") {
				if err := db.RollbackMigrations(conn); err != nil {
					return err
				}
				log.Info().Msg("Migrations rolled back")
				return nil
			}
			return db.RunMigrations(conn, log.Logger)
		},
	}
}

func sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "run one lifecycle sweep and exit",
		Action: func(c *cli.Context) error {
			cfg := configFrom(c)

			comps, err := buildComponents(c.Context, cfg, log.Logger)
			if err != nil {
				return err
			}
			defer comps.Close()

			lifecycle := scheduler.NewLifecycleScheduler(scheduler.LifecycleSchedulerParams{
				Sweeper: comps.auctions,
				Locker:  comps.sweepLocker(cfg),
				Logger:  log.Logger,
			})
			if !lifecycle.RunOnce(c.Context) {
				log.Info().Msg("Sweep skipped")
			}
			return nil
		},
	}
}
