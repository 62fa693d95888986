// @title        Auction Engine API
// @version      1.0
// @description  Reverse car auctions: buyers post requests, verified dealers bid down.
// @BasePath     /
// @securityDefinitions.apikey BearerAuth
// @in           header
// @name         Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"github.com/carbidx/auction-engine/internal/api"
	"github.com/carbidx/auction-engine/internal/api/handler"
	"github.com/carbidx/auction-engine/internal/core/ports"
	"github.com/carbidx/auction-engine/internal/core/service"
	"github.com/carbidx/auction-engine/internal/infrastructure/db/memory"
	mongodb "github.com/carbidx/auction-engine/internal/infrastructure/db/mongo"
	redisdb "github.com/carbidx/auction-engine/internal/infrastructure/db/redis"
	"github.com/carbidx/auction-engine/internal/infrastructure/lock"
	"github.com/carbidx/auction-engine/internal/infrastructure/push"
	"github.com/carbidx/auction-engine/internal/infrastructure/queue"
	"github.com/carbidx/auction-engine/internal/pkg/clock"
	"github.com/carbidx/auction-engine/internal/pkg/config"
	"github.com/carbidx/auction-engine/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "auction-engine",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

type storage struct {
	auctions ports.AuctionStore
	bids     ports.BidLedger
	users    ports.UserRepository
	stats    ports.StatsSource
	close    func()
}

func openStorage(ctx context.Context, cfg *config.Config, clk ports.Clock, checks map[string]handler.Check, log zerolog.Logger) (*storage, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		auctions := memory.NewAuctionStore(clk)
		bids := memory.NewBidLedger(auctions)
		users := memory.NewUserRepository()
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return &storage{
			auctions: auctions,
			bids:     bids,
			users:    users,
			stats:    memory.NewStatsSource(auctions, bids, users),
			close:    func() {},
		}, nil
	default:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		checks["mongodb"] = func(ctx context.Context) error {
			return client.Ping(ctx, readpref.Primary())
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongodb")
		return &storage{
			auctions: mongodb.NewAuctionRepository(db, clk),
			bids:     mongodb.NewBidRepository(db),
			users:    mongodb.NewUserRepository(db),
			stats:    mongodb.NewStatsSource(db),
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Warn().Err(err).Msg("mongodb disconnect failed")
				}
			},
		}, nil
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	clk := clock.System{}
	checks := map[string]handler.Check{}

	store, err := openStorage(ctx, cfg, clk, checks, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.close()

	hub := push.NewHub(logger.For("push"))

	var (
		locker    ports.AuctionLocker  = lock.NewKeyed(cfg.Engine.LockWait)
		cache     ports.StatsCache     = memory.NewStatsCache(clk)
		publisher ports.EventPublisher = hub
		bus       *redisdb.Bus
	)
	if cfg.Redis.Enabled {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()

		locker = redisdb.NewLocker(rdb, cfg.Engine.LockTTL, cfg.Engine.LockWait, logger.For("lock"))
		cache = redisdb.NewStatsCache(rdb)
		bus = redisdb.NewBus(rdb, hub, logger.For("bus"))
		publisher = queue.Fanout{hub, bus}
		checks["redis"] = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}

	dispatcher := queue.NewDispatcher(cfg.Engine.DispatchWorkers, publisher, logger.For("dispatcher"))
	engine := service.NewAuctionEngine(store.auctions, store.bids, locker, clk, dispatcher, logger.For("engine"),
		service.WithMaxRetries(cfg.Engine.MaxRetries),
		service.WithDefaultDuration(time.Duration(cfg.Engine.DefaultAuctionHours)*time.Hour),
	)
	scheduler := service.NewScheduler(store.auctions, engine, clk, service.SchedulerConfig{
		Interval:    cfg.Scheduler.Interval,
		BatchSize:   cfg.Scheduler.BatchSize,
		Concurrency: cfg.Scheduler.Concurrency,
	}, logger.For("scheduler"))

	authService := service.NewAuthService(store.users, clk, cfg.JWTSecret, cfg.TokenTTL, logger.For("auth"))
	userService := service.NewUserService(store.users, clk, logger.For("users"))
	statsService := service.NewStatsService(store.stats, cache, clk, cfg.Engine.StatsTTL, logger.For("stats"))

	if cfg.Admin.Email != "" {
		if _, err := authService.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.Name); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	router := api.NewRouter(api.Deps{
		JWTSecret: cfg.JWTSecret,
		Log:       log,
		Clock:     clk,
		Auth:      authService,
		Users:     userService,
		Auctions:  engine,
		Stats:     statsService,
		Push:      hub,
		Conns:     hub,
		Checks:    checks,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })
	if bus != nil {
		g.Go(func() error { return bus.Run(gctx) })
	}
	g.Go(func() error {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := router.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return router.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
