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

	"github.com/hackgods/clinic-records/internal/account"
	"github.com/hackgods/clinic-records/internal/api"
	"github.com/hackgods/clinic-records/internal/appointment"
	"github.com/hackgods/clinic-records/internal/billing"
	"github.com/hackgods/clinic-records/internal/config"
	"github.com/hackgods/clinic-records/internal/db"
	"github.com/hackgods/clinic-records/internal/logging"
	"github.com/hackgods/clinic-records/internal/lookup"
	redisclient "github.com/hackgods/clinic-records/internal/redis"
	"github.com/hackgods/clinic-records/internal/schema"
	"github.com/hackgods/clinic-records/internal/store"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Env, cfg.LogLevel)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("version", version).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	if cfg.MigrateOnStart {
		n, err := db.NewMigrator(pgPool, db.Migrations()).Up(rootCtx)
		if err != nil {
			log.Fatal().Err(err).Msg("migration error")
		}
		log.Info().Int("applied", n).Msg("migrations up to date")
	}

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	cat := schema.Clinic()
	st := store.New(cat, store.NewPostgresBackend(pgPool, cat), log)

	cache := lookup.New(cat, st, log)
	invalidator := redisclient.NewInvalidator(rdb, cfg.LookupChannel, log)
	cache.SetNotifier(invalidator)
	if err := cache.Refresh(rootCtx); err != nil {
		log.Fatal().Err(err).Msg("lookup load error")
	}
	go func() {
		err := invalidator.Listen(rootCtx, func(ctx context.Context, table string) {
			if err := cache.Refresh(ctx); err != nil {
				log.Error().Err(err).Str("table", table).Msg("lookup refresh failed")
			}
		})
		if err != nil {
			log.Error().Err(err).Msg("lookup invalidation listener stopped")
		}
	}()

	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	router := api.NewRouter(api.RouterConfig{
		Store:        st,
		Lookups:      cache,
		Appointments: appointment.NewService(appointment.NewStoreRepository(st), locker, cache, cfg, log),
		Billing:      billing.NewService(st, log),
		Accounts:     account.NewService(st, log),
		Postgres:     pgPool,
		Redis:        func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		Log:          log,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
