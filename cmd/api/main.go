package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"savings-account/config"
	httpHandler "savings-account/internal/adapter/http/handler"
	"savings-account/internal/adapter/http/middleware"
	memStorage "savings-account/internal/adapter/storage/memory"
	pgStorage "savings-account/internal/adapter/storage/postgres"
	redisStorage "savings-account/internal/adapter/storage/redis"
	"savings-account/internal/core/domain"
	"savings-account/internal/core/ports"
	"savings-account/internal/service"
	"savings-account/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default: ./config.yaml or ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Savings account service stopped")
	}
	log.Info().Msg("Server exited")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Msg("Starting savings account service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store    ports.AccountStore
		checkers []ports.HealthChecker
	)
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return fmt.Errorf("connect to PostgreSQL: %w", err)
		}
		defer pool.Close()

		pgStore, err := pgStorage.NewAccountStore(ctx, pool, log)
		if err != nil {
			return err
		}
		store = pgStore
		checkers = append(checkers, pgStorage.NewHealthCheck(pool))
	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory account store, state is lost on restart")
		store = memStorage.NewAccountStore()
	}

	var (
		cache   ports.BalanceCache
		limiter ports.RateLimiter
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect to Redis: %w", err)
		}
		defer rdb.Close()

		cache = redisStorage.NewBalanceCache(rdb)
		if cfg.RateLimit.Enabled {
			limiter = redisStorage.NewRateLimitStore(rdb)
		}
		checkers = append(checkers, redisStorage.NewHealthCheck(rdb))
	}

	rate, err := cfg.Account.Rate()
	if err != nil {
		return err
	}
	defaultRate, err := domain.NewInterestRate(rate)
	if err != nil {
		return err
	}

	accountSvc := service.NewAccountService(store, cache, service.AccountOptions{
		DefaultRate:     defaultRate,
		ConflictRetries: cfg.Account.ConflictRetries,
		BalanceTTL:      cfg.Redis.BalanceTTL,
	}, log)

	gin.SetMode(cfg.Server.Mode)
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AccountSvc:     accountSvc,
		RateLimiter:    limiter,
		RateLimitRules: middleware.RateLimitRules(cfg.RateLimit),
		HealthCheckers: checkers,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	return nil
}
