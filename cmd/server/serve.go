package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"market-cache-api/internal/audit"
	"market-cache-api/internal/auth"
	"market-cache-api/internal/cache"
	"market-cache-api/internal/config"
	"market-cache-api/internal/database"
	"market-cache-api/internal/handlers"
	"market-cache-api/internal/market"
	"market-cache-api/internal/models"
	"market-cache-api/internal/realtime"
	"market-cache-api/internal/routes"
	"market-cache-api/internal/upstream"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// serve runs the API until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	if log.GetLevel() > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	users := auth.NewUsers(db)
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		// auth is off; login still works but its tokens only live as long as the process
		secret = uuid.NewString() + uuid.NewString()
	}
	tokens := auth.NewTokenManager(secret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.JWTTTL)
	var guard *auth.TokenManager
	if cfg.Auth.Enabled {
		guard = tokens
		if cfg.Auth.AdminPassword == "" {
			log.Warn().Msgf("%s is empty, only existing operators can log in", config.KeyAdminPassword)
		} else if _, err := users.Ensure(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("ensure admin user: %w", err)
		}
	} else {
		log.Warn().Msg("cache management routes are not protected")
	}

	clk := clock.New()
	registry, err := cache.NewPolicyRegistry(log, []cache.Policy{
		{Name: cache.ShortName, DefaultTTL: cfg.Cache.ShortTTL, MaxEntries: cfg.Cache.MaxEntries},
		{Name: cache.LongName, DefaultTTL: cfg.Cache.LongTTL, MaxEntries: cfg.Cache.MaxEntries},
		{Name: cache.APIName, DefaultTTL: cfg.Cache.APITTL, MaxEntries: cfg.Cache.MaxEntries},
	}, cache.WithSingleFlight(cfg.Cache.SingleFlight), cache.WithClock(clk))
	if err != nil {
		return err
	}

	hub := realtime.NewHub()
	events := audit.New(db, hub, clk, log)

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		cache.NewCollector("market", registry),
	)

	fetcher := upstream.New(upstream.Options{
		Timeout: cfg.Upstream.Timeout,
		Retries: cfg.Upstream.Retries,
		Backoff: cfg.Upstream.Backoff,
	}, log)
	svc := market.NewService(fetcher, market.CachesFrom(registry), cfg.Upstream)

	router := routes.SetupRoutes(routes.Dependencies{
		Log:     log,
		Auth:    handlers.NewAuthHandler(users, tokens, log),
		Cache:   handlers.NewCacheHandler(registry, events, log),
		Market:  handlers.NewMarketHandler(svc, log),
		Events:  handlers.NewEventsHandler(hub, log),
		Metrics: metrics,
		Tokens:  guard,
	})

	go registry.RunJanitor(ctx, clk, cfg.Cache.CleanupInterval, func(removed map[string]int) {
		total := cache.Total(removed)
		if total == 0 {
			return
		}
		if _, err := events.Record(ctx, models.CacheEvent{
			Action:  models.ActionJanitor,
			Removed: total,
			Actor:   "janitor",
		}); err != nil {
			log.Error().Err(err).Msg("failed to record janitor sweep")
		}
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Bool("auth", cfg.Auth.Enabled).
			Bool("singleFlight", cfg.Cache.SingleFlight).
			Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
