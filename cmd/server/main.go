package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"utilisoft/backend/internal/cache"
	"utilisoft/backend/internal/config"
	"utilisoft/backend/internal/domain"
	"utilisoft/backend/internal/events"
	"utilisoft/backend/internal/httpapi"
	"utilisoft/backend/internal/logger"
	"utilisoft/backend/internal/metrics"
	"utilisoft/backend/internal/sale"
	"utilisoft/backend/internal/service"
	"utilisoft/backend/internal/stats"
	"utilisoft/backend/internal/store"
	"utilisoft/backend/internal/store/memory"
	"utilisoft/backend/internal/store/sqlstore"
	"utilisoft/backend/internal/suggest"
)

const suggestionTTL = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger.Init("utilisoft-backend", !cfg.IsProduction())
	logger.SetLevel(cfg.LogLevel)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Logger.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("repository unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
	}
	if closeRepo != nil {
		closers = append(closers, closeRepo)
	}

	var (
		statsCache   cache.StatsCache      = cache.Noop{}
		suggestCache cache.SuggestionCache = cache.Noop{}
		guard        sale.Guard            = sale.NewMemoryGuard()
	)
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable, using noop caches and in-process checkout guard")
		} else {
			statsCache, suggestCache, guard = redisCache, redisCache, redisCache
			closers = append(closers, redisCache.Close)
			logger.Logger.Info().Str("addr", cfg.RedisAddr).Msg("cache: redis")
		}
	} else {
		logger.Logger.Info().Msg("cache: noop")
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Logger.Warn().Err(err).Msg("kafka unavailable, sale events disabled")
		} else {
			publisher = kafka
			logger.Logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("events: kafka")
		}
	}
	closers = append(closers, publisher.Close)

	m := metrics.New(prometheus.DefaultRegisterer)
	suggester := suggest.NewEngine(repo, suggestCache, suggestionTTL)
	aggregator := stats.NewAggregator(repo, statsCache, time.Duration(cfg.StatsCacheTTLSeconds)*time.Second)

	committer := sale.NewCommitter(repo)
	committer.OnCommit(func(_ context.Context, receipt domain.SaleReceipt) { m.ObserveReceipt(receipt) })
	committer.OnCommit(func(ctx context.Context, receipt domain.SaleReceipt) {
		if err := publisher.PublishSaleCommitted(ctx, receipt); err != nil {
			logger.Error(ctx).Err(err).Str("commit_id", receipt.CommitID).Msg("publish sale event failed")
		}
	})
	committer.OnCommit(func(ctx context.Context, _ domain.SaleReceipt) {
		aggregator.Invalidate(ctx)
		suggester.Invalidate(ctx)
	})

	sessions := sale.NewSessions(committer, guard, time.Duration(cfg.IdempotencyTTLMinutes)*time.Minute)
	svc := service.New(repo, sessions, suggester, aggregator)
	svc.OnCheckout(m.ObserveCheckout)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if err := seedOperators(ctx, auth); err != nil {
		logger.Logger.Fatal().Err(err).Msg("seed operator accounts failed")
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, m, prometheus.DefaultGatherer)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Logger.Info().Str("addr", cfg.Address()).Msg("utilisoft backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Logger.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Logger.Error().Err(err).Msg("close error")
		}
	}

	logger.Logger.Info().Msg("server stopped")
}

// openRepository picks the SQL store when DATABASE_URL is set and the seeded
// in-memory store otherwise. The returned close func is nil for memory.
func openRepository(ctx context.Context, cfg config.Config) (store.Repository, func() error, error) {
	if cfg.DatabaseURL == "" {
		logger.Logger.Info().Msg("repository: in-memory")
		return memory.NewSeeded(), nil, nil
	}

	db, err := sqlstore.New(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Logger.Info().Str("driver", cfg.DatabaseDriver).Msg("repository: sql")
	return db, db.Close, nil
}

// seedOperators creates the first admin and salesman accounts on an empty
// user table. Accounts are only created for the SEED_* passwords that are set.
func seedOperators(ctx context.Context, auth *httpapi.AuthManager) error {
	if len(auth.ListUsers(ctx)) > 0 {
		return nil
	}
	for _, seed := range []struct {
		username string
		env      string
		role     string
	}{
		{"admin", "SEED_ADMIN_PASSWORD", domain.RoleAdmin},
		{"salesman", "SEED_SALESMAN_PASSWORD", domain.RoleSalesman},
	} {
		password := strings.TrimSpace(os.Getenv(seed.env))
		if password == "" {
			continue
		}
		if _, err := auth.CreateUser(ctx, domain.UserCreateRequest{Username: seed.username, Password: password, Role: seed.role}); err != nil {
			return fmt.Errorf("seed %s: %w", seed.username, err)
		}
		logger.Logger.Info().Str("username", seed.username).Str("role", seed.role).Msg("seeded operator account")
	}
	return nil
}

func validateSecurityConfig(cfg config.Config) error {
	if !cfg.IsProduction() {
		return nil
	}
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if strings.TrimSpace(cfg.AllowedOrigin) == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name an origin in production")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set in production")
	}
	return nil
}
