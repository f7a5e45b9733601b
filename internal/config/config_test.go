package config

import (
	"slices"
	"testing"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "DATABASE_DRIVER", "DATABASE_URL", "DATABASE_MIGRATE", "KAFKA_BROKERS", "STATS_CACHE_TTL_SECONDS", "IDEMPOTENCY_TTL_MINUTES", "ACCESS_TOKEN_TTL_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.DatabaseDriver != "pgx" || cfg.DatabaseURL != "" || !cfg.DatabaseMigrate {
		t.Fatalf("unexpected database defaults: %+v", cfg)
	}
	if cfg.KafkaBrokers != nil {
		t.Fatalf("expected events disabled by default, got %v", cfg.KafkaBrokers)
	}
	if cfg.IsProduction() {
		t.Fatalf("expected development by default")
	}
	if cfg.StatsCacheTTLSeconds != 15 || cfg.IdempotencyTTLMinutes != 30 || cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("unexpected ttl defaults: %+v", cfg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("DATABASE_MIGRATE", "false")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("STATS_CACHE_TTL_SECONDS", "-4")
	t.Setenv("IDEMPOTENCY_TTL_MINUTES", "5")

	cfg := Load()
	if !cfg.IsProduction() {
		t.Fatalf("expected production env")
	}
	if cfg.DatabaseDriver != "mysql" || cfg.DatabaseMigrate {
		t.Fatalf("unexpected database config: %+v", cfg)
	}
	if !slices.Equal(cfg.KafkaBrokers, []string{"kafka-1:9092", "kafka-2:9092"}) {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.StatsCacheTTLSeconds != 15 {
		t.Fatalf("expected invalid ttl to fall back, got %d", cfg.StatsCacheTTLSeconds)
	}
	if cfg.IdempotencyTTLMinutes != 5 {
		t.Fatalf("expected idempotency ttl 5, got %d", cfg.IdempotencyTTLMinutes)
	}
}
