package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PORT", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LLM_TIMEOUT", "")

	cfg := Load()
	if cfg.ServerPort != "8000" {
		t.Fatalf("expected default port 8000, got %s", cfg.ServerPort)
	}
	if cfg.StoreDriver != "postgres" {
		t.Fatalf("expected postgres driver, got %s", cfg.StoreDriver)
	}
	if cfg.LLMTimeout != 20*time.Second {
		t.Fatalf("expected 20s llm timeout, got %s", cfg.LLMTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("REMINDERS_ENABLED", "false")
	t.Setenv("REMINDER_LOCK_TTL", "90s")

	cfg := Load()
	if cfg.ServerPort != "9090" {
		t.Fatalf("expected PORT fallback, got %s", cfg.ServerPort)
	}
	if cfg.StoreDriver != "memory" {
		t.Fatalf("expected lowercased driver, got %s", cfg.StoreDriver)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.RemindersEnabled {
		t.Fatal("expected reminders disabled")
	}
	if cfg.ReminderLockTTL != 90*time.Second {
		t.Fatalf("expected 90s lock ttl, got %s", cfg.ReminderLockTTL)
	}
}
