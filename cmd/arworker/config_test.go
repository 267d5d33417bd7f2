package main

import (
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("AR_CONCURRENCY", "")
	t.Setenv("AR_MAX_DIMENSION", "")
	t.Setenv("AR_ENABLE_BORDER_ENHANCER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("unexpected redis addr: %s", cfg.RedisAddr)
	}
	if cfg.NATSURL != "nats://127.0.0.1:4222" {
		t.Fatalf("unexpected NATS URL: %s", cfg.NATSURL)
	}
	if cfg.StorageRoot != "./data/ar-storage" {
		t.Fatalf("unexpected storage root: %s", cfg.StorageRoot)
	}
	if cfg.Concurrency != 5 {
		t.Fatalf("unexpected concurrency: %d", cfg.Concurrency)
	}
	if cfg.MaxDimension != 1920 {
		t.Fatalf("unexpected max dimension: %d", cfg.MaxDimension)
	}
	if !cfg.EnhanceBorder {
		t.Fatal("border enhancer should default on")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("AR_CONCURRENCY", "2")
	t.Setenv("AR_ENABLE_BORDER_ENHANCER", "false")
	t.Setenv("WEBHOOK_SECRET", "s3cret")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.RedisAddr != "redis:6380" {
		t.Fatalf("unexpected redis addr: %s", cfg.RedisAddr)
	}
	if cfg.Concurrency != 2 {
		t.Fatalf("unexpected concurrency: %d", cfg.Concurrency)
	}
	if cfg.EnhanceBorder {
		t.Fatal("border enhancer should be off")
	}
	if cfg.WebhookSecret != "s3cret" {
		t.Fatalf("unexpected webhook secret: %s", cfg.WebhookSecret)
	}
}

func TestLoadConfigInvalidConcurrency(t *testing.T) {
	t.Setenv("AR_CONCURRENCY", "not-a-number")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for invalid AR_CONCURRENCY")
	}
}

func TestLoadConfigNegativeRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "-1")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for negative REDIS_DB")
	}
}
