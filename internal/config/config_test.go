package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsWithEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAYMENT_CURRENCY", "USD")
	t.Setenv("ORDER_INITIAL_STATUS", "confirmed")

	cfg := Load()
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr())
	}
	if cfg.Server.IsRelease() {
		t.Fatalf("default mode must not be release")
	}
	if cfg.Payment.Currency != "USD" {
		t.Fatalf("env override not applied, currency=%s", cfg.Payment.Currency)
	}
	if cfg.Order.InitialStatus != "confirmed" {
		t.Fatalf("env override not applied, initial status=%s", cfg.Order.InitialStatus)
	}
	if cfg.Queue.Queues["critical"] != 5 {
		t.Fatalf("unexpected queue weights: %v", cfg.Queue.Queues)
	}
	if cfg.Security.CheckoutRateLimit.MaxRequests != 20 {
		t.Fatalf("unexpected rate limit: %+v", cfg.Security.CheckoutRateLimit)
	}
}

func TestOrderConfigTimeouts(t *testing.T) {
	cfg := OrderConfig{SettlementTimeoutSeconds: 15, SingleSettlementTimeoutSeconds: 10}
	if got := cfg.SettlementTimeout(1); got != 10*time.Second {
		t.Fatalf("single seller timeout want 10s got %v", got)
	}
	if got := cfg.SettlementTimeout(3); got != 15*time.Second {
		t.Fatalf("multi seller timeout want 15s got %v", got)
	}
	if got := (OrderConfig{}).SettlementTimeout(2); got != 15*time.Second {
		t.Fatalf("fallback timeout want 15s got %v", got)
	}
	if got := (OrderConfig{}).MetricsTimeout(); got != 5*time.Second {
		t.Fatalf("fallback metrics timeout want 5s got %v", got)
	}
}

func TestServerConfigIsRelease(t *testing.T) {
	if !(ServerConfig{Mode: " Release "}).IsRelease() {
		t.Fatalf("expected release mode")
	}
}
