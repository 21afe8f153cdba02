package cache

import (
	"context"
	"testing"
	"time"
)

func TestDisabledCacheIsNoop(t *testing.T) {
	if err := InitRedis(nil); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	if Enabled() || Client() != nil {
		t.Fatalf("redis should be disabled")
	}
	ctx := context.Background()
	found, err := GetJSON(ctx, "missing", &struct{}{})
	if err != nil || found {
		t.Fatalf("disabled GetJSON should miss, found=%v err=%v", found, err)
	}
	ok, err := SetNX(ctx, "k", 1, time.Minute)
	if err != nil || !ok {
		t.Fatalf("disabled SetNX should succeed, ok=%v err=%v", ok, err)
	}
}

func TestPaymentGuardWithoutRedisAllowsSettlement(t *testing.T) {
	if err := InitRedis(nil); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	guard := NewPaymentGuard(0)
	if guard.replayTTL != 24*time.Hour || guard.lockTTL != defaultPaymentLockTTL {
		t.Fatalf("unexpected guard ttl: %+v", guard)
	}
	ctx := context.Background()
	ok, err := guard.Acquire(ctx, "pay_1")
	if err != nil || !ok {
		t.Fatalf("acquire without redis should pass, ok=%v err=%v", ok, err)
	}
	if ok, _ := guard.Acquire(ctx, "  "); ok {
		t.Fatalf("blank payment id must not acquire")
	}
	if err := guard.Complete(ctx, "pay_1"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if err := guard.Release(ctx, "pay_1"); err != nil {
		t.Fatalf("release failed: %v", err)
	}
}

func TestBuildKeyPrefix(t *testing.T) {
	redisPrefix = "fm"
	if got := buildKey(" payment:settle:pay_1 "); got != "fm:payment:settle:pay_1" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := buildKey(""); got != "fm" {
		t.Fatalf("unexpected empty key: %s", got)
	}
}
