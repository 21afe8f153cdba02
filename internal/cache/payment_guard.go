package cache

import (
	"context"
	"strings"
	"time"
)

const defaultPaymentLockTTL = 2 * time.Minute

// PaymentGuard 基于 Redis SETNX 的支付防重放锁
type PaymentGuard struct {
	lockTTL   time.Duration
	replayTTL time.Duration
}

// NewPaymentGuard 创建支付防重放锁；replayTTL 为结算成功后保留时长
func NewPaymentGuard(replayTTL time.Duration) *PaymentGuard {
	if replayTTL <= 0 {
		replayTTL = 24 * time.Hour
	}
	return &PaymentGuard{lockTTL: defaultPaymentLockTTL, replayTTL: replayTTL}
}

func paymentGuardKey(paymentID string) string {
	return "payment:settle:" + strings.TrimSpace(paymentID)
}

// Acquire 抢占支付 ID；false 表示该支付正在或已经结算
func (g *PaymentGuard) Acquire(ctx context.Context, paymentID string) (bool, error) {
	if strings.TrimSpace(paymentID) == "" {
		return false, nil
	}
	return SetNX(ctx, paymentGuardKey(paymentID), time.Now().Unix(), g.lockTTL)
}

// Complete 结算成功后延长锁，拒绝后续重放
func (g *PaymentGuard) Complete(ctx context.Context, paymentID string) error {
	return Expire(ctx, paymentGuardKey(paymentID), g.replayTTL)
}

// Release 结算失败时释放锁，允许客户端重试
func (g *PaymentGuard) Release(ctx context.Context, paymentID string) error {
	return Del(ctx, paymentGuardKey(paymentID))
}
