package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics 下单、结算与卖家统计相关指标
type CheckoutMetrics struct {
	checkouts          *prometheus.CounterVec
	settlementDuration *prometheus.HistogramVec
	sellerUpdates      *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
}

// NewCheckoutMetrics 在给定 registerer 上注册指标；reg 为 nil 时返回空实现
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_requests_total",
		Help: "Checkout attempts by flow and outcome.",
	}, []string{"flow", "outcome"})
	settlementDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of order settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	sellerUpdates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seller_metrics_updates_total",
		Help: "Post-commit seller metrics updates by outcome.",
	}, []string{"outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Payment webhook deliveries by event and outcome.",
	}, []string{"event", "outcome"})
	reg.MustRegister(checkouts, settlementDuration, sellerUpdates, webhookEvents)
	return &CheckoutMetrics{
		checkouts:          checkouts,
		settlementDuration: settlementDuration,
		sellerUpdates:      sellerUpdates,
		webhookEvents:      webhookEvents,
	}
}

// IncCheckout 记录一次下单结果
func (m *CheckoutMetrics) IncCheckout(flow, outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(flow), normalizeLabel(outcome)).Inc()
}

// ObserveSettlement 记录结算事务耗时
func (m *CheckoutMetrics) ObserveSettlement(outcome string, duration time.Duration) {
	if m == nil || m.settlementDuration == nil {
		return
	}
	m.settlementDuration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncSellerUpdate 记录卖家统计更新结果
func (m *CheckoutMetrics) IncSellerUpdate(outcome string) {
	if m == nil || m.sellerUpdates == nil {
		return
	}
	m.sellerUpdates.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncWebhookEvent 记录 webhook 处理结果
func (m *CheckoutMetrics) IncWebhookEvent(event, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
