package service

import (
	"context"
	"errors"
	"time"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/metrics"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/payment/razorpay"
	"github.com/fishmart-next/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// webhook 处理结果
const (
	WebhookActionCompleted = "completed"
	WebhookActionFailed    = "failed"
	WebhookActionIgnored   = "ignored"
)

// WebhookResult webhook 处理结果
type WebhookResult struct {
	Event   string `json:"event"`
	Action  string `json:"action"`
	Updated int    `json:"updated"`
}

// WebhookSignatureVerifier 校验 webhook 原始报文签名
type WebhookSignatureVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) error
}

// PaymentWebhookService 网关 webhook：支付成功补记状态，支付失败回滚订单并回补库存
type PaymentWebhookService struct {
	db             *gorm.DB
	verifier       WebhookSignatureVerifier
	paymentRepo    repository.PaymentRecordRepository
	orderRepo      repository.OrderRepository
	userRepo       repository.UserRepository
	ledger         *InventoryLedger
	metricsService *SellerMetricsService
	metrics        *metrics.CheckoutMetrics
}

// NewPaymentWebhookService 创建 webhook 服务
func NewPaymentWebhookService(db *gorm.DB, verifier WebhookSignatureVerifier, paymentRepo repository.PaymentRecordRepository, orderRepo repository.OrderRepository, userRepo repository.UserRepository, ledger *InventoryLedger, metricsService *SellerMetricsService, checkoutMetrics *metrics.CheckoutMetrics) *PaymentWebhookService {
	return &PaymentWebhookService{
		db:             db,
		verifier:       verifier,
		paymentRepo:    paymentRepo,
		orderRepo:      orderRepo,
		userRepo:       userRepo,
		ledger:         ledger,
		metricsService: metricsService,
		metrics:        checkoutMetrics,
	}
}

func paymentLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// HandleWebhook 校验签名并处理事件；未关注的事件直接确认
func (s *PaymentWebhookService) HandleWebhook(ctx context.Context, body []byte, signature string) (result *WebhookResult, err error) {
	log := paymentLogger("provider", constants.PaymentMethodRazorpay, "body_size", len(body))
	eventName := "unknown"
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(KindOf(err))
		} else if result != nil && result.Action == WebhookActionIgnored {
			outcome = WebhookActionIgnored
		}
		s.metrics.IncWebhookEvent(eventName, outcome)
	}()

	if s.verifier == nil {
		return nil, wrapError(KindInternal, ErrGatewayNotConfigured, "payment gateway unavailable")
	}
	if err := s.verifier.VerifyWebhookSignature(body, signature); err != nil {
		log.Warnw("payment_webhook_signature_invalid", "error", err)
		return nil, wrapError(KindPaymentVerificationFailed, err, "invalid webhook signature")
	}
	event, err := razorpay.ParseWebhookEvent(body)
	if err != nil {
		log.Warnw("payment_webhook_payload_invalid", "error", err)
		return nil, wrapError(KindValidation, err, "invalid webhook payload")
	}
	eventName = event.Event
	log = log.With("event", event.Event, "gateway_payment_id", event.PaymentID, "gateway_order_id", event.OrderID)
	log.Infow("payment_webhook_event_parsed")

	switch event.Event {
	case constants.WebhookEventPaymentCaptured, constants.WebhookEventOrderPaid:
		updated, err := s.markCompleted(ctx, event)
		if err != nil {
			log.Errorw("payment_webhook_complete_failed", "error", err)
			return nil, err
		}
		return &WebhookResult{Event: event.Event, Action: WebhookActionCompleted, Updated: updated}, nil
	case constants.WebhookEventPaymentFailed:
		updated, err := s.markFailed(ctx, event)
		if err != nil {
			log.Errorw("payment_webhook_failure_rollback_failed", "error", err)
			return nil, err
		}
		log.Infow("payment_webhook_orders_failed", "orders", updated, "reason", event.ErrorReason)
		return &WebhookResult{Event: event.Event, Action: WebhookActionFailed, Updated: updated}, nil
	default:
		return &WebhookResult{Event: event.Event, Action: WebhookActionIgnored}, nil
	}
}

func (s *PaymentWebhookService) loadRecords(ctx context.Context, event *razorpay.WebhookEvent) ([]models.PaymentRecord, error) {
	if event.PaymentID != "" {
		records, err := s.paymentRepo.ListByGatewayPaymentID(ctx, event.PaymentID)
		if err != nil || len(records) > 0 {
			return records, err
		}
	}
	if event.OrderID != "" {
		return s.paymentRepo.ListByGatewayOrderID(ctx, event.OrderID)
	}
	return nil, nil
}

// markCompleted 幂等：已完成的记录不再更新
func (s *PaymentWebhookService) markCompleted(ctx context.Context, event *razorpay.WebhookEvent) (int, error) {
	records, err := s.loadRecords(ctx, event)
	if err != nil {
		return 0, wrapError(KindInternal, err, "load payment records failed")
	}
	ids := make([]uint, 0, len(records))
	for _, record := range records {
		if record.Status != constants.PaymentStatusCompleted {
			ids = append(ids, record.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	paidAt := time.Now()
	if event.CreatedAt != nil {
		paidAt = *event.CreatedAt
	}
	affected, err := s.paymentRepo.UpdateStatus(ctx, ids, constants.PaymentStatusCompleted, &paidAt)
	if err != nil {
		return 0, wrapError(KindInternal, err, "update payment records failed")
	}
	return int(affected), nil
}

// markFailed 支付失败补偿：记录置失败、订单置 payment_failed、逐项回补库存并回退积分
func (s *PaymentWebhookService) markFailed(ctx context.Context, event *razorpay.WebhookEvent) (int, error) {
	records, err := s.loadRecords(ctx, event)
	if err != nil {
		return 0, wrapError(KindInternal, err, "load payment records failed")
	}
	if len(records) == 0 {
		return 0, nil
	}
	recordIDs := make([]uint, 0, len(records))
	for _, record := range records {
		recordIDs = append(recordIDs, record.ID)
	}
	orders, err := s.orderRepo.ListByPaymentRecordIDs(ctx, recordIDs)
	if err != nil {
		return 0, wrapError(KindInternal, err, "load orders failed")
	}
	pending := make([]models.Order, 0, len(orders))
	for _, order := range orders {
		if order.Status != constants.OrderStatusPaymentFailed {
			pending = append(pending, order)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	failed, err := s.failOrders(ctx, pending)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	for _, order := range failed {
		if err := s.metricsService.RecordCancellation(ctx, order.SellerID, now); err != nil {
			logger.Warnw("seller_cancellation_record_failed", "seller_id", order.SellerID, "order_id", order.ID, "error", err)
		}
	}
	return len(failed), nil
}

// failOrders 在事务内逐单做条件状态迁移，只有本事务迁移成功的订单才回补库存与回退积分；
// 并发重复投递时后提交的一方迁移结果为 0，不会重复回补
func (s *PaymentWebhookService) failOrders(ctx context.Context, candidates []models.Order) ([]models.Order, error) {
	var failed []models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		failed = failed[:0]
		orderRepo := s.orderRepo.WithTx(tx)
		for _, order := range candidates {
			changed, err := orderRepo.TransitionStatus(ctx, order.ID, constants.OrderStatusPaymentFailed)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			failed = append(failed, order)
		}
		if len(failed) == 0 {
			return nil
		}

		paymentIDs := make([]uint, 0, len(failed))
		for _, order := range failed {
			paymentIDs = append(paymentIDs, order.PaymentRecordID)
		}
		if _, err := s.paymentRepo.WithTx(tx).UpdateStatus(ctx, paymentIDs, constants.PaymentStatusFailed, nil); err != nil {
			return err
		}
		for _, order := range failed {
			for _, item := range order.Items {
				if err := s.ledger.Release(ctx, tx, item.ListingID, item.Quantity); err != nil {
					if errors.Is(err, ErrNotFound) {
						logger.Warnw("payment_webhook_restock_skipped", "order_id", order.ID, "listing_id", item.ListingID)
						continue
					}
					return err
				}
			}
			if err := s.reversePoints(ctx, tx, order); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(KindInternal, err, "payment failure rollback failed")
	}
	return failed, nil
}

// reversePoints 退回本单使用的积分并扣回本单获得的积分；余额不足以扣回时保留现状
func (s *PaymentWebhookService) reversePoints(ctx context.Context, tx *gorm.DB, order models.Order) error {
	if order.IsGuestOrder || s.userRepo == nil {
		return nil
	}
	delta := order.PointsUsed - order.PointsEarned
	if delta == 0 {
		return nil
	}
	affected, err := s.userRepo.WithTx(tx).AdjustPoints(ctx, order.UserID, delta)
	if err != nil {
		return err
	}
	if affected == 0 {
		logger.Warnw("payment_webhook_points_reversal_skipped", "order_id", order.ID, "user_id", order.UserID, "delta", delta)
	}
	return nil
}
