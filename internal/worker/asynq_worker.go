package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/provider"
	"github.com/fishmart-next/internal/queue"

	"github.com/hibiken/asynq"
)

// SellerMetricsUpdater 卖家统计更新
type SellerMetricsUpdater interface {
	UpdateForOrders(ctx context.Context, userID uint, orderIDs []uint) error
}

// OrderNotifier 下单通知
type OrderNotifier interface {
	NotifyOrdersSettled(ctx context.Context, userID uint, orderIDs []uint) error
}

// Consumer 异步任务消费者
type Consumer struct {
	metrics  SellerMetricsUpdater
	notifier OrderNotifier
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	if c == nil {
		return &Consumer{}
	}
	return &Consumer{
		metrics:  c.SellerMetricsService,
		notifier: c.NotificationService,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSellerMetricsUpdate, c.handleSellerMetricsUpdate)
	mux.HandleFunc(queue.TaskOrderNotification, c.handleOrderNotification)
}

func (c *Consumer) handleSellerMetricsUpdate(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.metrics == nil {
		logger.Debugw("worker_seller_metrics_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SellerMetricsUpdatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_seller_metrics_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if len(payload.OrderIDs) == 0 {
		logger.Debugw("worker_seller_metrics_skip_empty_payload", "user_id", payload.UserID)
		return nil
	}
	if err := c.metrics.UpdateForOrders(ctx, payload.UserID, payload.OrderIDs); err != nil {
		logger.Warnw("worker_seller_metrics_update_failed", "user_id", payload.UserID, "order_ids", payload.OrderIDs, "error", err)
		return err
	}
	return nil
}

func (c *Consumer) handleOrderNotification(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.notifier == nil {
		logger.Debugw("worker_order_notification_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderNotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_notification_unmarshal_failed", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	if len(payload.OrderIDs) == 0 {
		logger.Debugw("worker_order_notification_skip_empty_payload", "user_id", payload.UserID)
		return nil
	}
	if err := c.notifier.NotifyOrdersSettled(ctx, payload.UserID, payload.OrderIDs); err != nil {
		logger.Warnw("worker_order_notification_failed", "user_id", payload.UserID, "order_ids", payload.OrderIDs, "error", err)
		return err
	}
	return nil
}
