package service

import (
	"context"
	"time"

	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/queue"
)

const defaultPostCommitTimeout = 30 * time.Second

// PostCommitDispatcher 结算提交后投递卖家统计与通知任务；队列未启用时在后台协程内执行
type PostCommitDispatcher struct {
	queueClient         *queue.Client
	metricsService      *SellerMetricsService
	notificationService *NotificationService
	timeout             time.Duration
}

// NewPostCommitDispatcher 创建异步任务投递器
func NewPostCommitDispatcher(queueClient *queue.Client, metricsService *SellerMetricsService, notificationService *NotificationService) *PostCommitDispatcher {
	return &PostCommitDispatcher{
		queueClient:         queueClient,
		metricsService:      metricsService,
		notificationService: notificationService,
		timeout:             defaultPostCommitTimeout,
	}
}

// PublishOrdersSettled 投递任务，失败仅记录日志
func (d *PostCommitDispatcher) PublishOrdersSettled(_ context.Context, userID uint, orderIDs []uint) {
	if d == nil || len(orderIDs) == 0 {
		return
	}
	if !d.queueClient.Enabled() {
		go d.runDetached(userID, orderIDs, true, true)
		return
	}

	runMetrics, runNotify := false, false
	if err := d.queueClient.EnqueueSellerMetricsUpdate(queue.SellerMetricsUpdatePayload{UserID: userID, OrderIDs: orderIDs}); err != nil {
		logger.Warnw("seller_metrics_enqueue_failed", "user_id", userID, "order_ids", orderIDs, "error", err)
		runMetrics = true
	}
	if err := d.queueClient.EnqueueOrderNotification(queue.OrderNotificationPayload{UserID: userID, OrderIDs: orderIDs}); err != nil {
		logger.Warnw("order_notification_enqueue_failed", "user_id", userID, "order_ids", orderIDs, "error", err)
		runNotify = true
	}
	if runMetrics || runNotify {
		go d.runDetached(userID, orderIDs, runMetrics, runNotify)
	}
}

func (d *PostCommitDispatcher) runDetached(userID uint, orderIDs []uint, runMetrics, runNotify bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("post_commit_panic", "user_id", userID, "order_ids", orderIDs, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if runMetrics && d.metricsService != nil {
		if err := d.metricsService.UpdateForOrders(ctx, userID, orderIDs); err != nil {
			logger.Warnw("post_commit_metrics_failed", "user_id", userID, "order_ids", orderIDs, "error", err)
		}
	}
	if runNotify && d.notificationService != nil {
		if err := d.notificationService.NotifyOrdersSettled(ctx, userID, orderIDs); err != nil {
			logger.Warnw("post_commit_notification_failed", "user_id", userID, "order_ids", orderIDs, "error", err)
		}
	}
}
