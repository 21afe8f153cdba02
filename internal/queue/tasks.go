package queue

import (
	"encoding/json"

	"github.com/fishmart-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSellerMetricsUpdate 卖家统计更新任务
	TaskSellerMetricsUpdate = constants.TaskSellerMetricsUpdate
	// TaskOrderNotification 下单通知邮件任务
	TaskOrderNotification = constants.TaskOrderNotification
)

// SellerMetricsUpdatePayload 卖家统计更新任务载荷
type SellerMetricsUpdatePayload struct {
	UserID   uint   `json:"user_id"`
	OrderIDs []uint `json:"order_ids"`
}

// OrderNotificationPayload 下单通知任务载荷
type OrderNotificationPayload struct {
	UserID   uint   `json:"user_id"`
	OrderIDs []uint `json:"order_ids"`
}

// NewSellerMetricsUpdateTask 创建卖家统计更新任务
func NewSellerMetricsUpdateTask(payload SellerMetricsUpdatePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSellerMetricsUpdate, body), nil
}

// NewOrderNotificationTask 创建下单通知任务
func NewOrderNotificationTask(payload OrderNotificationPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderNotification, body), nil
}
