package repository

import (
	"context"
	"time"

	"github.com/fishmart-next/internal/models"

	"gorm.io/gorm"
)

// PaymentRecordRepository 支付记录数据访问接口
type PaymentRecordRepository interface {
	ListByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) ([]models.PaymentRecord, error)
	ListByGatewayOrderID(ctx context.Context, gatewayOrderID string) ([]models.PaymentRecord, error)
	UpdateStatus(ctx context.Context, ids []uint, status string, paidAt *time.Time) (int64, error)
	WithTx(tx *gorm.DB) PaymentRecordRepository
}

// GormPaymentRecordRepository GORM 实现
type GormPaymentRecordRepository struct {
	db *gorm.DB
}

// NewPaymentRecordRepository 创建支付记录仓库
func NewPaymentRecordRepository(db *gorm.DB) *GormPaymentRecordRepository {
	return &GormPaymentRecordRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRecordRepository) WithTx(tx *gorm.DB) PaymentRecordRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRecordRepository{db: tx}
}

// ListByGatewayPaymentID 根据网关支付 ID 获取拆分后的支付记录
func (r *GormPaymentRecordRepository) ListByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if gatewayPaymentID == "" {
		return records, nil
	}
	if err := r.db.WithContext(ctx).Where("gateway_payment_id = ?", gatewayPaymentID).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// ListByGatewayOrderID 根据网关订单 ID 获取支付记录
func (r *GormPaymentRecordRepository) ListByGatewayOrderID(ctx context.Context, gatewayOrderID string) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if gatewayOrderID == "" {
		return records, nil
	}
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateStatus 批量更新支付状态
func (r *GormPaymentRecordRepository) UpdateStatus(ctx context.Context, ids []uint, status string, paidAt *time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if paidAt != nil {
		updates["payment_date"] = *paidAt
	}
	result := r.db.WithContext(ctx).Model(&models.PaymentRecord{}).Where("id IN ?", ids).Updates(updates)
	return result.RowsAffected, result.Error
}
