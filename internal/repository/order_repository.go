package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/fishmart-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单及其配送、支付子记录的数据访问接口
type OrderRepository interface {
	CreateShippingRecord(ctx context.Context, record *models.ShippingRecord) error
	CreatePaymentRecord(ctx context.Context, record *models.PaymentRecord) error
	Create(ctx context.Context, order *models.Order, items []models.OrderItem) error
	GetByIDAndUser(ctx context.Context, id, userID uint) (*models.Order, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Order, error)
	ListByUser(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error)
	ListByPaymentRecordIDs(ctx context.Context, paymentRecordIDs []uint) ([]models.Order, error)
	UpdateStatus(ctx context.Context, ids []uint, status string) (int64, error)
	TransitionStatus(ctx context.Context, id uint, status string) (bool, error)
	HasPriorOrderWithSeller(ctx context.Context, userID, sellerID uint, statuses []string, excludeOrderIDs []uint) (bool, error)
	WithTx(tx *gorm.DB) OrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) OrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// CreateShippingRecord 创建配送记录
func (r *GormOrderRepository) CreateShippingRecord(ctx context.Context, record *models.ShippingRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// CreatePaymentRecord 创建支付记录
func (r *GormOrderRepository) CreatePaymentRecord(ctx context.Context, record *models.PaymentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Create 创建订单与订单项（订单项批量写入）
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	db := r.db.WithContext(ctx)
	if err := db.Omit("Items", "ShippingRecord", "PaymentRecord", "Seller").Create(order).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return err
		}
	}
	order.Items = items
	return nil
}

// GetByIDAndUser 获取用户订单详情
func (r *GormOrderRepository) GetByIDAndUser(ctx context.Context, id, userID uint) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("ShippingRecord").
		Preload("PaymentRecord").
		Preload("Seller").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListByIDs 批量获取订单（含订单项）
func (r *GormOrderRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Order, error) {
	if len(ids) == 0 {
		return []models.Order{}, nil
	}
	var orders []models.Order
	if err := r.db.WithContext(ctx).Preload("Items").Preload("ShippingRecord").Where("id IN ?", ids).Order("id asc").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// ListByUser 获取用户订单列表
func (r *GormOrderRepository) ListByUser(ctx context.Context, filter OrderListFilter) ([]models.Order, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", filter.UserID)
	if filter.SellerID != 0 {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"order_no", "notes"})
		query = query.Where(condition, repeatLikeArgs(likePattern(keyword), argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Preload("Items").Order("id desc").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListByPaymentRecordIDs 根据支付记录获取订单（含订单项）
func (r *GormOrderRepository) ListByPaymentRecordIDs(ctx context.Context, paymentRecordIDs []uint) ([]models.Order, error) {
	if len(paymentRecordIDs) == 0 {
		return []models.Order{}, nil
	}
	var orders []models.Order
	if err := r.db.WithContext(ctx).Preload("Items").
		Where("payment_record_id IN ?", paymentRecordIDs).
		Order("id asc").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus 批量更新订单状态
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, ids []uint, status string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Order{}).Where("id IN ?", ids).Update("status", status)
	return result.RowsAffected, result.Error
}

// TransitionStatus 仅当订单尚未处于目标状态时更新，返回本次是否发生了状态变更
func (r *GormOrderRepository) TransitionStatus(ctx context.Context, id uint, status string) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status <> ?", id, status).
		Update("status", status)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// HasPriorOrderWithSeller 用户是否已有包含该卖家商品的有效订单
func (r *GormOrderRepository) HasPriorOrderWithSeller(ctx context.Context, userID, sellerID uint, statuses []string, excludeOrderIDs []uint) (bool, error) {
	query := r.db.WithContext(ctx).Table("orders").
		Joins("JOIN order_items ON order_items.order_id = orders.id").
		Joins("JOIN fish_listings ON fish_listings.id = order_items.listing_id").
		Where("orders.user_id = ? AND fish_listings.seller_id = ?", userID, sellerID)
	if len(statuses) > 0 {
		query = query.Where("orders.status IN ?", statuses)
	}
	if len(excludeOrderIDs) > 0 {
		query = query.Where("orders.id NOT IN ?", excludeOrderIDs)
	}
	var count int64
	if err := query.Distinct("orders.id").Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
