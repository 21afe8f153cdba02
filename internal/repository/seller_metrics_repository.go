package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fishmart-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SellerMetricsRepository 卖家统计数据访问接口
type SellerMetricsRepository interface {
	IncrementTotals(ctx context.Context, sellerID uint, sales decimal.Decimal, orders int64, at time.Time) error
	IncrementDaily(ctx context.Context, sellerID uint, day string, sales decimal.Decimal, orders, newCustomers int64) error
	IncrementCancellations(ctx context.Context, sellerID uint, day string, count int64) error
	AverageRating(ctx context.Context, sellerID uint) (float64, error)
	UpdateAggregates(ctx context.Context, sellerID uint, totalListings, activeListings int64, avgRating float64, at time.Time) error
	GetBySeller(ctx context.Context, sellerID uint) (*models.SellerMetrics, error)
	GetDaily(ctx context.Context, sellerID uint, day string) (*models.SellerSalesHistory, error)
	WithTx(tx *gorm.DB) SellerMetricsRepository
}

// GormSellerMetricsRepository GORM 实现
type GormSellerMetricsRepository struct {
	db *gorm.DB
}

// NewSellerMetricsRepository 创建卖家统计仓库
func NewSellerMetricsRepository(db *gorm.DB) *GormSellerMetricsRepository {
	return &GormSellerMetricsRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSellerMetricsRepository) WithTx(tx *gorm.DB) SellerMetricsRepository {
	if tx == nil {
		return r
	}
	return &GormSellerMetricsRepository{db: tx}
}

// IncrementTotals 原子累加卖家销售额与订单数（不存在则插入）
func (r *GormSellerMetricsRepository) IncrementTotals(ctx context.Context, sellerID uint, sales decimal.Decimal, orders int64, at time.Time) error {
	row := &models.SellerMetrics{
		SellerID:         sellerID,
		TotalSales:       models.NewMoneyFromDecimal(sales),
		TotalOrders:      orders,
		LastCalculatedAt: &at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "seller_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_sales":        gorm.Expr("seller_metrics.total_sales + excluded.total_sales"),
			"total_orders":       gorm.Expr("seller_metrics.total_orders + excluded.total_orders"),
			"last_calculated_at": gorm.Expr("excluded.last_calculated_at"),
			"updated_at":         gorm.Expr("excluded.updated_at"),
		}),
	}).Create(row).Error
}

// IncrementDaily 原子累加卖家当日销售日报
func (r *GormSellerMetricsRepository) IncrementDaily(ctx context.Context, sellerID uint, day string, sales decimal.Decimal, orders, newCustomers int64) error {
	row := &models.SellerSalesHistory{
		SellerID:     sellerID,
		Day:          day,
		DailySales:   models.NewMoneyFromDecimal(sales),
		OrderCount:   orders,
		NewCustomers: newCustomers,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "seller_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"daily_sales":   gorm.Expr("seller_sales_history.daily_sales + excluded.daily_sales"),
			"order_count":   gorm.Expr("seller_sales_history.order_count + excluded.order_count"),
			"new_customers": gorm.Expr("seller_sales_history.new_customers + excluded.new_customers"),
			"updated_at":    gorm.Expr("excluded.updated_at"),
		}),
	}).Create(row).Error
}

// IncrementCancellations 原子累加当日取消数
func (r *GormSellerMetricsRepository) IncrementCancellations(ctx context.Context, sellerID uint, day string, count int64) error {
	row := &models.SellerSalesHistory{
		SellerID:      sellerID,
		Day:           day,
		Cancellations: count,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "seller_id"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"cancellations": gorm.Expr("seller_sales_history.cancellations + excluded.cancellations"),
			"updated_at":    gorm.Expr("excluded.updated_at"),
		}),
	}).Create(row).Error
}

// AverageRating 计算卖家全部商品的平均评分
func (r *GormSellerMetricsRepository) AverageRating(ctx context.Context, sellerID uint) (float64, error) {
	var avg sql.NullFloat64
	row := r.db.WithContext(ctx).Table("reviews").
		Select("AVG(reviews.rating)").
		Joins("JOIN fish_listings ON fish_listings.id = reviews.listing_id").
		Where("fish_listings.seller_id = ?", sellerID).
		Row()
	if err := row.Scan(&avg); err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// UpdateAggregates 写入重新计算的商品数与评分
func (r *GormSellerMetricsRepository) UpdateAggregates(ctx context.Context, sellerID uint, totalListings, activeListings int64, avgRating float64, at time.Time) error {
	row := &models.SellerMetrics{
		SellerID:         sellerID,
		TotalListings:    totalListings,
		ActiveListings:   activeListings,
		AvgRating:        models.NewMoneyFromDecimal(decimal.NewFromFloat(avgRating)),
		LastCalculatedAt: &at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_listings", "active_listings", "avg_rating", "last_calculated_at", "updated_at"}),
	}).Create(row).Error
}

// GetBySeller 获取卖家统计
func (r *GormSellerMetricsRepository) GetBySeller(ctx context.Context, sellerID uint) (*models.SellerMetrics, error) {
	var row models.SellerMetrics
	err := r.db.WithContext(ctx).Where("seller_id = ?", sellerID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetDaily 获取卖家某日销售日报
func (r *GormSellerMetricsRepository) GetDaily(ctx context.Context, sellerID uint, day string) (*models.SellerSalesHistory, error) {
	var row models.SellerSalesHistory
	err := r.db.WithContext(ctx).Where("seller_id = ? AND day = ?", sellerID, day).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
