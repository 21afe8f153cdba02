package repository

import (
	"context"
	"errors"

	"github.com/fishmart-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	GetActiveByUser(ctx context.Context, userID uint) (*models.Cart, error)
	GetByIDAndUser(ctx context.Context, cartID, userID uint) (*models.Cart, error)
	GetOrCreateActive(ctx context.Context, userID uint) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uint) ([]models.CartItem, error)
	GetItem(ctx context.Context, cartID, itemID uint) (*models.CartItem, error)
	AddItem(ctx context.Context, cartID, listingID uint, quantity int) (*models.CartItem, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID uint, quantity int) (int64, error)
	DeleteItems(ctx context.Context, cartID uint, itemIDs []uint) (int64, error)
	CountItems(ctx context.Context, cartID uint) (int64, error)
	Deactivate(ctx context.Context, cartID uint) error
	WithTx(tx *gorm.DB) CartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// GetActiveByUser 获取用户当前激活的购物车
func (r *GormCartRepository) GetActiveByUser(ctx context.Context, userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).Where("user_id = ? AND is_active = ?", userID, true).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetByIDAndUser 获取指定用户的购物车
func (r *GormCartRepository) GetByIDAndUser(ctx context.Context, cartID, userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", cartID, userID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetOrCreateActive 获取或创建激活购物车；并发创建由部分唯一索引兜底
func (r *GormCartRepository) GetOrCreateActive(ctx context.Context, userID uint) (*models.Cart, error) {
	cart, err := r.GetActiveByUser(ctx, userID)
	if err != nil || cart != nil {
		return cart, err
	}
	created := &models.Cart{UserID: userID, IsActive: true}
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		// 另一请求已抢先创建
		existing, getErr := r.GetActiveByUser(ctx, userID)
		if getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}
	return created, nil
}

// ListItems 获取购物车项（含商品）
func (r *GormCartRepository) ListItems(ctx context.Context, cartID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).Preload("Listing").
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// GetItem 获取购物车项
func (r *GormCartRepository) GetItem(ctx context.Context, cartID, itemID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).Where("id = ? AND cart_id = ?", itemID, cartID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// AddItem 添加购物车项，已存在则累加数量
func (r *GormCartRepository) AddItem(ctx context.Context, cartID, listingID uint, quantity int) (*models.CartItem, error) {
	item := &models.CartItem{CartID: cartID, ListingID: listingID, Quantity: quantity}
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "listing_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_items.quantity + excluded.quantity"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(item).Error; err != nil {
		return nil, err
	}
	var saved models.CartItem
	if err := db.Where("cart_id = ? AND listing_id = ?", cartID, listingID).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// UpdateItemQuantity 修改购物车项数量
func (r *GormCartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID uint, quantity int) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Update("quantity", quantity)
	return result.RowsAffected, result.Error
}

// DeleteItems 删除购物车项
func (r *GormCartRepository) DeleteItems(ctx context.Context, cartID uint, itemIDs []uint) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("cart_id = ? AND id IN ?", cartID, itemIDs).
		Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

// CountItems 统计购物车剩余项
func (r *GormCartRepository) CountItems(ctx context.Context, cartID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CartItem{}).Where("cart_id = ?", cartID).Count(&count).Error
	return count, err
}

// Deactivate 停用购物车
func (r *GormCartRepository) Deactivate(ctx context.Context, cartID uint) error {
	return r.db.WithContext(ctx).Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("is_active", false).Error
}
