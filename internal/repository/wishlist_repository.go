package repository

import (
	"context"
	"errors"

	"github.com/fishmart-next/internal/models"

	"gorm.io/gorm"
)

// WishlistRepository 收藏夹数据访问接口
type WishlistRepository interface {
	Get(ctx context.Context, userID, listingID uint) (*models.WishlistItem, error)
	Create(ctx context.Context, item *models.WishlistItem) error
	Delete(ctx context.Context, userID, listingID uint) (int64, error)
	ListByUser(ctx context.Context, userID uint) ([]models.WishlistItem, error)
}

// GormWishlistRepository GORM 实现
type GormWishlistRepository struct {
	db *gorm.DB
}

// NewWishlistRepository 创建收藏夹仓库
func NewWishlistRepository(db *gorm.DB) *GormWishlistRepository {
	return &GormWishlistRepository{db: db}
}

// Get 获取用户对某商品的收藏
func (r *GormWishlistRepository) Get(ctx context.Context, userID, listingID uint) (*models.WishlistItem, error) {
	var item models.WishlistItem
	err := r.db.WithContext(ctx).Where("user_id = ? AND listing_id = ?", userID, listingID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// Create 新增收藏
func (r *GormWishlistRepository) Create(ctx context.Context, item *models.WishlistItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// Delete 删除收藏，返回受影响行数
func (r *GormWishlistRepository) Delete(ctx context.Context, userID, listingID uint) (int64, error) {
	result := r.db.WithContext(ctx).Where("user_id = ? AND listing_id = ?", userID, listingID).Delete(&models.WishlistItem{})
	return result.RowsAffected, result.Error
}

// ListByUser 获取用户收藏（含商品）
func (r *GormWishlistRepository) ListByUser(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	if err := r.db.WithContext(ctx).Preload("Listing").
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
