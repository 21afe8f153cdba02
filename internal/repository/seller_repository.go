package repository

import (
	"context"
	"errors"

	"github.com/fishmart-next/internal/models"

	"gorm.io/gorm"
)

// SellerRepository 卖家数据访问接口
type SellerRepository interface {
	ListByIDs(ctx context.Context, ids []uint) ([]models.Seller, error)
	Create(ctx context.Context, seller *models.Seller) error
	GetByUserID(ctx context.Context, userID uint) (*models.Seller, error)
}

// GormSellerRepository GORM 实现
type GormSellerRepository struct {
	db *gorm.DB
}

// NewSellerRepository 创建卖家仓库
func NewSellerRepository(db *gorm.DB) *GormSellerRepository {
	return &GormSellerRepository{db: db}
}

// ListByIDs 批量获取卖家（含账号邮箱）
func (r *GormSellerRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Seller, error) {
	if len(ids) == 0 {
		return []models.Seller{}, nil
	}
	var sellers []models.Seller
	if err := r.db.WithContext(ctx).Preload("User").Where("id IN ?", ids).Find(&sellers).Error; err != nil {
		return nil, err
	}
	return sellers, nil
}

// Create 创建卖家
func (r *GormSellerRepository) Create(ctx context.Context, seller *models.Seller) error {
	return r.db.WithContext(ctx).Create(seller).Error
}

// GetByUserID 根据账号获取卖家档案
func (r *GormSellerRepository) GetByUserID(ctx context.Context, userID uint) (*models.Seller, error) {
	if userID == 0 {
		return nil, nil
	}
	var seller models.Seller
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&seller).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &seller, nil
}
