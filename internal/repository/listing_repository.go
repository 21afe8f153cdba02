package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/models"

	"gorm.io/gorm"
)

// ListingRepository 商品与库存数据访问接口
type ListingRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Listing, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.Listing, error)
	Create(ctx context.Context, listing *models.Listing) error
	Reserve(ctx context.Context, id uint, quantity int) (int64, error)
	Release(ctx context.Context, id uint, quantity int) (int64, error)
	CountBySeller(ctx context.Context, sellerID uint) (int64, int64, error)
	ListBySeller(ctx context.Context, filter ListingListFilter) ([]models.Listing, int64, error)
	UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error
	MarkDeleted(ctx context.Context, id uint) (bool, error)
	WithTx(tx *gorm.DB) ListingRepository
}

// GormListingRepository GORM 实现
type GormListingRepository struct {
	db *gorm.DB
}

// NewListingRepository 创建商品仓库
func NewListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// WithTx 绑定事务
func (r *GormListingRepository) WithTx(tx *gorm.DB) ListingRepository {
	if tx == nil {
		return r
	}
	return &GormListingRepository{db: tx}
}

// GetByID 根据 ID 获取商品
func (r *GormListingRepository) GetByID(ctx context.Context, id uint) (*models.Listing, error) {
	if id == 0 {
		return nil, nil
	}
	var listing models.Listing
	if err := r.db.WithContext(ctx).First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &listing, nil
}

// ListByIDs 批量获取商品
func (r *GormListingRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.Listing, error) {
	if len(ids) == 0 {
		return []models.Listing{}, nil
	}
	var listings []models.Listing
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// Create 创建商品
func (r *GormListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

// Reserve 条件扣减库存：仅当商品在售且库存充足时扣减，返回受影响行数
func (r *GormListingRepository) Reserve(ctx context.Context, id uint, quantity int) (int64, error) {
	if id == 0 || quantity <= 0 {
		return 0, nil
	}
	db := r.db.WithContext(ctx)
	result := db.Model(&models.Listing{}).
		Where("id = ? AND listing_status = ? AND quantity_available >= ?", id, constants.ListingStatusActive, quantity).
		Updates(map[string]interface{}{
			"quantity_available": gorm.Expr("quantity_available - ?", quantity),
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}
	if err := db.Model(&models.Listing{}).
		Where("id = ? AND listing_status = ? AND quantity_available = 0", id, constants.ListingStatusActive).
		Update("listing_status", constants.ListingStatusSoldOut).Error; err != nil {
		return 0, err
	}
	return result.RowsAffected, nil
}

// Release 回补库存，售罄商品恢复在售
func (r *GormListingRepository) Release(ctx context.Context, id uint, quantity int) (int64, error) {
	if id == 0 || quantity <= 0 {
		return 0, nil
	}
	db := r.db.WithContext(ctx)
	result := db.Model(&models.Listing{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity_available": gorm.Expr("quantity_available + ?", quantity),
			"updated_at":         time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if err := db.Model(&models.Listing{}).
		Where("id = ? AND listing_status = ? AND quantity_available > 0", id, constants.ListingStatusSoldOut).
		Update("listing_status", constants.ListingStatusActive).Error; err != nil {
		return 0, err
	}
	return result.RowsAffected, nil
}

// CountBySeller 统计卖家商品总数与在售数
func (r *GormListingRepository) CountBySeller(ctx context.Context, sellerID uint) (int64, int64, error) {
	var total int64
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Listing{}).
		Where("seller_id = ? AND listing_status <> ?", sellerID, constants.ListingStatusDeleted).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	var active int64
	if err := db.Model(&models.Listing{}).
		Where("seller_id = ? AND listing_status = ?", sellerID, constants.ListingStatusActive).
		Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

// ListBySeller 分页获取卖家商品，默认排除已删除
func (r *GormListingRepository) ListBySeller(ctx context.Context, filter ListingListFilter) ([]models.Listing, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Listing{}).Where("seller_id = ?", filter.SellerID)
	if filter.Status != "" {
		query = query.Where("listing_status = ?", filter.Status)
	} else {
		query = query.Where("listing_status <> ?", constants.ListingStatusDeleted)
	}
	if filter.CategoryID != 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var listings []models.Listing
	query = applyPagination(query, filter.Page, filter.PageSize)
	if err := query.Order(listingSortClause(filter.Sort)).Find(&listings).Error; err != nil {
		return nil, 0, err
	}
	return listings, total, nil
}

func listingSortClause(sort string) string {
	switch sort {
	case "price_asc":
		return "price asc, id asc"
	case "price_desc":
		return "price desc, id desc"
	case "oldest":
		return "created_at asc, id asc"
	default:
		return "created_at desc, id desc"
	}
}

// UpdateFields 按列更新商品
func (r *GormListingRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	if id == 0 || len(fields) == 0 {
		return nil
	}
	fields["updated_at"] = time.Now()
	return r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Updates(fields).Error
}

// MarkDeleted 下架并标记删除，保留记录供历史订单引用
func (r *GormListingRepository) MarkDeleted(ctx context.Context, id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.WithContext(ctx).Model(&models.Listing{}).
		Where("id = ? AND listing_status <> ?", id, constants.ListingStatusDeleted).
		Updates(map[string]interface{}{
			"listing_status": constants.ListingStatusDeleted,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
