package service

import (
	"context"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"
)

// WishlistService 用户收藏夹
type WishlistService struct {
	wishlistRepo repository.WishlistRepository
	listingRepo  repository.ListingRepository
}

// NewWishlistService 创建收藏夹服务
func NewWishlistService(wishlistRepo repository.WishlistRepository, listingRepo repository.ListingRepository) *WishlistService {
	return &WishlistService{
		wishlistRepo: wishlistRepo,
		listingRepo:  listingRepo,
	}
}

// List 获取收藏列表
func (s *WishlistService) List(ctx context.Context, userID uint) ([]models.WishlistItem, error) {
	if userID == 0 {
		return nil, newError(KindUnauthorized, "authentication required")
	}
	return s.wishlistRepo.ListByUser(ctx, userID)
}

// Add 收藏商品，重复收藏返回冲突
func (s *WishlistService) Add(ctx context.Context, userID, listingID uint) (*models.WishlistItem, error) {
	if userID == 0 {
		return nil, newError(KindUnauthorized, "authentication required")
	}
	if listingID == 0 {
		return nil, newError(KindValidation, "fishId is required")
	}
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, wrapError(KindInternal, err, "load listing failed")
	}
	if listing == nil || listing.Status == constants.ListingStatusDeleted {
		return nil, newError(KindNotFound, "fish listing not found")
	}
	existing, err := s.wishlistRepo.Get(ctx, userID, listingID)
	if err != nil {
		return nil, wrapError(KindInternal, err, "load wishlist failed")
	}
	if existing != nil {
		return nil, newError(KindConflict, "item already exists in wishlist")
	}
	item := &models.WishlistItem{UserID: userID, ListingID: listingID, Notes: listing.Name}
	if err := s.wishlistRepo.Create(ctx, item); err != nil {
		return nil, wrapError(KindInternal, err, "add wishlist item failed")
	}
	item.Listing = listing
	return item, nil
}

// Remove 取消收藏
func (s *WishlistService) Remove(ctx context.Context, userID, listingID uint) error {
	if userID == 0 {
		return newError(KindUnauthorized, "authentication required")
	}
	if listingID == 0 {
		return newError(KindValidation, "invalid fish id")
	}
	affected, err := s.wishlistRepo.Delete(ctx, userID, listingID)
	if err != nil {
		return wrapError(KindInternal, err, "remove wishlist item failed")
	}
	if affected == 0 {
		return newError(KindNotFound, "item not found in wishlist")
	}
	return nil
}
