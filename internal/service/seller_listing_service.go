package service

import (
	"context"
	"strings"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"

	"github.com/shopspring/decimal"
)

// SellerListingInput 卖家创建/编辑商品输入，编辑时 nil 字段保持不变
type SellerListingInput struct {
	CategoryID  *uint
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Quantity    *int
	Status      *string
}

// SellerListingService 卖家商品管理，只能操作本人商品
type SellerListingService struct {
	sellerRepo  repository.SellerRepository
	listingRepo repository.ListingRepository
	metrics     *SellerMetricsService
}

// NewSellerListingService 创建卖家商品服务
func NewSellerListingService(sellerRepo repository.SellerRepository, listingRepo repository.ListingRepository, metrics *SellerMetricsService) *SellerListingService {
	return &SellerListingService{
		sellerRepo:  sellerRepo,
		listingRepo: listingRepo,
		metrics:     metrics,
	}
}

// List 分页获取本人商品
func (s *SellerListingService) List(ctx context.Context, userID uint, filter repository.ListingListFilter) ([]models.Listing, int64, error) {
	seller, err := s.resolveSeller(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	status := strings.TrimSpace(filter.Status)
	if status != "" && !isKnownListingStatus(status) {
		return nil, 0, newError(KindValidation, "invalid listing status %q", status)
	}
	filter.SellerID = seller.ID
	filter.Status = status
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 10
	}
	return s.listingRepo.ListBySeller(ctx, filter)
}

// Get 获取本人商品详情
func (s *SellerListingService) Get(ctx context.Context, userID, listingID uint) (*models.Listing, error) {
	seller, err := s.resolveSeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ownedListing(ctx, seller, listingID)
}

// Create 上架新商品，库存为 0 时直接标记售罄
func (s *SellerListingService) Create(ctx context.Context, userID uint, input SellerListingInput) (*models.Listing, error) {
	seller, err := s.resolveSeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	name := ""
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
	}
	if name == "" {
		return nil, newError(KindValidation, "name is required")
	}
	if input.Price == nil {
		return nil, newError(KindValidation, "price is required")
	}
	price, err := normalizeListingPrice(*input.Price)
	if err != nil {
		return nil, err
	}
	quantity := 0
	if input.Quantity != nil {
		quantity = *input.Quantity
	}
	if quantity < 0 {
		return nil, newError(KindValidation, "quantity_available must not be negative")
	}
	status := constants.ListingStatusActive
	if input.Status != nil {
		if status, err = normalizeEditableStatus(*input.Status); err != nil {
			return nil, err
		}
	}

	listing := &models.Listing{
		SellerID:          seller.ID,
		Name:              name,
		Price:             models.NewMoneyFromDecimal(price),
		QuantityAvailable: quantity,
		Status:            reconcileListingStatus(status, quantity),
	}
	if input.CategoryID != nil {
		listing.CategoryID = *input.CategoryID
	}
	if input.Description != nil {
		listing.Description = strings.TrimSpace(*input.Description)
	}
	if err := s.listingRepo.Create(ctx, listing); err != nil {
		return nil, wrapError(KindInternal, err, "create listing failed")
	}
	logger.Infow("seller_listing_created", "seller_id", seller.ID, "listing_id", listing.ID)
	s.refreshMetrics(ctx, seller.ID)
	return listing, nil
}

// Update 编辑本人商品
func (s *SellerListingService) Update(ctx context.Context, userID, listingID uint, input SellerListingInput) (*models.Listing, error) {
	seller, err := s.resolveSeller(ctx, userID)
	if err != nil {
		return nil, err
	}
	listing, err := s.ownedListing(ctx, seller, listingID)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, newError(KindValidation, "name must not be empty")
		}
		fields["name"] = name
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.CategoryID != nil {
		fields["category_id"] = *input.CategoryID
	}
	if input.Price != nil {
		price, err := normalizeListingPrice(*input.Price)
		if err != nil {
			return nil, err
		}
		fields["price"] = models.NewMoneyFromDecimal(price)
	}
	quantity := listing.QuantityAvailable
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, newError(KindValidation, "quantity_available must not be negative")
		}
		quantity = *input.Quantity
		fields["quantity_available"] = quantity
	}
	status := listing.Status
	if status == constants.ListingStatusSoldOut {
		status = constants.ListingStatusActive
	}
	if input.Status != nil {
		if status, err = normalizeEditableStatus(*input.Status); err != nil {
			return nil, err
		}
	}
	if next := reconcileListingStatus(status, quantity); next != listing.Status {
		fields["listing_status"] = next
	}
	if len(fields) == 0 {
		return listing, nil
	}

	if err := s.listingRepo.UpdateFields(ctx, listing.ID, fields); err != nil {
		return nil, wrapError(KindInternal, err, "update listing failed")
	}
	updated, err := s.listingRepo.GetByID(ctx, listing.ID)
	if err != nil {
		return nil, wrapError(KindInternal, err, "reload listing failed")
	}
	if updated == nil {
		return nil, newError(KindNotFound, "fish listing not found")
	}
	if updated.Status != listing.Status {
		s.refreshMetrics(ctx, seller.ID)
	}
	return updated, nil
}

// Delete 删除本人商品，记录保留为 deleted 状态
func (s *SellerListingService) Delete(ctx context.Context, userID, listingID uint) error {
	seller, err := s.resolveSeller(ctx, userID)
	if err != nil {
		return err
	}
	listing, err := s.ownedListing(ctx, seller, listingID)
	if err != nil {
		return err
	}
	changed, err := s.listingRepo.MarkDeleted(ctx, listing.ID)
	if err != nil {
		return wrapError(KindInternal, err, "delete listing failed")
	}
	if !changed {
		return newError(KindNotFound, "fish listing not found")
	}
	logger.Infow("seller_listing_deleted", "seller_id", seller.ID, "listing_id", listing.ID)
	s.refreshMetrics(ctx, seller.ID)
	return nil
}

// resolveSeller 仅卖家账号可管理商品
func (s *SellerListingService) resolveSeller(ctx context.Context, userID uint) (*models.Seller, error) {
	if userID == 0 {
		return nil, newError(KindUnauthorized, "authentication required")
	}
	seller, err := s.sellerRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, wrapError(KindInternal, err, "load seller failed")
	}
	if seller == nil {
		return nil, newError(KindForbidden, "only sellers can manage listings")
	}
	return seller, nil
}

func (s *SellerListingService) ownedListing(ctx context.Context, seller *models.Seller, listingID uint) (*models.Listing, error) {
	if listingID == 0 {
		return nil, newError(KindValidation, "invalid listing id")
	}
	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		return nil, wrapError(KindInternal, err, "load listing failed")
	}
	if listing == nil || listing.Status == constants.ListingStatusDeleted {
		return nil, newError(KindNotFound, "fish listing not found")
	}
	if listing.SellerID != seller.ID {
		return nil, newError(KindForbidden, "not authorized to manage this listing")
	}
	return listing, nil
}

func (s *SellerListingService) refreshMetrics(ctx context.Context, sellerID uint) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.RefreshAggregates(ctx, sellerID); err != nil {
		logger.Warnw("seller_listing_metrics_refresh_failed", "seller_id", sellerID, "error", err)
	}
}

func normalizeListingPrice(price decimal.Decimal) (decimal.Decimal, error) {
	price = price.Round(2)
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, newError(KindValidation, "price must be greater than 0")
	}
	return price, nil
}

// normalizeEditableStatus 卖家只能在在售与下架之间切换
func normalizeEditableStatus(status string) (string, error) {
	switch strings.TrimSpace(status) {
	case constants.ListingStatusActive, constants.ListingStatusSoldOut:
		return constants.ListingStatusActive, nil
	case constants.ListingStatusInactive:
		return constants.ListingStatusInactive, nil
	default:
		return "", newError(KindValidation, "invalid listing status %q", status)
	}
}

// reconcileListingStatus 在售商品库存为 0 时为售罄
func reconcileListingStatus(status string, quantity int) string {
	if status == constants.ListingStatusActive && quantity == 0 {
		return constants.ListingStatusSoldOut
	}
	return status
}

func isKnownListingStatus(status string) bool {
	switch status {
	case constants.ListingStatusActive, constants.ListingStatusInactive, constants.ListingStatusSoldOut, constants.ListingStatusDeleted:
		return true
	default:
		return false
	}
}
