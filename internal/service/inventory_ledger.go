package service

import (
	"context"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/repository"

	"gorm.io/gorm"
)

// InventoryLedger 商品库存账本：逐条条件扣减与回补
type InventoryLedger struct {
	listingRepo repository.ListingRepository
}

// NewInventoryLedger 创建库存账本
func NewInventoryLedger(listingRepo repository.ListingRepository) *InventoryLedger {
	return &InventoryLedger{listingRepo: listingRepo}
}

// Reserve 在事务内扣减单个商品库存，失败时给出具体原因
func (l *InventoryLedger) Reserve(ctx context.Context, tx *gorm.DB, listingID uint, quantity int) error {
	if quantity <= 0 {
		return newError(KindValidation, "quantity must be a positive integer")
	}
	repo := l.listingRepo.WithTx(tx)
	affected, err := repo.Reserve(ctx, listingID, quantity)
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	listing, err := repo.GetByID(ctx, listingID)
	if err != nil {
		return err
	}
	if listing == nil {
		return newError(KindNotFound, "listing #%d not found", listingID)
	}
	switch listing.Status {
	case constants.ListingStatusActive, constants.ListingStatusSoldOut:
		return newError(KindInsufficientStock, "insufficient stock for %s (#%d): requested %d, available %d",
			listing.Name, listing.ID, quantity, listing.QuantityAvailable)
	default:
		return newError(KindItemUnavailable, "%s (#%d) is not available", listing.Name, listing.ID)
	}
}

// Release 回补库存（支付失败等补偿场景）
func (l *InventoryLedger) Release(ctx context.Context, tx *gorm.DB, listingID uint, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	affected, err := l.listingRepo.WithTx(tx).Release(ctx, listingID, quantity)
	if err != nil {
		return err
	}
	if affected == 0 {
		return newError(KindNotFound, "listing #%d not found", listingID)
	}
	return nil
}
