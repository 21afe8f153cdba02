package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"
)

func TestInventoryLedgerReserveAndRelease(t *testing.T) {
	db := setupServiceTestDB(t, "ledger_reserve")
	ledger := NewInventoryLedger(repository.NewListingRepository(db))
	seller := createSellerFixture(t, db, "ledger@example.com")
	listing := createListingFixture(t, db, seller.ID, "Shrimp", "5", 3)
	ctx := context.Background()

	if err := ledger.Reserve(ctx, db, listing.ID, 3); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	reloaded := reloadListing(t, db, listing.ID)
	if reloaded.QuantityAvailable != 0 || reloaded.Status != constants.ListingStatusSoldOut {
		t.Fatalf("unexpected listing after reserve: qty=%d status=%s", reloaded.QuantityAvailable, reloaded.Status)
	}

	if err := ledger.Reserve(ctx, db, listing.ID, 1); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock on sold out listing, got %v", err)
	}

	if err := ledger.Release(ctx, db, listing.ID, 2); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	reloaded = reloadListing(t, db, listing.ID)
	if reloaded.QuantityAvailable != 2 || reloaded.Status != constants.ListingStatusActive {
		t.Fatalf("unexpected listing after release: qty=%d status=%s", reloaded.QuantityAvailable, reloaded.Status)
	}
}

func TestInventoryLedgerReserveFailures(t *testing.T) {
	db := setupServiceTestDB(t, "ledger_failures")
	ledger := NewInventoryLedger(repository.NewListingRepository(db))
	seller := createSellerFixture(t, db, "ledger2@example.com")
	listing := createListingFixture(t, db, seller.ID, "Snail", "2", 5)
	ctx := context.Background()

	if err := ledger.Reserve(ctx, db, listing.ID, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := ledger.Reserve(ctx, db, 404, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := ledger.Reserve(ctx, db, listing.ID, 6); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	if err := db.Model(&models.Listing{}).Where("id = ?", listing.ID).Update("listing_status", constants.ListingStatusInactive).Error; err != nil {
		t.Fatalf("deactivate listing failed: %v", err)
	}
	if err := ledger.Reserve(ctx, db, listing.ID, 1); !errors.Is(err, ErrItemUnavailable) {
		t.Fatalf("expected item unavailable, got %v", err)
	}
	if got := reloadListing(t, db, listing.ID).QuantityAvailable; got != 5 {
		t.Fatalf("failed reservations must not change stock, got %d", got)
	}

	if err := ledger.Release(ctx, db, 404, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on release, got %v", err)
	}
	if err := ledger.Release(ctx, db, listing.ID, 0); err != nil {
		t.Fatalf("zero release should be a no-op: %v", err)
	}
}
