package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/repository"

	"github.com/shopspring/decimal"
)

func newSellerListingService(f *checkoutFixture) *SellerListingService {
	return NewSellerListingService(repository.NewSellerRepository(f.db), f.listingRepo, f.sellerStats)
}

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func TestSellerListingCreateAndRefreshMetrics(t *testing.T) {
	f := newCheckoutFixture(t, "seller_listing_create")
	svc := newSellerListingService(f)
	ctx := context.Background()
	seller := createSellerFixture(t, f.db, "create@example.com")
	price := decimal.RequireFromString("12.499")

	listing, err := svc.Create(ctx, seller.UserID, SellerListingInput{
		Name:     strPtr("  Neon Tetra "),
		Price:    &price,
		Quantity: intPtr(0),
	})
	if err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	if listing.SellerID != seller.ID || listing.Name != "Neon Tetra" {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if listing.Price.String() != "12.50" {
		t.Fatalf("price must be rounded to cents, got %s", listing.Price.String())
	}
	if listing.Status != constants.ListingStatusSoldOut {
		t.Fatalf("zero stock listing must be sold out, got %s", listing.Status)
	}

	stats, err := repository.NewSellerMetricsRepository(f.db).GetBySeller(ctx, seller.ID)
	if err != nil || stats == nil {
		t.Fatalf("expected seller metrics row: %v", err)
	}
	if stats.TotalListings != 1 || stats.ActiveListings != 0 {
		t.Fatalf("unexpected listing counts: total=%d active=%d", stats.TotalListings, stats.ActiveListings)
	}
}

func TestSellerListingRejectsInvalidInput(t *testing.T) {
	f := newCheckoutFixture(t, "seller_listing_invalid")
	svc := newSellerListingService(f)
	ctx := context.Background()
	seller := createSellerFixture(t, f.db, "invalid@example.com")
	zero := decimal.Zero
	price := decimal.NewFromInt(10)

	cases := []struct {
		name  string
		input SellerListingInput
	}{
		{name: "missing name", input: SellerListingInput{Price: &price}},
		{name: "missing price", input: SellerListingInput{Name: strPtr("Molly")}},
		{name: "zero price", input: SellerListingInput{Name: strPtr("Molly"), Price: &zero}},
		{name: "negative stock", input: SellerListingInput{Name: strPtr("Molly"), Price: &price, Quantity: intPtr(-1)}},
		{name: "deleted status", input: SellerListingInput{Name: strPtr("Molly"), Price: &price, Status: strPtr(constants.ListingStatusDeleted)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, seller.UserID, tc.input); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	var created int64
	if err := f.db.Table("fish_listings").Where("seller_id = ?", seller.ID).Count(&created).Error; err != nil || created != 0 {
		t.Fatalf("rejected input must not create listings, got %d err=%v", created, err)
	}
}

func TestSellerListingOwnershipAndRoles(t *testing.T) {
	f := newCheckoutFixture(t, "seller_listing_owner")
	svc := newSellerListingService(f)
	ctx := context.Background()
	owner := createSellerFixture(t, f.db, "owner@example.com")
	rival := createSellerFixture(t, f.db, "rival@example.com")
	buyer := createCustomerFixture(t, f.db, "buyer@example.com", 0)
	listing := createListingFixture(t, f.db, owner.ID, "Oscar", "40", 2)

	if _, err := svc.Get(ctx, 0, listing.ID); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous access must be unauthorized, got %v", err)
	}
	if _, err := svc.Get(ctx, buyer.ID, listing.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer access must be forbidden, got %v", err)
	}
	if _, err := svc.Update(ctx, rival.UserID, listing.ID, SellerListingInput{Quantity: intPtr(9)}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("rival edit must be forbidden, got %v", err)
	}
	if err := svc.Delete(ctx, rival.UserID, listing.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("rival delete must be forbidden, got %v", err)
	}
	if got := reloadListing(t, f.db, listing.ID); got.QuantityAvailable != 2 || got.Status != constants.ListingStatusActive {
		t.Fatalf("rival must not change the listing, got qty=%d status=%s", got.QuantityAvailable, got.Status)
	}
	if _, err := svc.Get(ctx, owner.UserID, listing.ID+100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing listing must be not found, got %v", err)
	}
}

func TestSellerListingUpdateReconcilesStatus(t *testing.T) {
	f := newCheckoutFixture(t, "seller_listing_update")
	svc := newSellerListingService(f)
	ctx := context.Background()
	seller := createSellerFixture(t, f.db, "update@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Discus", "80", 0)
	if err := f.db.Model(listing).Update("listing_status", constants.ListingStatusSoldOut).Error; err != nil {
		t.Fatalf("mark sold out failed: %v", err)
	}

	updated, err := svc.Update(ctx, seller.UserID, listing.ID, SellerListingInput{Quantity: intPtr(4)})
	if err != nil {
		t.Fatalf("restock failed: %v", err)
	}
	if updated.QuantityAvailable != 4 || updated.Status != constants.ListingStatusActive {
		t.Fatalf("restocked listing must be active, got qty=%d status=%s", updated.QuantityAvailable, updated.Status)
	}

	newPrice := decimal.RequireFromString("75.5")
	updated, err = svc.Update(ctx, seller.UserID, listing.ID, SellerListingInput{Price: &newPrice, Status: strPtr(constants.ListingStatusInactive)})
	if err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	if updated.Status != constants.ListingStatusInactive || updated.Price.String() != "75.50" {
		t.Fatalf("unexpected listing after deactivate: status=%s price=%s", updated.Status, updated.Price.String())
	}
	if _, err := svc.Update(ctx, seller.UserID, listing.ID, SellerListingInput{Name: strPtr("  ")}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank name must be rejected, got %v", err)
	}
}

func TestSellerListingDeleteAndList(t *testing.T) {
	f := newCheckoutFixture(t, "seller_listing_delete")
	svc := newSellerListingService(f)
	ctx := context.Background()
	seller := createSellerFixture(t, f.db, "delete@example.com")
	other := createSellerFixture(t, f.db, "other@example.com")
	cheap := createListingFixture(t, f.db, seller.ID, "Danio", "5", 3)
	pricey := createListingFixture(t, f.db, seller.ID, "Arowana", "500", 1)
	createListingFixture(t, f.db, other.ID, "Betta", "20", 1)

	if err := svc.Delete(ctx, seller.UserID, cheap.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := svc.Delete(ctx, seller.UserID, cheap.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete must be not found, got %v", err)
	}
	if got := reloadListing(t, f.db, cheap.ID); got.Status != constants.ListingStatusDeleted {
		t.Fatalf("deleted listing must be kept with deleted status, got %s", got.Status)
	}

	listings, total, err := svc.List(ctx, seller.UserID, repository.ListingListFilter{Sort: "price_desc"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(listings) != 1 || listings[0].ID != pricey.ID {
		t.Fatalf("expected only the remaining own listing, got total=%d listings=%+v", total, listings)
	}
	deleted, total, err := svc.List(ctx, seller.UserID, repository.ListingListFilter{Status: constants.ListingStatusDeleted})
	if err != nil || total != 1 || deleted[0].ID != cheap.ID {
		t.Fatalf("expected deleted listing on explicit filter, total=%d err=%v", total, err)
	}
	if _, _, err := svc.List(ctx, seller.UserID, repository.ListingListFilter{Status: "archived"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status filter must be rejected, got %v", err)
	}
}
