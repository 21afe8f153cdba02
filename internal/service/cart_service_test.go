package service

import (
	"context"
	"errors"
	"testing"

	"github.com/fishmart-next/internal/repository"
)

func newCartServiceForTest(t *testing.T, name string) (*CartService, *checkoutFixture) {
	t.Helper()
	f := newCheckoutFixture(t, name)
	return NewCartService(f.cartRepo, repository.NewListingRepository(f.db)), f
}

func TestCartServiceLifecycle(t *testing.T) {
	svc, f := newCartServiceForTest(t, "cart_lifecycle")
	ctx := context.Background()
	seller := createSellerFixture(t, f.db, "cartseller@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Rasbora", "12.50", 4)
	buyer := createCustomerFixture(t, f.db, "cartbuyer@example.com", 0)

	empty, err := svc.GetCart(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("get empty cart failed: %v", err)
	}
	if empty.CartID != 0 || len(empty.Items) != 0 {
		t.Fatalf("expected empty view, got %+v", empty)
	}

	view, err := svc.AddItem(ctx, UpsertCartItemInput{UserID: buyer.ID, ListingID: listing.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add item failed: %v", err)
	}
	view, err = svc.AddItem(ctx, UpsertCartItemInput{UserID: buyer.ID, ListingID: listing.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add item again failed: %v", err)
	}
	if len(view.Items) != 1 || view.Items[0].Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %+v", view.Items)
	}
	if view.Subtotal.StringFixed(2) != "37.50" {
		t.Fatalf("unexpected subtotal: %s", view.Subtotal.StringFixed(2))
	}

	if _, err := svc.AddItem(ctx, UpsertCartItemInput{UserID: buyer.ID, ListingID: listing.ID, Quantity: 2}); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock beyond 4 units, got %v", err)
	}

	itemID := view.Items[0].CartItemID
	view, err = svc.UpdateItem(ctx, buyer.ID, itemID, 1)
	if err != nil {
		t.Fatalf("update item failed: %v", err)
	}
	if view.Items[0].Quantity != 1 || view.Items[0].LineTotal.StringFixed(2) != "12.50" {
		t.Fatalf("unexpected updated item: %+v", view.Items[0])
	}

	view, err = svc.RemoveItem(ctx, buyer.ID, itemID)
	if err != nil {
		t.Fatalf("remove item failed: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected empty cart after removal")
	}
	if _, err := svc.RemoveItem(ctx, buyer.ID, itemID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for removed item, got %v", err)
	}
}

func TestCartServiceValidation(t *testing.T) {
	svc, f := newCartServiceForTest(t, "cart_validation")
	ctx := context.Background()
	buyer := createCustomerFixture(t, f.db, "cartval@example.com", 0)

	if _, err := svc.GetCart(ctx, 0); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := svc.AddItem(ctx, UpsertCartItemInput{UserID: buyer.ID, ListingID: 1, Quantity: 0}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.AddItem(ctx, UpsertCartItemInput{UserID: buyer.ID, ListingID: 404, Quantity: 1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, buyer.ID, 1, 0); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.UpdateItem(ctx, buyer.ID, 1, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found without cart, got %v", err)
	}
}
