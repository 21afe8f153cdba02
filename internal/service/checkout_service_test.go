package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestPlaceOrderRegisteredSingleSeller(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_single")
	seller := createSellerFixture(t, f.db, "reef@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Clownfish", "100", 5)
	buyer := createCustomerFixture(t, f.db, "buyer@example.com", 0)

	req := f.paidRequest(RegisteredIdentity(buyer.ID), "order_a", "pay_a", "250.00")
	req.ShippingCost = decimal.NewFromInt(50)
	result, err := f.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		CheckoutRequest: req,
		Items:           []OrderItemInput{{ListingID: listing.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if result.TotalAmount.StringFixed(2) != "250.00" {
		t.Fatalf("unexpected total: %s", result.TotalAmount.StringFixed(2))
	}
	if result.PointsEarned != 5 || result.IsGuestOrder {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.OrderStatus != constants.OrderStatusPending || result.OrderNo == "" {
		t.Fatalf("unexpected order status or number: %+v", result)
	}
	if result.EstimatedDelivery == nil {
		t.Fatalf("expected estimated delivery")
	}

	if got := reloadListing(t, f.db, listing.ID).QuantityAvailable; got != 3 {
		t.Fatalf("expected 3 units left, got %d", got)
	}
	var reloaded models.User
	if err := f.db.First(&reloaded, buyer.ID).Error; err != nil {
		t.Fatalf("reload buyer failed: %v", err)
	}
	if reloaded.PointsBalance != 5 {
		t.Fatalf("expected 5 points, got %d", reloaded.PointsBalance)
	}

	var record models.PaymentRecord
	if err := f.db.First(&record).Error; err != nil {
		t.Fatalf("load payment record failed: %v", err)
	}
	if record.Status != constants.PaymentStatusCompleted || record.GatewayPaymentID != "pay_a" {
		t.Fatalf("unexpected payment record: %+v", record)
	}
	if record.PaidAmount.StringFixed(2) != "250.00" {
		t.Fatalf("unexpected paid amount: %s", record.PaidAmount.StringFixed(2))
	}
	if f.publisher.count() != 1 {
		t.Fatalf("expected post-commit publish, got %d", f.publisher.count())
	}
}

func TestPlaceOrderSpendsPoints(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_points")
	seller := createSellerFixture(t, f.db, "points@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Tetra", "100", 5)
	buyer := createCustomerFixture(t, f.db, "spender@example.com", 50)

	req := f.paidRequest(RegisteredIdentity(buyer.ID), "order_p", "pay_p", "70.00")
	req.PointsToUse = 30
	result, err := f.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		CheckoutRequest: req,
		Items:           []OrderItemInput{{ListingID: listing.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("place order failed: %v", err)
	}
	if result.PointsEarned != 1 {
		t.Fatalf("expected 1 point earned, got %d", result.PointsEarned)
	}
	var reloaded models.User
	if err := f.db.First(&reloaded, buyer.ID).Error; err != nil {
		t.Fatalf("reload buyer failed: %v", err)
	}
	if reloaded.PointsBalance != 21 {
		t.Fatalf("expected balance 50-30+1=21, got %d", reloaded.PointsBalance)
	}
	var order models.Order
	if err := f.db.First(&order, result.OrderID).Error; err != nil {
		t.Fatalf("load order failed: %v", err)
	}
	if order.PointsUsed != 30 || order.DiscountAmount.StringFixed(2) != "30.00" {
		t.Fatalf("unexpected order discount: used=%d discount=%s", order.PointsUsed, order.DiscountAmount.StringFixed(2))
	}
}

func TestPlaceOrderGuestProvisionsAccount(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_guest")
	seller := createSellerFixture(t, f.db, "guestseller@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Molly", "40", 10)
	profile := GuestProfile{Email: "Walkin@Example.com", FullName: "Walk In", Phone: "555"}

	req := f.paidRequest(GuestIdentity(profile), "order_g1", "pay_g1", "40.00")
	result, err := f.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		CheckoutRequest: req,
		Items:           []OrderItemInput{{ListingID: listing.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("guest place order failed: %v", err)
	}
	// 40 * 0.02 = 0.8，向下取整为 0
	if !result.IsGuestOrder || result.PointsEarned != 0 {
		t.Fatalf("unexpected guest result: %+v", result)
	}

	var guest models.User
	if err := f.db.Where("email = ?", "walkin@example.com").First(&guest).Error; err != nil {
		t.Fatalf("guest user not provisioned: %v", err)
	}
	if !guest.IsGuest || guest.UserType != constants.UserTypeGuest || guest.PointsBalance != 0 {
		t.Fatalf("unexpected guest user: %+v", guest)
	}

	req = f.paidRequest(GuestIdentity(profile), "order_g2", "pay_g2", "40.00")
	if _, err := f.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		CheckoutRequest: req,
		Items:           []OrderItemInput{{ListingID: listing.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("second guest order failed: %v", err)
	}
	var guests int64
	if err := f.db.Model(&models.User{}).Where("email = ?", "walkin@example.com").Count(&guests).Error; err != nil {
		t.Fatalf("count guests failed: %v", err)
	}
	if guests != 1 {
		t.Fatalf("expected guest account reuse, got %d accounts", guests)
	}

	// 访客订单照常记录获得积分，但不计入余额
	bigListing := createListingFixture(t, f.db, seller.ID, "Arowana", "100", 5)
	req = f.paidRequest(GuestIdentity(profile), "order_g3", "pay_g3", "250.00")
	req.ShippingCost = decimal.NewFromInt(50)
	result, err = f.checkout.PlaceOrder(context.Background(), PlaceOrderInput{
		CheckoutRequest: req,
		Items:           []OrderItemInput{{ListingID: bigListing.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("third guest order failed: %v", err)
	}
	if result.PointsEarned != 5 {
		t.Fatalf("expected guest order to earn 5 points, got %d", result.PointsEarned)
	}
	var order models.Order
	if err := f.db.First(&order, result.OrderID).Error; err != nil {
		t.Fatalf("load guest order failed: %v", err)
	}
	if order.PointsEarned != 5 || !order.IsGuestOrder {
		t.Fatalf("unexpected stored guest order: %+v", order)
	}
	if err := f.db.First(&guest, guest.ID).Error; err != nil {
		t.Fatalf("reload guest failed: %v", err)
	}
	if guest.PointsBalance != 0 {
		t.Fatalf("guest balance must stay 0, got %d", guest.PointsBalance)
	}
}

func TestCartCheckoutMultiSeller(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_cart")
	ctx := context.Background()
	sellerA := createSellerFixture(t, f.db, "a@example.com")
	sellerB := createSellerFixture(t, f.db, "b@example.com")
	listingA := createListingFixture(t, f.db, sellerA.ID, "Angelfish", "150", 5)
	listingB := createListingFixture(t, f.db, sellerB.ID, "Betta", "100", 5)
	buyer := createCustomerFixture(t, f.db, "cart@example.com", 0)

	cart, err := f.cartRepo.GetOrCreateActive(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("create cart failed: %v", err)
	}
	if _, err := f.cartRepo.AddItem(ctx, cart.ID, listingA.ID, 2); err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}
	if _, err := f.cartRepo.AddItem(ctx, cart.ID, listingB.ID, 1); err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}

	req := f.paidRequest(RegisteredIdentity(buyer.ID), "order_c", "pay_c", "440.00")
	req.ShippingCost = decimal.NewFromInt(40)
	result, err := f.checkout.CartCheckout(ctx, CartCheckoutInput{CheckoutRequest: req})
	if err != nil {
		t.Fatalf("cart checkout failed: %v", err)
	}
	if len(result.Orders) != 2 || len(result.OrderIDs) != 2 {
		t.Fatalf("expected two orders, got %+v", result)
	}
	if result.Summary.TotalAmount.StringFixed(2) != "440.00" || result.Summary.SellersCount != 2 || result.Summary.ItemsCheckedOut != 3 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}
	if result.Summary.TotalPointsEarned != 8 {
		t.Fatalf("expected 8 points, got %d", result.Summary.TotalPointsEarned)
	}
	first, second := result.Orders[0], result.Orders[1]
	if first.TotalAmount.StringFixed(2) != "320.00" || second.TotalAmount.StringFixed(2) != "120.00" {
		t.Fatalf("unexpected seller totals: %s / %s", first.TotalAmount.StringFixed(2), second.TotalAmount.StringFixed(2))
	}
	if first.Seller == nil || first.Seller.BusinessName != sellerA.BusinessName || first.ItemCount != 2 {
		t.Fatalf("unexpected first order summary: %+v", first)
	}
	if !strings.HasSuffix(first.OrderNo, "-01") || !strings.HasSuffix(second.OrderNo, "-02") {
		t.Fatalf("unexpected order numbers: %s %s", first.OrderNo, second.OrderNo)
	}

	if countRows(t, f.db, &models.CartItem{}) != 0 {
		t.Fatalf("expected cart items to be consumed")
	}
	active, err := f.cartRepo.GetActiveByUser(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("load active cart failed: %v", err)
	}
	if active != nil {
		t.Fatalf("expected cart to be deactivated")
	}
	if countRows(t, f.db, &models.PaymentRecord{}) != 2 || countRows(t, f.db, &models.ShippingRecord{}) != 2 {
		t.Fatalf("expected one payment and shipping record per seller")
	}
}

func TestCartCheckoutSelectedItemsKeepsRemainder(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_selected")
	ctx := context.Background()
	seller := createSellerFixture(t, f.db, "sel@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Platy", "20", 10)
	other := createListingFixture(t, f.db, seller.ID, "Danio", "5", 10)
	buyer := createCustomerFixture(t, f.db, "selector@example.com", 0)

	cart, err := f.cartRepo.GetOrCreateActive(ctx, buyer.ID)
	if err != nil {
		t.Fatalf("create cart failed: %v", err)
	}
	selected, err := f.cartRepo.AddItem(ctx, cart.ID, listing.ID, 3)
	if err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}
	if _, err := f.cartRepo.AddItem(ctx, cart.ID, other.ID, 1); err != nil {
		t.Fatalf("add cart item failed: %v", err)
	}

	req := f.paidRequest(RegisteredIdentity(buyer.ID), "order_s", "pay_s", "20.00")
	result, err := f.checkout.CartCheckout(ctx, CartCheckoutInput{
		CheckoutRequest: req,
		CartID:          cart.ID,
		SelectedItems:   []SelectedItemInput{{CartItemID: selected.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("cart checkout failed: %v", err)
	}
	if result.Summary.ItemsCheckedOut != 1 {
		t.Fatalf("expected one item checked out, got %d", result.Summary.ItemsCheckedOut)
	}

	items, err := f.cartRepo.ListItems(ctx, cart.ID)
	if err != nil {
		t.Fatalf("list cart items failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected both cart items to remain, got %d", len(items))
	}
	for _, item := range items {
		if item.ID == selected.ID && item.Quantity != 2 {
			t.Fatalf("expected remaining quantity 2, got %d", item.Quantity)
		}
	}
	active, err := f.cartRepo.GetActiveByUser(ctx, buyer.ID)
	if err != nil || active == nil {
		t.Fatalf("expected cart to stay active: %v", err)
	}
}

func TestCartCheckoutWithoutCart(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_nocart")
	ctx := context.Background()
	buyer := createCustomerFixture(t, f.db, "nocart@example.com", 0)

	req := f.paidRequest(RegisteredIdentity(buyer.ID), "order_n", "pay_n", "10.00")
	if _, err := f.checkout.CartCheckout(ctx, CartCheckoutInput{CheckoutRequest: req}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found without cart, got %v", err)
	}

	if _, err := f.cartRepo.GetOrCreateActive(ctx, buyer.ID); err != nil {
		t.Fatalf("create cart failed: %v", err)
	}
	if _, err := f.checkout.CartCheckout(ctx, CartCheckoutInput{CheckoutRequest: req}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected empty cart, got %v", err)
	}
}

func TestCheckoutRejectsReplayedPayment(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_replay")
	ctx := context.Background()
	seller := createSellerFixture(t, f.db, "replay@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Goby", "10", 10)
	buyer := createCustomerFixture(t, f.db, "replayer@example.com", 0)
	input := PlaceOrderInput{
		CheckoutRequest: f.paidRequest(RegisteredIdentity(buyer.ID), "order_r", "pay_r", "10.00"),
		Items:           []OrderItemInput{{ListingID: listing.ID, Quantity: 1}},
	}

	if _, err := f.checkout.PlaceOrder(ctx, input); err != nil {
		t.Fatalf("first order failed: %v", err)
	}
	if _, err := f.checkout.PlaceOrder(ctx, input); !errors.Is(err, ErrPaymentVerificationFailed) {
		t.Fatalf("expected replay to be rejected by guard, got %v", err)
	}

	// 缓存锁丢失时仍由支付记录兜底
	if err := f.guard.Release(ctx, "pay_r"); err != nil {
		t.Fatalf("release guard failed: %v", err)
	}
	if _, err := f.checkout.PlaceOrder(ctx, input); !errors.Is(err, ErrPaymentVerificationFailed) {
		t.Fatalf("expected replay to be rejected by payment records, got %v", err)
	}
	if countRows(t, f.db, &models.Order{}) != 1 {
		t.Fatalf("expected a single order")
	}
	if got := reloadListing(t, f.db, listing.ID).QuantityAvailable; got != 9 {
		t.Fatalf("expected 9 units left, got %d", got)
	}
}

func TestCheckoutFailureLeavesNoTrace(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_fail")
	ctx := context.Background()
	seller := createSellerFixture(t, f.db, "fail@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Oscar", "30", 2)
	buyer := createCustomerFixture(t, f.db, "failer@example.com", 0)

	tests := []struct {
		name     string
		quantity int
		amount   string
		want     error
	}{
		{name: "insufficient_stock", quantity: 3, amount: "90.00", want: ErrInsufficientStock},
		{name: "amount_mismatch", quantity: 1, amount: "29.00", want: ErrPaymentAmountMismatch},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paymentID := fmt.Sprintf("pay_fail_%d", i)
			req := f.paidRequest(RegisteredIdentity(buyer.ID), fmt.Sprintf("order_fail_%d", i), paymentID, tt.amount)
			_, err := f.checkout.PlaceOrder(ctx, PlaceOrderInput{
				CheckoutRequest: req,
				Items:           []OrderItemInput{{ListingID: listing.ID, Quantity: tt.quantity}},
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if f.guard.held[paymentID] {
				t.Fatalf("payment guard should be released after failure")
			}
		})
	}

	if countRows(t, f.db, &models.Order{}) != 0 || countRows(t, f.db, &models.PaymentRecord{}) != 0 {
		t.Fatalf("expected nothing to be persisted")
	}
	if got := reloadListing(t, f.db, listing.ID).QuantityAvailable; got != 2 {
		t.Fatalf("expected stock unchanged, got %d", got)
	}
	if f.publisher.count() != 0 {
		t.Fatalf("post-commit work must not run on failure")
	}
}

func TestCheckoutValidation(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_validation")
	ctx := context.Background()
	buyer := createCustomerFixture(t, f.db, "validate@example.com", 0)

	req := f.paidRequest(RegisteredIdentity(buyer.ID), "order_v", "pay_v", "10.00")
	req.Shipping.Zip = " "
	_, err := f.checkout.PlaceOrder(ctx, PlaceOrderInput{CheckoutRequest: req, Items: []OrderItemInput{{ListingID: 1, Quantity: 1}}})
	if !errors.Is(err, ErrValidation) || MessageOf(err) != "shippingDetails.zip is required" {
		t.Fatalf("expected zip validation error, got %v", err)
	}

	req = f.paidRequest(RegisteredIdentity(buyer.ID), "order_v", "pay_v", "10.00")
	if _, err := f.checkout.PlaceOrder(ctx, PlaceOrderInput{CheckoutRequest: req}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for missing items, got %v", err)
	}
	if _, err := f.checkout.PlaceOrder(ctx, PlaceOrderInput{CheckoutRequest: req, Items: []OrderItemInput{{ListingID: 1, Quantity: 0}}}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero quantity, got %v", err)
	}

	guestReq := f.paidRequest(GuestIdentity(GuestProfile{Email: "guest@example.com", FullName: "Guest"}), "order_v", "pay_v", "10.00")
	if _, err := f.checkout.CartCheckout(ctx, CartCheckoutInput{CheckoutRequest: guestReq}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for guest without cart items, got %v", err)
	}

	anonymous := f.paidRequest(RegisteredIdentity(0), "order_v", "pay_v", "10.00")
	if _, err := f.checkout.PlaceOrder(ctx, PlaceOrderInput{CheckoutRequest: anonymous, Items: []OrderItemInput{{ListingID: 1, Quantity: 1}}}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	if _, err := f.checkout.PlaceOrder(ctx, PlaceOrderInput{CheckoutRequest: req, Items: []OrderItemInput{{ListingID: 999, Quantity: 1}}}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for unknown listing, got %v", err)
	}
}

func TestCheckoutConcurrentLastUnits(t *testing.T) {
	f := newCheckoutFixture(t, "checkout_race")
	seller := createSellerFixture(t, f.db, "race@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Arowana", "500", 2)
	buyers := []*models.User{
		createCustomerFixture(t, f.db, "first@example.com", 0),
		createCustomerFixture(t, f.db, "second@example.com", 0),
	}

	inputs := make([]PlaceOrderInput, len(buyers))
	for i, buyer := range buyers {
		inputs[i] = PlaceOrderInput{
			CheckoutRequest: f.paidRequest(RegisteredIdentity(buyer.ID), fmt.Sprintf("order_race_%d", i), fmt.Sprintf("pay_race_%d", i), "1000.00"),
			Items:           []OrderItemInput{{ListingID: listing.ID, Quantity: 2}},
		}
	}

	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i := range inputs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = f.checkout.PlaceOrder(context.Background(), inputs[idx])
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !errors.Is(err, ErrInsufficientStock) {
			t.Fatalf("expected insufficient stock for the loser, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
	reloaded := reloadListing(t, f.db, listing.ID)
	if reloaded.QuantityAvailable != 0 || reloaded.Status != constants.ListingStatusSoldOut {
		t.Fatalf("unexpected listing state: qty=%d status=%s", reloaded.QuantityAvailable, reloaded.Status)
	}
	if countRows(t, f.db, &models.Order{}) != 1 {
		t.Fatalf("expected a single order")
	}
}

func TestSettlementRollsBackOnStockFailure(t *testing.T) {
	f := newCheckoutFixture(t, "settlement_rollback")
	ctx := context.Background()
	sellerA := createSellerFixture(t, f.db, "ra@example.com")
	sellerB := createSellerFixture(t, f.db, "rb@example.com")
	plenty := createListingFixture(t, f.db, sellerA.ID, "Koi", "50", 5)
	scarce := createListingFixture(t, f.db, sellerB.ID, "Discus", "80", 1)
	buyer := createCustomerFixture(t, f.db, "rollback@example.com", 10)

	// 快照库存已过期：计价通过，扣减失败
	pricing, err := NewPricingEngine(0.02).Price(PricingInput{
		Items: []LineItem{
			lineItemFromListing(*plenty, 2, 0),
			{ListingID: scarce.ID, SellerID: sellerB.ID, Name: scarce.Name, UnitPrice: decimal.NewFromInt(80), Quantity: 3, Status: constants.ListingStatusActive, QuantityAvailable: 10},
		},
		Registered: true,
	})
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}

	_, err = f.settlement.Settle(ctx, SettlementPlan{
		User:       buyer,
		Registered: true,
		Pricing:    pricing,
		Shipping:   ShippingDetails{Address: "1 Harbor Rd", City: "Kochi", State: "KL", Zip: "682001"},
		Payment: &VerifiedPayment{
			PaymentDetails: PaymentDetails{GatewayOrderID: "order_rb", GatewayPaymentID: "pay_rb", Signature: "sig"},
			PaidAmount:     pricing.GrandFinal,
			Currency:       "INR",
			VerifiedAt:     time.Now(),
		},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	for _, model := range []interface{}{&models.Order{}, &models.OrderItem{}, &models.PaymentRecord{}, &models.ShippingRecord{}} {
		if countRows(t, f.db, model) != 0 {
			t.Fatalf("expected rollback of %T", model)
		}
	}
	if got := reloadListing(t, f.db, plenty.ID).QuantityAvailable; got != 5 {
		t.Fatalf("expected stock restored by rollback, got %d", got)
	}
	var reloaded models.User
	if err := f.db.First(&reloaded, buyer.ID).Error; err != nil {
		t.Fatalf("reload buyer failed: %v", err)
	}
	if reloaded.PointsBalance != 10 {
		t.Fatalf("points must be untouched, got %d", reloaded.PointsBalance)
	}
}

func TestSettleRejectsIncompletePlan(t *testing.T) {
	f := newCheckoutFixture(t, "settlement_incomplete")
	if _, err := f.settlement.Settle(context.Background(), SettlementPlan{}); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestClassifySettlementError(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	if err := classifySettlementError(expired, context.DeadlineExceeded); !errors.Is(err, ErrTransactionTimeout) {
		t.Fatalf("expected transaction timeout, got %v", err)
	}
	appErr := newError(KindInsufficientStock, "no stock")
	if err := classifySettlementError(context.Background(), fmt.Errorf("wrapped: %w", appErr)); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected business error to pass through, got %v", err)
	}
	if err := classifySettlementError(context.Background(), errors.New("disk full")); !errors.Is(err, ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if classifySettlementError(context.Background(), nil) != nil {
		t.Fatalf("nil error should stay nil")
	}
}

func TestMergeOrderItems(t *testing.T) {
	merged := mergeOrderItems([]OrderItemInput{
		{ListingID: 1, Quantity: 1},
		{ListingID: 2, Quantity: 2},
		{ListingID: 1, Quantity: 3},
	})
	if len(merged) != 2 || merged[0].Quantity != 4 || merged[1].ListingID != 2 {
		t.Fatalf("unexpected merge result: %+v", merged)
	}
}

func TestBuildChildOrderNo(t *testing.T) {
	if got := buildChildOrderNo("FM1", 0); got != "FM1" {
		t.Fatalf("unexpected order no: %s", got)
	}
	if got := buildChildOrderNo("FM1", 3); got != "FM1-03" {
		t.Fatalf("unexpected child order no: %s", got)
	}
	if no := generateOrderNo(); !strings.HasPrefix(no, "FM") || len(no) != 22 {
		t.Fatalf("unexpected generated order no: %s", no)
	}
}

// setupServiceFileDB 超时会丢弃事务连接，文件库在连接关闭后仍保留数据
func setupServiceFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "checkout.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func TestPlaceOrderSettlementTimeoutRollsBack(t *testing.T) {
	f := newCheckoutFixtureOn(t, setupServiceFileDB(t))
	ctx := context.Background()
	orderCfg := testOrderConfig()
	orderCfg.SingleSettlementTimeoutSeconds = 1
	f.checkout.settlement = NewSettlementService(f.db, f.orderRepo, f.userRepo, f.cartRepo, f.ledger, orderCfg, f.metrics)

	// 订单写入阻塞到结算事务截止
	const slowCreate = "fishmart:slow_order_create"
	if err := f.db.Callback().Create().Before("gorm:create").Register(slowCreate, func(tx *gorm.DB) {
		if tx.Statement.Table != "orders" {
			return
		}
		select {
		case <-tx.Statement.Context.Done():
			tx.AddError(tx.Statement.Context.Err())
		case <-time.After(5 * time.Second):
		}
	}); err != nil {
		t.Fatalf("register callback failed: %v", err)
	}

	seller := createSellerFixture(t, f.db, "slow@example.com")
	listing := createListingFixture(t, f.db, seller.ID, "Koi", "100", 3)
	buyer := createCustomerFixture(t, f.db, "patient@example.com", 0)
	input := PlaceOrderInput{
		CheckoutRequest: f.paidRequest(RegisteredIdentity(buyer.ID), "order_slow", "pay_slow", "100.00"),
		Items:           []OrderItemInput{{ListingID: listing.ID, Quantity: 1}},
	}

	started := time.Now()
	_, err := f.checkout.PlaceOrder(ctx, input)
	if !errors.Is(err, ErrTransactionTimeout) {
		t.Fatalf("expected transaction timeout, got %v", err)
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) || !svcErr.Retryable() {
		t.Fatalf("timeout must be retryable: %v", err)
	}
	if elapsed := time.Since(started); elapsed >= 5*time.Second {
		t.Fatalf("settlement was not bounded by its timeout: %s", elapsed)
	}
	if got := countRows(t, f.db, &models.Order{}); got != 0 {
		t.Fatalf("expected no orders after rollback, got %d", got)
	}
	if got := countRows(t, f.db, &models.PaymentRecord{}); got != 0 {
		t.Fatalf("expected no payment records after rollback, got %d", got)
	}
	if got := reloadListing(t, f.db, listing.ID).QuantityAvailable; got != 3 {
		t.Fatalf("stock must be untouched after rollback, got %d", got)
	}

	if err := f.db.Callback().Create().Remove(slowCreate); err != nil {
		t.Fatalf("remove callback failed: %v", err)
	}
	result, err := f.checkout.PlaceOrder(ctx, input)
	if err != nil {
		t.Fatalf("retry after timeout failed: %v", err)
	}
	if result.OrderID == 0 {
		t.Fatalf("expected order on retry, got %+v", result)
	}
	if got := reloadListing(t, f.db, listing.ID).QuantityAvailable; got != 2 {
		t.Fatalf("expected single decrement on retry, got %d", got)
	}
}
