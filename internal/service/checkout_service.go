package service

import (
	"context"
	"strings"
	"time"

	"github.com/fishmart-next/internal/cache"
	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/metrics"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	checkoutFlowPlaceOrder   = "place_order"
	checkoutFlowCartCheckout = "cart_checkout"

	paymentIntentCacheTTL = time.Hour
)

// OrderItemInput 下单商品
type OrderItemInput struct {
	ListingID uint
	Quantity  int
}

// SelectedItemInput 购物车中选中的商品，Quantity 大于 0 时覆盖购物车数量
type SelectedItemInput struct {
	CartItemID uint
	Quantity   int
}

// CheckoutRequest 两种下单入口共用的请求部分
type CheckoutRequest struct {
	Identity     Identity
	Shipping     ShippingDetails
	ShippingCost decimal.Decimal
	Payment      PaymentDetails
	CouponCode   string
	PointsToUse  int64
	Notes        string
	Captcha      CaptchaVerifyPayload
}

// PlaceOrderInput 直接下单
type PlaceOrderInput struct {
	CheckoutRequest
	Items []OrderItemInput
}

// CartCheckoutInput 购物车结算；游客通过 CartItems 传入商品
type CartCheckoutInput struct {
	CheckoutRequest
	CartID        uint
	CartItems     []OrderItemInput
	SelectedItems []SelectedItemInput
}

// PlaceOrderResult 直接下单响应
type PlaceOrderResult struct {
	OrderID           uint         `json:"orderId"`
	OrderIDs          []uint       `json:"orderIds"`
	OrderNo           string       `json:"orderNo"`
	OrderStatus       string       `json:"orderStatus"`
	TotalAmount       models.Money `json:"totalAmount"`
	EstimatedDelivery *time.Time   `json:"estimatedDelivery"`
	PointsEarned      int64        `json:"pointsEarned"`
	IsGuestOrder      bool         `json:"isGuestOrder"`
}

// CheckoutSellerSummary 卖家摘要
type CheckoutSellerSummary struct {
	ID           uint   `json:"id"`
	BusinessName string `json:"businessName"`
	DisplayName  string `json:"displayName"`
}

// CheckoutOrderSummary 单个卖家订单摘要
type CheckoutOrderSummary struct {
	OrderID           uint                   `json:"orderId"`
	OrderNo           string                 `json:"orderNo"`
	OrderStatus       string                 `json:"orderStatus"`
	TotalAmount       models.Money           `json:"totalAmount"`
	EstimatedDelivery *time.Time             `json:"estimatedDelivery"`
	PointsEarned      int64                  `json:"pointsEarned"`
	Seller            *CheckoutSellerSummary `json:"seller"`
	ItemCount         int                    `json:"itemCount"`
}

// CheckoutSummary 结算汇总
type CheckoutSummary struct {
	TotalAmount       models.Money `json:"totalAmount"`
	TotalPointsEarned int64        `json:"totalPointsEarned"`
	PointsUsed        int64        `json:"pointsUsed"`
	TotalDiscount     models.Money `json:"totalDiscount"`
	ItemsCheckedOut   int          `json:"itemsCheckedOut"`
	SellersCount      int          `json:"sellersCount"`
	IsGuestOrder      bool         `json:"isGuestOrder"`
}

// CartCheckoutResult 购物车结算响应
type CartCheckoutResult struct {
	OrderIDs []uint                 `json:"orderIds"`
	Orders   []CheckoutOrderSummary `json:"orders"`
	Summary  CheckoutSummary        `json:"summary"`
}

// PaymentIntentInput 创建支付意图
type PaymentIntentInput struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
}

// PaymentIntentResult 支付意图
type PaymentIntentResult struct {
	GatewayOrderID string       `json:"gatewayOrderId"`
	Amount         models.Money `json:"amount"`
	AmountMinor    int64        `json:"amountMinor"`
	Currency       string       `json:"currency"`
	Receipt        string       `json:"receipt"`
}

// PaymentReplayGuard 支付防重放锁
type PaymentReplayGuard interface {
	Acquire(ctx context.Context, paymentID string) (bool, error)
	Complete(ctx context.Context, paymentID string) error
	Release(ctx context.Context, paymentID string) error
}

// OrderEventPublisher 结算提交后的异步任务投递
type OrderEventPublisher interface {
	PublishOrdersSettled(ctx context.Context, userID uint, orderIDs []uint)
}

// CheckoutOptions 下单编排依赖
type CheckoutOptions struct {
	Identity    *IdentityResolver
	ListingRepo repository.ListingRepository
	CartRepo    repository.CartRepository
	SellerRepo  repository.SellerRepository
	PaymentRepo repository.PaymentRecordRepository
	Pricing     *PricingEngine
	Verifier    *PaymentVerifier
	Settlement  *SettlementService
	Guard       PaymentReplayGuard
	Publisher   OrderEventPublisher
	Captcha     *CaptchaService
	Metrics     *metrics.CheckoutMetrics
	PaymentCfg  config.PaymentConfig
}

// CheckoutService 下单编排：校验 → 身份 → 商品 → 计价 → 支付校验 → 结算 → 异步任务 → 响应
type CheckoutService struct {
	identity    *IdentityResolver
	listingRepo repository.ListingRepository
	cartRepo    repository.CartRepository
	sellerRepo  repository.SellerRepository
	paymentRepo repository.PaymentRecordRepository
	pricing     *PricingEngine
	verifier    *PaymentVerifier
	settlement  *SettlementService
	guard       PaymentReplayGuard
	publisher   OrderEventPublisher
	captcha     *CaptchaService
	metrics     *metrics.CheckoutMetrics
	paymentCfg  config.PaymentConfig
}

// NewCheckoutService 创建下单编排服务
func NewCheckoutService(opts CheckoutOptions) *CheckoutService {
	return &CheckoutService{
		identity:    opts.Identity,
		listingRepo: opts.ListingRepo,
		cartRepo:    opts.CartRepo,
		sellerRepo:  opts.SellerRepo,
		paymentRepo: opts.PaymentRepo,
		pricing:     opts.Pricing,
		verifier:    opts.Verifier,
		settlement:  opts.Settlement,
		guard:       opts.Guard,
		publisher:   opts.Publisher,
		captcha:     opts.Captcha,
		metrics:     opts.Metrics,
		paymentCfg:  opts.PaymentCfg,
	}
}

// checkoutSource 商品来源：直接下单的商品列表或购物车
type checkoutSource struct {
	flow      string
	items     []OrderItemInput
	cartID    uint
	cartItems []OrderItemInput
	selected  []SelectedItemInput
}

type checkoutOutcome struct {
	orders  []models.Order
	pricing *PricingResult
	guest   bool
}

type resolvedItems struct {
	lines    []LineItem
	cartID   uint
	consumed []CartConsumption
}

// PlaceOrder 按商品列表直接下单
func (s *CheckoutService) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*PlaceOrderResult, error) {
	outcome, err := s.checkout(ctx, input.CheckoutRequest, checkoutSource{
		flow:  checkoutFlowPlaceOrder,
		items: input.Items,
	})
	if err != nil {
		return nil, err
	}
	first := outcome.orders[0]
	total := decimal.Zero
	var pointsEarned int64
	for _, order := range outcome.orders {
		total = total.Add(order.TotalAmount.Decimal)
		pointsEarned += order.PointsEarned
	}
	return &PlaceOrderResult{
		OrderID:           first.ID,
		OrderIDs:          collectOrderIDs(outcome.orders),
		OrderNo:           first.OrderNo,
		OrderStatus:       first.Status,
		TotalAmount:       models.NewMoneyFromDecimal(total),
		EstimatedDelivery: estimatedDeliveryOf(first),
		PointsEarned:      pointsEarned,
		IsGuestOrder:      outcome.guest,
	}, nil
}

// CartCheckout 购物车结算，每个卖家生成一笔订单
func (s *CheckoutService) CartCheckout(ctx context.Context, input CartCheckoutInput) (*CartCheckoutResult, error) {
	outcome, err := s.checkout(ctx, input.CheckoutRequest, checkoutSource{
		flow:      checkoutFlowCartCheckout,
		cartID:    input.CartID,
		cartItems: input.CartItems,
		selected:  input.SelectedItems,
	})
	if err != nil {
		return nil, err
	}
	sellers := s.loadSellerSummaries(ctx, outcome.orders)
	orders := make([]CheckoutOrderSummary, 0, len(outcome.orders))
	for i, order := range outcome.orders {
		orders = append(orders, CheckoutOrderSummary{
			OrderID:           order.ID,
			OrderNo:           order.OrderNo,
			OrderStatus:       order.Status,
			TotalAmount:       order.TotalAmount,
			EstimatedDelivery: estimatedDeliveryOf(order),
			PointsEarned:      order.PointsEarned,
			Seller:            sellers[order.SellerID],
			ItemCount:         outcome.pricing.Sellers[i].ItemCount(),
		})
	}
	return &CartCheckoutResult{
		OrderIDs: collectOrderIDs(outcome.orders),
		Orders:   orders,
		Summary: CheckoutSummary{
			TotalAmount:       models.NewMoneyFromDecimal(outcome.pricing.GrandFinal),
			TotalPointsEarned: outcome.pricing.PointsEarnedTotal,
			PointsUsed:        outcome.pricing.PointsUsed,
			TotalDiscount:     models.NewMoneyFromDecimal(outcome.pricing.TotalDiscount),
			ItemsCheckedOut:   outcome.pricing.ItemCount(),
			SellersCount:      len(outcome.pricing.Sellers),
			IsGuestOrder:      outcome.guest,
		},
	}, nil
}

func (s *CheckoutService) checkout(ctx context.Context, req CheckoutRequest, source checkoutSource) (outcome *checkoutOutcome, err error) {
	defer func() {
		s.metrics.IncCheckout(source.flow, checkoutOutcomeLabel(err))
	}()

	// ValidatingInput
	if err := validateCheckoutRequest(req, source); err != nil {
		return nil, err
	}
	guest := req.Identity.IsGuest()
	if guest && s.captcha != nil {
		if err := s.captcha.Verify(constants.CaptchaSceneGuestCheckout, req.Captcha); err != nil {
			return nil, wrapError(KindValidation, err, "captcha verification failed")
		}
	}

	// ResolvingIdentity
	user, err := s.identity.Resolve(ctx, req.Identity)
	if err != nil {
		return nil, classifyCheckoutError(err)
	}

	// ResolvingItems
	resolved, err := s.resolveItems(ctx, user, guest, source)
	if err != nil {
		return nil, classifyCheckoutError(err)
	}

	// Pricing
	pricing, err := s.pricing.Price(PricingInput{
		Items:           resolved.lines,
		ShippingCost:    req.ShippingCost,
		CouponCode:      req.CouponCode,
		RequestedPoints: req.PointsToUse,
		PointsBalance:   user.PointsBalance,
		Registered:      !guest,
	})
	if err != nil {
		return nil, err
	}

	// VerifyingPayment
	paymentID := strings.TrimSpace(req.Payment.GatewayPaymentID)
	if err := s.acquirePayment(ctx, paymentID); err != nil {
		return nil, err
	}
	settled := false
	defer func() {
		if !settled {
			s.releasePayment(paymentID)
		}
	}()
	verified, err := s.verifier.VerifyPayment(ctx, req.Payment, pricing.GrandFinal)
	if err != nil {
		return nil, err
	}

	// Settling
	orders, err := s.settlement.Settle(ctx, SettlementPlan{
		User:       user,
		Registered: !guest,
		Pricing:    pricing,
		Shipping:   req.Shipping,
		Payment:    verified,
		CouponCode: req.CouponCode,
		Notes:      req.Notes,
		CartID:     resolved.cartID,
		CartItems:  resolved.consumed,
	})
	if err != nil {
		return nil, err
	}
	settled = true
	if s.guard != nil {
		if err := s.guard.Complete(ctx, paymentID); err != nil {
			logger.Warnw("payment_guard_complete_failed", "gateway_payment_id", paymentID, "error", err)
		}
	}

	// PostCommit
	if s.publisher != nil {
		s.publisher.PublishOrdersSettled(ctx, user.ID, collectOrderIDs(orders))
	}

	logger.Infow("checkout_settled",
		"flow", source.flow,
		"user_id", user.ID,
		"is_guest", guest,
		"order_count", len(orders),
		"grand_total", pricing.GrandFinal.StringFixed(2),
	)
	return &checkoutOutcome{orders: orders, pricing: pricing, guest: guest}, nil
}

// acquirePayment 同一支付只允许结算一次
func (s *CheckoutService) acquirePayment(ctx context.Context, paymentID string) error {
	if s.guard != nil {
		acquired, err := s.guard.Acquire(ctx, paymentID)
		if err != nil {
			logger.Warnw("payment_guard_unavailable", "gateway_payment_id", paymentID, "error", err)
		} else if !acquired {
			return newError(KindPaymentVerificationFailed, "payment has already been processed")
		}
	}
	if s.paymentRepo != nil {
		records, err := s.paymentRepo.ListByGatewayPaymentID(ctx, paymentID)
		if err != nil {
			s.releasePayment(paymentID)
			return wrapError(KindInternal, err, "load payment records failed")
		}
		if len(records) > 0 {
			s.releasePayment(paymentID)
			return newError(KindPaymentVerificationFailed, "payment has already been processed")
		}
	}
	return nil
}

func (s *CheckoutService) releasePayment(paymentID string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Release(context.Background(), paymentID); err != nil {
		logger.Warnw("payment_guard_release_failed", "gateway_payment_id", paymentID, "error", err)
	}
}

func (s *CheckoutService) resolveItems(ctx context.Context, user *models.User, guest bool, source checkoutSource) (*resolvedItems, error) {
	if source.flow == checkoutFlowPlaceOrder {
		lines, err := s.resolveListingItems(ctx, source.items)
		if err != nil {
			return nil, err
		}
		return &resolvedItems{lines: lines}, nil
	}
	if guest {
		lines, err := s.resolveListingItems(ctx, source.cartItems)
		if err != nil {
			return nil, err
		}
		return &resolvedItems{lines: lines}, nil
	}
	return s.resolveCartItems(ctx, user.ID, source.cartID, source.selected)
}

// resolveListingItems 按商品 ID 读取快照，重复商品合并数量
func (s *CheckoutService) resolveListingItems(ctx context.Context, inputs []OrderItemInput) ([]LineItem, error) {
	merged := mergeOrderItems(inputs)
	ids := make([]uint, 0, len(merged))
	for _, item := range merged {
		ids = append(ids, item.ListingID)
	}
	listings, err := s.listingRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]models.Listing, len(listings))
	for _, listing := range listings {
		byID[listing.ID] = listing
	}
	lines := make([]LineItem, 0, len(merged))
	for _, item := range merged {
		listing, ok := byID[item.ListingID]
		if !ok {
			return nil, newError(KindNotFound, "listing #%d not found", item.ListingID)
		}
		lines = append(lines, lineItemFromListing(listing, item.Quantity, 0))
	}
	return lines, nil
}

func (s *CheckoutService) resolveCartItems(ctx context.Context, userID, cartID uint, selected []SelectedItemInput) (*resolvedItems, error) {
	var (
		cart *models.Cart
		err  error
	)
	if cartID != 0 {
		cart, err = s.cartRepo.GetByIDAndUser(ctx, cartID, userID)
	} else {
		cart, err = s.cartRepo.GetActiveByUser(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	if cart == nil || !cart.IsActive {
		return nil, newError(KindNotFound, "no active cart found")
	}
	items, err := s.cartRepo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, newError(KindEmptyCart, "cart is empty")
	}

	overrides := make(map[uint]int, len(selected))
	for _, item := range selected {
		overrides[item.CartItemID] = item.Quantity
	}

	resolved := &resolvedItems{cartID: cart.ID}
	for _, item := range items {
		quantity := item.Quantity
		if len(selected) > 0 {
			override, ok := overrides[item.ID]
			if !ok {
				continue
			}
			if override > 0 {
				quantity = override
			}
		}
		if item.Listing == nil {
			return nil, newError(KindNotFound, "listing #%d not found", item.ListingID)
		}
		remaining := item.Quantity - quantity
		if remaining < 0 {
			remaining = 0
		}
		resolved.lines = append(resolved.lines, lineItemFromListing(*item.Listing, quantity, item.ID))
		resolved.consumed = append(resolved.consumed, CartConsumption{CartItemID: item.ID, Remaining: remaining})
	}
	if len(resolved.lines) == 0 {
		return nil, newError(KindEmptyCart, "no selected items found in cart")
	}
	return resolved, nil
}

func (s *CheckoutService) loadSellerSummaries(ctx context.Context, orders []models.Order) map[uint]*CheckoutSellerSummary {
	result := make(map[uint]*CheckoutSellerSummary, len(orders))
	if s.sellerRepo == nil {
		return result
	}
	ids := make([]uint, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.SellerID)
	}
	sellers, err := s.sellerRepo.ListByIDs(ctx, ids)
	if err != nil {
		logger.Warnw("checkout_load_sellers_failed", "seller_ids", ids, "error", err)
		return result
	}
	for _, seller := range sellers {
		result[seller.ID] = &CheckoutSellerSummary{
			ID:           seller.ID,
			BusinessName: seller.BusinessName,
			DisplayName:  seller.DisplayName,
		}
	}
	return result
}

// CreatePaymentIntent 在网关创建支付订单；同一 receipt 返回同一网关订单
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, input PaymentIntentInput) (*PaymentIntentResult, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, newError(KindValidation, "amount must be greater than 0")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = strings.ToUpper(strings.TrimSpace(s.paymentCfg.Currency))
	}
	if currency == "" {
		return nil, newError(KindValidation, "currency is required")
	}
	receipt := strings.TrimSpace(input.Receipt)
	if receipt == "" {
		receipt = "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
	}

	cacheKey := "payment:intent:" + receipt
	var cached PaymentIntentResult
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit && cached.GatewayOrderID != "" {
		return &cached, nil
	}

	order, err := s.verifier.CreatePaymentIntent(ctx, input.Amount, currency, receipt)
	if err != nil {
		logger.Warnw("payment_intent_create_failed", "receipt", receipt, "currency", currency, "error", err)
		return nil, err
	}
	result := &PaymentIntentResult{
		GatewayOrderID: order.ID,
		Amount:         models.NewMoneyFromDecimal(order.Amount),
		AmountMinor:    order.AmountMinor,
		Currency:       order.Currency,
		Receipt:        receipt,
	}
	if err := cache.SetJSON(ctx, cacheKey, result, paymentIntentCacheTTL); err != nil {
		logger.Warnw("payment_intent_cache_failed", "receipt", receipt, "error", err)
	}
	return result, nil
}

func validateCheckoutRequest(req CheckoutRequest, source checkoutSource) error {
	shippingFields := []struct {
		name  string
		value string
	}{
		{"address", req.Shipping.Address},
		{"city", req.Shipping.City},
		{"state", req.Shipping.State},
		{"zip", req.Shipping.Zip},
	}
	for _, field := range shippingFields {
		if strings.TrimSpace(field.value) == "" {
			return newError(KindValidation, "shippingDetails.%s is required", field.name)
		}
	}
	if req.ShippingCost.IsNegative() {
		return newError(KindValidation, "shippingDetails.shipping_cost must not be negative")
	}

	guest := req.Identity.IsGuest()
	if profile, ok := req.Identity.Guest(); ok {
		if err := validateGuestProfile(profile); err != nil {
			return err
		}
	}

	if strings.TrimSpace(req.Payment.GatewayOrderID) == "" {
		return newError(KindValidation, "paymentDetails.gatewayOrderId is required")
	}
	if strings.TrimSpace(req.Payment.GatewayPaymentID) == "" {
		return newError(KindValidation, "paymentDetails.gatewayPaymentId is required")
	}
	if strings.TrimSpace(req.Payment.Signature) == "" {
		return newError(KindValidation, "paymentDetails.signature is required")
	}
	if req.PointsToUse < 0 {
		return newError(KindValidation, "pointsToUse must not be negative")
	}

	switch source.flow {
	case checkoutFlowPlaceOrder:
		if len(source.items) == 0 {
			return newError(KindValidation, "orderItems is required")
		}
		return validateOrderItems("orderItems", source.items)
	default:
		if guest {
			if len(source.cartItems) == 0 {
				return newError(KindValidation, "cartItems is required for guest checkout")
			}
			if err := validateOrderItems("cartItems", source.cartItems); err != nil {
				return err
			}
		}
		for _, item := range source.selected {
			if item.CartItemID == 0 {
				return newError(KindValidation, "selectedItems.cartItemId is required")
			}
			if item.Quantity < 0 {
				return newError(KindValidation, "selectedItems.quantity must not be negative")
			}
		}
	}
	return nil
}

func validateOrderItems(field string, items []OrderItemInput) error {
	for _, item := range items {
		if item.ListingID == 0 {
			return newError(KindValidation, "%s.fishId is required", field)
		}
		if item.Quantity <= 0 {
			return newError(KindValidation, "%s.quantity must be a positive integer", field)
		}
	}
	return nil
}

func mergeOrderItems(items []OrderItemInput) []OrderItemInput {
	merged := make([]OrderItemInput, 0, len(items))
	index := make(map[uint]int, len(items))
	for _, item := range items {
		if pos, ok := index[item.ListingID]; ok {
			merged[pos].Quantity += item.Quantity
			continue
		}
		index[item.ListingID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func lineItemFromListing(listing models.Listing, quantity int, cartItemID uint) LineItem {
	return LineItem{
		ListingID:         listing.ID,
		SellerID:          listing.SellerID,
		CartItemID:        cartItemID,
		Name:              listing.Name,
		UnitPrice:         listing.Price.Decimal,
		Quantity:          quantity,
		Status:            listing.Status,
		QuantityAvailable: listing.QuantityAvailable,
	}
}

// classifyCheckoutError 仓储层原始错误统一归为内部错误
func classifyCheckoutError(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) == KindInternal && MessageOf(err) == "" {
		return wrapError(KindInternal, err, "checkout failed")
	}
	return err
}

func checkoutOutcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(KindOf(err))
}

func collectOrderIDs(orders []models.Order) []uint {
	ids := make([]uint, 0, len(orders))
	for _, order := range orders {
		ids = append(ids, order.ID)
	}
	return ids
}

func estimatedDeliveryOf(order models.Order) *time.Time {
	if order.ShippingRecord == nil {
		return nil
	}
	return order.ShippingRecord.EstimatedDelivery
}
