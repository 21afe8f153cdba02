package service

import (
	"github.com/fishmart-next/internal/constants"

	"github.com/shopspring/decimal"
)

const defaultPointsEarnRate = 0.02

// LineItem 结算行项目（商品快照）
type LineItem struct {
	ListingID         uint
	SellerID          uint
	CartItemID        uint
	Name              string
	UnitPrice         decimal.Decimal
	Quantity          int
	Status            string
	QuantityAvailable int
}

// Total 行小计
func (i LineItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PricingInput 计价输入
type PricingInput struct {
	Items           []LineItem
	ShippingCost    decimal.Decimal
	CouponCode      string
	RequestedPoints int64
	PointsBalance   int64
	Registered      bool
}

// SellerAllocation 单个卖家的分摊结果
type SellerAllocation struct {
	SellerID      uint
	Items         []LineItem
	Subtotal      decimal.Decimal
	ShippingShare decimal.Decimal
	DiscountShare decimal.Decimal
	Final         decimal.Decimal
	PointsUsed    int64
	PointsEarned  int64
}

// ItemCount 商品件数
func (a SellerAllocation) ItemCount() int {
	count := 0
	for _, item := range a.Items {
		count += item.Quantity
	}
	return count
}

// PricingResult 计价结果
type PricingResult struct {
	Sellers           []SellerAllocation
	GrandSubtotal     decimal.Decimal
	ShippingCost      decimal.Decimal
	CouponDiscount    decimal.Decimal
	TotalDiscount     decimal.Decimal
	GrandFinal        decimal.Decimal
	PointsUsed        int64
	PointsEarnedTotal int64
}

// ItemCount 结算商品总件数
func (r *PricingResult) ItemCount() int {
	count := 0
	for _, seller := range r.Sellers {
		count += seller.ItemCount()
	}
	return count
}

// PricingEngine 计价与分摊引擎（纯计算，无 I/O）
type PricingEngine struct {
	earnRate decimal.Decimal
}

// NewPricingEngine 创建计价引擎
func NewPricingEngine(earnRate float64) *PricingEngine {
	if earnRate <= 0 {
		earnRate = defaultPointsEarnRate
	}
	return &PricingEngine{earnRate: decimal.NewFromFloat(earnRate)}
}

// Price 校验行项目并按卖家拆分金额
func (e *PricingEngine) Price(input PricingInput) (*PricingResult, error) {
	if len(input.Items) == 0 {
		return nil, newError(KindEmptyCart, "no items to checkout")
	}
	for _, item := range input.Items {
		if err := validateLineItem(item); err != nil {
			return nil, err
		}
	}

	buckets := groupBySeller(input.Items)
	grandSubtotal := decimal.Zero
	for _, bucket := range buckets {
		grandSubtotal = grandSubtotal.Add(bucket.Subtotal)
	}

	shipping := input.ShippingCost.Round(2)
	if shipping.LessThan(decimal.Zero) {
		return nil, newError(KindValidation, "shipping cost must not be negative")
	}

	pointsUsed := resolvePointsUsed(input, grandSubtotal)
	couponDiscount := couponDiscountFor(input.CouponCode)
	totalDiscount := couponDiscount.Add(decimal.NewFromInt(pointsUsed))
	if totalDiscount.GreaterThan(grandSubtotal) {
		totalDiscount = grandSubtotal
	}

	allocateShipping(buckets, shipping)
	allocateDiscount(buckets, totalDiscount, pointsUsed, grandSubtotal)

	result := &PricingResult{
		GrandSubtotal:  grandSubtotal,
		ShippingCost:   shipping,
		CouponDiscount: couponDiscount,
		TotalDiscount:  totalDiscount,
		GrandFinal:     decimal.Zero,
		PointsUsed:     pointsUsed,
	}
	for i := range buckets {
		bucket := &buckets[i]
		bucket.Final = bucket.Subtotal.Add(bucket.ShippingShare).Sub(bucket.DiscountShare)
		bucket.PointsEarned = e.pointsEarned(bucket.Final)
		result.GrandFinal = result.GrandFinal.Add(bucket.Final)
		result.PointsEarnedTotal += bucket.PointsEarned
	}
	result.Sellers = buckets
	return result, nil
}

func (e *PricingEngine) pointsEarned(final decimal.Decimal) int64 {
	if final.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	return final.Mul(e.earnRate).Floor().IntPart()
}

func validateLineItem(item LineItem) error {
	name := item.Name
	if name == "" {
		name = "listing"
	}
	if item.Quantity <= 0 {
		return newError(KindValidation, "quantity for %s must be a positive integer", name)
	}
	if item.Status != constants.ListingStatusActive && item.Status != constants.ListingStatusSoldOut {
		return newError(KindItemUnavailable, "%s (#%d) is not available", name, item.ListingID)
	}
	if item.QuantityAvailable < item.Quantity {
		return newError(KindInsufficientStock, "insufficient stock for %s (#%d): requested %d, available %d",
			name, item.ListingID, item.Quantity, item.QuantityAvailable)
	}
	return nil
}

// groupBySeller 按卖家首次出现顺序分组
func groupBySeller(items []LineItem) []SellerAllocation {
	buckets := make([]SellerAllocation, 0)
	index := make(map[uint]int)
	for _, item := range items {
		idx, ok := index[item.SellerID]
		if !ok {
			idx = len(buckets)
			index[item.SellerID] = idx
			buckets = append(buckets, SellerAllocation{SellerID: item.SellerID, Subtotal: decimal.Zero})
		}
		buckets[idx].Items = append(buckets[idx].Items, item)
		buckets[idx].Subtotal = buckets[idx].Subtotal.Add(item.Total())
	}
	return buckets
}

// resolvePointsUsed 积分抵扣：仅注册用户，且不超过余额与商品总额
func resolvePointsUsed(input PricingInput, grandSubtotal decimal.Decimal) int64 {
	if !input.Registered || input.RequestedPoints <= 0 || input.PointsBalance <= 0 {
		return 0
	}
	used := input.RequestedPoints
	if input.PointsBalance < used {
		used = input.PointsBalance
	}
	if limit := grandSubtotal.Floor().IntPart(); used > limit {
		used = limit
	}
	if used < 0 {
		return 0
	}
	return used
}

// couponDiscountFor 优惠券折扣，暂未开放，恒为 0
func couponDiscountFor(string) decimal.Decimal {
	return decimal.Zero
}

// allocateShipping 运费按卖家数量均分，末位卖家承担舍入差额
func allocateShipping(buckets []SellerAllocation, shipping decimal.Decimal) {
	count := len(buckets)
	if count == 0 {
		return
	}
	share := shipping.Div(decimal.NewFromInt(int64(count))).Round(2)
	remaining := shipping
	for i := range buckets {
		if i == count-1 {
			buckets[i].ShippingShare = remaining
			continue
		}
		buckets[i].ShippingShare = share
		remaining = remaining.Sub(share)
	}
}

// allocateDiscount 折扣与积分按营收占比分摊，末位卖家承担舍入差额
func allocateDiscount(buckets []SellerAllocation, totalDiscount decimal.Decimal, pointsUsed int64, grandSubtotal decimal.Decimal) {
	count := len(buckets)
	if count == 0 {
		return
	}
	remaining := totalDiscount
	points := decimal.NewFromInt(pointsUsed)
	for i := range buckets {
		ratio := decimal.Zero
		if grandSubtotal.GreaterThan(decimal.Zero) {
			ratio = buckets[i].Subtotal.Div(grandSubtotal)
		}
		buckets[i].PointsUsed = points.Mul(ratio).Floor().IntPart()
		if i == count-1 {
			buckets[i].DiscountShare = remaining
			continue
		}
		share := totalDiscount.Mul(ratio).Round(2)
		buckets[i].DiscountShare = share
		remaining = remaining.Sub(share)
	}
}
