package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/metrics"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/repository"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// ShippingDetails 收货信息
type ShippingDetails struct {
	Address string
	City    string
	State   string
	Zip     string
	Carrier string
}

// CartConsumption 结算后购物车项的处理：Remaining 为 0 时删除
type CartConsumption struct {
	CartItemID uint
	Remaining  int
}

// SettlementPlan 结算事务输入
type SettlementPlan struct {
	User       *models.User
	Registered bool
	Pricing    *PricingResult
	Shipping   ShippingDetails
	Payment    *VerifiedPayment
	CouponCode string
	Notes      string
	CartID     uint
	CartItems  []CartConsumption
}

// SettlementService 订单结算事务
type SettlementService struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	cartRepo    repository.CartRepository
	ledger      *InventoryLedger
	orderConfig config.OrderConfig
	metrics     *metrics.CheckoutMetrics
}

// NewSettlementService 创建结算服务
func NewSettlementService(db *gorm.DB, orderRepo repository.OrderRepository, userRepo repository.UserRepository, cartRepo repository.CartRepository, ledger *InventoryLedger, orderConfig config.OrderConfig, checkoutMetrics *metrics.CheckoutMetrics) *SettlementService {
	return &SettlementService{
		db:          db,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		cartRepo:    cartRepo,
		ledger:      ledger,
		orderConfig: orderConfig,
		metrics:     checkoutMetrics,
	}
}

// txSerializer 同一事务连接上的语句串行执行
type txSerializer struct {
	mu sync.Mutex
}

func (s *txSerializer) run(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

type sellerRecords struct {
	shipping *models.ShippingRecord
	payment  *models.PaymentRecord
}

// Settle 在限时事务内为每个卖家创建订单并扣减库存，全部成功或全部回滚
func (s *SettlementService) Settle(ctx context.Context, plan SettlementPlan) ([]models.Order, error) {
	if plan.User == nil || plan.Pricing == nil || plan.Payment == nil {
		return nil, newError(KindInternal, "settlement plan incomplete")
	}
	if len(plan.Pricing.Sellers) == 0 {
		return nil, newError(KindEmptyCart, "no items to checkout")
	}

	started := time.Now()
	timeout := s.orderConfig.SettlementTimeout(len(plan.Pricing.Sellers))
	txCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var orders []models.Order
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		created, err := s.settleInTx(txCtx, tx, plan)
		if err != nil {
			return err
		}
		orders = created
		return nil
	})
	if err != nil {
		err = classifySettlementError(txCtx, err)
		s.metrics.ObserveSettlement("failure", time.Since(started))
		logger.Warnw("settlement_failed",
			"user_id", plan.User.ID,
			"gateway_payment_id", plan.Payment.GatewayPaymentID,
			"seller_count", len(plan.Pricing.Sellers),
			"error", err,
		)
		return nil, err
	}
	s.metrics.ObserveSettlement("success", time.Since(started))
	return orders, nil
}

func (s *SettlementService) settleInTx(ctx context.Context, tx *gorm.DB, plan SettlementPlan) ([]models.Order, error) {
	sellers := plan.Pricing.Sellers
	serial := &txSerializer{}
	orderRepo := s.orderRepo.WithTx(tx)
	now := time.Now()

	// 1. 各卖家配送/支付记录并发创建
	records := make([]sellerRecords, len(sellers))
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range sellers {
		idx := i
		group.Go(func() error {
			shipping, payment := s.buildRecords(plan, sellers[idx], now)
			return serial.run(func() error {
				if err := orderRepo.CreateShippingRecord(groupCtx, shipping); err != nil {
					return fmt.Errorf("create shipping record: %w", err)
				}
				if err := orderRepo.CreatePaymentRecord(groupCtx, payment); err != nil {
					return fmt.Errorf("create payment record: %w", err)
				}
				records[idx] = sellerRecords{shipping: shipping, payment: payment}
				return nil
			})
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// 2-3. 订单按卖家顺序创建，订单项批量写入
	baseOrderNo := generateOrderNo()
	orders := make([]models.Order, 0, len(sellers))
	for i, seller := range sellers {
		order := s.buildOrder(plan, seller, records[i], baseOrderNo, i, len(sellers))
		items := buildOrderItems(seller)
		if err := orderRepo.Create(ctx, order, items); err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
		orders = append(orders, *order)
	}

	// 4. 库存逐条条件扣减
	group, groupCtx = errgroup.WithContext(ctx)
	for _, seller := range sellers {
		for _, item := range seller.Items {
			listingID, quantity := item.ListingID, item.Quantity
			group.Go(func() error {
				return serial.run(func() error {
					return s.ledger.Reserve(groupCtx, tx, listingID, quantity)
				})
			})
		}
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// 5. 积分净变动一次性写入
	if plan.Registered {
		delta := plan.Pricing.PointsEarnedTotal - plan.Pricing.PointsUsed
		if delta != 0 {
			affected, err := s.userRepo.WithTx(tx).AdjustPoints(ctx, plan.User.ID, delta)
			if err != nil {
				return nil, fmt.Errorf("adjust points: %w", err)
			}
			if affected == 0 {
				return nil, newError(KindValidation, "points balance is insufficient")
			}
		}
	}

	// 6. 清理已结算的购物车项
	if plan.CartID != 0 && len(plan.CartItems) > 0 {
		if err := s.consumeCart(ctx, tx, plan.CartID, plan.CartItems); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (s *SettlementService) buildRecords(plan SettlementPlan, seller SellerAllocation, now time.Time) (*models.ShippingRecord, *models.PaymentRecord) {
	carrier := strings.TrimSpace(plan.Shipping.Carrier)
	if carrier == "" {
		carrier = strings.TrimSpace(s.orderConfig.DefaultCarrier)
	}
	if carrier == "" {
		carrier = constants.DefaultCarrier
	}
	var estimated *time.Time
	if days := s.orderConfig.EstimatedDeliveryDays; days > 0 {
		at := now.AddDate(0, 0, days)
		estimated = &at
	}
	shipping := &models.ShippingRecord{
		Carrier:           carrier,
		ShippingMethod:    constants.ShippingMethodStandard,
		ShippingCost:      models.NewMoneyFromDecimal(seller.ShippingShare),
		Address:           strings.TrimSpace(plan.Shipping.Address),
		City:              strings.TrimSpace(plan.Shipping.City),
		State:             strings.TrimSpace(plan.Shipping.State),
		Zip:               strings.TrimSpace(plan.Shipping.Zip),
		EstimatedDelivery: estimated,
		ShippingNotes: models.JSON{
			"seller_id":              seller.SellerID,
			"original_shipping_cost": plan.Pricing.ShippingCost.StringFixed(2),
		},
	}

	paidAt := plan.Payment.VerifiedAt
	if paidAt.IsZero() {
		paidAt = now
	}
	payment := &models.PaymentRecord{
		PaymentMethod:    constants.PaymentMethodRazorpay,
		TransactionID:    fmt.Sprintf("%s_%d", plan.Payment.GatewayPaymentID, seller.SellerID),
		GatewayOrderID:   plan.Payment.GatewayOrderID,
		GatewayPaymentID: plan.Payment.GatewayPaymentID,
		Status:           constants.PaymentStatusCompleted,
		PaidAmount:       models.NewMoneyFromDecimal(seller.Final),
		PaymentDate:      &paidAt,
		PaymentMetadata: models.JSON{
			"seller_id":               seller.SellerID,
			"original_transaction_id": plan.Payment.GatewayPaymentID,
			"gateway_order_id":        plan.Payment.GatewayOrderID,
			"signature":               plan.Payment.Signature,
			"prorated_amount":         seller.Final.StringFixed(2),
			"currency":                plan.Payment.Currency,
		},
	}
	return shipping, payment
}

func (s *SettlementService) buildOrder(plan SettlementPlan, seller SellerAllocation, records sellerRecords, baseOrderNo string, idx, total int) *models.Order {
	status := strings.TrimSpace(s.orderConfig.InitialStatus)
	if status == "" {
		status = constants.OrderStatusPending
	}
	orderNo := baseOrderNo
	if total > 1 {
		orderNo = buildChildOrderNo(baseOrderNo, idx+1)
	}
	return &models.Order{
		OrderNo:          orderNo,
		UserID:           plan.User.ID,
		SellerID:         seller.SellerID,
		Status:           status,
		SubtotalAmount:   models.NewMoneyFromDecimal(seller.Subtotal),
		ShippingAmount:   models.NewMoneyFromDecimal(seller.ShippingShare),
		DiscountAmount:   models.NewMoneyFromDecimal(seller.DiscountShare),
		TotalAmount:      models.NewMoneyFromDecimal(seller.Final),
		PointsEarned:     seller.PointsEarned,
		PointsUsed:       seller.PointsUsed,
		CouponCode:       strings.TrimSpace(plan.CouponCode),
		Notes:            strings.TrimSpace(plan.Notes),
		IsGuestOrder:     !plan.Registered,
		ShippingRecordID: records.shipping.ID,
		PaymentRecordID:  records.payment.ID,
		ShippingRecord:   records.shipping,
		PaymentRecord:    records.payment,
	}
}

func buildOrderItems(seller SellerAllocation) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(seller.Items))
	for _, item := range seller.Items {
		items = append(items, models.OrderItem{
			ListingID:   item.ListingID,
			SellerID:    seller.SellerID,
			ListingName: item.Name,
			UnitPrice:   models.NewMoneyFromDecimal(item.UnitPrice),
			Quantity:    item.Quantity,
			TotalPrice:  models.NewMoneyFromDecimal(item.Total()),
		})
	}
	return items
}

func (s *SettlementService) consumeCart(ctx context.Context, tx *gorm.DB, cartID uint, consumed []CartConsumption) error {
	cartRepo := s.cartRepo.WithTx(tx)
	deleteIDs := make([]uint, 0, len(consumed))
	for _, item := range consumed {
		if item.Remaining > 0 {
			if _, err := cartRepo.UpdateItemQuantity(ctx, cartID, item.CartItemID, item.Remaining); err != nil {
				return fmt.Errorf("update cart item: %w", err)
			}
			continue
		}
		deleteIDs = append(deleteIDs, item.CartItemID)
	}
	if len(deleteIDs) > 0 {
		if _, err := cartRepo.DeleteItems(ctx, cartID, deleteIDs); err != nil {
			return fmt.Errorf("delete cart items: %w", err)
		}
	}
	left, err := cartRepo.CountItems(ctx, cartID)
	if err != nil {
		return fmt.Errorf("count cart items: %w", err)
	}
	if left == 0 {
		if err := cartRepo.Deactivate(ctx, cartID); err != nil {
			return fmt.Errorf("deactivate cart: %w", err)
		}
	}
	return nil
}

// classifySettlementError 超时映射为可重试错误，业务错误原样返回
func classifySettlementError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return wrapError(KindTransactionTimeout, err, "order settlement timed out, please retry")
	}
	return wrapError(KindInternal, err, "order settlement failed")
}

func generateOrderNo() string {
	now := time.Now().Format("20060102150405")
	return fmt.Sprintf("FM%s%s", now, randNumeric(6))
}

func buildChildOrderNo(parentOrderNo string, seq int) string {
	if seq <= 0 {
		return parentOrderNo
	}
	return fmt.Sprintf("%s-%02d", parentOrderNo, seq)
}

func randNumeric(length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			b.WriteString("0")
			continue
		}
		b.WriteString(fmt.Sprintf("%d", n.Int64()))
	}
	return b.String()
}
