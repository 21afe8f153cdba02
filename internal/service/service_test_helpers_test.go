package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/metrics"
	"github.com/fishmart-next/internal/models"
	"github.com/fishmart-next/internal/payment/razorpay"
	"github.com/fishmart-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

func setupServiceTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	// 内存库共享缓存下并发写入需串行
	sqlDB.SetMaxOpenConns(1)
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

func createSellerFixture(t *testing.T, db *gorm.DB, email string) *models.Seller {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "hash", UserType: constants.UserTypeSeller, Status: constants.UserStatusActive}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create seller user failed: %v", err)
	}
	seller := &models.Seller{UserID: user.ID, BusinessName: "Reef " + email, DisplayName: "Reef", ContactEmail: email}
	if err := db.Create(seller).Error; err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	return seller
}

func createListingFixture(t *testing.T, db *gorm.DB, sellerID uint, name, price string, quantity int) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		SellerID:          sellerID,
		Name:              name,
		Price:             models.NewMoneyFromDecimal(decimal.RequireFromString(price)),
		QuantityAvailable: quantity,
		Status:            constants.ListingStatusActive,
	}
	if err := db.Create(listing).Error; err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	return listing
}

func createCustomerFixture(t *testing.T, db *gorm.DB, email string, points int64) *models.User {
	t.Helper()
	user := &models.User{
		Email:         email,
		PasswordHash:  "hash",
		FullName:      "Test Buyer",
		UserType:      constants.UserTypeCustomer,
		Status:        constants.UserStatusActive,
		PointsBalance: points,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	return user
}

func reloadListing(t *testing.T, db *gorm.DB, id uint) models.Listing {
	t.Helper()
	var listing models.Listing
	if err := db.First(&listing, id).Error; err != nil {
		t.Fatalf("reload listing failed: %v", err)
	}
	return listing
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var count int64
	if err := db.Model(model).Count(&count).Error; err != nil {
		t.Fatalf("count rows failed: %v", err)
	}
	return count
}

// stubGateway 内存网关
type stubGateway struct {
	mu        sync.Mutex
	orders    map[string]*razorpay.Order
	fetchErr  error
	createErr error
	created   int
}

func newStubGateway() *stubGateway {
	return &stubGateway{orders: make(map[string]*razorpay.Order)}
}

func (g *stubGateway) addOrder(id, amount, currency string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	minor, err := razorpay.ToMinorAmount(decimal.RequireFromString(amount), currency)
	if err != nil {
		panic(err)
	}
	g.orders[id] = &razorpay.Order{ID: id, AmountMinor: minor, AmountPaid: minor, Currency: currency, Status: "paid"}
}

func (g *stubGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created++
	order := &razorpay.Order{
		ID:          fmt.Sprintf("order_test_%d", g.created),
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
		Status:      "created",
	}
	g.orders[order.ID] = order
	return order, nil
}

func (g *stubGateway) FetchOrder(_ context.Context, orderID string) (*razorpay.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	order, ok := g.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: order %s not found", razorpay.ErrRequestFailed, orderID)
	}
	copied := *order
	return &copied, nil
}

func (g *stubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return razorpay.VerifyPaymentSignature(testKeySecret, orderID, paymentID, signature)
}

func (g *stubGateway) VerifyWebhookSignature(body []byte, signature string) error {
	return razorpay.VerifyWebhookSignature(testWebhookSecret, body, signature)
}

func signPayment(orderID, paymentID string) string {
	return razorpay.ComputeSignature(testKeySecret, []byte(orderID+"|"+paymentID))
}

func signWebhook(body []byte) string {
	return razorpay.ComputeSignature(testWebhookSecret, body)
}

// memoryGuard 内存版支付防重放锁
type memoryGuard struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{held: make(map[string]bool)}
}

func (g *memoryGuard) Acquire(_ context.Context, paymentID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held[paymentID] {
		return false, nil
	}
	g.held[paymentID] = true
	return true, nil
}

func (g *memoryGuard) Complete(context.Context, string) error {
	return nil
}

func (g *memoryGuard) Release(_ context.Context, paymentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, paymentID)
	return nil
}

// recordingPublisher 记录结算后投递
type recordingPublisher struct {
	mu     sync.Mutex
	events [][]uint
}

func (p *recordingPublisher) PublishOrdersSettled(_ context.Context, _ uint, orderIDs []uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, orderIDs)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type checkoutFixture struct {
	db          *gorm.DB
	gateway     *stubGateway
	guard       *memoryGuard
	publisher   *recordingPublisher
	metrics     *metrics.CheckoutMetrics
	orderRepo   *repository.GormOrderRepository
	listingRepo *repository.GormListingRepository
	cartRepo    *repository.GormCartRepository
	userRepo    *repository.GormUserRepository
	paymentRepo *repository.GormPaymentRecordRepository
	ledger      *InventoryLedger
	settlement  *SettlementService
	sellerStats *SellerMetricsService
	checkout    *CheckoutService
	webhook     *PaymentWebhookService
}

func testOrderConfig() config.OrderConfig {
	return config.OrderConfig{
		InitialStatus:                  constants.OrderStatusPending,
		SettlementTimeoutSeconds:       15,
		SingleSettlementTimeoutSeconds: 10,
		MetricsTimeoutSeconds:          5,
		PointsEarnRate:                 0.02,
		DefaultCarrier:                 constants.DefaultCarrier,
		EstimatedDeliveryDays:          5,
	}
}

func newCheckoutFixture(t *testing.T, name string) *checkoutFixture {
	t.Helper()
	return newCheckoutFixtureOn(t, setupServiceTestDB(t, name))
}

func newCheckoutFixtureOn(t *testing.T, db *gorm.DB) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		db:          db,
		gateway:     newStubGateway(),
		guard:       newMemoryGuard(),
		publisher:   &recordingPublisher{},
		metrics:     metrics.NewCheckoutMetrics(prometheus.NewRegistry()),
		orderRepo:   repository.NewOrderRepository(db),
		listingRepo: repository.NewListingRepository(db),
		cartRepo:    repository.NewCartRepository(db),
		userRepo:    repository.NewUserRepository(db),
		paymentRepo: repository.NewPaymentRecordRepository(db),
	}
	orderCfg := testOrderConfig()
	f.ledger = NewInventoryLedger(f.listingRepo)
	f.settlement = NewSettlementService(db, f.orderRepo, f.userRepo, f.cartRepo, f.ledger, orderCfg, f.metrics)
	f.sellerStats = NewSellerMetricsService(db, f.orderRepo, f.listingRepo, repository.NewSellerMetricsRepository(db), orderCfg, f.metrics)
	f.checkout = NewCheckoutService(CheckoutOptions{
		Identity:    NewIdentityResolver(f.userRepo),
		ListingRepo: f.listingRepo,
		CartRepo:    f.cartRepo,
		SellerRepo:  repository.NewSellerRepository(db),
		PaymentRepo: f.paymentRepo,
		Pricing:     NewPricingEngine(orderCfg.PointsEarnRate),
		Verifier:    NewPaymentVerifier(f.gateway, time.Second),
		Settlement:  f.settlement,
		Guard:       f.guard,
		Publisher:   f.publisher,
		Metrics:     f.metrics,
		PaymentCfg:  config.PaymentConfig{Currency: "INR"},
	})
	f.webhook = NewPaymentWebhookService(db, f.gateway, f.paymentRepo, f.orderRepo, f.userRepo, f.ledger, f.sellerStats, f.metrics)
	return f
}

// paidRequest 构造已在网关支付的下单请求
func (f *checkoutFixture) paidRequest(identity Identity, gatewayOrderID, paymentID, amount string) CheckoutRequest {
	f.gateway.addOrder(gatewayOrderID, amount, "INR")
	return CheckoutRequest{
		Identity: identity,
		Shipping: ShippingDetails{Address: "1 Harbor Rd", City: "Kochi", State: "KL", Zip: "682001"},
		Payment: PaymentDetails{
			GatewayOrderID:   gatewayOrderID,
			GatewayPaymentID: paymentID,
			Signature:        signPayment(gatewayOrderID, paymentID),
		},
	}
}
