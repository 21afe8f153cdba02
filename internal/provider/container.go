package provider

import (
	"strings"
	"time"

	"github.com/fishmart-next/internal/cache"
	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/metrics"
	"github.com/fishmart-next/internal/payment/razorpay"
	"github.com/fishmart-next/internal/queue"
	"github.com/fishmart-next/internal/repository"
	"github.com/fishmart-next/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config          *config.Config
	DB              *gorm.DB
	QueueClient     *queue.Client
	MetricsRegistry *prometheus.Registry
	CheckoutMetrics *metrics.CheckoutMetrics
	Gateway         service.PaymentGateway

	// Repositories
	UserRepo          repository.UserRepository
	SellerRepo        repository.SellerRepository
	ListingRepo       repository.ListingRepository
	CartRepo          repository.CartRepository
	OrderRepo         repository.OrderRepository
	PaymentRecordRepo repository.PaymentRecordRepository
	SellerMetricsRepo repository.SellerMetricsRepository
	WishlistRepo      repository.WishlistRepository

	// Services
	TokenService          *service.UserTokenService
	EmailService          *service.EmailService
	CaptchaService        *service.CaptchaService
	InventoryLedger       *service.InventoryLedger
	PaymentVerifier       *service.PaymentVerifier
	SettlementService     *service.SettlementService
	SellerMetricsService  *service.SellerMetricsService
	NotificationService   *service.NotificationService
	PostCommitDispatcher  *service.PostCommitDispatcher
	CheckoutService       *service.CheckoutService
	CartService           *service.CartService
	OrderQueryService     *service.OrderQueryService
	PaymentWebhookService *service.PaymentWebhookService
	SellerListingService  *service.SellerListingService
	WishlistService       *service.WishlistService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config, db *gorm.DB) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	c := &Container{
		Config:          cfg,
		DB:              db,
		QueueClient:     queueClient,
		MetricsRegistry: registry,
		CheckoutMetrics: metrics.NewCheckoutMetrics(registry),
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

// Close 释放队列与缓存连接
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var firstErr error
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			firstErr = err
		}
	}
	if err := cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (c *Container) initRepositories() {
	db := c.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.SellerRepo = repository.NewSellerRepository(db)
	c.ListingRepo = repository.NewListingRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRecordRepo = repository.NewPaymentRecordRepository(db)
	c.SellerMetricsRepo = repository.NewSellerMetricsRepository(db)
	c.WishlistRepo = repository.NewWishlistRepository(db)
}

func (c *Container) initServices() {
	cfg := c.Config
	c.Gateway = newGateway(cfg.Payment)

	c.TokenService = service.NewUserTokenService(cfg.UserJWT)
	c.EmailService = service.NewEmailService(&cfg.Email)
	c.CaptchaService = service.NewCaptchaService(cfg.Captcha)
	c.InventoryLedger = service.NewInventoryLedger(c.ListingRepo)
	c.PaymentVerifier = service.NewPaymentVerifier(c.Gateway, time.Duration(cfg.Payment.TimeoutSeconds)*time.Second)
	c.SettlementService = service.NewSettlementService(c.DB, c.OrderRepo, c.UserRepo, c.CartRepo, c.InventoryLedger, cfg.Order, c.CheckoutMetrics)
	c.SellerMetricsService = service.NewSellerMetricsService(c.DB, c.OrderRepo, c.ListingRepo, c.SellerMetricsRepo, cfg.Order, c.CheckoutMetrics)
	c.NotificationService = service.NewNotificationService(c.OrderRepo, c.SellerRepo, c.UserRepo, c.EmailService)
	c.PostCommitDispatcher = service.NewPostCommitDispatcher(c.QueueClient, c.SellerMetricsService, c.NotificationService)
	c.CheckoutService = service.NewCheckoutService(service.CheckoutOptions{
		Identity:    service.NewIdentityResolver(c.UserRepo),
		ListingRepo: c.ListingRepo,
		CartRepo:    c.CartRepo,
		SellerRepo:  c.SellerRepo,
		PaymentRepo: c.PaymentRecordRepo,
		Pricing:     service.NewPricingEngine(cfg.Order.PointsEarnRate),
		Verifier:    c.PaymentVerifier,
		Settlement:  c.SettlementService,
		Guard:       cache.NewPaymentGuard(time.Duration(cfg.Payment.ReplayTTLSeconds) * time.Second),
		Publisher:   c.PostCommitDispatcher,
		Captcha:     c.CaptchaService,
		Metrics:     c.CheckoutMetrics,
		PaymentCfg:  cfg.Payment,
	})
	c.CartService = service.NewCartService(c.CartRepo, c.ListingRepo)
	c.OrderQueryService = service.NewOrderQueryService(c.OrderRepo)
	c.PaymentWebhookService = service.NewPaymentWebhookService(c.DB, c.Gateway, c.PaymentRecordRepo, c.OrderRepo, c.UserRepo, c.InventoryLedger, c.SellerMetricsService, c.CheckoutMetrics)
	c.SellerListingService = service.NewSellerListingService(c.SellerRepo, c.ListingRepo, c.SellerMetricsService)
	c.WishlistService = service.NewWishlistService(c.WishlistRepo, c.ListingRepo)
}

// newGateway 网关配置不完整时返回 nil，下单与 webhook 将拒绝处理
func newGateway(cfg config.PaymentConfig) service.PaymentGateway {
	gatewayCfg := razorpay.Config{
		KeyID:          strings.TrimSpace(cfg.KeyID),
		KeySecret:      strings.TrimSpace(cfg.KeySecret),
		WebhookSecret:  strings.TrimSpace(cfg.WebhookSecret),
		APIBaseURL:     strings.TrimSpace(cfg.APIBaseURL),
		TimeoutSeconds: cfg.TimeoutSeconds,
	}
	if err := razorpay.ValidateConfig(gatewayCfg); err != nil {
		logger.Warnw("provider_payment_gateway_disabled", "error", err)
		return nil
	}
	return razorpay.NewClient(gatewayCfg)
}
