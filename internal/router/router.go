package router

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/fishmart-next/internal/cache"
	"github.com/fishmart-next/internal/config"
	publichandlers "github.com/fishmart-next/internal/http/handlers/public"
	"github.com/fishmart-next/internal/http/response"
	"github.com/fishmart-next/internal/logger"
	"github.com/fishmart-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMetricsPath = "/metrics"

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "fm"
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxRequests,
	}
	captchaRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:captcha", redisPrefix),
		WindowSeconds: cfg.Security.CaptchaRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CaptchaRateLimit.MaxRequests,
	}
	userAuth := UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo)
	optionalAuth := OptionalUserJWTMiddleware(cfg.UserJWT.SecretKey, c.UserRepo)
	checkoutLimit := RateLimitMiddleware(cache.Client(), checkoutRule, KeyByUserOrIP)
	captchaLimit := RateLimitMiddleware(cache.Client(), captchaRule, KeyByIP)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/healthz", healthHandler(c))
	if cfg.Metrics.Enabled && c.MetricsRegistry != nil {
		path := strings.TrimSpace(cfg.Metrics.Path)
		if path == "" {
			path = defaultMetricsPath
		}
		r.GET(path, gin.WrapH(promhttp.HandlerFor(c.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	apiV1 := r.Group("/api/v1")
	{
		public := apiV1.Group("/public")
		{
			public.GET("/captcha/image", captchaLimit, publicHandler.GetImageCaptcha)
		}

		// 下单接口，游客与登录用户共用
		order := apiV1.Group("/order")
		{
			order.POST("/create-payment-intent", optionalAuth, checkoutLimit, publicHandler.CreatePaymentIntent)
			order.POST("/place-order", optionalAuth, checkoutLimit, publicHandler.PlaceOrder)
			order.POST("/cart-checkout", optionalAuth, checkoutLimit, publicHandler.CartCheckout)
			order.POST("/payment-webhook", publicHandler.PaymentWebhook)
		}

		orders := apiV1.Group("/orders", userAuth)
		{
			orders.GET("", publicHandler.ListOrders)
			orders.GET("/:id", publicHandler.GetOrder)
		}

		wishlist := apiV1.Group("/wishlist", userAuth)
		{
			wishlist.GET("", publicHandler.GetWishlist)
			wishlist.POST("/items", publicHandler.AddWishlistItem)
			wishlist.DELETE("/items/:id", publicHandler.RemoveWishlistItem)
		}

		// 卖家商品管理，服务层校验卖家身份与归属
		sellerListings := apiV1.Group("/seller/listings", userAuth)
		{
			sellerListings.GET("", publicHandler.ListSellerListings)
			sellerListings.POST("", publicHandler.CreateSellerListing)
			sellerListings.GET("/:id", publicHandler.GetSellerListing)
			sellerListings.PUT("/:id", publicHandler.UpdateSellerListing)
			sellerListings.DELETE("/:id", publicHandler.DeleteSellerListing)
		}

		cart := apiV1.Group("/cart", userAuth)
		{
			cart.GET("", publicHandler.GetCart)
			cart.POST("/items", publicHandler.AddCartItem)
			cart.PUT("/items/:id", publicHandler.UpdateCartItem)
			cart.DELETE("/items/:id", publicHandler.RemoveCartItem)
		}
	}

	r.NoRoute(func(ctx *gin.Context) {
		response.NotFound(ctx, "route not found")
	})

	return r
}

// healthHandler 检查数据库连通性
func healthHandler(c *provider.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if c == nil || c.DB == nil {
			response.Error(ctx, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		sqlDB, err := c.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx.Request.Context())
		}
		if err != nil {
			logger.Warnw("healthz_database_ping_failed", "error", err)
			response.Error(ctx, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		response.Success(ctx, gin.H{"status": "ok", "redis": cache.Enabled()})
	}
}
