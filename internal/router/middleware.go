package router

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fishmart-next/internal/cache"
	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/constants"
	handlershared "github.com/fishmart-next/internal/http/handlers/shared"
	"github.com/fishmart-next/internal/http/response"
	"github.com/fishmart-next/internal/repository"
	"github.com/fishmart-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"
const userAuthStateTTL = 5 * time.Minute

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Authorization",
			"X-Requested-With",
			requestIDHeader,
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.L()
	}
	sugar := logger.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log := sugar.With(
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		if uid, ok := handlershared.GetContextUint(c, handlershared.ContextUserIDKey); ok {
			log = log.With("user_id", uid)
		}
		if len(c.Errors) > 0 {
			log.Errorw("request", "errors", c.Errors.String())
			return
		}
		log.Infow("request")
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// userAuthState 用户鉴权状态缓存
type userAuthState struct {
	Status  string `json:"status"`
	IsGuest bool   `json:"is_guest"`
}

// UserJWTAuthMiddleware 用户 JWT 鉴权中间件，未登录直接拒绝
func UserJWTAuthMiddleware(secretKey string, userRepo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, email, msg := authenticateUser(c, secretKey, userRepo)
		if msg != "" {
			response.Abort(c, http.StatusUnauthorized, msg)
			return
		}
		c.Set(handlershared.ContextUserIDKey, uid)
		c.Set("user_email", email)
		c.Next()
	}
}

// OptionalUserJWTMiddleware 可选鉴权：携带有效令牌时写入用户，缺失时按游客处理，令牌无效时拒绝
func OptionalUserJWTMiddleware(secretKey string, userRepo repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader("Authorization")) == "" {
			c.Next()
			return
		}
		uid, email, msg := authenticateUser(c, secretKey, userRepo)
		if msg != "" {
			response.Abort(c, http.StatusUnauthorized, msg)
			return
		}
		c.Set(handlershared.ContextUserIDKey, uid)
		c.Set("user_email", email)
		c.Next()
	}
}

// authenticateUser 返回用户 ID；失败时返回错误消息
func authenticateUser(c *gin.Context, secretKey string, userRepo repository.UserRepository) (uint, string, string) {
	if secretKey == "" {
		return 0, "", "jwt secret is not configured"
	}
	if userRepo == nil {
		return 0, "", "invalid token"
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return 0, "", "authorization header is required"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return 0, "", "authorization header must be a bearer token"
	}

	claims, err := service.ParseUserJWT(secretKey, strings.TrimSpace(parts[1]))
	if err != nil || claims.UserID == 0 {
		return 0, "", "invalid token"
	}

	state, err := loadUserAuthState(c.Request.Context(), userRepo, claims.UserID)
	if err != nil || state == nil {
		return 0, "", "invalid token"
	}
	if !isActiveUserStatus(state.Status) {
		return 0, "", "user is disabled"
	}
	if state.IsGuest {
		return 0, "", "guest accounts cannot sign in"
	}
	return claims.UserID, claims.Email, ""
}

func userAuthStateKey(userID uint) string {
	return fmt.Sprintf("user_auth:%d", userID)
}

func loadUserAuthState(ctx context.Context, userRepo repository.UserRepository, userID uint) (*userAuthState, error) {
	var cached userAuthState
	if hit, err := cache.GetJSON(ctx, userAuthStateKey(userID), &cached); err == nil && hit {
		return &cached, nil
	}
	user, err := userRepo.GetByID(ctx, userID)
	if err != nil || user == nil {
		return nil, err
	}
	state := &userAuthState{Status: user.Status, IsGuest: user.IsGuest}
	_ = cache.SetJSON(ctx, userAuthStateKey(userID), state, userAuthStateTTL)
	return state, nil
}

func isActiveUserStatus(status string) bool {
	return strings.ToLower(strings.TrimSpace(status)) == constants.UserStatusActive
}
