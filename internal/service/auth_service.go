package service

import (
	"errors"
	"time"

	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const defaultUserJWTExpireHours = 24

var ErrTokenInvalid = errors.New("invalid token")

// UserJWTClaims 用户 JWT 声明
type UserJWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// UserTokenService 用户令牌签发与解析
type UserTokenService struct {
	cfg config.JWTConfig
}

// NewUserTokenService 创建令牌服务
func NewUserTokenService(cfg config.JWTConfig) *UserTokenService {
	return &UserTokenService{cfg: cfg}
}

// GenerateUserJWT 生成用户 JWT Token
func (s *UserTokenService) GenerateUserJWT(user *models.User, expireHours int) (string, time.Time, error) {
	if user == nil || user.ID == 0 {
		return "", time.Time{}, ErrTokenInvalid
	}
	resolvedHours := expireHours
	if resolvedHours <= 0 {
		resolvedHours = s.cfg.ExpireHours
	}
	if resolvedHours <= 0 {
		resolvedHours = defaultUserJWTExpireHours
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(resolvedHours) * time.Hour)
	claims := UserJWTClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseUserJWT 解析用户 JWT Token
func (s *UserTokenService) ParseUserJWT(tokenString string) (*UserJWTClaims, error) {
	return ParseUserJWT(s.cfg.SecretKey, tokenString)
}

// ParseUserJWT 使用指定密钥解析用户 JWT Token
func ParseUserJWT(secretKey, tokenString string) (*UserJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &UserJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*UserJWTClaims); ok && token.Valid && claims.UserID != 0 {
		return claims, nil
	}
	return nil, ErrTokenInvalid
}
