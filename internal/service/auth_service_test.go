package service

import (
	"errors"
	"testing"
	"time"

	"github.com/fishmart-next/internal/config"
	"github.com/fishmart-next/internal/models"
)

func TestUserTokenServiceRoundTrip(t *testing.T) {
	svc := NewUserTokenService(config.JWTConfig{SecretKey: "test-secret", ExpireHours: 2})
	user := &models.User{ID: 42, Email: "buyer@example.com"}

	token, expiresAt, err := svc.GenerateUserJWT(user, 0)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if time.Until(expiresAt) <= time.Hour || time.Until(expiresAt) > 2*time.Hour {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}

	claims, err := svc.ParseUserJWT(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "buyer@example.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := ParseUserJWT("other-secret", token); err == nil {
		t.Fatalf("expected signature mismatch error")
	}
}

func TestUserTokenServiceRejectsEmptyUser(t *testing.T) {
	svc := NewUserTokenService(config.JWTConfig{SecretKey: "test-secret"})
	if _, _, err := svc.GenerateUserJWT(&models.User{}, 1); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}
