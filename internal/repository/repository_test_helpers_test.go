package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupRepositoryTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func createTestSeller(t *testing.T, db *gorm.DB, email string) *models.Seller {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "hash", UserType: constants.UserTypeSeller, Status: constants.UserStatusActive}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create seller user failed: %v", err)
	}
	seller := &models.Seller{UserID: user.ID, BusinessName: "Harbor " + email}
	if err := db.Create(seller).Error; err != nil {
		t.Fatalf("create seller failed: %v", err)
	}
	return seller
}

func createTestListing(t *testing.T, db *gorm.DB, sellerID uint, price string, quantity int) *models.Listing {
	t.Helper()
	listing := &models.Listing{
		SellerID:          sellerID,
		Name:              "Betta",
		Price:             models.NewMoneyFromDecimal(decimal.RequireFromString(price)),
		QuantityAvailable: quantity,
		Status:            constants.ListingStatusActive,
	}
	if err := db.Create(listing).Error; err != nil {
		t.Fatalf("create listing failed: %v", err)
	}
	return listing
}
