package models

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestInitDemoMarketplaceIsIdempotent(t *testing.T) {
	dsn := fmt.Sprintf("file:models_demo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	if err := InitDemoMarketplace(db, "secret-pass"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if err := InitDemoMarketplace(db, "secret-pass"); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	var sellers, listings, soldOut int64
	db.Model(&Seller{}).Count(&sellers)
	db.Model(&Listing{}).Count(&listings)
	db.Model(&Listing{}).Where("listing_status = ?", "sold_out").Count(&soldOut)
	if sellers != 2 || listings != 6 {
		t.Fatalf("unexpected seed counts: sellers=%d listings=%d", sellers, listings)
	}
	if soldOut != 1 {
		t.Fatalf("expected one sold out listing, got %d", soldOut)
	}
}

func TestInitDemoMarketplaceRejectsNilDB(t *testing.T) {
	if err := InitDemoMarketplace(nil, ""); err == nil {
		t.Fatalf("expected error for nil db")
	}
}
