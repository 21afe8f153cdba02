package models

import (
	"fmt"

	"github.com/fishmart-next/internal/constants"
	"github.com/fishmart-next/internal/logger"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const defaultDemoPassword = "fishmart123"

// demoListing 演示商品
type demoListing struct {
	Name        string
	Description string
	Price       string
	Quantity    int
}

// demoSeller 演示卖家及其商品
type demoSeller struct {
	Email        string
	BusinessName string
	Listings     []demoListing
}

var demoSellers = []demoSeller{
	{
		Email:        "reef.traders@fishmart.local",
		BusinessName: "Reef Traders",
		Listings: []demoListing{
			{Name: "Ocellaris Clownfish", Description: "Captive bred, 3-4 cm", Price: "450.00", Quantity: 40},
			{Name: "Blue Tang", Description: "Juvenile, reef safe", Price: "1800.00", Quantity: 12},
			{Name: "Yellow Tang", Description: "Hawaiian, medium", Price: "2400.00", Quantity: 8},
		},
	},
	{
		Email:        "river.aquatics@fishmart.local",
		BusinessName: "River Aquatics",
		Listings: []demoListing{
			{Name: "Neon Tetra (pack of 10)", Description: "Schooling fish", Price: "300.00", Quantity: 60},
			{Name: "Betta Splendens", Description: "Halfmoon male", Price: "650.00", Quantity: 20},
			{Name: "Corydoras Panda", Description: "Bottom dweller, 2 cm", Price: "220.00", Quantity: 0},
		},
	},
}

// InitDemoMarketplace 初始化演示数据：一个买家、两个卖家及其商品；已有卖家时跳过
func InitDemoMarketplace(db *gorm.DB, password string) error {
	if db == nil {
		return fmt.Errorf("db is nil")
	}
	var count int64
	if err := db.Model(&Seller{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Infow("demo_marketplace_exists", "sellers", count)
		return nil
	}

	if password == "" {
		password = defaultDemoPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		buyer := User{
			Email:         "buyer@fishmart.local",
			PasswordHash:  string(hash),
			FullName:      "Demo Buyer",
			UserType:      constants.UserTypeCustomer,
			Status:        constants.UserStatusActive,
			PointsBalance: 100,
		}
		if err := tx.Create(&buyer).Error; err != nil {
			return err
		}
		for _, item := range demoSellers {
			user := User{
				Email:        item.Email,
				PasswordHash: string(hash),
				FullName:     item.BusinessName,
				UserType:     constants.UserTypeSeller,
				Status:       constants.UserStatusActive,
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			seller := Seller{
				UserID:       user.ID,
				BusinessName: item.BusinessName,
				DisplayName:  item.BusinessName,
				ContactEmail: item.Email,
			}
			if err := tx.Create(&seller).Error; err != nil {
				return err
			}
			for _, listing := range item.Listings {
				price, err := decimal.NewFromString(listing.Price)
				if err != nil {
					return err
				}
				status := constants.ListingStatusActive
				if listing.Quantity == 0 {
					status = constants.ListingStatusSoldOut
				}
				row := Listing{
					SellerID:          seller.ID,
					Name:              listing.Name,
					Description:       listing.Description,
					Price:             NewMoneyFromDecimal(price),
					QuantityAvailable: listing.Quantity,
					Status:            status,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if password == defaultDemoPassword {
		logger.Warnw("demo_accounts_created_with_default_password", "password", password)
	} else {
		logger.Warnw("demo_accounts_created", "password_hidden", true)
	}
	return nil
}
