package models

import "time"

// Review 商品评价
type Review struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	UserID             uint      `gorm:"index;not null" json:"user_id"`
	ListingID          uint      `gorm:"index;not null" json:"listing_id"`
	OrderID            *uint     `gorm:"index" json:"order_id,omitempty"`
	Rating             int       `gorm:"not null" json:"rating"`
	Comment            string    `gorm:"type:text" json:"comment"`
	IsVerifiedPurchase bool      `gorm:"not null;default:false" json:"is_verified_purchase"`
	CreatedAt          time.Time `json:"created_at"`
}

// TableName 指定表名
func (Review) TableName() string {
	return "reviews"
}
