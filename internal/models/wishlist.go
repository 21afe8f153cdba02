package models

import "time"

// WishlistItem 用户收藏的商品，同一用户同一商品仅一条
type WishlistItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_wishlist_user_listing" json:"user_id"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_wishlist_user_listing;index" json:"listing_id"`
	Notes     string    `gorm:"type:varchar(255);default:''" json:"notes"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
}

// TableName 指定表名
func (WishlistItem) TableName() string {
	return "wishlist_items"
}
