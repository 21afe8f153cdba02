package models

import "time"

// Cart 购物车；同一用户至多一个激活购物车（部分唯一索引）
type Cart struct {
	ID                        uint      `gorm:"primarykey" json:"id"`
	UserID                    uint      `gorm:"not null;index;uniqueIndex:idx_carts_active_user,where:is_active = true" json:"user_id"`
	IsActive                  bool      `gorm:"not null;default:true" json:"is_active"`
	AbandonedCartReminderSent bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`

	Items []CartItem `gorm:"foreignKey:CartID" json:"items,omitempty"`
}

// TableName 指定表名
func (Cart) TableName() string {
	return "shopping_carts"
}

// CartItem 购物车项
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CartID    uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_listing" json:"cart_id"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_cart_items_cart_listing" json:"listing_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}
