package models

import "time"

// OrderItem 订单项表
type OrderItem struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                     // 主键
	OrderID     uint      `gorm:"index;not null" json:"order_id"`                           // 订单ID
	ListingID   uint      `gorm:"index;not null" json:"listing_id"`                         // 商品ID
	SellerID    uint      `gorm:"index;not null" json:"seller_id"`                          // 卖家ID
	ListingName string    `gorm:"type:varchar(200);default:''" json:"listing_name"`         // 商品名称快照
	UnitPrice   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // 单价
	Quantity    int       `gorm:"not null" json:"quantity"`                                 // 数量
	TotalPrice  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 小计
	CreatedAt   time.Time `json:"created_at"`                                               // 创建时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
