package models

import (
	"time"

	"gorm.io/gorm"
)

// Listing 卖家上架商品，quantity_available 为实时库存
type Listing struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                                                            // 主键
	SellerID          uint           `gorm:"index;not null" json:"seller_id"`                                                                 // 卖家ID
	CategoryID        uint           `gorm:"index" json:"category_id,omitempty"`                                                              // 分类ID
	Name              string         `gorm:"type:varchar(200);not null" json:"name"`                                                          // 名称
	Description       string         `gorm:"type:text" json:"description"`                                                                    // 描述
	Price             Money          `gorm:"type:decimal(20,2);not null;default:0" json:"price"`                                              // 单价
	QuantityAvailable int            `gorm:"not null;default:0;check:chk_listing_quantity,quantity_available >= 0" json:"quantity_available"` // 可售库存
	Status            string         `gorm:"column:listing_status;type:varchar(20);index;not null;default:'active'" json:"listing_status"`    // 上架状态
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                                                         // 创建时间
	UpdatedAt         time.Time      `json:"updated_at"`                                                                                      // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                                                  // 软删除时间

	Seller *Seller `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// TableName 指定表名
func (Listing) TableName() string {
	return "fish_listings"
}
