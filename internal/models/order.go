package models

import "time"

// Order 订单表；每次结算按卖家各生成一笔
type Order struct {
	ID               uint      `gorm:"primarykey" json:"id"`                                         // 主键
	OrderNo          string    `gorm:"uniqueIndex;not null" json:"order_no"`                         // 订单编号
	UserID           uint      `gorm:"index;not null" json:"user_id"`                                // 下单用户
	SellerID         uint      `gorm:"index;not null" json:"seller_id"`                              // 卖家
	Status           string    `gorm:"index;not null" json:"status"`                                 // 订单状态
	SubtotalAmount   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal_amount"` // 商品小计
	ShippingAmount   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_amount"` // 分摊运费
	DiscountAmount   Money     `gorm:"type:decimal(20,2);not null;default:0" json:"discount_amount"` // 分摊优惠
	TotalAmount      Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`    // 实付金额
	PointsEarned     int64     `gorm:"not null;default:0" json:"points_earned"`                      // 获得积分
	PointsUsed       int64     `gorm:"not null;default:0" json:"points_used"`                        // 使用积分
	CouponCode       string    `gorm:"type:varchar(64);default:''" json:"coupon_code,omitempty"`     // 优惠码
	Notes            string    `gorm:"type:text" json:"notes,omitempty"`                             // 订单备注
	IsGuestOrder     bool      `gorm:"not null;default:false" json:"is_guest_order"`                 // 游客订单
	ShippingRecordID uint      `gorm:"uniqueIndex;not null" json:"shipping_record_id"`               // 配送记录
	PaymentRecordID  uint      `gorm:"uniqueIndex;not null" json:"payment_record_id"`                // 支付记录
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt        time.Time `json:"updated_at"`                                                   // 更新时间

	Items          []OrderItem     `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	ShippingRecord *ShippingRecord `gorm:"foreignKey:ShippingRecordID" json:"shipping,omitempty"`
	PaymentRecord  *PaymentRecord  `gorm:"foreignKey:PaymentRecordID" json:"payment,omitempty"`
	Seller         *Seller         `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
