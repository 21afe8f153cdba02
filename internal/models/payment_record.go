package models

import "time"

// PaymentRecord 支付记录，与订单一对一
type PaymentRecord struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	PaymentMethod    string     `gorm:"type:varchar(32);not null" json:"payment_method"`
	TransactionID    string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"transaction_id"` // 网关支付ID_卖家ID
	GatewayOrderID   string     `gorm:"type:varchar(128);index" json:"gateway_order_id"`
	GatewayPaymentID string     `gorm:"type:varchar(128);index" json:"gateway_payment_id"`
	Status           string     `gorm:"type:varchar(20);index;not null" json:"status"`
	PaidAmount       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"paid_amount"`
	PaymentDate      *time.Time `json:"payment_date"`
	PaymentMetadata  JSON       `gorm:"type:json" json:"payment_metadata"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (PaymentRecord) TableName() string {
	return "payment_records"
}
