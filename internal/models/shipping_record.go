package models

import "time"

// ShippingRecord 配送记录，与订单一对一
type ShippingRecord struct {
	ID                uint       `gorm:"primarykey" json:"id"`
	Carrier           string     `gorm:"type:varchar(64);not null" json:"carrier"`
	ShippingMethod    string     `gorm:"type:varchar(32);not null;default:'standard'" json:"shipping_method"`
	ShippingCost      Money      `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_cost"`
	Address           string     `gorm:"type:varchar(255);not null" json:"address"`
	City              string     `gorm:"type:varchar(120);not null" json:"city"`
	State             string     `gorm:"type:varchar(120);not null" json:"state"`
	Zip               string     `gorm:"type:varchar(20);not null" json:"zip"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	ShippingNotes     JSON       `gorm:"type:json" json:"shipping_notes"`
	CreatedAt         time.Time  `json:"created_at"`
}

// TableName 指定表名
func (ShippingRecord) TableName() string {
	return "shipping_records"
}
