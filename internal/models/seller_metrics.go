package models

import "time"

// SellerMetrics 卖家累计指标，通过原子增量更新
type SellerMetrics struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	SellerID         uint       `gorm:"uniqueIndex;not null" json:"seller_id"`
	TotalSales       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_sales"`
	TotalOrders      int64      `gorm:"not null;default:0" json:"total_orders"`
	AvgRating        Money      `gorm:"type:decimal(4,2);not null;default:0" json:"avg_rating"`
	TotalListings    int64      `gorm:"not null;default:0" json:"total_listings"`
	ActiveListings   int64      `gorm:"not null;default:0" json:"active_listings"`
	LastCalculatedAt *time.Time `json:"last_calculated_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (SellerMetrics) TableName() string {
	return "seller_metrics"
}

// SellerSalesHistory 卖家销售日报，(seller_id, day) 唯一
type SellerSalesHistory struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	SellerID      uint      `gorm:"not null;uniqueIndex:idx_sales_history_seller_day" json:"seller_id"`
	Day           string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_sales_history_seller_day" json:"day"`
	DailySales    Money     `gorm:"type:decimal(20,2);not null;default:0" json:"daily_sales"`
	OrderCount    int64     `gorm:"not null;default:0" json:"order_count"`
	NewCustomers  int64     `gorm:"not null;default:0" json:"new_customers"`
	Cancellations int64     `gorm:"not null;default:0" json:"cancellations"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SellerSalesHistory) TableName() string {
	return "seller_sales_history"
}
