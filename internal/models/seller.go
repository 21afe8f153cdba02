package models

import "time"

// Seller 卖家档案
type Seller struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	BusinessName string    `gorm:"type:varchar(160);not null" json:"business_name"`
	DisplayName  string    `gorm:"type:varchar(160);default:''" json:"display_name"`
	ContactEmail string    `gorm:"type:varchar(255);default:''" json:"contact_email"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName 指定表名
func (Seller) TableName() string {
	return "sellers"
}
