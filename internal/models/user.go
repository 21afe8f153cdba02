package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户表（含游客账号）
type User struct {
	ID            uint           `gorm:"primarykey" json:"id"`                                          // 主键
	Email         string         `gorm:"uniqueIndex;not null" json:"email"`                             // 邮箱（身份唯一键）
	PasswordHash  string         `gorm:"not null" json:"-"`                                             // 密码哈希
	FullName      string         `gorm:"type:varchar(120);default:''" json:"full_name"`                 // 姓名
	PhoneNumber   string         `gorm:"type:varchar(32);default:''" json:"phone_number"`               // 电话
	UserType      string         `gorm:"type:varchar(20);not null;default:'customer'" json:"user_type"` // customer / seller / guest
	IsGuest       bool           `gorm:"not null;default:false;index" json:"is_guest"`                  // 是否游客账号
	PointsBalance int64          `gorm:"not null;default:0" json:"points_balance"`                      // 积分余额
	Status        string         `gorm:"type:varchar(20);default:'active'" json:"status"`               // 账号状态
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt     time.Time      `json:"updated_at"`                                                    // 更新时间
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
