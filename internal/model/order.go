package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusActive    = "active"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusExpired   = "expired"
)

// 终态集合，进入后不再流转
var terminalOrderStatuses = map[string]bool{
	OrderStatusCompleted: true,
	OrderStatusCancelled: true,
	OrderStatusExpired:   true,
}

func IsTerminalOrderStatus(status string) bool {
	return terminalOrderStatuses[status]
}

// SmsOrder 单次接码订单表
// order_id 由接码平台分配；超过轮询时间窗的 active 订单视为已放弃，
// 不再参与对账，状态保留 active，不做自动过期
type SmsOrder struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`
	UserID      int64           `gorm:"index;not null" json:"user_id"`
	Phone       string          `gorm:"type:varchar(32);not null" json:"phone"`
	Service     string          `gorm:"type:varchar(16);not null" json:"service"` // 服务代码，如 tg、vk
	ServiceName string          `gorm:"type:varchar(64);not null" json:"service_name"`
	CountryID   int             `gorm:"not null" json:"country_id"`
	Price       decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Status      string          `gorm:"type:varchar(16);index;not null;default:active" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SmsOrder) TableName() string {
	return "sms_order"
}

// RentOrder 号码租用订单表
// 对账只轮询 end_date 未过期的 active 记录，依赖查询时刻的时间条件，
// 不依赖后台定时翻转状态
type RentOrder struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_id"`
	UserID    int64           `gorm:"index;not null" json:"user_id"`
	Phone     string          `gorm:"type:varchar(32);not null" json:"phone"`
	StartDate time.Time       `gorm:"not null" json:"start_date"`
	EndDate   time.Time       `gorm:"index;not null" json:"end_date"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Status    string          `gorm:"type:varchar(16);index;not null;default:active" json:"status"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RentOrder) TableName() string {
	return "rent_order"
}
