package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Promo 促销码表
type Promo struct {
	ID        int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code      string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"code"`
	Activates int             `gorm:"not null" json:"activates"` // 允许的总激活次数
	Amount    decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Promo) TableName() string {
	return "promo"
}

// PromoUse 促销码使用记录表
// (promo_id, user_id) 唯一索引是并发兑换的防线：同一用户重复兑换时
// 第二次插入直接冲突，入账不会重复
type PromoUse struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PromoID   int64     `gorm:"uniqueIndex:uk_promo_user;not null" json:"promo_id"`
	UserID    int64     `gorm:"uniqueIndex:uk_promo_user;not null" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PromoUse) TableName() string {
	return "promo_use"
}
