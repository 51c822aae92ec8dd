package model

import (
	"time"
)

const (
	InvoiceStatusActive = "active"
	InvoiceStatusPaid   = "paid"
)

// 支付渠道标识
const (
	ProviderCrypto = "crypto"
	ProviderStars  = "stars"
)

// Invoice 充值账单表
// invoice_id 由 Crypto Pay 分配，Stars 渠道使用本地生成的 UUID
// 状态只允许 active → paid 单向流转，结算由带状态条件的更新保证幂等
type Invoice struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	InvoiceID string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"invoice_id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Provider  string    `gorm:"type:varchar(16);index;not null" json:"provider"`
	Status    string    `gorm:"type:varchar(16);index;not null;default:active" json:"status"`
	MessageID int       `gorm:"not null" json:"message_id"` // 待支付提示消息，结算后撤回
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Invoice) TableName() string {
	return "invoice"
}
