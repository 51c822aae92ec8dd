package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SystemUserID 系统虚拟账户，充值、退款、促销返现的资金来源/去向
// 不对应任何真实账户行，转账时跳过扣减/入账
const SystemUserID int64 = 0

// Account 用户账户表
// 记录用户的余额，是整个系统的核心数据
type Account struct {
	ID         int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID     int64           `gorm:"uniqueIndex;not null" json:"user_id"` // Telegram 用户ID，外部分配
	Username   *string         `gorm:"type:varchar(64);index" json:"username"`
	Balance    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"balance"`     // 可用余额（卢布）
	RefBalance decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"ref_balance"` // 累计返佣（已包含在余额内，只增不减）
	Version    int             `gorm:"not null;default:0" json:"version"`                        // 乐观锁版本号
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
