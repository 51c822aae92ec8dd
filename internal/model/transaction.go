package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型常量
// ============================================================================

const (
	TransactionTypeDeposit  = "DEPOSIT"  // 充值入账
	TransactionTypePurchase = "PURCHASE" // 购买号码/租用扣款
	TransactionTypeRefund   = "REFUND"   // 订单取消退款
	TransactionTypeReferral = "REFERRAL" // 邀请返佣
	TransactionTypePromo    = "PROMO"    // 促销码入账
	TransactionTypeTransfer = "TRANSFER" // 用户间转账
)

// AccountTransaction 账户流水表
// 只追加，不修改，不删除；每笔资金变动记录变动前后余额，便于对账
type AccountTransaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"` // 流水号（全局唯一）
	UserID        int64           `gorm:"index;not null" json:"user_id"`
	BizNo         string          `gorm:"type:varchar(64);index;not null" json:"biz_no"` // 关联的账单号/订单号/促销码
	Amount        decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amount"`     // 正数入账，负数出账
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"balance_after"`
	CreatedAt     time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AccountTransaction) TableName() string {
	return "account_transaction"
}
