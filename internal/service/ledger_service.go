package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"numpay/internal/model"
	"numpay/internal/repository"
	"numpay/pkg/idgen"
)

var ErrInvalidAmount = errors.New("转账金额必须为正数")

// ledgerEvent 资金变动事件，经发件箱投递到 Kafka
type ledgerEvent struct {
	FromUser   int64  `json:"from_user"`
	ToUser     int64  `json:"to_user"`
	Amount     string `json:"amount"`
	Type       string `json:"type"`
	BizNo      string `json:"biz_no"`
	OccurredAt int64  `json:"occurred_at"`
}

// LedgerService 记账核心：所有资金变动的唯一入口
// 转账 = 付方扣减 + 收方入账 + 两侧流水 + 发件箱事件，同一事务内完成
// 系统账户（SystemUserID）一侧不落账户行，也不记流水
type LedgerService struct {
	db          *gorm.DB
	accountRepo *repository.AccountRepository
	transRepo   *repository.TransactionRepository
	outboxRepo  *repository.OutboxRepository
	topic       string
}

func NewLedgerService(db *gorm.DB, accountRepo *repository.AccountRepository, transRepo *repository.TransactionRepository, outboxRepo *repository.OutboxRepository, topic string) *LedgerService {
	return &LedgerService{
		db:          db,
		accountRepo: accountRepo,
		transRepo:   transRepo,
		outboxRepo:  outboxRepo,
		topic:       topic,
	}
}

// Transfer 独立事务转账
func (s *LedgerService) Transfer(ctx context.Context, fromUser, toUser int64, amount decimal.Decimal, txnType, bizNo string, isReferral bool) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return s.TransferTx(ctx, tx, fromUser, toUser, amount, txnType, bizNo, isReferral)
	})
}

// TransferTx 在既有事务内转账，供需要合并其它写操作的业务组合使用
func (s *LedgerService) TransferTx(ctx context.Context, tx *gorm.DB, fromUser, toUser int64, amount decimal.Decimal, txnType, bizNo string, isReferral bool) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if fromUser != model.SystemUserID {
		account, err := s.accountRepo.GetByUserIDTx(ctx, tx, fromUser)
		if err != nil {
			return fmt.Errorf("查询付方账户失败: %w", err)
		}
		if err := s.accountRepo.Deduct(ctx, tx, fromUser, amount, account.Version); err != nil {
			return err
		}
		if err := s.transRepo.Create(ctx, tx, &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        fromUser,
			BizNo:         bizNo,
			Amount:        amount.Neg(),
			Type:          txnType,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance.Sub(amount),
		}); err != nil {
			return fmt.Errorf("写付方流水失败: %w", err)
		}
	}

	if toUser != model.SystemUserID {
		account, err := s.accountRepo.GetByUserIDTx(ctx, tx, toUser)
		if err != nil {
			return fmt.Errorf("查询收方账户失败: %w", err)
		}
		if err := s.accountRepo.Increase(ctx, tx, toUser, amount, isReferral); err != nil {
			return err
		}
		if err := s.transRepo.Create(ctx, tx, &model.AccountTransaction{
			TransactionNo: idgen.GenerateTransactionNo(),
			UserID:        toUser,
			BizNo:         bizNo,
			Amount:        amount,
			Type:          txnType,
			BalanceBefore: account.Balance,
			BalanceAfter:  account.Balance.Add(amount),
		}); err != nil {
			return fmt.Errorf("写收方流水失败: %w", err)
		}
	}

	payload, err := json.Marshal(ledgerEvent{
		FromUser:   fromUser,
		ToUser:     toUser,
		Amount:     amount.String(),
		Type:       txnType,
		BizNo:      bizNo,
		OccurredAt: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("序列化记账事件失败: %w", err)
	}
	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: bizNo,
		Topic:      s.topic,
		Payload:    string(payload),
	})
}
