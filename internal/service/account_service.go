package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"numpay/internal/infrastructure/lock"
	"numpay/internal/model"
	"numpay/internal/notify"
	"numpay/internal/repository"
)

var (
	ErrSelfTransfer     = errors.New("不能给自己转账")
	ErrReceiverNotFound = errors.New("收款用户不存在")
)

// AccountService 账户开户、余额查询与用户间转账
type AccountService struct {
	accountRepo *repository.AccountRepository
	transRepo   *repository.TransactionRepository
	ledger      *LedgerService
	locker      *lock.DistributedLock
	notifier    notify.Notifier
}

func NewAccountService(
	accountRepo *repository.AccountRepository,
	transRepo *repository.TransactionRepository,
	ledger *LedgerService,
	locker *lock.DistributedLock,
	notifier notify.Notifier,
) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		transRepo:   transRepo,
		ledger:      ledger,
		locker:      locker,
		notifier:    notifier,
	}
}

// Register 开户（幂等），并绑定当前用户名
func (s *AccountService) Register(ctx context.Context, userID int64, username string) (*model.Account, error) {
	account, err := s.accountRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if username != "" {
		if err := s.accountRepo.BindUsername(ctx, userID, username); err != nil {
			return nil, err
		}
	}
	return account, nil
}

func (s *AccountService) GetBalance(ctx context.Context, userID int64) (*model.Account, error) {
	return s.accountRepo.GetByUserID(ctx, userID)
}

// TransferToUser 按用户名给其他用户转账
// 付方维度加分布式锁，防止同一用户并发转账超额扣款
func (s *AccountService) TransferToUser(ctx context.Context, fromUserID int64, toUsername string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	receiver, err := s.accountRepo.GetByUsername(ctx, toUsername)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return ErrReceiverNotFound
		}
		return err
	}
	if receiver.UserID == fromUserID {
		return ErrSelfTransfer
	}

	lockKey := fmt.Sprintf("transfer:user:%d", fromUserID)
	unlock, err := s.locker.Acquire(ctx, lockKey)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.ledger.Transfer(ctx, fromUserID, receiver.UserID,
		amount, model.TransactionTypeTransfer, fmt.Sprintf("u2u:%d:%d", fromUserID, receiver.UserID), false); err != nil {
		return err
	}

	sender, err := s.accountRepo.GetByUserID(ctx, fromUserID)
	fromName := ""
	if err == nil && sender.Username != nil {
		fromName = *sender.Username
	}
	if err := s.notifier.TransferReceived(ctx, receiver.UserID, fromName, amount); err != nil {
		log.Printf("[AccountService] 转账到账通知失败 userID=%d: %v", receiver.UserID, err)
	}
	return nil
}

// AdminCredit 管理端手工入账，走系统账户
func (s *AccountService) AdminCredit(ctx context.Context, userID int64, amount decimal.Decimal, reason string) error {
	if _, err := s.accountRepo.GetByUserID(ctx, userID); err != nil {
		return err
	}
	return s.ledger.Transfer(ctx, model.SystemUserID, userID,
		amount, model.TransactionTypeDeposit, reason, false)
}

// ListTransactions 分页查询账户流水
func (s *AccountService) ListTransactions(ctx context.Context, userID int64, page, pageSize int) ([]*model.AccountTransaction, int64, error) {
	return s.transRepo.ListByUserID(ctx, userID, page, pageSize)
}
