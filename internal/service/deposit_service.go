package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"numpay/internal/config"
	"numpay/internal/model"
	"numpay/internal/notify"
	"numpay/internal/provider/cryptopay"
	"numpay/internal/repository"
	"numpay/pkg/exchange"
)

var (
	ErrStarsDisabled  = errors.New("Stars 支付渠道未开启")
	ErrStarsOverLimit = errors.New("超出单笔 Stars 支付上限")
	ErrInvoiceInvalid = errors.New("账单校验未通过")
)

// DepositService 充值账单的创建与结算
// 结算 = 账单置为已支付 + 入账 + 返佣，单一事务，发件箱事件由记账层写入
// 通知与消息撤回在事务提交后执行，失败不回滚资金
type DepositService struct {
	db           *gorm.DB
	cfg          *config.Config
	invoiceRepo  *repository.InvoiceRepository
	referralRepo *repository.ReferralRepository
	ledger       *LedgerService
	cryptoAPI    cryptopay.API
	notifier     notify.Notifier
}

func NewDepositService(
	db *gorm.DB,
	cfg *config.Config,
	invoiceRepo *repository.InvoiceRepository,
	referralRepo *repository.ReferralRepository,
	ledger *LedgerService,
	cryptoAPI cryptopay.API,
	notifier notify.Notifier,
) *DepositService {
	return &DepositService{
		db:           db,
		cfg:          cfg,
		invoiceRepo:  invoiceRepo,
		referralRepo: referralRepo,
		ledger:       ledger,
		cryptoAPI:    cryptoAPI,
		notifier:     notifier,
	}
}

// CreateCryptoInvoice 创建加密货币充值账单，返回账单号与支付链接
// messageID 为机器人侧的待支付提示消息，结算后撤回，可传 0
func (s *DepositService) CreateCryptoInvoice(ctx context.Context, userID int64, fiatAmount decimal.Decimal, messageID int) (string, string, error) {
	if !fiatAmount.IsPositive() {
		return "", "", ErrInvalidAmount
	}
	cryptoAmount := exchange.ToCrypto(fiatAmount, s.cfg.CryptoPay.UsdtRubRate)
	invoiceID, payURL, err := s.cryptoAPI.CreateInvoice(ctx, s.cfg.CryptoPay.Asset, cryptoAmount,
		fmt.Sprintf("Пополнение баланса на %s ₽", fiatAmount.String()))
	if err != nil {
		return "", "", err
	}

	invoice := &model.Invoice{
		InvoiceID: strconv.FormatInt(invoiceID, 10),
		UserID:    userID,
		Provider:  model.ProviderCrypto,
		Status:    model.InvoiceStatusActive,
		MessageID: messageID,
	}
	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return "", "", fmt.Errorf("保存账单失败: %w", err)
	}
	return invoice.InvoiceID, payURL, nil
}

// CreateStarsInvoice 创建 Stars 充值账单，返回账单号与应付 Stars 数
// 账单号为本地生成的 UUID，作为支付回调里的 payload 对账
func (s *DepositService) CreateStarsInvoice(ctx context.Context, userID int64, fiatAmount decimal.Decimal, messageID int) (string, int, error) {
	if !s.cfg.Stars.Enabled {
		return "", 0, ErrStarsDisabled
	}
	if !fiatAmount.IsPositive() {
		return "", 0, ErrInvalidAmount
	}
	stars := exchange.ToStars(fiatAmount, s.cfg.Stars.Stars, s.cfg.Stars.Rub)
	if stars > s.cfg.Stars.MaxStars {
		return "", 0, ErrStarsOverLimit
	}

	invoice := &model.Invoice{
		InvoiceID: uuid.NewString(),
		UserID:    userID,
		Provider:  model.ProviderStars,
		Status:    model.InvoiceStatusActive,
		MessageID: messageID,
	}
	if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
		return "", 0, fmt.Errorf("保存账单失败: %w", err)
	}
	return invoice.InvoiceID, stars, nil
}

// ValidatePreCheckout 支付确认前校验账单归属与状态，无副作用
func (s *DepositService) ValidatePreCheckout(ctx context.Context, userID int64, invoiceID string) error {
	ok, err := s.invoiceRepo.Validate(ctx, userID, invoiceID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvoiceInvalid
	}
	return nil
}

// ApplySettlement 结算一笔已支付账单
// 状态条件更新保证同一账单重复结算只会成功一次，
// 重复调用返回 repository.ErrInvoiceNotActive，由调用方静默跳过
func (s *DepositService) ApplySettlement(ctx context.Context, invoiceID string, fiatAmount decimal.Decimal) error {
	var settled *model.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		invoice, err := s.invoiceRepo.Settle(ctx, tx, invoiceID)
		if err != nil {
			return err
		}
		settled = invoice

		if err := s.ledger.TransferTx(ctx, tx, model.SystemUserID, invoice.UserID,
			fiatAmount, model.TransactionTypeDeposit, invoice.InvoiceID, false); err != nil {
			return err
		}

		// 邀请返佣：被邀请人每次充值，邀请人按比例分成
		referrer, err := s.referralRepo.GetReferrer(ctx, tx, invoice.UserID)
		if err != nil {
			return err
		}
		if referrer != 0 {
			cut := exchange.ReferralCut(fiatAmount, s.cfg.Business.ReferralFee)
			if cut.IsPositive() {
				if err := s.ledger.TransferTx(ctx, tx, model.SystemUserID, referrer,
					cut, model.TransactionTypeReferral, invoice.InvoiceID, true); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.notifier.DepositCredited(ctx, settled.UserID, fiatAmount); err != nil {
		log.Printf("[DepositService] 充值到账通知失败 userID=%d invoiceID=%s: %v", settled.UserID, settled.InvoiceID, err)
	}
	if settled.MessageID != 0 {
		s.notifier.RetractPaymentMessage(ctx, settled.UserID, settled.MessageID)
	}
	return nil
}
