package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"numpay/internal/config"
	"numpay/internal/model"
	"numpay/internal/notify"
	"numpay/internal/provider/cryptopay"
	"numpay/internal/repository"
)

// 每个测试使用独立的内存库，避免相互污染
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.AccountTransaction{},
		&model.Invoice{},
		&model.SmsOrder{},
		&model.RentOrder{},
		&model.Referral{},
		&model.Promo{},
		&model.PromoUse{},
		&model.Favorite{},
		&model.OutboxMessage{},
	))
	return db
}

func newTestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Kafka.Topic.LedgerEvents = "test.ledger.events"
	cfg.CryptoPay.Asset = "USDT"
	cfg.CryptoPay.UsdtRubRate = 100
	cfg.Stars.Enabled = true
	cfg.Stars.MaxStars = 2500
	cfg.Stars.Stars = 50
	cfg.Stars.Rub = 85
	cfg.Business.ServiceFee = 0.2
	cfg.Business.ReferralFee = 0.1
	cfg.Business.PaymentTimeoutMinutes = 60
	cfg.Business.OrderHorizonMinutes = 20
	cfg.Business.CancelMinAgeSeconds = 120
	cfg.Business.MaxRetryCount = 5
	return cfg
}

func seedAccount(t *testing.T, db *gorm.DB, userID int64, balance int64) {
	t.Helper()
	repo := repository.NewAccountRepository(db)
	_, err := repo.GetOrCreate(context.Background(), userID)
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, repo.Increase(context.Background(), db, userID, decimal.NewFromInt(balance), false))
	}
}

func accountBalance(t *testing.T, db *gorm.DB, userID int64) decimal.Decimal {
	t.Helper()
	account, err := repository.NewAccountRepository(db).GetByUserID(context.Background(), userID)
	require.NoError(t, err)
	return account.Balance
}

// fakeNotifier 记录所有推送调用
type fakeNotifier struct {
	deposits  []int64
	retracted []int
	transfers []int64
}

func (f *fakeNotifier) DepositCredited(ctx context.Context, userID int64, amount decimal.Decimal) error {
	f.deposits = append(f.deposits, userID)
	return nil
}

func (f *fakeNotifier) RetractPaymentMessage(ctx context.Context, userID int64, messageID int) {
	f.retracted = append(f.retracted, messageID)
}

func (f *fakeNotifier) SmsCodeDelivered(ctx context.Context, userID int64, phone, code string) error {
	return nil
}

func (f *fakeNotifier) SmsCancelled(ctx context.Context, userID int64, phone string, refund decimal.Decimal) error {
	return nil
}

func (f *fakeNotifier) RentSmsReceived(ctx context.Context, userID int64, phone string, sms []notify.RentMessage) error {
	return nil
}

func (f *fakeNotifier) RentFinished(ctx context.Context, userID int64, phone string) error {
	return nil
}

func (f *fakeNotifier) RentCancelled(ctx context.Context, userID int64, phone string, refund decimal.Decimal) error {
	return nil
}

func (f *fakeNotifier) TransferReceived(ctx context.Context, userID int64, fromUsername string, amount decimal.Decimal) error {
	f.transfers = append(f.transfers, userID)
	return nil
}

// fakeCryptoAPI 固定应答的支付平台
type fakeCryptoAPI struct {
	nextInvoiceID int64
	invoices      []cryptopay.Invoice
}

func (f *fakeCryptoAPI) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1000), nil
}

func (f *fakeCryptoAPI) CreateInvoice(ctx context.Context, asset string, amount decimal.Decimal, description string) (int64, string, error) {
	f.nextInvoiceID++
	return f.nextInvoiceID, fmt.Sprintf("https://pay.example/%d", f.nextInvoiceID), nil
}

func (f *fakeCryptoAPI) GetInvoices(ctx context.Context, invoiceIDs []int64) ([]cryptopay.Invoice, error) {
	return f.invoices, nil
}
