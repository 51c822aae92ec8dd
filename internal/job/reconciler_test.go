package job

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"numpay/internal/config"
	"numpay/internal/model"
	"numpay/internal/notify"
	"numpay/internal/provider/cryptopay"
	"numpay/internal/provider/smsactivate"
	"numpay/internal/repository"
	"numpay/internal/service"
)

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
	cfg.CryptoPay.UsdtRubRate = 100
	cfg.Business.ReferralFee = 0.1
	cfg.Business.PaymentTimeoutMinutes = 60
	cfg.Business.OrderHorizonMinutes = 20
	cfg.Business.MaxRetryCount = 5
	return cfg
}

func seedAccount(t *testing.T, db *gorm.DB, userID, balance int64) {
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

// 记录推送的假通知器
type recordingNotifier struct {
	deposits  []string
	smsCodes  []string
	cancelled []string
	finished  []string
	rentSms   []string
}

func (n *recordingNotifier) DepositCredited(ctx context.Context, userID int64, amount decimal.Decimal) error {
	n.deposits = append(n.deposits, fmt.Sprintf("%d:%s", userID, amount.String()))
	return nil
}

func (n *recordingNotifier) RetractPaymentMessage(ctx context.Context, userID int64, messageID int) {}

func (n *recordingNotifier) SmsCodeDelivered(ctx context.Context, userID int64, phone, code string) error {
	n.smsCodes = append(n.smsCodes, code)
	return nil
}

func (n *recordingNotifier) SmsCancelled(ctx context.Context, userID int64, phone string, refund decimal.Decimal) error {
	n.cancelled = append(n.cancelled, phone)
	return nil
}

func (n *recordingNotifier) RentSmsReceived(ctx context.Context, userID int64, phone string, sms []notify.RentMessage) error {
	for _, message := range sms {
		n.rentSms = append(n.rentSms, message.Text)
	}
	return nil
}

func (n *recordingNotifier) RentFinished(ctx context.Context, userID int64, phone string) error {
	n.finished = append(n.finished, phone)
	return nil
}

func (n *recordingNotifier) RentCancelled(ctx context.Context, userID int64, phone string, refund decimal.Decimal) error {
	n.cancelled = append(n.cancelled, phone)
	return nil
}

func (n *recordingNotifier) TransferReceived(ctx context.Context, userID int64, fromUsername string, amount decimal.Decimal) error {
	return nil
}

// 按激活ID返回预设状态的假号码平台
type scriptedSmsAPI struct {
	statuses     map[int64]string
	codes        map[int64]string
	rentStatuses map[int64]*smsactivate.RentStatus
	confirmed    []int64
}

func (s *scriptedSmsAPI) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *scriptedSmsAPI) GetServices(ctx context.Context) ([]smsactivate.Service, error) {
	return nil, nil
}

func (s *scriptedSmsAPI) GetTopCountries(ctx context.Context, service string) ([]smsactivate.CountryOffer, error) {
	return nil, nil
}

func (s *scriptedSmsAPI) GetNumber(ctx context.Context, service string, countryID int) (*smsactivate.Number, error) {
	return nil, smsactivate.ErrNoNumbers
}

func (s *scriptedSmsAPI) GetStatus(ctx context.Context, activationID int64) (string, string, error) {
	return s.statuses[activationID], s.codes[activationID], nil
}

func (s *scriptedSmsAPI) SetStatus(ctx context.Context, activationID int64, code int) error {
	if code == smsactivate.SetStatusConfirm {
		s.confirmed = append(s.confirmed, activationID)
	}
	return nil
}

func (s *scriptedSmsAPI) GetPrice(ctx context.Context, service string, countryID int) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *scriptedSmsAPI) GetRentPrice(ctx context.Context, service string, hours, countryID int) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *scriptedSmsAPI) GetRentNumber(ctx context.Context, service string, hours, countryID int) (*smsactivate.RentedNumber, error) {
	return nil, smsactivate.ErrNoNumbers
}

func (s *scriptedSmsAPI) GetRentStatus(ctx context.Context, rentID int64) (*smsactivate.RentStatus, error) {
	return s.rentStatuses[rentID], nil
}

func (s *scriptedSmsAPI) CancelRent(ctx context.Context, rentID int64) error {
	return nil
}

// 内存版已推送计数，替代 Redis
type memorySeenStore struct {
	counts map[string]int
}

func newMemorySeenStore() *memorySeenStore {
	return &memorySeenStore{counts: map[string]int{}}
}

func (s *memorySeenStore) Seen(ctx context.Context, orderID string) (int, error) {
	return s.counts[orderID], nil
}

func (s *memorySeenStore) MarkSeen(ctx context.Context, orderID string, count int, ttl time.Duration) error {
	s.counts[orderID] = count
	return nil
}

// 固定应答的假支付平台
type scriptedCryptoAPI struct {
	invoices []cryptopay.Invoice
}

func (s *scriptedCryptoAPI) GetBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s *scriptedCryptoAPI) CreateInvoice(ctx context.Context, asset string, amount decimal.Decimal, description string) (int64, string, error) {
	return 0, "", cryptopay.ErrAPIFailed
}

func (s *scriptedCryptoAPI) GetInvoices(ctx context.Context, invoiceIDs []int64) ([]cryptopay.Invoice, error) {
	return s.invoices, nil
}

func seedSmsOrder(t *testing.T, db *gorm.DB, orderID string, userID, price int64) {
	t.Helper()
	require.NoError(t, repository.NewSmsOrderRepository(db).Create(context.Background(), nil, &model.SmsOrder{
		OrderID:     orderID,
		UserID:      userID,
		Phone:       "79001234567",
		Service:     "tg",
		ServiceName: "Telegram",
		Price:       decimal.NewFromInt(price),
		Status:      model.OrderStatusActive,
	}))
}

func TestActivationReconcilerCompletesOnCode(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	api := &scriptedSmsAPI{
		statuses: map[int64]string{1001: smsactivate.StatusOK},
		codes:    map[int64]string{1001: "12345"},
	}
	smsRepo := repository.NewSmsOrderRepository(db)
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	r := NewActivationReconciler(db, cfg, smsRepo, repository.NewRentOrderRepository(db), ledger, api, notifier, nil, nil)
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedSmsOrder(t, db, "1001", 100, 60)

	r.reconcileSmsOrders(ctx)

	order, err := smsRepo.GetByOrderID(ctx, "1001")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCompleted, order.Status)
	require.Equal(t, []string{"12345"}, notifier.smsCodes)
	require.Equal(t, []int64{1001}, api.confirmed)

	// 完结不动余额
	require.True(t, accountBalance(t, db, 100).IsZero())

	// 幂等：再跑一轮不再通知
	r.reconcileSmsOrders(ctx)
	require.Len(t, notifier.smsCodes, 1)
}

func TestActivationReconcilerRefundsOnCancel(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	api := &scriptedSmsAPI{
		statuses: map[int64]string{1002: smsactivate.StatusCancel},
		codes:    map[int64]string{},
	}
	smsRepo := repository.NewSmsOrderRepository(db)
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	r := NewActivationReconciler(db, cfg, smsRepo, repository.NewRentOrderRepository(db), ledger, api, notifier, nil, nil)
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedSmsOrder(t, db, "1002", 100, 60)

	r.reconcileSmsOrders(ctx)

	order, err := smsRepo.GetByOrderID(ctx, "1002")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCancelled, order.Status)
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(60)))
	require.Equal(t, []string{"79001234567"}, notifier.cancelled)

	// 幂等：再跑一轮不重复退款
	r.reconcileSmsOrders(ctx)
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(60)))
}

func TestActivationReconcilerSkipsWaiting(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	api := &scriptedSmsAPI{
		statuses: map[int64]string{1003: smsactivate.StatusWaitCode},
		codes:    map[int64]string{},
	}
	smsRepo := repository.NewSmsOrderRepository(db)
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	r := NewActivationReconciler(db, cfg, smsRepo, repository.NewRentOrderRepository(db), ledger, api, notifier, nil, nil)
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedSmsOrder(t, db, "1003", 100, 60)

	r.reconcileSmsOrders(ctx)

	order, err := smsRepo.GetByOrderID(ctx, "1003")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusActive, order.Status)
	require.Empty(t, notifier.smsCodes)
}

func seedRentOrder(t *testing.T, db *gorm.DB, orderID string, userID, price int64) {
	t.Helper()
	require.NoError(t, repository.NewRentOrderRepository(db).Create(context.Background(), nil, &model.RentOrder{
		OrderID:   orderID,
		UserID:    userID,
		Phone:     "79007654321",
		StartDate: time.Now().Add(-time.Hour),
		EndDate:   time.Now().Add(time.Hour),
		Price:     decimal.NewFromInt(price),
		Status:    model.OrderStatusActive,
	}))
}

func TestActivationReconcilerExpiresRent(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	api := &scriptedSmsAPI{
		rentStatuses: map[int64]*smsactivate.RentStatus{
			2001: {Status: "error", Message: smsactivate.StatusFinish},
		},
	}
	rentRepo := repository.NewRentOrderRepository(db)
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	r := NewActivationReconciler(db, cfg, repository.NewSmsOrderRepository(db), rentRepo, ledger, api, notifier, nil, nil)
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedRentOrder(t, db, "2001", 100, 240)

	r.reconcileRentOrders(ctx)

	rent, err := rentRepo.GetByOrderID(ctx, "2001")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusExpired, rent.Status)
	require.Equal(t, []string{"79007654321"}, notifier.finished)
	// 租期到期不退款
	require.True(t, accountBalance(t, db, 100).IsZero())
}

func TestActivationReconcilerRefundsRevokedRent(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	api := &scriptedSmsAPI{
		rentStatuses: map[int64]*smsactivate.RentStatus{
			2002: {Status: "error", Message: smsactivate.StatusRevoke},
		},
	}
	rentRepo := repository.NewRentOrderRepository(db)
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	r := NewActivationReconciler(db, cfg, repository.NewSmsOrderRepository(db), rentRepo, ledger, api, notifier, nil, nil)
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedRentOrder(t, db, "2002", 100, 240)

	r.reconcileRentOrders(ctx)

	rent, err := rentRepo.GetByOrderID(ctx, "2002")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCancelled, rent.Status)
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(240)))
}

func TestActivationReconcilerPushesOnlyNewRentSms(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	api := &scriptedSmsAPI{
		rentStatuses: map[int64]*smsactivate.RentStatus{
			2003: {
				Status:   "success",
				Quantity: 2,
				Values: []smsactivate.RentSms{
					{Phone: "79001112233", Text: "первое", Date: "2026-08-28 10:00:00"},
					{Phone: "79001112233", Text: "второе", Date: "2026-08-28 10:01:00"},
				},
			},
		},
	}
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	seen := newMemorySeenStore()
	r := NewActivationReconciler(db, cfg, repository.NewSmsOrderRepository(db), repository.NewRentOrderRepository(db),
		ledger, api, notifier, seen, nil)
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedRentOrder(t, db, "2003", 100, 240)

	// 首轮：两条都推
	r.reconcileRentOrders(ctx)
	require.Equal(t, []string{"первое", "второе"}, notifier.rentSms)

	// 平台状态没变，再跑一轮不重复推送
	r.reconcileRentOrders(ctx)
	require.Len(t, notifier.rentSms, 2)

	// 到了第三条，只推增量
	api.rentStatuses[2003].Quantity = 3
	api.rentStatuses[2003].Values = append(api.rentStatuses[2003].Values,
		smsactivate.RentSms{Phone: "79001112233", Text: "третье", Date: "2026-08-28 10:02:00"})
	r.reconcileRentOrders(ctx)
	require.Equal(t, []string{"первое", "второе", "третье"}, notifier.rentSms)
}

func TestActivationReconcilerFinishesRentWithPendingSms(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	// success 应答里同时带终结 message：短信要推，订单也要过期
	api := &scriptedSmsAPI{
		rentStatuses: map[int64]*smsactivate.RentStatus{
			2004: {
				Status:   "success",
				Message:  smsactivate.StatusFinish,
				Quantity: 1,
				Values: []smsactivate.RentSms{
					{Phone: "79001112233", Text: "последнее", Date: "2026-08-28 11:00:00"},
				},
			},
		},
	}
	rentRepo := repository.NewRentOrderRepository(db)
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	r := NewActivationReconciler(db, cfg, repository.NewSmsOrderRepository(db), rentRepo,
		ledger, api, notifier, newMemorySeenStore(), nil)
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedRentOrder(t, db, "2004", 100, 240)

	r.reconcileRentOrders(ctx)

	rent, err := rentRepo.GetByOrderID(ctx, "2004")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusExpired, rent.Status)
	require.Equal(t, []string{"последнее"}, notifier.rentSms)
	require.Equal(t, []string{"79007654321"}, notifier.finished)
}

func TestPaymentReconcilerSettlesPaidInvoice(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	invoiceRepo := repository.NewInvoiceRepository(db)
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	require.NoError(t, invoiceRepo.Create(ctx, &model.Invoice{
		InvoiceID: "3001",
		UserID:    100,
		Provider:  model.ProviderCrypto,
		Status:    model.InvoiceStatusActive,
	}))

	cryptoAPI := &scriptedCryptoAPI{
		invoices: []cryptopay.Invoice{
			{InvoiceID: 3001, Status: cryptopay.InvoiceStatusPaid, Asset: "USDT", Amount: "5"},
		},
	}
	depositSvc := service.NewDepositService(db, cfg, invoiceRepo,
		repository.NewReferralRepository(db), ledger, cryptoAPI, notifier)
	r := NewPaymentReconciler(cfg, invoiceRepo, depositSvc, cryptoAPI, nil)

	r.reconcileOnce(ctx)

	// 5 USDT × 100 = 500 卢布
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(500)))
	require.Equal(t, []string{"100:500"}, notifier.deposits)

	invoice, err := invoiceRepo.GetByInvoiceID(ctx, "3001")
	require.NoError(t, err)
	require.Equal(t, model.InvoiceStatusPaid, invoice.Status)

	// 再跑一轮：账单已结算，静默跳过
	r.reconcileOnce(ctx)
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(500)))
	require.Len(t, notifier.deposits, 1)
}

func TestPaymentReconcilerIgnoresUnpaid(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	notifier := &recordingNotifier{}
	invoiceRepo := repository.NewInvoiceRepository(db)
	ledger := service.NewLedgerService(db, repository.NewAccountRepository(db), repository.NewTransactionRepository(db),
		repository.NewOutboxRepository(db), "test.ledger.events")
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	require.NoError(t, invoiceRepo.Create(ctx, &model.Invoice{
		InvoiceID: "3002",
		UserID:    100,
		Provider:  model.ProviderCrypto,
		Status:    model.InvoiceStatusActive,
	}))

	cryptoAPI := &scriptedCryptoAPI{
		invoices: []cryptopay.Invoice{
			{InvoiceID: 3002, Status: cryptopay.InvoiceStatusActive, Asset: "USDT", Amount: "5"},
		},
	}
	depositSvc := service.NewDepositService(db, cfg, invoiceRepo,
		repository.NewReferralRepository(db), ledger, cryptoAPI, notifier)
	r := NewPaymentReconciler(cfg, invoiceRepo, depositSvc, cryptoAPI, nil)

	r.reconcileOnce(ctx)

	require.True(t, accountBalance(t, db, 100).IsZero())
	invoice, err := invoiceRepo.GetByInvoiceID(ctx, "3002")
	require.NoError(t, err)
	require.Equal(t, model.InvoiceStatusActive, invoice.Status)
}
