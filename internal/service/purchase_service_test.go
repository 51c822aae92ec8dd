package service

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"numpay/internal/model"
	"numpay/internal/provider/smsactivate"
	"numpay/internal/repository"
)

// fakeSmsAPI 固定应答的号码平台，记录 setStatus 调用
type fakeSmsAPI struct {
	price          decimal.Decimal
	rentPrice      decimal.Decimal
	nextID         int64
	statusCalls    map[int64][]int
	cancelledRents []int64
}

func newFakeSmsAPI() *fakeSmsAPI {
	return &fakeSmsAPI{
		price:       decimal.NewFromInt(50),
		rentPrice:   decimal.NewFromInt(200),
		nextID:      1000,
		statusCalls: map[int64][]int{},
	}
}

func (f *fakeSmsAPI) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	return decimal.NewFromInt(9999), nil
}

func (f *fakeSmsAPI) GetServices(ctx context.Context) ([]smsactivate.Service, error) {
	return []smsactivate.Service{{Code: "tg", Name: "Telegram"}}, nil
}

func (f *fakeSmsAPI) GetTopCountries(ctx context.Context, service string) ([]smsactivate.CountryOffer, error) {
	return []smsactivate.CountryOffer{{CountryID: 0, Count: 10, Price: 50}}, nil
}

func (f *fakeSmsAPI) GetNumber(ctx context.Context, service string, countryID int) (*smsactivate.Number, error) {
	f.nextID++
	return &smsactivate.Number{ID: f.nextID, Phone: "79001234567"}, nil
}

func (f *fakeSmsAPI) GetStatus(ctx context.Context, activationID int64) (string, string, error) {
	return smsactivate.StatusWaitCode, "", nil
}

func (f *fakeSmsAPI) SetStatus(ctx context.Context, activationID int64, code int) error {
	f.statusCalls[activationID] = append(f.statusCalls[activationID], code)
	return nil
}

func (f *fakeSmsAPI) GetPrice(ctx context.Context, service string, countryID int) (decimal.Decimal, error) {
	return f.price, nil
}

func (f *fakeSmsAPI) GetRentPrice(ctx context.Context, service string, hours, countryID int) (decimal.Decimal, error) {
	return f.rentPrice, nil
}

func (f *fakeSmsAPI) GetRentNumber(ctx context.Context, service string, hours, countryID int) (*smsactivate.RentedNumber, error) {
	f.nextID++
	end := time.Now().Add(time.Duration(hours) * time.Hour).Format("2006-01-02 15:04:05")
	return &smsactivate.RentedNumber{ID: f.nextID, Phone: "79007654321", EndDate: end}, nil
}

func (f *fakeSmsAPI) GetRentStatus(ctx context.Context, rentID int64) (*smsactivate.RentStatus, error) {
	return &smsactivate.RentStatus{Status: "success"}, nil
}

func (f *fakeSmsAPI) CancelRent(ctx context.Context, rentID int64) error {
	f.cancelledRents = append(f.cancelledRents, rentID)
	return nil
}

func newPurchaseService(db *gorm.DB, api *fakeSmsAPI) *PurchaseService {
	return NewPurchaseService(
		db,
		newTestConfig(),
		repository.NewAccountRepository(db),
		repository.NewSmsOrderRepository(db),
		repository.NewRentOrderRepository(db),
		newLedger(db),
		api,
	)
}

func TestBuyNumberDebitsPriceWithFee(t *testing.T) {
	db := newTestDB(t)
	api := newFakeSmsAPI()
	svc := newPurchaseService(db, api)
	ctx := context.Background()

	seedAccount(t, db, 100, 1000)

	order, err := svc.BuyNumber(ctx, 100, "tg", "Telegram", 0)
	require.NoError(t, err)
	require.Equal(t, "79001234567", order.Phone)
	// 卖价 = 50 + 20% 加成 = 60
	require.True(t, order.Price.Equal(decimal.NewFromInt(60)))
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(940)))

	stored, err := repository.NewSmsOrderRepository(db).GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusActive, stored.Status)
}

func TestBuyNumberInsufficientBalance(t *testing.T) {
	db := newTestDB(t)
	api := newFakeSmsAPI()
	svc := newPurchaseService(db, api)

	seedAccount(t, db, 100, 10)

	_, err := svc.BuyNumber(context.Background(), 100, "tg", "Telegram", 0)
	require.ErrorIs(t, err, repository.ErrBalanceNotEnough)
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(10)))
}

func TestCancelOrderRefunds(t *testing.T) {
	db := newTestDB(t)
	api := newFakeSmsAPI()
	svc := newPurchaseService(db, api)
	ctx := context.Background()

	seedAccount(t, db, 100, 1000)
	order, err := svc.BuyNumber(ctx, 100, "tg", "Telegram", 0)
	require.NoError(t, err)

	// 未满最短取消时长
	require.ErrorIs(t, svc.CancelOrder(ctx, 100, order.OrderID), ErrOrderTooYoung)

	// 回拨创建时间后可取消
	require.NoError(t, db.Model(&model.SmsOrder{}).
		Where("order_id = ?", order.OrderID).
		Update("created_at", time.Now().Add(-3*time.Minute)).Error)

	require.NoError(t, svc.CancelOrder(ctx, 100, order.OrderID))
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(1000)))

	stored, err := repository.NewSmsOrderRepository(db).GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCancelled, stored.Status)

	// 平台侧收到取消指令
	activationID := api.nextID
	require.Contains(t, api.statusCalls[activationID], smsactivate.SetStatusCancel)

	// 再次取消被拒，退款只发生一次
	require.ErrorIs(t, svc.CancelOrder(ctx, 100, order.OrderID), repository.ErrOrderNotActive)
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(1000)))
}

func TestCancelOrderOwnership(t *testing.T) {
	db := newTestDB(t)
	api := newFakeSmsAPI()
	svc := newPurchaseService(db, api)
	ctx := context.Background()

	seedAccount(t, db, 100, 1000)
	order, err := svc.BuyNumber(ctx, 100, "tg", "Telegram", 0)
	require.NoError(t, err)

	require.ErrorIs(t, svc.CancelOrder(ctx, 200, order.OrderID), ErrOrderNotOwned)
}

func TestRequestNewCode(t *testing.T) {
	db := newTestDB(t)
	api := newFakeSmsAPI()
	svc := newPurchaseService(db, api)
	ctx := context.Background()

	seedAccount(t, db, 100, 1000)
	order, err := svc.BuyNumber(ctx, 100, "tg", "Telegram", 0)
	require.NoError(t, err)

	require.NoError(t, svc.RequestNewCode(ctx, 100, order.OrderID))
	require.Contains(t, api.statusCalls[api.nextID], smsactivate.SetStatusRetry)
}

func TestRentNumber(t *testing.T) {
	db := newTestDB(t)
	api := newFakeSmsAPI()
	svc := newPurchaseService(db, api)
	ctx := context.Background()

	seedAccount(t, db, 100, 1000)

	// 时长越界
	_, err := svc.RentNumber(ctx, 100, "tg", 2, 0)
	require.ErrorIs(t, err, ErrRentHoursOutOfRange)
	_, err = svc.RentNumber(ctx, 100, "tg", 1000, 0)
	require.ErrorIs(t, err, ErrRentHoursOutOfRange)

	order, err := svc.RentNumber(ctx, 100, "tg", 24, 0)
	require.NoError(t, err)
	// 卖价 = 200 + 20% 加成 = 240
	require.True(t, order.Price.Equal(decimal.NewFromInt(240)))
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(760)))
	require.True(t, order.EndDate.After(time.Now().Add(23*time.Hour)))
}

func TestCancelRentRefunds(t *testing.T) {
	db := newTestDB(t)
	api := newFakeSmsAPI()
	svc := newPurchaseService(db, api)
	ctx := context.Background()

	seedAccount(t, db, 100, 1000)
	order, err := svc.RentNumber(ctx, 100, "tg", 24, 0)
	require.NoError(t, err)

	require.NoError(t, svc.CancelRent(ctx, 100, order.OrderID))
	require.True(t, accountBalance(t, db, 100).Equal(decimal.NewFromInt(1000)))
	require.Len(t, api.cancelledRents, 1)

	stored, err := repository.NewRentOrderRepository(db).GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCancelled, stored.Status)
}
