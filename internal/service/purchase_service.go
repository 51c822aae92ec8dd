package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"gorm.io/gorm"

	"numpay/internal/config"
	"numpay/internal/model"
	"numpay/internal/provider/smsactivate"
	"numpay/internal/repository"
	"numpay/pkg/exchange"
)

var (
	ErrOrderNotOwned       = errors.New("订单不属于当前用户")
	ErrOrderTooYoung       = errors.New("订单创建未满最短取消时长")
	ErrRentHoursOutOfRange = errors.New("租用时长超出允许区间")
)

const (
	rentHoursMin = 4
	rentHoursMax = 720
)

// 平台返回的租期时间格式
const rentDateLayout = "2006-01-02 15:04:05"

// PurchaseService 号码购买与租用
// 先向平台要号，再在同一事务内落订单并扣款；
// 扣款失败时尽力取消平台侧的号码，避免白白占用
type PurchaseService struct {
	db          *gorm.DB
	cfg         *config.Config
	accountRepo *repository.AccountRepository
	smsRepo     *repository.SmsOrderRepository
	rentRepo    *repository.RentOrderRepository
	ledger      *LedgerService
	smsAPI      smsactivate.API
}

func NewPurchaseService(
	db *gorm.DB,
	cfg *config.Config,
	accountRepo *repository.AccountRepository,
	smsRepo *repository.SmsOrderRepository,
	rentRepo *repository.RentOrderRepository,
	ledger *LedgerService,
	smsAPI smsactivate.API,
) *PurchaseService {
	return &PurchaseService{
		db:          db,
		cfg:         cfg,
		accountRepo: accountRepo,
		smsRepo:     smsRepo,
		rentRepo:    rentRepo,
		ledger:      ledger,
		smsAPI:      smsAPI,
	}
}

// BuyNumber 购买一个单次接码号码
func (s *PurchaseService) BuyNumber(ctx context.Context, userID int64, service, serviceName string, countryID int) (*model.SmsOrder, error) {
	cost, err := s.smsAPI.GetPrice(ctx, service, countryID)
	if err != nil {
		return nil, err
	}
	price := exchange.PriceWithFee(cost, s.cfg.Business.ServiceFee)

	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(price) {
		return nil, repository.ErrBalanceNotEnough
	}

	number, err := s.smsAPI.GetNumber(ctx, service, countryID)
	if err != nil {
		return nil, err
	}

	order := &model.SmsOrder{
		OrderID:     strconv.FormatInt(number.ID, 10),
		UserID:      userID,
		Phone:       number.Phone,
		Service:     service,
		ServiceName: serviceName,
		CountryID:   countryID,
		Price:       price,
		Status:      model.OrderStatusActive,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.TransferTx(ctx, tx, userID, model.SystemUserID,
			price, model.TransactionTypePurchase, order.OrderID, false); err != nil {
			return err
		}
		return s.smsRepo.Create(ctx, tx, order)
	})
	if err != nil {
		// 扣款失败，平台侧号码尽力释放
		if cancelErr := s.smsAPI.SetStatus(ctx, number.ID, smsactivate.SetStatusCancel); cancelErr != nil {
			log.Printf("[PurchaseService] 释放号码失败 activationID=%d: %v", number.ID, cancelErr)
		}
		return nil, err
	}
	return order, nil
}

// CancelOrder 用户主动取消接码订单并退款
// 平台要求号码下发后的前两分钟内不可取消
func (s *PurchaseService) CancelOrder(ctx context.Context, userID int64, orderID string) error {
	order, err := s.smsRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrOrderNotOwned
	}
	if order.Status != model.OrderStatusActive {
		return repository.ErrOrderNotActive
	}
	minAge := time.Duration(s.cfg.Business.CancelMinAgeSeconds) * time.Second
	if time.Since(order.CreatedAt) < minAge {
		return ErrOrderTooYoung
	}

	activationID, err := strconv.ParseInt(order.OrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("订单号格式异常: %w", err)
	}
	if err := s.smsAPI.SetStatus(ctx, activationID, smsactivate.SetStatusCancel); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.smsRepo.Cancel(ctx, tx, order.OrderID); err != nil {
			return err
		}
		return s.ledger.TransferTx(ctx, tx, model.SystemUserID, userID,
			order.Price, model.TransactionTypeRefund, order.OrderID, false)
	})
}

// RequestNewCode 请求平台对同一号码重新下发验证码
func (s *PurchaseService) RequestNewCode(ctx context.Context, userID int64, orderID string) error {
	order, err := s.smsRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrOrderNotOwned
	}
	if order.Status != model.OrderStatusActive {
		return repository.ErrOrderNotActive
	}
	activationID, err := strconv.ParseInt(order.OrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("订单号格式异常: %w", err)
	}
	return s.smsAPI.SetStatus(ctx, activationID, smsactivate.SetStatusRetry)
}

// RentNumber 租用一个号码，租期 4 小时到 30 天
func (s *PurchaseService) RentNumber(ctx context.Context, userID int64, service string, hours, countryID int) (*model.RentOrder, error) {
	if hours < rentHoursMin || hours > rentHoursMax {
		return nil, ErrRentHoursOutOfRange
	}

	cost, err := s.smsAPI.GetRentPrice(ctx, service, hours, countryID)
	if err != nil {
		return nil, err
	}
	price := exchange.PriceWithFee(cost, s.cfg.Business.ServiceFee)

	account, err := s.accountRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account.Balance.LessThan(price) {
		return nil, repository.ErrBalanceNotEnough
	}

	rented, err := s.smsAPI.GetRentNumber(ctx, service, hours, countryID)
	if err != nil {
		return nil, err
	}
	endDate, err := time.ParseInLocation(rentDateLayout, rented.EndDate, time.Local)
	if err != nil {
		return nil, fmt.Errorf("租期时间格式异常: %w", err)
	}

	order := &model.RentOrder{
		OrderID:   strconv.FormatInt(rented.ID, 10),
		UserID:    userID,
		Phone:     rented.Phone,
		StartDate: time.Now(),
		EndDate:   endDate,
		Price:     price,
		Status:    model.OrderStatusActive,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.ledger.TransferTx(ctx, tx, userID, model.SystemUserID,
			price, model.TransactionTypePurchase, order.OrderID, false); err != nil {
			return err
		}
		return s.rentRepo.Create(ctx, tx, order)
	})
	if err != nil {
		if cancelErr := s.smsAPI.CancelRent(ctx, rented.ID); cancelErr != nil {
			log.Printf("[PurchaseService] 释放租用号码失败 rentID=%d: %v", rented.ID, cancelErr)
		}
		return nil, err
	}
	return order, nil
}

// CancelRent 用户主动取消租用并退款
func (s *PurchaseService) CancelRent(ctx context.Context, userID int64, orderID string) error {
	order, err := s.rentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != userID {
		return ErrOrderNotOwned
	}
	if order.Status != model.OrderStatusActive {
		return repository.ErrOrderNotActive
	}

	rentID, err := strconv.ParseInt(order.OrderID, 10, 64)
	if err != nil {
		return fmt.Errorf("订单号格式异常: %w", err)
	}
	if err := s.smsAPI.CancelRent(ctx, rentID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.rentRepo.Cancel(ctx, tx, order.OrderID); err != nil {
			return err
		}
		return s.ledger.TransferTx(ctx, tx, model.SystemUserID, userID,
			order.Price, model.TransactionTypeRefund, order.OrderID, false)
	})
}

// ListOrders 查询用户的接码订单
func (s *PurchaseService) ListOrders(ctx context.Context, userID int64) ([]*model.SmsOrder, error) {
	return s.smsRepo.ListByUserID(ctx, userID)
}

// ListRents 查询用户的租用订单
func (s *PurchaseService) ListRents(ctx context.Context, userID int64) ([]*model.RentOrder, error) {
	return s.rentRepo.ListByUserID(ctx, userID)
}
