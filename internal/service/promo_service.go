package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"numpay/internal/model"
	"numpay/internal/repository"
)

var ErrPromoExhausted = errors.New("促销码兑换次数已用完")

// PromoService 促销码的发放与兑换
// 兑换在单一事务内完成：占用记录的唯一键挡住同一用户重复兑换，
// 占用后重新计数挡住并发超发，任一条件不满足整体回滚
type PromoService struct {
	db        *gorm.DB
	promoRepo *repository.PromoRepository
	ledger    *LedgerService
}

func NewPromoService(db *gorm.DB, promoRepo *repository.PromoRepository, ledger *LedgerService) *PromoService {
	return &PromoService{
		db:        db,
		promoRepo: promoRepo,
		ledger:    ledger,
	}
}

// Redeem 兑换促销码，成功返回入账金额
func (s *PromoService) Redeem(ctx context.Context, userID int64, code string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		promo, err := s.promoRepo.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		if err := s.promoRepo.CreateUse(ctx, tx, promo.ID, userID); err != nil {
			return err
		}
		used, err := s.promoRepo.CountUses(ctx, tx, promo.ID)
		if err != nil {
			return err
		}
		if used > int64(promo.Activates) {
			return ErrPromoExhausted
		}
		amount = promo.Amount
		return s.ledger.TransferTx(ctx, tx, model.SystemUserID, userID,
			promo.Amount, model.TransactionTypePromo, promo.Code, false)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// CreatePromo 新建促销码
func (s *PromoService) CreatePromo(ctx context.Context, code string, activates int, amount decimal.Decimal) (*model.Promo, error) {
	if !amount.IsPositive() || activates <= 0 {
		return nil, ErrInvalidAmount
	}
	promo := &model.Promo{
		Code:      code,
		Activates: activates,
		Amount:    amount,
	}
	if err := s.promoRepo.Create(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

// ListPromos 列出所有促销码
func (s *PromoService) ListPromos(ctx context.Context) ([]*model.Promo, error) {
	return s.promoRepo.List(ctx)
}

// PromoInfo 查询单个促销码及已兑换次数
func (s *PromoService) PromoInfo(ctx context.Context, promoID int64) (*model.Promo, int64, error) {
	promo, err := s.promoRepo.GetByID(ctx, promoID)
	if err != nil {
		return nil, 0, err
	}
	used, err := s.promoRepo.CountUses(ctx, s.db, promo.ID)
	if err != nil {
		return nil, 0, err
	}
	return promo, used, nil
}

// DeletePromo 删除促销码及其兑换记录
func (s *PromoService) DeletePromo(ctx context.Context, promoID int64) error {
	return s.promoRepo.Delete(ctx, promoID)
}
