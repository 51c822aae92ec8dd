package repository

import (
	"context"
	"errors"

	"numpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrPromoNotFound    = errors.New("促销码不存在")
	ErrPromoAlreadyUsed = errors.New("促销码已被该用户使用")
)

type PromoRepository struct {
	db *gorm.DB
}

func NewPromoRepository(db *gorm.DB) *PromoRepository {
	return &PromoRepository{db: db}
}

func (r *PromoRepository) Create(ctx context.Context, promo *model.Promo) error {
	return r.db.WithContext(ctx).Create(promo).Error
}

func (r *PromoRepository) GetByCode(ctx context.Context, code string) (*model.Promo, error) {
	var promo model.Promo
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, err
	}
	return &promo, nil
}

func (r *PromoRepository) GetByID(ctx context.Context, promoID int64) (*model.Promo, error) {
	var promo model.Promo
	err := r.db.WithContext(ctx).Where("id = ?", promoID).First(&promo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPromoNotFound
		}
		return nil, err
	}
	return &promo, nil
}

func (r *PromoRepository) List(ctx context.Context) ([]*model.Promo, error) {
	var promos []*model.Promo
	err := r.db.WithContext(ctx).Order("code ASC").Find(&promos).Error
	return promos, err
}

func (r *PromoRepository) CountUses(ctx context.Context, tx *gorm.DB, promoID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var count int64
	err := tx.WithContext(ctx).
		Model(&model.PromoUse{}).
		Where("promo_id = ?", promoID).
		Count(&count).Error
	return count, err
}

// CreateUse 落一条使用记录
// (promo_id, user_id) 唯一索引在并发兑换时让第二次插入失败，
// 唯一冲突折算成 ErrPromoAlreadyUsed
func (r *PromoRepository) CreateUse(ctx context.Context, tx *gorm.DB, promoID, userID int64) error {
	if tx == nil {
		tx = r.db
	}
	err := tx.WithContext(ctx).Create(&model.PromoUse{
		PromoID: promoID,
		UserID:  userID,
	}).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrPromoAlreadyUsed
		}
		return err
	}
	return nil
}

// Delete 删除促销码及其全部使用记录，单事务完成
func (r *PromoRepository) Delete(ctx context.Context, promoID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", promoID).Delete(&model.Promo{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrPromoNotFound
		}
		return tx.Where("promo_id = ?", promoID).Delete(&model.PromoUse{}).Error
	})
}
