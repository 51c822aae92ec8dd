package repository

import (
	"context"
	"errors"

	"numpay/internal/model"

	"gorm.io/gorm"
)

type ReferralRepository struct {
	db *gorm.DB
}

func NewReferralRepository(db *gorm.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) Create(ctx context.Context, referral *model.Referral) error {
	return r.db.WithContext(ctx).Create(referral).Error
}

func (r *ReferralRepository) Exists(ctx context.Context, toUser int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Referral{}).
		Where("to_user = ?", toUser).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetReferrer 查询 userID 的邀请人，无邀请关系时返回 (0, nil)
// tx 为 nil 时走独立连接
func (r *ReferralRepository) GetReferrer(ctx context.Context, tx *gorm.DB, userID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	var referral model.Referral
	err := tx.WithContext(ctx).Where("to_user = ?", userID).First(&referral).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return referral.FromUser, nil
}

func (r *ReferralRepository) CountByReferrer(ctx context.Context, fromUser int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Referral{}).
		Where("from_user = ?", fromUser).
		Count(&count).Error
	return count, err
}
