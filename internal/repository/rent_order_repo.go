package repository

import (
	"context"
	"errors"
	"time"

	"numpay/internal/model"

	"gorm.io/gorm"
)

type RentOrderRepository struct {
	db *gorm.DB
}

func NewRentOrderRepository(db *gorm.DB) *RentOrderRepository {
	return &RentOrderRepository{db: db}
}

func (r *RentOrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.RentOrder) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *RentOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.RentOrder, error) {
	var order model.RentOrder
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *RentOrderRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.RentOrder, error) {
	var orders []*model.RentOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("start_date DESC").
		Find(&orders).Error
	return orders, err
}

// ListActive 对账候选集：active 且未到期的租用
// 到期判断在查询时刻完成，过期记录即使状态仍为 active 也不再入选
func (r *RentOrderRepository) ListActive(ctx context.Context, now time.Time) ([]*model.RentOrder, error) {
	var orders []*model.RentOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_date >= ?", model.OrderStatusActive, now).
		Find(&orders).Error
	return orders, err
}

// UpdateStatus 受保护的状态流转：仅允许从 active 出发
func (r *RentOrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderID string, toStatus string) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.RentOrder{}).
		Where("order_id = ? AND status = ?", orderID, model.OrderStatusActive).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotActive
	}

	return nil
}

func (r *RentOrderRepository) Cancel(ctx context.Context, tx *gorm.DB, orderID string) error {
	return r.UpdateStatus(ctx, tx, orderID, model.OrderStatusCancelled)
}

func (r *RentOrderRepository) Expire(ctx context.Context, tx *gorm.DB, orderID string) error {
	return r.UpdateStatus(ctx, tx, orderID, model.OrderStatusExpired)
}
