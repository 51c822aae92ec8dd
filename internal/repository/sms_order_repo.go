package repository

import (
	"context"
	"errors"
	"time"

	"numpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrOrderNotFound  = errors.New("订单不存在")
	ErrOrderNotActive = errors.New("订单不处于可流转状态")
)

type SmsOrderRepository struct {
	db *gorm.DB
}

func NewSmsOrderRepository(db *gorm.DB) *SmsOrderRepository {
	return &SmsOrderRepository{db: db}
}

func (r *SmsOrderRepository) Create(ctx context.Context, tx *gorm.DB, order *model.SmsOrder) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(order).Error
}

func (r *SmsOrderRepository) GetByOrderID(ctx context.Context, orderID string) (*model.SmsOrder, error) {
	var order model.SmsOrder
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *SmsOrderRepository) ListByUserID(ctx context.Context, userID int64) ([]*model.SmsOrder, error) {
	var orders []*model.SmsOrder
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// ListActive 对账候选集：仍为 active 且创建时间在时间窗内的订单
// 时间窗外的 active 订单视为已放弃，不翻转状态，也不再轮询
func (r *SmsOrderRepository) ListActive(ctx context.Context, horizon time.Duration) ([]*model.SmsOrder, error) {
	var orders []*model.SmsOrder
	cutoff := time.Now().Add(-horizon)
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", model.OrderStatusActive, cutoff).
		Find(&orders).Error
	return orders, err
}

// UpdateStatus 受保护的状态流转：仅允许从 active 出发
// RowsAffected 为 0 说明已被并发方抢先流转，返回 ErrOrderNotActive，
// 调用方放弃本次流转及其全部副作用
func (r *SmsOrderRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, orderID string, toStatus string) error {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.SmsOrder{}).
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

func (r *SmsOrderRepository) Complete(ctx context.Context, tx *gorm.DB, orderID string) error {
	return r.UpdateStatus(ctx, tx, orderID, model.OrderStatusCompleted)
}

func (r *SmsOrderRepository) Cancel(ctx context.Context, tx *gorm.DB, orderID string) error {
	return r.UpdateStatus(ctx, tx, orderID, model.OrderStatusCancelled)
}
