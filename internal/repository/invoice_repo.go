package repository

import (
	"context"
	"errors"
	"time"

	"numpay/internal/model"

	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound  = errors.New("账单不存在")
	ErrInvoiceNotActive = errors.New("账单已结算或不可用")
)

type InvoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *InvoiceRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*model.Invoice, error) {
	var invoice model.Invoice
	err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// Validate 预结算校验：账单属于该用户且仍为 active 才返回 true，无任何副作用
func (r *InvoiceRepository) Validate(ctx context.Context, userID int64, invoiceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("invoice_id = ? AND user_id = ? AND status = ?", invoiceID, userID, model.InvoiceStatusActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Settle 结算账单：active → paid 的受保护单向流转
// 条件更新保证每个账单至多结算一次；已结算时返回 ErrInvoiceNotActive，
// 调用方据此跳过入账等全部副作用
func (r *InvoiceRepository) Settle(ctx context.Context, tx *gorm.DB, invoiceID string) (*model.Invoice, error) {
	if tx == nil {
		tx = r.db
	}

	var invoice model.Invoice
	err := tx.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&invoice).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	result := tx.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("invoice_id = ? AND status = ?", invoiceID, model.InvoiceStatusActive).
		Update("status", model.InvoiceStatusPaid)

	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrInvoiceNotActive
	}

	return &invoice, nil
}

// ListSettleable 返回指定渠道内、创建时间在时限内的 active 账单ID
// 各渠道的对账任务只取自己渠道的账单，互不越界；超时账单自然退出候选集
func (r *InvoiceRepository) ListSettleable(ctx context.Context, ageLimit time.Duration, provider string) ([]string, error) {
	var ids []string
	cutoff := time.Now().Add(-ageLimit)
	err := r.db.WithContext(ctx).
		Model(&model.Invoice{}).
		Where("status = ? AND provider = ? AND created_at >= ?", model.InvoiceStatusActive, provider, cutoff).
		Pluck("invoice_id", &ids).Error
	return ids, err
}
