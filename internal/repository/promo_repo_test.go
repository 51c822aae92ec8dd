package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"numpay/internal/model"
)

func TestPromoCreateUseUnique(t *testing.T) {
	db := newTestDB(t)
	repo := NewPromoRepository(db)
	ctx := context.Background()

	promo := &model.Promo{Code: "WELCOME", Activates: 10, Amount: decimal.NewFromInt(100)}
	require.NoError(t, repo.Create(ctx, promo))

	require.NoError(t, repo.CreateUse(ctx, nil, promo.ID, 100))
	// 同一用户重复兑换被唯一索引挡住
	require.ErrorIs(t, repo.CreateUse(ctx, nil, promo.ID, 100), ErrPromoAlreadyUsed)
	// 不同用户不受影响
	require.NoError(t, repo.CreateUse(ctx, nil, promo.ID, 200))

	count, err := repo.CountUses(ctx, nil, promo.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestPromoDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewPromoRepository(db)
	ctx := context.Background()

	promo := &model.Promo{Code: "GONE", Activates: 1, Amount: decimal.NewFromInt(10)}
	require.NoError(t, repo.Create(ctx, promo))
	require.NoError(t, repo.CreateUse(ctx, nil, promo.ID, 100))

	require.NoError(t, repo.Delete(ctx, promo.ID))

	_, err := repo.GetByCode(ctx, "GONE")
	require.ErrorIs(t, err, ErrPromoNotFound)

	count, err := repo.CountUses(ctx, nil, promo.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	require.ErrorIs(t, repo.Delete(ctx, promo.ID), ErrPromoNotFound)
}
