package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAccountGetOrCreateIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)
	require.True(t, first.Balance.IsZero())

	second, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestAccountDeduct(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	account, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, repo.Increase(ctx, db, 100, decimal.NewFromInt(100), false))

	account, err = repo.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, repo.Deduct(ctx, db, 100, decimal.NewFromInt(60), account.Version))

	account, err = repo.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.True(t, account.Balance.Equal(decimal.NewFromInt(40)))

	// 余额不足时拒绝且余额不变
	err = repo.Deduct(ctx, db, 100, decimal.NewFromInt(41), account.Version)
	require.ErrorIs(t, err, ErrBalanceNotEnough)

	account, err = repo.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.True(t, account.Balance.Equal(decimal.NewFromInt(40)))
}

func TestAccountDeductStaleVersion(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)
	require.NoError(t, repo.Increase(ctx, db, 100, decimal.NewFromInt(100), false))

	account, err := repo.GetByUserID(ctx, 100)
	require.NoError(t, err)

	// 持旧版本号的并发方必须失败
	require.NoError(t, repo.Deduct(ctx, db, 100, decimal.NewFromInt(10), account.Version))
	err = repo.Deduct(ctx, db, 100, decimal.NewFromInt(10), account.Version)
	require.ErrorIs(t, err, ErrOptimisticLock)
}

func TestAccountIncreaseReferral(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)

	require.NoError(t, repo.Increase(ctx, db, 100, decimal.NewFromInt(30), false))
	require.NoError(t, repo.Increase(ctx, db, 100, decimal.NewFromInt(10), true))

	account, err := repo.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.True(t, account.Balance.Equal(decimal.NewFromInt(40)))
	require.True(t, account.RefBalance.Equal(decimal.NewFromInt(10)))
}

func TestAccountBindUsername(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)
	_, err = repo.GetOrCreate(ctx, 200)
	require.NoError(t, err)

	require.NoError(t, repo.BindUsername(ctx, 100, "alice"))

	found, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(100), found.UserID)

	// 用户名易主后旧持有者被清空
	require.NoError(t, repo.BindUsername(ctx, 200, "alice"))

	found, err = repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, int64(200), found.UserID)

	old, err := repo.GetByUserID(ctx, 100)
	require.NoError(t, err)
	require.Nil(t, old.Username)
}

func TestAccountExistAll(t *testing.T) {
	db := newTestDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, 100)
	require.NoError(t, err)

	ok, err := repo.ExistAll(ctx, 100)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.ExistAll(ctx, 100, 999)
	require.NoError(t, err)
	require.False(t, ok)
}
