package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"numpay/internal/repository"
)

func TestAddReferral(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(repository.NewReferralRepository(db), repository.NewAccountRepository(db))
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedAccount(t, db, 200, 0)

	ok, err := svc.AddReferral(ctx, 100, 200)
	require.NoError(t, err)
	require.True(t, ok)

	count, err := svc.CountInvited(ctx, 100)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestAddReferralSelfRejected(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(repository.NewReferralRepository(db), repository.NewAccountRepository(db))

	seedAccount(t, db, 100, 0)

	ok, err := svc.AddReferral(context.Background(), 100, 100)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAddReferralUnknownParty(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(repository.NewReferralRepository(db), repository.NewAccountRepository(db))

	seedAccount(t, db, 100, 0)

	// 任一方未开户都拒绝
	ok, err := svc.AddReferral(context.Background(), 100, 999)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = svc.AddReferral(context.Background(), 999, 100)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAddReferralOnlyFirstWins(t *testing.T) {
	db := newTestDB(t)
	svc := NewReferralService(repository.NewReferralRepository(db), repository.NewAccountRepository(db))
	ctx := context.Background()

	seedAccount(t, db, 100, 0)
	seedAccount(t, db, 200, 0)
	seedAccount(t, db, 300, 0)

	ok, err := svc.AddReferral(ctx, 100, 300)
	require.NoError(t, err)
	require.True(t, ok)

	// 已有邀请人，后来者静默失败
	ok, err = svc.AddReferral(ctx, 200, 300)
	require.NoError(t, err)
	require.False(t, ok)

	referrer, err := repository.NewReferralRepository(db).GetReferrer(ctx, nil, 300)
	require.NoError(t, err)
	require.Equal(t, int64(100), referrer)
}
