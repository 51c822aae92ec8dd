package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"numpay/internal/model"
)

// 每个测试使用独立的内存库，避免相互污染
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Account{},
		&model.AccountTransaction{},
		&model.Invoice{},
		&model.SmsOrder{},
		&model.RentOrder{},
		&model.Referral{},
		&model.Promo{},
		&model.PromoUse{},
		&model.Favorite{},
		&model.OutboxMessage{},
	))
	return db
}
