package model

import (
	"time"
)

// Favorite 收藏的服务+国家组合，便于一键复购
type Favorite struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64     `gorm:"index;not null" json:"user_id"`
	Service     string    `gorm:"type:varchar(16);not null" json:"service"`
	ServiceName string    `gorm:"type:varchar(64);not null" json:"service_name"`
	CountryID   int       `gorm:"not null" json:"country_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Favorite) TableName() string {
	return "favorite"
}
