package model

import (
	"time"
)

// Referral 邀请关系表
// from_user 邀请了 to_user；每个 to_user 至多只能有一条入边（唯一索引保证），
// 禁止自邀，且两端账户都必须已存在
type Referral struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	FromUser  int64     `gorm:"index;not null" json:"from_user"`
	ToUser    int64     `gorm:"uniqueIndex;not null" json:"to_user"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Referral) TableName() string {
	return "referral"
}
