package service

import (
	"context"

	"numpay/internal/model"
	"numpay/internal/repository"
)

// ReferralService 邀请关系登记与统计
// 返佣在充值结算事务内完成，见 DepositService.ApplySettlement
type ReferralService struct {
	referralRepo *repository.ReferralRepository
	accountRepo  *repository.AccountRepository
}

func NewReferralService(referralRepo *repository.ReferralRepository, accountRepo *repository.AccountRepository) *ReferralService {
	return &ReferralService{
		referralRepo: referralRepo,
		accountRepo:  accountRepo,
	}
}

// AddReferral 登记一条邀请关系，返回是否登记成功
// 自邀、任一方未开户、被邀请人已有邀请人时静默拒绝，不报错
func (s *ReferralService) AddReferral(ctx context.Context, fromUser, toUser int64) (bool, error) {
	if fromUser == toUser {
		return false, nil
	}
	allExist, err := s.accountRepo.ExistAll(ctx, fromUser, toUser)
	if err != nil {
		return false, err
	}
	if !allExist {
		return false, nil
	}
	exists, err := s.referralRepo.Exists(ctx, toUser)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := s.referralRepo.Create(ctx, &model.Referral{FromUser: fromUser, ToUser: toUser}); err != nil {
		return false, err
	}
	return true, nil
}

// CountInvited 统计用户邀请的人数
func (s *ReferralService) CountInvited(ctx context.Context, userID int64) (int64, error) {
	return s.referralRepo.CountByReferrer(ctx, userID)
}
