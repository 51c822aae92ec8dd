package service

import (
	"context"

	"numpay/internal/model"
	"numpay/internal/repository"
)

// FavoriteService 常用服务收藏
type FavoriteService struct {
	favoriteRepo *repository.FavoriteRepository
}

func NewFavoriteService(favoriteRepo *repository.FavoriteRepository) *FavoriteService {
	return &FavoriteService{favoriteRepo: favoriteRepo}
}

func (s *FavoriteService) Add(ctx context.Context, userID int64, service, serviceName string, countryID int) (*model.Favorite, error) {
	favorite := &model.Favorite{
		UserID:      userID,
		Service:     service,
		ServiceName: serviceName,
		CountryID:   countryID,
	}
	if err := s.favoriteRepo.Create(ctx, favorite); err != nil {
		return nil, err
	}
	return favorite, nil
}

func (s *FavoriteService) List(ctx context.Context, userID int64) ([]*model.Favorite, error) {
	return s.favoriteRepo.ListByUserID(ctx, userID)
}

func (s *FavoriteService) Remove(ctx context.Context, userID, favoriteID int64) error {
	return s.favoriteRepo.Delete(ctx, userID, favoriteID)
}
