package service

import (
	"context"
	"strings"

	"salez/internal/domain"
	"salez/internal/microservices/pos/repository"
)

type ProfileServiceInterface interface {
	GetProfile(ctx context.Context) (domain.ManagerProfile, error)
	SaveProfile(ctx context.Context, req domain.ProfileRequest) (domain.ManagerProfile, error)
}

type ProfileService struct {
	profiles repository.ProfileRepositoryInterface
}

func NewProfileService(profiles repository.ProfileRepositoryInterface) ProfileServiceInterface {
	return &ProfileService{profiles: profiles}
}

func (ps *ProfileService) GetProfile(ctx context.Context) (domain.ManagerProfile, error) {
	return ps.profiles.Get(ctx)
}

// SaveProfile replaces the stored profile.
func (ps *ProfileService) SaveProfile(ctx context.Context, req domain.ProfileRequest) (domain.ManagerProfile, error) {
	p := domain.ManagerProfile{
		ID:        domain.ProfileID,
		Username:  strings.TrimSpace(req.Username),
		Email:     strings.TrimSpace(req.Email),
		Nickname:  strings.TrimSpace(req.Nickname),
		PhotoPath: req.PhotoPath,
	}
	if p.Username == "" {
		return domain.ManagerProfile{}, domain.ErrBlankUsername
	}
	if err := ps.profiles.Save(ctx, p); err != nil {
		return domain.ManagerProfile{}, err
	}
	return p, nil
}
