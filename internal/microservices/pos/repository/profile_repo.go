package repository

import (
	"context"
	"fmt"
	"strconv"

	"salez/internal/connections/localstore"
	"salez/internal/domain"
)

const profileBucket = "manager_profile"

type ProfileRepositoryInterface interface {
	Get(ctx context.Context) (domain.ManagerProfile, error)
	Save(ctx context.Context, p domain.ManagerProfile) error
}

// ProfileRepository keeps the single manager profile in the local file,
// never in the shared document store.
type ProfileRepository struct {
	db *localstore.DB
}

func NewProfileRepository(db *localstore.DB) ProfileRepositoryInterface {
	return &ProfileRepository{db: db}
}

var profileKey = strconv.Itoa(domain.ProfileID)

func (r *ProfileRepository) Get(_ context.Context) (domain.ManagerProfile, error) {
	var p domain.ManagerProfile
	ok, err := r.db.GetJSON(profileBucket, profileKey, &p)
	if err != nil {
		return domain.ManagerProfile{}, fmt.Errorf("get profile: %w", err)
	}
	if !ok {
		return domain.ManagerProfile{}, fmt.Errorf("profile: %w", domain.ErrNotFound)
	}
	return p, nil
}

func (r *ProfileRepository) Save(_ context.Context, p domain.ManagerProfile) error {
	p.ID = domain.ProfileID
	if err := r.db.PutJSON(profileBucket, profileKey, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
