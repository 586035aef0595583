package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wallforge/wallsim-backend/internal/logger"
	"github.com/wallforge/wallsim-backend/internal/types"
)

type WallProfileRepo interface {
	Create(ctx context.Context, tx *gorm.DB, profiles []*types.WallProfile) ([]*types.WallProfile, error)
	GetByWallID(ctx context.Context, tx *gorm.DB, wallID uuid.UUID) ([]*types.WallProfile, error)
	GetCostByProfileHash(ctx context.Context, tx *gorm.DB, profileHash string) (int64, bool, error)
	GetForWall(ctx context.Context, tx *gorm.DB, wallID uuid.UUID, profileHash string, profileID *int) (*types.WallProfile, error)
}

type wallProfileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWallProfileRepo(db *gorm.DB, baseLog *logger.Logger) WallProfileRepo {
	return &wallProfileRepo{db: db, log: baseLog.With("repo", "WallProfileRepo")}
}

func (r *wallProfileRepo) Create(ctx context.Context, tx *gorm.DB, profiles []*types.WallProfile) ([]*types.WallProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(profiles) == 0 {
		return []*types.WallProfile{}, nil
	}
	for _, profile := range profiles {
		if profile.ID == uuid.Nil {
			profile.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(ctx).Create(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *wallProfileRepo) GetByWallID(ctx context.Context, tx *gorm.DB, wallID uuid.UUID) ([]*types.WallProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.WallProfile
	if wallID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(ctx).
		Where("wall_id = ?", wallID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// GetCostByProfileHash finds any profile row with the given configuration
// hash. A profile's total cost is a function of its section heights alone,
// so any wall that contains the same profile configuration is a valid
// source.
func (r *wallProfileRepo) GetCostByProfileHash(ctx context.Context, tx *gorm.DB, profileHash string) (int64, bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var profile types.WallProfile
	err := transaction.WithContext(ctx).
		Where("profile_config_hash = ?", profileHash).
		Limit(1).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return profile.Cost, true, nil
}

func (r *wallProfileRepo) GetForWall(ctx context.Context, tx *gorm.DB, wallID uuid.UUID, profileHash string, profileID *int) (*types.WallProfile, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).
		Where("wall_id = ? AND profile_config_hash = ?", wallID, profileHash)
	if profileID != nil {
		q = q.Where("profile_id = ?", *profileID)
	} else {
		q = q.Where("profile_id IS NULL")
	}
	var profile types.WallProfile
	err := q.First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}
