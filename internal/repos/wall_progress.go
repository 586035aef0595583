package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wallforge/wallsim-backend/internal/logger"
	"github.com/wallforge/wallsim-backend/internal/types"
)

// DayIce is one profile row's ice usage on one day, carrying enough of the
// owning profile to tell shared rows from per-position ones.
type DayIce struct {
	WallProfileID     uuid.UUID
	ProfileConfigHash string
	ProfileID         *int
	IceUsed           int64
}

type WallProgressRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rows []*types.WallProfileProgress) ([]*types.WallProfileProgress, error)
	GetIceUsed(ctx context.Context, tx *gorm.DB, wallProfileID uuid.UUID, day int) (int64, bool, error)
	GetDayIce(ctx context.Context, tx *gorm.DB, wallID uuid.UUID, day int) ([]DayIce, error)
	MaxDay(ctx context.Context, tx *gorm.DB, wallID uuid.UUID) (int, error)
}

type wallProgressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWallProgressRepo(db *gorm.DB, baseLog *logger.Logger) WallProgressRepo {
	return &wallProgressRepo{db: db, log: baseLog.With("repo", "WallProgressRepo")}
}

func (r *wallProgressRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.WallProfileProgress) ([]*types.WallProfileProgress, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.WallProfileProgress{}, nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	if err := transaction.WithContext(ctx).CreateInBatches(&rows, 500).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *wallProgressRepo) GetIceUsed(ctx context.Context, tx *gorm.DB, wallProfileID uuid.UUID, day int) (int64, bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var row types.WallProfileProgress
	err := transaction.WithContext(ctx).
		Where("wall_profile_id = ? AND day = ?", wallProfileID, day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.IceUsed, true, nil
}

// GetDayIce lists the per-profile-row ice usage of a wall on one day.
// Profile rows shared across duplicate profiles appear once; the caller
// decides how to weight them. An empty result means no row worked that day.
func (r *wallProgressRepo) GetDayIce(ctx context.Context, tx *gorm.DB, wallID uuid.UUID, day int) ([]DayIce, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var out []DayIce
	err := transaction.WithContext(ctx).
		Model(&types.WallProfileProgress{}).
		Select("wall_profile_progress.wall_profile_id, wall_profile.profile_config_hash, wall_profile.profile_id, wall_profile_progress.ice_used").
		Joins("JOIN wall_profile ON wall_profile.id = wall_profile_progress.wall_profile_id").
		Where("wall_profile.wall_id = ? AND wall_profile_progress.day = ?", wallID, day).
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *wallProgressRepo) MaxDay(ctx context.Context, tx *gorm.DB, wallID uuid.UUID) (int, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var maxDay *int
	err := transaction.WithContext(ctx).
		Model(&types.WallProfileProgress{}).
		Select("MAX(wall_profile_progress.day)").
		Joins("JOIN wall_profile ON wall_profile.id = wall_profile_progress.wall_profile_id").
		Where("wall_profile.wall_id = ?", wallID).
		Scan(&maxDay).Error
	if err != nil {
		return 0, err
	}
	if maxDay == nil {
		return 0, nil
	}
	return *maxDay, nil
}
