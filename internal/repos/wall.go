package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wallforge/wallsim-backend/internal/logger"
	"github.com/wallforge/wallsim-backend/internal/types"
)

type WallRepo interface {
	Create(ctx context.Context, tx *gorm.DB, wall *types.Wall) (*types.Wall, error)
	GetByHashAndCrews(ctx context.Context, tx *gorm.DB, configHash string, numCrews int) (*types.Wall, error)
	CountByConfigID(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (int64, error)
}

type wallRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWallRepo(db *gorm.DB, baseLog *logger.Logger) WallRepo {
	return &wallRepo{db: db, log: baseLog.With("repo", "WallRepo")}
}

func (r *wallRepo) Create(ctx context.Context, tx *gorm.DB, wall *types.Wall) (*types.Wall, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if wall.ID == uuid.Nil {
		wall.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(wall).Error; err != nil {
		return nil, err
	}
	return wall, nil
}

func (r *wallRepo) GetByHashAndCrews(ctx context.Context, tx *gorm.DB, configHash string, numCrews int) (*types.Wall, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var wall types.Wall
	err := transaction.WithContext(ctx).
		Where("config_hash = ? AND num_crews = ?", configHash, numCrews).
		First(&wall).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wall, nil
}

func (r *wallRepo) CountByConfigID(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.Wall{}).
		Where("wall_config_id = ?", wallConfigID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
