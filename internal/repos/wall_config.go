package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wallforge/wallsim-backend/internal/logger"
	"github.com/wallforge/wallsim-backend/internal/types"
)

type WallConfigRepo interface {
	Create(ctx context.Context, tx *gorm.DB, record *types.WallConfigRecord) (*types.WallConfigRecord, error)
	GetByHash(ctx context.Context, tx *gorm.DB, configHash string) (*types.WallConfigRecord, error)
	GetByHashForUpdate(ctx context.Context, tx *gorm.DB, configHash string) (*types.WallConfigRecord, error)
	SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error
	MarkDeletionInitiated(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	DeletionInitiated(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type wallConfigRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWallConfigRepo(db *gorm.DB, baseLog *logger.Logger) WallConfigRepo {
	return &wallConfigRepo{db: db, log: baseLog.With("repo", "WallConfigRepo")}
}

func (r *wallConfigRepo) Create(ctx context.Context, tx *gorm.DB, record *types.WallConfigRecord) (*types.WallConfigRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if err := transaction.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

func (r *wallConfigRepo) GetByHash(ctx context.Context, tx *gorm.DB, configHash string) (*types.WallConfigRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var record types.WallConfigRecord
	err := transaction.WithContext(ctx).
		Where("config_hash = ?", configHash).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByHashForUpdate row-locks the record so status transitions and the
// deletion flag cannot race. Must run inside a transaction.
func (r *wallConfigRepo) GetByHashForUpdate(ctx context.Context, tx *gorm.DB, configHash string) (*types.WallConfigRecord, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var record types.WallConfigRecord
	err := transaction.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("config_hash = ?", configHash).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *wallConfigRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Model(&types.WallConfigRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
}

// MarkDeletionInitiated flips the deletion flag exactly once. The bool
// reports whether this call was the one that flipped it.
func (r *wallConfigRepo) MarkDeletionInitiated(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	res := transaction.WithContext(ctx).
		Model(&types.WallConfigRecord{}).
		Where("id = ? AND deletion_initiated = false", id).
		Updates(map[string]interface{}{
			"deletion_initiated": true,
			"status":             types.WallConfigStatusPendingDeletion,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *wallConfigRepo) DeletionInitiated(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	var flagged bool
	err := transaction.WithContext(ctx).
		Model(&types.WallConfigRecord{}).
		Where("id = ?", id).
		Pluck("deletion_initiated", &flagged).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return flagged, nil
}

// Delete removes the record; derived walls, profiles, progress rows and
// batch runs go with it through the cascades.
func (r *wallConfigRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&types.WallConfigRecord{}).Error
}
