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

type BatchRunRepo interface {
	Create(ctx context.Context, tx *gorm.DB, run *types.BatchRun) (*types.BatchRun, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.BatchRun, error)
	ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.BatchRun, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
	Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	ExistsRunnableForConfig(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (bool, error)
	GetRunnableForConfig(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (*types.BatchRun, error)
}

type batchRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBatchRunRepo(db *gorm.DB, baseLog *logger.Logger) BatchRunRepo {
	return &batchRunRepo{db: db, log: baseLog.With("repo", "BatchRunRepo")}
}

func (r *batchRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.BatchRun) (*types.BatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.BatchRunStatusQueued
	}
	if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *batchRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.BatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.BatchRun
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ClaimNextRunnable picks the oldest run that is queued, retryable after a
// failure, or running with a stale heartbeat, and atomically flips it to
// running. SKIP LOCKED keeps concurrent workers off the same row.
func (r *batchRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.BatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)
	var claimed *types.BatchRun
	err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var run types.BatchRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.BatchRunStatusQueued, types.BatchRunStatusFailed, maxAttempts, retryCutoff, types.BatchRunStatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}
		uErr := txx.Model(&types.BatchRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":       types.BatchRunStatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *batchRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return transaction.WithContext(ctx).
		Model(&types.BatchRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *batchRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return transaction.WithContext(ctx).
		Model(&types.BatchRun{}).
		Where("id = ? AND status = ?", id, types.BatchRunStatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *batchRunRepo) GetRunnableForConfig(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (*types.BatchRun, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if wallConfigID == uuid.Nil {
		return nil, nil
	}
	var run types.BatchRun
	err := transaction.WithContext(ctx).
		Where("wall_config_id = ? AND status IN ?", wallConfigID,
			[]string{types.BatchRunStatusQueued, types.BatchRunStatusRunning}).
		Order("created_at ASC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *batchRunRepo) ExistsRunnableForConfig(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if wallConfigID == uuid.Nil {
		return false, nil
	}
	var count int64
	err := transaction.WithContext(ctx).
		Model(&types.BatchRun{}).
		Where("wall_config_id = ? AND status IN ?", wallConfigID,
			[]string{types.BatchRunStatusQueued, types.BatchRunStatusRunning}).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
