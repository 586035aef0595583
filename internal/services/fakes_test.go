package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wallforge/wallsim-backend/internal/repos"
	"github.com/wallforge/wallsim-backend/internal/types"
)

// In-memory stand-ins for the postgres repos and the redis tier. They keep
// the repo contracts (nil on not found, duplicate-key errors on unique
// violations) so the services under test cannot tell the difference.

type fakeTxRunner struct{}

func (fakeTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func duplicateKeyErr(what string) error {
	return fmt.Errorf("duplicate key value violates unique constraint %q (SQLSTATE 23505)", what)
}

type fakeWallConfigRepo struct {
	mu     sync.Mutex
	byHash map[string]*types.WallConfigRecord
}

func newFakeWallConfigRepo() *fakeWallConfigRepo {
	return &fakeWallConfigRepo{byHash: map[string]*types.WallConfigRecord{}}
}

func (r *fakeWallConfigRepo) Create(ctx context.Context, tx *gorm.DB, record *types.WallConfigRecord) (*types.WallConfigRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byHash[record.ConfigHash]; ok {
		return nil, duplicateKeyErr("wall_config_config_hash_key")
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	r.byHash[record.ConfigHash] = record
	return record, nil
}

func (r *fakeWallConfigRepo) GetByHash(ctx context.Context, tx *gorm.DB, configHash string) (*types.WallConfigRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byHash[configHash], nil
}

func (r *fakeWallConfigRepo) GetByHashForUpdate(ctx context.Context, tx *gorm.DB, configHash string) (*types.WallConfigRecord, error) {
	return r.GetByHash(ctx, tx, configHash)
}

func (r *fakeWallConfigRepo) SetStatus(ctx context.Context, tx *gorm.DB, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.byHash {
		if record.ID == id {
			record.Status = status
		}
	}
	return nil
}

func (r *fakeWallConfigRepo) MarkDeletionInitiated(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.byHash {
		if record.ID == id && !record.DeletionInitiated {
			record.DeletionInitiated = true
			record.Status = types.WallConfigStatusPendingDeletion
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeWallConfigRepo) DeletionInitiated(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, record := range r.byHash {
		if record.ID == id {
			return record.DeletionInitiated, nil
		}
	}
	return true, nil
}

func (r *fakeWallConfigRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for hash, record := range r.byHash {
		if record.ID == id {
			delete(r.byHash, hash)
		}
	}
	return nil
}

type fakeWallRepo struct {
	mu    sync.Mutex
	walls map[string]*types.Wall
}

func newFakeWallRepo() *fakeWallRepo {
	return &fakeWallRepo{walls: map[string]*types.Wall{}}
}

func wallKey(configHash string, numCrews int) string {
	return fmt.Sprintf("%s_%d", configHash, numCrews)
}

func (r *fakeWallRepo) Create(ctx context.Context, tx *gorm.DB, wall *types.Wall) (*types.Wall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := wallKey(wall.ConfigHash, wall.NumCrews)
	if _, ok := r.walls[key]; ok {
		return nil, duplicateKeyErr("idx_wall_hash_crews")
	}
	if wall.ID == uuid.Nil {
		wall.ID = uuid.New()
	}
	r.walls[key] = wall
	return wall, nil
}

func (r *fakeWallRepo) GetByHashAndCrews(ctx context.Context, tx *gorm.DB, configHash string, numCrews int) (*types.Wall, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.walls[wallKey(configHash, numCrews)], nil
}

func (r *fakeWallRepo) CountByConfigID(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, wall := range r.walls {
		if wall.WallConfigID == wallConfigID {
			count++
		}
	}
	return count, nil
}

type fakeWallProfileRepo struct {
	mu       sync.Mutex
	profiles []*types.WallProfile
}

func (r *fakeWallProfileRepo) Create(ctx context.Context, tx *gorm.DB, profiles []*types.WallProfile) ([]*types.WallProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, profile := range profiles {
		if profile.ID == uuid.Nil {
			profile.ID = uuid.New()
		}
		r.profiles = append(r.profiles, profile)
	}
	return profiles, nil
}

func (r *fakeWallProfileRepo) GetByWallID(ctx context.Context, tx *gorm.DB, wallID uuid.UUID) ([]*types.WallProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.WallProfile
	for _, profile := range r.profiles {
		if profile.WallID == wallID {
			out = append(out, profile)
		}
	}
	return out, nil
}

func (r *fakeWallProfileRepo) GetCostByProfileHash(ctx context.Context, tx *gorm.DB, profileHash string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, profile := range r.profiles {
		if profile.ProfileConfigHash == profileHash {
			return profile.Cost, true, nil
		}
	}
	return 0, false, nil
}

func (r *fakeWallProfileRepo) GetForWall(ctx context.Context, tx *gorm.DB, wallID uuid.UUID, profileHash string, profileID *int) (*types.WallProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, profile := range r.profiles {
		if profile.WallID != wallID || profile.ProfileConfigHash != profileHash {
			continue
		}
		if profileID == nil && profile.ProfileID == nil {
			return profile, nil
		}
		if profileID != nil && profile.ProfileID != nil && *profile.ProfileID == *profileID {
			return profile, nil
		}
	}
	return nil, nil
}

type fakeWallProgressRepo struct {
	mu       sync.Mutex
	rows     []*types.WallProfileProgress
	profiles *fakeWallProfileRepo
}

func (r *fakeWallProgressRepo) Create(ctx context.Context, tx *gorm.DB, rows []*types.WallProfileProgress) ([]*types.WallProfileProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		r.rows = append(r.rows, row)
	}
	return rows, nil
}

func (r *fakeWallProgressRepo) GetIceUsed(ctx context.Context, tx *gorm.DB, wallProfileID uuid.UUID, day int) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.WallProfileID == wallProfileID && row.Day == day {
			return row.IceUsed, true, nil
		}
	}
	return 0, false, nil
}

func (r *fakeWallProgressRepo) GetDayIce(ctx context.Context, tx *gorm.DB, wallID uuid.UUID, day int) ([]repos.DayIce, error) {
	profiles, _ := r.profiles.GetByWallID(ctx, tx, wallID)
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repos.DayIce
	for _, profile := range profiles {
		for _, row := range r.rows {
			if row.WallProfileID == profile.ID && row.Day == day {
				out = append(out, repos.DayIce{
					WallProfileID:     profile.ID,
					ProfileConfigHash: profile.ProfileConfigHash,
					ProfileID:         profile.ProfileID,
					IceUsed:           row.IceUsed,
				})
			}
		}
	}
	return out, nil
}

func (r *fakeWallProgressRepo) MaxDay(ctx context.Context, tx *gorm.DB, wallID uuid.UUID) (int, error) {
	profiles, _ := r.profiles.GetByWallID(ctx, tx, wallID)
	r.mu.Lock()
	defer r.mu.Unlock()
	maxDay := 0
	for _, profile := range profiles {
		for _, row := range r.rows {
			if row.WallProfileID == profile.ID && row.Day > maxDay {
				maxDay = row.Day
			}
		}
	}
	return maxDay, nil
}

type fakeBatchRunRepo struct {
	mu   sync.Mutex
	runs []*types.BatchRun
}

func (r *fakeBatchRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.BatchRun) (*types.BatchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.BatchRunStatusQueued
	}
	run.CreatedAt = time.Now()
	r.runs = append(r.runs, run)
	return run, nil
}

func (r *fakeBatchRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.BatchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeBatchRunRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay, staleRunning time.Duration) (*types.BatchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.Status == types.BatchRunStatusQueued {
			run.Status = types.BatchRunStatusRunning
			run.Attempts++
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeBatchRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID != id {
			continue
		}
		if v, ok := updates["status"].(string); ok {
			run.Status = v
		}
		if v, ok := updates["crews_done"].(int); ok {
			run.CrewsDone = v
		}
		if v, ok := updates["error"].(string); ok {
			run.Error = v
		}
	}
	return nil
}

func (r *fakeBatchRunRepo) Heartbeat(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return nil
}

func (r *fakeBatchRunRepo) GetRunnableForConfig(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (*types.BatchRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.WallConfigID == wallConfigID &&
			(run.Status == types.BatchRunStatusQueued || run.Status == types.BatchRunStatusRunning) {
			return run, nil
		}
	}
	return nil, nil
}

func (r *fakeBatchRunRepo) ExistsRunnableForConfig(ctx context.Context, tx *gorm.DB, wallConfigID uuid.UUID) (bool, error) {
	run, err := r.GetRunnableForConfig(ctx, tx, wallConfigID)
	return run != nil, err
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	deny bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.deny || l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *fakeLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held[key] {
		return errors.New("lock not held")
	}
	delete(l.held, key)
	return nil
}

type fakeFastTier struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeFastTier() *fakeFastTier {
	return &fakeFastTier{values: map[string]string{}}
}

func (f *fakeFastTier) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeFastTier) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeFastTier) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeFastTier) DeleteByPrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			delete(f.values, key)
		}
	}
	return nil
}
