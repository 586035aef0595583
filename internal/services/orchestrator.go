package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wallforge/wallsim-backend/internal/cache"
	"github.com/wallforge/wallsim-backend/internal/config"
	"github.com/wallforge/wallsim-backend/internal/confighash"
	"github.com/wallforge/wallsim-backend/internal/locks"
	"github.com/wallforge/wallsim-backend/internal/logger"
	"github.com/wallforge/wallsim-backend/internal/repos"
	"github.com/wallforge/wallsim-backend/internal/types"
	"github.com/wallforge/wallsim-backend/internal/wallsim"
)

// OrchestratorService owns the background full-range batches: one batch
// simulates a configuration for every crew count from 0 (unlimited
// sequential) through sections-1. It also owns configuration deletion,
// which must abort any in-flight batch first.
type OrchestratorService interface {
	SubmitFullRange(ctx context.Context, cfg wallsim.Config) (*types.BatchRun, error)
	StartWorker(ctx context.Context)
	RequestDeletion(ctx context.Context, configHash string) error
	BatchStatus(ctx context.Context, runID uuid.UUID) (*types.BatchRun, error)
}

type orchestratorService struct {
	orch       config.Orchestration
	sim        *wallsim.Simulator
	walls      WallService
	tx         repos.TxRunner
	configRepo repos.WallConfigRepo
	runRepo    repos.BatchRunRepo
	layer      *cache.Layer
	redisLock  locks.Locker
	errs       ErrorTracker
	log        *logger.Logger
}

func NewOrchestratorService(
	appCfg *config.Config,
	sim *wallsim.Simulator,
	walls WallService,
	tx repos.TxRunner,
	configRepo repos.WallConfigRepo,
	runRepo repos.BatchRunRepo,
	layer *cache.Layer,
	redisLock locks.Locker,
	errs ErrorTracker,
	baseLog *logger.Logger,
) OrchestratorService {
	return &orchestratorService{
		orch:       appCfg.Orchestration,
		sim:        sim,
		walls:      walls,
		tx:         tx,
		configRepo: configRepo,
		runRepo:    runRepo,
		layer:      layer,
		redisLock:  redisLock,
		errs:       errs,
		log:        baseLog.With("service", "OrchestratorService"),
	}
}

// SubmitFullRange registers the configuration (idempotently) and queues one
// batch run covering every crew count. An already runnable batch for the
// same configuration is returned instead of queuing a duplicate.
func (s *orchestratorService) SubmitFullRange(ctx context.Context, cfg wallsim.Config) (*types.BatchRun, error) {
	if err := s.sim.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	hash, err := confighash.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash wall config: %w", err)
	}

	record, err := s.ensureConfigRecord(ctx, cfg, hash)
	if err != nil {
		return nil, err
	}
	if record.DeletionInitiated {
		return nil, ErrDeletionInProgress
	}

	existing, err := s.runRepo.GetRunnableForConfig(ctx, nil, record.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Info("Batch already queued for config", "config_hash", hash, "run_id", existing.ID)
		return existing, nil
	}

	run, err := s.runRepo.Create(ctx, nil, &types.BatchRun{
		WallConfigID: record.ID,
		ConfigHash:   hash,
		Status:       types.BatchRunStatusQueued,
		CrewsTotal:   cfg.SectionsCount(),
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (s *orchestratorService) BatchStatus(ctx context.Context, runID uuid.UUID) (*types.BatchRun, error) {
	run, err := s.runRepo.GetByID(ctx, nil, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrNotFound
	}
	return run, nil
}

// StartWorker runs the claim loop until ctx is canceled.
func (s *orchestratorService) StartWorker(ctx context.Context) {
	go s.runLoop(ctx)
}

func (s *orchestratorService) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.orch.WorkerTick)
	defer ticker.Stop()
	s.log.Info("Batch worker started", "tick", s.orch.WorkerTick)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Batch worker stopped")
			return
		case <-ticker.C:
			run, err := s.runRepo.ClaimNextRunnable(ctx, nil, s.orch.MaxAttempts, s.orch.RetryDelay, s.orch.StaleRunning)
			if err != nil {
				s.log.Warn("ClaimNextRunnable failed", "error", err)
				continue
			}
			if run == nil {
				continue
			}
			s.processBatch(ctx, run)
		}
	}
}

// processBatch walks the crew counts of one claimed run. The deletion flag
// is re-read before each crew count and polled during each simulation; when
// it appears the abort signal stops the running crews and the batch ends as
// interrupted with whatever was already persisted kept.
func (s *orchestratorService) processBatch(ctx context.Context, run *types.BatchRun) {
	record, err := s.configRepo.GetByHash(ctx, nil, run.ConfigHash)
	if err != nil || record == nil {
		s.finishRun(ctx, run.ID, types.BatchRunStatusInterrupted, "configuration gone before processing")
		return
	}

	var cfg wallsim.Config
	if err := json.Unmarshal(record.RawConfig, &cfg); err != nil {
		s.failRun(ctx, run, record, fmt.Errorf("decode stored config: %w", err))
		return
	}

	if record.Status == types.WallConfigStatusInitialized {
		if err := s.configRepo.SetStatus(ctx, nil, record.ID, types.WallConfigStatusInProgress); err != nil {
			s.log.Warn("Status update failed", "config_hash", run.ConfigHash, "error", err)
		}
	}

	sections := cfg.SectionsCount()
	done := run.CrewsDone
	for crews := done; crews < sections; crews++ {
		flagged, err := s.configRepo.DeletionInitiated(ctx, nil, record.ID)
		if err != nil {
			s.failRun(ctx, run, record, err)
			return
		}
		if flagged {
			s.finishRun(ctx, run.ID, types.BatchRunStatusInterrupted, "deletion requested")
			return
		}

		abort := wallsim.NewAbort()
		pollCtx, stopPoll := context.WithCancel(ctx)
		go s.pollDeletion(pollCtx, record.ID, abort)

		_, err = s.walls.EnsureWall(ctx, cfg, crews, abort)
		stopPoll()
		if errors.Is(err, wallsim.ErrAborted) || errors.Is(err, ErrDeletionInProgress) {
			s.finishRun(ctx, run.ID, types.BatchRunStatusInterrupted, "deletion requested")
			return
		}
		if errors.Is(err, ErrBeingInitialized) {
			// Another process is building this crew count. Requeue at the
			// current position instead of skipping ahead: a later claim
			// re-enters here and either finds the wall durable or rebuilds
			// it, so the run can never finish with the count missing.
			if err := s.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
				"status": types.BatchRunStatusQueued,
			}); err != nil {
				s.log.Warn("Requeue failed", "run_id", run.ID, "error", err)
			}
			s.log.Info("Crew count held elsewhere, run requeued",
				"run_id", run.ID, "config_hash", run.ConfigHash, "num_crews", crews)
			return
		}
		if err != nil {
			s.failRun(ctx, run, record, err)
			return
		}

		if err := s.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
			"crews_done": crews + 1,
		}); err != nil {
			s.log.Warn("Progress update failed", "run_id", run.ID, "error", err)
		}
		if err := s.runRepo.Heartbeat(ctx, nil, run.ID); err != nil {
			s.log.Warn("Heartbeat failed", "run_id", run.ID, "error", err)
		}
	}

	s.finishRun(ctx, run.ID, types.BatchRunStatusCompleted, "")
	if err := s.configRepo.SetStatus(ctx, nil, record.ID, types.WallConfigStatusCalculated); err != nil {
		s.log.Warn("Status update failed", "config_hash", run.ConfigHash, "error", err)
	}
	s.log.Info("Batch completed", "run_id", run.ID, "config_hash", run.ConfigHash, "crew_counts", sections)
}

func (s *orchestratorService) pollDeletion(ctx context.Context, configID uuid.UUID, abort *wallsim.Abort) {
	ticker := time.NewTicker(s.orch.DeletionPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flagged, err := s.configRepo.DeletionInitiated(ctx, nil, configID)
			if err != nil {
				continue
			}
			if flagged {
				abort.Signal()
				return
			}
		}
	}
}

func (s *orchestratorService) finishRun(ctx context.Context, runID uuid.UUID, status, message string) {
	updates := map[string]interface{}{"status": status}
	if message != "" {
		updates["error"] = message
	}
	if err := s.runRepo.UpdateFields(ctx, nil, runID, updates); err != nil {
		s.log.Warn("Run status update failed", "run_id", runID, "status", status, "error", err)
	}
}

func (s *orchestratorService) failRun(ctx context.Context, run *types.BatchRun, record *types.WallConfigRecord, cause error) {
	errID := s.errs.NewErrorID(ctx)
	s.log.Error("Batch failed", "error_id", errID, "run_id", run.ID, "config_hash", run.ConfigHash, "error", cause)
	now := time.Now()
	if err := s.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":        types.BatchRunStatusFailed,
		"error":         fmt.Sprintf("%s: %v", errID, cause),
		"last_error_at": now,
	}); err != nil {
		s.log.Warn("Run status update failed", "run_id", run.ID, "error", err)
	}
	if run.Attempts >= s.orch.MaxAttempts {
		if err := s.configRepo.SetStatus(ctx, nil, record.ID, types.WallConfigStatusError); err != nil {
			s.log.Warn("Status update failed", "config_hash", run.ConfigHash, "error", err)
		}
	}
}

// RequestDeletion flags the configuration for deletion, waits for in-flight
// work to honor the abort, then removes the durable rows and best-effort
// clears the fast tier. A second request that finds the flag already set is
// an idempotent success.
func (s *orchestratorService) RequestDeletion(ctx context.Context, configHash string) error {
	lockKey := cache.DeletionLockKey(configHash)
	acquired, err := s.redisLock.TryAcquire(ctx, lockKey)
	if err != nil {
		return fmt.Errorf("acquire deletion lock: %w", err)
	}
	if !acquired {
		// Another request is already deleting this configuration.
		return nil
	}
	defer func() {
		if relErr := s.redisLock.Release(ctx, lockKey); relErr != nil {
			s.log.Warn("Deletion lock release failed", "key", lockKey, "error", relErr)
		}
	}()

	var record *types.WallConfigRecord
	var alreadyFlagged bool
	txErr := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		record, err = s.configRepo.GetByHashForUpdate(ctx, tx, configHash)
		if err != nil {
			return err
		}
		if record == nil {
			return ErrNotFound
		}
		if record.DeletionInitiated {
			alreadyFlagged = true
			return nil
		}
		flipped, err := s.configRepo.MarkDeletionInitiated(ctx, tx, record.ID)
		if err != nil {
			return err
		}
		alreadyFlagged = !flipped
		return nil
	})
	if txErr != nil {
		return txErr
	}
	if alreadyFlagged {
		return nil
	}

	if err := s.waitForRunnable(ctx, record.ID); err != nil {
		s.log.Warn("Abort wait ended early", "config_hash", configHash, "error", err)
	}

	if err := s.configRepo.Delete(ctx, nil, record.ID); err != nil {
		return fmt.Errorf("delete wall config: %w", err)
	}

	var cfg wallsim.Config
	profileHashes := map[int]string{}
	if err := json.Unmarshal(record.RawConfig, &cfg); err == nil {
		if hashed, hashErr := confighash.ProfileHashes(cfg); hashErr == nil {
			profileHashes = hashed
		}
	}
	s.layer.Cleanup(ctx, configHash, profileHashes)
	s.log.Info("Wall config deleted", "config_hash", configHash)
	return nil
}

// waitForRunnable polls until no batch for the configuration is queued or
// running, or the abort wait period elapses. Cascade deletion is safe either
// way; the wait just gives crews a chance to stop cleanly.
func (s *orchestratorService) waitForRunnable(ctx context.Context, configID uuid.UUID) error {
	deadline := time.Now().Add(s.orch.AbortWaitPeriod)
	ticker := time.NewTicker(s.orch.DeletionPollInterval)
	defer ticker.Stop()
	for {
		runnable, err := s.runRepo.ExistsRunnableForConfig(ctx, nil, configID)
		if err != nil {
			return err
		}
		if !runnable {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("abort wait period elapsed with work still running")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *orchestratorService) ensureConfigRecord(ctx context.Context, cfg wallsim.Config, hash string) (*types.WallConfigRecord, error) {
	record, err := s.configRepo.GetByHash(ctx, nil, hash)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode wall config: %w", err)
	}
	record, err = s.configRepo.Create(ctx, nil, &types.WallConfigRecord{
		ConfigHash: hash,
		Status:     types.WallConfigStatusInitialized,
		RawConfig:  raw,
	})
	if err != nil {
		if repos.IsUniqueViolation(err) {
			return s.configRepo.GetByHash(ctx, nil, hash)
		}
		return nil, err
	}
	return record, nil
}
