package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"
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

// WallSummary is the durable outcome of one simulation.
type WallSummary struct {
	ConfigHash       string `json:"config_hash"`
	NumCrews         int    `json:"num_crews"`
	TotalIce         int64  `json:"total_ice_amount"`
	TotalCost        int64  `json:"total_cost"`
	ConstructionDays int    `json:"construction_days"`
}

// WallService answers cost and usage questions about the configured wall,
// simulating and persisting on first demand. Reads go fast tier first,
// then durable rows, then a fresh simulation guarded by the creation lock.
type WallService interface {
	Config() wallsim.Config
	ConfigHash() string
	Overview(ctx context.Context, numCrews int) (int64, error)
	OverviewDay(ctx context.Context, day, numCrews int) (int64, error)
	ProfileOverview(ctx context.Context, profileID, numCrews int) (int64, error)
	ProfileOverviewDay(ctx context.Context, profileID, day, numCrews int) (int64, error)
	ProfileDayIce(ctx context.Context, profileID, day, numCrews int) (int64, error)
	EnsureWall(ctx context.Context, cfg wallsim.Config, numCrews int, abort *wallsim.Abort) (*WallSummary, error)
	ConfigStatus(ctx context.Context, configHash string) (*types.WallConfigRecord, error)
}

type wallService struct {
	cfg          wallsim.Config
	configHash   string
	profHashes   map[int]string
	sim          *wallsim.Simulator
	tx           repos.TxRunner
	configRepo   repos.WallConfigRepo
	wallRepo     repos.WallRepo
	profileRepo  repos.WallProfileRepo
	progressRepo repos.WallProgressRepo
	layer        *cache.Layer
	pgLock       locks.Locker
	redisLock    locks.Locker
	errs         ErrorTracker
	costRate     int64
	transientTTL time.Duration
	flight       singleflight.Group
	log          *logger.Logger
}

func NewWallService(
	cfg wallsim.Config,
	appCfg *config.Config,
	sim *wallsim.Simulator,
	tx repos.TxRunner,
	configRepo repos.WallConfigRepo,
	wallRepo repos.WallRepo,
	profileRepo repos.WallProfileRepo,
	progressRepo repos.WallProgressRepo,
	layer *cache.Layer,
	pgLock locks.Locker,
	redisLock locks.Locker,
	errs ErrorTracker,
	baseLog *logger.Logger,
) (WallService, error) {
	hash, err := confighash.Hash(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash wall config: %w", err)
	}
	profHashes, err := confighash.ProfileHashes(cfg)
	if err != nil {
		return nil, fmt.Errorf("hash wall profiles: %w", err)
	}
	return &wallService{
		cfg:          cfg,
		configHash:   hash,
		profHashes:   profHashes,
		sim:          sim,
		tx:           tx,
		configRepo:   configRepo,
		wallRepo:     wallRepo,
		profileRepo:  profileRepo,
		progressRepo: progressRepo,
		layer:        layer,
		pgLock:       pgLock,
		redisLock:    redisLock,
		errs:         errs,
		costRate:     appCfg.Simulation.IceCostPerCubicYard,
		transientTTL: appCfg.Cache.TransientTTL,
		log:          baseLog.With("service", "WallService"),
	}, nil
}

func (s *wallService) Config() wallsim.Config { return s.cfg }
func (s *wallService) ConfigHash() string     { return s.configHash }

func (s *wallService) Overview(ctx context.Context, numCrews int) (int64, error) {
	p := s.sim.Normalize(s.cfg, numCrews)
	key := cache.WallCostKey(s.configHash)
	fetch := func(ctx context.Context) (int64, bool, error) {
		wall, err := s.wallRepo.GetByHashAndCrews(ctx, nil, s.configHash, p.NumCrews)
		if err != nil || wall == nil {
			return 0, false, err
		}
		return wall.TotalCost, true, nil
	}
	cost, found, err := s.layer.GetInt64(ctx, key, 0, fetch)
	if err != nil {
		return 0, err
	}
	if found {
		return cost, nil
	}
	summary, err := s.EnsureWall(ctx, s.cfg, numCrews, nil)
	if err != nil {
		return 0, err
	}
	return summary.TotalCost, nil
}

// OverviewDay is the cost of the ice the whole wall consumed on one day.
func (s *wallService) OverviewDay(ctx context.Context, day, numCrews int) (int64, error) {
	p := s.sim.Normalize(s.cfg, numCrews)
	summary, err := s.getOrBuild(ctx, p, numCrews)
	if err != nil {
		return 0, err
	}
	if day < 1 || day > summary.ConstructionDays {
		return 0, ErrDayOutOfRange
	}
	key := cache.DayTotalKey(s.configHash, p.NumCrews, day)
	fetch := func(ctx context.Context) (int64, bool, error) {
		wall, err := s.wallRepo.GetByHashAndCrews(ctx, nil, s.configHash, p.NumCrews)
		if err != nil || wall == nil {
			return 0, false, err
		}
		rows, err := s.progressRepo.GetDayIce(ctx, nil, wall.ID, day)
		if err != nil {
			return 0, false, err
		}
		// Duplicate profiles share one progress row; count it once per
		// position so the durable total matches the simulated one.
		multiplicity := make(map[string]int64, len(s.profHashes))
		for _, h := range s.profHashes {
			multiplicity[h]++
		}
		var total int64
		for _, row := range rows {
			weight := int64(1)
			if row.ProfileID == nil {
				weight = multiplicity[row.ProfileConfigHash]
			}
			total += row.IceUsed * weight
		}
		// A day inside the construction range with no rows means no crew
		// worked it; zero is the answer, not a miss.
		return total, true, nil
	}
	total, _, err := s.layer.GetInt64(ctx, key, s.transientTTL, fetch)
	if err != nil {
		return 0, err
	}
	return total * s.costRate, nil
}

func (s *wallService) ProfileOverview(ctx context.Context, profileID, numCrews int) (int64, error) {
	if profileID < 1 || profileID > len(s.cfg) {
		return 0, ErrProfileOutOfRange
	}
	p := s.sim.Normalize(s.cfg, numCrews)
	key := cache.ProfileCostKey(s.profHashes[profileID])
	fetch := func(ctx context.Context) (int64, bool, error) {
		return s.profileRepo.GetCostByProfileHash(ctx, nil, s.profHashes[profileID])
	}
	cost, found, err := s.layer.GetInt64(ctx, key, 0, fetch)
	if err != nil {
		return 0, err
	}
	if found {
		return cost, nil
	}
	if _, err := s.getOrBuild(ctx, p, numCrews); err != nil {
		return 0, err
	}
	cost, found, err = s.layer.GetInt64(ctx, key, 0, fetch)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("profile cost missing after simulation")
	}
	return cost, nil
}

// ProfileOverviewDay is the cost of the ice one profile consumed on the
// given day.
func (s *wallService) ProfileOverviewDay(ctx context.Context, profileID, day, numCrews int) (int64, error) {
	ice, err := s.ProfileDayIce(ctx, profileID, day, numCrews)
	if err != nil {
		return 0, err
	}
	return ice * s.costRate, nil
}

func (s *wallService) ProfileDayIce(ctx context.Context, profileID, day, numCrews int) (int64, error) {
	if profileID < 1 || profileID > len(s.cfg) {
		return 0, ErrProfileOutOfRange
	}
	p := s.sim.Normalize(s.cfg, numCrews)
	summary, err := s.getOrBuild(ctx, p, numCrews)
	if err != nil {
		return 0, err
	}
	if day < 1 || day > summary.ConstructionDays {
		return 0, ErrDayOutOfRange
	}
	concurrent := p.NumCrews > 0
	key := cache.DailyUsageKey(s.configHash, p.NumCrews, s.profHashes[profileID], day, profileID, concurrent)
	fetch := func(ctx context.Context) (int64, bool, error) {
		wall, err := s.wallRepo.GetByHashAndCrews(ctx, nil, s.configHash, p.NumCrews)
		if err != nil || wall == nil {
			return 0, false, err
		}
		var rowProfileID *int
		if concurrent {
			rowProfileID = &profileID
		}
		profile, err := s.profileRepo.GetForWall(ctx, nil, wall.ID, s.profHashes[profileID], rowProfileID)
		if err != nil {
			return 0, false, err
		}
		if profile == nil {
			return 0, true, nil
		}
		ice, _, err := s.progressRepo.GetIceUsed(ctx, nil, profile.ID, day)
		if err != nil {
			return 0, false, err
		}
		return ice, true, nil
	}
	ice, _, err := s.layer.GetInt64(ctx, key, s.transientTTL, fetch)
	return ice, err
}

func (s *wallService) ConfigStatus(ctx context.Context, configHash string) (*types.WallConfigRecord, error) {
	record, err := s.configRepo.GetByHash(ctx, nil, configHash)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrNotFound
	}
	return record, nil
}

// getOrBuild returns the persisted summary for the normalized crew count,
// simulating if no wall row exists yet.
func (s *wallService) getOrBuild(ctx context.Context, p wallsim.Params, numCrews int) (*WallSummary, error) {
	wall, err := s.wallRepo.GetByHashAndCrews(ctx, nil, s.configHash, p.NumCrews)
	if err != nil {
		return nil, err
	}
	if wall != nil {
		return summaryOf(wall), nil
	}
	return s.EnsureWall(ctx, s.cfg, numCrews, nil)
}

// EnsureWall simulates and persists one (configuration, crew count) wall if
// it does not exist yet. Concurrent callers for the same wall collapse into
// one in-process run; cross-process races are resolved by the creation lock
// and the unique wall constraint.
func (s *wallService) EnsureWall(ctx context.Context, cfg wallsim.Config, numCrews int, abort *wallsim.Abort) (*WallSummary, error) {
	hash := s.configHash
	if !sameConfig(cfg, s.cfg) {
		var err error
		hash, err = confighash.Hash(cfg)
		if err != nil {
			return nil, fmt.Errorf("hash wall config: %w", err)
		}
	}
	p := s.sim.Normalize(cfg, numCrews)
	flightKey := fmt.Sprintf("%s_%d", hash, p.NumCrews)
	v, err, _ := s.flight.Do(flightKey, func() (interface{}, error) {
		return s.ensureWall(ctx, cfg, hash, p, abort)
	})
	if err != nil {
		return nil, err
	}
	return v.(*WallSummary), nil
}

func (s *wallService) ensureWall(ctx context.Context, cfg wallsim.Config, hash string, p wallsim.Params, abort *wallsim.Abort) (*WallSummary, error) {
	wall, err := s.wallRepo.GetByHashAndCrews(ctx, nil, hash, p.NumCrews)
	if err != nil {
		return nil, err
	}
	if wall != nil {
		return summaryOf(wall), nil
	}

	record, err := s.ensureConfigRecord(ctx, cfg, hash)
	if err != nil {
		return nil, err
	}
	if record.DeletionInitiated {
		return nil, ErrDeletionInProgress
	}

	lockKey := cache.WallCreationLockKey(hash, p.NumCrews)
	acquired, err := s.pgLock.TryAcquire(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("acquire creation lock: %w", err)
	}
	if !acquired {
		return nil, ErrBeingInitialized
	}
	defer func() {
		if relErr := s.pgLock.Release(ctx, lockKey); relErr != nil {
			s.log.Warn("Creation lock release failed", "key", lockKey, "error", relErr)
		}
	}()

	// Another process may have finished while we waited for the lock.
	wall, err = s.wallRepo.GetByHashAndCrews(ctx, nil, hash, p.NumCrews)
	if err != nil {
		return nil, err
	}
	if wall != nil {
		return summaryOf(wall), nil
	}

	result, err := s.sim.Run(ctx, p, abort)
	if errors.Is(err, wallsim.ErrAborted) {
		return nil, err
	}
	if errors.Is(err, wallsim.ErrConfiguration) {
		return nil, err
	}
	if err != nil {
		errID := s.errs.NewErrorID(ctx)
		s.log.Error("Simulation failed", "error_id", errID, "config_hash", hash, "num_crews", p.NumCrews, "error", err)
		if stErr := s.configRepo.SetStatus(ctx, nil, record.ID, types.WallConfigStatusError); stErr != nil {
			s.log.Warn("Status update after failure failed", "error", stErr)
		}
		return nil, fmt.Errorf("simulation failed (ref %s): %w", errID, err)
	}

	var entries []cache.Entry
	var created *types.Wall
	txErr := s.tx.InTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.configRepo.GetByHashForUpdate(ctx, tx, hash)
		if err != nil {
			return err
		}
		if locked == nil || locked.DeletionInitiated {
			return ErrDeletionInProgress
		}
		created, entries, err = s.persistResult(ctx, tx, locked, cfg, hash, p, result)
		if err != nil {
			return err
		}
		if locked.Status == types.WallConfigStatusInitialized || locked.Status == types.WallConfigStatusInProgress {
			if err := s.configRepo.SetStatus(ctx, tx, locked.ID, types.WallConfigStatusPartiallyCalculated); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		if repos.IsUniqueViolation(txErr) {
			wall, err = s.wallRepo.GetByHashAndCrews(ctx, nil, hash, p.NumCrews)
			if err == nil && wall != nil {
				return summaryOf(wall), nil
			}
		}
		return nil, txErr
	}

	s.layer.CommitDeferred(ctx, s.redisLock, lockKey, entries)
	return summaryOf(created), nil
}

func (s *wallService) ensureConfigRecord(ctx context.Context, cfg wallsim.Config, hash string) (*types.WallConfigRecord, error) {
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

// persistResult writes the wall, its profiles and their daily progress in
// the caller's transaction and returns the fast-tier entries to commit
// after it succeeds. Sequential unlimited builds share one profile row per
// distinct profile configuration; crewed builds keep a row per position
// because duplicate profiles may progress on different days.
func (s *wallService) persistResult(ctx context.Context, tx *gorm.DB, record *types.WallConfigRecord, cfg wallsim.Config, hash string, p wallsim.Params, result *wallsim.Result) (*types.Wall, []cache.Entry, error) {
	wall := &types.Wall{
		WallConfigID:     record.ID,
		ConfigHash:       hash,
		NumCrews:         p.NumCrews,
		TotalIceAmount:   result.TotalIce,
		TotalCost:        result.TotalCost,
		ConstructionDays: result.ConstructionDays,
	}
	wall, err := s.wallRepo.Create(ctx, tx, wall)
	if err != nil {
		return nil, nil, err
	}

	hashes := s.profHashes
	if !sameConfig(cfg, s.cfg) {
		if hashes, err = confighash.ProfileHashes(cfg); err != nil {
			return nil, nil, fmt.Errorf("hash wall profiles: %w", err)
		}
	}

	dedup := p.NumCrews == 0
	profileRows := make(map[int]*types.WallProfile, len(cfg))
	byHash := make(map[string]*types.WallProfile, len(cfg))
	var newProfiles []*types.WallProfile
	for i := range cfg {
		profileID := i + 1
		profileHash := hashes[profileID]
		if dedup {
			if existing, ok := byHash[profileHash]; ok {
				profileRows[profileID] = existing
				continue
			}
		}
		row := &types.WallProfile{
			WallID:            wall.ID,
			ProfileConfigHash: profileHash,
			Cost:              result.ProfileCosts[profileID],
		}
		if !dedup {
			id := profileID
			row.ProfileID = &id
		}
		profileRows[profileID] = row
		byHash[profileHash] = row
		newProfiles = append(newProfiles, row)
	}
	if _, err := s.profileRepo.Create(ctx, tx, newProfiles); err != nil {
		return nil, nil, err
	}

	var progressRows []*types.WallProfileProgress
	seen := make(map[string]bool)
	for day, perProfile := range result.Daily {
		for profileID, ice := range perProfile {
			row := profileRows[profileID]
			if row == nil {
				continue
			}
			// Deduped profiles share a row; write its series once.
			dedupKey := fmt.Sprintf("%s_%d", row.ID, day)
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true
			progressRows = append(progressRows, &types.WallProfileProgress{
				WallProfileID: row.ID,
				Day:           day,
				IceUsed:       ice,
			})
		}
	}
	if _, err := s.progressRepo.Create(ctx, tx, progressRows); err != nil {
		return nil, nil, err
	}

	concurrent := p.NumCrews > 0
	entries := []cache.Entry{{Key: cache.WallCostKey(hash), Value: result.TotalCost}}
	for profileHash, row := range byHash {
		entries = append(entries, cache.Entry{Key: cache.ProfileCostKey(profileHash), Value: row.Cost})
	}
	for day, perProfile := range result.Daily {
		var dayTotal int64
		for profileID, ice := range perProfile {
			dayTotal += ice
			key := cache.DailyUsageKey(hash, p.NumCrews, hashes[profileID], day, profileID, concurrent)
			entries = append(entries, cache.Entry{Key: key, Value: ice, TTL: s.transientTTL})
		}
		entries = append(entries, cache.Entry{
			Key:   cache.DayTotalKey(hash, p.NumCrews, day),
			Value: dayTotal,
			TTL:   s.transientTTL,
		})
	}
	return wall, entries, nil
}

func summaryOf(wall *types.Wall) *WallSummary {
	return &WallSummary{
		ConfigHash:       wall.ConfigHash,
		NumCrews:         wall.NumCrews,
		TotalIce:         wall.TotalIceAmount,
		TotalCost:        wall.TotalCost,
		ConstructionDays: wall.ConstructionDays,
	}
}

func sameConfig(a, b wallsim.Config) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
