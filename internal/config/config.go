package config

import (
	"time"

	"github.com/wallforge/wallsim-backend/internal/logger"
	"github.com/wallforge/wallsim-backend/internal/utils"
)

// Simulation holds the construction simulation parameters. All of them are
// environment-driven with the same defaults the deployment scripts assume.
type Simulation struct {
	// Target height of every wall section, in feet.
	MaxSectionHeight int
	// Cubic yards of ice used per one foot of height increase.
	IcePerFoot int64
	// Gold Dragon coins per cubic yard of ice.
	IceCostPerCubicYard int64
	// Upper bound on sections per profile.
	MaxProfileLength int
	// Upper bound on profiles per wall configuration.
	MaxProfiles int
	// Crew/section ceilings above which a concurrent request is
	// downgraded to the sequential algorithm.
	MaxConcurrentCrews    int
	MaxConcurrentSections int
}

// Cache holds fast-tier tuning.
type Cache struct {
	// Expiry for per-day usage entries. Wall and profile totals are
	// written without expiry.
	TransientTTL time.Duration
}

// Orchestration holds batch worker tuning.
type Orchestration struct {
	// How long a deletion request waits for in-flight simulations to
	// honor the abort signal before giving up.
	AbortWaitPeriod time.Duration
	// Claim-loop cadence of the batch worker.
	WorkerTick time.Duration
	// How often an in-flight batch re-reads the deletion flag.
	DeletionPollInterval time.Duration
	MaxAttempts          int
	RetryDelay           time.Duration
	StaleRunning         time.Duration
}

type Config struct {
	Simulation     Simulation
	Cache          Cache
	Orchestration  Orchestration
	WallConfigPath string
}

func Load(log *logger.Logger) *Config {
	return &Config{
		Simulation: Simulation{
			MaxSectionHeight:      utils.GetEnvAsInt("MAX_SECTION_HEIGHT", 30, log),
			IcePerFoot:            int64(utils.GetEnvAsInt("ICE_PER_FOOT", 195, log)),
			IceCostPerCubicYard:   int64(utils.GetEnvAsInt("ICE_COST_PER_CUBIC_YARD", 1900, log)),
			MaxProfileLength:      utils.GetEnvAsInt("MAX_PROFILE_LENGTH", 2000, log),
			MaxProfiles:           utils.GetEnvAsInt("MAX_PROFILES", 300, log),
			MaxConcurrentCrews:    utils.GetEnvAsInt("MAX_CONCURRENT_NUM_CREWS", 250, log),
			MaxConcurrentSections: utils.GetEnvAsInt("MAX_CONCURRENT_SECTIONS", 100, log),
		},
		Cache: Cache{
			TransientTTL: time.Duration(utils.GetEnvAsInt("REDIS_CACHE_TRANSIENT_TTL", 3600, log)) * time.Second,
		},
		Orchestration: Orchestration{
			AbortWaitPeriod:      time.Duration(utils.GetEnvAsInt("ABORT_WAIT_PERIOD", 60, log)) * time.Second,
			WorkerTick:           time.Duration(utils.GetEnvAsInt("BATCH_WORKER_TICK_MS", 1000, log)) * time.Millisecond,
			DeletionPollInterval: time.Duration(utils.GetEnvAsInt("DELETION_POLL_INTERVAL_MS", 1000, log)) * time.Millisecond,
			MaxAttempts:          utils.GetEnvAsInt("BATCH_MAX_ATTEMPTS", 5, log),
			RetryDelay:           time.Duration(utils.GetEnvAsInt("BATCH_RETRY_DELAY", 30, log)) * time.Second,
			StaleRunning:         time.Duration(utils.GetEnvAsInt("BATCH_STALE_RUNNING", 120, log)) * time.Second,
		},
		WallConfigPath: utils.GetEnv("WALL_CONFIG_PATH", "wall_config.json", log),
	}
}
