package wallsim

import (
	"context"
	"fmt"

	"github.com/wallforge/wallsim-backend/internal/logger"
)

type Simulator struct {
	limits Limits
	log    *logger.Logger
}

func NewSimulator(limits Limits, baseLog *logger.Logger) *Simulator {
	return &Simulator{
		limits: limits,
		log:    baseLog.With("service", "Simulator"),
	}
}

func (s *Simulator) Limits() Limits { return s.limits }

// Normalize resolves the effective simulation mode and crew count.
// numCrews == 0 or numCrews >= total sections means every section gets a
// dedicated crew, which is the sequential baseline. Crew counts or section
// counts above the configured concurrency ceilings also fall back to the
// sequential algorithm, but keep the crew limit so daily progress still
// reflects the requested capacity.
func (s *Simulator) Normalize(cfg Config, numCrews int) Params {
	sections := cfg.SectionsCount()

	switch {
	case numCrews == 0, numCrews >= sections:
		return Params{Config: cfg, NumCrews: 0, Mode: Sequential}
	case numCrews > s.limits.MaxConcurrentCrews, sections > s.limits.MaxConcurrentSections:
		return Params{Config: cfg, NumCrews: numCrews, Mode: Sequential}
	default:
		return Params{Config: cfg, NumCrews: numCrews, Mode: Concurrent}
	}
}

// ValidateConfig re-checks the configuration bounds. Callers are expected to
// hand over already-validated configurations; this is the defensive pass.
func (s *Simulator) ValidateConfig(cfg Config) error {
	if len(cfg) > s.limits.MaxProfiles {
		return fmt.Errorf("%w: %d profiles exceed the maximum of %d", ErrConfiguration, len(cfg), s.limits.MaxProfiles)
	}
	for i, profile := range cfg {
		if len(profile) > s.limits.MaxProfileLength {
			return fmt.Errorf("%w: profile %d has %d sections, maximum is %d", ErrConfiguration, i+1, len(profile), s.limits.MaxProfileLength)
		}
		for j, height := range profile {
			if height < 0 || height > s.limits.MaxSectionHeight {
				return fmt.Errorf("%w: profile %d section %d height %d outside [0, %d]", ErrConfiguration, i+1, j+1, height, s.limits.MaxSectionHeight)
			}
		}
	}
	return nil
}

// Run executes one simulation. The abort signal may be nil. An interrupted
// run returns ErrAborted and no result; partial progress is discarded.
func (s *Simulator) Run(ctx context.Context, p Params, abort *Abort) (*Result, error) {
	if err := s.ValidateConfig(p.Config); err != nil {
		return nil, err
	}

	switch p.Mode {
	case Sequential:
		return s.runSequential(ctx, p, abort)
	case Concurrent:
		sections := p.Config.SectionsCount()
		if p.NumCrews < 1 || p.NumCrews > sections {
			return nil, fmt.Errorf("%w: num_crews %d out of range for a concurrent run over %d sections", ErrConfiguration, p.NumCrews, sections)
		}
		return s.runConcurrent(ctx, p, abort)
	default:
		return nil, fmt.Errorf("%w: unknown simulation mode %q", ErrConfiguration, p.Mode)
	}
}

func record(daily DailyUsage, day, profileID int, ice int64) {
	perProfile := daily[day]
	if perProfile == nil {
		perProfile = map[int]int64{}
		daily[day] = perProfile
	}
	perProfile[profileID] += ice
}

func (s *Simulator) finalize(daily DailyUsage) *Result {
	res := &Result{
		Daily:        daily,
		ProfileIce:   map[int]int64{},
		ProfileCosts: map[int]int64{},
	}
	for day, perProfile := range daily {
		if day > res.ConstructionDays {
			res.ConstructionDays = day
		}
		for profileID, ice := range perProfile {
			res.TotalIce += ice
			res.ProfileIce[profileID] += ice
		}
	}
	for profileID, ice := range res.ProfileIce {
		res.ProfileCosts[profileID] = ice * s.limits.IceCostPerCubicYard
	}
	res.TotalCost = res.TotalIce * s.limits.IceCostPerCubicYard
	return res
}
