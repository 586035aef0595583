package wallsim

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type Mode string

const (
	Sequential Mode = "sequential"
	Concurrent Mode = "concurrent"
)

var (
	// ErrConfiguration marks malformed or out-of-bounds simulation input.
	// Always surfaced to the caller, never retried.
	ErrConfiguration = errors.New("invalid wall configuration")
	// ErrAborted is returned when a run was interrupted by the abort
	// signal before completing. It is an outcome, not a failure.
	ErrAborted = errors.New("simulation interrupted by abort signal")
)

// Config is an ordered list of wall profiles, each an ordered list of
// initial section heights in feet.
type Config [][]int

func (c Config) SectionsCount() int {
	total := 0
	for _, profile := range c {
		total += len(profile)
	}
	return total
}

func (c Config) Clone() Config {
	out := make(Config, len(c))
	for i, profile := range c {
		out[i] = append([]int(nil), profile...)
	}
	return out
}

// LoadConfigFile reads a wall configuration from a JSON file. Bounds are not
// checked here; the simulator validates on every run.
func LoadConfigFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wall config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return cfg, nil
}

// Limits carries the construction constants and the crew/section ceilings
// that gate the concurrent algorithm.
type Limits struct {
	MaxSectionHeight      int
	IcePerFoot            int64
	IceCostPerCubicYard   int64
	MaxProfileLength      int
	MaxProfiles           int
	MaxConcurrentCrews    int
	MaxConcurrentSections int
}

type Params struct {
	Config   Config
	NumCrews int
	Mode     Mode
}

// DailyUsage maps day number (1-based) to per-profile ice usage for that day.
// In concurrent mode a missing profile entry for a day means no crew worked
// that profile that day; it is not an error.
type DailyUsage map[int]map[int]int64

type Result struct {
	TotalIce         int64
	TotalCost        int64
	ConstructionDays int
	ProfileIce       map[int]int64
	ProfileCosts     map[int]int64
	Daily            DailyUsage
}
