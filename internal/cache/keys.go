package cache

import "fmt"

// Cache keys are derived from configuration identity, never from request
// identity, so independent simulations can never collide. Three shapes:
// whole-wall total, per-profile total, per-day-per-profile usage.

func WallCostKey(configHash string) string {
	return "wall_cost_" + configHash
}

func ProfileCostKey(profileHash string) string {
	return "wall_prfl_cost_" + profileHash
}

// DailyUsageKey identifies one profile's ice usage on one day of one
// simulation. In concurrent mode the profile id disambiguates duplicate
// profile configurations, whose daily progress may differ between crews.
func DailyUsageKey(configHash string, numCrews int, profileHash string, day int, profileID int, concurrent bool) string {
	key := fmt.Sprintf("dly_ice_usg_%s_%d_%s_%d", configHash, numCrews, profileHash, day)
	if concurrent {
		key += fmt.Sprintf("_%d", profileID)
	}
	return key
}

// DayTotalKey identifies the summed ice usage across all profiles for one
// day of one simulation.
func DayTotalKey(configHash string, numCrews int, day int) string {
	return fmt.Sprintf("dly_ttl_%s_%d_%d", configHash, numCrews, day)
}

// WallCreationLockKey guards first-writer-wins creation of the durable rows
// for one (configuration, crew count) simulation.
func WallCreationLockKey(configHash string, numCrews int) string {
	return fmt.Sprintf("wall_crtn_%s_%d", configHash, numCrews)
}

// DeletionLockKey guards the idempotent deletion path for a configuration.
func DeletionLockKey(configHash string) string {
	return "wall_config_deletion_" + configHash
}

// ConfigPrefix matches every fast-tier entry derived from a configuration,
// used for best-effort cleanup on deletion.
func ConfigPrefixes(configHash string) []string {
	return []string{
		"wall_cost_" + configHash,
		"dly_ice_usg_" + configHash,
		"dly_ttl_" + configHash,
	}
}
