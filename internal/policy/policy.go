// Package policy provides the read-only settings surface for the auto-arm
// core. Every numeric knob the scheduler, validator, and command layer
// consult lives here so tuning is configuration, not code.
package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings holds all tuning for the decision core. Zero value is not usable;
// start from Default and override.
type Settings struct {
	Enabled bool `yaml:"enabled"`

	// Acceptance thresholds, expressed as multiples of the current item's
	// full score. A candidate below UpgradeThreshold is never accepted.
	UpgradeThreshold float64 `yaml:"upgrade_threshold"` // Good tier floor, >= 1.0
	GreatThreshold   float64 `yaml:"great_threshold"`
	AmazingThreshold float64 `yaml:"amazing_threshold"`

	// PruneSlack widens the rough-score pruning bound: a candidate is only
	// skipped when rough*PruneSlack cannot beat the best full score so far.
	PruneSlack float64 `yaml:"prune_slack"`

	// Per-tick and per-search work budgets.
	AgentsPerTick      int `yaml:"agents_per_tick"`       // agents evaluated per tick
	FullScoresPerScan  int `yaml:"full_scores_per_scan"`  // full-score computations per search
	CandidateCap       int `yaml:"candidate_cap"`         // candidates pulled from the index per search

	// Cooldowns and throttles, in ticks.
	EquipCooldownTicks   uint64 `yaml:"equip_cooldown_ticks"`   // after an equip, no re-evaluation
	AttemptThrottleTicks uint64 `yaml:"attempt_throttle_ticks"` // same-item retry suppression
	DenylistTicks        uint64 `yaml:"denylist_ticks"`         // temporary denylist duration

	// Validation cache lifetimes, in ticks.
	ShortNegativeTTL uint64 `yaml:"short_negative_ttl"` // ownership-adjacent negatives
	LongNegativeTTL  uint64 `yaml:"long_negative_ttl"`  // structural negatives (body size, faction)

	// FreshLoadWindow: a store with zero entries past this tick is treated
	// as resuming from a different save and rebuilt from scratch.
	FreshLoadWindowTicks uint64 `yaml:"fresh_load_window_ticks"`

	// Search and swap behavior.
	SearchStorageOnly      bool `yaml:"search_storage_only"`       // restrict candidates to storage
	AllowForcedUpgrades    bool `yaml:"allow_forced_upgrades"`     // same-type upgrades of forced items
	AutoEquipSecondary     bool `yaml:"auto_equip_secondary"`      // sidearm pickup via compat providers
	DropBeforePickup       bool `yaml:"drop_before_pickup"`        // swap ordering policy
	AllowMinors            bool `yaml:"allow_minors"`              // under-age agents may equip
	MinorMinimumAge        int  `yaml:"minor_minimum_age"`
	SecondaryInventoryCap  int  `yaml:"secondary_inventory_cap"`   // carried sidearm slots
}

// Default returns the tuning used when no settings file is supplied.
// Values are chosen so the acceptance and cooldown behavior is stable:
// a 5% upgrade floor, four-hour equip cooldown at one tick per sim-second.
func Default() Settings {
	return Settings{
		Enabled:               true,
		UpgradeThreshold:      1.05,
		GreatThreshold:        1.5,
		AmazingThreshold:      2.0,
		PruneSlack:            2.0,
		AgentsPerTick:         20,
		FullScoresPerScan:     40,
		CandidateCap:          200,
		EquipCooldownTicks:    240,
		AttemptThrottleTicks:  120,
		DenylistTicks:         600,
		ShortNegativeTTL:      120,
		LongNegativeTTL:       3600,
		FreshLoadWindowTicks:  300,
		SearchStorageOnly:     false,
		AllowForcedUpgrades:   false,
		AutoEquipSecondary:    true,
		DropBeforePickup:      true,
		AllowMinors:           false,
		MinorMinimumAge:       13,
		SecondaryInventoryCap: 2,
	}
}

// Load reads a YAML settings file, layered over Default so partial files
// only override what they name.
func Load(path string) (Settings, error) {
	s := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

// Validate rejects settings that would break scheduler invariants.
func (s Settings) Validate() error {
	if s.UpgradeThreshold < 1.0 {
		return fmt.Errorf("upgrade_threshold %.3f below 1.0", s.UpgradeThreshold)
	}
	if s.GreatThreshold < s.UpgradeThreshold {
		return fmt.Errorf("great_threshold %.3f below upgrade_threshold %.3f", s.GreatThreshold, s.UpgradeThreshold)
	}
	if s.AmazingThreshold < s.GreatThreshold {
		return fmt.Errorf("amazing_threshold %.3f below great_threshold %.3f", s.AmazingThreshold, s.GreatThreshold)
	}
	if s.PruneSlack < 1.0 {
		return fmt.Errorf("prune_slack %.3f below 1.0", s.PruneSlack)
	}
	if s.AgentsPerTick < 1 {
		return fmt.Errorf("agents_per_tick %d below 1", s.AgentsPerTick)
	}
	if s.FullScoresPerScan < 1 {
		return fmt.Errorf("full_scores_per_scan %d below 1", s.FullScoresPerScan)
	}
	if s.CandidateCap < 1 {
		return fmt.Errorf("candidate_cap %d below 1", s.CandidateCap)
	}
	if s.SecondaryInventoryCap < 0 {
		return fmt.Errorf("secondary_inventory_cap %d negative", s.SecondaryInventoryCap)
	}
	return nil
}
