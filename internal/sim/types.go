// Package sim provides the host-simulation side of the auto-arm core: the
// agent and item data model, the authoritative world state, reservation
// bookkeeping, and the equip/drop/stow manipulation primitives the command
// layer drives. The decision core reads this state but never owns entity
// lifetime.
package sim

import (
	"github.com/Snusene/AutoArm-sub008/internal/world"
)

// AgentID is a stable unique identifier for an agent.
type AgentID uint64

// FactionID identifies the faction an agent belongs to. The colony faction
// is always 1; 0 means factionless.
type FactionID uint32

const FactionColony FactionID = 1

// SkillSet tracks the combat capabilities relevant to weapon scoring.
type SkillSet struct {
	Melee    float64 `json:"melee"`    // 0.0–20.0
	Shooting float64 `json:"shooting"` // 0.0–20.0
}

// TraitFlags are static-ish agent properties that bias weapon choice.
type TraitFlags struct {
	Brawler     bool `json:"brawler"`      // strongly prefers melee
	TriggerShy  bool `json:"trigger_shy"`  // penalizes ranged
	Ascetic     bool `json:"ascetic"`      // ignores quality bonuses
	NonViolent  bool `json:"non_violent"`  // never equips weapons
}

// Agent is a pawn capable of holding one primary weapon and carrying
// secondary sidearms. Created and destroyed by the simulation; the decision
// core purges its per-agent caches when an agent becomes invalid.
type Agent struct {
	ID   AgentID `json:"id"`
	Name string  `json:"name"`

	Faction  FactionID `json:"faction"`
	Age      int       `json:"age"`       // sim-years
	BodySize float64   `json:"body_size"` // 1.0 = baseline adult

	Region world.RegionID `json:"region"`
	Cell   world.Cell     `json:"cell"`

	Skills SkillSet   `json:"skills"`
	Traits TraitFlags `json:"traits"`

	// Equipped is the primary weapon, nil when unarmed.
	Equipped *Item `json:"-"`
	// Inventory holds carried secondary weapons.
	Inventory []*Item `json:"-"`

	// ForcedWeapon marks the current primary as non-replaceable by policy
	// (player pinned it). Survives save/load.
	ForcedWeapon bool `json:"forced_weapon"`

	// AllowedClasses restricts which weapon classes this agent may use.
	// Empty means unrestricted.
	AllowedClasses []WeaponClass `json:"allowed_classes,omitempty"`

	// Drafted agents are in combat and never re-evaluate equipment.
	Drafted bool `json:"drafted"`

	Alive   bool `json:"alive"`
	Spawned bool `json:"spawned"`
}

// Valid reports whether the agent may participate in decisions at all.
func (a *Agent) Valid() bool {
	return a != nil && a.Alive && a.Spawned
}

// ClassAllowed reports whether the agent's allow-list permits the class.
func (a *Agent) ClassAllowed(c WeaponClass) bool {
	if len(a.AllowedClasses) == 0 {
		return true
	}
	for _, allowed := range a.AllowedClasses {
		if allowed == c {
			return true
		}
	}
	return false
}

// CarriedCount returns the number of secondary weapons in inventory.
func (a *Agent) CarriedCount() int {
	return len(a.Inventory)
}

// Fingerprint summarizes the attributes that feed scoring. The scheduler
// compares fingerprints to skip agents whose relevant state has not changed
// since their last full evaluation.
func (a *Agent) Fingerprint() uint64 {
	// FNV-1a over the scoring-relevant fields. Skills are quantized to
	// tenths so continuous drift does not defeat the skip path.
	const prime = 1099511628211
	h := uint64(14695981039346656037)
	mix := func(v uint64) {
		h ^= v
		h *= prime
	}
	mix(uint64(a.ID))
	mix(uint64(a.Skills.Melee * 10))
	mix(uint64(a.Skills.Shooting * 10))
	mix(uint64(a.BodySize * 100))
	mix(uint64(a.Age))
	var traits uint64
	if a.Traits.Brawler {
		traits |= 1
	}
	if a.Traits.TriggerShy {
		traits |= 2
	}
	if a.Traits.Ascetic {
		traits |= 4
	}
	if a.Traits.NonViolent {
		traits |= 8
	}
	if a.ForcedWeapon {
		traits |= 16
	}
	if a.Drafted {
		traits |= 32
	}
	mix(traits)
	mix(uint64(len(a.AllowedClasses)))
	for _, c := range a.AllowedClasses {
		mix(uint64(c))
	}
	if a.Equipped != nil {
		mix(uint64(a.Equipped.Def.Kind))
		mix(uint64(a.Equipped.Quality))
	} else {
		mix(0xfeed)
	}
	return h
}
