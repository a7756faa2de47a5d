// Package scoring maps (agent, item) pairs to desirability scores. Rough is
// the cheap pre-filter over static definition properties; Full layers in
// quality, condition, and skill alignment. Both are pure: identical inputs
// always produce identical scores.
package scoring

import "github.com/Snusene/AutoArm-sub008/internal/sim"

// FullMultiplierFloor and FullMultiplierCeil clamp the ratio Full/Rough.
// The floor is what makes rough-score pruning safe: Rough can never exceed
// Full by more than 1/floor, so a scheduler pruning with slack >= 1/floor
// never discards a candidate that full scoring would have accepted.
const (
	FullMultiplierFloor = 0.5
	FullMultiplierCeil  = 2.0
)

// Rough returns the cheap pre-filter score: the weapon's static power
// scaled by the agent's class affinity. No per-instance properties are
// consulted, so results can be shared across items of one kind.
func Rough(a *sim.Agent, it *sim.Item) float64 {
	return RoughDef(a, it.Def)
}

// RoughDef scores a weapon definition for an agent.
func RoughDef(a *sim.Agent, def *sim.ItemDef) float64 {
	if def == nil {
		return 0
	}
	base := def.BaseDamage * (1 + def.Range/100)
	return base * classAffinity(a, def.Class)
}

// Full returns the authoritative score: rough base adjusted by quality,
// condition, and skill alignment, with the combined multiplier clamped so
// the pruning bound holds for every (agent, item) pair.
func Full(a *sim.Agent, it *sim.Item) float64 {
	rough := Rough(a, it)
	if rough <= 0 {
		return 0
	}

	mult := conditionMultiplier(it) * skillMultiplier(a, it.Def.Class)
	if !a.Traits.Ascetic {
		mult *= qualityMultiplier(it.Quality)
	}

	if mult < FullMultiplierFloor {
		mult = FullMultiplierFloor
	}
	if mult > FullMultiplierCeil {
		mult = FullMultiplierCeil
	}
	return rough * mult
}

// classAffinity weighs a weapon class against the agent's combat profile
// and traits. Static inputs only.
func classAffinity(a *sim.Agent, class sim.WeaponClass) float64 {
	switch class {
	case sim.ClassMelee:
		affinity := 0.7 + a.Skills.Melee/20*0.6
		if a.Traits.Brawler {
			affinity *= 1.5
		}
		return affinity
	case sim.ClassRanged:
		affinity := 0.7 + a.Skills.Shooting/20*0.6
		if a.Traits.Brawler {
			affinity *= 0.1
		}
		if a.Traits.TriggerShy {
			affinity *= 0.6
		}
		return affinity
	default:
		return 0
	}
}

func qualityMultiplier(q sim.Quality) float64 {
	switch q {
	case sim.QualityAwful:
		return 0.8
	case sim.QualityPoor:
		return 0.9
	case sim.QualityNormal:
		return 1.0
	case sim.QualityGood:
		return 1.15
	case sim.QualityExcellent:
		return 1.25
	case sim.QualityMasterwork:
		return 1.45
	case sim.QualityLegendary:
		return 1.65
	default:
		return 1.0
	}
}

// conditionMultiplier degrades worn items. Floor keeps a battered weapon
// worth something — it still shoots.
func conditionMultiplier(it *sim.Item) float64 {
	hp := it.HitPoints
	if hp < 0 {
		hp = 0
	}
	if hp > 1 {
		hp = 1
	}
	return 0.6 + 0.4*hp
}

// skillMultiplier rewards alignment between the weapon class and the
// agent's trained skill.
func skillMultiplier(a *sim.Agent, class sim.WeaponClass) float64 {
	var skill float64
	switch class {
	case sim.ClassMelee:
		skill = a.Skills.Melee
	case sim.ClassRanged:
		skill = a.Skills.Shooting
	}
	if skill < 0 {
		skill = 0
	}
	if skill > 20 {
		skill = 20
	}
	return 0.85 + skill/20*0.3
}

// CurrentScore returns the agent's equipped weapon's full score, or 0 when
// unarmed. Unarmed agents accept any positive candidate.
func CurrentScore(a *sim.Agent) float64 {
	if a.Equipped == nil {
		return 0
	}
	return Full(a, a.Equipped)
}
