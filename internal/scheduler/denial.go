package scheduler

// Denial explains why an evaluation produced no command. Denial is a
// routine outcome, not an error: most agents most ticks are fine as they
// are.
type Denial uint8

const (
	DenialNone Denial = iota
	DenialDisabled
	DenialInvalidAgent
	DenialDrafted
	DenialBudgetExhausted
	DenialAlreadyProcessed
	DenialOnCooldown
	DenialForcedRetention
	DenialManaged
	DenialUnchanged
	DenialIndexCold
	DenialNoCandidates
	DenialNoUpgrade
	DenialVetoed
	DenialContended
	DenialError
)

func (d Denial) String() string {
	switch d {
	case DenialNone:
		return "none"
	case DenialDisabled:
		return "disabled"
	case DenialInvalidAgent:
		return "invalid-agent"
	case DenialDrafted:
		return "drafted"
	case DenialBudgetExhausted:
		return "budget-exhausted"
	case DenialAlreadyProcessed:
		return "already-processed"
	case DenialOnCooldown:
		return "on-cooldown"
	case DenialForcedRetention:
		return "forced-retention"
	case DenialManaged:
		return "managed-by-provider"
	case DenialUnchanged:
		return "unchanged"
	case DenialIndexCold:
		return "index-cold"
	case DenialNoCandidates:
		return "no-candidates"
	case DenialNoUpgrade:
		return "no-upgrade"
	case DenialVetoed:
		return "vetoed"
	case DenialContended:
		return "contended"
	case DenialError:
		return "error"
	default:
		return "unknown"
	}
}

// Tier is the acceptance bucket for a candidate relative to the agent's
// current score.
type Tier uint8

const (
	TierNone Tier = iota
	TierGood
	TierGreat
	TierAmazing
)

func (t Tier) String() string {
	switch t {
	case TierGood:
		return "good"
	case TierGreat:
		return "great"
	case TierAmazing:
		return "amazing"
	default:
		return "none"
	}
}
