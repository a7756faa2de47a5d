package eligibility

// Reason is the fixed denial taxonomy. Reasons are stable across releases;
// telemetry and tests match on them.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonDestroyed
	ReasonWrongRegion
	ReasonOutOfBounds
	ReasonForbidden
	ReasonOwnedByOther
	ReasonBlacklisted
	ReasonBodySizeTooSmall
	ReasonFactionRestricted
	ReasonDuplicateTypeNoUpgrade
	ReasonQuestItem
	ReasonOnCooldownDenylist
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonDestroyed:
		return "destroyed"
	case ReasonWrongRegion:
		return "wrong-region"
	case ReasonOutOfBounds:
		return "out-of-bounds"
	case ReasonForbidden:
		return "forbidden"
	case ReasonOwnedByOther:
		return "owned-by-other"
	case ReasonBlacklisted:
		return "blacklisted"
	case ReasonBodySizeTooSmall:
		return "body-size-too-small"
	case ReasonFactionRestricted:
		return "faction-restricted"
	case ReasonDuplicateTypeNoUpgrade:
		return "duplicate-type-no-upgrade"
	case ReasonQuestItem:
		return "quest-item"
	case ReasonOnCooldownDenylist:
		return "on-cooldown-denylist"
	default:
		return "unknown"
	}
}

// Structural reports whether the denial is near-permanent for the
// (agent, item-type) pair and deserves the long cache TTL.
func (r Reason) Structural() bool {
	switch r {
	case ReasonBlacklisted, ReasonBodySizeTooSmall, ReasonFactionRestricted:
		return true
	default:
		return false
	}
}
