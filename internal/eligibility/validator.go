// Package eligibility decides whether an agent may take a specific item.
// The check chain is an ordered list of named predicates: cheap volatile
// checks run uncached on every call; expensive stable checks run through
// the per-agent validation cache with fingerprint-guarded TTLs.
package eligibility

import (
	"github.com/Snusene/AutoArm-sub008/internal/agentstate"
	"github.com/Snusene/AutoArm-sub008/internal/compat"
	"github.com/Snusene/AutoArm-sub008/internal/policy"
	"github.com/Snusene/AutoArm-sub008/internal/scoring"
	"github.com/Snusene/AutoArm-sub008/internal/sim"
	"github.com/Snusene/AutoArm-sub008/internal/world"
)

// Verdict is the outcome of an eligibility check.
type Verdict struct {
	OK     bool
	Reason Reason
}

var pass = Verdict{OK: true}

func deny(r Reason) Verdict {
	return Verdict{Reason: r}
}

// Context carries per-call state into the predicate chain.
type Context struct {
	Tick uint64
	Map  *world.Map // the agent's region map, for bounds checking
}

// Predicate is one named check in the chain. Volatile predicates run every
// call; stable predicates run behind the validation cache.
type Predicate struct {
	Name  string
	Check func(v *Validator, a *sim.Agent, it *sim.Item, ctx *Context) Verdict
}

// Validator runs the predicate chain for (agent, item) pairs.
type Validator struct {
	states   *agentstate.Store
	registry *compat.Registry
	settings policy.Settings

	// Blacklist excludes weapon kinds wholesale, typically for known-bad
	// third-party content.
	Blacklist map[sim.WeaponKind]bool

	volatileChain []Predicate
	stableChain   []Predicate
}

// New creates a validator over the given state store and provider registry.
func New(states *agentstate.Store, registry *compat.Registry, settings policy.Settings) *Validator {
	v := &Validator{
		states:    states,
		registry:  registry,
		settings:  settings,
		Blacklist: make(map[sim.WeaponKind]bool),
	}
	v.volatileChain = []Predicate{
		{Name: "exists", Check: checkExists},
		{Name: "region", Check: checkRegion},
		{Name: "bounds", Check: checkBounds},
		{Name: "forbidden", Check: checkForbidden},
		{Name: "quest", Check: checkQuest},
		{Name: "owned", Check: checkOwned},
	}
	v.stableChain = []Predicate{
		{Name: "blacklist", Check: checkBlacklist},
		{Name: "body-size", Check: checkBodySize},
		{Name: "faction", Check: checkFaction},
		{Name: "duplicate", Check: checkDuplicate},
	}
	return v
}

// IsEligible reports whether the agent may take the item, with the denial
// reason on failure. Volatile checks always run; the stable suffix of the
// chain is answered from the validation cache when a trustworthy entry
// exists (unexpired and fingerprint-matched).
func (v *Validator) IsEligible(a *sim.Agent, it *sim.Item, ctx *Context) Verdict {
	for _, p := range v.volatileChain {
		if verdict := p.Check(v, a, it, ctx); !verdict.OK {
			return verdict
		}
	}

	fp := agentstate.VolatileFingerprint(it)
	if ok, reason, hit := v.states.CacheLookup(a.ID, it.ID, ctx.Tick, fp); hit {
		return Verdict{OK: ok, Reason: Reason(reason)}
	}

	// The denylist check is volatile and O(1) but sits after the cache
	// lookup so a cached structural denial keeps reporting its original
	// reason rather than the denylist entry its side effect created. This
	// cannot mask a listing behind a cached positive: Denylist drops the
	// pair's positive cache entry when it writes.
	if v.states.Denylisted(a.ID, it.ID, ctx.Tick) {
		return deny(ReasonOnCooldownDenylist)
	}

	verdict := pass
	for _, p := range v.stableChain {
		if verdict = p.Check(v, a, it, ctx); !verdict.OK {
			break
		}
	}

	// Side effects (structural denylisting) have already persisted inside
	// the failing predicate; only then is the result cached.
	ttl := v.settings.ShortNegativeTTL
	if verdict.Reason.Structural() {
		ttl = v.settings.LongNegativeTTL
	}
	v.states.CacheStore(a.ID, it.ID, verdict.OK, uint8(verdict.Reason), ctx.Tick+ttl, fp)
	return verdict
}

// ── Volatile predicates ─────────────────────────────────────────────────

func checkExists(_ *Validator, _ *sim.Agent, it *sim.Item, _ *Context) Verdict {
	if it == nil || !it.Spawned {
		return deny(ReasonDestroyed)
	}
	return pass
}

func checkRegion(_ *Validator, a *sim.Agent, it *sim.Item, _ *Context) Verdict {
	if it.Region != a.Region {
		return deny(ReasonWrongRegion)
	}
	return pass
}

func checkBounds(_ *Validator, _ *sim.Agent, it *sim.Item, ctx *Context) Verdict {
	if ctx.Map != nil && !ctx.Map.InBounds(it.Cell) {
		return deny(ReasonOutOfBounds)
	}
	return pass
}

func checkForbidden(_ *Validator, _ *sim.Agent, it *sim.Item, _ *Context) Verdict {
	if it.Forbidden {
		return deny(ReasonForbidden)
	}
	return pass
}

func checkQuest(_ *Validator, _ *sim.Agent, it *sim.Item, _ *Context) Verdict {
	if it.QuestItem {
		return deny(ReasonQuestItem)
	}
	return pass
}

func checkOwned(_ *Validator, a *sim.Agent, it *sim.Item, _ *Context) Verdict {
	if it.Holder != nil && *it.Holder != a.ID {
		return deny(ReasonOwnedByOther)
	}
	if it.Owner != nil && *it.Owner != a.ID {
		return deny(ReasonOwnedByOther)
	}
	if it.Biocoded != nil && *it.Biocoded != a.ID {
		return deny(ReasonOwnedByOther)
	}
	return pass
}

// ── Stable predicates (cached) ──────────────────────────────────────────

func checkBlacklist(v *Validator, _ *sim.Agent, it *sim.Item, _ *Context) Verdict {
	if v.Blacklist[it.Def.Kind] {
		return deny(ReasonBlacklisted)
	}
	return pass
}

// checkBodySize denies weapons too large for the agent. The denial also
// denylists the pair: the agent will not grow, so re-running the full
// chain for this item is wasted work. The denylist write happens before
// the verdict is cached and is idempotent under repeated invocation.
func checkBodySize(v *Validator, a *sim.Agent, it *sim.Item, ctx *Context) Verdict {
	required := it.Def.MinBodySize
	if provided, applies := v.registry.MinimumSizeFor(it); applies && provided > required {
		required = provided
	}
	if a.BodySize < required {
		v.states.Denylist(a.ID, it.ID, ctx.Tick+v.settings.LongNegativeTTL)
		return deny(ReasonBodySizeTooSmall)
	}
	return pass
}

func checkFaction(v *Validator, a *sim.Agent, it *sim.Item, _ *Context) Verdict {
	if a.Traits.NonViolent {
		return deny(ReasonFactionRestricted)
	}
	if !v.settings.AllowMinors && a.Age < v.settings.MinorMinimumAge {
		return deny(ReasonFactionRestricted)
	}
	if !a.ClassAllowed(it.Def.Class) {
		return deny(ReasonFactionRestricted)
	}
	return pass
}

// checkDuplicate suppresses candidates of a kind the agent already holds
// unless the candidate actually scores higher than the held instance.
func checkDuplicate(_ *Validator, a *sim.Agent, it *sim.Item, _ *Context) Verdict {
	held := heldOfKind(a, it.Def.Kind)
	if held == nil {
		return pass
	}
	if scoring.Full(a, it) > scoring.Full(a, held) {
		return pass
	}
	return deny(ReasonDuplicateTypeNoUpgrade)
}

func heldOfKind(a *sim.Agent, kind sim.WeaponKind) *sim.Item {
	if a.Equipped != nil && a.Equipped.Def.Kind == kind {
		return a.Equipped
	}
	for _, carried := range a.Inventory {
		if carried.Def.Kind == kind {
			return carried
		}
	}
	return nil
}
