// Package scheduler orchestrates the per-agent weapon decision pipeline:
// fast-reject, skip-if-unchanged, restriction resolution, budgeted
// candidate scan with two-phase scoring, tiered acceptance, and commit.
// One invocation produces at most one command per agent.
package scheduler

import (
	"log/slog"
	"sort"

	"github.com/Snusene/AutoArm-sub008/internal/agentstate"
	"github.com/Snusene/AutoArm-sub008/internal/command"
	"github.com/Snusene/AutoArm-sub008/internal/compat"
	"github.com/Snusene/AutoArm-sub008/internal/eligibility"
	"github.com/Snusene/AutoArm-sub008/internal/index"
	"github.com/Snusene/AutoArm-sub008/internal/policy"
	"github.com/Snusene/AutoArm-sub008/internal/scoring"
	"github.com/Snusene/AutoArm-sub008/internal/sim"
)

// advisoryClaim is a short-lived scheduler-local reservation keeping two
// agents from converging on the same item within one decision window. It
// is optimistic: the authoritative world reservation is re-checked at
// execution time.
type advisoryClaim struct {
	agent  sim.AgentID
	expiry uint64
}

// Scheduler is the decision engine's single entry point. All state it owns
// is per-world-context: construct one scheduler per world instance.
type Scheduler struct {
	world    *sim.World
	index    *index.Index
	states   *agentstate.Store
	validate *eligibility.Validator
	registry *compat.Registry
	settings policy.Settings

	advisory map[sim.ItemID]advisoryClaim

	budgetTick uint64
	processed  int
}

// New creates a scheduler over its collaborators.
func New(w *sim.World, ix *index.Index, states *agentstate.Store, v *eligibility.Validator, reg *compat.Registry, settings policy.Settings) *Scheduler {
	return &Scheduler{
		world:    w,
		index:    ix,
		states:   states,
		validate: v,
		registry: reg,
		settings: settings,
		advisory: make(map[sim.ItemID]advisoryClaim),
	}
}

// Evaluate runs the full decision pipeline for one agent at the given
// tick. It returns at most one command; a nil command carries the denial
// explaining why. Panics during evaluation are contained to this agent.
func (s *Scheduler) Evaluate(a *sim.Agent, now uint64) (cmd *command.Command, denial Denial) {
	defer func() {
		if r := recover(); r != nil {
			agentID := sim.AgentID(0)
			if a != nil {
				agentID = a.ID
			}
			slog.Error("evaluation panicked, skipping agent this cycle",
				"agent", agentID, "tick", now, "panic", r)
			cmd = nil
			denial = DenialError
		}
	}()

	s.states.EnsureFresh(now, s.settings.FreshLoadWindowTicks)

	// ── Fast-reject ─────────────────────────────────────────────────
	if !s.settings.Enabled {
		return nil, DenialDisabled
	}
	if a == nil || !a.Valid() {
		return nil, DenialInvalidAgent
	}
	if a.Drafted {
		return nil, DenialDrafted
	}
	if now != s.budgetTick {
		s.budgetTick = now
		s.processed = 0
	}
	if s.processed >= s.settings.AgentsPerTick {
		// Deferred, not cancelled: the agent stays pending for a later
		// tick and is not stamped as processed.
		return nil, DenialBudgetExhausted
	}
	st := s.states.GetOrCreate(a.ID)
	if st.DecidedAt(now) {
		return nil, DenialAlreadyProcessed
	}
	if st.LastEquipTick > 0 && now-st.LastEquipTick < s.settings.EquipCooldownTicks {
		return nil, DenialOnCooldown
	}
	if a.ForcedWeapon && a.Equipped != nil && !s.settings.AllowForcedUpgrades {
		return nil, DenialForcedRetention
	}

	s.processed++
	s.states.RecordDecision(a.ID, now)

	// ── Skip-if-unchanged ───────────────────────────────────────────
	// Steady-state agents dominate total calls; when neither the index
	// nor the agent's scoring attributes moved since the last full scan,
	// there is nothing new to find.
	fingerprint := a.Fingerprint()
	indexChange := s.index.LastChangeTick(a.Region)
	if s.states.Unchanged(a.ID, indexChange, fingerprint) {
		return nil, DenialUnchanged
	}

	// ── Restriction resolution ──────────────────────────────────────
	var restrictKind *sim.WeaponKind
	if a.Equipped != nil {
		if s.registry.IsManaged(a, a.Equipped) {
			return nil, DenialManaged
		}
		if a.ForcedWeapon {
			// Forced retention with upgrades allowed: only same-type
			// replacements qualify.
			kind := a.Equipped.Def.Kind
			restrictKind = &kind
		}
	}

	// ── Candidate scan ──────────────────────────────────────────────
	if s.index.Cold(a.Region) {
		s.index.Rebuild(a.Region)
	}

	candidates := s.gather(a, st, now, restrictKind)
	if len(candidates) == 0 {
		if c := s.secondaryCommand(a, now); c != nil {
			s.states.RecordAttempt(a.ID, c.Item, now)
			return c, DenialNone
		}
		s.states.RecordScan(a.ID, now, indexChange, fingerprint)
		return nil, DenialNoCandidates
	}

	best, bestScore, tier := s.selectBest(a, candidates, now)
	if best == nil {
		if c := s.secondaryCommand(a, now); c != nil {
			s.states.RecordAttempt(a.ID, c.Item, now)
			return c, DenialNone
		}
		s.states.RecordScan(a.ID, now, indexChange, fingerprint)
		return nil, DenialNoUpgrade
	}

	// ── Commit ──────────────────────────────────────────────────────
	if !s.world.CanReserve(best.ID, a.ID) {
		// Contended at the authoritative layer; throttle this item so we
		// do not busy-loop on it.
		s.states.RecordAttempt(a.ID, best.ID, now)
		return nil, DenialContended
	}

	out := &command.Command{
		Agent:    a.ID,
		Item:     best.ID,
		Score:    bestScore,
		OldScore: scoring.CurrentScore(a),
	}
	if a.Equipped == nil {
		out.Kind = command.Equip
	} else {
		out.Kind = command.SwapPrimary
		out.Replaces = a.Equipped.ID
		if ok, reason := s.registry.ValidateSwap(best, a.Equipped, a); !ok {
			slog.Debug("swap vetoed by provider", "agent", a.ID, "item", best.ID, "reason", reason)
			s.states.Denylist(a.ID, best.ID, now+s.settings.DenylistTicks)
			return nil, DenialVetoed
		}
	}

	s.advisory[best.ID] = advisoryClaim{agent: a.ID, expiry: now + s.settings.AttemptThrottleTicks}
	s.states.RecordAttempt(a.ID, best.ID, now)
	slog.Debug("upgrade decided", "agent", a.ID, "kind", out.Kind.String(),
		"item", best.Def.Name, "tier", tier.String(),
		"score", bestScore, "old_score", out.OldScore)
	return out, DenialNone
}

// gather pulls the bounded candidate set from the index, applying the
// storage restriction, the attempt throttle, advisory claims, and the
// type lock before any scoring happens.
func (s *Scheduler) gather(a *sim.Agent, st *agentstate.AgentState, now uint64, restrictKind *sim.WeaponKind) []*sim.Item {
	m := s.world.Map(a.Region)
	items := s.index.ItemsMatching(a.Region, func(it *sim.Item) bool {
		if restrictKind != nil && it.Def.Kind != *restrictKind {
			return false
		}
		if s.settings.SearchStorageOnly && (m == nil || !m.IsStorage(it.Cell)) {
			return false
		}
		if it.ID == st.LastAttemptItem && now-st.LastAttemptTick < s.settings.AttemptThrottleTicks {
			return false
		}
		if claim, held := s.advisory[it.ID]; held && claim.agent != a.ID && now < claim.expiry {
			return false
		}
		return true
	})
	if len(items) > s.settings.CandidateCap {
		// The index hands items back in map order, so a blind cut would keep
		// a different subset every run. Keep the strongest rough scores; ties
		// break on item id like selectBest.
		sort.Slice(items, func(i, j int) bool {
			ri, rj := scoring.Rough(a, items[i]), scoring.Rough(a, items[j])
			if ri != rj {
				return ri > rj
			}
			return items[i].ID < items[j].ID
		})
		items = items[:s.settings.CandidateCap]
	}
	return items
}

// selectBest validates and scores candidates, returning the best candidate
// of the highest acceptance tier found. Scanning stops early once an
// amazing-tier match appears: optimality is deliberately traded for scan
// time and reduced contention on the single technically-best item.
func (s *Scheduler) selectBest(a *sim.Agent, candidates []*sim.Item, now uint64) (*sim.Item, float64, Tier) {
	ctx := &eligibility.Context{Tick: now, Map: s.world.Map(a.Region)}
	current := scoring.CurrentScore(a)

	type roughed struct {
		item  *sim.Item
		rough float64
	}
	eligible := make([]roughed, 0, len(candidates))
	for _, it := range candidates {
		if verdict := s.validate.IsEligible(a, it, ctx); !verdict.OK {
			continue
		}
		eligible = append(eligible, roughed{item: it, rough: scoring.Rough(a, it)})
	}
	if len(eligible) == 0 {
		return nil, 0, TierNone
	}

	// Descending rough order makes the pruning bound bite early. Ties
	// break on item id so scan order is deterministic.
	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].rough != eligible[j].rough {
			return eligible[i].rough > eligible[j].rough
		}
		return eligible[i].item.ID < eligible[j].item.ID
	})

	var best *sim.Item
	var bestScore float64
	bestTier := TierNone
	fullBudget := s.settings.FullScoresPerScan

	for _, cand := range eligible {
		if fullBudget <= 0 {
			break
		}
		// Monotonicity bound: full can exceed rough by at most PruneSlack,
		// so a candidate whose widened rough cannot beat the incumbent or
		// clear the acceptance floor is skipped without full scoring.
		ceiling := cand.rough * s.settings.PruneSlack
		if best != nil && ceiling <= bestScore {
			continue
		}
		if current > 0 && ceiling < current*s.settings.UpgradeThreshold {
			continue
		}

		full := scoring.Full(a, cand.item)
		fullBudget--

		tier := s.classify(full, current)
		if tier == TierNone {
			continue
		}
		if tier > bestTier || (tier == bestTier && full > bestScore) {
			best = cand.item
			bestScore = full
			bestTier = tier
		}
		if bestTier == TierAmazing {
			break
		}
	}
	return best, bestScore, bestTier
}

// classify buckets a candidate score against the current score. An unarmed
// agent has no multiplicative baseline: any positive score is top tier.
func (s *Scheduler) classify(full, current float64) Tier {
	if current <= 0 {
		if full > 0 {
			return TierAmazing
		}
		return TierNone
	}
	ratio := full / current
	switch {
	case ratio >= s.settings.AmazingThreshold:
		return TierAmazing
	case ratio >= s.settings.GreatThreshold:
		return TierGreat
	case ratio >= s.settings.UpgradeThreshold:
		return TierGood
	default:
		return TierNone
	}
}

// secondaryCommand consults compatibility providers for a sidearm pickup
// when no primary upgrade was found.
func (s *Scheduler) secondaryCommand(a *sim.Agent, now uint64) *command.Command {
	if !s.settings.AutoEquipSecondary {
		return nil
	}
	proposal := s.registry.FindBestSecondary(a, func(it *sim.Item) float64 {
		return scoring.Full(a, it)
	})
	if proposal == nil {
		return nil
	}
	ctx := &eligibility.Context{Tick: now, Map: s.world.Map(a.Region)}
	if verdict := s.validate.IsEligible(a, proposal, ctx); !verdict.OK {
		return nil
	}
	if !s.world.CanReserve(proposal.ID, a.ID) {
		return nil
	}
	s.advisory[proposal.ID] = advisoryClaim{agent: a.ID, expiry: now + s.settings.AttemptThrottleTicks}
	return &command.Command{
		Kind:  command.SwapSecondary,
		Agent: a.ID,
		Item:  proposal.ID,
		Score: scoring.Full(a, proposal),
	}
}

// ── Reporting and administrative hooks ──────────────────────────────────

// ReportExecuted informs the scheduler that a command committed. Starts
// the equip cooldown and invalidates the skip snapshot so the next
// evaluation after cooldown rescans.
func (s *Scheduler) ReportExecuted(cmd *command.Command, now uint64) {
	s.states.RecordEquip(cmd.Agent, now)
	s.states.InvalidateScan(cmd.Agent)
	delete(s.advisory, cmd.Item)
}

// ReportExecutionFailure informs the scheduler that the world rejected a
// command at execution time. The item is throttled and briefly denylisted
// so the agent does not busy-loop on a contended item.
func (s *Scheduler) ReportExecutionFailure(cmd *command.Command, now uint64) {
	s.states.RecordAttempt(cmd.Agent, cmd.Item, now)
	s.states.Denylist(cmd.Agent, cmd.Item, now+s.settings.AttemptThrottleTicks)
	s.states.InvalidateScan(cmd.Agent)
	delete(s.advisory, cmd.Item)
}

// InvalidateAgentCache clears an agent's derived decision state without
// touching cooldowns: the next evaluation runs a full scan.
func (s *Scheduler) InvalidateAgentCache(id sim.AgentID) {
	s.states.InvalidateScan(id)
}

// PurgeAgent removes every trace of an invalidated agent.
func (s *Scheduler) PurgeAgent(id sim.AgentID) {
	s.states.Purge(id)
	for item, claim := range s.advisory {
		if claim.agent == id {
			delete(s.advisory, item)
		}
	}
}

// ItemDespawned drops derived state keyed on a destroyed item: cached
// verdicts across all agents and any advisory claim. The scheduler is
// subscribed as a despawn listener at wiring time.
func (s *Scheduler) ItemDespawned(it *sim.Item) {
	s.states.InvalidateItem(it.ID)
	delete(s.advisory, it.ID)
}

// AgentDespawned purges the agent's entire decision footprint.
func (s *Scheduler) AgentDespawned(id sim.AgentID) {
	s.PurgeAgent(id)
}

// ClearAllState resets all per-world derived state, for world load/reset.
func (s *Scheduler) ClearAllState() {
	s.states.ClearAll()
	s.advisory = make(map[sim.ItemID]advisoryClaim)
	s.processed = 0
	s.budgetTick = 0
}

// ReportPeriodicCleanup performs amortized eviction: expired validation
// cache entries and lapsed advisory claims. Called on a coarse interval,
// not every tick.
func (s *Scheduler) ReportPeriodicCleanup(now uint64) {
	evicted := s.states.EvictExpiredCaches(now)
	lapsed := 0
	for item, claim := range s.advisory {
		if now >= claim.expiry {
			delete(s.advisory, item)
			lapsed++
		}
	}
	if evicted > 0 || lapsed > 0 {
		slog.Debug("periodic cleanup", "tick", now, "cache_evicted", evicted, "claims_lapsed", lapsed)
	}
}
