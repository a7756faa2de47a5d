// Package agentstate owns all per-agent decision bookkeeping: last-decision
// and last-equip ticks, attempt throttles, the temporary denylist, cached
// attribute fingerprints, and the validation cache. Everything here is
// derived state — fully rebuildable, purged wholesale when an agent becomes
// invalid.
package agentstate

import (
	"log/slog"

	"github.com/Snusene/AutoArm-sub008/internal/sim"
)

// AgentState is the per-agent decision record.
type AgentState struct {
	LastDecisionTick uint64
	LastEquipTick    uint64

	// decided distinguishes a recorded decision at tick zero from the
	// zero value of a fresh record.
	decided bool

	// Attempt throttle: the most recent item this agent tried to take and
	// when. A contended item is not retried within the throttle window.
	LastAttemptItem sim.ItemID
	LastAttemptTick uint64

	// Skip-if-unchanged bookkeeping from the last full candidate scan.
	LastScanTick        uint64
	LastScanIndexChange uint64
	LastScanFingerprint uint64
	scanRecorded        bool

	// denylist maps item id to expiry tick. Cleared by the store's
	// tick-bucket expiry, never by scanning.
	denylist map[sim.ItemID]uint64

	// cache holds validation results keyed by item, owned here so Purge
	// drops an agent's entire footprint in O(1).
	cache map[sim.ItemID]*CacheEntry
}

// CacheEntry is a cached eligibility verdict for one (agent, item) pair.
type CacheEntry struct {
	OK     bool
	Reason uint8
	Expiry uint64
	// Fingerprint captures the volatile conditions at computation time.
	// A mismatch on lookup discards the entry even before expiry.
	Fingerprint Fingerprint
}

// Fingerprint is the volatile-state snapshot stored with a cache entry.
type Fingerprint struct {
	Forbidden bool
	HasOwner  bool
}

// VolatileFingerprint captures an item's current volatile state.
func VolatileFingerprint(it *sim.Item) Fingerprint {
	return Fingerprint{
		Forbidden: it.Forbidden,
		HasOwner:  it.Owner != nil || it.Holder != nil,
	}
}

type denylistKey struct {
	agent sim.AgentID
	item  sim.ItemID
}

// Store holds AgentState records and the denylist expiry schedule.
type Store struct {
	agents map[sim.AgentID]*AgentState

	// expiry buckets: tick → denylist entries scheduled to clear then.
	// Consumed only for buckets at or before now, so per-tick cost is
	// O(entries expiring this tick), independent of agent count.
	expiry        map[uint64][]denylistKey
	expiryCursor  uint64
	cursorPrimed  bool

	freshChecked bool
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{
		agents: make(map[sim.AgentID]*AgentState),
		expiry: make(map[uint64][]denylistKey),
	}
}

// GetOrCreate returns the agent's state record, creating a fresh one on
// first sight.
func (s *Store) GetOrCreate(id sim.AgentID) *AgentState {
	st, ok := s.agents[id]
	if !ok {
		st = &AgentState{
			denylist: make(map[sim.ItemID]uint64),
			cache:    make(map[sim.ItemID]*CacheEntry),
		}
		s.agents[id] = st
	}
	return st
}

// Peek returns the agent's state without creating it.
func (s *Store) Peek(id sim.AgentID) *AgentState {
	return s.agents[id]
}

// RecordDecision stamps the agent as processed this tick.
func (s *Store) RecordDecision(id sim.AgentID, tick uint64) {
	st := s.GetOrCreate(id)
	st.LastDecisionTick = tick
	st.decided = true
}

// DecidedAt reports whether the agent already got its decision pass at the
// given tick.
func (st *AgentState) DecidedAt(tick uint64) bool {
	return st.decided && st.LastDecisionTick == tick
}

// RecordEquip starts the agent's equip cooldown.
func (s *Store) RecordEquip(id sim.AgentID, tick uint64) {
	s.GetOrCreate(id).LastEquipTick = tick
}

// RecordAttempt notes which item the agent last went for, throttling
// immediate retries of a contended item.
func (s *Store) RecordAttempt(id sim.AgentID, item sim.ItemID, tick uint64) {
	st := s.GetOrCreate(id)
	st.LastAttemptItem = item
	st.LastAttemptTick = tick
}

// RecordScan stores the skip-if-unchanged snapshot after a full candidate
// scan that produced no action.
func (s *Store) RecordScan(id sim.AgentID, tick, indexChange, fingerprint uint64) {
	st := s.GetOrCreate(id)
	st.LastScanTick = tick
	st.LastScanIndexChange = indexChange
	st.LastScanFingerprint = fingerprint
	st.scanRecorded = true
}

// Unchanged reports whether the agent can skip its candidate scan: a scan
// was recorded, the index has not changed since, and the agent's scoring
// attributes still match.
func (s *Store) Unchanged(id sim.AgentID, indexChange, fingerprint uint64) bool {
	st := s.agents[id]
	if st == nil || !st.scanRecorded {
		return false
	}
	return st.LastScanIndexChange >= indexChange && st.LastScanFingerprint == fingerprint
}

// InvalidateScan clears the skip-if-unchanged snapshot, forcing the next
// evaluation to run a full scan.
func (s *Store) InvalidateScan(id sim.AgentID) {
	if st := s.agents[id]; st != nil {
		st.scanRecorded = false
	}
}

// ── Denylist ────────────────────────────────────────────────────────────

// Denylist excludes an item for an agent until the expiry tick. Re-listing
// an item extends its expiry; the superseded bucket entry is ignored when
// it comes due. A cached positive verdict for the pair would keep answering
// OK until its TTL lapsed, so it is dropped here; cached negatives stay and
// keep reporting their original reason.
func (s *Store) Denylist(id sim.AgentID, item sim.ItemID, expiryTick uint64) {
	st := s.GetOrCreate(id)
	st.denylist[item] = expiryTick
	if entry, cached := st.cache[item]; cached && entry.OK {
		delete(st.cache, item)
	}
	s.expiry[expiryTick] = append(s.expiry[expiryTick], denylistKey{agent: id, item: item})
}

// Denylisted reports whether the item is currently denylisted for the
// agent. O(1); expiry is handled by ExpireDue, but the tick comparison here
// keeps the answer exact even mid-tick.
func (s *Store) Denylisted(id sim.AgentID, item sim.ItemID, now uint64) bool {
	st := s.agents[id]
	if st == nil {
		return false
	}
	expiry, listed := st.denylist[item]
	return listed && now < expiry
}

// ExpireDue consumes all expiry buckets at or before now. Each denylist
// entry is cleared exactly once, at its scheduled tick; entries superseded
// by a later re-listing are left for their new bucket.
func (s *Store) ExpireDue(now uint64) int {
	if !s.cursorPrimed {
		// First call after construction or load: find the earliest pending
		// bucket instead of walking every tick since zero.
		s.expiryCursor = now + 1
		for tick := range s.expiry {
			if tick < s.expiryCursor {
				s.expiryCursor = tick
			}
		}
		s.cursorPrimed = true
	}
	cleared := 0
	for tick := s.expiryCursor; tick <= now; tick++ {
		bucket, ok := s.expiry[tick]
		if !ok {
			continue
		}
		for _, key := range bucket {
			st := s.agents[key.agent]
			if st == nil {
				continue
			}
			if expiry, listed := st.denylist[key.item]; listed && expiry == tick {
				delete(st.denylist, key.item)
				cleared++
			}
		}
		delete(s.expiry, tick)
	}
	s.expiryCursor = now + 1
	return cleared
}

// ── Validation cache ────────────────────────────────────────────────────

// CacheLookup returns a cached verdict if it is unexpired and its volatile
// fingerprint still matches. Stale entries are dropped on sight.
func (s *Store) CacheLookup(id sim.AgentID, item sim.ItemID, now uint64, fp Fingerprint) (ok bool, reason uint8, hit bool) {
	st := s.agents[id]
	if st == nil {
		return false, 0, false
	}
	entry, cached := st.cache[item]
	if !cached {
		return false, 0, false
	}
	if now >= entry.Expiry || entry.Fingerprint != fp {
		delete(st.cache, item)
		return false, 0, false
	}
	return entry.OK, entry.Reason, true
}

// CacheStore records a verdict with its expiry and the volatile fingerprint
// observed at computation time.
func (s *Store) CacheStore(id sim.AgentID, item sim.ItemID, ok bool, reason uint8, expiry uint64, fp Fingerprint) {
	st := s.GetOrCreate(id)
	st.cache[item] = &CacheEntry{OK: ok, Reason: reason, Expiry: expiry, Fingerprint: fp}
}

// InvalidateItem drops cached verdicts for one item across all agents,
// used when an item mutates in ways the fingerprint does not cover.
func (s *Store) InvalidateItem(item sim.ItemID) {
	for _, st := range s.agents {
		delete(st.cache, item)
	}
}

// ── Lifecycle ───────────────────────────────────────────────────────────

// Purge removes every trace of an agent: state record, validation cache,
// and denylist entries. Scheduled expiry buckets referencing the agent
// become no-ops.
func (s *Store) Purge(id sim.AgentID) {
	delete(s.agents, id)
}

// ClearAll resets the store to empty, dropping all derived state.
func (s *Store) ClearAll() {
	s.agents = make(map[sim.AgentID]*AgentState)
	s.expiry = make(map[uint64][]denylistKey)
	s.expiryCursor = 0
	s.cursorPrimed = false
}

// EnsureFresh detects resuming against a different save: an empty store
// past the warm-up window means whatever state the simulation expected is
// gone, so everything derived is rebuilt from scratch.
func (s *Store) EnsureFresh(now, warmupWindow uint64) {
	if s.freshChecked {
		return
	}
	s.freshChecked = true
	if len(s.agents) == 0 && now > warmupWindow {
		slog.Info("agent state store empty past warm-up, treating as fresh load", "tick", now)
		s.ClearAll()
		s.expiryCursor = now + 1
		s.cursorPrimed = true
	}
}

// Size returns the number of tracked agents.
func (s *Store) Size() int {
	return len(s.agents)
}

// EvictExpiredCaches drops expired validation cache entries. Called on a
// coarse interval, not every tick.
func (s *Store) EvictExpiredCaches(now uint64) int {
	evicted := 0
	for _, st := range s.agents {
		for item, entry := range st.cache {
			if now >= entry.Expiry {
				delete(st.cache, item)
				evicted++
			}
		}
	}
	return evicted
}
