package agentstate

import (
	"testing"

	"github.com/Snusene/AutoArm-sub008/internal/sim"
)

func TestDenylistExpiresAtExactTick(t *testing.T) {
	s := NewStore()
	s.Denylist(1, "itm", 100)

	if !s.Denylisted(1, "itm", 99) {
		t.Fatal("entry should hold before expiry")
	}
	if s.Denylisted(1, "itm", 100) {
		t.Fatal("entry should lapse at its expiry tick")
	}

	s.ExpireDue(100)
	if st := s.Peek(1); st == nil || len(st.denylist) != 0 {
		t.Fatal("expiry sweep did not clear the entry")
	}
}

func TestRelistingExtendsExpiry(t *testing.T) {
	s := NewStore()
	s.Denylist(1, "itm", 50)
	s.Denylist(1, "itm", 200)

	// The superseded bucket at 50 must not clear the extended entry.
	s.ExpireDue(50)
	if !s.Denylisted(1, "itm", 60) {
		t.Fatal("re-listed entry cleared by its old bucket")
	}

	s.ExpireDue(200)
	if s.Denylisted(1, "itm", 200) {
		t.Fatal("entry should be gone after its extended expiry")
	}
}

func TestExpireDueCountsAndIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Denylist(1, "a", 10)
	s.Denylist(1, "b", 10)
	s.Denylist(2, "c", 20)

	if cleared := s.ExpireDue(15); cleared != 2 {
		t.Fatalf("expected 2 cleared at tick 15, got %d", cleared)
	}
	if cleared := s.ExpireDue(15); cleared != 0 {
		t.Fatalf("second sweep cleared %d entries", cleared)
	}
	if cleared := s.ExpireDue(25); cleared != 1 {
		t.Fatalf("expected 1 cleared at tick 25, got %d", cleared)
	}
}

func TestExpireDuePrimesCursorFromPendingBuckets(t *testing.T) {
	s := NewStore()
	// Simulate resuming at a large tick with entries scheduled around it.
	s.Denylist(1, "old", 5000)
	s.Denylist(1, "new", 9000)

	if cleared := s.ExpireDue(8000); cleared != 1 {
		t.Fatalf("expected the old entry cleared, got %d", cleared)
	}
	if !s.Denylisted(1, "new", 8000) {
		t.Fatal("future entry cleared early")
	}
}

func TestCacheFingerprintMismatchDropsEntry(t *testing.T) {
	s := NewStore()
	fp := Fingerprint{Forbidden: false, HasOwner: false}
	s.CacheStore(1, "itm", false, 7, 100, fp)

	if _, reason, hit := s.CacheLookup(1, "itm", 50, fp); !hit || reason != 7 {
		t.Fatalf("expected hit with reason 7, got hit=%v reason=%d", hit, reason)
	}

	changed := Fingerprint{Forbidden: true, HasOwner: false}
	if _, _, hit := s.CacheLookup(1, "itm", 50, changed); hit {
		t.Fatal("fingerprint mismatch should miss")
	}
	// The stale entry is dropped on sight, so even the old fingerprint
	// misses now.
	if _, _, hit := s.CacheLookup(1, "itm", 50, fp); hit {
		t.Fatal("stale entry should have been dropped")
	}
}

func TestCacheExpiry(t *testing.T) {
	s := NewStore()
	fp := Fingerprint{}
	s.CacheStore(1, "itm", true, 0, 100, fp)

	if _, _, hit := s.CacheLookup(1, "itm", 99, fp); !hit {
		t.Fatal("expected hit before expiry")
	}
	if _, _, hit := s.CacheLookup(1, "itm", 100, fp); hit {
		t.Fatal("expected miss at expiry tick")
	}
}

func TestInvalidateItemSweepsAllAgents(t *testing.T) {
	s := NewStore()
	fp := Fingerprint{}
	s.CacheStore(1, "itm", true, 0, 100, fp)
	s.CacheStore(2, "itm", true, 0, 100, fp)
	s.CacheStore(2, "other", true, 0, 100, fp)

	s.InvalidateItem("itm")
	if _, _, hit := s.CacheLookup(1, "itm", 10, fp); hit {
		t.Fatal("agent 1 entry survived invalidation")
	}
	if _, _, hit := s.CacheLookup(2, "itm", 10, fp); hit {
		t.Fatal("agent 2 entry survived invalidation")
	}
	if _, _, hit := s.CacheLookup(2, "other", 10, fp); !hit {
		t.Fatal("unrelated entry was dropped")
	}
}

func TestUnchangedRequiresRecordedScan(t *testing.T) {
	s := NewStore()
	if s.Unchanged(1, 10, 42) {
		t.Fatal("unchanged without any recorded scan")
	}

	s.RecordScan(1, 20, 10, 42)
	if !s.Unchanged(1, 10, 42) {
		t.Fatal("expected unchanged after matching scan")
	}
	if s.Unchanged(1, 11, 42) {
		t.Fatal("index moved, should not be unchanged")
	}
	if s.Unchanged(1, 10, 43) {
		t.Fatal("fingerprint moved, should not be unchanged")
	}

	s.InvalidateScan(1)
	if s.Unchanged(1, 10, 42) {
		t.Fatal("invalidated scan still reported unchanged")
	}
}

func TestPurgeDropsWholeFootprint(t *testing.T) {
	s := NewStore()
	s.Denylist(1, "itm", 100)
	s.CacheStore(1, "itm", false, 3, 100, Fingerprint{})
	s.RecordEquip(1, 10)

	s.Purge(1)
	if s.Peek(1) != nil {
		t.Fatal("state record survived purge")
	}
	if s.Denylisted(1, "itm", 50) {
		t.Fatal("denylist entry survived purge")
	}

	// The scheduled expiry bucket for the purged agent is a no-op.
	if cleared := s.ExpireDue(200); cleared != 0 {
		t.Fatalf("purged agent's bucket cleared %d entries", cleared)
	}
}

func TestEnsureFreshResetsEmptyStorePastWarmup(t *testing.T) {
	s := NewStore()
	s.EnsureFresh(5000, 300)

	// After the fresh-load reset, old buckets must not be walked.
	s.Denylist(1, "itm", 5100)
	if cleared := s.ExpireDue(5100); cleared != 1 {
		t.Fatalf("expected 1 cleared, got %d", cleared)
	}
}

func TestEnsureFreshKeepsWarmupState(t *testing.T) {
	s := NewStore()
	s.RecordEquip(1, 10)
	s.EnsureFresh(50, 300)
	if st := s.Peek(1); st == nil || st.LastEquipTick != 10 {
		t.Fatal("warm-up state dropped by freshness check")
	}
}

func TestEvictExpiredCaches(t *testing.T) {
	s := NewStore()
	s.CacheStore(1, "a", true, 0, 50, Fingerprint{})
	s.CacheStore(1, "b", true, 0, 500, Fingerprint{})

	if evicted := s.EvictExpiredCaches(100); evicted != 1 {
		t.Fatalf("expected 1 evicted, got %d", evicted)
	}
	if _, _, hit := s.CacheLookup(1, "b", 100, Fingerprint{}); !hit {
		t.Fatal("live entry evicted")
	}
}

func TestVolatileFingerprint(t *testing.T) {
	it := &sim.Item{ID: "itm", Spawned: true}
	clean := VolatileFingerprint(it)

	it.Forbidden = true
	if VolatileFingerprint(it) == clean {
		t.Fatal("forbidding the item did not move the fingerprint")
	}
	it.Forbidden = false

	holder := sim.AgentID(4)
	it.Holder = &holder
	if VolatileFingerprint(it) == clean {
		t.Fatal("holder did not move the fingerprint")
	}
}
