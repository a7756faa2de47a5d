package index

import (
	"testing"

	"github.com/Snusene/AutoArm-sub008/internal/sim"
	"github.com/Snusene/AutoArm-sub008/internal/world"
)

func testSetup() (*sim.World, *Index, *uint64) {
	w := sim.NewWorld()
	m := world.NewMap(1, 8, 8)
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			m.Set(&world.Tile{Cell: world.Cell{X: x, Y: y}})
		}
	}
	w.AddMap(m)

	tick := uint64(1)
	ix := New(w, func() uint64 { return tick })
	w.Subscribe(ix)
	return w, ix, &tick
}

func groundItem(t *testing.T, kind sim.WeaponKind) *sim.Item {
	t.Helper()
	def, ok := sim.DefFor(kind)
	if !ok {
		t.Fatalf("no definition for kind %d", kind)
	}
	return sim.NewItem(def, 1, world.Cell{X: 1, Y: 1}, sim.QualityNormal)
}

func TestColdUntilRebuilt(t *testing.T) {
	_, ix, _ := testSetup()

	if !ix.Cold(1) {
		t.Fatal("fresh index should be cold")
	}
	if items := ix.AllItems(1); items != nil {
		t.Fatalf("cold index returned %d items", len(items))
	}

	ix.Rebuild(1)
	if ix.Cold(1) {
		t.Fatal("rebuilt index still cold")
	}
}

func TestRebuildPicksUpGroundItems(t *testing.T) {
	w, ix, _ := testSetup()
	w.SpawnItem(groundItem(t, sim.KindKnife))
	w.SpawnItem(groundItem(t, sim.KindClub))

	ix.Rebuild(1)
	if got := ix.Count(1); got != 2 {
		t.Fatalf("expected 2 indexed items, got %d", got)
	}
}

func TestListenerKeepsIndexCurrent(t *testing.T) {
	w, ix, _ := testSetup()
	ix.Rebuild(1)

	it := w.SpawnItem(groundItem(t, sim.KindSpear))
	if got := ix.Count(1); got != 1 {
		t.Fatalf("expected 1 item after spawn, got %d", got)
	}
	if ix.Cold(1) {
		t.Fatal("incremental add should not mark index cold")
	}

	w.DespawnItem(it.ID)
	if got := ix.Count(1); got != 0 {
		t.Fatalf("expected 0 items after despawn, got %d", got)
	}
}

func TestPickupRemovesFromIndex(t *testing.T) {
	w, ix, _ := testSetup()
	it := w.SpawnItem(groundItem(t, sim.KindRevolver))
	ix.Rebuild(1)

	a := w.SpawnAgent(&sim.Agent{Name: "taker", Region: 1, BodySize: 1.0})
	if err := w.Equip(a, it); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if got := ix.Count(1); got != 0 {
		t.Fatalf("equipped item still indexed, count %d", got)
	}
}

func TestInvalidateMarksCold(t *testing.T) {
	w, ix, _ := testSetup()
	ix.Rebuild(1)

	w.ResetRegion(1)
	if !ix.Cold(1) {
		t.Fatal("region reset should mark index cold")
	}
	if items := ix.AllItems(1); items != nil {
		t.Fatalf("cold index returned %d items", len(items))
	}
}

func TestLastChangeTickAdvances(t *testing.T) {
	w, ix, tick := testSetup()
	ix.Rebuild(1)
	before := ix.LastChangeTick(1)

	*tick = 5
	w.SpawnItem(groundItem(t, sim.KindKnife))
	after := ix.LastChangeTick(1)
	if after <= before {
		t.Fatalf("change tick did not advance: %d then %d", before, after)
	}
	if after != 5 {
		t.Fatalf("change tick %d, want 5", after)
	}
}

func TestItemsMatchingFilters(t *testing.T) {
	w, ix, _ := testSetup()
	w.SpawnItem(groundItem(t, sim.KindKnife))
	w.SpawnItem(groundItem(t, sim.KindBoltRifle))
	ix.Rebuild(1)

	ranged := ix.ItemsMatching(1, func(it *sim.Item) bool {
		return it.Def.Class == sim.ClassRanged
	})
	if len(ranged) != 1 || ranged[0].Def.Kind != sim.KindBoltRifle {
		t.Fatalf("expected only the rifle, got %d items", len(ranged))
	}
}
