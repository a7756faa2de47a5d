package persistence

import (
	"path/filepath"
	"testing"

	"github.com/Snusene/AutoArm-sub008/internal/agentstate"
	"github.com/Snusene/AutoArm-sub008/internal/engine"
	"github.com/Snusene/AutoArm-sub008/internal/sim"
	"github.com/Snusene/AutoArm-sub008/internal/world"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testWorld() (*sim.World, *world.Map) {
	w := sim.NewWorld()
	m := world.NewMap(1, 16, 16)
	for x := 0; x < 16; x++ {
		for y := 0; y < 16; y++ {
			m.Set(&world.Tile{Cell: world.Cell{X: x, Y: y}})
		}
	}
	w.AddMap(m)
	return w, m
}

func spawnWeapon(t *testing.T, w *sim.World, kind sim.WeaponKind, cell world.Cell) *sim.Item {
	t.Helper()
	def, ok := sim.DefFor(kind)
	if !ok {
		t.Fatalf("no definition for kind %d", kind)
	}
	return w.SpawnItem(sim.NewItem(def, 1, cell, sim.QualityGood))
}

func TestWorldStateRoundTrip(t *testing.T) {
	db := openTestDB(t)
	w, _ := testWorld()
	states := agentstate.NewStore()

	armed := w.SpawnAgent(&sim.Agent{
		Name: "Astrid Voss", Age: 34, BodySize: 1.05, Faction: sim.FactionColony,
		Region: 1, Cell: world.Cell{X: 3, Y: 3},
		Skills: sim.SkillSet{Melee: 11.5, Shooting: 4.25},
		Traits: sim.TraitFlags{Brawler: true},
	})
	armed.ForcedWeapon = true
	spear := spawnWeapon(t, w, sim.KindSpear, world.Cell{X: 3, Y: 3})
	if err := w.Equip(armed, spear); err != nil {
		t.Fatalf("setup equip: %v", err)
	}
	sidearm := spawnWeapon(t, w, sim.KindRevolver, world.Cell{X: 3, Y: 3})
	if err := w.AddToInventory(armed, sidearm); err != nil {
		t.Fatalf("setup stow: %v", err)
	}

	dead := w.SpawnAgent(&sim.Agent{
		Name: "Bram Dunmore", Age: 51, BodySize: 0.95, Faction: sim.FactionColony,
		Region: 1, Cell: world.Cell{X: 4, Y: 4},
		AllowedClasses: []sim.WeaponClass{sim.ClassMelee},
	})
	dead.Alive = false

	ground := spawnWeapon(t, w, sim.KindClub, world.Cell{X: 7, Y: 7})
	ground.Forbidden = true

	states.RecordEquip(armed.ID, 500)
	states.RecordAttempt(armed.ID, ground.ID, 520)

	roster := []*sim.Agent{armed, dead}
	if err := db.SaveAgents(roster, states); err != nil {
		t.Fatalf("save agents: %v", err)
	}
	if err := db.SaveItems(w); err != nil {
		t.Fatalf("save items: %v", err)
	}
	if err := db.SaveMeta("last_tick", "555"); err != nil {
		t.Fatalf("save meta: %v", err)
	}

	// Restore into a fresh world.
	w2, _ := testWorld()
	states2 := agentstate.NewStore()
	loaded, tick, err := db.LoadWorldState(w2, states2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tick != 555 {
		t.Fatalf("loaded tick = %d", tick)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded %d agents", len(loaded))
	}

	a := loaded[0]
	if a.Name != "Astrid Voss" || !a.Traits.Brawler || !a.ForcedWeapon {
		t.Fatalf("agent attributes lost: %+v", a)
	}
	if a.Skills.Melee != 11.5 {
		t.Fatalf("skill lost: %v", a.Skills.Melee)
	}
	if a.Equipped == nil || a.Equipped.Def.Kind != sim.KindSpear {
		t.Fatal("equipped weapon not restored")
	}
	if len(a.Inventory) != 1 || a.Inventory[0].Def.Kind != sim.KindRevolver {
		t.Fatal("sidearm not restored")
	}

	d := loaded[1]
	if d.Alive {
		t.Fatal("dead agent resurrected by load")
	}
	if len(d.AllowedClasses) != 1 || d.AllowedClasses[0] != sim.ClassMelee {
		t.Fatal("allowed classes not restored")
	}

	var foundGround *sim.Item
	for _, it := range w2.ItemsIn(1) {
		if it.Def.Kind == sim.KindClub {
			foundGround = it
		}
	}
	if foundGround == nil {
		t.Fatal("ground weapon not restored")
	}
	if !foundGround.Forbidden {
		t.Fatal("forbidden flag lost")
	}
	if foundGround.Quality != sim.QualityGood {
		t.Fatalf("quality lost: %v", foundGround.Quality)
	}

	st := states2.Peek(a.ID)
	if st == nil || st.LastEquipTick != 500 {
		t.Fatal("equip cooldown timestamp not restored")
	}
	if st.LastAttemptItem != ground.ID || st.LastAttemptTick != 520 {
		t.Fatal("attempt throttle not restored")
	}
}

func TestDeadHolderItemsFallToGround(t *testing.T) {
	db := openTestDB(t)
	w, _ := testWorld()
	states := agentstate.NewStore()

	a := w.SpawnAgent(&sim.Agent{
		Name: "Erik Frostborn", Age: 40, BodySize: 1.0, Faction: sim.FactionColony,
		Region: 1, Cell: world.Cell{X: 5, Y: 5},
	})
	it := spawnWeapon(t, w, sim.KindGladius, world.Cell{X: 5, Y: 5})
	if err := w.Equip(a, it); err != nil {
		t.Fatalf("setup equip: %v", err)
	}
	a.Alive = false

	if err := db.SaveAgents([]*sim.Agent{a}, states); err != nil {
		t.Fatalf("save agents: %v", err)
	}
	if err := db.SaveItems(w); err != nil {
		t.Fatalf("save items: %v", err)
	}

	w2, _ := testWorld()
	loaded, _, err := db.LoadWorldState(w2, agentstate.NewStore())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded[0].Equipped != nil {
		t.Fatal("dead agent still holds its weapon")
	}
	if len(w2.ItemsIn(1)) != 1 {
		t.Fatal("orphaned weapon not placed on the ground")
	}
}

func TestEventsRoundTrip(t *testing.T) {
	db := openTestDB(t)

	events := []engine.Event{
		{Tick: 10, Description: "Astrid picked up a Gladius (14)", Category: "equip"},
		{Tick: 20, Description: "Bram swapped to a Spear (16 over 9)", Category: "swap"},
		{Tick: 30, Description: "a Club crumbled away", Category: "churn"},
	}
	if err := db.SaveEvents(events); err != nil {
		t.Fatalf("save events: %v", err)
	}

	recent, err := db.RecentEvents(2)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 events, got %d", len(recent))
	}
	// Most recent first.
	if recent[0].Tick != 30 || recent[0].Category != "churn" {
		t.Fatalf("unexpected first event %+v", recent[0])
	}
}

func TestMetaMissingKeyErrors(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.GetMeta("never_saved"); err == nil {
		t.Fatal("expected error for missing key")
	}

	if err := db.SaveMeta("speed", "2.5"); err != nil {
		t.Fatalf("save meta: %v", err)
	}
	if err := db.SaveMeta("speed", "3.0"); err != nil {
		t.Fatalf("overwrite meta: %v", err)
	}
	v, err := db.GetMeta("speed")
	if err != nil {
		t.Fatalf("get meta: %v", err)
	}
	if v != "3.0" {
		t.Fatalf("meta value = %q", v)
	}
}
