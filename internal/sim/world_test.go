package sim

import (
	"errors"
	"testing"

	"github.com/Snusene/AutoArm-sub008/internal/world"
)

func testWorld() (*World, *world.Map) {
	w := NewWorld()
	m := world.NewMap(1, 8, 8)
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			m.Set(&world.Tile{Cell: world.Cell{X: x, Y: y}})
		}
	}
	w.AddMap(m)
	return w, m
}

func spawnTestAgent(w *World, name string) *Agent {
	return w.SpawnAgent(&Agent{Name: name, Region: 1, BodySize: 1.0, Cell: world.Cell{X: 2, Y: 2}})
}

func spawnTestItem(t *testing.T, w *World, kind WeaponKind) *Item {
	t.Helper()
	def, ok := DefFor(kind)
	if !ok {
		t.Fatalf("no definition for kind %d", kind)
	}
	return w.SpawnItem(NewItem(def, 1, world.Cell{X: 3, Y: 3}, QualityNormal))
}

func TestEquipFromGround(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	it := spawnTestItem(t, w, KindGladius)

	if err := w.Equip(a, it); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if a.Equipped != it {
		t.Fatal("item not in equipped slot")
	}
	if it.Holder == nil || *it.Holder != a.ID {
		t.Fatal("item holder not set to agent")
	}
	if it.OnGround() {
		t.Fatal("equipped item still reports on ground")
	}
}

func TestEquipRejectsSecondPrimary(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	first := spawnTestItem(t, w, KindKnife)
	second := spawnTestItem(t, w, KindClub)

	if err := w.Equip(a, first); err != nil {
		t.Fatalf("first equip: %v", err)
	}
	if err := w.Equip(a, second); err == nil {
		t.Fatal("expected error equipping a second primary")
	}
}

func TestEquipRejectsHeldItem(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	b := spawnTestAgent(w, "boris")
	it := spawnTestItem(t, w, KindSpear)

	if err := w.Equip(a, it); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if err := w.Equip(b, it); err == nil {
		t.Fatal("expected error equipping another agent's weapon")
	}
}

func TestEquipFromInventory(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	it := spawnTestItem(t, w, KindRevolver)

	if err := w.AddToInventory(a, it); err != nil {
		t.Fatalf("stow: %v", err)
	}
	if err := w.Equip(a, it); err != nil {
		t.Fatalf("equip from inventory: %v", err)
	}
	if a.CarriedCount() != 0 {
		t.Fatalf("inventory should be empty, has %d", a.CarriedCount())
	}
	if a.Equipped != it {
		t.Fatal("item not equipped")
	}
}

func TestUnequipAndDrop(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	it := spawnTestItem(t, w, KindLongsword)

	if err := w.Equip(a, it); err != nil {
		t.Fatalf("equip: %v", err)
	}
	out, err := w.Unequip(a)
	if err != nil {
		t.Fatalf("unequip: %v", err)
	}
	if out != it || a.Equipped != nil {
		t.Fatal("unequip did not hand the item back")
	}
	if out.OnGround() {
		t.Fatal("held-out item reports on ground before drop")
	}
	if err := w.DropAt(out, a.Region, a.Cell); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if !out.OnGround() || out.Cell != a.Cell {
		t.Fatal("dropped item not on ground at the agent's cell")
	}
}

func TestReservationConflict(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	b := spawnTestAgent(w, "boris")
	it := spawnTestItem(t, w, KindKnife)

	if err := w.Reserve(it.ID, a.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if w.CanReserve(it.ID, b.ID) {
		t.Fatal("second agent should not be able to reserve")
	}
	if !w.CanReserve(it.ID, a.ID) {
		t.Fatal("holder should be able to re-reserve")
	}
	if err := w.Reserve(it.ID, b.ID); err == nil {
		t.Fatal("expected reservation conflict")
	}

	// Releasing someone else's claim is a no-op.
	w.Release(it.ID, b.ID)
	if w.CanReserve(it.ID, b.ID) {
		t.Fatal("release by non-holder should not clear the claim")
	}
	w.Release(it.ID, a.ID)
	if !w.CanReserve(it.ID, b.ID) {
		t.Fatal("claim should be free after holder release")
	}
}

func TestDespawnAgentDropsItems(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	primary := spawnTestItem(t, w, KindGladius)
	sidearm := spawnTestItem(t, w, KindRevolver)

	if err := w.Equip(a, primary); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if err := w.AddToInventory(a, sidearm); err != nil {
		t.Fatalf("stow: %v", err)
	}
	if err := w.Reserve(primary.ID, a.ID); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	w.DespawnAgent(a.ID)

	if w.Agent(a.ID) != nil {
		t.Fatal("agent still present after despawn")
	}
	if !primary.OnGround() || !sidearm.OnGround() {
		t.Fatal("carried items should drop on despawn")
	}
	if !w.CanReserve(primary.ID, 99) {
		t.Fatal("despawn should release the agent's reservations")
	}
}

func TestDespawnItemClearsHolder(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	it := spawnTestItem(t, w, KindSpear)

	if err := w.Equip(a, it); err != nil {
		t.Fatalf("equip: %v", err)
	}
	w.DespawnItem(it.ID)
	if a.Equipped != nil {
		t.Fatal("despawned item still equipped")
	}
	if w.Item(it.ID) != nil {
		t.Fatal("despawned item still tracked")
	}
}

func TestHooksVetoEquip(t *testing.T) {
	w, _ := testWorld()
	veto := errors.New("hands full")
	w.SetHooks(&Hooks{
		BeforeEquip: func(a *Agent, it *Item) error { return veto },
	})
	a := spawnTestAgent(w, "alma")
	it := spawnTestItem(t, w, KindKnife)

	if err := w.Equip(a, it); !errors.Is(err, veto) {
		t.Fatalf("expected hook veto, got %v", err)
	}
	if a.Equipped != nil || !it.OnGround() {
		t.Fatal("vetoed equip mutated state")
	}
}

func TestFingerprintTracksScoringInputs(t *testing.T) {
	w, _ := testWorld()
	a := spawnTestAgent(w, "alma")
	base := a.Fingerprint()

	if a.Fingerprint() != base {
		t.Fatal("fingerprint not stable across calls")
	}

	a.Skills.Melee += 1.0
	if a.Fingerprint() == base {
		t.Fatal("skill change did not move the fingerprint")
	}
	a.Skills.Melee -= 1.0
	if a.Fingerprint() != base {
		t.Fatal("fingerprint did not return after reverting")
	}

	it := spawnTestItem(t, w, KindClub)
	if err := w.Equip(a, it); err != nil {
		t.Fatalf("equip: %v", err)
	}
	if a.Fingerprint() == base {
		t.Fatal("equipping did not move the fingerprint")
	}
}

func TestClassAllowed(t *testing.T) {
	a := &Agent{}
	if !a.ClassAllowed(ClassMelee) || !a.ClassAllowed(ClassRanged) {
		t.Fatal("empty allow-list should permit everything")
	}
	a.AllowedClasses = []WeaponClass{ClassMelee}
	if !a.ClassAllowed(ClassMelee) {
		t.Fatal("listed class denied")
	}
	if a.ClassAllowed(ClassRanged) {
		t.Fatal("unlisted class allowed")
	}
}
