package sim

import (
	"fmt"

	"github.com/Snusene/AutoArm-sub008/internal/world"
)

// Listener receives item lifecycle notifications. The candidate index
// registers one to stay current without polling.
type Listener interface {
	ItemAdded(it *Item)
	ItemRemoved(it *Item)
	RegionReset(region world.RegionID)
}

// DespawnListener receives permanent removal notifications. Ground
// transitions (pickup, stow, move) flow through Listener; despawn means
// the entity is gone for good and derived state keyed on it is stale.
type DespawnListener interface {
	ItemDespawned(it *Item)
	AgentDespawned(id AgentID)
}

// Hooks let tests veto manipulation primitives to exercise failure paths.
// A nil hook or a nil function means the primitive always proceeds.
type Hooks struct {
	BeforeEquip          func(a *Agent, it *Item) error
	BeforeAddToInventory func(a *Agent, it *Item) error
	BeforeDrop           func(it *Item, c world.Cell) error
}

// World is the authoritative simulation state: maps, agents, items, and the
// reservation system. All access is from the single scheduling call path;
// no locking.
type World struct {
	Maps   map[world.RegionID]*world.Map
	Agents map[AgentID]*Agent
	Items  map[ItemID]*Item

	// reservations is the authoritative claim table. Other subsystems
	// (player orders, hauling jobs) may claim items between the core's
	// scan and commit, which is why the core re-validates here.
	reservations map[ItemID]AgentID

	listeners        []Listener
	despawnListeners []DespawnListener
	hooks            *Hooks

	nextAgentID AgentID
}

// NewWorld creates an empty world.
func NewWorld() *World {
	return &World{
		Maps:         make(map[world.RegionID]*world.Map),
		Agents:       make(map[AgentID]*Agent),
		Items:        make(map[ItemID]*Item),
		reservations: make(map[ItemID]AgentID),
		nextAgentID:  1,
	}
}

// AddMap registers a region's map.
func (w *World) AddMap(m *world.Map) {
	w.Maps[m.Region] = m
}

// Map returns the map for a region, or nil.
func (w *World) Map(region world.RegionID) *world.Map {
	return w.Maps[region]
}

// SetHooks installs test hooks.
func (w *World) SetHooks(h *Hooks) {
	w.hooks = h
}

// Subscribe registers a listener for item lifecycle events.
func (w *World) Subscribe(l Listener) {
	w.listeners = append(w.listeners, l)
}

// SubscribeDespawn registers a listener for permanent removals.
func (w *World) SubscribeDespawn(l DespawnListener) {
	w.despawnListeners = append(w.despawnListeners, l)
}

func (w *World) notifyAdded(it *Item) {
	for _, l := range w.listeners {
		l.ItemAdded(it)
	}
}

func (w *World) notifyRemoved(it *Item) {
	for _, l := range w.listeners {
		l.ItemRemoved(it)
	}
}

// ResetRegion signals a coarse change (map load, batch mutation); listeners
// rebuild rather than patch.
func (w *World) ResetRegion(region world.RegionID) {
	for _, l := range w.listeners {
		l.RegionReset(region)
	}
}

// ── Agents ──────────────────────────────────────────────────────────────

// SpawnAgent places a new agent into the world and assigns its ID.
func (w *World) SpawnAgent(a *Agent) *Agent {
	if a.ID == 0 {
		a.ID = w.nextAgentID
		w.nextAgentID++
	} else if a.ID >= w.nextAgentID {
		w.nextAgentID = a.ID + 1
	}
	a.Alive = true
	a.Spawned = true
	w.Agents[a.ID] = a
	return a
}

// DespawnAgent removes an agent permanently. Carried items drop at the
// agent's cell.
func (w *World) DespawnAgent(id AgentID) {
	a, ok := w.Agents[id]
	if !ok {
		return
	}
	if a.Equipped != nil {
		it := a.Equipped
		a.Equipped = nil
		w.placeOnGround(it, a.Region, a.Cell)
	}
	for _, it := range a.Inventory {
		w.placeOnGround(it, a.Region, a.Cell)
	}
	a.Inventory = nil
	a.Spawned = false
	a.Alive = false
	delete(w.Agents, id)
	w.releaseAllFor(id)
	for _, l := range w.despawnListeners {
		l.AgentDespawned(id)
	}
}

// Agent returns the agent with the given ID, or nil.
func (w *World) Agent(id AgentID) *Agent {
	return w.Agents[id]
}

// ── Items ───────────────────────────────────────────────────────────────

// SpawnItem places an item onto the ground.
func (w *World) SpawnItem(it *Item) *Item {
	it.Spawned = true
	it.Holder = nil
	w.Items[it.ID] = it
	w.notifyAdded(it)
	return it
}

// DespawnItem destroys an item wherever it is.
func (w *World) DespawnItem(id ItemID) {
	it, ok := w.Items[id]
	if !ok {
		return
	}
	if it.Holder != nil {
		if holder := w.Agents[*it.Holder]; holder != nil {
			if holder.Equipped == it {
				holder.Equipped = nil
			}
			holder.Inventory = removeItem(holder.Inventory, it)
		}
	}
	wasGround := it.OnGround()
	it.Spawned = false
	delete(w.Items, id)
	delete(w.reservations, id)
	if wasGround {
		w.notifyRemoved(it)
	}
	for _, l := range w.despawnListeners {
		l.ItemDespawned(it)
	}
}

// Item returns the item with the given ID, or nil.
func (w *World) Item(id ItemID) *Item {
	return w.Items[id]
}

// ItemsIn enumerates all ground items in a region. Used by the candidate
// index for full rebuilds; per-item updates flow through the listener.
func (w *World) ItemsIn(region world.RegionID) []*Item {
	var out []*Item
	for _, it := range w.Items {
		if it.Region == region && it.OnGround() {
			out = append(out, it)
		}
	}
	return out
}

// MoveItem relocates a ground item, possibly across regions.
func (w *World) MoveItem(id ItemID, region world.RegionID, cell world.Cell) error {
	it, ok := w.Items[id]
	if !ok {
		return fmt.Errorf("move item %s: not spawned", id)
	}
	if it.Holder != nil {
		return fmt.Errorf("move item %s: held by agent %d", id, *it.Holder)
	}
	w.notifyRemoved(it)
	it.Region = region
	it.Cell = cell
	w.notifyAdded(it)
	return nil
}

func (w *World) placeOnGround(it *Item, region world.RegionID, cell world.Cell) {
	it.Holder = nil
	it.Region = region
	it.Cell = cell
	if _, tracked := w.Items[it.ID]; !tracked {
		w.Items[it.ID] = it
	}
	it.Spawned = true
	w.notifyAdded(it)
}

func removeItem(list []*Item, target *Item) []*Item {
	for i, it := range list {
		if it == target {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// ── Reservations ────────────────────────────────────────────────────────

// CanReserve reports whether the item is unclaimed or already claimed by
// the same agent.
func (w *World) CanReserve(id ItemID, by AgentID) bool {
	holder, claimed := w.reservations[id]
	return !claimed || holder == by
}

// Reserve claims an item for an agent. Fails when another agent holds the
// claim.
func (w *World) Reserve(id ItemID, by AgentID) error {
	if holder, claimed := w.reservations[id]; claimed && holder != by {
		return fmt.Errorf("item %s reserved by agent %d", id, holder)
	}
	w.reservations[id] = by
	return nil
}

// Release drops an agent's claim on an item. Releasing someone else's claim
// is a no-op.
func (w *World) Release(id ItemID, by AgentID) {
	if holder, claimed := w.reservations[id]; claimed && holder == by {
		delete(w.reservations, id)
	}
}

func (w *World) releaseAllFor(id AgentID) {
	for item, holder := range w.reservations {
		if holder == id {
			delete(w.reservations, item)
		}
	}
}

// ── Manipulation primitives ─────────────────────────────────────────────

// Equip makes the item the agent's primary weapon. The item must be on the
// ground in the agent's region or already in the agent's inventory; the
// agent must not have a primary equipped.
func (w *World) Equip(a *Agent, it *Item) error {
	if a == nil || !a.Valid() {
		return fmt.Errorf("equip: invalid agent")
	}
	if it == nil || !it.Spawned {
		return fmt.Errorf("equip: item not spawned")
	}
	if a.Equipped != nil {
		return fmt.Errorf("equip: agent %d already armed with %s", a.ID, a.Equipped.Def.Name)
	}
	if w.hooks != nil && w.hooks.BeforeEquip != nil {
		if err := w.hooks.BeforeEquip(a, it); err != nil {
			return err
		}
	}
	fromInventory := false
	for _, carried := range a.Inventory {
		if carried == it {
			fromInventory = true
			break
		}
	}
	if fromInventory {
		a.Inventory = removeItem(a.Inventory, it)
	} else {
		if it.Holder != nil {
			return fmt.Errorf("equip: item %s held by agent %d", it.ID, *it.Holder)
		}
		if it.Region != a.Region {
			return fmt.Errorf("equip: item %s in region %d, agent in %d", it.ID, it.Region, a.Region)
		}
		w.notifyRemoved(it)
	}
	id := a.ID
	it.Holder = &id
	a.Equipped = it
	return nil
}

// Unequip removes the agent's primary weapon and returns it without placing
// it anywhere — callers must drop or stow it.
func (w *World) Unequip(a *Agent) (*Item, error) {
	if a == nil || a.Equipped == nil {
		return nil, fmt.Errorf("unequip: nothing equipped")
	}
	it := a.Equipped
	a.Equipped = nil
	it.Holder = nil
	return it, nil
}

// DropAt places a held-out item onto the ground at a cell.
func (w *World) DropAt(it *Item, region world.RegionID, cell world.Cell) error {
	if it == nil || !it.Spawned {
		return fmt.Errorf("drop: item not spawned")
	}
	if it.Holder != nil {
		return fmt.Errorf("drop: item %s still held", it.ID)
	}
	if w.hooks != nil && w.hooks.BeforeDrop != nil {
		if err := w.hooks.BeforeDrop(it, cell); err != nil {
			return err
		}
	}
	w.placeOnGround(it, region, cell)
	return nil
}

// AddToInventory stows an item as a carried secondary. The item must be on
// the ground or held out (no holder).
func (w *World) AddToInventory(a *Agent, it *Item) error {
	if a == nil || !a.Valid() {
		return fmt.Errorf("stow: invalid agent")
	}
	if it == nil || !it.Spawned {
		return fmt.Errorf("stow: item not spawned")
	}
	if it.Holder != nil {
		return fmt.Errorf("stow: item %s held by agent %d", it.ID, *it.Holder)
	}
	if w.hooks != nil && w.hooks.BeforeAddToInventory != nil {
		if err := w.hooks.BeforeAddToInventory(a, it); err != nil {
			return err
		}
	}
	if it.OnGround() {
		w.notifyRemoved(it)
	}
	id := a.ID
	it.Holder = &id
	a.Inventory = append(a.Inventory, it)
	return nil
}

// RemoveFromInventory takes a carried item out of the agent's inventory and
// returns it held-out (no holder, not on ground).
func (w *World) RemoveFromInventory(a *Agent, it *Item) error {
	if a == nil {
		return fmt.Errorf("unstow: nil agent")
	}
	before := len(a.Inventory)
	a.Inventory = removeItem(a.Inventory, it)
	if len(a.Inventory) == before {
		return fmt.Errorf("unstow: item %s not carried by agent %d", it.ID, a.ID)
	}
	it.Holder = nil
	return nil
}
