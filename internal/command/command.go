// Package command turns a scheduler decision into an atomic state
// transition against the world: plain pickup, primary swap, or secondary
// swap. Every multi-step sequence restores the agent's original item on
// mid-sequence failure — an agent never ends a command holding neither
// weapon.
package command

import (
	"fmt"
	"log/slog"

	"github.com/Snusene/AutoArm-sub008/internal/policy"
	"github.com/Snusene/AutoArm-sub008/internal/sim"
)

// Kind enumerates the command shapes.
type Kind uint8

const (
	// Equip picks an item up as primary; the agent is unarmed.
	Equip Kind = iota
	// SwapPrimary replaces the equipped primary with a better item.
	SwapPrimary
	// SwapSecondary stows an item as a carried sidearm, dropping an old
	// one when inventory capacity is exceeded.
	SwapSecondary
)

func (k Kind) String() string {
	switch k {
	case Equip:
		return "equip"
	case SwapPrimary:
		return "swap-primary"
	case SwapSecondary:
		return "swap-secondary"
	default:
		return "unknown"
	}
}

// Command is a single decided action for one agent.
type Command struct {
	Kind  Kind
	Agent sim.AgentID
	Item  sim.ItemID
	// Replaces names the item being displaced, when any.
	Replaces sim.ItemID
	// Score/OldScore record the decision for telemetry.
	Score    float64
	OldScore float64
}

// Denylister suppresses immediate re-evaluation of items a command just
// dropped. The agent state store implements it.
type Denylister interface {
	Denylist(id sim.AgentID, item sim.ItemID, expiryTick uint64)
}

// Executor runs commands against the world.
type Executor struct {
	world    *sim.World
	denylist Denylister
	settings policy.Settings
}

// NewExecutor creates an executor.
func NewExecutor(w *sim.World, d Denylister, settings policy.Settings) *Executor {
	return &Executor{world: w, denylist: d, settings: settings}
}

// Execute runs a command at the given tick. On error the agent is left in
// a valid previously-held state; the caller decides whether to throttle.
func (e *Executor) Execute(cmd Command, now uint64) error {
	a := e.world.Agent(cmd.Agent)
	if a == nil || !a.Valid() {
		return fmt.Errorf("execute %s: agent %d invalid", cmd.Kind, cmd.Agent)
	}
	it := e.world.Item(cmd.Item)
	if it == nil || !it.Spawned {
		return fmt.Errorf("execute %s: item %s gone", cmd.Kind, cmd.Item)
	}

	// The advisory claim was optimistic; the authoritative reservation
	// system has the final word immediately before mutation.
	if !e.world.CanReserve(cmd.Item, cmd.Agent) {
		return fmt.Errorf("execute %s: item %s contended", cmd.Kind, cmd.Item)
	}
	if err := e.world.Reserve(cmd.Item, cmd.Agent); err != nil {
		return fmt.Errorf("execute %s: %w", cmd.Kind, err)
	}
	defer e.world.Release(cmd.Item, cmd.Agent)

	switch cmd.Kind {
	case Equip:
		return e.executeEquip(a, it)
	case SwapPrimary:
		return e.executeSwapPrimary(a, it)
	case SwapSecondary:
		return e.executeSwapSecondary(a, it, now)
	default:
		return fmt.Errorf("execute: unknown command kind %d", cmd.Kind)
	}
}

func (e *Executor) executeEquip(a *sim.Agent, it *sim.Item) error {
	if a.Equipped != nil {
		return fmt.Errorf("equip: agent %d unexpectedly armed", a.ID)
	}
	if err := e.world.Equip(a, it); err != nil {
		return fmt.Errorf("equip: %w", err)
	}
	slog.Debug("equipped", "agent", a.ID, "item", it.Def.Name, "quality", sim.QualityName(it.Quality))
	return nil
}

// executeSwapPrimary replaces the equipped weapon. Ordering follows the
// DropBeforePickup policy: drop-first frees the hands before the pickup,
// hold-out-first avoids the window where the old item lies on the ground
// while the new one is still contested.
func (e *Executor) executeSwapPrimary(a *sim.Agent, newItem *sim.Item) error {
	old, err := e.world.Unequip(a)
	if err != nil {
		return fmt.Errorf("swap-primary: %w", err)
	}

	if e.settings.DropBeforePickup {
		if err := e.world.DropAt(old, a.Region, a.Cell); err != nil {
			// Old item never left the agent's hands; restore.
			e.restorePrimary(a, old)
			return fmt.Errorf("swap-primary drop: %w", err)
		}
		if err := e.world.Equip(a, newItem); err != nil {
			// New item fell through; take the old one back.
			if restoreErr := e.world.Equip(a, old); restoreErr != nil {
				slog.Error("swap-primary rollback failed, old item remains on ground",
					"agent", a.ID, "item", old.ID, "error", restoreErr)
			}
			return fmt.Errorf("swap-primary equip: %w", err)
		}
		return nil
	}

	// Hold-out ordering: equip the new weapon first, then shed the old.
	if err := e.world.Equip(a, newItem); err != nil {
		e.restorePrimary(a, old)
		return fmt.Errorf("swap-primary equip: %w", err)
	}
	if err := e.world.DropAt(old, a.Region, a.Cell); err != nil {
		// Undo the whole swap; the agent keeps its original weapon.
		if unequipped, uerr := e.world.Unequip(a); uerr == nil {
			if derr := e.world.DropAt(unequipped, a.Region, a.Cell); derr != nil {
				slog.Error("swap-primary rollback drop failed", "agent", a.ID, "error", derr)
			}
		}
		e.restorePrimary(a, old)
		return fmt.Errorf("swap-primary drop old: %w", err)
	}
	return nil
}

// restorePrimary puts a held-out item back into the agent's hands without
// going through world validation — the item was theirs a moment ago.
func (e *Executor) restorePrimary(a *sim.Agent, it *sim.Item) {
	id := a.ID
	it.Holder = &id
	a.Equipped = it
}

// executeSwapSecondary stows a sidearm. When the inventory is at capacity
// the worst carried sidearm is dropped first — dropped, never destroyed —
// and denylisted briefly so the agent does not immediately re-evaluate the
// item it just discarded.
func (e *Executor) executeSwapSecondary(a *sim.Agent, newItem *sim.Item, now uint64) error {
	var displaced *sim.Item
	if a.CarriedCount() >= e.settings.SecondaryInventoryCap {
		displaced = worstCarried(a)
		if displaced == nil {
			return fmt.Errorf("swap-secondary: inventory full, nothing displaceable")
		}
		if err := e.world.RemoveFromInventory(a, displaced); err != nil {
			return fmt.Errorf("swap-secondary unstow: %w", err)
		}
	}

	if err := e.world.AddToInventory(a, newItem); err != nil {
		// Restore the displaced sidearm before surfacing the error.
		if displaced != nil {
			if restoreErr := e.world.AddToInventory(a, displaced); restoreErr != nil {
				// Last resort: the old sidearm goes to the ground, not away.
				if dropErr := e.world.DropAt(displaced, a.Region, a.Cell); dropErr != nil {
					slog.Error("swap-secondary rollback failed", "agent", a.ID,
						"item", displaced.ID, "error", dropErr)
				}
				e.denylist.Denylist(a.ID, displaced.ID, now+e.settings.DenylistTicks)
			}
		}
		return fmt.Errorf("swap-secondary stow: %w", err)
	}

	if displaced != nil {
		if err := e.world.DropAt(displaced, a.Region, a.Cell); err != nil {
			slog.Error("swap-secondary drop displaced failed", "agent", a.ID,
				"item", displaced.ID, "error", err)
		}
		e.denylist.Denylist(a.ID, displaced.ID, now+e.settings.DenylistTicks)
	}
	return nil
}

// worstCarried picks the carried sidearm with the lowest market value.
func worstCarried(a *sim.Agent) *sim.Item {
	var worst *sim.Item
	for _, it := range a.Inventory {
		if worst == nil || it.Def.MarketValue < worst.Def.MarketValue {
			worst = it
		}
	}
	return worst
}
