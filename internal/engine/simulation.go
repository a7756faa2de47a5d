// Simulation ties the decision core to a running world and drives it each
// tick.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/Snusene/AutoArm-sub008/internal/agentstate"
	"github.com/Snusene/AutoArm-sub008/internal/command"
	"github.com/Snusene/AutoArm-sub008/internal/policy"
	"github.com/Snusene/AutoArm-sub008/internal/scheduler"
	"github.com/Snusene/AutoArm-sub008/internal/scoring"
	"github.com/Snusene/AutoArm-sub008/internal/sim"
	"github.com/Snusene/AutoArm-sub008/internal/world"
)

// Simulation holds the complete world state and wires systems together.
type Simulation struct {
	World    *sim.World
	Map      *world.Map
	Agents   []*sim.Agent // stable roster, spawn order
	States   *agentstate.Store
	Decider  *scheduler.Scheduler
	Executor *command.Executor
	Spawner  *sim.Spawner

	Events   []Event // Recent events (trimmed daily)
	LastTick uint64  // Most recent tick processed

	Stats    SimStats
	settings policy.Settings
	churn    *rand.Rand
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "equip", "swap", "failure", "churn"
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Agents       int     `json:"agents"`
	Armed        int     `json:"armed"`
	GroundItems  int     `json:"ground_items"`
	AvgScore     float64 `json:"avg_score"`
	Equips       uint64  `json:"equips"`
	Swaps        uint64  `json:"swaps"`
	Failures     uint64  `json:"failures"`
	ItemsSpawned uint64  `json:"items_spawned"`
	ItemsRemoved uint64  `json:"items_removed"`
}

// NewSimulation creates a Simulation from wired components.
func NewSimulation(w *sim.World, m *world.Map, ag []*sim.Agent,
	states *agentstate.Store, decider *scheduler.Scheduler, exec *command.Executor,
	spawner *sim.Spawner, settings policy.Settings, churnSeed int64) *Simulation {
	s := &Simulation{
		World:    w,
		Map:      m,
		Agents:   ag,
		States:   states,
		Decider:  decider,
		Executor: exec,
		Spawner:  spawner,
		settings: settings,
		churn:    rand.New(rand.NewSource(churnSeed)),
	}
	s.updateStats()
	return s
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	return s.LastTick
}

// TickMinute runs every tick (1 sim-minute): denylist expiry, then one
// decision pass over the roster. The per-tick budget inside the decider
// caps how many agents get a full evaluation.
func (s *Simulation) TickMinute(tick uint64) {
	s.LastTick = tick
	s.States.ExpireDue(tick)

	for _, a := range s.Agents {
		if !a.Alive {
			continue
		}

		cmd, denial := s.Decider.Evaluate(a, tick)
		if cmd == nil {
			if denial == scheduler.DenialError {
				s.Stats.Failures++
			}
			continue
		}

		if err := s.Executor.Execute(*cmd, tick); err != nil {
			s.Decider.ReportExecutionFailure(cmd, tick)
			s.Stats.Failures++
			s.record(tick, "failure", fmt.Sprintf("%s failed %s: %v", a.Name, cmd.Kind, err))
			continue
		}
		s.Decider.ReportExecuted(cmd, tick)
		s.noteCommand(tick, a, cmd)
	}
}

func (s *Simulation) noteCommand(tick uint64, a *sim.Agent, cmd *command.Command) {
	it := s.World.Item(cmd.Item)
	name := string(cmd.Item)
	if it != nil {
		name = it.Def.Name
	}
	switch cmd.Kind {
	case command.Equip:
		s.Stats.Equips++
		s.record(tick, "equip", fmt.Sprintf("%s picked up a %s (%.0f)", a.Name, name, cmd.Score))
	default:
		s.Stats.Swaps++
		s.record(tick, "swap", fmt.Sprintf("%s swapped to a %s (%.0f over %.0f)",
			a.Name, name, cmd.Score, cmd.OldScore))
	}
}

// TickHour runs every sim-hour: cache sweeps and ground-item churn.
func (s *Simulation) TickHour(tick uint64) {
	s.Decider.ReportPeriodicCleanup(tick)
	s.churnItems(tick)
}

// churnItems keeps the ground stock moving: occasionally a weapon rusts
// away and a fresh one turns up. The churn exercises index invalidation
// and cache eviction under a changing item set.
func (s *Simulation) churnItems(tick uint64) {
	// One in three hours, remove a random unclaimed ground item.
	if s.churn.Intn(3) == 0 {
		ground := make([]*sim.Item, 0)
		for _, it := range s.World.ItemsIn(s.Map.Region) {
			if it.OnGround() && s.World.CanReserve(it.ID, 0) {
				ground = append(ground, it)
			}
		}
		if len(ground) > 0 {
			victim := ground[s.churn.Intn(len(ground))]
			s.World.DespawnItem(victim.ID)
			s.Stats.ItemsRemoved++
			s.record(tick, "churn", fmt.Sprintf("a %s crumbled away", victim.Def.Name))
		}
	}

	// One in four hours, scatter a fresh weapon.
	if s.churn.Intn(4) == 0 {
		added := s.Spawner.ScatterWeapons(s.World, s.Map, 1)
		for _, it := range added {
			s.Stats.ItemsSpawned++
			s.record(tick, "churn", fmt.Sprintf("a %s turned up", it.Def.Name))
		}
	}
}

// TickDay runs every sim-day: statistics refresh and the daily summary.
func (s *Simulation) TickDay(tick uint64) {
	s.updateStats()

	eventCounts := make(map[string]int)
	for _, e := range s.Events {
		eventCounts[e.Category]++
	}

	slog.Info("daily report",
		"tick", tick,
		"time", SimTime(tick),
		"agents", s.Stats.Agents,
		"armed", s.Stats.Armed,
		"ground_items", s.Stats.GroundItems,
		"avg_score", fmt.Sprintf("%.1f", s.Stats.AvgScore),
		"equips", s.Stats.Equips,
		"swaps", s.Stats.Swaps,
		"failures", s.Stats.Failures,
		"events_equip", eventCounts["equip"],
		"events_swap", eventCounts["swap"],
		"events_failure", eventCounts["failure"],
	)

	// Trim old events to prevent unbounded growth (keep last 1000).
	if len(s.Events) > 1000 {
		s.Events = s.Events[len(s.Events)-1000:]
	}
}

// TickWeek runs every sim-week: long-horizon summary.
func (s *Simulation) TickWeek(tick uint64) {
	slog.Info("weekly summary",
		"tick", tick,
		"time", SimTime(tick),
		"state_entries", s.States.Size(),
		"events_this_week", len(s.Events),
	)
}

func (s *Simulation) record(tick uint64, category, description string) {
	s.Events = append(s.Events, Event{
		Tick:        tick,
		Description: description,
		Category:    category,
	})
}

func (s *Simulation) updateStats() {
	alive := 0
	armed := 0
	totalScore := 0.0

	for _, a := range s.Agents {
		if !a.Alive {
			continue
		}
		alive++
		if a.Equipped != nil {
			armed++
		}
		totalScore += scoring.CurrentScore(a)
	}

	ground := 0
	for _, it := range s.World.ItemsIn(s.Map.Region) {
		if it.OnGround() {
			ground++
		}
	}

	s.Stats.Agents = alive
	s.Stats.Armed = armed
	s.Stats.GroundItems = ground
	if alive > 0 {
		s.Stats.AvgScore = totalScore / float64(alive)
	}
}
