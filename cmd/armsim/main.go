// Command armsim runs a small colony where agents keep themselves armed
// with the best weapons lying around.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/Snusene/AutoArm-sub008/internal/agentstate"
	"github.com/Snusene/AutoArm-sub008/internal/api"
	"github.com/Snusene/AutoArm-sub008/internal/command"
	"github.com/Snusene/AutoArm-sub008/internal/compat"
	"github.com/Snusene/AutoArm-sub008/internal/eligibility"
	"github.com/Snusene/AutoArm-sub008/internal/engine"
	"github.com/Snusene/AutoArm-sub008/internal/index"
	"github.com/Snusene/AutoArm-sub008/internal/persistence"
	"github.com/Snusene/AutoArm-sub008/internal/policy"
	"github.com/Snusene/AutoArm-sub008/internal/scheduler"
	"github.com/Snusene/AutoArm-sub008/internal/sim"
	"github.com/Snusene/AutoArm-sub008/internal/world"
)

func main() {
	var (
		seed       = flag.Int64("seed", 42, "world generation seed")
		dbPath     = flag.String("db", "data/armsim.db", "sqlite database path")
		policyPath = flag.String("policy", "", "optional yaml policy file")
		apiPort    = flag.Int("port", 8080, "HTTP API port")
		colonists  = flag.Int("colonists", 12, "colonists to spawn in a fresh world")
		weapons    = flag.Int("weapons", 40, "weapons to scatter in a fresh world")
		snapRate   = flag.Int("snapshot-rate", 10, "snapshot requests allowed per client per hour")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("armsim — colony auto-arm simulation")

	// ── Policy ────────────────────────────────────────────────────────
	settings := policy.Default()
	if *policyPath != "" {
		var err error
		settings, err = policy.Load(*policyPath)
		if err != nil {
			slog.Error("failed to load policy", "path", *policyPath, "error", err)
			os.Exit(1)
		}
		slog.Info("policy loaded", "path", *policyPath)
	}
	if err := settings.Validate(); err != nil {
		slog.Error("invalid policy", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll("data", 0755)
	db, err := persistence.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", *dbPath)

	// ── World Map (always regenerated — deterministic from seed) ──────
	slog.Info("generating map...")
	cfg := world.DefaultGenConfig()
	cfg.Seed = *seed
	m := world.Generate(cfg)

	for t, c := range world.TerrainCounts(m) {
		slog.Info("terrain", "type", world.TerrainName(t), "count", c)
	}

	// ── Core wiring ───────────────────────────────────────────────────
	w := sim.NewWorld()
	w.AddMap(m)

	states := agentstate.NewStore()
	registry := compat.NewRegistry()
	validator := eligibility.New(states, registry, settings)

	eng := engine.NewEngine()
	idx := index.New(w, func() uint64 { return eng.Tick })
	w.Subscribe(idx)

	decider := scheduler.New(w, idx, states, validator, registry, settings)
	w.SubscribeDespawn(decider)
	executor := command.NewExecutor(w, states, settings)
	spawner := sim.NewSpawner(*seed)

	// ── Load or Generate World State ─────────────────────────────────
	var roster []*sim.Agent
	var startTick uint64

	if _, err := db.GetMeta("last_tick"); err == nil {
		slog.Info("found saved world state, loading...")
		roster, startTick, err = db.LoadWorldState(w, states)
		if err != nil {
			slog.Error("failed to load world state", "error", err)
			os.Exit(1)
		}
		slog.Info("world state restored",
			"agents", len(roster),
			"tick", startTick,
			"sim_time", engine.SimTime(startTick),
		)
	} else {
		slog.Info("no saved state found, generating fresh colony...")
		roster = spawner.SpawnColonists(w, m, *colonists)
		scattered := spawner.ScatterWeapons(w, m, *weapons)
		slog.Info("fresh colony ready", "colonists", len(roster), "weapons", len(scattered))
	}

	// ── Simulation ────────────────────────────────────────────────────
	colony := engine.NewSimulation(w, m, roster, states, decider, executor,
		spawner, settings, *seed+17)
	colony.LastTick = startTick

	// Save on fresh generation only (loaded worlds are already saved).
	if startTick == 0 {
		if err := db.SaveWorldState(colony); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	eng.Tick = startTick
	eng.Speed = 1

	// Wire tick callbacks — auto-save every sim-day.
	eng.OnTick = colony.TickMinute
	eng.OnHour = colony.TickHour
	eng.OnDay = func(tick uint64) {
		colony.TickDay(tick)
		if err := db.SaveWorldState(colony); err != nil {
			slog.Error("daily save failed", "error", err)
		}
	}
	eng.OnWeek = colony.TickWeek

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := os.Getenv("ARMSIM_ADMIN_KEY")
	if adminKey == "" {
		slog.Warn("ARMSIM_ADMIN_KEY not set — admin POST endpoints will be disabled")
	}

	apiServer := &api.Server{
		Sim:            colony,
		Eng:            eng,
		Decider:        decider,
		DB:             db,
		Port:           *apiPort,
		AdminKey:       adminKey,
		StartedAt:      time.Now(),
		SnapshotLimit:  *snapRate,
		SnapshotWindow: time.Hour,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\n%s colonists, %s weapons on the ground.\n",
		humanize.Comma(int64(colony.Stats.Agents)),
		humanize.Comma(int64(colony.Stats.GroundItems)))
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", *apiPort)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.SimTime(startTick))
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		eng.Run()
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		eng.Stop()
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Error("run failed", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(colony); err != nil {
		slog.Error("final save failed", "error", err)
	}

	fmt.Println("Simulation stopped. World state saved.")
}
