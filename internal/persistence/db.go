// Package persistence provides SQLite-based world state storage. Only
// durable state is saved: the roster, spawned items, player flags, and
// cooldown timestamps. Validation caches, denylists, and the candidate
// index are derived and always rebuilt on load.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Snusene/AutoArm-sub008/internal/agentstate"
	"github.com/Snusene/AutoArm-sub008/internal/engine"
	"github.com/Snusene/AutoArm-sub008/internal/sim"
	"github.com/Snusene/AutoArm-sub008/internal/world"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS agents (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		faction INTEGER NOT NULL,
		age INTEGER NOT NULL,
		body_size REAL NOT NULL,
		region INTEGER NOT NULL,
		cell_x INTEGER NOT NULL,
		cell_y INTEGER NOT NULL,
		melee REAL NOT NULL,
		shooting REAL NOT NULL,
		traits INTEGER NOT NULL,
		forced_weapon INTEGER NOT NULL,
		drafted INTEGER NOT NULL,
		alive INTEGER NOT NULL,
		equipped_item TEXT,
		allowed_classes_json TEXT NOT NULL,
		last_equip_tick INTEGER NOT NULL,
		last_attempt_item TEXT,
		last_attempt_tick INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		kind INTEGER NOT NULL,
		region INTEGER NOT NULL,
		cell_x INTEGER NOT NULL,
		cell_y INTEGER NOT NULL,
		quality INTEGER NOT NULL,
		hit_points REAL NOT NULL,
		holder INTEGER,
		owner INTEGER,
		biocoded INTEGER,
		forbidden INTEGER NOT NULL,
		quest_item INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE INDEX IF NOT EXISTS idx_items_holder ON items(holder);
	CREATE INDEX IF NOT EXISTS idx_agents_alive ON agents(alive);
	`
	_, err := db.conn.Exec(schema)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func packTraits(t sim.TraitFlags) int {
	var v int
	if t.Brawler {
		v |= 1
	}
	if t.TriggerShy {
		v |= 2
	}
	if t.Ascetic {
		v |= 4
	}
	if t.NonViolent {
		v |= 8
	}
	return v
}

func unpackTraits(v int) sim.TraitFlags {
	return sim.TraitFlags{
		Brawler:    v&1 != 0,
		TriggerShy: v&2 != 0,
		Ascetic:    v&4 != 0,
		NonViolent: v&8 != 0,
	}
}

// SaveAgents writes the full roster (full replace). Equip cooldown and
// attempt throttle timestamps ride along so a resumed sim does not burst
// through its cooldowns.
func (db *DB) SaveAgents(roster []*sim.Agent, states *agentstate.Store) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(id, name, faction, age, body_size, region, cell_x, cell_y,
		 melee, shooting, traits, forced_weapon, drafted, alive,
		 equipped_item, allowed_classes_json,
		 last_equip_tick, last_attempt_item, last_attempt_tick)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range roster {
		var equipped *string
		if a.Equipped != nil {
			s := string(a.Equipped.ID)
			equipped = &s
		}
		classesJSON, _ := json.Marshal(a.AllowedClasses)

		var lastEquip, lastAttemptTick uint64
		var lastAttemptItem *string
		if st := states.Peek(a.ID); st != nil {
			lastEquip = st.LastEquipTick
			lastAttemptTick = st.LastAttemptTick
			if st.LastAttemptItem != "" {
				s := string(st.LastAttemptItem)
				lastAttemptItem = &s
			}
		}

		_, err := stmt.Exec(
			a.ID, a.Name, a.Faction, a.Age, a.BodySize,
			a.Region, a.Cell.X, a.Cell.Y,
			a.Skills.Melee, a.Skills.Shooting,
			packTraits(a.Traits), boolInt(a.ForcedWeapon), boolInt(a.Drafted), boolInt(a.Alive),
			equipped, string(classesJSON),
			lastEquip, lastAttemptItem, lastAttemptTick,
		)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// SaveItems writes all spawned items, held or on the ground (full
// replace).
func (db *DB) SaveItems(w *sim.World) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM items"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO items
		(id, kind, region, cell_x, cell_y, quality, hit_points,
		 holder, owner, biocoded, forbidden, quest_item)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range w.Items {
		if !it.Spawned {
			continue
		}
		_, err := stmt.Exec(
			it.ID, it.Def.Kind, it.Region, it.Cell.X, it.Cell.Y,
			it.Quality, it.HitPoints,
			it.Holder, it.Owner, it.Biocoded,
			boolInt(it.Forbidden), boolInt(it.QuestItem),
		)
		if err != nil {
			return fmt.Errorf("insert item %s: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveWorldState performs a full save of the durable world state.
func (db *DB) SaveWorldState(s *engine.Simulation) error {
	slog.Info("saving world state", "agents", len(s.Agents), "tick", s.CurrentTick())

	if err := db.SaveAgents(s.Agents, s.States); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := db.SaveItems(s.World); err != nil {
		return fmt.Errorf("save items: %w", err)
	}
	if err := db.SaveEvents(s.Events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_tick", fmt.Sprintf("%d", s.CurrentTick())); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved")
	return nil
}

type agentRow struct {
	ID                 uint64  `db:"id"`
	Name               string  `db:"name"`
	Faction            uint32  `db:"faction"`
	Age                int     `db:"age"`
	BodySize           float64 `db:"body_size"`
	Region             uint32  `db:"region"`
	CellX              int     `db:"cell_x"`
	CellY              int     `db:"cell_y"`
	Melee              float64 `db:"melee"`
	Shooting           float64 `db:"shooting"`
	Traits             int     `db:"traits"`
	ForcedWeapon       int     `db:"forced_weapon"`
	Drafted            int     `db:"drafted"`
	Alive              int     `db:"alive"`
	EquippedItem       *string `db:"equipped_item"`
	AllowedClassesJSON string  `db:"allowed_classes_json"`
	LastEquipTick      uint64  `db:"last_equip_tick"`
	LastAttemptItem    *string `db:"last_attempt_item"`
	LastAttemptTick    uint64  `db:"last_attempt_tick"`
}

type itemRow struct {
	ID        string  `db:"id"`
	Kind      uint16  `db:"kind"`
	Region    uint32  `db:"region"`
	CellX     int     `db:"cell_x"`
	CellY     int     `db:"cell_y"`
	Quality   uint8   `db:"quality"`
	HitPoints float64 `db:"hit_points"`
	Holder    *uint64 `db:"holder"`
	Owner     *uint64 `db:"owner"`
	Biocoded  *uint64 `db:"biocoded"`
	Forbidden int     `db:"forbidden"`
	QuestItem int     `db:"quest_item"`
}

// LoadWorldState restores agents, items, and durable timestamps into a
// fresh world. Returns the restored roster and the saved tick. Items of
// kinds no longer in the catalog are dropped with a warning.
func (db *DB) LoadWorldState(w *sim.World, states *agentstate.Store) ([]*sim.Agent, uint64, error) {
	var itemRows []itemRow
	if err := db.conn.Select(&itemRows, "SELECT * FROM items"); err != nil {
		return nil, 0, fmt.Errorf("load items: %w", err)
	}

	items := make(map[sim.ItemID]*sim.Item, len(itemRows))
	for _, r := range itemRows {
		def, ok := sim.DefFor(sim.WeaponKind(r.Kind))
		if !ok {
			slog.Warn("dropping item of unknown kind", "id", r.ID, "kind", r.Kind)
			continue
		}
		it := &sim.Item{
			ID:        sim.ItemID(r.ID),
			Def:       def,
			Region:    world.RegionID(r.Region),
			Cell:      world.Cell{X: r.CellX, Y: r.CellY},
			Quality:   sim.Quality(r.Quality),
			HitPoints: r.HitPoints,
			Forbidden: r.Forbidden != 0,
			QuestItem: r.QuestItem != 0,
			Spawned:   true,
		}
		if r.Owner != nil {
			id := sim.AgentID(*r.Owner)
			it.Owner = &id
		}
		if r.Biocoded != nil {
			id := sim.AgentID(*r.Biocoded)
			it.Biocoded = &id
		}
		items[it.ID] = it
	}

	var agentRows []agentRow
	if err := db.conn.Select(&agentRows, "SELECT * FROM agents ORDER BY id"); err != nil {
		return nil, 0, fmt.Errorf("load agents: %w", err)
	}

	roster := make([]*sim.Agent, 0, len(agentRows))
	for _, r := range agentRows {
		a := &sim.Agent{
			ID:           sim.AgentID(r.ID),
			Name:         r.Name,
			Faction:      sim.FactionID(r.Faction),
			Age:          r.Age,
			BodySize:     r.BodySize,
			Region:       world.RegionID(r.Region),
			Cell:         world.Cell{X: r.CellX, Y: r.CellY},
			Skills:       sim.SkillSet{Melee: r.Melee, Shooting: r.Shooting},
			Traits:       unpackTraits(r.Traits),
			ForcedWeapon: r.ForcedWeapon != 0,
			Drafted:      r.Drafted != 0,
			Alive:        r.Alive != 0,
		}
		if r.AllowedClassesJSON != "" {
			if err := json.Unmarshal([]byte(r.AllowedClassesJSON), &a.AllowedClasses); err != nil {
				slog.Warn("bad allowed classes, clearing", "agent", a.ID, "error", err)
				a.AllowedClasses = nil
			}
		}
		w.SpawnAgent(a)
		// SpawnAgent marks every agent alive; dead agents stay dead.
		a.Alive = r.Alive != 0
		roster = append(roster, a)

		st := states.GetOrCreate(a.ID)
		st.LastEquipTick = r.LastEquipTick
		st.LastAttemptTick = r.LastAttemptTick
		if r.LastAttemptItem != nil {
			st.LastAttemptItem = sim.ItemID(*r.LastAttemptItem)
		}
	}

	// Second pass: place items with their holders restored. Held items go
	// straight into the equipped slot or inventory, ground items spawn in
	// place and notify the index listeners.
	byID := make(map[sim.AgentID]*sim.Agent, len(roster))
	equippedID := make(map[sim.AgentID]sim.ItemID, len(roster))
	for i, a := range roster {
		byID[a.ID] = a
		if agentRows[i].EquippedItem != nil {
			equippedID[a.ID] = sim.ItemID(*agentRows[i].EquippedItem)
		}
	}
	for _, r := range itemRows {
		it, ok := items[sim.ItemID(r.ID)]
		if !ok {
			continue
		}
		if r.Holder == nil {
			w.SpawnItem(it)
			continue
		}
		holder, ok := byID[sim.AgentID(*r.Holder)]
		if !ok || !holder.Alive {
			slog.Warn("item holder missing, placing on ground", "item", it.ID, "holder", *r.Holder)
			w.SpawnItem(it)
			continue
		}
		id := holder.ID
		it.Holder = &id
		it.Spawned = true
		w.Items[it.ID] = it
		if equippedID[holder.ID] == it.ID {
			holder.Equipped = it
		} else {
			holder.Inventory = append(holder.Inventory, it)
		}
	}

	tick := uint64(0)
	if v, err := db.GetMeta("last_tick"); err == nil {
		fmt.Sscanf(v, "%d", &tick)
	}

	slog.Info("world state loaded", "agents", len(roster), "items", len(items), "tick", tick)
	return roster, tick, nil
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
