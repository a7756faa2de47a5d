// Map generation using layered simplex noise.
// Generates elevation and loot-density fields, derives terrain, then carves
// a stockpile zone near the map center.
package world

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds map generation parameters.
type GenConfig struct {
	Region     RegionID
	Width      int
	Height     int
	Seed       int64   // 0 = random
	RockLevel  float64 // Elevation threshold for rock (0.0–1.0)
	WaterLevel float64 // Elevation threshold for water (0.0–1.0)
	StorageRad int     // Half-size of the central stockpile zone
}

// DefaultGenConfig returns the configuration used by the demo sim.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Region:     1,
		Width:      96,
		Height:     96,
		Seed:       0,
		RockLevel:  0.72,
		WaterLevel: 0.18,
		StorageRad: 4,
	}
}

// SmallTestConfig returns a tiny map for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		Region:     1,
		Width:      24,
		Height:     24,
		Seed:       42,
		RockLevel:  0.8,
		WaterLevel: 0.1,
		StorageRad: 2,
	}
}

// Generate creates a complete map with terrain, loot density, and a central
// stockpile zone. Deterministic for a fixed seed.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	lootNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Region, cfg.Width, cfg.Height)

	for x := 0; x < cfg.Width; x++ {
		for y := 0; y < cfg.Height; y++ {
			fx, fy := float64(x), float64(y)

			elev := octaveNoise(elevNoise, fx, fy, 4, 0.05, 0.5)
			loot := octaveNoise(lootNoise, fx, fy, 3, 0.08, 0.5)

			terrain := TerrainSoil
			switch {
			case elev < cfg.WaterLevel:
				terrain = TerrainWater
			case elev > cfg.RockLevel:
				terrain = TerrainRock
			}

			// Loot only accumulates on walkable ground.
			if terrain != TerrainSoil {
				loot = 0
			}

			m.Set(&Tile{
				Cell:        Cell{X: x, Y: y},
				Terrain:     terrain,
				LootDensity: loot,
			})
		}
	}

	carveStockpile(m, cfg)
	return m
}

// carveStockpile floors a square around the map center and marks it storage.
func carveStockpile(m *Map, cfg GenConfig) {
	cx, cy := cfg.Width/2, cfg.Height/2
	for x := cx - cfg.StorageRad; x <= cx+cfg.StorageRad; x++ {
		for y := cy - cfg.StorageRad; y <= cy+cfg.StorageRad; y++ {
			t := m.Get(Cell{X: x, Y: y})
			if t == nil {
				continue
			}
			t.Terrain = TerrainFloor
			t.Storage = true
			t.LootDensity = 0
		}
	}
}

// LootCells returns walkable cells ordered by descending loot density,
// used by the demo spawner to place dropped weapons. Ordering across equal
// densities follows grid order so results are deterministic.
func LootCells(m *Map, limit int) []Cell {
	type scored struct {
		cell Cell
		loot float64
	}
	var cells []scored
	for x := 0; x < m.Width; x++ {
		for y := 0; y < m.Height; y++ {
			t := m.Get(Cell{X: x, Y: y})
			if t == nil || t.LootDensity <= 0 {
				continue
			}
			cells = append(cells, scored{cell: t.Cell, loot: t.LootDensity})
		}
	}
	// Insertion-sort by loot descending; list is built in grid order so
	// ties keep a stable order.
	for i := 1; i < len(cells); i++ {
		for j := i; j > 0 && cells[j].loot > cells[j-1].loot; j-- {
			cells[j], cells[j-1] = cells[j-1], cells[j]
		}
	}
	if limit > 0 && len(cells) > limit {
		cells = cells[:limit]
	}
	out := make([]Cell, len(cells))
	for i, s := range cells {
		out[i] = s.cell
	}
	return out
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(m *Map) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, t := range m.Tiles {
		counts[t.Terrain]++
	}
	return counts
}
