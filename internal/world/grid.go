// Package world provides the colony map model: square-grid cells, terrain,
// storage zones, and deterministic map generation.
package world

// RegionID identifies one world map. Multi-map worlds carry one candidate
// index and one map instance per region.
type RegionID uint32

// Cell is a position on a map's square grid.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Neighbors4 returns the four orthogonally adjacent cells.
func (c Cell) Neighbors4() [4]Cell {
	return [4]Cell{
		{X: c.X + 1, Y: c.Y},
		{X: c.X - 1, Y: c.Y},
		{X: c.X, Y: c.Y + 1},
		{X: c.X, Y: c.Y - 1},
	}
}

// Distance returns the Chebyshev distance between two cells — diagonal
// movement costs the same as orthogonal on the colony grid.
func Distance(a, b Cell) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// Terrain types for map cells.
type Terrain uint8

const (
	TerrainSoil  Terrain = iota // Open ground
	TerrainRock                 // Mountainous interior
	TerrainWater                // Impassable
	TerrainFloor                // Built floor — rooms, stockpiles
)

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainSoil:
		return "Soil"
	case TerrainRock:
		return "Rock"
	case TerrainWater:
		return "Water"
	case TerrainFloor:
		return "Floor"
	default:
		return "Unknown"
	}
}
