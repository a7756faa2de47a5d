package world

import "fmt"

// Tile is a single cell's static state on a map.
type Tile struct {
	Cell    Cell    `json:"cell"`
	Terrain Terrain `json:"terrain"`

	// Storage marks cells inside a stockpile zone. Items on storage cells
	// satisfy storage-restricted searches.
	Storage bool `json:"storage"`

	// LootDensity biases the demo spawner toward this cell (0.0–1.0).
	LootDensity float64 `json:"loot_density"`
}

// Map holds one region's grid. Width and Height bound valid cells at
// [0, Width) x [0, Height).
type Map struct {
	Region RegionID       `json:"region"`
	Width  int            `json:"width"`
	Height int            `json:"height"`
	Tiles  map[Cell]*Tile `json:"-"`
}

// NewMap creates an empty map for a region.
func NewMap(region RegionID, width, height int) *Map {
	return &Map{
		Region: region,
		Width:  width,
		Height: height,
		Tiles:  make(map[Cell]*Tile, width*height),
	}
}

// Get returns the tile at the given cell, or nil if out of bounds.
func (m *Map) Get(c Cell) *Tile {
	return m.Tiles[c]
}

// Set places a tile.
func (m *Map) Set(t *Tile) {
	m.Tiles[t.Cell] = t
}

// InBounds reports whether the cell lies inside the map rectangle.
func (m *Map) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < m.Width && c.Y >= 0 && c.Y < m.Height
}

// IsStorage reports whether the cell is inside a stockpile zone.
func (m *Map) IsStorage(c Cell) bool {
	t := m.Tiles[c]
	return t != nil && t.Storage
}

// Walkable reports whether an agent can stand on the cell.
func (m *Map) Walkable(c Cell) bool {
	t := m.Tiles[c]
	return t != nil && t.Terrain != TerrainWater && t.Terrain != TerrainRock
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(region=%d, %dx%d)", m.Region, m.Width, m.Height)
}
