// Demo spawning — creates the starting colonists and scatters weapons over
// the map's loot field. Only the demo sim uses this; the decision core sees
// whatever the world contains.
package sim

import (
	"math/rand"

	"github.com/Snusene/AutoArm-sub008/internal/world"
)

// Spawner creates agents and items for the demo simulation.
type Spawner struct {
	rng *rand.Rand
}

// NewSpawner creates a spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{rng: rand.New(rand.NewSource(seed + 300))}
}

// SpawnColonists creates a batch of agents near the stockpile.
func (s *Spawner) SpawnColonists(w *World, m *world.Map, count int) []*Agent {
	spawned := make([]*Agent, 0, count)
	center := world.Cell{X: m.Width / 2, Y: m.Height / 2}

	for i := 0; i < count; i++ {
		a := &Agent{
			Name:     s.generateName(),
			Faction:  FactionColony,
			Age:      s.weightedAge(),
			BodySize: 0.85 + s.rng.Float64()*0.3,
			Region:   m.Region,
			Cell: world.Cell{
				X: center.X + s.rng.Intn(9) - 4,
				Y: center.Y + s.rng.Intn(9) - 4,
			},
			Skills: SkillSet{
				Melee:    s.rng.Float64() * 14,
				Shooting: s.rng.Float64() * 14,
			},
		}
		// A few agents carry trait quirks that bias scoring.
		switch s.rng.Intn(12) {
		case 0:
			a.Traits.Brawler = true
		case 1:
			a.Traits.TriggerShy = true
		case 2:
			a.Traits.Ascetic = true
		}
		// Minors scale down in body size.
		if a.Age < 13 {
			a.BodySize *= 0.6
		}
		spawned = append(spawned, w.SpawnAgent(a))
	}
	return spawned
}

// ScatterWeapons drops weapons across the map's loot field and stocks the
// stockpile with a few spares.
func (s *Spawner) ScatterWeapons(w *World, m *world.Map, count int) []*Item {
	cells := world.LootCells(m, count*2)
	kinds := AllKinds()
	spawned := make([]*Item, 0, count)

	for i := 0; i < count && i < len(cells); i++ {
		kind := kinds[s.rng.Intn(len(kinds))]
		def, ok := DefFor(kind)
		if !ok {
			continue
		}
		it := NewItem(def, m.Region, cells[i], s.randomQuality())
		it.HitPoints = 0.4 + s.rng.Float64()*0.6
		spawned = append(spawned, w.SpawnItem(it))
	}
	return spawned
}

// randomQuality rolls a quality tier weighted toward the middle of the
// distribution.
func (s *Spawner) randomQuality() Quality {
	r := s.rng.Float64()
	switch {
	case r < 0.05:
		return QualityAwful
	case r < 0.20:
		return QualityPoor
	case r < 0.60:
		return QualityNormal
	case r < 0.85:
		return QualityGood
	case r < 0.96:
		return QualityExcellent
	case r < 0.995:
		return QualityMasterwork
	default:
		return QualityLegendary
	}
}

func (s *Spawner) weightedAge() int {
	// Bell curve centered around 30, range 8–70.
	age := 30.0 + s.rng.NormFloat64()*12.0
	if age < 8 {
		age = 8
	}
	if age > 70 {
		age = 70
	}
	return int(age)
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var firstNames = []string{
	"Aldric", "Astrid", "Bram", "Brenna", "Cedric", "Calla", "Doran",
	"Daria", "Erik", "Elara", "Finn", "Freya", "Gareth", "Greta",
	"Halvard", "Helene", "Ivan", "Iris", "Jasper", "Juno", "Kael",
	"Kira", "Leif", "Lena", "Magnus", "Mira", "Nils", "Nessa",
	"Oswin", "Olwen", "Per", "Petra", "Quinn", "Runa", "Rowan",
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Ironhand", "Dunmore",
	"Greenvale", "Stormcrow", "Frostborn", "Hearthstone", "Millward",
	"Copperfield", "Ravenmoor", "Silverdale", "Wolfsbane", "Stoneheart",
	"Deepwell", "Brightwater", "Oakenshield", "Redforge", "Windholm",
}
