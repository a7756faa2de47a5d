package sim

import (
	"github.com/google/uuid"

	"github.com/Snusene/AutoArm-sub008/internal/world"
)

// ItemID is a stable unique identifier for a spawned item.
type ItemID string

// NewItemID mints a fresh item identifier.
func NewItemID() ItemID {
	return ItemID(uuid.NewString())
}

// WeaponClass splits the catalog into broad combat profiles.
type WeaponClass uint8

const (
	ClassMelee WeaponClass = iota
	ClassRanged
)

// WeaponKind identifies a weapon type within the catalog. Duplicate-type
// suppression and forced same-type upgrades match on Kind.
type WeaponKind uint16

// Quality tiers multiply an item's full score.
type Quality uint8

const (
	QualityAwful Quality = iota
	QualityPoor
	QualityNormal
	QualityGood
	QualityExcellent
	QualityMasterwork
	QualityLegendary
)

// QualityName returns a human-readable name for a quality tier.
func QualityName(q Quality) string {
	switch q {
	case QualityAwful:
		return "Awful"
	case QualityPoor:
		return "Poor"
	case QualityNormal:
		return "Normal"
	case QualityGood:
		return "Good"
	case QualityExcellent:
		return "Excellent"
	case QualityMasterwork:
		return "Masterwork"
	case QualityLegendary:
		return "Legendary"
	default:
		return "Unknown"
	}
}

// ItemDef is the static definition of a weapon type. Scoring treats these
// numbers as opaque inputs.
type ItemDef struct {
	Kind        WeaponKind  `json:"kind"`
	Name        string      `json:"name"`
	Class       WeaponClass `json:"class"`
	BaseDamage  float64     `json:"base_damage"`
	Range       float64     `json:"range"`        // cells; 0 for melee
	MinBodySize float64     `json:"min_body_size"`
	MarketValue float64     `json:"market_value"`
	TwoHanded   bool        `json:"two_handed"`
}

// Item is a spawned weapon instance. Position and holder are informational;
// lifetime is owned by the World.
type Item struct {
	ID  ItemID   `json:"id"`
	Def *ItemDef `json:"-"`

	Region world.RegionID `json:"region"`
	Cell   world.Cell     `json:"cell"`

	Quality   Quality `json:"quality"`
	HitPoints float64 `json:"hit_points"` // condition, 0.0–1.0 of max

	// Holder is the agent currently carrying or wielding the item, nil when
	// it lies on the ground.
	Holder *AgentID `json:"holder,omitempty"`
	// Owner is an assigned owner (e.g. a quest reward bound to someone);
	// informational, never an ownership edge.
	Owner *AgentID `json:"owner,omitempty"`

	// Biocoded locks the item to one agent permanently.
	Biocoded *AgentID `json:"biocoded,omitempty"`

	Forbidden bool `json:"forbidden"`
	QuestItem bool `json:"quest_item"`

	Spawned bool `json:"spawned"`
}

// OnGround reports whether the item lies unheld on the map.
func (it *Item) OnGround() bool {
	return it != nil && it.Spawned && it.Holder == nil
}

// NewItem creates a spawned item of the given definition at a cell.
func NewItem(def *ItemDef, region world.RegionID, cell world.Cell, q Quality) *Item {
	return &Item{
		ID:        NewItemID(),
		Def:       def,
		Region:    region,
		Cell:      cell,
		Quality:   q,
		HitPoints: 1.0,
		Spawned:   true,
	}
}
