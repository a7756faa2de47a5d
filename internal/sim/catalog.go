package sim

// Weapon kinds in the demo catalog.
const (
	KindKnife WeaponKind = iota + 1
	KindClub
	KindGladius
	KindLongsword
	KindSpear
	KindShortBow
	KindGreatBow
	KindRevolver
	KindBoltRifle
	KindAssaultRifle
	KindSniperRifle
	KindChainShotgun
)

// catalog is the built-in weapon definition table. The decision core never
// reads it directly; it reaches items only through their Def reference.
var catalog = map[WeaponKind]*ItemDef{
	KindKnife:        {Kind: KindKnife, Name: "knife", Class: ClassMelee, BaseDamage: 6, MinBodySize: 0.3, MarketValue: 40},
	KindClub:         {Kind: KindClub, Name: "club", Class: ClassMelee, BaseDamage: 9, MinBodySize: 0.4, MarketValue: 30},
	KindGladius:      {Kind: KindGladius, Name: "gladius", Class: ClassMelee, BaseDamage: 12, MinBodySize: 0.5, MarketValue: 190},
	KindLongsword:    {Kind: KindLongsword, Name: "longsword", Class: ClassMelee, BaseDamage: 16, MinBodySize: 0.8, MarketValue: 385, TwoHanded: true},
	KindSpear:        {Kind: KindSpear, Name: "spear", Class: ClassMelee, BaseDamage: 14, MinBodySize: 0.7, MarketValue: 310, TwoHanded: true},
	KindShortBow:     {Kind: KindShortBow, Name: "short bow", Class: ClassRanged, BaseDamage: 9, Range: 25, MinBodySize: 0.5, MarketValue: 110},
	KindGreatBow:     {Kind: KindGreatBow, Name: "great bow", Class: ClassRanged, BaseDamage: 14, Range: 30, MinBodySize: 0.9, MarketValue: 210, TwoHanded: true},
	KindRevolver:     {Kind: KindRevolver, Name: "revolver", Class: ClassRanged, BaseDamage: 12, Range: 26, MinBodySize: 0.4, MarketValue: 240},
	KindBoltRifle:    {Kind: KindBoltRifle, Name: "bolt-action rifle", Class: ClassRanged, BaseDamage: 18, Range: 37, MinBodySize: 0.7, MarketValue: 420, TwoHanded: true},
	KindAssaultRifle: {Kind: KindAssaultRifle, Name: "assault rifle", Class: ClassRanged, BaseDamage: 23, Range: 31, MinBodySize: 0.8, MarketValue: 820, TwoHanded: true},
	KindSniperRifle:  {Kind: KindSniperRifle, Name: "sniper rifle", Class: ClassRanged, BaseDamage: 30, Range: 45, MinBodySize: 0.9, MarketValue: 930, TwoHanded: true},
	KindChainShotgun: {Kind: KindChainShotgun, Name: "chain shotgun", Class: ClassRanged, BaseDamage: 21, Range: 16, MinBodySize: 0.8, MarketValue: 670, TwoHanded: true},
}

// DefFor returns the definition for a weapon kind.
func DefFor(kind WeaponKind) (*ItemDef, bool) {
	def, ok := catalog[kind]
	return def, ok
}

// AllKinds returns every kind in the catalog in ascending order.
func AllKinds() []WeaponKind {
	kinds := make([]WeaponKind, 0, len(catalog))
	for k := KindKnife; k <= KindChainShotgun; k++ {
		if _, ok := catalog[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
