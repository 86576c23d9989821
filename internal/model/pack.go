package model

// Rarity is a card rarity label. Labels double as weight-table keys and as
// the denormalized rarity column on cards.
type Rarity string

const (
	RarityCommon                  Rarity = "Common"
	RarityUncommon                Rarity = "Uncommon"
	RarityRare                    Rarity = "Rare"
	RarityDoubleRare              Rarity = "DoubleRare"
	RarityUltraRare               Rarity = "UltraRare"
	RarityIllustrationRare        Rarity = "IllustrationRare"
	RaritySpecialIllustrationRare Rarity = "SpecialIllustrationRare"
	RarityMegaHyperRare           Rarity = "MegaHyperRare"
	RarityEnergy                  Rarity = "Energy"
)

// RarityWeight is one entry of a weighted slot table. Order in the slice is
// significant: cumulative resolution walks entries in declared order.
type RarityWeight struct {
	Rarity Rarity
	P      float64
}

// Slot is one position in a pack layout. Exactly one of Fixed or Table is
// set. The Energy flag routes template resolution to energy-flagged
// templates instead of a rarity pool.
type Slot struct {
	Name   string
	Fixed  Rarity
	Table  []RarityWeight
	Energy bool
}

// SlotLayout is the versioned, ordered slot sequence for a pack type. It is
// a compile-time constant, not a database row.
type SlotLayout struct {
	PackType string
	Version  int
	Slots    []Slot
}

// BoosterPackType is the supported pack type identifier.
const BoosterPackType = "booster"

var boosterLayout = SlotLayout{
	PackType: BoosterPackType,
	Version:  1,
	Slots: []Slot{
		{Name: "common-1", Fixed: RarityCommon},
		{Name: "common-2", Fixed: RarityCommon},
		{Name: "common-3", Fixed: RarityCommon},
		{Name: "common-4", Fixed: RarityCommon},
		{Name: "uncommon-1", Fixed: RarityUncommon},
		{Name: "uncommon-2", Fixed: RarityUncommon},
		{Name: "uncommon-3", Fixed: RarityUncommon},
		{Name: "flex", Table: []RarityWeight{
			{RarityRare, 0.25},
			{RarityUncommon, 0.35},
			{RarityCommon, 0.40},
		}},
		{Name: "reverse", Table: []RarityWeight{
			{RarityMegaHyperRare, 0.0004},
			{RaritySpecialIllustrationRare, 0.0099},
			{RarityIllustrationRare, 0.1089},
			{RarityUltraRare, 0.035},
			{RarityDoubleRare, 0.08},
			{RarityRare, 0.15},
			{RarityUncommon, 0.28},
			{RarityCommon, 0.3358},
		}},
		{Name: "rare-or-better", Table: []RarityWeight{
			{RarityMegaHyperRare, 0.000758},
			{RaritySpecialIllustrationRare, 0.008333},
			{RarityIllustrationRare, 0.090909},
			{RarityUltraRare, 0.071429},
			{RarityDoubleRare, 0.166667},
			{RarityRare, 0.661905},
		}},
		{Name: "energy", Fixed: RarityEnergy, Energy: true},
	},
}

// LayoutFor returns the slot layout for a pack type.
func LayoutFor(packType string) (SlotLayout, bool) {
	if packType == BoosterPackType {
		return boosterLayout, true
	}
	return SlotLayout{}, false
}

// rarityPrices is the fixed price-per-rarity table in the smallest currency
// unit. The engine consumes it read-only when preparing settlement terms.
var rarityPrices = map[Rarity]int64{
	RarityCommon:                  1_000_000,
	RarityUncommon:                2_000_000,
	RarityRare:                    3_000_000,
	RarityDoubleRare:              6_000_000,
	RarityUltraRare:               10_000_000,
	RarityIllustrationRare:        15_000_000,
	RaritySpecialIllustrationRare: 30_000_000,
	RarityMegaHyperRare:           50_000_000,
	RarityEnergy:                  1_000_000,
}

// PriceFor returns the settlement price for a rarity in the smallest
// currency unit. Unknown rarities price as zero.
func PriceFor(r Rarity) int64 {
	return rarityPrices[r]
}

// CurrencySOL is the native settlement currency. Any other currency needs a
// caller-supplied token account.
const CurrencySOL = "SOL"
