package pack_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/fairness"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/pack"
)

// fakeCatalog serves a configurable number of templates per rarity.
type fakeCatalog struct {
	perRarity map[model.Rarity][]model.CardTemplate
	energy    []model.CardTemplate
}

func newFakeCatalog() *fakeCatalog {
	c := &fakeCatalog{perRarity: make(map[model.Rarity][]model.CardTemplate)}
	rarities := []model.Rarity{
		model.RarityCommon, model.RarityUncommon, model.RarityRare,
		model.RarityDoubleRare, model.RarityUltraRare, model.RarityIllustrationRare,
		model.RaritySpecialIllustrationRare, model.RarityMegaHyperRare,
	}
	var id int64 = 1
	for _, r := range rarities {
		for i := 0; i < 3; i++ {
			c.perRarity[r] = append(c.perRarity[r], model.CardTemplate{
				ID: id, Name: string(r), Rarity: r,
			})
			id++
		}
	}
	c.energy = []model.CardTemplate{{ID: id, Name: "Basic Energy", Rarity: model.RarityEnergy, Energy: true}}
	return c
}

func (c *fakeCatalog) ByRarity(r model.Rarity) []model.CardTemplate { return c.perRarity[r] }
func (c *fakeCatalog) Energy() []model.CardTemplate                 { return c.energy }

func boosterLayout(t *testing.T) model.SlotLayout {
	t.Helper()
	layout, ok := model.LayoutFor(model.BoosterPackType)
	if !ok {
		t.Fatal("booster layout missing")
	}
	return layout
}

func TestWeightTablesSumToOne(t *testing.T) {
	layout := boosterLayout(t)

	for _, slot := range layout.Slots {
		if len(slot.Table) == 0 {
			continue
		}
		sum := pack.WeightSum(slot.Table)
		if math.Abs(sum-1.0) > 1e-6 {
			t.Errorf("slot %s weights sum to %.9f, want 1.0", slot.Name, sum)
		}
	}
}

func TestLayoutShape(t *testing.T) {
	layout := boosterLayout(t)

	if len(layout.Slots) != 11 {
		t.Fatalf("layout has %d slots, want 11", len(layout.Slots))
	}

	wantFixed := []model.Rarity{
		model.RarityCommon, model.RarityCommon, model.RarityCommon, model.RarityCommon,
		model.RarityUncommon, model.RarityUncommon, model.RarityUncommon,
	}
	for i, r := range wantFixed {
		if layout.Slots[i].Fixed != r {
			t.Errorf("slot %d fixed rarity = %s, want %s", i, layout.Slots[i].Fixed, r)
		}
	}
	if len(layout.Slots[7].Table) != 3 {
		t.Errorf("flex slot table has %d entries, want 3", len(layout.Slots[7].Table))
	}
	if len(layout.Slots[8].Table) != 8 {
		t.Errorf("reverse slot table has %d entries, want 8", len(layout.Slots[8].Table))
	}
	if len(layout.Slots[9].Table) != 6 {
		t.Errorf("rare-or-better slot table has %d entries, want 6", len(layout.Slots[9].Table))
	}
	if !layout.Slots[10].Energy {
		t.Error("slot 10 should be the energy slot")
	}
}

func TestRollDeterministic(t *testing.T) {
	layout := boosterLayout(t)
	cat := newFakeCatalog()
	auth := fairness.New("dev-server-seed")
	nonce := auth.DeriveNonce("abc")

	first := pack.Roll(auth.SeedStream("abc", nonce), layout, cat)
	second := pack.Roll(auth.SeedStream("abc", nonce), layout, cat)

	if len(first) != 11 {
		t.Fatalf("lineup has %d slots, want 11", len(first))
	}
	for i := range first {
		if first[i].Rarity != second[i].Rarity {
			t.Errorf("slot %d rarity diverged: %s != %s", i, first[i].Rarity, second[i].Rarity)
		}
		if (first[i].Template == nil) != (second[i].Template == nil) {
			t.Fatalf("slot %d template resolution diverged", i)
		}
		if first[i].Template != nil && first[i].Template.ID != second[i].Template.ID {
			t.Errorf("slot %d template diverged: %d != %d", i, first[i].Template.ID, second[i].Template.ID)
		}
	}
}

// Rarity outcomes must depend only on the seed material, never on what the
// catalog happens to contain.
func TestRaritySequenceIndependentOfCatalog(t *testing.T) {
	layout := boosterLayout(t)
	auth := fairness.New("dev-server-seed")
	nonce := auth.DeriveNonce("abc")

	full := pack.Roll(auth.SeedStream("abc", nonce), layout, newFakeCatalog())

	empty := &fakeCatalog{perRarity: map[model.Rarity][]model.CardTemplate{}}
	bare := pack.Roll(auth.SeedStream("abc", nonce), layout, empty)

	for i := range full {
		if full[i].Rarity != bare[i].Rarity {
			t.Errorf("slot %d rarity changed with catalog contents: %s != %s",
				i, full[i].Rarity, bare[i].Rarity)
		}
		if bare[i].Template != nil {
			t.Errorf("slot %d resolved a template from an empty catalog", i)
		}
	}
}

func TestRollSlotOrder(t *testing.T) {
	layout := boosterLayout(t)
	auth := fairness.New("dev-server-seed")
	nonce := auth.DeriveNonce("order")

	lineup := pack.Roll(auth.SeedStream("order", nonce), layout, newFakeCatalog())

	for i := 0; i < 4; i++ {
		if lineup[i].Rarity != model.RarityCommon {
			t.Errorf("slot %d rarity = %s, want Common", i, lineup[i].Rarity)
		}
	}
	for i := 4; i < 7; i++ {
		if lineup[i].Rarity != model.RarityUncommon {
			t.Errorf("slot %d rarity = %s, want Uncommon", i, lineup[i].Rarity)
		}
	}
	if lineup[10].Rarity != model.RarityEnergy {
		t.Errorf("slot 10 rarity = %s, want Energy", lineup[10].Rarity)
	}
	if lineup[10].Template == nil || !lineup[10].Template.Energy {
		t.Error("energy slot should resolve to an energy-flagged template")
	}
}

func TestResolveWeightedFirstMatchWins(t *testing.T) {
	table := []model.RarityWeight{
		{Rarity: model.RarityRare, P: 0.25},
		{Rarity: model.RarityUncommon, P: 0.35},
		{Rarity: model.RarityCommon, P: 0.40},
	}

	cases := []struct {
		r    float64
		want model.Rarity
	}{
		{0.0, model.RarityRare},
		{0.2499, model.RarityRare},
		{0.25, model.RarityUncommon},
		{0.5999, model.RarityUncommon},
		{0.60, model.RarityCommon},
		{0.9999, model.RarityCommon},
	}
	for _, tc := range cases {
		if got := pack.ResolveWeighted(tc.r, table); got != tc.want {
			t.Errorf("ResolveWeighted(%v) = %s, want %s", tc.r, got, tc.want)
		}
	}
}

// A draw that floats past the cumulative boundary resolves to the last
// declared label instead of failing.
func TestResolveWeightedDriftFallback(t *testing.T) {
	short := []model.RarityWeight{
		{Rarity: model.RarityRare, P: 0.5},
		{Rarity: model.RarityCommon, P: 0.4},
	}
	if got := pack.ResolveWeighted(0.95, short); got != model.RarityCommon {
		t.Errorf("drift fallback = %s, want Common", got)
	}
}

// Weighted slots only ever emit labels from their declared table.
func TestWeightedSlotsStayInTable(t *testing.T) {
	layout := boosterLayout(t)
	cat := newFakeCatalog()

	allowed := func(table []model.RarityWeight) map[model.Rarity]bool {
		m := make(map[model.Rarity]bool)
		for _, w := range table {
			m[w.Rarity] = true
		}
		return m
	}
	flex := allowed(layout.Slots[7].Table)
	reverse := allowed(layout.Slots[8].Table)
	rareUp := allowed(layout.Slots[9].Table)

	rng := rand.New(rand.NewPCG(7, 13))
	for i := 0; i < 500; i++ {
		lineup := pack.Roll(rng, layout, cat)
		if !flex[lineup[7].Rarity] {
			t.Fatalf("flex slot emitted %s", lineup[7].Rarity)
		}
		if !reverse[lineup[8].Rarity] {
			t.Fatalf("reverse slot emitted %s", lineup[8].Rarity)
		}
		if !rareUp[lineup[9].Rarity] {
			t.Fatalf("rare-or-better slot emitted %s", lineup[9].Rarity)
		}
	}
}
