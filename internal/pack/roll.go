// Package pack turns a seeded RNG stream into a concrete pack lineup:
// one rarity and one card template per slot, in fixed slot order.
package pack

import (
	"log"
	"math/rand/v2"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
)

// Catalog supplies template pools for resolution. Implementations are
// read-only snapshots of the card catalog.
type Catalog interface {
	ByRarity(r model.Rarity) []model.CardTemplate
	Energy() []model.CardTemplate
}

// Result is one resolved slot. Template is nil when the catalog had no
// match; previews surface that as unresolved, builds must fail on it.
type Result struct {
	Slot     int                 `json:"slot"`
	Name     string              `json:"name"`
	Rarity   model.Rarity        `json:"rarity"`
	Template *model.CardTemplate `json:"template,omitempty"`
}

// Roll consumes the RNG in slot order: per slot, one draw for the rarity and
// one draw for the template, always both. Fixed slots burn their rarity draw
// and empty pools burn the template draw, so the draw schedule depends only
// on the layout, never on catalog contents.
func Roll(rng *rand.Rand, layout model.SlotLayout, cat Catalog) []Result {
	results := make([]Result, len(layout.Slots))

	for i, slot := range layout.Slots {
		r := rng.Float64()

		rarity := slot.Fixed
		if len(slot.Table) > 0 {
			rarity = ResolveWeighted(r, slot.Table)
		}

		var pool []model.CardTemplate
		if slot.Energy {
			pool = cat.Energy()
		} else {
			pool = cat.ByRarity(rarity)
		}

		pick := rng.Float64()
		var tmpl *model.CardTemplate
		if len(pool) > 0 {
			t := pool[int(pick*float64(len(pool)))]
			tmpl = &t
		}

		results[i] = Result{Slot: i, Name: slot.Name, Rarity: rarity, Template: tmpl}
	}

	return results
}

// ResolveWeighted resolves a uniform draw against cumulative weights in
// declared order, first match wins. Falling past the last boundary means the
// table's weights drift below the draw; that is a misconfiguration signal,
// so it is logged before returning the last label. Exported so external
// verifiers can replay a lineup from a disclosed seed.
func ResolveWeighted(r float64, table []model.RarityWeight) model.Rarity {
	acc := 0.0
	for _, w := range table {
		acc += w.P
		if r < acc {
			return w.Rarity
		}
	}

	last := table[len(table)-1].Rarity
	log.Printf("[pack] draw %.12f beyond cumulative weight %.12f, falling back to %s", r, acc, last)
	return last
}

// WeightSum returns the total probability mass of a weight table. Exposed so
// layout definitions can be validated at startup and in tests.
func WeightSum(table []model.RarityWeight) float64 {
	sum := 0.0
	for _, w := range table {
		sum += w.P
	}
	return sum
}
