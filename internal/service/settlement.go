package service

import (
	"context"
	"log"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
)

// SettlementHandoff is everything the settlement layer needs to build and
// submit the on-chain transaction for a resolved session. The engine only
// prepares this data; transaction construction, submission, and retries
// live outside this core.
type SettlementHandoff struct {
	SessionID string             `json:"session_id"`
	Wallet    string             `json:"wallet"`
	Currency  string             `json:"currency"`
	Outcome   model.SessionState `json:"outcome"`
	CardIDs   []int64            `json:"card_ids"`
	Rarities  []model.Rarity     `json:"rarities"`
	Prices    []int64            `json:"prices"`
	Total     int64              `json:"total"`
}

// NewSettlementHandoff prices a resolved session against the fixed
// per-rarity table. Prices line up index-for-index with the rarities and
// reserved card ids.
func NewSettlementHandoff(sess *model.PackSession) *SettlementHandoff {
	prices := make([]int64, len(sess.Rarities))
	var total int64
	for i, r := range sess.Rarities {
		prices[i] = model.PriceFor(r)
		total += prices[i]
	}

	return &SettlementHandoff{
		SessionID: sess.ID,
		Wallet:    sess.Wallet,
		Currency:  sess.Currency,
		Outcome:   sess.State,
		CardIDs:   sess.CardIDs,
		Rarities:  sess.Rarities,
		Prices:    prices,
		Total:     total,
	}
}

// SettlementGateway consumes handoffs at the transport edge. The engine
// never depends on anything it returns beyond submission success.
type SettlementGateway interface {
	Submit(ctx context.Context, h *SettlementHandoff) error
}

// LogGateway is the development gateway: it records the handoff and
// succeeds. Production wires the real transaction builder here.
type LogGateway struct{}

// Submit logs the handoff.
func (LogGateway) Submit(ctx context.Context, h *SettlementHandoff) error {
	log.Printf("[Settlement] session=%s wallet=%s outcome=%s cards=%d total=%d %s",
		h.SessionID, h.Wallet, h.Outcome, len(h.CardIDs), h.Total, h.Currency)
	return nil
}
