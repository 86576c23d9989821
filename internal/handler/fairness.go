package handler

import (
	"net/http"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/service"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/response"
)

// FairnessHandler exposes the audit surface of the commit-reveal scheme.
type FairnessHandler struct {
	packs *service.PackService
}

// NewFairnessHandler creates a new fairness handler.
func NewFairnessHandler(packs *service.PackService) *FairnessHandler {
	return &FairnessHandler{packs: packs}
}

// FairnessResponse carries the published commitment, plus the derived
// nonce when a caller seed is supplied so clients can pre-verify the
// stream key they are about to play against.
type FairnessResponse struct {
	Commitment string `json:"commitment"`
	Nonce      string `json:"nonce,omitempty"`
}

// Get handles GET /api/v1/fairness?caller_seed=...
func (h *FairnessHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := FairnessResponse{
		Commitment: h.packs.Commitment(),
	}

	if seed := r.URL.Query().Get("caller_seed"); seed != "" {
		resp.Nonce = h.packs.DeriveNonce(seed)
	}

	response.OK(w, resp)
}
