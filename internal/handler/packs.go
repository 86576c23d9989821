package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/service"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/apierror"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/response"
)

// PackHandler handles pack opening HTTP requests.
type PackHandler struct {
	packs   *service.PackService
	gateway service.SettlementGateway
}

// NewPackHandler creates a new pack handler.
func NewPackHandler(packs *service.PackService, gateway service.SettlementGateway) *PackHandler {
	return &PackHandler{
		packs:   packs,
		gateway: gateway,
	}
}

// Preview handles POST /api/v1/packs/preview
func (h *PackHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req service.PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.CallerSeed == "" {
		response.Error(w, apierror.BadRequest("caller_seed is required"))
		return
	}

	view, err := h.packs.Preview(r.Context(), req)
	if err != nil {
		response.Error(w, mapPackError(err))
		return
	}

	response.OK(w, view)
}

// Build handles POST /api/v1/packs/build
func (h *PackHandler) Build(w http.ResponseWriter, r *http.Request) {
	var req service.BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.CallerSeed == "" {
		response.Error(w, apierror.BadRequest("caller_seed is required"))
		return
	}
	if req.Wallet == "" {
		response.Error(w, apierror.BadRequest("wallet is required"))
		return
	}

	result, err := h.packs.Build(r.Context(), req)
	if err != nil {
		response.Error(w, mapPackError(err))
		return
	}

	response.Created(w, result)
}

// decisionRequest is the body for accept/reject.
type decisionRequest struct {
	Wallet string `json:"wallet"`
}

// Accept handles POST /api/v1/packs/{session_id}/accept
func (h *PackHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.packs.Accept)
}

// Reject handles POST /api/v1/packs/{session_id}/reject
func (h *PackHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.packs.Reject)
}

// GetSession handles GET /api/v1/packs/{session_id}
func (h *PackHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	sess, err := h.packs.Session(r.Context(), sessionID)
	if err != nil {
		response.Error(w, mapPackError(err))
		return
	}

	response.OK(w, sess)
}

// decide runs the shared accept/reject flow: resolve the session, then
// submit the settlement handoff. A gateway failure after the ledger
// transition is reported; the transition itself is already durable.
func (h *PackHandler) decide(w http.ResponseWriter, r *http.Request, resolve func(ctx context.Context, sessionID, wallet string) (*service.SettlementHandoff, error)) {
	sessionID := chi.URLParam(r, "session_id")

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.Wallet == "" {
		response.Error(w, apierror.BadRequest("wallet is required"))
		return
	}

	handoff, err := resolve(r.Context(), sessionID, req.Wallet)
	if err != nil {
		response.Error(w, mapPackError(err))
		return
	}

	if err := h.gateway.Submit(r.Context(), handoff); err != nil {
		log.Printf("[PackHandler] settlement submit failed for session %s: %v", sessionID, err)
		response.Error(w, apierror.New(http.StatusBadGateway, "SETTLEMENT_FAILED", "session resolved but settlement submission failed"))
		return
	}

	response.OK(w, handoff)
}

// mapPackError translates engine errors into the stable wire codes.
func mapPackError(err error) *apierror.Error {
	var oos *model.OutOfStockError
	var state *model.InvalidStateError

	switch {
	case errors.Is(err, model.ErrUnsupportedPackType):
		return apierror.New(http.StatusBadRequest, "UNSUPPORTED_PACK_TYPE", err.Error())
	case errors.Is(err, model.ErrCurrencyAccountsMissing):
		return apierror.New(http.StatusBadRequest, "CURRENCY_ACCOUNTS_MISSING", err.Error())
	case errors.Is(err, model.ErrActiveSession):
		return apierror.New(http.StatusConflict, "ACTIVE_SESSION_EXISTS", err.Error())
	case errors.Is(err, model.ErrSessionNotFound):
		return apierror.New(http.StatusNotFound, "SESSION_NOT_FOUND", err.Error())
	case errors.Is(err, model.ErrWalletMismatch):
		return apierror.New(http.StatusForbidden, "WALLET_MISMATCH", err.Error())
	case errors.Is(err, model.ErrSessionExpired):
		return apierror.Gone("SESSION_EXPIRED", err.Error())
	case errors.Is(err, service.ErrRateLimited):
		return apierror.TooManyRequests(err.Error())
	case errors.As(err, &oos):
		return apierror.New(http.StatusConflict, "OUT_OF_STOCK", err.Error())
	case errors.As(err, &state):
		return apierror.New(http.StatusConflict, "INVALID_STATE", err.Error())
	default:
		return apierror.InternalError(fmt.Sprintf("pack operation failed: %v", err))
	}
}
