package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/repository"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/service"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/apierror"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/response"
)

// CatalogHandler handles catalog administration requests.
type CatalogHandler struct {
	store repository.PackStore
	packs *service.PackService
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(store repository.PackStore, packs *service.PackService) *CatalogHandler {
	return &CatalogHandler{
		store: store,
		packs: packs,
	}
}

// ImportRequest carries the templates to upsert.
type ImportRequest struct {
	Templates []model.CardTemplate `json:"templates"`
}

// Import handles POST /api/v1/admin/catalog/import
func (h *CatalogHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if len(req.Templates) == 0 {
		response.Error(w, apierror.BadRequest("templates is required"))
		return
	}
	for _, t := range req.Templates {
		if t.ID == 0 {
			response.Error(w, apierror.ValidationError("template id is required",
				apierror.FieldError{Field: "id", Message: "must be non-zero"}))
			return
		}
	}

	if err := h.store.ImportTemplates(r.Context(), req.Templates); err != nil {
		response.Error(w, apierror.InternalError("failed to import templates"))
		return
	}

	h.packs.InvalidateCatalog(r.Context())

	response.OK(w, map[string]int{"imported": len(req.Templates)})
}

// List handles GET /api/v1/admin/catalog
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.AllTemplates(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to load templates"))
		return
	}

	response.OK(w, templates)
}

// ProvisionRequest carries the card mint parameters.
type ProvisionRequest struct {
	TemplateID int64 `json:"template_id"`
	Count      int   `json:"count"`
}

// Provision handles POST /api/v1/admin/cards/provision
func (h *CatalogHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req ProvisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	if req.TemplateID == 0 {
		response.Error(w, apierror.BadRequest("template_id is required"))
		return
	}
	if req.Count <= 0 || req.Count > 10000 {
		response.Error(w, apierror.BadRequest("count must be between 1 and 10000"))
		return
	}

	created, err := h.store.ProvisionCards(r.Context(), req.TemplateID, req.Count, time.Now().UTC())
	if err != nil {
		response.Error(w, apierror.InternalError("failed to provision cards"))
		return
	}

	response.Created(w, map[string]int64{"created": created})
}
