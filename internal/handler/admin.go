package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/repository"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/service"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/apierror"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/response"
)

// AdminHandler handles operator HTTP requests.
type AdminHandler struct {
	packs        *service.PackService
	sweeper      *service.ExpirySweeper
	tokenService *service.TokenService
	store        repository.PackStore
	adminKey     string
	dbType       string
	startTime    time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(
	packs *service.PackService,
	sweeper *service.ExpirySweeper,
	tokenService *service.TokenService,
	store repository.PackStore,
	adminKey string,
	dbType string,
) *AdminHandler {
	return &AdminHandler{
		packs:        packs,
		sweeper:      sweeper,
		tokenService: tokenService,
		store:        store,
		adminKey:     adminKey,
		dbType:       dbType,
		startTime:    time.Now(),
	}
}

// LoginResponse is the response for a successful admin login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// Login handles POST /api/v1/admin/login. Exchanges the static admin key
// for a short-lived session token. Requires Redis; deployments without it
// use X-Admin-Key directly on every admin call.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.adminKey == "" || r.Header.Get("X-Admin-Key") != h.adminKey {
		response.Error(w, apierror.Unauthorized("invalid admin key"))
		return
	}

	if h.tokenService == nil {
		response.Error(w, apierror.ServiceUnavailable("token sessions require redis; use X-Admin-Key directly"))
		return
	}

	token, err := h.tokenService.GenerateToken(r.Context(), model.TokenData{Operator: "admin"})
	if err != nil {
		response.Error(w, apierror.InternalError("failed to generate token"))
		return
	}

	response.OK(w, LoginResponse{
		Token:     token,
		ExpiresIn: int(service.TokenTTL.Seconds()),
	})
}

// Settle handles POST /api/v1/admin/sessions/{session_id}/settle
func (h *AdminHandler) Settle(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")

	sess, err := h.packs.AdminSettle(r.Context(), sessionID)
	if err != nil {
		response.Error(w, mapPackError(err))
		return
	}

	response.OK(w, sess)
}

// Sweep handles POST /api/v1/admin/sweep - runs the expiry pass on demand.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	expired, err := h.sweeper.RunNow(r.Context())
	if err != nil {
		response.Error(w, apierror.InternalError("sweep failed"))
		return
	}

	response.OK(w, map[string]int64{"expired": expired})
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["db_type"] = h.dbType

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":      float64(memStats.Alloc) / 1024 / 1024,
		"sys_mb":        float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb": float64(memStats.HeapAlloc) / 1024 / 1024,
		"num_gc":        memStats.NumGC,
		"goroutines":    runtime.NumGoroutine(),
	}

	// Store counters: cards per status, sessions per state
	if h.store != nil {
		storeStats, err := h.store.Stats(ctx)
		if err == nil {
			storeStats["status"] = "connected"
			stats["store"] = storeStats
		} else {
			stats["store"] = map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}
