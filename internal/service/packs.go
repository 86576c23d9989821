package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/cache"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/fairness"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/pack"
	"github.com/miner1qaz-ops/Mochi-sub000/internal/repository"
	"github.com/miner1qaz-ops/Mochi-sub000/pkg/uid"
)

const (
	// SessionTTL is the fixed decision window for a built pack.
	SessionTTL = time.Hour

	// catalogCacheKey / catalogCacheTTL control the read-through template
	// cache. Templates are immutable between imports, so a short TTL is
	// plenty.
	catalogCacheKey = "catalog:templates"
	catalogCacheTTL = time.Minute

	buildRateLimit   = 30
	previewRateLimit = 120
	rateLimitWindow  = time.Minute
)

// ErrRateLimited signals a wallet exceeded its preview/build budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// PackService runs the provably-fair pack pipeline: commit-reveal seed
// material, the weighted roll, atomic reservation, and the session
// lifecycle.
type PackService struct {
	store     repository.PackStore
	authority *fairness.Authority
	cache     cache.Cache
	limiter   *RateLimiter
	ttl       time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewPackService creates the pack engine. limiter may be nil (no rate
// limiting); cache may be nil (catalog reads go straight to the store).
func NewPackService(store repository.PackStore, authority *fairness.Authority, c cache.Cache, limiter *RateLimiter) *PackService {
	return &PackService{
		store:     store,
		authority: authority,
		cache:     c,
		limiter:   limiter,
		ttl:       SessionTTL,
		now:       time.Now,
	}
}

// WithSessionTTL overrides the default decision window. Zero keeps the
// default.
func (s *PackService) WithSessionTTL(ttl time.Duration) *PackService {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// PreviewRequest are the inputs of a read-only roll.
type PreviewRequest struct {
	CallerSeed string `json:"caller_seed"`
	Wallet     string `json:"wallet"`
	PackType   string `json:"pack_type"`
}

// BuildRequest are the inputs of a session-creating roll.
type BuildRequest struct {
	CallerSeed   string `json:"caller_seed"`
	Wallet       string `json:"wallet"`
	PackType     string `json:"pack_type"`
	Currency     string `json:"currency"`
	TokenAccount string `json:"token_account"`
}

// RollView is the caller-visible outcome of a roll plus everything needed
// to audit it once the server seed is disclosed.
type RollView struct {
	Lineup     []pack.Result `json:"lineup"`
	Commitment string        `json:"commitment"`
	Nonce      string        `json:"nonce"`
	Proof      string        `json:"proof"`
}

// BuildResult is a persisted session plus its roll view.
type BuildResult struct {
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	RollView
}

// Preview runs the full deterministic pipeline read-only: no session, no
// reservation. Only an unsupported pack type (or rate limiting) fails.
func (s *PackService) Preview(ctx context.Context, req PreviewRequest) (*RollView, error) {
	layout, ok := model.LayoutFor(req.PackType)
	if !ok {
		return nil, model.ErrUnsupportedPackType
	}

	if err := s.allow(ctx, req.Wallet, "preview", previewRateLimit); err != nil {
		return nil, err
	}

	view, _, err := s.roll(ctx, req.CallerSeed, layout)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Build rolls the pack, reserves one card per resolved template, and
// persists the session in pending state with a fixed decision window. On
// any failure nothing is persisted; a retry with a fresh caller seed is
// always a fresh attempt.
func (s *PackService) Build(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	layout, ok := model.LayoutFor(req.PackType)
	if !ok {
		return nil, model.ErrUnsupportedPackType
	}

	currency := req.Currency
	if currency == "" {
		currency = model.CurrencySOL
	}
	if currency != model.CurrencySOL && req.TokenAccount == "" {
		return nil, model.ErrCurrencyAccountsMissing
	}

	if err := s.allow(ctx, req.Wallet, "build", buildRateLimit); err != nil {
		return nil, err
	}

	view, lineup, err := s.roll(ctx, req.CallerSeed, layout)
	if err != nil {
		return nil, err
	}

	rarities := make([]model.Rarity, len(lineup))
	templateIDs := make([]int64, len(lineup))
	for i, res := range lineup {
		if res.Template == nil {
			return nil, &model.OutOfStockError{Slot: res.Slot}
		}
		rarities[i] = res.Rarity
		templateIDs[i] = res.Template.ID
	}

	now := s.now()
	sess := &model.PackSession{
		ID:         uid.New(),
		Wallet:     req.Wallet,
		PackType:   req.PackType,
		Currency:   currency,
		CallerSeed: req.CallerSeed,
		Commitment: view.Commitment,
		Nonce:      view.Nonce,
		Proof:      view.Proof,
		Rarities:   rarities,
		ExpiresAt:  now.Add(s.ttl),
	}

	if err := s.store.CreateSession(ctx, sess, templateIDs, now); err != nil {
		return nil, err
	}

	return &BuildResult{
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt,
		RollView:  *view,
	}, nil
}

// Accept transfers the session's reserved cards to the wallet, closes the
// session, and prepares the settlement handoff.
func (s *PackService) Accept(ctx context.Context, sessionID, wallet string) (*SettlementHandoff, error) {
	sess, err := s.store.FinishSession(ctx, sessionID, wallet, true, s.now())
	if err != nil {
		return nil, err
	}
	return NewSettlementHandoff(sess), nil
}

// Reject releases the session's reserved cards back to the pool, closes the
// session, and prepares the sell-back handoff.
func (s *PackService) Reject(ctx context.Context, sessionID, wallet string) (*SettlementHandoff, error) {
	sess, err := s.store.FinishSession(ctx, sessionID, wallet, false, s.now())
	if err != nil {
		return nil, err
	}
	return NewSettlementHandoff(sess), nil
}

// AdminSettle is the operator escape hatch: any session, any state, no
// ownership or expiry checks.
func (s *PackService) AdminSettle(ctx context.Context, sessionID string) (*model.PackSession, error) {
	return s.store.AdminSettle(ctx, sessionID, s.now())
}

// Session loads a session read-only.
func (s *PackService) Session(ctx context.Context, sessionID string) (*model.PackSession, error) {
	return s.store.SessionByID(ctx, sessionID)
}

// Commitment exposes the published commitment hash.
func (s *PackService) Commitment() string {
	return s.authority.Commitment()
}

// DeriveNonce exposes nonce derivation for the fairness audit surface.
func (s *PackService) DeriveNonce(callerSeed string) string {
	return s.authority.DeriveNonce(callerSeed)
}

// roll derives the seed material and consumes the RNG stream against the
// current catalog snapshot.
func (s *PackService) roll(ctx context.Context, callerSeed string, layout model.SlotLayout) (*RollView, []pack.Result, error) {
	nonce := s.authority.DeriveNonce(callerSeed)
	proof := s.authority.RevealProof(callerSeed, nonce)
	rng := s.authority.SeedStream(callerSeed, nonce)

	cat, err := s.catalog(ctx)
	if err != nil {
		return nil, nil, err
	}

	lineup := pack.Roll(rng, layout, cat)
	view := &RollView{
		Lineup:     lineup,
		Commitment: s.authority.Commitment(),
		Nonce:      nonce,
		Proof:      proof,
	}
	return view, lineup, nil
}

func (s *PackService) allow(ctx context.Context, wallet, action string, limit int) error {
	if s.limiter == nil {
		return nil
	}
	allowed, err := s.limiter.Allow(ctx, wallet, action, limit, rateLimitWindow)
	if err != nil {
		// A broken limiter backend should not take pack opening down.
		return nil
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// catalogIndex is an immutable snapshot of the template catalog, indexed
// the way the resolver consumes it.
type catalogIndex struct {
	byRarity map[model.Rarity][]model.CardTemplate
	energy   []model.CardTemplate
}

func (c *catalogIndex) ByRarity(r model.Rarity) []model.CardTemplate { return c.byRarity[r] }
func (c *catalogIndex) Energy() []model.CardTemplate                 { return c.energy }

// catalog loads templates through the read cache and indexes them.
func (s *PackService) catalog(ctx context.Context) (*catalogIndex, error) {
	var templates []model.CardTemplate

	if s.cache != nil {
		data, err := s.cache.GetOrSet(ctx, catalogCacheKey, catalogCacheTTL, func() ([]byte, error) {
			all, err := s.store.AllTemplates(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(all)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		if err := json.Unmarshal(data, &templates); err != nil {
			return nil, fmt.Errorf("failed to decode catalog: %w", err)
		}
	} else {
		all, err := s.store.AllTemplates(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		templates = all
	}

	idx := &catalogIndex{byRarity: make(map[model.Rarity][]model.CardTemplate)}
	for _, t := range templates {
		if t.Energy {
			idx.energy = append(idx.energy, t)
			continue
		}
		idx.byRarity[t.Rarity] = append(idx.byRarity[t.Rarity], t)
	}
	return idx, nil
}

// InvalidateCatalog drops the cached template snapshot after an import.
func (s *PackService) InvalidateCatalog(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, catalogCacheKey)
	}
}
