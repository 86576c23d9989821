package repository

import (
	"context"
	"time"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
)

// PackStore defines the persistence surface the pack engine depends on:
// read-only catalog access, the atomic reservation/ledger transitions, and
// operational queries. Store implements it over sqlite or mysql.
type PackStore interface {
	// ImportTemplates upserts catalog templates in one transaction.
	ImportTemplates(ctx context.Context, templates []model.CardTemplate) error

	// AllTemplates returns the full catalog.
	AllTemplates(ctx context.Context) ([]model.CardTemplate, error)

	// ProvisionCards creates available cards backing a template.
	ProvisionCards(ctx context.Context, templateID int64, count int, now time.Time) (int64, error)

	// CardsByIDs loads cards in the order the ids are given.
	CardsByIDs(ctx context.Context, ids []int64) ([]model.Card, error)

	// CreateSession reserves one card per template and persists the session
	// as a single atomic unit.
	CreateSession(ctx context.Context, sess *model.PackSession, templateIDs []int64, now time.Time) error

	// FinishSession resolves a pending session as accepted or rejected.
	FinishSession(ctx context.Context, sessionID, wallet string, accept bool, now time.Time) (*model.PackSession, error)

	// AdminSettle forces any session to settled.
	AdminSettle(ctx context.Context, sessionID string, now time.Time) (*model.PackSession, error)

	// ExpireStale releases and expires pending sessions past their deadline.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	// SessionByID loads a session without touching it.
	SessionByID(ctx context.Context, sessionID string) (*model.PackSession, error)

	// Stats returns operational counters.
	Stats(ctx context.Context) (map[string]interface{}, error)

	// Close closes the store connection.
	Close() error
}

// Ensure Store implements PackStore
var _ PackStore = (*Store)(nil)
