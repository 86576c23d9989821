package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
)

// ImportTemplates upserts a batch of catalog templates in one transaction.
// Import is the only writer of template rows; the engine reads them only.
func (s *Store) ImportTemplates(ctx context.Context, templates []model.CardTemplate) error {
	if len(templates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		REPLACE INTO card_templates (id, name, rarity, variant, set_name, energy)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, t := range templates {
		energy := 0
		if t.Energy {
			energy = 1
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Name, string(t.Rarity), t.Variant, t.SetName, energy); err != nil {
			return fmt.Errorf("failed to import template %d: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AllTemplates returns the full catalog, ordered by id.
func (s *Store) AllTemplates(ctx context.Context) ([]model.CardTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, rarity, variant, set_name, energy FROM card_templates ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []model.CardTemplate
	for rows.Next() {
		var t model.CardTemplate
		var energy int
		if err := rows.Scan(&t.ID, &t.Name, &t.Rarity, &t.Variant, &t.SetName, &energy); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		t.Energy = energy != 0
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// ProvisionCards creates count available cards backing a template. Used by
// the admin provisioning path, never by the build flow.
func (s *Store) ProvisionCards(ctx context.Context, templateID int64, count int, now time.Time) (int64, error) {
	if count <= 0 {
		return 0, nil
	}

	var rarity string
	err := s.db.QueryRowContext(ctx,
		`SELECT rarity FROM card_templates WHERE id = ?`, templateID).Scan(&rarity)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("template %d not found", templateID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up template: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cards (template_id, rarity, status, owner, updated_at)
		VALUES (?, ?, 'available', '', ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < count; i++ {
		if _, err := stmt.ExecContext(ctx, templateID, rarity, now); err != nil {
			return 0, fmt.Errorf("failed to provision card: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int64(count), nil
}

// AvailableCount returns how many cards of a template are currently free.
func (s *Store) AvailableCount(ctx context.Context, templateID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cards WHERE template_id = ? AND status = 'available'`,
		templateID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count available cards: %w", err)
	}
	return n, nil
}

// CardsByIDs loads cards in the order the ids are given.
func (s *Store) CardsByIDs(ctx context.Context, ids []int64) ([]model.Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT id, template_id, rarity, status, owner, updated_at
		FROM cards WHERE id IN (%s)`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]model.Card, len(ids))
	for rows.Next() {
		var c model.Card
		if err := rows.Scan(&c.ID, &c.TemplateID, &c.Rarity, &c.Status, &c.Owner, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cards := make([]model.Card, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			cards = append(cards, c)
		}
	}
	return cards, nil
}
