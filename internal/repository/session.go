package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/miner1qaz-ops/Mochi-sub000/internal/model"
)

const sessionColumns = `id, wallet, pack_type, currency, caller_seed, commitment,
	nonce, proof, rarities, card_ids, state, created_at, expires_at`

// CreateSession atomically enforces the one-pending-session-per-wallet rule,
// reserves one available card per resolved template (slot order), and
// persists the session in pending state. The whole sequence is one
// transaction: two builds racing for the same wallet or the same scarce
// template can never both commit, and a mid-flight stock-out rolls back
// every card already claimed by this call.
//
// On success sess.CardIDs is filled with the reserved card ids in slot
// order. On failure nothing is persisted.
func (s *Store) CreateSession(ctx context.Context, sess *model.PackSession, templateIDs []int64, now time.Time) error {
	now = now.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// One non-expired pending session per wallet. The check shares the
	// transaction with the insert below, so it is never a bare
	// read-then-write.
	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM pack_sessions WHERE wallet = ? AND state = ? AND expires_at > ? LIMIT 1`+s.dialect.forUpdate,
		sess.Wallet, string(model.SessionPending), now).Scan(&existing)
	if err == nil {
		return model.ErrActiveSession
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check active session: %w", err)
	}

	cardIDs := make([]int64, 0, len(templateIDs))
	for slot, templateID := range templateIDs {
		var cardID int64
		err = tx.QueryRowContext(ctx,
			`SELECT id FROM cards WHERE template_id = ? AND status = 'available' ORDER BY id LIMIT 1`+s.dialect.forUpdate,
			templateID).Scan(&cardID)
		if err == sql.ErrNoRows {
			return &model.OutOfStockError{TemplateID: templateID, Slot: slot}
		}
		if err != nil {
			return fmt.Errorf("failed to select available card: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE cards SET status = 'reserved', owner = ?, updated_at = ? WHERE id = ? AND status = 'available'`,
			sess.Wallet, now, cardID)
		if err != nil {
			return fmt.Errorf("failed to reserve card %d: %w", cardID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read reservation result: %w", err)
		}
		if affected == 0 {
			// Lost the row to a concurrent writer between select and
			// update; treat as stock-out, the transaction rolls back.
			return &model.OutOfStockError{TemplateID: templateID, Slot: slot}
		}

		cardIDs = append(cardIDs, cardID)
	}

	raritiesJSON, err := json.Marshal(sess.Rarities)
	if err != nil {
		return fmt.Errorf("failed to encode rarities: %w", err)
	}
	cardIDsJSON, err := json.Marshal(cardIDs)
	if err != nil {
		return fmt.Errorf("failed to encode card ids: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pack_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Wallet, sess.PackType, sess.Currency, sess.CallerSeed,
		sess.Commitment, sess.Nonce, sess.Proof, string(raritiesJSON),
		string(cardIDsJSON), string(model.SessionPending), now, sess.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	sess.CardIDs = cardIDs
	sess.State = model.SessionPending
	sess.CreatedAt = now
	return nil
}

// FinishSession resolves a pending session as accepted (cards transfer to
// the wallet) or rejected (cards return to the pool). Guards run in order:
// existence, ownership, state, expiry. The guard check and both updates are
// one transaction.
func (s *Store) FinishSession(ctx context.Context, sessionID, wallet string, accept bool, now time.Time) (*model.PackSession, error) {
	now = now.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM pack_sessions WHERE id = ?`+s.dialect.forUpdate, sessionID))
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if sess.Wallet != wallet {
		return nil, model.ErrWalletMismatch
	}
	if sess.State != model.SessionPending {
		return nil, &model.InvalidStateError{State: sess.State}
	}
	if sess.ExpiredAt(now) {
		// Lazy expiry: refuse without mutating, the sweeper records the
		// transition.
		return nil, model.ErrSessionExpired
	}

	next := model.SessionRejected
	if accept {
		next = model.SessionAccepted
	}

	if accept {
		err = transferCards(ctx, tx, sess.CardIDs, sess.Wallet, now)
	} else {
		err = releaseCards(ctx, tx, sess.CardIDs, now)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pack_sessions SET state = ? WHERE id = ?`, string(next), sessionID); err != nil {
		return nil, fmt.Errorf("failed to update session state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	sess.State = next
	return sess, nil
}

// AdminSettle forces a session to settled, bypassing ownership and expiry
// checks. Cards the session still holds in reserved status transfer to its
// wallet; cards already moved by an earlier terminal transition are left
// alone. Only a missing session fails.
func (s *Store) AdminSettle(ctx context.Context, sessionID string, now time.Time) (*model.PackSession, error) {
	now = now.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM pack_sessions WHERE id = ?`+s.dialect.forUpdate, sessionID))
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := transferCards(ctx, tx, sess.CardIDs, sess.Wallet, now); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pack_sessions SET state = ? WHERE id = ?`, string(model.SessionSettled), sessionID); err != nil {
		return nil, fmt.Errorf("failed to update session state: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	sess.State = model.SessionSettled
	return sess, nil
}

// ExpireStale sweeps pending sessions whose window elapsed: each one
// releases its reserved cards and flips to expired in its own transaction,
// the same atomicity contract as a rejection.
func (s *Store) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM pack_sessions WHERE state = ? AND expires_at <= ?`,
		string(model.SessionPending), now)
	if err != nil {
		return 0, fmt.Errorf("failed to query stale sessions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var expired int64
	for _, id := range ids {
		if err := s.expireOne(ctx, id, now); err != nil {
			log.Printf("[Store] failed to expire session %s: %v", id, err)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Store) expireOne(ctx context.Context, sessionID string, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM pack_sessions WHERE id = ? AND state = ?`+s.dialect.forUpdate,
		sessionID, string(model.SessionPending)))
	if err == sql.ErrNoRows {
		// Resolved by the user between the sweep query and now.
		return nil
	}
	if err != nil {
		return err
	}
	if !sess.ExpiredAt(now) {
		return nil
	}

	if err := releaseCards(ctx, tx, sess.CardIDs, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE pack_sessions SET state = ? WHERE id = ?`, string(model.SessionExpired), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

// SessionByID loads a session without touching its state.
func (s *Store) SessionByID(ctx context.Context, sessionID string) (*model.PackSession, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM pack_sessions WHERE id = ?`, sessionID))
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, nil
}

// Stats returns operational counters for the admin surface.
func (s *Store) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	counts := map[string]string{
		"templates":       `SELECT COUNT(*) FROM card_templates`,
		"cards_total":     `SELECT COUNT(*) FROM cards`,
		"cards_available": `SELECT COUNT(*) FROM cards WHERE status = 'available'`,
		"cards_reserved":  `SELECT COUNT(*) FROM cards WHERE status = 'reserved'`,
		"sessions_total":  `SELECT COUNT(*) FROM pack_sessions`,
		"sessions_pending": `SELECT COUNT(*) FROM pack_sessions WHERE state = 'pending'`,
	}
	for name, query := range counts {
		var n int64
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", name, err)
		}
		stats[name] = n
	}
	return stats, nil
}

// transferCards marks a session's reserved cards user-owned. The status
// guard keeps cards that already left reserved from being moved twice.
func transferCards(ctx context.Context, tx *sql.Tx, cardIDs []int64, wallet string, now time.Time) error {
	if len(cardIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		`UPDATE cards SET status = 'user_owned', owner = ?, updated_at = ? WHERE id IN (%s) AND status = 'reserved'`,
		placeholders(len(cardIDs)))
	args := append([]interface{}{wallet, now}, int64Args(cardIDs)...)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to transfer cards: %w", err)
	}
	return nil
}

// releaseCards returns a session's reserved cards to the available pool.
func releaseCards(ctx context.Context, tx *sql.Tx, cardIDs []int64, now time.Time) error {
	if len(cardIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(
		`UPDATE cards SET status = 'available', owner = '', updated_at = ? WHERE id IN (%s) AND status = 'reserved'`,
		placeholders(len(cardIDs)))
	args := append([]interface{}{now}, int64Args(cardIDs)...)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to release cards: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*model.PackSession, error) {
	var sess model.PackSession
	var rarities, cardIDs string

	err := row.Scan(&sess.ID, &sess.Wallet, &sess.PackType, &sess.Currency,
		&sess.CallerSeed, &sess.Commitment, &sess.Nonce, &sess.Proof,
		&rarities, &cardIDs, &sess.State, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(rarities), &sess.Rarities); err != nil {
		return nil, fmt.Errorf("failed to decode rarities: %w", err)
	}
	if err := json.Unmarshal([]byte(cardIDs), &sess.CardIDs); err != nil {
		return nil, fmt.Errorf("failed to decode card ids: %w", err)
	}
	return &sess, nil
}
