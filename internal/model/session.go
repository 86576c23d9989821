package model

import "time"

// SessionState is the lifecycle state of a pack session.
type SessionState string

const (
	SessionPending  SessionState = "pending"
	SessionAccepted SessionState = "accepted"
	SessionRejected SessionState = "rejected"
	SessionExpired  SessionState = "expired"
	SessionSettled  SessionState = "settled"
)

// Terminal reports whether no further accept/reject transitions are allowed.
func (s SessionState) Terminal() bool {
	return s != SessionPending
}

// PackSession records one build's outcome: the resolved lineup, the
// cryptographic proof material, and the lifecycle state until the user or an
// operator resolves it.
type PackSession struct {
	ID         string       `json:"id"`
	Wallet     string       `json:"wallet"`
	PackType   string       `json:"pack_type"`
	Currency   string       `json:"currency"`
	CallerSeed string       `json:"caller_seed"`
	Commitment string       `json:"commitment"`
	Nonce      string       `json:"nonce"`
	Proof      string       `json:"proof"`
	Rarities   []Rarity     `json:"rarities"`
	CardIDs    []int64      `json:"card_ids"`
	State      SessionState `json:"state"`
	CreatedAt  time.Time    `json:"created_at"`
	ExpiresAt  time.Time    `json:"expires_at"`
}

// ExpiredAt reports whether the session's decision window has elapsed at the
// given instant. A pending session past its deadline is logically expired
// even before the sweeper records the transition.
func (s *PackSession) ExpiredAt(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
