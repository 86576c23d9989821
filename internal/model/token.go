package model

import "time"

// TokenData contains the data stored with an admin session token.
type TokenData struct {
	Operator  string    `json:"operator"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
