package model

import (
	"errors"
	"fmt"
)

// Domain failures surfaced by the pack engine. The HTTP edge maps each one
// to a stable machine-readable code; nothing in this package retries.
var (
	ErrUnsupportedPackType     = errors.New("unsupported pack type")
	ErrActiveSession           = errors.New("wallet already has an active pending session")
	ErrSessionNotFound         = errors.New("session not found")
	ErrWalletMismatch          = errors.New("session belongs to a different wallet")
	ErrSessionExpired          = errors.New("session decision window has elapsed")
	ErrCurrencyAccountsMissing = errors.New("selected currency requires a token account")
)

// OutOfStockError reports the first slot whose template had no available
// card. TemplateID is zero when the slot resolved to no template at all.
type OutOfStockError struct {
	TemplateID int64
	Slot       int
}

func (e *OutOfStockError) Error() string {
	if e.TemplateID == 0 {
		return fmt.Sprintf("no template available for slot %d", e.Slot)
	}
	return fmt.Sprintf("template %d out of stock at slot %d", e.TemplateID, e.Slot)
}

// InvalidStateError reports an accept/reject attempt against a session that
// already left the pending state.
type InvalidStateError struct {
	State SessionState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("session is %s, not pending", e.State)
}
