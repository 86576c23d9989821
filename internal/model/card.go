package model

import "time"

// CardStatus tracks where a physical card currently lives in its lifecycle.
type CardStatus string

const (
	CardAvailable CardStatus = "available"
	CardReserved  CardStatus = "reserved"
	CardUserOwned CardStatus = "user_owned"
	CardListed    CardStatus = "listed"
)

// CardTemplate is immutable catalog reference data. Templates are created by
// catalog import and never mutated by the pack engine.
type CardTemplate struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Rarity  Rarity `json:"rarity"`
	Variant string `json:"variant,omitempty"`
	SetName string `json:"set_name,omitempty"`
	Energy  bool   `json:"energy"`
}

// Card is one mintable physical instance backing a template. Cards are
// provisioned externally; the engine only moves them between statuses.
type Card struct {
	ID         int64      `json:"id"`
	TemplateID int64      `json:"template_id"`
	Rarity     Rarity     `json:"rarity"`
	Status     CardStatus `json:"status"`
	Owner      string     `json:"owner,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
