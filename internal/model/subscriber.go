package model

import (
	"time"

	"github.com/google/uuid"
)

type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// Subscriber is a read-only projection of the product's user table:
// just what the scheduler needs to resolve time-slot eligibility and
// assemble a relevant digest. The Slot* overrides are tri-state: nil
// means "use the tier default", a non-nil value is an explicit
// per-user opt-in or opt-out. Neighborhood scopes digest content; an
// empty value means the subscriber follows the whole city.
type Subscriber struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Tier         Tier      `db:"tier" json:"tier"`
	Neighborhood string    `db:"neighborhood" json:"neighborhood,omitempty"`
	SlotMorning  *bool     `db:"slot_morning" json:"slot_morning,omitempty"`
	SlotMidday   *bool     `db:"slot_midday" json:"slot_midday,omitempty"`
	SlotEvening  *bool     `db:"slot_evening" json:"slot_evening,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
