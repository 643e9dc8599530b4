package model

import (
	"time"

	"github.com/google/uuid"
)

type AlertCategory string

const (
	AlertCategoryParking AlertCategory = "parking"
	AlertCategoryTransit AlertCategory = "transit"
	AlertCategoryEvents  AlertCategory = "events"
)

// Alert is a scraped content item. Ingestion owns the table; this
// service only reads it for freshness gating and digest assembly.
type Alert struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Category     AlertCategory `db:"category" json:"category"`
	Title        string        `db:"title" json:"title"`
	Summary      string        `db:"summary" json:"summary"`
	Neighborhood string        `db:"neighborhood" json:"neighborhood"`
	EffectiveOn  time.Time     `db:"effective_on" json:"effective_on"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}
