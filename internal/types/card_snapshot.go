package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CardSnapshot is one immutable payload delivered for a card. Corrections are
// new snapshots, never edits; "latest" is the greatest effective_at with ties
// broken by insertion order.
type CardSnapshot struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CardID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"card_id"`
	Card        *Card          `gorm:"constraint:OnDelete:CASCADE;foreignKey:CardID;references:ID" json:"card,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload;type:jsonb;not null" json:"payload"`
	PeriodLabel string         `gorm:"column:period_label" json:"period_label"`
	EffectiveAt time.Time      `gorm:"column:effective_at;not null;index" json:"effective_at"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
}

func (CardSnapshot) TableName() string { return "card_snapshot" }
