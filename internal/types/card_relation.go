package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	RelationTypeDrilldown   = "drilldown"
	RelationTypeComponentOf = "component_of"
	RelationTypeRelated     = "related"
	RelationTypeParent      = "parent"
)

// ValidRelationType reports whether t is one of the four supported edge kinds.
func ValidRelationType(t string) bool {
	switch t {
	case RelationTypeDrilldown, RelationTypeComponentOf, RelationTypeRelated, RelationTypeParent:
		return true
	}
	return false
}

// CardRelation is a directed edge between two cards. The graph is
// deliberately unconstrained: cycles and self-loops are legal.
type CardRelation struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourceCardID uuid.UUID `gorm:"type:uuid;not null;index" json:"source_card_id"`
	SourceCard   *Card     `gorm:"constraint:OnDelete:CASCADE;foreignKey:SourceCardID;references:ID" json:"source_card,omitempty"`
	TargetCardID uuid.UUID `gorm:"type:uuid;not null;index" json:"target_card_id"`
	TargetCard   *Card     `gorm:"constraint:OnDelete:CASCADE;foreignKey:TargetCardID;references:ID" json:"target_card,omitempty"`
	RelationType string    `gorm:"column:relation_type;not null" json:"relation_type"`
	Label        string    `gorm:"column:label" json:"label"`
	SortOrder    int       `gorm:"column:sort_order;not null;default:0" json:"sort_order"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (CardRelation) TableName() string { return "card_relation" }
