package types

import (
	"time"

	"github.com/google/uuid"
)

// MetricDefinition is named, typed metric metadata. Cadence here is advisory;
// scheduling reads the cadence stored on the card, not on the metric.
type MetricDefinition struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Key       string    `gorm:"column:key;uniqueIndex;not null" json:"key"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Category  string    `gorm:"column:category" json:"category"`
	Unit      string    `gorm:"column:unit" json:"unit"`
	Cadence   string    `gorm:"column:cadence" json:"cadence"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (MetricDefinition) TableName() string { return "metric_definition" }
