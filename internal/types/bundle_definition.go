package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BundleDefinition is a versioned visualization contract. The key is the
// stable identity; data/config/output schemas are opaque structural documents
// that the core stores and serves but never interprets.
type BundleDefinition struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Key          string         `gorm:"column:key;uniqueIndex;not null" json:"key"`
	ChartType    string         `gorm:"column:chart_type;not null" json:"chart_type"`
	Version      int            `gorm:"column:version;not null;default:1" json:"version"`
	Name         string         `gorm:"column:name" json:"name"`
	Description  string         `gorm:"column:description" json:"description"`
	DataSchema   datatypes.JSON `gorm:"column:data_schema;type:jsonb" json:"data_schema"`
	ConfigSchema datatypes.JSON `gorm:"column:config_schema;type:jsonb" json:"config_schema"`
	OutputSchema datatypes.JSON `gorm:"column:output_schema;type:jsonb" json:"output_schema"`
	Defaults     datatypes.JSON `gorm:"column:defaults;type:jsonb" json:"defaults"`
	CreatedAt    time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`
}

func (BundleDefinition) TableName() string { return "bundle_definition" }
