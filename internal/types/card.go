package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RefreshPolicyManual    = "manual"
	RefreshPolicyOnDemand  = "on_demand"
	RefreshPolicyScheduled = "scheduled"

	RefreshStatusCurrent = "current"
	RefreshStatusStale   = "stale"

	CardStatusActive   = "active"
	CardStatusArchived = "archived"
)

// Card binds a bundle (and optionally a metric) to a titled, addressable
// visualization instance. It owns an append-only snapshot log; the
// (bundle_id, title) pair is the ingestion idempotency key and carries a
// unique index so concurrent find-or-create calls cannot double-insert.
type Card struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	BundleID          *uuid.UUID        `gorm:"type:uuid;index;uniqueIndex:idx_card_bundle_title" json:"bundle_id,omitempty"`
	Bundle            *BundleDefinition `gorm:"constraint:OnDelete:SET NULL;foreignKey:BundleID;references:ID" json:"bundle,omitempty"`
	MetricID          *uuid.UUID        `gorm:"type:uuid;index" json:"metric_id,omitempty"`
	Metric            *MetricDefinition `gorm:"constraint:OnDelete:SET NULL;foreignKey:MetricID;references:ID" json:"metric,omitempty"`
	Title             string            `gorm:"column:title;not null;uniqueIndex:idx_card_bundle_title" json:"title"`
	Subtitle          string            `gorm:"column:subtitle" json:"subtitle"`
	SourceAttribution string            `gorm:"column:source_attribution;index" json:"source_attribution"`
	Config            datatypes.JSON    `gorm:"column:config;type:jsonb" json:"config"`
	RefreshPolicy     string            `gorm:"column:refresh_policy;not null;default:manual" json:"refresh_policy"`
	RefreshCadence    string            `gorm:"column:refresh_cadence" json:"refresh_cadence"`
	RefreshStatus     string            `gorm:"column:refresh_status;not null;default:current" json:"refresh_status"`
	LastRefreshedAt   *time.Time        `gorm:"column:last_refreshed_at" json:"last_refreshed_at,omitempty"`
	NextRefreshAt     *time.Time        `gorm:"column:next_refresh_at;index" json:"next_refresh_at,omitempty"`
	Status            string            `gorm:"column:status;not null;default:active" json:"status"`
	IsPublished       bool              `gorm:"column:is_published;not null;default:false" json:"is_published"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (Card) TableName() string { return "card" }
