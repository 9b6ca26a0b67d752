package repos

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

// CardFilter narrows List results. Zero values mean "no filter".
type CardFilter struct {
	BundleID  *uuid.UUID
	Source    string
	StaleOnly bool
}

// SourceCount is one row of the ingest-status aggregation.
type SourceCount struct {
	SourceAttribution string `json:"source_attribution"`
	Count             int64  `json:"count"`
}

type CardRepo interface {
	Create(ctx context.Context, tx *gorm.DB, card *types.Card) (*types.Card, error)
	Update(ctx context.Context, tx *gorm.DB, card *types.Card) (*types.Card, error)
	UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Card, error)
	GetByBundleAndTitle(ctx context.Context, tx *gorm.DB, bundleID uuid.UUID, title string) (*types.Card, error)
	List(ctx context.Context, tx *gorm.DB, filter CardFilter) ([]*types.Card, error)
	ListSchedulable(ctx context.Context, tx *gorm.DB) ([]*types.Card, error)
	CountBySource(ctx context.Context, tx *gorm.DB) ([]SourceCount, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type cardRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCardRepo(db *gorm.DB, baseLog *logger.Logger) CardRepo {
	repoLog := baseLog.With("repo", "CardRepo")
	return &cardRepo{db: db, log: repoLog}
}

func (r *cardRepo) Create(ctx context.Context, tx *gorm.DB, card *types.Card) (*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(card).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.ErrConflict
		}
		return nil, err
	}
	return card, nil
}

func (r *cardRepo) Update(ctx context.Context, tx *gorm.DB, card *types.Card) (*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	card.UpdatedAt = time.Now()
	if err := transaction.WithContext(ctx).Save(card).Error; err != nil {
		return nil, err
	}
	return card, nil
}

func (r *cardRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	fields["updated_at"] = time.Now()
	return transaction.WithContext(ctx).
		Model(&types.Card{}).
		Where("id = ?", id).
		Updates(fields).Error
}

func (r *cardRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var card types.Card
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *cardRepo) GetByBundleAndTitle(ctx context.Context, tx *gorm.DB, bundleID uuid.UUID, title string) (*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var card types.Card
	if err := transaction.WithContext(ctx).
		Where("bundle_id = ? AND title = ?", bundleID, title).
		First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &card, nil
}

func (r *cardRepo) List(ctx context.Context, tx *gorm.DB, filter CardFilter) ([]*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(ctx).Model(&types.Card{})
	if filter.BundleID != nil {
		q = q.Where("bundle_id = ?", *filter.BundleID)
	}
	if filter.Source != "" {
		q = q.Where("source_attribution = ?", filter.Source)
	}
	if filter.StaleOnly {
		q = q.Where("refresh_status = ?", types.RefreshStatusStale)
	}
	var cards []*types.Card
	if err := q.Order("created_at DESC").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// ListSchedulable returns cards the staleness sweep has to look at: every
// card with a non-manual policy and a cadence string set.
func (r *cardRepo) ListSchedulable(ctx context.Context, tx *gorm.DB) ([]*types.Card, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var cards []*types.Card
	if err := transaction.WithContext(ctx).
		Where("refresh_policy <> ? AND refresh_cadence <> ''", types.RefreshPolicyManual).
		Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *cardRepo) CountBySource(ctx context.Context, tx *gorm.DB) ([]SourceCount, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var counts []SourceCount
	if err := transaction.WithContext(ctx).
		Model(&types.Card{}).
		Select("source_attribution, COUNT(*) AS count").
		Group("source_attribution").
		Order("source_attribution ASC").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *cardRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).Delete(&types.Card{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}
