package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

type RelationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, rel *types.CardRelation) (*types.CardRelation, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CardRelation, error)
	ListByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) ([]*types.CardRelation, error)
	ListBySourceAndType(ctx context.Context, tx *gorm.DB, sourceCardID uuid.UUID, relationType string) ([]*types.CardRelation, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	DeleteByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) error
}

type relationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRelationRepo(db *gorm.DB, baseLog *logger.Logger) RelationRepo {
	repoLog := baseLog.With("repo", "RelationRepo")
	return &relationRepo{db: db, log: repoLog}
}

func (r *relationRepo) Create(ctx context.Context, tx *gorm.DB, rel *types.CardRelation) (*types.CardRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(rel).Error; err != nil {
		return nil, err
	}
	return rel, nil
}

func (r *relationRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.CardRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rel types.CardRelation
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&rel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &rel, nil
}

// ListByCardID returns every edge touching the card, outgoing or incoming.
func (r *relationRepo) ListByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) ([]*types.CardRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rels []*types.CardRelation
	if err := transaction.WithContext(ctx).
		Where("source_card_id = ? OR target_card_id = ?", cardID, cardID).
		Order("sort_order ASC, created_at ASC").
		Find(&rels).Error; err != nil {
		return nil, err
	}
	return rels, nil
}

func (r *relationRepo) ListBySourceAndType(ctx context.Context, tx *gorm.DB, sourceCardID uuid.UUID, relationType string) ([]*types.CardRelation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var rels []*types.CardRelation
	if err := transaction.WithContext(ctx).
		Where("source_card_id = ? AND relation_type = ?", sourceCardID, relationType).
		Order("sort_order ASC, created_at ASC").
		Find(&rels).Error; err != nil {
		return nil, err
	}
	return rels, nil
}

func (r *relationRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(ctx).Delete(&types.CardRelation{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *relationRepo) DeleteByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Delete(&types.CardRelation{}, "source_card_id = ? OR target_card_id = ?", cardID, cardID).Error
}
