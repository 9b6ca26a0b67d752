package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

type SnapshotRepo interface {
	Create(ctx context.Context, tx *gorm.DB, snap *types.CardSnapshot) (*types.CardSnapshot, error)
	ListByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) ([]*types.CardSnapshot, error)
	GetLatestByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) (*types.CardSnapshot, error)
	DeleteByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) error
}

type snapshotRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotRepo(db *gorm.DB, baseLog *logger.Logger) SnapshotRepo {
	repoLog := baseLog.With("repo", "SnapshotRepo")
	return &snapshotRepo{db: db, log: repoLog}
}

func (r *snapshotRepo) Create(ctx context.Context, tx *gorm.DB, snap *types.CardSnapshot) (*types.CardSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(snap).Error; err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *snapshotRepo) ListByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) ([]*types.CardSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var snaps []*types.CardSnapshot
	if err := transaction.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("effective_at DESC, created_at DESC").
		Find(&snaps).Error; err != nil {
		return nil, err
	}
	return snaps, nil
}

// GetLatestByCardID returns the snapshot with the greatest effective_at,
// using created_at as the insertion-order tie break.
func (r *snapshotRepo) GetLatestByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) (*types.CardSnapshot, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var snap types.CardSnapshot
	if err := transaction.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("effective_at DESC, created_at DESC").
		First(&snap).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &snap, nil
}

func (r *snapshotRepo) DeleteByCardID(ctx context.Context, tx *gorm.DB, cardID uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Delete(&types.CardSnapshot{}, "card_id = ?", cardID).Error
}
