package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

type BundleRepo interface {
	Create(ctx context.Context, tx *gorm.DB, def *types.BundleDefinition) (*types.BundleDefinition, error)
	Update(ctx context.Context, tx *gorm.DB, def *types.BundleDefinition) (*types.BundleDefinition, error)
	GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.BundleDefinition, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.BundleDefinition, error)
}

type bundleRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewBundleRepo(db *gorm.DB, baseLog *logger.Logger) BundleRepo {
	repoLog := baseLog.With("repo", "BundleRepo")
	return &bundleRepo{db: db, log: repoLog}
}

func (r *bundleRepo) Create(ctx context.Context, tx *gorm.DB, def *types.BundleDefinition) (*types.BundleDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(def).Error; err != nil {
		return nil, err
	}
	return def, nil
}

func (r *bundleRepo) Update(ctx context.Context, tx *gorm.DB, def *types.BundleDefinition) (*types.BundleDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Save(def).Error; err != nil {
		return nil, err
	}
	return def, nil
}

func (r *bundleRepo) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.BundleDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var def types.BundleDefinition
	if err := transaction.WithContext(ctx).
		Where("key = ?", key).
		First(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &def, nil
}

func (r *bundleRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.BundleDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var defs []*types.BundleDefinition
	if err := transaction.WithContext(ctx).
		Order("key ASC").
		Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}
