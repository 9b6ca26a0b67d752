package repos

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

type MetricRepo interface {
	Create(ctx context.Context, tx *gorm.DB, def *types.MetricDefinition) (*types.MetricDefinition, error)
	GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.MetricDefinition, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MetricDefinition, error)
	List(ctx context.Context, tx *gorm.DB) ([]*types.MetricDefinition, error)
}

type metricRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMetricRepo(db *gorm.DB, baseLog *logger.Logger) MetricRepo {
	repoLog := baseLog.With("repo", "MetricRepo")
	return &metricRepo{db: db, log: repoLog}
}

func (r *metricRepo) Create(ctx context.Context, tx *gorm.DB, def *types.MetricDefinition) (*types.MetricDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(def).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, types.ErrConflict
		}
		return nil, err
	}
	return def, nil
}

func (r *metricRepo) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.MetricDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var def types.MetricDefinition
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

func (r *metricRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.MetricDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var def types.MetricDefinition
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&def).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrNotFound
		}
		return nil, err
	}
	return &def, nil
}

func (r *metricRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.MetricDefinition, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var defs []*types.MetricDefinition
	if err := transaction.WithContext(ctx).
		Order("key ASC").
		Find(&defs).Error; err != nil {
		return nil, err
	}
	return defs, nil
}
