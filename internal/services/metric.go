package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

// MetricFallback carries the fields used when GetOrCreateByKey has to
// auto-register an unknown metric key.
type MetricFallback struct {
	Name     string
	Category string
	Unit     string
	Cadence  string
}

type MetricService interface {
	GetOrCreateByKey(ctx context.Context, tx *gorm.DB, key string, fallback MetricFallback) (*types.MetricDefinition, error)
	Create(ctx context.Context, def *types.MetricDefinition) (*types.MetricDefinition, error)
	List(ctx context.Context) ([]*types.MetricDefinition, error)
}

type metricService struct {
	db         *gorm.DB
	log        *logger.Logger
	metricRepo repos.MetricRepo
}

func NewMetricService(db *gorm.DB, baseLog *logger.Logger, metricRepo repos.MetricRepo) MetricService {
	serviceLog := baseLog.With("service", "MetricService")
	return &metricService{db: db, log: serviceLog, metricRepo: metricRepo}
}

// GetOrCreateByKey races safely: the unique index on key rejects the losing
// insert and the conflict is resolved by re-reading, never surfaced.
func (ms *metricService) GetOrCreateByKey(ctx context.Context, tx *gorm.DB, key string, fallback MetricFallback) (*types.MetricDefinition, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: metric key is required", types.ErrValidation)
	}

	def, err := ms.metricRepo.GetByKey(ctx, tx, key)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, fmt.Errorf("lookup metric %q: %w", key, err)
	}

	name := strings.TrimSpace(fallback.Name)
	if name == "" {
		name = TitleFromKey(key)
	}
	now := time.Now()
	created, err := ms.metricRepo.Create(ctx, tx, &types.MetricDefinition{
		ID:        uuid.New(),
		Key:       key,
		Name:      name,
		Category:  fallback.Category,
		Unit:      fallback.Unit,
		Cadence:   fallback.Cadence,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err == nil {
		ms.log.Info("Auto-registered metric", "key", key)
		return created, nil
	}
	if !errors.Is(err, types.ErrConflict) {
		return nil, fmt.Errorf("create metric %q: %w", key, err)
	}

	// Lost the insert race; the winner's row is authoritative.
	def, err = ms.metricRepo.GetByKey(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("re-read metric %q after conflict: %w", key, err)
	}
	return def, nil
}

func (ms *metricService) Create(ctx context.Context, def *types.MetricDefinition) (*types.MetricDefinition, error) {
	if def == nil || strings.TrimSpace(def.Key) == "" {
		return nil, fmt.Errorf("%w: metric key is required", types.ErrValidation)
	}
	def.Key = strings.TrimSpace(def.Key)
	if strings.TrimSpace(def.Name) == "" {
		def.Name = TitleFromKey(def.Key)
	}
	def.ID = uuid.New()
	now := time.Now()
	def.CreatedAt = now
	def.UpdatedAt = now
	created, err := ms.metricRepo.Create(ctx, nil, def)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			return nil, fmt.Errorf("%w: metric %q already exists", types.ErrConflict, def.Key)
		}
		return nil, err
	}
	return created, nil
}

func (ms *metricService) List(ctx context.Context) ([]*types.MetricDefinition, error) {
	return ms.metricRepo.List(ctx, nil)
}

// TitleFromKey turns a snake_case metric key into a display name, e.g.
// "attrition_rate" -> "Attrition Rate".
func TitleFromKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
