package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/cache"
	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

const bundleCacheTTL = 5 * time.Minute

type BundleService interface {
	// UpsertByKey inserts a new definition, fully replaces a stored one when
	// the incoming version is higher, and no-ops otherwise. The bool reports
	// whether anything was written.
	UpsertByKey(ctx context.Context, def *types.BundleDefinition) (*types.BundleDefinition, bool, error)
	GetByKey(ctx context.Context, key string) (*types.BundleDefinition, error)
	List(ctx context.Context) ([]*types.BundleDefinition, error)
}

type bundleService struct {
	db         *gorm.DB
	log        *logger.Logger
	bundleRepo repos.BundleRepo
	byKey      *cache.TTLCache[string, *types.BundleDefinition]
}

func NewBundleService(db *gorm.DB, baseLog *logger.Logger, bundleRepo repos.BundleRepo) BundleService {
	serviceLog := baseLog.With("service", "BundleService")
	return &bundleService{
		db:         db,
		log:        serviceLog,
		bundleRepo: bundleRepo,
		byKey:      cache.NewTTLCache[string, *types.BundleDefinition](),
	}
}

func (bs *bundleService) UpsertByKey(ctx context.Context, def *types.BundleDefinition) (*types.BundleDefinition, bool, error) {
	if def == nil {
		return nil, false, fmt.Errorf("%w: nil bundle definition", types.ErrConfiguration)
	}
	def.Key = strings.TrimSpace(def.Key)
	def.ChartType = strings.TrimSpace(def.ChartType)
	if def.Key == "" || def.ChartType == "" {
		return nil, false, fmt.Errorf("%w: bundle definition requires key and chart type", types.ErrConfiguration)
	}
	if def.Version <= 0 {
		def.Version = 1
	}

	existing, err := bs.bundleRepo.GetByKey(ctx, nil, def.Key)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup bundle %q: %w", def.Key, err)
	}

	if existing == nil {
		def.ID = uuid.New()
		now := time.Now()
		def.CreatedAt = now
		def.UpdatedAt = now
		created, err := bs.bundleRepo.Create(ctx, nil, def)
		if err != nil {
			return nil, false, fmt.Errorf("create bundle %q: %w", def.Key, err)
		}
		bs.byKey.Delete(def.Key)
		bs.log.Info("Registered bundle", "key", def.Key, "version", def.Version)
		return created, true, nil
	}

	if existing.Version >= def.Version {
		return existing, false, nil
	}

	// Version moved forward: full field replace, not a merge. Key and row
	// identity are immutable.
	existing.ChartType = def.ChartType
	existing.Version = def.Version
	existing.Name = def.Name
	existing.Description = def.Description
	existing.DataSchema = def.DataSchema
	existing.ConfigSchema = def.ConfigSchema
	existing.OutputSchema = def.OutputSchema
	existing.Defaults = def.Defaults
	existing.UpdatedAt = time.Now()
	updated, err := bs.bundleRepo.Update(ctx, nil, existing)
	if err != nil {
		return nil, false, fmt.Errorf("upgrade bundle %q: %w", def.Key, err)
	}
	bs.byKey.Delete(def.Key)
	bs.log.Info("Upgraded bundle", "key", def.Key, "version", def.Version)
	return updated, true, nil
}

func (bs *bundleService) GetByKey(ctx context.Context, key string) (*types.BundleDefinition, error) {
	if def, ok := bs.byKey.Get(key); ok {
		return def, nil
	}
	def, err := bs.bundleRepo.GetByKey(ctx, nil, key)
	if err != nil {
		return nil, err
	}
	bs.byKey.Set(key, def, bundleCacheTTL)
	return def, nil
}

func (bs *bundleService) List(ctx context.Context) ([]*types.BundleDefinition, error) {
	return bs.bundleRepo.List(ctx, nil)
}
