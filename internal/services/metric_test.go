package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

func TestGetOrCreateByKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.metrics.GetOrCreateByKey(ctx, nil, "attrition_rate", MetricFallback{
		Category: "rate",
		Unit:     "%",
		Cadence:  "monthly",
	})
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if first.Name != "Attrition Rate" {
		t.Fatalf("fallback name = %q, want derived title", first.Name)
	}
	if first.Category != "rate" || first.Unit != "%" {
		t.Fatalf("fallback fields not stored: %+v", first)
	}

	// Second call resolves the existing row; the new fallback is ignored.
	second, err := env.metrics.GetOrCreateByKey(ctx, nil, "attrition_rate", MetricFallback{
		Name:     "Something Else",
		Category: "count",
	})
	if err != nil {
		t.Fatalf("second get or create: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second call created a new metric")
	}
	if second.Name != "Attrition Rate" {
		t.Fatalf("existing metric mutated: %q", second.Name)
	}
}

func TestGetOrCreateByKey_RequiresKey(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.metrics.GetOrCreateByKey(context.Background(), nil, "  ", MetricFallback{})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// missOnceMetricRepo reports the metric missing on the first key lookup even
// though the row exists, reproducing a stale read racing a concurrent insert.
type missOnceMetricRepo struct {
	repos.MetricRepo
	missed bool
}

func (r *missOnceMetricRepo) GetByKey(ctx context.Context, tx *gorm.DB, key string) (*types.MetricDefinition, error) {
	if !r.missed {
		r.missed = true
		return nil, types.ErrNotFound
	}
	return r.MetricRepo.GetByKey(ctx, tx, key)
}

func TestGetOrCreateByKey_RecoversLostInsertRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	winner, err := env.metrics.Create(ctx, &types.MetricDefinition{Key: "headcount", Name: "Headcount"})
	if err != nil {
		t.Fatalf("create winner: %v", err)
	}

	log := logger.NewNop()
	shim := &missOnceMetricRepo{MetricRepo: repos.NewMetricRepo(env.db, log)}
	racy := NewMetricService(env.db, log, shim)

	// Lookup misses, the insert loses to the unique key index, and the
	// conflict resolves by re-reading; the winner's row is authoritative.
	got, err := racy.GetOrCreateByKey(ctx, nil, "headcount", MetricFallback{Name: "Loser"})
	if err != nil {
		t.Fatalf("get or create under race: %v", err)
	}
	if got.ID != winner.ID || got.Name != "Headcount" {
		t.Fatalf("got %+v, want winner row", got)
	}
	if !shim.missed {
		t.Fatalf("lookup shim never exercised")
	}
	var count int64
	if err := env.db.Model(&types.MetricDefinition{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("metric count = %d, want 1", count)
	}
}

func TestMetricCreate_DuplicateKey(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.metrics.Create(ctx, &types.MetricDefinition{Key: "headcount"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := env.metrics.Create(ctx, &types.MetricDefinition{Key: "headcount"})
	if !errors.Is(err, types.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTitleFromKey(t *testing.T) {
	cases := map[string]string{
		"attrition_rate":       "Attrition Rate",
		"revenue_per_employee": "Revenue Per Employee",
		"nps-score":            "Nps Score",
		"headcount":            "Headcount",
		"":                     "",
	}
	for key, want := range cases {
		if got := TitleFromKey(key); got != want {
			t.Fatalf("TitleFromKey(%q) = %q, want %q", key, got, want)
		}
	}
}
