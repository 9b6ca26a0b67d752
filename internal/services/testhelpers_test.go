package services

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/db"
	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/observability"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/seed"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

// testEnv wires the full service stack against an in-memory database so
// tests exercise the same paths the server does.
type testEnv struct {
	db       *gorm.DB
	bundles  BundleService
	metrics  MetricService
	cards    CardService
	relation RelationService
	ingest   IngestService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := logger.NewNop()
	bundleRepo := repos.NewBundleRepo(gdb, log)
	metricRepo := repos.NewMetricRepo(gdb, log)
	cardRepo := repos.NewCardRepo(gdb, log)
	snapshotRepo := repos.NewSnapshotRepo(gdb, log)
	relationRepo := repos.NewRelationRepo(gdb, log)

	env := &testEnv{db: gdb}
	env.bundles = NewBundleService(gdb, log, bundleRepo)
	env.metrics = NewMetricService(gdb, log, metricRepo)
	env.cards = NewCardService(gdb, log, cardRepo, snapshotRepo, relationRepo, bundleRepo, metricRepo)
	env.relation = NewRelationService(gdb, log, relationRepo, cardRepo)
	env.ingest = NewIngestService(gdb, log, env.bundles, env.metrics, env.cards, observability.NewMetrics())

	if err := seed.Run(context.Background(), env.bundles); err != nil {
		t.Fatalf("seed bundles: %v", err)
	}
	return env
}

func mustCreateCard(t *testing.T, env *testEnv, input CreateCardInput) *types.Card {
	t.Helper()
	card, err := env.cards.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("create card: %v", err)
	}
	return card
}
