package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

func TestCardCreate_ResolvesBundleAndMetricKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.metrics.Create(ctx, &types.MetricDefinition{Key: "headcount"}); err != nil {
		t.Fatalf("create metric: %v", err)
	}

	card := mustCreateCard(t, env, CreateCardInput{
		BundleKey: "kpi_number",
		MetricKey: "headcount",
		Title:     "Headcount",
	})
	if card.BundleID == nil || card.MetricID == nil {
		t.Fatalf("keys not resolved: %+v", card)
	}
	if card.RefreshPolicy != types.RefreshPolicyManual {
		t.Fatalf("default policy = %q, want manual", card.RefreshPolicy)
	}
	if card.RefreshStatus != types.RefreshStatusCurrent {
		t.Fatalf("new card status = %q, want current", card.RefreshStatus)
	}

	_, err := env.cards.Create(ctx, CreateCardInput{BundleKey: "no_such_bundle", Title: "X"})
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("unknown bundle key: got %v", err)
	}
	_, err = env.cards.Create(ctx, CreateCardInput{Title: "  "})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("blank title: got %v", err)
	}
}

func TestCardCreate_DuplicateTitleWithinBundle(t *testing.T) {
	env := newTestEnv(t)

	mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})
	_, err := env.cards.Create(context.Background(), CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})
	if !errors.Is(err, types.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Same title under a different bundle is a different card.
	other, err := env.cards.Create(context.Background(), CreateCardInput{BundleKey: "rate_trend", Title: "Headcount"})
	if err != nil {
		t.Fatalf("same title, other bundle: %v", err)
	}
	if other == nil {
		t.Fatalf("expected card")
	}
}

func TestSnapshots_AppendListLatest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	card := mustCreateCard(t, env, CreateCardInput{BundleKey: "rate_trend", Title: "Attrition Rate"})

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		effectiveAt := base.AddDate(0, i, 0)
		_, err := env.cards.AppendSnapshot(ctx, nil, card.ID, []byte(`{"value":12.3}`), effectiveAt.Format("2006-01"), effectiveAt)
		if err != nil {
			t.Fatalf("append snapshot %d: %v", i, err)
		}
	}

	snaps, err := env.cards.ListSnapshots(ctx, card.ID)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(snaps))
	}

	latest, err := env.cards.LatestSnapshot(ctx, card.ID)
	if err != nil {
		t.Fatalf("latest snapshot: %v", err)
	}
	if latest.PeriodLabel != "2026-05" {
		t.Fatalf("latest period = %q, want 2026-05", latest.PeriodLabel)
	}

	got, err := env.cards.GetByID(ctx, card.ID)
	if err != nil {
		t.Fatalf("get card: %v", err)
	}
	if got.RefreshStatus != types.RefreshStatusCurrent || got.LastRefreshedAt == nil {
		t.Fatalf("append did not mark card refreshed: %+v", got)
	}
}

func TestAppendSnapshot_ResetsStatusButNotSchedule(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	card := mustCreateCard(t, env, CreateCardInput{
		BundleKey:      "rate_trend",
		Title:          "Attrition Rate",
		RefreshPolicy:  types.RefreshPolicyScheduled,
		RefreshCadence: "monthly",
	})

	// Simulate a sweep having flipped the card.
	due := time.Now().Add(time.Hour)
	if err := env.db.Model(&types.Card{}).Where("id = ?", card.ID).Updates(map[string]interface{}{
		"refresh_status":  types.RefreshStatusStale,
		"next_refresh_at": due,
	}).Error; err != nil {
		t.Fatalf("mark stale: %v", err)
	}

	if _, err := env.cards.AppendSnapshot(ctx, nil, card.ID, []byte(`{"value":1}`), "2026-08", time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := env.cards.GetByID(ctx, card.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RefreshStatus != types.RefreshStatusCurrent {
		t.Fatalf("ingestion must reset status to current, got %q", got.RefreshStatus)
	}
	if got.NextRefreshAt == nil {
		t.Fatalf("ingestion must not clear next_refresh_at")
	}
	if diff := got.NextRefreshAt.Sub(due); diff > time.Second || diff < -time.Second {
		t.Fatalf("ingestion moved next_refresh_at: %v", got.NextRefreshAt)
	}
}

func TestAppendSnapshot_UnknownCard(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.cards.AppendSnapshot(context.Background(), nil, uuid.New(), []byte(`{}`), "", time.Now())
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindOrCreateByBundleTitle_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bundle, err := env.bundles.GetByKey(ctx, "kpi_number")
	if err != nil {
		t.Fatalf("get bundle: %v", err)
	}
	template := &types.Card{Title: " Headcount ", SourceAttribution: "metric-engine"}

	first, err := env.cards.FindOrCreateByBundleTitle(ctx, nil, bundle.ID, template)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if first.Title != "Headcount" {
		t.Fatalf("title not trimmed: %q", first.Title)
	}

	second, err := env.cards.FindOrCreateByBundleTitle(ctx, nil, bundle.ID, template)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("second call created a new card")
	}

	var count int64
	if err := env.db.Model(&types.Card{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("card count = %d, want 1", count)
	}
}

// missOnceCardRepo reports the card missing on the first title lookup even
// though the row exists, reproducing a stale read racing a concurrent insert.
type missOnceCardRepo struct {
	repos.CardRepo
	missed bool
}

func (r *missOnceCardRepo) GetByBundleAndTitle(ctx context.Context, tx *gorm.DB, bundleID uuid.UUID, title string) (*types.Card, error) {
	if !r.missed {
		r.missed = true
		return nil, types.ErrNotFound
	}
	return r.CardRepo.GetByBundleAndTitle(ctx, tx, bundleID, title)
}

func TestFindOrCreateByBundleTitle_RecoversLostInsertRace(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	bundle, err := env.bundles.GetByKey(ctx, "kpi_number")
	if err != nil {
		t.Fatalf("get bundle: %v", err)
	}
	winner := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})

	log := logger.NewNop()
	shim := &missOnceCardRepo{CardRepo: repos.NewCardRepo(env.db, log)}
	racy := NewCardService(env.db, log, shim,
		repos.NewSnapshotRepo(env.db, log),
		repos.NewRelationRepo(env.db, log),
		repos.NewBundleRepo(env.db, log),
		repos.NewMetricRepo(env.db, log))

	// Lookup misses, the insert loses to the unique index, and the conflict
	// resolves by re-reading the winner's row; the caller never sees it.
	got, err := racy.FindOrCreateByBundleTitle(ctx, nil, bundle.ID, &types.Card{Title: "Headcount"})
	if err != nil {
		t.Fatalf("find or create under race: %v", err)
	}
	if got.ID != winner.ID {
		t.Fatalf("got card %s, want winner %s", got.ID, winner.ID)
	}
	if !shim.missed {
		t.Fatalf("lookup shim never exercised")
	}
	var count int64
	if err := env.db.Model(&types.Card{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("card count = %d, want 1", count)
	}
}

func TestCardUpdate_CadenceChangeResetsDueTime(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	card := mustCreateCard(t, env, CreateCardInput{
		BundleKey:      "rate_trend",
		Title:          "Attrition Rate",
		RefreshPolicy:  types.RefreshPolicyScheduled,
		RefreshCadence: "monthly",
	})

	due := time.Now().Add(time.Hour)
	if err := env.db.Model(&types.Card{}).Where("id = ?", card.ID).
		Update("next_refresh_at", due).Error; err != nil {
		t.Fatalf("seed due time: %v", err)
	}

	weekly := "weekly"
	updated, err := env.cards.Update(ctx, card.ID, UpdateCardInput{RefreshCadence: &weekly})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.RefreshCadence != "weekly" {
		t.Fatalf("cadence = %q", updated.RefreshCadence)
	}
	if updated.NextRefreshAt != nil {
		t.Fatalf("cadence change must clear next_refresh_at")
	}
}

func TestCardDelete_Cascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	card := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})
	other := mustCreateCard(t, env, CreateCardInput{BundleKey: "rate_trend", Title: "Attrition Rate"})

	if _, err := env.cards.AppendSnapshot(ctx, nil, card.ID, []byte(`{"value":412}`), "2026-08", time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: card.ID,
		TargetCardID: other.ID,
		RelationType: types.RelationTypeDrilldown,
	}); err != nil {
		t.Fatalf("create relation: %v", err)
	}

	if err := env.cards.Delete(ctx, card.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := env.cards.GetByID(ctx, card.ID); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("card still readable: %v", err)
	}
	var snapCount, relCount int64
	if err := env.db.Model(&types.CardSnapshot{}).Where("card_id = ?", card.ID).Count(&snapCount).Error; err != nil {
		t.Fatalf("count snapshots: %v", err)
	}
	if err := env.db.Model(&types.CardRelation{}).
		Where("source_card_id = ? OR target_card_id = ?", card.ID, card.ID).
		Count(&relCount).Error; err != nil {
		t.Fatalf("count relations: %v", err)
	}
	if snapCount != 0 || relCount != 0 {
		t.Fatalf("delete left orphans: snapshots=%d relations=%d", snapCount, relCount)
	}

	// The surviving card is untouched.
	if _, err := env.cards.GetByID(ctx, other.ID); err != nil {
		t.Fatalf("sibling card lost: %v", err)
	}
	if err := env.cards.Delete(ctx, uuid.New()); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("delete of unknown card: %v", err)
	}
}

func TestCardList_Filters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount", SourceAttribution: "metric-engine"})
	mustCreateCard(t, env, CreateCardInput{BundleKey: "rate_trend", Title: "Attrition Rate", SourceAttribution: "benchmark"})

	if err := env.db.Model(&types.Card{}).Where("id = ?", a.ID).
		Update("refresh_status", types.RefreshStatusStale).Error; err != nil {
		t.Fatalf("mark stale: %v", err)
	}

	byBundle, err := env.cards.List(ctx, ListCardsFilter{BundleKey: "kpi_number"})
	if err != nil {
		t.Fatalf("list by bundle: %v", err)
	}
	if len(byBundle) != 1 || byBundle[0].ID != a.ID {
		t.Fatalf("bundle filter returned %d cards", len(byBundle))
	}

	bySource, err := env.cards.List(ctx, ListCardsFilter{Source: "benchmark"})
	if err != nil {
		t.Fatalf("list by source: %v", err)
	}
	if len(bySource) != 1 || bySource[0].SourceAttribution != "benchmark" {
		t.Fatalf("source filter returned %d cards", len(bySource))
	}

	stale, err := env.cards.List(ctx, ListCardsFilter{StaleOnly: true})
	if err != nil {
		t.Fatalf("list stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != a.ID {
		t.Fatalf("stale filter returned %d cards", len(stale))
	}

	// Unknown bundle key filters everything out rather than erroring.
	none, err := env.cards.List(ctx, ListCardsFilter{BundleKey: "no_such_bundle"})
	if err != nil {
		t.Fatalf("list unknown bundle: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("unknown bundle key returned %d cards", len(none))
	}
}

func TestGetFull(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.metrics.Create(ctx, &types.MetricDefinition{Key: "headcount"}); err != nil {
		t.Fatalf("create metric: %v", err)
	}
	card := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", MetricKey: "headcount", Title: "Headcount"})
	target := mustCreateCard(t, env, CreateCardInput{BundleKey: "rate_trend", Title: "Attrition Rate"})

	if _, err := env.cards.AppendSnapshot(ctx, nil, card.ID, []byte(`{"value":412}`), "2026-08", time.Now()); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: card.ID,
		TargetCardID: target.ID,
		RelationType: types.RelationTypeDrilldown,
	}); err != nil {
		t.Fatalf("create relation: %v", err)
	}

	view, err := env.cards.GetFull(ctx, card.ID)
	if err != nil {
		t.Fatalf("get full: %v", err)
	}
	if view.Bundle == nil || view.Bundle.Key != "kpi_number" {
		t.Fatalf("bundle missing from view")
	}
	if view.Metric == nil || view.Metric.Key != "headcount" {
		t.Fatalf("metric missing from view")
	}
	if view.LatestSnapshot == nil || view.LatestSnapshot.PeriodLabel != "2026-08" {
		t.Fatalf("latest snapshot missing from view")
	}
	if len(view.Relations) != 1 {
		t.Fatalf("got %d relations, want 1", len(view.Relations))
	}
}

func TestGetFull_DanglingReferencesAndLookupFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.metrics.Create(ctx, &types.MetricDefinition{Key: "headcount"}); err != nil {
		t.Fatalf("create metric: %v", err)
	}
	card := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", MetricKey: "headcount", Title: "Headcount"})

	// A metric row deleted out from under the card leaves the view field
	// empty rather than failing the read.
	if err := env.db.Where("key = ?", "headcount").Delete(&types.MetricDefinition{}).Error; err != nil {
		t.Fatalf("delete metric: %v", err)
	}
	view, err := env.cards.GetFull(ctx, card.ID)
	if err != nil {
		t.Fatalf("get full with dangling metric: %v", err)
	}
	if view.Metric != nil {
		t.Fatalf("expected nil metric in view")
	}
	if view.Bundle == nil {
		t.Fatalf("bundle missing from view")
	}

	// A real store failure must surface, not degrade to a partial view.
	if err := env.db.Exec("DROP TABLE bundle_definition").Error; err != nil {
		t.Fatalf("drop table: %v", err)
	}
	if _, err := env.cards.GetFull(ctx, card.ID); err == nil {
		t.Fatalf("expected error when bundle lookup fails")
	}
}
