package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/chartdeck/chartdeck-backend/internal/types"
)

func TestRelationCreate_RejectsMissingEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	card := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})

	_, err := env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: card.ID,
		TargetCardID: uuid.New(),
		RelationType: types.RelationTypeDrilldown,
	})
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("missing target: got %v", err)
	}
	_, err = env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: uuid.New(),
		TargetCardID: card.ID,
		RelationType: types.RelationTypeDrilldown,
	})
	if !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("missing source: got %v", err)
	}

	// Nothing was written.
	var count int64
	if err := env.db.Model(&types.CardRelation{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected create left %d rows", count)
	}
}

func TestRelationCreate_RejectsUnknownType(t *testing.T) {
	env := newTestEnv(t)
	card := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})

	_, err := env.relation.Create(context.Background(), CreateRelationInput{
		SourceCardID: card.ID,
		TargetCardID: card.ID,
		RelationType: "sibling",
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRelation_ListForCardSeesBothDirections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})
	b := mustCreateCard(t, env, CreateCardInput{BundleKey: "rate_trend", Title: "Attrition Rate"})
	c := mustCreateCard(t, env, CreateCardInput{BundleKey: "count_bar", Title: "Hires By Month"})

	if _, err := env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: a.ID, TargetCardID: b.ID, RelationType: types.RelationTypeDrilldown,
	}); err != nil {
		t.Fatalf("create a->b: %v", err)
	}
	if _, err := env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: c.ID, TargetCardID: a.ID, RelationType: types.RelationTypeRelated,
	}); err != nil {
		t.Fatalf("create c->a: %v", err)
	}

	rels, err := env.relation.ListForCard(ctx, a.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rels) != 2 {
		t.Fatalf("got %d relations, want both directions", len(rels))
	}
}

func TestRelation_Drilldowns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})
	b := mustCreateCard(t, env, CreateCardInput{BundleKey: "rate_trend", Title: "Attrition Rate"})
	c := mustCreateCard(t, env, CreateCardInput{BundleKey: "count_bar", Title: "Hires By Month"})

	if _, err := env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: a.ID, TargetCardID: b.ID, RelationType: types.RelationTypeDrilldown, SortOrder: 2,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: a.ID, TargetCardID: c.ID, RelationType: types.RelationTypeDrilldown, SortOrder: 1,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	// A non-drilldown edge must not appear in the drilldown list.
	if _, err := env.relation.Create(ctx, CreateRelationInput{
		SourceCardID: a.ID, TargetCardID: c.ID, RelationType: types.RelationTypeRelated,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	drilldowns, err := env.relation.ListDrilldowns(ctx, a.ID)
	if err != nil {
		t.Fatalf("drilldowns: %v", err)
	}
	if len(drilldowns) != 2 {
		t.Fatalf("got %d drilldowns, want 2", len(drilldowns))
	}
	// Ordered by sort_order.
	if drilldowns[0].Target.ID != c.ID || drilldowns[1].Target.ID != b.ID {
		t.Fatalf("drilldowns out of order")
	}
}

func TestRelation_SelfLoopAllowed(t *testing.T) {
	env := newTestEnv(t)
	card := mustCreateCard(t, env, CreateCardInput{BundleKey: "kpi_number", Title: "Headcount"})

	if _, err := env.relation.Create(context.Background(), CreateRelationInput{
		SourceCardID: card.ID,
		TargetCardID: card.ID,
		RelationType: types.RelationTypeRelated,
	}); err != nil {
		t.Fatalf("self loop rejected: %v", err)
	}
}
