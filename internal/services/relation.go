package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

// CreateRelationInput is the POST /card-relations body.
type CreateRelationInput struct {
	SourceCardID uuid.UUID `json:"source_card_id"`
	TargetCardID uuid.UUID `json:"target_card_id"`
	RelationType string    `json:"relation_type"`
	Label        string    `json:"label"`
	SortOrder    int       `json:"sort_order"`
}

// Drilldown pairs an outgoing drilldown edge with its resolved target card.
type Drilldown struct {
	Relation *types.CardRelation `json:"relation"`
	Target   *types.Card         `json:"target"`
}

type RelationService interface {
	Create(ctx context.Context, input CreateRelationInput) (*types.CardRelation, error)
	ListForCard(ctx context.Context, cardID uuid.UUID) ([]*types.CardRelation, error)
	ListDrilldowns(ctx context.Context, cardID uuid.UUID) ([]Drilldown, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type relationService struct {
	db           *gorm.DB
	log          *logger.Logger
	relationRepo repos.RelationRepo
	cardRepo     repos.CardRepo
}

func NewRelationService(db *gorm.DB, baseLog *logger.Logger, relationRepo repos.RelationRepo, cardRepo repos.CardRepo) RelationService {
	serviceLog := baseLog.With("service", "RelationService")
	return &relationService{
		db:           db,
		log:          serviceLog,
		relationRepo: relationRepo,
		cardRepo:     cardRepo,
	}
}

// Create rejects edges whose endpoints do not exist before writing anything.
// Cycles and self-loops are not checked; the graph is navigation metadata,
// not a tree.
func (rs *relationService) Create(ctx context.Context, input CreateRelationInput) (*types.CardRelation, error) {
	if !types.ValidRelationType(input.RelationType) {
		return nil, fmt.Errorf("%w: unknown relation type %q", types.ErrValidation, input.RelationType)
	}
	if _, err := rs.cardRepo.GetByID(ctx, nil, input.SourceCardID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: source card %s", types.ErrNotFound, input.SourceCardID)
		}
		return nil, err
	}
	if _, err := rs.cardRepo.GetByID(ctx, nil, input.TargetCardID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: target card %s", types.ErrNotFound, input.TargetCardID)
		}
		return nil, err
	}

	rel := &types.CardRelation{
		ID:           uuid.New(),
		SourceCardID: input.SourceCardID,
		TargetCardID: input.TargetCardID,
		RelationType: input.RelationType,
		Label:        input.Label,
		SortOrder:    input.SortOrder,
		CreatedAt:    time.Now(),
	}
	created, err := rs.relationRepo.Create(ctx, nil, rel)
	if err != nil {
		return nil, fmt.Errorf("create relation: %w", err)
	}
	rs.log.Debug("Created relation", "relation_id", created.ID, "type", created.RelationType)
	return created, nil
}

func (rs *relationService) ListForCard(ctx context.Context, cardID uuid.UUID) ([]*types.CardRelation, error) {
	if _, err := rs.cardRepo.GetByID(ctx, nil, cardID); err != nil {
		return nil, err
	}
	return rs.relationRepo.ListByCardID(ctx, nil, cardID)
}

func (rs *relationService) ListDrilldowns(ctx context.Context, cardID uuid.UUID) ([]Drilldown, error) {
	if _, err := rs.cardRepo.GetByID(ctx, nil, cardID); err != nil {
		return nil, err
	}
	rels, err := rs.relationRepo.ListBySourceAndType(ctx, nil, cardID, types.RelationTypeDrilldown)
	if err != nil {
		return nil, err
	}
	drilldowns := make([]Drilldown, 0, len(rels))
	for _, rel := range rels {
		target, err := rs.cardRepo.GetByID(ctx, nil, rel.TargetCardID)
		if err != nil {
			// Edge survived its target somehow; skip rather than fail the list.
			rs.log.Warn("Drilldown target missing", "relation_id", rel.ID, "target_card_id", rel.TargetCardID)
			continue
		}
		drilldowns = append(drilldowns, Drilldown{Relation: rel, Target: target})
	}
	return drilldowns, nil
}

func (rs *relationService) Delete(ctx context.Context, id uuid.UUID) error {
	return rs.relationRepo.Delete(ctx, nil, id)
}
