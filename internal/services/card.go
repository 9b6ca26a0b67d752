package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/repos"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

// CreateCardInput is the management-API create shape. BundleKey and MetricKey
// are resolved to IDs; unknown keys are rejected.
type CreateCardInput struct {
	BundleKey         string         `json:"bundle_key"`
	MetricKey         string         `json:"metric_key"`
	Title             string         `json:"title"`
	Subtitle          string         `json:"subtitle"`
	SourceAttribution string         `json:"source_attribution"`
	Config            map[string]any `json:"config"`
	RefreshPolicy     string         `json:"refresh_policy"`
	RefreshCadence    string         `json:"refresh_cadence"`
	IsPublished       bool           `json:"is_published"`
}

// UpdateCardInput carries PATCH semantics: nil pointers leave fields alone.
type UpdateCardInput struct {
	Title          *string         `json:"title"`
	Subtitle       *string         `json:"subtitle"`
	Config         *map[string]any `json:"config"`
	RefreshPolicy  *string         `json:"refresh_policy"`
	RefreshCadence *string         `json:"refresh_cadence"`
	Status         *string         `json:"status"`
	IsPublished    *bool           `json:"is_published"`
}

// CardFullView is the consumer read model: the card plus everything needed to
// render it without further round-trips.
type CardFullView struct {
	Card           *types.Card             `json:"card"`
	Bundle         *types.BundleDefinition `json:"bundle,omitempty"`
	Metric         *types.MetricDefinition `json:"metric,omitempty"`
	LatestSnapshot *types.CardSnapshot     `json:"latest_snapshot,omitempty"`
	Relations      []*types.CardRelation   `json:"relations"`
}

// ListCardsFilter is the query-level filter for GET /cards.
type ListCardsFilter struct {
	BundleKey string
	Source    string
	StaleOnly bool
}

type CardService interface {
	Create(ctx context.Context, input CreateCardInput) (*types.Card, error)
	GetByID(ctx context.Context, id uuid.UUID) (*types.Card, error)
	GetFull(ctx context.Context, id uuid.UUID) (*CardFullView, error)
	List(ctx context.Context, filter ListCardsFilter) ([]*types.Card, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateCardInput) (*types.Card, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// FindOrCreateByBundleTitle is the ingestion idempotency primitive: the
	// (bundleID, title) pair is looked up first and created under the unique
	// index, with a re-read on conflict.
	FindOrCreateByBundleTitle(ctx context.Context, tx *gorm.DB, bundleID uuid.UUID, template *types.Card) (*types.Card, error)

	// AppendSnapshot writes one immutable snapshot and marks the card fresh:
	// last_refreshed_at := now, refresh_status := current. next_refresh_at is
	// deliberately left alone; only the sweep advances it.
	AppendSnapshot(ctx context.Context, tx *gorm.DB, cardID uuid.UUID, payload []byte, periodLabel string, effectiveAt time.Time) (*types.CardSnapshot, error)

	ListSnapshots(ctx context.Context, cardID uuid.UUID) ([]*types.CardSnapshot, error)
	LatestSnapshot(ctx context.Context, cardID uuid.UUID) (*types.CardSnapshot, error)

	IngestStatus(ctx context.Context) ([]repos.SourceCount, error)
}

type cardService struct {
	db           *gorm.DB
	log          *logger.Logger
	cardRepo     repos.CardRepo
	snapshotRepo repos.SnapshotRepo
	relationRepo repos.RelationRepo
	bundleRepo   repos.BundleRepo
	metricRepo   repos.MetricRepo
}

func NewCardService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cardRepo repos.CardRepo,
	snapshotRepo repos.SnapshotRepo,
	relationRepo repos.RelationRepo,
	bundleRepo repos.BundleRepo,
	metricRepo repos.MetricRepo,
) CardService {
	serviceLog := baseLog.With("service", "CardService")
	return &cardService{
		db:           db,
		log:          serviceLog,
		cardRepo:     cardRepo,
		snapshotRepo: snapshotRepo,
		relationRepo: relationRepo,
		bundleRepo:   bundleRepo,
		metricRepo:   metricRepo,
	}
}

func (cs *cardService) Create(ctx context.Context, input CreateCardInput) (*types.Card, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: card title is required", types.ErrValidation)
	}
	policy := input.RefreshPolicy
	if policy == "" {
		policy = types.RefreshPolicyManual
	}
	switch policy {
	case types.RefreshPolicyManual, types.RefreshPolicyOnDemand, types.RefreshPolicyScheduled:
	default:
		return nil, fmt.Errorf("%w: unknown refresh policy %q", types.ErrValidation, policy)
	}

	card := &types.Card{
		ID:                uuid.New(),
		Title:             title,
		Subtitle:          input.Subtitle,
		SourceAttribution: input.SourceAttribution,
		RefreshPolicy:     policy,
		RefreshCadence:    input.RefreshCadence,
		RefreshStatus:     types.RefreshStatusCurrent,
		Status:            types.CardStatusActive,
		IsPublished:       input.IsPublished,
	}
	now := time.Now()
	card.CreatedAt = now
	card.UpdatedAt = now

	if input.BundleKey != "" {
		bundle, err := cs.bundleRepo.GetByKey(ctx, nil, input.BundleKey)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return nil, fmt.Errorf("%w: bundle %q", types.ErrNotFound, input.BundleKey)
			}
			return nil, err
		}
		card.BundleID = &bundle.ID
	}
	if input.MetricKey != "" {
		metric, err := cs.metricRepo.GetByKey(ctx, nil, input.MetricKey)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return nil, fmt.Errorf("%w: metric %q", types.ErrNotFound, input.MetricKey)
			}
			return nil, err
		}
		card.MetricID = &metric.ID
	}
	if input.Config != nil {
		raw, err := json.Marshal(input.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: config: %v", types.ErrValidation, err)
		}
		card.Config = datatypes.JSON(raw)
	}

	created, err := cs.cardRepo.Create(ctx, nil, card)
	if err != nil {
		if errors.Is(err, types.ErrConflict) {
			return nil, fmt.Errorf("%w: card %q already exists for that bundle", types.ErrConflict, title)
		}
		return nil, err
	}
	cs.log.Info("Created card", "card_id", created.ID, "title", created.Title)
	return created, nil
}

func (cs *cardService) GetByID(ctx context.Context, id uuid.UUID) (*types.Card, error) {
	return cs.cardRepo.GetByID(ctx, nil, id)
}

func (cs *cardService) GetFull(ctx context.Context, id uuid.UUID) (*CardFullView, error) {
	card, err := cs.cardRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	view := &CardFullView{Card: card, Relations: []*types.CardRelation{}}

	// A dangling bundle or metric pointer leaves the field empty; any other
	// lookup failure is a real error, not a partial view.
	if card.BundleID != nil {
		var bundle types.BundleDefinition
		err := cs.db.WithContext(ctx).Where("id = ?", *card.BundleID).First(&bundle).Error
		switch {
		case err == nil:
			view.Bundle = &bundle
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}
	if card.MetricID != nil {
		metric, err := cs.metricRepo.GetByID(ctx, nil, *card.MetricID)
		switch {
		case err == nil:
			view.Metric = metric
		case !errors.Is(err, types.ErrNotFound):
			return nil, err
		}
	}
	latest, err := cs.snapshotRepo.GetLatestByCardID(ctx, nil, id)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}
	view.LatestSnapshot = latest

	rels, err := cs.relationRepo.ListByCardID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	view.Relations = rels
	return view, nil
}

func (cs *cardService) List(ctx context.Context, filter ListCardsFilter) ([]*types.Card, error) {
	repoFilter := repos.CardFilter{Source: filter.Source, StaleOnly: filter.StaleOnly}
	if filter.BundleKey != "" {
		bundle, err := cs.bundleRepo.GetByKey(ctx, nil, filter.BundleKey)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				return []*types.Card{}, nil
			}
			return nil, err
		}
		repoFilter.BundleID = &bundle.ID
	}
	return cs.cardRepo.List(ctx, nil, repoFilter)
}

func (cs *cardService) Update(ctx context.Context, id uuid.UUID, input UpdateCardInput) (*types.Card, error) {
	card, err := cs.cardRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: card title cannot be empty", types.ErrValidation)
		}
		card.Title = title
	}
	if input.Subtitle != nil {
		card.Subtitle = *input.Subtitle
	}
	if input.Config != nil {
		raw, err := json.Marshal(*input.Config)
		if err != nil {
			return nil, fmt.Errorf("%w: config: %v", types.ErrValidation, err)
		}
		card.Config = datatypes.JSON(raw)
	}
	if input.RefreshPolicy != nil {
		switch *input.RefreshPolicy {
		case types.RefreshPolicyManual, types.RefreshPolicyOnDemand, types.RefreshPolicyScheduled:
			card.RefreshPolicy = *input.RefreshPolicy
		default:
			return nil, fmt.Errorf("%w: unknown refresh policy %q", types.ErrValidation, *input.RefreshPolicy)
		}
	}
	if input.RefreshCadence != nil {
		card.RefreshCadence = *input.RefreshCadence
		// A cadence change invalidates the previously computed due time; the
		// sweep reseeds it on the next tick.
		card.NextRefreshAt = nil
	}
	if input.Status != nil {
		card.Status = *input.Status
	}
	if input.IsPublished != nil {
		card.IsPublished = *input.IsPublished
	}
	return cs.cardRepo.Update(ctx, nil, card)
}

// Delete removes the card and cascades to its snapshots and every relation
// edge touching it. Done explicitly in one transaction so the behavior holds
// on stores without FK cascade support.
func (cs *cardService) Delete(ctx context.Context, id uuid.UUID) error {
	return cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := cs.cardRepo.GetByID(ctx, tx, id); err != nil {
			return err
		}
		if err := cs.snapshotRepo.DeleteByCardID(ctx, tx, id); err != nil {
			return fmt.Errorf("delete snapshots: %w", err)
		}
		if err := cs.relationRepo.DeleteByCardID(ctx, tx, id); err != nil {
			return fmt.Errorf("delete relations: %w", err)
		}
		if err := cs.cardRepo.Delete(ctx, tx, id); err != nil {
			return fmt.Errorf("delete card: %w", err)
		}
		cs.log.Info("Deleted card", "card_id", id)
		return nil
	})
}

func (cs *cardService) FindOrCreateByBundleTitle(ctx context.Context, tx *gorm.DB, bundleID uuid.UUID, template *types.Card) (*types.Card, error) {
	title := strings.TrimSpace(template.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: derived card title is empty", types.ErrValidation)
	}

	card, err := cs.cardRepo.GetByBundleAndTitle(ctx, tx, bundleID, title)
	if err == nil {
		return card, nil
	}
	if !errors.Is(err, types.ErrNotFound) {
		return nil, err
	}

	fresh := *template
	fresh.ID = uuid.New()
	fresh.BundleID = &bundleID
	fresh.Title = title
	if fresh.RefreshStatus == "" {
		fresh.RefreshStatus = types.RefreshStatusCurrent
	}
	if fresh.Status == "" {
		fresh.Status = types.CardStatusActive
	}
	now := time.Now()
	fresh.CreatedAt = now
	fresh.UpdatedAt = now

	// The insert runs in its own savepoint so a unique-index violation does
	// not poison the caller's transaction before the retry lookup.
	db := tx
	if db == nil {
		db = cs.db
	}
	err = db.Transaction(func(stx *gorm.DB) error {
		_, err := cs.cardRepo.Create(ctx, stx, &fresh)
		return err
	})
	if err == nil {
		cs.log.Info("Created card from ingestion", "card_id", fresh.ID, "title", title)
		return &fresh, nil
	}
	if !errors.Is(err, types.ErrConflict) {
		return nil, err
	}

	// Concurrent ingestion won the insert; reuse its card.
	return cs.cardRepo.GetByBundleAndTitle(ctx, tx, bundleID, title)
}

func (cs *cardService) AppendSnapshot(ctx context.Context, tx *gorm.DB, cardID uuid.UUID, payload []byte, periodLabel string, effectiveAt time.Time) (*types.CardSnapshot, error) {
	run := func(tx *gorm.DB) (*types.CardSnapshot, error) {
		if _, err := cs.cardRepo.GetByID(ctx, tx, cardID); err != nil {
			return nil, err
		}
		if effectiveAt.IsZero() {
			effectiveAt = time.Now()
		}
		snap := &types.CardSnapshot{
			ID:          uuid.New(),
			CardID:      cardID,
			Payload:     datatypes.JSON(payload),
			PeriodLabel: periodLabel,
			EffectiveAt: effectiveAt,
			CreatedAt:   time.Now(),
		}
		if _, err := cs.snapshotRepo.Create(ctx, tx, snap); err != nil {
			return nil, fmt.Errorf("append snapshot: %w", err)
		}
		if err := cs.cardRepo.UpdateFields(ctx, tx, cardID, map[string]interface{}{
			"last_refreshed_at": time.Now(),
			"refresh_status":    types.RefreshStatusCurrent,
		}); err != nil {
			return nil, fmt.Errorf("mark card refreshed: %w", err)
		}
		return snap, nil
	}

	if tx != nil {
		return run(tx)
	}
	var snap *types.CardSnapshot
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		snap, err = run(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (cs *cardService) ListSnapshots(ctx context.Context, cardID uuid.UUID) ([]*types.CardSnapshot, error) {
	if _, err := cs.cardRepo.GetByID(ctx, nil, cardID); err != nil {
		return nil, err
	}
	return cs.snapshotRepo.ListByCardID(ctx, nil, cardID)
}

func (cs *cardService) LatestSnapshot(ctx context.Context, cardID uuid.UUID) (*types.CardSnapshot, error) {
	if _, err := cs.cardRepo.GetByID(ctx, nil, cardID); err != nil {
		return nil, err
	}
	return cs.snapshotRepo.GetLatestByCardID(ctx, nil, cardID)
}

func (cs *cardService) IngestStatus(ctx context.Context) ([]repos.SourceCount, error) {
	return cs.cardRepo.CountBySource(ctx, nil)
}
