package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/chartdeck/chartdeck-backend/internal/ingest"
	"github.com/chartdeck/chartdeck-backend/internal/logger"
	"github.com/chartdeck/chartdeck-backend/internal/observability"
	"github.com/chartdeck/chartdeck-backend/internal/types"
)

// BranchResult reports one fan-out branch of an ingestion call. Branches are
// isolated: a failed branch never rolls back its siblings.
type BranchResult struct {
	Role       string     `json:"role"`
	CardID     *uuid.UUID `json:"card_id,omitempty"`
	CardTitle  string     `json:"card_title,omitempty"`
	SnapshotID *uuid.UUID `json:"snapshot_id,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// IngestResult is the per-call response for POST /ingest/{producer}.
type IngestResult struct {
	Producer  string         `json:"producer"`
	Branches  []BranchResult `json:"branches"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

type IngestService interface {
	// Ingest validates the raw producer payload and runs its fan-out
	// branches. A non-nil error means the whole payload was rejected
	// (unknown producer or malformed envelope); branch-level failures are
	// reported inside the result.
	Ingest(ctx context.Context, producer string, raw []byte) (*IngestResult, error)
}

type ingestService struct {
	db            *gorm.DB
	log           *logger.Logger
	bundleService BundleService
	metricService MetricService
	cardService   CardService
	metrics       *observability.Metrics
}

func NewIngestService(
	db *gorm.DB,
	baseLog *logger.Logger,
	bundleService BundleService,
	metricService MetricService,
	cardService CardService,
	metrics *observability.Metrics,
) IngestService {
	serviceLog := baseLog.With("service", "IngestService")
	return &ingestService{
		db:            db,
		log:           serviceLog,
		bundleService: bundleService,
		metricService: metricService,
		cardService:   cardService,
		metrics:       metrics,
	}
}

func (is *ingestService) Ingest(ctx context.Context, producer string, raw []byte) (*IngestResult, error) {
	if !ingest.KnownProducer(producer) {
		return nil, fmt.Errorf("%w: producer %q", types.ErrNotFound, producer)
	}

	var (
		result *IngestResult
		err    error
	)
	switch producer {
	case ingest.ProducerMetricEngine:
		result, err = is.ingestMetricEngine(ctx, raw)
	case ingest.ProducerBenchmark:
		result, err = is.ingestBenchmark(ctx, raw)
	case ingest.ProducerScenario:
		result, err = is.ingestScenario(ctx, raw)
	case ingest.ProducerForecast:
		result, err = is.ingestForecast(ctx, raw)
	}
	if err != nil {
		return nil, err
	}

	for _, b := range result.Branches {
		outcome := "ok"
		if b.Error != "" {
			outcome = "error"
			result.Failed++
		} else {
			result.Succeeded++
		}
		is.metrics.IngestBranches.WithLabelValues(producer, outcome).Inc()
	}
	is.log.Info("Ingestion call finished",
		"producer", producer, "succeeded", result.Succeeded, "failed", result.Failed)
	return result, nil
}

// branchSpec is everything one fan-out branch needs: the target bundle, the
// derived title, the card template and the snapshot payload.
type branchSpec struct {
	role        string
	bundleKey   string
	template    *types.Card
	payload     map[string]any
	periodLabel string
	effectiveAt time.Time
}

// runBranch executes validate-resolve-append-mark for one branch inside its
// own transaction. All-or-nothing per branch.
func (is *ingestService) runBranch(ctx context.Context, spec branchSpec) BranchResult {
	res := BranchResult{Role: spec.role}

	bundle, err := is.bundleService.GetByKey(ctx, spec.bundleKey)
	if err != nil {
		res.Error = fmt.Sprintf("no such bundle %q", spec.bundleKey)
		return res
	}

	rawPayload, err := json.Marshal(spec.payload)
	if err != nil {
		res.Error = fmt.Sprintf("encode payload: %v", err)
		return res
	}

	err = is.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := is.cardService.FindOrCreateByBundleTitle(ctx, tx, bundle.ID, spec.template)
		if err != nil {
			return err
		}
		snap, err := is.cardService.AppendSnapshot(ctx, tx, card.ID, rawPayload, spec.periodLabel, spec.effectiveAt)
		if err != nil {
			return err
		}
		res.CardID = &card.ID
		res.CardTitle = card.Title
		res.SnapshotID = &snap.ID
		return nil
	})
	if err != nil {
		is.log.Warn("Ingestion branch failed", "role", spec.role, "error", err)
		return BranchResult{Role: spec.role, Error: err.Error()}
	}
	return res
}

func (is *ingestService) ingestMetricEngine(ctx context.Context, raw []byte) (*IngestResult, error) {
	p, err := ingest.ParseMetricEngine(raw)
	if err != nil {
		return nil, err
	}

	metric, err := is.metricService.GetOrCreateByKey(ctx, nil, p.MetricKey, MetricFallback{
		Name:     p.Name,
		Category: p.Category,
		Unit:     p.Unit,
		Cadence:  p.Cadence,
	})
	if err != nil {
		return nil, err
	}

	bundleKey := ingest.InferBundleKey(p.MetricKey, p.Category, p.Unit)
	payload := map[string]any{
		"metric_key": p.MetricKey,
		"value":      *p.Value,
	}
	if p.Unit != "" {
		payload["unit"] = p.Unit
	}
	if len(p.Series) > 0 {
		payload["series"] = p.Series
	}

	spec := branchSpec{
		role:      "metric",
		bundleKey: bundleKey,
		template: &types.Card{
			Title:             metric.Name,
			MetricID:          &metric.ID,
			SourceAttribution: ingest.ProducerMetricEngine,
			RefreshPolicy:     defaultPolicyFor(p.Cadence),
			RefreshCadence:    p.Cadence,
		},
		payload:     payload,
		periodLabel: orInferredPeriod(p.PeriodLabel, p.EffectiveAt),
		effectiveAt: orNow(p.EffectiveAt),
	}
	return &IngestResult{
		Producer: ingest.ProducerMetricEngine,
		Branches: []BranchResult{is.runBranch(ctx, spec)},
	}, nil
}

func (is *ingestService) ingestBenchmark(ctx context.Context, raw []byte) (*IngestResult, error) {
	p, err := ingest.ParseBenchmark(raw)
	if err != nil {
		return nil, err
	}

	effectiveAt := orNow(p.EffectiveAt)
	periodLabel := orInferredPeriod(p.PeriodLabel, p.EffectiveAt)
	template := func(title string) *types.Card {
		return &types.Card{
			Title:             title,
			SourceAttribution: ingest.ProducerBenchmark,
			RefreshPolicy:     types.RefreshPolicyScheduled,
			RefreshCadence:    "quarterly",
		}
	}

	var specs []branchSpec
	if p.Range != nil {
		payload := map[string]any{"min": *p.Range.Min, "median": *p.Range.Median, "max": *p.Range.Max}
		if p.Range.P25 != nil {
			payload["p25"] = *p.Range.P25
		}
		if p.Range.P75 != nil {
			payload["p75"] = *p.Range.P75
		}
		specs = append(specs, branchSpec{
			role:        "range",
			bundleKey:   ingest.BundleKeyBenchmarkRange,
			template:    template(p.Subject + " Benchmark Range"),
			payload:     payload,
			periodLabel: periodLabel,
			effectiveAt: effectiveAt,
		})
	}
	if len(p.Distribution) > 0 {
		specs = append(specs, branchSpec{
			role:        "distribution",
			bundleKey:   ingest.BundleKeyBenchmarkDist,
			template:    template(p.Subject + " Benchmark Distribution"),
			payload:     map[string]any{"buckets": p.Distribution},
			periodLabel: periodLabel,
			effectiveAt: effectiveAt,
		})
	}
	if len(p.Trend) > 0 {
		specs = append(specs, branchSpec{
			role:        "trend",
			bundleKey:   ingest.BundleKeyBenchmarkTrend,
			template:    template(p.Subject + " Benchmark Trend"),
			payload:     map[string]any{"points": p.Trend},
			periodLabel: periodLabel,
			effectiveAt: effectiveAt,
		})
	}

	result := &IngestResult{Producer: ingest.ProducerBenchmark}
	for _, spec := range specs {
		result.Branches = append(result.Branches, is.runBranch(ctx, spec))
	}
	return result, nil
}

func (is *ingestService) ingestScenario(ctx context.Context, raw []byte) (*IngestResult, error) {
	p, err := ingest.ParseScenario(raw)
	if err != nil {
		return nil, err
	}

	scenarios := make([]map[string]any, 0, len(p.Scenarios))
	for _, s := range p.Scenarios {
		scenarios = append(scenarios, map[string]any{"label": s.Label, "values": s.Values})
	}
	spec := branchSpec{
		role:      "comparison",
		bundleKey: ingest.BundleKeyScenarioCompare,
		template: &types.Card{
			Title:             "Scenario Comparison: " + p.Name,
			SourceAttribution: ingest.ProducerScenario,
			RefreshPolicy:     types.RefreshPolicyOnDemand,
		},
		payload:     map[string]any{"scenarios": scenarios},
		periodLabel: orInferredPeriod(p.PeriodLabel, p.EffectiveAt),
		effectiveAt: orNow(p.EffectiveAt),
	}
	return &IngestResult{
		Producer: ingest.ProducerScenario,
		Branches: []BranchResult{is.runBranch(ctx, spec)},
	}, nil
}

func (is *ingestService) ingestForecast(ctx context.Context, raw []byte) (*IngestResult, error) {
	p, err := ingest.ParseForecast(raw)
	if err != nil {
		return nil, err
	}

	template := &types.Card{
		Title:             p.Name + " Forecast",
		SourceAttribution: ingest.ProducerForecast,
		RefreshPolicy:     types.RefreshPolicyScheduled,
		RefreshCadence:    "monthly",
	}
	if p.MetricKey != "" {
		metric, err := is.metricService.GetOrCreateByKey(ctx, nil, p.MetricKey, MetricFallback{Name: p.Name})
		if err != nil {
			return nil, err
		}
		template.MetricID = &metric.ID
	}

	spec := branchSpec{
		role:        "projection",
		bundleKey:   ingest.BundleKeyForecastProjected,
		template:    template,
		payload:     map[string]any{"points": p.Points, "horizon": p.Horizon},
		periodLabel: orInferredPeriod(p.PeriodLabel, p.EffectiveAt),
		effectiveAt: orNow(p.EffectiveAt),
	}
	return &IngestResult{
		Producer: ingest.ProducerForecast,
		Branches: []BranchResult{is.runBranch(ctx, spec)},
	}, nil
}

func defaultPolicyFor(cadence string) string {
	if cadence != "" {
		return types.RefreshPolicyScheduled
	}
	return types.RefreshPolicyOnDemand
}

func orNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now()
}

func orInferredPeriod(label string, effectiveAt *time.Time) string {
	if label != "" {
		return label
	}
	return orNow(effectiveAt).Format("2006-01")
}
