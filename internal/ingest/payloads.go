package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chartdeck/chartdeck-backend/internal/types"
)

// Producer kinds with a registered ingestion handler.
const (
	ProducerMetricEngine = "metric-engine"
	ProducerBenchmark    = "benchmark"
	ProducerScenario     = "scenario"
	ProducerForecast     = "forecast"
)

// KnownProducer reports whether the hub has a handler for the producer kind.
func KnownProducer(p string) bool {
	switch p {
	case ProducerMetricEngine, ProducerBenchmark, ProducerScenario, ProducerForecast:
		return true
	}
	return false
}

var validate = validator.New()

// MetricEnginePayload is the generic single-metric push. The target bundle is
// inferred from category, unit and key; unknown metric keys auto-register.
type MetricEnginePayload struct {
	MetricKey   string     `json:"metric_key" validate:"required"`
	Name        string     `json:"name"`
	Category    string     `json:"category"`
	Unit        string     `json:"unit"`
	Cadence     string     `json:"cadence"`
	Value       *float64   `json:"value" validate:"required"`
	Series      []any      `json:"series,omitempty"`
	PeriodLabel string     `json:"period_label"`
	EffectiveAt *time.Time `json:"effective_at"`
}

// BenchmarkRange is the min/median/max band of a benchmarked subject.
type BenchmarkRange struct {
	Min    *float64 `json:"min" validate:"required"`
	Median *float64 `json:"median" validate:"required"`
	Max    *float64 `json:"max" validate:"required"`
	P25    *float64 `json:"p25"`
	P75    *float64 `json:"p75"`
}

// BenchmarkPayload fans out to up to three cards (range, distribution,
// trend), one per populated section.
type BenchmarkPayload struct {
	Subject      string           `json:"subject" validate:"required"`
	Range        *BenchmarkRange  `json:"range"`
	Distribution []map[string]any `json:"distribution"`
	Trend        []map[string]any `json:"trend"`
	PeriodLabel  string           `json:"period_label"`
	EffectiveAt  *time.Time       `json:"effective_at"`
}

// ScenarioEntry is one labeled scenario in a comparison push.
type ScenarioEntry struct {
	Label  string             `json:"label" validate:"required"`
	Values map[string]float64 `json:"values" validate:"required,min=1"`
}

// ScenarioPayload compares measures across named scenarios on one card.
type ScenarioPayload struct {
	Name        string          `json:"name" validate:"required"`
	Scenarios   []ScenarioEntry `json:"scenarios" validate:"required,min=1,dive"`
	PeriodLabel string          `json:"period_label"`
	EffectiveAt *time.Time      `json:"effective_at"`
}

// ForecastPayload is a projected series for a named measure.
type ForecastPayload struct {
	Name        string           `json:"name" validate:"required"`
	MetricKey   string           `json:"metric_key"`
	Horizon     string           `json:"horizon" validate:"required"`
	Points      []map[string]any `json:"points" validate:"required,min=1"`
	PeriodLabel string           `json:"period_label"`
	EffectiveAt *time.Time       `json:"effective_at"`
}

func decode(raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", types.ErrValidation, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	return nil
}

func ParseMetricEngine(raw []byte) (*MetricEnginePayload, error) {
	var p MetricEnginePayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func ParseBenchmark(raw []byte) (*BenchmarkPayload, error) {
	var p BenchmarkPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	if p.Range == nil && len(p.Distribution) == 0 && len(p.Trend) == 0 {
		return nil, fmt.Errorf("%w: benchmark payload carries no range, distribution or trend section", types.ErrValidation)
	}
	if p.Range != nil {
		if err := validate.Struct(p.Range); err != nil {
			return nil, fmt.Errorf("%w: range: %v", types.ErrValidation, err)
		}
	}
	return &p, nil
}

func ParseScenario(raw []byte) (*ScenarioPayload, error) {
	var p ScenarioPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func ParseForecast(raw []byte) (*ForecastPayload, error) {
	var p ForecastPayload
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
