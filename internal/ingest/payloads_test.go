package ingest

import (
	"errors"
	"testing"

	"github.com/chartdeck/chartdeck-backend/internal/types"
)

func TestKnownProducer(t *testing.T) {
	for _, p := range []string{ProducerMetricEngine, ProducerBenchmark, ProducerScenario, ProducerForecast} {
		if !KnownProducer(p) {
			t.Fatalf("%q should be known", p)
		}
	}
	if KnownProducer("etl") || KnownProducer("") {
		t.Fatalf("unknown producers accepted")
	}
}

func TestParseMetricEngine(t *testing.T) {
	p, err := ParseMetricEngine([]byte(`{"metric_key": "attrition_rate", "value": 0}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// A literal zero is a legal value, not a missing one.
	if p.Value == nil || *p.Value != 0 {
		t.Fatalf("value = %v", p.Value)
	}

	for name, raw := range map[string]string{
		"missing value": `{"metric_key": "x"}`,
		"missing key":   `{"value": 1}`,
		"not json":      `oops`,
	} {
		if _, err := ParseMetricEngine([]byte(raw)); !errors.Is(err, types.ErrValidation) {
			t.Fatalf("%s: got %v", name, err)
		}
	}
}

func TestParseBenchmark(t *testing.T) {
	p, err := ParseBenchmark([]byte(`{"subject": "Salary", "range": {"min": 0, "median": 1, "max": 2}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Range == nil || *p.Range.Min != 0 {
		t.Fatalf("range = %+v", p.Range)
	}

	if _, err := ParseBenchmark([]byte(`{"subject": "Salary"}`)); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("sectionless payload: got %v", err)
	}
	// An incomplete range section is rejected, not silently dropped.
	if _, err := ParseBenchmark([]byte(`{"subject": "Salary", "range": {"min": 1}}`)); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("partial range: got %v", err)
	}
	if _, err := ParseBenchmark([]byte(`{"range": {"min": 0, "median": 1, "max": 2}}`)); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("missing subject: got %v", err)
	}
}

func TestParseScenario(t *testing.T) {
	p, err := ParseScenario([]byte(`{"name": "Plan", "scenarios": [{"label": "base", "values": {"headcount": 400}}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(p.Scenarios) != 1 || p.Scenarios[0].Label != "base" {
		t.Fatalf("scenarios = %+v", p.Scenarios)
	}

	if _, err := ParseScenario([]byte(`{"name": "Plan", "scenarios": []}`)); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("empty scenarios: got %v", err)
	}
	// dive validation catches a bad entry inside the list.
	if _, err := ParseScenario([]byte(`{"name": "Plan", "scenarios": [{"label": "base", "values": {}}]}`)); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("valueless entry: got %v", err)
	}
}

func TestParseForecast(t *testing.T) {
	p, err := ParseForecast([]byte(`{"name": "Headcount", "horizon": "12m", "points": [{"period": "2026-09", "value": 415}]}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Horizon != "12m" || len(p.Points) != 1 {
		t.Fatalf("payload = %+v", p)
	}

	if _, err := ParseForecast([]byte(`{"name": "Headcount", "horizon": "12m", "points": []}`)); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("empty points: got %v", err)
	}
	if _, err := ParseForecast([]byte(`{"name": "Headcount", "points": [{"period": "x"}]}`)); !errors.Is(err, types.ErrValidation) {
		t.Fatalf("missing horizon: got %v", err)
	}
}
