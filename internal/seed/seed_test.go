package seed

import (
	"testing"

	"github.com/chartdeck/chartdeck-backend/internal/ingest"
)

func TestLoadBuiltinDefinitions(t *testing.T) {
	defs, err := LoadBuiltinDefinitions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(defs) == 0 {
		t.Fatalf("empty catalog")
	}
	byKey := make(map[string]bool, len(defs))
	for _, def := range defs {
		if byKey[def.Key] {
			t.Fatalf("duplicate key %q", def.Key)
		}
		byKey[def.Key] = true
		if def.ChartType == "" {
			t.Fatalf("bundle %q has no chart type", def.Key)
		}
		if def.Version < 1 {
			t.Fatalf("bundle %q has version %d", def.Key, def.Version)
		}
		if len(def.DataSchema) == 0 {
			t.Fatalf("bundle %q has no data schema", def.Key)
		}
	}
}

// Every bundle key ingestion can land on must exist in the built-in catalog,
// or pushes would fail at runtime with "no such bundle".
func TestCatalogCoversIngestionTargets(t *testing.T) {
	defs, err := LoadBuiltinDefinitions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	byKey := make(map[string]bool, len(defs))
	for _, def := range defs {
		byKey[def.Key] = true
	}
	for _, key := range []string{
		ingest.BundleKeyDefault,
		ingest.BundleKeyRateTrend,
		ingest.BundleKeyCurrencyTrend,
		ingest.BundleKeyScoreGauge,
		ingest.BundleKeyCountBar,
		ingest.BundleKeyDistribution,
		ingest.BundleKeyBenchmarkRange,
		ingest.BundleKeyBenchmarkDist,
		ingest.BundleKeyBenchmarkTrend,
		ingest.BundleKeyScenarioCompare,
		ingest.BundleKeyForecastProjected,
	} {
		if !byKey[key] {
			t.Fatalf("catalog missing ingestion target %q", key)
		}
	}
}
