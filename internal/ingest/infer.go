package ingest

import "strings"

// Bundle keys the inference step can land on. They must all exist in the
// seeded registry; ingestion fails with "no such bundle" otherwise.
const (
	BundleKeyDefault           = "kpi_number"
	BundleKeyRateTrend         = "rate_trend"
	BundleKeyCurrencyTrend     = "currency_trend"
	BundleKeyScoreGauge        = "score_gauge"
	BundleKeyCountBar          = "count_bar"
	BundleKeyDistribution      = "value_distribution"
	BundleKeyBenchmarkRange    = "benchmark_range"
	BundleKeyBenchmarkDist     = "benchmark_distribution"
	BundleKeyBenchmarkTrend    = "benchmark_trend"
	BundleKeyScenarioCompare   = "scenario_comparison"
	BundleKeyForecastProjected = "forecast_projection"
)

// Direct category mapping, consulted before any unit or key heuristics.
var categoryBundles = map[string]string{
	"rate":         BundleKeyRateTrend,
	"ratio":        BundleKeyRateTrend,
	"percentage":   BundleKeyRateTrend,
	"currency":     BundleKeyCurrencyTrend,
	"compensation": BundleKeyCurrencyTrend,
	"score":        BundleKeyScoreGauge,
	"count":        BundleKeyCountBar,
	"headcount":    BundleKeyCountBar,
	"distribution": BundleKeyDistribution,
}

// Key suffix heuristics, checked in order so "ratio" wins over "rate" when a
// key ends in both (e.g. "conversion_ratio").
var suffixBundles = []struct {
	suffix string
	bundle string
}{
	{"ratio", BundleKeyRateTrend},
	{"rate", BundleKeyRateTrend},
	{"score", BundleKeyScoreGauge},
	{"count", BundleKeyCountBar},
	{"distribution", BundleKeyDistribution},
}

// InferBundleKey picks the target bundle for a metric-engine push:
// category map first, then declared unit, then key suffix, then the default
// headline-number chart.
func InferBundleKey(metricKey, category, unit string) string {
	if bundle, ok := categoryBundles[strings.ToLower(strings.TrimSpace(category))]; ok {
		return bundle
	}
	switch strings.TrimSpace(unit) {
	case "%":
		return BundleKeyRateTrend
	case "$", "€", "£":
		return BundleKeyCurrencyTrend
	}
	key := strings.ToLower(strings.TrimSpace(metricKey))
	for _, s := range suffixBundles {
		if strings.HasSuffix(key, s.suffix) {
			return s.bundle
		}
	}
	return BundleKeyDefault
}
