package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConversionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoint_conversions_total",
		Help: "Checkpoint conversions by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkpoint_stage_duration_seconds",
		Help:    "Duration of load, extract, rewrite and save stages",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ParametersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoint_parameters_total",
		Help: "Parameters processed, split by whether their name changed",
	}, []string{"result"})

	RuleHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rename_rule_hits_total",
		Help: "Keys rewritten per rename rule",
	}, []string{"rule"})

	CheckpointBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkpoint_tensor_bytes",
		Help:    "Total tensor bytes per converted checkpoint",
		Buckets: prometheus.ExponentialBuckets(1<<10, 4, 12),
	})

	ContainerShapes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkpoint_container_shapes_total",
		Help: "Loaded checkpoints by container shape",
	}, []string{"shape"})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "validation_errors_total",
		Help: "Total number of validation errors",
	}, []string{"operation", "error_type"})

	FixturesGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "golden_fixtures_generated_total",
		Help: "Fixture pairs written",
	})

	FixturePublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "golden_fixture_publishes_total",
		Help: "Fixture pairs pushed to a Flight endpoint, by outcome",
	}, []string{"outcome"})

	// Logit audit of generated or compared outputs
	LogitMaxValue = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logit_max_value",
		Help:    "Maximum logit value observed",
		Buckets: []float64{-100, -50, -20, -10, -5, 0, 5, 10, 20, 50, 100, 500, 1000},
	})

	LogitMinValue = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logit_min_value",
		Help:    "Minimum logit value observed",
		Buckets: []float64{-1000, -500, -100, -50, -20, -10, -5, 0, 5, 10, 20, 50, 100},
	})

	LogitRMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logit_rms",
		Help:    "Root mean square of logit values",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500},
	})

	LogitFlatDistribution = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logit_flat_distribution_total",
		Help: "Count of flat logit distributions detected",
	})

	LogitNaNCount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logit_nan_count_total",
		Help: "Total count of NaN values in logits",
	})

	LogitExtremeValues = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logit_extreme_values_total",
		Help: "Count of logit buffers with Inf, NaN or huge values",
	})

	ComparisonMismatches = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "golden_comparison_mismatches",
		Help:    "Elements outside tolerance per comparison",
		Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
	})
)

// RecordConversion records the outcome of one convert run.
func RecordConversion(outcome string, renamed, unchanged int, bytes int64) {
	ConversionsTotal.WithLabelValues(outcome).Inc()
	if outcome != "ok" {
		return
	}
	ParametersTotal.WithLabelValues("renamed").Add(float64(renamed))
	ParametersTotal.WithLabelValues("unchanged").Add(float64(unchanged))
	CheckpointBytes.Observe(float64(bytes))
}

func RecordStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func RecordRuleHits(hits map[string]int) {
	for rule, n := range hits {
		RuleHitsTotal.WithLabelValues(rule).Add(float64(n))
	}
}

func RecordContainerShape(shape string) {
	ContainerShapes.WithLabelValues(shape).Inc()
}

func RecordValidationError(operation, errorType string) {
	ValidationErrors.WithLabelValues(operation, errorType).Inc()
}

func RecordFixture() {
	FixturesGenerated.Inc()
}

func RecordFixturePublish(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	FixturePublishes.WithLabelValues(outcome).Inc()
}

// RecordLogitAudit records a logits summary.
func RecordLogitAudit(maxVal, minVal, rms float32, nans int, flat, extreme bool) {
	LogitMaxValue.Observe(float64(maxVal))
	LogitMinValue.Observe(float64(minVal))
	LogitRMS.Observe(float64(rms))
	if nans > 0 {
		LogitNaNCount.Add(float64(nans))
	}
	if flat {
		LogitFlatDistribution.Inc()
	}
	if extreme {
		LogitExtremeValues.Inc()
	}
}

func RecordComparison(mismatches int) {
	ComparisonMismatches.Observe(float64(mismatches))
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
