package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	CAMSAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solrad_cams_api_calls_total",
			Help: "Total CAMS retrieval attempts",
		},
		[]string{"station", "sky_type", "status"},
	)

	RecordsResampledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solrad_records_resampled_total",
			Help: "Total 1-minute records aggregated into 10-minute buckets",
		},
	)

	FilesCompiledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solrad_files_compiled_total",
			Help: "Processed station files handled by the compiler",
		},
		[]string{"status"},
	)

	StationsComparedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "solrad_stations_compared_total",
			Help: "Stations run through ground/model comparison",
		},
		[]string{"status"},
	)

	ComparisonPointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "solrad_comparison_points_total",
			Help: "Matched ground/model data points across all comparisons",
		},
	)
)

// Push sends all registered metrics to a Prometheus pushgateway. Batch runs
// have no scrape target, so exposition is push-only and best-effort.
func Push(gatewayURL, job string) error {
	return push.New(gatewayURL, job).Gatherer(prometheus.DefaultGatherer).Push()
}
