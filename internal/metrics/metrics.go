package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Edition download metrics
var (
	EditionDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zeitdl",
			Name:      "edition_downloads_total",
			Help:      "Total number of processed edition formats by outcome.",
		},
		[]string{"format", "outcome"},
	)

	EditionBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "zeitdl",
			Name:      "edition_bytes_total",
			Help:      "Total number of edition bytes written to disk.",
		},
		[]string{"format"},
	)

	LastRunTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zeitdl",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		},
	)

	LastRunSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "zeitdl",
			Name:      "last_run_success",
			Help:      "1 when the last run completed without failures, 0 otherwise.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EditionDownloadsTotal,
		EditionBytesTotal,
		LastRunTimestamp,
		LastRunSuccess,
	)
}

// WriteTextfile dumps every registered metric to path in the text exposition
// format, for the node_exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	return writeTextfile(path, prometheus.DefaultGatherer)
}

func writeTextfile(path string, gatherer prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
