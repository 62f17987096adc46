package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func getGaugeValue(g prometheus.Gauge) float64 {
	var m dto.Metric
	if err := g.(prometheus.Metric).Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func getCounterVecValue(cv *prometheus.CounterVec, labels ...string) float64 {
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		return 0
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestMetrics_EditionDownloadsTotal(t *testing.T) {
	tests := []struct {
		format  string
		outcome string
	}{
		{"epub", "downloaded"},
		{"mobi", "unchanged"},
		{"pdf", "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.outcome, func(t *testing.T) {
			before := getCounterVecValue(EditionDownloadsTotal, tt.format, tt.outcome)
			EditionDownloadsTotal.WithLabelValues(tt.format, tt.outcome).Inc()
			after := getCounterVecValue(EditionDownloadsTotal, tt.format, tt.outcome)

			if after != before+1 {
				t.Errorf("Expected counter to increment by 1, got diff %.0f", after-before)
			}
		})
	}
}

func TestMetrics_EditionBytesTotal(t *testing.T) {
	before := getCounterVecValue(EditionBytesTotal, "epub")
	EditionBytesTotal.WithLabelValues("epub").Add(2048)
	after := getCounterVecValue(EditionBytesTotal, "epub")

	if after != before+2048 {
		t.Errorf("Expected bytes to grow by 2048, got diff %.0f", after-before)
	}
}

func TestMetrics_LastRun(t *testing.T) {
	LastRunTimestamp.Set(1711929600)
	LastRunSuccess.Set(1)

	if got := getGaugeValue(LastRunTimestamp); got != 1711929600 {
		t.Errorf("Expected timestamp 1711929600, got %.0f", got)
	}
	if got := getGaugeValue(LastRunSuccess); got != 1 {
		t.Errorf("Expected success 1, got %.0f", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "zeitdl_test_total", Help: "Test counter."},
		[]string{"format"},
	)
	reg.MustRegister(counter)
	counter.WithLabelValues("epub").Add(3)

	path := filepath.Join(t.TempDir(), "zeitdl.prom")
	if err := writeTextfile(path, reg); err != nil {
		t.Fatalf("writeTextfile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), `zeitdl_test_total{format="epub"} 3`) {
		t.Errorf("Textfile missing counter sample:\n%s", data)
	}
}

func TestWriteTextfile_DefaultGatherer(t *testing.T) {
	EditionDownloadsTotal.WithLabelValues("mobi", "downloaded").Inc()

	path := filepath.Join(t.TempDir(), "zeitdl.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read textfile: %v", err)
	}
	if !strings.Contains(string(data), "zeitdl_edition_downloads_total") {
		t.Errorf("Expected edition downloads in textfile:\n%s", data)
	}
}

func TestWriteTextfile_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "zeitdl.prom")
	if err := WriteTextfile(path); err == nil {
		t.Error("Expected an error when the target directory does not exist")
	}
}
