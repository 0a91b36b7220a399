package metrics

import (
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/sources"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

func sampleResult() *pipeline.Result {
	return &pipeline.Result{
		Duration: 250 * time.Millisecond,
		Sources: []*pipeline.LoadedSource{
			{Name: "actual", Report: &sources.ParseReport{Samples: 120, Malformed: 2}},
			{Name: "astra", Report: &sources.ParseReport{Samples: 80}},
			{Name: "uwyo", Report: &sources.ParseReport{}, Err: errors.New("unreadable")},
		},
		Comparisons: []*pipeline.Comparison{
			{
				Source:     "astra",
				Deviations: []float64{0.1, 0.3},
				Summary:    trajectory.Summary{Count: 2, Mean: 0.2, StdDev: 0.1},
			},
		},
	}
}

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.Observe(sampleResult())

	assert.Equal(t, 120.0, testutil.ToFloat64(c.SamplesParsed.WithLabelValues("actual")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.MalformedRecords.WithLabelValues("actual")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SourceErrors.WithLabelValues("uwyo")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DeviationsComputed.WithLabelValues("astra")))
	assert.Equal(t, 0.2, testutil.ToFloat64(c.DeviationMean.WithLabelValues("astra")))
	assert.Equal(t, 0.1, testutil.ToFloat64(c.DeviationStdDev.WithLabelValues("astra")))
	assert.Equal(t, 0.25, testutil.ToFloat64(c.LastRunDuration))
}

func TestObserve_FailedComparisonClearsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.Observe(sampleResult())
	require.Equal(t, 1, testutil.CollectAndCount(c.DeviationMean))

	failed := sampleResult()
	failed.Comparisons[0].Err = trajectory.ErrOutOfRange
	failed.Comparisons[0].Summary = trajectory.Summary{}
	c.Observe(failed)

	assert.Equal(t, 0, testutil.CollectAndCount(c.DeviationMean))
}

func TestNewCollector_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	assert.Same(t, first.SamplesParsed, second.SamplesParsed)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() { c.Observe(sampleResult()) })
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.Observe(sampleResult())

	path := filepath.Join(t.TempDir(), "textfile", "flightpath.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `flightpath_deviation_mean{source="astra"} 0.2`)
	assert.Contains(t, out, "flightpath_last_run_duration_seconds 0.25")
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.HTTPRequests.WithLabelValues("/health", "200").Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `flightpath_http_requests_total{code="200",route="/health"} 1`))
}
