// Package metrics exposes analysis results as Prometheus metrics, either
// over HTTP from the report server or as a node_exporter textfile written
// after a batch run.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

// Collector bundles the flightpath metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	SamplesParsed      *prometheus.CounterVec
	MalformedRecords   *prometheus.CounterVec
	SourceErrors       *prometheus.CounterVec
	DeviationsComputed *prometheus.CounterVec

	DeviationMean   *prometheus.GaugeVec
	DeviationStdDev *prometheus.GaugeVec
	LastRunDuration prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Registering twice on the same registry
// returns the existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	counters := []struct {
		dst    **prometheus.CounterVec
		name   string
		help   string
		labels []string
	}{
		{&c.SamplesParsed, "flightpath_samples_parsed_total", "Trajectory samples parsed, by source.", []string{"source"}},
		{&c.MalformedRecords, "flightpath_malformed_records_total", "Records rejected while parsing, by source.", []string{"source"}},
		{&c.SourceErrors, "flightpath_source_errors_total", "Sources that could not be used in a run, by source.", []string{"source"}},
		{&c.DeviationsComputed, "flightpath_deviations_computed_total", "Per-sample deviations computed, by prediction source.", []string{"source"}},
		{&c.HTTPRequests, "flightpath_http_requests_total", "Report server requests, by route and status code.", []string{"route", "code"}},
	}
	for _, def := range counters {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: def.name, Help: def.help}, def.labels)
		if *def.dst, err = registerCollector(reg, vec, def.name); err != nil {
			return nil, err
		}
	}

	gauges := []struct {
		dst  **prometheus.GaugeVec
		name string
		help string
	}{
		{&c.DeviationMean, "flightpath_deviation_mean", "Mean deviation of the latest run, by prediction source."},
		{&c.DeviationStdDev, "flightpath_deviation_stddev", "Population standard deviation of the latest run, by prediction source."},
	}
	for _, def := range gauges {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: def.name, Help: def.help}, []string{"source"})
		if *def.dst, err = registerCollector(reg, vec, def.name); err != nil {
			return nil, err
		}
	}

	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flightpath_last_run_duration_seconds",
		Help: "Wall time of the latest analysis run in seconds.",
	})
	if c.LastRunDuration, err = registerCollector[prometheus.Gauge](reg, duration, "flightpath_last_run_duration_seconds"); err != nil {
		return nil, err
	}

	return c, nil
}

// Observe records a finished pipeline run.
func (c *Collector) Observe(result *pipeline.Result) {
	if c == nil || result == nil {
		return
	}

	for _, s := range result.Sources {
		if s.Report != nil {
			c.SamplesParsed.WithLabelValues(s.Name).Add(float64(s.Report.Samples))
			c.MalformedRecords.WithLabelValues(s.Name).Add(float64(s.Report.Malformed))
		}
		if s.Err != nil {
			c.SourceErrors.WithLabelValues(s.Name).Inc()
		}
	}

	for _, cmp := range result.Comparisons {
		c.DeviationsComputed.WithLabelValues(cmp.Source).Add(float64(len(cmp.Deviations)))
		if cmp.OK() {
			c.SetDeviation(cmp.Source, cmp.Summary)
		} else {
			c.ClearDeviation(cmp.Source)
		}
	}

	c.LastRunDuration.Set(result.Duration.Seconds())
}

// SetDeviation publishes the mean and standard deviation of one source.
func (c *Collector) SetDeviation(source string, s trajectory.Summary) {
	if c == nil {
		return
	}
	c.DeviationMean.WithLabelValues(source).Set(s.Mean)
	c.DeviationStdDev.WithLabelValues(source).Set(s.StdDev)
}

// ClearDeviation removes the gauges of a source whose comparison failed.
func (c *Collector) ClearDeviation(source string) {
	if c == nil {
		return
	}
	c.DeviationMean.DeleteLabelValues(source)
	c.DeviationStdDev.DeleteLabelValues(source)
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// WriteTextfile writes every gathered metric to path in the text
// exposition format, atomically, for the node_exporter textfile collector.
func (c *Collector) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// registerCollector registers col, returning the already registered
// collector of the same type if there is one.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
