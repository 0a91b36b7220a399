// Package pipeline runs one deviation analysis: it loads every configured
// trajectory source, normalizes the time axes and compares each prediction
// against the ground-truth track.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/flightpath/pkg/config"
	"github.com/unklstewy/flightpath/pkg/sources"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

// ErrGroundTruthUnavailable is returned when the ground-truth source is not
// configured, could not be read, or produced no usable samples.
var ErrGroundTruthUnavailable = errors.New("ground truth unavailable")

// Loader reads one source file. sources.LoadFile is the default.
type Loader func(path string, format sources.Format) (trajectory.Trajectory, *sources.ParseReport, error)

// Options tune a single Run. The zero value is ready to use.
type Options struct {
	// Logf receives progress messages; defaults to log.Printf
	Logf func(format string, args ...any)

	// Observer receives every alignment of every comparison. With
	// analysis.concurrency above 1 it is called from several goroutines.
	Observer func(source string, a trajectory.Alignment)

	// Loader replaces file access, mainly for tests
	Loader Loader
}

func (o *Options) logf(format string, args ...any) {
	if o.Logf != nil {
		o.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// LoadedSource is one configured source after loading and normalization.
type LoadedSource struct {
	Name   string
	Label  string
	Format sources.Format
	Path   string

	// Trajectory is normalized so its first sample is at time zero
	Trajectory trajectory.Trajectory

	// Offset is the original timestamp of the first sample
	Offset int64

	Report *sources.ParseReport

	// Err is set when the source could not be used; the run carries on
	// without it
	Err error
}

// Usable reports whether the source can take part in comparisons.
func (s *LoadedSource) Usable() bool {
	return s.Err == nil && len(s.Trajectory) > 0
}

// Comparison holds the deviation of one prediction from the ground truth.
type Comparison struct {
	Source string
	Label  string

	Alignments []trajectory.Alignment
	Deviations []float64
	Summary    trajectory.Summary

	// Skipped counts ground-truth samples outside the prediction's time
	// span. It is zero when Err is set.
	Skipped int

	Err error
}

// OK reports whether the comparison produced statistics.
func (c *Comparison) OK() bool {
	return c.Err == nil && c.Summary.Count > 0
}

// Result is the outcome of one Run.
type Result struct {
	GroundTruth string
	Metric      trajectory.Metric

	// Sources and Comparisons are in configuration order
	Sources     []*LoadedSource
	Comparisons []*Comparison

	StartedAt time.Time
	Duration  time.Duration
}

// Source returns the loaded source with the given name, or nil.
func (r *Result) Source(name string) *LoadedSource {
	for _, s := range r.Sources {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Comparison returns the comparison for the given source, or nil.
func (r *Result) Comparison(source string) *Comparison {
	for _, c := range r.Comparisons {
		if c.Source == source {
			return c
		}
	}
	return nil
}

// Run performs the analysis described by cfg.
//
// Problems with individual sources are recorded on the Result and never
// abort the run. The returned error is non-nil only when the ground truth
// cannot be used, the metric is unknown, or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	started := time.Now()

	metric, err := trajectory.ParseMetric(cfg.Analysis.Metric)
	if err != nil {
		return nil, err
	}
	if opts.Loader == nil {
		opts.Loader = sources.LoadFile
	}
	limit := cfg.Analysis.Concurrency
	if limit < 1 {
		limit = 1
	}

	result := &Result{
		GroundTruth: cfg.Analysis.GroundTruth,
		Metric:      metric,
		StartedAt:   started,
	}

	enabled := cfg.EnabledSources()
	result.Sources = make([]*LoadedSource, len(enabled))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, sc := range enabled {
		i, sc := i, sc
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result.Sources[i] = loadSource(sc, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range result.Sources {
		if s.Err != nil {
			opts.logf("⚠ %s: %v", s.Name, s.Err)
			continue
		}
		opts.logf("✓ Loaded %s: %d samples over %ds (%d malformed records)", s.Name, len(s.Trajectory), s.Trajectory.Duration(), s.Report.Malformed)
	}

	gt := result.Source(cfg.Analysis.GroundTruth)
	switch {
	case gt == nil:
		return result, fmt.Errorf("%w: source %q is not configured or not enabled", ErrGroundTruthUnavailable, cfg.Analysis.GroundTruth)
	case gt.Err != nil:
		return result, fmt.Errorf("%w: %w", ErrGroundTruthUnavailable, gt.Err)
	case len(gt.Trajectory) == 0:
		return result, fmt.Errorf("%w: source %q has no samples: %w", ErrGroundTruthUnavailable, gt.Name, trajectory.ErrEmptyInput)
	}

	var preds []*LoadedSource
	for _, s := range result.Sources {
		if s != gt && s.Usable() {
			preds = append(preds, s)
		}
	}
	result.Comparisons = make([]*Comparison, len(preds))

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, pred := range preds {
		i, pred := i, pred
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result.Comparisons[i] = compare(gt.Trajectory, pred, metric, cfg.Analysis.Strict, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, c := range result.Comparisons {
		switch {
		case c.Err != nil:
			opts.logf("⚠ %s vs %s: %v", c.Source, gt.Name, c.Err)
		case c.Skipped > 0:
			opts.logf("⚠ %s vs %s: %d ground-truth samples outside the prediction were skipped", c.Source, gt.Name, c.Skipped)
		}
	}

	result.Duration = time.Since(started)
	return result, nil
}

func loadSource(sc config.SourceConfig, opts Options) *LoadedSource {
	ls := &LoadedSource{
		Name:  sc.Name,
		Label: sc.DisplayName(),
		Path:  sc.Path,
	}

	format, err := sources.ParseFormat(sc.Format)
	if err != nil {
		ls.Err = err
		return ls
	}
	ls.Format = format

	traj, report, err := opts.Loader(sc.Path, format)
	ls.Report = report
	if ls.Report == nil {
		ls.Report = &sources.ParseReport{Path: sc.Path, Format: format}
	}
	if err != nil {
		ls.Err = err
		return ls
	}

	if err := traj.Validate(); err != nil {
		ls.Err = fmt.Errorf("%s: %w", sc.Path, err)
		return ls
	}

	ls.Offset = traj[0].Time
	if err := trajectory.Normalize(traj); err != nil {
		ls.Err = err
		return ls
	}
	ls.Trajectory = traj
	return ls
}

// compare measures the ground truth against one prediction. The ground
// truth is the probe and the prediction is interpolated at each of its
// timestamps.
func compare(groundTruth trajectory.Trajectory, pred *LoadedSource, metric trajectory.Metric, strict bool, opts Options) *Comparison {
	c := &Comparison{Source: pred.Name, Label: pred.Label}

	tOpts := []trajectory.Option{trajectory.WithMetric(metric)}
	if !strict {
		tOpts = append(tOpts, trajectory.SkipOutOfRange())
	}
	if opts.Observer != nil {
		name := pred.Name
		tOpts = append(tOpts, trajectory.WithObserver(func(a trajectory.Alignment) {
			opts.Observer(name, a)
		}))
	}

	aligned, err := trajectory.ComputeAligned(groundTruth, pred.Trajectory, tOpts...)
	if err != nil {
		c.Err = err
		return c
	}
	c.Alignments = aligned
	c.Deviations = trajectory.Deviations(aligned)
	c.Skipped = len(groundTruth) - len(aligned)

	summary, err := trajectory.Summarize(c.Deviations)
	if err != nil {
		c.Err = err
		return c
	}
	c.Summary = summary
	return c
}
