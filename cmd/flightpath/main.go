// flightpath compares balloon trajectory predictions against the recorded
// flight and reports how far each prediction deviated.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/unklstewy/flightpath/internal/db"
	"github.com/unklstewy/flightpath/internal/metrics"
	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/internal/report"
	"github.com/unklstewy/flightpath/pkg/config"
	"github.com/unklstewy/flightpath/pkg/trajectory"
)

var (
	configPath  = flag.String("config", "configs/config.json", "Path to configuration file")
	groundTruth = flag.String("ground-truth", "", "Source to compare predictions against (overrides config)")
	metric      = flag.String("metric", "", "Distance metric: planar_degrees, haversine_nm, slant_range_m (overrides config)")
	persist     = flag.Bool("db", false, "Save the run to the configured database")
	outDir      = flag.String("out", "", "Report output directory (overrides config)")
	quiet       = flag.Bool("quiet", false, "Only print summary lines")
	printList   = flag.String("print", "", "Comma-separated sources whose trajectories are printed ('all' for every source)")
	strict      = flag.Bool("strict", false, "Fail a comparison when ground-truth samples fall outside the prediction")
	verbose     = flag.Bool("verbose", false, "Print every aligned sample pair")
	retain      = flag.Duration("retain", 0, "Delete stored runs older than this (0 keeps everything)")
)

// overrides collects command-line settings that replace config values.
type overrides struct {
	groundTruth string
	metric      string
	outDir      string
	print       string
	strict      bool
	persist     bool
}

func (o overrides) apply(cfg *config.Config) {
	if o.groundTruth != "" {
		cfg.Analysis.GroundTruth = o.groundTruth
	}
	if o.metric != "" {
		cfg.Analysis.Metric = o.metric
	}
	if o.outDir != "" {
		cfg.Report.OutputDir = o.outDir
	}
	if o.strict {
		cfg.Analysis.Strict = true
	}
	if o.persist {
		cfg.Database.Enabled = true
	}
	switch o.print {
	case "":
	case "all":
		cfg.Analysis.PrintTrajectories = true
		cfg.Analysis.TrajectoriesToPrint = nil
	default:
		cfg.Analysis.PrintTrajectories = true
		cfg.Analysis.TrajectoriesToPrint = nil
		for _, name := range strings.Split(o.print, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Analysis.TrajectoriesToPrint = append(cfg.Analysis.TrajectoriesToPrint, name)
			}
		}
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	overrides{
		groundTruth: *groundTruth,
		metric:      *metric,
		outDir:      *outDir,
		print:       *printList,
		strict:      *strict,
		persist:     *persist,
	}.apply(cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration:\n%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{}
	if *quiet {
		opts.Logf = func(string, ...any) {}
	}

	result, err := pipeline.Run(ctx, cfg, opts)
	if err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	console := report.NewConsole(os.Stdout, isTerminal(os.Stdout))
	if *quiet {
		for _, c := range result.Comparisons {
			console.PrintSummary(c)
		}
	} else {
		console.PrintResult(result, cfg.Analysis.PrintTrajectories, cfg.Analysis.TrajectoriesToPrint)
		if *verbose {
			for _, c := range result.Comparisons {
				var ref trajectory.Trajectory
				if src := result.Source(c.Source); src != nil {
					ref = src.Trajectory
				}
				fmt.Printf("\n%s alignments (probe time,lat,lon,alt, reference time,lat,lon,alt, deviation, nearest prediction time):\n", c.Label)
				console.PrintAlignments(c, ref)
			}
		}
	}

	written, err := report.WriteAll(cfg.Report.OutputDir, cfg.Report, result)
	if err != nil {
		log.Printf("⚠ Failed to write reports: %v", err)
	}
	for _, path := range written {
		log.Printf("✓ Wrote %s", path)
	}

	if cfg.Metrics.TextfilePath != "" {
		writeMetrics(cfg.Metrics.TextfilePath, result)
	}

	if cfg.Database.Enabled {
		saveRun(ctx, cfg.Database, result)
	}
}

func writeMetrics(path string, result *pipeline.Result) {
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		log.Printf("⚠ Failed to create metrics collector: %v", err)
		return
	}
	collector.Observe(result)
	if err := collector.WriteTextfile(path); err != nil {
		log.Printf("⚠ %v", err)
		return
	}
	log.Printf("✓ Wrote metrics to %s", path)
}

func saveRun(ctx context.Context, dbCfg config.DatabaseConfig, result *pipeline.Result) {
	database, err := db.Connect(dbCfg)
	if err != nil {
		log.Printf("⚠ Run not saved: %v", err)
		return
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Printf("⚠ Run not saved: %v", err)
		return
	}

	repo := db.NewRunRepository(database)
	var runID string
	err = db.WithRetry(func() error {
		var err error
		runID, err = repo.SaveRun(ctx, result)
		return err
	}, 3)
	if err != nil {
		log.Printf("⚠ Run not saved: %v", err)
		return
	}
	log.Printf("✓ Saved run %s", runID)

	if *retain > 0 {
		n, err := repo.DeleteRunsBefore(ctx, time.Now().Add(-*retain))
		if err != nil {
			log.Printf("⚠ Failed to prune old runs: %v", err)
			return
		}
		if n > 0 {
			log.Printf("✓ Pruned %d runs older than %v", n, *retain)
		}
	}
}

// isTerminal reports whether f is a character device, so colors are only
// used when a person is reading the output.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
