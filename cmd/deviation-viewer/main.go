// Deviation viewer
// Interactive terminal browser for the deviations of every prediction
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/flightpath/internal/pipeline"
	"github.com/unklstewy/flightpath/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	groundTruth := flag.String("ground-truth", "", "Source used as ground truth (overrides config)")
	metric := flag.String("metric", "", "Distance metric: planar, haversine or slant (overrides config)")
	logFile := flag.String("log", "", "Write log output to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *groundTruth != "" {
		cfg.Analysis.GroundTruth = *groundTruth
	}
	if *metric != "" {
		cfg.Analysis.Metric = *metric
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if *logFile != "" {
		f, err := tea.LogToFile(*logFile, "viewer")
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
	}

	p := tea.NewProgram(newModel(cfg, pipeline.Run), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
