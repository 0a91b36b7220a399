// Run browser
// Terminal browser for analysis runs stored in the database
package main

import (
	"flag"
	"log"

	"github.com/unklstewy/flightpath/internal/db"
	"github.com/unklstewy/flightpath/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	limit := flag.Int("limit", 100, "Maximum number of runs to list")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	app := NewApp(db.NewRunRepository(database), *limit)
	if err := app.Run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
