package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/joho/godotenv"

	"onfa-ticketing/internal/config"
	"onfa-ticketing/internal/database"
	"onfa-ticketing/internal/database/migrations"
	"onfa-ticketing/internal/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(cfg.Logging.Level, "")
	defer log.Close()

	direction := flag.String("direction", "up", "up, down or to")
	version := flag.Uint("version", 0, "target version when direction=to")
	dir := flag.String("dir", cfg.Database.MigrationsDir, "migrations directory")
	flag.Parse()

	if cfg.Database.Driver != "postgres" {
		log.Fatal("MIGRATE", "migrations only run against postgres; sqlite schema is created at startup")
	}

	db, err := database.Open(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	runner := migrations.NewRunner(db, migrations.Options{Dir: *dir}, log)
	defer runner.Close()

	switch *direction {
	case "up":
		err = runner.Up()
	case "down":
		err = runner.Down()
	case "to":
		err = runner.To(*version)
	default:
		err = fmt.Errorf("unknown direction %q", *direction)
	}
	if err != nil {
		log.Error("MIGRATE", err.Error())
		return
	}
	log.Info("MIGRATE", fmt.Sprintf("✅ Migration %s complete", *direction))
}
