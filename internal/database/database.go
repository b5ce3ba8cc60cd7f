package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"onfa-ticketing/internal/config"
	"onfa-ticketing/internal/logger"
	"onfa-ticketing/internal/models"
)

const retryDelay = 2 * time.Second

// Open connects with bounded retries and returns the process wide *bun.DB.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	driverName := "postgres"
	if cfg.Driver == "sqlite" {
		driverName = sqliteshim.ShimName
	}

	tries := cfg.ConnectTries
	if tries < 1 {
		tries = 1
	}

	var (
		sqldb *sql.DB
		err   error
	)
	for i := 0; i < tries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, tries))
		sqldb, err = sql.Open(driverName, cfg.DSN)
		if err == nil {
			err = sqldb.PingContext(ctx)
			if err == nil {
				break
			}
			sqldb.Close()
		}
		log.Error("DATABASE", fmt.Sprintf("Connection failed: %v", err))
		if i < tries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s after %d attempts: %w", cfg.Driver, tries, err)
	}

	var bunDB *bun.DB
	if cfg.Driver == "sqlite" {
		// One writer keeps sqlite from returning SQLITE_BUSY under concurrent requests.
		sqldb.SetMaxOpenConns(1)
		bunDB = bun.NewDB(sqldb, sqlitedialect.New())
	} else {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
		sqldb.SetConnMaxLifetime(cfg.MaxLifetime)
		bunDB = bun.NewDB(sqldb, pgdialect.New())
	}

	log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", cfg.Driver))
	return bunDB, nil
}

// EnsureSchema creates the tickets table and its indexes when missing.
// Postgres deployments normally use the migration files instead.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if _, err := db.NewCreateTable().
		Model((*models.Ticket)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create tickets table: %w", err)
	}

	indexes := []struct {
		name   string
		column string
	}{
		{"idx_tickets_tier", "tier"},
		{"idx_tickets_status", "status"},
		{"idx_tickets_registered_at", "registered_at"},
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().
			Model((*models.Ticket)(nil)).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
