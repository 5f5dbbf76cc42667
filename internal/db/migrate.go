package db

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	// Registers the pgx stdlib driver goose migrates through.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// RunMigrations executes all pending goose migrations against the gateway
// control schema. Tenant schemas are owned by the provisioning service and
// are never migrated here.
func RunMigrations(dsn string) error {
	goose.SetBaseFS(EmbedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer sqlDB.Close() //nolint:errcheck

	if err := goose.Up(sqlDB, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
