// Package migrations embeds and runs the goose schema migrations for the
// AP platform, the way the teacher's internal/migrations.go wires
// goose.SetBaseFS against an embedded filesystem.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Config controls a single migrations invocation.
type Config struct {
	AutoMigrate bool
	Direction   string // "up" | "status"
}

// Run executes migrations against db per cfg.Direction.
func Run(db *sql.DB, cfg Config) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	switch cfg.Direction {
	case "status":
		return goose.Status(db, "sql")
	case "up", "":
		if !cfg.AutoMigrate {
			return nil
		}
		return goose.Up(db, "sql")
	default:
		return fmt.Errorf("unsupported migration direction: %s", cfg.Direction)
	}
}
