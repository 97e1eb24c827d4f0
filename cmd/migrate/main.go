// cmd/migrate/main.go is a standalone migration runner: "up" (the default)
// applies pending migrations, "status" reports them without applying any.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/dukerupert/apcore/internal/config"
	"github.com/dukerupert/apcore/internal/database"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: zerolog.TimeFormatUnix}).With().Timestamp().Logger()

	command := flag.String("command", "up", "migration command: up | status")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()
	db, err := database.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	switch *command {
	case "status":
		if err := db.MigrationStatus(); err != nil {
			logger.Fatal().Err(err).Msg("failed to read migration status")
		}
	case "up":
		if err := db.RunMigrations(true); err != nil {
			logger.Fatal().Err(err).Msg("failed to run migrations")
		}
		logger.Info().Msg("migrations applied")
	default:
		logger.Fatal().Str("command", *command).Msg("unknown migration command")
	}
}
