// cmd/scheduler/main.go runs the five periodic jobs spec §4.11 names: the
// mailbox poll, the SLA sweep, the compliance-expiry sweep, recurring-
// pattern detection, and feedback analysis. It shares a database and blob
// store with cmd/worker but runs no pipeline jobs itself — it only enqueues
// them (mailbox poll) or reads/writes side tables the worker doesn't touch.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/dukerupert/apcore/internal/broker"
	"github.com/dukerupert/apcore/internal/config"
	"github.com/dukerupert/apcore/internal/database"
	"github.com/dukerupert/apcore/internal/feedback"
	"github.com/dukerupert/apcore/internal/scheduler"
	"github.com/dukerupert/apcore/internal/storage"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: zerolog.TimeFormatUnix}).With().Timestamp().Logger()

	debug := flag.Bool("debug", false, "sets log level to debug")
	flag.Parse()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	logger.Info().Msg("database ready")

	blob, err := storage.NewStorage(storage.Config{
		Provider:     cfg.BlobProvider,
		Bucket:       cfg.BlobBucket,
		Endpoint:     cfg.BlobEndpoint,
		Region:       cfg.BlobRegion,
		AccessKey:    cfg.BlobAccessKey,
		SecretKey:    cfg.BlobSecretKey,
		UsePathStyle: cfg.BlobUsePathStyle,
		LocalDir:     cfg.BlobLocalDir,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build storage backend")
	}

	feedbackSvc := feedback.NewService(db.Queries)

	b, err := broker.Connect(cfg.NATSUrl, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("broker unavailable, mailbox poll will not wake the worker immediately")
		b = nil
	} else {
		defer b.Close()
	}

	sched := scheduler.New(db.Queries, blob, feedbackSvc, b, scheduler.Config{
		MailboxInboxDir:      cfg.MailboxInboxDir,
		SLAWarningDaysBefore: cfg.SLAWarningDaysBefore,
	}, logger)

	if err := sched.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	logger.Info().Msg("scheduler running")

	<-ctx.Done()
	logger.Info().Msg("scheduler shutting down")
	sched.Stop()
	logger.Info().Msg("scheduler shut down cleanly")
}
