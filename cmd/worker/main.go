// cmd/worker/main.go runs the background job poller (spec §5): it claims
// pipeline_run jobs and drives each invoice through
// internal/pipeline.Orchestrator until the job queue is empty or the
// process is signalled to stop.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dukerupert/apcore/internal/approval"
	"github.com/dukerupert/apcore/internal/broker"
	"github.com/dukerupert/apcore/internal/config"
	"github.com/dukerupert/apcore/internal/crypto"
	"github.com/dukerupert/apcore/internal/database"
	"github.com/dukerupert/apcore/internal/duplicate"
	"github.com/dukerupert/apcore/internal/email"
	"github.com/dukerupert/apcore/internal/exception"
	"github.com/dukerupert/apcore/internal/extraction"
	"github.com/dukerupert/apcore/internal/fraud"
	"github.com/dukerupert/apcore/internal/fx"
	"github.com/dukerupert/apcore/internal/llm"
	"github.com/dukerupert/apcore/internal/matching"
	"github.com/dukerupert/apcore/internal/metrics"
	"github.com/dukerupert/apcore/internal/ocr"
	"github.com/dukerupert/apcore/internal/pipeline"
	"github.com/dukerupert/apcore/internal/rules"
	"github.com/dukerupert/apcore/internal/storage"
	"github.com/dukerupert/apcore/internal/vendor"
	"github.com/dukerupert/apcore/internal/worker"
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

	if err := db.RunMigrations(true); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}
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
	if err := blob.EnsureBucket(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure storage bucket")
	}

	var llmPort llm.Port
	if cfg.LLMProvider == "stub" || cfg.LLMAPIKey == "" {
		llmPort = llm.NewStubClient()
		logger.Warn().Msg("LLM provider not configured, using stub client")
	} else {
		llmPort = llm.NewClient(cfg.LLMAPIKey, "", cfg.LLMModel)
	}

	var sender email.Sender
	switch cfg.EmailProvider {
	case "smtp":
		sender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.EmailFromAddress)
	case "postmark":
		sender = email.NewPostmarkSender(cfg.PostmarkAPIToken)
	default:
		sender = email.NewStubSender()
		logger.Warn().Msg("email provider not configured, using stub sender")
	}
	mailer, err := email.NewService(sender, cfg.EmailFromAddress, cfg.EmailFromName, cfg.EmailTemplateDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load email templates")
	}

	q := db.Queries

	ocrSvc := ocr.NewService(llmPort, cfg.LLMExtractionMaxTokens)
	extractSvc := extraction.NewService(q, llmPort, extraction.Config{MaxTokens: cfg.LLMExtractionMaxTokens})
	fxTable := fx.NewStaticTable(cfg.ReferenceCurrency, cfg.FXRates)
	dup := duplicate.NewDetector(q, duplicate.Config{
		AmountTolerancePct: cfg.DuplicateAmountTolerancePct,
		DateWindowDays:     cfg.DuplicateDateWindowDays,
	})
	fraudScorer := fraud.NewScorer(q, fraud.Config{
		Thresholds: fraud.Thresholds{
			Medium:   cfg.FraudThresholdMedium,
			High:     cfg.FraudThresholdHigh,
			Critical: cfg.FraudThresholdCritical,
		},
		DuplicateWindowDays: cfg.DuplicateWindowDays,
	})
	matchEngine := matching.NewEngine(q)
	rulesSvc := rules.NewService(q)

	bankKey, err := base64.StdEncoding.DecodeString(cfg.VendorBankEncryptionKeyBase64)
	if err != nil {
		logger.Fatal().Err(err).Msg("VENDOR_BANK_ENCRYPTION_KEY is not valid base64")
	}
	bankEncryptor, err := crypto.NewAESEncryptor(bankKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vendor bank-history encryptor")
	}
	vendorSvc := vendor.NewService(q, bankEncryptor, vendor.Config{DuplicateWindowDays: cfg.DuplicateWindowDays})
	narrator := llm.NewNarrator(llmPort, cfg.LLMNarrativeMaxTokens)
	exceptionSvc := exception.NewService(q, narrator)
	approvals := approval.NewService(q, mailer, approval.Config{
		TokenSecret:        cfg.ApprovalTokenSecret,
		TokenExpireHours:   cfg.ApprovalTokenExpireHours,
		DefaultDueHours:    cfg.DefaultApprovalDueHours,
		FraudCriticalScore: cfg.FraudThresholdCritical,
		AppBaseURL:         cfg.AppBaseURL,
	})

	orch := pipeline.NewOrchestrator(q, blob, ocrSvc, extractSvc, fxTable, dup, fraudScorer, matchEngine, rulesSvc, approvals, exceptionSvc, vendorSvc,
		cfg.FraudThresholdCritical, cfg.OCRMinConfidence, cfg.DualPassMaxMismatches)

	m := metrics.New("apcore")
	go serveMetrics(ctx, cfg.MetricsPort, logger)

	w := worker.NewWorker(q, orch, m, worker.Config{
		PollInterval:   time.Duration(cfg.WorkerPollIntervalSeconds) * time.Second,
		MaxConcurrency: cfg.WorkerMaxConcurrency,
		Queue:          cfg.WorkerQueue,
	}, logger)

	if b, err := broker.Connect(cfg.NATSUrl, logger); err != nil {
		logger.Warn().Err(err).Msg("broker unavailable, worker will rely on ticker-only polling")
	} else {
		defer b.Close()
		w.SetBroker(b)
	}

	if err := w.Start(ctx); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shut down cleanly")
}

func serveMetrics(ctx context.Context, port string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped with error")
	}
}
