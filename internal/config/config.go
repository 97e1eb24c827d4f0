// Package config loads the process-wide configuration singleton from
// environment variables (and an optional .env file for local development).
package config

import (
	"encoding/json"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process-wide settings singleton, initialized once at
// startup by Load and torn down only by process exit (spec §9's "Global
// state" design note).
type Config struct {
	DatabaseURL string

	BlobProvider     string // "local" | "s3"
	BlobBucket       string
	BlobEndpoint     string
	BlobRegion       string
	BlobAccessKey    string
	BlobSecretKey    string
	BlobUsePathStyle bool
	BlobLocalDir     string

	NATSUrl string

	ApprovalTokenSecret      []byte
	ApprovalTokenExpireHours int
	AppBaseURL               string

	DefaultApprovalDueHours int

	ReferenceCurrency string
	FXRates           map[string]float64

	DuplicateWindowDays         int
	DuplicateAmountTolerancePct float64
	DuplicateDateWindowDays     int

	FraudThresholdMedium   int
	FraudThresholdHigh     int
	FraudThresholdCritical int

	OCRMinConfidence      float64
	DualPassMaxMismatches int

	SLAWarningDaysBefore int

	LLMProvider            string
	LLMAPIKey              string
	LLMModel               string
	LLMExtractionMaxTokens int
	LLMNarrativeMaxTokens  int

	MailboxInboxDir string

	WorkerPollIntervalSeconds int
	WorkerMaxConcurrency      int
	WorkerQueue               string

	MetricsPort string

	VendorBankEncryptionKeyBase64 string

	EmailProvider     string // "smtp" | "postmark" | "stub"
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	PostmarkAPIToken  string
	EmailFromAddress  string
	EmailFromName     string
	EmailTemplateDir  string
}

// Load reads the environment (after an optional .env file) into a Config,
// applying the defaults named in spec §6 and SPEC_FULL's Configuration
// section, then validates required fields.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using process environment")
	}

	viper.AutomaticEnv()

	viper.SetDefault("BLOB_PROVIDER", "local")
	viper.SetDefault("BLOB_LOCAL_DIR", "./data/blobs")
	viper.SetDefault("BLOB_USE_PATH_STYLE", true)
	viper.SetDefault("NATS_URL", "nats://localhost:4222")

	viper.SetDefault("APPROVAL_TOKEN_EXPIRE_HOURS", 48)
	viper.SetDefault("APP_BASE_URL", "http://localhost:8080")
	viper.SetDefault("DEFAULT_APPROVAL_DUE_HOURS", 72)

	viper.SetDefault("REFERENCE_CURRENCY", "USD")
	viper.SetDefault("FX_RATES", "{}")

	viper.SetDefault("DUPLICATE_WINDOW_DAYS", 7)
	viper.SetDefault("DUPLICATE_AMOUNT_TOLERANCE_PCT", 0.02)
	viper.SetDefault("DUPLICATE_DATE_WINDOW_DAYS", 7)

	viper.SetDefault("FRAUD_THRESHOLD_MEDIUM", 20)
	viper.SetDefault("FRAUD_THRESHOLD_HIGH", 40)
	viper.SetDefault("FRAUD_THRESHOLD_CRITICAL", 60)

	viper.SetDefault("OCR_MIN_CONFIDENCE", 0.75)
	viper.SetDefault("DUAL_PASS_MAX_MISMATCHES", 1)

	viper.SetDefault("SLA_WARNING_DAYS_BEFORE", 3)

	viper.SetDefault("LLM_PROVIDER", "stub")
	viper.SetDefault("LLM_MODEL", "gpt-4o-mini")
	viper.SetDefault("LLM_EXTRACTION_MAX_TOKENS", 2048)
	viper.SetDefault("LLM_NARRATIVE_MAX_TOKENS", 1500)

	viper.SetDefault("MAILBOX_INBOX_DIR", "./data/mailbox")

	viper.SetDefault("WORKER_POLL_INTERVAL", 5)
	viper.SetDefault("WORKER_MAX_CONCURRENCY", 4)
	viper.SetDefault("WORKER_QUEUE", "pipeline")

	viper.SetDefault("METRICS_PORT", "9100")

	viper.SetDefault("EMAIL_PROVIDER", "stub")
	viper.SetDefault("SMTP_HOST", "localhost")
	viper.SetDefault("SMTP_PORT", 1025)
	viper.SetDefault("EMAIL_FROM_ADDRESS", "noreply@apcore.local")
	viper.SetDefault("EMAIL_FROM_NAME", "Accounts Payable")
	viper.SetDefault("EMAIL_TEMPLATE_DIR", "./templates")

	var fxRates map[string]float64
	if err := json.Unmarshal([]byte(viper.GetString("FX_RATES")), &fxRates); err != nil {
		fxRates = map[string]float64{}
	}

	cfg := &Config{
		DatabaseURL: viper.GetString("DATABASE_URL"),

		BlobProvider:     viper.GetString("BLOB_PROVIDER"),
		BlobBucket:       viper.GetString("BLOB_BUCKET"),
		BlobEndpoint:     viper.GetString("BLOB_ENDPOINT"),
		BlobRegion:       viper.GetString("BLOB_REGION"),
		BlobAccessKey:    viper.GetString("BLOB_ACCESS_KEY"),
		BlobSecretKey:    viper.GetString("BLOB_SECRET_KEY"),
		BlobUsePathStyle: viper.GetBool("BLOB_USE_PATH_STYLE"),
		BlobLocalDir:     viper.GetString("BLOB_LOCAL_DIR"),

		NATSUrl: viper.GetString("NATS_URL"),

		ApprovalTokenSecret:      []byte(viper.GetString("APPROVAL_TOKEN_SECRET")),
		ApprovalTokenExpireHours: viper.GetInt("APPROVAL_TOKEN_EXPIRE_HOURS"),
		AppBaseURL:               viper.GetString("APP_BASE_URL"),

		DefaultApprovalDueHours: viper.GetInt("DEFAULT_APPROVAL_DUE_HOURS"),

		ReferenceCurrency: viper.GetString("REFERENCE_CURRENCY"),
		FXRates:           fxRates,

		DuplicateWindowDays:         viper.GetInt("DUPLICATE_WINDOW_DAYS"),
		DuplicateAmountTolerancePct: viper.GetFloat64("DUPLICATE_AMOUNT_TOLERANCE_PCT"),
		DuplicateDateWindowDays:     viper.GetInt("DUPLICATE_DATE_WINDOW_DAYS"),

		FraudThresholdMedium:   viper.GetInt("FRAUD_THRESHOLD_MEDIUM"),
		FraudThresholdHigh:     viper.GetInt("FRAUD_THRESHOLD_HIGH"),
		FraudThresholdCritical: viper.GetInt("FRAUD_THRESHOLD_CRITICAL"),

		OCRMinConfidence:      viper.GetFloat64("OCR_MIN_CONFIDENCE"),
		DualPassMaxMismatches: viper.GetInt("DUAL_PASS_MAX_MISMATCHES"),

		SLAWarningDaysBefore: viper.GetInt("SLA_WARNING_DAYS_BEFORE"),

		LLMProvider:            viper.GetString("LLM_PROVIDER"),
		LLMAPIKey:              viper.GetString("LLM_API_KEY"),
		LLMModel:               viper.GetString("LLM_MODEL"),
		LLMExtractionMaxTokens: viper.GetInt("LLM_EXTRACTION_MAX_TOKENS"),
		LLMNarrativeMaxTokens:  viper.GetInt("LLM_NARRATIVE_MAX_TOKENS"),

		MailboxInboxDir: viper.GetString("MAILBOX_INBOX_DIR"),

		WorkerPollIntervalSeconds: viper.GetInt("WORKER_POLL_INTERVAL"),
		WorkerMaxConcurrency:      viper.GetInt("WORKER_MAX_CONCURRENCY"),
		WorkerQueue:               viper.GetString("WORKER_QUEUE"),

		MetricsPort: viper.GetString("METRICS_PORT"),

		VendorBankEncryptionKeyBase64: viper.GetString("VENDOR_BANK_ENCRYPTION_KEY"),

		EmailProvider:    viper.GetString("EMAIL_PROVIDER"),
		SMTPHost:         viper.GetString("SMTP_HOST"),
		SMTPPort:         viper.GetInt("SMTP_PORT"),
		SMTPUsername:     viper.GetString("SMTP_USERNAME"),
		SMTPPassword:     viper.GetString("SMTP_PASSWORD"),
		PostmarkAPIToken: viper.GetString("POSTMARK_API_TOKEN"),
		EmailFromAddress: viper.GetString("EMAIL_FROM_ADDRESS"),
		EmailFromName:    viper.GetString("EMAIL_FROM_NAME"),
		EmailTemplateDir: viper.GetString("EMAIL_TEMPLATE_DIR"),
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if len(c.ApprovalTokenSecret) == 0 {
		return fmt.Errorf("APPROVAL_TOKEN_SECRET is required")
	}
	if c.BlobProvider == "s3" && c.BlobBucket == "" {
		return fmt.Errorf("BLOB_BUCKET is required when BLOB_PROVIDER=s3")
	}
	if c.VendorBankEncryptionKeyBase64 == "" {
		return fmt.Errorf("VENDOR_BANK_ENCRYPTION_KEY is required")
	}
	return nil
}
