package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
)

const (
	BlobModeLocal = "local"
	BlobModeS3    = "s3"
	BlobModeAuto  = "auto"
)

const (
	AIModeMock   = "mock"
	AIModeOpenAI = "openai"
)

const (
	ReportFormatPDF = "pdf"
	ReportFormatCSV = "csv"
)

const (
	HostModeAuto     = "auto"
	HostModeTelegram = "telegram"
	HostModeNone     = "none"
)

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
}

func (c S3Config) MissingRequired() []string {
	missing := make([]string, 0, 5)
	if strings.TrimSpace(c.Endpoint) == "" {
		missing = append(missing, "S3_ENDPOINT")
	}
	if strings.TrimSpace(c.Region) == "" {
		missing = append(missing, "S3_REGION")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		missing = append(missing, "S3_BUCKET")
	}
	if strings.TrimSpace(c.AccessKeyID) == "" {
		missing = append(missing, "S3_ACCESS_KEY_ID")
	}
	if strings.TrimSpace(c.SecretAccessKey) == "" {
		missing = append(missing, "S3_SECRET_ACCESS_KEY")
	}
	return missing
}

func (c S3Config) IsConfigured() bool {
	return len(c.MissingRequired()) == 0
}

func (c S3Config) Diagnostics() (level string, code string, msg string) {
	allEmpty := strings.TrimSpace(c.Endpoint) == "" &&
		strings.TrimSpace(c.Region) == "" &&
		strings.TrimSpace(c.Bucket) == "" &&
		strings.TrimSpace(c.AccessKeyID) == "" &&
		strings.TrimSpace(c.SecretAccessKey) == ""

	if allEmpty {
		return "INFO", "s3_not_configured", "not configured (all empty)"
	}

	missing := c.MissingRequired()
	if len(missing) > 0 {
		return "WARN", "s3_partial_config", fmt.Sprintf("partial config, missing=%v", missing)
	}

	return "INFO", "s3_ready", "ready"
}

// DiagnosticsSummary returns a summary for logging (no secrets)
func (c S3Config) DiagnosticsSummary() string {
	return fmt.Sprintf("endpoint=%s region=%s bucket=%s key_prefix=%s access_key_id=%s secret_access_key=%s",
		nonEmptyOrDash(c.Endpoint),
		nonEmptyOrDash(c.Region),
		nonEmptyOrDash(c.Bucket),
		nonEmptyOrDash(c.KeyPrefix),
		SetOrNot(c.AccessKeyID),
		SetOrNot(c.SecretAccessKey),
	)
}

type BlobConfig struct {
	Mode     string // local|s3|auto
	LocalDir string
	S3       S3Config
}

// Config holds both the terminal client and the devapi settings.
// Each binary reads only the part it needs.
type Config struct {
	Env      string // local | staging | production
	LogLevel string
	LogFile  string

	// Client
	APIBase             string
	HostMode            string // auto | telegram | none
	TelegramInitData    string
	TelegramThemeParams string // JSON object, as the host sends it
	InvoiceOpener       string // command used to present invoice links, empty = show in view
	ReportsDir          string
	ReportFormat        string // pdf | csv

	// devapi
	Port                 int
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	RateLimitRPS         int
	RateLimitBurst       int
	BotToken             string
	RequireAuth          bool
	DefaultGoalKcal      int
	TrialDays            int
	UserTZOffsetHours    int
	UploadMaxMB          int
	Blob                 BlobConfig

	// Database
	DatabaseURL            string // runtime connection (resolved: pooled > url > direct), empty = in-memory
	DatabaseURLRaw         string // DATABASE_URL as provided
	DatabaseURLPooled      string // DATABASE_URL_POOLED as provided
	DatabaseURLDirect      string // for migrations / DDL (may be empty)
	RunMigrationsOnStartup bool

	// Invoices
	TelegramAPIBase       string
	TelegramWebhookSecret string
	InvoicePriceStars     int
	SubscriptionDays      int
	WebAppURL             string // mini app opened from the bot's /start button

	// AI
	AIMode            string // mock | openai
	AIMaxOutputTokens int
	AITemperature     float64
	AITimeoutSeconds  int
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIVisionModel string
}

// Load reads configuration from environment variables.
func Load() *Config {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = os.Getenv("ENV")
	}
	if env == "" {
		env = "local"
	}

	logLevel := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if logLevel == "" {
		logLevel = "debug"
	}

	// ---------- Client ----------
	apiBase := strings.TrimRight(strings.TrimSpace(os.Getenv("API_BASE")), "/")
	if apiBase == "" && env == "local" {
		apiBase = "http://localhost:8080"
	}

	initData := os.Getenv("TELEGRAM_INIT_DATA")
	hostMode := strings.ToLower(strings.TrimSpace(os.Getenv("HOST_MODE")))
	if hostMode == "" {
		hostMode = HostModeAuto
	}
	if hostMode != HostModeAuto && hostMode != HostModeTelegram && hostMode != HostModeNone {
		log.Printf("WARNING: unknown HOST_MODE=%q, fallback to %s", hostMode, HostModeAuto)
		hostMode = HostModeAuto
	}

	reportsDir := strings.TrimSpace(os.Getenv("REPORTS_DIR"))
	if reportsDir == "" {
		reportsDir = "."
	}

	reportFormat := strings.ToLower(strings.TrimSpace(os.Getenv("REPORT_FORMAT")))
	if reportFormat == "" {
		reportFormat = ReportFormatPDF
	}
	if reportFormat != ReportFormatPDF && reportFormat != ReportFormatCSV {
		log.Printf("WARNING: unknown REPORT_FORMAT=%q, fallback to %s", reportFormat, ReportFormatPDF)
		reportFormat = ReportFormatPDF
	}

	// ---------- devapi ----------
	port := envInt("PORT", 8080)

	corsOrigins := parseCORSOrigins(os.Getenv("CORS_ALLOWED_ORIGINS"), env)
	corsAllowCreds := os.Getenv("CORS_ALLOW_CREDENTIALS") == "1"

	rateLimitRPS := envInt("RATE_LIMIT_RPS", 0)
	rateLimitBurst := envInt("RATE_LIMIT_BURST", 0)

	botToken := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	requireAuth := parseBoolEnv("REQUIRE_AUTH")
	if requireAuth && botToken == "" {
		log.Fatal("BOT_TOKEN is required when REQUIRE_AUTH=true")
	}

	// DEFAULT_GOAL_KCAL (default: 2000, the server-side default for new users)
	defaultGoal := envInt("DEFAULT_GOAL_KCAL", 2000)
	if defaultGoal <= 0 {
		defaultGoal = 2000
	}

	trialDays := envInt("TRIAL_DAYS", 7)
	if trialDays < 0 {
		trialDays = 7
	}

	tzOffset := envInt("USER_TZ_OFFSET_HOURS", 5)

	// UPLOAD_MAX_MB (default: 7)
	uploadMaxMB := envInt("UPLOAD_MAX_MB", 7)
	if uploadMaxMB <= 0 {
		uploadMaxMB = 7
	}

	localDir := strings.TrimSpace(os.Getenv("UPLOAD_DIR"))
	if localDir == "" {
		localDir = "uploads"
	}

	blobCfg := BlobConfig{
		Mode:     parseBlobMode("BLOB_MODE", BlobModeLocal),
		LocalDir: localDir,
		S3: S3Config{
			Endpoint:        strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			Region:          strings.TrimSpace(os.Getenv("S3_REGION")),
			Bucket:          strings.TrimSpace(os.Getenv("S3_BUCKET")),
			AccessKeyID:     strings.TrimSpace(os.Getenv("S3_ACCESS_KEY_ID")),
			SecretAccessKey: strings.TrimSpace(os.Getenv("S3_SECRET_ACCESS_KEY")),
			KeyPrefix:       strings.Trim(strings.TrimSpace(os.Getenv("S3_KEY_PREFIX")), "/"),
		},
	}

	// ---------- Database ----------
	// Priority: DATABASE_URL_POOLED > DATABASE_URL > DATABASE_URL_DIRECT
	dbPooled := strings.TrimSpace(os.Getenv("DATABASE_URL_POOLED"))
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	dbDirect := strings.TrimSpace(os.Getenv("DATABASE_URL_DIRECT"))

	runtimeDB := dbPooled
	if runtimeDB == "" {
		runtimeDB = dbURL
	}
	if runtimeDB == "" {
		runtimeDB = dbDirect
	}

	// ---------- Invoices ----------
	telegramAPIBase := strings.TrimRight(strings.TrimSpace(os.Getenv("TELEGRAM_API_BASE")), "/")
	if telegramAPIBase == "" {
		telegramAPIBase = "https://api.telegram.org"
	}
	webhookSecret := strings.TrimSpace(os.Getenv("TELEGRAM_WEBHOOK_SECRET"))
	webAppURL := strings.TrimSpace(os.Getenv("WEBAPP_URL"))
	subscriptionDays := envInt("SUBSCRIPTION_DAYS", 30)
	if subscriptionDays <= 0 {
		subscriptionDays = 30
	}
	priceStars := envInt("INVOICE_PRICE_STARS", 599)
	if priceStars <= 0 {
		priceStars = 599
	}

	// ---------- AI ----------
	openAIAPIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	aiMode := strings.ToLower(strings.TrimSpace(os.Getenv("AI_MODE")))
	if aiMode == "" {
		aiMode = AIModeMock
		if openAIAPIKey != "" {
			aiMode = AIModeOpenAI
		}
	}
	if aiMode != AIModeMock && aiMode != AIModeOpenAI {
		log.Printf("WARNING: unknown AI_MODE=%q, fallback to mock", aiMode)
		aiMode = AIModeMock
	}
	if aiMode == AIModeOpenAI && openAIAPIKey == "" {
		log.Fatal("OPENAI_API_KEY is required when AI_MODE=openai")
	}

	aiMaxOutputTokens := envInt("AI_MAX_OUTPUT_TOKENS", 600)
	if aiMaxOutputTokens <= 0 {
		aiMaxOutputTokens = 600
	}

	aiTemperature := envFloat("AI_TEMPERATURE", 0.1)
	if aiTemperature < 0 {
		aiTemperature = 0
	}
	if aiTemperature > 2 {
		aiTemperature = 2
	}

	aiTimeoutSeconds := envInt("AI_TIMEOUT_SECONDS", 20)
	if aiTimeoutSeconds <= 0 {
		aiTimeoutSeconds = 20
	}

	openAIModel := strings.TrimSpace(os.Getenv("OPENAI_MODEL_ESTIMATE"))
	if openAIModel == "" {
		openAIModel = "gpt-4.1-mini"
	}
	openAIVisionModel := strings.TrimSpace(os.Getenv("OPENAI_MODEL_VISION"))
	if openAIVisionModel == "" {
		openAIVisionModel = openAIModel
	}

	return &Config{
		Env:      env,
		LogLevel: logLevel,
		LogFile:  strings.TrimSpace(os.Getenv("LOG_FILE")),

		APIBase:             apiBase,
		HostMode:            hostMode,
		TelegramInitData:    initData,
		TelegramThemeParams: strings.TrimSpace(os.Getenv("TELEGRAM_THEME_PARAMS")),
		InvoiceOpener:       strings.TrimSpace(os.Getenv("INVOICE_OPENER")),
		ReportsDir:          reportsDir,
		ReportFormat:        reportFormat,

		Port:                 port,
		CORSAllowedOrigins:   corsOrigins,
		CORSAllowCredentials: corsAllowCreds,
		RateLimitRPS:         rateLimitRPS,
		RateLimitBurst:       rateLimitBurst,
		BotToken:             botToken,
		RequireAuth:          requireAuth,
		DefaultGoalKcal:      defaultGoal,
		TrialDays:            trialDays,
		UserTZOffsetHours:    tzOffset,
		UploadMaxMB:          uploadMaxMB,
		Blob:                 blobCfg,

		DatabaseURL:            runtimeDB,
		DatabaseURLRaw:         dbURL,
		DatabaseURLPooled:      dbPooled,
		DatabaseURLDirect:      dbDirect,
		RunMigrationsOnStartup: parseBoolEnv("RUN_MIGRATIONS_ON_STARTUP"),

		TelegramAPIBase:       telegramAPIBase,
		TelegramWebhookSecret: webhookSecret,
		SubscriptionDays:      subscriptionDays,
		InvoicePriceStars:     priceStars,
		WebAppURL:             webAppURL,

		AIMode:            aiMode,
		AIMaxOutputTokens: aiMaxOutputTokens,
		AITemperature:     aiTemperature,
		AITimeoutSeconds:  aiTimeoutSeconds,
		OpenAIAPIKey:      openAIAPIKey,
		OpenAIModel:       openAIModel,
		OpenAIVisionModel: openAIVisionModel,
	}
}

// parseCORSOrigins parses CORS_ALLOWED_ORIGINS.
// In local mode, defaults to localhost origins if empty.
func parseCORSOrigins(raw, env string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if env == "local" {
			return []string{"http://localhost:5173", "http://localhost:3000"}
		}
		return nil
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

func parseBlobMode(key string, defaultVal string) string {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if mode == "" {
		return defaultVal
	}
	switch mode {
	case BlobModeLocal, BlobModeS3, BlobModeAuto:
		return mode
	default:
		log.Printf("WARNING: unknown %s=%q, fallback to %s", key, mode, defaultVal)
		return defaultVal
	}
}

// SetOrNot masks a secret for logs.
func SetOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func nonEmptyOrDash(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "-"
	}
	return v
}

// envInt reads an int env var with a default value.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return defaultVal
	}
	return v
}

func parseBoolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}
