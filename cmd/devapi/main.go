package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/auth"
	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/httpserver"
	"github.com/fdg312/calorie-hub/internal/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	// devapi sign <telegram_id> prints init-data the client can send.
	if len(os.Args) > 1 && os.Args[1] == "sign" {
		if err := printSigned(cfg, os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		return
	}

	logStartupBanner(cfg, log)
	validateProductionConfig(cfg, log)

	server, err := httpserver.New(cfg, log)
	if err != nil {
		log.Fatal("server init failed", zap.Error(err))
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func printSigned(cfg *config.Config, args []string) error {
	if cfg.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required to sign init data")
	}
	if len(args) != 1 {
		return fmt.Errorf("usage: devapi sign <telegram_id>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid telegram id %q", args[0])
	}

	fmt.Println(auth.Sign(url.Values{
		"user":      {fmt.Sprintf(`{"id":%d,"first_name":"Dev"}`, id)},
		"auth_date": {strconv.FormatInt(time.Now().Unix(), 10)},
	}, cfg.BotToken))
	return nil
}

// logStartupBanner logs the resolved configuration once. Secrets only show
// as "set" or "not set".
func logStartupBanner(cfg *config.Config, log *zap.Logger) {
	log.Info("calorie devapi",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.Strings("cors_origins", cfg.CORSAllowedOrigins),
		zap.Int("rate_limit_rps", cfg.RateLimitRPS),
	)
	log.Info("database",
		zap.String("runtime_url", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled)),
		zap.String("direct", setOrNot(cfg.DatabaseURLDirect)),
		zap.Bool("migrations_on_startup", cfg.RunMigrationsOnStartup),
	)
	log.Info("auth",
		zap.String("bot_token", setOrNot(cfg.BotToken)),
		zap.Bool("require_auth", cfg.RequireAuth),
		zap.Int("trial_days", cfg.TrialDays),
		zap.Int("tz_offset_hours", cfg.UserTZOffsetHours),
	)
	log.Info("blob", zap.String("mode", cfg.Blob.Mode), zap.String("local_dir", cfg.Blob.LocalDir))
	if cfg.Blob.Mode != config.BlobModeLocal {
		log.Info("s3", zap.String("summary", cfg.Blob.S3.DiagnosticsSummary()))
	}

	fields := []zap.Field{zap.String("mode", cfg.AIMode)}
	if cfg.AIMode == config.AIModeOpenAI {
		fields = append(fields,
			zap.String("model", cfg.OpenAIModel),
			zap.String("vision_model", cfg.OpenAIVisionModel),
			zap.String("api_key", setOrNot(cfg.OpenAIAPIKey)),
		)
	}
	log.Info("ai", fields...)
}

// validateProductionConfig performs fatal checks that only matter in non-local envs.
func validateProductionConfig(cfg *config.Config, log *zap.Logger) {
	isProd := cfg.Env == "production" || cfg.Env == "staging"

	if cfg.Blob.Mode == config.BlobModeS3 {
		if missing := cfg.Blob.S3.MissingRequired(); len(missing) > 0 {
			log.Fatal("BLOB_MODE is 's3' but S3 config is incomplete", zap.Strings("missing", missing))
		}
	}

	if isProd && cfg.BotToken == "" {
		log.Fatal("BOT_TOKEN must be set", zap.String("env", cfg.Env))
	}

	if isProd && cfg.DatabaseURL == "" {
		log.Fatal("no DATABASE_URL configured", zap.String("env", cfg.Env))
	}
}

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set (will use in-memory storage)"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}
