package blob

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	appcfg "github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/logger"
)

// NewBlobStore builds a blob store using mode local|s3|auto and reports the
// mode it settled on.
func NewBlobStore(cfg appcfg.BlobConfig, log *zap.Logger) (Store, string, error) {
	log = logger.OrNop(log).Named("blob")
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = appcfg.BlobModeLocal
	}

	switch mode {
	case appcfg.BlobModeLocal:
		log.Info("mode=local (forced)", zap.String("dir", cfg.LocalDir))
		return newLocal(cfg)

	case appcfg.BlobModeAuto:
		if !cfg.S3.IsConfigured() {
			level, code, msg := cfg.S3.Diagnostics()
			log.Info("s3 diagnostics", zap.String("level", level), zap.String("code", code), zap.String("msg", msg))
			log.Info("mode=local (auto, S3 not configured)", zap.String("s3", cfg.S3.DiagnosticsSummary()))
			return newLocal(cfg)
		}

		log.Info("s3 ready", zap.String("s3", cfg.S3.DiagnosticsSummary()))
		store, err := newS3(cfg.S3)
		if err != nil {
			log.Warn("s3 init failed, fallback=local", zap.Error(err))
			return newLocal(cfg)
		}

		log.Info("mode=s3 (auto, configured)")
		return store, appcfg.BlobModeS3, nil

	case appcfg.BlobModeS3:
		if !cfg.S3.IsConfigured() {
			missing := cfg.S3.MissingRequired()
			log.Error("s3 config incomplete", zap.Strings("missing", missing), zap.String("s3", cfg.S3.DiagnosticsSummary()))
			err := fmt.Errorf("BLOB_MODE=s3 requested but missing required config: %s", strings.Join(missing, ", "))
			return nil, "", err
		}

		log.Info("s3 ready", zap.String("s3", cfg.S3.DiagnosticsSummary()))
		store, err := newS3(cfg.S3)
		if err != nil {
			log.Error("s3 init failed", zap.Error(err))
			return nil, "", fmt.Errorf("BLOB_MODE=s3 init failed: %w", err)
		}

		log.Info("mode=s3 (forced)")
		return store, appcfg.BlobModeS3, nil

	default:
		return nil, "", fmt.Errorf("unsupported blob mode: %s", mode)
	}
}

func newLocal(cfg appcfg.BlobConfig) (Store, string, error) {
	store, err := NewLocalStore(cfg.LocalDir)
	if err != nil {
		return nil, "", err
	}
	return store, appcfg.BlobModeLocal, nil
}

func newS3(c appcfg.S3Config) (*S3Store, error) {
	return NewS3Store(c.Endpoint, c.Region, c.Bucket, c.AccessKeyID, c.SecretAccessKey, c.KeyPrefix)
}
