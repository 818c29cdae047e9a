package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/apiclient"
	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/host"
	"github.com/fdg312/calorie-hub/internal/logger"
	"github.com/fdg312/calorie-hub/internal/reports"
	"github.com/fdg312/calorie-hub/internal/syncstate"
	"github.com/fdg312/calorie-hub/internal/tui"
)

const defaultLogFile = "calories.log"

func main() {
	cfg := config.Load()

	// The view owns the terminal, so logs always go to a file.
	if cfg.LogFile == "" {
		cfg.LogFile = defaultLogFile
	}
	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scope := host.NewScope()
	h := host.FromEnv(cfg, scope, log)
	api := apiclient.New(cfg.APIBase, h, apiclient.WithLogger(log))
	store := syncstate.New(api, h, log)
	gen := reports.NewGenerator(cfg.ReportsDir, cfg.ReportFormat)

	log.Info("client starting",
		zap.String("api_base", cfg.APIBase),
		zap.Bool("embedded", h.Embedded()),
		zap.String("report_format", cfg.ReportFormat),
	)

	if err := tui.Run(ctx, tui.Options{
		Store:  store,
		Host:   h,
		Scope:  scope,
		Report: gen.WriteDay,
		Log:    log,
	}); err != nil {
		log.Error("client stopped", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
