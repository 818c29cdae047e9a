package main

import (
	"fmt"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/dbmigrate"
	"github.com/fdg312/calorie-hub/internal/logger"
)

func main() {
	if len(os.Args) < 2 || !dbmigrate.ValidCommand(os.Args[1]) {
		fmt.Fprintf(os.Stderr, "usage: migrate [%s]\n", strings.Join(dbmigrate.Commands, "|"))
		os.Exit(2)
	}
	command := os.Args[1]

	cfg := config.Load()
	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	dbURL, source, warning, err := dbmigrate.SelectDatabaseURL(cfg, false)
	if err != nil {
		log.Fatal("no database", zap.Error(err))
	}
	if warning != "" {
		log.Warn(warning)
	}
	log.Info("migrate", zap.String("command", command), zap.String("using", source))

	if err := dbmigrate.Run(command, dbURL, log); err != nil {
		log.Fatal("migrate failed", zap.Error(err))
	}

	log.Info("migrate completed", zap.String("command", command))
}
