package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/safecli/safecli/internal/config"
	"github.com/safecli/safecli/internal/database"
	"github.com/safecli/safecli/internal/logger"
	"github.com/safecli/safecli/internal/server"
	"github.com/safecli/safecli/internal/services"
	"github.com/safecli/safecli/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Setup logging with rotation
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fatalf("create log dir: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "safecli.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	mw := io.MultiWriter(os.Stdout, rotator)
	log.SetOutput(mw)
	logger.Init(cfg.Debug, mw)

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		logger.Log().WithError(err).Fatal("connect database")
	}

	// Handle CLI commands
	if len(os.Args) > 1 && os.Args[1] == "reset-password" {
		if len(os.Args) != 4 {
			log.Fatalf("Usage: %s reset-password <username|email> <new-password>", os.Args[0])
		}
		auth := services.NewAuthService(db, cfg)
		if err := auth.ResetPassword(context.Background(), os.Args[2], os.Args[3]); err != nil {
			logger.Log().WithError(err).Fatal("reset password")
		}
		logger.Log().WithField("account", os.Args[2]).Info("password updated")
		return
	}

	logger.Log().WithField("version", version.Full()).Info("starting " + version.Name)

	srv, err := server.New(db, cfg)
	if err != nil {
		logger.Log().WithError(err).Fatal("build server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Log().WithError(err).Fatal("server error")
	}
	logger.Log().Info("server stopped")
}
