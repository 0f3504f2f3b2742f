package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/SaiNageswarS/go-api-boot/config"
	"github.com/SaiNageswarS/go-api-boot/dotenv"
	"github.com/SaiNageswarS/go-api-boot/logger"
	"github.com/openclinic/intake-client/api"
	"github.com/openclinic/intake-client/appconfig"
	"github.com/openclinic/intake-client/intake"
	"github.com/openclinic/intake-client/store"
	"github.com/openclinic/intake-client/ui"
	"go.uber.org/zap"
)

func main() {
	dotenv.LoadEnv()

	ccfgg := &appconfig.AppConfig{}
	if err := config.LoadConfig("config.ini", ccfgg); err != nil {
		logger.Info("No config.ini found, using defaults", zap.Error(err))
	}
	applyDefaults(ccfgg)

	backendURL := flag.String("backend", ccfgg.BackendURL, "Intake backend base URL")
	sessionID := flag.String("session", os.Getenv("INTAKE_SESSION"), "Resume a specific session id (overrides the stored one)")
	statePath := flag.String("state", ccfgg.StatePath, "Path of the session state file")
	reportsDir := flag.String("reports", ccfgg.ReportsDir, "Directory for downloaded report documents")
	userName := flag.String("name", ccfgg.UserName, "Optional display name sent on session start")
	flag.Parse()

	client := api.NewClient(*backendURL)
	sessionStore := store.New(*statePath, *sessionID)

	app := ui.New(os.Stdin, os.Stdout, client, *reportsDir)
	ctrl := intake.NewControllerBuilder().
		WithBackend(client).
		WithStore(sessionStore).
		WithSink(app).
		WithUserName(*userName).
		WithHealthInterval(time.Duration(ccfgg.HealthIntervalSeconds) * time.Second).
		Build()
	app.Bind(ctrl)

	ctx := getCancellableContext()
	if err := app.Run(ctx); err != nil {
		logger.Fatal("Session ended with error", zap.Error(err))
	}
}

func applyDefaults(ccfgg *appconfig.AppConfig) {
	if ccfgg.BackendURL == "" {
		ccfgg.BackendURL = "http://localhost:8000"
	}
	if ccfgg.StatePath == "" {
		ccfgg.StatePath = filepath.Join(stateDir(), "session")
	}
	if ccfgg.ReportsDir == "" {
		ccfgg.ReportsDir = "."
	}
	if ccfgg.HealthIntervalSeconds <= 0 {
		ccfgg.HealthIntervalSeconds = 240
	}
}

func stateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".intake"
	}
	return filepath.Join(base, "intake-client")
}

func getCancellableContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	return ctx
}
