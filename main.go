package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/wailsapp/wails/v3/pkg/application"

	"go.aimuz.me/dictate/internal/app"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func setupLogging() {
	level := slog.LevelInfo
	if v := strings.TrimSpace(os.Getenv("DICTATE_LOG_LEVEL")); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))
}

func main() {
	setupLogging()
	slog.Info("starting app", "version", version, "commit", commit, "date", date)

	appService := app.New(version)

	wailsApp := application.New(application.Options{
		Name:        "Dictate",
		Description: "Push-to-talk dictation",
		Services: []application.Service{
			application.NewService(appService),
		},
		Mac: application.MacOptions{
			// Tray-only app: there are no windows to close.
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	appService.Init(wailsApp)

	if err := wailsApp.Run(); err != nil {
		slog.Error("run app", "error", err)
	}
	appService.Shutdown()
}
