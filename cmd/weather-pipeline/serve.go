package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-pipeline/internal/api/http"
	"github.com/i474232898/weather-pipeline/internal/bot"
	"github.com/i474232898/weather-pipeline/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler, the Telegram bot and the HTTP API until interrupted",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	d, err := setup("")
	if err != nil {
		return err
	}
	defer d.l.Stop()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(d.cfg.Pipeline.Schedule, d.runner, d.l)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	handler := bot.NewHandler(d.pipeline, d.telegram, d.pipeline.CityNames(), d.l, d.metrics)
	u := tgbotapi.NewUpdate(0)
	u.Timeout = longPoll
	updates := d.botAPI.GetUpdatesChan(u)
	go handler.Poll(ctx, updates)

	app := httpapi.NewApp(d.cfg.AppName, d.registry, true)
	httpapi.RegisterRoutes(app, d.pipeline, d.runner)

	go func() {
		if err := app.Listen(":" + d.cfg.Port); err != nil {
			d.l.Error(err, map[string]any{"component": "http"})
			stop()
		}
	}()
	d.l.Info("service started", map[string]any{"port": d.cfg.Port, "schedule": d.cfg.Pipeline.Schedule})

	<-ctx.Done()
	d.l.Info("shutting down")

	d.botAPI.StopReceivingUpdates()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		d.l.Warning("error during shutdown", map[string]any{"error": err})
	}
	return nil
}
