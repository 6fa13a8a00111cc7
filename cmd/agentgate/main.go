package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/telemetry"
	"github.com/tjfontaine/agentgate/pkg/gateway"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "agentgate",
		Usage: "HTTP gateway in front of a conversational agent",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.yaml",
				Value:   config.DefaultPath,
				Sources: cli.EnvVars("AGENTGATE_CONFIG_PATH"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log at debug level",
			},
		},
		Action: serve,
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	// Tracing is read up front; the gateway reloads its own copy.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Tracing.Enabled {
		shutdown, err := telemetry.InitTracer(cfg.Tracing.ServiceName, os.Stderr, logger)
		if err != nil {
			return fmt.Errorf("initialize tracer: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	gw, err := gateway.New(
		gateway.WithLogger(logger),
		gateway.WithFileConfig(configPath),
	)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	if err := gw.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received, stopping gateway...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
