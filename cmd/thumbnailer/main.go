package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/giobyte8/thumbforge/internal/consumer"
	"github.com/giobyte8/thumbforge/internal/models"
	"github.com/giobyte8/thumbforge/internal/raster"
	"github.com/giobyte8/thumbforge/internal/services"
	"github.com/giobyte8/thumbforge/internal/telemetry"
	thumbsgen "github.com/giobyte8/thumbforge/internal/thumbs_gen"
)

const shutdownTimeout = 10 * time.Second

// setupLogging configures the default logger from LOG_LEVEL and
// LOG_FORMAT ("text" or "json").
func setupLogging() {
	level := slog.LevelInfo
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			level = slog.LevelInfo
		}
	}

	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		handler = slog.NewJSONHandler(os.Stdout, handlerOpts)
	} else {
		// Wall clock only, the text format is meant for terminals
		handlerOpts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Value = slog.StringValue(a.Value.Time().Format("15:04:05"))
			}
			return a
		}
		handler = slog.NewTextHandler(os.Stdout, handlerOpts)
	}

	slog.SetDefault(slog.New(handler))
}

// loadEnv reads .env when present. Variables already set in the
// environment win.
func loadEnv() error {
	err := godotenv.Load(".env")
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("No .env file found, using environment variables directly.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	return nil
}

// amqpURI builds the broker URI from RABBITMQ_* variables, escaping the
// credentials.
func amqpURI() string {
	uri := url.URL{
		Scheme: "amqp",
		User: url.UserPassword(
			os.Getenv("RABBITMQ_USER"),
			os.Getenv("RABBITMQ_PASS"),
		),
		Host: net.JoinHostPort(
			os.Getenv("RABBITMQ_HOST"),
			os.Getenv("RABBITMQ_PORT"),
		),
		Path: "/",
	}

	return uri.String()
}

func prepareThumbsService(
	telemetry *telemetry.TelemetrySvc,
) (*services.ThumbnailsService, error) {
	thumbsConfig := services.ThumbnailsConfig{
		DirOriginalsRoot:  os.Getenv("DIR_ORIGINALS_ROOT"),
		DirThumbnailsRoot: os.Getenv("DIR_THUMBNAILS_ROOT"),
	}

	if thumbsConfig.DirOriginalsRoot == "" || thumbsConfig.DirThumbnailsRoot == "" {
		return nil, fmt.Errorf(
			"DIR_ORIGINALS_ROOT and DIR_THUMBNAILS_ROOT are required, got %q and %q",
			thumbsConfig.DirOriginalsRoot,
			thumbsConfig.DirThumbnailsRoot,
		)
	}

	factory := thumbsgen.NewFactory(raster.NewNativeBackend())
	return services.NewThumbnailsService(thumbsConfig, factory, telemetry)
}

func loadPresets() (models.Presets, error) {
	presetsFile := os.Getenv("THUMB_PRESETS_FILE")
	if presetsFile == "" {
		slog.Warn("THUMB_PRESETS_FILE is not set. Requests must be self contained.")
		return models.Presets{}, nil
	}

	presets, err := models.LoadPresets(presetsFile)
	if err != nil {
		return nil, err
	}

	slog.Info("Loaded thumbnail presets", "file", presetsFile, "count", len(presets))
	return presets, nil
}

func prepareAMQPConsumer(
	telemetry *telemetry.TelemetrySvc,
) (consumer.MessageConsumer, error) {
	thumbsSvc, err := prepareThumbsService(telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to create thumbnails service: %w", err)
	}

	presets, err := loadPresets()
	if err != nil {
		return nil, fmt.Errorf("failed to load thumbnail presets: %w", err)
	}

	amqpCfg := consumer.AMQPConfig{
		AMQPUri:            amqpURI(),
		Exchange:           os.Getenv("AMQP_EXCHANGE"),
		ThumbsGenQueueName: os.Getenv("AMQP_QUEUE_THUMB_GEN_REQUESTS"),
		ThumbsDelQueueName: os.Getenv("AMQP_QUEUE_THUMB_DEL_REQUESTS"),
	}

	handler := consumer.NewThumbRequestHandler(thumbsSvc, presets, telemetry)
	return consumer.NewAMQPConsumer(amqpCfg, handler)
}

func run(ctx context.Context) error {
	telemetrySvc, err := telemetry.NewTelemetrySvc(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry services: %w", err)
	}

	amqpConsumer, err := prepareAMQPConsumer(telemetrySvc)
	if err != nil {
		return err
	}

	if err := amqpConsumer.Start(ctx); err != nil {
		return err
	}
	slog.Info("thumbforge service is running. Press Ctrl+C to stop.")

	<-ctx.Done()
	slog.Info("Shutting down...", "reason", context.Cause(ctx))

	// ctx is already done, telemetry gets a fresh deadline to flush
	amqpConsumer.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := telemetrySvc.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shutdown telemetry services", "error", err)
	}

	return nil
}

func main() {
	setupLogging()
	if err := loadEnv(); err != nil {
		slog.Error("Failed to load environment", "error", err)
		os.Exit(1)
	}

	// .env may change LOG_LEVEL or LOG_FORMAT
	setupLogging()
	slog.Info("Starting thumbforge service...")

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("thumbforge service failed", "error", err)
		os.Exit(1)
	}

	slog.Info("thumbforge service exited gracefully.")
}
