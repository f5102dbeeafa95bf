// Command surfd consumes NDBC station observations from Kafka, keeps the
// latest reading per station, and republishes the spot to sensor link table
// after every batch.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	httpadapter "github.com/couchcryptid/surf-spot-engine/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/surf-spot-engine/internal/adapter/kafka"
	"github.com/couchcryptid/surf-spot-engine/internal/config"
	"github.com/couchcryptid/surf-spot-engine/internal/engine"
	"github.com/couchcryptid/surf-spot-engine/internal/linker"
	"github.com/couchcryptid/surf-spot-engine/internal/observability"
	"github.com/couchcryptid/surf-spot-engine/internal/physics"
	"github.com/couchcryptid/surf-spot-engine/internal/pipeline"
	"github.com/couchcryptid/surf-spot-engine/internal/spots"
	"github.com/couchcryptid/surf-spot-engine/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err := run(cfg, logger); err != nil {
		logger.Error("surfd failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownTracing(context.Background(), shutdownTracing, logger)

	metrics := observability.NewMetrics()

	catalog, err := spots.LoadFile(cfg.SpotsFile, logger)
	if err != nil {
		return err
	}

	readings, err := store.OpenSQLite(cfg.ReadingsDB)
	if err != nil {
		return err
	}
	defer readings.Close()

	eng := engine.New(engineOptions(cfg), readings, logger, metrics)

	reader := kafkaadapter.NewReader(cfg, logger)
	p := pipeline.New(reader, readings, eng, catalog.Spots(), logger, metrics, pipeline.Options{
		BatchSize:     cfg.BatchSize,
		MaxReadingAge: cfg.ReadingMaxAge,
	})

	// Serve persisted readings before the first message arrives.
	if err := p.Relink(ctx); err != nil {
		logger.Warn("initial relink failed", "error", err)
	}

	srv := newServer(cfg, p, eng, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingest pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newServer reports ready once the pipeline has published a link table.
func newServer(cfg *config.Config, p *pipeline.Pipeline, eng *engine.Engine, logger *slog.Logger) *httpadapter.Server {
	return httpadapter.NewServer(cfg.HTTPAddr, p, eng, logger)
}

func engineOptions(cfg *config.Config) engine.Options {
	scoring := physics.DefaultParams()
	scoring.GustThresholdKts = cfg.GustThresholdKts
	scoring.GustPenaltyPerKt = cfg.GustPenaltyPerKt
	scoring.GustPenaltyMax = cfg.GustPenaltyMax
	scoring.GlassyThresholdKts = cfg.GlassyThresholdKts
	scoring.GlassyBonus = cfg.GlassyBonus

	return engine.Options{
		Link: linker.Options{
			SwellRadiusKm:      cfg.SwellRadiusKm,
			WindRadiusKm:       cfg.WindRadiusKm,
			PreferDistinctWind: cfg.PreferDistinctWind,
		},
		Scoring:       scoring,
		MaxReadingAge: cfg.ReadingMaxAge,
	}
}
