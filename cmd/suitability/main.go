// Command suitability computes aquaculture suitability per species and region
// from yearly sea-surface temperature grids, a bathymetry grid, and a region
// layer, then writes tables, maps, layers, and masks under OUTPUT_DIR.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/couchcryptid/aquaculture-suitability/internal/adapter/kafka"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/netcdf"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/postgis"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/render"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/report"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/shapefile"
	"github.com/couchcryptid/aquaculture-suitability/internal/config"
	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
	"github.com/couchcryptid/aquaculture-suitability/internal/observability"
	"github.com/couchcryptid/aquaculture-suitability/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		var inv *domain.InvariantError
		if errors.As(err, &inv) {
			logger.Error("suitability run failed", "invariant", inv.Invariant(), "error", err)
		} else {
			logger.Error("suitability run failed", "error", err)
		}
		pushMetrics(cfg, logger, metrics)
		os.Exit(1)
	}
	pushMetrics(cfg, logger, metrics)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	store := netcdf.NewStore(cfg.LatVariable, cfg.LonVariable, cfg.GridCRS)

	regions, closeRegions, err := regionReader(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRegions()

	source := pipeline.NewInputs(store, regions, pipeline.InputOptions{
		TemperatureFiles:    cfg.TemperatureFiles,
		TemperatureVariable: cfg.TemperatureVariable,
		TemperatureKelvin:   cfg.TemperatureKelvin,
		DepthFile:           cfg.DepthFile,
		DepthVariable:       cfg.DepthVariable,
		DepthElevation:      cfg.DepthElevation,
		ReprojectRegions:    cfg.RegionsReproject,
	}, logger)

	loaders, closeLoaders := resultLoaders(cfg, store, logger)
	defer closeLoaders()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	p := pipeline.New(source, cfg.Species, logger, metrics, loaders...)
	results, err := p.Run(ctx)
	if err != nil {
		return err
	}
	for _, res := range results {
		logger.Info("species summary",
			"species", res.Species.Name,
			"suitable_cells", res.SuitableCells(),
			"suitable_km2", res.TotalSuitableArea()/1e6,
		)
	}
	return nil
}

// regionReader opens the configured region source. The returned func releases
// any connection it holds.
func regionReader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (pipeline.RegionReader, func(), error) {
	if cfg.RegionsSource != config.RegionsPostGIS {
		r := shapefile.NewRegionReader(cfg.RegionsFile, cfg.RegionsNameField, cfg.RegionsAreaField, logger)
		return r, func() {}, nil
	}
	db, err := postgis.Open(ctx, cfg.RegionsDSN)
	if err != nil {
		return nil, nil, err
	}
	r := postgis.NewRegionReader(db, cfg.RegionsTable, postgis.Columns{
		Name: cfg.RegionsNameField,
		Area: cfg.RegionsAreaField,
		Geom: cfg.RegionsGeomColumn,
	}, logger)
	return r, func() {
		if err := db.Close(); err != nil {
			logger.Error("postgres close error", "error", err)
		}
	}, nil
}

func pushMetrics(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PublishTimeout)
	defer cancel()
	if err := metrics.Push(ctx, cfg.PushgatewayURL); err != nil {
		logger.Error("metrics push failed", "url", cfg.PushgatewayURL, "error", err)
	}
}

// resultLoaders lists the output sinks in run order. The Kafka publisher
// goes first so a broker failure stops the run before any file is written.
func resultLoaders(cfg *config.Config, store *netcdf.Store, logger *slog.Logger) ([]pipeline.ResultLoader, func()) {
	var loaders []pipeline.ResultLoader
	closeFn := func() {}
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		closeFn = func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		loaders = append(loaders, writer)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic)
	}
	loaders = append(loaders,
		report.NewWriter(cfg.OutputDir, logger),
		render.NewWriter(cfg.OutputDir, cfg.RenderWidth, logger),
		shapefile.NewLayerWriter(cfg.OutputDir, logger),
		netcdf.NewMaskWriter(store, cfg.OutputDir, logger),
	)
	return loaders, closeFn
}
