package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
	"github.com/couchcryptid/aquaculture-suitability/internal/observability"
)

// InputSource loads the shared read-only grids and regions for a run.
type InputSource interface {
	LoadInputs(ctx context.Context) (domain.Inputs, error)
}

// ResultLoader writes the results of every species to a destination.
type ResultLoader interface {
	LoadResults(ctx context.Context, results []domain.Result) error
}

// Pipeline runs the suitability computation for each species and hands the
// results to the loaders once every species has passed its checks.
type Pipeline struct {
	source  InputSource
	species []domain.Species
	loaders []ResultLoader
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(source InputSource, species []domain.Species, logger *slog.Logger, metrics *observability.Metrics, loaders ...ResultLoader) *Pipeline {
	return &Pipeline{
		source:  source,
		species: species,
		loaders: loaders,
		logger:  logger,
		metrics: metrics,
	}
}

// Run loads inputs, computes every species in order, then runs the loaders.
// Any failure aborts the run; loaders never see a partial result set.
func (p *Pipeline) Run(ctx context.Context) ([]domain.Result, error) {
	start := time.Now()
	inputs, err := p.source.LoadInputs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	p.logger.Info("inputs loaded",
		"nx", inputs.Temperature.Nx,
		"ny", inputs.Temperature.Ny,
		"regions", len(inputs.Regions.Regions),
		"duration", time.Since(start),
	)

	results := make([]domain.Result, 0, len(p.species))
	for _, sp := range p.species {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.runSpecies(inputs, sp)
		if err != nil {
			return nil, fmt.Errorf("species %q: %w", sp.Name, err)
		}
		results = append(results, res)
	}

	for _, l := range p.loaders {
		if err := l.LoadResults(ctx, results); err != nil {
			p.logger.Error("load results failed", "error", err)
			return results, fmt.Errorf("load results: %w", err)
		}
	}

	p.logger.Info("run complete", "species", len(results), "duration", time.Since(start))
	return results, nil
}

func (p *Pipeline) runSpecies(inputs domain.Inputs, sp domain.Species) (domain.Result, error) {
	start := time.Now()
	res, err := domain.ComputeSuitability(inputs.Temperature, inputs.Depth, inputs.Regions, sp)
	p.metrics.RunDuration.WithLabelValues(sp.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.Runs.WithLabelValues(sp.Name, "error").Inc()
		var ie *domain.InvariantError
		if errors.As(err, &ie) {
			p.metrics.InvariantFailures.WithLabelValues(ie.Invariant()).Inc()
			p.logger.Error("invariant violated",
				"species", sp.Name,
				"phase", ie.Phase,
				"invariant", ie.Invariant(),
				"detail", ie.Detail,
			)
		}
		return domain.Result{}, err
	}

	p.metrics.Runs.WithLabelValues(sp.Name, "success").Inc()
	p.metrics.SuitableCells.WithLabelValues(sp.Name).Set(float64(res.SuitableCells()))
	for _, row := range res.Zonal {
		p.metrics.RegionPercent.WithLabelValues(sp.Name, row.Region).Set(row.PercentSuitable)
		p.logger.Debug("zonal result",
			"species", sp.Name,
			"region", row.Region,
			"suitable_km2", row.SuitableKm2,
			"percent_suitable", row.PercentSuitable,
		)
	}
	p.logger.Info("species computed",
		"species", sp.Name,
		"suitable_cells", res.SuitableCells(),
		"suitable_km2", res.TotalSuitableArea()/1e6,
		"duration", time.Since(start),
	)
	return res, nil
}
