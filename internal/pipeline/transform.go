package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// GridReader reads one variable of a raster file into a grid.
type GridReader interface {
	ReadGrid(path, variable string) (domain.Grid, error)
}

// RegionReader reads the region set.
type RegionReader interface {
	ReadRegions(ctx context.Context) (domain.RegionSet, error)
}

// InputOptions describe where the inputs live and how to normalise them.
type InputOptions struct {
	TemperatureFiles    []string
	TemperatureVariable string
	TemperatureKelvin   bool

	DepthFile      string
	DepthVariable  string
	DepthElevation bool

	ReprojectRegions bool
}

// Inputs implements InputSource: it averages the yearly temperature grids,
// converts them to °C, resamples depth onto the temperature grid, and checks
// the region CRS against the grid.
type Inputs struct {
	grids   GridReader
	regions RegionReader
	opts    InputOptions
	logger  *slog.Logger
}

// NewInputs creates an Inputs source.
func NewInputs(grids GridReader, regions RegionReader, opts InputOptions, logger *slog.Logger) *Inputs {
	return &Inputs{grids: grids, regions: regions, opts: opts, logger: logger}
}

func (in *Inputs) LoadInputs(ctx context.Context) (domain.Inputs, error) {
	temp, err := in.Temperature()
	if err != nil {
		return domain.Inputs{}, err
	}
	depth, err := in.Depth(temp.GridDef)
	if err != nil {
		return domain.Inputs{}, err
	}
	regions, err := in.Regions(ctx, temp.CRS)
	if err != nil {
		return domain.Inputs{}, err
	}
	return domain.Inputs{Temperature: temp, Depth: depth, Regions: regions}, nil
}

// Temperature returns the mean temperature grid in °C.
func (in *Inputs) Temperature() (domain.Grid, error) {
	if len(in.opts.TemperatureFiles) == 0 {
		return domain.Grid{}, fmt.Errorf("no temperature files")
	}
	years := make([]domain.Grid, 0, len(in.opts.TemperatureFiles))
	for _, path := range in.opts.TemperatureFiles {
		g, err := in.grids.ReadGrid(path, in.opts.TemperatureVariable)
		if err != nil {
			return domain.Grid{}, fmt.Errorf("read temperature: %w", err)
		}
		in.logger.Debug("temperature grid read", "path", path, "nx", g.Nx, "ny", g.Ny)
		years = append(years, g)
	}

	mean, err := domain.MeanGrids(years...)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("mean temperature: %w", err)
	}
	if in.opts.TemperatureKelvin {
		mean = domain.KelvinToCelsius(mean)
	}
	return mean, nil
}

// Depth returns the depth grid resampled onto target, positive below sea level.
func (in *Inputs) Depth(target domain.GridDef) (domain.Grid, error) {
	raw, err := in.grids.ReadGrid(in.opts.DepthFile, in.opts.DepthVariable)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("read depth: %w", err)
	}
	if in.opts.DepthElevation {
		raw = domain.ElevationToDepth(raw)
	}
	depth, err := domain.Resample(raw, target)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("resample depth: %w", err)
	}
	in.logger.Debug("depth grid resampled",
		"from_nx", raw.Nx, "from_ny", raw.Ny,
		"to_nx", target.Nx, "to_ny", target.Ny,
	)
	return depth, nil
}

// Regions returns the region set in gridCRS.
func (in *Inputs) Regions(ctx context.Context, gridCRS string) (domain.RegionSet, error) {
	set, err := in.regions.ReadRegions(ctx)
	if err != nil {
		return domain.RegionSet{}, fmt.Errorf("read regions: %w", err)
	}
	set, err = set.Conform(gridCRS, in.opts.ReprojectRegions)
	if err != nil {
		return domain.RegionSet{}, err
	}
	return set, nil
}
