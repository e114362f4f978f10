// Command validate checks the inputs of a suitability run before it is
// started: temperature grids, the bathymetry grid, the region layer, the
// species ranges, and how the regions rasterize onto the grid. It reads the
// same environment as cmd/suitability.
//
// Usage:
//
//	TEMPERATURE_FILES=data/sst_2008.nc,data/sst_2009.nc \
//	DEPTH_FILE=data/depth.nc REGIONS_FILE=data/wc_regions.shp \
//	  go run ./cmd/validate -max-footprint-ratio 1.0
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/netcdf"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/postgis"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/shapefile"
	"github.com/couchcryptid/aquaculture-suitability/internal/config"
	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
	"github.com/couchcryptid/aquaculture-suitability/internal/pipeline"
)

// Plausible bounds for species ranges.
const (
	minPlausibleTemp  = -5.0
	maxPlausibleTemp  = 45.0
	maxPlausibleDepth = 11000.0
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	maxRatio := flag.Float64("max-footprint-ratio", 1.0,
		"largest allowed rasterized footprint / reference area per region")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	if code := run(context.Background(), cfg, *maxRatio); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, cfg *config.Config, maxRatio float64) int {
	logger := slog.New(slog.DiscardHandler)
	store := netcdf.NewStore(cfg.LatVariable, cfg.LonVariable, cfg.GridCRS)

	fmt.Println("=== Suitability Input Validation ===")
	fmt.Println()

	tempPhase, temp := validateTemperature(store, cfg)
	depthPhase, depth := validateDepth(store, cfg, temp)
	regionPhase, regions := validateRegions(ctx, cfg, temp, logger)

	phases := []*phase{
		tempPhase,
		depthPhase,
		regionPhase,
		validateSpecies(cfg.Species),
		validateRasterization(temp, regions, maxRatio),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	if temp != nil {
		fmt.Printf("Grid: %d x %d cells, %d with temperature, %d with depth\n",
			temp.Nx, temp.Ny, finiteCells(*temp), finiteCells(depth))
	}
	fmt.Printf("Regions: %d, species: %d\n", len(regions.Regions), len(cfg.Species))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

// validateTemperature reads every yearly grid, checks that they share one
// grid definition, and returns their mean in °C.
func validateTemperature(grids pipeline.GridReader, cfg *config.Config) (*phase, *domain.Grid) {
	p := &phase{name: "Temperature grids readable and aligned"}

	var years []domain.Grid
	for _, path := range cfg.TemperatureFiles {
		g, err := grids.ReadGrid(path, cfg.TemperatureVariable)
		if err != nil {
			p.errorf("%s: %v", path, err)
			continue
		}
		if len(years) > 0 {
			if err := years[0].Aligned(g.GridDef); err != nil {
				p.errorf("%s: not aligned with %s: %v", path, cfg.TemperatureFiles[0], err)
				continue
			}
		}
		if finiteCells(g) == 0 {
			p.errorf("%s: every cell is no-data", path)
		}
		years = append(years, g)
	}
	if len(years) == 0 || !p.passed() {
		return p, nil
	}

	mean, err := domain.MeanGrids(years...)
	if err != nil {
		p.errorf("mean: %v", err)
		return p, nil
	}
	if cfg.TemperatureKelvin {
		mean = domain.KelvinToCelsius(mean)
	}
	for _, v := range mean.Data.Elements {
		if !math.IsNaN(v) && (v < -5 || v > 50) {
			p.errorf("mean temperature %.2f °C is implausible; check TEMPERATURE_UNITS", v)
			break
		}
	}
	return p, &mean
}

// validateDepth reads the bathymetry grid and resamples it onto the
// temperature grid.
func validateDepth(grids pipeline.GridReader, cfg *config.Config, temp *domain.Grid) (*phase, domain.Grid) {
	p := &phase{name: "Depth grid readable and resamplable"}

	raw, err := grids.ReadGrid(cfg.DepthFile, cfg.DepthVariable)
	if err != nil {
		p.errorf("%s: %v", cfg.DepthFile, err)
		return p, domain.Grid{}
	}
	if cfg.DepthElevation {
		raw = domain.ElevationToDepth(raw)
	}
	if temp == nil {
		return p, raw
	}

	depth, err := domain.Resample(raw, temp.GridDef)
	if err != nil {
		p.errorf("resample onto temperature grid: %v", err)
		return p, raw
	}

	var positive int
	for _, v := range depth.Data.Elements {
		if !math.IsNaN(v) && v > 0 {
			positive++
		}
	}
	if positive == 0 {
		p.errorf("no cell is below sea level after resampling; check DEPTH_CONVENTION")
	}
	return p, depth
}

// validateRegions reads the region layer and brings it into the grid CRS.
// The returned set is empty unless it is usable on the grid.
func validateRegions(ctx context.Context, cfg *config.Config, temp *domain.Grid, logger *slog.Logger) (*phase, domain.RegionSet) {
	p := &phase{name: "Regions CRS and reference areas"}

	set, err := readRegions(ctx, cfg, logger)
	if err != nil {
		p.errorf("%v", err)
		return p, domain.RegionSet{}
	}
	checkRegions(p, set)

	crs := cfg.GridCRS
	if temp != nil {
		crs = temp.CRS
	}
	conformed, err := set.Conform(crs, cfg.RegionsReproject)
	if err != nil {
		p.errorf("%v", err)
		return p, domain.RegionSet{}
	}
	return p, conformed
}

func checkRegions(p *phase, set domain.RegionSet) {
	if len(set.Regions) == 0 {
		p.errorf("region layer is empty")
	}
	seen := make(map[string]bool, len(set.Regions))
	for i, r := range set.Regions {
		switch {
		case r.Name == "":
			p.errorf("region %d has no name", i)
		case seen[r.Name]:
			p.errorf("region name %q appears more than once", r.Name)
		}
		seen[r.Name] = true
		if !(r.ReferenceArea > 0) || math.IsInf(r.ReferenceArea, 0) {
			p.errorf("region %q: reference area %v is not a positive number", r.Name, r.ReferenceArea)
		}
	}
}

func readRegions(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.RegionSet, error) {
	if cfg.RegionsSource != config.RegionsPostGIS {
		r := shapefile.NewRegionReader(cfg.RegionsFile, cfg.RegionsNameField, cfg.RegionsAreaField, logger)
		return r.ReadRegions(ctx)
	}
	db, err := postgis.Open(ctx, cfg.RegionsDSN)
	if err != nil {
		return domain.RegionSet{}, err
	}
	defer db.Close()
	r := postgis.NewRegionReader(db, cfg.RegionsTable, postgis.Columns{
		Name: cfg.RegionsNameField,
		Area: cfg.RegionsAreaField,
		Geom: cfg.RegionsGeomColumn,
	}, logger)
	return r.ReadRegions(ctx)
}

func validateSpecies(species []domain.Species) *phase {
	p := &phase{name: "Species ranges"}
	if len(species) == 0 {
		p.errorf("no species configured")
	}
	for _, sp := range species {
		t, d := sp.Temperature, sp.Depth
		if t.Min < minPlausibleTemp || t.Max > maxPlausibleTemp {
			p.errorf("%s: temperature range %v..%v °C is outside %v..%v", sp.Name, t.Min, t.Max, minPlausibleTemp, maxPlausibleTemp)
		}
		if d.Min < 0 || d.Max > maxPlausibleDepth {
			p.errorf("%s: depth range %v..%v m is outside 0..%v", sp.Name, d.Min, d.Max, maxPlausibleDepth)
		}
	}
	return p
}

// validateRasterization checks that every region covers at least one cell
// and that no footprint exceeds its reference area by more than maxRatio,
// which would let the percent of suitable area pass 100.
func validateRasterization(temp *domain.Grid, set domain.RegionSet, maxRatio float64) *phase {
	p := &phase{name: "Region rasterization coverage"}
	if temp == nil {
		p.errorf("skipped: no usable temperature grid")
		return p
	}
	if len(set.Regions) == 0 {
		p.errorf("skipped: no usable regions")
		return p
	}

	zones := domain.Rasterize(temp.GridDef, set)
	footprint := zones.FootprintArea()
	for pos, r := range set.Regions {
		if zones.Cells(pos) == 0 {
			p.errorf("region %q covers no grid cell", r.Name)
			continue
		}
		if r.ReferenceArea > 0 && footprint[pos] > r.ReferenceArea*maxRatio {
			p.errorf("region %q: footprint %.0f m² exceeds %.2f x reference area %.0f m²",
				r.Name, footprint[pos], maxRatio, r.ReferenceArea)
		}
	}
	return p
}

func finiteCells(g domain.Grid) int {
	if g.Data == nil {
		return 0
	}
	var n int
	for _, v := range g.Data.Elements {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}
