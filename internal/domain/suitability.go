package domain

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// Range is an inclusive interval of acceptable cell values.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether Min <= v <= Max. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Widen returns r expanded by delta on both ends.
func (r Range) Widen(delta float64) Range {
	return Range{Min: r.Min - delta, Max: r.Max + delta}
}

func (r Range) valid() bool {
	return !math.IsNaN(r.Min) && !math.IsNaN(r.Max) &&
		!math.IsInf(r.Min, 0) && !math.IsInf(r.Max, 0) && r.Min < r.Max
}

// Inputs are the read-only grids and regions shared by every species run.
type Inputs struct {
	Temperature Grid // °C
	Depth       Grid // metres below sea level
	Regions     RegionSet
}

// ZonalRow is the suitable area of one region.
type ZonalRow struct {
	Region          string  `json:"region"`
	SuitableCells   int     `json:"suitable_cells"`
	SuitableAreaM2  float64 `json:"suitable_area_m2"`
	SuitableKm2     float64 `json:"suitable_km2"`
	PercentSuitable float64 `json:"percent_suitable"`
	ReferenceAreaM2 float64 `json:"reference_area_m2"`
}

// Result is the outcome of one species run.
type Result struct {
	Species    Species
	Mask       Grid
	Zonal      []ZonalRow
	Regions    RegionSet
	ComputedAt time.Time
}

// TotalSuitableArea returns the summed suitable area of all regions, in m².
func (r Result) TotalSuitableArea() float64 {
	areas := make([]float64, len(r.Zonal))
	for i, row := range r.Zonal {
		areas[i] = row.SuitableAreaM2
	}
	return floats.Sum(areas)
}

// SuitableCells counts mask cells equal to 1.
func (r Result) SuitableCells() int {
	n := 0
	for _, v := range r.Mask.Data.Elements {
		if v == 1 {
			n++
		}
	}
	return n
}

// Reclassify maps every cell inside rng to 1 and every other cell, including
// NaN, to NaN.
func Reclassify(g Grid, rng Range) Grid {
	out := g.cloneEmpty()
	for k, v := range g.Data.Elements {
		if rng.Contains(v) {
			out.Data.Elements[k] = 1
		}
	}
	return out
}

// CombineMasks multiplies two aligned masks cell by cell, so a cell is 1 only
// where both inputs are 1 and NaN wherever either input is NaN.
func CombineMasks(a, b Grid) (Grid, error) {
	if err := a.Aligned(b.GridDef); err != nil {
		return Grid{}, precondition(ErrMisaligned, "%v", err)
	}
	out := a.cloneEmpty()
	for k := range out.Data.Elements {
		out.Data.Elements[k] = a.Data.Elements[k] * b.Data.Elements[k]
	}
	return out, nil
}

// Restrict returns a copy of mask with every cell outside all zones set to NaN.
func Restrict(mask Grid, zones Zones) Grid {
	out := mask.cloneEmpty()
	for k, v := range mask.Data.Elements {
		if zones.index[k] >= 0 {
			out.Data.Elements[k] = v
		}
	}
	return out
}

// ComputeSuitability runs the suitability pipeline for one species: it
// reclassifies both grids against the species ranges, combines them, clips the
// mask to the regions, sums suitable area per region, and derives the percent
// of each region's reference area. It does not modify its inputs.
func ComputeSuitability(temperature, depth Grid, regions RegionSet, sp Species) (Result, error) {
	if err := checkPreconditions(temperature, depth, regions, sp); err != nil {
		return Result{}, err
	}

	tempMask := Reclassify(temperature, sp.Temperature)
	depthMask := Reclassify(depth, sp.Depth)
	combined, err := CombineMasks(tempMask, depthMask)
	if err != nil {
		return Result{}, err
	}

	zones := Rasterize(temperature.GridDef, regions)
	mask := Restrict(combined, zones)
	if err := checkMask(mask); err != nil {
		return Result{}, err
	}

	rows, err := zonalSums(mask, zones, regions)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Species:    sp,
		Mask:       mask,
		Zonal:      rows,
		Regions:    regions,
		ComputedAt: clock.Now().UTC(),
	}, nil
}

func checkPreconditions(temperature, depth Grid, regions RegionSet, sp Species) error {
	if err := temperature.Aligned(depth.GridDef); err != nil {
		return precondition(ErrMisaligned, "temperature vs depth: %v", err)
	}
	if !sp.Temperature.valid() {
		return precondition(ErrInvalidRange, "%s temperature [%g, %g]", sp.Name, sp.Temperature.Min, sp.Temperature.Max)
	}
	if !sp.Depth.valid() {
		return precondition(ErrInvalidRange, "%s depth [%g, %g]", sp.Name, sp.Depth.Min, sp.Depth.Max)
	}
	if len(regions.Regions) == 0 {
		return precondition(ErrNoRegions, "")
	}
	for _, r := range regions.Regions {
		if !validReferenceArea(r.ReferenceArea) {
			return precondition(ErrMissingReferenceArea, "region %q has reference area %g", r.Name, r.ReferenceArea)
		}
	}
	gridSR, err := temperature.SR()
	if err != nil {
		return precondition(ErrMisaligned, "%v", err)
	}
	if regions.SR == nil || !regions.SR.Equal(gridSR, 6) {
		return precondition(ErrCRSMismatch, "grid CRS %q", temperature.CRS)
	}
	return nil
}

func checkMask(mask Grid) error {
	for k, v := range mask.Data.Elements {
		if v != 1 && !math.IsNaN(v) {
			return postcondition(ErrMaskValue, "cell (%d, %d) = %g", k/mask.Nx, k%mask.Nx, v)
		}
	}
	return nil
}

func zonalSums(mask Grid, zones Zones, regions RegionSet) ([]ZonalRow, error) {
	rowAreas := mask.RowAreas()
	rows := make([]ZonalRow, len(regions.Regions))
	for i, r := range regions.Regions {
		rows[i] = ZonalRow{Region: r.Name, ReferenceAreaM2: r.ReferenceArea}
	}

	for k, v := range mask.Data.Elements {
		pos := zones.index[k]
		if pos < 0 || v != 1 {
			continue
		}
		rows[pos].SuitableCells++
		rows[pos].SuitableAreaM2 += rowAreas[k/mask.Nx]
	}

	for i := range rows {
		row := &rows[i]
		row.SuitableKm2 = row.SuitableAreaM2 / 1e6
		row.PercentSuitable = 100 * row.SuitableAreaM2 / row.ReferenceAreaM2
		if !(row.PercentSuitable >= 0 && row.PercentSuitable <= 100) {
			return nil, postcondition(ErrPercentOutOfRange, "region %q: %g%% (suitable %g m², reference %g m²)",
				row.Region, row.PercentSuitable, row.SuitableAreaM2, row.ReferenceAreaM2)
		}
	}
	return rows, nil
}
