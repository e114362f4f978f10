// Package domain models the rasters, region polygons, and suitability results
// used to estimate how much of each coastal zone can support a given species'
// marine aquaculture.
//
// # Data Sources
//
// Sea-surface temperature arrives as one NetCDF file per observation year
// (annual mean, Kelvin). Bathymetry arrives as a single NetCDF elevation
// grid, usually finer than the temperature grid. Zones are Exclusive Economic
// Zone (EEZ) polygons, each carrying a precomputed reference area in m².
//
// # Grid Conventions
//
// A [Grid] is a regular 2-D raster stored row-major in a
// [github.com/ctessum/sparse.DenseArray] of shape (ny, nx):
//
//	row 0 is the southern edge, column 0 the western edge
//	cell (j, i) spans x ∈ [X0+i·Dx, X0+(i+1)·Dx), y ∈ [Y0+j·Dy, Y0+(j+1)·Dy)
//	"no data" is NaN
//
// Grids used together must share nx, ny, origin, resolution, and CRS. CRSs are
// proj4 strings compared with [github.com/ctessum/geom/proj.SR.Equal], so two
// spellings of the same projection are still considered equal.
//
// Cell area is derived from the grid definition, never assumed:
//
//	projected CRS:  |Dx · Dy|
//	geographic CRS: R² · |Δλ| · |sin φ₂ − sin φ₁|, R = 6 371 007.181 m (authalic)
//
// # Depth Sign Convention
//
// Species depth ranges are positive metres below sea level (oyster 0–70 m).
// Bathymetry products publish elevation, negative below sea level, so the
// loader negates them via [ElevationToDepth] unless the input already stores
// depth. Land cells therefore carry negative depth and fall outside every
// range whose minimum is 0.
//
// # Suitability Masks
//
// A mask cell is exactly 1 (suitable) or NaN. Reclassification is inclusive on
// both bounds; combining two masks multiplies them, so NaN in either input
// yields NaN. Any other value after combination is a defect and surfaces as an
// [InvariantError] rather than being corrected.
//
// # Zone Footprints
//
// A cell belongs to a zone when its centre lies inside or on the edge of the
// zone polygon. When zones overlap, the first zone in region-set order wins,
// so a cell is never counted twice and the per-zone sums cannot exceed the
// clipped grid area.
package domain
