package domain

import (
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
)

const (
	// earthRadius is the authalic radius of the WGS-84 ellipsoid, in metres.
	earthRadius = 6371007.181

	// alignTolerance is the relative tolerance for comparing grid origins and resolutions.
	alignTolerance = 1e-9
)

// GridDef describes the geometry of a regular raster.
type GridDef struct {
	X0  float64 `json:"x0"` // western edge
	Y0  float64 `json:"y0"` // southern edge
	Dx  float64 `json:"dx"`
	Dy  float64 `json:"dy"`
	Nx  int     `json:"nx"`
	Ny  int     `json:"ny"`
	CRS string  `json:"crs"` // proj4
}

// Grid is a raster of cell values over a GridDef. NaN marks "no data".
type Grid struct {
	GridDef
	Data *sparse.DenseArray
}

// NewGrid allocates a grid over def with every cell set to NaN.
func NewGrid(def GridDef) Grid {
	data := sparse.ZerosDense(def.Ny, def.Nx)
	for k := range data.Elements {
		data.Elements[k] = math.NaN()
	}
	return Grid{GridDef: def, Data: data}
}

// At returns the value of cell (j, i).
func (g Grid) At(j, i int) float64 {
	return g.Data.Elements[j*g.Nx+i]
}

// Set assigns the value of cell (j, i).
func (g Grid) Set(v float64, j, i int) {
	g.Data.Elements[j*g.Nx+i] = v
}

// Len returns the number of cells.
func (d GridDef) Len() int { return d.Nx * d.Ny }

// Bounds returns the spatial extent of the grid.
func (d GridDef) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: d.X0, Y: d.Y0},
		Max: geom.Point{X: d.X0 + d.Dx*float64(d.Nx), Y: d.Y0 + d.Dy*float64(d.Ny)},
	}
}

// CellCenter returns the centre point of cell (j, i).
func (d GridDef) CellCenter(j, i int) geom.Point {
	return geom.Point{
		X: d.X0 + (float64(i)+0.5)*d.Dx,
		Y: d.Y0 + (float64(j)+0.5)*d.Dy,
	}
}

// CellBounds returns the rectangle covered by cell (j, i).
func (d GridDef) CellBounds(j, i int) *geom.Bounds {
	x := d.X0 + float64(i)*d.Dx
	y := d.Y0 + float64(j)*d.Dy
	return &geom.Bounds{
		Min: geom.Point{X: x, Y: y},
		Max: geom.Point{X: x + d.Dx, Y: y + d.Dy},
	}
}

// Geographic reports whether the CRS uses longitude/latitude degrees.
func (d GridDef) Geographic() bool {
	for _, tok := range strings.Fields(d.CRS) {
		switch strings.ToLower(tok) {
		case "+proj=longlat", "+proj=latlong", "+proj=lonlat", "+proj=latlon":
			return true
		}
	}
	return false
}

// RowAreas returns the area in m² of a single cell in each row. Projected
// grids are assumed to use metres.
func (d GridDef) RowAreas() []float64 {
	areas := make([]float64, d.Ny)
	if !d.Geographic() {
		a := math.Abs(d.Dx * d.Dy)
		for j := range areas {
			areas[j] = a
		}
		return areas
	}

	const rad = math.Pi / 180
	dLambda := math.Abs(d.Dx) * rad
	for j := range areas {
		lat1 := (d.Y0 + float64(j)*d.Dy) * rad
		lat2 := (d.Y0 + float64(j+1)*d.Dy) * rad
		areas[j] = earthRadius * earthRadius * dLambda * math.Abs(math.Sin(lat2)-math.Sin(lat1))
	}
	return areas
}

// SR parses the grid CRS.
func (d GridDef) SR() (*proj.SR, error) {
	sr, err := proj.Parse(d.CRS)
	if err != nil {
		return nil, fmt.Errorf("parse grid CRS %q: %w", d.CRS, err)
	}
	return sr, nil
}

// Aligned returns nil when d and o share shape, origin, resolution, and CRS,
// or an error naming the first difference.
func (d GridDef) Aligned(o GridDef) error {
	if d.Nx != o.Nx || d.Ny != o.Ny {
		return fmt.Errorf("shape %dx%d vs %dx%d", d.Nx, d.Ny, o.Nx, o.Ny)
	}
	if !nearlyEqual(d.Dx, o.Dx) || !nearlyEqual(d.Dy, o.Dy) {
		return fmt.Errorf("resolution (%g, %g) vs (%g, %g)", d.Dx, d.Dy, o.Dx, o.Dy)
	}
	if !nearlyEqual(d.X0, o.X0) || !nearlyEqual(d.Y0, o.Y0) {
		return fmt.Errorf("origin (%g, %g) vs (%g, %g)", d.X0, d.Y0, o.X0, o.Y0)
	}
	same, err := SameCRS(d.CRS, o.CRS)
	if err != nil {
		return err
	}
	if !same {
		return fmt.Errorf("CRS %q vs %q", d.CRS, o.CRS)
	}
	return nil
}

// SameCRS reports whether two proj4 definitions describe the same spatial reference.
func SameCRS(a, b string) (bool, error) {
	if strings.TrimSpace(a) == strings.TrimSpace(b) {
		return true, nil
	}
	sa, err := proj.Parse(a)
	if err != nil {
		return false, fmt.Errorf("parse CRS %q: %w", a, err)
	}
	sb, err := proj.Parse(b)
	if err != nil {
		return false, fmt.Errorf("parse CRS %q: %w", b, err)
	}
	return sa.Equal(sb, 6), nil
}

func nearlyEqual(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= alignTolerance*scale
}

// cloneEmpty returns a NaN-filled grid with the same definition as g.
func (g Grid) cloneEmpty() Grid {
	return NewGrid(g.GridDef)
}
