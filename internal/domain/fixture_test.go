package domain

import (
	"math"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
	"github.com/stretchr/testify/require"
)

const (
	testMercator = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"
	testLongLat  = "+proj=longlat +datum=WGS84 +no_defs"
	testCellSize = 1000.0
)

var (
	// fixtureTemps is the temperature of every cell in column i.
	fixtureTemps = []float64{2, 3, 11, 20, 30, 31, 35, 40}
	// fixtureDepths is the depth of every cell in row j. Depths are drawn from
	// {5, 20, 80} so the carp and oyster depth ranges select the same cells.
	fixtureDepths = []float64{5, 20, 80, 20}
)

func fixtureDef() GridDef {
	return GridDef{Dx: testCellSize, Dy: testCellSize, Nx: 8, Ny: 4, CRS: testMercator}
}

func fixtureGrids() (Grid, Grid) {
	def := fixtureDef()
	temp := NewGrid(def)
	depth := NewGrid(def)
	for j := 0; j < def.Ny; j++ {
		for i := 0; i < def.Nx; i++ {
			temp.Set(fixtureTemps[i], j, i)
			depth.Set(fixtureDepths[j], j, i)
		}
	}
	return temp, depth
}

func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{
		{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
	}}
}

func mustSR(t *testing.T, crs string) *proj.SR {
	t.Helper()
	sr, err := proj.Parse(crs)
	require.NoError(t, err)
	return sr
}

// fixtureRegions splits the fixture grid into four 2-column zones whose
// reference area equals their footprint.
func fixtureRegions(t *testing.T) RegionSet {
	t.Helper()
	names := []string{"Northern California", "Central California", "Southern California", "Oregon"}
	set := RegionSet{SR: mustSR(t, testMercator)}
	for k, name := range names {
		x0 := float64(2*k) * testCellSize
		set.Regions = append(set.Regions, &Region{
			Polygonal:     rect(x0, 0, x0+2*testCellSize, 4*testCellSize),
			Name:          name,
			ReferenceArea: 8 * testCellSize * testCellSize,
		})
	}
	return set
}

func countValue(g Grid, want float64) int {
	n := 0
	for _, v := range g.Data.Elements {
		if v == want || (math.IsNaN(want) && math.IsNaN(v)) {
			n++
		}
	}
	return n
}
