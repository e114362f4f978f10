// Command genmock writes a synthetic West Coast input set for local runs and
// tests: yearly sea-surface temperature grids in Kelvin, a coarser elevation
// grid, and a latitude-banded region shapefile whose reference areas equal
// each band's rasterized footprint.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -years 2008-2012 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	goshp "github.com/jonas-p/go-shp"

	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/netcdf"
	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/shapefile"
	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

const crs = "+proj=longlat +datum=WGS84 +no_defs"

// Temperature grid: 0.25° cells from 126°W to 117°W and 32°N to 49°N.
var tempDef = domain.GridDef{X0: -126, Y0: 32, Dx: 0.25, Dy: 0.25, Nx: 36, Ny: 68, CRS: crs}

// Elevation grid: same extent at 0.5°.
var depthDef = domain.GridDef{X0: -126, Y0: 32, Dx: 0.5, Dy: 0.5, Nx: 18, Ny: 34, CRS: crs}

// band is a latitude band region; edges fall on temperature cell boundaries.
type band struct {
	name         string
	south, north float64
}

var bands = []band{
	{"Southern California", 32, 34.5},
	{"Central California", 34.5, 37.25},
	{"Northern California", 37.25, 42},
	{"Oregon", 42, 46.25},
	{"Washington", 46.25, 49},
}

// coast holds (latitude, longitude) points of the synthetic shoreline.
var coast = [][2]float64{
	{32, -117.2}, {34.5, -120.6}, {37.25, -122.5}, {42, -124.3}, {46.25, -124}, {49, -124.7},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/mock", "output directory")
	years := flag.String("years", "2008-2012", "inclusive year range, e.g. 2008-2012")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	first, last, err := parseYears(*years)
	if err != nil {
		flag.Usage()
		return err
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed))
	store := netcdf.NewStore("lat", "lon", crs)

	var files []string
	for year := first; year <= last; year++ {
		path := filepath.Join(*out, fmt.Sprintf("sst_%d.nc", year))
		if err := store.WriteGrid(path, "sst", "K", temperature(rng)); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		files = append(files, path)
		log.Printf("wrote temperature grid: %s", path)
	}

	depthPath := filepath.Join(*out, "depth.nc")
	if err := store.WriteGrid(depthPath, "elevation", "m", elevation(rng)); err != nil {
		return fmt.Errorf("writing %s: %w", depthPath, err)
	}
	log.Printf("wrote elevation grid: %s", depthPath)

	regionPath := filepath.Join(*out, "wc_regions.shp")
	if err := writeRegions(regionPath); err != nil {
		return fmt.Errorf("writing regions: %w", err)
	}
	log.Printf("wrote regions: %s (%d bands)", regionPath, len(bands))

	fmt.Printf("\nTEMPERATURE_FILES=%s\nDEPTH_FILE=%s\nREGIONS_FILE=%s\n",
		strings.Join(files, ","), depthPath, regionPath)
	return nil
}

func parseYears(s string) (first, last int, err error) {
	lo, hi, ok := strings.Cut(s, "-")
	if !ok {
		hi = lo
	}
	if first, err = strconv.Atoi(lo); err != nil {
		return 0, 0, fmt.Errorf("invalid -years %q", s)
	}
	if last, err = strconv.Atoi(hi); err != nil || last < first {
		return 0, 0, fmt.Errorf("invalid -years %q", s)
	}
	return first, last, nil
}

// coastLon interpolates the shoreline longitude at lat.
func coastLon(lat float64) float64 {
	if lat <= coast[0][0] {
		return coast[0][1]
	}
	for k := 1; k < len(coast); k++ {
		a, b := coast[k-1], coast[k]
		if lat <= b[0] {
			f := (lat - a[0]) / (b[0] - a[0])
			return a[1] + f*(b[1]-a[1])
		}
	}
	return coast[len(coast)-1][1]
}

// offshore returns the distance in degrees west of the shoreline, negative on land.
func offshore(p geom.Point) float64 {
	return coastLon(p.Y) - p.X
}

// temperature returns one year of SST in Kelvin with NaN over land.
func temperature(rng *rand.Rand) domain.Grid {
	g := domain.NewGrid(tempDef)
	anomaly := rng.NormFloat64() * 0.5
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			c := g.CellCenter(j, i)
			d := offshore(c)
			if d < 0 {
				continue
			}
			celsius := 24 - 0.55*(c.Y-32) + 0.6*d + anomaly + rng.NormFloat64()*0.3
			g.Set(celsius+273.15, j, i)
		}
	}
	return g
}

// elevation returns a shelf that deepens away from the shoreline and rising
// land to the east.
func elevation(rng *rand.Rand) domain.Grid {
	g := domain.NewGrid(depthDef)
	for j := 0; j < g.Ny; j++ {
		for i := 0; i < g.Nx; i++ {
			d := offshore(g.CellCenter(j, i))
			var z float64
			if d < 0 {
				z = 50 - 400*d
			} else {
				km := d * 85
				z = -3500 * (1 - math.Exp(-km/120))
			}
			g.Set(math.Round(z+rng.NormFloat64()*5), j, i)
		}
	}
	return g
}

func writeRegions(path string) error {
	rowAreas := tempDef.RowAreas()
	polys := make([]geom.Polygonal, len(bands))
	attrs := make([][]any, len(bands))
	for k, b := range bands {
		west, east := tempDef.X0, tempDef.X0+float64(tempDef.Nx)*tempDef.Dx
		polys[k] = geom.Polygon{{
			{X: west, Y: b.south}, {X: west, Y: b.north}, {X: east, Y: b.north},
			{X: east, Y: b.south}, {X: west, Y: b.south},
		}}

		// Summed in the same order as the rasterized footprint.
		var area float64
		for j := 0; j < tempDef.Ny; j++ {
			lat := tempDef.CellCenter(j, 0).Y
			if lat < b.south || lat > b.north {
				continue
			}
			for i := 0; i < tempDef.Nx; i++ {
				area += rowAreas[j]
			}
		}
		attrs[k] = []any{b.name, strconv.FormatFloat(area, 'f', -1, 64)}
	}

	fields := []goshp.Field{
		goshp.StringField(shapefile.FieldRegion, 40),
		goshp.StringField(shapefile.FieldArea, 32),
	}
	return shapefile.WritePolygons(path, crs, fields, polys, attrs)
}
