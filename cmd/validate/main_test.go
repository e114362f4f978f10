package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goshp "github.com/jonas-p/go-shp"

	"github.com/couchcryptid/aquaculture-suitability/internal/adapter/shapefile"
	"github.com/couchcryptid/aquaculture-suitability/internal/config"
	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

const testCRS = "+proj=merc +a=6378137 +b=6378137 +lat_ts=0.0 +lon_0=0.0 +x_0=0.0 +y_0=0 +k=1.0 +units=m +nadgrids=@null +no_defs"

func rect(x0, y0, x1, y1 float64) geom.Polygon {
	return geom.Polygon{{{X: x0, Y: y0}, {X: x0, Y: y1}, {X: x1, Y: y1}, {X: x1, Y: y0}, {X: x0, Y: y0}}}
}

func TestValidateSpecies(t *testing.T) {
	tests := []struct {
		name    string
		species []domain.Species
		errs    int
	}{
		{"defaults", mustSpecies(t, domain.DefaultSpecies), 0},
		{"none", nil, 1},
		{"too hot", []domain.Species{{Name: "x", Temperature: domain.Range{Min: 10, Max: 60}, Depth: domain.Range{Max: 10}}}, 1},
		{"negative depth", []domain.Species{{Name: "x", Temperature: domain.Range{Min: 10, Max: 20}, Depth: domain.Range{Min: -3, Max: 10}}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validateSpecies(tt.species)
			assert.Len(t, p.errors, tt.errs, p.errors)
		})
	}
}

func TestCheckRegions(t *testing.T) {
	p := &phase{name: "regions"}
	checkRegions(p, domain.RegionSet{Regions: []*domain.Region{
		{Polygonal: rect(0, 0, 1, 1), Name: "A", ReferenceArea: 1},
		{Polygonal: rect(0, 0, 1, 1), Name: "A", ReferenceArea: 0},
		{Polygonal: rect(0, 0, 1, 1), Name: "", ReferenceArea: 2},
	}})
	require.Len(t, p.errors, 3)
	assert.Contains(t, p.errors[0], "more than once")
	assert.Contains(t, p.errors[1], "reference area")
	assert.Contains(t, p.errors[2], "no name")
}

func TestValidateRasterization(t *testing.T) {
	temp := domain.NewGrid(domain.GridDef{Dx: 1000, Dy: 1000, Nx: 4, Ny: 2, CRS: testCRS})
	set := domain.RegionSet{Regions: []*domain.Region{
		{Polygonal: rect(0, 0, 2000, 2000), Name: "West", ReferenceArea: 4e6},
		{Polygonal: rect(2000, 0, 4000, 2000), Name: "East", ReferenceArea: 3e6},
		{Polygonal: rect(9000, 9000, 9500, 9500), Name: "Offshore", ReferenceArea: 1e6},
	}}

	p := validateRasterization(&temp, set, 1.0)
	require.Len(t, p.errors, 2, p.errors)
	assert.Contains(t, p.errors[0], `"East"`)
	assert.Contains(t, p.errors[1], `"Offshore" covers no grid cell`)

	p = validateRasterization(&temp, set, 1.5)
	assert.Len(t, p.errors, 1)

	p = validateRasterization(nil, set, 1.0)
	assert.False(t, p.passed())
}

func TestValidateRegions_CRSMismatchSkipsRasterization(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.shp")
	fields := []goshp.Field{
		goshp.StringField(shapefile.FieldRegion, 40),
		goshp.StringField(shapefile.FieldArea, 32),
	}
	polys := []geom.Polygonal{rect(-125, 40, -124, 41)}
	require.NoError(t, shapefile.WritePolygons(path, "+proj=longlat +datum=WGS84 +no_defs", fields, polys, [][]any{{"North", "1e10"}}))

	cfg := &config.Config{
		GridCRS:          testCRS,
		RegionsSource:    config.RegionsShapefile,
		RegionsFile:      path,
		RegionsNameField: shapefile.FieldRegion,
		RegionsAreaField: shapefile.FieldArea,
	}
	p, set := validateRegions(context.Background(), cfg, nil, slog.New(slog.DiscardHandler))
	require.False(t, p.passed())
	assert.Contains(t, p.errors[0], "CRS")
	assert.Empty(t, set.Regions)

	temp := domain.NewGrid(domain.GridDef{Dx: 1000, Dy: 1000, Nx: 4, Ny: 2, CRS: testCRS})
	r := validateRasterization(&temp, set, 1.0)
	require.Len(t, r.errors, 1)
	assert.Contains(t, r.errors[0], "skipped")
}

func TestFiniteCells(t *testing.T) {
	g := domain.NewGrid(domain.GridDef{Dx: 1, Dy: 1, Nx: 3, Ny: 1})
	g.Set(1, 0, 0)
	assert.Equal(t, 1, finiteCells(g))
	assert.Equal(t, 0, finiteCells(domain.Grid{}))
}

func mustSpecies(t *testing.T, s string) []domain.Species {
	t.Helper()
	sp, err := domain.ParseSpeciesList(s)
	require.NoError(t, err)
	return sp
}
