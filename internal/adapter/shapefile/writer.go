package shapefile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// Attribute columns of written layers. dBase limits names to 10 characters.
const (
	FieldRegion  = "rgn"
	FieldArea    = "area_m2"
	FieldSuitKm2 = "SuitKm2"
	FieldPctSuit = "PctSuit"
)

// WritePolygons writes polygons with string and float attributes to path and
// a .prj holding crs. Each row of attrs lines up with fields.
func WritePolygons(path, crs string, fields []goshp.Field, polys []geom.Polygonal, attrs [][]any) error {
	if len(polys) != len(attrs) {
		return fmt.Errorf("%d polygons but %d attribute rows", len(polys), len(attrs))
	}
	e, err := shp.NewEncoderFromFields(path, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("create shapefile %s: %w", path, err)
	}
	for i, p := range polys {
		if err := e.EncodeFields(p, attrs[i]...); err != nil {
			e.Close()
			return fmt.Errorf("write shapefile %s row %d: %w", path, i, err)
		}
	}
	e.Close()

	if crs == "" {
		return nil
	}
	prj := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if err := os.WriteFile(prj, []byte(crs), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", prj, err)
	}
	return nil
}

// LayerWriter writes each species' zonal result as a polygon layer at
// <dir>/<species-slug>/zonal.shp. It implements pipeline.ResultLoader.
type LayerWriter struct {
	dir    string
	logger *slog.Logger
}

// NewLayerWriter creates a LayerWriter rooted at dir.
func NewLayerWriter(dir string, logger *slog.Logger) *LayerWriter {
	return &LayerWriter{dir: dir, logger: logger}
}

func (w *LayerWriter) LoadResults(ctx context.Context, results []domain.Result) error {
	fields := []goshp.Field{
		goshp.StringField(FieldRegion, 80),
		goshp.FloatField(FieldSuitKm2, 16, 4),
		goshp.FloatField(FieldPctSuit, 8, 3),
	}
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(res.Zonal) != len(res.Regions.Regions) {
			return fmt.Errorf("species %q: %d zonal rows for %d regions", res.Species.Name, len(res.Zonal), len(res.Regions.Regions))
		}

		polys := make([]geom.Polygonal, len(res.Zonal))
		attrs := make([][]any, len(res.Zonal))
		for i, row := range res.Zonal {
			polys[i] = res.Regions.Regions[i].Polygonal
			attrs[i] = []any{row.Region, row.SuitableKm2, row.PercentSuitable}
		}

		dir := filepath.Join(w.dir, res.Species.Slug())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		path := filepath.Join(dir, "zonal.shp")
		if err := WritePolygons(path, res.Mask.CRS, fields, polys, attrs); err != nil {
			return err
		}
		w.logger.Info("zonal layer written", "species", res.Species.Name, "path", path)
	}
	return nil
}
