// Package shapefile reads region boundaries from, and writes zonal result
// layers to, ESRI shapefiles.
package shapefile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// RegionReader loads a region set from a polygon shapefile and its .prj.
// It implements pipeline.RegionReader.
type RegionReader struct {
	path      string
	nameField string
	areaField string
	logger    *slog.Logger
}

// NewRegionReader creates a RegionReader for path with the given attribute columns.
func NewRegionReader(path, nameField, areaField string, logger *slog.Logger) *RegionReader {
	return &RegionReader{path: path, nameField: nameField, areaField: areaField, logger: logger}
}

// ReadRegions decodes every row in file order. A blank area attribute leaves
// the reference area at zero. A missing .prj yields a set with no spatial
// reference, which later fails the CRS check.
func (r *RegionReader) ReadRegions(_ context.Context) (domain.RegionSet, error) {
	d, err := shp.NewDecoder(r.path)
	if err != nil {
		return domain.RegionSet{}, fmt.Errorf("open shapefile %s: %w", r.path, err)
	}
	defer d.Close()

	var set domain.RegionSet
	if sr, err := d.SR(); err != nil {
		r.logger.Warn("region shapefile has no usable .prj", "path", r.path, "error", err)
	} else {
		set.SR = sr
	}

	for {
		g, fields, more := d.DecodeRowFields(r.nameField, r.areaField)
		if !more {
			break
		}
		region, err := r.region(g, fields)
		if err != nil {
			return domain.RegionSet{}, fmt.Errorf("shapefile %s row %d: %w", r.path, len(set.Regions), err)
		}
		set.Regions = append(set.Regions, region)
	}
	if err := d.Error(); err != nil {
		return domain.RegionSet{}, fmt.Errorf("decode shapefile %s: %w", r.path, err)
	}

	r.logger.Info("regions loaded", "path", r.path, "regions", len(set.Regions))
	return set, nil
}

func (r *RegionReader) region(g geom.Geom, fields map[string]string) (*domain.Region, error) {
	poly, ok := g.(geom.Polygonal)
	if !ok {
		return nil, fmt.Errorf("region shapes need to be polygons, got %T", g)
	}
	name, ok := fields[r.nameField]
	if !ok {
		return nil, fmt.Errorf("missing attribute column %s", r.nameField)
	}
	rawArea, ok := fields[r.areaField]
	if !ok {
		return nil, fmt.Errorf("missing attribute column %s", r.areaField)
	}

	area, err := parseArea(rawArea)
	if err != nil {
		return nil, fmt.Errorf("attribute %s: %w", r.areaField, err)
	}
	return &domain.Region{Polygonal: poly, Name: cleanField(name), ReferenceArea: area}, nil
}

func parseArea(s string) (float64, error) {
	s = cleanField(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// cleanField strips the padding dBase uses for fixed-width columns.
func cleanField(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}
