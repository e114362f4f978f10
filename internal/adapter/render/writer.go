package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// Writer renders the suitable-area and percent-suitable maps of each species
// into <dir>/<species-slug>/. It implements pipeline.ResultLoader.
type Writer struct {
	dir    string
	width  int
	logger *slog.Logger
}

// NewWriter creates a Writer producing maps width pixels wide.
func NewWriter(dir string, width int, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, width: width, logger: logger}
}

// Maps returns the two choropleths of a result.
func Maps(res domain.Result) (area, percent Map) {
	km2 := make([]float64, len(res.Zonal))
	pct := make([]float64, len(res.Zonal))
	for i, row := range res.Zonal {
		km2[i] = row.SuitableKm2
		pct[i] = row.PercentSuitable
	}
	area = Map{
		Title:   fmt.Sprintf("Suitable area for %s", res.Species.Name),
		Units:   "km2",
		Regions: res.Regions,
		Values:  km2,
	}
	percent = Map{
		Title:   fmt.Sprintf("Percent of region suitable for %s", res.Species.Name),
		Units:   "%",
		Regions: res.Regions,
		Values:  pct,
	}
	return area, percent
}

func (w *Writer) LoadResults(ctx context.Context, results []domain.Result) error {
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(w.dir, res.Species.Slug())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		area, percent := Maps(res)
		for _, out := range []struct {
			name string
			m    Map
		}{
			{"suitable_area.png", area},
			{"percent_suitable.png", percent},
		} {
			img, err := out.m.Draw(w.width)
			if err != nil {
				return fmt.Errorf("render %s for %q: %w", out.name, res.Species.Name, err)
			}
			path := filepath.Join(dir, out.name)
			if err := writePNG(path, img); err != nil {
				return err
			}
			w.logger.Info("map rendered", "species", res.Species.Name, "path", path)
		}
	}
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
