package netcdf

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// fillValue marks no-data cells in written files.
const fillValue float32 = -9999

// WriteGrid writes g as a float variable on (lat, lon) cell-centre
// coordinates, rows ordered south to north. The grid CRS is stored in the
// global "crs" attribute.
func (s *Store) WriteGrid(path, variable, units string, g domain.Grid) error {
	h := cdf.NewHeader([]string{s.LatVariable, s.LonVariable}, []int{g.Ny, g.Nx})
	h.AddAttribute("", "Conventions", "CF-1.6")
	h.AddAttribute("", "crs", g.CRS)

	latUnits, lonUnits := "degrees_north", "degrees_east"
	if !g.Geographic() {
		latUnits, lonUnits = "m", "m"
	}
	h.AddVariable(s.LatVariable, []string{s.LatVariable}, []float64{0})
	h.AddAttribute(s.LatVariable, "units", latUnits)
	h.AddVariable(s.LonVariable, []string{s.LonVariable}, []float64{0})
	h.AddAttribute(s.LonVariable, "units", lonUnits)

	h.AddVariable(variable, []string{s.LatVariable, s.LonVariable}, []float32{0})
	h.AddAttribute(variable, "units", units)
	h.AddAttribute(variable, "_FillValue", []float32{fillValue})
	h.Define()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	f, err := cdf.Create(file, h)
	if err != nil {
		return fmt.Errorf("netcdf header %s: %w", path, err)
	}

	lat := make([]float64, g.Ny)
	for j := range lat {
		lat[j] = g.CellCenter(j, 0).Y
	}
	lon := make([]float64, g.Nx)
	for i := range lon {
		lon[i] = g.CellCenter(0, i).X
	}
	data := make([]float32, len(g.Data.Elements))
	for k, v := range g.Data.Elements {
		if math.IsNaN(v) {
			data[k] = fillValue
			continue
		}
		data[k] = float32(v)
	}

	for _, w := range []struct {
		name   string
		values any
	}{
		{s.LatVariable, lat},
		{s.LonVariable, lon},
		{variable, data},
	} {
		if err := writeVar(f, w.name, w.values); err != nil {
			return fmt.Errorf("netcdf %s: writing %s: %w", path, w.name, err)
		}
	}
	if err := cdf.UpdateNumRecs(file); err != nil {
		return fmt.Errorf("netcdf %s: %w", path, err)
	}
	return file.Close()
}

// writeVar writes a whole variable. Record variables grow the file by as
// many records as values holds. Fixed variables end one step past their last
// index so the writer does not report io.EOF on the final element.
func writeVar(f *cdf.File, name string, values any) error {
	if f.Header.IsRecordVariable(name) {
		_, err := f.Writer(name, nil, nil).Write(values)
		return err
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	_, err := f.Writer(name, start, end).Write(values)
	return err
}

// MaskWriter writes each species' suitability mask to
// <dir>/<species-slug>/mask.nc. It implements pipeline.ResultLoader.
type MaskWriter struct {
	store  *Store
	dir    string
	logger *slog.Logger
}

// NewMaskWriter creates a MaskWriter rooted at dir.
func NewMaskWriter(store *Store, dir string, logger *slog.Logger) *MaskWriter {
	return &MaskWriter{store: store, dir: dir, logger: logger}
}

func (w *MaskWriter) LoadResults(ctx context.Context, results []domain.Result) error {
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir := filepath.Join(w.dir, res.Species.Slug())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		path := filepath.Join(dir, "mask.nc")
		if err := w.store.WriteGrid(path, "suitable", "1", res.Mask); err != nil {
			return err
		}
		w.logger.Info("mask written", "species", res.Species.Name, "path", path)
	}
	return nil
}
