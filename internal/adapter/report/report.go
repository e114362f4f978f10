// Package report writes zonal result tables as CSV and JSON.
package report

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

var csvHeader = []string{"region", "suitable_km2", "percent_suitable", "suitable_cells", "reference_area_m2"}

// Table is the JSON form of one species' zonal result.
type Table struct {
	Species          domain.Species    `json:"species"`
	ComputedAt       time.Time         `json:"computed_at"`
	TotalSuitableKm2 float64           `json:"total_suitable_km2"`
	Regions          []domain.ZonalRow `json:"regions"`
}

// NewTable builds the table of a result.
func NewTable(res domain.Result) Table {
	return Table{
		Species:          res.Species,
		ComputedAt:       res.ComputedAt,
		TotalSuitableKm2: res.TotalSuitableArea() / 1e6,
		Regions:          res.Zonal,
	}
}

// Writer writes <dir>/<species-slug>/zonal.{csv,json} per species and a
// <dir>/summary.csv across species. It implements pipeline.ResultLoader.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
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
		if err := writeFile(filepath.Join(dir, "zonal.csv"), func(out io.Writer) error {
			return WriteCSV(out, res)
		}); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, "zonal.json"), func(out io.Writer) error {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(NewTable(res))
		}); err != nil {
			return err
		}
		w.logger.Info("zonal table written", "species", res.Species.Name, "dir", dir)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return writeFile(filepath.Join(w.dir, "summary.csv"), func(out io.Writer) error {
		return WriteSummary(out, results)
	})
}

// WriteCSV writes one row per region.
func WriteCSV(out io.Writer, res domain.Result) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range res.Zonal {
		if err := cw.Write(record(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteSummary writes one row per species and region.
func WriteSummary(out io.Writer, results []domain.Result) error {
	cw := csv.NewWriter(out)
	if err := cw.Write(append([]string{"species"}, csvHeader...)); err != nil {
		return err
	}
	for _, res := range results {
		for _, row := range res.Zonal {
			if err := cw.Write(append([]string{res.Species.Name}, record(row)...)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(row domain.ZonalRow) []string {
	return []string{
		row.Region,
		strconv.FormatFloat(row.SuitableKm2, 'f', 4, 64),
		strconv.FormatFloat(row.PercentSuitable, 'f', 4, 64),
		strconv.Itoa(row.SuitableCells),
		strconv.FormatFloat(row.ReferenceAreaM2, 'f', 0, 64),
	}
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
