// Package postgis reads region boundaries from a PostGIS table.
package postgis

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/wkb"
	"github.com/ctessum/geom/proj"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// Columns names the attribute and geometry columns of the region table.
type Columns struct {
	Name string
	Area string
	Geom string
}

// regionRow is one region as selected from the database.
type regionRow struct {
	Name  string          `db:"name"`
	Area  sql.NullFloat64 `db:"area"`
	WKB   []byte          `db:"wkb"`
	Proj4 sql.NullString  `db:"proj4"`
}

// RegionReader loads a region set from a PostGIS table. The spatial
// reference is taken from spatial_ref_sys for the geometries' SRID.
// It implements pipeline.RegionReader.
type RegionReader struct {
	db     *sqlx.DB
	query  string
	table  string
	logger *slog.Logger
}

// Open connects to a PostgreSQL database.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewRegionReader creates a RegionReader for table, which may be schema-qualified.
func NewRegionReader(db *sqlx.DB, table string, cols Columns, logger *slog.Logger) *RegionReader {
	return &RegionReader{db: db, query: buildQuery(table, cols), table: table, logger: logger}
}

// buildQuery selects every region ordered by name. Identifiers are quoted so
// configured names cannot alter the statement.
func buildQuery(table string, cols Columns) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}
	name := pq.QuoteIdentifier(cols.Name)
	area := pq.QuoteIdentifier(cols.Area)
	g := pq.QuoteIdentifier(cols.Geom)

	return fmt.Sprintf(`
		SELECT
			r.%[1]s::text AS name,
			r.%[2]s::double precision AS area,
			ST_AsBinary(r.%[3]s) AS wkb,
			s.proj4text AS proj4
		FROM %[4]s r
		LEFT JOIN spatial_ref_sys s ON s.srid = ST_SRID(r.%[3]s)
		ORDER BY r.%[1]s`, name, area, g, strings.Join(parts, "."))
}

func (r *RegionReader) ReadRegions(ctx context.Context) (domain.RegionSet, error) {
	var rows []regionRow
	if err := r.db.SelectContext(ctx, &rows, r.query); err != nil {
		return domain.RegionSet{}, fmt.Errorf("query regions from %s: %w", r.table, err)
	}
	set, err := regionsFromRows(rows)
	if err != nil {
		return domain.RegionSet{}, fmt.Errorf("regions from %s: %w", r.table, err)
	}
	r.logger.Info("regions loaded", "table", r.table, "regions", len(set.Regions))
	return set, nil
}

// regionsFromRows decodes the selected rows. All geometries must share one
// spatial reference; a row without one leaves the set's SR nil.
func regionsFromRows(rows []regionRow) (domain.RegionSet, error) {
	var set domain.RegionSet
	var srText string
	for i, row := range rows {
		g, err := wkb.Decode(row.WKB)
		if err != nil {
			return domain.RegionSet{}, fmt.Errorf("region %q: decode geometry: %w", row.Name, err)
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return domain.RegionSet{}, fmt.Errorf("region %q: shapes need to be polygons, got %T", row.Name, g)
		}

		text := strings.TrimSpace(row.Proj4.String)
		if i == 0 {
			srText = text
		} else if text != srText {
			return domain.RegionSet{}, fmt.Errorf("region %q: spatial reference %q differs from %q", row.Name, text, srText)
		}

		var area float64
		if row.Area.Valid {
			area = row.Area.Float64
		}
		set.Regions = append(set.Regions, &domain.Region{Polygonal: poly, Name: row.Name, ReferenceArea: area})
	}

	if srText != "" {
		sr, err := proj.Parse(srText)
		if err != nil {
			return domain.RegionSet{}, fmt.Errorf("parse spatial reference %q: %w", srText, err)
		}
		set.SR = sr
	}
	return set, nil
}
