// Package netcdf reads and writes rasters stored as NetCDF classic files with
// 1-D latitude and longitude coordinate variables.
package netcdf

import (
	"fmt"
	"math"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

// spacingTolerance is the relative tolerance for treating coordinates as evenly spaced.
const spacingTolerance = 1e-4

// Store reads grids from NetCDF files. It implements pipeline.GridReader.
type Store struct {
	LatVariable string
	LonVariable string
	// DefaultCRS is used when a file has no global "crs" attribute.
	DefaultCRS string
}

// NewStore creates a Store using the given coordinate variable names.
func NewStore(latVar, lonVar, defaultCRS string) *Store {
	return &Store{LatVariable: latVar, LonVariable: lonVar, DefaultCRS: defaultCRS}
}

// ReadGrid reads variable from the file at path. Fill and missing values
// become NaN, packed values are unpacked, rows are ordered south to north, and
// any leading dimensions (e.g. time) are averaged away. A leading unlimited
// dimension contributes as many layers as the file holds records.
func (s *Store) ReadGrid(path, variable string) (domain.Grid, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return domain.Grid{}, fmt.Errorf("stat %s: %w", path, err)
	}
	f, err := cdf.Open(file)
	if err != nil {
		return domain.Grid{}, fmt.Errorf("netcdf %s: %w", path, err)
	}
	g, err := s.readGrid(f, variable, int(f.Header.NumRecs(fi.Size())))
	if err != nil {
		return domain.Grid{}, fmt.Errorf("netcdf %s: %w", path, err)
	}
	return g, nil
}

func (s *Store) readGrid(f *cdf.File, variable string, nrec int) (domain.Grid, error) {
	if !hasVariable(f, variable) {
		return domain.Grid{}, fmt.Errorf("no variable %q", variable)
	}
	dims := f.Header.Dimensions(variable)
	lengths := append([]int(nil), f.Header.Lengths(variable)...)
	if f.Header.IsRecordVariable(variable) {
		lengths[0] = nrec
	}
	if len(dims) < 2 || dims[len(dims)-2] != s.LatVariable || dims[len(dims)-1] != s.LonVariable {
		return domain.Grid{}, fmt.Errorf("variable %q has dimensions %v, want [... %s %s]",
			variable, dims, s.LatVariable, s.LonVariable)
	}

	lat, err := readFloats(f, s.LatVariable, nrec)
	if err != nil {
		return domain.Grid{}, err
	}
	lon, err := readFloats(f, s.LonVariable, nrec)
	if err != nil {
		return domain.Grid{}, err
	}
	def, flip, err := gridDef(lat, lon)
	if err != nil {
		return domain.Grid{}, err
	}
	def.CRS = s.DefaultCRS
	if crs, ok := f.Header.GetAttribute("", "crs").(string); ok && crs != "" {
		def.CRS = crs
	}

	values, err := readFloats(f, variable, nrec)
	if err != nil {
		return domain.Grid{}, err
	}
	unpack(f, variable, values)

	layers := 1
	for _, n := range lengths[:len(lengths)-2] {
		layers *= n
	}
	if len(values) != layers*def.Len() {
		return domain.Grid{}, fmt.Errorf("variable %q: dims are %v but array length is %d", variable, lengths, len(values))
	}

	stack := sparse.ZerosDense(layers, def.Ny, def.Nx)
	copy(stack.Elements, values)

	g := domain.NewGrid(def)
	for j := 0; j < def.Ny; j++ {
		src := j
		if flip {
			src = def.Ny - 1 - j
		}
		for i := 0; i < def.Nx; i++ {
			var sum float64
			for k := 0; k < layers; k++ {
				sum += stack.Get(k, src, i)
			}
			g.Set(sum/float64(layers), j, i)
		}
	}
	return g, nil
}

// gridDef derives the grid geometry from cell-centre coordinates. flip is true
// when latitude decreases along the row dimension.
func gridDef(lat, lon []float64) (def domain.GridDef, flip bool, err error) {
	if len(lat) < 2 || len(lon) < 2 {
		return domain.GridDef{}, false, fmt.Errorf("need at least 2 coordinates per axis, got %d lat and %d lon", len(lat), len(lon))
	}
	dx, err := spacing(lon)
	if err != nil {
		return domain.GridDef{}, false, fmt.Errorf("longitude: %w", err)
	}
	if dx < 0 {
		return domain.GridDef{}, false, fmt.Errorf("longitude must increase")
	}
	dy, err := spacing(lat)
	if err != nil {
		return domain.GridDef{}, false, fmt.Errorf("latitude: %w", err)
	}
	flip = dy < 0
	dy = math.Abs(dy)

	south := math.Min(lat[0], lat[len(lat)-1])
	return domain.GridDef{
		X0: lon[0] - dx/2,
		Y0: south - dy/2,
		Dx: dx,
		Dy: dy,
		Nx: len(lon),
		Ny: len(lat),
	}, flip, nil
}

func spacing(c []float64) (float64, error) {
	d := (c[len(c)-1] - c[0]) / float64(len(c)-1)
	if d == 0 {
		return 0, fmt.Errorf("zero spacing")
	}
	for k := 1; k < len(c); k++ {
		if math.Abs((c[k]-c[k-1])-d) > spacingTolerance*math.Abs(d) {
			return 0, fmt.Errorf("uneven spacing at index %d", k)
		}
	}
	return d, nil
}

// unpack replaces fill values with NaN and applies scale_factor/add_offset.
func unpack(f *cdf.File, variable string, values []float64) {
	var fills []float64
	for _, name := range []string{"_FillValue", "missing_value"} {
		if v, ok := attrFloat(f, variable, name); ok {
			fills = append(fills, v)
		}
	}
	scale, hasScale := attrFloat(f, variable, "scale_factor")
	offset, hasOffset := attrFloat(f, variable, "add_offset")

	for k, v := range values {
		for _, fill := range fills {
			if v == fill {
				v = math.NaN()
				break
			}
		}
		if hasScale {
			v *= scale
		}
		if hasOffset {
			v += offset
		}
		values[k] = v
	}
}

func hasVariable(f *cdf.File, name string) bool {
	for _, v := range f.Header.Variables() {
		if v == name {
			return true
		}
	}
	return false
}

// readFloats reads a whole variable and widens it to float64. Record
// variables are read up to the nrec records present in the file.
func readFloats(f *cdf.File, variable string, nrec int) ([]float64, error) {
	if !hasVariable(f, variable) {
		return nil, fmt.Errorf("no variable %q", variable)
	}
	var begin, end []int
	n := -1
	if f.Header.IsRecordVariable(variable) {
		if nrec < 1 {
			return nil, fmt.Errorf("variable %q has no records", variable)
		}
		lengths := f.Header.Lengths(variable)
		begin = make([]int, len(lengths))
		end = make([]int, len(lengths))
		end[0] = nrec - 1
		n = nrec
		for i := 1; i < len(lengths); i++ {
			end[i] = lengths[i] - 1
			n *= lengths[i]
		}
	}
	r := f.Reader(variable, begin, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read %q: %w", variable, err)
	}
	out, ok := toFloats(buf)
	if !ok {
		return nil, fmt.Errorf("variable %q has unsupported type %T", variable, buf)
	}
	return out, nil
}

func attrFloat(f *cdf.File, variable, name string) (float64, bool) {
	vals, ok := toFloats(f.Header.GetAttribute(variable, name))
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}

func toFloats(v any) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return append([]float64(nil), s...), true
	case []float32:
		return widen(s), true
	case []int32:
		return widen(s), true
	case []int16:
		return widen(s), true
	case []int8:
		return widen(s), true
	case []uint8:
		return widen(s), true
	default:
		return nil, false
	}
}

func widen[T float32 | int32 | int16 | int8 | uint8](s []T) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = float64(v)
	}
	return out
}
