package domain

import (
	"fmt"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/geom/proj"
)

// Region is a named zone with its boundary and precomputed reference area.
type Region struct {
	geom.Polygonal
	Name          string
	ReferenceArea float64 // m²; zero when the source did not provide one
}

// RegionSet is the immutable collection of zones used for a run. SR is the
// spatial reference of the region geometries; nil means it is unknown.
type RegionSet struct {
	Regions []*Region
	SR      *proj.SR
}

// Names returns the region names in set order.
func (s RegionSet) Names() []string {
	names := make([]string, len(s.Regions))
	for i, r := range s.Regions {
		names[i] = r.Name
	}
	return names
}

// Conform verifies that the region CRS matches gridCRS. When it does not and
// reproject is true, the geometries are transformed into the grid CRS;
// otherwise an ErrCRSMismatch precondition error is returned.
func (s RegionSet) Conform(gridCRS string, reproject bool) (RegionSet, error) {
	gridSR, err := proj.Parse(gridCRS)
	if err != nil {
		return RegionSet{}, fmt.Errorf("parse grid CRS %q: %w", gridCRS, err)
	}
	if s.SR == nil {
		return RegionSet{}, precondition(ErrCRSMismatch, "region set has no spatial reference")
	}
	if s.SR.Equal(gridSR, 6) {
		return s, nil
	}
	if !reproject {
		return RegionSet{}, precondition(ErrCRSMismatch, "region CRS differs from %q", gridCRS)
	}

	trans, err := s.SR.NewTransform(gridSR)
	if err != nil {
		return RegionSet{}, fmt.Errorf("region transform: %w", err)
	}
	out := RegionSet{Regions: make([]*Region, len(s.Regions)), SR: gridSR}
	for i, r := range s.Regions {
		g, err := r.Polygonal.Transform(trans)
		if err != nil {
			return RegionSet{}, fmt.Errorf("reproject region %q: %w", r.Name, err)
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return RegionSet{}, fmt.Errorf("reproject region %q: result is %T, not a polygon", r.Name, g)
		}
		out.Regions[i] = &Region{Polygonal: poly, Name: r.Name, ReferenceArea: r.ReferenceArea}
	}
	return out, nil
}

// indexedRegion remembers a region's position in its set for the spatial index.
type indexedRegion struct {
	geom.Polygonal
	pos int
}

// RegionIndex answers point-in-zone queries against a region set.
type RegionIndex struct {
	tree *rtree.Rtree
}

// NewRegionIndex builds a spatial index over the regions of s.
func NewRegionIndex(s RegionSet) *RegionIndex {
	tree := rtree.NewTree(25, 50)
	for i, r := range s.Regions {
		tree.Insert(&indexedRegion{Polygonal: r.Polygonal, pos: i})
	}
	return &RegionIndex{tree: tree}
}

// Locate returns the position of the first region containing pt, or -1.
func (x *RegionIndex) Locate(pt geom.Point) int {
	return x.locateIn(pt, pt.Bounds())
}

func (x *RegionIndex) locateIn(pt geom.Point, search *geom.Bounds) int {
	best := -1
	for _, c := range x.tree.SearchIntersect(search) {
		r := c.(*indexedRegion)
		if best >= 0 && r.pos >= best {
			continue
		}
		if pt.Within(r.Polygonal) != geom.Outside {
			best = r.pos
		}
	}
	return best
}

// Zones assigns every cell of a grid to the region containing its centre.
type Zones struct {
	def   GridDef
	index []int // region position per cell, -1 outside every region
	count []int // cells per region
}

// Rasterize computes the footprint of every region on def.
func Rasterize(def GridDef, s RegionSet) Zones {
	idx := NewRegionIndex(s)
	z := Zones{
		def:   def,
		index: make([]int, def.Len()),
		count: make([]int, len(s.Regions)),
	}
	for j := 0; j < def.Ny; j++ {
		for i := 0; i < def.Nx; i++ {
			pos := idx.locateIn(def.CellCenter(j, i), def.CellBounds(j, i))
			z.index[j*def.Nx+i] = pos
			if pos >= 0 {
				z.count[pos]++
			}
		}
	}
	return z
}

// At returns the region position of cell (j, i), or -1.
func (z Zones) At(j, i int) int { return z.index[j*z.def.Nx+i] }

// Cells returns the number of cells in the footprint of region pos.
func (z Zones) Cells(pos int) int { return z.count[pos] }

// FootprintArea returns the rasterized area in m² of every region.
func (z Zones) FootprintArea() []float64 {
	rowAreas := z.def.RowAreas()
	out := make([]float64, len(z.count))
	for k, pos := range z.index {
		if pos >= 0 {
			out[pos] += rowAreas[k/z.def.Nx]
		}
	}
	return out
}

// validReferenceArea reports whether a is usable as a percent denominator.
func validReferenceArea(a float64) bool {
	return a > 0 && !math.IsInf(a, 0) && !math.IsNaN(a)
}
