// Package render draws zonal results as PNG choropleth maps.
package render

import (
	"fmt"
	"image"
	"image/color"
	imgdraw "image/draw"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/couchcryptid/aquaculture-suitability/internal/domain"
)

const (
	titleHeight  = 22
	legendHeight = 40
	noDataWidth  = 80
	margin       = 6
)

var (
	// Palette is a sequential yellow-green-blue ramp, low to high.
	Palette = []color.NRGBA{
		{0xff, 0xff, 0xcc, 0xff},
		{0xc7, 0xe9, 0xb4, 0xff},
		{0x7f, 0xcd, 0xbb, 0xff},
		{0x41, 0xb6, 0xc4, 0xff},
		{0x1d, 0x91, 0xc0, 0xff},
		{0x22, 0x5e, 0xa8, 0xff},
		{0x0c, 0x2c, 0x84, 0xff},
	}
	NoDataColor     = color.NRGBA{0xbd, 0xbd, 0xbd, 0xff}
	BackgroundColor = color.NRGBA{0xff, 0xff, 0xff, 0xff}
	BorderColor     = color.NRGBA{0x40, 0x40, 0x40, 0xff}
	textColor       = image.NewUniform(color.Black)
)

// Map is a choropleth of one value per region.
type Map struct {
	Title   string
	Units   string
	Regions domain.RegionSet
	Values  []float64 // one per region; NaN draws as no data
}

// paletteScheme spreads Palette evenly over [0, 1] for carto.ColorMap.
func paletteScheme() carto.Colorlist {
	cl := carto.Colorlist{LowLimit: Palette[0], HighLimit: Palette[len(Palette)-1]}
	for i, c := range Palette {
		cl.Val = append(cl.Val, float64(i)/float64(len(Palette)-1))
		cl.R = append(cl.R, float64(c.R))
		cl.G = append(cl.G, float64(c.G))
		cl.B = append(cl.B, float64(c.B))
	}
	return cl
}

// colorScale maps values from zero up to the largest finite value onto
// Palette. ok is false when there is nothing above zero to scale.
type colorScale struct {
	cmap *carto.ColorMap
	ok   bool
}

func newColorScale(values []float64) colorScale {
	cmap := carto.NewColorMap(carto.Linear)
	cmap.ColorScheme = paletteScheme()
	cmap.FontSize = 6

	var finite []float64
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, math.Max(v, 0))
		}
	}
	if len(finite) == 0 || floats.Max(finite) <= 0 {
		return colorScale{cmap: cmap}
	}
	cmap.AddArray(finite)
	cmap.Set()
	return colorScale{cmap: cmap, ok: true}
}

func (s colorScale) color(v float64) color.NRGBA {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return NoDataColor
	case !s.ok:
		return Palette[0]
	}
	return s.cmap.GetColor(math.Max(v, 0))
}

// Draw renders m at the given pixel width, keeping the regions' aspect ratio.
func (m Map) Draw(width int) (*image.RGBA, error) {
	if len(m.Values) != len(m.Regions.Regions) {
		return nil, fmt.Errorf("%d values for %d regions", len(m.Values), len(m.Regions.Regions))
	}
	if len(m.Regions.Regions) == 0 {
		return nil, fmt.Errorf("no regions to draw")
	}

	b := extent(m.Regions)
	if b.Max.X-b.Min.X <= 0 || b.Max.Y-b.Min.Y <= 0 {
		return nil, fmt.Errorf("regions have an empty extent")
	}
	rm := carto.NewRasterMap(b.Max.Y, b.Min.Y, b.Max.X, b.Min.X, width)
	mapHeight := rm.I.Bounds().Dy()
	if mapHeight < 1 {
		return nil, fmt.Errorf("regions are too flat to draw %d pixels wide", width)
	}
	rm.FillPolygon(BackgroundColor, []vg.Point{
		rm.Min, {X: rm.Max.X, Y: rm.Min.Y}, rm.Max, {X: rm.Min.X, Y: rm.Max.Y},
	})

	scale := newColorScale(m.Values)
	border := draw.LineStyle{Color: BorderColor, Width: vg.Points(0.75)}
	for i, r := range m.Regions.Regions {
		if err := rm.DrawVector(r.Polygonal, scale.color(m.Values[i]), border, draw.GlyphStyle{}); err != nil {
			return nil, fmt.Errorf("draw region %q: %w", r.Name, err)
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, titleHeight+mapHeight+legendHeight))
	imgdraw.Draw(img, img.Bounds(), image.NewUniform(BackgroundColor), image.Point{}, imgdraw.Src)
	imgdraw.Draw(img, image.Rect(0, titleHeight, width, titleHeight+mapHeight), rm.I, image.Point{}, imgdraw.Src)

	label(img, margin, titleHeight-7, m.Title)
	if err := m.drawLegend(img, titleHeight+mapHeight, scale); err != nil {
		return nil, err
	}
	return img, nil
}

// drawLegend puts the colour bar on the left of the bottom strip and the
// no-data swatch on the right.
func (m Map) drawLegend(img *image.RGBA, top int, scale colorScale) error {
	width := img.Bounds().Dx()
	barWidth := width - noDataWidth
	if scale.ok && barWidth > 0 {
		strip := image.NewRGBA(image.Rect(0, 0, barWidth, legendHeight))
		dc := draw.New(vgimg.NewWith(vgimg.UseImage(strip)))
		if err := scale.cmap.Legend(&dc, m.Units); err != nil {
			return fmt.Errorf("draw legend: %w", err)
		}
		imgdraw.Draw(img, image.Rect(0, top, barWidth, top+legendHeight), strip, image.Point{}, imgdraw.Src)
	}

	x := max(width-noDataWidth, 0) + margin
	sw := image.Rect(x, top+margin, x+12, top+margin+12)
	imgdraw.Draw(img, sw, image.NewUniform(NoDataColor), image.Point{}, imgdraw.Src)
	label(img, sw.Max.X+4, sw.Max.Y, "no data")
	return nil
}

// extent returns the union of the region bounding boxes.
func extent(s domain.RegionSet) geom.Bounds {
	b := geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, r := range s.Regions {
		rb := r.Bounds()
		b.Min.X = math.Min(b.Min.X, rb.Min.X)
		b.Min.Y = math.Min(b.Min.Y, rb.Min.Y)
		b.Max.X = math.Max(b.Max.X, rb.Max.X)
		b.Max.Y = math.Max(b.Max.Y, rb.Max.Y)
	}
	return b
}

func label(img *image.RGBA, x, y int, s string) {
	d := font.Drawer{
		Dst:  img,
		Src:  textColor,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
