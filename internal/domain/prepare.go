package domain

import (
	"errors"
	"fmt"
	"math"
)

// kelvinOffset converts Kelvin to degrees Celsius.
const kelvinOffset = 273.15

// MeanGrids returns the per-cell arithmetic mean of aligned grids. A NaN in
// any input yields NaN for that cell.
func MeanGrids(grids ...Grid) (Grid, error) {
	if len(grids) == 0 {
		return Grid{}, errors.New("mean of zero grids")
	}
	for i, g := range grids[1:] {
		if err := grids[0].Aligned(g.GridDef); err != nil {
			return Grid{}, precondition(ErrMisaligned, "grid %d vs grid 0: %v", i+1, err)
		}
	}

	out := grids[0].cloneEmpty()
	n := float64(len(grids))
	for k := range out.Data.Elements {
		var sum float64
		for _, g := range grids {
			sum += g.Data.Elements[k]
		}
		out.Data.Elements[k] = sum / n
	}
	return out, nil
}

// KelvinToCelsius returns a copy of g converted from Kelvin to °C.
func KelvinToCelsius(g Grid) Grid {
	return mapCells(g, func(v float64) float64 { return v - kelvinOffset })
}

// ElevationToDepth returns a copy of g with the sign flipped, turning
// elevation (negative below sea level) into depth (positive below sea level).
func ElevationToDepth(g Grid) Grid {
	return mapCells(g, func(v float64) float64 { return -v })
}

func mapCells(g Grid, fn func(float64) float64) Grid {
	out := g.cloneEmpty()
	for k, v := range g.Data.Elements {
		out.Data.Elements[k] = fn(v)
	}
	return out
}

// Resample maps src onto target using nearest-neighbour lookup: each target
// cell takes the value of the source cell containing its centre. Target cells
// whose centre lies outside src are NaN. The two grids must share a CRS.
func Resample(src Grid, target GridDef) (Grid, error) {
	same, err := SameCRS(src.CRS, target.CRS)
	if err != nil {
		return Grid{}, err
	}
	if !same {
		return Grid{}, precondition(ErrMisaligned, "resample from CRS %q to %q", src.CRS, target.CRS)
	}
	if src.Dx == 0 || src.Dy == 0 {
		return Grid{}, fmt.Errorf("resample: source resolution is zero")
	}

	out := NewGrid(target)
	for j := 0; j < target.Ny; j++ {
		for i := 0; i < target.Nx; i++ {
			c := target.CellCenter(j, i)
			si := int(math.Floor((c.X - src.X0) / src.Dx))
			sj := int(math.Floor((c.Y - src.Y0) / src.Dy))
			if si < 0 || sj < 0 || si >= src.Nx || sj >= src.Ny {
				continue
			}
			out.Set(src.At(sj, si), j, i)
		}
	}
	return out, nil
}
