package domain

import (
	"testing"

	"github.com/ctessum/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionIndexLocate(t *testing.T) {
	set := fixtureRegions(t)
	idx := NewRegionIndex(set)

	assert.Equal(t, 0, idx.Locate(geom.Point{X: 500, Y: 500}))
	assert.Equal(t, 3, idx.Locate(geom.Point{X: 7500, Y: 3500}))
	assert.Equal(t, -1, idx.Locate(geom.Point{X: 9500, Y: 500}))
}

func TestRasterize(t *testing.T) {
	def := fixtureDef()

	t.Run("every cell belongs to one zone", func(t *testing.T) {
		z := Rasterize(def, fixtureRegions(t))
		for pos := 0; pos < 4; pos++ {
			assert.Equal(t, 8, z.Cells(pos))
		}
		assert.Equal(t, 1, z.At(3, 3))
		for _, a := range z.FootprintArea() {
			assert.Equal(t, 8e6, a)
		}
	})

	t.Run("overlap goes to the first region", func(t *testing.T) {
		set := fixtureRegions(t)
		set.Regions = append(set.Regions, &Region{
			Polygonal:     rect(0, 0, 8000, 4000),
			Name:          "whole coast",
			ReferenceArea: 32e6,
		})
		set.Regions[0], set.Regions[4] = set.Regions[4], set.Regions[0]

		z := Rasterize(def, set)
		assert.Equal(t, 32, z.Cells(0))
		assert.Equal(t, 0, z.Cells(1))
	})

	t.Run("cells outside all regions", func(t *testing.T) {
		set := fixtureRegions(t)
		set.Regions = set.Regions[:1]
		z := Rasterize(def, set)
		assert.Equal(t, 0, z.At(0, 0))
		assert.Equal(t, -1, z.At(0, 2))
	})
}

func TestConform(t *testing.T) {
	t.Run("same CRS passes through", func(t *testing.T) {
		set := fixtureRegions(t)
		got, err := set.Conform(testMercator, false)
		require.NoError(t, err)
		assert.Equal(t, set.Names(), got.Names())
		assert.Same(t, set.Regions[0], got.Regions[0])
	})

	t.Run("mismatch without reprojection", func(t *testing.T) {
		set := fixtureRegions(t)
		set.SR = mustSR(t, testLongLat)
		_, err := set.Conform(testMercator, false)
		assert.ErrorIs(t, err, ErrCRSMismatch)
	})

	t.Run("unknown CRS", func(t *testing.T) {
		set := fixtureRegions(t)
		set.SR = nil
		_, err := set.Conform(testMercator, true)
		assert.ErrorIs(t, err, ErrCRSMismatch)
	})

	t.Run("reprojects when allowed", func(t *testing.T) {
		set := RegionSet{
			SR: mustSR(t, testLongLat),
			Regions: []*Region{
				{Polygonal: rect(-125, 40, -124, 41), Name: "Northern California", ReferenceArea: 1e10},
			},
		}
		got, err := set.Conform(testMercator, true)
		require.NoError(t, err)
		require.Len(t, got.Regions, 1)
		assert.True(t, got.SR.Equal(mustSR(t, testMercator), 6))
		assert.Equal(t, 1e10, got.Regions[0].ReferenceArea)

		b := got.Regions[0].Bounds()
		assert.Less(t, b.Min.X, -1.3e7)
		assert.Greater(t, b.Min.Y, 4.8e6)
	})
}
