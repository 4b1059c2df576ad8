package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placescout/api/internal/model"
)

func TestTiler_Coverage(t *testing.T) {
	tiler := NewTiler(0.01, 111000)
	anchors := []model.Point{
		{Lat: 0, Lng: 0},
		{Lat: 30.2672, Lng: -97.7431},
		{Lat: 59.9, Lng: 10.75},
	}
	radii := []int{100, 800, 2500, 5000, 12000}

	for _, anchor := range anchors {
		for _, r := range radii {
			cells := tiler.Cells(anchor, r, 5000)
			require.NotEmpty(t, cells)

			latSpan := tiler.LatDegrees(float64(r))
			lngSpan := tiler.LngDegrees(float64(r), anchor.Lat)

			// sample the disk in polar coordinates, including the boundary
			for ring := 0; ring <= 10; ring++ {
				frac := float64(ring) / 10
				for deg := 0; deg < 360; deg += 15 {
					theta := float64(deg) * math.Pi / 180
					p := model.Point{
						Lat: anchor.Lat + frac*latSpan*math.Sin(theta),
						Lng: anchor.Lng + frac*lngSpan*math.Cos(theta),
					}
					assert.LessOrEqual(t, nearestCellDistance(cells, p), tiler.Step/math.Sqrt2+1e-9,
						"gap at anchor=%v r=%d point=%v", anchor, r, p)
				}
			}
		}
	}
}

func TestTiler_LongitudeCorrection(t *testing.T) {
	tiler := NewTiler(0.01, 111000)

	atEquator := tiler.LngDegrees(1000, 0)
	at60 := tiler.LngDegrees(1000, 60)

	assert.Greater(t, at60, atEquator)
	assert.InDelta(t, 2.0, at60/atEquator, 1e-9)

	equatorCells := tiler.Cells(model.Point{Lat: 0, Lng: 0}, 5000, 5000)
	northCells := tiler.Cells(model.Point{Lat: 60, Lng: 0}, 5000, 5000)
	assert.Greater(t, len(northCells), len(equatorCells), "wider longitude span needs more columns")
}

func TestTiler_SingleCellForSmallRadius(t *testing.T) {
	tiler := NewTiler(0.01, 111000)
	anchor := model.Point{Lat: 48.8566, Lng: 2.3522}

	cells := tiler.Cells(anchor, 100, 5000)

	require.Len(t, cells, 1)
	assert.Equal(t, anchor, cells[0].Center)
	assert.Equal(t, 100, cells[0].Radius)
}

func TestTiler_RadiusCappedAtProviderMax(t *testing.T) {
	tiler := NewTiler(0.01, 111000)

	cells := tiler.Cells(model.Point{Lat: 10, Lng: 10}, 20000, 5000)
	require.NotEmpty(t, cells)
	for _, c := range cells {
		assert.Equal(t, 5000, c.Radius)
	}
}

func TestTiler_RowMajorOrder(t *testing.T) {
	tiler := NewTiler(0.01, 111000)

	cells := tiler.Cells(model.Point{Lat: 0, Lng: 0}, 2500, 5000)
	for i := 1; i < len(cells); i++ {
		prev, cur := cells[i-1].Center, cells[i].Center
		if cur.Lat == prev.Lat {
			assert.Greater(t, cur.Lng, prev.Lng, "west to east within a row")
		} else {
			assert.Greater(t, cur.Lat, prev.Lat, "rows south to north")
		}
	}
}

func TestDistanceMeters(t *testing.T) {
	a := model.Point{Lat: 0, Lng: 0}
	b := model.Point{Lat: 0.001, Lng: 0}

	assert.InDelta(t, 111.2, DistanceMeters(a, b), 0.5)
	assert.Zero(t, DistanceMeters(a, a))
}

func nearestCellDistance(cells []model.GridCell, p model.Point) float64 {
	best := math.Inf(1)
	for _, c := range cells {
		d := math.Hypot(c.Center.Lat-p.Lat, c.Center.Lng-p.Lng)
		if d < best {
			best = d
		}
	}
	return best
}
