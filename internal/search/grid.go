package search

import (
	"math"

	"github.com/placescout/api/internal/model"
)

const (
	DefaultGridStep        = 0.01
	DefaultMetersPerDegree = 111000.0

	// keeps the longitude span finite near the poles
	minCosLat = 0.01
)

// Tiler lays a square grid of search cells over a circular search area.
type Tiler struct {
	Step            float64
	MetersPerDegree float64
}

// NewTiler returns a Tiler, substituting defaults for zero values.
func NewTiler(step, metersPerDegree float64) Tiler {
	if step <= 0 {
		step = DefaultGridStep
	}
	if metersPerDegree <= 0 {
		metersPerDegree = DefaultMetersPerDegree
	}
	return Tiler{Step: step, MetersPerDegree: metersPerDegree}
}

// LatDegrees converts a north-south distance to degrees of latitude.
func (t Tiler) LatDegrees(meters float64) float64 {
	return meters / t.MetersPerDegree
}

// LngDegrees converts an east-west distance at the given latitude to degrees of longitude.
func (t Tiler) LngDegrees(meters, lat float64) float64 {
	cos := math.Cos(lat * math.Pi / 180)
	if cos < minCosLat {
		cos = minCosLat
	}
	return meters / (t.MetersPerDegree * cos)
}

// Cells returns cell centers covering the disk of radius meters around anchor,
// ordered south to north, then west to east within a row. The grid is centered
// on the anchor and extends to the latitude and longitude bounds of the disk.
// Each cell carries min(radius, maxCallRadius) as its call radius.
func (t Tiler) Cells(anchor model.Point, radius, maxCallRadius int) []model.GridCell {
	callRadius := radius
	if maxCallRadius > 0 && callRadius > maxCallRadius {
		callRadius = maxCallRadius
	}

	kLat := t.halfSteps(t.LatDegrees(float64(radius)))
	kLng := t.halfSteps(t.LngDegrees(float64(radius), anchor.Lat))

	cells := make([]model.GridCell, 0, (2*kLat+1)*(2*kLng+1))
	for i := -kLat; i <= kLat; i++ {
		for j := -kLng; j <= kLng; j++ {
			cells = append(cells, model.GridCell{
				Center: model.Point{
					Lat: anchor.Lat + float64(i)*t.Step,
					Lng: anchor.Lng + float64(j)*t.Step,
				},
				Radius: callRadius,
			})
		}
	}
	return cells
}

// halfSteps is the number of steps needed on each side of the anchor so that
// every offset within span is at most half a step from a cell.
func (t Tiler) halfSteps(span float64) int {
	if span <= 0 {
		return 0
	}
	return int(math.Floor(span/t.Step + 0.5))
}
