package model

import (
	"math"

	"github.com/sells-group/coordcheck/internal/geodesy"
)

// PointResult is the outcome of checking one data row against the center.
type PointResult struct {
	Line        int            `json:"line"`
	Name        string         `json:"name"`
	X           string         `json:"x"` // raw input, easting or longitude
	Y           string         `json:"y"` // raw input, northing or latitude
	Location    geodesy.LatLon `json:"location"`
	Distance    float64        `json:"distance_m"`
	MaxDistance float64        `json:"max_distance_m"`
}

// Exceeded reports whether the point lies strictly beyond the maximum
// distance. A NaN distance is never within the limit.
func (r PointResult) Exceeded() bool {
	return !(r.Distance <= r.MaxDistance)
}

// ExceededBy returns whole meters beyond the maximum, truncated toward zero.
// Zero when the point is within the limit or the excess is not finite.
func (r PointResult) ExceededBy() int {
	over := r.Distance - r.MaxDistance
	if !r.Exceeded() || math.IsNaN(over) || math.IsInf(over, 0) {
		return 0
	}
	return int(over)
}

// Summary counts the lines of one data file.
type Summary struct {
	LinesRead    int `json:"lines_read"`
	LinesParsed  int `json:"lines_parsed"`
	LinesOK      int `json:"lines_ok"`
	LinesError   int `json:"lines_error"`
	LinesSkipped int `json:"lines_skipped"` // malformed rows, part of LinesParsed
}
