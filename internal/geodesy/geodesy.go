// Package geodesy converts UTM coordinates to WGS84 latitude/longitude and
// measures ellipsoidal distances between WGS84 points.
package geodesy

import (
	"fmt"
	"math"

	utm "github.com/im7mortal/UTM"
	"github.com/rotisserie/eris"
	"github.com/tidwall/geodesic"
	"github.com/twpayne/go-geom"
)

// SRID of WGS84 geographic coordinates.
const SRID = 4326

// coordScale keeps 6 decimal digits, roughly 0.1 m at the equator.
const coordScale = 1e6

// Hemisphere selects the northern or southern UTM false northing.
type Hemisphere string

const (
	North Hemisphere = "N"
	South Hemisphere = "S"
)

// ParseHemisphere accepts exactly "N" or "S".
func ParseHemisphere(s string) (Hemisphere, error) {
	switch Hemisphere(s) {
	case North, South:
		return Hemisphere(s), nil
	default:
		return "", eris.Errorf("geodesy: unknown hemisphere: %s", s)
	}
}

// LatLon is a WGS84 position in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Point returns the position as an XY (lon, lat) point with SRID 4326.
func (p LatLon) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}).SetSRID(SRID)
}

// LatString returns the latitude truncated and formatted to 6 decimals.
func (p LatLon) LatString() string { return FormatCoord(p.Lat) }

// LonString returns the longitude truncated and formatted to 6 decimals.
func (p LatLon) LonString() string { return FormatCoord(p.Lon) }

// Validate rejects non-finite coordinates and positions outside
// [-90, 90] x [-180, 180].
func (p LatLon) Validate() error {
	// Negated comparisons also reject NaN.
	if !(p.Lat >= -90 && p.Lat <= 90) {
		return eris.Errorf("geodesy: latitude %v out of range -90..90", p.Lat)
	}
	if !(p.Lon >= -180 && p.Lon <= 180) {
		return eris.Errorf("geodesy: longitude %v out of range -180..180", p.Lon)
	}
	return nil
}

func (p LatLon) String() string {
	return fmt.Sprintf("%s / %s", p.LatString(), p.LonString())
}

// Truncate floors v to 6 decimal places. Negative values move away from
// zero: -12.3456781 becomes -12.345679.
func Truncate(v float64) float64 {
	return math.Floor(v*coordScale) / coordScale
}

// FormatCoord truncates v and formats it with exactly 6 decimals, so
// 12.3456789 prints as "12.345678" rather than the rounded "12.345679".
func FormatCoord(v float64) string {
	return fmt.Sprintf("%.6f", Truncate(v))
}

// UTMToLatLon runs the inverse UTM projection on the WGS84 ellipsoid.
// Zone must be 1..60, easting within [100000, 1000000) m and northing within
// [0, 10000000] m. The result is truncated to 6 decimal places.
func UTMToLatLon(easting, northing float64, zone int, h Hemisphere) (LatLon, error) {
	if _, err := ParseHemisphere(string(h)); err != nil {
		return LatLon{}, err
	}
	if zone < 1 || zone > 60 {
		return LatLon{}, eris.Errorf("geodesy: utm zone %d out of range 1..60", zone)
	}
	if !isFinite(easting) || !isFinite(northing) {
		return LatLon{}, eris.Errorf("geodesy: utm coordinates must be finite, got (%v, %v)", easting, northing)
	}

	lat, lon, err := utm.ToLatLon(easting, northing, zone, "", h == North)
	if err != nil {
		return LatLon{}, eris.Wrapf(err, "geodesy: utm %d%s (%.3f, %.3f) to lat/lon", zone, h, easting, northing)
	}

	return LatLon{Lat: Truncate(lat), Lon: Truncate(lon)}, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Distance returns the geodesic distance in meters between a and b on the
// WGS84 ellipsoid. Azimuths are not computed.
func Distance(a, b LatLon) float64 {
	var s12 float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &s12, nil, nil)
	return s12
}
