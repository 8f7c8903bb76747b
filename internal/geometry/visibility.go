package geometry

import (
	"math"

	"github.com/star/orbtrack/internal/transform"
)

const (
	meanEarthRadiusKm = 6371.0088
	minCoverageAltKm  = 0.1
	coverageStepDeg   = 10
)

// VisibilityCircle returns the ring of ground points from which a body at pos
// is on the horizon, sampled every 10° of azimuth from -180 to 180 on a
// spherical Earth. The first and last points coincide so the ring is closed.
func VisibilityCircle(pos transform.Geodetic) []Point {
	alt := math.Max(pos.Alt, minCoverageAltKm)
	c := math.Acos(meanEarthRadiusKm / (meanEarthRadiusKm + alt))
	sinC, cosC := math.Sincos(c)

	lat0 := pos.Lat * deg2rad
	lon0 := pos.Lon * deg2rad
	sinLat0, cosLat0 := math.Sincos(lat0)

	points := make([]Point, 0, 360/coverageStepDeg+1)
	for azDeg := -180; azDeg <= 180; azDeg += coverageStepDeg {
		az := float64(azDeg) * deg2rad

		lat := math.Asin(sinLat0*cosC + cosLat0*sinC*math.Cos(az))
		y := math.Sin(az) * sinC * cosLat0
		x := cosC - sinLat0*math.Sin(lat)
		lon := lon0 + math.Atan2(y, x)

		points = append(points, Point{
			Lat: lat * rad2deg,
			Lon: transform.WrapLongitudeDeg(lon * rad2deg),
		})
	}
	return points
}

// CoverageRadiusKm returns the great-circle radius of the visibility circle
// for a body at altKm.
func CoverageRadiusKm(altKm float64) float64 {
	alt := math.Max(altKm, minCoverageAltKm)
	return meanEarthRadiusKm * math.Acos(meanEarthRadiusKm/(meanEarthRadiusKm+alt))
}
