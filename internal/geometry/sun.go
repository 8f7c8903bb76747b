package geometry

import (
	"math"
	"time"

	"github.com/star/orbtrack/internal/transform"
)

const (
	obliquityDeg      = 23.439
	terminatorStepDeg = 5
)

// SubsolarPoint returns the longitude, wrapped to (-π, π], and declination of
// the point where the Sun is at the zenith at t. Both in radians.
//
// Low-precision solar position (Astronomical Almanac), good to about 0.01°.
func SubsolarPoint(t time.Time) (lon, decl float64) {
	jd := transform.JulianDateTT(t)
	n := jd - transform.J2000

	meanLong := euclidMod(280.46+0.9856474*n, 360) * deg2rad
	meanAnom := (357.528 + 0.9856003*n) * deg2rad
	eclipLong := meanLong +
		1.915*deg2rad*math.Sin(meanAnom) +
		0.020*deg2rad*math.Sin(2*meanAnom)

	decl = math.Asin(math.Sin(obliquityDeg*deg2rad) * math.Sin(eclipLong))
	lon = wrapHalfOpenHigh(meanLong - transform.GMSTFromJulian(jd))
	return lon, decl
}

// Terminator samples the day/night boundary every 5° of longitude from -180
// to 180. At a declination of exactly zero the boundary is a meridian and
// every sample is skipped.
func Terminator(t time.Time) []Point {
	subLon, decl := SubsolarPoint(t)
	tanDecl := math.Tan(decl)

	points := make([]Point, 0, 360/terminatorStepDeg+1)
	for lonDeg := -180; lonDeg <= 180; lonDeg += terminatorStepDeg {
		lon := float64(lonDeg) * deg2rad
		ratio := -math.Cos(lon-subLon) / tanDecl
		if math.IsInf(ratio, 0) || math.IsNaN(ratio) {
			continue
		}
		points = append(points, Point{Lat: math.Atan(ratio) * rad2deg, Lon: float64(lonDeg)})
	}
	return points
}

// wrapHalfOpenHigh wraps radians to (-π, π].
func wrapHalfOpenHigh(x float64) float64 {
	return -transform.WrapLongitudeRad(-x)
}

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

func euclidMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}
