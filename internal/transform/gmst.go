package transform

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// J2000 is the Julian Date of the J2000.0 epoch (January 1, 2000, 12:00:00 TT).
const J2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

const secondsPerDay = 86400.0

// Offsets between the UTC, TAI and TT time scales, in seconds.
const (
	taiMinusUTC = 37.0 // IERS Bulletin C, unchanged since 2017
	ttMinusTAI  = 32.184
)

// JulianDate converts a time.Time to a Julian Date on the UTC time scale.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// JulianDateTT converts a UTC instant to a Julian Date on the TT time scale.
func JulianDateTT(t time.Time) float64 {
	return JulianDate(t) + (taiMinusUTC+ttMinusTAI)/secondsPerDay
}

// GMST calculates Greenwich Mean Sidereal Time in radians for a given UTC time,
// normalized to [0, 2π).
func GMST(t time.Time) float64 {
	return GMSTFromJulian(JulianDateTT(t))
}

// GMSTFromJulian evaluates the GMST polynomial (Meeus eq. 12.4) for a Julian
// Date and returns radians in [0, 2π).
//
//	θ = 280.46061837 + 360.98564736629·d + 0.000387933·T² − T³/38710000
//
// where d is days since J2000.0 and T = d/36525 (Julian centuries).
func GMSTFromJulian(jd float64) float64 {
	d := jd - J2000
	T := d / 36525.0

	gmstDeg := 280.46061837 +
		360.98564736629*d +
		0.000387933*T*T -
		T*T*T/38710000.0

	gmstDeg = math.Mod(gmstDeg, 360.0)
	if gmstDeg < 0 {
		gmstDeg += 360.0
	}
	return gmstDeg * math.Pi / 180.0
}
