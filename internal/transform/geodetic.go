package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid parameters (km).
const (
	wgs84A   = 6378.137                // semi-major axis
	wgs84F   = 1.0 / 298.257223563     // flattening
	wgs84B   = wgs84A * (1 - wgs84F)   // semi-minor axis
	wgs84E2  = wgs84F * (2 - wgs84F)   // first eccentricity squared
	wgs84Ep2 = wgs84E2 / (1 - wgs84E2) // second eccentricity squared
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Geodetic is a position relative to the WGS-84 ellipsoid.
type Geodetic struct {
	Lat float64 `json:"lat"` // degrees, [-90, 90]
	Lon float64 `json:"lon"` // degrees, [-180, 180]
	Alt float64 `json:"alt"` // km above the ellipsoid
}

// GeodeticToECEF converts a geodetic position to ECEF (km).
func GeodeticToECEF(g Geodetic) r3.Vec {
	lat := g.Lat * deg2rad
	lon := g.Lon * deg2rad

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return r3.Vec{
		X: (N + g.Alt) * cosLat * math.Cos(lon),
		Y: (N + g.Alt) * cosLat * math.Sin(lon),
		Z: (N*(1-wgs84E2) + g.Alt) * sinLat,
	}
}

// ECEFToGeodetic converts an ECEF position (km) to geodetic coordinates using
// Bowring's closed-form latitude. No iteration; sub-millimetre for anything
// below geostationary altitude.
//
// Height uses h = p·cosφ + z·sinφ − a·√(1 − e²·sin²φ), which stays finite on the
// polar axis where p/cosφ − N does not. Latitude is always within [-90, 90],
// including for points deep inside the Earth.
func ECEFToGeodetic(pos r3.Vec) Geodetic {
	lon := math.Atan2(pos.Y, pos.X)
	p := math.Hypot(pos.X, pos.Y)

	theta := math.Atan2(pos.Z*wgs84A, p*wgs84B)
	sinT, cosT := math.Sincos(theta)

	// Within ~43 km of the centre the denominator turns negative and atan2
	// would leave [-90, 90]; pin it so latitude saturates at the pole.
	den := math.Max(p-wgs84E2*wgs84A*cosT*cosT*cosT, 0)
	lat := math.Atan2(pos.Z+wgs84Ep2*wgs84B*sinT*sinT*sinT, den)

	sinLat, cosLat := math.Sincos(lat)
	alt := p*cosLat + pos.Z*sinLat - wgs84A*math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return Geodetic{
		Lat: lat * rad2deg,
		Lon: lon * rad2deg,
		Alt: alt,
	}
}

// WrapLongitudeDeg wraps a longitude in degrees to [-180, 180).
func WrapLongitudeDeg(lon float64) float64 {
	return euclidMod(lon+180.0, 360.0) - 180.0
}

// WrapLongitudeRad wraps a longitude in radians to [-π, π).
func WrapLongitudeRad(lon float64) float64 {
	return euclidMod(lon+math.Pi, 2*math.Pi) - math.Pi
}

func euclidMod(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}
