package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// horizontalEpsilon is the horizontal separation (km) below which the target is
// treated as straight above or below the observer.
const horizontalEpsilon = 1e-9

// Observer holds a ground observer's location in both geodetic and ECEF frames,
// plus the ENU rotation terms. Computed once and reused across many lookups.
type Observer struct {
	Geodetic Geodetic
	ECEF     r3.Vec

	sinLat, cosLat float64
	sinLon, cosLon float64
}

// LookAngles holds azimuth, elevation, and range from observer to target.
// Azimuth and elevation are NaN where undefined; see AzimuthElevation.
type LookAngles struct {
	AzimuthDeg   float64 // 0 = North, clockwise, [0, 360)
	ElevationDeg float64 // 0 = horizon, 90 = zenith
	RangeKm      float64
}

// NewObserver precomputes the ECEF position and ENU rotation for g.
func NewObserver(g Geodetic) Observer {
	sinLat, cosLat := math.Sincos(g.Lat * deg2rad)
	sinLon, cosLon := math.Sincos(g.Lon * deg2rad)
	return Observer{
		Geodetic: g,
		ECEF:     GeodeticToECEF(g),
		sinLat:   sinLat,
		cosLat:   cosLat,
		sinLon:   sinLon,
		cosLon:   cosLon,
	}
}

// ENU rotates the ECEF vector from the observer to target into the observer's
// local East-North-Up frame.
func (o Observer) ENU(target r3.Vec) (east, north, up float64) {
	d := r3.Sub(target, o.ECEF)

	east = -o.sinLon*d.X + o.cosLon*d.Y
	north = -o.sinLat*o.cosLon*d.X - o.sinLat*o.sinLon*d.Y + o.cosLat*d.Z
	up = o.cosLat*o.cosLon*d.X + o.cosLat*o.sinLon*d.Y + o.sinLat*d.Z
	return east, north, up
}

// LookAt computes look angles from the observer to an ECEF target (km).
//
// When the target coincides with the observer both angles are NaN. When the
// horizontal separation is zero the elevation is ±90° and the azimuth is NaN.
// Callers must check with math.IsNaN before using the angles.
func (o Observer) LookAt(target r3.Vec) LookAngles {
	east, north, up := o.ENU(target)
	horizontal := math.Hypot(east, north)
	rng := math.Sqrt(horizontal*horizontal + up*up)

	if horizontal <= horizontalEpsilon {
		if up == 0 {
			return LookAngles{AzimuthDeg: math.NaN(), ElevationDeg: math.NaN(), RangeKm: rng}
		}
		return LookAngles{AzimuthDeg: math.NaN(), ElevationDeg: math.Copysign(90, up), RangeKm: rng}
	}

	az := math.Atan2(east, north) * rad2deg
	if az < 0 {
		az += 360
	}
	if az >= 360 {
		az -= 360
	}

	return LookAngles{
		AzimuthDeg:   az,
		ElevationDeg: math.Atan2(up, horizontal) * rad2deg,
		RangeKm:      rng,
	}
}

// AzimuthElevation returns the azimuth and elevation (degrees) of target as
// seen from observer. See Observer.LookAt for the NaN sentinels.
func AzimuthElevation(observer, target Geodetic) (az, el float64) {
	la := NewObserver(observer).LookAt(GeodeticToECEF(target))
	return la.AzimuthDeg, la.ElevationDeg
}
