// Package transform provides coordinate frame transformations for orbiting objects.
//
// SGP4 outputs positions in TEME (True Equator Mean Equinox). Positions are rotated
// into ECEF (Earth-Centered Earth-Fixed) with GMST only (TEME → PEF ≈ ECEF), then
// converted to geodetic latitude/longitude/altitude on the WGS-84 ellipsoid. Polar
// motion and the equation of the equinoxes are ignored, which is well below the
// resolution of a ground-track display.
//
// All distances are kilometres, all velocities km/s.
//
// Reference: Vallado, "Fundamentals of Astrodynamics and Applications", Ch. 3.
package transform

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// StateTEME is a position and velocity in the TEME frame.
type StateTEME struct {
	Position r3.Vec // km
	Velocity r3.Vec // km/s
}

// StateECEF is a position and velocity in the ECEF frame.
type StateECEF struct {
	Position r3.Vec // km
	Velocity r3.Vec // km/s
}

// TEMEToECEF rotates a TEME position about the polar axis by −gmst (radians).
// z is unchanged.
func TEMEToECEF(pos r3.Vec, gmst float64) r3.Vec {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)
	return r3.Vec{
		X: cosG*pos.X + sinG*pos.Y,
		Y: -sinG*pos.X + cosG*pos.Y,
		Z: pos.Z,
	}
}

// TEMEToECEFState transforms a full TEME state at the given UTC time.
//
// Position transform: r_ECEF = R3(θ) * r_TEME
// Velocity transform: v_ECEF = R3(θ) * v_TEME - ω × r_ECEF
func TEMEToECEFState(s StateTEME, t time.Time) StateECEF {
	return TEMEToECEFStateWithGMST(s, GMST(t))
}

// TEMEToECEFStateWithGMST is TEMEToECEFState with a precomputed GMST angle,
// useful when many objects are transformed to the same instant.
func TEMEToECEFStateWithGMST(s StateTEME, gmst float64) StateECEF {
	pos := TEMEToECEF(s.Position, gmst)
	vRot := TEMEToECEF(s.Velocity, gmst)

	// ω × r_ECEF = [-ω*y, ω*x, 0]
	return StateECEF{
		Position: pos,
		Velocity: r3.Vec{
			X: vRot.X + OmegaEarth*pos.Y,
			Y: vRot.Y - OmegaEarth*pos.X,
			Z: vRot.Z,
		},
	}
}

// ValidateECEF checks that an ECEF position is physically reasonable for an
// Earth-orbiting object: finite and outside the ellipsoid's polar radius.
func ValidateECEF(pos r3.Vec) bool {
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) {
		return false
	}
	if math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return false
	}
	return r3.Norm(pos) >= wgs84B
}
