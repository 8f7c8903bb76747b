package transform

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"
)

// TestJulianDate verifies our Julian Date calculation against known values.
func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{
			name:     "J2000.0 epoch",
			time:     time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			expected: 2451545.0,
		},
		{
			name:     "Unix epoch",
			time:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 2440587.5,
		},
		{
			// Vallado Example 3-15: April 6, 2004, 07:51:28.386 UTC
			name:     "Vallado example date",
			time:     time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC),
			expected: 2453101.827411875,
		},
		{
			name:     "non-UTC location",
			time:     time.Date(2000, 1, 1, 14, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
			expected: 2451545.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.time)
			diff := math.Abs(got - tt.expected)
			if diff > 1e-6 {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f (diff=%.2e)", tt.time, got, tt.expected, diff)
			}
		})
	}
}

func TestJulianDateTT(t *testing.T) {
	ts := time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC)
	got := (JulianDateTT(ts) - JulianDate(ts)) * secondsPerDay
	if math.Abs(got-69.184) > 1e-3 {
		t.Errorf("TT-UTC = %.4f s, want 69.184", got)
	}
}

// TestGMSTPolynomial validates the GMST polynomial against go-satellite's
// GSTimeFromDate, which evaluates the equivalent IAU-82 expression in seconds.
// Both are fed the same UTC Julian Date so the comparison isolates the formula.
func TestGMSTPolynomial(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
	}{
		{
			name: "J2000.0 epoch",
			time: time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "Vallado example date",
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC), // integer seconds for library compat
		},
		{
			name: "recent date 2026",
			time: time.Date(2026, 2, 6, 4, 1, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			our := GMSTFromJulian(JulianDate(tt.time))
			ref := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)

			diff := angleDiff(our, ref)
			// 1e-8 radians ≈ 0.002 arcsec.
			if diff > 1e-8 {
				t.Errorf("GMST(%v) = %.12f rad, go-satellite = %.12f rad (diff=%.2e)", tt.time, our, ref, diff)
			}
		})
	}
}

func TestGMSTRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 200; i++ {
		ts := start.Add(time.Duration(i) * 97 * time.Minute)
		g := GMST(ts)
		if g < 0 || g >= 2*math.Pi {
			t.Fatalf("GMST(%v) = %v, outside [0, 2π)", ts, g)
		}
	}
}

func TestGMSTSiderealPeriod(t *testing.T) {
	siderealDay := time.Duration(86164.0905 * float64(time.Second))
	for _, ts := range []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 10, 12, 0, 0, 0, time.UTC),
		time.Date(2031, 11, 3, 3, 17, 42, 0, time.UTC),
	} {
		diff := angleDiff(GMST(ts), GMST(ts.Add(siderealDay)))
		if diff >= 1e-6 {
			t.Errorf("GMST drift over one sidereal day at %v = %.2e rad", ts, diff)
		}
	}
}

// TestTEMEToECEF validates our TEME→ECEF transform against the go-satellite
// library's ECIToECEF function using the same GMST. Both use a GMST-only
// rotation, so they should agree to floating point precision.
func TestTEMEToECEF(t *testing.T) {
	tests := []struct {
		name string
		pos  r3.Vec
		time time.Time
	}{
		{
			// Vallado "Fundamentals of Astrodynamics" Example 3-15
			name: "Vallado example 3-15",
			pos:  r3.Vec{X: 5094.18016, Y: 6127.64465, Z: 6380.34453},
			time: time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		},
		{
			name: "LEO equatorial",
			pos:  r3.Vec{X: 6778.0},
			time: time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC),
		},
		{
			name: "LEO polar",
			pos:  r3.Vec{Z: 6978.0},
			time: time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gmst := satellite.GSTimeFromDate(
				tt.time.Year(), int(tt.time.Month()), tt.time.Day(),
				tt.time.Hour(), tt.time.Minute(), tt.time.Second(),
			)

			our := TEMEToECEF(tt.pos, gmst)
			ref := satellite.ECIToECEF(satellite.Vector3{X: tt.pos.X, Y: tt.pos.Y, Z: tt.pos.Z}, gmst)

			// 1 metre.
			const tolerance = 1e-3
			if math.Abs(our.X-ref.X) > tolerance || math.Abs(our.Y-ref.Y) > tolerance || math.Abs(our.Z-ref.Z) > tolerance {
				t.Errorf("position mismatch:\n  ours: %v\n  ref:  [%.6f, %.6f, %.6f]", our, ref.X, ref.Y, ref.Z)
			}

			if math.Abs(r3.Norm(our)-r3.Norm(tt.pos)) > 1e-9 {
				t.Errorf("rotation changed the radius: %v -> %v", r3.Norm(tt.pos), r3.Norm(our))
			}

			if !ValidateECEF(our) {
				t.Errorf("ECEF position failed validation: %v", our)
			}
		})
	}
}

// TestTEMEToECEFVelocity verifies the velocity transform includes Earth rotation correction.
func TestTEMEToECEFVelocity(t *testing.T) {
	// Prograde equatorial satellite at longitude 0°.
	s := StateTEME{
		Position: r3.Vec{X: 6778.0},
		Velocity: r3.Vec{Y: 7.5},
	}

	ecef := TEMEToECEFStateWithGMST(s, 0)

	if math.Abs(ecef.Position.X-6778.0) > 1e-9 {
		t.Errorf("X position: got %.6f, want 6778.0", ecef.Position.X)
	}

	// ω*R = 7.292115e-5 * 6778 ≈ 0.4943 km/s.
	expectedVY := 7.5 - OmegaEarth*6778.0
	if math.Abs(ecef.Velocity.Y-expectedVY) > 1e-9 {
		t.Errorf("VY: got %.6f km/s, want %.6f km/s", ecef.Velocity.Y, expectedVY)
	}
}

// TestValidateECEF tests the ECEF position validation function.
func TestValidateECEF(t *testing.T) {
	tests := []struct {
		name  string
		pos   r3.Vec
		valid bool
	}{
		{"LEO", r3.Vec{X: 6778}, true},
		{"GEO", r3.Vec{X: 42164}, true},
		{"lunar distance", r3.Vec{X: 384400}, true},
		{"below surface", r3.Vec{X: 5000}, false},
		{"NaN", r3.Vec{X: math.NaN()}, false},
		{"Inf", r3.Vec{X: math.Inf(1)}, false},
		{"zero", r3.Vec{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateECEF(tt.pos); got != tt.valid {
				t.Errorf("ValidateECEF(%v) = %v, want %v", tt.pos, got, tt.valid)
			}
		})
	}
}

// angleDiff is the absolute difference between two angles in radians,
// accounting for wrap at 2π.
func angleDiff(a, b float64) float64 {
	d := math.Abs(math.Mod(a-b, 2*math.Pi))
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
