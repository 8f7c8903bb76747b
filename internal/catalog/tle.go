package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// TLE encodes the set as the two fixed-column lines of the NORAD two-line
// element format, checksums included. Fields that do not fit their columns
// (catalog numbers above 99999, |ṅ/2| >= 1, exponents beyond one digit, epochs
// outside 1957-2056) are an error rather than silently truncated.
func (e ElementSet) TLE() (line1, line2 string, err error) {
	if err := e.Validate(); err != nil {
		return "", "", err
	}
	if e.NoradCatID > 99999 {
		return "", "", fmt.Errorf("%w: catalog number %d does not fit the TLE format", ErrInvalidElements, e.NoradCatID)
	}

	epoch := e.Epoch.UTC()
	year := epoch.Year()
	if year < 1957 || year > 2056 {
		return "", "", fmt.Errorf("%w: epoch year %d outside the TLE range", ErrInvalidElements, year)
	}
	yearStart := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	dayOfYear := 1 + epoch.Sub(yearStart).Seconds()/86400.0

	ndot, err := formatDecimal(e.MeanMotionDot)
	if err != nil {
		return "", "", fmt.Errorf("%w: mean motion derivative: %v", ErrInvalidElements, err)
	}
	nddot, err := formatExponent(e.MeanMotionDDot)
	if err != nil {
		return "", "", fmt.Errorf("%w: mean motion second derivative: %v", ErrInvalidElements, err)
	}
	bstar, err := formatExponent(e.BStar)
	if err != nil {
		return "", "", fmt.Errorf("%w: bstar: %v", ErrInvalidElements, err)
	}

	class := "U"
	if len(e.ClassificationType) == 1 {
		class = e.ClassificationType
	}

	line1 = fmt.Sprintf("1 %05d%s %-8s %02d%012.8f %s %s %s 0 %4d",
		e.NoradCatID, class, designatorField(e.ObjectID),
		year%100, dayOfYear, ndot, nddot, bstar, e.ElementSetNo%10000)

	ecc := int(math.Round(e.Eccentricity * 1e7))
	if ecc > 9999999 {
		ecc = 9999999
	}
	line2 = fmt.Sprintf("2 %05d %8.4f %8.4f %07d %8.4f %8.4f %11.8f%5d",
		e.NoradCatID,
		normalizeDegrees(e.Inclination), normalizeDegrees(e.RAAN), ecc,
		normalizeDegrees(e.ArgOfPericenter), normalizeDegrees(e.MeanAnomaly),
		e.MeanMotion, e.RevAtEpoch%100000)

	if len(line1) != 68 || len(line2) != 68 {
		return "", "", fmt.Errorf("%w: encoded line length %d/%d", ErrInvalidElements, len(line1)+1, len(line2)+1)
	}

	return line1 + checksum(line1), line2 + checksum(line2), nil
}

// formatDecimal renders a value in the TLE's sign plus ".dddddddd" form.
func formatDecimal(v float64) (string, error) {
	sign := " "
	if v < 0 {
		sign = "-"
	}
	s := fmt.Sprintf("%.8f", math.Abs(v))
	if !strings.HasPrefix(s, "0.") {
		return "", fmt.Errorf("value %v out of range", v)
	}
	return sign + s[1:], nil
}

// formatExponent renders a value in the TLE's assumed-decimal exponent form,
// " 12345-3" meaning 0.12345e-3.
func formatExponent(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("value %v not finite", v)
	}
	sign := " "
	if v < 0 {
		sign = "-"
	}
	a := math.Abs(v)
	if a == 0 {
		return " 00000-0", nil
	}

	exp := int(math.Floor(math.Log10(a))) + 1
	mant := int(math.Round(a / math.Pow(10, float64(exp)) * 1e5))
	if mant >= 100000 {
		mant = 10000
		exp++
	}
	if exp < -9 {
		return " 00000-0", nil
	}
	if exp > 9 {
		return "", fmt.Errorf("value %v out of range", v)
	}

	expSign := "+"
	if exp < 0 {
		expSign = "-"
	}
	return fmt.Sprintf("%s%05d%s%d", sign, mant, expSign, abs(exp)), nil
}

// designatorField converts "1998-067A" to the TLE's "98067A" form.
// Unparseable designators are left blank.
func designatorField(id string) string {
	if len(id) < 9 || id[4] != '-' {
		return ""
	}
	s := id[2:4] + id[5:]
	if len(s) > 8 {
		return ""
	}
	return s
}

func normalizeDegrees(v float64) float64 {
	v = math.Mod(v, 360)
	if v < 0 {
		v += 360
	}
	if v >= 359.99995 {
		v = 0
	}
	return v
}

// checksum is the modulo-10 sum of all digits, with '-' counting as one.
func checksum(line string) string {
	sum := 0
	for _, c := range line {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return fmt.Sprintf("%d", sum%10)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
