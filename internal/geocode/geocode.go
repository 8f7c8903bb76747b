// Package geocode names the place under a geographic position: the
// sub-satellite point of a tracked object or an unnamed ground station.
package geocode

import (
	"errors"
	"strings"
)

// ErrNotFound is returned for positions outside every known region, such
// as open ocean.
var ErrNotFound = errors.New("no location found")

// Location is the named place at a position. Any field may be empty.
type Location struct {
	City        string `json:"city,omitempty"`
	Province    string `json:"province,omitempty"`
	Country     string `json:"country,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
}

// String joins the non-empty names from most to least specific.
func (l Location) String() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{l.City, l.Province, l.Country} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// Name is the most specific name available, or "".
func (l Location) Name() string {
	switch {
	case l.City != "":
		return l.City
	case l.Province != "":
		return l.Province
	default:
		return l.Country
	}
}

// Geocoder resolves a position in degrees to a Location.
type Geocoder interface {
	Locate(lat, lon float64) (Location, error)
}

// PlaceName names the place at lat, lon, falling back to fallback when g is
// nil or finds nothing there.
func PlaceName(g Geocoder, lat, lon float64, fallback string) string {
	if g == nil {
		return fallback
	}
	loc, err := g.Locate(lat, lon)
	if err != nil || loc.Name() == "" {
		return fallback
	}
	return loc.Name()
}
