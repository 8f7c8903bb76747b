package geocode

import (
	"fmt"
	"math"

	"github.com/sams96/rgeo"
)

// Offline reverse-geocodes against Natural Earth boundaries bundled into
// the binary. Loading takes a few seconds; Locate is safe for concurrent
// use.
type Offline struct {
	r *rgeo.Rgeo
}

// NewOffline loads country, province and city boundaries.
func NewOffline() (*Offline, error) {
	r, err := rgeo.New(rgeo.Countries10, rgeo.Provinces10, rgeo.Cities10)
	if err != nil {
		return nil, fmt.Errorf("load geocoding data: %w", err)
	}
	return &Offline{r: r}, nil
}

// Locate returns the place containing lat, lon or ErrNotFound.
func (o *Offline) Locate(lat, lon float64) (Location, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 {
		return Location{}, fmt.Errorf("%w: invalid position %v, %v", ErrNotFound, lat, lon)
	}
	loc, err := o.r.ReverseGeocode([]float64{lon, lat})
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return Location{
		City:        loc.City,
		Province:    loc.Province,
		Country:     loc.Country,
		CountryCode: loc.CountryCode2,
	}, nil
}
