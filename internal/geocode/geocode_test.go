package geocode

import (
	"errors"
	"testing"
)

type fixedGeocoder struct {
	loc Location
	err error
}

func (f fixedGeocoder) Locate(lat, lon float64) (Location, error) { return f.loc, f.err }

func TestLocationString(t *testing.T) {
	tests := []struct {
		loc      Location
		wantStr  string
		wantName string
	}{
		{Location{City: "Houston", Province: "Texas", Country: "United States of America"}, "Houston, Texas, United States of America", "Houston"},
		{Location{Province: "Ontario", Country: "Canada"}, "Ontario, Canada", "Ontario"},
		{Location{Country: "Chad"}, "Chad", "Chad"},
		{Location{}, "", ""},
	}
	for _, tt := range tests {
		if got := tt.loc.String(); got != tt.wantStr {
			t.Errorf("%+v.String() = %q, want %q", tt.loc, got, tt.wantStr)
		}
		if got := tt.loc.Name(); got != tt.wantName {
			t.Errorf("%+v.Name() = %q, want %q", tt.loc, got, tt.wantName)
		}
	}
}

func TestPlaceName(t *testing.T) {
	tests := []struct {
		name string
		g    Geocoder
		want string
	}{
		{"nil geocoder", nil, "fallback"},
		{"city", fixedGeocoder{loc: Location{City: "Lisbon", Country: "Portugal"}}, "Lisbon"},
		{"country only", fixedGeocoder{loc: Location{Country: "Portugal"}}, "Portugal"},
		{"not found", fixedGeocoder{err: ErrNotFound}, "fallback"},
		{"empty location", fixedGeocoder{}, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlaceName(tt.g, 38.7, -9.1, "fallback"); got != tt.want {
				t.Errorf("PlaceName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOfflineLocate(t *testing.T) {
	if testing.Short() {
		t.Skip("loads the bundled boundary data")
	}
	g, err := NewOffline()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		lat, lon    float64
		wantCountry string
	}{
		{"paris", 48.8566, 2.3522, "France"},
		{"tokyo", 35.6762, 139.6503, "Japan"},
		{"brasilia", -15.7939, -47.8828, "Brazil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := g.Locate(tt.lat, tt.lon)
			if err != nil {
				t.Fatal(err)
			}
			if loc.Country != tt.wantCountry {
				t.Errorf("country = %q, want %q", loc.Country, tt.wantCountry)
			}
		})
	}

	if _, err := g.Locate(0, -30); !errors.Is(err, ErrNotFound) {
		t.Errorf("mid-Atlantic Locate = %v, want ErrNotFound", err)
	}
	if _, err := g.Locate(95, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("out-of-range Locate = %v, want ErrNotFound", err)
	}
}
