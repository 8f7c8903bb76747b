// Package geometry derives display geometry from tracked objects: the
// day/night terminator, coverage circles, ground and sky tracks, and pass
// windows over a ground station. Everything here is synchronous and pure
// given its inputs.
package geometry

import (
	"fmt"
	"math"

	"github.com/star/orbtrack/internal/transform"
)

// Point is a geographic position in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// GroundStation is a named observer on the ellipsoid.
type GroundStation struct {
	Name     string             `json:"name"`
	Position transform.Geodetic `json:"position"`

	observer transform.Observer
}

// NewGroundStation validates the position and precomputes the observer frame.
func NewGroundStation(name string, pos transform.Geodetic) (*GroundStation, error) {
	if math.IsNaN(pos.Lat) || pos.Lat < -90 || pos.Lat > 90 {
		return nil, fmt.Errorf("ground station %q: latitude %v out of range", name, pos.Lat)
	}
	if math.IsNaN(pos.Lon) || pos.Lon < -180 || pos.Lon > 180 {
		return nil, fmt.Errorf("ground station %q: longitude %v out of range", name, pos.Lon)
	}
	if math.IsNaN(pos.Alt) || math.IsInf(pos.Alt, 0) {
		return nil, fmt.Errorf("ground station %q: altitude %v not finite", name, pos.Alt)
	}
	return &GroundStation{
		Name:     name,
		Position: pos,
		observer: transform.NewObserver(pos),
	}, nil
}

// Observer returns the station's precomputed observer frame.
func (g *GroundStation) Observer() transform.Observer {
	return g.observer
}
