package geometry

import (
	"math"
	"time"

	"github.com/star/orbtrack/internal/propagation"
)

// Predictor is the part of a tracked object the track functions need.
// *propagation.Object implements it.
type Predictor interface {
	Predict(t time.Time) (propagation.State, error)
	Period() time.Duration
}

const (
	skyTrackHalfWindow = 30 * time.Minute
	trackStep          = time.Minute
)

// GroundTrack returns the sub-satellite points one minute apart over the
// next orbit after t: minutes 1 through period-1. Instants the object cannot
// be propagated are skipped.
func GroundTrack(obj Predictor, t time.Time) []Point {
	minutes := int(obj.Period() / time.Minute)
	if minutes < 2 {
		return nil
	}

	points := make([]Point, 0, minutes-1)
	for m := 1; m < minutes; m++ {
		st, err := obj.Predict(t.Add(time.Duration(m) * trackStep))
		if err != nil {
			continue
		}
		points = append(points, Point{Lat: st.Lat, Lon: st.Lon})
	}
	return points
}

// SplitAntimeridian splits a track into runs that do not cross the ±180°
// meridian, so a renderer can draw each run as one polyline. A jump of more
// than 180° in longitude between consecutive points starts a new run.
func SplitAntimeridian(points []Point) [][]Point {
	if len(points) == 0 {
		return nil
	}

	var runs [][]Point
	start := 0
	for i := 1; i < len(points); i++ {
		if math.Abs(points[i].Lon-points[i-1].Lon) > 180 {
			runs = append(runs, points[start:i])
			start = i
		}
	}
	return append(runs, points[start:])
}

// SkyPoint is one sample of a sky track. R and Theta place it on a unit polar
// plot with the zenith at the centre and north up; X and Y are the same point
// in Cartesian form.
type SkyPoint struct {
	Time      time.Time `json:"time"`
	Azimuth   float64   `json:"azimuth"`   // degrees
	Elevation float64   `json:"elevation"` // degrees
	R         float64   `json:"r"`
	Theta     float64   `json:"theta"` // degrees, counter-clockwise from east
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
}

// SkyTrack returns the object's path across the station's sky from 30 minutes
// before t to 30 minutes after, one sample per minute, keeping only samples
// at or above the horizon.
func SkyTrack(obj Predictor, station *GroundStation, t time.Time) []SkyPoint {
	obs := station.Observer()

	var points []SkyPoint
	for off := -skyTrackHalfWindow; off <= skyTrackHalfWindow; off += trackStep {
		at := t.Add(off)
		st, err := obj.Predict(at)
		if err != nil {
			continue
		}

		la := obs.LookAt(st.ECEF)
		if math.IsNaN(la.ElevationDeg) || la.ElevationDeg < 0 {
			continue
		}

		// Straight overhead has no azimuth; the point is the plot centre.
		az := la.AzimuthDeg
		if math.IsNaN(az) {
			az = 0
		}

		r := 1 - la.ElevationDeg/90
		theta := 90 - az
		sinT, cosT := math.Sincos(theta * deg2rad)
		points = append(points, SkyPoint{
			Time:      at,
			Azimuth:   az,
			Elevation: la.ElevationDeg,
			R:         r,
			Theta:     theta,
			X:         r * cosT,
			Y:         r * sinT,
		})
	}
	return points
}
