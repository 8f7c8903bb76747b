// Package passes summarizes the passes of tracked objects over a ground
// station: rise and set times and azimuths, peak elevation, and the ground
// track flown while visible.
package passes

import (
	"context"
	"errors"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/star/orbtrack/internal/geometry"
	"github.com/star/orbtrack/internal/propagation"
	"github.com/star/orbtrack/internal/transform"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`  // km
	Elevation float64   `json:"elevation"` // degrees above the station's horizon
}

// PassEvent describes a single pass over the station.
type PassEvent struct {
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth"`
	GroundTrack      []GroundTrackPoint `json:"ground_track"`
}

// ObjectPasses holds the predicted passes for one object.
type ObjectPasses struct {
	CatalogNumber int         `json:"norad_id"`
	Name          string      `json:"name"`
	Passes        []PassEvent `json:"passes"`
	Error         string      `json:"error,omitempty"`
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Station      *geometry.GroundStation
	Objects      []*propagation.Object
	Start        time.Time
	Horizon      time.Duration
	MinElevation float64 // degrees
	MaxPasses    int
}

const (
	coarseStep     = 30 * time.Second
	fineStep       = time.Second
	groundTrackSec = 10 // seconds between ground track samples
	minPassDur     = 10 * time.Second
)

var errNoPredictions = errors.New("no instant in the window could be propagated")

// Predict computes passes for every object in the request. Each object is
// processed in its own goroutine, bounded by a semaphore. A failing object
// reports its error without affecting the others.
func Predict(ctx context.Context, req Request) []ObjectPasses {
	results := make([]ObjectPasses, len(req.Objects))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, obj := range req.Objects {
		wg.Add(1)
		go func(idx int, o *propagation.Object) {
			defer wg.Done()

			results[idx] = ObjectPasses{CatalogNumber: o.CatalogNumber(), Name: o.Name()}

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx].Error = "cancelled"
				return
			}

			passes, err := predictObject(ctx, req, o)
			if err != nil {
				results[idx].Error = err.Error()
				return
			}
			results[idx].Passes = passes
		}(i, obj)
	}

	wg.Wait()
	return results
}

// sample is one evaluated instant.
type sample struct {
	ok    bool
	el    float64
	look  transform.LookAngles
	state propagation.State
}

func evaluate(obj *propagation.Object, obs transform.Observer, t time.Time) sample {
	st, err := obj.Predict(t)
	if err != nil {
		return sample{}
	}
	la := obs.LookAt(st.ECEF)
	if math.IsNaN(la.ElevationDeg) {
		return sample{}
	}
	if math.IsNaN(la.AzimuthDeg) {
		la.AzimuthDeg = 0 // straight overhead
	}
	return sample{ok: true, el: la.ElevationDeg, look: la, state: st}
}

// predictObject finds all passes for a single object: a coarse scan for
// windows above the minimum elevation, then a fine scan of each window.
func predictObject(ctx context.Context, req Request, obj *propagation.Object) ([]PassEvent, error) {
	obs := req.Station.Observer()
	end := req.Start.Add(req.Horizon)

	var anyOK bool
	windows := geometry.PassWindows(req.Start, end, coarseStep, func(t time.Time) float64 {
		if ctx.Err() != nil {
			return math.NaN()
		}
		s := evaluate(obj, obs, t)
		if !s.ok {
			return math.NaN()
		}
		anyOK = true
		return s.el - req.MinElevation
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if !anyOK {
		return nil, errNoPredictions
	}

	var passes []PassEvent
	for _, w := range windows {
		if req.MaxPasses > 0 && len(passes) >= req.MaxPasses {
			break
		}
		if ctx.Err() != nil {
			return passes, nil
		}

		from := w.Start.Add(-coarseStep)
		if from.Before(req.Start) {
			from = req.Start
		}
		pass := refine(ctx, obj, obs, from, w.End, req.MinElevation)
		if pass != nil && pass.EndTime.Sub(pass.StartTime) >= minPassDur {
			passes = append(passes, *pass)
		}
	}
	return passes, nil
}

// refine does a fine-grained scan of [from, to] around a coarse window and
// returns the pass it contains. A pass still above the minimum at to is
// closed there.
func refine(ctx context.Context, obj *propagation.Object, obs transform.Observer, from, to time.Time, minElev float64) *PassEvent {
	var (
		pass        PassEvent
		wasAbove    bool
		foundRise   bool
		groundTrack []GroundTrackPoint
	)

	for t := from; !t.After(to); t = t.Add(fineStep) {
		if ctx.Err() != nil {
			return nil
		}

		s := evaluate(obj, obs, t)
		if !s.ok {
			continue
		}
		above := s.el >= minElev

		if above && !wasAbove && !foundRise {
			foundRise = true
			pass.StartTime = t
			pass.StartAzimuth = s.look.AzimuthDeg
			pass.MaxElevation = s.el
			pass.MaxElevationTime = t
			pass.AzimuthAtMax = s.look.AzimuthDeg
		}

		if above && foundRise {
			if s.el > pass.MaxElevation {
				pass.MaxElevation = s.el
				pass.MaxElevationTime = t
				pass.AzimuthAtMax = s.look.AzimuthDeg
			}
			if int(t.Sub(pass.StartTime).Seconds())%groundTrackSec == 0 {
				groundTrack = append(groundTrack, GroundTrackPoint{
					Time:      t,
					Latitude:  s.state.Lat,
					Longitude: s.state.Lon,
					Altitude:  s.state.Alt,
					Elevation: s.el,
				})
			}
		}

		if !above && wasAbove && foundRise {
			pass.EndTime = t
			pass.EndAzimuth = s.look.AzimuthDeg
			break
		}

		wasAbove = above
		pass.EndAzimuth = s.look.AzimuthDeg
	}

	if !foundRise {
		return nil
	}
	if pass.EndTime.IsZero() {
		pass.EndTime = to
	}

	pass.DurationSeconds = pass.EndTime.Sub(pass.StartTime).Seconds()
	pass.GroundTrack = groundTrack
	return &pass
}
