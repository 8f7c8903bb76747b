package geometry

import (
	"math"
	"time"
)

// Window is a visibility interval.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// PassStep is the scan resolution of PassTimes.
const PassStep = time.Minute

// PassWindows scans [start, end] at step and returns the intervals during
// which elevation(t) >= 0. An interval opens at the first visible sample and
// closes at the first hidden one. One still open when the scan ends is closed
// at end itself, not at the last visible sample. NaN counts as hidden.
// start after end yields nil; a non-positive step means PassStep.
func PassWindows(start, end time.Time, step time.Duration, elevation func(time.Time) float64) []Window {
	if start.After(end) {
		return nil
	}
	if step <= 0 {
		step = PassStep
	}

	var windows []Window
	var open bool
	var opened time.Time

	for t := start; !t.After(end); t = t.Add(step) {
		visible := elevation(t) >= 0
		switch {
		case visible && !open:
			open = true
			opened = t
		case !visible && open:
			open = false
			windows = append(windows, Window{Start: opened, End: t})
		}
	}

	if open {
		windows = append(windows, Window{Start: opened, End: end})
	}
	return windows
}

// Elevation returns the object's elevation in degrees above the station's
// horizon at t, or NaN when it cannot be determined.
func Elevation(obj Predictor, station *GroundStation, t time.Time) float64 {
	st, err := obj.Predict(t)
	if err != nil {
		return math.NaN()
	}
	return station.Observer().LookAt(st.ECEF).ElevationDeg
}

// PassTimes returns the windows in [start, end] during which obj is above the
// station's horizon, at one-minute resolution.
func PassTimes(obj Predictor, station *GroundStation, start, end time.Time) []Window {
	return PassWindows(start, end, PassStep, func(t time.Time) float64 {
		return Elevation(obj, station, t)
	})
}
