package propagation

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/orbtrack/internal/catalog"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Pure Go, explicit TEME output, and ECIToECEF/GSTimeFromDate for
// cross-validation. It only reads two-line elements, so catalog records are
// encoded with catalog.ElementSet.TLE first.
//
// Note: Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected from the output (NaN/Inf, sub-surface
// positions) by Object.Predict.

// Model propagates a single element set. Positions are TEME kilometres,
// velocities TEME km/s.
type Model interface {
	Propagate(minutesSinceEpoch float64) (pos, vel r3.Vec, err error)
}

// ModelFactory builds a Model from an element set. Construction fails with an
// error wrapping ErrInvalidElements when the set cannot seed the model.
type ModelFactory interface {
	NewModel(e catalog.ElementSet) (Model, error)
}

// ModelFactoryFunc adapts a function to ModelFactory.
type ModelFactoryFunc func(e catalog.ElementSet) (Model, error)

// NewModel calls f(e).
func (f ModelFactoryFunc) NewModel(e catalog.ElementSet) (Model, error) { return f(e) }

// SGP4Factory builds go-satellite SGP4 models. The zero value uses the WGS72
// constants the element sets are fitted with.
type SGP4Factory struct {
	Gravity satellite.Gravity
}

// DefaultFactory is the factory used when none is injected.
var DefaultFactory ModelFactory = SGP4Factory{}

// NewModel encodes e as TLE lines and initializes SGP4.
func (f SGP4Factory) NewModel(e catalog.ElementSet) (m Model, err error) {
	line1, line2, err := e.TLE()
	if err != nil {
		return nil, err
	}

	grav := f.Gravity
	if grav == "" {
		grav = satellite.GravityWGS72
	}

	// go-satellite panics on fields it cannot parse; TLE() only emits
	// well-formed lines but a panic must not take the caller down.
	defer func() {
		if r := recover(); r != nil {
			m = nil
			err = fmt.Errorf("%w: sgp4 parse of NORAD %d: %v", ErrInvalidElements, e.NoradCatID, r)
		}
	}()

	sat := satellite.TLEToSat(line1, line2, grav)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init failed for NORAD %d: code=%d %s", ErrInvalidElements, e.NoradCatID, sat.Error, sat.ErrorStr)
	}
	return &sgp4Model{sat: sat, epoch: e.Epoch.UTC()}, nil
}

type sgp4Model struct {
	sat   satellite.Satellite
	epoch time.Time
}

// Propagate evaluates SGP4 at epoch + minutes. go-satellite takes calendar
// fields with whole seconds, so the instant is rounded to the nearest second.
func (m *sgp4Model) Propagate(minutes float64) (r3.Vec, r3.Vec, error) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return r3.Vec{}, r3.Vec{}, fmt.Errorf("%w: time offset %v", ErrPropagation, minutes)
	}

	t := m.epoch.Add(time.Duration(minutes * float64(time.Minute))).Round(time.Second)
	pos, vel := satellite.Propagate(m.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	return r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z}, r3.Vec{X: vel.X, Y: vel.Y, Z: vel.Z}, nil
}
