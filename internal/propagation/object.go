// Package propagation turns catalog element sets into tracked objects whose
// geodetic state can be predicted at any instant.
package propagation

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/orbtrack/internal/catalog"
	"github.com/star/orbtrack/internal/metrics"
	"github.com/star/orbtrack/internal/transform"
)

var (
	// ErrInvalidElements is returned when an element set cannot seed a model.
	// It is the same value as catalog.ErrInvalidElements.
	ErrInvalidElements = catalog.ErrInvalidElements

	// ErrPropagation is returned when a prediction yields no usable state.
	ErrPropagation = errors.New("propagation failed")
)

// State is an object's predicted state at one instant. It is computed on
// demand and never stored.
type State struct {
	Time time.Time `json:"time"`
	// Lat, Lon (degrees) and Alt (km) on the WGS-84 ellipsoid.
	transform.Geodetic
	ECEF     r3.Vec `json:"-"`
	Velocity r3.Vec `json:"velocity"` // km/s, TEME frame
}

// Speed returns the magnitude of the velocity in km/s.
func (s State) Speed() float64 {
	return r3.Norm(s.Velocity)
}

// Object is a tracked object: one element set and the model built from it.
// Safe for concurrent Predict calls.
type Object struct {
	elements catalog.ElementSet
	model    Model
	period   time.Duration
}

// NewObject builds the propagation model for e. A nil factory means
// DefaultFactory.
func NewObject(e catalog.ElementSet, factory ModelFactory) (*Object, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("NORAD %d: %w", e.NoradCatID, err)
	}
	if factory == nil {
		factory = DefaultFactory
	}

	model, err := factory.NewModel(e)
	if err != nil {
		if !errors.Is(err, ErrInvalidElements) {
			err = fmt.Errorf("%w: %v", ErrInvalidElements, err)
		}
		return nil, fmt.Errorf("NORAD %d: %w", e.NoradCatID, err)
	}

	return &Object{
		elements: e,
		model:    model,
		period:   e.Period(),
	}, nil
}

// NewObjects builds objects for every valid set. Rejected sets are logged and
// counted, never fatal.
func NewObjects(sets []catalog.ElementSet, factory ModelFactory, logger *slog.Logger) ([]*Object, int) {
	objects := make([]*Object, 0, len(sets))
	var rejected int
	for _, e := range sets {
		obj, err := NewObject(e, factory)
		if err != nil {
			rejected++
			logger.Warn("skipping element set", "norad_id", e.NoradCatID, "name", e.ObjectName, "error", err)
			continue
		}
		objects = append(objects, obj)
	}
	if rejected > 0 {
		metrics.AddInvalidElements(rejected)
	}
	return objects, rejected
}

func (o *Object) Name() string                 { return o.elements.ObjectName }
func (o *Object) ID() string                   { return o.elements.ObjectID }
func (o *Object) CatalogNumber() int           { return o.elements.NoradCatID }
func (o *Object) Epoch() time.Time             { return o.elements.Epoch }
func (o *Object) Period() time.Duration        { return o.period }
func (o *Object) Elements() catalog.ElementSet { return o.elements }

// Predict returns the object's state at t.
func (o *Object) Predict(t time.Time) (State, error) {
	return o.predict(t, transform.GMST(t))
}

// predict is Predict with a precomputed GMST for t, so a batch at one instant
// computes it once.
func (o *Object) predict(t time.Time, gmst float64) (State, error) {
	minutes := t.Sub(o.elements.Epoch).Minutes()

	pos, vel, err := o.model.Propagate(minutes)
	if err != nil {
		if !errors.Is(err, ErrPropagation) {
			err = fmt.Errorf("%w: %v", ErrPropagation, err)
		}
		return State{}, fmt.Errorf("NORAD %d at %s: %w", o.CatalogNumber(), t.UTC().Format(time.RFC3339), err)
	}

	if !finite(vel) {
		return State{}, fmt.Errorf("NORAD %d: %w: velocity is NaN/Inf", o.CatalogNumber(), ErrPropagation)
	}

	ecef := transform.TEMEToECEF(pos, gmst)
	if !transform.ValidateECEF(ecef) {
		return State{}, fmt.Errorf("NORAD %d: %w: unphysical position %v", o.CatalogNumber(), ErrPropagation, pos)
	}

	return State{
		Time:     t,
		Geodetic: transform.ECEFToGeodetic(ecef),
		ECEF:     ecef,
		Velocity: vel,
	}, nil
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
