package propagation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/star/orbtrack/internal/catalog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// ISS elements, epoch 2024-04-09 12:00 UTC.
var issElements = catalog.ElementSet{
	ObjectName:         "ISS (ZARYA)",
	ObjectID:           "1998-067A",
	Epoch:              time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC),
	MeanMotion:         15.5,
	Eccentricity:       0.0001,
	Inclination:        51.64,
	RAAN:               100,
	ArgOfPericenter:    0,
	MeanAnomaly:        0,
	ClassificationType: "U",
	NoradCatID:         25544,
	ElementSetNo:       900,
	BStar:              1.027e-4,
	MeanMotionDot:      1.6717e-4,
}

// Starlink-like elements (typical LEO constellation satellite).
var starlinkElements = catalog.ElementSet{
	ObjectName:      "STARLINK-1007",
	ObjectID:        "2019-074A",
	Epoch:           time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC),
	MeanMotion:      15.06,
	Eccentricity:    0.00015,
	Inclination:     53,
	RAAN:            200,
	ArgOfPericenter: 90,
	MeanAnomaly:     270,
	NoradCatID:      44713,
	BStar:           1e-5,
	MeanMotionDot:   1e-5,
}

// TestPredictISS verifies a real SGP4 prediction lands on a plausible ISS orbit.
func TestPredictISS(t *testing.T) {
	obj, err := NewObject(issElements, nil)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}

	if obj.Name() != "ISS (ZARYA)" || obj.CatalogNumber() != 25544 || obj.ID() != "1998-067A" {
		t.Errorf("unexpected identity: %q %d %q", obj.Name(), obj.CatalogNumber(), obj.ID())
	}
	// 86400 / 15.5 s.
	if math.Abs(obj.Period().Seconds()-5574.19) > 0.01 {
		t.Errorf("Period = %v, want ~92.9 min", obj.Period())
	}

	for m := 0; m < 24*60; m += 7 {
		ts := issElements.Epoch.Add(time.Duration(m) * time.Minute)
		st, err := obj.Predict(ts)
		if err != nil {
			t.Fatalf("Predict(+%dm): %v", m, err)
		}

		if st.Alt < 300 || st.Alt > 500 {
			t.Errorf("+%dm: altitude %.1f km outside ISS range", m, st.Alt)
		}
		if math.Abs(st.Lat) > 52 {
			t.Errorf("+%dm: latitude %.3f beyond inclination", m, st.Lat)
		}
		if st.Lon < -180 || st.Lon > 180 {
			t.Errorf("+%dm: longitude %.3f out of range", m, st.Lon)
		}
		if v := st.Speed(); v < 7.4 || v > 7.9 {
			t.Errorf("+%dm: speed %.3f km/s, expected ~7.66", m, v)
		}
		if !st.Time.Equal(ts) {
			t.Errorf("+%dm: state time %v, want %v", m, st.Time, ts)
		}
	}
}

// TestPredictBeforeEpoch verifies negative time offsets are supported.
func TestPredictBeforeEpoch(t *testing.T) {
	obj, err := NewObject(starlinkElements, nil)
	if err != nil {
		t.Fatalf("NewObject failed: %v", err)
	}
	st, err := obj.Predict(starlinkElements.Epoch.Add(-3 * time.Hour))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if st.Alt < 450 || st.Alt > 650 {
		t.Errorf("altitude %.1f km, expected ~550", st.Alt)
	}
}

// TestNewObjectInvalidElements verifies that unusable element sets are rejected.
func TestNewObjectInvalidElements(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*catalog.ElementSet)
	}{
		{"hyperbolic", func(e *catalog.ElementSet) { e.Eccentricity = 1.5 }},
		{"negative eccentricity", func(e *catalog.ElementSet) { e.Eccentricity = -0.1 }},
		{"zero mean motion", func(e *catalog.ElementSet) { e.MeanMotion = 0 }},
		{"missing epoch", func(e *catalog.ElementSet) { e.Epoch = time.Time{} }},
		{"unencodable catalog number", func(e *catalog.ElementSet) { e.NoradCatID = 300000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := issElements
			tt.mutate(&e)
			if _, err := NewObject(e, nil); !errors.Is(err, ErrInvalidElements) {
				t.Fatalf("err = %v, want ErrInvalidElements", err)
			}
		})
	}
}

func TestNewObjectFactoryError(t *testing.T) {
	factory := ModelFactoryFunc(func(catalog.ElementSet) (Model, error) {
		return nil, errors.New("model rejected")
	})
	if _, err := NewObject(issElements, factory); !errors.Is(err, ErrInvalidElements) {
		t.Fatalf("err = %v, want ErrInvalidElements", err)
	}
}

type fakeModel struct {
	pos, vel r3.Vec
	err      error
	minutes  []float64
}

func (m *fakeModel) Propagate(minutes float64) (r3.Vec, r3.Vec, error) {
	m.minutes = append(m.minutes, minutes)
	return m.pos, m.vel, m.err
}

func fakeFactory(m *fakeModel) ModelFactory {
	return ModelFactoryFunc(func(catalog.ElementSet) (Model, error) { return m, nil })
}

func TestPredictMinutesSinceEpoch(t *testing.T) {
	m := &fakeModel{pos: r3.Vec{X: 7000}, vel: r3.Vec{Y: 7.5}}
	obj, err := NewObject(issElements, fakeFactory(m))
	if err != nil {
		t.Fatal(err)
	}

	for _, off := range []time.Duration{0, 90 * time.Minute, -45 * time.Second} {
		if _, err := obj.Predict(issElements.Epoch.Add(off)); err != nil {
			t.Fatalf("Predict(%v): %v", off, err)
		}
	}

	want := []float64{0, 90, -0.75}
	for i, w := range want {
		if math.Abs(m.minutes[i]-w) > 1e-9 {
			t.Errorf("call %d: minutes = %v, want %v", i, m.minutes[i], w)
		}
	}
}

// TestPredictFailures verifies that bad model output is reported per call.
func TestPredictFailures(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"model error", &fakeModel{err: errors.New("decayed")}},
		{"NaN position", &fakeModel{pos: r3.Vec{X: math.NaN()}, vel: r3.Vec{Y: 7}}},
		{"Inf velocity", &fakeModel{pos: r3.Vec{X: 7000}, vel: r3.Vec{Y: math.Inf(1)}}},
		{"below surface", &fakeModel{pos: r3.Vec{X: 6000}, vel: r3.Vec{Y: 7}}},
		{"zero vector", &fakeModel{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := NewObject(issElements, fakeFactory(tt.model))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := obj.Predict(issElements.Epoch); !errors.Is(err, ErrPropagation) {
				t.Fatalf("err = %v, want ErrPropagation", err)
			}
			// The object remains usable after a failure.
			tt.model.pos, tt.model.vel, tt.model.err = r3.Vec{X: 7000}, r3.Vec{Y: 7.5}, nil
			if _, err := obj.Predict(issElements.Epoch); err != nil {
				t.Fatalf("Predict after failure: %v", err)
			}
		})
	}
}

func TestNewObjects(t *testing.T) {
	bad := issElements
	bad.NoradCatID = 99
	bad.Eccentricity = 2

	objects, rejected := NewObjects([]catalog.ElementSet{issElements, bad, starlinkElements}, nil, testLogger())
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
	if len(objects) != 2 || objects[0].CatalogNumber() != 25544 || objects[1].CatalogNumber() != 44713 {
		t.Errorf("unexpected objects: %d", len(objects))
	}
}

// TestWorkerPoolSnapshot verifies the worker pool processes a roster in order
// and skips failing objects.
func TestWorkerPoolSnapshot(t *testing.T) {
	iss, err := NewObject(issElements, nil)
	if err != nil {
		t.Fatal(err)
	}
	starlink, err := NewObject(starlinkElements, nil)
	if err != nil {
		t.Fatal(err)
	}
	broken, err := NewObject(issElements, fakeFactory(&fakeModel{err: errors.New("decayed")}))
	if err != nil {
		t.Fatal(err)
	}

	roster := []*Object{iss, broken, starlink, iss, starlink, iss}
	pool := NewWorkerPool(3, testLogger())

	target := issElements.Epoch.Add(2 * time.Hour)
	preds, failures := pool.Snapshot(context.Background(), roster, target)

	if failures != 1 {
		t.Errorf("failures = %d, want 1", failures)
	}
	if len(preds) != 5 {
		t.Fatalf("predictions = %d, want 5", len(preds))
	}

	wantIdx := []int{0, 2, 3, 4, 5}
	for i, p := range preds {
		if p.Index != wantIdx[i] {
			t.Errorf("prediction %d has index %d, want %d", i, p.Index, wantIdx[i])
		}
		if p.Object != roster[p.Index] {
			t.Errorf("prediction %d object mismatch", i)
		}
		direct, err := roster[p.Index].Predict(target)
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(direct.Lat-p.State.Lat) > 1e-12 || math.Abs(direct.Lon-p.State.Lon) > 1e-12 {
			t.Errorf("prediction %d differs from direct Predict", i)
		}
	}
}

func TestWorkerPoolEmpty(t *testing.T) {
	preds, failures := NewWorkerPool(2, testLogger()).Snapshot(context.Background(), nil, time.Now())
	if preds != nil || failures != 0 {
		t.Errorf("empty snapshot = %v, %d", preds, failures)
	}
}
