// Package catalog retrieves orbital element sets for satellite groups from the
// CelesTrak GP service and keeps a per-group copy on disk.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// epochLayout is the OMM epoch format: ISO 8601 without a zone, always UTC.
// Parsing accepts any number of fractional digits.
const (
	epochLayout       = "2006-01-02T15:04:05"
	epochLayoutOutput = "2006-01-02T15:04:05.000000"
)

// ErrInvalidElements is returned by Validate for element sets SGP4 cannot use.
var ErrInvalidElements = errors.New("invalid element set")

// ElementSet is one record of the CelesTrak GP catalog in OMM JSON form.
// The same encoding is used on the wire and in cache files.
type ElementSet struct {
	ObjectName         string    `json:"OBJECT_NAME"`
	ObjectID           string    `json:"OBJECT_ID"`
	Epoch              time.Time `json:"-"`
	MeanMotion         float64   `json:"MEAN_MOTION"`  // rev/day
	Eccentricity       float64   `json:"ECCENTRICITY"` // dimensionless
	Inclination        float64   `json:"INCLINATION"`  // degrees
	RAAN               float64   `json:"RA_OF_ASC_NODE"`
	ArgOfPericenter    float64   `json:"ARG_OF_PERICENTER"`
	MeanAnomaly        float64   `json:"MEAN_ANOMALY"`
	EphemerisType      int       `json:"EPHEMERIS_TYPE"`
	ClassificationType string    `json:"CLASSIFICATION_TYPE"`
	NoradCatID         int       `json:"NORAD_CAT_ID"`
	ElementSetNo       int       `json:"ELEMENT_SET_NO"`
	RevAtEpoch         int       `json:"REV_AT_EPOCH"`
	BStar              float64   `json:"BSTAR"`
	MeanMotionDot      float64   `json:"MEAN_MOTION_DOT"`
	MeanMotionDDot     float64   `json:"MEAN_MOTION_DDOT"`
}

// MarshalJSON writes the epoch in OMM form with microsecond precision.
func (e ElementSet) MarshalJSON() ([]byte, error) {
	type plain ElementSet
	return json.Marshal(struct {
		plain
		Epoch string `json:"EPOCH"`
	}{
		plain: plain(e),
		Epoch: e.Epoch.UTC().Format(epochLayoutOutput),
	})
}

// UnmarshalJSON reads an OMM record. EPOCH carries no zone and is taken as UTC.
func (e *ElementSet) UnmarshalJSON(b []byte) error {
	type plain ElementSet
	aux := struct {
		*plain
		Epoch string `json:"EPOCH"`
	}{plain: (*plain)(e)}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	if aux.Epoch == "" {
		e.Epoch = time.Time{}
		return nil
	}
	epoch, err := ParseEpoch(aux.Epoch)
	if err != nil {
		return err
	}
	e.Epoch = epoch
	return nil
}

// ParseEpoch parses an OMM epoch string. A trailing zone designator is
// accepted; without one the value is UTC.
func ParseEpoch(s string) (time.Time, error) {
	t, err := time.ParseInLocation(epochLayout, s, time.UTC)
	if err == nil {
		return t, nil
	}
	if t2, err2 := time.Parse(time.RFC3339Nano, s); err2 == nil {
		return t2.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("parsing epoch %q: %w", s, err)
}

// Validate reports whether the set can seed a propagation model.
func (e ElementSet) Validate() error {
	switch {
	case e.Epoch.IsZero():
		return fmt.Errorf("%w: missing epoch", ErrInvalidElements)
	case !(e.MeanMotion > 0) || math.IsInf(e.MeanMotion, 0):
		return fmt.Errorf("%w: mean motion %v", ErrInvalidElements, e.MeanMotion)
	case !(e.Eccentricity >= 0 && e.Eccentricity < 1):
		return fmt.Errorf("%w: eccentricity %v", ErrInvalidElements, e.Eccentricity)
	case e.NoradCatID < 0:
		return fmt.Errorf("%w: catalog number %d", ErrInvalidElements, e.NoradCatID)
	}
	return nil
}

// Period returns the orbital period derived from the mean motion.
// Zero when the mean motion is not positive.
func (e ElementSet) Period() time.Duration {
	if !(e.MeanMotion > 0) {
		return 0
	}
	return time.Duration(86400.0 / e.MeanMotion * float64(time.Second))
}
