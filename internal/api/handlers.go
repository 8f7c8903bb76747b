package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/star/orbtrack/internal/catalog"
	"github.com/star/orbtrack/internal/geocode"
	"github.com/star/orbtrack/internal/geometry"
	"github.com/star/orbtrack/internal/groups"
	"github.com/star/orbtrack/internal/passes"
	"github.com/star/orbtrack/internal/propagation"
)

const (
	defaultPassHours = 24
	maxPassHours     = 72
	maxPassesPerCall = 20
)

type objectSummary struct {
	Index         int     `json:"index"`
	Name          string  `json:"name"`
	ID            string  `json:"id"`
	CatalogNumber int     `json:"norad_id"`
	Lat           float64 `json:"lat"`
	Lon           float64 `json:"lon"`
	Alt           float64 `json:"alt"`
	Speed         float64 `json:"speed"` // km/s
}

type objectsResponse struct {
	Time     time.Time       `json:"time"`
	Version  uint64          `json:"version"`
	Objects  []objectSummary `json:"objects"`
	Failures int             `json:"failures"`
}

type lookResponse struct {
	Azimuth   *float64 `json:"azimuth"`   // null straight overhead
	Elevation *float64 `json:"elevation"` // null at the station itself
	RangeKm   float64  `json:"range_km"`
}

type objectResponse struct {
	Index         int                `json:"index"`
	Version       uint64             `json:"version"`
	Name          string             `json:"name"`
	ID            string             `json:"id"`
	CatalogNumber int                `json:"norad_id"`
	Epoch         time.Time          `json:"epoch"`
	PeriodSeconds float64            `json:"period_seconds"`
	State         propagation.State  `json:"state"`
	Speed         float64            `json:"speed"`
	Look          *lookResponse      `json:"look,omitempty"`
	Location      *locationResponse  `json:"location,omitempty"` // absent over open ocean
	Elements      catalog.ElementSet `json:"elements"`
}

type locationResponse struct {
	geocode.Location
	Display string `json:"display"`
}

type terminatorResponse struct {
	Time     time.Time        `json:"time"`
	Subsolar geometry.Point   `json:"subsolar"`
	Points   []geometry.Point `json:"points"`
}

type passesResponse struct {
	Station      *geometry.GroundStation `json:"station"`
	Start        time.Time               `json:"start"`
	End          time.Time               `json:"end"`
	MinElevation float64                 `json:"min_elevation"`
	Windows      []geometry.Window       `json:"windows"`
	Passes       []passes.PassEvent      `json:"passes"`
	Error        string                  `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// queryTime parses the optional "time" query parameter (RFC 3339). It
// defaults to the server clock.
func (s *Server) queryTime(r *http.Request) (time.Time, error) {
	v := r.URL.Query().Get("time")
	if v == "" {
		return s.now().UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339", v)
	}
	return t.UTC(), nil
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return f, nil
}

func pathIndex(r *http.Request) (int, error) {
	v := r.PathValue("index")
	i, err := strconv.Atoi(v)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid index %q", v)
	}
	return i, nil
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"groups": s.groups.Entries()})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.changeSelection(w, r, s.groups.Select)
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s.changeSelection(w, r, s.groups.Deselect)
}

func (s *Server) changeSelection(w http.ResponseWriter, r *http.Request, change func(int) error) {
	i, err := pathIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := change(i); err != nil {
		switch {
		case errors.Is(err, groups.ErrUnknownGroup):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, groups.ErrClosed):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	entry, err := s.groups.Entry(i)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	status := http.StatusOK
	if entry.State == groups.Loading {
		status = http.StatusAccepted
	}
	writeJSON(w, status, entry)
}

func (s *Server) handleObjects(w http.ResponseWriter, r *http.Request) {
	t, err := s.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	roster, version := s.groups.Roster()
	preds, failures := s.pool.Snapshot(r.Context(), roster, t)

	resp := objectsResponse{
		Time:     t,
		Version:  version,
		Objects:  make([]objectSummary, 0, len(preds)),
		Failures: failures,
	}
	for _, p := range preds {
		resp.Objects = append(resp.Objects, summarize(p.Index, p.Object, p.State))
	}
	writeJSON(w, http.StatusOK, resp)
}

func summarize(i int, obj *propagation.Object, st propagation.State) objectSummary {
	return objectSummary{
		Index:         i,
		Name:          obj.Name(),
		ID:            obj.ID(),
		CatalogNumber: obj.CatalogNumber(),
		Lat:           st.Lat,
		Lon:           st.Lon,
		Alt:           st.Alt,
		Speed:         st.Speed(),
	}
}

// object resolves the {index} path value against the roster. With a
// "version" query parameter the index must come from that roster version.
func (s *Server) object(w http.ResponseWriter, r *http.Request) (*propagation.Object, groups.ObjectRef, bool) {
	i, err := pathIndex(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, groups.ObjectRef{}, false
	}

	ref := groups.ObjectRef{Index: i}
	if v := r.URL.Query().Get("version"); v != "" {
		ref.Version, err = strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid version %q", v))
			return nil, groups.ObjectRef{}, false
		}
	} else {
		_, ref.Version = s.groups.Roster()
	}

	obj, err := s.groups.Resolve(ref)
	switch {
	case errors.Is(err, groups.ErrStaleRef):
		writeError(w, http.StatusConflict, err.Error())
		return nil, ref, false
	case err != nil:
		writeError(w, http.StatusNotFound, err.Error())
		return nil, ref, false
	}
	return obj, ref, true
}

func (s *Server) requireStation(w http.ResponseWriter) bool {
	if s.station == nil {
		writeError(w, http.StatusNotFound, "no ground station configured")
		return false
	}
	return true
}

func lookAt(station *geometry.GroundStation, st propagation.State) *lookResponse {
	la := station.Observer().LookAt(st.ECEF)
	resp := &lookResponse{RangeKm: la.RangeKm}
	if !math.IsNaN(la.AzimuthDeg) {
		resp.Azimuth = &la.AzimuthDeg
	}
	if !math.IsNaN(la.ElevationDeg) {
		resp.Elevation = &la.ElevationDeg
	}
	return resp
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request) {
	t, err := s.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	obj, ref, ok := s.object(w, r)
	if !ok {
		return
	}

	st, err := obj.Predict(t)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := objectResponse{
		Index:         ref.Index,
		Version:       ref.Version,
		Name:          obj.Name(),
		ID:            obj.ID(),
		CatalogNumber: obj.CatalogNumber(),
		Epoch:         obj.Epoch(),
		PeriodSeconds: obj.Period().Seconds(),
		State:         st,
		Speed:         st.Speed(),
		Elements:      obj.Elements(),
	}
	if s.station != nil {
		resp.Look = lookAt(s.station, st)
	}
	resp.Location = s.locate(st)
	writeJSON(w, http.StatusOK, resp)
}

// locate names the place under st, or returns nil without a geocoder or
// when nothing is found there.
func (s *Server) locate(st propagation.State) *locationResponse {
	if s.geocoder == nil {
		return nil
	}
	loc, err := s.geocoder.Locate(st.Lat, st.Lon)
	if err != nil {
		if !errors.Is(err, geocode.ErrNotFound) {
			s.logger.Warn("reverse geocoding failed", "lat", st.Lat, "lon", st.Lon, "error", err)
		}
		return nil
	}
	return &locationResponse{Location: loc, Display: loc.String()}
}

func (s *Server) handleGroundTrack(w http.ResponseWriter, r *http.Request) {
	t, err := s.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	obj, _, ok := s.object(w, r)
	if !ok {
		return
	}

	segments := geometry.SplitAntimeridian(geometry.GroundTrack(obj, t))
	if segments == nil {
		segments = [][]geometry.Point{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"time": t, "segments": segments})
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	t, err := s.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	obj, _, ok := s.object(w, r)
	if !ok {
		return
	}

	st, err := obj.Predict(t)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"time":      t,
		"center":    geometry.Point{Lat: st.Lat, Lon: st.Lon},
		"radius_km": geometry.CoverageRadiusKm(st.Alt),
		"points":    geometry.VisibilityCircle(st.Geodetic),
	})
}

func (s *Server) handleSkyTrack(w http.ResponseWriter, r *http.Request) {
	t, err := s.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	obj, _, ok := s.object(w, r)
	if !ok || !s.requireStation(w) {
		return
	}

	points := geometry.SkyTrack(obj, s.station, t)
	if points == nil {
		points = []geometry.SkyPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"time": t, "station": s.station, "points": points})
}

func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	start, err := s.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	hours, err := queryFloat(r, "hours", defaultPassHours)
	if err != nil || hours <= 0 || hours > maxPassHours {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("hours must be in (0, %d]", maxPassHours))
		return
	}
	minEl, err := queryFloat(r, "min_elevation", 0)
	if err != nil || minEl < 0 || minEl >= 90 {
		writeError(w, http.StatusBadRequest, "min_elevation must be in [0, 90)")
		return
	}
	obj, _, ok := s.object(w, r)
	if !ok || !s.requireStation(w) {
		return
	}

	horizon := time.Duration(hours * float64(time.Hour))
	end := start.Add(horizon)

	windows := geometry.PassTimes(obj, s.station, start, end)
	if windows == nil {
		windows = []geometry.Window{}
	}
	res := passes.Predict(r.Context(), passes.Request{
		Station:      s.station,
		Objects:      []*propagation.Object{obj},
		Start:        start,
		Horizon:      horizon,
		MinElevation: minEl,
		MaxPasses:    maxPassesPerCall,
	})[0]

	resp := passesResponse{
		Station:      s.station,
		Start:        start,
		End:          end,
		MinElevation: minEl,
		Windows:      windows,
		Passes:       res.Passes,
		Error:        res.Error,
	}
	if resp.Passes == nil {
		resp.Passes = []passes.PassEvent{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTerminator(w http.ResponseWriter, r *http.Request) {
	t, err := s.queryTime(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lon, decl := geometry.SubsolarPoint(t)
	writeJSON(w, http.StatusOK, terminatorResponse{
		Time:     t,
		Subsolar: geometry.Point{Lat: decl * 180 / math.Pi, Lon: lon * 180 / math.Pi},
		Points:   geometry.Terminator(t),
	})
}
