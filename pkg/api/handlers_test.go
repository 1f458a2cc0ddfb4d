package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/osmtags"
)

// newFixtureModel builds a tiny two-road model by hand: three
// intersections in a line, start at (0,0) and end at (0, 0.001) about 111m
// north, matching the scale used by azybler-map_router's own fixture tests.
func newFixtureModel() *mapmodel.MapModel {
	m := &mapmodel.MapModel{
		StudyAreaID: "11111111-1111-1111-1111-111111111111",
		Intersections: []mapmodel.Intersection{
			{ID: 0, Lat: 0.0, Lon: 0.0},
			{ID: 1, Lat: 0.0005, Lon: 0.0},
			{ID: 2, Lat: 0.0010, Lon: 0.0},
		},
		ModalFilters:    make(map[mapmodel.RoadID]mapmodel.ModalFilter),
		DiagonalFilters: make(map[mapmodel.IntersectionID]mapmodel.DiagonalFilter),
		MainRoadPenalty: 1,
	}
	m.Roads = []mapmodel.Road{
		{
			ID: 0, Src: 0, Dst: 1, Kind: osmtags.KindResidential, Flow: mapmodel.FlowBoth,
			LengthM: 55, SpeedKMH: 30, Name: "First St",
			ShapeLat: []float64{0.0, 0.0005}, ShapeLon: []float64{0.0, 0.0},
		},
		{
			ID: 1, Src: 1, Dst: 2, Kind: osmtags.KindResidential, Flow: mapmodel.FlowBoth,
			LengthM: 55, SpeedKMH: 30, Name: "First St",
			ShapeLat: []float64{0.0005, 0.0010}, ShapeLon: []float64{0.0, 0.0},
		},
	}
	m.FirstOut = []uint32{0, 1, 3, 4}
	m.OutRoad = []mapmodel.RoadID{0, 0, 1, 1}
	m.OutFwd = []bool{true, false, true, false}
	m.BuildIndices()
	return m
}

func newTestHandlers() *Handlers {
	return NewHandlers(newFixtureModel(), nil, nil, nil)
}

func TestHandleRoute_Success(t *testing.T) {
	h := newTestHandlers()

	body := `{"start":{"lat":0.0,"lng":0.0},"end":{"lat":0.0010,"lng":0.0}}`
	req := httptest.NewRequest("POST", "/api/v1/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleRoute(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}

	var resp RouteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalDistanceMeters <= 0 {
		t.Errorf("TotalDistanceMeters = %f, want > 0", resp.TotalDistanceMeters)
	}
	if len(resp.Segments) != 1 {
		t.Errorf("Segments length = %d, want 1", len(resp.Segments))
	}
}

func TestHandleRoute_InvalidJSON(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest("POST", "/api/v1/route", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleRoute(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRoute_MissingContentType(t *testing.T) {
	h := newTestHandlers()

	body := `{"start":{"lat":0.0,"lng":0.0},"end":{"lat":0.0010,"lng":0.0}}`
	req := httptest.NewRequest("POST", "/api/v1/route", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.HandleRoute(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRoute_OutOfBounds(t *testing.T) {
	h := newTestHandlers()

	body := `{"start":{"lat":91.0,"lng":0.0},"end":{"lat":0.0010,"lng":0.0}}`
	req := httptest.NewRequest("POST", "/api/v1/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleRoute(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRoute_PointTooFar(t *testing.T) {
	h := newTestHandlers()

	body := `{"start":{"lat":45.0,"lng":90.0},"end":{"lat":0.0010,"lng":0.0}}`
	req := httptest.NewRequest("POST", "/api/v1/route", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.HandleRoute(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422. body: %s", w.Code, w.Body.String())
	}
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp HealthResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q, want 'ok'", resp.Status)
	}
}

func TestHandleStats(t *testing.T) {
	h := newTestHandlers()

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()

	h.HandleStats(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}

	var resp StatsResponse
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.NumIntersections != 3 {
		t.Errorf("NumIntersections = %d, want 3", resp.NumIntersections)
	}
	if resp.NumRoads != 2 {
		t.Errorf("NumRoads = %d, want 2", resp.NumRoads)
	}
}

func TestHandleAddModalFilterAndUndo(t *testing.T) {
	h := newTestHandlers()

	body := `{"road":0,"percent_along":0.5,"kind":"bollard"}`
	req := httptest.NewRequest("POST", "/api/v1/edit/modal-filter", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleAddModalFilter(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	if !h.history.StaleRouter() {
		t.Errorf("expected StaleRouter to be true after an edit")
	}

	undoReq := httptest.NewRequest("POST", "/api/v1/edit/undo", nil)
	undoW := httptest.NewRecorder()
	h.HandleUndo(undoW, undoReq)
	if undoW.Code != http.StatusOK {
		t.Fatalf("undo status = %d, want 200. body: %s", undoW.Code, undoW.Body.String())
	}
	if _, ok := h.model.ModalFilters[0]; ok {
		t.Errorf("expected modal filter to be removed after undo")
	}
}

func TestHandleListMovements(t *testing.T) {
	h := newTestHandlers()

	body := `{"intersection":1}`
	req := httptest.NewRequest("POST", "/api/v1/movements", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleListMovements(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	var moves []MovementJSON
	if err := json.Unmarshal(w.Body.Bytes(), &moves); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("len(moves) = %d, want 2 (road 0 -> road 1 and back)", len(moves))
	}
	for _, mv := range moves {
		if !mv.Allowed {
			t.Errorf("movement %+v should be allowed: no restrictions configured", mv)
		}
		if len(mv.Arrow) < 4 {
			t.Errorf("movement %+v should carry an arrow/thickened-line polygon", mv)
		}
	}
}

func TestHandleRoadsAlongLine(t *testing.T) {
	h := newTestHandlers()

	body := `{"line":[{"lat":0.0,"lng":0.0},{"lat":0.0005,"lng":0.0}]}`
	req := httptest.NewRequest("POST", "/api/v1/roads-along-line", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleRoadsAlongLine(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. body: %s", w.Code, w.Body.String())
	}
	var roads []uint32
	if err := json.Unmarshal(w.Body.Bytes(), &roads); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(roads) == 0 {
		t.Fatal("expected at least one matched road")
	}
	found := false
	for _, rid := range roads {
		if rid == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("roads = %v, want to include road 0 (the drawn line matches its geometry exactly)", roads)
	}
}
