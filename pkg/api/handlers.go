package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-playground/validator/v10"
	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"

	"github.com/azybler/ltn/internal/apperrors"
	"github.com/azybler/ltn/pkg/cache"
	"github.com/azybler/ltn/pkg/cells"
	"github.com/azybler/ltn/pkg/contextstore"
	"github.com/azybler/ltn/pkg/demand"
	"github.com/azybler/ltn/pkg/edit"
	"github.com/azybler/ltn/pkg/geojsonio"
	"github.com/azybler/ltn/pkg/impact"
	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/neighbourhood"
	"github.com/azybler/ltn/pkg/rendercells"
	"github.com/azybler/ltn/pkg/router"
	"github.com/azybler/ltn/pkg/shortcuts"
)

// Handlers owns the single MapModel, its edit history, and the two CH
// routers ("before" frozen at the last baseline change, "after" rebuilt on
// demand) this server exposes. All mutation of shared state goes through mu,
// since net/http serves each request on its own goroutine — the core
// packages themselves assume a single caller.
//
// Grounded on SoySergo-location_microservice's handler-struct-holding-
// usecases shape, adapted here to hold the core packages directly since this
// module has no separate usecase layer.
type Handlers struct {
	mu sync.RWMutex

	log       *zap.Logger
	validator *validator.Validate

	model         *mapmodel.MapModel
	history       *edit.History
	routerBefore  *router.Router
	routerAfter   *router.Router
	neighbourhood *neighbourhood.Neighbourhood
	impact        *impact.Impact
	demandModel   *demand.DemandModel

	store *contextstore.Store
	cache *cache.Cache
}

// NewHandlers wires a freshly built/loaded MapModel into a ready-to-serve
// Handlers. store and cache may be nil: both are optional collaborators per
// spec.md §1.
func NewHandlers(m *mapmodel.MapModel, log *zap.Logger, store *contextstore.Store, ch *cache.Cache) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	r := router.Build(m, log)
	return &Handlers{
		log:          log,
		validator:    validator.New(),
		model:        m,
		history:      edit.NewHistory(m),
		routerBefore: r,
		routerAfter:  r,
		impact:       impact.New(m),
		store:        store,
		cache:        ch,
	}
}

// SetDemandModel attaches a demand model loaded separately from the base
// MapModel (§D.4); left nil when a study area has no OD survey data.
func (h *Handlers) SetDemandModel(dm *demand.DemandModel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.demandModel = dm
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		h.log.Error("unclassified error", zap.Error(err))
		appErr = apperrors.ErrInternal
	}
	h.writeJSON(w, appErr.StatusCode, ErrorResponse{Error: appErr.Code, Message: appErr.Message, Details: appErr.Details})
}

func (h *Handlers) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Header.Get("Content-Type") != "application/json" {
		h.writeError(w, apperrors.InvalidInput("Content-Type must be application/json"))
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, apperrors.InvalidInput("invalid JSON body: "+err.Error()))
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		h.writeError(w, apperrors.InvalidInput("validation failed: "+err.Error()))
		return false
	}
	return true
}

// --- Route ---

// HandleRoute answers POST /api/v1/route against the current post-edit
// router, honoring StaleRouter per spec.md §7.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.history.StaleRouter() {
		h.writeError(w, apperrors.ErrStaleRouter)
		return
	}

	result, err := h.routerAfter.Route(r.Context(), router.LatLng{Lat: req.Start.Lat, Lng: req.Start.Lng}, router.LatLng{Lat: req.End.Lat, Lng: req.End.Lng})
	if err != nil {
		if err == router.ErrNoRoute {
			h.writeJSON(w, apperrors.ErrNoRoute.StatusCode, ErrorResponse{Error: apperrors.CodeNoRoute, Message: apperrors.ErrNoRoute.Message})
			return
		}
		if err == mapmodel.ErrPointTooFar {
			h.writeError(w, apperrors.New(apperrors.CodeGeometryDegenerate, "start or end point too far from any road", 422))
			return
		}
		h.writeError(w, err)
		return
	}

	segs := make([]SegmentJSON, len(result.Segments))
	for i, s := range result.Segments {
		geom := make([]LatLngJSON, len(s.Geometry))
		for j, p := range s.Geometry {
			geom[j] = LatLngJSON{Lat: p.Lat, Lng: p.Lng}
		}
		segs[i] = SegmentJSON{DistanceMeters: s.DistanceMeters, Geometry: geom}
	}
	h.writeJSON(w, http.StatusOK, RouteResponse{TotalDistanceMeters: result.TotalDistanceMeters, Segments: segs})
}

// HandleRoadsAlongLine answers POST /api/v1/roads-along-line, matching a
// free-hand-drawn line against the road network (§4.2-adjacent: an
// alternative to clicking individual roads one at a time).
func (h *Handlers) HandleRoadsAlongLine(w http.ResponseWriter, r *http.Request) {
	var req RoadsAlongLineRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	lats := make([]float64, len(req.Line))
	lons := make([]float64, len(req.Line))
	for i, p := range req.Line {
		lats[i], lons[i] = p.Lat, p.Lng
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	roads := h.model.RoadsAlongLine(lats, lons)
	out := make([]uint32, len(roads))
	for i, rid := range roads {
		out[i] = uint32(rid)
	}
	h.writeJSON(w, http.StatusOK, out)
}

// --- Edit commands ---

func (h *Handlers) doCommand(w http.ResponseWriter, cmd edit.Command) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.history.Do(cmd); err != nil {
		h.writeError(w, apperrors.InvalidInput(err.Error()))
		return
	}
	// Edit state changed: every cells/shortcuts cache key computed against
	// the previous state is now stale. Each GetOrCompute call mixes the
	// current edit state into its own key (EditStateKey), so a stale key
	// simply never gets hit again and ages out via TTL rather than needing
	// explicit invalidation here.
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleAddModalFilter answers POST /api/v1/edit/modal-filter.
func (h *Handlers) HandleAddModalFilter(w http.ResponseWriter, r *http.Request) {
	var req ModalFilterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.doCommand(w, edit.AddModalFilter(mapmodel.RoadID(req.Road), req.PercentAlong, req.Kind))
}

// HandleRemoveModalFilter answers DELETE /api/v1/edit/modal-filter.
func (h *Handlers) HandleRemoveModalFilter(w http.ResponseWriter, r *http.Request) {
	var req RoadRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.doCommand(w, edit.RemoveModalFilter(mapmodel.RoadID(req.Road)))
}

// HandleSetModalFilterKind answers POST /api/v1/edit/modal-filter-kind.
func (h *Handlers) HandleSetModalFilterKind(w http.ResponseWriter, r *http.Request) {
	var req SetModalFilterKindRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.doCommand(w, edit.SetModalFilterKind(mapmodel.RoadID(req.Road), req.Kind))
}

// HandleAddDiagonalFilter answers POST /api/v1/edit/diagonal-filter.
func (h *Handlers) HandleAddDiagonalFilter(w http.ResponseWriter, r *http.Request) {
	var req DiagonalFilterRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	groupA := make([]mapmodel.RoadID, len(req.GroupA))
	for i, v := range req.GroupA {
		groupA[i] = mapmodel.RoadID(v)
	}
	groupB := make([]mapmodel.RoadID, len(req.GroupB))
	for i, v := range req.GroupB {
		groupB[i] = mapmodel.RoadID(v)
	}
	h.doCommand(w, edit.AddDiagonalFilter(mapmodel.IntersectionID(req.Intersection), groupA, groupB))
}

// HandleRemoveDiagonalFilter answers DELETE /api/v1/edit/diagonal-filter.
func (h *Handlers) HandleRemoveDiagonalFilter(w http.ResponseWriter, r *http.Request) {
	var req IntersectionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.doCommand(w, edit.RemoveDiagonalFilter(mapmodel.IntersectionID(req.Intersection)))
}

// HandleAddTurnRestriction answers POST /api/v1/edit/turn-restriction.
func (h *Handlers) HandleAddTurnRestriction(w http.ResponseWriter, r *http.Request) {
	var req TurnRestrictionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.doCommand(w, edit.AddTurnRestriction(mapmodel.IntersectionID(req.Intersection), mapmodel.RoadID(req.From), mapmodel.RoadID(req.To)))
}

// HandleRemoveTurnRestriction answers DELETE /api/v1/edit/turn-restriction.
func (h *Handlers) HandleRemoveTurnRestriction(w http.ResponseWriter, r *http.Request) {
	var req TurnRestrictionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.doCommand(w, edit.RemoveTurnRestriction(mapmodel.IntersectionID(req.Intersection), mapmodel.RoadID(req.From), mapmodel.RoadID(req.To)))
}

var flowFromString = map[string]mapmodel.TravelFlow{
	"both":      mapmodel.FlowBoth,
	"forwards":  mapmodel.FlowForwardOnly,
	"backwards": mapmodel.FlowBackwardOnly,
}

// HandleSetTravelFlow answers POST /api/v1/edit/travel-flow.
func (h *Handlers) HandleSetTravelFlow(w http.ResponseWriter, r *http.Request) {
	var req TravelFlowRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	flow, ok := flowFromString[req.Flow]
	if !ok {
		h.writeError(w, apperrors.InvalidInput("unknown flow: "+req.Flow))
		return
	}
	h.doCommand(w, edit.SetTravelFlow(mapmodel.RoadID(req.Road), flow))
}

// HandleSetMainRoadPenalty answers POST /api/v1/edit/main-road-penalty.
func (h *Handlers) HandleSetMainRoadPenalty(w http.ResponseWriter, r *http.Request) {
	var req MainRoadPenaltyRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.doCommand(w, edit.SetMainRoadPenalty(req.Value))
}

// HandleReclassify answers POST /api/v1/edit/reclassify.
func (h *Handlers) HandleReclassify(w http.ResponseWriter, r *http.Request) {
	var req ReclassifyRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.doCommand(w, edit.Reclassify(mapmodel.RoadID(req.Road), req.IsMainRoad))
}

// HandleUndo answers POST /api/v1/edit/undo.
func (h *Handlers) HandleUndo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.history.Undo(); err != nil {
		h.writeError(w, apperrors.InvalidInput(err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleRedo answers POST /api/v1/edit/redo.
func (h *Handlers) HandleRedo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.history.Redo(); err != nil {
		h.writeError(w, apperrors.InvalidInput(err.Error()))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleRebuildRouter answers POST /api/v1/router/rebuild, the only way to
// clear StaleRouter; it also clears StaleCountsAfter/StaleCountsBefore (§7),
// as a successful HandleImpactRecalculate does.
func (h *Handlers) HandleRebuildRouter(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.routerAfter = router.Build(h.model, h.log)
	h.history.ClearStaleRouter()
	h.impact.InvalidateAfterEdits()
	h.history.ClearStaleCountsAfter()

	if h.history.StaleCountsBefore() {
		h.routerBefore = h.routerAfter
		h.impact.InvalidateBaseline()
		h.history.ClearStaleCountsBefore()
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// HandleListMovements answers POST /api/v1/movements.
func (h *Handlers) HandleListMovements(w http.ResponseWriter, r *http.Request) {
	var req IntersectionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	moves := edit.ListMovements(h.model, mapmodel.IntersectionID(req.Intersection))
	out := make([]MovementJSON, len(moves))
	for i, m := range moves {
		out[i] = MovementJSON{
			From: uint32(m.From), To: uint32(m.To), Allowed: m.Allowed, Reason: m.Reason,
			Arrow: geojsonio.LineStringCoords(m.ArrowLat, m.ArrowLon),
		}
	}
	h.writeJSON(w, http.StatusOK, out)
}

// --- Neighbourhood / cells / shortcuts / render ---

func boundaryLatLng(req BoundaryRequest) [][2]float64 {
	out := make([][2]float64, len(req.Boundary))
	for i, p := range req.Boundary {
		out[i] = [2]float64{p.Lat, p.Lng}
	}
	return out
}

// HandleSetNeighbourhood answers POST /api/v1/neighbourhood, recomputing the
// active boundary every downstream cells/shortcuts/render endpoint uses.
func (h *Handlers) HandleSetNeighbourhood(w http.ResponseWriter, r *http.Request) {
	var req BoundaryRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	nb, err := neighbourhood.New(h.model, boundaryLatLng(req))
	if err != nil {
		h.writeError(w, apperrors.InvalidInput(err.Error()))
		return
	}
	h.neighbourhood = nb
	h.writeJSON(w, http.StatusOK, nb.ToGeoJSON(h.model))
}

// HandleBoundaryStats answers GET /api/v1/neighbourhood/stats, the boundary
// population/area summary backed by pkg/contextstore (§D.3).
func (h *Handlers) HandleBoundaryStats(w http.ResponseWriter, r *http.Request) {
	studyAreaID := r.URL.Query().Get("study_area_id")

	h.mu.RLock()
	nb := h.neighbourhood
	store := h.store
	h.mu.RUnlock()

	if nb == nil {
		h.writeError(w, apperrors.InvalidInput("no neighbourhood boundary set"))
		return
	}
	if store == nil {
		h.writeError(w, apperrors.New(apperrors.CodeInternal, "context store not configured", http.StatusServiceUnavailable))
		return
	}

	stats, err := nb.Stats(r.Context(), store, studyAreaID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatsJSON{
		PopulationZones: stats.PopulationZones,
		TotalPopulation: stats.TotalPopulation,
		TotalAreaSqKm:   stats.TotalAreaSqKm,
		SkippedZones:    stats.SkippedZones,
	})
}

// PercentIntervalJSON mirrors cells.PercentInterval.
type PercentIntervalJSON struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type cellSummary struct {
	Roads        map[uint32]PercentIntervalJSON `json:"roads"`
	Disconnected bool                           `json:"disconnected"`
	Unimportant  bool                           `json:"unimportant"`
}

func summarizeCells(list []*cells.Cell) []cellSummary {
	out := make([]cellSummary, len(list))
	for i, c := range list {
		roads := make(map[uint32]PercentIntervalJSON, len(c.Roads))
		for rid, interval := range c.Roads {
			roads[uint32(rid)] = PercentIntervalJSON{Start: interval.Start, End: interval.End}
		}
		out[i] = cellSummary{Roads: roads, Disconnected: c.IsDisconnected(), Unimportant: c.Unimportant}
	}
	return out
}

// HandleCells answers GET /api/v1/cells, optionally memoized behind
// pkg/cache keyed on the current edit state (§4.8's recalculation policy).
func (h *Handlers) HandleCells(w http.ResponseWriter, r *http.Request) {
	hideUnimportant := r.URL.Query().Get("hide_unimportant") == "true"

	h.mu.RLock()
	nb := h.neighbourhood
	m := h.model
	c := h.cache
	h.mu.RUnlock()

	if nb == nil {
		h.writeError(w, apperrors.InvalidInput("no neighbourhood boundary set"))
		return
	}

	compute := func() ([]cellSummary, error) {
		return summarizeCells(cells.FindAll(m, nb, hideUnimportant)), nil
	}

	var out []cellSummary
	var err error
	if c != nil {
		key := cache.EditStateKey("cells", m.ModalFilters, m.DiagonalFilters, m.TurnRestrictions, m.MainRoadPenalty, hideUnimportant)
		out, err = cache.GetOrCompute(r.Context(), c, key, compute)
	} else {
		out, err = compute()
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleShortcuts answers GET /api/v1/shortcuts.
func (h *Handlers) HandleShortcuts(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	nb := h.neighbourhood
	m := h.model
	c := h.cache
	h.mu.RUnlock()

	if nb == nil {
		h.writeError(w, apperrors.InvalidInput("no neighbourhood boundary set"))
		return
	}

	compute := func() (map[uint32]int, error) {
		sc, err := shortcuts.Compute(m, nb)
		if err != nil {
			return nil, err
		}
		out := make(map[uint32]int, len(sc.CountPerRoad))
		for rid, n := range sc.CountPerRoad {
			out[uint32(rid)] = n
		}
		return out, nil
	}

	var out map[uint32]int
	var err error
	if c != nil {
		key := cache.EditStateKey("shortcuts", m.ModalFilters, m.DiagonalFilters, m.TurnRestrictions, m.MainRoadPenalty)
		out, err = cache.GetOrCompute(r.Context(), c, key, compute)
	} else {
		out, err = compute()
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleRenderCells answers GET /api/v1/render-cells.
func (h *Handlers) HandleRenderCells(w http.ResponseWriter, r *http.Request) {
	hideUnimportant := r.URL.Query().Get("hide_unimportant") == "true"

	h.mu.RLock()
	nb := h.neighbourhood
	m := h.model
	h.mu.RUnlock()

	if nb == nil {
		h.writeError(w, apperrors.InvalidInput("no neighbourhood boundary set"))
		return
	}

	list := cells.FindAll(m, nb, hideUnimportant)
	rc := rendercells.New(m, nb, list)
	h.writeJSON(w, http.StatusOK, rc.ToGeoJSON())
}

// --- Demand ---

// HandleDemandGeoJSON answers GET /api/v1/demand, the zone/desire-line
// supplement (§D.4).
func (h *Handlers) HandleDemandGeoJSON(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	dm := h.demandModel
	h.mu.RUnlock()

	if dm == nil {
		h.writeError(w, apperrors.InvalidInput("no demand model loaded"))
		return
	}
	h.writeJSON(w, http.StatusOK, dm.ToGeoJSON())
}

// --- Impact ---

// HandleImpactRecalculate answers POST /api/v1/impact/recalculate.
func (h *Handlers) HandleImpactRecalculate(w http.ResponseWriter, r *http.Request) {
	var req ImpactRequest
	if r.Header.Get("Content-Length") != "0" && r.ContentLength != 0 {
		if !h.decodeAndValidate(w, r, &req) {
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.history.StaleRouter() {
		h.writeError(w, apperrors.ErrStaleRouter)
		return
	}

	result, err := h.impact.Recalculate(r.Context(), h.model, h.routerBefore, h.routerAfter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.history.ClearStaleCountsAfter()
	h.history.ClearStaleCountsBefore()
	h.writeJSON(w, http.StatusOK, result)
}

// HandleImpactOnRoad answers POST /api/v1/impact/on-road.
func (h *Handlers) HandleImpactOnRoad(w http.ResponseWriter, r *http.Request) {
	var req RoadRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.history.StaleRouter() {
		h.writeError(w, apperrors.ErrStaleRouter)
		return
	}

	changed := h.impact.GetImpactsOnRoad(r.Context(), h.model, h.routerBefore, h.routerAfter, mapmodel.RoadID(req.Road))
	fc := geojson.NewFeatureCollection()
	for _, c := range changed {
		if c.Before != nil {
			fc.AddFeature(c.Before)
		}
		if c.After != nil {
			fc.AddFeature(c.After)
		}
	}
	h.writeJSON(w, http.StatusOK, fc)
}

// --- Health / stats ---

// HandleHealth answers GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats answers GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.writeJSON(w, http.StatusOK, StatsResponse{
		NumIntersections: h.model.NumIntersections(),
		NumRoads:         len(h.model.Roads),
		StudyAreaID:      h.model.StudyAreaID,
	})
}
