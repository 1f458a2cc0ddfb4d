// Package edit exposes the reversible commands that mutate a MapModel's
// modal filters, diagonal filters, turn restrictions, travel flow, and
// main-road classification, tracked on an undo/redo stack.
package edit

import (
	"fmt"

	"github.com/azybler/ltn/pkg/geo"
	"github.com/azybler/ltn/pkg/mapmodel"
)

// Command is a reversible mutation of a MapModel.
type Command interface {
	apply(m *mapmodel.MapModel) error
	unapply(m *mapmodel.MapModel) error
}

// History owns one MapModel's undo/redo stacks. Mutations only ever happen
// through History.Do, so the stacks stay consistent with the model.
type History struct {
	m          *mapmodel.MapModel
	undo, redo []Command

	// staleRouter and staleCountsAfter mirror router_after/counts_after
	// going stale on any edit; staleCountsBefore only goes stale when a
	// baseline-affecting command runs (SetMainRoadPenalty, Reclassify).
	staleRouter      bool
	staleCountsAfter bool
	staleCountsBefore bool
}

// NewHistory wraps a freshly built MapModel. Called once, right after
// Component A finishes and applies pre-existing restrictions — at that
// point the undo/redo stacks start empty, since those are baseline state,
// not edits.
func NewHistory(m *mapmodel.MapModel) *History {
	return &History{m: m}
}

// StaleRouter reports whether the router must be rebuilt before the next
// post-edit query.
func (h *History) StaleRouter() bool { return h.staleRouter }

// StaleCountsAfter reports whether Impact's counts_after must be recomputed.
func (h *History) StaleCountsAfter() bool { return h.staleCountsAfter }

// StaleCountsBefore reports whether Impact's counts_before must be
// recomputed (only true after a baseline-affecting command).
func (h *History) StaleCountsBefore() bool { return h.staleCountsBefore }

// ClearStaleRouter is called once the router has actually been rebuilt.
func (h *History) ClearStaleRouter() { h.staleRouter = false }

// ClearStaleCountsAfter is called once Impact's counts_after has been
// recomputed against the rebuilt router.
func (h *History) ClearStaleCountsAfter() { h.staleCountsAfter = false }

// ClearStaleCountsBefore is called once Impact's counts_before has been
// recomputed against the new baseline.
func (h *History) ClearStaleCountsBefore() { h.staleCountsBefore = false }

// Do applies cmd, pushes it onto the undo stack, and clears the redo stack.
func (h *History) Do(cmd Command) error {
	if err := cmd.apply(h.m); err != nil {
		return err
	}
	h.undo = append(h.undo, cmd)
	h.redo = nil
	h.staleRouter = true
	h.staleCountsAfter = true
	if _, ok := cmd.(baselineCommand); ok {
		h.staleCountsBefore = true
	}
	return nil
}

// baselineCommand is implemented by commands that change the routing
// baseline (main road penalty, reclassification), forcing Impact's
// counts_before to be recomputed rather than just counts_after.
type baselineCommand interface {
	isBaseline()
}

// Undo reverses the most recent command, moving it to the redo stack.
func (h *History) Undo() error {
	if len(h.undo) == 0 {
		return fmt.Errorf("edit: nothing to undo")
	}
	n := len(h.undo) - 1
	cmd := h.undo[n]
	h.undo = h.undo[:n]
	if err := cmd.unapply(h.m); err != nil {
		return err
	}
	h.redo = append(h.redo, cmd)
	h.staleRouter = true
	h.staleCountsAfter = true
	return nil
}

// Redo re-applies the most recently undone command.
func (h *History) Redo() error {
	if len(h.redo) == 0 {
		return fmt.Errorf("edit: nothing to redo")
	}
	n := len(h.redo) - 1
	cmd := h.redo[n]
	h.redo = h.redo[:n]
	if err := cmd.apply(h.m); err != nil {
		return err
	}
	h.undo = append(h.undo, cmd)
	h.staleRouter = true
	h.staleCountsAfter = true
	return nil
}

// --- AddModalFilter / RemoveModalFilter / SetModalFilterKind ---

type addModalFilter struct {
	road mapmodel.RoadID
	frac float64
	kind string
	had  bool
	prev mapmodel.ModalFilter
}

// AddModalFilter places a modal filter on road at percent_along, replacing
// any existing filter on that road.
func AddModalFilter(road mapmodel.RoadID, percentAlong float64, kind string) Command {
	return &addModalFilter{road: road, frac: percentAlong, kind: kind}
}

func (c *addModalFilter) apply(m *mapmodel.MapModel) error {
	if int(c.road) >= len(m.Roads) {
		return fmt.Errorf("edit: road %d does not exist", c.road)
	}
	c.prev, c.had = m.ModalFilters[c.road]
	m.ModalFilters[c.road] = mapmodel.ModalFilter{Road: c.road, Frac: c.frac, Kind: c.kind}
	return nil
}

func (c *addModalFilter) unapply(m *mapmodel.MapModel) error {
	if c.had {
		m.ModalFilters[c.road] = c.prev
	} else {
		delete(m.ModalFilters, c.road)
	}
	return nil
}

type removeModalFilter struct {
	road mapmodel.RoadID
	had  bool
	prev mapmodel.ModalFilter
}

// RemoveModalFilter removes any modal filter on road.
func RemoveModalFilter(road mapmodel.RoadID) Command {
	return &removeModalFilter{road: road}
}

func (c *removeModalFilter) apply(m *mapmodel.MapModel) error {
	c.prev, c.had = m.ModalFilters[c.road]
	delete(m.ModalFilters, c.road)
	return nil
}

func (c *removeModalFilter) unapply(m *mapmodel.MapModel) error {
	if c.had {
		m.ModalFilters[c.road] = c.prev
	}
	return nil
}

type setModalFilterKind struct {
	road mapmodel.RoadID
	kind string
	prev string
}

// SetModalFilterKind changes the kind of an existing modal filter on road.
func SetModalFilterKind(road mapmodel.RoadID, kind string) Command {
	return &setModalFilterKind{road: road, kind: kind}
}

func (c *setModalFilterKind) apply(m *mapmodel.MapModel) error {
	f, ok := m.ModalFilters[c.road]
	if !ok {
		return fmt.Errorf("edit: road %d has no modal filter", c.road)
	}
	c.prev = f.Kind
	f.Kind = c.kind
	m.ModalFilters[c.road] = f
	return nil
}

func (c *setModalFilterKind) unapply(m *mapmodel.MapModel) error {
	f := m.ModalFilters[c.road]
	f.Kind = c.prev
	m.ModalFilters[c.road] = f
	return nil
}

// --- AddDiagonalFilter / RemoveDiagonalFilter ---

type addDiagonalFilter struct {
	intersection  mapmodel.IntersectionID
	groupA, groupB []mapmodel.RoadID
	had           bool
	prev          mapmodel.DiagonalFilter
}

// AddDiagonalFilter partitions the roads incident to intersection into two
// groups; movement is only ever allowed within a group, never across.
func AddDiagonalFilter(intersection mapmodel.IntersectionID, groupA, groupB []mapmodel.RoadID) Command {
	return &addDiagonalFilter{intersection: intersection, groupA: groupA, groupB: groupB}
}

func (c *addDiagonalFilter) apply(m *mapmodel.MapModel) error {
	c.prev, c.had = m.DiagonalFilters[c.intersection]
	inA := make(map[mapmodel.RoadID]bool, len(c.groupA))
	for _, r := range c.groupA {
		inA[r] = true
	}
	m.DiagonalFilters[c.intersection] = mapmodel.DiagonalFilter{
		Intersection: c.intersection,
		Allows: func(from, to mapmodel.RoadID) bool {
			return inA[from] == inA[to]
		},
	}
	return nil
}

func (c *addDiagonalFilter) unapply(m *mapmodel.MapModel) error {
	if c.had {
		m.DiagonalFilters[c.intersection] = c.prev
	} else {
		delete(m.DiagonalFilters, c.intersection)
	}
	return nil
}

type removeDiagonalFilter struct {
	intersection mapmodel.IntersectionID
	had          bool
	prev         mapmodel.DiagonalFilter
}

// RemoveDiagonalFilter removes any diagonal filter at intersection.
func RemoveDiagonalFilter(intersection mapmodel.IntersectionID) Command {
	return &removeDiagonalFilter{intersection: intersection}
}

func (c *removeDiagonalFilter) apply(m *mapmodel.MapModel) error {
	c.prev, c.had = m.DiagonalFilters[c.intersection]
	delete(m.DiagonalFilters, c.intersection)
	return nil
}

func (c *removeDiagonalFilter) unapply(m *mapmodel.MapModel) error {
	if c.had {
		m.DiagonalFilters[c.intersection] = c.prev
	}
	return nil
}

// --- AddTurnRestriction / RemoveTurnRestriction ---

type turnKey struct {
	intersection mapmodel.IntersectionID
	from, to     mapmodel.RoadID
}

type addTurnRestriction struct {
	key turnKey
	had bool
}

// AddTurnRestriction forbids the from->to movement at intersection.
func AddTurnRestriction(intersection mapmodel.IntersectionID, from, to mapmodel.RoadID) Command {
	return &addTurnRestriction{key: turnKey{intersection, from, to}}
}

func (c *addTurnRestriction) apply(m *mapmodel.MapModel) error {
	tr := mapmodel.TurnRestriction{From: c.key.from, To: c.key.to, Via: c.key.intersection}
	for _, existing := range m.TurnRestrictions {
		if existing == tr {
			c.had = true
			return nil
		}
	}
	m.TurnRestrictions = append(m.TurnRestrictions, tr)
	return nil
}

func (c *addTurnRestriction) unapply(m *mapmodel.MapModel) error {
	if c.had {
		return nil
	}
	removeTurnRestriction(m, c.key)
	return nil
}

type removeTurnRestrictionCmd struct {
	key     turnKey
	removed bool
}

// RemoveTurnRestriction removes a previously added from->to restriction at
// intersection, if present.
func RemoveTurnRestriction(intersection mapmodel.IntersectionID, from, to mapmodel.RoadID) Command {
	return &removeTurnRestrictionCmd{key: turnKey{intersection, from, to}}
}

func (c *removeTurnRestrictionCmd) apply(m *mapmodel.MapModel) error {
	c.removed = removeTurnRestriction(m, c.key)
	return nil
}

func (c *removeTurnRestrictionCmd) unapply(m *mapmodel.MapModel) error {
	if !c.removed {
		return nil
	}
	tr := mapmodel.TurnRestriction{From: c.key.from, To: c.key.to, Via: c.key.intersection}
	m.TurnRestrictions = append(m.TurnRestrictions, tr)
	return nil
}

func removeTurnRestriction(m *mapmodel.MapModel, key turnKey) bool {
	for i, tr := range m.TurnRestrictions {
		if tr.From == key.from && tr.To == key.to && tr.Via == key.intersection {
			m.TurnRestrictions = append(m.TurnRestrictions[:i], m.TurnRestrictions[i+1:]...)
			return true
		}
	}
	return false
}

// --- SetTravelFlow ---

type setTravelFlow struct {
	road mapmodel.RoadID
	flow mapmodel.TravelFlow
	prev mapmodel.TravelFlow
}

// SetTravelFlow overrides road's travel direction.
func SetTravelFlow(road mapmodel.RoadID, flow mapmodel.TravelFlow) Command {
	return &setTravelFlow{road: road, flow: flow}
}

func (c *setTravelFlow) apply(m *mapmodel.MapModel) error {
	if int(c.road) >= len(m.Roads) {
		return fmt.Errorf("edit: road %d does not exist", c.road)
	}
	c.prev = m.Roads[c.road].Flow
	m.Roads[c.road].Flow = c.flow
	return nil
}

func (c *setTravelFlow) unapply(m *mapmodel.MapModel) error {
	m.Roads[c.road].Flow = c.prev
	return nil
}

// --- SetMainRoadPenalty ---

type setMainRoadPenalty struct {
	value float64
	prev  float64
}

// SetMainRoadPenalty sets the routing cost multiplier applied to roads in
// the severance set. A baseline-affecting command: it invalidates Impact's
// counts_before as well as counts_after.
func SetMainRoadPenalty(value float64) Command {
	return &setMainRoadPenalty{value: value}
}

func (c *setMainRoadPenalty) isBaseline() {}

func (c *setMainRoadPenalty) apply(m *mapmodel.MapModel) error {
	c.prev = m.MainRoadPenalty
	m.MainRoadPenalty = c.value
	return nil
}

func (c *setMainRoadPenalty) unapply(m *mapmodel.MapModel) error {
	m.MainRoadPenalty = c.prev
	return nil
}

// --- Reclassify ---

type reclassify struct {
	road       mapmodel.RoadID
	isMainRoad bool
	prev       bool
}

// Reclassify marks road as a main road (or not) for routing-penalty
// purposes, another baseline-affecting command.
func Reclassify(road mapmodel.RoadID, isMainRoad bool) Command {
	return &reclassify{road: road, isMainRoad: isMainRoad}
}

func (c *reclassify) isBaseline() {}

func (c *reclassify) apply(m *mapmodel.MapModel) error {
	if int(c.road) >= len(m.Roads) {
		return fmt.Errorf("edit: road %d does not exist", c.road)
	}
	c.prev = m.Roads[c.road].IsMainRoad
	m.Roads[c.road].IsMainRoad = c.isMainRoad
	return nil
}

func (c *reclassify) unapply(m *mapmodel.MapModel) error {
	m.Roads[c.road].IsMainRoad = c.prev
	return nil
}

// --- Movements ---

// movementArrowThicknessM is the arrow/thickened-line width in meters,
// matching movements.rs's get_movements (thickness = 2.0).
const movementArrowThicknessM = 2.0

// Movement is one ordered (from, to) pair through an intersection, tagged
// with whether it is currently allowed, and why not when it isn't, plus the
// arrow polygon a UI draws to represent it.
type Movement struct {
	From, To mapmodel.RoadID
	Allowed  bool
	// Reason is "turn_restriction", "diagonal_filter", or "" when Allowed.
	Reason string
	// ArrowLat/ArrowLon is a closed polygon ring (parallel lat/lon slices,
	// last point equal to the first) depicting the movement: an arrowhead
	// from a point 0.3 (or 0.7, depending on orientation) along From to the
	// matching point on To, or a plain thickened line when the roads are
	// too close together to fit an arrowhead.
	ArrowLat, ArrowLon []float64
}

// ListMovements enumerates every ordered pair of distinct roads incident to
// intersection, each tagged with its current allowed/forbidden status and an
// arrow polygon depicting it. This mirrors original_source/backend/src/
// movements.rs's get_movements: it phrases turn restrictions as named,
// drawable movements rather than raw (from, to) pairs, so a UI can list
// candidate restrictions before a user adds one with AddTurnRestriction or
// AddDiagonalFilter.
func ListMovements(m *mapmodel.MapModel, intersection mapmodel.IntersectionID) []Movement {
	start, end := m.EdgesFrom(intersection)
	incident := make([]mapmodel.RoadID, 0, end-start)
	for e := start; e < end; e++ {
		incident = append(incident, m.OutRoad[e])
	}

	pointNearIntersection := func(rid mapmodel.RoadID) (lat, lon float64) {
		r := &m.Roads[rid]
		frac := 0.7
		if r.Src == intersection {
			frac = 0.3
		}
		return geo.PointAlongLine(r.ShapeLat, r.ShapeLon, frac)
	}

	var out []Movement
	for _, from := range incident {
		for _, to := range incident {
			if from == to {
				continue
			}
			mv := Movement{From: from, To: to, Allowed: true}
			for _, tr := range m.TurnRestrictions {
				if tr.Via == intersection && tr.From == from && tr.To == to {
					mv.Allowed = false
					mv.Reason = "turn_restriction"
				}
			}
			if mv.Allowed {
				if df, ok := m.DiagonalFilters[intersection]; ok && df.Allows != nil && !df.Allows(from, to) {
					mv.Allowed = false
					mv.Reason = "diagonal_filter"
				}
			}

			fromLat, fromLon := pointNearIntersection(from)
			toLat, toLon := pointNearIntersection(to)
			if lats, lons, ok := geo.MakeArrow(fromLat, fromLon, toLat, toLon, movementArrowThicknessM); ok {
				mv.ArrowLat, mv.ArrowLon = lats, lons
			} else {
				mv.ArrowLat, mv.ArrowLon = geo.ThickenLine(fromLat, fromLon, toLat, toLon, movementArrowThicknessM)
			}

			out = append(out, mv)
		}
	}
	return out
}
