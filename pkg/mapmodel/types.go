// Package mapmodel owns the road network built from OpenStreetMap data:
// its CSR graph representation, spatial indices, edit-time overlays
// (modal filters, diagonal filters, turn restrictions), and binary
// serialization.
package mapmodel

import "github.com/azybler/ltn/pkg/osmtags"

// RoadID indexes into MapModel.Roads.
type RoadID uint32

// IntersectionID indexes into MapModel.Intersections.
type IntersectionID uint32

// TravelFlow describes which direction(s) of a road permit motor travel,
// independent of any modal filter placed on it.
type TravelFlow int

const (
	FlowBoth TravelFlow = iota
	FlowForwardOnly
	FlowBackwardOnly
)

// Road is one directed-or-bidirectional edge of the network, carrying both
// its routing weight and its full geometry for rendering.
type Road struct {
	ID         RoadID
	OSMWayID   int64
	Src, Dst   IntersectionID
	Kind       osmtags.RoadKind
	Flow       TravelFlow
	LengthM    float64
	SpeedKMH   float64
	Name       string
	ShapeLat   []float64 // full geometry including both endpoints
	ShapeLon   []float64
	Severance  osmtags.SeveranceKind
	// IsMainRoad marks a highway class of motorway/trunk/primary/secondary/
	// tertiary (or their _link variants) — the set that takes
	// MapModel.MainRoadPenalty during routing, independent of Severance
	// (which only governs neighbourhood-boundary detection).
	IsMainRoad bool
}

// Intersection is a graph node: either a genuine OSM junction or a
// synthetic node introduced by dog-leg collapsing.
type Intersection struct {
	ID       IntersectionID
	OSMNodeID int64
	Lat, Lon float64
	Synthetic bool // created by collapse_dog_legs rather than present in OSM
}

// ModalFilter blocks motor travel through a point on a road while still
// allowing active travel (bikes/pedestrians) — the core LTN intervention.
type ModalFilter struct {
	Road RoadID
	Frac float64 // 0..1 position along the road's geometry
	Kind string  // e.g. "bollard", "planter", "gate", "no_entry", "walk_cycle_only", "bus_gate"
}

// DiagonalFilter sits at an intersection and forbids specific movements
// while allowing others, modelling a diagonal closure.
type DiagonalFilter struct {
	Intersection IntersectionID
	// Allows reports whether movement from road `from` to road `to` through
	// this intersection is permitted. Left as a function per the
	// (deliberately unspecified) Open Question on U-turn handling.
	Allows func(from, to RoadID) bool
}

// TurnRestriction forbids a specific from-road → via-intersection → to-road
// movement, independent of any DiagonalFilter.
type TurnRestriction struct {
	From, To RoadID
	Via      IntersectionID
}

// MapModel is the full road network plus its current edit overlay.
type MapModel struct {
	StudyAreaID string // UUID stamped at build time

	Roads         []Road
	Intersections []Intersection

	// CSR adjacency: FirstOut[i]..FirstOut[i+1] are the indices into
	// OutRoad/OutFwd for edges leaving intersection i.
	FirstOut []uint32
	OutRoad  []RoadID // which Road this directed traversal uses
	OutFwd   []bool   // true if traversed Src->Dst, false if Dst->Src

	ModalFilters     map[RoadID]ModalFilter
	DiagonalFilters  map[IntersectionID]DiagonalFilter
	TurnRestrictions []TurnRestriction

	// OriginalModalFilters snapshots ModalFilters right after Build applies
	// pre-existing OSM restrictions (barriers, pedestrian ways, bus gates):
	// baseline state, not an edit, so it is never touched by undo/redo.
	OriginalModalFilters map[RoadID]ModalFilter

	// MainRoadPenalty is the routing cost multiplier applied to roads
	// where IsMainRoad is true; defaults to 1 (no penalty) until an edit
	// sets it.
	MainRoadPenalty float64

	roadIndex *roadRTree
	nodeIndex *nodeRTree
}

// NumIntersections returns the node count.
func (m *MapModel) NumIntersections() int { return len(m.Intersections) }

// EdgesFrom returns the CSR range of directed traversals leaving node u.
func (m *MapModel) EdgesFrom(u IntersectionID) (start, end uint32) {
	return m.FirstOut[u], m.FirstOut[u+1]
}

// IsFiltered reports whether travel along a directed traversal of a road is
// currently blocked by a modal filter, honoring the Open Question decision
// that any incident modal filter blocks through-travel uniformly regardless
// of which side it sits nearer to.
func (m *MapModel) IsFiltered(r RoadID) bool {
	_, ok := m.ModalFilters[r]
	return ok
}

// MovementAllowed reports whether travel from road `from` through
// intersection `via` onto road `to` is currently permitted, consulting
// diagonal filters and turn restrictions.
func (m *MapModel) MovementAllowed(from RoadID, via IntersectionID, to RoadID) bool {
	for _, tr := range m.TurnRestrictions {
		if tr.From == from && tr.Via == via && tr.To == to {
			return false
		}
	}
	if df, ok := m.DiagonalFilters[via]; ok && df.Allows != nil {
		return df.Allows(from, to)
	}
	return true
}
