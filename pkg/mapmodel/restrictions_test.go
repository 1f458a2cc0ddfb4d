package mapmodel

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/azybler/ltn/pkg/osmtags"
)

// buildRestrictionTestModel wires up a 4-intersection, 3-road chain
// (0 -> 1 -> 2 -> 3) with OSM node/way ids attached, mirroring
// buildTestModel in mapmodel_test.go but exported to this package so
// applyPreexistingRestrictions (unexported) can be exercised directly.
func buildRestrictionTestModel(t *testing.T) *MapModel {
	t.Helper()
	m := &MapModel{
		StudyAreaID: "test-area",
		Intersections: []Intersection{
			{ID: 0, OSMNodeID: 100, Lat: 0.0, Lon: 0.0},
			{ID: 1, OSMNodeID: 101, Lat: 0.0005, Lon: 0.0},
			{ID: 2, OSMNodeID: 102, Lat: 0.0010, Lon: 0.0},
			{ID: 3, OSMNodeID: 103, Lat: 0.0015, Lon: 0.0},
		},
		Roads: []Road{
			{ID: 0, OSMWayID: 10, Src: 0, Dst: 1, Kind: osmtags.KindResidential, Flow: FlowBoth, LengthM: 50,
				ShapeLat: []float64{0.0, 0.0005}, ShapeLon: []float64{0.0, 0.0}},
			{ID: 1, OSMWayID: 10, Src: 1, Dst: 2, Kind: osmtags.KindPedestrian, Flow: FlowBoth, LengthM: 50,
				ShapeLat: []float64{0.0005, 0.0010}, ShapeLon: []float64{0.0, 0.0}},
			{ID: 2, OSMWayID: 11, Src: 2, Dst: 3, Kind: osmtags.KindService, Flow: FlowBoth, LengthM: 50,
				ShapeLat: []float64{0.0010, 0.0015}, ShapeLon: []float64{0.0, 0.0}},
		},
		ModalFilters:    make(map[RoadID]ModalFilter),
		DiagonalFilters: make(map[IntersectionID]DiagonalFilter),
		MainRoadPenalty: 1,
	}
	m.buildCSR()
	m.BuildIndices()
	return m
}

func TestApplyPreexistingRestrictionsBarrierNode(t *testing.T) {
	m := buildRestrictionTestModel(t)

	barrierNodes := map[osm.NodeID]bool{101: true}
	m.applyPreexistingRestrictions(barrierNodes, nil, nil, nil)

	if !m.IsFiltered(0) {
		t.Errorf("road 0 (incident to barrier node 101) should carry a no_entry filter")
	}
	f := m.ModalFilters[0]
	if f.Kind != "no_entry" {
		t.Errorf("Kind = %q, want no_entry", f.Kind)
	}
}

func TestApplyPreexistingRestrictionsPedestrianRoad(t *testing.T) {
	m := buildRestrictionTestModel(t)

	m.applyPreexistingRestrictions(nil, nil, nil, nil)

	f, ok := m.ModalFilters[1]
	if !ok {
		t.Fatalf("road 1 (highway=pedestrian) should carry a modal filter")
	}
	if f.Kind != "walk_cycle_only" {
		t.Errorf("Kind = %q, want walk_cycle_only", f.Kind)
	}
	if f.Frac != 0.5 {
		t.Errorf("Frac = %f, want 0.5 (both endpoints open)", f.Frac)
	}
}

func TestApplyPreexistingRestrictionsBusGate(t *testing.T) {
	m := buildRestrictionTestModel(t)

	busGateWayIDs := map[int64]bool{11: true}
	m.applyPreexistingRestrictions(nil, busGateWayIDs, nil, nil)

	f, ok := m.ModalFilters[2]
	if !ok {
		t.Fatalf("road 2 (bus gate way 11) should carry a modal filter")
	}
	if f.Kind != "bus_gate" {
		t.Errorf("Kind = %q, want bus_gate", f.Kind)
	}
}

func TestApplyPreexistingRestrictionsSnapshotsOriginalModalFilters(t *testing.T) {
	m := buildRestrictionTestModel(t)

	barrierNodes := map[osm.NodeID]bool{101: true}
	m.applyPreexistingRestrictions(barrierNodes, nil, nil, nil)

	if len(m.OriginalModalFilters) != len(m.ModalFilters) {
		t.Fatalf("OriginalModalFilters length = %d, want %d", len(m.OriginalModalFilters), len(m.ModalFilters))
	}
	delete(m.ModalFilters, 0)
	if _, ok := m.OriginalModalFilters[0]; !ok {
		t.Errorf("OriginalModalFilters should retain a snapshot independent of later ModalFilters edits")
	}
}

func TestApplyPreexistingRestrictionsTurnRestriction(t *testing.T) {
	m := buildRestrictionTestModel(t)

	restrictions := []rawRestriction{
		{viaNode: 102, fromWay: 10, toWay: 11},
	}
	m.applyPreexistingRestrictions(nil, nil, restrictions, nil)

	if len(m.TurnRestrictions) != 1 {
		t.Fatalf("TurnRestrictions length = %d, want 1", len(m.TurnRestrictions))
	}
	tr := m.TurnRestrictions[0]
	if tr.Via != 2 {
		t.Errorf("Via = %d, want 2", tr.Via)
	}
	if tr.From != 1 {
		t.Errorf("From = %d, want road 1 (way 10)", tr.From)
	}
	if tr.To != 2 {
		t.Errorf("To = %d, want road 2 (way 11)", tr.To)
	}
}
