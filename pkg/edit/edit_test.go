package edit

import (
	"testing"

	"github.com/azybler/ltn/pkg/mapmodel"
)

func newTestModel() *mapmodel.MapModel {
	m := &mapmodel.MapModel{
		Intersections: []mapmodel.Intersection{{ID: 0}, {ID: 1}, {ID: 2}},
		Roads: []mapmodel.Road{
			{ID: 0, Src: 0, Dst: 1, Flow: mapmodel.FlowBoth},
			{ID: 1, Src: 1, Dst: 2, Flow: mapmodel.FlowBoth},
		},
		FirstOut:        []uint32{0, 1, 3, 4},
		OutRoad:         []mapmodel.RoadID{0, 0, 1, 1},
		OutFwd:          []bool{true, false, true, false},
		ModalFilters:    make(map[mapmodel.RoadID]mapmodel.ModalFilter),
		DiagonalFilters: make(map[mapmodel.IntersectionID]mapmodel.DiagonalFilter),
		MainRoadPenalty: 1,
	}
	return m
}

func TestAddModalFilterDoUndoRedo(t *testing.T) {
	m := newTestModel()
	h := NewHistory(m)

	if err := h.Do(AddModalFilter(0, 0.5, "bollard")); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if f, ok := m.ModalFilters[0]; !ok || f.Kind != "bollard" {
		t.Fatalf("expected modal filter kind bollard, got %+v (ok=%v)", f, ok)
	}
	if !h.StaleRouter() || !h.StaleCountsAfter() {
		t.Errorf("expected router and counts_after to be stale after an edit")
	}
	if h.StaleCountsBefore() {
		t.Errorf("AddModalFilter is not a baseline command; counts_before should stay fresh")
	}

	if err := h.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if _, ok := m.ModalFilters[0]; ok {
		t.Errorf("expected modal filter removed after undo")
	}

	if err := h.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if _, ok := m.ModalFilters[0]; !ok {
		t.Errorf("expected modal filter restored after redo")
	}
}

func TestSetMainRoadPenaltyIsBaseline(t *testing.T) {
	m := newTestModel()
	h := NewHistory(m)

	if err := h.Do(SetMainRoadPenalty(2.5)); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if m.MainRoadPenalty != 2.5 {
		t.Errorf("MainRoadPenalty = %v, want 2.5", m.MainRoadPenalty)
	}
	if !h.StaleCountsBefore() {
		t.Errorf("SetMainRoadPenalty is a baseline command; counts_before should go stale")
	}

	if err := h.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if m.MainRoadPenalty != 1 {
		t.Errorf("MainRoadPenalty after undo = %v, want 1", m.MainRoadPenalty)
	}
}

func TestUndoRedoEmptyStacks(t *testing.T) {
	m := newTestModel()
	h := NewHistory(m)

	if err := h.Undo(); err == nil {
		t.Errorf("expected error undoing with an empty stack")
	}
	if err := h.Redo(); err == nil {
		t.Errorf("expected error redoing with an empty stack")
	}
}

func TestListMovementsRespectsTurnRestriction(t *testing.T) {
	m := newTestModel()
	h := NewHistory(m)

	moves := ListMovements(m, 1)
	if len(moves) != 2 {
		t.Fatalf("len(moves) = %d, want 2", len(moves))
	}
	for _, mv := range moves {
		if !mv.Allowed {
			t.Errorf("movement %+v should be allowed before any restriction", mv)
		}
	}

	if err := h.Do(AddTurnRestriction(1, 0, 1)); err != nil {
		t.Fatalf("Do: %v", err)
	}
	moves = ListMovements(m, 1)
	var sawForbidden bool
	for _, mv := range moves {
		if mv.From == 0 && mv.To == 1 {
			if mv.Allowed {
				t.Errorf("movement 0->1 should be forbidden after AddTurnRestriction")
			}
			if mv.Reason != "turn_restriction" {
				t.Errorf("Reason = %q, want turn_restriction", mv.Reason)
			}
			sawForbidden = true
		}
	}
	if !sawForbidden {
		t.Fatalf("expected to find the 0->1 movement in ListMovements output")
	}
}

func TestAddDiagonalFilterBlocksCrossGroupMovement(t *testing.T) {
	m := newTestModel()
	h := NewHistory(m)

	if err := h.Do(AddDiagonalFilter(1, []mapmodel.RoadID{0}, []mapmodel.RoadID{1})); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if m.MovementAllowed(0, 1, 1) {
		t.Errorf("movement from road 0 to road 1 through intersection 1 should be blocked by the diagonal filter")
	}

	if err := h.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if !m.MovementAllowed(0, 1, 1) {
		t.Errorf("movement should be allowed again after undo")
	}
}
