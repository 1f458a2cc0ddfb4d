package mapmodel_test

import "testing"

func TestRoadsAlongLineMatchesDrawnRoad(t *testing.T) {
	m := buildTestModel(t)

	// Drawing a line along exactly road 0's own geometry should match it:
	// zero Hausdorff distance and no trimming.
	roads := m.RoadsAlongLine([]float64{0.0, 0.0005}, []float64{0.0, 0.0})
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

func TestRoadsAlongLineNeverReturnsUnknownRoads(t *testing.T) {
	m := buildTestModel(t)

	roads := m.RoadsAlongLine([]float64{0.0, 0.0010}, []float64{0.0, 0.0})
	for _, rid := range roads {
		if int(rid) >= len(m.Roads) {
			t.Errorf("roads contains out-of-range RoadID %d", rid)
		}
	}
}
