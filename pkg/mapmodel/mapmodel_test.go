package mapmodel_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/osmtags"
)

func buildTestModel(t *testing.T) *mapmodel.MapModel {
	t.Helper()
	m := &mapmodel.MapModel{
		StudyAreaID: "test-area",
		Intersections: []mapmodel.Intersection{
			{ID: 0, Lat: 0.0, Lon: 0.0},
			{ID: 1, Lat: 0.0005, Lon: 0.0},
			{ID: 2, Lat: 0.0010, Lon: 0.0},
		},
		Roads: []mapmodel.Road{
			{
				ID: 0, Src: 0, Dst: 1, Kind: osmtags.KindResidential, Flow: mapmodel.FlowBoth,
				LengthM: 55, SpeedKMH: 30,
				ShapeLat: []float64{0.0, 0.0005}, ShapeLon: []float64{0.0, 0.0},
			},
			{
				ID: 1, Src: 1, Dst: 2, Kind: osmtags.KindResidential, Flow: mapmodel.FlowBoth,
				LengthM: 55, SpeedKMH: 30,
				ShapeLat: []float64{0.0005, 0.0010}, ShapeLon: []float64{0.0, 0.0},
			},
		},
		FirstOut:        []uint32{0, 1, 3, 4},
		OutRoad:         []mapmodel.RoadID{0, 0, 1, 1},
		OutFwd:          []bool{true, false, true, false},
		ModalFilters:    make(map[mapmodel.RoadID]mapmodel.ModalFilter),
		DiagonalFilters: make(map[mapmodel.IntersectionID]mapmodel.DiagonalFilter),
		MainRoadPenalty: 1,
	}
	m.BuildIndices()
	return m
}

func TestSnapFindsNearestRoad(t *testing.T) {
	m := buildTestModel(t)

	res, err := m.Snap(0.0002, 0.0)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if res.Road != 0 {
		t.Errorf("Road = %d, want 0", res.Road)
	}
	if res.Frac <= 0 || res.Frac >= 1 {
		t.Errorf("Frac = %f, want strictly between 0 and 1", res.Frac)
	}
}

func TestSnapTooFarReturnsErrPointTooFar(t *testing.T) {
	m := buildTestModel(t)

	_, err := m.Snap(45.0, 90.0)
	if err != mapmodel.ErrPointTooFar {
		t.Errorf("err = %v, want ErrPointTooFar", err)
	}
}

func TestClosestIntersection(t *testing.T) {
	m := buildTestModel(t)

	id, dist := m.ClosestIntersection(0.00049, 0.0)
	if id != 1 {
		t.Errorf("ClosestIntersection = %d, want 1", id)
	}
	if dist < 0 {
		t.Errorf("dist = %f, want >= 0", dist)
	}
}

func TestIsFiltered(t *testing.T) {
	m := buildTestModel(t)

	if m.IsFiltered(0) {
		t.Errorf("road 0 should not be filtered before any edit")
	}
	m.ModalFilters[0] = mapmodel.ModalFilter{Road: 0, Frac: 0.5, Kind: "bollard"}
	if !m.IsFiltered(0) {
		t.Errorf("road 0 should be filtered once present in ModalFilters")
	}
}

func TestMovementAllowedTurnRestriction(t *testing.T) {
	m := buildTestModel(t)

	if !m.MovementAllowed(0, 1, 1) {
		t.Errorf("movement 0->1 via intersection 1 should be allowed by default")
	}
	m.TurnRestrictions = append(m.TurnRestrictions, mapmodel.TurnRestriction{From: 0, Via: 1, To: 1})
	if m.MovementAllowed(0, 1, 1) {
		t.Errorf("movement 0->1 via intersection 1 should be forbidden after a matching TurnRestriction")
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	original := buildTestModel(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "test.ltn.bin")

	if err := mapmodel.WriteBinary(path, original); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}

	loaded, err := mapmodel.ReadBinary(path)
	if err != nil {
		t.Fatalf("ReadBinary: %v", err)
	}

	if len(loaded.Intersections) != len(original.Intersections) {
		t.Fatalf("Intersections length: got %d, want %d", len(loaded.Intersections), len(original.Intersections))
	}
	for i := range original.Intersections {
		if loaded.Intersections[i].Lat != original.Intersections[i].Lat {
			t.Errorf("Intersections[%d].Lat: got %f, want %f", i, loaded.Intersections[i].Lat, original.Intersections[i].Lat)
		}
	}

	if len(loaded.Roads) != len(original.Roads) {
		t.Fatalf("Roads length: got %d, want %d", len(loaded.Roads), len(original.Roads))
	}
	for i := range original.Roads {
		if loaded.Roads[i].LengthM != original.Roads[i].LengthM {
			t.Errorf("Roads[%d].LengthM: got %f, want %f", i, loaded.Roads[i].LengthM, original.Roads[i].LengthM)
		}
	}

	if len(loaded.FirstOut) != len(original.FirstOut) {
		t.Fatalf("FirstOut length: got %d, want %d", len(loaded.FirstOut), len(original.FirstOut))
	}

	// Loaded models build their spatial indices automatically and should
	// be immediately usable for Snap without a manual BuildIndices call.
	if _, err := loaded.Snap(0.0002, 0.0); err != nil {
		t.Errorf("Snap on loaded model: %v", err)
	}
}

func TestBinaryInvalidMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ltn.bin")
	os.WriteFile(path, []byte("NOT_AN_LTN_HEADER_AT_ALL_BLAH_BLAH_MORE_PADDING"), 0644)

	_, err := mapmodel.ReadBinary(path)
	if err == nil {
		t.Fatal("expected error for invalid magic bytes")
	}
}

func TestBinaryTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.ltn.bin")
	os.WriteFile(path, []byte("LTNMODEL"), 0644)

	_, err := mapmodel.ReadBinary(path)
	if err == nil {
		t.Fatal("expected error for truncated file")
	}
}
