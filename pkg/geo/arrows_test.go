package geo

import (
	"math"
	"testing"
)

func TestPolylineLength(t *testing.T) {
	lats := []float64{1.3500, 1.3600}
	lons := []float64{103.8200, 103.8200}
	got := PolylineLength(lats, lons)
	want := Haversine(lats[0], lons[0], lats[1], lons[1])
	if math.Abs(got-want) > 0.01 {
		t.Errorf("PolylineLength = %f, want %f", got, want)
	}
}

func TestDestinationPtRoundTripsDistance(t *testing.T) {
	lat, lon := 1.3521, 103.8198
	destLat, destLon := DestinationPt(lat, lon, 45, 100)
	got := Haversine(lat, lon, destLat, destLon)
	if math.Abs(got-100) > 1 {
		t.Errorf("distance to destination = %f m, want ~100m", got)
	}
}

func TestPointAlongLineEndpoints(t *testing.T) {
	lats := []float64{1.3500, 1.3600, 1.3700}
	lons := []float64{103.8200, 103.8200, 103.8200}

	lat, lon := PointAlongLine(lats, lons, 0)
	if lat != lats[0] || lon != lons[0] {
		t.Errorf("frac=0: got (%f,%f), want (%f,%f)", lat, lon, lats[0], lons[0])
	}

	lat, lon = PointAlongLine(lats, lons, 1)
	if lat != lats[len(lats)-1] || lon != lons[len(lons)-1] {
		t.Errorf("frac=1: got (%f,%f), want (%f,%f)", lat, lon, lats[len(lats)-1], lons[len(lons)-1])
	}

	lat, _ = PointAlongLine(lats, lons, 0.5)
	if lat <= lats[0] || lat >= lats[len(lats)-1] {
		t.Errorf("frac=0.5 lat = %f, want strictly between %f and %f", lat, lats[0], lats[len(lats)-1])
	}
}

func TestMakeArrowFallsBackToThickenLineWhenTooShort(t *testing.T) {
	// Endpoints 1m apart can't fit a headLen=4m arrowhead (thickness 2.0).
	aLat, aLon := 1.3521, 103.8198
	bLat, bLon := DestinationPt(aLat, aLon, 90, 1)

	if _, _, ok := MakeArrow(aLat, aLon, bLat, bLon, 2.0); ok {
		t.Fatal("expected MakeArrow to report ok=false for a line shorter than its own head")
	}

	lats, lons := ThickenLine(aLat, aLon, bLat, bLon, 2.0)
	if len(lats) != 5 || len(lons) != 5 {
		t.Fatalf("ThickenLine ring length = %d/%d, want 5 (4 corners + closing point)", len(lats), len(lons))
	}
	if lats[0] != lats[len(lats)-1] || lons[0] != lons[len(lons)-1] {
		t.Error("ThickenLine should return a closed ring")
	}
}

func TestMakeArrowBuildsHeadForLongLine(t *testing.T) {
	aLat, aLon := 1.3521, 103.8198
	bLat, bLon := DestinationPt(aLat, aLon, 90, 50)

	lats, lons, ok := MakeArrow(aLat, aLon, bLat, bLon, 2.0)
	if !ok {
		t.Fatal("expected MakeArrow to succeed for a 50m line with 2m thickness")
	}
	if lats[0] != lats[len(lats)-1] || lons[0] != lons[len(lons)-1] {
		t.Error("MakeArrow should return a closed ring")
	}
}

func TestHausdorffDistanceIsZeroForIdenticalLines(t *testing.T) {
	lats := []float64{1.3500, 1.3600, 1.3700}
	lons := []float64{103.8200, 103.8210, 103.8220}
	got := HausdorffDistance(lats, lons, lats, lons)
	if got != 0 {
		t.Errorf("HausdorffDistance(line, line) = %f, want 0", got)
	}
}

func TestHausdorffDistanceIsSymmetric(t *testing.T) {
	latsA := []float64{1.3500, 1.3600}
	lonsA := []float64{103.8200, 103.8200}
	latsB := []float64{1.3505, 1.3605, 1.3705}
	lonsB := []float64{103.8205, 103.8205, 103.8205}

	ab := HausdorffDistance(latsA, lonsA, latsB, lonsB)
	ba := HausdorffDistance(latsB, lonsB, latsA, lonsA)
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("HausdorffDistance not symmetric: %f vs %f", ab, ba)
	}
}

func TestTrimNearRoadEndpoints(t *testing.T) {
	// A drawn line much longer than the road should trim down to roughly
	// the road's own span.
	drawnLat := []float64{1.3400, 1.3500, 1.3600, 1.3700, 1.3800}
	drawnLon := []float64{103.8200, 103.8200, 103.8200, 103.8200, 103.8200}
	roadLat := []float64{1.3500, 1.3600}
	roadLon := []float64{103.8200, 103.8200}

	lats, lons := TrimNearRoadEndpoints(drawnLat, drawnLon, roadLat, roadLon)
	trimmedLen := PolylineLength(lats, lons)
	roadLen := PolylineLength(roadLat, roadLon)
	if math.Abs(trimmedLen-roadLen) > roadLen*0.1 {
		t.Errorf("trimmed length = %f, want close to road length %f", trimmedLen, roadLen)
	}
}
