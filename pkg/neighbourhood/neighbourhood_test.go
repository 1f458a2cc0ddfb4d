package neighbourhood_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/neighbourhood"
)

// buildTestModel lays out a road fully inside a square boundary and a
// second road that exits it, so New has both an interior and a crossing
// case to classify.
func buildTestModel() *mapmodel.MapModel {
	return &mapmodel.MapModel{
		Intersections: []mapmodel.Intersection{
			{ID: 0, Lat: 0.0005, Lon: 0.0005},
			{ID: 1, Lat: 0.0015, Lon: 0.0005},
			{ID: 2, Lat: 0.0030, Lon: 0.0005},
		},
		Roads: []mapmodel.Road{
			{
				ID: 0, Src: 0, Dst: 1,
				ShapeLat: []float64{0.0005, 0.0015}, ShapeLon: []float64{0.0005, 0.0005},
			},
			{
				ID: 1, Src: 1, Dst: 2,
				ShapeLat: []float64{0.0015, 0.0030}, ShapeLon: []float64{0.0005, 0.0005},
			},
		},
	}
}

func squareBoundary() [][2]float64 {
	return [][2]float64{
		{0.0, 0.0},
		{0.0, 0.002},
		{0.002, 0.002},
		{0.002, 0.0},
	}
}

func TestNewClassifiesInteriorAndCrossingRoads(t *testing.T) {
	m := buildTestModel()

	nb, err := neighbourhood.New(m, squareBoundary())
	require.NoError(t, err)

	_, isInterior := nb.InteriorRoads[0]
	assert.True(t, isInterior, "road 0 lies entirely within the boundary")

	_, crosses := nb.Crosses[1]
	assert.True(t, crosses, "road 1 exits the boundary and should be a crossing road")
}

func TestNewRejectsTooFewBoundaryPoints(t *testing.T) {
	m := buildTestModel()

	_, err := neighbourhood.New(m, [][2]float64{{0, 0}, {0, 1}})
	assert.Error(t, err)
}

func TestNewRejectsBoundaryWithNoInteriorRoads(t *testing.T) {
	m := buildTestModel()

	// A boundary far from both roads should leave InteriorRoads empty.
	farBoundary := [][2]float64{
		{10.0, 10.0},
		{10.0, 10.002},
		{10.002, 10.002},
		{10.002, 10.0},
	}
	_, err := neighbourhood.New(m, farBoundary)
	assert.Error(t, err)
}

func TestToGeoJSONEmitsInteriorAndCrossingFeatures(t *testing.T) {
	m := buildTestModel()
	nb, err := neighbourhood.New(m, squareBoundary())
	require.NoError(t, err)

	fc := nb.ToGeoJSON(m)

	var sawInterior, sawCrosses bool
	for _, f := range fc.Features {
		switch f.Properties["kind"] {
		case "interior_road":
			sawInterior = true
		case "crosses":
			sawCrosses = true
		}
	}
	assert.True(t, sawInterior)
	assert.True(t, sawCrosses)
}
