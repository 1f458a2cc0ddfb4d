package shortcuts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/neighbourhood"
	"github.com/azybler/ltn/pkg/osmtags"
	"github.com/azybler/ltn/pkg/shortcuts"
)

// buildTestModel is the same three-intersection line used by the cells
// package tests: two interior roads between a west and an east border
// intersection, with a middle junction in between.
func buildTestModel() *mapmodel.MapModel {
	return &mapmodel.MapModel{
		Intersections: []mapmodel.Intersection{
			{ID: 0, Lat: 0.0, Lon: 0.0},
			{ID: 1, Lat: 0.0, Lon: 0.001},
			{ID: 2, Lat: 0.0, Lon: 0.002},
		},
		Roads: []mapmodel.Road{
			{
				ID: 0, Src: 0, Dst: 1, Kind: osmtags.KindResidential, Flow: mapmodel.FlowBoth,
				LengthM:  111,
				ShapeLat: []float64{0.0, 0.0}, ShapeLon: []float64{0.0, 0.001},
			},
			{
				ID: 1, Src: 1, Dst: 2, Kind: osmtags.KindResidential, Flow: mapmodel.FlowBoth,
				LengthM:  111,
				ShapeLat: []float64{0.0, 0.0}, ShapeLon: []float64{0.001, 0.002},
			},
		},
	}
}

func rectBoundary() [][2]float64 {
	return [][2]float64{
		{-0.0005, 0.0},
		{0.0005, 0.0},
		{0.0005, 0.002},
		{-0.0005, 0.002},
	}
}

func TestComputeCountsEveryRoadOnBorderToBorderPaths(t *testing.T) {
	m := buildTestModel()
	nb, err := neighbourhood.New(m, rectBoundary())
	require.NoError(t, err)
	require.Len(t, nb.BorderIntersections, 2)

	sc, err := shortcuts.Compute(m, nb)
	require.NoError(t, err)

	// Both roads lie on the only path between the two border intersections,
	// counted once per ordered (from, to) pair, so each gets hit twice.
	assert.Equal(t, 2, sc.CountPerRoad[0])
	assert.Equal(t, 2, sc.CountPerRoad[1])
}

func TestComputeSkipsRoadBehindOneWayFlow(t *testing.T) {
	m := buildTestModel()
	m.Roads[0].Flow = mapmodel.FlowForwardOnly

	nb, err := neighbourhood.New(m, rectBoundary())
	require.NoError(t, err)

	sc, err := shortcuts.Compute(m, nb)
	require.NoError(t, err)

	// The border-to-border path east->west can no longer use road 0, so it
	// should be crossed only by the west->east direction.
	assert.Equal(t, 1, sc.CountPerRoad[0])
}
