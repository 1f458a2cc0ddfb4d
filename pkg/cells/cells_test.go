package cells_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ltn/pkg/cells"
	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/neighbourhood"
	"github.com/azybler/ltn/pkg/osmtags"
)

// buildTestModel lays three intersections along a line, with the outer two
// sitting exactly on a rectangular boundary's west/east edges so New marks
// them as border intersections and the middle one is interior only.
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
				ShapeLat: []float64{0.0, 0.0}, ShapeLon: []float64{0.0, 0.001},
			},
			{
				ID: 1, Src: 1, Dst: 2, Kind: osmtags.KindResidential, Flow: mapmodel.FlowBoth,
				ShapeLat: []float64{0.0, 0.0}, ShapeLon: []float64{0.001, 0.002},
			},
		},
		FirstOut:        []uint32{0, 1, 3, 4},
		OutRoad:         []mapmodel.RoadID{0, 0, 1, 1},
		OutFwd:          []bool{true, false, true, false},
		ModalFilters:    make(map[mapmodel.RoadID]mapmodel.ModalFilter),
		DiagonalFilters: make(map[mapmodel.IntersectionID]mapmodel.DiagonalFilter),
		MainRoadPenalty: 1,
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

func TestFindAllWithNoFiltersYieldsOneCell(t *testing.T) {
	m := buildTestModel()
	nb, err := neighbourhood.New(m, rectBoundary())
	require.NoError(t, err)
	require.NotEmpty(t, nb.BorderIntersections, "outer intersections should sit on the boundary")

	got := cells.FindAll(m, nb, false)
	require.Len(t, got, 1, "an unfiltered network should floodfill into a single cell")
	assert.Contains(t, got[0].Roads, mapmodel.RoadID(0))
	assert.Contains(t, got[0].Roads, mapmodel.RoadID(1))
	assert.False(t, got[0].IsDisconnected())
}

func TestFindAllSplitsCellAtModalFilter(t *testing.T) {
	m := buildTestModel()
	m.ModalFilters[0] = mapmodel.ModalFilter{Road: 0, Frac: 0.5, Kind: "bollard"}

	nb, err := neighbourhood.New(m, rectBoundary())
	require.NoError(t, err)

	got := cells.FindAll(m, nb, false)
	require.Len(t, got, 2, "a modal filter should split the network into two cells")

	var sawIntervalOnFilteredRoad bool
	for _, c := range got {
		if iv, ok := c.Roads[0]; ok {
			sawIntervalOnFilteredRoad = true
			assert.True(t, iv.Start == 0 || iv.End == 1, "filtered road interval should touch one end of the full [0,1] range")
		}
	}
	assert.True(t, sawIntervalOnFilteredRoad)
}

func TestFindAllHideUnimportantMarksServiceOnlyCells(t *testing.T) {
	m := buildTestModel()
	m.Roads[1].Kind = osmtags.KindService
	// Block movement between the two roads at their shared intersection so
	// they floodfill into separate cells: the service road's cell is
	// connected to a public road only through this (now-forbidden) junction,
	// matching connectedToPublicRoad's "adjacent to, not part of" check.
	m.TurnRestrictions = []mapmodel.TurnRestriction{
		{From: 0, To: 1, Via: 1},
		{From: 1, To: 0, Via: 1},
	}

	nb, err := neighbourhood.New(m, rectBoundary())
	require.NoError(t, err)

	got := cells.FindAll(m, nb, true)
	require.Len(t, got, 2, "the turn restriction should split the residential and service roads into separate cells")

	var sawUnimportant bool
	for _, c := range got {
		if _, ok := c.Roads[1]; ok {
			assert.True(t, c.Unimportant, "the all-service cell should be marked unimportant")
			sawUnimportant = true
		}
	}
	assert.True(t, sawUnimportant)
}
