package rendercells_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ltn/pkg/cells"
	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/neighbourhood"
	"github.com/azybler/ltn/pkg/osmtags"
	"github.com/azybler/ltn/pkg/rendercells"
)

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

func TestNewAssignsOneColorPerCell(t *testing.T) {
	m := buildTestModel()
	nb, err := neighbourhood.New(m, rectBoundary())
	require.NoError(t, err)

	cellList := cells.FindAll(m, nb, false)
	require.Len(t, cellList, 1)

	rc := rendercells.New(m, nb, cellList)
	require.Len(t, rc.Colors, 1)
	assert.GreaterOrEqual(t, rc.Colors[0], 0)
}

func TestToGeoJSONProducesTileFeatures(t *testing.T) {
	m := buildTestModel()
	nb, err := neighbourhood.New(m, rectBoundary())
	require.NoError(t, err)

	cellList := cells.FindAll(m, nb, false)
	rc := rendercells.New(m, nb, cellList)

	fc := rc.ToGeoJSON()
	assert.NotEmpty(t, fc.Features, "rasterizing a real road should stamp at least one tile")
}

func TestToGeoJSONTagsEveryTileWithItsCell(t *testing.T) {
	m := buildTestModel()
	nb, err := neighbourhood.New(m, rectBoundary())
	require.NoError(t, err)

	cellList := cells.FindAll(m, nb, false)
	rc := rendercells.New(m, nb, cellList)

	fc := rc.ToGeoJSON()
	sawCellZero := false
	for _, f := range fc.Features {
		assert.True(t, f.Geometry.IsPolygon(), "every rasterized tile should be emitted as a filled polygon")
		cell, ok := f.Properties["cell"]
		require.True(t, ok)
		if cell == 0 {
			sawCellZero = true
		}
	}
	assert.True(t, sawCellZero, "the single cell in this fixture should own at least one tile")
}
