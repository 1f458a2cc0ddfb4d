package impact_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ltn/pkg/impact"
	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/router"
)

// buildTestModel lays out a triangle: a short two-hop path (road 0 then
// road 1, 100m each) and a longer direct alternate (road 2, 300m), so
// filtering road 0 forces routing onto road 2 instead of simply failing.
func buildTestModel(filterRoad0 bool) *mapmodel.MapModel {
	m := &mapmodel.MapModel{
		Intersections: []mapmodel.Intersection{
			{ID: 0, Lat: 0.0, Lon: 0.0},
			{ID: 1, Lat: 0.0, Lon: 0.001},
			{ID: 2, Lat: 0.0, Lon: 0.002},
		},
		Roads: []mapmodel.Road{
			{ID: 0, Src: 0, Dst: 1, Flow: mapmodel.FlowBoth, LengthM: 100, SpeedKMH: 30,
				ShapeLat: []float64{0.0, 0.0}, ShapeLon: []float64{0.0, 0.001}},
			{ID: 1, Src: 1, Dst: 2, Flow: mapmodel.FlowBoth, LengthM: 100, SpeedKMH: 30,
				ShapeLat: []float64{0.0, 0.0}, ShapeLon: []float64{0.001, 0.002}},
			{ID: 2, Src: 0, Dst: 2, Flow: mapmodel.FlowBoth, LengthM: 300, SpeedKMH: 30,
				ShapeLat: []float64{0.0, 0.0}, ShapeLon: []float64{0.0, 0.002}},
		},
		FirstOut:        []uint32{0, 2, 4, 6},
		OutRoad:         []mapmodel.RoadID{0, 2, 0, 1, 1, 2},
		OutFwd:          []bool{true, true, false, true, false, false},
		ModalFilters:    make(map[mapmodel.RoadID]mapmodel.ModalFilter),
		DiagonalFilters: make(map[mapmodel.IntersectionID]mapmodel.DiagonalFilter),
		MainRoadPenalty: 1,
	}
	if filterRoad0 {
		m.ModalFilters[0] = mapmodel.ModalFilter{Road: 0, Frac: 0.5, Kind: "bollard"}
	}
	m.BuildIndices()
	return m
}

func TestRecalculateShiftsCountsOntoAlternateRoad(t *testing.T) {
	ctx := context.Background()
	mBefore := buildTestModel(false)
	mAfter := buildTestModel(true)

	routerBefore := router.Build(mBefore, nil)
	routerAfter := router.Build(mAfter, nil)

	im := impact.New(mBefore)

	result, err := im.Recalculate(ctx, mAfter, routerBefore, routerAfter)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Greater(t, result.MaxCount, 0)

	changed := make(map[uint32][2]int)
	for _, f := range result.FeatureCollection.Features {
		id := f.Properties["id"].(uint32)
		changed[id] = [2]int{f.Properties["before"].(int), f.Properties["after"].(int)}
	}

	counts2, ok2 := changed[2]
	require.True(t, ok2, "the direct alternate road should pick up traffic once road 0 is filtered")
	assert.Greater(t, counts2[1], counts2[0], "road 2's after-count should exceed its before-count")

	if counts0, ok0 := changed[0]; ok0 {
		assert.Greater(t, counts0[0], counts0[1], "road 0's before-count should exceed its after-count once filtered")
	}
}

func TestGetImpactsOnRoadReturnsRoutesThatStoppedCrossing(t *testing.T) {
	ctx := context.Background()
	mBefore := buildTestModel(false)
	mAfter := buildTestModel(true)

	routerBefore := router.Build(mBefore, nil)
	routerAfter := router.Build(mAfter, nil)

	im := impact.New(mBefore)

	changes := im.GetImpactsOnRoad(ctx, mAfter, routerBefore, routerAfter, 0)
	require.NotEmpty(t, changes, "filtering road 0 should change whether some synthetic routes cross it")
	for _, c := range changes {
		assert.NotNil(t, c.Before)
		assert.NotNil(t, c.After)
	}
}
