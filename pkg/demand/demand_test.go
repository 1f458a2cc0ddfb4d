package demand_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/ltn/pkg/demand"
	"github.com/azybler/ltn/pkg/geo"
	"github.com/azybler/ltn/pkg/mapmodel"
)

func zoneSquare(proj geo.Proj, latMin, lonMin, latMax, lonMax float64) []geo.Pt {
	return []geo.Pt{
		proj.ToPt(latMin, lonMin),
		proj.ToPt(latMin, lonMax),
		proj.ToPt(latMax, lonMax),
		proj.ToPt(latMax, lonMin),
	}
}

func buildTestModel() *mapmodel.MapModel {
	return &mapmodel.MapModel{
		Roads: []mapmodel.Road{
			{ID: 0, Src: 0, Dst: 1, ShapeLat: []float64{0.0, 0.0005}, ShapeLon: []float64{0.0, 0.0}},
			{ID: 1, Src: 2, Dst: 3, ShapeLat: []float64{0.0010, 0.0015}, ShapeLon: []float64{0.0, 0.0}},
		},
	}
}

func buildTestDemand(proj geo.Proj) *demand.DemandModel {
	return &demand.DemandModel{
		Zones: []demand.Zone{
			{Name: "north", Geometry: [][]geo.Pt{zoneSquare(proj, -0.0002, -0.0002, 0.0007, 0.0002)}},
			{Name: "south", Geometry: [][]geo.Pt{zoneSquare(proj, 0.0008, -0.0002, 0.0017, 0.0002)}},
		},
		DesireLines: []demand.DesireLine{
			{From: 0, To: 1, Count: 25},
		},
	}
}

func TestFinishLoadingAssignsRoadsToTouchingZones(t *testing.T) {
	proj := geo.NewProj(0, 0)
	m := buildTestModel()
	d := buildTestDemand(proj)

	d.FinishLoading(m, proj)

	reqs := d.MakeRequests(false)
	require.NotEmpty(t, reqs, "zone 0's road and zone 1's road should generate at least one request")
	for pair, count := range reqs {
		assert.Equal(t, mapmodel.RoadID(0), pair[0])
		assert.Equal(t, mapmodel.RoadID(1), pair[1])
		assert.Greater(t, count, 0)
	}
}

func TestMakeRequestsFastSampleCollapsesTrips(t *testing.T) {
	proj := geo.NewProj(0, 0)
	m := buildTestModel()
	d := buildTestDemand(proj)
	d.FinishLoading(m, proj)

	reqs := d.MakeRequests(true)
	var total int
	for _, weight := range reqs {
		total += weight
	}
	// 25 trips / 10 per sampled request collapses to 2 requests worth 10 each.
	assert.Equal(t, 20, total)
}

func TestToGeoJSONEmitsOneFeaturePerZone(t *testing.T) {
	proj := geo.NewProj(0, 0)
	d := buildTestDemand(proj)
	d.Proj = proj

	fc := d.ToGeoJSON()
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "north", fc.Features[0].Properties["name"])
}

func TestSyntheticRequestsAvoidsSelfPairs(t *testing.T) {
	m := buildTestModel()
	reqs := demand.SyntheticRequests(m, 5)
	require.Len(t, reqs, 5)
	for _, r := range reqs {
		assert.NotEqual(t, r.From, r.To)
	}
}
