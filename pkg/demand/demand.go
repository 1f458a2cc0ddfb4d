// Package demand models origin/destination driving trip demand between
// named zones and turns it into per-road-pair routing requests.
package demand

import (
	"math/rand"

	geojson "github.com/paulmach/go.geojson"

	"github.com/azybler/ltn/pkg/geo"
	"github.com/azybler/ltn/pkg/geojsonio"
	"github.com/azybler/ltn/pkg/mapmodel"
)

// ZoneID indexes into DemandModel.Zones.
type ZoneID int

// Zone is a named polygon contributing trips to the desire lines.
type Zone struct {
	Name     string
	Geometry [][]geo.Pt // one or more rings in lat/lng-derived planar meters
}

// DesireLine is a directed trip count between two zones.
type DesireLine struct {
	From, To ZoneID
	Count    int
}

// DemandModel is a study area's origin/destination demand data, plus the
// roads each zone touches (computed once via FinishLoading). Ported from
// original_source/backend/src/od.rs's DemandModel.
type DemandModel struct {
	Zones       []Zone
	DesireLines []DesireLine
	Proj        geo.Proj // projection Zones' planar geometry is expressed in

	cachedZoneRoads [][]mapmodel.RoadID
}

// FinishLoading computes, for every zone, the roads whose linestring
// intersects it — cached because make_requests runs this lookup on every
// sample. Mirrors od.rs's finish_loading.
func (d *DemandModel) FinishLoading(m *mapmodel.MapModel, proj geo.Proj) {
	d.Proj = proj
	d.cachedZoneRoads = make([][]mapmodel.RoadID, len(d.Zones))
	for _, r := range m.Roads {
		pts := make([]geo.Pt, len(r.ShapeLat))
		for i := range r.ShapeLat {
			pts[i] = proj.ToPt(r.ShapeLat[i], r.ShapeLon[i])
		}
		for zi, zone := range d.Zones {
			if roadIntersectsZone(pts, zone) {
				d.cachedZoneRoads[zi] = append(d.cachedZoneRoads[zi], r.ID)
			}
		}
	}
}

func roadIntersectsZone(roadPts []geo.Pt, zone Zone) bool {
	for _, ring := range zone.Geometry {
		for _, p := range roadPts {
			if geo.PointInPolygon(p, ring) {
				return true
			}
		}
		for i := 0; i < len(roadPts)-1; i++ {
			for j := range ring {
				a, b := ring[j], ring[(j+1)%len(ring)]
				if geo.SegmentsIntersect(roadPts[i], roadPts[i+1], a, b) {
					return true
				}
			}
		}
	}
	return false
}

// tripsPerSampledRequest controls fast-sample granularity: one generated
// request stands in for this many actual trips. Matches od.rs's constant.
const tripsPerSampledRequest = 10

// MakeRequests turns the desire lines into concrete (fromRoad, toRoad)
// routing requests with counts, deterministically sampling one representative
// road per zone per trip using a seed-42 PRNG so runs are reproducible.
// When fastSample is true, many trips are collapsed into one weighted
// request per tripsPerSampledRequest, trading accuracy for speed. Ported
// from od.rs's make_requests.
func (d *DemandModel) MakeRequests(fastSample bool) map[[2]mapmodel.RoadID]int {
	rng := rand.New(rand.NewSource(42))
	requests := make(map[[2]mapmodel.RoadID]int)

	choose := func(roads []mapmodel.RoadID) (mapmodel.RoadID, bool) {
		if len(roads) == 0 {
			return 0, false
		}
		return roads[rng.Intn(len(roads))], true
	}

	accumulated := 0
	for _, dl := range d.DesireLines {
		accumulated += dl.Count

		var requestCount, requestWeight int
		if fastSample {
			if accumulated < tripsPerSampledRequest {
				continue
			}
			requestCount = accumulated / tripsPerSampledRequest
			accumulated -= requestCount * tripsPerSampledRequest
			requestWeight = tripsPerSampledRequest
		} else {
			requestCount = dl.Count
			requestWeight = 1
		}

		for i := 0; i < requestCount; i++ {
			r1, ok1 := choose(d.cachedZoneRoads[dl.From])
			if !ok1 {
				continue
			}
			r2, ok2 := choose(d.cachedZoneRoads[dl.To])
			if !ok2 {
				continue
			}
			if r1 != r2 {
				requests[[2]mapmodel.RoadID{r1, r2}] += requestWeight
			}
		}
	}
	return requests
}

// ToGeoJSON emits one Feature per zone, carrying its aggregated outgoing and
// incoming trip counts per other zone. Mirrors od.rs's to_gj.
func (d *DemandModel) ToGeoJSON() *geojson.FeatureCollection {
	from := make([][]int, len(d.Zones))
	to := make([][]int, len(d.Zones))
	for i := range d.Zones {
		from[i] = make([]int, len(d.Zones))
		to[i] = make([]int, len(d.Zones))
	}
	for _, dl := range d.DesireLines {
		from[dl.From][dl.To] += dl.Count
		to[dl.To][dl.From] += dl.Count
	}

	fc := geojson.NewFeatureCollection()
	for idx, zone := range d.Zones {
		rings := geojsonio.PolygonRings(d.Proj, zone.Geometry)
		f := geojson.NewPolygonFeature(rings)
		f.Properties["name"] = zone.Name
		f.Properties["counts_from"] = from[idx]
		f.Properties["counts_to"] = to[idx]
		fc.AddFeature(f)
	}
	return fc
}

// SyntheticRequests deterministically samples num fallback road-pair
// requests when no real OD data is loaded, mirroring od.rs's
// synthetic_od_requests.
func SyntheticRequests(m *mapmodel.MapModel, num int) []DesireLineRoadPair {
	rng := rand.New(rand.NewSource(42))
	n := len(m.Roads)
	if n == 0 {
		return nil
	}
	out := make([]DesireLineRoadPair, 0, num)
	for len(out) < num {
		r1 := mapmodel.RoadID(rng.Intn(n))
		r2 := mapmodel.RoadID(rng.Intn(n))
		if r1 != r2 {
			out = append(out, DesireLineRoadPair{From: r1, To: r2, Count: 1})
		}
	}
	return out
}

// DesireLineRoadPair is a single synthetic road-to-road request.
type DesireLineRoadPair struct {
	From, To mapmodel.RoadID
	Count    int
}
