package mapmodel

import (
	"errors"
	"math"
	"sort"

	"github.com/tidwall/rtree"

	"github.com/azybler/ltn/pkg/geo"
)

// ErrPointTooFar is returned when a query point has no road within range.
var ErrPointTooFar = errors.New("mapmodel: point too far from any road")

const maxSnapDistMeters = 500.0

// roadRTree indexes each road's bounding box for nearest-road lookups.
type roadRTree struct {
	tr *rtree.RTreeG[RoadID]
}

// nodeRTree indexes intersection points for nearest-intersection lookups.
type nodeRTree struct {
	tr *rtree.RTreeG[IntersectionID]
}

// BuildIndices constructs the two R-trees MapModel needs: one over road
// geometry bounding boxes, one over intersection points. Build and
// ReadBinary call this automatically; callers that assemble a MapModel by
// hand (tests, fixtures) must call it once before Snap/ClosestRoad/
// ClosestIntersection are usable. Grounded on the teacher's declared (but in
// the sampled files unused) tidwall/rtree dependency — this is the first
// genuine call site for it, replacing the teacher's ad hoc flat sorted-grid
// Snapper (azybler-map_router/pkg/routing/snap.go) with the dedicated
// spatial index its own go.mod already named.
func (m *MapModel) BuildIndices() {
	rt := &rtree.RTreeG[RoadID]{}
	for _, r := range m.Roads {
		minLat, maxLat := r.ShapeLat[0], r.ShapeLat[0]
		minLon, maxLon := r.ShapeLon[0], r.ShapeLon[0]
		for i := 1; i < len(r.ShapeLat); i++ {
			if r.ShapeLat[i] < minLat {
				minLat = r.ShapeLat[i]
			}
			if r.ShapeLat[i] > maxLat {
				maxLat = r.ShapeLat[i]
			}
			if r.ShapeLon[i] < minLon {
				minLon = r.ShapeLon[i]
			}
			if r.ShapeLon[i] > maxLon {
				maxLon = r.ShapeLon[i]
			}
		}
		rt.Insert([2]float64{minLon, minLat}, [2]float64{maxLon, maxLat}, r.ID)
	}
	m.roadIndex = &roadRTree{tr: rt}

	nt := &rtree.RTreeG[IntersectionID]{}
	for _, in := range m.Intersections {
		nt.Insert([2]float64{in.Lon, in.Lat}, [2]float64{in.Lon, in.Lat}, in.ID)
	}
	m.nodeIndex = &nodeRTree{tr: nt}
}

// SnapResult locates a query point against the nearest road.
type SnapResult struct {
	Road  RoadID
	Frac  float64 // 0..1 along the road's geometry
	DistM float64
}

// Snap finds the nearest road to a lat/lng point within maxSnapDistMeters,
// searching a fixed ±0.01° window of the road R-tree. Ported from
// azybler-map_router/pkg/routing/snap.go's Snap, adapted to query the
// R-tree instead of the teacher's flat sorted grid.
func (m *MapModel) Snap(lat, lon float64) (SnapResult, error) {
	best := SnapResult{DistM: maxSnapDistMeters + 1}
	window := 0.01 // ~1.1km in degrees
	m.roadIndex.tr.Search(
		[2]float64{lon - window, lat - window},
		[2]float64{lon + window, lat + window},
		func(_, _ [2]float64, rid RoadID) bool {
			r := &m.Roads[rid]
			frac, dist, _, _ := geo.LineLocatePoint(r.ShapeLat, r.ShapeLon, lat, lon)
			if dist < best.DistM {
				best = SnapResult{Road: rid, Frac: frac, DistM: dist}
			}
			return true
		},
	)
	if best.DistM > maxSnapDistMeters {
		return SnapResult{}, ErrPointTooFar
	}
	return best, nil
}

// ClosestRoad is an alias for Snap used by callers that only care about
// which road is nearest, not the routing-specific fractional position.
func (m *MapModel) ClosestRoad(lat, lon float64) (RoadID, error) {
	res, err := m.Snap(lat, lon)
	if err != nil {
		return 0, err
	}
	return res.Road, nil
}

// ClosestIntersection finds the nearest intersection to a point, used when
// snapping neighbourhood-boundary clicks to the graph.
func (m *MapModel) ClosestIntersection(lat, lon float64) (IntersectionID, float64) {
	var best IntersectionID
	bestDist := 1e18
	window := 0.01
	for {
		found := false
		m.nodeIndex.tr.Search(
			[2]float64{lon - window, lat - window},
			[2]float64{lon + window, lat + window},
			func(_, _ [2]float64, iid IntersectionID) bool {
				found = true
				in := &m.Intersections[iid]
				d := geo.Haversine(lat, lon, in.Lat, in.Lon)
				if d < bestDist {
					bestDist = d
					best = iid
				}
				return true
			},
		)
		if found || window > 10 {
			break
		}
		window *= 4
	}
	return best, bestDist
}

// roadsAlongLineThreshold and roadsAlongLineConnectedBonus mirror
// roads_along_line.rs's THRESHOLD / the bonus it hands a road for being
// connected to one already judged to lie along the line.
const (
	roadsAlongLineThreshold      = 1.5
	roadsAlongLineConnectedBonus = roadsAlongLineThreshold * 0.3
	roadsAlongLineDensifyM       = 5.0
)

// RoadsAlongLine scores every road by how well it matches a user-drawn line
// — e.g. while free-hand tracing a route or a neighbourhood boundary instead
// of clicking individual roads — and returns the roads judged to lie along
// it, sorted by RoadID. Ported from original_source/backend/src/geo_helpers/
// roads_along_line.rs's roads_along_line: each road's score combines a
// Hausdorff-similarity term with a length-trimming penalty (discouraging
// roads barely grazed by the drawn line), roads connected to an already-kept
// road get a bonus and may cross the threshold too, and if nothing clears
// the threshold the single best-scoring road is returned instead of an empty
// result.
func (m *MapModel) RoadsAlongLine(lineLat, lineLon []float64) []RoadID {
	type scored struct {
		id    RoadID
		score float64
	}

	var along, rest []scored
	keptEndpoint := make(map[IntersectionID]bool)

	for _, r := range m.Roads {
		trimmedLat, trimmedLon := geo.TrimNearRoadEndpoints(lineLat, lineLon, r.ShapeLat, r.ShapeLon)
		trimmedLen := geo.PolylineLength(trimmedLat, trimmedLon)
		roadLen := geo.PolylineLength(r.ShapeLat, r.ShapeLon)
		if roadLen == 0 || trimmedLen == 0 {
			continue
		}

		trimmingRatio := math.Abs((roadLen - trimmedLen) / trimmedLen)
		trimmingScore := 1.0 / (1.0 + trimmingRatio)

		dLat, dLon := geo.Densify(r.ShapeLat, r.ShapeLon, roadsAlongLineDensifyM)
		hausdorff := geo.HausdorffDistance(trimmedLat, trimmedLon, dLat, dLon)
		hausdorffScore := (roadLen - hausdorff) / roadLen

		s := scored{id: r.ID, score: hausdorffScore + trimmingScore}
		if s.score >= roadsAlongLineThreshold {
			along = append(along, s)
			keptEndpoint[r.Src] = true
			keptEndpoint[r.Dst] = true
		} else {
			rest = append(rest, s)
		}
	}

	for {
		var promoted []int
		for i, s := range rest {
			r := &m.Roads[s.id]
			bonus := 0.0
			if keptEndpoint[r.Src] {
				bonus += roadsAlongLineConnectedBonus
			}
			if keptEndpoint[r.Dst] {
				bonus += roadsAlongLineConnectedBonus
			}
			if bonus > 0 && s.score+bonus >= roadsAlongLineThreshold {
				promoted = append(promoted, i)
			}
		}
		if len(promoted) == 0 {
			break
		}
		for i := len(promoted) - 1; i >= 0; i-- {
			idx := promoted[i]
			s := rest[idx]
			along = append(along, s)
			keptEndpoint[m.Roads[s.id].Src] = true
			keptEndpoint[m.Roads[s.id].Dst] = true
			rest = append(rest[:idx], rest[idx+1:]...)
		}
	}

	if len(along) == 0 {
		best, bestScore := RoadID(0), -math.MaxFloat64
		found := false
		for _, s := range rest {
			if s.score > bestScore {
				bestScore, best, found = s.score, s.id, true
			}
		}
		if !found {
			return nil
		}
		return []RoadID{best}
	}

	sort.Slice(along, func(i, j int) bool { return along[i].id < along[j].id })
	out := make([]RoadID, len(along))
	for i, s := range along {
		out[i] = s.id
	}
	return out
}

// SnapClick resolves an interactive click to either a road position (for
// route/boundary drawing) or the nearest intersection, mirroring
// original_source/backend/src/route_snapper.rs's closest-road / closest-
// point picking used while a user draws on the map.
func (m *MapModel) SnapClick(lat, lon float64) (SnapResult, IntersectionID, error) {
	snap, err := m.Snap(lat, lon)
	if err != nil {
		return SnapResult{}, 0, err
	}
	node, _ := m.ClosestIntersection(lat, lon)
	return snap, node, nil
}
