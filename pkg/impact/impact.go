// Package impact measures how an edit shifts routed traffic across the
// whole map, not just within one neighbourhood: it samples a fixed set of
// synthetic origin/destination pairs and counts how many chosen routes
// cross each road, before and after the edit.
package impact

import (
	"context"
	"math/rand"

	geojson "github.com/paulmach/go.geojson"

	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/router"
)

// odPair is a fixed synthetic request between two intersections.
type odPair struct {
	From, To mapmodel.IntersectionID
}

// Impact lazily caches before/after per-road route counts over a fixed set
// of synthetic OD pairs. Ported from original_source/backend/src/impact.rs's
// Impact.
type Impact struct {
	requests []odPair

	countsBefore map[mapmodel.RoadID]int
	countsAfter  map[mapmodel.RoadID]int
}

const numSyntheticRequests = 1000

// New samples Impact's fixed synthetic OD pairs from the study area's
// intersections (seed 42, deterministic), without running any routing yet.
func New(m *mapmodel.MapModel) *Impact {
	n := len(m.Intersections)
	requests := make([]odPair, 0, numSyntheticRequests)
	if n > 0 {
		rng := rand.New(rand.NewSource(42))
		for i := 0; i < numSyntheticRequests; i++ {
			requests = append(requests, odPair{
				From: mapmodel.IntersectionID(rng.Intn(n)),
				To:   mapmodel.IntersectionID(rng.Intn(n)),
			})
		}
	}
	return &Impact{requests: requests}
}

// InvalidateAfterEdits clears counts_after, forcing Recalculate to re-route
// every request against the router rebuilt after the most recent edit.
func (im *Impact) InvalidateAfterEdits() {
	im.countsAfter = nil
}

// InvalidateBaseline clears counts_before as well, used when a
// baseline-affecting edit (main road penalty, reclassification) changes what
// "before" even means.
func (im *Impact) InvalidateBaseline() {
	im.countsBefore = nil
	im.countsAfter = nil
}

// MaxCountResult is the road-by-road before/after diff plus the largest
// count seen on either side, used by callers to normalize a color scale.
type MaxCountResult struct {
	FeatureCollection *geojson.FeatureCollection
	MaxCount          int
}

// Recalculate routes every synthetic request through routerBefore (cached
// after the first call) and routerAfter (recomputed whenever counts_after
// was invalidated), then emits one feature per road whose before/after
// counts differ.
func (im *Impact) Recalculate(ctx context.Context, m *mapmodel.MapModel, routerBefore, routerAfter *router.Router) (*MaxCountResult, error) {
	if im.countsBefore == nil {
		counts, err := odToCounts(ctx, m, routerBefore, im.requests)
		if err != nil {
			return nil, err
		}
		im.countsBefore = counts
	}
	if im.countsAfter == nil {
		counts, err := odToCounts(ctx, m, routerAfter, im.requests)
		if err != nil {
			return nil, err
		}
		im.countsAfter = counts
	}

	fc := geojson.NewFeatureCollection()
	maxCount := 0
	for _, r := range m.Roads {
		before := im.countsBefore[r.ID]
		after := im.countsAfter[r.ID]
		if before > maxCount {
			maxCount = before
		}
		if after > maxCount {
			maxCount = after
		}
		if before == after || (before == 0 && after == 0) {
			continue
		}
		coords := make([][]float64, len(r.ShapeLat))
		for i := range r.ShapeLat {
			coords[i] = []float64{r.ShapeLon[i], r.ShapeLat[i]}
		}
		f := geojson.NewLineStringFeature(coords)
		f.Properties["id"] = uint32(r.ID)
		f.Properties["before"] = before
		f.Properties["after"] = after
		fc.AddFeature(f)
	}

	return &MaxCountResult{FeatureCollection: fc, MaxCount: maxCount}, nil
}

// ChangedRoute is a single before/after pair of route geometries whose
// relationship to a queried road changed between the two routers.
type ChangedRoute struct {
	Before, After *geojson.Feature
}

// GetImpactsOnRoad re-routes every synthetic request through both routers
// and returns the before/after geometry pair for every request whose route
// started or stopped crossing road. Ported from impact.rs's
// get_impacts_on_road.
func (im *Impact) GetImpactsOnRoad(ctx context.Context, m *mapmodel.MapModel, routerBefore, routerAfter *router.Router, road mapmodel.RoadID) []ChangedRoute {
	var out []ChangedRoute
	for _, req := range im.requests {
		if int(req.From) >= len(m.Intersections) || int(req.To) >= len(m.Intersections) {
			continue
		}
		from := m.Intersections[req.From]
		to := m.Intersections[req.To]
		start := router.LatLng{Lat: from.Lat, Lng: from.Lon}
		end := router.LatLng{Lat: to.Lat, Lng: to.Lon}

		route1, err1 := routerBefore.Route(ctx, start, end)
		route2, err2 := routerAfter.Route(ctx, start, end)
		if err1 != nil || err2 != nil {
			continue
		}
		if crossesRoad(route1, road) == crossesRoad(route2, road) {
			continue
		}
		out = append(out, ChangedRoute{
			Before: routeFeature(route1, "before"),
			After:  routeFeature(route2, "after"),
		})
	}
	return out
}

func crossesRoad(result *router.Result, road mapmodel.RoadID) bool {
	for _, rid := range result.RoadsCrossed {
		if rid == road {
			return true
		}
	}
	return false
}

func routeFeature(result *router.Result, kind string) *geojson.Feature {
	var coords [][]float64
	for _, seg := range result.Segments {
		for _, p := range seg.Geometry {
			coords = append(coords, []float64{p.Lng, p.Lat})
		}
	}
	f := geojson.NewLineStringFeature(coords)
	f.Properties["kind"] = kind
	return f
}

// odToCounts routes every request through r and tallies, per road, how many
// resulting routes pass through it.
func odToCounts(ctx context.Context, m *mapmodel.MapModel, r *router.Router, requests []odPair) (map[mapmodel.RoadID]int, error) {
	counts := make(map[mapmodel.RoadID]int)
	for _, req := range requests {
		if int(req.From) >= len(m.Intersections) || int(req.To) >= len(m.Intersections) {
			continue
		}
		from := m.Intersections[req.From]
		to := m.Intersections[req.To]
		result, err := r.Route(ctx, router.LatLng{Lat: from.Lat, Lng: from.Lon}, router.LatLng{Lat: to.Lat, Lng: to.Lon})
		if err != nil {
			continue
		}
		seen := make(map[mapmodel.RoadID]struct{}, len(result.RoadsCrossed))
		for _, rid := range result.RoadsCrossed {
			if _, dup := seen[rid]; dup {
				continue
			}
			seen[rid] = struct{}{}
			counts[rid]++
		}
	}
	return counts, nil
}
