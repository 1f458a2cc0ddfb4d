// Package neighbourhood partitions a MapModel's roads against a
// user-drawn boundary polygon into interior roads, roads that cross the
// boundary, and the intersections sitting on or near its edge.
package neighbourhood

import (
	"context"
	"fmt"

	geojson "github.com/paulmach/go.geojson"

	"github.com/azybler/ltn/pkg/contextstore"
	"github.com/azybler/ltn/pkg/geo"
	"github.com/azybler/ltn/pkg/geojsonio"
	"github.com/azybler/ltn/pkg/mapmodel"
)

// borderEpsilonM is how close an intersection must sit to the boundary
// polygon's exterior to be classified as a border intersection, matching
// original_source/backend/src/neighbourhood.rs's 0.1 (meter, after mercator
// projection) threshold.
const borderEpsilonM = 0.1

// Neighbourhood is the result of intersecting a MapModel against a single
// boundary polygon. Ported from
// original_source/backend/src/neighbourhood.rs's Neighbourhood::new.
type Neighbourhood struct {
	Boundary            []geo.Pt // closed ring, planar meters
	Proj                geo.Proj // projection Boundary (and any derived planar math) is expressed in
	InteriorRoads       map[mapmodel.RoadID]struct{}
	Crosses             map[mapmodel.RoadID]struct{}
	BorderIntersections map[mapmodel.IntersectionID]float64 // value: distance to exterior
}

// New partitions m's roads against a lat/lng boundary ring (first point not
// repeated as last; New closes it).
func New(m *mapmodel.MapModel, boundaryLatLng [][2]float64) (*Neighbourhood, error) {
	if len(boundaryLatLng) < 3 {
		return nil, fmt.Errorf("neighbourhood: boundary needs at least 3 points")
	}
	lat0, lon0 := boundaryLatLng[0][0], boundaryLatLng[0][1]
	proj := geo.NewProj(lat0, lon0)

	ring := make([]geo.Pt, len(boundaryLatLng))
	for i, p := range boundaryLatLng {
		ring[i] = proj.ToPt(p[0], p[1])
	}

	nb := &Neighbourhood{
		Boundary:            ring,
		Proj:                proj,
		InteriorRoads:       make(map[mapmodel.RoadID]struct{}),
		Crosses:             make(map[mapmodel.RoadID]struct{}),
		BorderIntersections: make(map[mapmodel.IntersectionID]float64),
	}

	for _, r := range m.Roads {
		pts := make([]geo.Pt, len(r.ShapeLat))
		for i := range r.ShapeLat {
			pts[i] = proj.ToPt(r.ShapeLat[i], r.ShapeLon[i])
		}
		contained := allInside(pts, ring)
		if contained {
			nb.InteriorRoads[r.ID] = struct{}{}
			continue
		}
		if anySegmentCrosses(pts, ring) {
			nb.Crosses[r.ID] = struct{}{}
		}
	}

	if len(nb.InteriorRoads) == 0 {
		return nil, fmt.Errorf("neighbourhood: boundary contains no interior roads")
	}

	seen := make(map[mapmodel.IntersectionID]struct{})
	for rid := range nb.InteriorRoads {
		seen[m.Roads[rid].Src] = struct{}{}
		seen[m.Roads[rid].Dst] = struct{}{}
	}
	for rid := range nb.Crosses {
		seen[m.Roads[rid].Src] = struct{}{}
		seen[m.Roads[rid].Dst] = struct{}{}
	}
	for id := range seen {
		in := &m.Intersections[id]
		pt := proj.ToPt(in.Lat, in.Lon)
		d := geo.DistToPolylineExterior(pt, ring)
		if d < borderEpsilonM {
			nb.BorderIntersections[id] = d
		}
	}

	return nb, nil
}

// allInside reports whether every point lies inside ring or within
// borderEpsilonM of its edge, so a road ending on the boundary still counts.
func allInside(pts []geo.Pt, ring []geo.Pt) bool {
	for _, p := range pts {
		if !geo.PointInPolygon(p, ring) && geo.DistToPolylineExterior(p, ring) >= borderEpsilonM {
			return false
		}
	}
	return true
}

func anySegmentCrosses(pts []geo.Pt, ring []geo.Pt) bool {
	for i := 0; i < len(pts)-1; i++ {
		for j := 0; j < len(ring); j++ {
			a, b := ring[j], ring[(j+1)%len(ring)]
			if geo.SegmentsIntersect(pts[i], pts[i+1], a, b) {
				return true
			}
		}
	}
	// also true if any point is inside and any is outside (partial containment)
	anyIn, anyOut := false, false
	for _, p := range pts {
		if geo.PointInPolygon(p, ring) {
			anyIn = true
		} else {
			anyOut = true
		}
	}
	return anyIn && anyOut
}

// ToGeoJSON emits interior_road / crosses / border_intersection features,
// matching neighbourhood.rs's to_gj.
func (nb *Neighbourhood) ToGeoJSON(m *mapmodel.MapModel) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for rid := range nb.InteriorRoads {
		r := &m.Roads[rid]
		f := geojson.NewLineStringFeature(toLineCoords(r))
		f.Properties["kind"] = "interior_road"
		f.Properties["road_id"] = uint32(rid)
		fc.AddFeature(f)
	}
	for rid := range nb.Crosses {
		r := &m.Roads[rid]
		f := geojson.NewLineStringFeature(toLineCoords(r))
		f.Properties["kind"] = "crosses"
		f.Properties["road_id"] = uint32(rid)
		fc.AddFeature(f)
	}
	for id, dist := range nb.BorderIntersections {
		in := &m.Intersections[id]
		f := geojson.NewPointFeature(geojsonio.PointCoord(in.Lat, in.Lon))
		f.Properties["kind"] = "border_intersection"
		f.Properties["dist"] = dist
		fc.AddFeature(f)
	}
	return fc
}

func toLineCoords(r *mapmodel.Road) [][]float64 {
	return geojsonio.LineStringCoords(r.ShapeLat, r.ShapeLon)
}

// Stats is a population/area summary for a neighbourhood, ported from
// original_source/backend/src/boundary_stats.rs.
type Stats struct {
	PopulationZones int
	TotalPopulation int
	TotalAreaSqKm   float64
	// SkippedZones counts zones whose geometry failed to decode — a local,
	// non-fatal recovery per spec.md §7's GeometryDegenerate policy for
	// runtime analytical calls.
	SkippedZones int
}

// Stats sums population and area over every contextstore population zone
// whose centroid falls inside nb's boundary.
func (nb *Neighbourhood) Stats(ctx context.Context, store *contextstore.Store, studyAreaID string) (Stats, error) {
	zones, err := store.PopulationZonesForStudyArea(ctx, studyAreaID)
	if err != nil {
		return Stats{}, err
	}

	var out Stats
	for _, z := range zones {
		ring, err := z.Ring()
		if err != nil {
			out.SkippedZones++
			continue
		}
		pts := make([]geo.Pt, len(ring))
		for i, p := range ring {
			pts[i] = nb.Proj.ToPt(p[0], p[1])
		}
		if !geo.PointInPolygon(centroid(pts), nb.Boundary) {
			continue
		}
		out.PopulationZones++
		out.TotalPopulation += z.Population
		out.TotalAreaSqKm += z.AreaSqKm
	}
	return out, nil
}

func centroid(pts []geo.Pt) geo.Pt {
	if len(pts) == 0 {
		return geo.Pt{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return geo.Pt{X: sx / n, Y: sy / n}
}
