package neighbourhood

import (
	"sort"

	"github.com/azybler/ltn/pkg/geo"
	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/osmtags"
)

// AutoBoundary derives a default neighbourhood boundary from a seed road,
// by flood-filling the non-severance road network reachable from it and
// taking the convex hull of the reached intersections. Supplements
// spec.md's render_auto_boundaries query, grounded on
// original_source/backend/src/auto_boundaries.rs.
func AutoBoundary(m *mapmodel.MapModel, seed mapmodel.RoadID) [][2]float64 {
	visited := make(map[mapmodel.IntersectionID]bool)
	stack := []mapmodel.IntersectionID{m.Roads[seed].Src, m.Roads[seed].Dst}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		start, end := m.EdgesFrom(cur)
		for e := start; e < end; e++ {
			rid := m.OutRoad[e]
			r := &m.Roads[rid]
			if r.Severance != osmtags.NotSeverance {
				continue
			}
			var next mapmodel.IntersectionID
			if m.OutFwd[e] {
				next = r.Dst
			} else {
				next = r.Src
			}
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}

	pts := make([]geo.Pt, 0, len(visited))
	proj := geo.NewProj(m.Intersections[seed].Lat, m.Intersections[seed].Lon)
	ids := make([]mapmodel.IntersectionID, 0, len(visited))
	for id := range visited {
		ids = append(ids, id)
	}
	for _, id := range ids {
		in := &m.Intersections[id]
		pts = append(pts, proj.ToPt(in.Lat, in.Lon))
	}

	hull := convexHull(pts)
	out := make([][2]float64, len(hull))
	for i, p := range hull {
		lat, lon := proj.ToLatLng(p)
		out[i] = [2]float64{lat, lon}
	}
	return out
}

// convexHull computes the convex hull via the monotone chain algorithm.
func convexHull(pts []geo.Pt) []geo.Pt {
	if len(pts) < 3 {
		return pts
	}
	sorted := make([]geo.Pt, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].X != sorted[j].X {
			return sorted[i].X < sorted[j].X
		}
		return sorted[i].Y < sorted[j].Y
	})

	cross := func(o, a, b geo.Pt) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}

	var lower, upper []geo.Pt
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	lower = lower[:len(lower)-1]
	upper = upper[:len(upper)-1]
	return append(lower, upper...)
}
