// Package router builds and queries a Contraction Hierarchies overlay over
// a mapmodel.MapModel, honoring the model's current modal-filter edit state.
package router

import "github.com/azybler/ltn/pkg/mapmodel"

// inputGraph is the CSR view the CH preprocessor consumes: an adjacency
// list of (node -> node) traversals with centimetre weights. It is rebuilt
// from a MapModel every time the router is (re)built, so that filtered
// roads are simply absent from it — routing around a modal filter falls out
// of contracting a graph that never had the blocked traversal in the first
// place, the same way the teacher's graph.Graph was built once from
// immutable OSM data.
type inputGraph struct {
	NumNodes uint32
	FirstOut []uint32
	Head     []uint32
	Weight   []uint32
	NodeLat  []float64
	NodeLon  []float64
}

func (g *inputGraph) EdgesFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}

// routingWeightCM computes length_meters * 100 * penalty, truncated to
// integer centimetres, where penalty is MainRoadPenalty for roads in the
// main-road set and 1.0 otherwise.
func routingWeightCM(m *mapmodel.MapModel, r *mapmodel.Road) uint32 {
	penalty := 1.0
	if r.IsMainRoad {
		penalty = m.MainRoadPenalty
		if penalty <= 0 {
			penalty = 1.0
		}
	}
	cm := uint32(r.LengthM * 100 * penalty)
	if cm == 0 {
		cm = 1
	}
	return cm
}

// buildInputGraph walks the MapModel's CSR adjacency, keeping only
// traversals whose road currently has no modal filter.
func buildInputGraph(m *mapmodel.MapModel) *inputGraph {
	n := uint32(m.NumIntersections())

	type edge struct {
		from, to, weight uint32
	}
	var edges []edge
	for u := uint32(0); u < n; u++ {
		start, end := m.EdgesFrom(mapmodel.IntersectionID(u))
		for e := start; e < end; e++ {
			rid := m.OutRoad[e]
			if m.IsFiltered(rid) {
				continue
			}
			r := &m.Roads[rid]
			var to mapmodel.IntersectionID
			if m.OutFwd[e] {
				to = r.Dst
			} else {
				to = r.Src
			}
			edges = append(edges, edge{from: u, to: uint32(to), weight: routingWeightCM(m, r)})
		}
	}

	firstOut := make([]uint32, n+1)
	for _, e := range edges {
		firstOut[e.from+1]++
	}
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}
	head := make([]uint32, len(edges))
	weight := make([]uint32, len(edges))
	pos := make([]uint32, n)
	copy(pos, firstOut[:n])
	for _, e := range edges {
		idx := pos[e.from]
		head[idx] = e.to
		weight[idx] = e.weight
		pos[e.from]++
	}

	nodeLat := make([]float64, n)
	nodeLon := make([]float64, n)
	for i, in := range m.Intersections {
		nodeLat[i] = in.Lat
		nodeLon[i] = in.Lon
	}

	return &inputGraph{
		NumNodes: n, FirstOut: firstOut, Head: head, Weight: weight,
		NodeLat: nodeLat, NodeLon: nodeLon,
	}
}
