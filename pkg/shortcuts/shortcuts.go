// Package shortcuts computes, for a neighbourhood, how many times each
// interior road lies on the shortest path between two of the
// neighbourhood's border intersections — the signal used to flag roads
// attracting rat-running traffic.
package shortcuts

import (
	"fmt"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dijkstra"

	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/neighbourhood"
)

// Shortcuts holds, for one neighbourhood, how many border-to-border
// shortest paths cross each interior road. Ported from
// original_source/backend/src/shortcuts.rs's Shortcuts::new, which ran
// petgraph::algo::astar (heuristic zero, i.e. plain Dijkstra) over every
// ordered pair of border intersections; here the same all-pairs sweep runs
// on github.com/katalvlaran/lvlath's core.Graph + dijkstra.Dijkstra instead
// of a hand-rolled search.
type Shortcuts struct {
	CountPerRoad map[mapmodel.RoadID]int
}

func nodeKey(id mapmodel.IntersectionID) string {
	return fmt.Sprintf("n%d", id)
}

// Compute builds a weighted lvlath graph from the neighbourhood's interior
// roads and runs Dijkstra between every ordered pair of border
// intersections, incrementing a per-road usage counter for every road on
// the winning path.
func Compute(m *mapmodel.MapModel, nb *neighbourhood.Neighbourhood) (*Shortcuts, error) {
	g := core.NewMixedGraph(core.WithDirected(true), core.WithWeighted())

	roadOf := make(map[[2]string]mapmodel.RoadID)
	for rid := range nb.InteriorRoads {
		r := &m.Roads[rid]
		u, v := nodeKey(r.Src), nodeKey(r.Dst)
		if err := g.AddVertex(u); err != nil {
			return nil, fmt.Errorf("add vertex %s: %w", u, err)
		}
		if err := g.AddVertex(v); err != nil {
			return nil, fmt.Errorf("add vertex %s: %w", v, err)
		}
		w := int64(r.LengthM*1000) + 1
		if r.Flow != mapmodel.FlowBackwardOnly {
			if _, err := g.AddEdge(u, v, w); err != nil {
				return nil, err
			}
			roadOf[[2]string{u, v}] = rid
		}
		if r.Flow != mapmodel.FlowForwardOnly {
			if _, err := g.AddEdge(v, u, w); err != nil {
				return nil, err
			}
			roadOf[[2]string{v, u}] = rid
		}
	}

	out := &Shortcuts{CountPerRoad: make(map[mapmodel.RoadID]int)}

	borders := make([]mapmodel.IntersectionID, 0, len(nb.BorderIntersections))
	for id := range nb.BorderIntersections {
		borders = append(borders, id)
	}

	for _, from := range borders {
		_, prev, err := dijkstra.Dijkstra(g, dijkstra.Source(nodeKey(from)), dijkstra.WithReturnPath())
		if err != nil {
			continue
		}
		for _, to := range borders {
			if to == from {
				continue
			}
			path := tracePath(prev, nodeKey(from), nodeKey(to))
			for i := 0; i < len(path)-1; i++ {
				if rid, ok := roadOf[[2]string{path[i], path[i+1]}]; ok {
					out.CountPerRoad[rid]++
				}
			}
		}
	}

	return out, nil
}

func tracePath(prev map[string]string, source, target string) []string {
	if target == source {
		return []string{source}
	}
	var rev []string
	cur := target
	for {
		rev = append(rev, cur)
		p, ok := prev[cur]
		if !ok {
			return nil
		}
		if p == source {
			rev = append(rev, source)
			break
		}
		cur = p
	}
	out := make([]string, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}
