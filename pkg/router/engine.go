package router

import (
	"context"
	"errors"
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/azybler/ltn/pkg/mapmodel"
)

// ErrNoRoute is returned when no route exists between two snapped points.
// Per the ambient error-handling convention, this is never surfaced past
// the HTTP layer as a 5xx — callers translate it to a "no result" response.
var ErrNoRoute = errors.New("router: no route found")

// LatLng is a geographic coordinate.
type LatLng struct {
	Lat, Lng float64
}

// Segment is one leg of a route result, carrying both its length and its
// rendered geometry.
type Segment struct {
	DistanceMeters float64
	Geometry       []LatLng
}

// Result is the output of a route query.
type Result struct {
	TotalDistanceMeters float64
	Segments            []Segment
	// RoadsCrossed lists every road this route traverses, in order, used by
	// Impact to tally before/after traffic per road without re-matching
	// geometry.
	RoadsCrossed []mapmodel.RoadID
}

// Router answers point-to-point queries over the current edit state of a
// MapModel.
type Router struct {
	log    *zap.Logger
	model  *mapmodel.MapModel
	chg    *chGraph
	ig     *inputGraph
	qsPool sync.Pool
}

// Build contracts the MapModel's current (post-edit) road graph into a CH
// overlay. Call again after edits change which roads are filtered.
func Build(m *mapmodel.MapModel, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	ig := buildInputGraph(m)
	chg := contract(ig, log)
	r := &Router{log: log, model: m, chg: chg, ig: ig}
	r.qsPool.New = func() any { return newQueryState(chg.NumNodes) }
	return r
}

// Route computes the shortest current-state path between two points.
func (r *Router) Route(ctx context.Context, start, end LatLng) (*Result, error) {
	startSnap, err := r.model.Snap(start.Lat, start.Lng)
	if err != nil {
		return nil, err
	}
	endSnap, err := r.model.Snap(end.Lat, end.Lng)
	if err != nil {
		return nil, err
	}

	startRoad := &r.model.Roads[startSnap.Road]
	endRoad := &r.model.Roads[endSnap.Road]

	qs := r.qsPool.Get().(*queryState)
	defer func() {
		qs.Reset()
		r.qsPool.Put(qs)
	}()

	seedForward(qs, r.model, startRoad, startSnap.Frac)
	seedBackward(qs, r.model, endRoad, endSnap.Frac)

	mu, meetNode := r.run(ctx, qs)
	if meetNode == noNode || mu == math.MaxUint32 {
		return nil, ErrNoRoute
	}

	overlayNodes := reconstructPath(meetNode, qs.PredFwd, qs.PredBwd)
	origNodes := unpackOverlayPath(r.chg, overlayNodes)
	geometry := r.buildGeometry(origNodes)
	roads := r.roadsAlong(origNodes)

	totalM := float64(mu) / 100.0
	return &Result{
		TotalDistanceMeters: totalM,
		Segments:            []Segment{{DistanceMeters: totalM, Geometry: geometry}},
		RoadsCrossed:        roads,
	}, nil
}

// roadsAlong maps each consecutive pair of original-graph node IDs back to
// the road connecting them, by scanning the MapModel's own CSR (bounded by
// node degree, not total road count).
func (r *Router) roadsAlong(nodes []uint32) []mapmodel.RoadID {
	if len(nodes) < 2 {
		return nil
	}
	out := make([]mapmodel.RoadID, 0, len(nodes)-1)
	for i := 0; i < len(nodes)-1; i++ {
		u, v := mapmodel.IntersectionID(nodes[i]), mapmodel.IntersectionID(nodes[i+1])
		start, end := r.model.EdgesFrom(u)
		for e := start; e < end; e++ {
			rid := r.model.OutRoad[e]
			rd := &r.model.Roads[rid]
			var to mapmodel.IntersectionID
			if r.model.OutFwd[e] {
				to = rd.Dst
			} else {
				to = rd.Src
			}
			if to == v {
				out = append(out, rid)
				break
			}
		}
	}
	return out
}

func reconstructPath(meetNode uint32, predFwd, predBwd []uint32) []uint32 {
	fwdPath := make([]uint32, 0, 16)
	node := meetNode
	for {
		fwdPath = append(fwdPath, node)
		pred := predFwd[node]
		if pred == noNode {
			break
		}
		node = pred
	}
	for i, j := 0, len(fwdPath)-1; i < j; i, j = i+1, j-1 {
		fwdPath[i], fwdPath[j] = fwdPath[j], fwdPath[i]
	}
	node = meetNode
	for {
		pred := predBwd[node]
		if pred == noNode {
			break
		}
		fwdPath = append(fwdPath, pred)
		node = pred
	}
	return fwdPath
}

func (r *Router) buildGeometry(nodes []uint32) []LatLng {
	if len(nodes) == 0 {
		return nil
	}
	geom := make([]LatLng, 0, len(nodes))
	for _, n := range nodes {
		geom = append(geom, LatLng{Lat: r.ig.NodeLat[n], Lng: r.ig.NodeLon[n]})
	}
	return geom
}

func seedForward(qs *queryState, m *mapmodel.MapModel, r *mapmodel.Road, frac float64) {
	w := routingWeightCM(m, r)
	dv := uint32(math.Round(float64(w) * (1 - frac)))
	du := uint32(math.Round(float64(w) * frac))
	v, u := uint32(r.Dst), uint32(r.Src)
	qs.touchFwd(v, dv)
	qs.FwdPQ.Push(v, dv)
	qs.touchFwd(u, du)
	qs.FwdPQ.Push(u, du)
}

func seedBackward(qs *queryState, m *mapmodel.MapModel, r *mapmodel.Road, frac float64) {
	w := routingWeightCM(m, r)
	du := uint32(math.Round(float64(w) * frac))
	dv := uint32(math.Round(float64(w) * (1 - frac)))
	u, v := uint32(r.Src), uint32(r.Dst)
	qs.touchBwd(u, du)
	qs.BwdPQ.Push(u, du)
	qs.touchBwd(v, dv)
	qs.BwdPQ.Push(v, dv)
}

// run executes bidirectional CH Dijkstra with predecessor tracking, ported
// from azybler-map_router/pkg/routing/engine.go's runCHDijkstra.
func (r *Router) run(ctx context.Context, qs *queryState) (uint32, uint32) {
	mu := uint32(math.MaxUint32)
	meetNode := noNode
	iterations := uint32(0)

	for {
		fwdMin := qs.FwdPQ.PeekDist()
		bwdMin := qs.BwdPQ.PeekDist()
		if fwdMin >= mu && bwdMin >= mu {
			break
		}

		iterations++
		if iterations&255 == 0 && ctx.Err() != nil {
			return mu, meetNode
		}

		if fwdMin < mu {
			item := qs.FwdPQ.Pop()
			u, d := item.Node, item.Dist
			if d <= qs.DistFwd[u] {
				if qs.DistBwd[u] < math.MaxUint32 {
					if cand := d + qs.DistBwd[u]; cand < mu {
						mu, meetNode = cand, u
					}
				}
				fStart, fEnd := r.chg.FwdFirstOut[u], r.chg.FwdFirstOut[u+1]
				for ei := fStart; ei < fEnd; ei++ {
					v := r.chg.FwdHead[ei]
					nd := d + r.chg.FwdWeight[ei]
					if nd < qs.DistFwd[v] {
						qs.touchFwd(v, nd)
						qs.FwdPQ.Push(v, nd)
						qs.PredFwd[v] = u
					}
				}
			}
		}

		if qs.BwdPQ.PeekDist() < mu {
			item := qs.BwdPQ.Pop()
			u, d := item.Node, item.Dist
			if d <= qs.DistBwd[u] {
				if qs.DistFwd[u] < math.MaxUint32 {
					if cand := qs.DistFwd[u] + d; cand < mu {
						mu, meetNode = cand, u
					}
				}
				bStart, bEnd := r.chg.BwdFirstOut[u], r.chg.BwdFirstOut[u+1]
				for ei := bStart; ei < bEnd; ei++ {
					v := r.chg.BwdHead[ei]
					nd := d + r.chg.BwdWeight[ei]
					if nd < qs.DistBwd[v] {
						qs.touchBwd(v, nd)
						qs.BwdPQ.Push(v, nd)
						qs.PredBwd[v] = u
					}
				}
			}
		}
	}

	return mu, meetNode
}
