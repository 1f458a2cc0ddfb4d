package mapmodel

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/azybler/ltn/pkg/geo"
	"github.com/azybler/ltn/pkg/osmtags"
)

// BBox restricts ingestion to a geographic window; the zero value means
// "no filter".
type BBox struct {
	MinLat, MaxLat, MinLon, MaxLon float64
}

func (b BBox) isZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLon == 0 && b.MaxLon == 0
}

func (b BBox) contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// BuildOptions configures ingestion.
type BuildOptions struct {
	BBox              BBox
	CollapseDogLegs   bool
	Logger            *zap.Logger
}

type wayInfo struct {
	nodeIDs  []osm.NodeID
	kind     osmtags.RoadKind
	severance osmtags.SeveranceKind
	forward  bool
	backward bool
	name     string
	speedKMH float64
	osmID    int64
	busGate  bool
}

// Build ingests an OSM PBF stream into a MapModel: two-pass way/node scan,
// CSR construction, largest-connected-component filtering, and (optionally)
// dog-leg collapsing. Mirrors azybler-map_router's osm.Parse + graph.Build +
// graph.LargestComponent/FilterToComponent pipeline, generalized to carry
// road classification and geometry rather than car-only weights.
func Build(ctx context.Context, rs io.ReadSeeker, opts BuildOptions) (*MapModel, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	useBBox := !opts.BBox.isZero()

	referenced := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		kind, driveable := osmtags.ClassifyHighway(w.Tags)
		severance := osmtags.ClassifySeverance(w.Tags)
		if !driveable && severance == osmtags.NotSeverance {
			continue
		}
		if len(w.Nodes) < 2 {
			continue
		}
		fwd, bwd := osmtags.DirectionFlags(w.Tags)
		if driveable && !fwd && !bwd {
			continue
		}
		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referenced[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{
			nodeIDs:   nodeIDs,
			kind:      kind,
			severance: severance,
			forward:   fwd,
			backward:  bwd,
			name:      w.Tags.Find("name"),
			speedKMH:  osmtags.SpeedKMH(w.Tags, kind),
			osmID:     int64(w.ID),
			busGate:   osmtags.IsBusGate(w.Tags),
		})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()
	log.Info("ingestion pass 1 complete", zap.Int("ways", len(ways)), zap.Int("referenced_nodes", len(referenced)))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(referenced))
	nodeLon := make(map[osm.NodeID]float64, len(referenced))
	barrierNodes := make(map[osm.NodeID]bool)
	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true
	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referenced[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
		if n.Tags.Find("barrier") != "" {
			barrierNodes[n.ID] = true
		}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()
	log.Info("ingestion pass 2 complete", zap.Int("coords", len(nodeLat)), zap.Int("barrier_nodes", len(barrierNodes)))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 3: %w", err)
	}
	restrictions := scanRestrictions(ctx, rs)
	log.Info("ingestion pass 3 complete", zap.Int("turn_restrictions", len(restrictions)))

	// Assign intersection IDs to every referenced node in first-seen order.
	nodeIdx := make(map[osm.NodeID]IntersectionID, len(referenced))
	var intersections []Intersection
	assign := func(id osm.NodeID) (IntersectionID, bool) {
		lat, ok1 := nodeLat[id]
		lon, ok2 := nodeLon[id]
		if !ok1 || !ok2 {
			return 0, false
		}
		if useBBox && !opts.BBox.contains(lat, lon) {
			return 0, false
		}
		if iid, ok := nodeIdx[id]; ok {
			return iid, true
		}
		iid := IntersectionID(len(intersections))
		nodeIdx[id] = iid
		intersections = append(intersections, Intersection{
			ID: iid, OSMNodeID: int64(id), Lat: lat, Lon: lon,
		})
		return iid, true
	}

	var roads []Road
	for _, w := range ways {
		for i := 0; i < len(w.nodeIDs)-1; i++ {
			srcID, ok1 := assign(w.nodeIDs[i])
			dstID, ok2 := assign(w.nodeIDs[i+1])
			if !ok1 || !ok2 {
				continue
			}
			srcLat, srcLon := intersections[srcID].Lat, intersections[srcID].Lon
			dstLat, dstLon := intersections[dstID].Lat, intersections[dstID].Lon
			dist := geo.Haversine(srcLat, srcLon, dstLat, dstLon)

			flow := FlowBoth
			if w.forward && !w.backward {
				flow = FlowForwardOnly
			} else if !w.forward && w.backward {
				flow = FlowBackwardOnly
			}

			roads = append(roads, Road{
				ID:        RoadID(len(roads)),
				OSMWayID:  w.osmID,
				Src:       srcID,
				Dst:       dstID,
				Kind:      w.kind,
				Flow:      flow,
				LengthM:   math.Max(dist, 0.001),
				SpeedKMH:   w.speedKMH,
				Name:       w.name,
				Severance:  w.severance,
				IsMainRoad: w.kind.IsMainRoad(),
				ShapeLat:   []float64{srcLat, dstLat},
				ShapeLon:   []float64{srcLon, dstLon},
			})
		}
	}
	log.Info("ingestion built road segments", zap.Int("roads", len(roads)), zap.Int("intersections", len(intersections)))

	m := &MapModel{
		StudyAreaID:     uuid.NewString(),
		Roads:           roads,
		Intersections:   intersections,
		ModalFilters:    make(map[RoadID]ModalFilter),
		DiagonalFilters: make(map[IntersectionID]DiagonalFilter),
		MainRoadPenalty: 1.0,
	}
	m.buildCSR()
	m = m.largestComponent()
	if opts.CollapseDogLegs {
		m.collapseDogLegs(log)
	}
	m.BuildIndices()

	busGateWayIDs := make(map[int64]bool)
	for _, w := range ways {
		if w.busGate {
			busGateWayIDs[w.osmID] = true
		}
	}
	m.applyPreexistingRestrictions(barrierNodes, busGateWayIDs, restrictions, log)

	return m, nil
}

// buildCSR (re)builds the FirstOut/OutRoad/OutFwd adjacency from m.Roads,
// adding a traversal for every direction each road's Flow permits.
// Mirrors azybler-map_router/pkg/graph/builder.go's prefix-sum CSR
// construction.
func (m *MapModel) buildCSR() {
	n := len(m.Intersections)
	type trav struct {
		from IntersectionID
		road RoadID
		fwd  bool
	}
	var travs []trav
	for _, r := range m.Roads {
		if r.Flow != FlowBackwardOnly {
			travs = append(travs, trav{r.Src, r.ID, true})
		}
		if r.Flow != FlowForwardOnly {
			travs = append(travs, trav{r.Dst, r.ID, false})
		}
	}

	firstOut := make([]uint32, n+1)
	for _, t := range travs {
		firstOut[t.from+1]++
	}
	for i := 1; i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}
	outRoad := make([]RoadID, len(travs))
	outFwd := make([]bool, len(travs))
	pos := make([]uint32, n)
	copy(pos, firstOut[:n])
	for _, t := range travs {
		idx := pos[t.from]
		outRoad[idx] = t.road
		outFwd[idx] = t.fwd
		pos[t.from]++
	}

	m.FirstOut = firstOut
	m.OutRoad = outRoad
	m.OutFwd = outFwd
}

// largestComponent restricts the model to its largest weakly-connected
// component, ported from azybler-map_router/pkg/graph/component.go's
// UnionFind + FilterToComponent.
func (m *MapModel) largestComponent() *MapModel {
	n := len(m.Intersections)
	if n == 0 {
		return m
	}
	uf := newUnionFind(n)
	for _, r := range m.Roads {
		uf.union(int(r.Src), int(r.Dst))
	}
	size := make(map[int]int)
	bestRoot, bestSize := 0, 0
	for i := 0; i < n; i++ {
		root := uf.find(i)
		size[root]++
		if size[root] > bestSize {
			bestRoot, bestSize = root, size[root]
		}
	}

	keep := make([]bool, n)
	oldToNew := make([]IntersectionID, n)
	var newIntersections []Intersection
	for i := 0; i < n; i++ {
		if uf.find(i) == bestRoot {
			keep[i] = true
			oldToNew[i] = IntersectionID(len(newIntersections))
			ni := m.Intersections[i]
			ni.ID = oldToNew[i]
			newIntersections = append(newIntersections, ni)
		}
	}

	var newRoads []Road
	for _, r := range m.Roads {
		if keep[r.Src] && keep[r.Dst] {
			nr := r
			nr.ID = RoadID(len(newRoads))
			nr.Src = oldToNew[r.Src]
			nr.Dst = oldToNew[r.Dst]
			newRoads = append(newRoads, nr)
		}
	}

	out := &MapModel{
		StudyAreaID:     m.StudyAreaID,
		Roads:           newRoads,
		Intersections:   newIntersections,
		ModalFilters:    m.ModalFilters,
		DiagonalFilters: m.DiagonalFilters,
		MainRoadPenalty: m.MainRoadPenalty,
	}
	out.buildCSR()
	return out
}

type unionFind struct {
	parent []int
	rank   []byte
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p, rank: make([]byte, n)}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(x, y int) {
	rx, ry := u.find(x), u.find(y)
	if rx == ry {
		return
	}
	if u.rank[rx] < u.rank[ry] {
		rx, ry = ry, rx
	}
	u.parent[ry] = rx
	if u.rank[rx] == u.rank[ry] {
		u.rank[rx]++
	}
}
