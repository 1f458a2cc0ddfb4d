package mapmodel

import (
	"context"
	"io"
	"sort"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"

	"github.com/azybler/ltn/pkg/osmtags"
)

// rawRestriction is a type=restriction relation resolved only down to OSM
// node/way ids; Build later resolves it to surviving Road/Intersection ids.
type rawRestriction struct {
	viaNode osm.NodeID
	fromWay int64
	toWay   int64
}

// restrictionKinds lists the restriction tag values spec.md §4.1 step 9
// turns into a TurnRestriction; "only_*" positive restrictions and anything
// else are left alone since they don't map to a single forbidden movement.
var restrictionKinds = map[string]bool{
	"no_left_turn":    true,
	"no_right_turn":   true,
	"no_u_turn":       true,
	"no_straight_on":  true,
}

// scanRestrictions runs a third pass over the PBF stream collecting
// type=restriction relations whose via member is a single node and whose
// from/to members are ways — the only shape a Road/Intersection turn
// restriction can express.
func scanRestrictions(ctx context.Context, rs io.ReadSeeker) []rawRestriction {
	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipWays = true
	defer scanner.Close()

	var out []rawRestriction
	for scanner.Scan() {
		rel, ok := scanner.Object().(*osm.Relation)
		if !ok {
			continue
		}
		if rel.Tags.Find("type") != "restriction" {
			continue
		}
		if !restrictionKinds[rel.Tags.Find("restriction")] {
			continue
		}
		var via osm.NodeID
		var from, to int64
		viaOK := false
		for _, mem := range rel.Members {
			switch mem.Role {
			case "via":
				if mem.Type == osm.TypeNode {
					via = osm.NodeID(mem.Ref)
					viaOK = true
				}
			case "from":
				if mem.Type == osm.TypeWay {
					from = mem.Ref
				}
			case "to":
				if mem.Type == osm.TypeWay {
					to = mem.Ref
				}
			}
		}
		if !viaOK || from == 0 || to == 0 {
			continue
		}
		out = append(out, rawRestriction{viaNode: via, fromWay: from, toWay: to})
	}
	return out
}

// applyPreexistingRestrictions turns surviving barrier nodes, pedestrian
// roads, bus-gate roads, and resolved turn-restriction relations into
// ModalFilters/TurnRestrictions, then snapshots the result into
// OriginalModalFilters as the undo/redo-immune baseline. Grounded on
// spec.md §4.1 step 9; the frac-positioning rule (0.5 both ends open, 0.1
// only the source end open, 0.9 only the dest end open, skip if both ends
// already carry a filter) is applied per incident road in RoadID order so
// the output is deterministic regardless of OSM node/way ordering.
func (m *MapModel) applyPreexistingRestrictions(barrierNodes map[osm.NodeID]bool, busGateWayIDs map[int64]bool, restrictions []rawRestriction, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}

	osmNodeToIntersections := make(map[int64][]IntersectionID)
	for _, in := range m.Intersections {
		osmNodeToIntersections[in.OSMNodeID] = append(osmNodeToIntersections[in.OSMNodeID], in.ID)
	}

	filtered := make(map[IntersectionID]bool)
	for rid := range m.ModalFilters {
		r := &m.Roads[rid]
		filtered[r.Src] = true
		filtered[r.Dst] = true
	}

	place := func(candidates []RoadID, kind string) {
		for _, rid := range candidates {
			if m.IsFiltered(rid) {
				continue
			}
			r := &m.Roads[rid]
			srcOpen, dstOpen := !filtered[r.Src], !filtered[r.Dst]
			if !srcOpen && !dstOpen {
				continue
			}
			frac := 0.5
			switch {
			case srcOpen && !dstOpen:
				frac = 0.1
			case !srcOpen && dstOpen:
				frac = 0.9
			}
			m.ModalFilters[rid] = ModalFilter{Road: rid, Frac: frac, Kind: kind}
			filtered[r.Src] = true
			filtered[r.Dst] = true
			return
		}
	}

	incidentRoads := func(iid IntersectionID) []RoadID {
		start, end := m.EdgesFrom(iid)
		seen := make(map[RoadID]bool)
		var ids []RoadID
		for e := start; e < end; e++ {
			rid := m.OutRoad[e]
			if !seen[rid] {
				seen[rid] = true
				ids = append(ids, rid)
			}
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids
	}

	// 1. Barrier nodes -> NoEntry.
	var barrierOSMIDs []int64
	for id := range barrierNodes {
		barrierOSMIDs = append(barrierOSMIDs, int64(id))
	}
	sort.Slice(barrierOSMIDs, func(i, j int) bool { return barrierOSMIDs[i] < barrierOSMIDs[j] })
	for _, osmID := range barrierOSMIDs {
		for _, iid := range osmNodeToIntersections[osmID] {
			place(incidentRoads(iid), "no_entry")
		}
	}

	// 2. highway=pedestrian roads -> WalkCycleOnly.
	for rid := range m.Roads {
		r := &m.Roads[rid]
		if r.Kind == osmtags.KindPedestrian {
			place([]RoadID{r.ID}, "walk_cycle_only")
		}
	}

	// 3. Bus gates -> BusGate.
	for rid := range m.Roads {
		r := &m.Roads[rid]
		if busGateWayIDs[r.OSMWayID] {
			place([]RoadID{r.ID}, "bus_gate")
		}
	}

	// 4. Turn restriction relations, resolved to surviving roads/intersections.
	for _, rr := range restrictions {
		for _, via := range osmNodeToIntersections[int64(rr.viaNode)] {
			fromRoad, fromOK := roadWithOSMWayIncident(m, via, rr.fromWay)
			toRoad, toOK := roadWithOSMWayIncident(m, via, rr.toWay)
			if fromOK && toOK {
				m.TurnRestrictions = append(m.TurnRestrictions, TurnRestriction{From: fromRoad, To: toRoad, Via: via})
			}
		}
	}

	m.OriginalModalFilters = make(map[RoadID]ModalFilter, len(m.ModalFilters))
	for rid, f := range m.ModalFilters {
		m.OriginalModalFilters[rid] = f
	}

	log.Info("applied pre-existing OSM restrictions",
		zap.Int("modal_filters", len(m.ModalFilters)),
		zap.Int("turn_restrictions", len(m.TurnRestrictions)))
}

// roadWithOSMWayIncident finds the lowest-RoadID road incident to iid whose
// OSMWayID matches wayID; a way split into multiple Roads by ingestion may
// have more than one incident segment at a junction, but only one can abut
// iid as an endpoint of the original way.
func roadWithOSMWayIncident(m *MapModel, iid IntersectionID, wayID int64) (RoadID, bool) {
	start, end := m.EdgesFrom(iid)
	best := RoadID(0)
	found := false
	for e := start; e < end; e++ {
		rid := m.OutRoad[e]
		if m.Roads[rid].OSMWayID == wayID && (!found || rid < best) {
			best = rid
			found = true
		}
	}
	return best, found
}
