package mapmodel

import (
	"go.uber.org/zap"

	"github.com/azybler/ltn/pkg/geo"
)

const (
	dogLegMaxLenM       = 5.0
	dogLegMinAngleDegrees = 30.0
)

// collapseDogLegs merges pairs of 3-way intersections joined by a short
// named road into a single 4-way intersection, the way a human mapper would
// read the junction. Ported from
// original_source/backend/src/create/dog_leg.rs: detect_dog_leg +
// fix_dog_leg, adapted from Rust's mutable graph-editing idiom to rebuilding
// MapModel's CSR arrays once per collapse pass.
func (m *MapModel) collapseDogLegs(log *zap.Logger) {
	degree := m.computeDegree()
	collapsed := 0

	for {
		found := false
		for ri := range m.Roads {
			r := &m.Roads[ri]
			if r.Name == "" || r.LengthM > dogLegMaxLenM {
				continue
			}
			if degree[r.Src] != 3 || degree[r.Dst] != 3 {
				continue
			}
			side1, side2, ok := m.findDogLegSides(RoadID(ri))
			if !ok {
				continue
			}
			m.fixDogLeg(RoadID(ri), side1, side2)
			degree = m.computeDegree()
			collapsed++
			found = true
			break
		}
		if !found {
			break
		}
	}
	if collapsed > 0 {
		log.Info("collapsed dog-leg intersections", zap.Int("count", collapsed))
		m.buildCSR()
	}
}

func (m *MapModel) computeDegree() []int {
	degree := make([]int, len(m.Intersections))
	for _, r := range m.Roads {
		degree[r.Src]++
		degree[r.Dst]++
	}
	return degree
}

// findDogLegSides finds the two "side" roads — one incident to each endpoint
// of the collapse-candidate road, excluding the candidate itself — whose
// names differ from the candidate's (a genuine side street) and whose
// bearing differs enough from the candidate's to indicate a kink rather than
// a straight-through continuation.
func (m *MapModel) findDogLegSides(candidate RoadID) (side1, side2 RoadID, ok bool) {
	r := m.Roads[candidate]
	bearing := geo.BearingDegrees(r.ShapeLat[0], r.ShapeLon[0], r.ShapeLat[len(r.ShapeLat)-1], r.ShapeLon[len(r.ShapeLon)-1])

	findSide := func(at IntersectionID) (RoadID, bool) {
		for _, other := range m.Roads {
			if other.ID == candidate {
				continue
			}
			if other.Src != at && other.Dst != at {
				continue
			}
			if other.Name == r.Name {
				continue
			}
			var ob float64
			if other.Src == at {
				ob = geo.BearingDegrees(other.ShapeLat[0], other.ShapeLon[0], other.ShapeLat[len(other.ShapeLat)-1], other.ShapeLon[len(other.ShapeLon)-1])
			} else {
				ob = geo.BearingDegrees(other.ShapeLat[len(other.ShapeLat)-1], other.ShapeLon[len(other.ShapeLon)-1], other.ShapeLat[0], other.ShapeLon[0])
			}
			if geo.AngleDiff(bearing, ob) >= dogLegMinAngleDegrees {
				return other.ID, true
			}
		}
		return 0, false
	}

	s1, ok1 := findSide(r.Src)
	s2, ok2 := findSide(r.Dst)
	if !ok1 || !ok2 {
		return 0, 0, false
	}
	return s1, s2, true
}

// fixDogLeg collapses the candidate road into a single synthetic midpoint
// intersection: the candidate road is removed, and every other road ending
// at either of its endpoints is re-pointed to one new node at the midpoint,
// its end shape point moved onto that node. Side roads are not trimmed back
// before meeting it, and the two old endpoint intersections remain in
// Intersections with no roads attached.
func (m *MapModel) fixDogLeg(candidate, side1, side2 RoadID) {
	r := m.Roads[candidate]
	srcI := m.Intersections[r.Src]
	dstI := m.Intersections[r.Dst]
	midLat := (srcI.Lat + dstI.Lat) / 2
	midLon := (srcI.Lon + dstI.Lon) / 2

	newID := IntersectionID(len(m.Intersections))
	m.Intersections = append(m.Intersections, Intersection{
		ID: newID, Lat: midLat, Lon: midLon, Synthetic: true,
	})

	retarget := func(roadID RoadID, oldEnd IntersectionID) {
		rr := &m.Roads[roadID]
		if rr.Src == oldEnd {
			rr.Src = newID
			rr.ShapeLat[0] = midLat
			rr.ShapeLon[0] = midLon
		}
		if rr.Dst == oldEnd {
			rr.Dst = newID
			rr.ShapeLat[len(rr.ShapeLat)-1] = midLat
			rr.ShapeLon[len(rr.ShapeLon)-1] = midLon
		}
	}
	for i := range m.Roads {
		if RoadID(i) == candidate {
			continue
		}
		retarget(RoadID(i), r.Src)
		retarget(RoadID(i), r.Dst)
	}

	// Remove the collapsed candidate road, compacting RoadID indices.
	newRoads := make([]Road, 0, len(m.Roads)-1)
	for _, rr := range m.Roads {
		if rr.ID == candidate {
			continue
		}
		rr.ID = RoadID(len(newRoads))
		newRoads = append(newRoads, rr)
	}
	m.Roads = newRoads
}
