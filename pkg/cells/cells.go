// Package cells partitions a neighbourhood's interior roads into
// driving-connected "cells" — the areas a driver could reach from one
// another without crossing a modal filter or leaving the neighbourhood.
package cells

import (
	"github.com/azybler/ltn/pkg/mapmodel"
	"github.com/azybler/ltn/pkg/neighbourhood"
)

// PercentInterval marks the [Start,End] fraction of a road (0..1) that
// belongs to a cell, letting a single road be split across two cells when a
// modal filter sits partway along it. Ported from
// original_source/backend/src/cells.rs's PercentInterval.
type PercentInterval struct {
	Start, End float64
}

// full reports whether the interval spans the entire road.
func (p PercentInterval) full() bool { return p.Start == 0 && p.End == 1 }

// Cell is one driving-connected region of a neighbourhood's interior.
type Cell struct {
	Roads               map[mapmodel.RoadID]PercentInterval
	BorderIntersections map[mapmodel.IntersectionID]struct{}
	Unimportant         bool
}

// IsDisconnected reports whether this cell never touches the neighbourhood
// boundary at all — meaning it can only be reached via another cell's roads,
// a strong LTN-violation signal.
func (c *Cell) IsDisconnected() bool { return len(c.BorderIntersections) == 0 }

// FindAll computes every cell in a neighbourhood: for each interior road not
// yet visited and connected to a public (non-service-only) road, floodfill
// its driving-connected component. Ported from cells.rs's Cell::find_all.
func FindAll(m *mapmodel.MapModel, nb *neighbourhood.Neighbourhood, hideUnimportant bool) []*Cell {
	visitedStart := make(map[mapmodel.RoadID]bool)
	visitedEnd := make(map[mapmodel.RoadID]bool)

	var cells []*Cell

	for rid := range nb.InteriorRoads {
		if visitedStart[rid] && visitedEnd[rid] {
			continue
		}
		if m.IsFiltered(rid) {
			// A filtered road never seeds its own floodfill; it is only ever
			// reached via a neighbour's traversal, or emitted separately as a
			// perimeter sliver below.
			continue
		}
		if !connectedToPublicRoad(m, nb, rid) {
			continue
		}
		cell := floodfill(m, nb, rid, visitedStart, visitedEnd)
		if cell == nil {
			continue
		}
		if hideUnimportant {
			cell.Unimportant = allService(m, cell)
		}
		cells = append(cells, cell)
	}

	cells = append(cells, perimeterSliverCells(m, nb, visitedStart, visitedEnd)...)

	return cells
}

func connectedToPublicRoad(m *mapmodel.MapModel, nb *neighbourhood.Neighbourhood, start mapmodel.RoadID) bool {
	r := &m.Roads[start]
	if !r.Kind.IsService() {
		return true
	}
	for _, end := range []mapmodel.IntersectionID{r.Src, r.Dst} {
		s, e := m.EdgesFrom(end)
		for i := s; i < e; i++ {
			other := m.OutRoad[i]
			if other == start {
				continue
			}
			if _, interior := nb.InteriorRoads[other]; interior && !m.Roads[other].Kind.IsService() {
				return true
			}
		}
	}
	return false
}

// floodfill runs a LIFO-stack driving-connectivity search starting from one
// road, halting at border intersections and modal/diagonal filters, and
// merging a filtered road's two halves into separate half-intervals when
// only one side has been reached so far. Ported from cells.rs's floodfill.
func floodfill(m *mapmodel.MapModel, nb *neighbourhood.Neighbourhood, start mapmodel.RoadID, visitedStart, visitedEnd map[mapmodel.RoadID]bool) *Cell {
	type stackItem struct {
		road mapmodel.RoadID
		from mapmodel.IntersectionID // which endpoint we entered this road from; noIntersection if whole-road seed
	}

	cell := &Cell{
		Roads:               make(map[mapmodel.RoadID]PercentInterval),
		BorderIntersections: make(map[mapmodel.IntersectionID]struct{}),
	}

	stack := []stackItem{{road: start, from: noIntersection}}

	for len(stack) > 0 {
		n := len(stack) - 1
		item := stack[n]
		stack = stack[:n]

		r := &m.Roads[item.road]
		if _, interior := nb.InteriorRoads[item.road]; !interior {
			continue // "weird geometry": road not fully inside the neighbourhood
		}

		filtered := m.IsFiltered(item.road)

		var interval PercentInterval
		switch {
		case !filtered:
			if visitedStart[item.road] && visitedEnd[item.road] {
				continue
			}
			visitedStart[item.road] = true
			visitedEnd[item.road] = true
			interval = PercentInterval{0, 1}
		case item.from == r.Src || item.from == noIntersection && !visitedStart[item.road]:
			if visitedStart[item.road] {
				continue
			}
			visitedStart[item.road] = true
			interval = PercentInterval{0, m.ModalFilters[item.road].Frac}
		default:
			if visitedEnd[item.road] {
				continue
			}
			visitedEnd[item.road] = true
			interval = PercentInterval{m.ModalFilters[item.road].Frac, 1}
		}

		if existing, ok := cell.Roads[item.road]; ok {
			interval = PercentInterval{min(existing.Start, interval.Start), max(existing.End, interval.End)}
		}
		cell.Roads[item.road] = interval

		for _, end := range endpointsReachedBy(r, interval, filtered) {
			if _, isBorder := nb.BorderIntersections[end]; isBorder {
				cell.BorderIntersections[end] = struct{}{}
				continue
			}
			s, e := m.EdgesFrom(end)
			for i := s; i < e; i++ {
				nextRoad := m.OutRoad[i]
				if nextRoad == item.road {
					continue
				}
				if !m.MovementAllowed(item.road, end, nextRoad) {
					continue
				}
				stack = append(stack, stackItem{road: nextRoad, from: end})
			}
		}
	}

	if len(cell.Roads) == 0 {
		return nil
	}
	return cell
}

const noIntersection = mapmodel.IntersectionID(^uint32(0))

// endpointsReachedBy returns which endpoint(s) of a road the visited
// interval actually reaches, honoring a modal filter's block.
func endpointsReachedBy(r *mapmodel.Road, interval PercentInterval, filtered bool) []mapmodel.IntersectionID {
	var ends []mapmodel.IntersectionID
	if !filtered || interval.Start == 0 {
		ends = append(ends, r.Src)
	}
	if !filtered || interval.End == 1 {
		ends = append(ends, r.Dst)
	}
	return ends
}

func allService(m *mapmodel.MapModel, cell *Cell) bool {
	for rid := range cell.Roads {
		if !m.Roads[rid].Kind.IsService() {
			return false
		}
	}
	return true
}

// perimeterSliverCells emits a standalone cell for each modal filter whose
// position sits on or adjacent to a border intersection, the way cells.rs
// emits a one-road "sliver" cell for filters touching the neighbourhood's
// edge rather than letting them silently merge into a neighbouring cell.
func perimeterSliverCells(m *mapmodel.MapModel, nb *neighbourhood.Neighbourhood, visitedStart, visitedEnd map[mapmodel.RoadID]bool) []*Cell {
	var out []*Cell
	for rid := range m.ModalFilters {
		if _, interior := nb.InteriorRoads[rid]; !interior {
			continue
		}
		r := &m.Roads[rid]
		_, srcBorder := nb.BorderIntersections[r.Src]
		_, dstBorder := nb.BorderIntersections[r.Dst]
		if !srcBorder && !dstBorder {
			continue
		}
		if visitedStart[rid] && visitedEnd[rid] {
			continue
		}
		frac := m.ModalFilters[rid].Frac
		c := &Cell{
			Roads:               map[mapmodel.RoadID]PercentInterval{rid: {0, 1}},
			BorderIntersections: make(map[mapmodel.IntersectionID]struct{}),
		}
		if srcBorder {
			c.BorderIntersections[r.Src] = struct{}{}
			visitedStart[rid] = true
			c.Roads[rid] = PercentInterval{0, frac}
		}
		if dstBorder {
			c.BorderIntersections[r.Dst] = struct{}{}
			visitedEnd[rid] = true
			if existing, ok := c.Roads[rid]; ok {
				c.Roads[rid] = PercentInterval{existing.Start, 1}
			} else {
				c.Roads[rid] = PercentInterval{frac, 1}
			}
		}
		out = append(out, c)
	}
	return out
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
