package router

const maxUnpackDepth = 100

// unpackOverlayPath expands a sequence of overlay-graph node IDs (as
// reconstructed from predecessor arrays) into the corresponding sequence of
// original-graph node IDs, by walking each consecutive pair's shortcut
// unless it is already an original edge. Ported from the unpacking idiom in
// azybler-map_router/pkg/routing/unpack.go, adapted to operate on node
// sequences directly rather than the teacher's edge-index bookkeeping, since
// this package's CH overlay is rebuilt from node ranks on every Build
// rather than persisted with edge indices.
func unpackOverlayPath(chg *chGraph, nodes []uint32) []uint32 {
	if len(nodes) == 0 {
		return nil
	}
	out := []uint32{nodes[0]}
	for i := 0; i < len(nodes)-1; i++ {
		u, v := nodes[i], nodes[i+1]
		seg := unpackPair(chg, u, v, 0)
		out = append(out, seg...)
	}
	return out
}

// unpackPair expands the edge u->v (found in whichever of Fwd/Bwd overlay
// contains it) into original-graph nodes, excluding u and including v.
func unpackPair(chg *chGraph, u, v uint32, depth int) []uint32 {
	if depth > maxUnpackDepth {
		return []uint32{v}
	}

	if mid, ok := findMiddle(chg.FwdFirstOut, chg.FwdHead, chg.FwdMiddle, u, v); ok {
		if mid < 0 {
			return []uint32{v}
		}
		m := uint32(mid)
		left := unpackPair(chg, u, m, depth+1)
		right := unpackPair(chg, m, v, depth+1)
		return append(left, right...)
	}
	if mid, ok := findMiddle(chg.BwdFirstOut, chg.BwdHead, chg.BwdMiddle, v, u); ok {
		if mid < 0 {
			return []uint32{v}
		}
		m := uint32(mid)
		left := unpackPair(chg, v, m, depth+1)
		right := unpackPair(chg, m, u, depth+1)
		reversed := reverseUint32(append(left, right...))
		return reversed[1:]
	}
	return []uint32{v}
}

func findMiddle(firstOut, head []uint32, middle []int32, from, to uint32) (int32, bool) {
	start, end := firstOut[from], firstOut[from+1]
	for e := start; e < end; e++ {
		if head[e] == to {
			return middle[e], true
		}
	}
	return 0, false
}

func reverseUint32(s []uint32) []uint32 {
	out := make([]uint32, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}
