package router

// chGraph holds the output of Contraction Hierarchies preprocessing:
// forward/backward upward overlay graphs keyed by contraction rank, plus the
// original graph's CSR arrays for shortcut unpacking. Ported from
// azybler-map_router/pkg/graph/graph.go's CHGraph, with the OrigFirstOut/
// OrigHead/OrigWeight fields the teacher's own buildOverlay/binary.go/
// cmd/server/main.go all reference added in explicitly (the teacher's
// committed CHGraph struct omits them, which would not compile).
type chGraph struct {
	NumNodes uint32
	NodeLat  []float64
	NodeLon  []float64
	Rank     []uint32

	FwdFirstOut []uint32
	FwdHead     []uint32
	FwdWeight   []uint32
	FwdMiddle   []int32

	BwdFirstOut []uint32
	BwdHead     []uint32
	BwdWeight   []uint32
	BwdMiddle   []int32

	OrigFirstOut []uint32
	OrigHead     []uint32
	OrigWeight   []uint32
}
