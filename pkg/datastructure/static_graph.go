package datastructure

import "sort"

// EdgeWeighter exposes the weight of an edge payload so FindEdge can break
// parallel edges by minimum weight.
type EdgeWeighter interface {
	EdgeWeight() int32
}

// StaticGraph is the frozen CSR form served to the online query engines.
// It is immutable after construction and safe for concurrent readers.
type StaticGraph[E EdgeWeighter] struct {
	firstOut []int32
	targets  []int32
	data     []E
}

// NewStaticGraph builds the CSR arrays from an edge list; the list is
// sorted by (source, target) first.
func NewStaticGraph[E EdgeWeighter](numNodes int, inputEdges []InputEdge[E]) *StaticGraph[E] {
	edges := make([]InputEdge[E], len(inputEdges))
	copy(edges, inputEdges)
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	g := &StaticGraph[E]{
		firstOut: make([]int32, numNodes+1),
		targets:  make([]int32, len(edges)),
		data:     make([]E, len(edges)),
	}

	edgeID := int32(0)
	for node := int32(0); node < int32(numNodes); node++ {
		g.firstOut[node] = edgeID
		for int(edgeID) < len(edges) && edges[edgeID].Source == node {
			g.targets[edgeID] = edges[edgeID].Target
			g.data[edgeID] = edges[edgeID].Data
			edgeID++
		}
	}
	g.firstOut[numNodes] = edgeID
	return g
}

func (g *StaticGraph[E]) NumNodes() int32 { return int32(len(g.firstOut) - 1) }

func (g *StaticGraph[E]) NumEdges() int32 { return int32(len(g.targets)) }

func (g *StaticGraph[E]) BeginEdges(node int32) int32 { return g.firstOut[node] }

func (g *StaticGraph[E]) EndEdges(node int32) int32 { return g.firstOut[node+1] }

func (g *StaticGraph[E]) GetTarget(edge int32) int32 { return g.targets[edge] }

func (g *StaticGraph[E]) GetEdgeData(edge int32) *E { return &g.data[edge] }

// FindEdge returns the minimum-weight edge (u,v); ties keep the first
// occurrence. InvalidEdge when none exists.
func (g *StaticGraph[E]) FindEdge(u, v int32) int32 {
	smallestEdge := InvalidEdge
	smallestWeight := int32(0)
	for e := g.BeginEdges(u); e < g.EndEdges(u); e++ {
		if g.targets[e] != v {
			continue
		}
		w := g.data[e].EdgeWeight()
		if smallestEdge == InvalidEdge || w < smallestWeight {
			smallestEdge = e
			smallestWeight = w
		}
	}
	return smallestEdge
}

// FindEdgeInEitherDirection tries (u,v) first, then (v,u).
func (g *StaticGraph[E]) FindEdgeInEitherDirection(u, v int32) (int32, bool) {
	if e := g.FindEdge(u, v); e != InvalidEdge {
		return e, false
	}
	return g.FindEdge(v, u), true
}
