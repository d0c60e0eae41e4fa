package datastructure

import (
	"sort"
	"sync/atomic"
)

const (
	// InvalidEdge marks a missing edge id in FindEdge lookups.
	InvalidEdge = int32(-1)

	dummyTarget = int32(-1)
)

// InputEdge is the construction-time form of an edge for both graph
// substrates.
type InputEdge[E any] struct {
	Source int32
	Target int32
	Data   E
}

type dynamicNode struct {
	firstEdge int32
	count     int32
}

type dynamicEdge[E any] struct {
	target int32
	data   E
}

// DynamicGraph is the mutable adjacency-range graph the contractor rewrites
// in place. Each node owns a contiguous range of the edge array; the range
// is over-allocated on relocation so repeated shortcut insertions at the
// same node stay amortised. Unused slots carry a dummy target.
type DynamicGraph[E any] struct {
	nodes []dynamicNode
	edges []dynamicEdge[E]
	// updated atomically, edge removal runs on parallel workers
	numEdges atomic.Int32
}

// NewDynamicGraph builds the graph from an edge list. The list is sorted by
// (source, target) first, so adjacency ranges come out contiguous.
func NewDynamicGraph[E any](numNodes int, inputEdges []InputEdge[E]) *DynamicGraph[E] {
	edges := make([]InputEdge[E], len(inputEdges))
	copy(edges, inputEdges)
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})

	g := &DynamicGraph[E]{
		nodes: make([]dynamicNode, numNodes),
		edges: make([]dynamicEdge[E], 0, len(edges)),
	}
	g.numEdges.Store(int32(len(edges)))

	edgeID := int32(0)
	for node := int32(0); node < int32(numNodes); node++ {
		g.nodes[node].firstEdge = edgeID
		for int(edgeID) < len(edges) && edges[edgeID].Source == node {
			g.edges = append(g.edges, dynamicEdge[E]{
				target: edges[edgeID].Target,
				data:   edges[edgeID].Data,
			})
			g.nodes[node].count++
			edgeID++
		}
	}
	return g
}

func NewEmptyDynamicGraph[E any](numNodes int) *DynamicGraph[E] {
	return &DynamicGraph[E]{
		nodes: make([]dynamicNode, numNodes),
		edges: make([]dynamicEdge[E], 0),
	}
}

func (g *DynamicGraph[E]) NumNodes() int32 { return int32(len(g.nodes)) }

func (g *DynamicGraph[E]) NumEdges() int32 { return g.numEdges.Load() }

func (g *DynamicGraph[E]) BeginEdges(node int32) int32 {
	return g.nodes[node].firstEdge
}

func (g *DynamicGraph[E]) EndEdges(node int32) int32 {
	return g.nodes[node].firstEdge + g.nodes[node].count
}

func (g *DynamicGraph[E]) GetTarget(edge int32) int32 {
	return g.edges[edge].target
}

func (g *DynamicGraph[E]) GetEdgeData(edge int32) *E {
	return &g.edges[edge].data
}

// InsertEdge appends an edge (u,v) to u's range, relocating the range to
// the end of the edge array when it has no free slot left.
func (g *DynamicGraph[E]) InsertEdge(u, v int32, data E) int32 {
	node := &g.nodes[u]
	end := node.firstEdge + node.count

	if int(end) == len(g.edges) {
		g.edges = append(g.edges, dynamicEdge[E]{target: v, data: data})
	} else if g.edges[end].target == dummyTarget {
		g.edges[end] = dynamicEdge[E]{target: v, data: data}
	} else {
		// relocate the whole range, leaving slack equal to the current
		// degree so the next inserts at u are free
		newFirst := int32(len(g.edges))
		for i := node.firstEdge; i < end; i++ {
			g.edges = append(g.edges, g.edges[i])
			g.edges[i].target = dummyTarget
		}
		g.edges = append(g.edges, dynamicEdge[E]{target: v, data: data})
		for i := int32(0); i < node.count; i++ {
			g.edges = append(g.edges, dynamicEdge[E]{target: dummyTarget})
		}
		node.firstEdge = newFirst
		end = newFirst + node.count
	}

	node.count++
	g.numEdges.Add(1)
	return end
}

// DeleteEdgesTo removes every edge (u,v); the vacated slots stay with u's
// range for reuse. Returns the number of edges removed.
func (g *DynamicGraph[E]) DeleteEdgesTo(u, v int32) int {
	node := &g.nodes[u]
	deleted := 0
	for i := node.firstEdge; i < node.firstEdge+node.count; {
		if g.edges[i].target == v {
			last := node.firstEdge + node.count - 1
			g.edges[i] = g.edges[last]
			g.edges[last].target = dummyTarget
			node.count--
			deleted++
			continue
		}
		i++
	}
	g.numEdges.Add(int32(-deleted))
	return deleted
}

// FindEdge returns the id of the first edge (u,v), or InvalidEdge.
func (g *DynamicGraph[E]) FindEdge(u, v int32) int32 {
	for e := g.BeginEdges(u); e < g.EndEdges(u); e++ {
		if g.edges[e].target == v {
			return e
		}
	}
	return InvalidEdge
}
