package routingalgorithm

import (
	"math"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/util"
)

// QueryGraph is the frozen hierarchy the online engines search. Edges are
// stored at the endpoint contracted earlier, so every stored edge points
// upward in the hierarchy.
type QueryGraph = datastructure.StaticGraph[datastructure.ContractorEdgeData]

type RouteAlgorithm struct {
	graph *QueryGraph
	// 0 means unbounded; a capped query that exhausts the budget before
	// the frontiers meet reports no path instead of spinning on
	// pathological inputs
	maxSettledNodes int
}

func NewRouteAlgorithm(graph *QueryGraph) *RouteAlgorithm {
	return &RouteAlgorithm{graph: graph}
}

// NewRouteAlgorithmWithCap bounds every query to maxSettledNodes settled
// nodes across both directions.
func NewRouteAlgorithmWithCap(graph *QueryGraph, maxSettledNodes int) *RouteAlgorithm {
	return &RouteAlgorithm{graph: graph, maxSettledNodes: maxSettledNodes}
}

const invalidParent = int32(-1)

type searchState struct {
	heap   *datastructure.BinaryHeap[struct{}]
	dist   map[int32]int32
	parent map[int32]int32
	// settle order, used by the alternative-route sharing pass
	order    []int32
	settled  map[int32]struct{}
	finished bool
}

func newSearchState(numNodes int, origin int32) *searchState {
	s := &searchState{
		heap:    datastructure.NewBinaryHeap[struct{}](numNodes),
		dist:    map[int32]int32{origin: 0},
		parent:  map[int32]int32{origin: invalidParent},
		settled: make(map[int32]struct{}),
	}
	s.heap.Insert(origin, 0, struct{}{})
	return s
}

// ShortestPathBiDijkstraCH alternates a forward and a reverse Dijkstra over
// the hierarchy with stall-on-demand. It returns the packed node path, the
// fully unpacked original edges, and the path weight; found is false when
// the endpoints are not connected.
func (rt *RouteAlgorithm) ShortestPathBiDijkstraCH(from, to int32) ([]int32, []datastructure.ContractorEdge, int32, bool) {
	if from == to {
		return []int32{from}, []datastructure.ContractorEdge{}, 0, true
	}

	forward := newSearchState(int(rt.graph.NumNodes()), from)
	backward := newSearchState(int(rt.graph.NumNodes()), to)

	best := int32(math.MaxInt32)
	middle := invalidParent

	frontier, other := forward, backward
	forwardTurn := true
	settled := 0
	for !forward.finished || !backward.finished {
		if rt.maxSettledNodes > 0 && settled >= rt.maxSettledNodes {
			break
		}
		if !frontier.finished {
			if frontier.heap.Size() == 0 || frontier.heap.MinKey() >= best {
				frontier.finished = true
			} else {
				rt.settleNext(frontier, other, forwardTurn, &best, &middle)
				settled++
			}
		}
		if !other.finished {
			frontier, other = other, frontier
			forwardTurn = !forwardTurn
		}
	}

	if middle == invalidParent {
		return nil, nil, -1, false
	}

	packed := rt.buildPackedPath(forward, backward, middle)
	unpacked := rt.UnpackPath(packed)
	return packed, unpacked, best, true
}

// settleNext pops one node off the frontier, applies stall-on-demand and
// relaxes its outgoing edges for the given direction.
func (rt *RouteAlgorithm) settleNext(frontier, other *searchState, isForward bool, best *int32, middle *int32) {
	g := rt.graph
	node := frontier.heap.DeleteMin()
	nodeDist := frontier.dist[node]
	frontier.settled[node] = struct{}{}
	frontier.order = append(frontier.order, node)

	// meeting point: settled here, reached by the other side
	if otherDist, ok := other.dist[node]; ok {
		if candidate := nodeDist + otherDist; candidate < *best {
			*best = candidate
			*middle = node
		}
	}

	// stall-on-demand: a neighbour already reached by this search, reaching us over a
	// reverse-direction edge proves a shorter path will meet us later
	for e := g.BeginEdges(node); e < g.EndEdges(node); e++ {
		data := g.GetEdgeData(e)
		if isForward && !data.Backward {
			continue
		}
		if !isForward && !data.Forward {
			continue
		}
		target := g.GetTarget(e)
		if targetDist, ok := frontier.dist[target]; ok && targetDist+data.Weight < nodeDist {
			return
		}
	}

	for e := g.BeginEdges(node); e < g.EndEdges(node); e++ {
		data := g.GetEdgeData(e)
		if isForward && !data.Forward {
			continue
		}
		if !isForward && !data.Backward {
			continue
		}
		target := g.GetTarget(e)
		if _, ok := frontier.settled[target]; ok {
			continue
		}
		newDist := nodeDist + data.Weight
		oldDist, seen := frontier.dist[target]
		if !seen {
			frontier.dist[target] = newDist
			frontier.parent[target] = node
			frontier.heap.Insert(target, newDist, struct{}{})
		} else if newDist < oldDist {
			frontier.dist[target] = newDist
			frontier.parent[target] = node
			frontier.heap.DecreaseKey(target, newDist)
		}
	}
}

// loopWeight is the smallest forward self-loop at node, or -1. Needed when
// a query starts and ends on the same edge-based node but must physically
// drive a loop to come back to it.
func (rt *RouteAlgorithm) loopWeight(node int32) int32 {
	g := rt.graph
	weight := int32(-1)
	for e := g.BeginEdges(node); e < g.EndEdges(node); e++ {
		if g.GetTarget(e) != node {
			continue
		}
		data := g.GetEdgeData(e)
		if !data.Forward {
			continue
		}
		if weight == -1 || data.Weight < weight {
			weight = data.Weight
		}
	}
	return weight
}

// ShortestLoop returns the weight of the cheapest forward self-loop edge
// stored at node; loops that pass through other nodes are not searched.
func (rt *RouteAlgorithm) ShortestLoop(node int32) (int32, bool) {
	w := rt.loopWeight(node)
	return w, w != -1
}

func (rt *RouteAlgorithm) buildPackedPath(forward, backward *searchState, middle int32) []int32 {
	fwdChain := make([]int32, 0, 8)
	for v := middle; v != invalidParent; v = forward.parent[v] {
		fwdChain = append(fwdChain, v)
	}
	// the forward chain runs middle -> from, flip it
	packed := util.ReverseG(fwdChain)
	for v := backward.parent[middle]; v != invalidParent; v = backward.parent[v] {
		packed = append(packed, v)
	}
	return packed
}

// UnpackPath expands every shortcut of a packed node path recursively and
// returns the original edge sequence.
func (rt *RouteAlgorithm) UnpackPath(packed []int32) []datastructure.ContractorEdge {
	edges := make([]datastructure.ContractorEdge, 0, len(packed))
	for i := 0; i+1 < len(packed); i++ {
		rt.unpackEdge(packed[i], packed[i+1], &edges)
	}
	return edges
}

func (rt *RouteAlgorithm) unpackEdge(u, v int32, out *[]datastructure.ContractorEdge) {
	data := rt.findTraversedEdge(u, v)
	if data == nil {
		return
	}
	if !data.Shortcut {
		*out = append(*out, datastructure.NewContractorEdge(u, v, *data))
		return
	}
	via := int32(data.Via)
	rt.unpackEdge(u, via, out)
	rt.unpackEdge(via, v, out)
}

// findTraversedEdge resolves the minimum-weight edge actually traversable
// from u to v: stored at u with the forward flag, or at v with the backward
// flag (the hierarchy keeps each edge at its earlier-contracted endpoint).
func (rt *RouteAlgorithm) findTraversedEdge(u, v int32) *datastructure.ContractorEdgeData {
	g := rt.graph
	var found *datastructure.ContractorEdgeData
	for e := g.BeginEdges(u); e < g.EndEdges(u); e++ {
		data := g.GetEdgeData(e)
		if g.GetTarget(e) != v || !data.Forward {
			continue
		}
		if found == nil || data.Weight < found.Weight {
			found = data
		}
	}
	for e := g.BeginEdges(v); e < g.EndEdges(v); e++ {
		data := g.GetEdgeData(e)
		if g.GetTarget(e) != u || !data.Backward {
			continue
		}
		if found == nil || data.Weight < found.Weight {
			found = data
		}
	}
	return found
}

// PathWeight sums the weights of an unpacked edge sequence.
func PathWeight(edges []datastructure.ContractorEdge) int32 {
	total := int32(0)
	for _, e := range edges {
		total += e.Data.Weight
	}
	return total
}
