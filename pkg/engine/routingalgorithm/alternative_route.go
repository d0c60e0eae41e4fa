package routingalgorithm

import (
	"math"
	"sort"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/server"
	"github.com/lintang-b-s/chroute/pkg/util"
)

// via-node alternative routes over the hierarchy, following the
// sharing / stretch / T-test admissibility chain of
// "Alternative Routes in Road Networks" (Abraham et al.).
const (
	defaultAlpha   = 0.10 // stretch bound
	defaultEpsilon = 0.15 // length admissibility
	defaultGamma   = 0.75 // maximum sharing with the optimal path
)

type AlternativeRouteSearch struct {
	rt      *RouteAlgorithm
	alpha   float64
	epsilon float64
	gamma   float64
}

func NewAlternativeRouteSearch(rt *RouteAlgorithm) *AlternativeRouteSearch {
	return &AlternativeRouteSearch{
		rt:      rt,
		alpha:   defaultAlpha,
		epsilon: defaultEpsilon,
		gamma:   defaultGamma,
	}
}

// NewAlternativeRouteSearchParams overrides the admissibility constants.
func NewAlternativeRouteSearchParams(rt *RouteAlgorithm, alpha, epsilon, gamma float64) *AlternativeRouteSearch {
	return &AlternativeRouteSearch{rt: rt, alpha: alpha, epsilon: epsilon, gamma: gamma}
}

// AlternativeRoute is one admissible alternative next to the optimal path.
type AlternativeRoute struct {
	ViaNode int32
	Weight  int32
	Sharing int32
	Edges   []datastructure.ContractorEdge
}

// RouteResult is the optimal path of the pair of routes.
type RouteResult struct {
	Weight int32
	Packed []int32
	Edges  []datastructure.ContractorEdge
}

type viaCandidate struct {
	node      int32
	length    int32
	sharing   int32
	objective int64
}

// Run returns the shortest path and, when one survives all filters, a
// single alternative route. A missing alternative is not an error; missing
// connectivity is ErrNotFound.
func (ar *AlternativeRouteSearch) Run(from, to int32) (RouteResult, *AlternativeRoute, error) {
	forward, backward, best, middle := ar.searchWithSpaces(from, to)
	if middle == invalidParent {
		return RouteResult{}, nil, server.NewErrorf(server.ErrNotFound,
			"no path between %d and %d", from, to)
	}

	packed := ar.rt.buildPackedPath(forward, backward, middle)
	optEdges := ar.rt.UnpackPath(packed)
	result := RouteResult{Weight: best, Packed: packed, Edges: optEdges}

	onOptimal := make(map[int32]struct{}, len(packed))
	for _, v := range packed {
		onOptimal[v] = struct{}{}
	}
	fwdShare := approximateSharing(forward, onOptimal)
	revShare := approximateSharing(backward, onOptimal)

	optEdgeSet := make(map[[2]int32]struct{}, len(optEdges))
	for _, e := range optEdges {
		optEdgeSet[[2]int32{e.Source, e.Target}] = struct{}{}
	}

	bestF := float64(best)
	candidates := make([]viaCandidate, 0)
	for _, v := range forward.order {
		if _, ok := backward.settled[v]; !ok {
			continue
		}
		if v == middle || v == from || v == to {
			continue
		}
		length := forward.dist[v] + backward.dist[v]
		sharing := fwdShare[v] + revShare[v]

		if float64(length) >= bestF*(1+ar.epsilon) {
			continue
		}
		if float64(sharing) > bestF*ar.gamma {
			continue
		}
		if float64(length-sharing) >= (1+ar.alpha)*(bestF-float64(sharing)) {
			continue
		}
		candidates = append(candidates, viaCandidate{node: v, length: length, sharing: sharing})
	}

	// tighten the surviving candidates with exact unpacked sharing
	tightened := candidates[:0]
	for _, cand := range candidates {
		viaEdges := ar.viaPathEdges(forward, backward, cand.node)
		length := PathWeight(viaEdges)
		sharing := int32(0)
		for _, e := range viaEdges {
			if _, ok := optEdgeSet[[2]int32{e.Source, e.Target}]; ok {
				sharing += e.Data.Weight
			}
		}
		if float64(sharing) > bestF*ar.gamma {
			continue
		}
		if float64(length) > bestF*(1+ar.epsilon) {
			continue
		}
		cand.length = length
		cand.sharing = sharing
		cand.objective = 2*int64(length) + int64(sharing)
		tightened = append(tightened, cand)
	}

	sort.SliceStable(tightened, func(i, j int) bool {
		return tightened[i].objective < tightened[j].objective
	})

	for _, cand := range tightened {
		viaEdges := ar.viaPathEdges(forward, backward, cand.node)
		if !ar.tTest(viaEdges, cand.node, from, to, best) {
			continue
		}
		return result, &AlternativeRoute{
			ViaNode: cand.node,
			Weight:  cand.length,
			Sharing: cand.sharing,
			Edges:   viaEdges,
		}, nil
	}
	return result, nil, nil
}

// searchWithSpaces is the pruned bidirectional search of step one: both
// directions keep settling until their keys pass the (1+epsilon) length
// admissibility bound, recording full search spaces.
func (ar *AlternativeRouteSearch) searchWithSpaces(from, to int32) (*searchState, *searchState, int32, int32) {
	g := ar.rt.graph
	forward := newSearchState(int(g.NumNodes()), from)
	backward := newSearchState(int(g.NumNodes()), to)

	best := int32(math.MaxInt32)
	middle := invalidParent

	frontier, other := forward, backward
	isForward := true
	for !forward.finished || !backward.finished {
		if !frontier.finished {
			if frontier.heap.Size() == 0 {
				frontier.finished = true
			} else if best != math.MaxInt32 &&
				float64(frontier.heap.MinKey())/(1+ar.epsilon) > float64(best) {
				frontier.finished = true
			} else {
				ar.settleRecording(frontier, other, isForward, &best, &middle)
			}
		}
		if !other.finished {
			frontier, other = other, frontier
			isForward = !isForward
		}
	}
	return forward, backward, best, middle
}

// settleRecording is settleNext without stall-on-demand: stalled nodes
// would drop via candidates the filters want to see.
func (ar *AlternativeRouteSearch) settleRecording(frontier, other *searchState, isForward bool, best *int32, middle *int32) {
	g := ar.rt.graph
	node := frontier.heap.DeleteMin()
	nodeDist := frontier.dist[node]
	frontier.settled[node] = struct{}{}
	frontier.order = append(frontier.order, node)

	if otherDist, ok := other.dist[node]; ok {
		if candidate := nodeDist + otherDist; candidate < *best {
			*best = candidate
			*middle = node
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

// approximateSharing propagates sharing along the shortest-path trees: a
// node on the optimal path shares its own distance, everything else
// inherits from its parent.
func approximateSharing(space *searchState, onOptimal map[int32]struct{}) map[int32]int32 {
	sharing := make(map[int32]int32, len(space.order))
	for _, v := range space.order {
		if _, ok := onOptimal[v]; ok {
			sharing[v] = space.dist[v]
			continue
		}
		parent := space.parent[v]
		if parent == invalidParent {
			sharing[v] = 0
			continue
		}
		sharing[v] = sharing[parent]
	}
	return sharing
}

// viaPathEdges unpacks the full s -> v -> t path of a via candidate.
func (ar *AlternativeRouteSearch) viaPathEdges(forward, backward *searchState, via int32) []datastructure.ContractorEdge {
	fwdChain := make([]int32, 0, 8)
	for v := via; v != invalidParent; v = forward.parent[v] {
		fwdChain = append(fwdChain, v)
	}
	packed := util.ReverseG(fwdChain)
	for v := backward.parent[via]; v != invalidParent; v = backward.parent[v] {
		packed = append(packed, v)
	}
	return ar.rt.UnpackPath(packed)
}

// tTest confirms the plateau around the via node is locally optimal: walk
// T = epsilon*best worth of unpacked weight outward from v on both sides,
// then check no shorter connection exists between the plateau endpoints.
func (ar *AlternativeRouteSearch) tTest(viaEdges []datastructure.ContractorEdge, via, from, to int32, best int32) bool {
	viaIdx := -1
	for i, e := range viaEdges {
		if e.Source == via {
			viaIdx = i
			break
		}
	}
	if viaIdx == -1 {
		// via sits at the very end of the edge list
		if len(viaEdges) == 0 || viaEdges[len(viaEdges)-1].Target != via {
			return false
		}
		viaIdx = len(viaEdges)
	}

	threshold := int32(ar.epsilon * float64(best))
	if threshold < 1 {
		threshold = 1
	}

	plateauStart := from
	accumulated := int32(0)
	plateauLength := int32(0)
	for i := viaIdx - 1; i >= 0; i-- {
		accumulated += viaEdges[i].Data.Weight
		plateauStart = viaEdges[i].Source
		plateauLength += viaEdges[i].Data.Weight
		if accumulated >= threshold {
			break
		}
	}

	plateauEnd := to
	accumulated = 0
	for i := viaIdx; i < len(viaEdges); i++ {
		accumulated += viaEdges[i].Data.Weight
		plateauEnd = viaEdges[i].Target
		plateauLength += viaEdges[i].Data.Weight
		if accumulated >= threshold {
			break
		}
	}

	if plateauStart == plateauEnd {
		return true
	}
	_, _, weight, found := ar.rt.ShortestPathBiDijkstraCH(plateauStart, plateauEnd)
	if !found {
		return false
	}
	return weight >= plateauLength
}
