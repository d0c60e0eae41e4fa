package routingalgorithm

import (
	"github.com/lintang-b-s/chroute/pkg/datastructure"
)

// DijkstraSimple is a plain unidirectional Dijkstra over forward edges.
// Run against the original (uncontracted) edge-based graph it is the ground
// truth the hierarchy query must reproduce.
func (rt *RouteAlgorithm) DijkstraSimple(from, to int32) (int32, bool) {
	if from == to {
		return 0, true
	}
	g := rt.graph
	heap := datastructure.NewBinaryHeap[struct{}](int(g.NumNodes()))
	dist := map[int32]int32{from: 0}
	settled := make(map[int32]struct{})

	heap.Insert(from, 0, struct{}{})
	for heap.Size() > 0 {
		node := heap.DeleteMin()
		if node == to {
			return dist[node], true
		}
		settled[node] = struct{}{}

		for e := g.BeginEdges(node); e < g.EndEdges(node); e++ {
			data := g.GetEdgeData(e)
			if !data.Forward {
				continue
			}
			target := g.GetTarget(e)
			if _, ok := settled[target]; ok {
				continue
			}
			newDist := dist[node] + data.Weight
			oldDist, seen := dist[target]
			if !seen {
				dist[target] = newDist
				heap.Insert(target, newDist, struct{}{})
			} else if newDist < oldDist {
				dist[target] = newDist
				heap.DecreaseKey(target, newDist)
			}
		}
	}
	return -1, false
}
