package contractor

import (
	"github.com/lintang-b-s/chroute/pkg/datastructure"
)

type heapData struct {
	hop    int16
	target bool
}

// threadData is the scratch state owned by one contraction worker: a reused
// addressable heap, the shortcut buffer and a neighbour scratch list.
type threadData struct {
	heap          *datastructure.BinaryHeap[heapData]
	insertedEdges []datastructure.ContractorEdge
	neighbours    []int32
}

func newThreadData(numNodes int) *threadData {
	return &threadData{
		heap:          datastructure.NewBinaryHeap[heapData](numNodes),
		insertedEdges: make([]datastructure.ContractorEdge, 0, 64),
		neighbours:    make([]int32, 0, 32),
	}
}

// runDijkstra drains the pre-seeded heap until every witness target is
// settled, the key exceeds maxDistance, or the settled-node / hop budget
// runs out. Final distances stay readable through heap.GetKey.
func (c *Contractor) runDijkstra(td *threadData, maxDistance int32, numTargets int, maxNodes int, hopLimit int) {
	g := c.graph
	heap := td.heap

	nodes := 0
	targetsFound := 0
	for heap.Size() > 0 {
		node := heap.DeleteMin()
		distance := heap.GetKey(node)
		currentHop := heap.GetData(node).hop + 1

		nodes++
		if nodes > maxNodes {
			return
		}
		if distance > maxDistance {
			return
		}

		if heap.GetData(node).target {
			targetsFound++
			if targetsFound >= numTargets {
				return
			}
		}

		if int(currentHop) >= hopLimit {
			continue
		}

		for edge := g.BeginEdges(node); edge < g.EndEdges(node); edge++ {
			data := g.GetEdgeData(edge)
			if !data.Forward {
				continue
			}
			to := g.GetTarget(edge)
			toDistance := distance + data.Weight

			if !heap.WasInserted(to) {
				heap.Insert(to, toDistance, heapData{hop: currentHop})
			} else if !heap.WasRemoved(to) && toDistance < heap.GetKey(to) {
				heap.DecreaseKey(to, toDistance)
				heap.GetData(to).hop = currentHop
			}
		}
	}
}

// contractNode eliminates node: for every in-edge (s,node) and out-edge
// (node,t) it decides via a bounded witness search whether the shortcut
// (s,t) is needed to preserve distances. With stats set the contraction is
// only simulated and counters are filled; otherwise shortcut pairs go to
// the worker buffer.
func (c *Contractor) contractNode(td *threadData, node int32, stats *contractionStats) {
	g := c.graph
	heap := td.heap
	insertedEdgesSize := len(td.insertedEdges)

	for inEdge := g.BeginEdges(node); inEdge < g.EndEdges(node); inEdge++ {
		inData := *g.GetEdgeData(inEdge)
		source := g.GetTarget(inEdge)
		if stats != nil {
			stats.edgesDeleted++
			stats.originalEdgesDeleted += int(inData.OriginalEdges)
		}
		if !inData.Backward {
			continue
		}

		heap.Clear()
		heap.Insert(source, 0, heapData{})
		if node != source {
			heap.Insert(node, inData.Weight, heapData{})
		}
		maxDistance := int32(0)
		numTargets := 0

		for outEdge := g.BeginEdges(node); outEdge < g.EndEdges(node); outEdge++ {
			outData := g.GetEdgeData(outEdge)
			if !outData.Forward {
				continue
			}
			target := g.GetTarget(outEdge)
			pathDistance := inData.Weight + outData.Weight
			if pathDistance > maxDistance {
				maxDistance = pathDistance
			}
			if !heap.WasInserted(target) {
				heap.Insert(target, pathDistance, heapData{target: true})
				numTargets++
			} else if pathDistance < heap.GetKey(target) {
				heap.DecreaseKey(target, pathDistance)
			}
		}

		if stats != nil {
			c.runDijkstra(td, maxDistance, numTargets, c.opts.SimulationSettleLimit, c.opts.HopLimit)
		} else {
			c.runDijkstra(td, maxDistance, numTargets, c.opts.ContractionSettleLimit, c.opts.HopLimit)
		}

		for outEdge := g.BeginEdges(node); outEdge < g.EndEdges(node); outEdge++ {
			outData := g.GetEdgeData(outEdge)
			if !outData.Forward {
				continue
			}
			target := g.GetTarget(outEdge)
			pathDistance := inData.Weight + outData.Weight
			if pathDistance > heap.GetKey(target) {
				// a strictly shorter witness avoids node, no shortcut
				continue
			}
			if stats != nil {
				stats.edgesAdded += 2
				stats.originalEdgesAdded += 2 * int(outData.OriginalEdges+inData.OriginalEdges)
				continue
			}

			shortcut := datastructure.NewContractorEdge(source, target,
				datastructure.ContractorEdgeData{
					Weight:          pathDistance,
					OriginalEdges:   outData.OriginalEdges + inData.OriginalEdges,
					Via:             uint32(node),
					TurnInstruction: inData.TurnInstruction,
					Shortcut:        true,
					Forward:         true,
					Backward:        false,
				})
			td.insertedEdges = append(td.insertedEdges, shortcut)

			shortcut.Source, shortcut.Target = shortcut.Target, shortcut.Source
			shortcut.Data.Forward = false
			shortcut.Data.Backward = true
			td.insertedEdges = append(td.insertedEdges, shortcut)
		}
	}

	if stats == nil {
		td.insertedEdges = mergeDuplicateShortcuts(td.insertedEdges, insertedEdgesSize)
	}
}

// mergeDuplicateShortcuts folds identical shortcut pairs produced while
// contracting one node into single edges with OR-ed direction flags.
func mergeDuplicateShortcuts(edges []datastructure.ContractorEdge, from int) []datastructure.ContractorEdge {
	kept := from
	for i := from; i < len(edges); i++ {
		found := false
		for other := i + 1; other < len(edges); other++ {
			if edges[other].Source != edges[i].Source ||
				edges[other].Target != edges[i].Target ||
				edges[other].Data.Weight != edges[i].Data.Weight ||
				edges[other].Data.Shortcut != edges[i].Data.Shortcut {
				continue
			}
			edges[other].Data.Forward = edges[other].Data.Forward || edges[i].Data.Forward
			edges[other].Data.Backward = edges[other].Data.Backward || edges[i].Data.Backward
			found = true
			break
		}
		if !found {
			edges[kept] = edges[i]
			kept++
		}
	}
	return edges[:kept]
}

// evaluate runs a simulated contraction and derives the node's elimination
// priority from the edge-difference counters and its depth.
func (c *Contractor) evaluate(td *threadData, data *priorityData, node int32) float64 {
	stats := contractionStats{}
	c.contractNode(td, node, &stats)

	if stats.edgesDeleted == 0 || stats.originalEdgesDeleted == 0 {
		return float64(data.depth)
	}
	return 2*float64(stats.edgesAdded)/float64(stats.edgesDeleted) +
		4*float64(stats.originalEdgesAdded)/float64(stats.originalEdgesDeleted) +
		float64(data.depth)
}

// deleteIncomingEdges removes the edges pointing at the freshly contracted
// node from every neighbour's adjacency.
func (c *Contractor) deleteIncomingEdges(td *threadData, node int32) {
	g := c.graph
	neighbours := td.neighbours[:0]
	for e := g.BeginEdges(node); e < g.EndEdges(node); e++ {
		if u := g.GetTarget(e); u != node {
			neighbours = append(neighbours, u)
		}
	}
	neighbours = uniqueNodes(neighbours)
	for _, u := range neighbours {
		g.DeleteEdgesTo(u, node)
	}
	td.neighbours = neighbours
}

// updateNeighbours bumps the depth of the contracted node's surviving
// neighbours and recomputes their priorities.
func (c *Contractor) updateNeighbours(priorities []float64, nodeData []priorityData, td *threadData, node int32) {
	g := c.graph
	neighbours := td.neighbours[:0]
	for e := g.BeginEdges(node); e < g.EndEdges(node); e++ {
		u := g.GetTarget(e)
		if u == node {
			continue
		}
		neighbours = append(neighbours, u)
		if nodeData[node].depth+1 > nodeData[u].depth {
			nodeData[u].depth = nodeData[node].depth + 1
		}
	}
	neighbours = uniqueNodes(neighbours)
	for _, u := range neighbours {
		priorities[u] = c.evaluate(td, &nodeData[u], u)
	}
	td.neighbours = neighbours
}

// isIndependent reports whether node beats every other node within two
// hops: lower priority wins, ties go to the larger bias.
func (c *Contractor) isIndependent(priorities []float64, nodeData []priorityData, td *threadData, node int32) bool {
	g := c.graph
	priority := priorities[node]

	neighbours := td.neighbours[:0]
	for e := g.BeginEdges(node); e < g.EndEdges(node); e++ {
		target := g.GetTarget(e)
		targetPriority := priorities[target]
		if priority > targetPriority {
			return false
		}
		if priority == targetPriority && nodeData[node].bias < nodeData[target].bias {
			return false
		}
		neighbours = append(neighbours, target)
	}

	neighbours = uniqueNodes(neighbours)
	td.neighbours = neighbours

	for _, u := range neighbours {
		for e := g.BeginEdges(u); e < g.EndEdges(u); e++ {
			target := g.GetTarget(e)
			targetPriority := priorities[target]
			if priority > targetPriority {
				return false
			}
			if priority == targetPriority && nodeData[node].bias < nodeData[target].bias {
				return false
			}
		}
	}
	return true
}

func uniqueNodes(nodes []int32) []int32 {
	if len(nodes) < 2 {
		return nodes
	}
	sortInt32(nodes)
	out := nodes[:1]
	for _, n := range nodes[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}

func sortInt32(nodes []int32) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j] < nodes[j-1]; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}
