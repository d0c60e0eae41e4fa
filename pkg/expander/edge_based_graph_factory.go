package expander

import (
	"log"
	"sort"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/geo"
	"github.com/lintang-b-s/chroute/pkg/guidance"
	"github.com/lintang-b-s/chroute/pkg/server"
)

type nodeBasedEdgeData struct {
	Weight          int32
	EdgeBasedNodeID int32
	NameID          int32
	Type            int16
	Roundabout      bool
	Forward         bool
	Backward        bool
}

func (d nodeBasedEdgeData) EdgeWeight() int32 { return d.Weight }

// EdgeBasedGraphFactory expands a node-based road graph into the edge-based
// graph the contractor consumes: every directed node-based edge becomes a
// node, every allowed turn becomes an edge carrying the turn cost and a
// turn instruction. Turn restrictions are resolved at the via node.
type EdgeBasedGraphFactory struct {
	nodeBasedGraph    *datastructure.DynamicGraph[nodeBasedEdgeData]
	inputRestrictions []datastructure.TurnRestriction
	inputNodeInfoList []datastructure.Node

	edgeBasedNodes []datastructure.EdgeBasedNode
	edgeBasedEdges []datastructure.EdgeBasedEdge

	obeyedRestrictions int
}

// NewEdgeBasedGraphFactory expands inputEdges into their direction-explicit
// form and assigns every directed copy its edge-based node id. Restrictions
// are expected node-resolved; they are sorted by from-node here.
func NewEdgeBasedGraphFactory(numNodes int, inputEdges []datastructure.NodeBasedEdge,
	restrictions []datastructure.TurnRestriction,
	nodeInfo []datastructure.Node) (*EdgeBasedGraphFactory, error) {

	sortedRestrictions := make([]datastructure.TurnRestriction, len(restrictions))
	copy(sortedRestrictions, restrictions)
	sort.SliceStable(sortedRestrictions, func(i, j int) bool {
		return sortedRestrictions[i].FromNode < sortedRestrictions[j].FromNode
	})

	edges := make([]datastructure.InputEdge[nodeBasedEdgeData], 0, 2*len(inputEdges))
	for _, in := range inputEdges {
		if in.Source == in.Target {
			continue
		}
		if in.Weight <= 0 || in.Weight > datastructure.MaxEdgeWeight {
			return nil, server.WrapErrorf(nil, server.ErrInvalidInput,
				"edge (%d,%d) weight %d out of range", in.Source, in.Target, in.Weight)
		}

		edge := datastructure.InputEdge[nodeBasedEdgeData]{
			Source: in.Source,
			Target: in.Target,
			Data: nodeBasedEdgeData{
				Weight:          in.Weight,
				EdgeBasedNodeID: int32(len(edges)),
				NameID:          in.NameID,
				Type:            in.Type,
				Roundabout:      in.Roundabout,
				Forward:         in.Forward,
				Backward:        in.Backward,
			},
		}
		edges = append(edges, edge)

		if in.Backward {
			edge.Source, edge.Target = edge.Target, edge.Source
			edge.Data.Forward = in.Backward
			edge.Data.Backward = in.Forward
			edge.Data.EdgeBasedNodeID = int32(len(edges))
			edges = append(edges, edge)
		}
	}

	factory := &EdgeBasedGraphFactory{
		nodeBasedGraph:    datastructure.NewDynamicGraph[nodeBasedEdgeData](numNodes, edges),
		inputRestrictions: sortedRestrictions,
		inputNodeInfoList: nodeInfo,
	}
	log.Printf("converted %d node-based edges into %d edge-based nodes",
		len(inputEdges), len(edges))
	return factory, nil
}

// NumEdgeBasedNodes is the size of the edge-based node id space: one id per
// directed node-based edge.
func (f *EdgeBasedGraphFactory) NumEdgeBasedNodes() int {
	return int(f.nodeBasedGraph.NumEdges())
}

// Run sweeps every turn (u,v,w) over adjacent node-based edges, applying
// restrictions and the turn-cost model, and fills the edge-based node and
// edge lists.
func (f *EdgeBasedGraphFactory) Run() error {
	g := f.nodeBasedGraph
	restrictionIdx := 0
	nodeBasedEdgeCounter := 0

	for u := int32(0); u < g.NumNodes(); u++ {
		for restrictionIdx < len(f.inputRestrictions) && f.inputRestrictions[restrictionIdx].FromNode < u {
			restrictionIdx++
		}

		for e1 := g.BeginEdges(u); e1 < g.EndEdges(u); e1++ {
			nodeBasedEdgeCounter++
			v := g.GetTarget(e1)
			data1 := g.GetEdgeData(e1)

			f.emitEdgeBasedNode(u, v, data1)

			// an only_* restriction at v pins the single allowed exit
			isOnlyAllowed := false
			onlyToNode := int32(0)
			for i := restrictionIdx; i < len(f.inputRestrictions) && f.inputRestrictions[i].FromNode == u; i++ {
				if f.inputRestrictions[i].ViaNode == v && f.inputRestrictions[i].IsOnly {
					isOnlyAllowed = true
					onlyToNode = f.inputRestrictions[i].ToNode
				}
			}

			for e2 := g.BeginEdges(v); e2 < g.EndEdges(v); e2++ {
				w := g.GetTarget(e2)

				if isOnlyAllowed && w != onlyToNode {
					f.obeyedRestrictions++
					continue
				}
				if u == w {
					// no U-turns in the expansion
					continue
				}

				isTurnRestricted := false
				for i := restrictionIdx; i < len(f.inputRestrictions) && f.inputRestrictions[i].FromNode == u; i++ {
					if f.inputRestrictions[i].ViaNode == v && f.inputRestrictions[i].ToNode == w &&
						!f.inputRestrictions[i].IsOnly {
						isTurnRestricted = true
					}
				}
				if isTurnRestricted && !(isOnlyAllowed && w == onlyToNode) {
					f.obeyedRestrictions++
					continue
				}

				data2 := g.GetEdgeData(e2)

				edgeBasedSource := data1.EdgeBasedNodeID
				edgeBasedTarget := data2.EdgeBasedNodeID
				if edgeBasedSource >= g.NumEdges() || edgeBasedTarget >= g.NumEdges() {
					return server.WrapErrorf(nil, server.ErrGraphInconsistency,
						"edge-based id out of range at turn (%d,%d,%d)", u, v, w)
				}

				angle := geo.ComputeTurnAngle(f.inputNodeInfoList[u], f.inputNodeInfoList[v], f.inputNodeInfoList[w])
				weight := geo.TurnCostWeight(data1.Weight, angle)
				turn := f.analyzeTurn(v, data1, data2, angle)

				f.edgeBasedEdges = append(f.edgeBasedEdges, datastructure.NewEdgeBasedEdge(
					uint32(edgeBasedSource), uint32(edgeBasedTarget), uint32(v),
					uint32(data2.NameID), weight, true, false, turn,
				))
			}
		}
	}

	sort.SliceStable(f.edgeBasedNodes, func(i, j int) bool {
		return f.edgeBasedNodes[i].ID < f.edgeBasedNodes[j].ID
	})
	f.edgeBasedNodes = dedupEdgeBasedNodes(f.edgeBasedNodes)

	log.Printf("node-based graph contains %d edges", nodeBasedEdgeCounter)
	log.Printf("edge-based graph contains %d edges, obeys %d turn restrictions, %d skipped",
		len(f.edgeBasedEdges), f.obeyedRestrictions, len(f.inputRestrictions)-f.obeyedRestrictions)
	log.Printf("generated %d edge-based nodes", len(f.edgeBasedNodes))
	return nil
}

func (f *EdgeBasedGraphFactory) emitEdgeBasedNode(u, v int32, data *nodeBasedEdgeData) {
	f.edgeBasedNodes = append(f.edgeBasedNodes, datastructure.EdgeBasedNode{
		NameID: uint32(data.NameID),
		Lat1:   f.inputNodeInfoList[u].Lat,
		Lon1:   f.inputNodeInfoList[u].Lon,
		Lat2:   f.inputNodeInfoList[v].Lat,
		Lon2:   f.inputNodeInfoList[v].Lon,
		ID:     uint32(data.EdgeBasedNodeID),
		Weight: uint32(data.Weight),
	})
}

// analyzeTurn picks the instruction for the turn e1 -> e2 at node v.
func (f *EdgeBasedGraphFactory) analyzeTurn(v int32, data1, data2 *nodeBasedEdgeData, angle float64) datastructure.TurnInstruction {
	g := f.nodeBasedGraph

	if data1.Roundabout && data2.Roundabout {
		if g.EndEdges(v)-g.BeginEdges(v) == 1 {
			// no departure possible, staying is the only option
			return datastructure.NoTurn
		}
		return datastructure.StayOnRoundAbout
	}
	if !data1.Roundabout && data2.Roundabout {
		return datastructure.EnterRoundAbout
	}
	if data1.Roundabout && !data2.Roundabout {
		return datastructure.LeaveRoundAbout
	}

	if data1.NameID == data2.NameID {
		return datastructure.NoTurn
	}

	return guidance.GetTurnDirection(angle)
}

// GetEdgeBasedEdges hands out the edge list; the factory keeps nothing.
func (f *EdgeBasedGraphFactory) GetEdgeBasedEdges() []datastructure.EdgeBasedEdge {
	out := f.edgeBasedEdges
	f.edgeBasedEdges = nil
	return out
}

func (f *EdgeBasedGraphFactory) GetEdgeBasedNodes() []datastructure.EdgeBasedNode {
	return f.edgeBasedNodes
}

func dedupEdgeBasedNodes(nodes []datastructure.EdgeBasedNode) []datastructure.EdgeBasedNode {
	out := nodes[:0]
	for i, n := range nodes {
		if i > 0 && n == nodes[i-1] {
			continue
		}
		out = append(out, n)
	}
	return out
}
