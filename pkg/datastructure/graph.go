package datastructure

// MaxEdgeWeight is the largest weight (in 1/10 second ticks) an input edge
// may carry: 24 hours. Anything above it cannot come from a real road
// segment and would poison the hierarchy.
const MaxEdgeWeight = 24 * 60 * 60 * 10

// Node is a geographic node as emitted by the parser. Lat/Lon are
// fixed-point micro degrees.
type Node struct {
	ID  int64
	Lat int32
	Lon int32
}

func NewNode(id int64, lat, lon int32) Node {
	return Node{ID: id, Lat: lat, Lon: lon}
}

// NodeBasedEdge is one directed-or-bidirectional road segment between two
// geographic nodes. Weight is in 1/10 second ticks.
type NodeBasedEdge struct {
	Source     int32
	Target     int32
	Weight     int32
	Forward    bool
	Backward   bool
	NameID     int32
	Type       int16
	Roundabout bool
}

func NewNodeBasedEdge(source, target, weight int32, forward, backward bool,
	nameID int32, roadType int16, roundabout bool) NodeBasedEdge {
	return NodeBasedEdge{
		Source:     source,
		Target:     target,
		Weight:     weight,
		Forward:    forward,
		Backward:   backward,
		NameID:     nameID,
		Type:       roadType,
		Roundabout: roundabout,
	}
}

// TurnRestriction is a node-resolved restriction. IsOnly distinguishes
// prescriptive only_* restrictions from proscriptive no_* ones.
type TurnRestriction struct {
	FromNode int32
	ViaNode  int32
	ToNode   int32
	IsOnly   bool
}

// EdgeBasedNode represents one directed node-based edge promoted to a node
// of the edge-based graph. ID is its position in the edge-based node space.
type EdgeBasedNode struct {
	NameID uint32
	Lat1   int32
	Lon1   int32
	Lat2   int32
	Lon2   int32
	ID     uint32
	Weight uint32
}

// EdgeBasedEdge is a turn: it connects two edge-based nodes through the
// geographic node Via where the turn happens.
type EdgeBasedEdge struct {
	Source          uint32
	Target          uint32
	Via             uint32
	NameID          uint32
	Weight          int32
	Forward         bool
	Backward        bool
	TurnInstruction TurnInstruction
}

func NewEdgeBasedEdge(source, target, via, nameID uint32, weight int32,
	forward, backward bool, turn TurnInstruction) EdgeBasedEdge {
	return EdgeBasedEdge{
		Source:          source,
		Target:          target,
		Via:             via,
		NameID:          nameID,
		Weight:          weight,
		Forward:         forward,
		Backward:        backward,
		TurnInstruction: turn,
	}
}

// ContractorEdgeData is the edge payload of the contraction graph and of
// the final hierarchy. Via is the node eliminated by a shortcut;
// OriginalViaNodeID marks a Via that refers to the id space in use before
// the contractor's mid-run compaction.
type ContractorEdgeData struct {
	Weight            int32
	OriginalEdges     int32
	Via               uint32
	NameID            uint32
	TurnInstruction   TurnInstruction
	Shortcut          bool
	Forward           bool
	Backward          bool
	OriginalViaNodeID bool
}

func (d ContractorEdgeData) EdgeWeight() int32 { return d.Weight }

// ContractorEdge is a direction-explicit edge of the contraction graph.
type ContractorEdge struct {
	Source int32
	Target int32
	Data   ContractorEdgeData
}

func NewContractorEdge(source, target int32, data ContractorEdgeData) ContractorEdge {
	return ContractorEdge{Source: source, Target: target, Data: data}
}

// CHNode is the per-node record kept alongside the contracted hierarchy:
// endpoint coordinates of the underlying road segment plus the id in the
// edge-based node space.
type CHNode struct {
	Lat float64
	Lon float64
	ID  int32
}

func NewCHNode(lat, lon float64, id int32) CHNode {
	return CHNode{Lat: lat, Lon: lon, ID: id}
}
