package osmparser

import (
	"context"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/geo"
	"github.com/lintang-b-s/chroute/pkg/server"
	"github.com/lintang-b-s/chroute/pkg/util"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

type nodeCoord struct {
	lat float64
	lon float64
}

type parsedWay struct {
	id         int64
	nodes      []int64
	speedKmh   float64
	oneway     bool
	roundabout bool
	nameID     int32
	roadType   int16
}

type rawRestriction struct {
	fromWay int64
	viaNode int64
	toWay   int64
	isOnly  bool
}

// ParsedGraph is the §-input contract of the core: geographic nodes with
// dense ids, node-based edges in tick weights, and node-resolved turn
// restrictions.
type ParsedGraph struct {
	Nodes        []datastructure.Node
	Edges        []datastructure.NodeBasedEdge
	Restrictions []datastructure.TurnRestriction
	NameIDMap    util.IDMap
}

// OsmParser reads an OSM pbf extract and keeps only the drivable road
// network. Ways chain into per-segment edges; restriction relations are
// resolved from way references to node triples.
type OsmParser struct {
	acceptedWays    []parsedWay
	wayByID         map[int64]int
	neededNodes     map[int64]nodeCoord
	nodeIDMap       map[int64]int32
	rawRestrictions []rawRestriction
	tagStringIdMap  util.IDMap

	skippedRestrictions int
}

func NewOsmParser() *OsmParser {
	return &OsmParser{
		wayByID:        make(map[int64]int),
		neededNodes:    make(map[int64]nodeCoord),
		nodeIDMap:      make(map[int64]int32),
		tagStringIdMap: util.NewIdMap(),
	}
}

func roadTypeMaxSpeed(roadType string) float64 {
	switch roadType {
	case "motorway":
		return 95
	case "trunk":
		return 85
	case "primary":
		return 75
	case "secondary":
		return 65
	case "tertiary":
		return 50
	case "unclassified":
		return 50
	case "residential":
		return 30
	case "service":
		return 20
	case "motorway_link":
		return 90
	case "trunk_link":
		return 80
	case "primary_link":
		return 70
	case "secondary_link":
		return 60
	case "tertiary_link":
		return 50
	case "living_street":
		return 20
	default:
		return 0
	}
}

func roadTypeID(roadType string) int16 {
	switch roadType {
	case "motorway", "motorway_link":
		return 1
	case "trunk", "trunk_link":
		return 2
	case "primary", "primary_link":
		return 3
	case "secondary", "secondary_link":
		return 4
	case "tertiary", "tertiary_link":
		return 5
	case "residential", "living_street":
		return 6
	default:
		return 7
	}
}

// Parse scans the pbf twice: ways and restriction relations first to learn
// which nodes matter, then the node coordinates.
func (p *OsmParser) Parse(mapFile string) (*ParsedGraph, error) {
	if err := p.scanWaysAndRelations(mapFile); err != nil {
		return nil, err
	}
	if err := p.scanNodes(mapFile); err != nil {
		return nil, err
	}
	return p.buildGraph(), nil
}

func (p *OsmParser) scanWaysAndRelations(mapFile string) error {
	file, err := os.Open(mapFile)
	if err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "opening %s", mapFile)
	}
	defer file.Close()

	scanner := osmpbf.New(context.Background(), file, runtime.GOMAXPROCS(0))
	scanner.SkipNodes = true
	defer scanner.Close()

	for scanner.Scan() {
		switch obj := scanner.Object().(type) {
		case *osm.Way:
			p.acceptWay(obj)
		case *osm.Relation:
			p.acceptRestriction(obj)
		}
	}
	if err := scanner.Err(); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "scanning ways in %s", mapFile)
	}
	log.Printf("accepted %d ways, %d restriction relations", len(p.acceptedWays), len(p.rawRestrictions))
	return nil
}

func (p *OsmParser) acceptWay(way *osm.Way) {
	highway := way.Tags.Find("highway")
	speed := roadTypeMaxSpeed(highway)
	if speed == 0 || len(way.Nodes) < 2 {
		return
	}
	if maxspeed := parseMaxSpeed(way.Tags.Find("maxspeed")); maxspeed > 0 {
		speed = maxspeed
	}

	junction := way.Tags.Find("junction")
	roundabout := junction == "roundabout" || junction == "circular"
	oneway := roundabout
	switch way.Tags.Find("oneway") {
	case "yes", "1", "true":
		oneway = true
	}

	nodes := make([]int64, len(way.Nodes))
	for i, n := range way.Nodes {
		nodes[i] = int64(n.ID)
		p.neededNodes[int64(n.ID)] = nodeCoord{}
	}

	p.wayByID[int64(way.ID)] = len(p.acceptedWays)
	p.acceptedWays = append(p.acceptedWays, parsedWay{
		id:         int64(way.ID),
		nodes:      nodes,
		speedKmh:   speed,
		oneway:     oneway,
		roundabout: roundabout,
		nameID:     int32(p.tagStringIdMap.GetID(way.Tags.Find("name"))),
		roadType:   roadTypeID(highway),
	})
}

func (p *OsmParser) acceptRestriction(rel *osm.Relation) {
	if rel.Tags.Find("type") != "restriction" {
		return
	}
	restriction := rel.Tags.Find("restriction")
	if restriction == "" {
		return
	}
	isOnly := strings.HasPrefix(restriction, "only_")
	if !isOnly && !strings.HasPrefix(restriction, "no_") {
		p.skippedRestrictions++
		return
	}

	raw := rawRestriction{isOnly: isOnly}
	for _, member := range rel.Members {
		switch {
		case member.Role == "from" && member.Type == osm.TypeWay:
			raw.fromWay = member.Ref
		case member.Role == "via" && member.Type == osm.TypeNode:
			raw.viaNode = member.Ref
		case member.Role == "to" && member.Type == osm.TypeWay:
			raw.toWay = member.Ref
		}
	}
	if raw.fromWay == 0 || raw.viaNode == 0 || raw.toWay == 0 {
		// via-way restrictions and torn relations are skipped, counted
		p.skippedRestrictions++
		return
	}
	p.rawRestrictions = append(p.rawRestrictions, raw)
}

func parseMaxSpeed(tag string) float64 {
	if tag == "" {
		return 0
	}
	tag = strings.TrimSuffix(strings.TrimSpace(tag), " km/h")
	speed := 0.0
	for _, r := range tag {
		if r < '0' || r > '9' {
			return 0
		}
		speed = speed*10 + float64(r-'0')
	}
	return speed
}

func (p *OsmParser) scanNodes(mapFile string) error {
	file, err := os.Open(mapFile)
	if err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "opening %s", mapFile)
	}
	defer file.Close()

	scanner := osmpbf.New(context.Background(), file, runtime.GOMAXPROCS(0))
	scanner.SkipWays = true
	scanner.SkipRelations = true
	defer scanner.Close()

	for scanner.Scan() {
		node, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := p.neededNodes[int64(node.ID)]; needed {
			p.neededNodes[int64(node.ID)] = nodeCoord{lat: node.Lat, lon: node.Lon}
		}
	}
	if err := scanner.Err(); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "scanning nodes in %s", mapFile)
	}
	return nil
}

func (p *OsmParser) buildGraph() *ParsedGraph {
	graph := &ParsedGraph{NameIDMap: p.tagStringIdMap}

	denseID := func(osmID int64) int32 {
		if id, ok := p.nodeIDMap[osmID]; ok {
			return id
		}
		coord := p.neededNodes[osmID]
		id := int32(len(graph.Nodes))
		p.nodeIDMap[osmID] = id
		graph.Nodes = append(graph.Nodes, datastructure.NewNode(osmID,
			datastructure.MicroDegrees(coord.lat), datastructure.MicroDegrees(coord.lon)))
		return id
	}

	for _, way := range p.acceptedWays {
		for i := 0; i+1 < len(way.nodes); i++ {
			fromCoord := p.neededNodes[way.nodes[i]]
			toCoord := p.neededNodes[way.nodes[i+1]]
			distKm := geo.CalculateHaversineDistance(fromCoord.lat, fromCoord.lon, toCoord.lat, toCoord.lon)
			weight := int32(distKm / way.speedKmh * 3600.0 * 10.0)
			if weight < 1 {
				weight = 1
			}
			graph.Edges = append(graph.Edges, datastructure.NewNodeBasedEdge(
				denseID(way.nodes[i]), denseID(way.nodes[i+1]), weight,
				true, !way.oneway, way.nameID, way.roadType, way.roundabout))
		}
	}

	graph.Restrictions = p.resolveRestrictions()
	if p.skippedRestrictions > 0 {
		log.Printf("skipped %d malformed or unsupported restrictions", p.skippedRestrictions)
	}
	log.Printf("parsed graph: %d nodes, %d edges, %d restrictions",
		len(graph.Nodes), len(graph.Edges), len(graph.Restrictions))
	return graph
}

// resolveRestrictions maps (from_way, via_node, to_way) triples to node
// triples: the from/to node is the way's neighbour of the via node.
func (p *OsmParser) resolveRestrictions() []datastructure.TurnRestriction {
	resolved := make([]datastructure.TurnRestriction, 0, len(p.rawRestrictions))
	for _, raw := range p.rawRestrictions {
		fromNode, okFrom := p.wayNeighbourOfVia(raw.fromWay, raw.viaNode)
		toNode, okTo := p.wayNeighbourOfVia(raw.toWay, raw.viaNode)
		via, okVia := p.nodeIDMap[raw.viaNode]
		if !okFrom || !okTo || !okVia {
			p.skippedRestrictions++
			continue
		}
		resolved = append(resolved, datastructure.TurnRestriction{
			FromNode: fromNode,
			ViaNode:  via,
			ToNode:   toNode,
			IsOnly:   raw.isOnly,
		})
	}
	return resolved
}

func (p *OsmParser) wayNeighbourOfVia(wayID, viaNode int64) (int32, bool) {
	idx, ok := p.wayByID[wayID]
	if !ok {
		return 0, false
	}
	nodes := p.acceptedWays[idx].nodes
	for i, n := range nodes {
		if n != viaNode {
			continue
		}
		neighbour := int64(-1)
		if i > 0 {
			neighbour = nodes[i-1]
		} else if i+1 < len(nodes) {
			neighbour = nodes[i+1]
		}
		if neighbour == -1 {
			return 0, false
		}
		id, ok := p.nodeIDMap[neighbour]
		return id, ok
	}
	return 0, false
}
