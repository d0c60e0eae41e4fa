package service

import (
	"context"
	"sort"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/engine/routingalgorithm"
	"github.com/lintang-b-s/chroute/pkg/geo"
	"github.com/lintang-b-s/chroute/pkg/kv"
	"github.com/lintang-b-s/chroute/pkg/server"
)

type RouteEngine interface {
	ShortestPathBiDijkstraCH(from, to int32) ([]int32, []datastructure.ContractorEdge, int32, bool)
}

type AlternativeEngine interface {
	Run(from, to int32) (routingalgorithm.RouteResult, *routingalgorithm.AlternativeRoute, error)
}

type RoadSnapper interface {
	SnapToRoadNetwork(lat, lon float64) (int32, float64, bool)
}

type StreetIndex interface {
	GetNearestStreetsFromPointCoord(lat, lon float64) ([]kv.StreetRecord, error)
}

// maximum distance between the raw coordinate and the snapped segment
// before the request is rejected as off-map
const maxSnapDistanceKm = 1.0

// Route is one served route: the weight in 1/10s ticks, an ETA in minutes,
// the length in km, an encoded polyline and the per-leg instructions.
type Route struct {
	Weight       int32
	EtaMinutes   float64
	DistanceKm   float64
	Polyline     string
	Instructions []Instruction
}

type Instruction struct {
	Turn       datastructure.TurnInstruction
	StreetName string
}

// NavigationService glues snapping, the hierarchy query and the
// alternative-route search behind coordinate-based requests.
type NavigationService struct {
	route        RouteEngine
	alternatives AlternativeEngine
	snapper      RoadSnapper
	streets      StreetIndex

	nodeByID map[uint32]datastructure.EdgeBasedNode
	names    []string
}

func NewNavigationService(route RouteEngine, alternatives AlternativeEngine, snapper RoadSnapper,
	streets StreetIndex, nodes []datastructure.EdgeBasedNode, names []string) *NavigationService {

	nodeByID := make(map[uint32]datastructure.EdgeBasedNode, len(nodes))
	for _, n := range nodes {
		nodeByID[n.ID] = n
	}
	return &NavigationService{
		route:        route,
		alternatives: alternatives,
		snapper:      snapper,
		streets:      streets,
		nodeByID:     nodeByID,
		names:        names,
	}
}

// NearestStreet is one entry of the nearest-street lookup.
type NearestStreet struct {
	StreetName string
	Lat        float64
	Lon        float64
	DistanceKm float64
}

// NearestStreets serves the H3-indexed street lookup around a coordinate,
// closest first.
func (s *NavigationService) NearestStreets(ctx context.Context, lat, lon float64) ([]NearestStreet, error) {
	if err := ctx.Err(); err != nil {
		return nil, server.WrapErrorf(err, server.ErrCancelled, "request cancelled")
	}
	if s.streets == nil {
		return nil, server.NewErrorf(server.ErrNotFound, "street index not loaded")
	}
	records, err := s.streets.GetNearestStreetsFromPointCoord(lat, lon)
	if err != nil {
		return nil, err
	}
	out := make([]NearestStreet, 0, len(records))
	for _, rec := range records {
		out = append(out, NearestStreet{
			StreetName: s.name(rec.NameID),
			Lat:        rec.CenterLat,
			Lon:        rec.CenterLon,
			DistanceKm: geo.CalculateHaversineDistance(lat, lon, rec.CenterLat, rec.CenterLon),
		})
	}
	sortNearestStreets(out)
	return out, nil
}

func sortNearestStreets(streets []NearestStreet) {
	sort.SliceStable(streets, func(i, j int) bool {
		return streets[i].DistanceKm < streets[j].DistanceKm
	})
}

func (s *NavigationService) snap(lat, lon float64) (int32, error) {
	id, distKm, ok := s.snapper.SnapToRoadNetwork(lat, lon)
	if !ok || distKm > maxSnapDistanceKm {
		return 0, server.NewErrorf(server.ErrNotFound,
			"location (%f, %f) is not near the road network", lat, lon)
	}
	return id, nil
}

// ShortestPath snaps both coordinates and runs the hierarchy query.
func (s *NavigationService) ShortestPath(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (Route, error) {
	if err := ctx.Err(); err != nil {
		return Route{}, server.WrapErrorf(err, server.ErrCancelled, "request cancelled")
	}
	from, err := s.snap(fromLat, fromLon)
	if err != nil {
		return Route{}, err
	}
	to, err := s.snap(toLat, toLon)
	if err != nil {
		return Route{}, err
	}

	_, edges, weight, found := s.route.ShortestPathBiDijkstraCH(from, to)
	if !found {
		return Route{}, server.NewErrorf(server.ErrNotFound, "no route between the locations")
	}
	return s.buildRoute(weight, edges), nil
}

// AlternativeRoute returns the optimal route plus, when one survives the
// admissibility filters, a single alternative.
func (s *NavigationService) AlternativeRoute(ctx context.Context, fromLat, fromLon, toLat, toLon float64) (Route, *Route, error) {
	if err := ctx.Err(); err != nil {
		return Route{}, nil, server.WrapErrorf(err, server.ErrCancelled, "request cancelled")
	}
	from, err := s.snap(fromLat, fromLon)
	if err != nil {
		return Route{}, nil, err
	}
	to, err := s.snap(toLat, toLon)
	if err != nil {
		return Route{}, nil, err
	}

	best, alt, err := s.alternatives.Run(from, to)
	if err != nil {
		return Route{}, nil, err
	}

	bestRoute := s.buildRoute(best.Weight, best.Edges)
	if alt == nil {
		return bestRoute, nil, nil
	}
	altRoute := s.buildRoute(alt.Weight, alt.Edges)
	return bestRoute, &altRoute, nil
}

func (s *NavigationService) buildRoute(weight int32, edges []datastructure.ContractorEdge) Route {
	route := Route{
		Weight:     weight,
		EtaMinutes: float64(weight) / 10.0 / 60.0,
	}

	path := make([]datastructure.Coordinate, 0, len(edges)+1)
	for i, e := range edges {
		node, ok := s.nodeByID[uint32(e.Source)]
		if !ok {
			continue
		}
		if i == 0 {
			path = append(path, datastructure.NewCoordinate(
				datastructure.Degrees(node.Lat1), datastructure.Degrees(node.Lon1)))
		}
		path = append(path, datastructure.NewCoordinate(
			datastructure.Degrees(node.Lat2), datastructure.Degrees(node.Lon2)))

		route.Instructions = append(route.Instructions, Instruction{
			Turn:       e.Data.TurnInstruction,
			StreetName: s.name(e.Data.NameID),
		})
	}
	for i := 0; i+1 < len(path); i++ {
		route.DistanceKm += geo.CalculateHaversineDistance(
			path[i].Lat, path[i].Lon, path[i+1].Lat, path[i+1].Lon)
	}
	route.Polyline = datastructure.RenderPath(path)
	return route
}

func (s *NavigationService) name(id uint32) string {
	if int(id) >= len(s.names) {
		return ""
	}
	return s.names[id]
}
