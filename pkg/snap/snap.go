package snap

import (
	"math"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/geo"

	"github.com/dhconnelly/rtreego"
)

const (
	pointTolerance = 1e-7
	// candidate search box half-diagonal around the query point
	snapSearchRadiusKm = 1.0
)

type edgeNodeItem struct {
	id     int32
	bounds rtreego.Rect
	// segment endpoints of the underlying road edge
	p1 datastructure.Coordinate
	p2 datastructure.Coordinate
}

func (e *edgeNodeItem) Bounds() rtreego.Rect { return e.bounds }

// RoadSnapper maps arbitrary coordinates onto the edge-based node space:
// an in-memory R-tree over segment midpoints narrows the candidates, the
// query point is then projected onto each candidate's segment and the
// closest projection wins.
type RoadSnapper struct {
	rtree *rtreego.Rtree
}

// NewRoadSnapper indexes the midpoint of every edge-based node.
func NewRoadSnapper(nodes []datastructure.EdgeBasedNode) *RoadSnapper {
	items := make([]rtreego.Spatial, 0, len(nodes))
	for _, node := range nodes {
		p1 := datastructure.NewCoordinate(datastructure.Degrees(node.Lat1), datastructure.Degrees(node.Lon1))
		p2 := datastructure.NewCoordinate(datastructure.Degrees(node.Lat2), datastructure.Degrees(node.Lon2))
		mid := rtreego.Point{(p1.Lat + p2.Lat) / 2, (p1.Lon + p2.Lon) / 2}
		rect, err := rtreego.NewRect(mid, []float64{pointTolerance, pointTolerance})
		if err != nil {
			continue
		}
		items = append(items, &edgeNodeItem{
			id:     int32(node.ID),
			bounds: rect,
			p1:     p1,
			p2:     p2,
		})
	}
	return &RoadSnapper{rtree: rtreego.NewTree(2, 25, 50, items...)}
}

// SnapToRoadNetwork returns the edge-based node whose road segment is
// closest to (lat, lon), together with the distance to the projection of
// the point onto that segment in km; ok is false when the index is empty.
func (rs *RoadSnapper) SnapToRoadNetwork(lat, lon float64) (int32, float64, bool) {
	query := datastructure.NewCoordinate(lat, lon)

	candidates := rs.candidatesAround(lat, lon)
	if len(candidates) == 0 {
		nearest, ok := rs.rtree.NearestNeighbor(rtreego.Point{lat, lon}).(*edgeNodeItem)
		if !ok {
			return 0, 0, false
		}
		candidates = append(candidates, nearest)
	}

	bestID := int32(0)
	bestDist := math.MaxFloat64
	for _, item := range candidates {
		projection := projectOntoSegment(item, query)
		if dist := geo.AngularDistanceKm(query, projection); dist < bestDist {
			bestDist = dist
			bestID = item.id
		}
	}
	return bestID, bestDist, true
}

// candidatesAround collects the indexed segments whose midpoint falls in a
// box of ~snapSearchRadiusKm around the query point.
func (rs *RoadSnapper) candidatesAround(lat, lon float64) []*edgeNodeItem {
	upperLat, upperLon := geo.GetDestinationPoint(lat, lon, 45, snapSearchRadiusKm)
	lowerLat, lowerLon := geo.GetDestinationPoint(lat, lon, 225, snapSearchRadiusKm)

	minLat := math.Min(lowerLat, upperLat)
	minLon := math.Min(lowerLon, upperLon)
	bound, err := rtreego.NewRect(rtreego.Point{minLat, minLon},
		[]float64{math.Abs(upperLat - lowerLat), math.Abs(upperLon - lowerLon)})
	if err != nil {
		return nil
	}

	matches := rs.rtree.SearchIntersect(bound)
	candidates := make([]*edgeNodeItem, 0, len(matches))
	for _, spatial := range matches {
		if item, ok := spatial.(*edgeNodeItem); ok {
			candidates = append(candidates, item)
		}
	}
	return candidates
}

func projectOntoSegment(item *edgeNodeItem, query datastructure.Coordinate) datastructure.Coordinate {
	if item.p1 == item.p2 {
		return item.p1
	}
	return geo.ProjectPointToLineCoord(item.p1, item.p2, query)
}
