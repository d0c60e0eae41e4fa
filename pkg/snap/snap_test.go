package snap

import (
	"testing"

	"github.com/lintang-b-s/chroute/pkg/datastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edgeNodeAt(id uint32, lat, lon float64) datastructure.EdgeBasedNode {
	return datastructure.EdgeBasedNode{
		ID:   id,
		Lat1: datastructure.MicroDegrees(lat),
		Lon1: datastructure.MicroDegrees(lon),
		Lat2: datastructure.MicroDegrees(lat),
		Lon2: datastructure.MicroDegrees(lon),
	}
}

func segmentNode(id uint32, lat1, lon1, lat2, lon2 float64) datastructure.EdgeBasedNode {
	return datastructure.EdgeBasedNode{
		ID:   id,
		Lat1: datastructure.MicroDegrees(lat1),
		Lon1: datastructure.MicroDegrees(lon1),
		Lat2: datastructure.MicroDegrees(lat2),
		Lon2: datastructure.MicroDegrees(lon2),
	}
}

func TestSnapToRoadNetwork(t *testing.T) {
	nodes := []datastructure.EdgeBasedNode{
		edgeNodeAt(0, -7.5655, 110.8317),
		edgeNodeAt(1, -7.5701, 110.8250),
		edgeNodeAt(2, -7.5600, 110.8400),
	}
	snapper := NewRoadSnapper(nodes)

	id, distKm, ok := snapper.SnapToRoadNetwork(-7.5656, 110.8318)
	require.True(t, ok)
	assert.Equal(t, int32(0), id)
	assert.Less(t, distKm, 0.1)

	id, _, ok = snapper.SnapToRoadNetwork(-7.5702, 110.8251)
	require.True(t, ok)
	assert.Equal(t, int32(1), id)
}

func TestSnapProjectsOntoSegment(t *testing.T) {
	// a ~1.1km east-west street; the query point sits just south of its
	// western third, far from the midpoint
	nodes := []datastructure.EdgeBasedNode{
		segmentNode(0, -7.5650, 110.8300, -7.5650, 110.8400),
		edgeNodeAt(1, -7.5700, 110.8340),
	}
	snapper := NewRoadSnapper(nodes)

	id, distKm, ok := snapper.SnapToRoadNetwork(-7.5655, 110.8330)
	require.True(t, ok)
	assert.Equal(t, int32(0), id)
	// distance to the segment, not to its midpoint (~0.23km away)
	assert.Less(t, distKm, 0.1)
}

func TestSnapFallsBackOutsideSearchRadius(t *testing.T) {
	nodes := []datastructure.EdgeBasedNode{
		edgeNodeAt(0, -7.5655, 110.8317),
	}
	snapper := NewRoadSnapper(nodes)

	// nothing within the candidate box, nearest-neighbour fallback
	id, distKm, ok := snapper.SnapToRoadNetwork(-7.7000, 110.9000)
	require.True(t, ok)
	assert.Equal(t, int32(0), id)
	assert.Greater(t, distKm, 10.0)
}
