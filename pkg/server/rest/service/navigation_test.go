package service

import (
	"context"
	"testing"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/engine/routingalgorithm"
	"github.com/lintang-b-s/chroute/pkg/kv"
	"github.com/lintang-b-s/chroute/pkg/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouteEngine struct {
	edges  []datastructure.ContractorEdge
	weight int32
	found  bool
}

func (f *fakeRouteEngine) ShortestPathBiDijkstraCH(from, to int32) ([]int32, []datastructure.ContractorEdge, int32, bool) {
	return nil, f.edges, f.weight, f.found
}

type fakeAlternativeEngine struct{}

func (f *fakeAlternativeEngine) Run(from, to int32) (routingalgorithm.RouteResult, *routingalgorithm.AlternativeRoute, error) {
	return routingalgorithm.RouteResult{}, nil, nil
}

type fakeSnapper struct {
	distKm float64
}

func (f *fakeSnapper) SnapToRoadNetwork(lat, lon float64) (int32, float64, bool) {
	return 0, f.distKm, true
}

type fakeStreetIndex struct {
	records []kv.StreetRecord
}

func (f *fakeStreetIndex) GetNearestStreetsFromPointCoord(lat, lon float64) ([]kv.StreetRecord, error) {
	return f.records, nil
}

func testNodes() []datastructure.EdgeBasedNode {
	return []datastructure.EdgeBasedNode{
		{ID: 0, NameID: 1,
			Lat1: datastructure.MicroDegrees(-7.5600), Lon1: datastructure.MicroDegrees(110.8300),
			Lat2: datastructure.MicroDegrees(-7.5610), Lon2: datastructure.MicroDegrees(110.8310)},
		{ID: 1, NameID: 2,
			Lat1: datastructure.MicroDegrees(-7.5610), Lon1: datastructure.MicroDegrees(110.8310),
			Lat2: datastructure.MicroDegrees(-7.5620), Lon2: datastructure.MicroDegrees(110.8320)},
	}
}

func TestShortestPathBuildsRoute(t *testing.T) {
	engine := &fakeRouteEngine{
		edges: []datastructure.ContractorEdge{
			datastructure.NewContractorEdge(0, 1, datastructure.ContractorEdgeData{
				Weight: 600, NameID: 1, TurnInstruction: datastructure.GoStraight,
			}),
			datastructure.NewContractorEdge(1, 2, datastructure.ContractorEdgeData{
				Weight: 600, NameID: 2, TurnInstruction: datastructure.TurnRight,
			}),
		},
		weight: 1200,
		found:  true,
	}
	svc := NewNavigationService(engine, &fakeAlternativeEngine{}, &fakeSnapper{distKm: 0.1},
		&fakeStreetIndex{}, testNodes(), []string{"", "jalan veteran", "jalan slamet riyadi"})

	route, err := svc.ShortestPath(context.Background(), -7.56, 110.83, -7.562, 110.832)
	require.NoError(t, err)

	assert.Equal(t, int32(1200), route.Weight)
	assert.InDelta(t, 2.0, route.EtaMinutes, 1e-9)
	assert.NotEmpty(t, route.Polyline)
	assert.Greater(t, route.DistanceKm, 0.0)
	require.Len(t, route.Instructions, 2)
	assert.Equal(t, "jalan veteran", route.Instructions[0].StreetName)
	assert.Equal(t, datastructure.TurnRight, route.Instructions[1].Turn)
}

func TestShortestPathRejectsOffMapLocations(t *testing.T) {
	svc := NewNavigationService(&fakeRouteEngine{}, &fakeAlternativeEngine{}, &fakeSnapper{distKm: 50},
		&fakeStreetIndex{}, testNodes(), nil)

	_, err := svc.ShortestPath(context.Background(), 0, 0, 1, 1)
	require.Error(t, err)
	assert.Equal(t, server.ErrNotFound, server.CodeOf(err))
}

func TestNearestStreetsSortedByDistance(t *testing.T) {
	streets := &fakeStreetIndex{records: []kv.StreetRecord{
		{EdgeBasedNodeID: 0, CenterLat: -7.60, CenterLon: 110.90, NameID: 2},
		{EdgeBasedNodeID: 1, CenterLat: -7.561, CenterLon: 110.831, NameID: 1},
	}}
	svc := NewNavigationService(&fakeRouteEngine{}, &fakeAlternativeEngine{}, &fakeSnapper{},
		streets, testNodes(), []string{"", "jalan veteran", "jalan slamet riyadi"})

	out, err := svc.NearestStreets(context.Background(), -7.5610, 110.8310)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "jalan veteran", out[0].StreetName)
	assert.LessOrEqual(t, out[0].DistanceKm, out[1].DistanceKm)
}
