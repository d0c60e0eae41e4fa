package routingalgorithm

import (
	"testing"

	"github.com/lintang-b-s/chroute/pkg/contractor"
	"github.com/lintang-b-s/chroute/pkg/datastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func bidirectionalEdge(source, target uint32, weight int32) datastructure.EdgeBasedEdge {
	return datastructure.NewEdgeBasedEdge(source, target, 0, 0, weight, true, true, datastructure.NoTurn)
}

func forwardOnlyEdge(source, target uint32, weight int32) datastructure.EdgeBasedEdge {
	return datastructure.NewEdgeBasedEdge(source, target, 0, 0, weight, true, false, datastructure.NoTurn)
}

// contractAndBuild runs the full preprocessing pipeline and returns the
// query engine over the hierarchy.
func contractAndBuild(t *testing.T, numNodes int, edges []datastructure.EdgeBasedEdge) *RouteAlgorithm {
	t.Helper()
	opts := contractor.DefaultOptions()
	opts.NumWorkers = 2
	c, err := contractor.NewContractor(numNodes, edges, opts)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Run())
	contracted, err := c.GetEdges()
	require.NoError(t, err)
	return NewRouteAlgorithm(datastructure.BuildQueryGraph(numNodes, contracted))
}

// baseline builds the plain (uncontracted) direction-explicit graph.
func baseline(numNodes int, edges []datastructure.EdgeBasedEdge) *RouteAlgorithm {
	explicit := make([]datastructure.ContractorEdge, 0, 2*len(edges))
	for _, in := range edges {
		data := datastructure.ContractorEdgeData{
			Weight: in.Weight, OriginalEdges: 1, Forward: in.Forward, Backward: in.Backward,
		}
		explicit = append(explicit, datastructure.NewContractorEdge(int32(in.Source), int32(in.Target), data))
		data.Forward, data.Backward = in.Backward, in.Forward
		explicit = append(explicit, datastructure.NewContractorEdge(int32(in.Target), int32(in.Source), data))
	}
	return NewRouteAlgorithm(datastructure.BuildQueryGraph(numNodes, explicit))
}

func TestTriangleQuery(t *testing.T) {
	edges := []datastructure.EdgeBasedEdge{
		bidirectionalEdge(0, 1, 3),
		bidirectionalEdge(1, 2, 4),
		bidirectionalEdge(0, 2, 10),
	}
	rt := contractAndBuild(t, 3, edges)

	packed, unpacked, weight, found := rt.ShortestPathBiDijkstraCH(0, 2)
	require.True(t, found)
	assert.Equal(t, int32(7), weight)
	assert.Equal(t, weight, PathWeight(unpacked))
	assert.NotEmpty(t, packed)

	// the unpacked path is the original two edges, never the shortcut
	require.Len(t, unpacked, 2)
	assert.False(t, unpacked[0].Data.Shortcut)
	assert.False(t, unpacked[1].Data.Shortcut)
	assert.Equal(t, int32(0), unpacked[0].Source)
	assert.Equal(t, int32(1), unpacked[0].Target)
	assert.Equal(t, int32(2), unpacked[1].Target)
}

func TestQuerySameNode(t *testing.T) {
	rt := contractAndBuild(t, 3, []datastructure.EdgeBasedEdge{bidirectionalEdge(0, 1, 3)})
	_, _, weight, found := rt.ShortestPathBiDijkstraCH(1, 1)
	require.True(t, found)
	assert.Equal(t, int32(0), weight)
}

func TestQueryNoPath(t *testing.T) {
	// two disconnected components
	edges := []datastructure.EdgeBasedEdge{
		bidirectionalEdge(0, 1, 3),
		bidirectionalEdge(2, 3, 4),
	}
	rt := contractAndBuild(t, 4, edges)
	_, _, weight, found := rt.ShortestPathBiDijkstraCH(0, 3)
	assert.False(t, found)
	assert.Equal(t, int32(-1), weight)
}

func TestDirectedQueryRespectsOneWays(t *testing.T) {
	edges := []datastructure.EdgeBasedEdge{
		forwardOnlyEdge(0, 1, 2),
		forwardOnlyEdge(1, 2, 2),
		forwardOnlyEdge(2, 0, 9),
	}
	rt := contractAndBuild(t, 3, edges)

	_, _, weight, found := rt.ShortestPathBiDijkstraCH(0, 2)
	require.True(t, found)
	assert.Equal(t, int32(4), weight)

	// against the one-ways the only way back is the closing arc
	_, _, weight, found = rt.ShortestPathBiDijkstraCH(2, 0)
	require.True(t, found)
	assert.Equal(t, int32(9), weight)
}

// the hierarchy query must agree with plain Dijkstra on the original graph
// for every pair, the core CH correctness property
func TestQueryMatchesPlainDijkstra(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const numNodes = 50

	edges := make([]datastructure.EdgeBasedEdge, 0, 170)
	// a connected ring so every pair has a path
	for i := 0; i < numNodes; i++ {
		edges = append(edges, bidirectionalEdge(uint32(i), uint32((i+1)%numNodes), int32(rng.Intn(20)+1)))
	}
	// plus random chords, some one-way
	for i := 0; i < 120; i++ {
		u := uint32(rng.Intn(numNodes))
		v := uint32(rng.Intn(numNodes))
		if u == v {
			continue
		}
		w := int32(rng.Intn(30) + 1)
		if i%3 == 0 {
			edges = append(edges, forwardOnlyEdge(u, v, w))
		} else {
			edges = append(edges, bidirectionalEdge(u, v, w))
		}
	}

	ch := contractAndBuild(t, numNodes, edges)
	plain := baseline(numNodes, edges)

	for trial := 0; trial < 300; trial++ {
		from := int32(rng.Intn(numNodes))
		to := int32(rng.Intn(numNodes))

		want, wantFound := plain.DijkstraSimple(from, to)
		_, unpacked, got, gotFound := ch.ShortestPathBiDijkstraCH(from, to)

		require.Equal(t, wantFound, gotFound, "pair (%d,%d)", from, to)
		if !wantFound {
			continue
		}
		assert.Equal(t, want, got, "pair (%d,%d)", from, to)
		assert.Equal(t, got, PathWeight(unpacked), "unpacked weight mismatch for (%d,%d)", from, to)
	}
}

func TestQuerySettledNodeCap(t *testing.T) {
	edges := []datastructure.EdgeBasedEdge{}
	for i := uint32(0); i < 20; i++ {
		edges = append(edges, bidirectionalEdge(i, i+1, 5))
	}
	opts := contractor.DefaultOptions()
	opts.NumWorkers = 2
	c, err := contractor.NewContractor(21, edges, opts)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Run())
	contracted, err := c.GetEdges()
	require.NoError(t, err)
	graph := datastructure.BuildQueryGraph(21, contracted)

	// a one-node budget cannot connect the ends of a long chain
	capped := NewRouteAlgorithmWithCap(graph, 1)
	_, _, _, found := capped.ShortestPathBiDijkstraCH(0, 20)
	assert.False(t, found)

	unbounded := NewRouteAlgorithm(graph)
	_, _, weight, found := unbounded.ShortestPathBiDijkstraCH(0, 20)
	require.True(t, found)
	assert.Equal(t, int32(100), weight)
}
