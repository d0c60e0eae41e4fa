package contractor

import (
	"bytes"
	"sort"
	"testing"

	"github.com/lintang-b-s/chroute/pkg/datastructure"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bidirectionalEdge(source, target uint32, weight int32) datastructure.EdgeBasedEdge {
	return datastructure.NewEdgeBasedEdge(source, target, 0, 0, weight, true, true, datastructure.NoTurn)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.NumWorkers = 2
	opts.TempDir = ""
	return opts
}

/*
triangle:

	0 ---3--- 1 ---4--- 2
	 \_______10________/

contracting 1 must insert the shortcut (0,2) with weight 7.
*/
func triangleEdges() []datastructure.EdgeBasedEdge {
	return []datastructure.EdgeBasedEdge{
		bidirectionalEdge(0, 1, 3),
		bidirectionalEdge(1, 2, 4),
		bidirectionalEdge(0, 2, 10),
	}
}

func TestContractNodeInsertsShortcut(t *testing.T) {
	c, err := NewContractor(3, triangleEdges(), testOptions())
	require.NoError(t, err)
	defer c.Close()

	td := newThreadData(3)
	c.contractNode(td, 1, nil)

	require.Len(t, td.insertedEdges, 2)
	for _, e := range td.insertedEdges {
		assert.True(t, e.Data.Shortcut)
		assert.True(t, e.Data.Forward)
		assert.True(t, e.Data.Backward)
		assert.Equal(t, int32(7), e.Data.Weight)
		assert.Equal(t, uint32(1), e.Data.Via)
		assert.Equal(t, int32(2), e.Data.OriginalEdges)
	}
}

/*
witness blocks the shortcut:

	0 ---5--- 1 ---5--- 2
	 \                 /
	  4--- 3 ---------4

the path 0-3-2 (weight 8) witnesses the candidate 0-1-2 (weight 10),
so contracting 1 inserts nothing.
*/
func TestWitnessBlocksShortcut(t *testing.T) {
	edges := []datastructure.EdgeBasedEdge{
		bidirectionalEdge(0, 1, 5),
		bidirectionalEdge(1, 2, 5),
		bidirectionalEdge(0, 3, 4),
		bidirectionalEdge(3, 2, 4),
	}
	c, err := NewContractor(4, edges, testOptions())
	require.NoError(t, err)
	defer c.Close()

	td := newThreadData(4)
	c.contractNode(td, 1, nil)

	assert.Empty(t, td.insertedEdges)
}

func TestCleanupEdgesIdempotent(t *testing.T) {
	input := []datastructure.EdgeBasedEdge{
		bidirectionalEdge(0, 1, 3),
		bidirectionalEdge(0, 1, 5), // parallel, loses to the min
		bidirectionalEdge(1, 1, 2), // self loop, dropped
		{Source: 1, Target: 2, Weight: 4, Forward: true, Backward: false},
		{Source: 2, Target: 1, Weight: 6, Forward: true, Backward: false},
	}
	edges, err := toContractorEdges(input)
	require.NoError(t, err)

	once := CleanupEdges(edges)
	twice := CleanupEdges(once)
	assert.Equal(t, once, twice)

	for _, e := range once {
		assert.NotEqual(t, e.Source, e.Target)
	}

	// (0,1) collapsed to a single bidirectional min-weight pair
	found := 0
	for _, e := range once {
		if (e.Source == 0 && e.Target == 1) || (e.Source == 1 && e.Target == 0) {
			found++
			assert.Equal(t, int32(3), e.Data.Weight)
			assert.True(t, e.Data.Forward)
			assert.True(t, e.Data.Backward)
		}
	}
	assert.Equal(t, 2, found)

	// directed pair with different weights stays split per direction
	for _, e := range once {
		if e.Source == 1 && e.Target == 2 && e.Data.Forward && !e.Data.Backward {
			assert.Equal(t, int32(4), e.Data.Weight)
		}
		if e.Source == 1 && e.Target == 2 && e.Data.Backward && !e.Data.Forward {
			assert.Equal(t, int32(6), e.Data.Weight)
		}
	}
}

func TestRejectsInvalidWeights(t *testing.T) {
	_, err := NewContractor(2, []datastructure.EdgeBasedEdge{bidirectionalEdge(0, 1, 0)}, testOptions())
	assert.Error(t, err)

	_, err = NewContractor(2, []datastructure.EdgeBasedEdge{
		bidirectionalEdge(0, 1, datastructure.MaxEdgeWeight+1)}, testOptions())
	assert.Error(t, err)
}

func TestRunTriangleNeedsNoShortcut(t *testing.T) {
	// contracting 1 first would need the (0,2) shortcut, which gives it
	// priority 20 against 0 for the outer nodes, so an outer node goes first;
	// after that the two remaining nodes share one edge and no contraction
	// needs a shortcut. The hierarchy keeps the three original edges.
	c, err := NewContractor(3, triangleEdges(), testOptions())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Run())
	edges, err := c.GetEdges()
	require.NoError(t, err)

	require.Len(t, edges, 3)
	total := int32(0)
	for _, e := range edges {
		assert.False(t, e.Data.Shortcut)
		total += e.Data.Weight
	}
	assert.Equal(t, int32(3+4+10), total)
}

// grid graph used for the compaction equivalence and independence tests
func gridEdges(rows, cols int) []datastructure.EdgeBasedEdge {
	edges := make([]datastructure.EdgeBasedEdge, 0)
	id := func(r, c int) uint32 { return uint32(r*cols + c) }
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				edges = append(edges, bidirectionalEdge(id(r, c), id(r, c+1), int32(3+(r+c)%5)))
			}
			if r+1 < rows {
				edges = append(edges, bidirectionalEdge(id(r, c), id(r+1, c), int32(2+(r*c)%7)))
			}
		}
	}
	return edges
}

func canonicalEdgeSet(edges []datastructure.ContractorEdge) []datastructure.ContractorEdge {
	out := make([]datastructure.ContractorEdge, len(edges))
	copy(out, edges)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Data.Weight != b.Data.Weight {
			return a.Data.Weight < b.Data.Weight
		}
		if a.Data.Forward != b.Data.Forward {
			return a.Data.Forward
		}
		return a.Data.Via < b.Data.Via
	})
	return out
}

func TestCompactionDoesNotChangeTheHierarchy(t *testing.T) {
	const rows, cols = 6, 7
	numNodes := rows * cols

	optsWithFlush := testOptions()
	optsWithFlush.CompactionFraction = 0.5

	optsNoFlush := testOptions()
	optsNoFlush.CompactionFraction = 2.0 // never reached

	withFlush, err := NewContractor(numNodes, gridEdges(rows, cols), optsWithFlush)
	require.NoError(t, err)
	defer withFlush.Close()
	require.NoError(t, withFlush.Run())
	require.True(t, withFlush.flushed)
	flushEdges, err := withFlush.GetEdges()
	require.NoError(t, err)

	noFlush, err := NewContractor(numNodes, gridEdges(rows, cols), optsNoFlush)
	require.NoError(t, err)
	defer noFlush.Close()
	require.NoError(t, noFlush.Run())
	require.False(t, noFlush.flushed)
	plainEdges, err := noFlush.GetEdges()
	require.NoError(t, err)

	assert.Equal(t, canonicalEdgeSet(plainEdges), canonicalEdgeSet(flushEdges))
}

func TestIndependentSetProperty(t *testing.T) {
	const rows, cols = 5, 5
	numNodes := rows * cols

	c, err := NewContractor(numNodes, gridEdges(rows, cols), testOptions())
	require.NoError(t, err)
	defer c.Close()

	td := newThreadData(numNodes)
	nodePriority := make([]float64, numNodes)
	nodeData := make([]priorityData, numNodes)
	for x := 0; x < numNodes; x++ {
		nodeData[x].bias = int32(x)
	}
	for x := 0; x < numNodes; x++ {
		nodePriority[x] = c.evaluate(td, &nodeData[x], int32(x))
		assert.GreaterOrEqual(t, nodePriority[x], 0.0)
	}

	independent := make([]int32, 0)
	for x := int32(0); x < int32(numNodes); x++ {
		if c.isIndependent(nodePriority, nodeData, td, x) {
			independent = append(independent, x)
		}
	}
	require.NotEmpty(t, independent)

	// no two selected nodes within two hops of each other
	inSet := make(map[int32]bool)
	for _, n := range independent {
		inSet[n] = true
	}
	g := c.graph
	for _, n := range independent {
		twoHop := map[int32]bool{}
		for e := g.BeginEdges(n); e < g.EndEdges(n); e++ {
			u := g.GetTarget(e)
			twoHop[u] = true
			for e2 := g.BeginEdges(u); e2 < g.EndEdges(u); e2++ {
				twoHop[g.GetTarget(e2)] = true
			}
		}
		for m := range twoHop {
			if m == n {
				continue
			}
			assert.False(t, inSet[m], "nodes %d and %d are both selected but within two hops", n, m)
		}
	}
}

func TestSpillRecordRoundTrip(t *testing.T) {
	edge := datastructure.NewContractorEdge(12, 99, datastructure.ContractorEdgeData{
		Weight:            1234,
		OriginalEdges:     3,
		Via:               7,
		NameID:            42,
		TurnInstruction:   datastructure.TurnLeft,
		Shortcut:          true,
		Forward:           true,
		Backward:          false,
		OriginalViaNodeID: true,
	})
	var buf [spillRecordSize]byte
	encodeSpillRecord(buf[:], edge)
	assert.Equal(t, edge, decodeSpillRecord(buf[:]))
}

func TestContractedEdgeFileRoundTrip(t *testing.T) {
	const rows, cols = 5, 6
	numNodes := rows * cols

	opts := testOptions()
	opts.CompactionFraction = 0.5 // force the spilled section to be non-empty

	c, err := NewContractor(numNodes, gridEdges(rows, cols), opts)
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Run())

	want, err := c.GetEdges()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, c.WriteContractedEdges(&buf))
	got, err := ReadContractedEdges(&buf)
	require.NoError(t, err)

	// the adjacency records do not carry the originalEdges counter, it is
	// contraction-internal state
	normalize := func(edges []datastructure.ContractorEdge) []datastructure.ContractorEdge {
		out := canonicalEdgeSet(edges)
		for i := range out {
			out[i].Data.OriginalEdges = 0
		}
		return out
	}
	assert.Equal(t, normalize(want), normalize(got))
}
