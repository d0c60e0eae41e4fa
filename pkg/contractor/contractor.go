package contractor

import (
	"bufio"
	"encoding/binary"
	"log"
	"math"
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/lintang-b-s/chroute/pkg/concurrent"
	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/server"

	"golang.org/x/exp/rand"
)

const (
	defaultSimulationSettleLimit  = 1000
	defaultContractionSettleLimit = 2000
	defaultCompactionFraction     = 0.75
)

// Options are the contraction tunables. The hop limit defaults to unbounded;
// classical CH setups run with 5-10, so it is left adjustable.
type Options struct {
	NumWorkers             int
	SimulationSettleLimit  int
	ContractionSettleLimit int
	HopLimit               int
	CompactionFraction     float64
	Seed                   uint64
	TempDir                string
}

func DefaultOptions() Options {
	return Options{
		NumWorkers:             runtime.GOMAXPROCS(0),
		SimulationSettleLimit:  defaultSimulationSettleLimit,
		ContractionSettleLimit: defaultContractionSettleLimit,
		HopLimit:               math.MaxInt32,
		CompactionFraction:     defaultCompactionFraction,
		Seed:                   0x5eed,
	}
}

type priorityData struct {
	depth int32
	bias  int32
}

type contractionStats struct {
	edgesDeleted         int
	edgesAdded           int
	originalEdgesDeleted int
	originalEdgesAdded   int
}

type remainingNode struct {
	id          int32
	independent bool
}

// Contractor turns an edge-based graph into a contraction hierarchy. It
// owns a mutable graph that is rewritten round by round: an independent set
// of least-important nodes is contracted in parallel, shortcuts preserving
// all shortest paths are inserted, and neighbour priorities are refreshed.
// Once ~75% of the nodes are gone the graph is renumbered into a dense id
// space and edges of contracted nodes are spilled to a temporary file.
type Contractor struct {
	graph *datastructure.DynamicGraph[datastructure.ContractorEdgeData]
	opts  Options

	tempFilePath           string
	oldNodeIDFromNewNodeID []int32
	flushed                bool
	shortcutCount          int64
}

// NewContractor validates and prepares the edge set (direction-explicit
// duplication, self-loop removal, parallel-edge reduction) and creates the
// spill file. Callers must Close the contractor to release the file.
func NewContractor(numNodes int, inputEdges []datastructure.EdgeBasedEdge, opts Options) (*Contractor, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = runtime.GOMAXPROCS(0)
	}

	edges, err := toContractorEdges(inputEdges)
	if err != nil {
		return nil, err
	}
	edges = CleanupEdges(edges)

	graphEdges := make([]datastructure.InputEdge[datastructure.ContractorEdgeData], len(edges))
	for i, e := range edges {
		graphEdges[i] = datastructure.InputEdge[datastructure.ContractorEdgeData]{
			Source: e.Source, Target: e.Target, Data: e.Data,
		}
	}

	tempFile, err := os.CreateTemp(opts.TempDir, "chroute-spilled-edges-*.bin")
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "creating spill file")
	}
	tempFile.Close()

	return &Contractor{
		graph:        datastructure.NewDynamicGraph(numNodes, graphEdges),
		opts:         opts,
		tempFilePath: tempFile.Name(),
	}, nil
}

// Close removes the spill file. Safe to call more than once.
func (c *Contractor) Close() error {
	if c.tempFilePath == "" {
		return nil
	}
	err := os.Remove(c.tempFilePath)
	c.tempFilePath = ""
	if err != nil && !os.IsNotExist(err) {
		return server.WrapErrorf(err, server.ErrResourceFailure, "removing spill file")
	}
	return nil
}

func toContractorEdges(inputEdges []datastructure.EdgeBasedEdge) ([]datastructure.ContractorEdge, error) {
	edges := make([]datastructure.ContractorEdge, 0, 2*len(inputEdges))
	for _, in := range inputEdges {
		if in.Weight <= 0 || in.Weight > datastructure.MaxEdgeWeight {
			return nil, server.NewErrorf(server.ErrInvalidInput,
				"edge-based edge (%d,%d) weight %d out of range", in.Source, in.Target, in.Weight)
		}
		edge := datastructure.NewContractorEdge(int32(in.Source), int32(in.Target),
			datastructure.ContractorEdgeData{
				Weight:          in.Weight,
				OriginalEdges:   1,
				Via:             in.Via,
				NameID:          in.NameID,
				TurnInstruction: in.TurnInstruction,
				Forward:         in.Forward,
				Backward:        in.Backward,
			})
		edges = append(edges, edge)

		edge.Source, edge.Target = edge.Target, edge.Source
		edge.Data.Forward = in.Backward
		edge.Data.Backward = in.Forward
		edges = append(edges, edge)
	}
	return edges, nil
}

// CleanupEdges sorts the direction-explicit edge list, drops self-loops and
// reduces parallel edges: per ordered pair the forward and backward minima
// survive, merged into one bidirectional edge when they coincide. The
// operation is idempotent.
func CleanupEdges(edges []datastructure.ContractorEdge) []datastructure.ContractorEdge {
	sorted := make([]datastructure.ContractorEdge, len(edges))
	copy(sorted, edges)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Source != sorted[j].Source {
			return sorted[i].Source < sorted[j].Source
		}
		return sorted[i].Target < sorted[j].Target
	})

	out := sorted[:0]
	for i := 0; i < len(sorted); {
		source := sorted[i].Source
		target := sorted[i].Target
		if source == target {
			i++
			continue
		}

		forwardEdge := sorted[i]
		backwardEdge := sorted[i]
		forwardEdge.Data.Forward, forwardEdge.Data.Backward = true, false
		backwardEdge.Data.Forward, backwardEdge.Data.Backward = false, true
		forwardEdge.Data.Shortcut = false
		backwardEdge.Data.Shortcut = false
		forwardEdge.Data.OriginalEdges = 1
		backwardEdge.Data.OriginalEdges = 1
		forwardWeight := int32(math.MaxInt32)
		backwardWeight := int32(math.MaxInt32)

		for i < len(sorted) && sorted[i].Source == source && sorted[i].Target == target {
			if sorted[i].Data.Forward && sorted[i].Data.Weight < forwardWeight {
				forwardWeight = sorted[i].Data.Weight
			}
			if sorted[i].Data.Backward && sorted[i].Data.Weight < backwardWeight {
				backwardWeight = sorted[i].Data.Weight
			}
			i++
		}

		if forwardWeight == backwardWeight {
			if forwardWeight != math.MaxInt32 {
				forwardEdge.Data.Weight = forwardWeight
				forwardEdge.Data.Backward = true
				out = append(out, forwardEdge)
			}
			continue
		}
		if forwardWeight != math.MaxInt32 {
			forwardEdge.Data.Weight = forwardWeight
			out = append(out, forwardEdge)
		}
		if backwardWeight != math.MaxInt32 {
			backwardEdge.Data.Weight = backwardWeight
			out = append(out, backwardEdge)
		}
	}
	return out
}

// Run contracts every node. Phases within a round run data parallel over
// disjoint node slices; shortcut insertion into the shared graph is the one
// single-threaded step.
func (c *Contractor) Run() error {
	start := time.Now()
	numberOfNodes := int(c.graph.NumNodes())
	if numberOfNodes == 0 {
		return nil
	}

	tds := make([]*threadData, c.opts.NumWorkers)
	for i := range tds {
		tds[i] = newThreadData(numberOfNodes)
	}

	remaining := make([]remainingNode, numberOfNodes)
	nodePriority := make([]float64, numberOfNodes)
	nodeData := make([]priorityData, numberOfNodes)

	// bias is a fixed random permutation, used only to break priority ties
	rng := rand.New(rand.NewSource(c.opts.Seed))
	perm := rng.Perm(numberOfNodes)
	for x := 0; x < numberOfNodes; x++ {
		remaining[x].id = int32(perm[x])
		nodeData[perm[x]].bias = int32(x)
	}

	log.Printf("initializing elimination priorities for %d nodes...", numberOfNodes)
	c.initialPriorities(tds, nodePriority, nodeData)
	log.Printf("preprocessing...")

	contractedCount := 0
	for contractedCount < numberOfNodes {
		if !c.flushed && float64(contractedCount) > float64(numberOfNodes)*c.opts.CompactionFraction {
			log.Printf("flushing memory after %d contracted nodes", contractedCount)
			var err error
			remaining, nodePriority, nodeData, tds, err = c.compact(remaining, nodePriority, nodeData)
			if err != nil {
				return err
			}
		}

		last := len(remaining)

		// phase 1: independent set
		c.parallelFor(tds, 0, last, func(td *threadData, i int) {
			remaining[i].independent = c.isIndependent(nodePriority, nodeData, td, remaining[i].id)
		})
		firstIndependent := stablePartitionByIndependence(remaining)

		// phase 2: contract the independent set
		c.parallelFor(tds, firstIndependent, last, func(td *threadData, i int) {
			c.contractNode(td, remaining[i].id, nil)
		})
		for _, td := range tds {
			sortContractorEdges(td.insertedEdges)
		}

		// phase 3: remove edges pointing at contracted nodes
		c.parallelFor(tds, firstIndependent, last, func(td *threadData, i int) {
			c.deleteIncomingEdges(td, remaining[i].id)
		})

		// phase 4: merge buffered shortcuts into the graph, single-threaded
		for _, td := range tds {
			c.insertBufferedShortcuts(td)
		}

		// phase 5: refresh depth and priority of surviving neighbours
		c.parallelFor(tds, firstIndependent, last, func(td *threadData, i int) {
			c.updateNeighbours(nodePriority, nodeData, td, remaining[i].id)
		})

		contractedCount += last - firstIndependent
		remaining = remaining[:firstIndependent]
	}

	log.Printf("total shortcuts: %d", c.shortcutCount)
	log.Printf("contraction hierarchies preprocessing took %v", time.Since(start))
	return nil
}

func (c *Contractor) initialPriorities(tds []*threadData, nodePriority []float64, nodeData []priorityData) {
	type evalRange struct {
		td         *threadData
		start, end int
	}
	numberOfNodes := len(nodePriority)
	pool := concurrent.NewWorkerPool[evalRange, struct{}](c.opts.NumWorkers, c.opts.NumWorkers)
	chunk := (numberOfNodes + c.opts.NumWorkers - 1) / c.opts.NumWorkers
	for w := 0; w < c.opts.NumWorkers; w++ {
		start := w * chunk
		end := start + chunk
		if end > numberOfNodes {
			end = numberOfNodes
		}
		if start >= end {
			continue
		}
		pool.AddJob(evalRange{td: tds[w], start: start, end: end})
	}
	pool.Close()
	pool.Start(func(job evalRange) struct{} {
		for x := job.start; x < job.end; x++ {
			nodePriority[x] = c.evaluate(job.td, &nodeData[x], int32(x))
		}
		return struct{}{}
	})
	pool.Wait()
	for range pool.CollectResults() {
	}
}

// parallelFor splits [start, end) of the remaining-node slice into one
// contiguous chunk per worker; chunk i runs on thread data i. Disjointness
// of the touched adjacency ranges is guaranteed by the caller (two-hop
// independence).
func (c *Contractor) parallelFor(tds []*threadData, start, end int, fn func(td *threadData, i int)) {
	n := end - start
	if n <= 0 {
		return
	}
	numWorkers := len(tds)
	chunk := (n + numWorkers - 1) / numWorkers
	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		lo := start + w*chunk
		hi := lo + chunk
		if hi > end {
			hi = end
		}
		if lo >= hi {
			continue
		}
		wg.Add(1)
		go func(td *threadData, lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				fn(td, i)
			}
		}(tds[w], lo, hi)
	}
	wg.Wait()
}

// stablePartitionByIndependence moves the independent nodes to the back of
// the slice, preserving relative order, and returns the first independent
// index.
func stablePartitionByIndependence(remaining []remainingNode) int {
	dependent := make([]remainingNode, 0, len(remaining))
	independent := make([]remainingNode, 0)
	for _, rn := range remaining {
		if rn.independent {
			independent = append(independent, rn)
		} else {
			dependent = append(dependent, rn)
		}
	}
	copy(remaining, dependent)
	copy(remaining[len(dependent):], independent)
	return len(dependent)
}

func sortContractorEdges(edges []datastructure.ContractorEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
}

// insertBufferedShortcuts merges one worker's shortcut buffer into the
// graph: an existing edge with the same direction flags keeps the smaller
// weight, anything else is inserted.
func (c *Contractor) insertBufferedShortcuts(td *threadData) {
	g := c.graph
	for _, edge := range td.insertedEdges {
		existing := g.FindEdge(edge.Source, edge.Target)
		if existing != datastructure.InvalidEdge {
			existingData := g.GetEdgeData(existing)
			if existingData.Forward == edge.Data.Forward && existingData.Backward == edge.Data.Backward {
				if existingData.Weight <= edge.Data.Weight {
					continue
				}
				*existingData = edge.Data
				continue
			}
		}
		g.InsertEdge(edge.Source, edge.Target, edge.Data)
		c.shortcutCount++
	}
	td.insertedEdges = td.insertedEdges[:0]
}

// compact renumbers the remaining nodes into [0,k), copies surviving edges
// into a fresh graph and spills edges of contracted nodes to the temp file
// in the original id space. Heaps are rebuilt for the smaller node space.
func (c *Contractor) compact(remaining []remainingNode, nodePriority []float64,
	nodeData []priorityData) ([]remainingNode, []float64, []priorityData, []*threadData, error) {

	oldGraph := c.graph
	numberOfNodes := int(oldGraph.NumNodes())

	oldFromNew := make([]int32, len(remaining))
	newFromOld := make([]int32, numberOfNodes)
	for i := range newFromOld {
		newFromOld[i] = -1
	}
	newPriority := make([]float64, len(remaining))
	newNodeData := make([]priorityData, len(remaining))
	for newID := range remaining {
		oldID := remaining[newID].id
		oldFromNew[newID] = oldID
		newFromOld[oldID] = int32(newID)
		newPriority[newID] = nodePriority[oldID]
		newNodeData[newID] = nodeData[oldID]
		remaining[newID].id = int32(newID)
	}

	file, err := os.OpenFile(c.tempFilePath, os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, nil, nil, server.WrapErrorf(err, server.ErrResourceFailure, "opening spill file")
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	var countBuf [4]byte
	if _, err := writer.Write(countBuf[:]); err != nil {
		return nil, nil, nil, nil, server.WrapErrorf(err, server.ErrResourceFailure, "writing spill header")
	}

	newGraph := datastructure.NewEmptyDynamicGraph[datastructure.ContractorEdgeData](len(remaining))
	spilled := uint32(0)
	for start := int32(0); start < oldGraph.NumNodes(); start++ {
		for e := oldGraph.BeginEdges(start); e < oldGraph.EndEdges(start); e++ {
			target := oldGraph.GetTarget(e)
			data := *oldGraph.GetEdgeData(e)
			if newFromOld[start] == -1 {
				// contracted node: keep its edges on disk, untouched ids
				if err := writeSpillRecord(writer, datastructure.NewContractorEdge(start, target, data)); err != nil {
					return nil, nil, nil, nil, server.WrapErrorf(err, server.ErrResourceFailure, "spilling edge")
				}
				spilled++
				continue
			}
			if newFromOld[target] == -1 {
				return nil, nil, nil, nil, server.NewErrorf(server.ErrGraphInconsistency,
					"surviving node %d still has an edge to contracted node %d", start, target)
			}
			// the via id predates the renumbering
			data.OriginalViaNodeID = true
			newGraph.InsertEdge(newFromOld[start], newFromOld[target], data)
		}
	}

	if err := writer.Flush(); err != nil {
		return nil, nil, nil, nil, server.WrapErrorf(err, server.ErrResourceFailure, "flushing spill file")
	}
	binary.LittleEndian.PutUint32(countBuf[:], spilled)
	if _, err := file.WriteAt(countBuf[:], 0); err != nil {
		return nil, nil, nil, nil, server.WrapErrorf(err, server.ErrResourceFailure, "finalizing spill file")
	}
	log.Printf("flushed %d edges to disk, graph now has %d nodes", spilled, len(remaining))

	// fresh heaps sized for the compacted node space
	tds := make([]*threadData, c.opts.NumWorkers)
	for i := range tds {
		tds[i] = newThreadData(len(remaining))
	}

	c.graph = newGraph
	c.oldNodeIDFromNewNodeID = oldFromNew
	c.flushed = true
	return remaining, newPriority, newNodeData, tds, nil
}

func (c *Contractor) mapToOriginalID(node int32) int32 {
	if !c.flushed {
		return node
	}
	return c.oldNodeIDFromNewNodeID[node]
}

// GetEdges assembles the final hierarchy: the surviving graph mapped back
// to the original id space, followed by the spilled edges, which are
// already in that space.
func (c *Contractor) GetEdges() ([]datastructure.ContractorEdge, error) {
	edges := make([]datastructure.ContractorEdge, 0, c.graph.NumEdges())
	for node := int32(0); node < c.graph.NumNodes(); node++ {
		for e := c.graph.BeginEdges(node); e < c.graph.EndEdges(node); e++ {
			data := *c.graph.GetEdgeData(e)
			source := c.mapToOriginalID(node)
			target := c.mapToOriginalID(c.graph.GetTarget(e))
			if source < 0 || target < 0 {
				return nil, server.NewErrorf(server.ErrGraphInconsistency,
					"edge endpoint maps to no original id (%d,%d)", node, c.graph.GetTarget(e))
			}
			if data.Shortcut && !data.OriginalViaNodeID {
				data.Via = uint32(c.mapToOriginalID(int32(data.Via)))
			}
			data.OriginalViaNodeID = false
			edges = append(edges, datastructure.NewContractorEdge(source, target, data))
		}
	}

	if !c.flushed {
		return edges, nil
	}

	file, err := os.Open(c.tempFilePath)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "opening spill file")
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var countBuf [4]byte
	if _, err := readFull(reader, countBuf[:]); err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading spill header")
	}
	numSpilled := binary.LittleEndian.Uint32(countBuf[:])
	for i := uint32(0); i < numSpilled; i++ {
		edge, err := readSpillRecord(reader)
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading spilled edge %d", i)
		}
		edge.Data.OriginalViaNodeID = false
		edges = append(edges, edge)
	}
	return edges, nil
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			return read, err
		}
	}
	return read, nil
}
