package datastructure

// BuildQueryGraph freezes a contracted edge list into the CSR form the
// online query engines search.
func BuildQueryGraph(numNodes int, edges []ContractorEdge) *StaticGraph[ContractorEdgeData] {
	inputs := make([]InputEdge[ContractorEdgeData], len(edges))
	for i, e := range edges {
		inputs[i] = InputEdge[ContractorEdgeData]{
			Source: e.Source,
			Target: e.Target,
			Data:   e.Data,
		}
	}
	return NewStaticGraph[ContractorEdgeData](numNodes, inputs)
}
