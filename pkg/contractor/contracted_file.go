package contractor

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/server"
)

// Contracted edge file layout (little endian):
//
//	u32 number of surviving nodes
//	per node: u32 original node id, u32 degree, then degree adjacency
//	records {target u32, weight u32, via u32, nameID u32, instruction u8,
//	flags u8} with target and via already mapped back to the original id
//	space
//	u32 number of spilled edges, then that many spill records (already in
//	the original id space)
const adjacencyRecordSize = 18

// WriteContractedEdges streams the finished hierarchy: the surviving
// adjacency per renumbered node, followed by the spilled edge section.
func (c *Contractor) WriteContractedEdges(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var u32 [4]byte

	binary.LittleEndian.PutUint32(u32[:], uint32(c.graph.NumNodes()))
	if _, err := bw.Write(u32[:]); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "writing node count")
	}

	record := make([]byte, adjacencyRecordSize)
	for node := int32(0); node < c.graph.NumNodes(); node++ {
		binary.LittleEndian.PutUint32(u32[:], uint32(c.mapToOriginalID(node)))
		if _, err := bw.Write(u32[:]); err != nil {
			return server.WrapErrorf(err, server.ErrResourceFailure, "writing node id")
		}
		degree := c.graph.EndEdges(node) - c.graph.BeginEdges(node)
		binary.LittleEndian.PutUint32(u32[:], uint32(degree))
		if _, err := bw.Write(u32[:]); err != nil {
			return server.WrapErrorf(err, server.ErrResourceFailure, "writing degree")
		}

		for e := c.graph.BeginEdges(node); e < c.graph.EndEdges(node); e++ {
			data := *c.graph.GetEdgeData(e)
			target := c.mapToOriginalID(c.graph.GetTarget(e))
			via := data.Via
			if data.Shortcut && !data.OriginalViaNodeID {
				via = uint32(c.mapToOriginalID(int32(via)))
			}
			binary.LittleEndian.PutUint32(record[0:4], uint32(target))
			binary.LittleEndian.PutUint32(record[4:8], uint32(data.Weight))
			binary.LittleEndian.PutUint32(record[8:12], via)
			binary.LittleEndian.PutUint32(record[12:16], data.NameID)
			record[16] = byte(data.TurnInstruction)
			data.OriginalViaNodeID = false
			record[17] = packEdgeFlags(data)
			if _, err := bw.Write(record); err != nil {
				return server.WrapErrorf(err, server.ErrResourceFailure, "writing adjacency record")
			}
		}
	}

	if err := c.writeSpilledSection(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "flushing contracted edges")
	}
	return nil
}

func (c *Contractor) writeSpilledSection(bw *bufio.Writer) error {
	var u32 [4]byte
	if !c.flushed {
		if _, err := bw.Write(u32[:]); err != nil {
			return server.WrapErrorf(err, server.ErrResourceFailure, "writing empty spill count")
		}
		return nil
	}

	file, err := os.Open(c.tempFilePath)
	if err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "opening spill file")
	}
	defer file.Close()

	if _, err := io.Copy(bw, file); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "copying spill section")
	}
	return nil
}

// ReadContractedEdges loads a contracted edge file back into a flat edge
// list in the original id space, ready for BuildQueryGraph.
func ReadContractedEdges(r io.Reader) ([]datastructure.ContractorEdge, error) {
	br := bufio.NewReader(r)
	var u32 [4]byte

	if _, err := io.ReadFull(br, u32[:]); err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading node count")
	}
	numNodes := binary.LittleEndian.Uint32(u32[:])

	edges := make([]datastructure.ContractorEdge, 0)
	record := make([]byte, adjacencyRecordSize)
	for i := uint32(0); i < numNodes; i++ {
		if _, err := io.ReadFull(br, u32[:]); err != nil {
			return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading node id")
		}
		source := int32(binary.LittleEndian.Uint32(u32[:]))
		if _, err := io.ReadFull(br, u32[:]); err != nil {
			return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading degree")
		}
		degree := binary.LittleEndian.Uint32(u32[:])

		for d := uint32(0); d < degree; d++ {
			if _, err := io.ReadFull(br, record); err != nil {
				return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading adjacency record")
			}
			data := datastructure.ContractorEdgeData{
				Weight:          int32(binary.LittleEndian.Uint32(record[4:8])),
				Via:             binary.LittleEndian.Uint32(record[8:12]),
				NameID:          binary.LittleEndian.Uint32(record[12:16]),
				OriginalEdges:   1,
				TurnInstruction: datastructure.TurnInstruction(record[16]),
			}
			unpackEdgeFlags(record[17], &data)
			edges = append(edges, datastructure.NewContractorEdge(
				source, int32(binary.LittleEndian.Uint32(record[0:4])), data))
		}
	}

	if _, err := io.ReadFull(br, u32[:]); err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading spill count")
	}
	numSpilled := binary.LittleEndian.Uint32(u32[:])
	for i := uint32(0); i < numSpilled; i++ {
		edge, err := readSpillRecord(br)
		if err != nil {
			return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading spilled edge %d", i)
		}
		edge.Data.OriginalViaNodeID = false
		edges = append(edges, edge)
	}
	return edges, nil
}
