package storage

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/server"
)

// Packed record layouts (little endian, count-prefixed with a u32):
//
//	edge-based node: {nameID u32, lat1 i32, lon1 i32, lat2 i32, lon2 i32,
//	                  id u32, weight u32}
//	edge-based edge: {source u32, target u32, nameID u32, via u32,
//	                  weight u32, flags u8 (bit0 forward, bit1 backward),
//	                  turnInstruction u8}
const (
	edgeBasedNodeRecordSize = 28
	edgeBasedEdgeRecordSize = 22
)

func WriteEdgeBasedNodes(w io.Writer, nodes []datastructure.EdgeBasedNode) error {
	bw := bufio.NewWriter(w)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(nodes)))
	if _, err := bw.Write(u32[:]); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "writing edge-based node count")
	}

	record := make([]byte, edgeBasedNodeRecordSize)
	for _, n := range nodes {
		binary.LittleEndian.PutUint32(record[0:4], n.NameID)
		binary.LittleEndian.PutUint32(record[4:8], uint32(n.Lat1))
		binary.LittleEndian.PutUint32(record[8:12], uint32(n.Lon1))
		binary.LittleEndian.PutUint32(record[12:16], uint32(n.Lat2))
		binary.LittleEndian.PutUint32(record[16:20], uint32(n.Lon2))
		binary.LittleEndian.PutUint32(record[20:24], n.ID)
		binary.LittleEndian.PutUint32(record[24:28], n.Weight)
		if _, err := bw.Write(record); err != nil {
			return server.WrapErrorf(err, server.ErrResourceFailure, "writing edge-based node")
		}
	}
	if err := bw.Flush(); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "flushing edge-based nodes")
	}
	return nil
}

func ReadEdgeBasedNodes(r io.Reader) ([]datastructure.EdgeBasedNode, error) {
	br := bufio.NewReader(r)
	var u32 [4]byte
	if _, err := io.ReadFull(br, u32[:]); err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading edge-based node count")
	}
	count := binary.LittleEndian.Uint32(u32[:])

	nodes := make([]datastructure.EdgeBasedNode, 0, count)
	record := make([]byte, edgeBasedNodeRecordSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, record); err != nil {
			return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading edge-based node %d", i)
		}
		nodes = append(nodes, datastructure.EdgeBasedNode{
			NameID: binary.LittleEndian.Uint32(record[0:4]),
			Lat1:   int32(binary.LittleEndian.Uint32(record[4:8])),
			Lon1:   int32(binary.LittleEndian.Uint32(record[8:12])),
			Lat2:   int32(binary.LittleEndian.Uint32(record[12:16])),
			Lon2:   int32(binary.LittleEndian.Uint32(record[16:20])),
			ID:     binary.LittleEndian.Uint32(record[20:24]),
			Weight: binary.LittleEndian.Uint32(record[24:28]),
		})
	}
	return nodes, nil
}

func WriteEdgeBasedEdges(w io.Writer, edges []datastructure.EdgeBasedEdge) error {
	bw := bufio.NewWriter(w)
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(edges)))
	if _, err := bw.Write(u32[:]); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "writing edge-based edge count")
	}

	record := make([]byte, edgeBasedEdgeRecordSize)
	for _, e := range edges {
		binary.LittleEndian.PutUint32(record[0:4], e.Source)
		binary.LittleEndian.PutUint32(record[4:8], e.Target)
		binary.LittleEndian.PutUint32(record[8:12], e.NameID)
		binary.LittleEndian.PutUint32(record[12:16], e.Via)
		binary.LittleEndian.PutUint32(record[16:20], uint32(e.Weight))
		var flags byte
		if e.Forward {
			flags |= 1
		}
		if e.Backward {
			flags |= 1 << 1
		}
		record[20] = flags
		record[21] = byte(e.TurnInstruction)
		if _, err := bw.Write(record); err != nil {
			return server.WrapErrorf(err, server.ErrResourceFailure, "writing edge-based edge")
		}
	}
	if err := bw.Flush(); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "flushing edge-based edges")
	}
	return nil
}

func ReadEdgeBasedEdges(r io.Reader) ([]datastructure.EdgeBasedEdge, error) {
	br := bufio.NewReader(r)
	var u32 [4]byte
	if _, err := io.ReadFull(br, u32[:]); err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading edge-based edge count")
	}
	count := binary.LittleEndian.Uint32(u32[:])

	edges := make([]datastructure.EdgeBasedEdge, 0, count)
	record := make([]byte, edgeBasedEdgeRecordSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, record); err != nil {
			return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading edge-based edge %d", i)
		}
		edges = append(edges, datastructure.EdgeBasedEdge{
			Source:          binary.LittleEndian.Uint32(record[0:4]),
			Target:          binary.LittleEndian.Uint32(record[4:8]),
			NameID:          binary.LittleEndian.Uint32(record[8:12]),
			Via:             binary.LittleEndian.Uint32(record[12:16]),
			Weight:          int32(binary.LittleEndian.Uint32(record[16:20])),
			Forward:         record[20]&1 != 0,
			Backward:        record[20]&(1<<1) != 0,
			TurnInstruction: datastructure.TurnInstruction(record[21]),
		})
	}
	return edges, nil
}
