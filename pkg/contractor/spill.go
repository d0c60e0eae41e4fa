package contractor

import (
	"encoding/binary"
	"io"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
)

// spill record layout (little endian):
//
//	| source | target | weight | originalEdges | via | nameID | instr | flags |
//	   u32      u32      u32        u32          u32    u32      u8      u8
//
// flags: bit0 shortcut, bit1 forward, bit2 backward, bit3 originalViaNodeID.
const spillRecordSize = 26

func encodeSpillRecord(buf []byte, edge datastructure.ContractorEdge) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(edge.Source))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(edge.Target))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(edge.Data.Weight))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(edge.Data.OriginalEdges))
	binary.LittleEndian.PutUint32(buf[16:20], edge.Data.Via)
	binary.LittleEndian.PutUint32(buf[20:24], edge.Data.NameID)
	buf[24] = byte(edge.Data.TurnInstruction)
	buf[25] = packEdgeFlags(edge.Data)
}

func decodeSpillRecord(buf []byte) datastructure.ContractorEdge {
	data := datastructure.ContractorEdgeData{
		Weight:          int32(binary.LittleEndian.Uint32(buf[8:12])),
		OriginalEdges:   int32(binary.LittleEndian.Uint32(buf[12:16])),
		Via:             binary.LittleEndian.Uint32(buf[16:20]),
		NameID:          binary.LittleEndian.Uint32(buf[20:24]),
		TurnInstruction: datastructure.TurnInstruction(buf[24]),
	}
	unpackEdgeFlags(buf[25], &data)
	return datastructure.NewContractorEdge(
		int32(binary.LittleEndian.Uint32(buf[0:4])),
		int32(binary.LittleEndian.Uint32(buf[4:8])),
		data,
	)
}

func packEdgeFlags(data datastructure.ContractorEdgeData) byte {
	var flags byte
	if data.Shortcut {
		flags |= 1
	}
	if data.Forward {
		flags |= 1 << 1
	}
	if data.Backward {
		flags |= 1 << 2
	}
	if data.OriginalViaNodeID {
		flags |= 1 << 3
	}
	return flags
}

func unpackEdgeFlags(flags byte, data *datastructure.ContractorEdgeData) {
	data.Shortcut = flags&1 != 0
	data.Forward = flags&(1<<1) != 0
	data.Backward = flags&(1<<2) != 0
	data.OriginalViaNodeID = flags&(1<<3) != 0
}

func writeSpillRecord(w io.Writer, edge datastructure.ContractorEdge) error {
	var buf [spillRecordSize]byte
	encodeSpillRecord(buf[:], edge)
	_, err := w.Write(buf[:])
	return err
}

func readSpillRecord(r io.Reader) (datastructure.ContractorEdge, error) {
	var buf [spillRecordSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return datastructure.ContractorEdge{}, err
	}
	return decodeSpillRecord(buf[:]), nil
}
