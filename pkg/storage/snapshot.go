package storage

import (
	"os"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/server"

	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"
)

// GraphSnapshot is everything the online engine needs to serve queries:
// the contracted hierarchy in the original edge-based id space, the
// edge-based node records for snapping and geometry, and the interned
// street-name table.
type GraphSnapshot struct {
	NumNodes int32
	Edges    []datastructure.ContractorEdge
	Nodes    []datastructure.EdgeBasedNode
	Names    []string
}

// SaveSnapshot marshals and zstd-compresses the snapshot to path.
func SaveSnapshot(path string, snap *GraphSnapshot) error {
	encoded, err := binary.Marshal(snap)
	if err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "encoding graph snapshot")
	}

	var compressed []byte
	compressed, err = zstd.Compress(compressed, encoded)
	if err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "compressing graph snapshot")
	}

	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "writing graph snapshot %s", path)
	}
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(path string) (*GraphSnapshot, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading graph snapshot %s", path)
	}

	var encoded []byte
	encoded, err = zstd.Decompress(encoded, compressed)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "decompressing graph snapshot")
	}

	var snap GraphSnapshot
	if err := binary.Unmarshal(encoded, &snap); err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "decoding graph snapshot")
	}
	return &snap, nil
}
