package kv

import (
	"github.com/lintang-b-s/chroute/pkg/server"

	"github.com/DataDog/zstd"
	"github.com/kelindar/binary"
)

func encodeStreetRecords(records []StreetRecord) ([]byte, error) {
	encoded, err := binary.Marshal(records)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "encoding street records")
	}
	var compressed []byte
	compressed, err = zstd.Compress(compressed, encoded)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "compressing street records")
	}
	return compressed, nil
}

func decodeStreetRecords(value []byte) ([]StreetRecord, error) {
	var encoded []byte
	encoded, err := zstd.Decompress(encoded, value)
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "decompressing street records")
	}
	var records []StreetRecord
	if err := binary.Unmarshal(encoded, &records); err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "decoding street records")
	}
	return records, nil
}
