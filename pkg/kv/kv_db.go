package kv

import (
	"context"
	"errors"
	"log"

	"github.com/lintang-b-s/chroute/pkg/datastructure"
	"github.com/lintang-b-s/chroute/pkg/server"

	"github.com/dgraph-io/badger/v4"
	"github.com/uber/h3-go/v4"
)

// streets are bucketed into H3 cells of this resolution (~0.1 km^2), small
// enough that a cell plus its ring covers a snapping radius
const nearestStreetResolution = 9

var ErrStreetsNotFound = errors.New("streets not found")

// StreetRecord is the per-segment payload served by the nearest-street
// index: the edge-based node id plus its midpoint.
type StreetRecord struct {
	EdgeBasedNodeID int32
	CenterLat       float64
	CenterLon       float64
	NameID          uint32
}

// KVDB persists the H3-bucketed street index in badger.
type KVDB struct {
	db *badger.DB
}

func NewKVDB(db *badger.DB) *KVDB {
	return &KVDB{db: db}
}

func (k *KVDB) Close() error {
	return k.db.Close()
}

// BuildH3IndexedStreets groups the edge-based nodes by the H3 cell of
// their midpoint and writes one compressed record list per cell.
func (k *KVDB) BuildH3IndexedStreets(ctx context.Context, nodes []datastructure.EdgeBasedNode) error {
	log.Printf("creating & saving h3 indexed streets to key-value db...")

	buckets := make(map[string][]StreetRecord)
	for _, node := range nodes {
		centerLat := (datastructure.Degrees(node.Lat1) + datastructure.Degrees(node.Lat2)) / 2
		centerLon := (datastructure.Degrees(node.Lon1) + datastructure.Degrees(node.Lon2)) / 2

		cell := h3.LatLngToCell(h3.NewLatLng(centerLat, centerLon), nearestStreetResolution)
		buckets[cell.String()] = append(buckets[cell.String()], StreetRecord{
			EdgeBasedNodeID: int32(node.ID),
			CenterLat:       centerLat,
			CenterLon:       centerLon,
			NameID:          node.NameID,
		})
	}

	batch := k.db.NewWriteBatch()
	defer batch.Cancel()
	for key, records := range buckets {
		select {
		case <-ctx.Done():
			return server.WrapErrorf(ctx.Err(), server.ErrCancelled, "building street index")
		default:
		}
		value, err := encodeStreetRecords(records)
		if err != nil {
			return err
		}
		if err := batch.Set([]byte(key), value); err != nil {
			return server.WrapErrorf(err, server.ErrResourceFailure, "writing street bucket %s", key)
		}
	}
	if err := batch.Flush(); err != nil {
		return server.WrapErrorf(err, server.ErrResourceFailure, "flushing street index")
	}
	log.Printf("saved %d street buckets", len(buckets))
	return nil
}

// GetNearestStreetsFromPointCoord returns the street records of the cell
// containing the point and its surrounding ring.
func (k *KVDB) GetNearestStreetsFromPointCoord(lat, lon float64) ([]StreetRecord, error) {
	home := h3.LatLngToCell(h3.NewLatLng(lat, lon), nearestStreetResolution)
	cells := h3.GridDisk(home, 1)

	streets := make([]StreetRecord, 0)
	err := k.db.View(func(txn *badger.Txn) error {
		for _, cell := range cells {
			item, err := txn.Get([]byte(cell.String()))
			if err == badger.ErrKeyNotFound {
				continue
			}
			if err != nil {
				return err
			}
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			records, err := decodeStreetRecords(value)
			if err != nil {
				return err
			}
			streets = append(streets, records...)
		}
		return nil
	})
	if err != nil {
		return nil, server.WrapErrorf(err, server.ErrResourceFailure, "reading street index")
	}
	if len(streets) == 0 {
		return nil, server.WrapErrorf(ErrStreetsNotFound, server.ErrNotFound,
			"no streets around (%f, %f)", lat, lon)
	}
	return streets, nil
}
