package kv

import (
	"context"
	"testing"

	"github.com/lintang-b-s/chroute/pkg/datastructure"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKVDB(t *testing.T) *KVDB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewKVDB(db)
}

func edgeNodeAt(id uint32, nameID uint32, lat, lon float64) datastructure.EdgeBasedNode {
	return datastructure.EdgeBasedNode{
		ID:     id,
		NameID: nameID,
		Lat1:   datastructure.MicroDegrees(lat),
		Lon1:   datastructure.MicroDegrees(lon),
		Lat2:   datastructure.MicroDegrees(lat),
		Lon2:   datastructure.MicroDegrees(lon),
	}
}

func TestBuildAndQueryStreetIndex(t *testing.T) {
	kvDB := newTestKVDB(t)

	nodes := []datastructure.EdgeBasedNode{
		edgeNodeAt(0, 1, -7.5655, 110.8317),
		edgeNodeAt(1, 2, -7.5656, 110.8318),
		edgeNodeAt(2, 3, 52.5200, 13.4050), // far away, different cell
	}
	require.NoError(t, kvDB.BuildH3IndexedStreets(context.Background(), nodes))

	streets, err := kvDB.GetNearestStreetsFromPointCoord(-7.5655, 110.8317)
	require.NoError(t, err)
	require.NotEmpty(t, streets)

	ids := make(map[int32]bool)
	for _, st := range streets {
		ids[st.EdgeBasedNodeID] = true
	}
	assert.True(t, ids[0])
	assert.True(t, ids[1])
	assert.False(t, ids[2])
}

func TestQueryStreetIndexEmptyArea(t *testing.T) {
	kvDB := newTestKVDB(t)
	require.NoError(t, kvDB.BuildH3IndexedStreets(context.Background(),
		[]datastructure.EdgeBasedNode{edgeNodeAt(0, 1, -7.5655, 110.8317)}))

	_, err := kvDB.GetNearestStreetsFromPointCoord(52.52, 13.405)
	assert.Error(t, err)
}
