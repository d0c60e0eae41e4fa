package datastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

type testHeapData struct {
	Hop    int16
	Target bool
}

func TestBinaryHeapOrdering(t *testing.T) {
	h := NewBinaryHeap[testHeapData](10000)

	rand.Seed(42)
	keys := make(map[int32]int32)
	for i := int32(0); i < 10000; i++ {
		key := int32(rand.Intn(1000000)) + 1
		h.Insert(i, key, testHeapData{})
		keys[i] = key
	}

	prev := int32(-1)
	for h.Size() > 0 {
		minKey := h.MinKey()
		node := h.DeleteMin()
		assert.Equal(t, keys[node], minKey)
		assert.LessOrEqual(t, prev, minKey)
		prev = minKey
	}
}

func TestBinaryHeapDecreaseKey(t *testing.T) {
	h := NewBinaryHeap[testHeapData](100)

	for i := int32(0); i < 100; i++ {
		h.Insert(i, 1000+i, testHeapData{})
	}
	h.DecreaseKey(99, 1)
	h.DecreaseKey(50, 2)

	assert.Equal(t, int32(99), h.DeleteMin())
	assert.Equal(t, int32(50), h.DeleteMin())
	assert.Equal(t, int32(0), h.DeleteMin())
}

func TestBinaryHeapKeyAfterDelete(t *testing.T) {
	// the witness search reads final distances of settled nodes through
	// GetKey after they left the heap
	h := NewBinaryHeap[testHeapData](10)
	h.Insert(3, 7, testHeapData{Target: true})
	h.Insert(5, 4, testHeapData{})

	assert.Equal(t, int32(5), h.DeleteMin())
	assert.True(t, h.WasInserted(5))
	assert.True(t, h.WasRemoved(5))
	assert.Equal(t, int32(4), h.GetKey(5))

	assert.True(t, h.GetData(3).Target)
	h.GetData(3).Hop = 2
	assert.Equal(t, int16(2), h.GetData(3).Hop)
}

func TestBinaryHeapClear(t *testing.T) {
	h := NewBinaryHeap[testHeapData](10)
	for i := int32(0); i < 10; i++ {
		h.Insert(i, i, testHeapData{})
	}
	h.Clear()

	assert.Equal(t, 0, h.Size())
	for i := int32(0); i < 10; i++ {
		assert.False(t, h.WasInserted(i))
	}

	// reuse after clear
	h.Insert(4, 1, testHeapData{})
	assert.Equal(t, int32(4), h.DeleteMin())
}
