package datastructure

const notInserted = int32(-1)

type heapElement[D any] struct {
	node    int32
	key     int32
	heapPos int32
	data    D
}

// BinaryHeap is an addressable min-heap keyed by dense node id. Every node
// carries auxiliary data D next to its key. A heap instance is reused by
// one worker across many searches: Clear resets membership without
// reallocating.
//
// GetKey stays valid after DeleteMin removed the node; that is what the
// witness search reads its final distances from.
type BinaryHeap[D any] struct {
	index    []int32
	inserted []heapElement[D]
	heap     []int32
}

func NewBinaryHeap[D any](numNodes int) *BinaryHeap[D] {
	index := make([]int32, numNodes)
	for i := range index {
		index[i] = notInserted
	}
	return &BinaryHeap[D]{
		index:    index,
		inserted: make([]heapElement[D], 0, 16),
		heap:     make([]int32, 0, 16),
	}
}

func (h *BinaryHeap[D]) Size() int { return len(h.heap) }

func (h *BinaryHeap[D]) WasInserted(node int32) bool {
	return h.index[node] != notInserted
}

// WasRemoved reports whether node has been inserted and already deleted.
func (h *BinaryHeap[D]) WasRemoved(node int32) bool {
	pos := h.index[node]
	return pos != notInserted && h.inserted[pos].heapPos == notInserted
}

func (h *BinaryHeap[D]) Insert(node int32, key int32, data D) {
	elemPos := int32(len(h.inserted))
	h.inserted = append(h.inserted, heapElement[D]{
		node:    node,
		key:     key,
		heapPos: int32(len(h.heap)),
		data:    data,
	})
	h.index[node] = elemPos
	h.heap = append(h.heap, elemPos)
	h.siftUp(int32(len(h.heap) - 1))
}

func (h *BinaryHeap[D]) DecreaseKey(node int32, newKey int32) {
	elem := &h.inserted[h.index[node]]
	elem.key = newKey
	h.siftUp(elem.heapPos)
}

func (h *BinaryHeap[D]) GetKey(node int32) int32 {
	return h.inserted[h.index[node]].key
}

func (h *BinaryHeap[D]) GetData(node int32) *D {
	return &h.inserted[h.index[node]].data
}

// MinKey returns the key at the top of the heap.
func (h *BinaryHeap[D]) MinKey() int32 {
	return h.inserted[h.heap[0]].key
}

// Min returns the node at the top of the heap without removing it.
func (h *BinaryHeap[D]) Min() int32 {
	return h.inserted[h.heap[0]].node
}

func (h *BinaryHeap[D]) DeleteMin() int32 {
	rootElem := h.heap[0]
	last := len(h.heap) - 1
	h.heap[0] = h.heap[last]
	h.inserted[h.heap[0]].heapPos = 0
	h.heap = h.heap[:last]
	if last > 0 {
		h.siftDown(0)
	}
	h.inserted[rootElem].heapPos = notInserted
	return h.inserted[rootElem].node
}

// Clear forgets all inserted nodes. Cost is linear in the number of nodes
// touched since the previous Clear, not in the graph size.
func (h *BinaryHeap[D]) Clear() {
	for i := range h.inserted {
		h.index[h.inserted[i].node] = notInserted
	}
	h.inserted = h.inserted[:0]
	h.heap = h.heap[:0]
}

func (h *BinaryHeap[D]) siftUp(pos int32) {
	elem := h.heap[pos]
	key := h.inserted[elem].key
	for pos > 0 {
		parent := (pos - 1) / 2
		if h.inserted[h.heap[parent]].key <= key {
			break
		}
		h.heap[pos] = h.heap[parent]
		h.inserted[h.heap[pos]].heapPos = pos
		pos = parent
	}
	h.heap[pos] = elem
	h.inserted[elem].heapPos = pos
}

func (h *BinaryHeap[D]) siftDown(pos int32) {
	elem := h.heap[pos]
	key := h.inserted[elem].key
	size := int32(len(h.heap))
	for {
		child := 2*pos + 1
		if child >= size {
			break
		}
		if child+1 < size && h.inserted[h.heap[child+1]].key < h.inserted[h.heap[child]].key {
			child++
		}
		if h.inserted[h.heap[child]].key >= key {
			break
		}
		h.heap[pos] = h.heap[child]
		h.inserted[h.heap[pos]].heapPos = pos
		pos = child
	}
	h.heap[pos] = elem
	h.inserted[elem].heapPos = pos
}
