package dmclock

import "container/heap"

// heapSelector is the "indexed intrusive heap" implementation of spec
// §4.3: one container/heap per view, each record carrying the index of
// its current position in that heap. A Len/Less/Swap/Push/Pop quartet
// per heap, with Swap writing the new index back onto the element so
// heap.Fix/heap.Remove can be called by index in O(log n).
type heapSelector[C comparable, R any] struct {
	res   resHeap[C, R]
	ready readyHeap[C, R]
	limit limitHeap[C, R]
	n     int
}

func newHeapSelector[C comparable, R any]() *heapSelector[C, R] {
	return &heapSelector[C, R]{}
}

func (s *heapSelector[C, R]) Insert(rec *record[C, R]) {
	heap.Push(&s.res, rec)
	heap.Push(&s.ready, rec)
	heap.Push(&s.limit, rec)
	s.n++
}

func (s *heapSelector[C, R]) Remove(rec *record[C, R]) {
	heap.Remove(&s.res, rec.idxRes)
	heap.Remove(&s.ready, rec.idxReady)
	heap.Remove(&s.limit, rec.idxLimit)
	s.n--
}

func (s *heapSelector[C, R]) Adjust(rec *record[C, R]) {
	heap.Fix(&s.res, rec.idxRes)
	heap.Fix(&s.ready, rec.idxReady)
	heap.Fix(&s.limit, rec.idxLimit)
}

func (s *heapSelector[C, R]) Top(view View) (*record[C, R], bool) {
	switch view {
	case ViewReservation:
		if len(s.res.items) == 0 {
			return nil, false
		}
		top := s.res.items[0]
		if _, ok := top.front(); !ok {
			return nil, false
		}
		return top, true
	case ViewReady:
		if len(s.ready.items) == 0 {
			return nil, false
		}
		top := s.ready.items[0]
		if _, ok := top.front(); !ok {
			return nil, false
		}
		return top, true
	case ViewLimit:
		if len(s.limit.items) == 0 {
			return nil, false
		}
		top := s.limit.items[0]
		if _, ok := top.front(); !ok {
			return nil, false
		}
		return top, true
	}
	return nil, false
}

func (s *heapSelector[C, R]) Len() int { return s.n }

// resHeap orders by the reservation view.
type resHeap[C comparable, R any] struct {
	items []*record[C, R]
}

func (h *resHeap[C, R]) Len() int { return len(h.items) }
func (h *resHeap[C, R]) Less(i, j int) bool {
	return lessView(ViewReservation, h.items[i], h.items[j])
}

func (h *resHeap[C, R]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].idxRes = i
	h.items[j].idxRes = j
}

func (h *resHeap[C, R]) Push(x any) {
	rec := x.(*record[C, R])
	rec.idxRes = len(h.items)
	h.items = append(h.items, rec)
}

func (h *resHeap[C, R]) Pop() any {
	old := h.items
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.idxRes = -1
	h.items = old[:n-1]
	return rec
}

// readyHeap orders by the ready view.
type readyHeap[C comparable, R any] struct {
	items []*record[C, R]
}

func (h *readyHeap[C, R]) Len() int { return len(h.items) }
func (h *readyHeap[C, R]) Less(i, j int) bool {
	return lessView(ViewReady, h.items[i], h.items[j])
}

func (h *readyHeap[C, R]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].idxReady = i
	h.items[j].idxReady = j
}

func (h *readyHeap[C, R]) Push(x any) {
	rec := x.(*record[C, R])
	rec.idxReady = len(h.items)
	h.items = append(h.items, rec)
}

func (h *readyHeap[C, R]) Pop() any {
	old := h.items
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.idxReady = -1
	h.items = old[:n-1]
	return rec
}

// limitHeap orders by the limit view.
type limitHeap[C comparable, R any] struct {
	items []*record[C, R]
}

func (h *limitHeap[C, R]) Len() int { return len(h.items) }
func (h *limitHeap[C, R]) Less(i, j int) bool {
	return lessView(ViewLimit, h.items[i], h.items[j])
}

func (h *limitHeap[C, R]) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].idxLimit = i
	h.items[j].idxLimit = j
}

func (h *limitHeap[C, R]) Push(x any) {
	rec := x.(*record[C, R])
	rec.idxLimit = len(h.items)
	h.items = append(h.items, rec)
}

func (h *limitHeap[C, R]) Pop() any {
	old := h.items
	n := len(old)
	rec := old[n-1]
	old[n-1] = nil
	rec.idxLimit = -1
	h.items = old[:n-1]
	return rec
}
