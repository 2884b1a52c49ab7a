package dmclock

// clientReq pairs a computed tag with the owned request payload. It is
// owned exclusively by its client's record until dispatch pops it.
type clientReq[R any] struct {
	tag     RequestTag
	request R
}

// record is the per-client bookkeeping entry: spec.md's ClientRec.
// The same record participates in all three selection views (reservation,
// ready, limit); idxRes/idxReady/idxLimit and vecPos are bookkeeping
// fields owned exclusively by whichever selector implementation is in use
// (see selector_heap.go / selector_vector.go) and are otherwise ignored.
type record[C comparable, R any] struct {
	client C
	info   ClientInfo

	prevTag  RequestTag
	requests []*clientReq[R]

	// propDelta is added to the proportion tag whenever ordering by
	// proportion. Set on idle->active transition (spec §4.4).
	propDelta Time

	idle     bool
	lastTick uint64

	// heapSelector bookkeeping: current index of this record within each
	// of the three container/heap-backed views.
	idxRes   int
	idxReady int
	idxLimit int

	// vectorSelector bookkeeping: current position in the flat slice.
	vecPos int
}

func newRecord[C comparable, R any](client C, info ClientInfo, now Time) *record[C, R] {
	return &record[C, R]{
		client: client,
		info:   info,
		idle:   true,
		// lastTick is set by the caller (Scheduler.AddRequest) from the
		// global tick counter, not from now.
	}
}

// front returns the client's next pending request, if any.
func (r *record[C, R]) front() (*clientReq[R], bool) {
	if len(r.requests) == 0 {
		return nil, false
	}
	return r.requests[0], true
}

// popFront removes and returns the client's next pending request.
func (r *record[C, R]) popFront() *clientReq[R] {
	req := r.requests[0]
	r.requests = r.requests[1:]
	return req
}

// empty reports whether the client currently has no pending requests.
func (r *record[C, R]) empty() bool {
	return len(r.requests) == 0
}
