package dmclock

// PullResultKind discriminates the tagged result of PullRequest.
type PullResultKind int

const (
	PullNone PullResultKind = iota
	PullFuture
	PullReady
)

// PullResult is the pull façade's output (spec §4.7/§6): None, a future
// wakeup time, or a ready dispatch naming the client, request and phase.
type PullResult[C comparable, R any] struct {
	Kind    PullResultKind
	At      Time   // valid when Kind == PullFuture
	Client  C      // valid when Kind == PullReady
	Request R      // valid when Kind == PullReady
	Phase   Phase  // valid when Kind == PullReady
}

// PullScheduler is the pull façade of spec §4.7: callers poll
// PullRequest for the next request instead of registering a callback.
type PullScheduler[C comparable, R any] struct {
	core *Scheduler[C, R]
}

// NewPullScheduler wraps a Scheduler with the pull façade.
func NewPullScheduler[C comparable, R any](core *Scheduler[C, R]) *PullScheduler[C, R] {
	return &PullScheduler[C, R]{core: core}
}

// AddRequest enqueues a request. now and cost default to the scheduler's
// injected clock and zero respectively when nil/omitted by the caller;
// Go has no optional-parameter syntax, so overloads are expressed as
// *Time / *Time pointers that may be nil.
func (p *PullScheduler[C, R]) AddRequest(client C, request R, params ReqParams, now *Time, cost *Time) error {
	t := p.resolveNow(now)
	c := Time(0)
	if cost != nil {
		c = *cost
	}
	return p.core.AddRequest(client, request, params, t, c)
}

func (p *PullScheduler[C, R]) resolveNow(now *Time) Time {
	if now != nil {
		return *now
	}
	return p.core.Now()
}

// PullRequest implements spec §4.7: evaluate do_next_request, and if it
// returns a dispatch decision, pop the chosen client's front request and
// return it tagged by phase.
func (p *PullScheduler[C, R]) PullRequest(now *Time) PullResult[C, R] {
	t := p.resolveNow(now)

	p.core.mu.Lock()
	defer p.core.mu.Unlock()

	decision := p.core.doNextRequest(t)
	switch decision.kind {
	case decisionNone:
		return PullResult[C, R]{Kind: PullNone}
	case decisionFuture:
		return PullResult[C, R]{Kind: PullFuture, At: decision.at}
	case decisionReturning:
		client, req, phase, ok := p.core.popDispatch(decision.view)
		if !ok {
			// The top record changed shape between the decision and the
			// pop (cannot happen under a held lock, but guard anyway).
			return PullResult[C, R]{Kind: PullNone}
		}
		return PullResult[C, R]{Kind: PullReady, Client: client, Request: req.request, Phase: phase}
	}
	return PullResult[C, R]{Kind: PullNone}
}

// RemoveByClient drains client's pending queue, passing each removed
// request to sink in FIFO order (sink may be nil to simply discard), and
// refreshes the selector. A no-op for an unknown client id.
func (p *PullScheduler[C, R]) RemoveByClient(client C, sink func(request R)) {
	p.core.mu.Lock()
	defer p.core.mu.Unlock()

	rec, ok := p.core.clients[client]
	if !ok {
		return
	}
	for _, req := range rec.requests {
		if sink != nil {
			sink(req.request)
		}
	}
	rec.requests = nil
	p.core.sel.Adjust(rec)
}

// RemoveByFilter walks every client's queue, removing requests for which
// predicate returns true, passing each to sink (may be nil). backwards
// requests that, within each client's queue, matches be found starting
// from the most recently enqueued request — useful for bounding work
// when the caller only cares about recent requests.
func (p *PullScheduler[C, R]) RemoveByFilter(predicate func(client C, request R) bool, sink func(client C, request R), backwards bool) {
	p.core.mu.Lock()
	defer p.core.mu.Unlock()

	for client, rec := range p.core.clients {
		if len(rec.requests) == 0 {
			continue
		}
		kept := make([]*clientReq[R], 0, len(rec.requests))
		if !backwards {
			for _, req := range rec.requests {
				if predicate(client, req.request) {
					if sink != nil {
						sink(client, req.request)
					}
					continue
				}
				kept = append(kept, req)
			}
		} else {
			matched := make([]bool, len(rec.requests))
			for i := len(rec.requests) - 1; i >= 0; i-- {
				if predicate(client, rec.requests[i].request) {
					matched[i] = true
				}
			}
			for i, req := range rec.requests {
				if matched[i] {
					if sink != nil {
						sink(client, req.request)
					}
					continue
				}
				kept = append(kept, req)
			}
		}
		if len(kept) != len(rec.requests) {
			rec.requests = kept
			p.core.sel.Adjust(rec)
		}
	}
}
