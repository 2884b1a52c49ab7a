package dmclock

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ClientInfoResolver maps a client id to its immutable (reservation,
// weight, limit) triple. Must be fast, total and must not re-enter the
// scheduler (spec §5).
type ClientInfoResolver[C comparable] func(client C) ClientInfo

// Options configures a Scheduler at construction. Now and
// ClientInfoFn are required; the remaining fields have zero-value
// defaults matching spec §6.
type Options[C comparable, R any] struct {
	ClientInfoFn ClientInfoResolver[C]
	// Now is the default time source used whenever a caller omits a
	// per-call time override (spec §6's "optional time override [...]
	// else the injected clock").
	Now func() Time

	// AllowLimitBreak enables spec §4.2 step 5.
	AllowLimitBreak bool
	// UseHeap selects the indexed-intrusive-heap selector; otherwise the
	// indexed-vector selector is used (spec §4.3).
	UseHeap bool

	// OnEvict, if set, is invoked under the data lock after a client is
	// erased by the cleaner (spec §4.6.1).
	OnEvict func(client C)
	// DispatchObserver, if set, is invoked under the data lock after
	// every successful dispatch, naming the phase (spec §9(a)).
	DispatchObserver func(phase Phase)

	Log *log.Entry
}

// now is kept as a func field (not a stored clockutil.Source) on
// Scheduler because §6 allows overriding the clock per-call; the field
// below is the *default* source used when a caller omits a time
// override.
type timeSourceFn = func() Time

// Scheduler is the core dmClock engine of spec §2: it owns the client
// map and selection structure, computes tags on insert, and runs the
// dispatch decision. It has no notion of pull vs push; pull.go and
// push.go are thin façades over it.
type Scheduler[C comparable, R any] struct {
	mu sync.Mutex

	clients    map[C]*record[C, R]
	sel        selector[C, R]
	clientInfo ClientInfoResolver[C]
	now        timeSourceFn

	allowLimitBreak bool
	onEvict         func(client C)
	dispatch        func(phase Phase)

	tick uint64

	log *log.Entry
}

// NewScheduler constructs the core engine. It returns an error rather
// than panicking for every precondition checkable before any request
// flows (spec §7). The one condition only discovered once requests flow
// — a client whose resolved info (fetched once, when its record is
// created) has neither a reservation nor a weight — makes AddRequest
// panic with the error computeTag returns.
func NewScheduler[C comparable, R any](opts Options[C, R]) (*Scheduler[C, R], error) {
	if opts.ClientInfoFn == nil {
		return nil, errors.WithStack(ErrNilClientInfoResolver)
	}
	if opts.Now == nil {
		return nil, errors.New("dmclock: time source is required")
	}

	var sel selector[C, R]
	if opts.UseHeap {
		sel = newHeapSelector[C, R]()
	} else {
		sel = newVectorSelector[C, R]()
	}

	logger := opts.Log
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}

	return &Scheduler[C, R]{
		clients:         make(map[C]*record[C, R]),
		sel:             sel,
		clientInfo:      opts.ClientInfoFn,
		now:             opts.Now,
		allowLimitBreak: opts.AllowLimitBreak,
		onEvict:         opts.OnEvict,
		dispatch:        opts.DispatchObserver,
		log:             logger,
	}, nil
}

// getOrCreateRecord returns the client's record, creating it lazily (and
// inserting it into the selector) on first use. Caller must hold s.mu.
func (s *Scheduler[C, R]) getOrCreateRecord(client C, now Time) *record[C, R] {
	rec, ok := s.clients[client]
	if ok {
		return rec
	}
	info := s.clientInfo(client)
	rec = newRecord[C, R](client, info, now)
	s.clients[client] = rec
	s.sel.Insert(rec)
	return rec
}

// reactivateIfIdle applies spec §4.4's idle-reactivation adjustment.
// Caller must hold s.mu.
func (s *Scheduler[C, R]) reactivateIfIdle(rec *record[C, R], now Time) {
	if !rec.idle {
		return
	}
	var (
		minP    Time
		defined bool
	)
	for _, other := range s.clients {
		if other == rec || other.idle {
			continue
		}
		req, ok := other.front()
		if !ok {
			continue
		}
		p := req.tag.Proportion + other.propDelta
		if !defined || p < minP {
			minP = p
			defined = true
		}
	}
	if defined {
		rec.propDelta = minP - now
	}
	rec.idle = false
}

// AddRequest enqueues a request for client at time now with the given
// params and optional additive cost, per spec §4.7/§4.8's shared
// add_request. It computes the tag, applies idle reactivation if
// appropriate, and refreshes the selector. It does not attempt dispatch;
// callers (pull/push façades) decide whether to do so.
func (s *Scheduler[C, R]) AddRequest(client C, request R, params ReqParams, now Time, cost Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	rec := s.getOrCreateRecord(client, now)
	rec.lastTick = s.tick

	if rec.idle {
		s.reactivateIfIdle(rec, now)
	}

	tag, err := computeTag(now, rec.prevTag, rec.info, params, cost)
	if err != nil {
		s.log.WithError(err).WithField("client", client).Error("dmclock: client has neither reservation nor weight")
		panic(err)
	}

	rec.prevTag = tag
	rec.requests = append(rec.requests, &clientReq[R]{tag: tag, request: request})
	s.sel.Adjust(rec)

	s.log.WithField("client", client).Debug("dmclock: request enqueued")
	return nil
}

// popDispatch pops the front request of the view's top record, refreshes
// the selector, applies the reservation-tag reduction (spec §4.5) when
// dispatching via the ready view, and returns the popped request and its
// client id. Caller must hold s.mu.
func (s *Scheduler[C, R]) popDispatch(view View) (client C, req *clientReq[R], phase Phase, ok bool) {
	rec, has := s.sel.Top(view)
	if !has {
		return client, nil, 0, false
	}
	req = rec.popFront()
	s.sel.Adjust(rec)

	switch view {
	case ViewReservation:
		phase = PhaseReservation
	case ViewReady:
		phase = PhasePriority
		s.applyReservationReduction(rec)
	}

	if s.dispatch != nil {
		s.dispatch(phase)
	}
	s.log.WithField("client", rec.client).WithField("phase", phase).Debug("dmclock: dispatched request")
	return rec.client, req, phase, true
}

// applyReservationReduction implements spec §4.5: after a dispatch via
// the ready (proportional) view, every remaining request of that client,
// plus prevTag.Reservation, has its reservation tag decremented by the
// client's reservation reciprocal. This returns the reservation credit
// the client did not consume via the reservation phase.
func (s *Scheduler[C, R]) applyReservationReduction(rec *record[C, R]) {
	inv := Time(0)
	if rec.info.reservationInv != 0 {
		inv = Time(rec.info.reservationInv)
	}
	if inv == 0 {
		return
	}
	for _, r := range rec.requests {
		r.tag.Reservation -= inv
	}
	rec.prevTag.Reservation -= inv
	s.sel.Adjust(rec)
}

// Now returns the scheduler's default time source value. Façades use
// this when a caller omits a per-call time override. Safe to call
// without holding s.mu: the source itself is fixed at construction.
func (s *Scheduler[C, R]) Now() Time {
	return s.now()
}

// QueueLen reports the number of pending requests for client, 0 if the
// client is unknown. Exposed for metrics polling.
func (s *Scheduler[C, R]) QueueLen(client C) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.clients[client]
	if !ok {
		return 0
	}
	return len(rec.requests)
}

// NumClients reports the number of clients currently tracked (including
// idle ones not yet erased).
func (s *Scheduler[C, R]) NumClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
