package dmclock

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// CanHandleFunc reports whether the downstream currently has capacity.
type CanHandleFunc func() bool

// HandleFunc is invoked, under the data lock, to hand a dispatched
// request to the downstream (spec §4.8).
type HandleFunc[C comparable, R any] func(client C, request R, phase Phase)

// PushScheduler is the push façade of spec §4.8: the engine dispatches
// via HandleFunc whenever CanHandleFunc reports capacity, either because
// a new request arrived, RequestCompleted signaled capacity, or the
// timer thread's deadline matured.
type PushScheduler[C comparable, R any] struct {
	core      *Scheduler[C, R]
	canHandle CanHandleFunc
	handle    HandleFunc[C, R]

	mu        sync.Mutex
	cond      *sync.Cond
	target    Time
	hasTarget bool
	finishing bool
	retarget  chan struct{}
	done      chan struct{}

	log *log.Entry
}

// NewPushScheduler wraps a Scheduler with the push façade and starts its
// timer thread.
func NewPushScheduler[C comparable, R any](core *Scheduler[C, R], canHandle CanHandleFunc, handle HandleFunc[C, R], logger *log.Entry) *PushScheduler[C, R] {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	p := &PushScheduler[C, R]{
		core:      core,
		canHandle: canHandle,
		handle:    handle,
		retarget:  make(chan struct{}, 1),
		done:      make(chan struct{}),
		log:       logger,
	}
	p.cond = sync.NewCond(&p.mu)
	go p.runTimer()
	return p
}

// Close shuts down the timer thread, per spec §4.8/§5: sets the
// finishing flag, signals the condvar, and joins the thread. In-flight
// callbacks are allowed to complete; no request-level cancellation is
// offered.
func (p *PushScheduler[C, R]) Close() {
	p.mu.Lock()
	p.finishing = true
	p.mu.Unlock()
	p.cond.Signal()
	p.nudge()
	<-p.done
}

func (p *PushScheduler[C, R]) nudge() {
	select {
	case p.retarget <- struct{}{}:
	default:
	}
}

// AddRequest enqueues a request and then calls schedule(), per spec
// §4.8's "add_request additionally calls the internal schedule() after
// enqueue".
func (p *PushScheduler[C, R]) AddRequest(client C, request R, params ReqParams, now *Time, cost Time) error {
	var t Time
	if now != nil {
		t = *now
	} else {
		t = p.core.Now()
	}
	if err := p.core.AddRequest(client, request, params, t, cost); err != nil {
		return err
	}
	p.schedule(t)
	return nil
}

// RequestCompleted signals that the downstream has capacity again.
func (p *PushScheduler[C, R]) RequestCompleted() {
	p.schedule(p.core.Now())
}

// schedule implements spec §4.8: if the downstream cannot currently
// handle work, do nothing. Otherwise evaluate do_next_request; on
// "future", arm the timer thread; on "returning", pop and invoke handle
// while still holding the data lock, so the sink observes dispatch
// ordering.
func (p *PushScheduler[C, R]) schedule(now Time) {
	if !p.canHandle() {
		return
	}

	p.core.mu.Lock()
	decision := p.core.doNextRequest(now)
	switch decision.kind {
	case decisionNone:
		p.core.mu.Unlock()
	case decisionFuture:
		p.core.mu.Unlock()
		p.armTimer(decision.at)
	case decisionReturning:
		// handle is invoked before unlocking: the sink must observe
		// dispatch ordering, and a request_completed racing in from
		// another goroutine must not reorder ahead of this callback.
		client, req, phase, ok := p.core.popDispatch(decision.view)
		if ok {
			p.handle(client, req.request, phase)
		}
		p.core.mu.Unlock()
	}
}

// armTimer records at as the next wakeup target if it is earlier than
// any currently pending target, waking the timer thread to pick it up
// whether it is idle-waiting on the condvar or already mid-sleep on an
// earlier, later target.
func (p *PushScheduler[C, R]) armTimer(at Time) {
	p.mu.Lock()
	changed := !p.hasTarget || at < p.target
	if changed {
		p.target = at
		p.hasTarget = true
	}
	p.mu.Unlock()
	if changed {
		p.cond.Signal()
		p.nudge()
	}
}

// runTimer is the dedicated worker of spec §4.8/§9: wait on the condvar
// for a target wakeup time to be set; once set, sleep until that time or
// until interrupted by a new, earlier target (via the retarget channel)
// or shutdown; then call schedule() again.
func (p *PushScheduler[C, R]) runTimer() {
	defer close(p.done)
	for {
		p.mu.Lock()
		for !p.hasTarget && !p.finishing {
			p.cond.Wait()
		}
		if p.finishing {
			p.mu.Unlock()
			return
		}
		target := p.target
		p.mu.Unlock()

		now := p.core.Now()
		d := time.Duration(float64(target-now) * float64(time.Second))
		if d < 0 {
			d = 0
		}
		timer := time.NewTimer(d)

		select {
		case <-timer.C:
			p.mu.Lock()
			if p.hasTarget && p.target == target {
				p.hasTarget = false
			}
			finishing := p.finishing
			p.mu.Unlock()
			if finishing {
				return
			}
			p.schedule(p.core.Now())
		case <-p.retarget:
			timer.Stop()
			// Loop back: either a new, earlier target is pending, or we
			// are finishing; both are re-checked at the top of the loop.
		}
	}
}
