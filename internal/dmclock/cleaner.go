package dmclock

import (
	"time"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
)

// markPoint is one entry of the cleaner's ordered (wall-time, tick)
// sequence, spec §4.6.
type markPoint struct {
	at   Time
	tick uint64
}

// CleanerConfig holds the cleaner's construction-time parameters.
// Preconditions (spec §4.6): EraseAge >= IdleAge, CheckTime < IdleAge.
type CleanerConfig struct {
	IdleAge   time.Duration
	EraseAge  time.Duration
	CheckTime time.Duration
}

func (c CleanerConfig) validate() error {
	if c.EraseAge < c.IdleAge {
		return ErrEraseAgeBeforeIdleAge
	}
	if c.CheckTime >= c.IdleAge {
		return ErrCheckTimeTooLarge
	}
	return nil
}

// Cleaner runs the periodic idle/erase sweep of spec §4.6 against a
// Scheduler. It owns its own ticker goroutine.
type Cleaner[C comparable, R any] struct {
	sched   *Scheduler[C, R]
	config  CleanerConfig
	onSweep func(erased, idled, tracked int)

	marks []markPoint

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}

	log *log.Entry
}

// NewCleaner validates the configuration and returns an unstarted
// Cleaner; call Start to begin the periodic sweep. onSweep, if non-nil,
// is invoked under the data lock after every Tick with the erased/idled
// counts from that sweep and the number of clients remaining, letting a
// caller wire sweep outcomes into metrics without polling.
func NewCleaner[C comparable, R any](sched *Scheduler[C, R], config CleanerConfig, logger *log.Entry, onSweep func(erased, idled, tracked int)) (*Cleaner[C, R], error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Cleaner[C, R]{
		sched:   sched,
		config:  config,
		onSweep: onSweep,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     logger,
	}, nil
}

// Start launches the periodic sweep goroutine.
func (c *Cleaner[C, R]) Start() {
	c.ticker = time.NewTicker(c.config.CheckTime)
	go c.run()
}

// Stop halts the sweep goroutine and waits for it to exit.
func (c *Cleaner[C, R]) Stop() {
	close(c.stop)
	<-c.done
}

func (c *Cleaner[C, R]) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ticker.C:
			c.Tick(c.sched.Now())
		case <-c.stop:
			c.ticker.Stop()
			return
		}
	}
}

// Tick runs one sweep at time now: append a mark point, compute the
// erase and idle cutoffs, then walk every tracked client, erasing those
// at or before the erase point and idling those at or before the idle
// point. Exposed directly (in addition to the background goroutine) so
// tests can drive it deterministically with a fake clock.
func (c *Cleaner[C, R]) Tick(now Time) error {
	c.sched.mu.Lock()
	defer c.sched.mu.Unlock()

	c.marks = append(c.marks, markPoint{at: now, tick: c.sched.tick})

	eraseAge := Time(c.config.EraseAge.Seconds())
	idleAge := Time(c.config.IdleAge.Seconds())

	var erasePoint uint64
	var hasErasePoint bool
	for len(c.marks) > 0 && now-c.marks[0].at >= eraseAge {
		erasePoint = c.marks[0].tick
		hasErasePoint = true
		c.marks = c.marks[1:]
	}

	var idlePoint uint64
	var hasIdlePoint bool
	for _, m := range c.marks {
		if now-m.at >= idleAge {
			idlePoint = m.tick
			hasIdlePoint = true
		}
	}

	var merr *multierror.Error
	clients := maps.Keys(c.sched.clients)
	erased, idled := 0, 0
	for _, id := range clients {
		rec := c.sched.clients[id]
		if hasErasePoint && rec.lastTick <= erasePoint {
			c.sched.sel.Remove(rec)
			delete(c.sched.clients, id)
			erased++
			if c.sched.onEvict != nil {
				func() {
					defer func() {
						if r := recover(); r != nil {
							merr = multierror.Append(merr, errWrapRecover(r))
						}
					}()
					c.sched.onEvict(id)
				}()
			}
			continue
		}
		if hasIdlePoint && rec.lastTick <= idlePoint && !rec.idle {
			rec.idle = true
			idled++
		}
	}

	if erased > 0 {
		c.log.WithField("count", erased).Info("dmclock: erased stale clients")
	}
	if idled > 0 {
		c.log.WithField("count", idled).Debug("dmclock: marked clients idle")
	}
	if c.onSweep != nil {
		c.onSweep(erased, idled, len(c.sched.clients))
	}
	return merr.ErrorOrNil()
}
