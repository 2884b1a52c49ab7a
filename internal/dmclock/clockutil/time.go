// Package clockutil provides the dmclock engine's injected time source.
//
// The engine never calls time.Now directly; every caller of the scheduler
// core supplies a Source, so tests can drive the clock deterministically
// with k8s.io/apimachinery/pkg/util/clock.FakeClock.
package clockutil

import (
	"math"

	"k8s.io/apimachinery/pkg/util/clock"
)

// Time is a monotonically nondecreasing, real-valued instant measured in
// seconds. It is a plain float64 rather than time.Time because the dmclock
// tag arithmetic (see internal/dmclock/tag.go) is defined over real numbers,
// not calendar time.
type Time float64

const (
	// TimeZero denotes "unset".
	TimeZero Time = 0
	// TimeMax denotes "never". Kept well below math.MaxFloat64 so that
	// adding a bounded cost to a TimeMax-derived tag cannot overflow to
	// +Inf and lose the "treat as extremal" comparisons in the dmclock
	// package's tag code.
	TimeMax Time = Time(math.MaxFloat64 / 4)
)

// Source returns the current time. Implementations must be monotonically
// nondecreasing and must not block or re-enter the scheduler.
type Source func() Time

// FromClock adapts a k8s.io/apimachinery clock.Clock into a Source. The
// conversion captures the clock's value at construction as an epoch and
// reports elapsed seconds since then, so it stays monotonic for both
// clock.RealClock and clock.FakeClock.
func FromClock(c clock.Clock) Source {
	epoch := c.Now()
	return func() Time {
		return Time(c.Now().Sub(epoch).Seconds())
	}
}

// Fixed returns a Source that always reports t, useful for literal-value
// tests that advance time by constructing a new Source per call.
func Fixed(t Time) Source {
	return func() Time { return t }
}
