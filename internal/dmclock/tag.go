package dmclock

import (
	"github.com/pkg/errors"

	"github.com/foodotbar/dmclock/internal/dmclock/clockutil"
)

// Time is re-exported for callers that build tags without reaching into
// clockutil directly.
type Time = clockutil.Time

const (
	TimeZero = clockutil.TimeZero
	TimeMax  = clockutil.TimeMax

	// TagMax and TagMin are the extremal tag values used when a client has
	// no reservation, weight or limit in the relevant dimension.
	TagMax = clockutil.TimeMax
	TagMin = Time(-clockutil.TimeMax)
)

// ErrNoReservationOrWeight is returned when a client's reservation and
// proportion tags would both be TagMax, i.e. the client has neither a
// reservation nor a weight and therefore can never be scheduled
// meaningfully: a programming error where the caller configured a
// client with reservation == 0 and weight == 0.
var ErrNoReservationOrWeight = errors.New("dmclock: client has neither reservation nor weight")

// ClientInfo is the immutable per-client triple of reservation rate,
// weight and limit rate, all in requests-per-unit-time. Zero means "none"
// for that dimension.
type ClientInfo struct {
	Reservation float64
	Weight      float64
	Limit       float64

	reservationInv float64
	weightInv      float64
	limitInv       float64
}

// NewClientInfo precomputes the reciprocals used by the tag arithmetic.
// A zero reciprocal signals "this dimension is not enforced".
func NewClientInfo(reservation, weight, limit float64) ClientInfo {
	info := ClientInfo{Reservation: reservation, Weight: weight, Limit: limit}
	if reservation > 0 {
		info.reservationInv = 1.0 / reservation
	}
	if weight > 0 {
		info.weightInv = 1.0 / weight
	}
	if limit > 0 {
		info.limitInv = 1.0 / limit
	}
	return info
}

// RequestTag is the triple of times computed for a request at enqueue,
// plus the ready flag that is promoted by the limit phase of the
// scheduling decision.
type RequestTag struct {
	Reservation Time
	Proportion  Time
	Limit       Time
	Ready       bool
}

// ReqParams are the distributed-completion hints supplied with a request:
// Delta counts requests the client believes completed elsewhere since its
// last submission (used for the proportion and limit tags); Rho counts
// reserved-phase completions elsewhere (used for the reservation tag).
// Both default to zero, which calc treats as one.
type ReqParams struct {
	Delta uint32
	Rho   uint32
}

// calc implements the shared tag arithmetic of spec §4.1. When inv is zero
// the dimension is unenforced and the extremal sentinel is returned
// (TagMax when extremeHigh, TagMin otherwise). Otherwise the tag is
// clamped forward to at least now, so a client idle for a long interval
// is never rewarded with an arbitrarily small tag.
func calc(t, prev, inv Time, dist uint32, extremeHigh bool) Time {
	if inv == 0 {
		if extremeHigh {
			return TagMax
		}
		return TagMin
	}
	n := dist
	if n == 0 {
		n = 1
	}
	incr := inv * Time(n)
	v := prev + incr
	if t > v {
		return t
	}
	return v
}

// computeTag assigns a fresh tag to a request arriving at time t, given
// the client's previous tag and info. cost is an additional amount (in
// reservation-tag units) added to the reservation tag, e.g. to express a
// request's relative expense.
func computeTag(t Time, prev RequestTag, info ClientInfo, params ReqParams, cost Time) (RequestTag, error) {
	tag := RequestTag{
		Reservation: cost + calc(t, prev.Reservation, Time(info.reservationInv), params.Rho, true),
		Proportion:  calc(t, prev.Proportion, Time(info.weightInv), params.Delta, true),
		Limit:       calc(t, prev.Limit, Time(info.limitInv), params.Delta, false),
		Ready:       false,
	}
	if tag.Reservation >= TagMax && tag.Proportion >= TagMax {
		return tag, errors.WithStack(ErrNoReservationOrWeight)
	}
	return tag, nil
}
