package dmclock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTag_ReservationAndWeight(t *testing.T) {
	info := NewClientInfo(10, 2, 0) // reservation=10/s, weight=2, no limit
	tag, err := computeTag(Time(0), RequestTag{}, info, ReqParams{}, 0)
	require.NoError(t, err)

	assert.InDelta(t, float64(0.1), float64(tag.Reservation), 1e-9)
	assert.InDelta(t, float64(0.5), float64(tag.Proportion), 1e-9)
	assert.Equal(t, TagMin, tag.Limit)
	assert.False(t, tag.Ready)
}

func TestComputeTag_NoReservationOrWeight(t *testing.T) {
	info := NewClientInfo(0, 0, 5)
	_, err := computeTag(Time(0), RequestTag{}, info, ReqParams{}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoReservationOrWeight)
}

func TestComputeTag_ClampsForwardToNow(t *testing.T) {
	info := NewClientInfo(10, 0, 0)
	// prev.Reservation is far in the past; the next tag must never be
	// smaller than now, so a long-idle client isn't rewarded with an
	// arbitrarily small reservation tag.
	prev := RequestTag{Reservation: Time(-100)}
	tag, err := computeTag(Time(50), prev, info, ReqParams{}, 0)
	require.NoError(t, err)
	assert.Equal(t, Time(50), tag.Reservation)
}

func TestComputeTag_DeltaAndRhoDistance(t *testing.T) {
	info := NewClientInfo(10, 4, 0)
	prev := RequestTag{Reservation: Time(1), Proportion: Time(1)}
	tag, err := computeTag(Time(0), prev, info, ReqParams{Delta: 3, Rho: 2}, 0)
	require.NoError(t, err)

	assert.InDelta(t, float64(1)+2*0.1, float64(tag.Reservation), 1e-9)
	assert.InDelta(t, float64(1)+3*0.25, float64(tag.Proportion), 1e-9)
}

func TestComputeTag_CostAddsToReservationOnly(t *testing.T) {
	info := NewClientInfo(10, 4, 0)
	tag, err := computeTag(Time(0), RequestTag{}, info, ReqParams{}, Time(5))
	require.NoError(t, err)
	assert.InDelta(t, float64(5.1), float64(tag.Reservation), 1e-9)
}

func TestApplyReservationReduction(t *testing.T) {
	s, err := NewScheduler(Options[string, int]{
		ClientInfoFn: func(string) ClientInfo { return NewClientInfo(10, 4, 0) },
		Now:          func() Time { return 0 },
		UseHeap:      true,
	})
	require.NoError(t, err)

	require.NoError(t, s.AddRequest("a", 1, ReqParams{}, 0, 0))
	require.NoError(t, s.AddRequest("a", 2, ReqParams{}, 0, 0))

	rec := s.clients["a"]
	req0Before := rec.requests[0].tag.Reservation
	req1Before := rec.requests[1].tag.Reservation
	prevBefore := rec.prevTag.Reservation

	s.applyReservationReduction(rec)

	assert.InDelta(t, float64(req0Before)-0.1, float64(rec.requests[0].tag.Reservation), 1e-9)
	assert.InDelta(t, float64(req1Before)-0.1, float64(rec.requests[1].tag.Reservation), 1e-9)
	assert.InDelta(t, float64(prevBefore)-0.1, float64(rec.prevTag.Reservation), 1e-9)
}
