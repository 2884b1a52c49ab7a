package dmclock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, useHeap bool, allowLimitBreak bool, info map[string]ClientInfo) (*Scheduler[string, string], *Time) {
	t.Helper()
	now := Time(0)
	s, err := NewScheduler(Options[string, string]{
		ClientInfoFn:    func(c string) ClientInfo { return info[c] },
		Now:             func() Time { return now },
		UseHeap:         useHeap,
		AllowLimitBreak: allowLimitBreak,
	})
	require.NoError(t, err)
	return s, &now
}

func TestNewScheduler_RequiresClientInfoFn(t *testing.T) {
	_, err := NewScheduler(Options[string, string]{Now: func() Time { return 0 }})
	require.Error(t, err)
}

func TestNewScheduler_RequiresNow(t *testing.T) {
	_, err := NewScheduler(Options[string, string]{ClientInfoFn: func(string) ClientInfo { return ClientInfo{} }})
	require.Error(t, err)
}

func TestAddRequest_UnknownClientGetsLazilyCreated(t *testing.T) {
	s, _ := newTestScheduler(t, true, false, map[string]ClientInfo{
		"a": NewClientInfo(1, 1, 0),
	})
	require.NoError(t, s.AddRequest("a", "r1", ReqParams{}, 0, 0))
	assert.Equal(t, 1, s.NumClients())
	assert.Equal(t, 1, s.QueueLen("a"))
	assert.Equal(t, 0, s.QueueLen("unknown"))
}

// TestIdleReactivation covers spec §4.4: a client returning from idle
// gets a propDelta that rebases its proportion tag against the current
// minimum among active clients, instead of competing on its own raw,
// clamped-to-now tag (which would unfairly deprioritize it relative to
// a client that has been patiently waiting at an earlier tag).
func TestIdleReactivation(t *testing.T) {
	info := map[string]ClientInfo{
		"active": NewClientInfo(0, 1, 0),
		"idler":  NewClientInfo(0, 1, 0),
	}
	s, now := newTestScheduler(t, true, false, info)

	require.NoError(t, s.AddRequest("idler", "i0", ReqParams{}, *now, 0))
	_, _, _, ok := s.popDispatch(ViewReady)
	require.True(t, ok)
	// Simulate the cleaner having marked idler idle after a long pause.
	s.clients["idler"].idle = true

	*now = 50
	require.NoError(t, s.AddRequest("active", "a0", ReqParams{}, *now, 0))
	activeTag := s.clients["active"].requests[0].tag.Proportion
	require.Equal(t, Time(50), activeTag)

	*now = 100
	require.NoError(t, s.AddRequest("idler", "i1", ReqParams{}, *now, 0))

	idlerRec := s.clients["idler"]
	assert.False(t, idlerRec.idle)
	effective := idlerRec.requests[0].tag.Proportion + idlerRec.propDelta
	// Without reactivation, idler's raw tag would clamp to now (100),
	// well past active's pending request at 50. With reactivation it
	// matches active's real position instead.
	assert.Equal(t, Time(100), idlerRec.requests[0].tag.Proportion)
	assert.InDelta(t, float64(activeTag), float64(effective), 1e-9)
}

func TestPopDispatch_EmptySelectorReturnsFalse(t *testing.T) {
	s, _ := newTestScheduler(t, true, false, map[string]ClientInfo{})
	_, _, _, ok := s.popDispatch(ViewReady)
	assert.False(t, ok)
}
