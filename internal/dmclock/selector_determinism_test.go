package dmclock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSelectorDeterminism_HeapAndVectorAgree covers invariant 6: the heap
// selector and the flat-vector selector must choose the same dispatch for
// every step of an identical trace, since UseHeap only trades an
// algorithmic complexity tradeoff (spec §4.3) and must never change
// observable scheduling behavior.
func TestSelectorDeterminism_HeapAndVectorAgree(t *testing.T) {
	info := map[string]ClientInfo{
		"gold":   NewClientInfo(4, 3, 0),
		"silver": NewClientInfo(1, 1, 10),
		"bronze": NewClientInfo(0, 1, 4),
	}

	type dispatch struct {
		kind   PullResultKind
		client string
		req    int
		phase  Phase
		at     Time
	}

	run := func(useHeap bool) []dispatch {
		now := Time(0)
		s, err := NewScheduler(Options[string, int]{
			ClientInfoFn: func(c string) ClientInfo { return info[c] },
			Now:          func() Time { return now },
			UseHeap:      useHeap,
		})
		require.NoError(t, err)
		p := NewPullScheduler(s)

		seq := []struct {
			client string
			count  int
		}{
			{"gold", 30},
			{"silver", 30},
			{"bronze", 30},
		}
		for _, step := range seq {
			for i := 0; i < step.count; i++ {
				require.NoError(t, p.AddRequest(step.client, i, ReqParams{}, &now, nil))
			}
		}

		var out []dispatch
		for pt := Time(0); pt < 20; pt += 0.05 {
			tm := pt
			result := p.PullRequest(&tm)
			switch result.Kind {
			case PullReady:
				out = append(out, dispatch{kind: PullReady, client: result.Client, req: result.Request, phase: result.Phase})
			case PullFuture:
				out = append(out, dispatch{kind: PullFuture, at: result.At})
			default:
				out = append(out, dispatch{kind: PullNone})
			}
		}
		return out
	}

	heapSeq := run(true)
	vectorSeq := run(false)

	require.Equal(t, len(heapSeq), len(vectorSeq))
	for i := range heapSeq {
		require.Equal(t, heapSeq[i], vectorSeq[i], "step %d diverged between selectors", i)
	}
}
