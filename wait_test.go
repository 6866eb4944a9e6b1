package copr

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipseo/copr/errors"
)

// scriptedFetcher replays a per-build sequence of states; the last state
// repeats once the script is exhausted.
type scriptedFetcher struct {
	mu     sync.Mutex
	states map[int64][]BuildState
	errs   map[int64]error
	calls  map[int64]int
}

func newScriptedFetcher(states map[int64][]BuildState) *scriptedFetcher {
	return &scriptedFetcher{
		states: states,
		errs:   make(map[int64]error),
		calls:  make(map[int64]int),
	}
}

func (f *scriptedFetcher) FetchBuild(_ context.Context, id int64) (*Build, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[id]
	f.calls[id]++
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	seq, ok := f.states[id]
	if !ok || len(seq) == 0 {
		return nil, fmt.Errorf("no script for build %d", id)
	}
	if n >= len(seq) {
		n = len(seq) - 1
	}
	return &Build{ID: id, State: seq[n]}, nil
}

func (f *scriptedFetcher) callCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func pendingBuilds(fetcher StatusFetcher, ids ...int64) []*Build {
	builds := make([]*Build, 0, len(ids))
	for _, id := range ids {
		builds = append(builds, (&Build{ID: id, State: StateRunning}).WithFetcher(fetcher))
	}
	return builds
}

func TestWaitReturnsFinalSnapshotsInInputOrder(t *testing.T) {
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		1: {StateSucceeded},
		2: {StateRunning, StateFailed},
	})

	results, err := Wait(context.Background(), pendingBuilds(fetcher, 1, 2), WaitOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ID)
	assert.Equal(t, StateSucceeded, results[0].State)
	assert.Equal(t, int64(2), results[1].ID)
	assert.Equal(t, StateFailed, results[1].State)

	// A "all succeeded" check over a mixed outcome must be false.
	assert.False(t, Succeeded(results...))

	// Build 1 terminated in round 1 and must not have been re-fetched.
	assert.Equal(t, 1, fetcher.callCount(1))
	assert.Equal(t, 2, fetcher.callCount(2))
}

func TestWaitUnknownStatusAbortsImmediately(t *testing.T) {
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		1: {StateRunning, StateUnknown},
		2: {StateRunning, StateRunning, StateRunning},
	})

	results, err := Wait(context.Background(), pendingBuilds(fetcher, 1, 2), WaitOptions{})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, stdErrors.Is(err, errors.ErrUnknownStatus))
	assert.True(t, errors.IsKind(err, errors.KindProtocol))

	// The abort happened in round 2 before build 2 was re-fetched; no
	// further rounds ran for it either.
	assert.Equal(t, 2, fetcher.callCount(1))
	assert.Equal(t, 1, fetcher.callCount(2))
}

func TestWaitTimeout(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		1: {StateRunning},
	})

	// Five sleeps happen (after rounds 1-5); the check at the end of round
	// six sees the full five seconds elapsed.
	go func() {
		for i := 0; i < 5; i++ {
			clock.BlockUntil(1)
			clock.Advance(time.Second)
		}
	}()

	rounds := 0
	results, err := Wait(context.Background(), pendingBuilds(fetcher, 1), WaitOptions{
		Interval: time.Second,
		Timeout:  5 * time.Second,
		Clock:    clock,
		Callback: func(builds []*Build) error {
			rounds++
			return nil
		},
	})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, stdErrors.Is(err, errors.ErrTimeout))
	assert.True(t, errors.IsKind(err, errors.KindTimeout))
	assert.Equal(t, 6, rounds)
}

func TestWaitZeroTimeoutNeverTimesOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		1: {StateRunning, StateImporting, StateRunning, StateSucceeded},
	})

	go func() {
		for i := 0; i < 3; i++ {
			clock.BlockUntil(1)
			clock.Advance(time.Hour)
		}
	}()

	results, err := Wait(context.Background(), pendingBuilds(fetcher, 1), WaitOptions{
		Interval: time.Hour,
		Clock:    clock,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StateSucceeded, results[0].State)
}

func TestWaitCallbackSeesFullListEveryRound(t *testing.T) {
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		1: {StateSucceeded},
		2: {StateRunning, StateRunning, StateSucceeded},
		3: {StateWaiting, StateSkipped},
	})

	var rounds [][]*Build
	results, err := Wait(context.Background(), pendingBuilds(fetcher, 1, 2, 3), WaitOptions{
		Callback: func(builds []*Build) error {
			rounds = append(rounds, builds)
			return nil
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Len(t, rounds, 3)
	for _, snapshot := range rounds {
		require.Len(t, snapshot, 3)
		// Input ordering holds in every round, terminal builds included.
		assert.Equal(t, int64(1), snapshot[0].ID)
		assert.Equal(t, int64(2), snapshot[1].ID)
		assert.Equal(t, int64(3), snapshot[2].ID)
	}
	// Build 1 was terminal from round 1 and keeps its final snapshot.
	assert.Equal(t, StateSucceeded, rounds[1][0].State)
	assert.Equal(t, StateSucceeded, rounds[2][0].State)
}

func TestWaitCallbackErrorAbortsSession(t *testing.T) {
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		1: {StateRunning, StateSucceeded},
	})
	boom := stdErrors.New("progress bar exploded")

	results, err := Wait(context.Background(), pendingBuilds(fetcher, 1), WaitOptions{
		Callback: func([]*Build) error { return boom },
	})
	require.Error(t, err)
	assert.Nil(t, results)
	// The callback error surfaces unchanged.
	assert.Same(t, boom, err)
	assert.Equal(t, 1, fetcher.callCount(1))
}

func TestWaitFetchErrorPropagatesUnwrapped(t *testing.T) {
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		1: {StateRunning},
	})
	transport := stdErrors.New("connection refused")
	fetcher.errs[1] = transport

	results, err := Wait(context.Background(), pendingBuilds(fetcher, 1), WaitOptions{})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.Same(t, transport, err)
}

func TestWaitPerBuildFetchers(t *testing.T) {
	fetcherA := newScriptedFetcher(map[int64][]BuildState{
		1: {StateRunning, StateSucceeded},
	})
	fetcherB := newScriptedFetcher(map[int64][]BuildState{
		2: {StateSucceeded},
	})

	builds := []*Build{
		(&Build{ID: 1}).WithFetcher(fetcherA),
		(&Build{ID: 2}).WithFetcher(fetcherB),
	}
	results, err := Wait(context.Background(), builds, WaitOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Each build went through the capability of its originating client.
	assert.Equal(t, 2, fetcherA.callCount(1))
	assert.Equal(t, 0, fetcherA.callCount(2))
	assert.Equal(t, 1, fetcherB.callCount(2))
	assert.Equal(t, 0, fetcherB.callCount(1))
}

func TestWaitSharedFallbackFetcher(t *testing.T) {
	shared := newScriptedFetcher(map[int64][]BuildState{
		1: {StateSucceeded},
		2: {StateRunning, StateCanceled},
	})

	// Builds assembled by hand with no bound fetcher use the session-level
	// fallback.
	builds := []*Build{{ID: 1}, {ID: 2}}
	results, err := Wait(context.Background(), builds, WaitOptions{Fetcher: shared})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, results[0].State)
	assert.Equal(t, StateCanceled, results[1].State)
}

func TestWaitValidation(t *testing.T) {
	fetcher := newScriptedFetcher(map[int64][]BuildState{1: {StateSucceeded}})

	tests := []struct {
		name   string
		builds []*Build
		opts   WaitOptions
	}{
		{"empty set", nil, WaitOptions{}},
		{"nil build", []*Build{nil}, WaitOptions{Fetcher: fetcher}},
		{"negative interval", pendingBuilds(fetcher, 1), WaitOptions{Interval: -time.Second}},
		{"duplicate ids", pendingBuilds(fetcher, 1, 1), WaitOptions{}},
		{"no fetcher anywhere", []*Build{{ID: 1}}, WaitOptions{}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			results, err := Wait(context.Background(), test.builds, test.opts)
			require.Error(t, err)
			assert.Nil(t, results)
			assert.True(t, errors.IsKind(err, errors.KindUsage), "want usage error, got %v", err)
		})
	}
}

func TestWaitContextCancellationDuringSleep(t *testing.T) {
	clock := clockwork.NewFakeClock()
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		1: {StateRunning},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		clock.BlockUntil(1)
		cancel()
	}()

	results, err := Wait(ctx, pendingBuilds(fetcher, 1), WaitOptions{
		Interval: time.Minute,
		Clock:    clock,
	})
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, stdErrors.Is(err, context.Canceled))
}

func TestWaitBuild(t *testing.T) {
	fetcher := newScriptedFetcher(map[int64][]BuildState{
		7: {StatePending, StateStarting, StateSucceeded},
	})

	build, err := WaitBuild(context.Background(), (&Build{ID: 7}).WithFetcher(fetcher), WaitOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), build.ID)
	assert.Equal(t, StateSucceeded, build.State)
	assert.True(t, Succeeded(build))
}

func TestSucceeded(t *testing.T) {
	tests := []struct {
		name   string
		builds []*Build
		want   bool
	}{
		{"all succeeded", []*Build{{State: StateSucceeded}, {State: StateSucceeded}}, true},
		{"one failed", []*Build{{State: StateSucceeded}, {State: StateFailed}}, false},
		{"skipped is not succeeded", []*Build{{State: StateSkipped}}, false},
		{"nil build", []*Build{nil}, false},
		{"empty", nil, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, Succeeded(test.builds...))
		})
	}
}
