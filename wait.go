package copr

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/eclipseo/copr/errors"
	"github.com/eclipseo/copr/internal/logfields"
	"github.com/eclipseo/copr/internal/metrics"
)

// DefaultWaitInterval is the poll interval the copr CLI uses when the
// caller does not choose one.
const DefaultWaitInterval = 30 * time.Second

// WaitCallback is invoked once per poll round, after every watched build
// has been refreshed and before the inter-round sleep, with the full
// current list of snapshots in input order (terminal ones included). A
// non-nil error aborts the session with that error.
type WaitCallback func(builds []*Build) error

// WaitOptions configures a Wait call. The zero value busy-polls without a
// timeout, which is legal but rarely what you want; set Interval.
type WaitOptions struct {
	// Interval is the sleep between poll rounds. Must not be negative;
	// zero busy-polls.
	Interval time.Duration
	// Timeout bounds the whole session, measured from session start and
	// checked once per round after the callback. Zero means unbounded.
	Timeout time.Duration
	// Callback, when set, observes every poll round.
	Callback WaitCallback
	// Fetcher is the session-level fallback for builds that carry no bound
	// status fetcher of their own.
	Fetcher StatusFetcher
	// Clock defaults to the real clock. Tests inject a fake one.
	Clock clockwork.Clock
	// Recorder defaults to a no-op metrics recorder.
	Recorder metrics.Recorder
}

// Wait polls the given builds until all of them reach a terminal state,
// then returns their final snapshots in input order. Each build is fetched
// through its own bound capability (builds from different clients mix
// freely); a build that reaches a terminal state is never fetched again in
// later rounds but stays in the result with its final snapshot.
//
// Failure modes: a build reporting an unknown state aborts immediately
// with an error wrapping errors.ErrUnknownStatus; a nonzero Timeout
// elapsing aborts with an error wrapping errors.ErrTimeout; fetch errors,
// callback errors, and context cancellation surface unchanged. On any
// failure no result list is returned.
func Wait(ctx context.Context, builds []*Build, opts WaitOptions) ([]*Build, error) {
	if len(builds) == 0 {
		return nil, errors.New(errors.KindUsage, "no builds to wait for")
	}
	if opts.Interval < 0 {
		return nil, errors.New(errors.KindUsage, "wait interval must not be negative")
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}

	// Session state: input order for stable results, a shrink-only watched
	// set, the latest snapshot per id, and the per-build fetch path.
	order := make([]int64, 0, len(builds))
	watched := make(map[int64]struct{}, len(builds))
	snapshots := make(map[int64]*Build, len(builds))
	fetchers := make(map[int64]StatusFetcher, len(builds))
	for _, b := range builds {
		if b == nil {
			return nil, errors.New(errors.KindUsage, "nil build in wait set")
		}
		if _, dup := watched[b.ID]; dup {
			return nil, errors.Newf(errors.KindUsage, "duplicate build id %d in wait set", b.ID)
		}
		fetcher := b.fetcher
		if fetcher == nil {
			fetcher = opts.Fetcher
		}
		if fetcher == nil {
			return nil, errors.Newf(errors.KindUsage, "build %d has no status fetcher and WaitOptions.Fetcher is unset", b.ID)
		}
		order = append(order, b.ID)
		watched[b.ID] = struct{}{}
		snapshots[b.ID] = b
		fetchers[b.ID] = fetcher
	}

	sessionID := uuid.NewString()
	start := clock.Now()
	var failed []int64
	round := 0

	for {
		round++
		for _, id := range order {
			if _, ok := watched[id]; !ok {
				continue
			}
			build, err := fetchers[id].FetchBuild(ctx, id)
			if err != nil {
				return nil, err
			}
			recorder.IncFetch()
			snapshots[id] = build

			if build.State == StateUnknown {
				return nil, errors.Wrap(errors.ErrUnknownStatus, errors.KindProtocol,
					fmt.Sprintf("build %d reported an unknown state", id))
			}
			if build.State.Failed() {
				failed = append(failed, id)
			}
			if build.State.Terminal() {
				delete(watched, id)
				recorder.IncTerminal(string(build.State))
			}
		}
		recorder.IncPollRound()
		slog.LogAttrs(ctx, slog.LevelDebug, "Build wait round finished",
			logfields.SessionID(sessionID),
			logfields.Round(round),
			logfields.Watched(len(watched)),
			logfields.Failed(len(failed)),
		)

		if opts.Callback != nil {
			if err := opts.Callback(snapshotList(order, snapshots)); err != nil {
				return nil, err
			}
		}
		if len(watched) == 0 {
			recorder.ObserveWaitDuration(clock.Since(start))
			slog.LogAttrs(ctx, slog.LevelDebug, "All builds finished",
				logfields.SessionID(sessionID),
				logfields.Round(round),
				logfields.Failed(len(failed)),
			)
			return snapshotList(order, snapshots), nil
		}
		if opts.Timeout > 0 && clock.Since(start) >= opts.Timeout {
			return nil, errors.Wrap(errors.ErrTimeout, errors.KindTimeout,
				fmt.Sprintf("%d of %d builds still pending after %s", len(watched), len(order), opts.Timeout))
		}

		if opts.Interval > 0 {
			select {
			case <-clock.After(opts.Interval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// WaitBuild waits for a single build.
func WaitBuild(ctx context.Context, build *Build, opts WaitOptions) (*Build, error) {
	results, err := Wait(ctx, []*Build{build}, opts)
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// snapshotList assembles the input-ordered view of the current snapshots.
// A fresh slice is built every time so callbacks never see a partially
// updated round.
func snapshotList(order []int64, snapshots map[int64]*Build) []*Build {
	out := make([]*Build, 0, len(order))
	for _, id := range order {
		out = append(out, snapshots[id])
	}
	return out
}

// Succeeded reports whether every build in the list finished successfully.
func Succeeded(builds ...*Build) bool {
	for _, b := range builds {
		if b == nil || !b.State.Succeeded() {
			return false
		}
	}
	return true
}
