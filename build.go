package copr

import "context"

// BuildState is the frontend-reported state of a build.
type BuildState string

const (
	// Non-terminal states
	StatePending   BuildState = "pending"
	StateWaiting   BuildState = "waiting"
	StateRunning   BuildState = "running"
	StateImporting BuildState = "importing"
	StateStarting  BuildState = "starting"

	// Success-terminal states
	StateSucceeded BuildState = "succeeded"
	StateForked    BuildState = "forked"
	StateSkipped   BuildState = "skipped"

	// Failure-terminal states
	StateFailed   BuildState = "failed"
	StateCanceled BuildState = "canceled"

	// StateUnknown signals a client/server contract violation. The waiter
	// treats it as fatal rather than as a build state.
	StateUnknown BuildState = "unknown"
)

// Terminal reports whether no further state transition can occur.
func (s BuildState) Terminal() bool {
	switch s {
	case StateSucceeded, StateForked, StateSkipped, StateFailed, StateCanceled:
		return true
	}
	return false
}

// Failed reports whether the state is a failure-terminal.
func (s BuildState) Failed() bool {
	return s == StateFailed || s == StateCanceled
}

// Succeeded reports whether the state is the success-terminal.
func (s BuildState) Succeeded() bool {
	return s == StateSucceeded
}

// SourcePackage describes the source package of a build.
type SourcePackage struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Version string `json:"version"`
}

// Build is a snapshot of a remote build. Identity (ID) is fixed at
// creation; State changes only by re-fetching from the frontend. Extra
// carries caller-owned metadata and is never touched by this package.
type Build struct {
	ID             int64         `json:"id"`
	State          BuildState    `json:"state"`
	Ownername      string        `json:"ownername"`
	Projectname    string        `json:"projectname"`
	ProjectDirname string        `json:"project_dirname"`
	RepoURL        string        `json:"repo_url"`
	SubmittedOn    int64         `json:"submitted_on"`
	StartedOn      int64         `json:"started_on"`
	EndedOn        int64         `json:"ended_on"`
	Chroots        []string      `json:"chroots"`
	SourcePackage  SourcePackage `json:"source_package"`

	Extra map[string]any `json:"-"`

	// fetcher is the status-fetching capability bound to the client that
	// produced this snapshot. Set by BuildProxy on every returned Build.
	fetcher StatusFetcher
}

// StatusFetcher fetches a refreshed snapshot of a build by identifier.
// *BuildProxy implements it; the waiter treats it as opaque.
type StatusFetcher interface {
	FetchBuild(ctx context.Context, id int64) (*Build, error)
}

// WithFetcher returns a copy of the build bound to the given fetcher, for
// callers assembling Build values by hand (tests, cached snapshots).
func (b *Build) WithFetcher(f StatusFetcher) *Build {
	cp := *b
	cp.fetcher = f
	return &cp
}

// Fetcher returns the bound status-fetching capability, or nil.
func (b *Build) Fetcher() StatusFetcher {
	return b.fetcher
}
