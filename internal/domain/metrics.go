package domain

import "time"

// FetchOutcome labels how a collection fetch ended.
type FetchOutcome string

const (
	// FetchApplied indicates the result replaced the visible page.
	FetchApplied FetchOutcome = "applied"
	// FetchSuperseded indicates a newer request was issued before this one resolved.
	FetchSuperseded FetchOutcome = "superseded"
	// FetchFailed indicates the remote call failed.
	FetchFailed FetchOutcome = "failed"
	// FetchRejected indicates the query was invalid and never sent.
	FetchRejected FetchOutcome = "rejected"
)

// MutationKind labels the granularity of an optimistic mutation.
type MutationKind string

const (
	MutationTool     MutationKind = "tool"
	MutationCategory MutationKind = "category"
	MutationServer   MutationKind = "server"
	MutationToggle   MutationKind = "server_toggle"
)

// MutationOutcome labels how an optimistic mutation ended.
type MutationOutcome string

const (
	// MutationCommitted indicates the remote acknowledged the change.
	MutationCommitted MutationOutcome = "committed"
	// MutationRolledBack indicates local state was restored after a remote failure.
	MutationRolledBack MutationOutcome = "rolled_back"
	// MutationRejected indicates the request failed validation locally.
	MutationRejected MutationOutcome = "rejected"
	// MutationNoop indicates nothing had to change.
	MutationNoop MutationOutcome = "noop"
)

// TreeStats summarizes a built tool tree.
type TreeStats struct {
	Servers    int
	Categories int
	Tools      int
	Enabled    int
	Orphans    int
}

// Metrics records console observability signals.
type Metrics interface {
	ObserveRemoteCall(op string, duration time.Duration, err error)
	ObserveFetch(collection string, outcome FetchOutcome)
	ObserveMutation(kind MutationKind, outcome MutationOutcome, size int)
	SetTreeStats(stats TreeStats)
}

// NoopMetrics discards every observation.
type NoopMetrics struct{}

func (NoopMetrics) ObserveRemoteCall(string, time.Duration, error) {}
func (NoopMetrics) ObserveFetch(string, FetchOutcome) {}
func (NoopMetrics) ObserveMutation(MutationKind, MutationOutcome, int) {}
func (NoopMetrics) SetTreeStats(TreeStats) {}
