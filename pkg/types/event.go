// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EventStatus is the lifecycle state a progress event reports.
type EventStatus string

const (
	StatusRunning   EventStatus = "running"
	StatusCompleted EventStatus = "completed"
	StatusError     EventStatus = "error"
)

// Pipeline step names carried in progress events. The streaming client keys
// its step indicator off these values.
const (
	StepRewrite   = "query_rewrite"
	StepSearch    = "search"
	StepAbstract  = "abstract"
	StepFilter    = "filter"
	StepCompleted = "completed"
)

// ProgressEvent is a transient status notification describing pipeline
// advancement. Events are produced by a stage, consumed exactly once by the
// progress stream, and never persisted.
type ProgressEvent struct {
	Step    string      `json:"step"`
	Message string      `json:"message"`
	Status  EventStatus `json:"status"`

	// QuotaRemaining is attached to the first event of a run so the client
	// can display the remaining allowance immediately. Nil elsewhere.
	QuotaRemaining *int `json:"quota_remaining,omitempty"`
}

// ProgressSink receives progress events from the orchestrator. Implementations
// must be safe to call from the orchestrator goroutine only; stages running on
// background workers hand events off through the progress bridge instead of
// calling the sink directly.
type ProgressSink func(ProgressEvent)

// DiscardProgress is the no-op sink used by one-shot callers.
func DiscardProgress(ProgressEvent) {}
