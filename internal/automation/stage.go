// Package automation orchestrates chat-triggered booking runs: it accepts an
// untrusted instruction payload extracted from an assistant reply and drives
// the currently registered booking session through a paced
// scroll -> fill -> submit sequence.
package automation

import "context"

// Stage is the phase of an in-flight automation run. Exactly one stage value
// exists process-wide at a time.
type Stage string

const (
	StageIdle       Stage = "idle"
	StagePending    Stage = "pending"
	StageScrolling  Stage = "scrolling"
	StageFilling    Stage = "filling"
	StageSubmitting Stage = "submitting"
	StageCompleted  Stage = "completed"
	StageError      Stage = "error"
)

// Active reports whether a run is pending or in progress.
func (s Stage) Active() bool {
	switch s {
	case StagePending, StageScrolling, StageFilling, StageSubmitting:
		return true
	}
	return false
}

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageError
}

// Payload is the booking intent extracted from an assistant reply. It is
// untrusted input: any field may be absent, malformed, or reference a
// nonexistent agent. Consumers skip what they cannot apply and continue.
type Payload struct {
	AgentID      string `json:"agentId,omitempty"`
	AgentName    string `json:"agentName,omitempty"`
	Date         string `json:"date"` // YYYY-MM-DD
	Time         string `json:"time"` // HH:mm
	Timezone     string `json:"timezone"`
	CustomerName string `json:"customerName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
}

// TargetHandle is the capability a mounted booking session registers so a run
// can drive it. Every field is optional; a missing capability is a no-op, not
// an error.
type TargetHandle struct {
	ScrollIntoView func(ctx context.Context) error
	FillForm       func(ctx context.Context, p Payload) error
	SubmitForm     func(ctx context.Context, p Payload) error
}
