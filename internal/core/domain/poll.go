package domain

import (
	"fmt"
	"time"
)

// PollState is the client-side progress state of a search session.
type PollState string

const (
	PollWaiting    PollState = "waiting"
	PollProcessing PollState = "processing"
	PollCompleted  PollState = "completed"
	PollFailed     PollState = "error"
)

// IsTerminal reports whether the poll loop has finished.
func (s PollState) IsTerminal() bool {
	return s == PollCompleted || s == PollFailed
}

// PollErrorKind distinguishes why polling ended in error.
type PollErrorKind string

const (
	// PollTimeout means the budget elapsed without a result
	PollTimeout PollErrorKind = "timeout"
	// PollTransport means the budget elapsed while results could not be retrieved
	PollTransport PollErrorKind = "transport"
	// PollReported means the workflow reported a failure for the session
	PollReported PollErrorKind = "reported"
)

// PollError is the terminal error of a poll loop.
type PollError struct {
	Kind     PollErrorKind
	Attempts int
	Elapsed  time.Duration
	Budget   time.Duration
	// Cause is the last transport error or the reported failure, if any
	Cause error
}

func (e *PollError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("poll %s after %d attempts: %v", e.Kind, e.Attempts, e.Cause)
	}
	return fmt.Sprintf("poll %s after %d attempts", e.Kind, e.Attempts)
}

func (e *PollError) Unwrap() error {
	return e.Cause
}

// budgetText spells a budget in whole seconds, or as a duration below one second.
func budgetText(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}
	secs := int(d.Round(time.Second).Seconds())
	if secs == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", secs)
}

// UserMessage returns the actionable message shown to the end user.
func (e *PollError) UserMessage() string {
	switch e.Kind {
	case PollTimeout:
		return fmt.Sprintf("Timeout - results not found within %s. Please try again.", budgetText(e.Budget))
	case PollTransport:
		return "Error retrieving results. Please try again."
	default:
		return "The search could not be completed. Please try again."
	}
}
