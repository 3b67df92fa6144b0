package backend

import (
	"errors"
	"fmt"
)

// FailureKind classifies where a failure happened and how it is surfaced
type FailureKind int

const (
	// StartupFailure is fatal to the session until the wizard is reloaded.
	StartupFailure FailureKind = iota + 1
	// BackgroundCheckFailure is logged and never shown.
	BackgroundCheckFailure
	// ActionFailure is shown in a modal and does not change the step.
	ActionFailure
)

func (k FailureKind) String() string {
	switch k {
	case StartupFailure:
		return "startup"
	case BackgroundCheckFailure:
		return "background check"
	case ActionFailure:
		return "action"
	default:
		return "unknown"
	}
}

var (
	ErrPollerRunning        = errors.New("update poller already running")
	ErrClipboardUnavailable = errors.New("clipboard unavailable")
	ErrNoApplication        = errors.New("application not attached")
)

// Failure wraps an error returned by an external operation
type Failure struct {
	Kind FailureKind
	Op   string
	Err  error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s failure: %s: %v", f.Kind, f.Op, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// failureDetail returns the message of the underlying error, without the
// kind and operation prefix.
func failureDetail(err error) string {
	var f *Failure
	if errors.As(err, &f) && f.Err != nil {
		return f.Err.Error()
	}
	return err.Error()
}
