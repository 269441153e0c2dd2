package agent

import (
	"errors"
	"fmt"
)

// ErrorKind classifies turn and tool failures for clients and for the
// synthetic results fed back to the model.
type ErrorKind string

const (
	KindInvalidArguments     ErrorKind = "invalid_arguments"
	KindSandboxDenied        ErrorKind = "sandbox_denied"
	KindConfirmationDenied   ErrorKind = "confirmation_denied"
	KindConfirmationTimeout  ErrorKind = "confirmation_timeout"
	KindToolTimeout          ErrorKind = "tool_timeout"
	KindToolFailure          ErrorKind = "tool_failure"
	KindInferenceUnavailable ErrorKind = "inference_unavailable"
	KindTurnBudgetExceeded   ErrorKind = "turn_budget_exceeded"
)

// TurnError is a terminal turn failure. Tool-level failures are not turn
// errors; they become results the model sees and recovers from.
type TurnError struct {
	Kind    ErrorKind
	Message string
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn failed (%s): %s", e.Kind, e.Message)
}

// ErrTurnActive is returned when a turn starts while another is running on
// the same session.
var ErrTurnActive = errors.New("a turn is already in progress for this session")

// ErrConfirmTimeout is returned by the gate when no resolution arrives in time.
var ErrConfirmTimeout = errors.New("confirmation timed out")
