package copilot

import "errors"

var (
	// ErrGateDenied means the budget/permission gateway refused a tool call
	// the workflow needed.
	ErrGateDenied = errors.New("tool call denied by gateway")

	// ErrNotPaused means a resume or rejection was attempted on a run that
	// is not sitting at a checkpoint.
	ErrNotPaused = errors.New("workflow is not paused")
)

func IsGateDenied(err error) bool {
	return errors.Is(err, ErrGateDenied)
}

func IsNotPaused(err error) bool {
	return errors.Is(err, ErrNotPaused)
}
