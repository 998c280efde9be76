package governance

import (
	"errors"
	"fmt"
)

var (
	// ErrIntegrationNotConfigured indicates a code-repository-dependent
	// action was dispatched with no repository client configured.
	ErrIntegrationNotConfigured = errors.New("code repository integration not configured")

	// ErrChangeNotFound indicates an unknown pending change id.
	ErrChangeNotFound = errors.New("pending change not found")

	// ErrNotApproved indicates execution of a change that is not in the
	// approved state.
	ErrNotApproved = errors.New("pending change is not approved")

	// ErrAlreadyExecuted indicates execution of an already-executed change.
	ErrAlreadyExecuted = errors.New("pending change already executed")

	// ErrAlreadyReviewed indicates approve/reject of a change that already
	// left the pending state.
	ErrAlreadyReviewed = errors.New("pending change already reviewed")
)

// UnknownActionError is raised at dispatch time for unrecognized kinds.
type UnknownActionError struct {
	Action ActionKind
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown AI action %q", string(e.Action))
}

// InvalidParamsError is raised when a gated action's params fail schema
// validation at queue time.
type InvalidParamsError struct {
	Action ActionKind
	Err    error
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid params for %s: %v", string(e.Action), e.Err)
}

func (e *InvalidParamsError) Unwrap() error { return e.Err }
