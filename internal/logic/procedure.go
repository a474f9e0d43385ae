package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/seantiz/topoctl/internal/propbag"
)

// Execution modes.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Keys of the response bag that carry the procedure's verdict.
const (
	KeyErrorCode    = "error-code"
	KeyErrorMessage = "error-message"
	KeyAckFinal     = "ack-final"
	KeySkipUpdate   = "skip-mdsal-update"
	KeyStatus       = "SvcLogic.status"

	StatusFailure = "failure"
)

var (
	// ErrProcedureNotRegistered means no procedure matches the reference.
	ErrProcedureNotRegistered = errors.New("procedure not registered")

	// ErrExecutionFailed means the procedure ran and raised an error.
	ErrExecutionFailed = errors.New("procedure execution failed")

	// ErrEngineUnreachable means the engine could not be consulted at all.
	ErrEngineUnreachable = errors.New("logic engine unreachable")
)

// ProcedureRef addresses one procedure.
type ProcedureRef struct {
	Module    string `json:"module"`
	Operation string `json:"operation"`
	Version   string `json:"version,omitempty"`
	Mode      string `json:"mode"`
}

func (r ProcedureRef) String() string {
	s := r.Module + "/" + r.Operation
	if r.Version != "" {
		s += "@" + r.Version
	}
	return s + " (" + r.Mode + ")"
}

// Procedure is one decision procedure.
type Procedure interface {
	Execute(ctx context.Context, params propbag.Bag) (propbag.Bag, error)
}

// ProcedureFunc adapts a function to Procedure.
type ProcedureFunc func(ctx context.Context, params propbag.Bag) (propbag.Bag, error)

// Execute calls f.
func (f ProcedureFunc) Execute(ctx context.Context, params propbag.Bag) (propbag.Bag, error) {
	return f(ctx, params)
}

// Engine resolves and runs procedures.
type Engine interface {
	HasProcedure(ctx context.Context, ref ProcedureRef) (bool, error)
	Execute(ctx context.Context, ref ProcedureRef, params propbag.Bag) (propbag.Bag, error)
}

// Error describes a failed procedure lookup or execution. It matches both
// its Kind and its cause with errors.Is.
type Error struct {
	Kind error
	Ref  ProcedureRef
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Ref, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Ref, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
