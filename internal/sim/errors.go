package sim

import "fmt"

// Code is one of the error kinds spec.md §7 surfaces from the core.
type Code string

const (
	// ConfigInvalid: vl*sew > vlen, or a required port limit of zero.
	// Config validation happens before Run, in internal/config, but the
	// core re-surfaces it as a SimError so callers have one error type
	// to switch on.
	ConfigInvalid Code = "ConfigInvalid"
	// IndexOutOfRange: a Producer event addressed a non-existent input
	// resource.
	IndexOutOfRange Code = "IndexOutOfRange"
	// NoDestination: a Consumer event was applied to a buffer pair whose
	// result resource is unset.
	NoDestination Code = "NoDestination"
	// BufferStateViolation: an attempt to read current-bytes from a
	// buffer whose resource mix is malformed (e.g. two memory resources
	// on one input).
	BufferStateViolation Code = "BufferStateViolation"
	// UnsupportedInstruction: a decoded instruction whose opcode the
	// core's issue logic does not map to any functional-unit key.
	UnsupportedInstruction Code = "UnsupportedInstruction"
)

// SimError is the structured error type the core raises, in the shape
// of go-ublk's errors.go: a high-level Code, the operation that failed,
// the cycle it failed on, and an optionally wrapped inner error.
type SimError struct {
	Code  Code
	Op    string
	Cycle uint64
	Inner error
}

func (e *SimError) Error() string {
	msg := fmt.Sprintf("sim: %s", e.Code)
	if e.Op != "" {
		msg += fmt.Sprintf(" during %s", e.Op)
	}
	msg += fmt.Sprintf(" (cycle %d)", e.Cycle)
	if e.Inner != nil {
		msg += fmt.Sprintf(": %v", e.Inner)
	}
	return msg
}

func (e *SimError) Unwrap() error { return e.Inner }

// Is supports errors.Is(err, &SimError{Code: ...}) comparisons by Code
// alone, the way go-ublk's *Error.Is compares by high-level category.
func (e *SimError) Is(target error) bool {
	t, ok := target.(*SimError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newErr(code Code, op string, cycle uint64) *SimError {
	return &SimError{Code: code, Op: op, Cycle: cycle}
}
