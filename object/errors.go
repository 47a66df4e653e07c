package object

import (
	"errors"
	"fmt"

	"github.com/podhmo/roller/internal/ratio"
)

// ErrorKind classifies runtime errors.
type ErrorKind int

const (
	// InvalidArg is a malformed or out-of-range argument: a bad index, an
	// unknown map key, a duplicate parameter, an unbound identifier.
	InvalidArg ErrorKind = iota + 1
	// UnexpectedType is an operation applied to a value of the wrong kind.
	UnexpectedType
	// UnsupportedOp is an operator with no meaning for its operand types.
	UnsupportedOp
	// ArithmeticError is a well-typed but numerically invalid operation.
	ArithmeticError
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArg:
		return "invalid argument"
	case UnexpectedType:
		return "unexpected type"
	case UnsupportedOp:
		return "unsupported operation"
	case ArithmeticError:
		return "arithmetic error"
	}
	return "error"
}

// Error represents a runtime error. It is both an Object, so it can travel
// through the evaluator like any other result, and a Go error.
type Error struct {
	Kind    ErrorKind
	Message string
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrInvalidArg     = &Error{Kind: InvalidArg}
	ErrUnexpectedType = &Error{Kind: UnexpectedType}
	ErrUnsupportedOp  = &Error{Kind: UnsupportedOp}
	ErrArithmetic     = &Error{Kind: ArithmeticError}
)

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }

func (e *Error) Inspect() string {
	return e.Kind.String() + ": " + e.Message
}

// Error makes it a valid Go error.
func (e *Error) Error() string {
	return e.Inspect()
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// arithmeticError converts a ratio failure into an ArithmeticError.
func arithmeticError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, ratio.ErrDivisionByZero):
		return NewError(ArithmeticError, "division by zero")
	case errors.Is(err, ratio.ErrOverflow):
		return NewError(ArithmeticError, "integer overflow")
	}
	return NewError(ArithmeticError, "%v", err)
}
