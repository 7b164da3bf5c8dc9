package codegen

import "fmt"

// ErrKind classifies semantic compilation failures. Each is fatal to the
// whole compilation unit; nothing is retried or partially emitted.
type ErrKind int

const (
	UndefinedVariable ErrKind = iota
	UndefinedFunction
	UnknownOperator
	ConditionalOutsideFunction
	MissingEntryPoint
	MalformedForeignBlock
)

// Error is a semantic error with enough context for a one-line message.
// Name holds the offending identifier or operator, where one exists.
type Error struct {
	Kind ErrKind
	Name string
}

func (e *Error) Error() string {
	switch e.Kind {
	case UndefinedVariable:
		return fmt.Sprintf("undefined variable: %s", e.Name)
	case UndefinedFunction:
		return fmt.Sprintf("undefined function: %s", e.Name)
	case UnknownOperator:
		return fmt.Sprintf("unknown operator: %s", e.Name)
	case ConditionalOutsideFunction:
		return "conditional outside of function"
	case MissingEntryPoint:
		return fmt.Sprintf("no %s function found", e.Name)
	case MalformedForeignBlock:
		return fmt.Sprintf("malformed extern block: %s", e.Name)
	default:
		return "compile error"
	}
}

// ForeignError is an external-tool failure while compiling an extern
// block; Stderr carries the subprocess diagnostics verbatim.
type ForeignError struct {
	Stderr string
	Err    error
}

func (e *ForeignError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("foreign compilation failed: %v\n%s", e.Err, e.Stderr)
	}
	return fmt.Sprintf("foreign compilation failed: %v", e.Err)
}

func (e *ForeignError) Unwrap() error { return e.Err }
