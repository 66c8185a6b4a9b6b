// Package interp evaluates IR bodies at compile time: an explicit frame
// stack, a fetch-execute step loop and a typed memory arena behind it.
package interp

import (
	"fmt"
	"strings"

	"constvm/internal/mem"
)

// EvalCode identifies the type of an evaluation fault.
type EvalCode int

// Stable fault codes - do not change values.
const (
	EvalMemoryFault   EvalCode = 3001 // CE3001: typed memory access fault
	EvalTypeMismatch  EvalCode = 3002 // CE3002: operand/place type mismatch
	EvalNullDeref     EvalCode = 3003 // CE3003: dereference of a null or integer pointer
	EvalUnreachable   EvalCode = 3004 // CE3004: unreachable terminator executed
	EvalAssertFailed  EvalCode = 3005 // CE3005: assert condition not met
	EvalOverflow      EvalCode = 3006 // CE3006: arithmetic overflow
	EvalDivByZero     EvalCode = 3007 // CE3007: division or remainder by zero
	EvalNotConst      EvalCode = 3008 // CE3008: operation not evaluable at compile time
	EvalStepLimit     EvalCode = 3009 // CE3009: step budget exhausted
	EvalStackOverflow EvalCode = 3010 // CE3010: frame stack depth exceeded
	EvalLayout        EvalCode = 3011 // CE3011: layout computation failed
	EvalMutableGlobal EvalCode = 3012 // CE3012: read of mutable global state
	EvalDeadLocal     EvalCode = 3013 // CE3013: access to a dead local
	EvalBadVariant    EvalCode = 3014 // CE3014: invalid enum discriminant
	EvalUnimplemented EvalCode = 3999 // CE3999: unimplemented operation
)

// String returns the code as "CE3001" format.
func (c EvalCode) String() string {
	return fmt.Sprintf("CE%d", c)
}

// BacktraceFrame represents one frame in the fault backtrace.
type BacktraceFrame struct {
	FuncName string
	Block    int
	Stmt     int
}

// EvalError represents a failed evaluation. It carries the full frame
// stack at the point of the fault, top frame first.
type EvalError struct {
	Code      EvalCode
	Message   string
	Backtrace []BacktraceFrame
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("eval %s: %s", e.Code, e.Message)
}

// Format renders the fault with its backtrace.
func (e *EvalError) Format() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("eval %s: %s\n", e.Code, e.Message))
	if len(e.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, frame := range e.Backtrace {
			sb.WriteString(fmt.Sprintf("  %d: %s at bb%d[%d]\n", i, frame.FuncName, frame.Block, frame.Stmt))
		}
	}
	return sb.String()
}

// errorBuilder constructs EvalError values with the evaluator's current
// backtrace attached.
type errorBuilder struct {
	ev *Eval
}

func (eb *errorBuilder) makeError(code EvalCode, msg string) *EvalError {
	e := &EvalError{
		Code:    code,
		Message: msg,
	}
	e.Backtrace = make([]BacktraceFrame, len(eb.ev.Stack))
	for i := len(eb.ev.Stack) - 1; i >= 0; i-- {
		frame := &eb.ev.Stack[i]
		e.Backtrace[len(eb.ev.Stack)-1-i] = BacktraceFrame{
			FuncName: frame.Body.Name,
			Block:    int(frame.BB),
			Stmt:     frame.IP,
		}
	}
	return e
}

func (eb *errorBuilder) memFault(err *mem.AccessError) *EvalError {
	return eb.makeError(EvalMemoryFault, err.Error())
}

func (eb *errorBuilder) typeMismatch(expected, got string) *EvalError {
	return eb.makeError(EvalTypeMismatch, fmt.Sprintf("expected %s, got %s", expected, got))
}

func (eb *errorBuilder) nullDeref(bits uint64) *EvalError {
	if bits == 0 {
		return eb.makeError(EvalNullDeref, "dereference of null pointer")
	}
	return eb.makeError(EvalNullDeref, fmt.Sprintf("dereference of integer address %#x", bits))
}

func (eb *errorBuilder) assertFailed(msg string) *EvalError {
	return eb.makeError(EvalAssertFailed, msg)
}

func (eb *errorBuilder) overflow(op string) *EvalError {
	return eb.makeError(EvalOverflow, fmt.Sprintf("arithmetic overflow in %s", op))
}

func (eb *errorBuilder) divByZero(op string) *EvalError {
	return eb.makeError(EvalDivByZero, fmt.Sprintf("%s by zero", op))
}

func (eb *errorBuilder) notConst(what string) *EvalError {
	return eb.makeError(EvalNotConst, what)
}

func (eb *errorBuilder) layoutFault(err error) *EvalError {
	return eb.makeError(EvalLayout, err.Error())
}

func (eb *errorBuilder) deadLocal(name string) *EvalError {
	return eb.makeError(EvalDeadLocal, fmt.Sprintf("local %q is not live", name))
}

func (eb *errorBuilder) badVariant(got uint64, count int) *EvalError {
	return eb.makeError(EvalBadVariant, fmt.Sprintf("discriminant %d out of range for %d variants", got, count))
}

func (eb *errorBuilder) unimplemented(what string) *EvalError {
	return eb.makeError(EvalUnimplemented, fmt.Sprintf("unimplemented: %s", what))
}
