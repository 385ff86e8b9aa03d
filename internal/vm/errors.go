// vm errors — stack-trace-carrying runtime errors (spec section 7).
package vm

import (
	"fmt"
	"strings"
)

// Frame is a single entry in an Error's recorded call stack: enough to
// render a readable trace without holding onto live stack.Frame state
// (which may already have been popped by the time the error surfaces).
type Frame struct {
	Name             string
	InstructionIndex int
}

// Error is the single structured error kind the core needs (spec 6,
// "Error surface": a single structured Error::Message is sufficient).
// It carries the call stack captured at the point of failure, the way
// smog's RuntimeError does, so a host can print a trace without the VM
// keeping any in-band exception machinery (spec 7, "Propagation").
type Error struct {
	Message string
	Trace   []Frame
}

// Error implements the error interface, rendering message plus trace in
// innermost-first order — the same rendering smog's RuntimeError.Error
// uses, reversed so the call that actually failed prints first.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Trace) > 0 {
		b.WriteString("\n\nStack trace:")
		for i := len(e.Trace) - 1; i >= 0; i-- {
			f := e.Trace[i]
			b.WriteString(fmt.Sprintf("\n  at %s [ip %d]", f.Name, f.InstructionIndex))
		}
	}
	return b.String()
}

// WithTrace returns a copy of e with trace attached, for wrapping an
// error raised deep in the dispatch loop once it's unwound enough frames
// to know the full call stack.
func (e *Error) WithTrace(trace []Frame) *Error {
	return &Error{Message: e.Message, Trace: trace}
}

// Errorf builds an *Error the way smog's newRuntimeError helper builds a
// *RuntimeError, without a trace attached yet.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// errorf builds an *Error and attaches the call stack live at t the
// moment it's raised — the dispatch loop never pops frames on the way
// out of an error, so capturing here already has the full trace (spec
// 7, "Propagation").
func (t *Thread) errorf(format string, args ...interface{}) *Error {
	return Errorf(format, args...).WithTrace(t.captureTrace())
}

// captureTrace snapshots the live call stack as a []Frame, outermost
// frame first, matching Error.Error()'s reversed rendering (innermost,
// the frame that actually failed, prints first).
func (t *Thread) captureTrace() []Frame {
	frames := t.stack.Frames()
	trace := make([]Frame, len(frames))
	for i, f := range frames {
		name := "<module>"
		if f.Function != nil {
			name = f.Function.Name()
		}
		trace[i] = Frame{Name: name, InstructionIndex: f.InstructionIndex}
	}
	return trace
}
