// Package stack implements the VM's single evaluation stack and the frame
// bookkeeping layered over it (spec.md section 4.C, "Evaluation Stack").
//
// There is one flat []value.Value backing every frame; a Frame is a
// window (Base, InstructionIndex, Function, Excess) over a contiguous
// range of it, the same relationship smog's vm.go describes between its
// `stack []interface{}` and `locals []interface{}` — except here locals
// and arguments and temporaries all share the one array, sliced by frame,
// per spec 4.C.
package stack

import (
	"fmt"

	"github.com/kristofer/corevm/internal/gc"
	"github.com/kristofer/corevm/internal/value"
)

// Frame describes one call's window onto the shared value stack (spec 3,
// "Stack frame").
type Frame struct {
	// Base is the index of the first argument slot; the callable itself
	// sits at Base-1.
	Base int
	// InstructionIndex is the resumption point within Function, restored
	// into the interpreter's instruction pointer when this frame regains
	// control.
	InstructionIndex int
	// Function is the callable running in this frame. Nil only for the
	// outermost root frame (module entry, spec 4.E "Module entry").
	Function *value.Callable
	// Excess holds over-application's leftover arguments, stashed beneath
	// this frame until it returns (spec "Design notes", "Over-application
	// across returns"). Nil when there is none.
	Excess *value.DataStruct
}

// RootFrame returns the initial frame module-level evaluation runs in:
// base 0, no callable, no resumption point.
func RootFrame() Frame {
	return Frame{Base: 0, InstructionIndex: 0, Function: nil}
}

// Stack is the VM's single evaluation stack plus its frame list (spec
// 4.C). Both are rooted for GC purposes: every live frame's callable and
// every value slot between frame bases is reachable.
type Stack struct {
	values []value.Value
	frames []Frame
}

// New returns an empty stack with the root frame pushed.
func New() *Stack {
	return &Stack{frames: []Frame{RootFrame()}}
}

// Len reports the number of values currently on the stack.
func (s *Stack) Len() int { return len(s.values) }

// At reads the absolute stack slot i.
func (s *Stack) At(i int) value.Value {
	return s.values[i]
}

// Set writes the absolute stack slot i.
func (s *Stack) Set(i int, v value.Value) {
	s.values[i] = v
}

// Push appends v to the top of the stack.
func (s *Stack) Push(v value.Value) {
	s.values = append(s.values, v)
}

// Pop removes and returns the top value. It panics on an empty stack —
// popping past empty indicates a compiler or interpreter bug (spec 7,
// category 4), never a user-reachable condition.
func (s *Stack) Pop() value.Value {
	n := len(s.values)
	if n == 0 {
		panic("stack: pop on empty stack")
	}
	v := s.values[n-1]
	s.values = s.values[:n-1]
	return v
}

// Top returns the top value without removing it.
func (s *Stack) Top() value.Value {
	return s.values[len(s.values)-1]
}

// PopN removes and returns the top n values in push order (oldest first).
func (s *Stack) PopN(n int) []value.Value {
	l := len(s.values)
	out := make([]value.Value, n)
	copy(out, s.values[l-n:])
	s.values = s.values[:l-n]
	return out
}

// InsertSlice inserts vs at absolute index at, shifting everything from
// at onward upward. Used by the calling convention to splice a partial
// application's bound arguments in just above the callee, and to place
// the over-application excess bundle one slot below the callee.
func (s *Stack) InsertSlice(at int, vs []value.Value) {
	s.values = append(s.values[:at], append(append([]value.Value{}, vs...), s.values[at:]...)...)
}

// RemoveRange deletes the half-open slot range [from, to) in place. Used
// by TailCall to discard a frame's locals before re-dispatching the call
// in place (spec 4.E "Tail calls").
func (s *Stack) RemoveRange(from, to int) {
	s.values = append(s.values[:from], s.values[to:]...)
}

// Truncate shrinks the stack to exactly n values, discarding everything
// above. Used when a frame returns and its whole window collapses to a
// single result slot.
func (s *Stack) Truncate(n int) {
	s.values = s.values[:n]
}

// PushFrame opens a new frame with Base set per spec 4.C's enter_scope:
// the n_params arguments already pushed for the call become this frame's
// argument window, and the callable that was sitting beneath them remains
// addressable at Base-1.
//
// Design note: spec 4.C literally states base = current_len - n_params -
// 1. Read together with the stated invariant ("the slot at base-1 holds
// the callable that created the frame" and "slots base..base+arity are
// the call arguments"), that formula places base one slot too low — it
// would point at the callable itself. COREVM uses base = current_len -
// n_params, which is what makes those two invariants consistent with one
// another; see DESIGN.md.
func (s *Stack) PushFrame(nParams int, fn value.Callable, excess *value.DataStruct) {
	base := len(s.values) - nParams
	s.frames = append(s.frames, Frame{Base: base, InstructionIndex: 0, Function: &fn, Excess: excess})
}

// PopFrame discards the current (topmost) frame and returns it. It
// panics if the root frame would be popped — the interpreter never
// returns out of the outermost frame, it stops (spec 4.E "Return").
func (s *Stack) PopFrame() Frame {
	n := len(s.frames)
	if n <= 1 {
		panic("stack: pop of root frame")
	}
	f := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return f
}

// CurrentFrame returns a pointer to the topmost frame, mutable in place so
// the interpreter can advance InstructionIndex without a separate Set call.
func (s *Stack) CurrentFrame() *Frame {
	return &s.frames[len(s.frames)-1]
}

// Depth reports the number of live frames, used by the dispatch loop to
// tell when a call has returned and by the tail-call constant-depth test.
func (s *Stack) Depth() int { return len(s.frames) }

// Frames returns a copy of the live frame list, outermost first, for
// diagnostics that outlive the frames themselves (the call stack recorded
// in a vm.Error).
func (s *Stack) Frames() []Frame {
	out := make([]Frame, len(s.frames))
	copy(out, s.frames)
	return out
}

// GetUpvar reads upvar i of the closure running in the current frame. It
// panics if the current frame's callable is not a closure or i is out of
// range — both indicate a compiler bug, since PushUpVar is only ever
// emitted inside a closure body compiled against a known upvar list.
func (s *Stack) GetUpvar(i int) value.Value {
	f := s.CurrentFrame()
	if f.Function == nil || f.Function.Closure == nil {
		panic("stack: PushUpVar outside a closure frame")
	}
	up := f.Function.Closure.Upvars
	if i < 0 || i >= len(up) {
		panic(fmt.Sprintf("stack: upvar index %d out of range (0..%d)", i, len(up)))
	}
	return up[i].Get()
}

// Trace marks every live value slot and every live frame's callable,
// making the stack a GC root (spec 4.H, "the evaluation stack is always
// rooted").
func (s *Stack) Trace(m *gc.Marker) {
	for _, v := range s.values {
		v.Trace(m)
	}
	for i := range s.frames {
		if s.frames[i].Function != nil {
			s.frames[i].Function.Trace(m)
		}
		if s.frames[i].Excess != nil {
			m.Visit(s.frames[i].Excess)
		}
	}
}
