package vm

import (
	"github.com/kristofer/corevm/internal/value"
)

// CallContextArgs is a convenience wrapper over value.CallContext for
// extern functions that marshal a small, fixed number of String/Int
// arguments and return a single String or error — the overwhelming
// majority of the stdlib bridge's primitives (spec 4.G).
type CallContextArgs struct {
	ctx    value.CallContext
	thread *Thread
}

// OneString reads a single String argument.
func (a CallContextArgs) OneString() (string, error) {
	if a.ctx.NumArgs() != 1 {
		return "", Errorf("expected 1 argument, got %d", a.ctx.NumArgs())
	}
	return GetStr(a.ctx.Arg(0))
}

// TwoStrings reads two String arguments.
func (a CallContextArgs) TwoStrings() (string, string, error) {
	if a.ctx.NumArgs() != 2 {
		return "", "", Errorf("expected 2 arguments, got %d", a.ctx.NumArgs())
	}
	s0, err := GetStr(a.ctx.Arg(0))
	if err != nil {
		return "", "", &CallArgsError{Index: 0, Err: err}
	}
	s1, err := GetStr(a.ctx.Arg(1))
	if err != nil {
		return "", "", &CallArgsError{Index: 1, Err: err}
	}
	return s0, s1, nil
}

// OneInt reads a single Int argument.
func (a CallContextArgs) OneInt() (int64, error) {
	if a.ctx.NumArgs() != 1 {
		return 0, Errorf("expected 1 argument, got %d", a.ctx.NumArgs())
	}
	return GetInt(a.ctx.Arg(0))
}

// Arg exposes the raw i-th argument for primitives that need more than
// the String/Int convenience accessors above.
func (a CallContextArgs) Arg(i int) value.Value { return a.ctx.Arg(i) }

// NumArgs reports how many arguments were passed.
func (a CallContextArgs) NumArgs() int { return a.ctx.NumArgs() }

// Thread returns the thread the call is running on, for primitives that
// need to allocate something other than a plain string result.
func (a CallContextArgs) Thread() *Thread { return a.thread }

// OkString allocates and pushes a successful String result (spec 4.G:
// "the callback must leave exactly one value on top of the stack").
func (a CallContextArgs) OkString(s string) {
	a.ctx.PushResult(a.thread.PushStr(s))
}

// OkBool pushes a successful boolean result via the tagged-Data
// convention (see marshal.go's PushBool).
func (a CallContextArgs) OkBool(b bool) {
	a.ctx.PushResult(a.thread.PushBool(b))
}

// OkValue pushes an already-constructed Value as the result.
func (a CallContextArgs) OkValue(v value.Value) {
	a.ctx.PushResult(v)
}

// Fail reports err as the call's Status::Error result (spec 4.G, "the
// error message on Status::Error").
func (a CallContextArgs) Fail(err error) {
	a.ctx.PushError(err.Error())
}

// Bridge adapts a Go function taking (*Thread, CallContextArgs) into the
// bare value.CallContext callback ExternFunction.Callback expects,
// closing over the owning thread so primitives never need to smuggle it
// through the stack themselves.
func Bridge(t *Thread, fn func(*Thread, CallContextArgs)) func(value.CallContext) {
	return func(ctx value.CallContext) {
		fn(t, CallContextArgs{ctx: ctx, thread: t})
	}
}
