// Package value implements the VM's tagged Value union and the heap
// object kinds it can point to (spec.md section 3, "Data Model", and
// section 4.B "Value & Equality").
//
// Value is a small fixed-size struct rather than a Go interface: Int and
// Float live inline, everything else is a pointer to a heap object that
// embeds gc.Header. This mirrors the teacher's own flat stack-of-interface{}
// design (pkg/vm/vm.go's `stack []interface{}`) while keeping the GC's
// precise-tracing contract: a Value knows how to Trace itself without a
// type switch living outside this package.
package value

import (
	"fmt"

	"github.com/kristofer/corevm/internal/gc"
)

// Kind identifies which variant of the tagged union a Value holds.
type Kind byte

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindData
	KindFunction
	KindClosure
	KindPartialApplication
	KindUserdata
	KindLazy
	KindThread
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindData:
		return "Data"
	case KindFunction:
		return "Function"
	case KindClosure:
		return "Closure"
	case KindPartialApplication:
		return "PartialApplication"
	case KindUserdata:
		return "Userdata"
	case KindLazy:
		return "Lazy"
	case KindThread:
		return "Thread"
	default:
		return "Unknown"
	}
}

// Value is the single universal type every stack slot, cell, upvar and
// global holds (spec 3, "Value"). Int and Float are unboxed; every other
// kind carries a pointer to a heap object.
type Value struct {
	kind Kind
	i    int64
	f    float64
	ptr  gc.Traceable
}

// Int returns an unboxed integer value.
func Int(n int64) Value { return Value{kind: KindInt, i: n} }

// Float returns an unboxed floating-point value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a Value wrapping a heap-allocated Str.
func String(s *Str) Value { return Value{kind: KindString, ptr: s} }

// Data returns a Value wrapping a heap-allocated DataStruct.
func Data(d *DataStruct) Value { return Value{kind: KindData, ptr: d} }

// Function returns a Value wrapping a foreign (host-implemented)
// function. Per spec section 3, Value's "Function" variant is the
// foreign-function object — an ordinary compiled function is always
// wrapped as a Closure, even one with zero upvars.
func Function(f *ExternFunction) Value { return Value{kind: KindFunction, ptr: f} }

// Closure returns a Value wrapping a closure over a bytecode function and
// its captured upvars.
func Closure(c *ClosureData) Value { return Value{kind: KindClosure, ptr: c} }

// PartialApplication returns a Value wrapping a partially-applied
// callable.
func PartialApplication(p *PartialApplicationData) Value {
	return Value{kind: KindPartialApplication, ptr: p}
}

// Userdata returns a Value wrapping host-defined opaque data.
func Userdata(u *UserdataValue) Value { return Value{kind: KindUserdata, ptr: u} }

// LazyValue returns a Value wrapping a suspended thunk.
func LazyValue(l *Lazy) Value { return Value{kind: KindLazy, ptr: l} }

// ThreadValue returns a Value wrapping a lightweight-thread handle.
func ThreadValue(t *ThreadRef) Value { return Value{kind: KindThread, ptr: t} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// IsInt reports whether v holds an unboxed Int.
func (v Value) IsInt() bool { return v.kind == KindInt }

// AsInt returns the Int payload. Callers must check Kind first; AsInt
// panics on a kind mismatch, the same contract smog's `send()` type
// assertions enforce on `interface{}` operands.
func (v Value) AsInt() int64 {
	v.mustBe(KindInt)
	return v.i
}

// AsFloat returns the Float payload.
func (v Value) AsFloat() float64 {
	v.mustBe(KindFloat)
	return v.f
}

// AsString returns the *Str payload.
func (v Value) AsString() *Str {
	v.mustBe(KindString)
	return v.ptr.(*Str)
}

// AsData returns the *DataStruct payload.
func (v Value) AsData() *DataStruct {
	v.mustBe(KindData)
	return v.ptr.(*DataStruct)
}

// AsFunction returns the *ExternFunction payload.
func (v Value) AsFunction() *ExternFunction {
	v.mustBe(KindFunction)
	return v.ptr.(*ExternFunction)
}

// AsClosure returns the *ClosureData payload.
func (v Value) AsClosure() *ClosureData {
	v.mustBe(KindClosure)
	return v.ptr.(*ClosureData)
}

// AsPartialApplication returns the *PartialApplicationData payload.
func (v Value) AsPartialApplication() *PartialApplicationData {
	v.mustBe(KindPartialApplication)
	return v.ptr.(*PartialApplicationData)
}

// AsUserdata returns the *UserdataValue payload.
func (v Value) AsUserdata() *UserdataValue {
	v.mustBe(KindUserdata)
	return v.ptr.(*UserdataValue)
}

// AsLazy returns the *Lazy payload.
func (v Value) AsLazy() *Lazy {
	v.mustBe(KindLazy)
	return v.ptr.(*Lazy)
}

// AsThread returns the *ThreadRef payload.
func (v Value) AsThread() *ThreadRef {
	v.mustBe(KindThread)
	return v.ptr.(*ThreadRef)
}

// IsCallable reports whether v can appear as the callee of Call/TailCall
// (spec 4.D): a Function, Closure, or PartialApplication.
func (v Value) IsCallable() bool {
	switch v.kind {
	case KindFunction, KindClosure, KindPartialApplication:
		return true
	default:
		return false
	}
}

func (v Value) mustBe(k Kind) {
	if v.kind != k {
		panic(fmt.Sprintf("value: expected %s, got %s", k, v.kind))
	}
}

// Trace marks every heap object v directly references (spec 4.A,
// "roots"). Int and Float are inline and have nothing to mark.
func (v Value) Trace(m *gc.Marker) {
	if v.ptr != nil {
		m.Visit(v.ptr)
	}
}

// Equal implements the VM's Value equality exactly as spec 4.B defines
// it: Int/Float/String compare by value; Data compares its tag and then
// recursively compares fields; Userdata compares by pointer identity;
// every other kind (Function, Closure, PartialApplication, Lazy, Thread)
// is never equal to anything, including itself — these are reference-
// identity-bearing runtime objects that the language gives no equality
// operator over.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInt:
		return a.i == b.i
	case KindFloat:
		return a.f == b.f
	case KindString:
		return a.AsString().Value == b.AsString().Value
	case KindData:
		return dataEqual(a.AsData(), b.AsData())
	case KindUserdata:
		return a.AsUserdata() == b.AsUserdata()
	default:
		return false
	}
}

func dataEqual(a, b *DataStruct) bool {
	if a.Tag != b.Tag || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Fields {
		if !Equal(a.Fields[i].Get(), b.Fields[i].Get()) {
			return false
		}
	}
	return true
}
