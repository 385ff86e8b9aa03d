package value

import (
	"fmt"

	"github.com/kristofer/corevm/internal/bytecode"
	"github.com/kristofer/corevm/internal/gc"
)

// Cell is a single mutable heap slot (spec 3, "Cell"): every upvar and
// every Data field lives in a Cell so that a closure capturing it and the
// frame that created it observe the same mutations. Cell is not itself a
// Value kind — it's the storage a Value sits in.
type Cell struct {
	v Value
}

// NewCell creates a cell holding v.
func NewCell(v Value) *Cell { return &Cell{v: v} }

// Get reads the cell's current value.
func (c *Cell) Get() Value { return c.v }

// Set overwrites the cell's value.
func (c *Cell) Set(v Value) { c.v = v }

// Trace marks the cell's current contents.
func (c *Cell) Trace(m *gc.Marker) { c.v.Trace(m) }

// Str is a heap-allocated, immutable string (spec 3).
type Str struct {
	gc.Header
	Value string
}

// Trace is a no-op: strings hold no pointers.
func (s *Str) Trace(m *gc.Marker) {}

// strDataDef is the DataDef smog-style string allocation goes through.
type strDataDef struct{ s string }

func (d strDataDef) Size() uintptr     { return uintptr(len(d.s)) + 16 }
func (d strDataDef) Init() gc.Traceable { return &Str{Value: d.s} }

// StrDataDef builds the DataDef for allocating a new Str.
func StrDataDef(s string) gc.DataDef { return strDataDef{s: s} }

// DataStruct is a tagged, fixed-arity record (spec 3, "DataStruct") —
// the runtime representation of every constructed algebraic-data value.
// Tag distinguishes constructors of the same type (e.g. Nil vs Cons);
// Fields are Cells so that field mutation (where the source language
// permits it) is visible to every holder of the value.
type DataStruct struct {
	gc.Header
	Tag    uint32
	Fields []*Cell
}

// Trace marks every field cell.
func (d *DataStruct) Trace(m *gc.Marker) {
	for _, c := range d.Fields {
		c.Trace(m)
	}
}

// Field returns the value in field i, panicking on an out-of-range index
// the way smog's bounds-checked array primitives do.
func (d *DataStruct) Field(i int) Value {
	if i < 0 || i >= len(d.Fields) {
		panic(fmt.Sprintf("value: field index %d out of range (0..%d)", i, len(d.Fields)))
	}
	return d.Fields[i].Get()
}

// dataDataDef is the DataDef for Construct/over-application bundling.
type dataDataDef struct {
	tag    uint32
	fields []Value
}

func (d dataDataDef) Size() uintptr { return uintptr(len(d.fields))*24 + 16 }

func (d dataDataDef) Init() gc.Traceable {
	cells := make([]*Cell, len(d.fields))
	for i, v := range d.fields {
		cells[i] = NewCell(v)
	}
	return &DataStruct{Tag: d.tag, Fields: cells}
}

// DataDataDef builds the DataDef for constructing a tagged record with
// tag and the given field values (spec 4.E, "Construct").
func DataDataDef(tag uint32, fields []Value) gc.DataDef {
	return dataDataDef{tag: tag, fields: fields}
}

// ExcessArgsTag is the constructor tag the interpreter uses to bundle
// over-application's excess arguments beneath the callee frame (spec
// "Design notes", "Over-application across returns").
const ExcessArgsTag uint32 = 0

// BytecodeFunction is a compiled function with no captured environment
// (spec 3, "BytecodeFunction"), built from a CompiledFunction by
// NewFunction; it is called through a ClosureData that wraps it.
type BytecodeFunction struct {
	gc.Header
	Name         string
	Args         uint32
	Instructions []bytecode.Instruction
	Strings      []string
	Inner        []*CompiledInner
}

// CompiledInner names an inner function table entry a MakeClosure/
// NewClosure instruction can reference by index.
type CompiledInner struct {
	Function *BytecodeFunction
}

// Trace is a no-op: a bare BytecodeFunction captures nothing.
func (f *BytecodeFunction) Trace(m *gc.Marker) {}

// NewFunction converts a compiled function (and, recursively, its inner
// function table) into runtime BytecodeFunctions. This is new_function
// from spec 4.D — the one place a CompiledFunction becomes part of the
// running heap.
func NewFunction(cf *bytecode.CompiledFunction) *BytecodeFunction {
	f := &BytecodeFunction{
		Name:         cf.Name,
		Args:         cf.Args,
		Instructions: cf.Instructions,
		Strings:      cf.Strings,
	}
	f.Inner = make([]*CompiledInner, len(cf.InnerFunctions))
	for i, inner := range cf.InnerFunctions {
		f.Inner[i] = &CompiledInner{Function: NewFunction(inner)}
	}
	return f
}

// Callable is the two-variant closed sum spec 4.D names exactly:
// {Closure, Extern}. Go has no sum type, so this is modeled the way the
// Rust source's `enum Callable` compiles down to — two optional pointer
// fields with exactly one populated — rather than an interface, since
// both call sites (the interpreter's do_call and the frame bookkeeping)
// need to distinguish the two without a type switch. An ordinary
// non-foreign function is always the Closure arm, even with zero upvars
// (spec section 3: Value's "Function" variant is the foreign-function
// object, not a bare compiled function).
type Callable struct {
	Closure *ClosureData
	Extern  *ExternFunction
}

// CallableFromClosure wraps a closure as a Callable.
func CallableFromClosure(c *ClosureData) Callable { return Callable{Closure: c} }

// CallableFromExtern wraps a foreign function as a Callable.
func CallableFromExtern(e *ExternFunction) Callable { return Callable{Extern: e} }

// CallableFromValue extracts a Callable from a callable Value, or panics
// if v is not Closure/Function (PartialApplication is resolved by the
// interpreter before reaching this, since it is a different shape again).
func CallableFromValue(v Value) Callable {
	switch v.Kind() {
	case KindClosure:
		return CallableFromClosure(v.AsClosure())
	case KindFunction:
		return CallableFromExtern(v.AsFunction())
	default:
		panic(fmt.Sprintf("value: %s is not directly callable", v.Kind()))
	}
}

// IsExtern reports whether c is the foreign-function arm.
func (c Callable) IsExtern() bool { return c.Extern != nil }

// Args reports the callable's declared arity.
func (c Callable) Args() uint32 {
	if c.Extern != nil {
		return c.Extern.NumArgs
	}
	return c.Closure.Function.Args
}

// Name reports the callable's name, for error messages and disassembly.
func (c Callable) Name() string {
	if c.Extern != nil {
		return c.Extern.Name
	}
	return c.Closure.Function.Name
}

// Trace marks whichever arm is populated.
func (c Callable) Trace(m *gc.Marker) {
	if c.Closure != nil {
		c.Closure.Trace(m)
	}
	if c.Extern != nil {
		c.Extern.Trace(m)
	}
}

// ClosureData is a function paired with its captured upvars (spec 3,
// "ClosureData"). Upvars are Cells so NewClosure/CloseClosure can
// construct a closure before its upvars are known (tying recursive
// bindings, spec "Design notes") and fill them in afterward.
type ClosureData struct {
	gc.Header
	Function *BytecodeFunction
	Upvars   []*Cell
}

// Trace marks the function (nothing to mark, it captures nothing itself)
// and every upvar cell.
func (c *ClosureData) Trace(m *gc.Marker) {
	for _, u := range c.Upvars {
		u.Trace(m)
	}
}

type closureDataDef struct {
	function *BytecodeFunction
	upvars   []Value
}

func (d closureDataDef) Size() uintptr { return uintptr(len(d.upvars))*24 + 32 }

func (d closureDataDef) Init() gc.Traceable {
	cells := make([]*Cell, len(d.upvars))
	for i, v := range d.upvars {
		cells[i] = NewCell(v)
	}
	return &ClosureData{Function: d.function, Upvars: cells}
}

// ClosureDataDef builds the DataDef for MakeClosure: a function closing
// over already-known upvar values.
func ClosureDataDef(function *BytecodeFunction, upvars []Value) gc.DataDef {
	return closureDataDef{function: function, upvars: upvars}
}

type placeholderClosureDataDef struct {
	function   *BytecodeFunction
	numUpvars  int
}

func (d placeholderClosureDataDef) Size() uintptr { return uintptr(d.numUpvars)*24 + 32 }

func (d placeholderClosureDataDef) Init() gc.Traceable {
	cells := make([]*Cell, d.numUpvars)
	for i := range cells {
		cells[i] = NewCell(Int(0))
	}
	return &ClosureData{Function: d.function, Upvars: cells}
}

// PlaceholderClosureDataDef builds the DataDef for NewClosure: a closure
// allocated with numUpvars placeholder cells, to be filled in later by
// CloseClosure once the recursive bindings it captures exist (spec
// "Design notes", "Cyclic closures"). numUpvars must not exceed
// bytecode.NewClosureUpvarCap.
func PlaceholderClosureDataDef(function *BytecodeFunction, numUpvars int) gc.DataDef {
	if numUpvars > bytecode.NewClosureUpvarCap {
		panic(fmt.Sprintf("value: NewClosure upvar count %d exceeds cap %d", numUpvars, bytecode.NewClosureUpvarCap))
	}
	return placeholderClosureDataDef{function: function, numUpvars: numUpvars}
}

// PartialApplicationData is a callable with some of its arguments already
// bound (spec 3, "PartialApplicationData") — the result of calling a
// function with fewer arguments than its arity (spec 4.E, calling
// convention).
type PartialApplicationData struct {
	gc.Header
	Function Callable
	Args     []*Cell
}

// Trace marks the underlying callable and every bound argument.
func (p *PartialApplicationData) Trace(m *gc.Marker) {
	p.Function.Trace(m)
	for _, c := range p.Args {
		c.Trace(m)
	}
}

type partialApplicationDataDef struct {
	function Callable
	args     []Value
}

func (d partialApplicationDataDef) Size() uintptr { return uintptr(len(d.args))*24 + 32 }

func (d partialApplicationDataDef) Init() gc.Traceable {
	cells := make([]*Cell, len(d.args))
	for i, v := range d.args {
		cells[i] = NewCell(v)
	}
	return &PartialApplicationData{Function: d.function, Args: cells}
}

// PartialApplicationDataDef builds the DataDef for an under-applied call.
func PartialApplicationDataDef(function Callable, args []Value) gc.DataDef {
	return partialApplicationDataDef{function: function, args: args}
}

// CallContext is the capability an ExternFunction's callback receives: a
// narrow view of the calling thread's stack sufficient to read arguments
// and push a result, without this package importing the vm package (which
// depends on value) — this is what breaks the vm<->value import cycle for
// foreign calls, mirroring how the source VM's `Io<'vm>`/`ActiveThread`
// types narrow a full VM reference for extern callbacks (spec 4.G).
type CallContext interface {
	Arg(i int) Value
	NumArgs() int
	PushResult(Value)
	PushError(message string)
}

// ExternFunction is a host-implemented callable registered through the
// foreign-call bridge (spec 4.G). Callback must read exactly NumArgs
// arguments from ctx and leave exactly one value on top via PushResult or
// PushError before returning.
type ExternFunction struct {
	gc.Header
	Name     string
	NumArgs  uint32
	Callback func(CallContext)
}

// Trace is a no-op: an extern function's Go closure is opaque to the
// tracer and must not itself hold heap Values across calls.
func (e *ExternFunction) Trace(m *gc.Marker) {}

// UserdataValue is host-defined opaque data exposed to the VM as an
// ordinary Value (spec 3, "Value::Userdata"). Payload is never inspected
// by the interpreter; Finalize, if set, mirrors the optional drop hook the
// spec mentions for foreign resources.
type UserdataValue struct {
	gc.Header
	Payload  interface{}
	Finalize func(interface{})
}

// Trace is a no-op: userdata is opaque to the tracer by definition.
func (u *UserdataValue) Trace(m *gc.Marker) {}

// Lazy is a suspended computation (spec 3, "Value::Lazy") — created for
// `lazy` bindings, forced at most once. State transitions Unevaluated ->
// Evaluating (to detect force-during-force cycles) -> Evaluated.
type Lazy struct {
	gc.Header
	State  LazyState
	Thunk  Callable
	Result Value
}

// LazyState names where a Lazy sits in its one-way evaluation lifecycle.
type LazyState byte

const (
	LazyUnevaluated LazyState = iota
	LazyEvaluating
	LazyEvaluated
)

// Trace marks the thunk while unevaluated, the cached result once
// evaluated; a Lazy in either state never holds a dangling reference to
// the other.
func (l *Lazy) Trace(m *gc.Marker) {
	if l.State == LazyEvaluated {
		l.Result.Trace(m)
		return
	}
	l.Thunk.Trace(m)
}

type lazyDataDef struct{ thunk Callable }

func (d lazyDataDef) Size() uintptr      { return 48 }
func (d lazyDataDef) Init() gc.Traceable { return &Lazy{Thunk: d.thunk} }

// LazyDataDef builds the DataDef for allocating a suspended thunk.
func LazyDataDef(thunk Callable) gc.DataDef { return lazyDataDef{thunk: thunk} }

// ThreadRef wraps a lightweight-thread handle as a Value without this
// package importing the vm package that implements threads (spec 4,
// "Value::Thread"; spec 5, "Threads"). Inner is an opaque gc.Traceable
// supplied by the vm package at thread-creation time; this package only
// forwards tracing to it.
type ThreadRef struct {
	gc.Header
	Inner gc.Traceable
}

// Trace forwards to the wrapped thread's own Trace.
func (t *ThreadRef) Trace(m *gc.Marker) {
	if t.Inner != nil {
		t.Inner.Trace(m)
	}
}
