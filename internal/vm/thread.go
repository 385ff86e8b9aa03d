package vm

import (
	"github.com/google/uuid"

	"github.com/kristofer/corevm/internal/bytecode"
	"github.com/kristofer/corevm/internal/gc"
	"github.com/kristofer/corevm/internal/stack"
	"github.com/kristofer/corevm/internal/value"
)

// Thread is one lightweight VM thread (spec section 5, "Value::Thread";
// spec 3's Thread value wraps one of these). Multiple threads share a
// single GlobalVMState but each owns its own evaluation stack and private
// rooting stacks (spec 5, "a VM owns its stack, heap, and interpreter" —
// read per-thread here, with heap shared).
//
// id exists purely for host-visible identification (logging, the trace
// facility, debugging multiple threads apart) — the interpreter itself
// never branches on it.
type Thread struct {
	id    uuid.UUID
	state *GlobalVMState
	stack *stack.Stack

	pinnedObjects []gc.Traceable
	pinnedValues  []value.Value

	tracer Tracer
}

// Tracer observes the dispatch loop one instruction at a time — the hook
// internal/vm/trace's interactive debugger attaches through, descended
// from smog's pkg/vm/debugger.go ShouldPause/InteractivePrompt split.
// Before is called just before the instruction at ip executes; returning
// a non-nil error aborts the run with that error, and returning false
// aborts it with an "execution aborted by tracer" error.
type Tracer interface {
	Before(t *Thread, ip int, instr bytecode.Instruction) (ok bool, err error)
}

// SetTracer attaches (or, with nil, detaches) a Tracer to this thread.
func (t *Thread) SetTracer(tr Tracer) { t.tracer = tr }

// NewVM creates the first thread of a fresh VM: new global state, new
// heap, new stack (spec 6, "VM construction").
func NewVM() *Thread {
	g := NewGlobalVMState()
	return newThreadOn(g)
}

// NewThread spins up a sibling thread sharing t's global state and heap
// but with its own stack and rooting stacks (spec 6, "sub-thread
// creation"; spec 5, "each has its own evaluation stack and private
// rooting stacks").
func (t *Thread) NewThread() *Thread {
	return newThreadOn(t.state)
}

func newThreadOn(g *GlobalVMState) *Thread {
	th := &Thread{id: uuid.New(), state: g, stack: stack.New()}
	g.registerThread(th)
	return th
}

// ID returns the thread's identity.
func (t *Thread) ID() uuid.UUID { return t.id }

// Global returns the VM state this thread shares with its siblings.
func (t *Thread) Global() *GlobalVMState { return t.state }

// Stack exposes the thread's evaluation stack to the interpreter loop.
func (t *Thread) Stack() *stack.Stack { return t.stack }

// Trace marks this thread's stack and every pinned object/value — the
// per-thread portion of the root set (spec 4.H).
func (t *Thread) Trace(m *gc.Marker) {
	t.stack.Trace(m)
	for _, o := range t.pinnedObjects {
		m.Visit(o)
	}
	for _, v := range t.pinnedValues {
		v.Trace(m)
	}
}

// Root registry on GlobalVMState: every live thread must be traced during
// a collection triggered by any one of them, since they share a heap
// (spec 5, "multiple threads share a single GlobalVMState... via shared
// ownership").
func (g *GlobalVMState) registerThread(t *Thread) {
	g.threadsMu.Lock()
	defer g.threadsMu.Unlock()
	g.threads = append(g.threads, t)
}

// --- Rooting (spec 4.H) ---

// RootedHandle is returned by Root/RootValue; releasing it pops the
// corresponding pinning stack. Handles must be released LIFO (spec 4.H,
// "Rooting entries must be released in LIFO order; violating this is a
// program error").
type RootedHandle struct {
	thread   *Thread
	isValue  bool
	stackLen int
}

// Root pins a managed pointer so host code can retain a reference across
// subsequent allocations and calls (spec 4.H, "Pinned objects").
func (t *Thread) Root(obj gc.Traceable) RootedHandle {
	t.pinnedObjects = append(t.pinnedObjects, obj)
	return RootedHandle{thread: t, isValue: false, stackLen: len(t.pinnedObjects)}
}

// RootValue pins a Value (spec 4.H, "Pinned values").
func (t *Thread) RootValue(v value.Value) RootedHandle {
	t.pinnedValues = append(t.pinnedValues, v)
	return RootedHandle{thread: t, isValue: true, stackLen: len(t.pinnedValues)}
}

// Release pops h's entry. It panics if h is not the top of its pinning
// stack — releasing out of LIFO order is a program error the spec calls
// out explicitly, not a condition to silently tolerate.
func (h RootedHandle) Release() {
	t := h.thread
	if h.isValue {
		if len(t.pinnedValues) != h.stackLen {
			panic("vm: rooted value released out of LIFO order")
		}
		t.pinnedValues = t.pinnedValues[:h.stackLen-1]
		return
	}
	if len(t.pinnedObjects) != h.stackLen {
		panic("vm: rooted object released out of LIFO order")
	}
	t.pinnedObjects = t.pinnedObjects[:h.stackLen-1]
}

// --- Allocation & collection ---

// roots assembles the full root set for a collection triggered on this
// thread: the shared globals table plus every live sibling thread's stack
// and pinning stacks (spec 3, "root set = globals ∪ stack ∪ pinned roots
// ∪ pinned rooted-values").
func (t *Thread) roots() []gc.Traceable {
	t.state.threadsMu.Lock()
	defer t.state.threadsMu.Unlock()
	rs := make([]gc.Traceable, 0, len(t.state.threads)+1)
	rs = append(rs, t.state)
	for _, th := range t.state.threads {
		rs = append(rs, th)
	}
	return rs
}

// Alloc allocates a new managed object through the shared heap,
// collecting first if the threshold is exceeded (spec 4.A,
// "alloc_and_collect"). This is the interpreter's only safepoint.
func (t *Thread) Alloc(def gc.DataDef) gc.Traceable {
	return t.state.heap.AllocAndCollect(t.roots(), def)
}

// Collect runs an explicit full collection (spec 6, "collect()").
func (t *Thread) Collect() {
	t.state.heap.Collect(t.roots())
}

// --- Host-facing globals API (spec 6) ---

// DefineGlobal binds name to v with declared type typ (spec 6,
// "define_global"). typ is a plain descriptive string here — the core
// does not implement a type checker (spec section 1) — supplied by the
// host/compiler side of the marshalling capability.
func (t *Thread) DefineGlobal(name, typ string, v value.Value) error {
	return t.state.SetGlobal(name, typ, v)
}

// GetGlobalValue resolves a bare global name to its current value (spec
// 6, "get_global"). Dotted field-path resolution is GlobalVMState's
// concern; see GlobalVMState.GetGlobal.
func (t *Thread) GetGlobalValue(name string) (value.Value, error) {
	v, _, err := t.state.GetGlobal(name)
	return v, err
}

// RegisterExternFunction allocates an ExternFunction and binds it as a
// global in one step — the common case for wiring a stdlib primitive
// (spec 4.G combined with spec 4.F's set_global).
func (t *Thread) RegisterExternFunction(name string, numArgs uint32, cb func(value.CallContext)) error {
	obj := t.Alloc(externFunctionDataDef{name: name, numArgs: numArgs, callback: cb})
	ef := obj.(*value.ExternFunction)
	return t.state.SetGlobal(name, "extern", value.Function(ef))
}

type externFunctionDataDef struct {
	name     string
	numArgs  uint32
	callback func(value.CallContext)
}

func (d externFunctionDataDef) Size() uintptr { return 48 }
func (d externFunctionDataDef) Init() gc.Traceable {
	return &value.ExternFunction{Name: d.name, NumArgs: d.numArgs, Callback: d.callback}
}

// RegisterType forwards to the shared global state (spec 6,
// "register_type<T>").
func (t *Thread) RegisterType(name string, args []string) error {
	return t.state.RegisterType(name, args)
}
