// Package gc implements the VM's heap: a mark-and-sweep, precise,
// non-moving, non-generational, single-threaded tracing collector over
// variable-sized managed objects (spec.md section 4.A).
//
// Go already garbage collects COREVM's own process, so this package does
// not reimplement manual memory management — there would be nowhere safe
// to free to. What it reimplements is the explicit reachability
// discipline the spec requires: objects are only considered live while
// traceable from an explicit root set, collection only ever happens at
// allocation sites (never at an arbitrary suspension point), and "freeing"
// an object means dropping the heap's own reference to it so that Go's
// collector becomes free to reclaim the backing memory on its own
// schedule. See DESIGN.md for the fuller rationale.
package gc

// Header is embedded by every heap-resident object type. It carries the
// mark bit the collector flips during a trace. Objects that do not embed
// Header cannot be allocated through this package.
type Header struct {
	marked bool
}

// GcHeader returns h itself. Types embed Header by value and forward this
// method so the heap can reach the mark bit through the Traceable
// interface without a type switch over every object kind.
func (h *Header) GcHeader() *Header { return h }

// Traceable is implemented by every value the collector can allocate and
// by every root. Trace must call m.Visit for every heap pointer the
// receiver owns directly, including pointers hidden inside cells; it must
// not reach through Go's own GC to find further pointers (e.g. scanning a
// struct with reflection) — tracing is precise and manual by design.
type Traceable interface {
	Trace(m *Marker)
}

type headered interface {
	GcHeader() *Header
}

// Marker is handed to Trace implementations during a collection. Visit is
// the only way to mark a pointer reachable and recurse into it; it is
// idempotent; a Marker must not be retained past the call that received
// it.
type Marker struct{}

// Visit marks o reachable, recursing into it the first time it is seen in
// this collection. Values that are not heap objects (Int, Float — there is
// nothing to mark) simply never call Visit; composite objects call it for
// every pointer field they own.
func (m *Marker) Visit(o Traceable) {
	if o == nil {
		return
	}
	hh, ok := o.(headered)
	if !ok {
		// A Traceable without a Header is a composite root (the
		// evaluation stack, the globals table) rather than a heap
		// object: it is retraced unconditionally on every collection
		// and carries no mark bit of its own.
		o.Trace(m)
		return
	}
	hdr := hh.GcHeader()
	if hdr.marked {
		return
	}
	hdr.marked = true
	o.Trace(m)
}

// DataDef is the capability objects are allocated from (spec 4.A). Size
// reports an estimate used only to decide when to run a collection before
// allocating; Init constructs the payload in place, which is what lets
// variable-length trailing arrays (Data's fields, a closure's upvars) be
// built without an extra temporary copy.
type DataDef interface {
	Size() uintptr
	Init() Traceable
}

type entry struct {
	obj  Traceable
	size uintptr
}

// DefaultThreshold is the default number of DataDef-reported size units
// allowed to accumulate between collections.
const DefaultThreshold = 1 << 20

// Heap owns every object allocated through AllocAndCollect. It is not
// safe for concurrent use; callers serialize access the way a single VM
// thread does (spec section 5).
type Heap struct {
	objects     []entry
	allocated   uintptr
	threshold   uintptr
	collections int
}

// New creates a heap that collects once DefaultThreshold size-units have
// accumulated since the last collection.
func New() *Heap {
	return &Heap{threshold: DefaultThreshold}
}

// NewWithThreshold creates a heap with a caller-chosen collection
// threshold. Tests use a small threshold to force collections without
// allocating real megabytes (spec section 8, scenario 6).
func NewWithThreshold(threshold uintptr) *Heap {
	return &Heap{threshold: threshold}
}

// AllocAndCollect allocates a new object from def. If doing so would push
// the heap's accumulated size past its threshold, a full collection runs
// first against roots. Collection never happens anywhere else — allocation
// calls are the VM's only safepoints (spec 4.A, 4.E "Safepoints").
func (h *Heap) AllocAndCollect(roots []Traceable, def DataDef) Traceable {
	size := def.Size()
	if h.allocated+size > h.threshold {
		h.Collect(roots)
	}
	obj := def.Init()
	if _, ok := obj.(headered); !ok {
		panic("gc: DataDef.Init() returned a type that does not embed gc.Header")
	}
	h.objects = append(h.objects, entry{obj: obj, size: size})
	h.allocated += size
	return obj
}

// Collect marks every object reachable from roots, then drops the heap's
// own references to everything left unmarked. Nothing is explicitly freed
// here beyond that — Go's allocator reclaims the memory once nothing,
// including this heap, still points to it.
func (h *Heap) Collect(roots []Traceable) {
	for i := range h.objects {
		h.objects[i].obj.(headered).GcHeader().marked = false
	}
	m := &Marker{}
	for _, r := range roots {
		if r != nil {
			r.Trace(m)
		}
	}
	kept := h.objects[:0]
	var live uintptr
	for _, e := range h.objects {
		if e.obj.(headered).GcHeader().marked {
			kept = append(kept, e)
			live += e.size
		}
	}
	h.objects = kept
	h.allocated = live
	h.collections++
}

// Stats is a read-only snapshot of heap bookkeeping. It is not part of the
// collection contract — nothing in the interpreter reads it — but the
// trace/debug facility and tests use it to observe collection behavior.
type Stats struct {
	Live        int
	Allocated   uintptr
	Collections int
}

// Stats reports the heap's current bookkeeping.
func (h *Heap) Stats() Stats {
	return Stats{Live: len(h.objects), Allocated: h.allocated, Collections: h.collections}
}
