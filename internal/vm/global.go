// Package vm implements the execution engine: the global environment, the
// per-thread evaluation state, and the instruction dispatch loop (spec.md
// sections 4.E, 4.F, 4.G, 4.H). It is the top of the dependency chain —
// gc -> value -> stack -> vm — the only package that imports all three.
package vm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kristofer/corevm/internal/gc"
	"github.com/kristofer/corevm/internal/value"
)

// TypeInfo is a host-registered nominal type (spec 4.F, "register_type").
// Args names its type parameters; the VM never inspects their kinds
// itself, it only hands this back to the compiler's lookup interface.
// Fields is nil for an opaque type and populated for a record type,
// carrying the field-name metadata get_global's dotted-path walk needs
// (grounded on original_source/vm/src/vm.rs's `Type::Record { fields }`).
type TypeInfo struct {
	Name   string
	Args   []string
	Fields []RecordField
}

// RecordField names one field of a host-registered record type, in
// declaration order — its Type is looked back up in the registry so a
// multi-component get_global path can walk into nested records.
type RecordField struct {
	Name string
	Type string
}

// global is one append-only slot in the globals vector (spec 3,
// "Global").
type global struct {
	name  string
	typ   string
	value *value.Cell
}

// GlobalVMState is the state shared by every Thread spun off the same VM
// (spec section 5): the globals table, the type registry, and the heap.
// Interning and the macro registry are named in spec section 5 as shared
// state but are explicitly out of scope here (spec section 1,
// "interning... beyond the contract required by the interpreter"; "the
// macro registry") — this is the compiler front-end's concern, not the
// core's, so GlobalVMState carries neither.
type GlobalVMState struct {
	heap    *gc.Heap
	globals []global
	names   map[string]int
	types   map[string]*TypeInfo

	threadsMu sync.Mutex
	threads   []*Thread
}

// NewGlobalVMState creates empty global state backed by a fresh heap.
func NewGlobalVMState() *GlobalVMState {
	return &GlobalVMState{
		heap:  gc.New(),
		names: make(map[string]int),
		types: make(map[string]*TypeInfo),
	}
}

// Heap returns the shared heap every thread allocates from.
func (g *GlobalVMState) Heap() *gc.Heap { return g.heap }

// SetGlobal appends a new global binding (spec 4.F, "set_global"). It
// fails if id is already bound — globals are append-only and names unique
// for the life of the VM (spec 3, invariants).
func (g *GlobalVMState) SetGlobal(id, typ string, v value.Value) error {
	if _, ok := g.names[id]; ok {
		return &Error{Message: fmt.Sprintf("duplicate global: %s", id)}
	}
	g.names[id] = len(g.globals)
	g.globals = append(g.globals, global{name: id, typ: typ, value: value.NewCell(v)})
	return nil
}

// GetGlobal resolves a dotted path (spec 4.F, "get_global"): the first
// component names a global, and each remaining component indexes into
// the current value's record type by field name, narrowing to that
// field's own type before continuing — the same walk
// original_source/vm/src/vm.rs's get_global performs against
// `Type::Record { fields }`. value.DataStruct itself is purely
// positional (spec 3), so field names are resolved against the
// registered TypeInfo for the value's current type, then applied to the
// DataStruct by the resolved offset.
func (g *GlobalVMState) GetGlobal(path string) (value.Value, string, error) {
	parts := strings.Split(path, ".")
	idx, ok := g.names[parts[0]]
	if !ok {
		return value.Value{}, "", &Error{Message: fmt.Sprintf("unknown global: %s", parts[0])}
	}
	gl := g.globals[idx]
	v, typ := gl.value.Get(), gl.typ

	for _, field := range parts[1:] {
		info, ok := g.types[typ]
		if !ok || info.Fields == nil {
			return value.Value{}, "", &Error{Message: fmt.Sprintf("'%s' cannot be accessed by the field '%s'", typ, field)}
		}
		offset, nextType, found := info.fieldOffset(field)
		if !found {
			return value.Value{}, "", &Error{Message: fmt.Sprintf("'%s' cannot be accessed by the field '%s'", typ, field)}
		}
		if v.Kind() != value.KindData {
			return value.Value{}, "", &Error{Message: fmt.Sprintf("'%s' is not a record value", path)}
		}
		v, typ = v.AsData().Field(offset), nextType
	}
	return v, typ, nil
}

// fieldOffset looks up field's position and declared type among t's
// record fields.
func (t *TypeInfo) fieldOffset(field string) (offset int, typeName string, found bool) {
	for i, f := range t.Fields {
		if f.Name == field {
			return i, f.Type, true
		}
	}
	return 0, "", false
}

// GlobalCell returns the mutable storage cell backing the global at index
// idx, used by the interpreter's PushGlobal instruction and by the trace
// debugger's globals listing.
func (g *GlobalVMState) GlobalCell(idx int) *value.Cell {
	return g.globals[idx].value
}

// GlobalIndex returns the append-stable index of global id.
func (g *GlobalVMState) GlobalIndex(id string) (int, bool) {
	idx, ok := g.names[id]
	return idx, ok
}

// NumGlobals reports how many globals are currently bound, used when
// tracing the globals table as a GC root.
func (g *GlobalVMState) NumGlobals() int { return len(g.globals) }

// GlobalName returns the name bound at globals index idx, for tools that
// walk the table by position (internal/vm/trace's ShowGlobals).
func (g *GlobalVMState) GlobalName(idx int) string { return g.globals[idx].name }

// RegisterType records a host-registered nominal type (spec 4.F,
// "register_type"). It fails on a duplicate name.
func (g *GlobalVMState) RegisterType(name string, args []string) error {
	if _, ok := g.types[name]; ok {
		return &Error{Message: fmt.Sprintf("duplicate type: %s", name)}
	}
	g.types[name] = &TypeInfo{Name: name, Args: args}
	return nil
}

// RegisterRecordType records a host-registered nominal record type along
// with its field order, so get_global's dotted-path walk can resolve
// field names against values bound under this type. Each RecordField's
// Type may itself name another registered record, letting the walk
// descend through nested records.
func (g *GlobalVMState) RegisterRecordType(name string, args []string, fields []RecordField) error {
	if _, ok := g.types[name]; ok {
		return &Error{Message: fmt.Sprintf("duplicate type: %s", name)}
	}
	g.types[name] = &TypeInfo{Name: name, Args: args, Fields: fields}
	return nil
}

// FindTypeInfo resolves the type named by a dotted path (spec 4.F,
// "find_type_info"). The pseudo-type "IO" is always resolvable, per spec
//4.F, with kind `* -> *` represented here by a single type parameter.
func (g *GlobalVMState) FindTypeInfo(path string) (*TypeInfo, bool) {
	if path == "IO" {
		return &TypeInfo{Name: "IO", Args: []string{"a"}}, true
	}
	t, ok := g.types[path]
	return t, ok
}

// Env is the read-only compiler-facing lookup view spec 4.F calls `env()`:
// variable lookup (LookupVar) and type lookup (LookupType), both backed
// by the same GlobalVMState a running VM uses, so a compiler and the VM it
// targets never disagree about what is in scope. It offers no kind lookup
// and no record lookup.
type Env struct {
	state *GlobalVMState
}

// Env returns the compiler-facing read-only view over g.
func (g *GlobalVMState) Env() Env { return Env{state: g} }

// LookupVar resolves a global variable's declared type by name, for the
// compiler's variable-lookup interface.
func (e Env) LookupVar(name string) (string, bool) {
	idx, ok := e.state.names[name]
	if !ok {
		return "", false
	}
	return e.state.globals[idx].typ, true
}

// LookupType resolves a nominal type by name, for the compiler's
// type-lookup interface. Delegates to FindTypeInfo so "IO" resolves here
// exactly as it does for find_type_info.
func (e Env) LookupType(name string) (*TypeInfo, bool) {
	return e.state.FindTypeInfo(name)
}

// Trace marks every global's current value, making the globals table a
// GC root (spec 4.A "roots", spec 3 "root set").
func (g *GlobalVMState) Trace(m *gc.Marker) {
	for i := range g.globals {
		g.globals[i].value.Trace(m)
	}
}
