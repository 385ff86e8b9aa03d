package vm

import (
	"fmt"

	"github.com/kristofer/corevm/internal/value"
)

// Pushable and Getable name the two halves of the marshalling capability
// spec 4 and spec 6 pair with a static type for
// define_global/get_global and for extern-function argument/result
// conversion (grounded on original_source/vm/src/vm.rs's `api::{Pushable,
// Getable}` traits — see DESIGN.md). COREVM does not need the full
// generic trait machinery the Rust source uses: each concrete Go type the
// stdlib bridge marshals (int64, float64, string, bool) gets a pair of
// functions below instead of a shared interface (the string and bool
// pushers are Thread methods, since they allocate), since Go's lack of
// trait-style ad-hoc polymorphism makes one broad interface no simpler
// than calling the right function for each type at each call site.

// PushInt pushes a Go int64 as an Int Value.
func PushInt(n int64) value.Value { return value.Int(n) }

// GetInt reads an Int Value back as a Go int64.
func GetInt(v value.Value) (int64, error) {
	if v.Kind() != value.KindInt {
		return 0, Errorf("expected Int, got %s", v.Kind())
	}
	return v.AsInt(), nil
}

// PushFloat64 pushes a Go float64 as a Float Value.
func PushFloat64(f float64) value.Value { return value.Float(f) }

// GetFloat64 reads a Float Value back as a Go float64.
func GetFloat64(v value.Value) (float64, error) {
	if v.Kind() != value.KindFloat {
		return 0, Errorf("expected Float, got %s", v.Kind())
	}
	return v.AsFloat(), nil
}

// PushStr allocates and pushes a Go string as a String Value, the one
// Pushable conversion that needs a thread (it allocates).
func (t *Thread) PushStr(s string) value.Value {
	str := t.Alloc(value.StrDataDef(s)).(*value.Str)
	return value.String(str)
}

// GetStr reads a String Value back as a Go string.
func GetStr(v value.Value) (string, error) {
	if v.Kind() != value.KindString {
		return "", Errorf("expected String, got %s", v.Kind())
	}
	return v.AsString().Value, nil
}

// PushBool encodes a Go bool as the tagged-Data convention used
// throughout the stdlib bridge: tag 1 for True, tag 0 for False, no
// fields — booleans are not a primitive Value kind (spec 3 lists none),
// so the bridge represents them the way source-language constructor
// applications are represented (grounded on original_source's `VmTag`
// constants for True/False in vm.rs).
func (t *Thread) PushBool(b bool) value.Value {
	tag := uint32(0)
	if b {
		tag = 1
	}
	obj := t.Alloc(value.DataDataDef(tag, nil)).(*value.DataStruct)
	return value.Data(obj)
}

// GetBool reads the tagged-Data boolean convention back into a Go bool.
func GetBool(v value.Value) (bool, error) {
	if v.Kind() != value.KindData {
		return false, Errorf("expected Data (bool encoding), got %s", v.Kind())
	}
	d := v.AsData()
	switch d.Tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, Errorf("unexpected tag %d for bool-encoded Data", d.Tag)
	}
}

// CallArgsError is returned by stdlib extern callbacks whose Go-side
// conversion of a received argument fails — wraps the underlying error
// with the argument index for a readable message.
type CallArgsError struct {
	Index int
	Err   error
}

func (e *CallArgsError) Error() string {
	return fmt.Sprintf("argument %d: %v", e.Index, e.Err)
}

func (e *CallArgsError) Unwrap() error { return e.Err }
