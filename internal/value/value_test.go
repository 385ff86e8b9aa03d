package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristofer/corevm/internal/value"
)

func TestEqual_PrimitivesCompareByValue(t *testing.T) {
	assert.True(t, value.Equal(value.Int(3), value.Int(3)))
	assert.False(t, value.Equal(value.Int(3), value.Int(4)))
	assert.True(t, value.Equal(value.Float(1.5), value.Float(1.5)))
	assert.False(t, value.Equal(value.Int(3), value.Float(3)), "kind mismatch is never equal")

	a := value.String(&value.Str{Value: "hi"})
	b := value.String(&value.Str{Value: "hi"})
	assert.True(t, value.Equal(a, b), "strings compare by content, not identity")
}

func TestEqual_DataComparesTagThenFieldsRecursively(t *testing.T) {
	a := value.Data(&value.DataStruct{Tag: 1, Fields: []*value.Cell{
		value.NewCell(value.Int(1)),
		value.NewCell(value.Int(2)),
	}})
	b := value.Data(&value.DataStruct{Tag: 1, Fields: []*value.Cell{
		value.NewCell(value.Int(1)),
		value.NewCell(value.Int(2)),
	}})
	c := value.Data(&value.DataStruct{Tag: 2, Fields: []*value.Cell{
		value.NewCell(value.Int(1)),
		value.NewCell(value.Int(2)),
	}})
	d := value.Data(&value.DataStruct{Tag: 1, Fields: []*value.Cell{
		value.NewCell(value.Int(1)),
		value.NewCell(value.Int(99)),
	}})

	assert.True(t, value.Equal(a, b))
	assert.False(t, value.Equal(a, c), "differing tags are never equal")
	assert.False(t, value.Equal(a, d), "differing field values are never equal")
}

func TestEqual_CallablesAreNeverEqualEvenToThemselves(t *testing.T) {
	closure := value.Closure(&value.ClosureData{})
	assert.False(t, value.Equal(closure, closure), "Closure is never equal to anything, spec 4.B")

	extern := value.Function(&value.ExternFunction{Name: "x"})
	assert.False(t, value.Equal(extern, extern))

	pa := value.PartialApplication(&value.PartialApplicationData{})
	assert.False(t, value.Equal(pa, pa))
}

func TestEqual_UserdataComparesByPointerIdentity(t *testing.T) {
	payload := &value.UserdataValue{}
	a := value.Userdata(payload)
	b := value.Userdata(payload)
	assert.True(t, value.Equal(a, b), "same underlying pointer is equal")

	other := value.Userdata(&value.UserdataValue{})
	assert.False(t, value.Equal(a, other), "distinct pointers are never equal")
}

func TestIsCallable(t *testing.T) {
	assert.True(t, value.Closure(&value.ClosureData{}).IsCallable())
	assert.True(t, value.Function(&value.ExternFunction{}).IsCallable())
	assert.True(t, value.PartialApplication(&value.PartialApplicationData{}).IsCallable())
	assert.False(t, value.Int(1).IsCallable())
	assert.False(t, value.Data(&value.DataStruct{}).IsCallable())
}

func TestAsX_PanicsOnKindMismatch(t *testing.T) {
	assert.Panics(t, func() { value.Int(1).AsFloat() })
	assert.Panics(t, func() { value.Float(1).AsInt() })
	assert.Panics(t, func() { value.Data(&value.DataStruct{}).AsClosure() })
}

func TestCallableFromValue_RejectsNonCallableKinds(t *testing.T) {
	assert.Panics(t, func() { value.CallableFromValue(value.Int(1)) })
}

func TestCallableFromValue_RoundTripsClosureAndExtern(t *testing.T) {
	cd := &value.ClosureData{Function: &value.BytecodeFunction{Name: "f", Args: 2}}
	c := value.CallableFromValue(value.Closure(cd))
	assert.False(t, c.IsExtern())
	assert.Equal(t, uint32(2), c.Args())
	assert.Equal(t, "f", c.Name())

	ef := &value.ExternFunction{Name: "g", NumArgs: 1}
	e := value.CallableFromValue(value.Function(ef))
	assert.True(t, e.IsExtern())
	assert.Equal(t, uint32(1), e.Args())
	assert.Equal(t, "g", e.Name())
}
