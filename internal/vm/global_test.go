package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/corevm/internal/value"
	"github.com/kristofer/corevm/internal/vm"
)

func TestGetGlobal_ResolvesBareName(t *testing.T) {
	th := vm.NewVM()
	require.NoError(t, th.DefineGlobal("answer", "Int", value.Int(42)))

	v, typ, err := th.Global().GetGlobal("answer")
	require.NoError(t, err)
	assert.Equal(t, "Int", typ)
	assert.Equal(t, int64(42), v.AsInt())
}

func TestGetGlobal_WalksRecordFieldsByName(t *testing.T) {
	g := vm.NewGlobalVMState()
	require.NoError(t, g.RegisterRecordType("Point", nil, []vm.RecordField{
		{Name: "x", Type: "Int"},
		{Name: "y", Type: "Int"},
	}))

	point := value.Data(&value.DataStruct{Tag: 0, Fields: []*value.Cell{
		value.NewCell(value.Int(3)),
		value.NewCell(value.Int(4)),
	}})
	require.NoError(t, g.SetGlobal("origin", "Point", point))

	v, typ, err := g.GetGlobal("origin.y")
	require.NoError(t, err)
	assert.Equal(t, "Int", typ)
	assert.Equal(t, int64(4), v.AsInt())
}

func TestGetGlobal_WalksNestedRecords(t *testing.T) {
	g := vm.NewGlobalVMState()
	require.NoError(t, g.RegisterRecordType("Point", nil, []vm.RecordField{
		{Name: "x", Type: "Int"},
		{Name: "y", Type: "Int"},
	}))
	require.NoError(t, g.RegisterRecordType("Line", nil, []vm.RecordField{
		{Name: "start", Type: "Point"},
		{Name: "end", Type: "Point"},
	}))

	start := value.Data(&value.DataStruct{Tag: 0, Fields: []*value.Cell{
		value.NewCell(value.Int(0)),
		value.NewCell(value.Int(0)),
	}})
	end := value.Data(&value.DataStruct{Tag: 0, Fields: []*value.Cell{
		value.NewCell(value.Int(1)),
		value.NewCell(value.Int(2)),
	}})
	line := value.Data(&value.DataStruct{Tag: 0, Fields: []*value.Cell{
		value.NewCell(start),
		value.NewCell(end),
	}})
	require.NoError(t, g.SetGlobal("diagonal", "Line", line))

	v, typ, err := g.GetGlobal("diagonal.end.y")
	require.NoError(t, err)
	assert.Equal(t, "Int", typ)
	assert.Equal(t, int64(2), v.AsInt())
}

func TestGetGlobal_UnknownFieldFails(t *testing.T) {
	g := vm.NewGlobalVMState()
	require.NoError(t, g.RegisterRecordType("Point", nil, []vm.RecordField{
		{Name: "x", Type: "Int"},
	}))
	point := value.Data(&value.DataStruct{Tag: 0, Fields: []*value.Cell{value.NewCell(value.Int(1))}})
	require.NoError(t, g.SetGlobal("p", "Point", point))

	_, _, err := g.GetGlobal("p.z")
	assert.Error(t, err)
}

func TestGetGlobal_UnknownGlobalFails(t *testing.T) {
	g := vm.NewGlobalVMState()
	_, _, err := g.GetGlobal("nope")
	assert.Error(t, err)
}
