package stack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/corevm/internal/stack"
	"github.com/kristofer/corevm/internal/value"
)

func TestNew_StartsWithOneRootFrame(t *testing.T) {
	s := stack.New()
	assert.Equal(t, 1, s.Depth())
	assert.Equal(t, 0, s.Len())
}

func TestPushFrame_BaseLeavesCalleeAddressableAtBaseMinusOne(t *testing.T) {
	s := stack.New()
	callee := value.Closure(&value.ClosureData{Function: &value.BytecodeFunction{Args: 2}})
	s.Push(callee)
	s.Push(value.Int(10))
	s.Push(value.Int(20))

	callable := value.CallableFromValue(callee)
	s.PushFrame(2, callable, nil)

	frame := s.CurrentFrame()
	require.Equal(t, 1, frame.Base, "two args pushed after the callee at slot 0")
	assert.Same(t, callee.AsClosure(), s.At(frame.Base-1).AsClosure(), "the callable remains addressable at base-1")
	assert.True(t, value.Equal(s.At(frame.Base), value.Int(10)))
	assert.True(t, value.Equal(s.At(frame.Base+1), value.Int(20)))
}

func TestPopFrame_PanicsOnRootFrame(t *testing.T) {
	s := stack.New()
	assert.Panics(t, func() { s.PopFrame() })
}

func TestPop_PanicsOnEmptyStack(t *testing.T) {
	s := stack.New()
	assert.Panics(t, func() { s.Pop() })
}

func TestPopN_ReturnsValuesInPushOrder(t *testing.T) {
	s := stack.New()
	s.Push(value.Int(1))
	s.Push(value.Int(2))
	s.Push(value.Int(3))

	vals := s.PopN(3)
	require.Len(t, vals, 3)
	assert.Equal(t, int64(1), vals[0].AsInt())
	assert.Equal(t, int64(2), vals[1].AsInt())
	assert.Equal(t, int64(3), vals[2].AsInt())
	assert.Equal(t, 0, s.Len())
}

func TestTruncate_DropsEverythingAboveN(t *testing.T) {
	s := stack.New()
	s.Push(value.Int(1))
	s.Push(value.Int(2))
	s.Push(value.Int(3))

	s.Truncate(1)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, int64(1), s.At(0).AsInt())
}

func TestInsertSliceAndRemoveRange_RoundTrip(t *testing.T) {
	s := stack.New()
	s.Push(value.Int(1))
	s.Push(value.Int(4))

	s.InsertSlice(1, []value.Value{value.Int(2), value.Int(3)})
	require.Equal(t, 4, s.Len())
	for i, want := range []int64{1, 2, 3, 4} {
		assert.Equal(t, want, s.At(i).AsInt())
	}

	s.RemoveRange(1, 3)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, int64(1), s.At(0).AsInt())
	assert.Equal(t, int64(4), s.At(1).AsInt())
}

func TestGetUpvar_PanicsOutsideClosureFrame(t *testing.T) {
	s := stack.New()
	assert.Panics(t, func() { s.GetUpvar(0) }, "the root frame has no closure")
}
