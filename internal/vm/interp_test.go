package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/corevm/internal/bytecode"
	"github.com/kristofer/corevm/internal/value"
	"github.com/kristofer/corevm/internal/vm"
)

// closureOf builds a zero-upvar Closure Value over cf, the shape every
// test in this file uses to get a callable onto the stack without going
// through the assembler or the GC's normal allocation path.
func closureOf(cf *bytecode.CompiledFunction) value.Value {
	return value.Closure(&value.ClosureData{Function: value.NewFunction(cf)})
}

func TestArithmetic_IntegerAddition(t *testing.T) {
	cf := &bytecode.CompiledFunction{
		Name: "add",
		Args: 0,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.PushInt, Operand: 2},
			{Op: bytecode.PushInt, Operand: 3},
			{Op: bytecode.AddInt},
		},
	}
	th := vm.NewVM()
	result, err := th.CallModule(closureOf(cf), false)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.AsInt())
}

func TestCall_ExactApplication(t *testing.T) {
	// double(x) = x + x
	double := &bytecode.CompiledFunction{
		Name: "double",
		Args: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.Push, Operand: 0},
			{Op: bytecode.Push, Operand: 0},
			{Op: bytecode.AddInt},
		},
	}
	th := vm.NewVM()
	th.Stack().Push(closureOf(double))
	th.Stack().Push(value.Int(21))
	result, err := th.CallFunction(1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AsInt())
}

func TestCall_PartialApplicationThenSaturation(t *testing.T) {
	// add(a, b) = a + b
	add := &bytecode.CompiledFunction{
		Name: "add",
		Args: 2,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.Push, Operand: 0},
			{Op: bytecode.Push, Operand: 1},
			{Op: bytecode.AddInt},
		},
	}
	th := vm.NewVM()
	th.Stack().Push(closureOf(add))
	th.Stack().Push(value.Int(10))
	partial, err := th.CallFunction(1)
	require.NoError(t, err)
	require.Equal(t, value.KindPartialApplication, partial.Kind(), "under-application yields a PartialApplication")

	th.Stack().Push(partial)
	th.Stack().Push(value.Int(32))
	result, err := th.CallFunction(1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AsInt())
}

func TestCall_OverApplicationAppliesResultToExcessArgs(t *testing.T) {
	// curriedAdd(a) = closure(b) = a + b   -- a 1-arg function returning
	// another 1-arg function, called with 2 args at once.
	inner := &bytecode.CompiledFunction{
		Name: "innerAdd",
		Args: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.PushUpVar, Operand: 0},
			{Op: bytecode.Push, Operand: 0},
			{Op: bytecode.AddInt},
		},
	}
	curriedAdd := &bytecode.CompiledFunction{
		Name: "curriedAdd",
		Args: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.Push, Operand: 0},
			{Op: bytecode.MakeClosure, Operand: 0, OperandB: 1},
		},
		InnerFunctions: []*bytecode.CompiledFunction{inner},
	}
	th := vm.NewVM()
	th.Stack().Push(closureOf(curriedAdd))
	th.Stack().Push(value.Int(3))
	th.Stack().Push(value.Int(4))
	result, err := th.CallFunction(2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.AsInt())
}

func TestConstructSplit_RoundTripsFields(t *testing.T) {
	cf := &bytecode.CompiledFunction{
		Name: "pair",
		Args: 0,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.PushInt, Operand: 1},
			{Op: bytecode.PushInt, Operand: 2},
			{Op: bytecode.Construct, Operand: 2, OperandB: 7},
			{Op: bytecode.Split},
			{Op: bytecode.AddInt},
		},
	}
	th := vm.NewVM()
	result, err := th.CallModule(closureOf(cf), false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.AsInt())
}

func TestConstructTestTag_DistinguishesVariants(t *testing.T) {
	cf := &bytecode.CompiledFunction{
		Name: "tagCheck",
		Args: 0,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.PushInt, Operand: 9},
			{Op: bytecode.Construct, Operand: 1, OperandB: 5},
			{Op: bytecode.TestTag, Operand: 5},
		},
	}
	th := vm.NewVM()
	result, err := th.CallModule(closureOf(cf), false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.AsInt())
}

// depthTracer records the largest frame depth and stack length seen
// before any instruction of a run.
type depthTracer struct {
	maxDepth, maxLen int
}

func (d *depthTracer) Before(th *vm.Thread, ip int, instr bytecode.Instruction) (bool, error) {
	if n := th.Stack().Depth(); n > d.maxDepth {
		d.maxDepth = n
	}
	if n := th.Stack().Len(); n > d.maxLen {
		d.maxLen = n
	}
	return true, nil
}

// TestTailCall_DoesNotGrowFrameDepth exercises a self-recursive tail-call
// loop (a countdown from n to 0) and checks that, throughout the loop,
// frame depth never exceeds one frame above the depth it started at and
// the stack never grows past one iteration's worth of slots, and that the
// depth is back at its start afterwards — spec 8's constant-frame-depth
// property for tail calls.
func TestTailCall_DoesNotGrowFrameDepth(t *testing.T) {
	// countdown(n) = n == 0 ? 0 : countdown(n - 1), recursing through a
	// global binding (global index 0, the first and only global this
	// test defines) so the callee is resolvable without upvars.
	countdown := &bytecode.CompiledFunction{
		Name: "countdown",
		Args: 1,
		Instructions: []bytecode.Instruction{
			{Op: bytecode.Push, Operand: 0},     // 0: n
			{Op: bytecode.PushInt, Operand: 0},  // 1: 0
			{Op: bytecode.IntEQ},                // 2: n == 0
			{Op: bytecode.CJump, Operand: 9},    // 3: -> done
			{Op: bytecode.PushGlobal, Operand: 0}, // 4: countdown
			{Op: bytecode.Push, Operand: 0},     // 5: n
			{Op: bytecode.PushInt, Operand: 1},  // 6: 1
			{Op: bytecode.SubInt},               // 7: n - 1
			{Op: bytecode.TailCall, Operand: 1}, // 8: countdown(n - 1)
			{Op: bytecode.PushInt, Operand: 0},  // 9: done -> 0
		},
	}

	th := vm.NewVM()
	closure := closureOf(countdown)
	require.NoError(t, th.DefineGlobal("countdown", "", closure))
	idx, ok := th.Global().GlobalIndex("countdown")
	require.True(t, ok)
	require.Equal(t, 0, idx)

	tr := &depthTracer{}
	th.SetTracer(tr)

	startDepth := th.Stack().Depth()
	th.Stack().Push(closure)
	th.Stack().Push(value.Int(100000))
	result, err := th.CallFunction(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.AsInt())
	assert.Equal(t, startDepth+1, tr.maxDepth, "only the countdown frame is ever live above the start")
	assert.Equal(t, 5, tr.maxLen, "callee, n, and at most three temporaries (before SUB_INT)")
	assert.Equal(t, startDepth, th.Stack().Depth(), "tail recursion must not leave extra frames behind")
}
