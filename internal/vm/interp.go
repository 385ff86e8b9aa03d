package vm

import (
	"github.com/kristofer/corevm/internal/bytecode"
	"github.com/kristofer/corevm/internal/value"
)

// callableValue converts a Callable back into the Value kind that
// represents it on the stack — the inverse of value.CallableFromValue.
func callableValue(c value.Callable) value.Value {
	if c.Extern != nil {
		return value.Function(c.Extern)
	}
	return value.Closure(c.Closure)
}

// doCall implements the calling convention of spec 4.E exactly: resolve
// the callee at stack.len()-nargs-1, splicing in any PartialApplication's
// bound arguments, then dispatch on exact/under/over application.
func (t *Thread) doCall(nargs int) error {
	calleeIdx := t.stack.Len() - nargs - 1
	if calleeIdx < 0 {
		return t.errorf("stack underflow in call with %d args", nargs)
	}
	callee := t.stack.At(calleeIdx)

	if callee.Kind() == value.KindPartialApplication {
		pa := callee.AsPartialApplication()
		bound := make([]value.Value, len(pa.Args))
		for i, c := range pa.Args {
			bound[i] = c.Get()
		}
		inner := callableValue(pa.Function)
		t.stack.Set(calleeIdx, inner)
		t.stack.InsertSlice(calleeIdx+1, bound)
		return t.doCall(nargs + len(bound))
	}

	if !callee.IsCallable() {
		return t.errorf("cannot call a value of kind %s", callee.Kind())
	}
	callable := value.CallableFromValue(callee)
	r := int(callable.Args())

	switch {
	case nargs == r:
		t.stack.PushFrame(nargs, callable, nil)
		return nil

	case nargs < r:
		bound := t.stack.PopN(nargs)
		t.stack.Pop() // discard the callee slot
		def := value.PartialApplicationDataDef(callable, bound)
		pa := t.Alloc(def).(*value.PartialApplicationData)
		t.stack.Push(value.PartialApplication(pa))
		return nil

	default: // over-application
		excess := nargs - r
		excessVals := t.stack.PopN(excess)
		obj := t.Alloc(value.DataDataDef(value.ExcessArgsTag, excessVals))
		ds := obj.(*value.DataStruct)
		t.stack.InsertSlice(calleeIdx, []value.Value{value.Data(ds)})
		t.stack.PushFrame(r, callable, ds)
		return nil
	}
}

// doReturn implements spec 4.E "Return": pop the return value, collapse
// the frame (locals, args, and the callee slot that invoked it) down to
// one slot, then either push the result directly or, if the frame carried
// excess arguments, apply the result to them (over-application of the
// result — spec "Design notes").
func (t *Thread) doReturn() error {
	r := t.stack.Pop()
	frame := t.stack.PopFrame()
	t.stack.Truncate(frame.Base - 1)

	if frame.Excess != nil {
		data := t.stack.Pop().AsData()
		t.stack.Push(r)
		for _, c := range data.Fields {
			t.stack.Push(c.Get())
		}
		return t.doCall(len(data.Fields))
	}
	t.stack.Push(r)
	return nil
}

// doTailCall implements spec 4.E "Tail calls": the current frame is
// discarded in place rather than left on the stack, so a self-recursive
// tail call never grows frame depth (spec 8, "A tail call from within a
// deeply recursive self-call does not grow frame depth beyond a
// constant").
//
// Design note: spec 4.C says the span to drop is "everything between the
// frame base and the args". Read literally that would leave the old
// callee slot (at base-1) behind, which breaks do_call's invariant that
// the callee sits directly below its args and defeats the constant-depth
// property (each tail call would grow the stack by one slot forever).
// COREVM drops from base-1 (including the stale callee) up to, but not
// including, the new callee's slot, so the new callee and its args slide
// down to where the old ones sat and the next frame gets the exact same
// base — see DESIGN.md.
func (t *Thread) doTailCall(a int) error {
	frame := *t.stack.CurrentFrame()
	if frame.Excess != nil {
		for _, c := range frame.Excess.Fields {
			t.stack.Push(c.Get())
		}
		a += len(frame.Excess.Fields)
	}
	dropFrom := frame.Base - 1
	dropTo := t.stack.Len() - a - 1
	t.stack.RemoveRange(dropFrom, dropTo)
	t.stack.PopFrame()
	return t.doCall(a)
}

// invokeExtern runs the foreign-call bridge for the current frame (spec
// 4.G, 4.E "Foreign frames"): the stack borrow is released for the
// duration of the callback (Go needs no explicit borrow release, but the
// callback is free to re-enter the interpreter, per spec "Foreign
// re-entry"), the callback reads args and leaves exactly one value (or an
// error) on top, then the bridge unwinds the callee's frame itself.
func (t *Thread) invokeExtern() error {
	frame := t.stack.PopFrame()
	ctx := &externCallContext{
		thread:  t,
		base:    frame.Base,
		numArgs: int(frame.Function.Args()),
		result:  nil,
	}
	frame.Function.Extern.Callback(ctx)
	if ctx.err != nil {
		return ctx.err
	}
	if ctx.result == nil {
		panic("vm: extern function " + frame.Function.Name() + " returned without leaving a result")
	}

	t.stack.Truncate(frame.Base - 1)
	if frame.Excess != nil {
		t.stack.Pop() // the excess Data bundle, same invariant as doReturn
		t.stack.Push(*ctx.result)
		for _, c := range frame.Excess.Fields {
			t.stack.Push(c.Get())
		}
		return t.doCall(len(frame.Excess.Fields))
	}
	t.stack.Push(*ctx.result)
	return nil
}

// externCallContext is the narrow stack view an ExternFunction callback
// receives (spec 4.G): it can read its own arguments and must leave
// exactly one value — a result or an error — before returning.
type externCallContext struct {
	thread  *Thread
	base    int
	numArgs int
	result  *value.Value
	err     error
}

func (c *externCallContext) Arg(i int) value.Value {
	return c.thread.stack.At(c.base + i)
}

func (c *externCallContext) NumArgs() int { return c.numArgs }

func (c *externCallContext) PushResult(v value.Value) {
	c.result = &v
}

func (c *externCallContext) PushError(message string) {
	c.err = c.thread.errorf("%s", message)
	unit := value.Int(0)
	c.result = &unit
}

// run executes instructions until the interpreter's stack returns to
// exactly targetDepth frames — i.e. until the call that pushed the
// (targetDepth+1)-th frame, and everything it transitively called, has
// returned. This is the single dispatch loop spec 4.E describes; tail
// calls and exact closure calls never recurse into Go's own call stack,
// only extern calls do (and only because the host callback may re-enter
// the interpreter, per spec "Foreign re-entry").
func (t *Thread) run(targetDepth int) error {
	for t.stack.Depth() > targetDepth {
		frame := t.stack.CurrentFrame()
		if frame.Function != nil && frame.Function.IsExtern() {
			if err := t.invokeExtern(); err != nil {
				return err
			}
			continue
		}

		fn := frame.Function.Closure.Function
		if frame.InstructionIndex >= len(fn.Instructions) {
			if err := t.doReturn(); err != nil {
				return err
			}
			continue
		}

		instr := fn.Instructions[frame.InstructionIndex]
		ip := frame.InstructionIndex
		frame.InstructionIndex++

		if t.tracer != nil {
			ok, err := t.tracer.Before(t, ip, instr)
			if err != nil {
				return err
			}
			if !ok {
				return t.errorf("execution aborted by tracer at instruction %d", ip)
			}
		}

		if err := t.step(fn, instr); err != nil {
			return err
		}
	}
	return nil
}

// step executes a single instruction against the currently running
// closure frame (spec 4.E, "Instruction set").
func (t *Thread) step(fn *value.BytecodeFunction, instr bytecode.Instruction) error {
	s := t.stack
	switch instr.Op {

	case bytecode.AddInt:
		b, a := s.Pop().AsInt(), s.Pop().AsInt()
		s.Push(value.Int(a + b))
	case bytecode.SubInt:
		b, a := s.Pop().AsInt(), s.Pop().AsInt()
		s.Push(value.Int(a - b))
	case bytecode.MulInt:
		b, a := s.Pop().AsInt(), s.Pop().AsInt()
		s.Push(value.Int(a * b))
	case bytecode.DivInt:
		b, a := s.Pop().AsInt(), s.Pop().AsInt()
		s.Push(value.Int(a / b))
	case bytecode.IntLT:
		b, a := s.Pop().AsInt(), s.Pop().AsInt()
		s.Push(boolInt(a < b))
	case bytecode.IntEQ:
		b, a := s.Pop().AsInt(), s.Pop().AsInt()
		s.Push(boolInt(a == b))

	case bytecode.AddFloat:
		b, a := s.Pop().AsFloat(), s.Pop().AsFloat()
		s.Push(value.Float(a + b))
	case bytecode.SubFloat:
		b, a := s.Pop().AsFloat(), s.Pop().AsFloat()
		s.Push(value.Float(a - b))
	case bytecode.MulFloat:
		b, a := s.Pop().AsFloat(), s.Pop().AsFloat()
		s.Push(value.Float(a * b))
	case bytecode.DivFloat:
		b, a := s.Pop().AsFloat(), s.Pop().AsFloat()
		s.Push(value.Float(a / b))
	case bytecode.FloatLT:
		b, a := s.Pop().AsFloat(), s.Pop().AsFloat()
		s.Push(boolInt(a < b))
	case bytecode.FloatEQ:
		b, a := s.Pop().AsFloat(), s.Pop().AsFloat()
		s.Push(boolInt(a == b))

	case bytecode.Push:
		frame := s.CurrentFrame()
		s.Push(s.At(frame.Base + instr.Operand))
	case bytecode.PushInt:
		s.Push(value.Int(int64(instr.Operand)))
	case bytecode.PushFloat:
		s.Push(value.Float(instr.OperandF))
	case bytecode.PushString:
		str := t.Alloc(value.StrDataDef(fn.Strings[instr.Operand])).(*value.Str)
		s.Push(value.String(str))
	case bytecode.PushGlobal:
		s.Push(t.state.GlobalCell(instr.Operand).Get())
	case bytecode.PushUpVar:
		s.Push(s.GetUpvar(instr.Operand))
	case bytecode.Pop:
		s.PopN(instr.Operand)
	case bytecode.Slide:
		top := s.Pop()
		s.PopN(instr.Operand)
		s.Push(top)

	case bytecode.Jump:
		s.CurrentFrame().InstructionIndex = instr.Operand
	case bytecode.CJump:
		if s.Pop().AsInt() != 0 {
			s.CurrentFrame().InstructionIndex = instr.Operand
		}
	case bytecode.Call:
		return t.doCall(instr.Operand)
	case bytecode.TailCall:
		return t.doTailCall(instr.Operand)

	case bytecode.MakeClosure:
		inner := fn.Inner[instr.Operand].Function
		upvars := s.PopN(instr.OperandB)
		obj := t.Alloc(value.ClosureDataDef(inner, upvars)).(*value.ClosureData)
		s.Push(value.Closure(obj))
	case bytecode.NewClosure:
		inner := fn.Inner[instr.Operand].Function
		obj := t.Alloc(value.PlaceholderClosureDataDef(inner, instr.OperandB)).(*value.ClosureData)
		s.Push(value.Closure(obj))
	case bytecode.CloseClosure:
		n := instr.Operand
		vals := s.PopN(n)
		closure := s.Pop().AsClosure()
		for i := 0; i < n; i++ {
			closure.Upvars[i].Set(vals[i])
		}

	case bytecode.Construct:
		fields := s.PopN(instr.Operand)
		obj := t.Alloc(value.DataDataDef(uint32(instr.OperandB), fields)).(*value.DataStruct)
		s.Push(value.Data(obj))
	case bytecode.GetField:
		d := s.Pop().AsData()
		s.Push(d.Field(instr.Operand))
	case bytecode.TestTag:
		d := s.Top().AsData()
		s.Push(boolInt(d.Tag == uint32(instr.Operand)))
	case bytecode.Split:
		d := s.Pop().AsData()
		for _, c := range d.Fields {
			s.Push(c.Get())
		}
	case bytecode.GetIndex:
		idx := s.Pop().AsInt()
		arr := s.Pop().AsData()
		s.Push(arr.Field(int(idx)))
	case bytecode.SetIndex:
		v := s.Pop()
		idx := s.Pop().AsInt()
		arr := s.Pop().AsData()
		if int(idx) < 0 || int(idx) >= len(arr.Fields) {
			return t.errorf("index %d out of range (0..%d)", idx, len(arr.Fields))
		}
		arr.Fields[idx].Set(v)

	default:
		panic("vm: unhandled opcode in dispatch")
	}
	return nil
}

func boolInt(b bool) value.Value {
	if b {
		return value.Int(1)
	}
	return value.Int(0)
}

// CallFunction invokes the value already pushed nargs-args-deep on the
// stack (spec 6, "call_function(frame, nargs)") and returns its result.
func (t *Thread) CallFunction(nargs int) (value.Value, error) {
	targetDepth := t.stack.Depth()
	if err := t.doCall(nargs); err != nil {
		return value.Value{}, err
	}
	if err := t.run(targetDepth); err != nil {
		return value.Value{}, err
	}
	return t.stack.Pop(), nil
}

// CallModule runs a top-level closure to completion (spec 4.E "Module
// entry and IO"). If isIO is true, the interpreter applies the returned
// IO action by re-entering the dispatch loop with a synthetic unit
// argument — "running IO at top level".
func (t *Thread) CallModule(closure value.Value, isIO bool) (value.Value, error) {
	t.stack.Push(closure)
	result, err := t.CallFunction(0)
	if err != nil {
		return value.Value{}, err
	}
	if !isIO {
		return result, nil
	}
	t.stack.Push(result)
	t.stack.Push(value.Int(0)) // synthetic unit argument
	return t.CallFunction(1)
}
