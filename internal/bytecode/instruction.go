// Package bytecode defines the instruction set and the wire-format function
// container the VM executes. This is the one piece of the compiler
// front-end the core specifies (spec.md section 1): the shape of a
// CompiledFunction blob, and nothing about how one gets produced.
//
// Instruction format:
//
// Every instruction is a fixed-size opcode/operand pair. Most opcodes use
// only Operand; the two-operand opcodes use OperandB as well: MakeClosure
// and NewClosure pack a function-table index and an upvar count, and
// Construct packs a field count and a tag.
package bytecode

// Opcode names a single VM operation. The set is exhaustive per spec
// section 4.E — there is no extension point; adding an opcode means
// updating the interpreter's dispatch switch as well.
type Opcode byte

const (
	// === Arithmetic / comparison ===
	//
	// Each pops two values and pushes one result. Division by zero and
	// operand-type mismatches are host-defined (spec 4.E); the
	// interpreter panics on a type mismatch, since that indicates a
	// compiler bug rather than a user-reachable error.

	AddInt Opcode = iota
	SubInt
	MulInt
	DivInt
	IntLT
	IntEQ
	AddFloat
	SubFloat
	MulFloat
	DivFloat
	FloatLT
	FloatEQ

	// === Stack manipulation ===

	// Push duplicates frame-relative slot Operand to the top.
	Push
	// PushInt pushes the literal Operand as an Int.
	PushInt
	// PushFloat pushes the literal OperandF as a Float.
	PushFloat
	// PushString pushes the frame function's string pool entry Operand.
	PushString
	// PushGlobal pushes the current value of global Operand.
	PushGlobal
	// PushUpVar pushes upvar Operand of the running closure.
	PushUpVar
	// Pop discards the top Operand values.
	Pop
	// Slide saves the top value, discards Operand values below it, then
	// restores the saved value. Used to drop locals while keeping a
	// result.
	Slide

	// === Control flow ===

	// Jump unconditionally transfers control to instruction Operand.
	Jump
	// CJump pops a value and jumps to Operand if it is non-zero.
	CJump
	// Call invokes the callable Operand slots below the top of stack,
	// passing the top Operand values as arguments.
	Call
	// TailCall is like Call but reuses the current frame (spec 4.E "Tail
	// calls").
	TailCall

	// === Closures ===

	// MakeClosure pops OperandB upvars and allocates a closure over inner
	// function Operand.
	MakeClosure
	// NewClosure allocates a closure over inner function Operand with
	// OperandB placeholder upvars and pushes it, for tying recursive
	// bindings (spec "Design notes", cyclic closures).
	NewClosure
	// CloseClosure pops Operand values and the closure sitting beneath
	// them, then fills the closure's upvars from the popped values in the
	// order they were pushed (upvar 0 gets the first-pushed value).
	CloseClosure

	// === Data ===

	// Construct pops Operand fields and pushes a Data value tagged
	// OperandB.
	Construct
	// GetField pops a Data value and pushes its field Operand.
	GetField
	// TestTag peeks a Data value and pushes 1 if its tag equals Operand,
	// else 0.
	TestTag
	// Split pops a Data value and pushes all of its fields in order.
	Split
	// GetIndex pops an index then an array (both Data with Int-indexed
	// fields) and pushes the element.
	GetIndex
	// SetIndex pops value, index, array and writes the field.
	SetIndex
)

// Instruction is a single opcode/operand pair. Operand carries an integer
// payload (literal, index, jump target, argument count); OperandF carries
// the float literal for PushFloat; OperandB carries the second field of
// the two-operand opcodes (the upvar count of MakeClosure/NewClosure, the
// tag of Construct).
type Instruction struct {
	Op       Opcode
	Operand  int
	OperandB int
	OperandF float64
}

// String renders an instruction mnemonic for disassembly and the
// assembler's error messages.
func (op Opcode) String() string {
	switch op {
	case AddInt:
		return "ADD_INT"
	case SubInt:
		return "SUB_INT"
	case MulInt:
		return "MUL_INT"
	case DivInt:
		return "DIV_INT"
	case IntLT:
		return "INT_LT"
	case IntEQ:
		return "INT_EQ"
	case AddFloat:
		return "ADD_FLOAT"
	case SubFloat:
		return "SUB_FLOAT"
	case MulFloat:
		return "MUL_FLOAT"
	case DivFloat:
		return "DIV_FLOAT"
	case FloatLT:
		return "FLOAT_LT"
	case FloatEQ:
		return "FLOAT_EQ"
	case Push:
		return "PUSH"
	case PushInt:
		return "PUSH_INT"
	case PushFloat:
		return "PUSH_FLOAT"
	case PushString:
		return "PUSH_STRING"
	case PushGlobal:
		return "PUSH_GLOBAL"
	case PushUpVar:
		return "PUSH_UPVAR"
	case Pop:
		return "POP"
	case Slide:
		return "SLIDE"
	case Jump:
		return "JUMP"
	case CJump:
		return "CJUMP"
	case Call:
		return "CALL"
	case TailCall:
		return "TAILCALL"
	case MakeClosure:
		return "MAKE_CLOSURE"
	case NewClosure:
		return "NEW_CLOSURE"
	case CloseClosure:
		return "CLOSE_CLOSURE"
	case Construct:
		return "CONSTRUCT"
	case GetField:
		return "GET_FIELD"
	case TestTag:
		return "TEST_TAG"
	case Split:
		return "SPLIT"
	case GetIndex:
		return "GET_INDEX"
	case SetIndex:
		return "SET_INDEX"
	default:
		return "UNKNOWN"
	}
}

// CompiledFunction is the wire contract between a compiler front end (out
// of scope here, spec.md section 1) and the VM: everything new_function
// needs to build a runtime BytecodeFunction.
type CompiledFunction struct {
	Name           string
	Args           uint32
	Instructions   []Instruction
	InnerFunctions []*CompiledFunction
	Strings        []string
}

// NewClosureUpvarCap bounds the number of upvars NewClosure can reserve in
// one instruction: the source VM fills placeholder upvars from a
// fixed-size 128-slot array (spec "Design notes", Open question). COREVM
// keeps the same cap rather than silently lifting it.
const NewClosureUpvarCap = 128
