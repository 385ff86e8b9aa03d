// Package trace is an interactive debugger over a running Thread,
// descended from smog's pkg/vm/debugger.go: breakpoints, step mode, and
// stack/global inspection, driven by a ShouldPause/InteractivePrompt
// split the same way smog's original does, adapted to corevm's
// Thread/Stack/Frame shapes in place of smog's VM/locals/callStack.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kristofer/corevm/internal/bytecode"
	"github.com/kristofer/corevm/internal/value"
	"github.com/kristofer/corevm/internal/vm"
)

// Debugger implements vm.Tracer, pausing the dispatch loop at
// breakpoints or, in step mode, before every instruction.
type Debugger struct {
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool

	in  *bufio.Scanner
	out io.Writer
}

// New creates a debugger reading commands from in and writing output to
// out (smog's InteractivePrompt hardcodes os.Stdin/Stdout; this takes
// them explicitly so the REPL or a test harness can redirect them).
func New(in io.Reader, out io.Writer) *Debugger {
	return &Debugger{
		breakpoints: make(map[int]bool),
		in:          bufio.NewScanner(in),
		out:         out,
	}
}

// Enable activates the debugger; Disable turns it into a no-op pass
// through (spec carries no debugger concept — this is pure host tooling).
func (d *Debugger) Enable()  { d.enabled = true }
func (d *Debugger) Disable() { d.enabled = false }

// SetStepMode toggles pausing before every instruction.
func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }

// AddBreakpoint and RemoveBreakpoint manage instruction-index breakpoints
// within whichever function is currently executing.
func (d *Debugger) AddBreakpoint(ip int)    { d.breakpoints[ip] = true }
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }
func (d *Debugger) ClearBreakpoints()       { d.breakpoints = make(map[int]bool) }

// Before implements vm.Tracer: it decides whether to pause before ip
// executes, and if so, drives the interactive prompt.
func (d *Debugger) Before(t *vm.Thread, ip int, instr bytecode.Instruction) (bool, error) {
	if !d.enabled {
		return true, nil
	}
	if !d.stepMode && !d.breakpoints[ip] {
		return true, nil
	}
	return d.interactivePrompt(t, ip, instr), nil
}

func (d *Debugger) interactivePrompt(t *vm.Thread, ip int, instr bytecode.Instruction) bool {
	fmt.Fprintln(d.out, "\n=== paused ===")
	d.showInstruction(ip, instr)

	for {
		fmt.Fprint(d.out, "debug> ")
		if !d.in.Scan() {
			return false
		}
		line := strings.TrimSpace(d.in.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return true
		case "step", "s", "next", "n":
			d.SetStepMode(true)
			return true
		case "stack", "st":
			d.showStack(t)
		case "globals", "g":
			d.showGlobals(t)
		case "instruction", "i":
			d.showInstruction(ip, instr)
		case "breakpoint", "b":
			if n, ok := parseArg(parts); ok {
				d.AddBreakpoint(n)
				fmt.Fprintf(d.out, "breakpoint set at %d\n", n)
			} else {
				fmt.Fprintln(d.out, "usage: breakpoint <instruction>")
			}
		case "delete", "d":
			if n, ok := parseArg(parts); ok {
				d.RemoveBreakpoint(n)
				fmt.Fprintf(d.out, "breakpoint removed at %d\n", n)
			} else {
				fmt.Fprintln(d.out, "usage: delete <instruction>")
			}
		case "heap":
			d.showHeap(t)
		case "quit", "q":
			return false
		default:
			fmt.Fprintf(d.out, "unknown command: %s (type 'help')\n", parts[0])
		}
	}
}

func parseArg(parts []string) (int, bool) {
	if len(parts) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func (d *Debugger) printHelp() {
	fmt.Fprintln(d.out, "  help, h, ?           show this help")
	fmt.Fprintln(d.out, "  continue, c          resume execution")
	fmt.Fprintln(d.out, "  step, s, next, n     pause before every instruction")
	fmt.Fprintln(d.out, "  stack, st            show the evaluation stack, top first")
	fmt.Fprintln(d.out, "  globals, g           show bound globals")
	fmt.Fprintln(d.out, "  instruction, i       show the instruction about to run")
	fmt.Fprintln(d.out, "  heap                 show heap stats (live/allocated/collections)")
	fmt.Fprintln(d.out, "  breakpoint <n>, b    pause before instruction n")
	fmt.Fprintln(d.out, "  delete <n>, d        remove a breakpoint")
	fmt.Fprintln(d.out, "  quit, q              abort execution")
}

func (d *Debugger) showInstruction(ip int, instr bytecode.Instruction) {
	fmt.Fprintf(d.out, "  %4d: %s operand=%d operandB=%d operandF=%g\n",
		ip, instr.Op, instr.Operand, instr.OperandB, instr.OperandF)
}

func (d *Debugger) showStack(t *vm.Thread) {
	s := t.Stack()
	fmt.Fprintln(d.out, "stack (top to bottom):")
	if s.Len() == 0 {
		fmt.Fprintln(d.out, "  (empty)")
		return
	}
	for i := s.Len() - 1; i >= 0; i-- {
		fmt.Fprintf(d.out, "  [%d] %s\n", i, describe(s.At(i)))
	}
}

func (d *Debugger) showGlobals(t *vm.Thread) {
	g := t.Global()
	fmt.Fprintln(d.out, "globals:")
	n := g.NumGlobals()
	if n == 0 {
		fmt.Fprintln(d.out, "  (none)")
		return
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(d.out, "  %s = %s\n", g.GlobalName(i), describe(g.GlobalCell(i).Get()))
	}
}

func (d *Debugger) showHeap(t *vm.Thread) {
	stats := t.Global().Heap().Stats()
	fmt.Fprintf(d.out, "heap: live=%d allocated=%d collections=%d\n",
		stats.Live, stats.Allocated, stats.Collections)
}

func describe(v value.Value) string {
	switch v.Kind() {
	case value.KindInt:
		return fmt.Sprintf("%d (Int)", v.AsInt())
	case value.KindFloat:
		return fmt.Sprintf("%g (Float)", v.AsFloat())
	case value.KindString:
		return fmt.Sprintf("%q (String)", v.AsString().Value)
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}
