// Command corevm is the host program around the VM core: it loads a
// compiled function, wires the stdlib bridge into a fresh thread, and
// runs it to completion — plus the assembler/disassembler and an
// interactive REPL built on the same pieces.
//
// Subcommand surface mirrors smog's cmd/smog/main.go (run, repl, asm,
// disasm, version); the command tree itself is built on
// github.com/spf13/cobra the way golang-debug/cmd/viewcore wires a
// cobra.Command for its objref subcommand, rather than smog's own
// flag-less os.Args switch.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/kristofer/corevm/internal/bytecode"
	"github.com/kristofer/corevm/internal/stdlib"
	"github.com/kristofer/corevm/internal/value"
	"github.com/kristofer/corevm/internal/vm"
	"github.com/kristofer/corevm/internal/vm/trace"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "corevm",
		Short:         "corevm - a stack-based bytecode VM core",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newRunCmd(),
		newReplCmd(),
		newAsmCmd(),
		newDisasmCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the corevm version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "corevm version %s\n", version)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var isIO bool
	var debug bool
	cmd := &cobra.Command{
		Use:   "run <file.cva>",
		Short: "load a compiled function and execute it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := loadCompiledFile(args[0])
			if err != nil {
				return err
			}
			t := vm.NewVM()
			if err := registerStdlib(t); err != nil {
				return err
			}
			if debug {
				dbg := trace.New(os.Stdin, cmd.OutOrStdout())
				dbg.Enable()
				dbg.AddBreakpoint(0)
				t.SetTracer(dbg)
			}
			fn := value.NewFunction(cf)
			closure := value.Closure(&value.ClosureData{Function: fn})
			result, err := t.CallModule(closure, isIO)
			if err != nil {
				return fmt.Errorf("runtime error: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatResult(result))
			return nil
		},
	}
	cmd.Flags().BoolVar(&isIO, "io", false, "treat the entry point's result as an IO action and run it")
	cmd.Flags().BoolVar(&debug, "debug", false, "pause in the interactive debugger before the first instruction")
	return cmd
}

func newAsmCmd() *cobra.Command {
	var outputFile string
	cmd := &cobra.Command{
		Use:   "asm <input.cvasm> [output.cva]",
		Short: "assemble a mnemonic source file into a compiled function",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening input: %w", err)
			}
			defer in.Close()

			cf, err := bytecode.Assemble(in)
			if err != nil {
				return fmt.Errorf("assembling: %w", err)
			}

			out := outputFile
			if len(args) == 2 {
				out = args[1]
			}
			if out == "" {
				out = defaultOutputName(args[0])
			}

			outFile, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating output: %w", err)
			}
			defer outFile.Close()

			if err := bytecode.Encode(cf, outFile); err != nil {
				return fmt.Errorf("encoding: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "assembled %s -> %s\n", args[0], out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: input name with a .cvasm suffix replaced by .cva, otherwise with .cva appended)")
	return cmd
}

func defaultOutputName(in string) string {
	if strings.HasSuffix(in, ".cvasm") {
		return strings.TrimSuffix(in, ".cvasm") + ".cva"
	}
	return in + ".cva"
}

func newDisasmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disasm <file.cva>",
		Short: "print a human-readable disassembly of a compiled function",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cf, err := loadCompiledFile(args[0])
			if err != nil {
				return err
			}
			return bytecode.Disassemble(cf, cmd.OutOrStdout())
		},
	}
	return cmd
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "start an interactive session over an assembler-syntax top-level form",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.OutOrStdout())
		},
	}
}

// loadCompiledFile opens and decodes a wire-format CompiledFunction.
func loadCompiledFile(path string) (*bytecode.CompiledFunction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	cf, err := bytecode.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return cf, nil
}

// registerStdlib wires every stdlib bridge package into a fresh thread
// (spec 4.G's bridge, plumbed through the crypto/io/text/time primitive
// sets rehomed from smog's pkg/vm/primitives.go).
func registerStdlib(t *vm.Thread) error {
	for _, reg := range []func(*vm.Thread) error{
		stdlib.RegisterCrypto,
		stdlib.RegisterIO,
		stdlib.RegisterText,
		stdlib.RegisterTime,
	} {
		if err := reg(t); err != nil {
			return err
		}
	}
	return nil
}

func formatResult(v value.Value) string {
	switch v.Kind() {
	case value.KindInt:
		return fmt.Sprintf("%d", v.AsInt())
	case value.KindFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case value.KindString:
		return v.AsString().Value
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}

// runREPL is a thin, stateful loop over the assembler: each input line is
// treated as the body of a zero-argument function, assembled, closed over
// no upvars, and called on a VM thread that persists across inputs — the
// same "persistent VM, persistent compiler state" shape as smog's
// cmd/smog/main.go runREPL, with github.com/chzyer/readline's line editor
// standing in for its bufio.Scanner loop.
func runREPL(out io.Writer) error {
	fmt.Fprintf(out, "corevm REPL v%s\n", version)
	fmt.Fprintln(out, "Enter one assembler instruction per line, evaluated as a zero-argument function body. :quit to exit.")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "corevm> ",
		HistoryFile:     replHistoryPath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "^D",
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	t := vm.NewVM()
	if err := registerStdlib(t); err != nil {
		return err
	}

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case ":quit", ":exit":
			return nil
		case ":help":
			fmt.Fprintln(out, "  :quit, :exit   leave the REPL")
			fmt.Fprintln(out, "  :help          show this message")
			continue
		}

		src := ".args 0\n" + line + "\n"
		cf, err := bytecode.Assemble(strings.NewReader(src))
		if err != nil {
			fmt.Fprintf(out, "assemble error: %v\n", err)
			continue
		}
		fn := value.NewFunction(cf)
		closure := value.Closure(&value.ClosureData{Function: fn})
		result, err := t.CallModule(closure, false)
		if err != nil {
			fmt.Fprintf(out, "runtime error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "=> %s\n", formatResult(result))
	}
}

func replHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.corevm_history"
}
