// Binary serialization for CompiledFunction, directly modeled on smog's
// .sg file format (pkg/bytecode/format.go): a magic/version header
// followed by length-prefixed sections, little-endian throughout. The
// wire contract spec.md section 6 actually requires is only the
// CompiledFunction struct shape new_function accepts — no on-disk format
// is mandated — but a binary image is what lets `corevm run` load a
// compiled program without re-invoking the (out-of-scope) front end.
package bytecode

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// MagicNumber is the file signature for .cva files: "CVA1".
	MagicNumber uint32 = 0x43564131
	// FormatVersion is the current image format version.
	FormatVersion uint32 = 1
)

// Encode serializes a compiled function (and, recursively, its inner
// function table) to w.
func Encode(cf *CompiledFunction, w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, MagicNumber); err != nil {
		return fmt.Errorf("writing magic: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, FormatVersion); err != nil {
		return fmt.Errorf("writing version: %w", err)
	}
	return writeFunction(w, cf)
}

// Decode reads a compiled function image written by Encode.
func Decode(r io.Reader) (*CompiledFunction, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if magic != MagicNumber {
		return nil, fmt.Errorf("invalid magic number: 0x%08X (expected 0x%08X)", magic, MagicNumber)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported format version: %d (expected %d)", version, FormatVersion)
	}
	return readFunction(r)
}

func writeFunction(w io.Writer, cf *CompiledFunction) error {
	if err := writeString(w, cf.Name); err != nil {
		return fmt.Errorf("writing name: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, cf.Args); err != nil {
		return fmt.Errorf("writing args: %w", err)
	}
	if err := writeStrings(w, cf.Strings); err != nil {
		return fmt.Errorf("writing string pool: %w", err)
	}
	if err := writeInstructions(w, cf.Instructions); err != nil {
		return fmt.Errorf("writing instructions: %w", err)
	}
	count := uint32(len(cf.InnerFunctions))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return fmt.Errorf("writing inner function count: %w", err)
	}
	for i, inner := range cf.InnerFunctions {
		if err := writeFunction(w, inner); err != nil {
			return fmt.Errorf("writing inner function %d: %w", i, err)
		}
	}
	return nil
}

func readFunction(r io.Reader) (*CompiledFunction, error) {
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("reading name: %w", err)
	}
	cf := &CompiledFunction{Name: name}
	if err := binary.Read(r, binary.LittleEndian, &cf.Args); err != nil {
		return nil, fmt.Errorf("reading args: %w", err)
	}
	if cf.Strings, err = readStrings(r); err != nil {
		return nil, fmt.Errorf("reading string pool: %w", err)
	}
	if cf.Instructions, err = readInstructions(r); err != nil {
		return nil, fmt.Errorf("reading instructions: %w", err)
	}
	var innerCount uint32
	if err := binary.Read(r, binary.LittleEndian, &innerCount); err != nil {
		return nil, fmt.Errorf("reading inner function count: %w", err)
	}
	cf.InnerFunctions = make([]*CompiledFunction, innerCount)
	for i := uint32(0); i < innerCount; i++ {
		inner, err := readFunction(r)
		if err != nil {
			return nil, fmt.Errorf("reading inner function %d: %w", i, err)
		}
		cf.InnerFunctions[i] = inner
	}
	return cf, nil
}

func writeInstructions(w io.Writer, instrs []Instruction) error {
	count := uint32(len(instrs))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return err
	}
	for i, instr := range instrs {
		if err := binary.Write(w, binary.LittleEndian, byte(instr.Op)); err != nil {
			return fmt.Errorf("instruction %d opcode: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, int64(instr.Operand)); err != nil {
			return fmt.Errorf("instruction %d operand: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, int64(instr.OperandB)); err != nil {
			return fmt.Errorf("instruction %d operandB: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, instr.OperandF); err != nil {
			return fmt.Errorf("instruction %d operandF: %w", i, err)
		}
	}
	return nil
}

func readInstructions(r io.Reader) ([]Instruction, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	instrs := make([]Instruction, count)
	for i := uint32(0); i < count; i++ {
		var op byte
		var operand, operandB int64
		var operandF float64
		if err := binary.Read(r, binary.LittleEndian, &op); err != nil {
			return nil, fmt.Errorf("instruction %d opcode: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &operand); err != nil {
			return nil, fmt.Errorf("instruction %d operand: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &operandB); err != nil {
			return nil, fmt.Errorf("instruction %d operandB: %w", i, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &operandF); err != nil {
			return nil, fmt.Errorf("instruction %d operandF: %w", i, err)
		}
		instrs[i] = Instruction{Op: Opcode(op), Operand: int(operand), OperandB: int(operandB), OperandF: operandF}
	}
	return instrs, nil
}

func writeString(w io.Writer, s string) error {
	length := uint32(len(s))
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeStrings(w io.Writer, strs []string) error {
	count := uint32(len(strs))
	if err := binary.Write(w, binary.LittleEndian, count); err != nil {
		return err
	}
	for _, s := range strs {
		if err := writeString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(r io.Reader) ([]string, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	strs := make([]string, count)
	for i := uint32(0); i < count; i++ {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		strs[i] = s
	}
	return strs, nil
}
