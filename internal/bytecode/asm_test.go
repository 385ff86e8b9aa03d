package bytecode_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/corevm/internal/bytecode"
)

const sampleSource = `
.args 2
PUSH 0
PUSH 1
ADD_INT
CJUMP done
PUSH_INT 0
done:
PUSH_INT 1
`

func TestAssemble_ResolvesForwardLabels(t *testing.T) {
	cf, err := bytecode.Assemble(strings.NewReader(sampleSource))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), cf.Args)
	require.Len(t, cf.Instructions, 6)

	cjump := cf.Instructions[3]
	require.Equal(t, bytecode.CJump, cjump.Op)
	assert.Equal(t, 5, cjump.Operand, "done: label resolves to the index of PUSH_INT 1")
}

func TestAssemble_UnknownMnemonicReportsLine(t *testing.T) {
	_, err := bytecode.Assemble(strings.NewReader(".args 0\nNOT_A_REAL_OP\n"))
	require.Error(t, err)
	var asmErr *bytecode.AssembleError
	require.ErrorAs(t, err, &asmErr)
	assert.Equal(t, 2, asmErr.Line)
}

func TestAssemble_UndefinedLabelFails(t *testing.T) {
	_, err := bytecode.Assemble(strings.NewReader(".args 0\nJUMP nowhere\n"))
	assert.Error(t, err)
}

func TestAssemble_NestedFunc(t *testing.T) {
	src := `
.args 1
PUSH 0
.func
.args 1
PUSH_UPVAR 0
.end
MAKE_CLOSURE 0 1
`
	cf, err := bytecode.Assemble(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, cf.InnerFunctions, 1)
	assert.Equal(t, uint32(1), cf.InnerFunctions[0].Args)
	require.Len(t, cf.InnerFunctions[0].Instructions, 1)
	assert.Equal(t, bytecode.PushUpVar, cf.InnerFunctions[0].Instructions[0].Op)
}

func TestDisassemble_ProducesNonEmptyText(t *testing.T) {
	cf, err := bytecode.Assemble(strings.NewReader(sampleSource))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, bytecode.Disassemble(cf, &buf))
	out := buf.String()
	assert.Contains(t, out, "ADD_INT")
	assert.Contains(t, out, ".args 2")
}

func TestEncodeDecode_RoundTripsCompiledFunction(t *testing.T) {
	cf, err := bytecode.Assemble(strings.NewReader(sampleSource))
	require.NoError(t, err)
	cf.Strings = []string{"hello"}

	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(cf, &buf))

	decoded, err := bytecode.Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, cf.Name, decoded.Name)
	assert.Equal(t, cf.Args, decoded.Args)
	assert.Equal(t, cf.Strings, decoded.Strings)
	require.Equal(t, len(cf.Instructions), len(decoded.Instructions))
	for i := range cf.Instructions {
		assert.Equal(t, cf.Instructions[i], decoded.Instructions[i])
	}
}

func TestEncodeDecode_RoundTripsInnerFunctions(t *testing.T) {
	src := `
.args 1
PUSH 0
.func
.args 1
PUSH_UPVAR 0
.end
MAKE_CLOSURE 0 1
`
	cf, err := bytecode.Assemble(strings.NewReader(src))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, bytecode.Encode(cf, &buf))
	decoded, err := bytecode.Decode(&buf)
	require.NoError(t, err)

	require.Len(t, decoded.InnerFunctions, 1)
	assert.Equal(t, uint32(1), decoded.InnerFunctions[0].Args)
}
