package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSource(t *testing.T, src string) []Node {
	t.Helper()
	toks, err := Lex([]byte(src), "test.asm")
	require.NoError(t, err)
	nodes, err := Parse(toks)
	require.NoError(t, err)
	return nodes
}

func TestParseSectionSymbolAndLabel(t *testing.T) {
	nodes := parseSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nreturn\n")
	require.Len(t, nodes, 4)

	sec, ok := nodes[0].(*SectionNode)
	require.True(t, ok)
	assert.Equal(t, ".text", sec.Name)

	sym, ok := nodes[1].(*SymbolNode)
	require.True(t, ok)
	assert.Equal(t, "main", sym.Name)
	assert.True(t, hasAttr(sym.Attributes, "entry_point"))

	lbl, ok := nodes[2].(*LabelNode)
	require.True(t, ok)
	assert.Equal(t, "main", lbl.Name)

	instr, ok := nodes[3].(*InstructionNode)
	require.True(t, ok)
	assert.Equal(t, "return", instr.Opcode)
}

func TestParseInstructionOperands(t *testing.T) {
	nodes := parseSource(t, "addi $1, $2, 10\n")
	instr := nodes[0].(*InstructionNode)
	require.Len(t, instr.Operands, 3)
	assert.Equal(t, OperandRegister, instr.Operands[0].Kind)
	assert.Equal(t, uint8(1), instr.Operands[0].Register.Index)
	assert.Equal(t, OperandInt, instr.Operands[2].Kind)
	assert.EqualValues(t, 10, instr.Operands[2].Int)
}

func TestParseLabelReferenceOperand(t *testing.T) {
	nodes := parseSource(t, "call $1, @helper\n")
	instr := nodes[0].(*InstructionNode)
	require.Len(t, instr.Operands, 2)
	assert.Equal(t, OperandLabelRef, instr.Operands[1].Kind)
	assert.Equal(t, "helper", instr.Operands[1].Label)
}

func TestParseObjectConstructor(t *testing.T) {
	nodes := parseSource(t, ".rodata\ngreeting:\n.object string \"hi\" 3 * \"!\"\n")
	obj := nodes[2].(*ObjectNode)
	assert.Equal(t, "string", obj.Type)
	data, err := evalObjectCtor(obj.Ctor)
	require.NoError(t, err)
	assert.Equal(t, "hi!!!", string(data))
}

func TestParseUnknownOpcodeSuggestsNearestMatch(t *testing.T) {
	toks, err := Lex([]byte("retrun\n"), "test.asm")
	require.NoError(t, err)
	_, err = Parse(toks)
	require.Error(t, err)
	ae, ok := err.(*AsmError)
	require.True(t, ok)
	assert.Equal(t, CauseUnknownOpcode, ae.Cause)
	assert.Contains(t, ae.Aside, `"return"`)
}

func TestParseAttributeListOnInstruction(t *testing.T) {
	nodes := parseSource(t, "[[full]] li $1, 5\n")
	instr := nodes[0].(*InstructionNode)
	assert.True(t, hasAttr(instr.Attributes, "full"))
}
