package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cookSource(t *testing.T, src string) ([]*InstructionNode, *SymbolCollector) {
	t.Helper()
	toks, err := Lex([]byte(src), "test.asm")
	require.NoError(t, err)
	nodes, err := Parse(toks)
	require.NoError(t, err)
	c, err := CollectSymbols(nodes)
	require.NoError(t, err)
	rd := NewRodataBuilder()
	require.NoError(t, MaterializeObjects(nodes, c, rd))
	instrs, err := NewCooker(c, rd).Cook(nodes)
	require.NoError(t, err)
	return instrs, c
}

func opcodes(instrs []*InstructionNode) []string {
	out := make([]string, len(instrs))
	for i, n := range instrs {
		out[i] = n.Opcode
	}
	return out
}

func TestCookLiShortFormUsesAddi(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nli $1, 5\nreturn\n")
	// prefix halt, addi, return, suffix halt
	assert.Equal(t, []string{"halt", "addi", "return", "halt"}, opcodes(instrs))
}

func TestCookLiLongFormSplitsIntoLuiLli(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nli $1, 5000000000\nreturn\n")
	assert.Equal(t, []string{"halt", "lui", "lli", "return", "halt"}, opcodes(instrs))
}

func TestCookLiFullAttributeForcesLongForm(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\n[[full]] li $1, 5\nreturn\n")
	assert.Equal(t, []string{"halt", "lui", "lli", "return", "halt"}, opcodes(instrs))
}

func TestCookLiVoidDestinationUsesScratchRegister(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nli void, 5\nreturn\n")
	addi := instrs[1]
	require.Equal(t, "addi", addi.Opcode)
	assert.Equal(t, ScratchReg, addi.Operands[0].Register.Index)
}

func TestCookDeleteExpandsToMoveVoid(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\ndelete $3\nreturn\n")
	assert.Equal(t, []string{"halt", "move", "return", "halt"}, opcodes(instrs))
	mv := instrs[1]
	assert.Equal(t, OperandVoid, mv.Operands[0].Kind)
	assert.Equal(t, uint8(3), mv.Operands[1].Register.Index)
}

func TestCookBareReturnGetsImplicitVoidOperand(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nreturn\n")
	ret := instrs[1]
	require.Len(t, ret.Operands, 1)
	assert.Equal(t, OperandVoid, ret.Operands[0].Kind)
}

func TestCookIfStagesTargetThroughScratchRegister(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nif $1, @loop\nloop:\nreturn\n")
	// halt, g.lui, g.lli, if, return, halt
	require.Len(t, instrs, 6)
	assert.Equal(t, "g.lui", instrs[1].Opcode)
	assert.Equal(t, ScratchReg, instrs[1].Operands[0].Register.Index)
	assert.Equal(t, "if", instrs[3].Opcode)
	assert.Equal(t, ScratchReg, instrs[3].Operands[1].Register.Index)
}

func TestCookCallReusesItsOwnReturnRegister(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\ncall $1, @main\nreturn\n")
	require.Len(t, instrs, 6)
	assert.Equal(t, "call", instrs[3].Opcode)
	assert.Equal(t, uint8(1), instrs[3].Operands[1].Register.Index)
}

func TestCookCallWithVoidReturnUsesScratchRegister(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\ncall void, @main\nreturn\n")
	call := instrs[3]
	assert.Equal(t, "call", call.Opcode)
	assert.Equal(t, ScratchReg, call.Operands[1].Register.Index)
}

func TestCookCallToJumpLabelTargetIsRejected(t *testing.T) {
	_, err := func() (_ []*InstructionNode, err error) {
		toks, lexErr := Lex([]byte(".text\n.symbol [[entry_point]] main\nmain:\ncall $1, @loop\nloop:\nreturn\n"), "test.asm")
		require.NoError(t, lexErr)
		nodes, parseErr := Parse(toks)
		require.NoError(t, parseErr)
		c, collectErr := CollectSymbols(nodes)
		require.NoError(t, collectErr)
		rd := NewRodataBuilder()
		require.NoError(t, MaterializeObjects(nodes, c, rd))
		return NewCooker(c, rd).Cook(nodes)
	}()
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseInvalidReference, ae.Cause)
}

func TestCookIfToCallableTargetIsRejected(t *testing.T) {
	_, err := func() (_ []*InstructionNode, err error) {
		toks, lexErr := Lex([]byte(".text\n.symbol [[entry_point]] main\nmain:\nif $1, @main\nreturn\n"), "test.asm")
		require.NoError(t, lexErr)
		nodes, parseErr := Parse(toks)
		require.NoError(t, parseErr)
		c, collectErr := CollectSymbols(nodes)
		require.NoError(t, collectErr)
		rd := NewRodataBuilder()
		require.NoError(t, MaterializeObjects(nodes, c, rd))
		return NewCooker(c, rd).Cook(nodes)
	}()
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseInvalidReference, ae.Cause)
}

func TestCookMaterializedStringAtomViaGLi(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\natom $1, \"hi\"\nreturn\n")
	require.Len(t, instrs, 6)
	assert.Equal(t, "g.lui", instrs[1].Opcode)
	assert.Equal(t, "atom", instrs[3].Opcode)
	require.Len(t, instrs[3].Operands, 1)
	assert.Equal(t, uint8(1), instrs[3].Operands[0].Register.Index)
}

func TestCookArodpStaysAsDirectImmediate(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\narodp $1, \"hi\"\nreturn\n")
	assert.Equal(t, []string{"halt", "arodp", "return", "halt"}, opcodes(instrs))
	assert.Equal(t, OperandInt, instrs[1].Operands[1].Kind)
}

func TestCookMemoryPseudoExpandsToGenericForm(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nsb $1, $2, 0\nreturn\n")
	mv := instrs[1]
	assert.Equal(t, "sm", mv.Opcode)
	assert.Equal(t, OperandUnit, mv.Operands[0].Kind)
}

func TestCookMemoryPseudoKeepsLoadStoreAndAllocDistinct(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nlw $1, $2, 0\nreturn\n")
	assert.Equal(t, "lm", instrs[1].Opcode)

	instrs, _ = cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\namwa $1, $2, 0\nreturn\n")
	assert.Equal(t, "ama", instrs[1].Opcode)

	instrs, _ = cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\namwd $1, $2, 0\nreturn\n")
	assert.Equal(t, "amd", instrs[1].Opcode)
}

func TestCookArithImmediateRejectsOutOfRangeValue(t *testing.T) {
	_, err := func() (_ []*InstructionNode, err error) {
		toks, lexErr := Lex([]byte(".text\n.symbol [[entry_point]] main\nmain:\naddi $1, $2, 100000000\nreturn\n"), "test.asm")
		require.NoError(t, lexErr)
		nodes, parseErr := Parse(toks)
		require.NoError(t, parseErr)
		c, collectErr := CollectSymbols(nodes)
		require.NoError(t, collectErr)
		rd := NewRodataBuilder()
		require.NoError(t, MaterializeObjects(nodes, c, rd))
		return NewCooker(c, rd).Cook(nodes)
	}()
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseValueOutOfRange, ae.Cause)
}

func TestCookCastResolvesFundamentalTypeName(t *testing.T) {
	instrs, _ := cookSource(t, ".text\n.symbol [[entry_point]] main\nmain:\ncast $1, int\nreturn\n")
	cst := instrs[1]
	assert.Equal(t, OperandInt, cst.Operands[1].Kind)
}

func TestCookCastRejectsUnknownTypeWithSuggestion(t *testing.T) {
	_, err := func() (_ []*InstructionNode, err error) {
		toks, lexErr := Lex([]byte(".text\n.symbol [[entry_point]] main\nmain:\ncast $1, intt\nreturn\n"), "test.asm")
		require.NoError(t, lexErr)
		nodes, parseErr := Parse(toks)
		require.NoError(t, parseErr)
		c, collectErr := CollectSymbols(nodes)
		require.NoError(t, collectErr)
		rd := NewRodataBuilder()
		require.NoError(t, MaterializeObjects(nodes, c, rd))
		return NewCooker(c, rd).Cook(nodes)
	}()
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseInvalidCast, ae.Cause)
	assert.Contains(t, ae.Note, `"int"`)
}
