package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexOK(t *testing.T, src string) []Lexeme {
	t.Helper()
	toks, err := Lex([]byte(src), "test.asm")
	require.NoError(t, err)
	return toks
}

func kinds(toks []Lexeme) []Kind {
	out := make([]Kind, len(toks))
	for i, lx := range toks {
		out[i] = lx.Kind
	}
	return out
}

func TestLexInstructionLine(t *testing.T) {
	toks := lexOK(t, "move $1, $2\n")
	assert.Equal(t, []Kind{KindOpcode, KindDollar, KindLiteralInteger, KindComma, KindDollar, KindLiteralInteger, KindTerminator, KindEOF}, kinds(toks))
	assert.Equal(t, "move", toks[0].Text)
}

func TestLexGreedyPrefixGluesToOpcode(t *testing.T) {
	toks := lexOK(t, "g.li $1, 42\n")
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, KindOpcode, toks[0].Kind)
	assert.Equal(t, "g.li", toks[0].Text)
}

func TestLexUnknownGreedySpellingFallsBackToAtomDot(t *testing.T) {
	// "g.bogus" is not a real opcode: lexer must not choke on it, it
	// should fall back to atom + dot + atom rather than erroring.
	toks := lexOK(t, ".symbol g.bogus\n")
	require.Len(t, toks, 6)
	assert.Equal(t, KindDeclareSymbol, toks[0].Kind)
	assert.Equal(t, KindLiteralAtom, toks[1].Kind)
	assert.Equal(t, "g", toks[1].Text)
	assert.Equal(t, KindDot, toks[2].Kind)
	assert.Equal(t, KindLiteralAtom, toks[3].Kind)
	assert.Equal(t, "bogus", toks[3].Text)
}

func TestLexRegisterSetSuffix(t *testing.T) {
	toks := lexOK(t, "move $1.a, $2.p\n")
	assert.Equal(t, []Kind{
		KindOpcode, KindDollar, KindLiteralInteger, KindDot, KindLiteralAtom, KindComma,
		KindDollar, KindLiteralInteger, KindDot, KindLiteralAtom, KindTerminator, KindEOF,
	}, kinds(toks))
	assert.Equal(t, "a", toks[4].Text)
	assert.Equal(t, "p", toks[9].Text)
}

func TestLexCommentsAreDropped(t *testing.T) {
	toks := lexOK(t, "halt ; a trailing comment\nhalt // another style\n")
	var opcodes []string
	for _, lx := range toks {
		if lx.Kind == KindOpcode {
			opcodes = append(opcodes, lx.Text)
		}
	}
	assert.Equal(t, []string{"halt", "halt"}, opcodes)
}

func TestLexSectionDirectives(t *testing.T) {
	toks := lexOK(t, ".section \".text\"\n.text\n.rodata\n")
	assert.Equal(t, KindSwitchToSection, toks[0].Kind)
	assert.Equal(t, KindLiteralString, toks[1].Kind)
}

func TestLexGluedIntegerLiteralIsAMistake(t *testing.T) {
	_, err := Lex([]byte("li $1, 01\n"), "test.asm")
	require.Error(t, err)
	ae, ok := err.(*AsmError)
	require.True(t, ok)
	assert.Equal(t, CauseInvalidToken, ae.Cause)
}

func TestLexLabelDefinition(t *testing.T) {
	toks := lexOK(t, "loop:\nhalt\n")
	require.NotEmpty(t, toks)
	assert.Equal(t, KindDefineLabel, toks[0].Kind)
	assert.Equal(t, "loop", toks[0].Text)
}
