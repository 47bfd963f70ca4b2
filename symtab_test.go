package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectSource(t *testing.T, src string) (*SymbolCollector, error) {
	t.Helper()
	toks, err := Lex([]byte(src), "test.asm")
	require.NoError(t, err)
	nodes, err := Parse(toks)
	require.NoError(t, err)
	return CollectSymbols(nodes)
}

func TestCollectEntryPointSymbol(t *testing.T) {
	c, err := collectSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nreturn\n")
	require.NoError(t, err)
	assert.Equal(t, "main", c.entry)

	idx, ok := c.Map.Lookup("main")
	require.True(t, ok)
	sym := c.Table.Get(idx)
	assert.Equal(t, STBGlobal, sym.bind())
	assert.Equal(t, STTFunc, sym.typ())
	assert.Equal(t, STVDefault, sym.Other)
}

func TestCollectDuplicatedEntryPointChainsToFirstDeclaration(t *testing.T) {
	_, err := collectSource(t, ".text\n.symbol [[entry_point]] a\na:\nreturn\n.symbol [[entry_point]] b\nb:\nreturn\n")
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseDuplicatedEntryPoint, ae.Cause)
	require.Len(t, ae.Chain, 1)
}

func TestCollectRejectsGlobalDefaultObjectSymbol(t *testing.T) {
	_, err := collectSource(t, ".rodata\n.symbol [[global]] thing\nthing:\n.object string \"x\"\n")
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseInvalidOperand, ae.Cause)
}

func TestLabelPassSynthesizesHiddenJumpLabel(t *testing.T) {
	c, err := collectSource(t, ".text\nstart:\nreturn\n")
	require.NoError(t, err)
	idx, ok := c.Map.Lookup("start")
	require.True(t, ok)
	assert.True(t, c.Table.IsJumpLabel(idx))
	assert.False(t, c.Table.IsCallable(idx))
}

func TestDeclaredSymbolNamesEndUpInStringTableSource(t *testing.T) {
	c, err := collectSource(t, ".text\n.symbol [[entry_point]] main\nmain:\nreturn\n")
	require.NoError(t, err)
	idx, _ := c.Map.Lookup("main")
	assert.Equal(t, "main", c.Table.Names[idx])
	assert.Equal(t, "", c.Table.Names[0])
}

func TestSymbolDeclaredOutsideSectionIsRejected(t *testing.T) {
	_, err := collectSource(t, ".symbol oops\n")
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseInvalidOperand, ae.Cause)
}
