package main

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeWord(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

func bitField(word uint64, offset, nbits int) uint64 {
	return (word >> uint(offset)) & (1<<uint(nbits) - 1)
}

func TestEncodeFormatNIsOpcodeByteOnly(t *testing.T) {
	b, err := EncodeInstruction(&InstructionNode{Opcode: "halt"})
	require.NoError(t, err)
	require.Len(t, b, 8)
	assert.Equal(t, uint64(0), decodeWord(b))
}

func TestEncodeFormatSPacksVoidRegisterAccess(t *testing.T) {
	instr := &InstructionNode{Opcode: "return", Operands: []Operand{{Kind: OperandVoid}}}
	b, err := EncodeInstruction(instr)
	require.NoError(t, err)
	word := decodeWord(b)
	info, _ := lookupOpcode("return")
	assert.Equal(t, uint64(opcodeByte(info)), bitField(word, 0, 8))
	assert.Equal(t, uint64(voidRegisterIndex), bitField(word, 8, 8))
	assert.Equal(t, uint64(1), bitField(word, 18, 1)) // direct bit
}

func TestEncodeFormatDPacksTwoRegisters(t *testing.T) {
	instr := &InstructionNode{Opcode: "move", Operands: []Operand{
		registerOperand(1), registerOperand(2),
	}}
	b, err := EncodeInstruction(instr)
	require.NoError(t, err)
	word := decodeWord(b)
	info, _ := lookupOpcode("move")
	assert.Equal(t, uint64(opcodeByte(info)), bitField(word, 0, 8))
	assert.Equal(t, uint64(1), bitField(word, 8, 8))
	assert.Equal(t, uint64(2), bitField(word, 19, 8))
}

func TestEncodeFormatTPacksThreeRegisters(t *testing.T) {
	// No real opcode in this core's table uses FormatT; exercise the
	// shared three-register packer directly with a synthetic opcode byte.
	ob := uint8(FormatT)<<4 | 0x3
	instr := &InstructionNode{Operands: []Operand{
		registerOperand(1), registerOperand(2), registerOperand(3),
	}}
	b, err := encodeRegisters(ob, instr, 3)
	require.NoError(t, err)
	word := decodeWord(b)
	assert.Equal(t, uint64(ob), bitField(word, 0, 8))
	assert.Equal(t, uint64(1), bitField(word, 8, 8))
	assert.Equal(t, uint64(2), bitField(word, 19, 8))
	assert.Equal(t, uint64(3), bitField(word, 30, 8))
}

func TestEncodeFormatFPacksRegisterAndImmediate(t *testing.T) {
	instr := &InstructionNode{Opcode: "float", Operands: []Operand{
		registerOperand(4), {Kind: OperandInt, Int: 7},
	}}
	b, err := EncodeInstruction(instr)
	require.NoError(t, err)
	word := decodeWord(b)
	info, _ := lookupOpcode("float")
	assert.Equal(t, uint64(opcodeByte(info)), bitField(word, 0, 8))
	assert.Equal(t, uint64(4), bitField(word, 8, 8))
	assert.Equal(t, uint64(7), bitField(word, 19, 32))
}

func TestEncodeFormatEProducesTwoWords(t *testing.T) {
	instr := &InstructionNode{Opcode: "lui", Operands: []Operand{
		registerOperand(5), {Kind: OperandInt, Int: int64(0x1122334455667788)},
	}}
	b, err := EncodeInstruction(instr)
	require.NoError(t, err)
	require.Len(t, b, 16)
	w1 := decodeWord(b[:8])
	w2 := decodeWord(b[8:])
	info, _ := lookupOpcode("lui")
	assert.Equal(t, uint64(opcodeByte(info)), bitField(w1, 0, 8))
	assert.Equal(t, uint64(5), bitField(w1, 8, 8))
	assert.Equal(t, uint64(0x1122334455667788), w2)
}

func TestEncodeFormatRPacksTwoRegistersAndImmediate(t *testing.T) {
	instr := &InstructionNode{Opcode: "addi", Operands: []Operand{
		registerOperand(1), registerOperand(2), {Kind: OperandInt, Int: 10},
	}}
	b, err := EncodeInstruction(instr)
	require.NoError(t, err)
	word := decodeWord(b)
	info, _ := lookupOpcode("addi")
	assert.Equal(t, uint64(opcodeByte(info)), bitField(word, 0, 8))
	assert.Equal(t, uint64(1), bitField(word, 8, 8))
	assert.Equal(t, uint64(2), bitField(word, 19, 8))
	assert.Equal(t, uint64(10), bitField(word, 30, 24))
}

func TestEncodeFormatRRejectsNegativeUnsignedImmediate(t *testing.T) {
	instr := &InstructionNode{Opcode: "addiu", Operands: []Operand{
		registerOperand(1), registerOperand(2), {Kind: OperandInt, Int: -5},
	}}
	_, err := EncodeInstruction(instr)
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseValueOutOfRange, ae.Cause)
}

func TestEncodeFormatRAllowsMinusOneUSentinel(t *testing.T) {
	instr := &InstructionNode{Opcode: "addiu", Operands: []Operand{
		registerOperand(1), registerOperand(2), {Kind: OperandInt, Int: -1, Unsigned: true},
	}}
	_, err := EncodeInstruction(instr)
	assert.NoError(t, err)
}

func TestEncodeFormatMPacksUnitRegistersAndOffset(t *testing.T) {
	instr := &InstructionNode{Opcode: "sm", Operands: []Operand{
		{Kind: OperandUnit, Unit: 2},
		registerOperand(1), registerOperand(2),
		{Kind: OperandInt, Int: 5},
	}}
	b, err := EncodeInstruction(instr)
	require.NoError(t, err)
	word := decodeWord(b)
	info, _ := lookupOpcode("sm")
	assert.Equal(t, uint64(opcodeByte(info)), bitField(word, 0, 8))
	assert.Equal(t, uint64(2), bitField(word, 8, 3))
	assert.Equal(t, uint64(1), bitField(word, 11, 8))
	assert.Equal(t, uint64(2), bitField(word, 22, 8))
	assert.Equal(t, uint64(5), bitField(word, 33, 16))
}

func TestEncodeUnknownOpcodeFails(t *testing.T) {
	_, err := EncodeInstruction(&InstructionNode{Opcode: "li"})
	require.Error(t, err)
	ae := err.(*AsmError)
	assert.Equal(t, CauseUnknownOpcode, ae.Cause)
}
