package main

import (
	"fmt"
	"strings"
)

// ScratchReg is the local register li substitutes for an explicit
// `void` destination (in both its short and long form), and the register if/call/actor
// stage a resolved address or symbol index through when they have no
// register of their own to reuse (spec §4.5).
const ScratchReg uint8 = 253

// Cooker expands the pseudo-instructions the parser accepted into the
// sequence of real machine opcodes that actually get encoded, per
// spec §4.5. It also resolves every .text label to its byte offset
// and every large-literal operand to a .rodata-backed symbol.
type Cooker struct {
	c  *SymbolCollector
	rd *RodataBuilder
}

func NewCooker(c *SymbolCollector, rd *RodataBuilder) *Cooker {
	return &Cooker{c: c, rd: rd}
}

// Cook walks nodes in order and returns the flat, fully-real
// instruction stream that encode.go turns into a byte buffer. The
// stream is prefixed and suffixed with an explicit HALT word, per
// spec §4.5.
func (k *Cooker) Cook(nodes []Node) ([]*InstructionNode, error) {
	out := []*InstructionNode{{Opcode: "halt"}}
	section := sectionNone
	pc := uint64(8)
	for _, n := range nodes {
		switch node := n.(type) {
		case *SectionNode:
			switch node.Name {
			case ".text":
				section = sectionText
			case ".rodata":
				section = sectionRodata
			}
		case *LabelNode:
			if section != sectionText {
				continue
			}
			idx, ok := k.c.Map.Lookup(node.Name)
			if !ok {
				return nil, NewError(CauseUnknownLabel, node.Leader, fmt.Sprintf("internal: label %q not in symbol table", node.Name))
			}
			k.c.Table.Get(idx).Value = pc
		case *InstructionNode:
			if section != sectionText {
				return nil, NewError(CauseInvalidOperand, node.Leader, "instructions may only appear in .text")
			}
			cooked, err := k.cookOne(node)
			if err != nil {
				return nil, err
			}
			out = append(out, cooked...)
			for _, ci := range cooked {
				pc += 8
				if info, ok := lookupOpcode(ci.Opcode); ok && info.Format == FormatE {
					pc += 8 // E-format carries its immediate in a second word
				}
			}
		}
	}
	out = append(out, &InstructionNode{Opcode: "halt"})
	return out, nil
}

func (k *Cooker) cookOne(node *InstructionNode) ([]*InstructionNode, error) {
	base := baseOpcode(node.Opcode)
	switch {
	case base == "li":
		return k.cookLiInstruction(node)
	case base == "delete":
		return k.cookDelete(node)
	case base == "return":
		return k.cookReturn(node)
	case base == "if" || base == "call" || base == "actor":
		return k.cookBranch(node)
	case needsOperandMaterialization(node.Opcode):
		return k.cookMaterialized(node)
	case isMemoryPseudo(node.Opcode):
		return k.cookMemory(node)
	case base == "addi" || base == "subi" || base == "muli" || base == "divi":
		return k.cookArithImmediate(node)
	case base == "cast":
		return k.cookCast(node)
	default:
		if _, ok := lookupOpcode(node.Opcode); !ok {
			return nil, NewError(CauseUnknownOpcode, node.Leader, didYouMean(node.Opcode, allOpcodeNames()))
		}
		return []*InstructionNode{node}, nil
	}
}

func isMemoryPseudo(op string) bool {
	if !pseudoOpcodes[op] {
		return false
	}
	base := baseOpcode(op)
	return base != "li" && base != "delete"
}

func fitsR24(v int64, unsigned bool) bool {
	if unsigned {
		return v >= 0 && v < (1<<24)
	}
	return v >= -(1 << 23) && v < (1<<23)
}

func splitWord(v uint64) (hi, lo uint32) {
	return uint32(v >> 32), uint32(v)
}

func registerOperand(index uint8) Operand {
	return Operand{Kind: OperandRegister, Register: RegisterAccess{Index: index, Direct: true}}
}

// expandLi builds the real instructions for a load-immediate of value
// into dst, honoring the short-addi/long-lui-lli choice, the
// `[[full]]` override, and the void-destination-uses-253 rule (spec
// §4.5). It returns the cooked instructions plus the register operand
// that now actually holds the value, since a void dst is rewritten to
// ScratchReg.
func expandLi(hdr Header, dst Operand, value int64, unsigned bool, full bool, greedy bool) ([]*InstructionNode, Operand, error) {
	if dst.Kind == OperandVoid {
		dst = registerOperand(ScratchReg)
	}
	if dst.Kind != OperandRegister {
		return nil, Operand{}, NewError(CauseInvalidOperand, dst.mainLexeme(), "li's destination must be a register or void")
	}

	if !full && fitsR24(value, unsigned) {
		name := "addi"
		if unsigned {
			name = "addiu"
		}
		if greedy {
			name = "g." + name
		}
		void := Operand{Kind: OperandVoid}
		imm := Operand{Kind: OperandInt, Int: value, Unsigned: unsigned}
		instr := &InstructionNode{Header: hdr, Opcode: name, Operands: []Operand{dst, void, imm}}
		return []*InstructionNode{instr}, dst, nil
	}

	luiName, lliName := "lui", "lli"
	if greedy {
		luiName, lliName = "g.lui", "g.lli"
	}
	hi, lo := splitWord(uint64(value))
	instrs := []*InstructionNode{
		{Header: hdr, Opcode: luiName, Operands: []Operand{dst, {Kind: OperandInt, Int: int64(uint64(hi) << 32)}}},
		{Header: hdr, Opcode: lliName, Operands: []Operand{dst, {Kind: OperandInt, Int: int64(lo)}}},
	}
	return instrs, dst, nil
}

// cookLiInstruction handles a source-level `li`/`g.li` instruction.
func (k *Cooker) cookLiInstruction(node *InstructionNode) ([]*InstructionNode, error) {
	if len(node.Operands) != 2 {
		return nil, NewError(CauseTooFewOperands, node.Leader, "li takes a destination register and an integer literal")
	}
	dst, val := node.Operands[0], node.Operands[1]
	if val.Kind != OperandInt {
		return nil, NewError(CauseInvalidOperand, val.mainLexeme(), "li's second operand must be an integer literal")
	}
	greedy := strings.HasPrefix(node.Opcode, "g.")
	full := hasAttr(node.Attributes, "full")
	instrs, _, err := expandLi(node.Header, dst, val.Int, val.Unsigned, full, greedy)
	return instrs, err
}

// cookDelete expands `delete $reg` into `move void, $reg`, the
// canonical way this core frees a register's value (spec §4.5).
func (k *Cooker) cookDelete(node *InstructionNode) ([]*InstructionNode, error) {
	if len(node.Operands) != 1 || node.Operands[0].Kind != OperandRegister {
		return nil, NewError(CauseInvalidOperand, node.Leader, "delete takes exactly one register operand")
	}
	void := Operand{Kind: OperandVoid}
	return []*InstructionNode{{Header: node.Header, Opcode: "move", Operands: []Operand{void, node.Operands[0]}}}, nil
}

// cookReturn fills in the implicit `void` operand of a bare `return`.
func (k *Cooker) cookReturn(node *InstructionNode) ([]*InstructionNode, error) {
	if len(node.Operands) == 0 {
		node.Operands = []Operand{{Kind: OperandVoid}}
	}
	return []*InstructionNode{node}, nil
}

// cookBranch expands if/call/actor (and their g. forms). `if` always
// stages its resolved label through ScratchReg (its dst is
// conceptually void); `call`/`actor` reuse their own return register
// when one is given, falling back to ScratchReg when it is void (spec
// §4.5).
func (k *Cooker) cookBranch(node *InstructionNode) ([]*InstructionNode, error) {
	if len(node.Operands) != 2 {
		return nil, NewError(CauseTooFewOperands, node.Leader, "expected a register/void operand and a label operand")
	}
	first, label := node.Operands[0], node.Operands[1]
	if label.Kind != OperandLabelRef {
		return nil, NewError(CauseInvalidOperand, label.mainLexeme(), "expected a label reference")
	}
	idx, ok := k.c.Map.Lookup(label.Label)
	if !ok {
		return nil, NewError(CauseUnknownLabel, label.mainLexeme(), fmt.Sprintf("undefined label %q", label.Label)).
			WithNote(didYouMean(label.Label, k.c.Map.Names()))
	}

	base := baseOpcode(node.Opcode)
	liDst := first
	if base == "if" {
		if !k.c.Table.IsJumpLabel(idx) {
			if k.c.Table.IsCallable(idx) {
				return nil, NewError(CauseInvalidReference, label.mainLexeme(), fmt.Sprintf("%q is a callable function, not a jump label", label.Label))
			}
			return nil, NewError(CauseInvalidReference, label.mainLexeme(), fmt.Sprintf("%q is not a jump target", label.Label))
		}
		liDst = Operand{Kind: OperandVoid}
	} else {
		if !k.c.Table.IsCallable(idx) {
			if k.c.Table.IsJumpLabel(idx) {
				return nil, NewError(CauseInvalidReference, label.mainLexeme(), fmt.Sprintf("%q is a hidden local jump label, not a callable function", label.Label))
			}
			return nil, NewError(CauseCallToUndefinedFunction, label.mainLexeme(), fmt.Sprintf("%q is not a callable function", label.Label))
		}
	}

	load, resolved, err := expandLi(node.Header, liDst, int64(idx), true, true, true)
	if err != nil {
		return nil, err
	}
	final := &InstructionNode{Header: node.Header, Opcode: node.Opcode, Operands: []Operand{first, resolved}}
	return append(load, final), nil
}

// cookMaterialized expands atom/double/arodp (and g. forms). arodp's
// symbol index fits directly in its own E-format immediate; atom and
// double instead stage the index through a g.li into their
// destination register, then emit the atom/double opcode with that
// register as its single operand; the opcode is not emitted bare
// (spec §4.4, §4.5).
func (k *Cooker) cookMaterialized(node *InstructionNode) ([]*InstructionNode, error) {
	if len(node.Operands) != 2 {
		return nil, NewError(CauseTooFewOperands, node.Leader, "expected a destination register and a value to materialize")
	}
	dst := node.Operands[0]
	if dst.Kind != OperandRegister {
		return nil, NewError(CauseInvalidOperand, dst.mainLexeme(), "expected a destination register")
	}
	if err := MaterializeOperand(&node.Operands[1], k.rd, k.c); err != nil {
		return nil, err
	}
	idx := node.Operands[1].SymbolIndex

	if baseOpcode(node.Opcode) == "arodp" {
		node.Operands[1] = Operand{Kind: OperandInt, Int: int64(idx)}
		return []*InstructionNode{node}, nil
	}

	greedy := true // "synthesizing a g.li", forced regardless of the instruction's own prefix
	load, resolved, err := expandLi(node.Header, dst, int64(idx), true, true, greedy)
	if err != nil {
		return nil, err
	}
	final := &InstructionNode{Header: node.Header, Opcode: node.Opcode, Operands: []Operand{resolved}}
	return append(load, final), nil
}

// memoryPseudoInfo decodes a memory-access pseudo-op's mnemonic into
// its unit and which of the four generic families (store/load/
// alloc-address/alloc-data) it belongs to, per spec §4.5.
func memoryPseudoInfo(base string) (unit uint8, family string, ok bool) {
	switch {
	case base[0] == 's' && len(base) == 2:
		unit, ok = memoryUnit[base[1:]]
		family = "sm"
	case base[0] == 'l' && len(base) == 2:
		unit, ok = memoryUnit[base[1:]]
		family = "lm"
	case strings.HasPrefix(base, "am") && len(base) == 4 && base[3] == 'a':
		unit, ok = memoryUnit[base[2:3]]
		family = "ama"
	case strings.HasPrefix(base, "am") && len(base) == 4 && base[3] == 'd':
		unit, ok = memoryUnit[base[2:3]]
		family = "amd"
	}
	return unit, family, ok
}

// cookMemory expands a unit-specific memory pseudo-op (sb/lb/.../am*a)
// into its generic `sm`/`lm`/`ama`/`amd` form (or the `g.` counterpart)
// with an explicit leading unit operand, per spec §4.5.
func (k *Cooker) cookMemory(node *InstructionNode) ([]*InstructionNode, error) {
	base := baseOpcode(node.Opcode)
	unit, family, ok := memoryPseudoInfo(base)
	if !ok {
		return nil, NewError(CauseUnknownOpcode, node.Leader, didYouMean(node.Opcode, allOpcodeNames()))
	}
	name := family
	if strings.HasPrefix(node.Opcode, "g.") {
		name = "g." + family
	}
	operands := append([]Operand{{Kind: OperandUnit, Unit: unit}}, node.Operands...)
	if len(operands) < 4 {
		operands = append(operands, Operand{Kind: OperandInt, Int: 0})
	}
	return []*InstructionNode{{Header: node.Header, Opcode: name, Operands: operands}}, nil
}

// cookArithImmediate picks addi/subi/muli/divi vs. their u-suffixed
// counterparts from the trailing literal's own unsigned marker, then
// range-checks the 24-bit immediate field (spec §4.5).
func (k *Cooker) cookArithImmediate(node *InstructionNode) ([]*InstructionNode, error) {
	if len(node.Operands) != 3 {
		return nil, NewError(CauseTooFewOperands, node.Leader, "expected destination, source and immediate operands")
	}
	imm := node.Operands[2]
	if imm.Kind != OperandInt {
		return nil, NewError(CauseInvalidOperand, imm.mainLexeme(), "expected an integer literal immediate")
	}
	base := baseOpcode(node.Opcode)
	greedy := strings.HasPrefix(node.Opcode, "g.")
	if !strings.HasSuffix(base, "u") && imm.Unsigned {
		base += "u"
	}
	sentinel := imm.Unsigned && imm.Int == -1
	if !fitsR24(imm.Int, imm.Unsigned) && !sentinel {
		return nil, NewError(CauseValueOutOfRange, imm.mainLexeme(), "immediate does not fit in a 24-bit field").
			WithNote("use li to load the value into a register first")
	}
	name := base
	if greedy {
		name = "g." + base
	}
	return []*InstructionNode{{Header: node.Header, Opcode: name, Operands: node.Operands}}, nil
}

// cookCast resolves cast's fundamental-type operand to its numeric
// code, suggesting a correction for an unrecognized type name (spec
// §4.5).
func (k *Cooker) cookCast(node *InstructionNode) ([]*InstructionNode, error) {
	if len(node.Operands) != 2 {
		return nil, NewError(CauseTooFewOperands, node.Leader, "cast takes a register and a type name")
	}
	last := node.Operands[1]
	var code int
	switch last.Kind {
	case OperandType:
		code, _ = fundamentalTypeCode(last.TypeName)
	case OperandAtom:
		c2, ok := fundamentalTypeCode(last.Atom)
		if !ok {
			return nil, NewError(CauseInvalidCast, last.mainLexeme(), fmt.Sprintf("unknown fundamental type %q", last.Atom)).
				WithNote(didYouMean(last.Atom, fundamentalTypes))
		}
		code = c2
	default:
		return nil, NewError(CauseInvalidCast, last.mainLexeme(), "expected a fundamental type name")
	}
	node.Operands[1] = Operand{Kind: OperandInt, Int: int64(code)}
	return []*InstructionNode{node}, nil
}
