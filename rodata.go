package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// RodataBuilder accumulates the bytes that become the .rodata section.
// The first 8 bytes are reserved and always zero, mirroring the
// teacher's codegen_elf_writer.go convention of never handing out
// offset 0 as a real data address (offset 0 doubles as "no data").
type RodataBuilder struct {
	buf []byte
}

func NewRodataBuilder() *RodataBuilder {
	return &RodataBuilder{buf: make([]byte, 8)}
}

// PutBytes appends data and returns the offset it now starts at.
func (r *RodataBuilder) PutBytes(data []byte) uint64 {
	off := uint64(len(r.buf))
	r.buf = append(r.buf, data...)
	return off
}

func (r *RodataBuilder) Bytes() []byte { return r.buf }

// evalObjectCtor evaluates an .object constructor's ingredient lexemes
// into the raw byte payload it describes: a sequence of string
// literals and `N * "literal"` repeat groups, concatenated in order.
func evalObjectCtor(ctor []Lexeme) ([]byte, error) {
	var out []byte
	pos := 0
	for pos < len(ctor) {
		switch ctor[pos].Kind {
		case KindLiteralString:
			out = append(out, []byte(ctor[pos].Text)...)
			pos++
		case KindLiteralInteger:
			n, _, err := parseIntLiteral(ctor[pos].Text)
			if err != nil || n < 0 {
				return nil, NewError(CauseInvalidOperand, ctor[pos], "invalid repeat count in object constructor")
			}
			pos++
			if pos >= len(ctor) || ctor[pos].Kind != KindStar {
				return nil, NewError(CauseUnexpectedToken, ctor[pos-1], "expected '*' after a repeat count")
			}
			pos++
			if pos >= len(ctor) || ctor[pos].Kind != KindLiteralString {
				return nil, NewError(CauseUnexpectedToken, ctor[pos-1], "expected a string literal after '*'")
			}
			rep := ctor[pos].Text
			pos++
			for i := int64(0); i < n; i++ {
				out = append(out, []byte(rep)...)
			}
		default:
			return nil, NewError(CauseInvalidOperand, ctor[pos], fmt.Sprintf("unexpected %s in object constructor", ctor[pos].Kind))
		}
	}
	return out, nil
}

// MaterializeObjects walks the AST once, evaluating every .object
// constructor that follows a .rodata label and filling in that
// label's symbol Value/Size, per spec §4.4.
func MaterializeObjects(nodes []Node, c *SymbolCollector, rd *RodataBuilder) error {
	section := sectionNone
	pendingLabel := ""
	for _, n := range nodes {
		switch node := n.(type) {
		case *SectionNode:
			switch node.Name {
			case ".text":
				section = sectionText
			case ".rodata":
				section = sectionRodata
			}
			pendingLabel = ""
		case *LabelNode:
			if section == sectionRodata {
				pendingLabel = node.Name
			}
		case *ObjectNode:
			if section != sectionRodata {
				return NewError(CauseInvalidOperand, node.Leader, "an .object directive must follow a label inside .rodata")
			}
			if pendingLabel == "" {
				return NewError(CauseInvalidOperand, node.Leader, "an .object directive must immediately follow a label")
			}
			data, err := evalObjectCtor(node.Ctor)
			if err != nil {
				return err
			}
			idx, ok := c.Map.Lookup(pendingLabel)
			if !ok {
				return NewError(CauseUnknownLabel, node.Leader, fmt.Sprintf("internal: label %q not in symbol table", pendingLabel))
			}
			off := rd.PutBytes(data)
			sym := c.Table.Get(idx)
			sym.Value = off
			sym.Size = uint64(len(data))
			pendingLabel = ""
		default:
			pendingLabel = ""
		}
	}
	return nil
}

func baseOpcode(name string) string { return strings.TrimPrefix(name, "g.") }

// needsOperandMaterialization reports whether opcode's last operand is
// one of the three large-literal forms (atom/double/arodp) that must
// be turned into a .rodata-backed symbol index before it can fit in a
// register, per spec §4.5.
func needsOperandMaterialization(opcode string) bool {
	switch baseOpcode(opcode) {
	case "atom", "double", "arodp":
		return true
	}
	return false
}

// MaterializeOperand rewrites op in place into a resolved symbol
// index: a label reference resolves directly against the symbol map;
// a literal (atom, string, or float) is written into .rodata as an
// anonymous local object symbol first.
func MaterializeOperand(op *Operand, rd *RodataBuilder, c *SymbolCollector) error {
	switch op.Kind {
	case OperandLabelRef:
		idx, ok := c.Map.Lookup(op.Label)
		if !ok {
			return NewError(CauseUnknownLabel, op.mainLexeme(), fmt.Sprintf("undefined label %q", op.Label)).
				WithNote(didYouMean(op.Label, c.Map.Names()))
		}
		op.SymbolIndex = idx
		op.HasSymbolIndex = true
		return nil

	case OperandAtom, OperandString:
		text := op.Atom
		if op.Kind == OperandString {
			text = op.Str
		}
		data := append([]byte(text), 0)
		off := rd.PutBytes(data)
		idx := c.Table.Add(STBLocal, STTObject, STVDefault)
		sym := c.Table.Get(idx)
		sym.Value = off
		sym.Size = uint64(len(data))
		op.SymbolIndex = idx
		op.HasSymbolIndex = true
		return nil

	case OperandFloat:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(op.Float))
		off := rd.PutBytes(buf)
		idx := c.Table.Add(STBLocal, STTObject, STVDefault)
		sym := c.Table.Get(idx)
		sym.Value = off
		sym.Size = 8
		op.SymbolIndex = idx
		op.HasSymbolIndex = true
		return nil

	default:
		return NewError(CauseInvalidOperand, op.mainLexeme(), "expected a label, atom, string or float operand")
	}
}
