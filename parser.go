package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Parser is a recursive-descent consumer over a sliding prefix view of
// the lexeme vector, mirroring the teacher's panic-then-recover
// control flow (parser.go's panic(fmt.Errorf(...)) pattern, recovered
// once at the entry point) rather than threading errors through every
// return.
type Parser struct {
	toks []Lexeme
	pos  int
}

// Parse consumes the full lexeme vector into an ordered AST, per
// spec §4.2.
func Parse(toks []Lexeme) (nodes []Node, err error) {
	p := &Parser{toks: toks}
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*AsmError); ok {
				err = ae
				return
			}
			panic(r)
		}
	}()
	for p.cur().Kind != KindEOF {
		if p.cur().Kind == KindTerminator {
			p.advance()
			continue
		}
		nodes = append(nodes, p.parseTop())
	}
	return nodes, nil
}

func (p *Parser) cur() Lexeme {
	if p.pos >= len(p.toks) {
		return Lexeme{Kind: KindEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) peekAt(off int) Lexeme {
	i := p.pos + off
	if i >= len(p.toks) {
		return Lexeme{Kind: KindEOF}
	}
	return p.toks[i]
}

func (p *Parser) advance() Lexeme {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) fail(cause Cause, primary Lexeme, aside string) {
	panic(&AsmError{Cause: cause, Primary: primary, Aside: aside})
}

func (p *Parser) expect(kind Kind) Lexeme {
	t := p.cur()
	if t.Kind != kind {
		p.fail(CauseUnexpectedToken, t, fmt.Sprintf("expected %s, found %s", kind, t.Kind))
	}
	return p.advance()
}

func (p *Parser) expectTerminator() {
	if p.cur().Kind == KindEOF {
		return
	}
	p.expect(KindTerminator)
}

// parseTop dispatches on the leading token, accepting exactly the set
// of leaders spec §4.2 names. Anything else is Unexpected_token.
func (p *Parser) parseTop() Node {
	cur := p.cur()
	switch cur.Kind {
	case KindSwitchToSection:
		return p.parseSection()
	case KindSwitchToText:
		return p.parseSectionShorthand(cur, ".text")
	case KindSwitchToRodata:
		return p.parseSectionShorthand(cur, ".rodata")
	case KindDeclareSymbol:
		return p.parseSymbol()
	case KindDefineLabel:
		return p.parseLabel()
	case KindAllocateObject:
		return p.parseObject()
	case KindBegin:
		return p.parseBeginEnd(true)
	case KindEnd:
		return p.parseBeginEnd(false)
	case KindAttrListOpen:
		attrs := p.parseAttrList()
		opcodeLex := p.expectOpcode()
		return p.parseInstruction(opcodeLex, attrs)
	case KindOpcode:
		opcodeLex := p.advance()
		return p.parseInstruction(opcodeLex, nil)
	case KindLiteralAtom:
		p.unknownOpcode(cur)
		panic("unreachable")
	default:
		p.fail(CauseUnexpectedToken, cur, "refer to viua-asm-lang(1) for the set of valid top-level statements")
		panic("unreachable")
	}
}

func (p *Parser) expectOpcode() Lexeme {
	cur := p.cur()
	if cur.Kind == KindOpcode {
		return p.advance()
	}
	if cur.Kind == KindLiteralAtom {
		p.unknownOpcode(cur)
	}
	p.fail(CauseUnexpectedToken, cur, "expected an instruction to follow an attribute list")
	panic("unreachable")
}

func (p *Parser) unknownOpcode(cur Lexeme) {
	aside := ""
	if hint := didYouMean(cur.Text, allOpcodeNames()); hint != "" {
		aside = hint
	}
	p.fail(CauseUnknownOpcode, cur, aside)
}

// parseAttrList parses `[[ key | key = value , ... ]]`.
func (p *Parser) parseAttrList() []AttrPair {
	p.expect(KindAttrListOpen)
	var attrs []AttrPair
	for p.cur().Kind != KindAttrListClose {
		key := p.expect(KindLiteralAtom)
		var value *Lexeme
		if p.cur().Kind == KindEq {
			p.advance()
			v := p.parseAttrValue()
			value = &v
		}
		attrs = append(attrs, AttrPair{Key: key, Value: value})
		if p.cur().Kind == KindComma {
			p.advance()
			continue
		}
		break
	}
	p.expect(KindAttrListClose)
	return attrs
}

func (p *Parser) parseAttrValue() Lexeme {
	switch p.cur().Kind {
	case KindLiteralAtom, KindLiteralString, KindLiteralInteger, KindLiteralFloat:
		return p.advance()
	default:
		p.fail(CauseUnexpectedToken, p.cur(), "expected an attribute value")
		panic("unreachable")
	}
}

func (p *Parser) parseHeaderAttrsIfPresent() []AttrPair {
	if p.cur().Kind == KindAttrListOpen {
		return p.parseAttrList()
	}
	return nil
}

func (p *Parser) parseSection() Node {
	leader := p.advance()
	attrs := p.parseHeaderAttrsIfPresent()
	nameLex := p.expect(KindLiteralString)
	p.expectTerminator()
	return &SectionNode{Header: Header{Leader: leader, Attributes: attrs}, Name: nameLex.Text}
}

func (p *Parser) parseSectionShorthand(leader Lexeme, name string) Node {
	p.advance()
	attrs := p.parseHeaderAttrsIfPresent()
	p.expectTerminator()
	return &SectionNode{Header: Header{Leader: leader, Attributes: attrs}, Name: name}
}

func (p *Parser) parseSymbol() Node {
	leader := p.advance()
	attrs := p.parseHeaderAttrsIfPresent()
	nameLex := p.parseNameLexeme()
	p.expectTerminator()
	return &SymbolNode{Header: Header{Leader: leader, Attributes: attrs}, Name: nameLex.Text}
}

func (p *Parser) parseNameLexeme() Lexeme {
	switch p.cur().Kind {
	case KindLiteralAtom, KindLiteralString:
		return p.advance()
	default:
		p.fail(CauseUnexpectedToken, p.cur(), "expected a symbol name")
		panic("unreachable")
	}
}

func (p *Parser) parseLabel() Node {
	leader := p.advance()
	attrs := p.parseHeaderAttrsIfPresent()
	p.expectTerminator()
	return &LabelNode{Header: Header{Leader: leader, Attributes: attrs}, Name: leader.Text}
}

func (p *Parser) parseBeginEnd(begin bool) Node {
	leader := p.advance()
	attrs := p.parseHeaderAttrsIfPresent()
	p.expectTerminator()
	if begin {
		return &BeginNode{Header: Header{Leader: leader, Attributes: attrs}}
	}
	return &EndNode{Header: Header{Leader: leader, Attributes: attrs}}
}

func (p *Parser) parseObject() Node {
	leader := p.advance()
	attrs := p.parseHeaderAttrsIfPresent()
	typeLex := p.expect(KindLiteralAtom)
	var ctor []Lexeme
	for p.cur().Kind != KindTerminator && p.cur().Kind != KindEOF {
		ctor = append(ctor, p.advance())
	}
	p.expectTerminator()
	return &ObjectNode{Header: Header{Leader: leader, Attributes: attrs}, Type: typeLex.Text, Ctor: ctor}
}

func (p *Parser) parseInstruction(opcodeLex Lexeme, attrs []AttrPair) Node {
	var operands []Operand
	for p.cur().Kind != KindTerminator && p.cur().Kind != KindEOF {
		operands = append(operands, p.parseOperand())
		if p.cur().Kind == KindComma {
			p.advance()
			if p.cur().Kind == KindTerminator || p.cur().Kind == KindEOF {
				p.fail(CauseUnexpectedToken, p.cur(), "expected an operand to follow a comma")
			}
			continue
		}
		break
	}
	p.expectTerminator()
	return &InstructionNode{
		Header:   Header{Leader: opcodeLex, Attributes: attrs},
		Opcode:   opcodeLex.Text,
		Operands: operands,
	}
}

func (p *Parser) parseOperand() Operand {
	var attrs []AttrPair
	if p.cur().Kind == KindAttrListOpen {
		attrs = p.parseAttrList()
	}

	var ing []Lexeme
	op := Operand{Attributes: attrs}

	switch p.cur().Kind {
	case KindVoid:
		ing = append(ing, p.advance())
		op.Kind = OperandVoid

	case KindStar:
		star := p.advance()
		ing = append(ing, star)
		dollar := p.expect(KindDollar)
		ing = append(ing, dollar)
		reg := p.parseRegisterBody(&ing)
		reg.Direct = false
		op.Kind = OperandRegister
		op.Register = reg

	case KindDollar:
		dollar := p.advance()
		ing = append(ing, dollar)
		reg := p.parseRegisterBody(&ing)
		reg.Direct = true
		op.Kind = OperandRegister
		op.Register = reg

	case KindAt:
		at := p.advance()
		ing = append(ing, at)
		name := p.parseNameLexeme()
		ing = append(ing, name)
		op.Kind = OperandLabelRef
		op.Label = name.Text

	case KindLiteralInteger:
		lit := p.advance()
		ing = append(ing, lit)
		v, unsigned, err := parseIntLiteral(lit.Text)
		if err != nil {
			p.fail(CauseInvalidOperand, lit, err.Error())
		}
		op.Kind = OperandInt
		op.Int = v
		op.Unsigned = unsigned

	case KindLiteralFloat:
		lit := p.advance()
		ing = append(ing, lit)
		f, err := strconv.ParseFloat(lit.Text, 64)
		if err != nil {
			p.fail(CauseInvalidOperand, lit, "invalid float literal")
		}
		op.Kind = OperandFloat
		op.Float = f

	case KindLiteralString:
		lit := p.advance()
		ing = append(ing, lit)
		op.Kind = OperandString
		op.Str = lit.Text

	case KindLiteralAtom:
		lit := p.advance()
		ing = append(ing, lit)
		if _, ok := fundamentalTypeCode(lit.Text); ok {
			op.Kind = OperandType
			op.TypeName = lit.Text
		} else {
			op.Kind = OperandAtom
			op.Atom = lit.Text
		}

	default:
		p.fail(CauseUnexpectedToken, p.cur(), "expected an operand")
	}

	op.Ingredients = ing
	return op
}

func (p *Parser) parseRegisterBody(ing *[]Lexeme) RegisterAccess {
	idxLex := p.expect(KindLiteralInteger)
	*ing = append(*ing, idxLex)
	idx, unsigned, err := parseIntLiteral(idxLex.Text)
	if err != nil || (!unsigned && idx < 0) {
		p.fail(CauseInvalidRegisterAccess, idxLex, "register index must be a non-negative integer")
	}
	if idx > 255 {
		p.fail(CauseInvalidRegisterAccess, idxLex, "register index out of range (0..255)")
	}

	set := RegLocal
	if p.cur().Kind == KindDot {
		dot := p.advance()
		*ing = append(*ing, dot)
		setLex := p.expect(KindLiteralAtom)
		*ing = append(*ing, setLex)
		s, ok := registerSetFromAtom(setLex.Text)
		if !ok {
			p.fail(CauseInvalidRegisterAccess, setLex, fmt.Sprintf("unknown register set %q (expected l, a, or p)", setLex.Text))
		}
		set = s
	}
	return RegisterAccess{Index: uint8(idx), Set: set}
}

// parseIntLiteral decodes a literal-integer lexeme's text (decimal,
// 0x/0b/0o radix, optional leading '-', optional trailing 'u') per
// spec §4.1.
func parseIntLiteral(text string) (value int64, unsigned bool, err error) {
	t := text
	if strings.HasSuffix(t, "u") {
		unsigned = true
		t = strings.TrimSuffix(t, "u")
	}
	neg := false
	if strings.HasPrefix(t, "-") {
		neg = true
		t = t[1:]
	}
	base := 10
	switch {
	case strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X"):
		base = 16
		t = t[2:]
	case strings.HasPrefix(t, "0b") || strings.HasPrefix(t, "0B"):
		base = 2
		t = t[2:]
	case strings.HasPrefix(t, "0o") || strings.HasPrefix(t, "0O"):
		base = 8
		t = t[2:]
	}
	if t == "" {
		t = "0"
	}
	u, perr := strconv.ParseUint(t, base, 64)
	if perr != nil {
		return 0, unsigned, fmt.Errorf("invalid integer literal %q", text)
	}
	v := int64(u)
	if neg {
		v = -v
	}
	return v, unsigned, nil
}
