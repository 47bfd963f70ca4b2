package main

import (
	"fmt"
	"strings"
)

// Lexer scans source bytes left to right into a flat vector of
// Lexemes, mirroring the teacher's Lexer{input,pos,line} shape
// (lexer.go) but tracking column/offset/length for diagnostics.
type Lexer struct {
	src  []byte
	pos  int
	line int
	col  int
}

func NewLexer(src []byte) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1, col: 1}
}

func (lx *Lexer) peek() byte {
	if lx.pos >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos]
}

func (lx *Lexer) peekAt(off int) byte {
	if lx.pos+off >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+off]
}

func (lx *Lexer) advance() byte {
	b := lx.src[lx.pos]
	lx.pos++
	if b == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return b
}

func (lx *Lexer) here() Location {
	return Location{Line: lx.line, Col: lx.col, Offset: lx.pos}
}

func isDigit(b byte) bool     { return b >= '0' && b <= '9' }
func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentCont(b byte) bool { return isIdentStart(b) || isDigit(b) }

// Lex tokenizes the full source, applying the noise-removal and
// find-mistakes post-passes described in spec §4.1.
func Lex(src []byte, path string) ([]Lexeme, error) {
	lx := NewLexer(src)
	var out []Lexeme
	for {
		lexeme, err := lx.next()
		if err != nil {
			return nil, err
		}
		out = append(out, lexeme)
		if lexeme.Kind == KindEOF {
			break
		}
	}
	out = removeNoise(out)
	if err := findMistakes(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (lx *Lexer) mkLoc(start Location) Location {
	start.Length = lx.pos - start.Offset
	return start
}

func (lx *Lexer) next() (Lexeme, error) {
	for {
		// Skip whitespace other than newlines.
		for lx.pos < len(lx.src) && (lx.peek() == ' ' || lx.peek() == '\t' || lx.peek() == '\r') {
			lx.advance()
		}
		if lx.pos >= len(lx.src) {
			return Lexeme{Kind: KindEOF, Loc: lx.here()}, nil
		}
		// Comments run to end of line.
		if lx.peek() == ';' || (lx.peek() == '/' && lx.peekAt(1) == '/') {
			for lx.pos < len(lx.src) && lx.peek() != '\n' {
				lx.advance()
			}
			continue
		}
		break
	}

	start := lx.here()
	b := lx.peek()

	switch {
	case b == '\n':
		lx.advance()
		return Lexeme{Kind: KindTerminator, Text: "\n", Loc: lx.mkLoc(start)}, nil
	case b == ',':
		lx.advance()
		return Lexeme{Kind: KindComma, Text: ",", Loc: lx.mkLoc(start)}, nil
	case b == '$':
		lx.advance()
		return Lexeme{Kind: KindDollar, Text: "$", Loc: lx.mkLoc(start)}, nil
	case b == '@':
		lx.advance()
		return Lexeme{Kind: KindAt, Text: "@", Loc: lx.mkLoc(start)}, nil
	case b == '*':
		lx.advance()
		return Lexeme{Kind: KindStar, Text: "*", Loc: lx.mkLoc(start)}, nil
	case b == '=':
		lx.advance()
		return Lexeme{Kind: KindEq, Text: "=", Loc: lx.mkLoc(start)}, nil
	case b == '[' && lx.peekAt(1) == '[':
		lx.advance()
		lx.advance()
		return Lexeme{Kind: KindAttrListOpen, Text: "[[", Loc: lx.mkLoc(start)}, nil
	case b == ']' && lx.peekAt(1) == ']':
		lx.advance()
		lx.advance()
		return Lexeme{Kind: KindAttrListClose, Text: "]]", Loc: lx.mkLoc(start)}, nil
	case b == '"':
		return lx.lexString(start)
	case b == '.':
		return lx.lexDot(start)
	case isDigit(b):
		return lx.lexNumber(start)
	case b == '-' && isDigit(lx.peekAt(1)):
		lx.advance()
		return lx.lexNumber(start)
	case isIdentStart(b):
		return lx.lexWord(start)
	default:
		lx.advance()
		return Lexeme{}, &AsmError{
			Cause:   CauseInvalidToken,
			Primary: Lexeme{Kind: KindEOF, Text: string(b), Loc: lx.mkLoc(start)},
			Aside:   fmt.Sprintf("unexpected character %q", b),
		}
	}
}

// lexDot recognizes the directive keywords that begin with '.'
// (.section, .text, .rodata, .symbol, .object). Anything else is a
// standalone DOT token (register-set suffixes like `$3.a`, consumed
// one atom at a time rather than here) — the identifier following an
// unrecognized dot is left unconsumed for the next call to lex on its
// own, rather than being eagerly swallowed and rejected.
func (lx *Lexer) lexDot(start Location) (Lexeme, error) {
	lx.advance() // consume '.'
	wordStart := lx.pos
	end := wordStart
	for end < len(lx.src) && isIdentCont(lx.src[end]) {
		end++
	}
	word := string(lx.src[wordStart:end])
	commit := func() {
		lx.col += end - lx.pos
		lx.pos = end
	}
	switch word {
	case "section":
		commit()
		return Lexeme{Kind: KindSwitchToSection, Text: ".section", Loc: lx.mkLoc(start)}, nil
	case "text":
		commit()
		return Lexeme{Kind: KindSwitchToText, Text: ".text", Loc: lx.mkLoc(start)}, nil
	case "rodata":
		commit()
		return Lexeme{Kind: KindSwitchToRodata, Text: ".rodata", Loc: lx.mkLoc(start)}, nil
	case "symbol":
		commit()
		return Lexeme{Kind: KindDeclareSymbol, Text: ".symbol", Loc: lx.mkLoc(start)}, nil
	case "object":
		commit()
		return Lexeme{Kind: KindAllocateObject, Text: ".object", Loc: lx.mkLoc(start)}, nil
	default:
		return Lexeme{Kind: KindDot, Text: ".", Loc: lx.mkLoc(start)}, nil
	}
}

func (lx *Lexer) lexWord(start Location) (Lexeme, error) {
	for isIdentCont(lx.peek()) {
		lx.advance()
	}
	word := string(lx.src[start.Offset:lx.pos])

	// The greedy prefix `g.` glues onto its base mnemonic into a
	// single OPCODE lexeme (spec §4.5, GLOSSARY "Greedy prefix"). One
	// atom of lookahead resolves it; anything that isn't a known
	// greedy opcode falls back to plain "g" plus a standalone DOT.
	if word == "g" && lx.peek() == '.' {
		save, saveCol := lx.pos, lx.col
		lx.advance() // consume '.'
		restStart := lx.pos
		for isIdentCont(lx.peek()) {
			lx.advance()
		}
		rest := string(lx.src[restStart:lx.pos])
		full := "g." + rest
		if rest != "" && isKnownOpcode(full) {
			return Lexeme{Kind: KindOpcode, Text: full, Loc: lx.mkLoc(start)}, nil
		}
		lx.pos, lx.col = save, saveCol
	}

	// A label definition is an identifier immediately followed by ':'
	// with no intervening whitespace (spec §4.1/§6).
	if lx.peek() == ':' {
		lx.advance()
		return Lexeme{Kind: KindDefineLabel, Text: word, Loc: lx.mkLoc(start)}, nil
	}

	switch word {
	case "begin":
		return Lexeme{Kind: KindBegin, Text: word, Loc: lx.mkLoc(start)}, nil
	case "end":
		return Lexeme{Kind: KindEnd, Text: word, Loc: lx.mkLoc(start)}, nil
	case "void":
		return Lexeme{Kind: KindVoid, Text: word, Loc: lx.mkLoc(start)}, nil
	}
	if isKnownOpcode(word) {
		return Lexeme{Kind: KindOpcode, Text: word, Loc: lx.mkLoc(start)}, nil
	}
	return Lexeme{Kind: KindLiteralAtom, Text: word, Loc: lx.mkLoc(start)}, nil
}

func (lx *Lexer) lexString(start Location) (Lexeme, error) {
	lx.advance() // opening quote
	var sb strings.Builder
	for {
		if lx.pos >= len(lx.src) {
			return Lexeme{}, &AsmError{
				Cause:   CauseInvalidToken,
				Primary: Lexeme{Text: sb.String(), Loc: lx.mkLoc(start)},
				Aside:   "unterminated string literal",
			}
		}
		c := lx.peek()
		if c == '"' {
			lx.advance()
			break
		}
		if c == '\n' {
			return Lexeme{}, &AsmError{
				Cause:   CauseInvalidToken,
				Primary: Lexeme{Text: sb.String(), Loc: lx.mkLoc(start)},
				Aside:   "unterminated string literal",
			}
		}
		if c == '\\' {
			lx.advance()
			esc, err := lx.lexEscape(start)
			if err != nil {
				return Lexeme{}, err
			}
			sb.WriteByte(esc)
			continue
		}
		sb.WriteByte(c)
		lx.advance()
	}
	return Lexeme{Kind: KindLiteralString, Text: sb.String(), Loc: lx.mkLoc(start)}, nil
}

func (lx *Lexer) lexEscape(start Location) (byte, error) {
	if lx.pos >= len(lx.src) {
		return 0, &AsmError{Cause: CauseInvalidToken, Primary: Lexeme{Loc: lx.mkLoc(start)}, Aside: "unterminated escape sequence"}
	}
	c := lx.advance()
	switch c {
	case 'n':
		return '\n', nil
	case 't':
		return '\t', nil
	case '\\':
		return '\\', nil
	case '"':
		return '"', nil
	case '0':
		return 0, nil
	case 'x':
		hi, lo := lx.advance(), lx.advance()
		v, ok := hexPairValue(hi, lo)
		if !ok {
			return 0, &AsmError{Cause: CauseInvalidToken, Primary: Lexeme{Loc: lx.mkLoc(start)}, Aside: "invalid \\x escape"}
		}
		return v, nil
	default:
		return c, nil
	}
}

func hexDigitValue(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	default:
		return 0, false
	}
}

func hexPairValue(hi, lo byte) (byte, bool) {
	h, ok1 := hexDigitValue(hi)
	l, ok2 := hexDigitValue(lo)
	if !ok1 || !ok2 {
		return 0, false
	}
	return h<<4 | l, true
}

// lexNumber implements the integer/float scanner, including the
// intentional "bare 0 does not continue consuming digits" quirk that
// the find-mistakes pass (below) is designed to catch: an input like
// "01" lexes as two adjacent integer lexemes, "0" and "1", with zero
// gap between them.
func (lx *Lexer) lexNumber(start Location) (Lexeme, error) {
	if lx.peek() == '0' && (lx.peekAt(1) == 'x' || lx.peekAt(1) == 'X') {
		lx.advance()
		lx.advance()
		for isHexDigit(lx.peek()) {
			lx.advance()
		}
		return lx.finishInt(start)
	}
	if lx.peek() == '0' && (lx.peekAt(1) == 'b' || lx.peekAt(1) == 'B') {
		lx.advance()
		lx.advance()
		for lx.peek() == '0' || lx.peek() == '1' {
			lx.advance()
		}
		return lx.finishInt(start)
	}
	if lx.peek() == '0' && (lx.peekAt(1) == 'o' || lx.peekAt(1) == 'O') {
		lx.advance()
		lx.advance()
		for lx.peek() >= '0' && lx.peek() <= '7' {
			lx.advance()
		}
		return lx.finishInt(start)
	}
	if lx.peek() == '0' && lx.peekAt(1) != '.' {
		// Bare zero: deliberately does not consume further digits, so
		// "01" glues two lexemes together (spec §4.1 find-mistakes).
		lx.advance()
		return lx.finishInt(start)
	}

	for isDigit(lx.peek()) {
		lx.advance()
	}
	if lx.peek() == '.' && isDigit(lx.peekAt(1)) {
		lx.advance()
		for isDigit(lx.peek()) {
			lx.advance()
		}
		text := string(lx.src[start.Offset:lx.pos])
		return Lexeme{Kind: KindLiteralFloat, Text: text, Loc: lx.mkLoc(start)}, nil
	}
	return lx.finishInt(start)
}

func (lx *Lexer) finishInt(start Location) (Lexeme, error) {
	if lx.peek() == 'u' {
		lx.advance()
	}
	text := string(lx.src[start.Offset:lx.pos])
	return Lexeme{Kind: KindLiteralInteger, Text: text, Loc: lx.mkLoc(start)}, nil
}

func isHexDigit(b byte) bool {
	_, ok := hexDigitValue(b)
	return ok
}

// removeNoise collapses runs of TERMINATOR into a single terminator
// and discards leading terminators, per spec §4.1.
func removeNoise(in []Lexeme) []Lexeme {
	out := make([]Lexeme, 0, len(in))
	lastWasTerm := true // discard leading terminators
	for _, lx := range in {
		if lx.Kind == KindTerminator {
			if lastWasTerm {
				continue
			}
			lastWasTerm = true
			out = append(out, lx)
			continue
		}
		lastWasTerm = false
		out = append(out, lx)
	}
	return out
}

// findMistakes scans adjacent lexeme pairs with zero gap between them
// for the classic "glued numeric literal" bug (spec §4.1).
func findMistakes(lexemes []Lexeme) error {
	for i := 0; i+1 < len(lexemes); i++ {
		a, b := lexemes[i], lexemes[i+1]
		if a.Kind != KindLiteralInteger || b.Kind != KindLiteralInteger {
			continue
		}
		if a.Loc.Offset+a.Loc.Length != b.Loc.Offset {
			continue
		}
		return &AsmError{
			Cause:   CauseInvalidToken,
			Primary: a,
			Add:     []Lexeme{b},
			Aside:   fmt.Sprintf("%q is not a valid numeric literal", a.Text+b.Text),
			Note:    "use a 0o prefix for octal literals",
		}
	}
	return nil
}
