package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Cause is a closed enumeration of diagnosable failure reasons, per
// spec §7. There is no catch-all member: every throw site below names
// one of these explicitly.
type Cause int

const (
	CauseNone Cause = iota
	CauseInvalidToken
	CauseUnexpectedToken
	CauseUnknownOpcode
	CauseUnknownLabel
	CauseInvalidOperand
	CauseInvalidRegisterAccess
	CauseInvalidCast
	CauseInvalidReference
	CauseValueOutOfRange
	CauseJumpToUndefinedLabel
	CauseCallToUndefinedFunction
	CauseTooFewOperands
	CauseDuplicatedEntryPoint
)

func (c Cause) String() string {
	switch c {
	case CauseInvalidToken:
		return "invalid token"
	case CauseUnexpectedToken:
		return "unexpected token"
	case CauseUnknownOpcode:
		return "unknown opcode"
	case CauseUnknownLabel:
		return "unknown label"
	case CauseInvalidOperand:
		return "invalid operand"
	case CauseInvalidRegisterAccess:
		return "invalid register access"
	case CauseInvalidCast:
		return "invalid cast"
	case CauseInvalidReference:
		return "invalid reference"
	case CauseValueOutOfRange:
		return "value out of range"
	case CauseJumpToUndefinedLabel:
		return "jump to undefined label"
	case CauseCallToUndefinedFunction:
		return "call to undefined function"
	case CauseTooFewOperands:
		return "too few operands"
	case CauseDuplicatedEntryPoint:
		return "duplicated entry point"
	default:
		return "error"
	}
}

// AsmError is the structured diagnostic value carried through every
// pipeline stage (spec §7). It satisfies the error interface so stages
// that prefer returning errors over panicking can do so uniformly.
type AsmError struct {
	Cause   Cause
	Primary Lexeme
	Add     []Lexeme
	Aside   string
	Note    string
	Chain   []*AsmError
}

func NewError(cause Cause, primary Lexeme, aside string) *AsmError {
	return &AsmError{Cause: cause, Primary: primary, Aside: aside}
}

func (e *AsmError) WithNote(note string) *AsmError {
	e.Note = note
	return e
}

func (e *AsmError) WithAdd(lx ...Lexeme) *AsmError {
	e.Add = append(e.Add, lx...)
	return e
}

// Chained appends a linked diagnostic that continues the narrative,
// e.g. "previously declared here" pointing at an earlier source span.
func (e *AsmError) Chained(next *AsmError) *AsmError {
	e.Chain = append(e.Chain, next)
	return e
}

func (e *AsmError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Primary.Loc, e.Cause)
	if e.Aside != "" {
		fmt.Fprintf(&b, " (%s)", e.Aside)
	}
	for _, c := range e.Chain {
		fmt.Fprintf(&b, "\n  %s", c.Error())
	}
	return b.String()
}

// VerboseMode mirrors the teacher's package-level trace toggle
// (main.go's VerboseMode): gated by -v/--verbose and by the
// VIUA_ASM_VERBOSE environment variable (see asm.go).
var VerboseMode bool

// ColorEnabled controls ANSI highlighting in rendered diagnostics.
// Defaults to whether stderr is an actual terminal rather than a pipe
// or redirected file; overridable via VIUA_ASM_COLOR (see asm.go).
var ColorEnabled = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31;1m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiDim    = "\x1b[2m"
)

func colorize(code, s string) string {
	if !ColorEnabled {
		return s
	}
	return code + s + ansiReset
}

// Render prints a colorized, source-anchored diagnostic to w: the
// offending line, a squiggle under the primary token's span, and any
// aside/note/chain, mirroring spec §7.
func (e *AsmError) Render(w *os.File, path string, src []byte) {
	lines := strings.Split(string(src), "\n")
	fmt.Fprintf(w, "%s: %s: %s", path, colorize(ansiRed, "error"), e.Cause)
	if e.Aside != "" {
		fmt.Fprintf(w, ": %s", e.Aside)
	}
	fmt.Fprintln(w)

	renderSpan(w, lines, e.Primary, ansiRed)
	for _, add := range e.Add {
		renderSpan(w, lines, add, ansiYellow)
	}
	if e.Note != "" {
		fmt.Fprintf(w, "%s: %s\n", colorize(ansiCyan, "note"), e.Note)
	}
	for _, c := range e.Chain {
		fmt.Fprintln(w, colorize(ansiDim, "...continued:"))
		c.Render(w, path, src)
	}
}

func renderSpan(w *os.File, lines []string, lx Lexeme, color string) {
	if lx.Loc.Line < 1 || lx.Loc.Line > len(lines) {
		return
	}
	line := lines[lx.Loc.Line-1]
	fmt.Fprintf(w, "  %4d | %s\n", lx.Loc.Line, line)
	pad := strings.Repeat(" ", lx.Loc.Col-1)
	length := lx.Loc.Length
	if length < 1 {
		length = 1
	}
	squiggle := strings.Repeat("^", length)
	fmt.Fprintf(w, "       | %s%s\n", pad, colorize(color, squiggle))
}

// levenshtein computes the edit distance between a and b, used to
// build "did you mean" suggestions for misspelled opcodes, labels and
// cast type names (spec §4.1, §4.2, §4.4, §4.5).
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}
	prev := make([]int, lb+1)
	cur := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		cur[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[lb]
}

// suggest returns the nearest candidate to misspelling whose
// Levenshtein distance is at most half of misspelling's length, or ""
// if no candidate qualifies. Matches spec §4.2's opcode "did you
// mean" rule, and is reused for label and cast-type suggestions.
func suggest(misspelling string, candidates []string) string {
	threshold := len(misspelling) / 2
	best := ""
	bestDist := threshold + 1
	for _, c := range candidates {
		d := levenshtein(misspelling, c)
		if d <= threshold && d < bestDist {
			best = c
			bestDist = d
		}
	}
	return best
}

func didYouMean(misspelling string, candidates []string) string {
	if s := suggest(misspelling, candidates); s != "" {
		return fmt.Sprintf("did you mean %q?", s)
	}
	return ""
}
