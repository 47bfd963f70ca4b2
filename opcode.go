package main

// Format identifies the bit layout an instruction word follows, per
// spec §4.5/§6: the low byte of the opcode carries the format in its
// high nibble (bits 4..7) and the per-format opcode number in its low
// nibble. There is no separate UNSIGNED bit: each unsigned R-format
// mnemonic has an opcode number of its own, and OpInfo.Unsigned marks it.
type Format uint8

const (
	FormatN Format = iota // opcode only
	FormatT                // opcode + 3 register accesses
	FormatD                // opcode + 2 register accesses
	FormatS                // opcode + 1 register access
	FormatF                // opcode + 1 register access + 32-bit immediate
	FormatE                // opcode + 1 register access + 64-bit immediate
	FormatR                // opcode + 2 register accesses + 24-bit immediate
	FormatM                // opcode + unit + 2 register accesses + 16-bit offset
)

// formatMask extracts the format tag from an instruction word's low
// byte (bits 4..7); the opcode number occupies bits 0..3 (spec §6).
const formatMask = 0xf0

// OpInfo describes one real (non-pseudo) machine opcode. Code is
// scoped to Format: each format has its own 4-bit (0..15) numbering
// space, not a single global counter, since both share the low byte
// of the instruction word with the format tag.
type OpInfo struct {
	Name     string
	Code     uint8
	Format   Format
	Unsigned bool // UNSIGNED flag set for this mnemonic (R-format only)
}

// opcodeTable enumerates every real machine opcode this core emits,
// grounded on the mnemonics used throughout
// original_source/new/src/tools/exec/asm.cpp (li/lui/lli, addi(u),
// subi(u), muli(u), divi(u), move, delete is expanded away, return,
// if, call, actor, atom, double, arodp, float, cast, the generic
// sm/lm/ama/amd memory forms, and their g. greedy counterparts). R-format fills its
// 4-bit numbering space exactly: 4 base mnemonics x unsigned x greedy.
var opcodeTable = buildOpcodeTable()

func buildOpcodeTable() map[string]OpInfo {
	t := map[string]OpInfo{}
	counters := map[Format]uint8{}
	add := func(name string, format Format, unsigned bool) {
		code := counters[format]
		t[name] = OpInfo{Name: name, Code: code, Format: format, Unsigned: unsigned}
		counters[format] = code + 1

		greedy := "g." + name
		gcode := counters[format]
		t[greedy] = OpInfo{Name: greedy, Code: gcode, Format: format, Unsigned: unsigned}
		counters[format] = gcode + 1
	}

	add("halt", FormatN, false)
	add("return", FormatS, false)
	add("atom", FormatS, false)
	add("double", FormatS, false)
	add("move", FormatD, false)
	add("if", FormatD, false)
	add("call", FormatD, false)
	add("actor", FormatD, false)
	add("cast", FormatD, false)
	add("float", FormatF, false)
	add("lui", FormatE, false)
	add("lli", FormatE, false)
	add("arodp", FormatE, false)
	add("addi", FormatR, false)
	add("addiu", FormatR, true)
	add("subi", FormatR, false)
	add("subiu", FormatR, true)
	add("muli", FormatR, false)
	add("muliu", FormatR, true)
	add("divi", FormatR, false)
	add("diviu", FormatR, true)
	// memory-access pseudo-ops fold into these four generic forms,
	// keeping store-vs-load and alloc-address-vs-alloc-data distinct;
	// only the byte/half/word/dword/quad unit collapses into the unit
	// operand (grounded on asm.cpp's expand_memory_access).
	add("sm", FormatM, false)
	add("lm", FormatM, false)
	add("ama", FormatM, false)
	add("amd", FormatM, false)

	return t
}

// opcodeNames returns every real opcode mnemonic, g. greedy forms
// included, used for "did you mean" suggestions.
func opcodeNames() []string {
	names := make([]string, 0, len(opcodeTable))
	for n := range opcodeTable {
		names = append(names, n)
	}
	return names
}

func lookupOpcode(name string) (OpInfo, bool) {
	info, ok := opcodeTable[name]
	return info, ok
}

// reverseOpcodeTable maps (format, code) pairs decoded from an
// instruction word's low byte back to the OpInfo that produced them,
// used by the relocation scanner to name the opcode at a given word.
var reverseOpcodeTable = buildReverseOpcodeTable()

func buildReverseOpcodeTable() map[[2]uint8]OpInfo {
	t := make(map[[2]uint8]OpInfo, len(opcodeTable))
	for _, info := range opcodeTable {
		t[[2]uint8{uint8(info.Format), info.Code}] = info
	}
	return t
}

func opcodeByFormatCode(format Format, code uint8) (OpInfo, bool) {
	info, ok := reverseOpcodeTable[[2]uint8{uint8(format), code}]
	return info, ok
}

// pseudoOpcodes are opcodes the lexer/parser accept but which are
// never encoded directly: the instruction cooker (cook.go) expands
// each into zero or more real opcodes before the encoder ever sees it.
var pseudoOpcodes = map[string]bool{
	"li": true, "g.li": true,
	"delete": true,
	// memory access pseudo-ops: unit-specific spellings rewritten to
	// the generic "sm"/"lm"/"ama"/"amd" forms (or their "g." greedy
	// counterparts) with a leading unit-index operand.
	"sb": true, "lb": true, "g.sb": true, "g.lb": true,
	"sh": true, "lh": true, "g.sh": true, "g.lh": true,
	"sw": true, "lw": true, "g.sw": true, "g.lw": true,
	"sd": true, "ld": true, "g.sd": true, "g.ld": true,
	"sq": true, "lq": true, "g.sq": true, "g.lq": true,
	"amba": true, "ambd": true, "g.amba": true, "g.ambd": true,
	"amha": true, "amhd": true, "g.amha": true, "g.amhd": true,
	"amwa": true, "amwd": true, "g.amwa": true, "g.amwd": true,
	"amda": true, "amdd": true, "g.amda": true, "g.amdd": true,
	"amqa": true, "amqd": true, "g.amqa": true, "g.amqd": true,
}

// memoryUnit maps the unit letter inside a memory-access pseudo-op's
// mnemonic (the b/h/w/d/q of sb, lw, amwa, ...) to its unit index
// (byte/halfword/word/doubleword/quadword), per spec §4.5.
var memoryUnit = map[string]uint8{
	"b": 0, "h": 1, "w": 2, "d": 3, "q": 4,
}

// isKnownOpcode reports whether name is either a real machine opcode
// or a pseudo-instruction recognized by the cooker.
func isKnownOpcode(name string) bool {
	if _, ok := opcodeTable[name]; ok {
		return true
	}
	return pseudoOpcodes[name]
}

// allOpcodeNames returns every spellable opcode (real + pseudo),
// used for opcode-misspelling suggestions (spec §4.2).
func allOpcodeNames() []string {
	names := opcodeNames()
	for n := range pseudoOpcodes {
		names = append(names, n)
	}
	return names
}

// fundamentalTypes is the ordered type-name table used by `cast` and
// by type-name operands; a name's numeric code is its index here,
// per SPEC_FULL.md §4 (grounded on original_source's FUNDAMENTAL_TYPE
// table order: int, uint, float, double, pointer, atom, pid).
var fundamentalTypes = []string{"int", "uint", "float", "double", "pointer", "atom", "pid"}

func fundamentalTypeCode(name string) (int, bool) {
	for i, n := range fundamentalTypes {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// RegisterSet enumerates the three register banks a register access
// may name (spec §3 Register access).
type RegisterSet uint8

const (
	RegLocal RegisterSet = iota
	RegArgument
	RegParameter
)

func (s RegisterSet) String() string {
	switch s {
	case RegLocal:
		return "l"
	case RegArgument:
		return "a"
	case RegParameter:
		return "p"
	default:
		return "?"
	}
}

func registerSetFromAtom(atom string) (RegisterSet, bool) {
	switch atom {
	case "l":
		return RegLocal, true
	case "a":
		return RegArgument, true
	case "p":
		return RegParameter, true
	default:
		return 0, false
	}
}

// Relocation types, per spec §6.
const (
	RVIUAJumpSlot uint8 = 0
	RVIUAObject   uint8 = 1
)
