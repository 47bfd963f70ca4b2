package main

import "encoding/binary"

// Rel64 models ELF64's Elf64_Rel: a patch location plus a packed
// (symbol index, relocation type) field, per spec §6.
type Rel64 struct {
	Offset uint64
	Info   uint64
}

func (r Rel64) Symbol() uint32 { return uint32(r.Info >> 8) }
func (r Rel64) Type() uint32   { return uint32(r.Info & 0xff) }

func makeRel(offset uint64, symIdx uint64, relType uint8) Rel64 {
	return Rel64{Offset: offset, Info: symIdx<<8 | uint64(relType)}
}

// GenerateRelocations scans the finished .text buffer word by word.
// Every IF/CALL/ACTOR/ATOM/DOUBLE word gets one relocation entry, its
// symbol index reconstructed by OR-ing the immediates of the
// preceding lui/lli pair; every ARODP word's symbol index comes
// straight from its own E-format immediate (spec §6 "Relocation
// generation").
func GenerateRelocations(text []byte) []Rel64 {
	var rels []Rel64
	words := len(text) / 8

	var hi, lo uint64
	var haveHi, haveLo bool
	clear := func() { haveHi, haveLo = false, false }

	i := 0
	for i < words {
		w := binary.LittleEndian.Uint64(text[i*8 : i*8+8])
		ob := uint8(w)
		format := Format(ob >> 4)
		code := ob & 0x0f
		info, ok := opcodeByFormatCode(format, code)
		if !ok {
			i++
			continue
		}

		switch baseOpcode(info.Name) {
		case "lui":
			hi = binary.LittleEndian.Uint64(text[(i+1)*8 : (i+2)*8])
			haveHi = true
			i += 2

		case "lli":
			lo = binary.LittleEndian.Uint64(text[(i+1)*8 : (i+2)*8])
			haveLo = true
			i += 2

		case "arodp":
			imm := binary.LittleEndian.Uint64(text[(i+1)*8 : (i+2)*8])
			rels = append(rels, makeRel(uint64(i*8), imm, RVIUAObject))
			clear()
			i += 2

		case "atom", "double":
			if haveHi && haveLo {
				rels = append(rels, makeRel(uint64(i*8), hi|lo, RVIUAObject))
			}
			clear()
			i++

		case "if", "call", "actor":
			if haveHi && haveLo {
				rels = append(rels, makeRel(uint64(i*8), hi|lo, RVIUAJumpSlot))
			}
			clear()
			i++

		default:
			clear()
			if format == FormatE {
				i += 2
			} else {
				i++
			}
		}
	}
	return rels
}
