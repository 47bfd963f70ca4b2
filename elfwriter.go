package main

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Version is the toolchain version string recorded in the output
// file's .comment section and printed by --version.
const Version = "0.1.0"

// magicNumber is the 8-byte constant smuggled into the .viua.magic
// program header's p_offset field, per spec §4.6 item 2: a cheap way
// for file(1)/binfmt.d to recognize the format without spending a
// real section body on it.
var magicNumber = [8]byte{0x7f, 'V', 'I', 'U', 'A', 'a', 's', 'm'}

// viuaOSABI is ELFOSABI_STANDALONE, the value ELF reserves for
// standalone/embedded applications that are not hosted by any
// general-purpose OS (spec §6 "Output file").
const viuaOSABI = 0xff

const (
	etRel  = 1
	etExec = 2
)

const (
	ptNull = 0
	ptLoad = 1
)

const (
	pfX = 1
	pfW = 2
	pfR = 4
)

const (
	shtNull    = 0
	shtProgbits = 1
	shtSymtab  = 2
	shtStrtab  = 3
	shtRel     = 9
)

const (
	shfWrite   = 0x1
	shfAlloc   = 0x2
	shfExec    = 0x4
	shfStrings = 0x20
)

type elf64Ehdr struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf64Phdr struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

type elf64Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

const (
	ehdrSize = 64
	phdrSize = 56
	shdrSize = 64
	symSize  = 24
	relSize  = 16
)

// ObjectBuild carries the buffers each pipeline stage has produced,
// ready for the writer's final pass (spec §4.6 "Input").
type ObjectBuild struct {
	Text       []byte
	Rodata     []byte
	Symbols    *SymbolTable
	Relocs     []Rel64
	HasEntry   bool
	EntrySym   int
}

// CheckCoherence enforces spec §4.6 "Extern/definition coherence":
// every extern declaration must be empty, every definition must be
// non-empty.
func CheckCoherence(c *SymbolCollector) error {
	for name, decl := range c.Decls {
		sym := c.Table.Get(decl.Index)
		if decl.Extern {
			if sym.Value != 0 || sym.Size != 0 {
				return NewError(CauseInvalidOperand, decl.Leader, fmt.Sprintf("extern symbol %q must have no value or size", name))
			}
			continue
		}
		// A .rodata object's definition shows up as a nonzero Size (its
		// .object payload); a .text function's shows up as a nonzero
		// Value, since the cooker's instruction pointer always starts
		// at 8 (past the mandatory prefix HALT) before any label is
		// reached.
		if sym.Size == 0 && sym.Value == 0 {
			return NewError(CauseInvalidOperand, decl.Leader, fmt.Sprintf("symbol %q is declared but never given a definition", name))
		}
	}
	return nil
}

// align8 rounds n up to the next multiple of 8, the alignment spec
// §4.6 requires for the .text and .rodata PT_LOAD segments.
func align8(n int) int {
	if n%8 == 0 {
		return n
	}
	return n + (8 - n%8)
}

// WriteELF assembles the final object/executable file: the fixed
// section order of spec §4.6, patched st_shndx values, and an
// entry point computed from the (possibly absent) entry symbol.
func WriteELF(b ObjectBuild) ([]byte, error) {
	shstrtab := NewStringTable()
	strtab := NewStringTable()

	type section struct {
		name      string
		nameOff   uint32
		typ       uint32
		flags     uint64
		body      []byte
		link      uint32
		info      uint32
		align     uint64
		entsz     uint64
		hasPhdr   bool
		phdrType  uint32
		phdrFlags uint32
	}

	withRel := len(b.Relocs) > 0

	secs := []section{
		{name: "", typ: shtNull},
		{name: ".viua.magic", typ: shtNull, hasPhdr: true, phdrType: ptNull, phdrFlags: pfR},
		{name: ".interp", typ: shtProgbits, flags: shfAlloc, body: append([]byte("viua-vm"), 0)},
	}
	textIndex := 0
	rodataIndex := 0
	if withRel {
		secs = append(secs, section{name: ".rel", typ: shtRel, entsz: relSize, body: relBytes(b.Relocs)})
	}
	secs = append(secs,
		section{name: ".text", typ: shtProgbits, flags: shfAlloc | shfExec, body: b.Text, align: 8, hasPhdr: true, phdrType: ptLoad, phdrFlags: pfR | pfX},
		section{name: ".rodata", typ: shtProgbits, flags: shfAlloc, body: b.Rodata, align: 8, hasPhdr: true, phdrType: ptLoad, phdrFlags: pfR},
		section{name: ".comment", typ: shtProgbits, body: append([]byte(fmt.Sprintf("viua-asm %s", Version)), 0)},
		section{name: ".symtab", typ: shtSymtab, entsz: symSize, body: symBytes(b.Symbols)},
		section{name: ".strtab", typ: shtStrtab, flags: shfStrings, body: strtab.Bytes()},
		section{name: ".shstrtab", typ: shtStrtab, flags: shfStrings},
	)

	for i, s := range secs {
		switch s.name {
		case ".text":
			textIndex = i
		case ".rodata":
			rodataIndex = i
		}
	}

	for i := range secs {
		secs[i].nameOff = shstrtab.Put(secs[i].name)
	}
	secs[len(secs)-1].body = shstrtab.Bytes()

	relIndex := -1
	symtabIndex := -1
	strtabIndex := -1
	for i, s := range secs {
		switch s.name {
		case ".rel":
			relIndex = i
		case ".symtab":
			symtabIndex = i
		case ".strtab":
			strtabIndex = i
		}
	}
	if relIndex >= 0 {
		secs[relIndex].link = uint32(symtabIndex)
		secs[relIndex].info = uint32(textIndex)
	}
	secs[symtabIndex].link = uint32(strtabIndex)
	secs[symtabIndex].info = firstGlobalSymbolIndex(b.Symbols)

	for i := range b.Symbols.Syms {
		sym := &b.Symbols.Syms[i]
		switch sym.typ() {
		case STTFunc:
			sym.Shndx = uint16(textIndex)
		case STTObject:
			sym.Shndx = uint16(rodataIndex)
		}
		if name := b.Symbols.Names[i]; name != "" {
			sym.NameOff = strtab.Put(name)
		}
	}
	secs[symtabIndex].body = symBytes(b.Symbols)
	for i := range secs {
		if secs[i].name == ".strtab" {
			secs[i].body = strtab.Bytes()
		}
	}

	phnum := 0
	for _, s := range secs {
		if s.hasPhdr {
			phnum++
		}
	}

	headerRegion := ehdrSize + phnum*phdrSize + len(secs)*shdrSize
	offset := headerRegion

	offsets := make([]int, len(secs))
	for i, s := range secs {
		if s.name == "" || s.name == ".viua.magic" {
			offsets[i] = 0
			continue
		}
		if s.align == 8 {
			offset = align8(offset)
		}
		offsets[i] = offset
		offset += len(s.body)
	}

	var entry uint64
	etype := uint16(etRel)
	if b.HasEntry {
		etype = etExec
		sym := b.Symbols.Get(b.EntrySym)
		entry = uint64(offsets[textIndex]) + sym.Value
	}

	var buf bytes.Buffer
	ehdr := elf64Ehdr{
		Type:      etype,
		Machine:   0,
		Version:   1,
		Entry:     entry,
		Phoff:     ehdrSize,
		Shoff:     uint64(ehdrSize + phnum*phdrSize),
		Ehsize:    ehdrSize,
		Phentsize: phdrSize,
		Phnum:     uint16(phnum),
		Shentsize: shdrSize,
		Shnum:     uint16(len(secs)),
		Shstrndx:  uint16(len(secs) - 1),
	}
	ehdr.Ident[0] = 0x7f
	ehdr.Ident[1] = 'E'
	ehdr.Ident[2] = 'L'
	ehdr.Ident[3] = 'F'
	ehdr.Ident[4] = 2 // ELFCLASS64
	ehdr.Ident[5] = 1 // ELFDATA2LSB
	ehdr.Ident[6] = 1 // EV_CURRENT
	ehdr.Ident[7] = viuaOSABI
	if err := binary.Write(&buf, binary.LittleEndian, &ehdr); err != nil {
		return nil, err
	}

	for i, s := range secs {
		if !s.hasPhdr {
			continue
		}
		ph := elf64Phdr{
			Type:   s.phdrType,
			Flags:  s.phdrFlags,
			Offset: uint64(offsets[i]),
			Vaddr:  uint64(offsets[i]),
			Paddr:  uint64(offsets[i]),
			Filesz: uint64(len(s.body)),
			Memsz:  uint64(len(s.body)),
			Align:  8,
		}
		if s.name == ".viua.magic" {
			ph.Offset = binary.LittleEndian.Uint64(magicNumber[:])
			ph.Filesz, ph.Memsz, ph.Vaddr, ph.Paddr = 0, 0, 0, 0
		}
		if err := binary.Write(&buf, binary.LittleEndian, &ph); err != nil {
			return nil, err
		}
	}

	for i, s := range secs {
		sh := elf64Shdr{
			Name:      s.nameOff,
			Type:      s.typ,
			Flags:     s.flags,
			Addr:      uint64(offsets[i]),
			Offset:    uint64(offsets[i]),
			Size:      uint64(len(s.body)),
			Link:      s.link,
			Info:      s.info,
			Addralign: 1,
			Entsize:   s.entsz,
		}
		if s.align == 8 {
			sh.Addralign = 8
		}
		if err := binary.Write(&buf, binary.LittleEndian, &sh); err != nil {
			return nil, err
		}
	}

	for i, s := range secs {
		if s.name == "" || s.name == ".viua.magic" {
			continue
		}
		if len(buf.Bytes()) < offsets[i] {
			buf.Write(make([]byte, offsets[i]-len(buf.Bytes())))
		}
		buf.Write(s.body)
	}

	return buf.Bytes(), nil
}

// firstGlobalSymbolIndex returns sh_info for .symtab: the index of the
// first global-binding symbol, per the ELF64 convention that local
// symbols occupy the table's leading entries.
func firstGlobalSymbolIndex(t *SymbolTable) uint32 {
	for i, s := range t.Syms {
		if s.bind() == STBGlobal {
			return uint32(i)
		}
	}
	return uint32(len(t.Syms))
}

func symBytes(t *SymbolTable) []byte {
	var buf bytes.Buffer
	for _, s := range t.Syms {
		binary.Write(&buf, binary.LittleEndian, s.NameOff)
		buf.WriteByte(s.Info)
		buf.WriteByte(s.Other)
		binary.Write(&buf, binary.LittleEndian, s.Shndx)
		binary.Write(&buf, binary.LittleEndian, s.Value)
		binary.Write(&buf, binary.LittleEndian, s.Size)
	}
	return buf.Bytes()
}

func relBytes(rels []Rel64) []byte {
	var buf bytes.Buffer
	for _, r := range rels {
		binary.Write(&buf, binary.LittleEndian, r.Offset)
		binary.Write(&buf, binary.LittleEndian, r.Info)
	}
	return buf.Bytes()
}
