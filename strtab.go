package main

// StringTable accumulates NUL-terminated strings for an ELF string
// table section (.strtab/.shstrtab), grounded on the teacher's
// string-table buffer in codegen_elf_writer.go. Offset 0 is always
// the empty string, per the ELF64 convention.
type StringTable struct {
	buf []byte
}

func NewStringTable() *StringTable {
	return &StringTable{buf: []byte{0}}
}

// Put appends s (NUL-terminated) and returns its byte offset. Repeated
// names are not deduplicated: each caller gets a fresh offset, which
// keeps the mapping from symbol-table index to name offset trivial.
func (t *StringTable) Put(s string) uint32 {
	off := uint32(len(t.buf))
	t.buf = append(t.buf, []byte(s)...)
	t.buf = append(t.buf, 0)
	return off
}

func (t *StringTable) Bytes() []byte { return t.buf }
func (t *StringTable) Len() int      { return len(t.buf) }
