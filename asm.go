package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xyproto/env/v2"
)

func init() {
	if env.Has("VIUA_ASM_VERBOSE") {
		VerboseMode = env.Int("VIUA_ASM_VERBOSE") > 0
	}
	if env.Has("VIUA_ASM_COLOR") {
		ColorEnabled = env.Bool("VIUA_ASM_COLOR")
	}
}

// Object is the finished product of a run of the pipeline: the bytes
// ready to be written to disk plus the symbol table the caller may
// want to inspect (tests do, via the Symbols field).
type Object struct {
	Bytes   []byte
	Symbols *SymbolTable
}

func trace(format string, args ...any) {
	if VerboseMode {
		fmt.Fprintf(os.Stderr, "viua-asm: "+format+"\n", args...)
	}
}

// Assemble runs every stage of the pipeline in order (spec §1/§9):
// lex, parse, collect symbols, materialize .rodata objects, cook
// pseudo-instructions into real ones, encode the text buffer,
// generate relocations, check extern/definition coherence, and write
// the final ELF64 file.
func Assemble(path string) (*Object, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	trace("lexing %s", path)
	toks, err := Lex(src, path)
	if err != nil {
		return nil, err
	}

	trace("parsing %d lexemes", len(toks))
	nodes, err := Parse(toks)
	if err != nil {
		return nil, err
	}

	trace("collecting symbols")
	coll, err := CollectSymbols(nodes)
	if err != nil {
		return nil, err
	}

	rd := NewRodataBuilder()
	trace("materializing .rodata objects")
	if err := MaterializeObjects(nodes, coll, rd); err != nil {
		return nil, err
	}

	trace("cooking pseudo-instructions")
	cooker := NewCooker(coll, rd)
	instrs, err := cooker.Cook(nodes)
	if err != nil {
		return nil, err
	}

	trace("encoding %d instructions", len(instrs))
	text, err := EncodeText(instrs)
	if err != nil {
		return nil, err
	}

	trace("generating relocations")
	relocs := GenerateRelocations(text)

	trace("checking extern/definition coherence")
	if err := CheckCoherence(coll); err != nil {
		return nil, err
	}

	build := ObjectBuild{
		Text:    text,
		Rodata:  rd.Bytes(),
		Symbols: coll.Table,
		Relocs:  relocs,
	}
	if coll.entry != "" {
		idx, _ := coll.Map.Lookup(coll.entry)
		build.HasEntry = true
		build.EntrySym = idx
	}

	trace("writing ELF")
	out, err := WriteELF(build)
	if err != nil {
		return nil, err
	}

	return &Object{Bytes: out, Symbols: coll.Table}, nil
}

// defaultOutputPath derives the output path for a source file with no
// explicit -o: the source path with its extension replaced by ".o"
// (spec §6). When VIUA_ASM_OUT is set, the source's base name so
// renamed is placed under that directory instead.
func defaultOutputPath(source string) string {
	ext := filepath.Ext(source)
	if env.Has("VIUA_ASM_OUT") {
		base := filepath.Base(source)
		return filepath.Join(env.Str("VIUA_ASM_OUT"), base[:len(base)-len(ext)]+".o")
	}
	return source[:len(source)-len(ext)] + ".o"
}
