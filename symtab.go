package main

import "fmt"

// ELF64 symbol binding, type and visibility constants (spec §3 Symbol
// table entry), grounded on the teacher's ds.AddSymbol(name,
// STB_GLOBAL, STT_FUNC) naming in codegen_elf_writer.go.
const (
	STBLocal  uint8 = 0
	STBGlobal uint8 = 1
)

const (
	STTNotype uint8 = 0
	STTObject uint8 = 1
	STTFunc   uint8 = 2
	STTFile   uint8 = 4
)

const (
	STVDefault uint8 = 0
	STVHidden  uint8 = 2
)

func stInfo(bind, typ uint8) uint8 { return bind<<4 | (typ & 0xf) }

// Sym64 models ELF64's Elf64_Sym, per spec §3.
type Sym64 struct {
	NameOff uint32
	Info    uint8
	Other   uint8
	Shndx   uint16
	Value   uint64
	Size    uint64
}

func (s Sym64) bind() uint8 { return s.Info >> 4 }
func (s Sym64) typ() uint8  { return s.Info & 0xf }

// SymbolTable is the insertion-ordered table of Sym64 entries. Index
// 0 is always the mandatory null symbol. Names is index-aligned with
// Syms; an empty entry marks an anonymous symbol (NameOff 0, the
// empty string, at write time).
type SymbolTable struct {
	Syms  []Sym64
	Names []string
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{Syms: []Sym64{{}}, Names: []string{""}}
}

// Add allocates a new anonymous entry and returns its stable index.
func (t *SymbolTable) Add(bind, typ, vis uint8) int {
	idx := len(t.Syms)
	t.Syms = append(t.Syms, Sym64{Info: stInfo(bind, typ), Other: vis})
	t.Names = append(t.Names, "")
	return idx
}

// AddNamed allocates a new named entry, for declared symbols and
// cached .text/.rodata labels.
func (t *SymbolTable) AddNamed(name string, bind, typ, vis uint8) int {
	idx := t.Add(bind, typ, vis)
	t.Names[idx] = name
	return idx
}

func (t *SymbolTable) Get(idx int) *Sym64 { return &t.Syms[idx] }

// SymbolMap is an insertion-ordered name -> symbol-table-index
// mapping, per spec §3. Anonymous symbols (empty name) are never
// added here; they are addressable only by numeric index.
type SymbolMap struct {
	index map[string]int
	order []string
}

func NewSymbolMap() *SymbolMap {
	return &SymbolMap{index: map[string]int{}}
}

func (m *SymbolMap) Set(name string, idx int) {
	if _, exists := m.index[name]; !exists {
		m.order = append(m.order, name)
	}
	m.index[name] = idx
}

func (m *SymbolMap) Lookup(name string) (int, bool) {
	idx, ok := m.index[name]
	return idx, ok
}

func (m *SymbolMap) Names() []string { return m.order }

// activeSection tracks which region is current during the collector,
// materializer and cooker walks (spec §4.3).
type activeSection int

const (
	sectionNone activeSection = iota
	sectionText
	sectionRodata
)

// DeclInfo pairs a declared symbol with the section active at its
// point of declaration and the declaring lexeme, for "previously
// declared here" chained diagnostics.
type DeclInfo struct {
	Section activeSection
	Leader  Lexeme
	Extern  bool
	Index   int
}

// SymbolCollector walks the AST once to allocate symbol-table entries
// and validate visibility attributes (spec §4.3), then a second time
// to cache .text labels.
type SymbolCollector struct {
	Table   *SymbolTable
	Map     *SymbolMap
	Decls   map[string]*DeclInfo
	entryAt *Lexeme // location of the [[entry_point]] declaration, if any
	entry   string
}

func CollectSymbols(nodes []Node) (*SymbolCollector, error) {
	c := &SymbolCollector{
		Table: NewSymbolTable(),
		Map:   NewSymbolMap(),
		Decls: map[string]*DeclInfo{},
	}
	if err := c.firstPass(nodes); err != nil {
		return nil, err
	}
	if err := c.labelPass(nodes); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *SymbolCollector) firstPass(nodes []Node) error {
	section := sectionNone
	for _, n := range nodes {
		switch node := n.(type) {
		case *SectionNode:
			switch node.Name {
			case ".text":
				section = sectionText
			case ".rodata":
				section = sectionRodata
			default:
				return NewError(CauseInvalidOperand, node.Leader, fmt.Sprintf("unknown section %q", node.Name))
			}
		case *SymbolNode:
			if section == sectionNone {
				return NewError(CauseInvalidOperand, node.Leader, "symbol declared outside any section")
			}
			if err := c.declare(node, section); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *SymbolCollector) declare(node *SymbolNode, section activeSection) error {
	if prev, exists := c.Decls[node.Name]; exists {
		return NewError(CauseInvalidOperand, node.Leader, fmt.Sprintf("symbol %q already declared", node.Name)).
			Chained(NewError(CauseNone, prev.Leader, "previously declared here"))
	}

	local := hasAttr(node.Attributes, "local")
	global := hasAttr(node.Attributes, "global")
	if local && global {
		return NewError(CauseInvalidOperand, node.Leader, "symbol cannot be both [[local]] and [[global]]")
	}

	var typ, bind uint8
	if section == sectionText {
		typ = STTFunc
		bind = STBGlobal
	} else {
		typ = STTObject
		bind = STBLocal
	}
	if local {
		bind = STBLocal
	}
	if global {
		bind = STBGlobal
	}

	vis := STVDefault
	if hasAttr(node.Attributes, "hidden") {
		vis = STVHidden
	}

	if typ == STTObject && bind == STBGlobal && vis == STVDefault {
		return NewError(CauseInvalidOperand, node.Leader, "object symbols cannot be globally visible")
	}

	idx := c.Table.AddNamed(node.Name, bind, typ, vis)
	c.Map.Set(node.Name, idx)
	c.Decls[node.Name] = &DeclInfo{Section: section, Leader: node.Leader, Extern: hasAttr(node.Attributes, "extern"), Index: idx}

	if _, ok := findAttr(node.Attributes, "entry_point"); ok {
		if c.entryAt != nil {
			return NewError(CauseDuplicatedEntryPoint, node.Leader, fmt.Sprintf("%q declared as a second entry point", node.Name)).
				Chained(NewError(CauseNone, *c.entryAt, "first entry point declared here"))
		}
		if bind != STBGlobal || vis != STVDefault || typ != STTFunc {
			return NewError(CauseInvalidOperand, node.Leader, "entry point must be a global, default-visibility function")
		}
		lead := node.Leader
		c.entryAt = &lead
		c.entry = node.Name
	}
	return nil
}

// labelPass caches every .text label's binding, synthesizing a hidden
// local jump-target symbol when no prior .symbol declaration exists.
func (c *SymbolCollector) labelPass(nodes []Node) error {
	section := sectionNone
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
			if _, exists := c.Map.Lookup(node.Name); exists {
				continue
			}
			switch section {
			case sectionText:
				idx := c.Table.AddNamed(node.Name, STBLocal, STTFunc, STVHidden)
				c.Map.Set(node.Name, idx)
				c.Decls[node.Name] = &DeclInfo{Section: sectionText, Leader: node.Leader, Index: idx}
			case sectionRodata:
				idx := c.Table.AddNamed(node.Name, STBLocal, STTObject, STVDefault)
				c.Map.Set(node.Name, idx)
				c.Decls[node.Name] = &DeclInfo{Section: sectionRodata, Leader: node.Leader, Index: idx}
			}
		}
	}
	return nil
}

// IsJumpLabel reports whether the symbol at idx is a local, hidden
// .text function symbol usable only as a branch target (spec §4.5,
// GLOSSARY "Jump label").
func (t *SymbolTable) IsJumpLabel(idx int) bool {
	s := t.Get(idx)
	return s.typ() == STTFunc && s.bind() == STBLocal && s.Other == STVHidden
}

// IsCallable reports whether the symbol at idx is a global,
// default-visibility function usable as a call target (GLOSSARY
// "Callable label").
func (t *SymbolTable) IsCallable(idx int) bool {
	s := t.Get(idx)
	return s.typ() == STTFunc && s.bind() == STBGlobal && s.Other == STVDefault
}
