package elfobj

import (
	"encoding/binary"
	"fmt"
)

// Error is a sentinel-style error carrying one of the abstract kinds from
// spec.md §7. It is defined here rather than in a shared errors package so
// that elfobj has no dependency on the rest of the linker.
type Error struct {
	Kind string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func errf(kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

const (
	KindMalformedElf    = "MalformedElf"
	KindWrongKind       = "WrongKind"
	KindUnsupportedArch = "UnsupportedArch"
)

// Symbol is a zero-copy view of one Elf32_Sym entry.
type Symbol struct {
	Name  string
	Value uint32
	Size  uint32
	Info  uint8
	Shndx uint16
}

func (s Symbol) Bind() uint8 { return s.Info >> 4 }
func (s Symbol) Type() uint8 { return s.Info & 0xf }

// Section is a zero-copy view of one Elf32_Shdr entry plus the name
// resolved out of the section header string table.
type Section struct {
	Name      string
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	AddrAlign uint32

	// payload is the section's bytes within the object's buffer. It is
	// mutated in place by the relocation engine (spec.md §4.6, §9 "Mutable
	// section payloads").
	payload []byte
}

// Payload returns the section's in-memory bytes. Callers that relocate a
// section must use this (not a copy) so patches are visible at emit time.
func (s *Section) Payload() []byte { return s.payload }

// Rel is one Elf32_Rel entry.
type Rel struct {
	Offset uint32
	Sym    uint32
	Type   uint32
}

// Object holds a borrowed byte buffer of an entire relocatable ELF32 file
// plus zero-copy views into its header, section table, and symbol table.
//
// Invariants (spec.md §3): e_type == ET_REL, at most one symbol table is
// referenced (an object without one parses with no symbols), and all
// header offsets lie within the buffer.
type Object struct {
	Path string
	mem  []byte

	Sections []*Section
	Symbols  []Symbol

	shstrtab []byte
	strtab   []byte
}

func u16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }
func u32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }

func cstr(b []byte, off uint32) string {
	if int(off) >= len(b) {
		return ""
	}
	end := off
	for int(end) < len(b) && b[end] != 0 {
		end++
	}
	return string(b[off:end])
}

// Parse interprets mem as a 32-bit little-endian ELF relocatable object.
//
// It locates the section header table via e_shoff, the section-name
// string table via e_shstrndx, scans sections for SHT_SYMTAB, and from its
// sh_link resolves the symbol string table (spec.md §4.1).
func Parse(path string, mem []byte) (*Object, error) {
	if len(mem) < EhdrSize {
		return nil, errf(KindMalformedElf, "%s: file too short for an ELF header", path)
	}
	if mem[0] != 0x7f || mem[1] != 'E' || mem[2] != 'L' || mem[3] != 'F' {
		return nil, errf(KindMalformedElf, "%s: bad ELF magic", path)
	}
	if mem[EIClass] != ELFClass32 {
		return nil, errf(KindUnsupportedArch, "%s: not a 32-bit ELF", path)
	}
	if mem[EIData] != ELFData2LSB {
		return nil, errf(KindUnsupportedArch, "%s: not little-endian", path)
	}

	etype := u16(mem, 16)
	machine := u16(mem, 18)
	shoff := u32(mem, 32)
	shentsize := u16(mem, 46)
	shnum := u16(mem, 48)
	shstrndx := u16(mem, 50)

	if machine != EM386 {
		return nil, errf(KindUnsupportedArch, "%s: machine %d is not EM_386", path, machine)
	}
	if etype != ETRel {
		return nil, errf(KindWrongKind, "%s: e_type %d is not ET_REL", path, etype)
	}
	if shentsize != 0 && shentsize != ShdrSize {
		return nil, errf(KindMalformedElf, "%s: unexpected section header entry size %d", path, shentsize)
	}
	end := uint64(shoff) + uint64(shnum)*ShdrSize
	if shnum > 0 && (shoff == 0 || end > uint64(len(mem))) {
		return nil, errf(KindMalformedElf, "%s: section header table out of range", path)
	}
	if shstrndx >= shnum {
		return nil, errf(KindMalformedElf, "%s: e_shstrndx out of range", path)
	}

	type rawShdr struct {
		nameOff                                  uint32
		typ, flags, addr, offset, size            uint32
		link, info, addralign, entsize            uint32
	}
	raw := make([]rawShdr, shnum)
	for i := range raw {
		base := int(shoff) + i*ShdrSize
		sh := mem[base : base+ShdrSize]
		raw[i] = rawShdr{
			nameOff:   u32(sh, 0),
			typ:       u32(sh, 4),
			flags:     u32(sh, 8),
			addr:      u32(sh, 12),
			offset:    u32(sh, 16),
			size:      u32(sh, 20),
			link:      u32(sh, 24),
			info:      u32(sh, 28),
			addralign: u32(sh, 32),
			entsize:   u32(sh, 36),
		}
	}

	strOff, strSize := raw[shstrndx].offset, raw[shstrndx].size
	if uint64(strOff)+uint64(strSize) > uint64(len(mem)) {
		return nil, errf(KindMalformedElf, "%s: section-name string table out of range", path)
	}
	shstrtab := mem[strOff : strOff+strSize]

	obj := &Object{Path: path, mem: mem, shstrtab: shstrtab}
	obj.Sections = make([]*Section, shnum)
	for i, r := range raw {
		if uint64(r.offset)+uint64(r.size) > uint64(len(mem)) && r.typ != SHTNoBits {
			return nil, errf(KindMalformedElf, "%s: section %d out of range", path, i)
		}
		var payload []byte
		if r.typ != SHTNoBits {
			payload = mem[r.offset : r.offset+r.size]
		}
		obj.Sections[i] = &Section{
			Name:      cstr(shstrtab, r.nameOff),
			Type:      r.typ,
			Flags:     r.flags,
			Addr:      r.addr,
			Offset:    r.offset,
			Size:      r.size,
			Link:      r.link,
			Info:      r.info,
			AddrAlign: r.addralign,
			payload:   payload,
		}
	}

	// Locate the (single) symbol table and its string table.
	var symtabIdx = -1
	for i, r := range raw {
		if r.typ == SHTSymTab {
			if symtabIdx != -1 {
				return nil, errf(KindMalformedElf, "%s: more than one symbol table", path)
			}
			symtabIdx = i
		}
	}
	if symtabIdx == -1 {
		// An object with no symbols at all (e.g. a pure data blob) is
		// accepted with zero symbols; find() simply never matches.
		return obj, nil
	}
	symR := raw[symtabIdx]
	if symR.link >= uint32(shnum) {
		return nil, errf(KindMalformedElf, "%s: symtab sh_link out of range", path)
	}
	strR := raw[symR.link]
	if uint64(strR.offset)+uint64(strR.size) > uint64(len(mem)) {
		return nil, errf(KindMalformedElf, "%s: symbol string table out of range", path)
	}
	obj.strtab = mem[strR.offset : strR.offset+strR.size]

	if symR.entsize != 0 && symR.entsize != SymSize {
		return nil, errf(KindMalformedElf, "%s: unexpected symtab entry size", path)
	}
	nsyms := int(symR.size / SymSize)
	obj.Symbols = make([]Symbol, nsyms)
	for i := 0; i < nsyms; i++ {
		base := int(symR.offset) + i*SymSize
		s := mem[base : base+SymSize]
		nameOff := u32(s, 0)
		obj.Symbols[i] = Symbol{
			Name:  cstr(obj.strtab, nameOff),
			Value: u32(s, 4),
			Size:  u32(s, 8),
			Info:  s[12],
			Shndx: u16(s, 14),
		}
	}
	return obj, nil
}

// Find returns the first non-LOCAL, non-UNDEF symbol named name, in
// symbol-table order (spec.md §4.1).
func (o *Object) Find(name string) (Symbol, bool) {
	sym, _, ok := o.FindIdx(name)
	return sym, ok
}

// FindIdx is Find plus the symbol's index within o.Symbols. The resolver
// needs the index (not just the value) because common-symbol identity is
// tracked per (object, index) pair, not per symbol name: two objects can
// each declare their own COMMON "x", and only the first one found across
// all objects ever gets a resolved address (spec.md §4.5, §8 property 7).
func (o *Object) FindIdx(name string) (Symbol, int, bool) {
	for i, sym := range o.Symbols {
		if sym.Bind() == STBLocal || sym.Shndx == SHNUndef {
			continue
		}
		if sym.Name == name {
			return sym, i, true
		}
	}
	return Symbol{}, -1, false
}

// Rels reads the relocation entries of an SHT_REL section.
func (o *Object) Rels(sec *Section) []Rel {
	buf := sec.payload
	n := len(buf) / RelSize
	out := make([]Rel, n)
	for i := 0; i < n; i++ {
		base := i * RelSize
		info := u32(buf, base+4)
		out[i] = Rel{
			Offset: u32(buf, base),
			Sym:    info >> 8,
			Type:   info & 0xff,
		}
	}
	return out
}

// Allocatable reports whether a section should receive a SectionMapping:
// any of ALLOC/WRITE/EXEC is set (spec.md §4.2, the low 3 bits of sh_flags).
func (s *Section) Allocatable() bool { return s.Flags&allocMask != 0 }

func (s *Section) IsCode() bool   { return s.Flags&SHFExecInstr != 0 }
func (s *Section) IsNoBits() bool { return s.Type == SHTNoBits }
