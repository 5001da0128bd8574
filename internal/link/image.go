// Package link implements the section layout engine, symbol resolver, and
// relocation engine of a minimal i386 ELF static linker (spec.md §1-§4).
//
// The phase order ingest -> bss -> layout -> relocate -> emit is part of
// the contract (spec.md §5) and is enforced by Linker.Link, the only
// entry point that runs every phase; callers never invoke phases out of
// order.
package link

import "github.com/xyproto/ld/internal/elfobj"

// Config carries the fixed design constants of spec.md §3. The defaults
// reproduce the spec exactly; overriding them is a SPEC_FULL.md addition
// (wired to --config/viper in cmd/ld) for experimenting with alternate
// memory layouts without touching the algorithm.
type Config struct {
	TextBase uint32
	BssBase  uint32
	DataBase uint32
	PageSize uint32
	GotPad   uint32
}

// DefaultConfig returns spec.md §3's fixed constants.
func DefaultConfig() Config {
	return Config{
		TextBase: 0x04000000,
		BssBase:  0x08000000,
		DataBase: 0x06000000,
		PageSize: 0x1000,
		GotPad:   16,
	}
}

// maxPhdrs is the reserved program-header slot count (spec.md §3): three
// used (text, bss, data) plus one reserved, zeroed slot.
const maxPhdrs = 4

// SectionMapping associates one allocatable section of one object with
// its assigned virtual and file address in the output (spec.md §3).
// Once Layout completes, VAddr and FAddr are immutable.
type SectionMapping struct {
	Obj   *elfobj.Object
	Sec   *elfobj.Section
	VAddr uint32
	FAddr uint32
}

// bssSymbol pairs a COMMON symbol with its offset in the synthesized bss
// region (spec.md §3). Identity is (Obj, Idx): see elfobj.Object.FindIdx.
type bssSymbol struct {
	Obj    *elfobj.Object
	Idx    int
	Offset uint32
}

// gotSymbol is a (object, symbol) pair materialized into one 4-byte GOT
// slot (spec.md §3). Nothing currently populates this list (spec.md §4.6,
// §9: "GOT dead code"); the plumbing is kept intact for extensions that
// demand-allocate GOT slots during relocation.
type gotSymbol struct {
	Obj *elfobj.Object
	Idx int
}

// ProgHeader mirrors Elf32_Phdr.
type ProgHeader struct {
	Type   uint32
	Offset uint32
	VAddr  uint32
	PAddr  uint32
	FileSz uint32
	MemSz  uint32
	Flags  uint32
	Align  uint32
}

// Linker is the OutputImage of spec.md §3: the aggregate state populated
// by ingest, finalized by layout, and emitted once.
//
// Linker exclusively owns the objects slice and the section mappings;
// each mapping holds a back-reference to its owning object by pointer,
// never by value, so relocation patches stay visible through both.
type Linker struct {
	cfg Config

	Objects  []*elfobj.Object
	mappings []*SectionMapping
	bySec    map[*elfobj.Section]*SectionMapping

	Phdrs []ProgHeader

	bssVAddr uint32
	bssLen   uint32
	bssSyms  []bssSymbol

	gotVAddr uint32
	gotFAddr uint32
	gotSyms  []gotSymbol

	entry uint32
}

// New creates an empty Linker ready for Ingest calls.
func New(cfg Config) *Linker {
	return &Linker{
		cfg:   cfg,
		bySec: make(map[*elfobj.Section]*SectionMapping),
	}
}

func align(x, a uint32) uint32 {
	if a == 0 {
		a = 1
	}
	return (x + a - 1) &^ (a - 1)
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
