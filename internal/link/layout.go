package link

import "github.com/xyproto/ld/internal/elfobj"

// Layout runs the three layout passes of spec.md §4.4 (text, bss, data,
// in that order), synthesizing the bss region and the GOT along the way,
// and finally applies every relocation (spec.md §4.6) once every address
// is known. It must run after all objects/archives have been ingested and
// produces the three PT_LOAD program headers plus a reserved fourth slot.
func (l *Linker) Layout() error {
	faddr := uint32(elfobj.EhdrSize + maxPhdrs*elfobj.PhdrSize)
	vaddr := l.cfg.TextBase + faddr%l.cfg.PageSize

	textLen := l.layoutText(vaddr, faddr)
	textPhdr := ProgHeader{
		Type: elfobj.PTLoad, Flags: elfobj.PFR | elfobj.PFW | elfobj.PFX,
		VAddr: vaddr, PAddr: vaddr, Offset: faddr,
		FileSz: textLen, MemSz: textLen, Align: l.cfg.PageSize,
	}

	faddr += textLen
	vaddr = l.cfg.BssBase + faddr%l.cfg.PageSize
	bssLen := l.layoutBss(vaddr, faddr)
	bssPhdr := ProgHeader{
		Type: elfobj.PTLoad, Flags: elfobj.PFR | elfobj.PFW,
		VAddr: vaddr, PAddr: vaddr, Offset: faddr,
		FileSz: 0, MemSz: bssLen, Align: l.cfg.PageSize,
	}

	faddr = align(faddr, 4)
	vaddr = l.cfg.DataBase + faddr%l.cfg.PageSize
	dataLen, err := l.layoutData(vaddr, faddr)
	if err != nil {
		return err
	}
	dataPhdr := ProgHeader{
		Type: elfobj.PTLoad, Flags: elfobj.PFR | elfobj.PFW | elfobj.PFX,
		VAddr: vaddr, PAddr: vaddr, Offset: faddr,
		FileSz: dataLen, MemSz: dataLen, Align: l.cfg.PageSize,
	}

	l.Phdrs = []ProgHeader{textPhdr, bssPhdr, dataPhdr}

	entry, err := l.Addr("_start")
	if err != nil {
		return err
	}
	l.entry = entry
	return nil
}

// layoutText places every EXECINSTR section in ingestion order, aligning
// each to max(sh_addralign, 4) relative to the segment base (spec.md
// §4.4 "Text pass").
func (l *Linker) layoutText(vaddr, faddr uint32) uint32 {
	var length uint32
	for _, m := range l.mappings {
		if !m.Sec.IsCode() {
			continue
		}
		a := max32(m.Sec.AddrAlign, 4)
		length = align(vaddr+length, a) - vaddr
		m.VAddr = vaddr + length
		m.FAddr = faddr + length
		length += m.Sec.Size
	}
	return length
}

// layoutBss allocates the common-symbol region at the segment base, then
// appends every NOBITS section (spec.md §4.4 "BSS pass"). Every bss
// mapping shares the segment's file offset and contributes zero file
// bytes — there is nothing to write for bss at emit time.
func (l *Linker) layoutBss(vaddr, faddr uint32) uint32 {
	l.allocateCommons()
	l.bssVAddr = vaddr
	length := l.bssLen

	for _, m := range l.mappings {
		if !m.Sec.IsNoBits() {
			continue
		}
		a := max32(m.Sec.AddrAlign, 4)
		length = align(vaddr+length, a) - vaddr
		m.VAddr = vaddr + length
		m.FAddr = faddr
		length += m.Sec.Size
	}
	return length
}

// layoutData places every remaining allocatable section (neither code nor
// nobits) contiguously, then appends the GOT region and finally applies
// every relocation (spec.md §4.4 "Data pass", §4.6).
//
// The GOT's size is only known after relocation runs (spec.md §9: "GOT
// dead code" — nothing currently demand-allocates a slot, but an
// extension that does must be accounted for before the segment's
// filesz/memsz are fixed), so relocation is invoked from inside this pass,
// exactly where neatld's outelf_link calls outelf_reloc.
func (l *Linker) layoutData(vaddr, faddr uint32) (uint32, error) {
	var length uint32
	for _, m := range l.mappings {
		if m.Sec.IsCode() || m.Sec.IsNoBits() {
			continue
		}
		m.VAddr = vaddr + length
		m.FAddr = faddr + length
		length += m.Sec.Size
	}

	length = align(length, 4)
	l.gotFAddr = faddr + length
	l.gotVAddr = vaddr + length

	if err := l.relocateAll(); err != nil {
		return 0, err
	}

	length += uint32(len(l.gotSyms))*4 + l.cfg.GotPad
	return length, nil
}
