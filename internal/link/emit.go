package link

import (
	"encoding/binary"

	"github.com/xyproto/ld/internal/elfobj"
)

// Link runs every phase in the mandated order — ingest has already
// happened via IngestObject/IngestArchive by the time callers invoke this
// — layout (which folds in common allocation and relocation) followed by
// emit (spec.md §5).
func (l *Linker) Link() ([]byte, error) {
	if len(l.Objects) == 0 {
		return nil, errf(KindMalformedElf, "no input objects")
	}
	if err := l.Layout(); err != nil {
		return nil, err
	}
	return l.emit()
}

// emit writes the final ELF32 executable image: the ELF header, four
// program header slots (one reserved, always zero), every non-NOBITS
// section's payload at its assigned file offset, and finally the GOT
// slots plus their trailing pad (spec.md §4.7). Output is assembled in a
// single growable buffer addressed by absolute file offset, since
// sections and the GOT are not emitted in file-offset order.
func (l *Linker) emit() ([]byte, error) {
	buf := make([]byte, 0, 1<<16)
	buf = l.writeEhdr(buf)
	buf = l.writePhdrs(buf)

	for _, m := range l.mappings {
		if m.Sec.IsNoBits() {
			continue
		}
		buf = writeAt(buf, m.FAddr, m.Sec.Payload())
	}

	buf = l.writeGOT(buf)
	return buf, nil
}

// writeAt grows buf as needed and copies p in at absolute offset off,
// zero-filling any gap.
func writeAt(buf []byte, off uint32, p []byte) []byte {
	need := int(off) + len(p)
	if need > len(buf) {
		buf = append(buf, make([]byte, need-len(buf))...)
	}
	copy(buf[off:], p)
	return buf
}

func (l *Linker) writeEhdr(buf []byte) []byte {
	var h [elfobj.EhdrSize]byte
	h[0], h[1], h[2], h[3] = 0x7f, 'E', 'L', 'F'
	h[elfobj.EIClass] = elfobj.ELFClass32
	h[elfobj.EIData] = elfobj.ELFData2LSB
	h[6] = 1 // EI_VERSION

	binary.LittleEndian.PutUint16(h[16:], elfobj.ETExec)
	binary.LittleEndian.PutUint16(h[18:], elfobj.EM386)
	binary.LittleEndian.PutUint32(h[20:], 1) // e_version
	binary.LittleEndian.PutUint32(h[24:], l.entry)
	binary.LittleEndian.PutUint32(h[28:], elfobj.EhdrSize) // e_phoff
	binary.LittleEndian.PutUint16(h[40:], elfobj.EhdrSize) // e_ehsize
	binary.LittleEndian.PutUint16(h[42:], elfobj.PhdrSize) // e_phentsize
	binary.LittleEndian.PutUint16(h[44:], maxPhdrs)        // e_phnum

	return append(buf, h[:]...)
}

func (l *Linker) writePhdrs(buf []byte) []byte {
	for i := 0; i < maxPhdrs; i++ {
		var p ProgHeader
		if i < len(l.Phdrs) {
			p = l.Phdrs[i]
		}
		var b [elfobj.PhdrSize]byte
		binary.LittleEndian.PutUint32(b[0:], p.Type)
		binary.LittleEndian.PutUint32(b[4:], p.Offset)
		binary.LittleEndian.PutUint32(b[8:], p.VAddr)
		binary.LittleEndian.PutUint32(b[12:], p.PAddr)
		binary.LittleEndian.PutUint32(b[16:], p.FileSz)
		binary.LittleEndian.PutUint32(b[20:], p.MemSz)
		binary.LittleEndian.PutUint32(b[24:], p.Flags)
		binary.LittleEndian.PutUint32(b[28:], p.Align)
		buf = append(buf, b[:]...)
	}
	return buf
}

// writeGOT appends one 4-byte little-endian slot per entry in l.gotSyms
// (currently always empty, spec.md §9 "GOT dead code") followed by
// cfg.GotPad zero bytes, at l.gotFAddr.
func (l *Linker) writeGOT(buf []byte) []byte {
	got := make([]byte, len(l.gotSyms)*4+int(l.cfg.GotPad))
	for i, g := range l.gotSyms {
		val, err := l.symval(g.Obj, g.Idx)
		if err != nil {
			val = 0
		}
		binary.LittleEndian.PutUint32(got[i*4:], val)
	}
	return writeAt(buf, l.gotFAddr, got)
}
