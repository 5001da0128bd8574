// Package elftest builds synthetic ELF32 relocatable objects and ar
// archives byte-by-byte, for tests that have no access to a real
// i386 gcc/ar toolchain.
package elftest

import (
	"bytes"
	"encoding/binary"
)

// Sym is one symbol to place in a synthetic object's symbol table.
type Sym struct {
	Name  string
	Value uint32
	Size  uint32
	Bind  uint8 // 0 = STB_LOCAL, 1 = STB_GLOBAL
	Type  uint8 // STT_NOTYPE/OBJECT/FUNC/SECTION
	Shndx uint16
}

// RelEntry is one Elf32_Rel entry to place in a synthetic REL section.
type RelEntry struct {
	Offset uint32
	Sym    int // index into the Syms slice passed to Object
	Type   uint32
}

// Sec describes one section to synthesize.
type Sec struct {
	Name      string
	Type      uint32 // SHTProgBits, SHTNoBits, SHTRel
	Flags     uint32
	Size      uint32 // used for NOBITS; for PROGBITS, len(Data) wins
	Data      []byte
	AddrAlign uint32
	Info      int        // for SHTRel: index into Secs of the section it relocates
	Rels      []RelEntry // for SHTRel sections
}

const (
	ehdrSize = 52
	shdrSize = 40
	symSize  = 16
	relSize  = 8
)

// Object assembles a minimal ET_REL i386 ELF32 object with the given
// sections and symbols. Section 0 is the mandatory null section;
// sections are appended in order starting at index 1. The layout is:
// ehdr, section payloads (in order), .symtab, .strtab, .shstrtab,
// section header table.
func Object(secs []Sec, syms []Sym) []byte {
	var strtab bytes.Buffer
	strtab.WriteByte(0)
	nameOffs := make([]uint32, len(syms))
	for i, s := range syms {
		nameOffs[i] = uint32(strtab.Len())
		strtab.WriteString(s.Name)
		strtab.WriteByte(0)
	}

	var shstrtab bytes.Buffer
	shstrtab.WriteByte(0)
	names := []string{"", ".symtab", ".strtab", ".shstrtab"}
	for _, s := range secs {
		names = append(names, s.Name)
	}
	shNameOff := make(map[string]uint32)
	for _, n := range names {
		if _, ok := shNameOff[n]; ok || n == "" {
			continue
		}
		shNameOff[n] = uint32(shstrtab.Len())
		shstrtab.WriteString(n)
		shstrtab.WriteByte(0)
	}

	// Lay out: ehdr | sections... | symtab | strtab | shstrtab | shdrs
	type placed struct {
		off  uint32
		size uint32
	}
	body := new(bytes.Buffer)
	offs := make([]placed, len(secs))
	for i, s := range secs {
		if s.Type == 8 /* SHTNoBits */ {
			offs[i] = placed{off: uint32(ehdrSize + body.Len()), size: s.Size}
			continue
		}
		data := s.Data
		if s.Type == 9 /* SHTRel */ {
			var b bytes.Buffer
			for _, r := range s.Rels {
				var e [8]byte
				binary.LittleEndian.PutUint32(e[0:], r.Offset)
				binary.LittleEndian.PutUint32(e[4:], uint32(r.Sym)<<8|(r.Type&0xff))
				b.Write(e[:])
			}
			data = b.Bytes()
		}
		offs[i] = placed{off: uint32(ehdrSize + body.Len()), size: uint32(len(data))}
		body.Write(data)
	}

	symtabOff := uint32(ehdrSize + body.Len())
	for i, s := range syms {
		var e [symSize]byte
		binary.LittleEndian.PutUint32(e[0:], nameOffs[i])
		binary.LittleEndian.PutUint32(e[4:], s.Value)
		binary.LittleEndian.PutUint32(e[8:], s.Size)
		e[12] = s.Bind<<4 | s.Type
		binary.LittleEndian.PutUint16(e[14:], s.Shndx)
		body.Write(e[:])
	}
	symtabSize := uint32(len(syms)) * symSize

	strtabOff := symtabOff + symtabSize
	body.Write(strtab.Bytes())
	strtabSize := uint32(strtab.Len())

	shstrtabOff := strtabOff + strtabSize
	body.Write(shstrtab.Bytes())
	shstrtabSize := uint32(shstrtab.Len())

	nsecs := 4 + len(secs) // null, user secs, symtab, strtab, shstrtab
	shoff := uint32(ehdrSize) + uint32(body.Len())
	symtabIdx := uint32(1 + len(secs))
	strtabIdx := symtabIdx + 1
	shstrndx := strtabIdx + 1

	var out bytes.Buffer
	out.Write(ehdr(shoff, uint16(nsecs), uint16(shstrndx)))
	out.Write(body.Bytes())

	writeShdr := func(nameOff, typ, flags, addr, offset, size, link, info, align, entsize uint32) {
		var e [shdrSize]byte
		binary.LittleEndian.PutUint32(e[0:], nameOff)
		binary.LittleEndian.PutUint32(e[4:], typ)
		binary.LittleEndian.PutUint32(e[8:], flags)
		binary.LittleEndian.PutUint32(e[12:], addr)
		binary.LittleEndian.PutUint32(e[16:], offset)
		binary.LittleEndian.PutUint32(e[20:], size)
		binary.LittleEndian.PutUint32(e[24:], link)
		binary.LittleEndian.PutUint32(e[28:], info)
		binary.LittleEndian.PutUint32(e[32:], align)
		binary.LittleEndian.PutUint32(e[36:], entsize)
		out.Write(e[:])
	}

	writeShdr(0, 0, 0, 0, 0, 0, 0, 0, 0, 0) // null
	for i, s := range secs {
		info := uint32(0)
		if s.Type == 9 {
			info = uint32(s.Info + 1) // +1 for the null section offset
		}
		writeShdr(shNameOff[s.Name], s.Type, s.Flags, 0, offs[i].off, offs[i].size, symtabIdx, info, s.AddrAlign, 0)
	}
	writeShdr(shNameOff[".symtab"], 2 /*SYMTAB*/, 0, 0, symtabOff, symtabSize, strtabIdx, 0, 4, symSize)
	writeShdr(shNameOff[".strtab"], 3 /*STRTAB*/, 0, 0, strtabOff, strtabSize, 0, 0, 1, 0)
	writeShdr(shNameOff[".shstrtab"], 3, 0, 0, shstrtabOff, shstrtabSize, 0, 0, 1, 0)

	return out.Bytes()
}

func ehdr(shoff uint32, shnum, shstrndx uint16) []byte {
	var h [ehdrSize]byte
	h[0], h[1], h[2], h[3] = 0x7f, 'E', 'L', 'F'
	h[4] = 1 // ELFCLASS32
	h[5] = 1 // ELFDATA2LSB
	h[6] = 1 // EI_VERSION
	binary.LittleEndian.PutUint16(h[16:], 1) // ET_REL
	binary.LittleEndian.PutUint16(h[18:], 3) // EM_386
	binary.LittleEndian.PutUint32(h[20:], 1) // e_version
	binary.LittleEndian.PutUint16(h[40:], ehdrSize)
	binary.LittleEndian.PutUint16(h[42:], shdrSize)
	binary.LittleEndian.PutUint32(h[32:], shoff)
	binary.LittleEndian.PutUint16(h[48:], shnum)
	binary.LittleEndian.PutUint16(h[50:], shstrndx)
	return h[:]
}

// Archive wraps a set of named member payloads (already-built objects)
// into an ar archive with a `/ ` symbol index mapping the given
// (symbol name -> member name) pairs to the members' header offsets.
func Archive(members map[string][]byte, order []string, index map[string]string) []byte {
	names := make([]string, 0, len(index))
	for sym := range index {
		names = append(names, sym)
	}

	idxPayloadSize := 4 + len(names)*4
	for _, sym := range names {
		idxPayloadSize += len(sym) + 1
	}

	idxMemberSize := 60 + idxPayloadSize
	if idxPayloadSize%2 != 0 {
		idxMemberSize++
	}

	memberOffsets := make(map[string]uint32, len(order))
	cursor := uint32(8 + idxMemberSize)
	for _, name := range order {
		memberOffsets[name] = cursor
		sz := len(members[name])
		cursor += uint32(60 + sz)
		if sz%2 != 0 {
			cursor++
		}
	}

	var idxPayload bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(names)))
	idxPayload.Write(countBuf[:])
	for _, sym := range names {
		var off [4]byte
		binary.BigEndian.PutUint32(off[:], memberOffsets[index[sym]])
		idxPayload.Write(off[:])
	}
	for _, sym := range names {
		idxPayload.WriteString(sym)
		idxPayload.WriteByte(0)
	}

	var out bytes.Buffer
	out.WriteString("!<arch>\n")
	writeMember(&out, "/", idxPayload.Bytes())
	for _, name := range order {
		writeMember(&out, name, members[name])
	}
	return out.Bytes()
}

func writeMember(out *bytes.Buffer, name string, payload []byte) {
	var hdr [60]byte
	copy(hdr[0:16], padRight(name, 16))
	copy(hdr[16:28], padRight("0", 12))
	copy(hdr[28:34], padRight("0", 6))
	copy(hdr[34:40], padRight("0", 6))
	copy(hdr[40:48], padRight("644", 8))
	copy(hdr[48:58], padRight(itoa(len(payload)), 10))
	hdr[58], hdr[59] = '`', '\n'
	out.Write(hdr[:])
	out.Write(payload)
	if len(payload)%2 != 0 {
		out.WriteByte('\n')
	}
}

func padRight(s string, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
