package link_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xyproto/ld/internal/elfobj"
	"github.com/xyproto/ld/internal/elftest"
	"github.com/xyproto/ld/internal/link"
)

func startObject(name string) []byte {
	return elftest.Object(
		[]elftest.Sec{
			{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0x90, 0x90, 0x90, 0x90}, AddrAlign: 4},
		},
		[]elftest.Sym{
			{Name: name, Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
		},
	)
}

func TestLinkFailsWithoutStart(t *testing.T) {
	l := link.New(link.DefaultConfig())
	require.NoError(t, l.IngestObject("a.o", startObject("not_start")))
	_, err := l.Link()
	require.Error(t, err)
	le, ok := err.(*link.LinkError)
	require.True(t, ok)
	require.Equal(t, link.KindUndefinedSymbol, le.Kind)
}

func TestThreeSegmentAddresses(t *testing.T) {
	codeAndData := elftest.Object(
		[]elftest.Sec{
			{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0x90, 0x90, 0x90, 0x90}, AddrAlign: 4},
			{Name: ".data", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFWrite, Data: []byte{1, 2, 3, 4}, AddrAlign: 4},
			{Name: ".bss", Type: elfobj.SHTNoBits, Flags: elfobj.SHFAlloc | elfobj.SHFWrite, Size: 8, AddrAlign: 4},
		},
		[]elftest.Sym{
			{Name: "_start", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
		},
	)

	l := link.New(link.DefaultConfig())
	require.NoError(t, l.IngestObject("a.o", codeAndData))
	_, err := l.Link()
	require.NoError(t, err)

	require.Len(t, l.Phdrs, 3)
	require.Equal(t, uint32(0x04000000), l.Phdrs[0].VAddr&0xFFFFF000)
	require.Equal(t, uint32(0x08000000), l.Phdrs[1].VAddr&0xFFFFF000)
	require.Equal(t, uint32(0x06000000), l.Phdrs[2].VAddr&0xFFFFF000)

	for _, p := range l.Phdrs {
		require.Equal(t, p.Offset%link.DefaultConfig().PageSize, p.VAddr%link.DefaultConfig().PageSize)
	}

	text, data := l.Phdrs[0], l.Phdrs[2]
	textEnd := text.VAddr + text.MemSz
	disjoint := textEnd <= data.VAddr || data.VAddr+data.MemSz <= text.VAddr
	require.True(t, disjoint, "text and data virtual ranges must not overlap")
}

// buildHello constructs a two-object "puts.o defines puts; start.o calls
// it via R_386_PC32" scenario (spec.md §8 "Hello").
func buildHello() (startMem, putsMem []byte) {
	putsMem = elftest.Object(
		[]elftest.Sec{
			{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0xc3, 0x90, 0x90, 0x90}, AddrAlign: 4},
		},
		[]elftest.Sym{
			{Name: "puts", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
		},
	)

	// .text: 4 bytes of nop padding, then a 4-byte PC32-relocated word at
	// offset 4 (as if it were the displacement operand of a call).
	startMem = elftest.Object(
		[]elftest.Sec{
			{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0x90, 0x90, 0x90, 0x90, 0, 0, 0, 0}, AddrAlign: 4},
			{Name: ".rel.text", Type: elfobj.SHTRel, Info: 0, Rels: []elftest.RelEntry{{Offset: 4, Sym: 1, Type: elfobj.R386PC32}}},
		},
		[]elftest.Sym{
			{Name: "_start", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
			{Name: "puts", Bind: 1, Type: elfobj.STTNoType, Shndx: elfobj.SHNUndef},
		},
	)
	return startMem, putsMem
}

func TestRelocationPC32(t *testing.T) {
	startMem, putsMem := buildHello()

	l := link.New(link.DefaultConfig())
	require.NoError(t, l.IngestObject("start.o", startMem))
	require.NoError(t, l.IngestObject("puts.o", putsMem))

	image, err := l.Link()
	require.NoError(t, err)

	putsAddr, err := l.Addr("puts")
	require.NoError(t, err)
	startAddr, err := l.Addr("_start")
	require.NoError(t, err)
	require.Equal(t, startAddr, l.Phdrs[0].VAddr) // _start is at the base of .text

	here := startAddr + 4
	want := putsAddr - here

	text := l.Phdrs[0]
	patched := binary.LittleEndian.Uint32(image[text.Offset+4 : text.Offset+8])
	require.Equal(t, want, patched)
}

func TestCommonCoalescing(t *testing.T) {
	// b.o: _start references x twice via R_386_32; x is declared COMMON
	// in a.o only (b.o references it as an undefined external).
	aMem := elftest.Object(
		nil,
		[]elftest.Sym{
			{Name: "x", Value: 8, Size: 16, Bind: 1, Type: elfobj.STTObject, Shndx: elfobj.SHNCommon},
		},
	)
	bMem := elftest.Object(
		[]elftest.Sec{
			{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0, 0, 0, 0, 0, 0, 0, 0}, AddrAlign: 4},
			{Name: ".rel.text", Type: elfobj.SHTRel, Info: 0, Rels: []elftest.RelEntry{
				{Offset: 0, Sym: 1, Type: elfobj.R386_32},
				{Offset: 4, Sym: 1, Type: elfobj.R386_32},
			}},
		},
		[]elftest.Sym{
			{Name: "_start", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
			{Name: "x", Bind: 1, Type: elfobj.STTNoType, Shndx: elfobj.SHNUndef},
		},
	)

	l := link.New(link.DefaultConfig())
	require.NoError(t, l.IngestObject("a.o", aMem))
	require.NoError(t, l.IngestObject("b.o", bMem))

	image, err := l.Link()
	require.NoError(t, err)

	xAddr, err := l.Addr("x")
	require.NoError(t, err)

	text := l.Phdrs[0]
	first := binary.LittleEndian.Uint32(image[text.Offset : text.Offset+4])
	second := binary.LittleEndian.Uint32(image[text.Offset+4 : text.Offset+8])
	require.Equal(t, xAddr, first)
	require.Equal(t, xAddr, second)
}

func TestArchiveLazinessPullsTransitiveMember(t *testing.T) {
	aDefA := elftest.Object(nil, []elftest.Sym{
		{Name: "a", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: elfobj.SHNCommon, Size: 4},
	})
	bDefBRefA := elftest.Object(
		[]elftest.Sec{
			{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0, 0, 0, 0}, AddrAlign: 4},
			{Name: ".rel.text", Type: elfobj.SHTRel, Info: 0, Rels: []elftest.RelEntry{{Offset: 0, Sym: 2, Type: elfobj.R386_32}}},
		},
		[]elftest.Sym{
			{Name: "b", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
			{Name: "unused", Bind: 1, Type: elfobj.STTNoType, Shndx: 1},
			{Name: "a", Bind: 1, Type: elfobj.STTNoType, Shndx: elfobj.SHNUndef},
		},
	)
	mainRefB := elftest.Object(
		[]elftest.Sec{
			{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0, 0, 0, 0}, AddrAlign: 4},
			{Name: ".rel.text", Type: elfobj.SHTRel, Info: 0, Rels: []elftest.RelEntry{{Offset: 0, Sym: 1, Type: elfobj.R386_32}}},
		},
		[]elftest.Sym{
			{Name: "_start", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
			{Name: "b", Bind: 1, Type: elfobj.STTNoType, Shndx: elfobj.SHNUndef},
		},
	)

	ar := elftest.Archive(
		map[string][]byte{"a.o": aDefA, "b.o": bDefBRefA},
		[]string{"a.o", "b.o"},
		map[string]string{"a": "a.o", "b": "b.o"},
	)

	l := link.New(link.DefaultConfig())
	require.NoError(t, l.IngestObject("main.o", mainRefB))
	require.NoError(t, l.IngestArchive("lib.a", ar))

	require.Len(t, l.Objects, 3) // main.o + both archive members

	_, err := l.Link()
	require.NoError(t, err)
}

func TestArchiveSkippedWhenNoReferenceSatisfied(t *testing.T) {
	aDefA := elftest.Object(nil, []elftest.Sym{
		{Name: "a", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: elfobj.SHNCommon, Size: 4},
	})
	justStart := startObject("_start")

	ar := elftest.Archive(
		map[string][]byte{"a.o": aDefA},
		[]string{"a.o"},
		map[string]string{"a": "a.o"},
	)

	l := link.New(link.DefaultConfig())
	require.NoError(t, l.IngestObject("main.o", justStart))
	require.NoError(t, l.IngestArchive("lib.a", ar))

	require.Len(t, l.Objects, 1) // archive member never pulled in
}

func TestGOTPadIsZero(t *testing.T) {
	mem := startObject("_start")
	l := link.New(link.DefaultConfig())
	require.NoError(t, l.IngestObject("a.o", mem))
	image, err := l.Link()
	require.NoError(t, err)

	data := l.Phdrs[2]
	pad := image[int(data.Offset+data.FileSz)-16 : int(data.Offset+data.FileSz)]
	for _, b := range pad {
		require.Equal(t, byte(0), b)
	}
}
