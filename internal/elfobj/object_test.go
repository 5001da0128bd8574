package elfobj_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xyproto/ld/internal/elfobj"
	"github.com/xyproto/ld/internal/elftest"
)

func textObject() []byte {
	return elftest.Object(
		[]elftest.Sec{
			{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0x90, 0x90, 0x90, 0x90}, AddrAlign: 4},
		},
		[]elftest.Sym{
			{Name: "_start", Value: 0, Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
		},
	)
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := elfobj.Parse("bad", []byte{0, 0, 0, 0})
	require.Error(t, err)
}

func TestParseAcceptsMinimalObject(t *testing.T) {
	obj, err := elfobj.Parse("t.o", textObject())
	require.NoError(t, err)
	require.Len(t, obj.Sections, 5) // null, .text, .symtab, .strtab, .shstrtab
	require.NotEmpty(t, obj.Symbols)
}

func TestFindSkipsLocalAndUndef(t *testing.T) {
	mem := elftest.Object(
		[]elftest.Sec{{Name: ".text", Type: 1, Flags: elfobj.SHFAlloc | elfobj.SHFExecInstr, Data: []byte{0x90}, AddrAlign: 1}},
		[]elftest.Sym{
			{Name: "local_sym", Bind: 0, Type: elfobj.STTNoType, Shndx: 1},
			{Name: "undef_sym", Bind: 1, Type: elfobj.STTNoType, Shndx: elfobj.SHNUndef},
			{Name: "global_sym", Bind: 1, Type: elfobj.STTFunc, Shndx: 1},
		},
	)
	obj, err := elfobj.Parse("t.o", mem)
	require.NoError(t, err)

	_, ok := obj.Find("local_sym")
	require.False(t, ok)
	_, ok = obj.Find("undef_sym")
	require.False(t, ok)

	sym, ok := obj.Find("global_sym")
	require.True(t, ok)
	require.Equal(t, "global_sym", sym.Name)
}

func TestParseRejectsNonRelType(t *testing.T) {
	mem := textObject()
	// e_type lives at byte offset 16; flip ET_REL(1) to ET_EXEC(2).
	mem[16] = 2
	_, err := elfobj.Parse("t.o", mem)
	require.Error(t, err)
	le, ok := err.(*elfobj.Error)
	require.True(t, ok)
	require.Equal(t, elfobj.KindWrongKind, le.Kind)
}
