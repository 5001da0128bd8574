// Package elfobj parses 32-bit little-endian ELF relocatable object files.
//
// It deliberately avoids debug/elf: the linker needs raw, zero-copy views
// into the input buffer (section payloads get patched in place during
// relocation), not a decoded copy.
package elfobj

// ELF32 file header and section/symbol layout constants, i386 only.
const (
	EhdrSize = 52
	ShdrSize = 40
	SymSize  = 16
	RelSize  = 8

	EIClass   = 4
	EIData    = 5
	ELFClass32 = 1
	ELFData2LSB = 1

	ETRel  = 1
	ETExec = 2

	EMNone = 0
	EM386  = 3

	SHTNull    = 0
	SHTProgBits = 1
	SHTSymTab  = 2
	SHTStrTab  = 3
	SHTRel     = 9
	SHTNoBits  = 8

	SHFWrite     = 0x1
	SHFAlloc     = 0x2
	SHFExecInstr = 0x4
	// allocMask is the set of flags that mean "this section occupies
	// space in the linked image" per spec.md §4.2: any of ALLOC/WRITE/EXEC.
	allocMask = SHFWrite | SHFAlloc | SHFExecInstr

	SHNUndef  = 0
	SHNCommon = 0xfff2

	STBLocal = 0

	STTNoType  = 0
	STTObject  = 1
	STTFunc    = 2
	STTSection = 3
)

// i386 relocation type numbers (System V i386 psABI supplement).
const (
	R386None  = 0
	R386_32   = 1
	R386PC32  = 2
	R386PLT32 = 4
	R386_16   = 20
)

// Program header constants (Elf32_Phdr is 32 bytes, distinct from the
// 40-byte Elf32_Shdr above).
const (
	PhdrSize = 32

	PTLoad = 1

	PFX = 0x1
	PFW = 0x2
	PFR = 0x4
)
