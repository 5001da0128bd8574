// Package disasm prints a best-effort i386 disassembly of the linked
// image's text segment for the -S/--disasm diagnostic (SPEC_FULL.md
// "Domain stack"). It plays no part in linking itself; nothing under
// internal/link imports it.
package disasm

import (
	"fmt"
	"io"

	"golang.org/x/arch/x86/x86asm"
)

// Dump decodes text, a slice of the output image's text segment bytes,
// starting at base (the segment's link-time virtual address), and writes
// one line per instruction to w. Decoding errors are not fatal: a bad
// opcode stream (handwritten assembly rarely confuses gcc's own
// assembler, but a malformed or stripped object can) is printed as a
// single ".byte" line and decoding resumes at the next byte, matching
// what objdump does on a truncated stream.
func Dump(w io.Writer, text []byte, base uint32) error {
	for off := 0; off < len(text); {
		inst, err := x86asm.Decode(text[off:], 32)
		if err != nil {
			fmt.Fprintf(w, "%8x:\t.byte 0x%02x\n", uint32(off)+base, text[off])
			off++
			continue
		}
		fmt.Fprintf(w, "%8x:\t%s\n", uint32(off)+base, x86asm.GNUSyntax(inst, uint64(off)+uint64(base), nil))
		if inst.Len == 0 {
			off++
			continue
		}
		off += inst.Len
	}
	return nil
}
