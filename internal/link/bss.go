package link

import "github.com/xyproto/ld/internal/elfobj"

// allocateCommons lays out every SHN_COMMON symbol in every loaded object
// into the synthesized bss region (spec.md §4.3).
//
// The offset recorded for each symbol is off+sym.Size, and bssLen advances
// by the same off+sym.Size — this is neatld's allocator exactly, and it
// double-counts alignment padding on every allocation (spec.md §9, "Common
// allocator bug"). The spec explicitly preserves this rather than fixing
// it: fixing it changes every subsequent bss address, which is testable
// property #7 territory. See DESIGN.md for the open-question decision.
func (l *Linker) allocateCommons() {
	for _, obj := range l.Objects {
		for i, sym := range obj.Symbols {
			if sym.Shndx != elfobj.SHNCommon {
				continue
			}
			l.allocBss(obj, i, sym)
		}
	}
}

func (l *Linker) allocBss(obj *elfobj.Object, idx int, sym elfobj.Symbol) {
	a := max32(sym.Value, 4)
	off := align(l.bssLen, a)
	l.bssSyms = append(l.bssSyms, bssSymbol{Obj: obj, Idx: idx, Offset: off + sym.Size})
	l.bssLen += off + sym.Size
}

// bssAddr returns the resolved address of the COMMON symbol identified by
// (obj, idx), matching by identity the way the C source matches by
// pointer: two objects can each declare their own "x", and only the
// specific (object, symbol-index) pair that outelf_find/resolve() landed
// on is ever looked up here (spec.md §4.5, §8 property 7).
func (l *Linker) bssAddr(obj *elfobj.Object, idx int) (uint32, bool) {
	for _, b := range l.bssSyms {
		if b.Obj == obj && b.Idx == idx {
			return l.bssVAddr + b.Offset, true
		}
	}
	return 0, false
}
