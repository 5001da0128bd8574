package link

import "github.com/xyproto/ld/internal/elfobj"

// findGlobal searches every loaded object, in load order, for a defined
// (non-LOCAL, non-UNDEF) symbol named name. First match wins (spec.md
// §4.2 outelf_find / §4.5).
func (l *Linker) findGlobal(name string) (*elfobj.Object, int, elfobj.Symbol, bool) {
	for _, obj := range l.Objects {
		if sym, idx, ok := obj.FindIdx(name); ok {
			return obj, idx, sym, true
		}
	}
	return nil, 0, elfobj.Symbol{}, false
}

// symval implements spec.md §4.5's symval(obj, sym) -> u32.
func (l *Linker) symval(obj *elfobj.Object, idx int) (uint32, error) {
	sym := obj.Symbols[idx]

	switch sym.Type() {
	case elfobj.STTSection:
		if int(sym.Shndx) < len(obj.Sections) {
			if m := l.bySec[obj.Sections[sym.Shndx]]; m != nil {
				return m.VAddr, nil
			}
		}
		return 0, nil

	case elfobj.STTNoType, elfobj.STTObject, elfobj.STTFunc:
		if sym.Name != "" && sym.Shndx == elfobj.SHNUndef {
			foundObj, foundIdx, foundSym, ok := l.findGlobal(sym.Name)
			if !ok {
				return 0, undefinedSymbol(sym.Name)
			}
			obj, idx, sym = foundObj, foundIdx, foundSym
		}
		if sym.Shndx == elfobj.SHNCommon {
			addr, _ := l.bssAddr(obj, idx)
			return addr, nil
		}
		if int(sym.Shndx) < len(obj.Sections) {
			if m := l.bySec[obj.Sections[sym.Shndx]]; m != nil {
				return m.VAddr + sym.Value, nil
			}
		}
		return 0, nil

	default:
		return 0, nil
	}
}

// Addr implements spec.md §4.5's addr(name): symval applied to the
// global lookup result, failing with UndefinedSymbol if name is never
// defined anywhere.
func (l *Linker) Addr(name string) (uint32, error) {
	obj, idx, _, ok := l.findGlobal(name)
	if !ok {
		return 0, undefinedSymbol(name)
	}
	return l.symval(obj, idx)
}
