package link

import (
	"encoding/binary"

	"github.com/xyproto/ld/internal/elfobj"
)

// relocateAll walks every SHT_REL section of every loaded object and
// patches the section it applies to, in place, through the target
// mapping's Payload (spec.md §4.6). It must run after every
// SectionMapping has its final VAddr, i.e. from inside layoutData once
// every other section in the segment has an address.
func (l *Linker) relocateAll() error {
	for _, obj := range l.Objects {
		for _, sec := range obj.Sections {
			if sec.Type != elfobj.SHTRel {
				continue
			}
			target, err := l.targetMapping(obj, sec)
			if err != nil {
				return err
			}
			if target == nil {
				continue
			}
			for _, rel := range obj.Rels(sec) {
				if err := l.applyReloc(obj, target, rel); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *Linker) targetMapping(obj *elfobj.Object, rel *elfobj.Section) (*SectionMapping, error) {
	idx := int(rel.Info)
	if idx < 0 || idx >= len(obj.Sections) {
		return nil, errf(KindMalformedElf, "%s: relocation section %q targets out-of-range section %d", obj.Path, rel.Name, idx)
	}
	return l.bySec[obj.Sections[idx]], nil
}

// applyReloc patches one relocation entry (spec.md §4.6). Only
// R_386_NONE/16/32/PC32/PLT32 are recognized; anything else is a hard
// error rather than a silent skip, since a patch silently not applied
// produces a binary that merely looks correct.
func (l *Linker) applyReloc(obj *elfobj.Object, target *SectionMapping, rel elfobj.Rel) error {
	if int(rel.Offset) >= len(target.Sec.Payload()) {
		return errf(KindMalformedElf, "%s: relocation offset %d out of range for section %q", obj.Path, rel.Offset, target.Sec.Name)
	}

	val, err := l.symval(obj, int(rel.Sym))
	if err != nil {
		return err
	}
	here := target.VAddr + rel.Offset
	dst := target.Sec.Payload()[rel.Offset:]

	switch rel.Type {
	case elfobj.R386None:
		// no-op

	case elfobj.R386_16:
		cur := binary.LittleEndian.Uint16(dst)
		binary.LittleEndian.PutUint16(dst, cur+uint16(val))

	case elfobj.R386_32:
		cur := binary.LittleEndian.Uint32(dst)
		binary.LittleEndian.PutUint32(dst, cur+val)

	case elfobj.R386PC32, elfobj.R386PLT32:
		cur := binary.LittleEndian.Uint32(dst)
		binary.LittleEndian.PutUint32(dst, cur+val-here)

	default:
		return errf(KindUnsupportedReloc, "%s: unsupported relocation type %d in section %q", obj.Path, rel.Type, target.Sec.Name)
	}
	return nil
}
