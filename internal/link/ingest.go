package link

import (
	"github.com/xyproto/ld/internal/archive"
	"github.com/xyproto/ld/internal/elfobj"
)

// IngestObject parses mem as a relocatable ELF32 object and adds it to the
// linker (spec.md §4.2). An object whose e_type is not ET_REL is silently
// dropped rather than reported — this is what lets archive scanning try
// every member without first checking whether it is actually an object.
func (l *Linker) IngestObject(path string, mem []byte) error {
	obj, err := elfobj.Parse(path, mem)
	if err != nil {
		if le, ok := err.(*elfobj.Error); ok && le.Kind == elfobj.KindWrongKind {
			return nil
		}
		return wrapElfobjErr(err)
	}
	l.addObject(obj)
	return nil
}

func (l *Linker) addObject(obj *elfobj.Object) {
	l.Objects = append(l.Objects, obj)
	for _, sec := range obj.Sections {
		if !sec.Allocatable() {
			continue
		}
		m := &SectionMapping{Obj: obj, Sec: sec}
		l.mappings = append(l.mappings, m)
		l.bySec[sec] = m
	}
}

func wrapElfobjErr(err error) *LinkError {
	le, ok := err.(*elfobj.Error)
	if !ok {
		return errf(KindMalformedElf, "%s", err.Error())
	}
	kind := KindMalformedElf
	switch le.Kind {
	case elfobj.KindWrongKind:
		kind = KindWrongKind
	case elfobj.KindUnsupportedArch:
		kind = KindUnsupportedArch
	}
	return errf(kind, "%s", le.Msg)
}

// IngestArchive walks an ar archive's `/ ` symbol index, pulling in every
// member that currently satisfies an outstanding undefined reference, and
// repeats until a full pass adds nothing new (spec.md §4.2 worklist
// fixpoint): a member pulled in on pass N can introduce undefined
// references that an index entry scanned earlier in pass N would have
// satisfied.
func (l *Linker) IngestArchive(path string, mem []byte) error {
	ar, err := archive.Parse(mem)
	if err != nil {
		if ae, ok := err.(*archive.Error); ok {
			return errf(KindMalformedArchive, "%s: %s", path, ae.Msg)
		}
		return errf(KindMalformedArchive, "%s: %s", path, err.Error())
	}
	for {
		added := false
		for _, e := range ar.Index {
			if !l.symUndef(e.Name) {
				continue
			}
			payload, err := ar.Member(e)
			if err != nil {
				return errf(KindMalformedArchive, "%s: %s", path, err.Error())
			}
			before := len(l.Objects)
			if err := l.IngestObject(path, payload); err != nil {
				return err
			}
			if len(l.Objects) > before {
				added = true
			}
		}
		if !added {
			return nil
		}
	}
}

// symUndef reports whether name has at least one non-LOCAL reference
// across all loaded objects and every such reference is SHN_UNDEF. A
// single defined occurrence anywhere makes it false (spec.md §4.2).
func (l *Linker) symUndef(name string) bool {
	undef := false
	for _, obj := range l.Objects {
		for _, sym := range obj.Symbols {
			if sym.Bind() == elfobj.STBLocal || sym.Name != name {
				continue
			}
			if sym.Shndx != elfobj.SHNUndef {
				return false
			}
			undef = true
		}
	}
	return undef
}
