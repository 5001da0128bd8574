// Package archive reads Unix ar archives well enough to drive lazy static
// linking: the 8-byte magic, the 60-byte member headers, and the `/ `
// symbol-index member that maps defined symbol names to member offsets.
package archive

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

const (
	magic     = "!<arch>\n"
	hdrSize   = 60
	nameField = 16
	sizeOff   = 48
	sizeLen   = 10
)

// Error mirrors spec.md §7's MalformedArchive kind.
type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

// IndexEntry is one entry of the `/ ` symbol index: a defined symbol name
// and the absolute byte offset (from the start of the archive, magic
// included) of the member header that defines it.
type IndexEntry struct {
	Name         string
	HeaderOffset uint32
}

// Archive is a parsed ar archive: the raw bytes plus its symbol index, if
// it has one. Archives without a `/ ` member parse successfully but carry
// an empty Index, matching spec.md §7 ("a missing symbol-index member is
// not fatal per se; without one, no members are pulled in").
type Archive struct {
	mem   []byte
	Index []IndexEntry
}

// Parse reads the archive header and every member, extracting the `/ `
// symbol index and skipping the `// ` long-name table.
//
// Design note (spec.md §9, resolved open question): the original neatld
// ingests `// ` as if it were a relocatable object, which happens to be
// harmless there only because it's never actually ET_REL. We skip it
// outright, since in real ar semantics it is a pure string table for
// names longer than 16 bytes, never a member to link.
func Parse(mem []byte) (*Archive, error) {
	if len(mem) < len(magic) || string(mem[:len(magic)]) != magic {
		return nil, &Error{Msg: "not an ar archive (bad magic)"}
	}
	a := &Archive{mem: mem}
	pos := len(magic)
	for pos+hdrSize <= len(mem) {
		hdr := mem[pos : pos+hdrSize]
		name := strings.TrimRight(string(hdr[:nameField]), " ")
		size, err := parseSize(hdr)
		if err != nil {
			return nil, err
		}
		payloadStart := pos + hdrSize
		payloadEnd := payloadStart + size
		if payloadEnd > len(mem) {
			return nil, &Error{Msg: fmt.Sprintf("member %q payload out of range", name)}
		}

		switch name {
		case "/":
			idx, err := parseIndex(mem[payloadStart:payloadEnd])
			if err != nil {
				return nil, err
			}
			a.Index = idx
		case "//":
			// long-name table: metadata only, not a member to link.
		}

		pos = payloadEnd
		if pos%2 != 0 {
			pos++ // members are padded to even length
		}
	}
	return a, nil
}

func parseSize(hdr []byte) (int, error) {
	field := strings.TrimSpace(string(hdr[sizeOff : sizeOff+sizeLen]))
	size, err := strconv.Atoi(field)
	if err != nil {
		return 0, &Error{Msg: fmt.Sprintf("malformed ar_size %q", field)}
	}
	return size, nil
}

func parseIndex(payload []byte) ([]IndexEntry, error) {
	if len(payload) < 4 {
		return nil, &Error{Msg: "symbol index truncated"}
	}
	n := binary.BigEndian.Uint32(payload[:4])
	need := 4 + int(n)*4
	if len(payload) < need {
		return nil, &Error{Msg: "symbol index offsets truncated"}
	}
	offsets := make([]uint32, n)
	for i := range offsets {
		offsets[i] = binary.BigEndian.Uint32(payload[4+i*4:])
	}
	names := payload[need:]
	entries := make([]IndexEntry, n)
	p := 0
	for i := range entries {
		start := p
		for p < len(names) && names[p] != 0 {
			p++
		}
		entries[i] = IndexEntry{Name: string(names[start:p]), HeaderOffset: offsets[i]}
		if p < len(names) {
			p++ // skip the NUL
		}
	}
	return entries, nil
}

// Member returns the payload bytes of the member whose header begins at
// e.HeaderOffset.
func (a *Archive) Member(e IndexEntry) ([]byte, error) {
	start := int(e.HeaderOffset)
	if start+hdrSize > len(a.mem) {
		return nil, &Error{Msg: fmt.Sprintf("member %q header out of range", e.Name)}
	}
	hdr := a.mem[start : start+hdrSize]
	size, err := parseSize(hdr)
	if err != nil {
		return nil, err
	}
	payloadStart := start + hdrSize
	payloadEnd := payloadStart + size
	if payloadEnd > len(a.mem) {
		return nil, &Error{Msg: fmt.Sprintf("member %q payload out of range", e.Name)}
	}
	return a.mem[payloadStart:payloadEnd], nil
}
