package link

import "fmt"

// Kind enumerates the abstract error kinds of spec.md §7. They are plain
// strings rather than a Go error-type hierarchy, following the teacher's
// flat fmt.Errorf style (see xyproto/flapc's arm64_codegen.go).
type Kind string

const (
	KindIO               Kind = "IoFailure"
	KindMalformedElf     Kind = "MalformedElf"
	KindWrongKind        Kind = "WrongKind"
	KindUnsupportedArch  Kind = "UnsupportedArch"
	KindMalformedArchive Kind = "MalformedArchive"
	KindTooManyInputs    Kind = "TooManyInputs"
	KindUndefinedSymbol  Kind = "UndefinedSymbol"
	KindUnsupportedReloc Kind = "UnsupportedReloc"
	KindMissingEntry     Kind = "MissingEntry"
	KindCapacityExceeded Kind = "CapacityExceeded"
)

// LinkError is a fatal, non-recoverable error from any phase of the link
// (spec.md §7: "all errors are fatal to the link; no recovery or retry is
// attempted").
type LinkError struct {
	Kind Kind
	Msg  string
}

func (e *LinkError) Error() string { return e.Msg }

func errf(kind Kind, format string, args ...any) *LinkError {
	return &LinkError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func undefinedSymbol(name string) *LinkError {
	return errf(KindUndefinedSymbol, "%s undefined", name)
}
