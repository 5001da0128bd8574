package archive_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xyproto/ld/internal/archive"
	"github.com/xyproto/ld/internal/elftest"
)

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := archive.Parse([]byte("not an ar archive"))
	require.Error(t, err)
}

func TestParseAndMemberRoundTrip(t *testing.T) {
	mem := elftest.Archive(
		map[string][]byte{
			"a.o": []byte("payload-a"),
			"b.o": []byte("payload-bb"),
		},
		[]string{"a.o", "b.o"},
		map[string]string{"a": "a.o", "b": "b.o"},
	)

	ar, err := archive.Parse(mem)
	require.NoError(t, err)
	require.Len(t, ar.Index, 2)

	byName := map[string]archive.IndexEntry{}
	for _, e := range ar.Index {
		byName[e.Name] = e
	}

	payload, err := ar.Member(byName["a"])
	require.NoError(t, err)
	require.Equal(t, "payload-a", string(payload))

	payload, err = ar.Member(byName["b"])
	require.NoError(t, err)
	require.Equal(t, "payload-bb", string(payload))
}

func TestLongNameMemberIsSkipped(t *testing.T) {
	mem := elftest.Archive(
		map[string][]byte{
			"//":  []byte("very-long-member-name.o/\n"),
			"a.o": []byte("x"),
		},
		[]string{"//", "a.o"},
		map[string]string{"a": "a.o"},
	)
	ar, err := archive.Parse(mem)
	require.NoError(t, err)
	require.Len(t, ar.Index, 1)
	require.Equal(t, "a", ar.Index[0].Name)
}
