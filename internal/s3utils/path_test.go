package s3utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodePathPreservesSlashesAndUnreserved(t *testing.T) {
	require.Equal(t, "", EncodePath(""))
	require.Equal(t, "a-b_c.d~e", EncodePath("a-b_c.d~e"))
	require.Equal(t, "dir1/dir2/file.txt", EncodePath("dir1/dir2/file.txt"))
}

func TestEncodePathEscapesReservedBytes(t *testing.T) {
	require.Equal(t, "a%20b", EncodePath("a b"))
	require.Equal(t, "100%25", EncodePath("100%"))
	require.Equal(t, "key%2Bwith%2Bplus", EncodePath("key+with+plus"))
}

func TestQueryEncodeSortsByKey(t *testing.T) {
	v := url.Values{}
	v.Set("b", "2")
	v.Set("a", "1")
	require.Equal(t, "a=1&b=2", QueryEncode(v))
	require.Equal(t, "", QueryEncode(nil))
}
