package s3core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestCalculateMultipartSize checks spec.md §4.3's part-sizing formula at
// a few representative sizes, including the "last part absorbs the
// remainder, defaulting to partSize when it would be zero" edge case.
func TestCalculateMultipartSize(t *testing.T) {
	cases := []struct {
		name             string
		size             int64
		wantPartSize     int64
		wantPartCount    int
		wantLastPartSize int64
	}{
		{"tiny object uses minimum part size", 1024, minPartSize, 1, 1024},
		{"exact multiple of minimum part size", minPartSize * 3, minPartSize, 3, minPartSize},
		{"one byte over a clean boundary", minPartSize*2 + 1, minPartSize, 3, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			partSize, partCount, lastPartSize, err := calculateMultipartSize(tc.size)
			require.NoError(t, err)
			require.Equal(t, tc.wantPartSize, partSize)
			require.Equal(t, tc.wantPartCount, partCount)
			require.Equal(t, tc.wantLastPartSize, lastPartSize)
		})
	}
}

func TestCalculateMultipartSizeRejectsOversizedObject(t *testing.T) {
	_, _, _, err := calculateMultipartSize(maxObjectSize + 1)
	require.Error(t, err)
	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, KindArgument, e.Kind)
}

func TestCalculateMultipartSizeRejectsNegativeSize(t *testing.T) {
	_, _, _, err := calculateMultipartSize(-1)
	require.Error(t, err)
}

func TestDivCeil(t *testing.T) {
	require.Equal(t, int64(1), divCeil(1, 10))
	require.Equal(t, int64(1), divCeil(10, 10))
	require.Equal(t, int64(2), divCeil(11, 10))
	require.Equal(t, int64(0), divCeil(0, 10))
}
