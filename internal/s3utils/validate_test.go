package s3utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBucketNameStrictMatchesRegex verifies spec.md §8 property 1: the
// strict validator accepts exactly ^[a-z0-9][a-z0-9.\-]+[a-z0-9]$ with
// length 3..63 and no consecutive dots.
func TestBucketNameStrictMatchesRegex(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"ab", false},             // too short
		{"abc", true},             // minimal valid
		{"a.b", true},             // dot allowed
		{"a..b", false},           // consecutive dots
		{"Abc", false},            // uppercase rejected strictly
		{"-abc", false},           // leading hyphen
		{"abc-", false},           // trailing hyphen
		{"ab_c", false},           // underscore not allowed strictly
		{"a234567890123456789012345678901234567890123456789012345678901234b", false}, // 65 chars, too long
	}
	for _, c := range cases {
		err := CheckValidBucketNameStrict(c.name)
		if c.ok {
			require.NoError(t, err, c.name)
		} else {
			require.Error(t, err, c.name)
		}
	}
}

func TestCheckValidObjectName(t *testing.T) {
	require.NoError(t, CheckValidObjectName("a/b/c.txt"))
	require.Error(t, CheckValidObjectName(""))
	require.Error(t, CheckValidObjectName("a/../b"))
	require.Error(t, CheckValidObjectName("a/./b"))
}

// TestIsVirtualHostSupported covers spec.md §8 property 2: a dotted
// bucket name over HTTPS is not virtual-host eligible; a plain one is.
func TestIsVirtualHostSupported(t *testing.T) {
	httpsURL := url.URL{Scheme: "https", Host: "s3.amazonaws.com"}
	require.False(t, IsVirtualHostSupported(httpsURL, "a.b"))
	require.True(t, IsVirtualHostSupported(httpsURL, "ab"))

	httpURL := url.URL{Scheme: "http", Host: "s3.amazonaws.com"}
	require.True(t, IsVirtualHostSupported(httpURL, "a.b"))
}

func TestGetRegionFromURL(t *testing.T) {
	require.Equal(t, "eu-west-1", GetRegionFromURL(url.URL{Host: "bucket.s3.eu-west-1.amazonaws.com"}))
	require.Equal(t, "", GetRegionFromURL(url.URL{Host: "s3.amazonaws.com"}))
	require.Equal(t, "", GetRegionFromURL(url.URL{Host: "minio.example.com"}))
}
