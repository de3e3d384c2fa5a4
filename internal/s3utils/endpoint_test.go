package s3utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParseHost(t *testing.T, host, scheme string) url.URL {
	t.Helper()
	return url.URL{Scheme: scheme, Host: host}
}

func TestIsAmazonEndpoint(t *testing.T) {
	require.True(t, IsAmazonEndpoint(mustParseHost(t, "s3.amazonaws.com", "https")))
	require.True(t, IsAmazonEndpoint(mustParseHost(t, "bucket.s3.eu-west-1.amazonaws.com", "https")))
	require.False(t, IsAmazonEndpoint(mustParseHost(t, "storage.googleapis.com", "https")))
	require.False(t, IsAmazonEndpoint(mustParseHost(t, "minio.example.com", "http")))
}

func TestIsAmazonFIPSEndpoint(t *testing.T) {
	require.True(t, IsAmazonFIPSEndpoint(mustParseHost(t, "s3-fips.us-east-1.amazonaws.com", "https")))
	require.False(t, IsAmazonFIPSEndpoint(mustParseHost(t, "s3.amazonaws.com", "https")))
}

func TestIsGoogleEndpoint(t *testing.T) {
	require.True(t, IsGoogleEndpoint(mustParseHost(t, "storage.googleapis.com", "https")))
	require.True(t, IsGoogleEndpoint(mustParseHost(t, "STORAGE.GOOGLEAPIS.COM", "https")))
	require.False(t, IsGoogleEndpoint(mustParseHost(t, "s3.amazonaws.com", "https")))
}

func TestGetRegionFromURL(t *testing.T) {
	require.Equal(t, "eu-west-1", GetRegionFromURL(mustParseHost(t, "bucket.s3.eu-west-1.amazonaws.com", "https")))
	require.Equal(t, "eu-west-1", GetRegionFromURL(mustParseHost(t, "s3-eu-west-1.amazonaws.com", "https")))
	require.Equal(t, "", GetRegionFromURL(mustParseHost(t, "s3.amazonaws.com", "https")))
	require.Equal(t, "", GetRegionFromURL(mustParseHost(t, "minio.example.com", "http")))
}

func TestIsVirtualHostSupported(t *testing.T) {
	amazon := mustParseHost(t, "s3.amazonaws.com", "https")
	require.True(t, IsVirtualHostSupported(amazon, "my-bucket"))
	require.False(t, IsVirtualHostSupported(amazon, "my.dotted.bucket"))
	require.False(t, IsVirtualHostSupported(amazon, "Invalid_Bucket"))

	custom := mustParseHost(t, "minio.example.com", "http")
	require.False(t, IsVirtualHostSupported(custom, "my-bucket"))
}
