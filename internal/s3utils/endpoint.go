package s3utils

import (
	"net/url"
	"strings"
)

// amazonS3Host matches endpoints that should be treated as Amazon's own
// S3 service for regional-endpoint and transfer-acceleration handling.
func amazonS3Host(host string) bool {
	host = strings.ToLower(host)
	return strings.HasSuffix(host, ".amazonaws.com") || strings.HasSuffix(host, ".amazonaws.com.cn")
}

// IsAmazonEndpoint returns true when u addresses Amazon's canonical S3
// endpoint (any region, partition, or dualstack/FIPS variant).
func IsAmazonEndpoint(u url.URL) bool {
	return amazonS3Host(u.Host)
}

// IsAmazonFIPSEndpoint returns true when u addresses a FIPS-compliant
// Amazon S3 endpoint, which must not be rewritten to a region-derived
// host by the URL builder.
func IsAmazonFIPSEndpoint(u url.URL) bool {
	return amazonS3Host(u.Host) && strings.Contains(strings.ToLower(u.Host), "fips")
}

// IsGoogleEndpoint returns true when u addresses Google Cloud Storage's
// S3-compatible endpoint, which requires SigV2 by default.
func IsGoogleEndpoint(u url.URL) bool {
	return strings.EqualFold(u.Host, "storage.googleapis.com")
}

// GetRegionFromURL extracts an AWS region token embedded in an Amazon S3
// hostname (e.g. "bucket.s3.eu-west-1.amazonaws.com" or
// "s3-eu-west-1.amazonaws.com"); returns "" when none is found, which the
// caller defaults to "us-east-1".
func GetRegionFromURL(u url.URL) string {
	host := strings.ToLower(u.Host)
	if !amazonS3Host(host) {
		return ""
	}
	host = strings.TrimSuffix(host, ".amazonaws.com.cn")
	host = strings.TrimSuffix(host, ".amazonaws.com")
	labels := strings.Split(host, ".")
	last := labels[len(labels)-1]
	last = strings.TrimPrefix(last, "s3-")
	last = strings.TrimPrefix(last, "s3.")
	last = strings.TrimPrefix(last, "s3")
	last = strings.TrimPrefix(last, "dualstack.")
	last = strings.TrimPrefix(last, "-")
	last = strings.TrimPrefix(last, ".")
	if last == "" || last == "external-1" {
		return ""
	}
	return last
}

// IsVirtualHostSupported returns true when bucketName can be addressed in
// virtual-hosted style against the endpoint in u: the bucket name must be
// DNS-compliant (strict rules) and, over HTTPS, must not contain a '.'
// (which would break the TLS SNI/cert match against "*.s3.amazonaws.com").
func IsVirtualHostSupported(u url.URL, bucketName string) bool {
	if !IsAmazonEndpoint(u) && !IsGoogleEndpoint(u) {
		return false
	}
	if CheckValidBucketNameStrict(bucketName) != nil {
		return false
	}
	if u.Scheme == "https" && strings.Contains(bucketName, ".") {
		return false
	}
	return true
}
