// Package s3utils provides bucket/object name validation, path and query
// encoding, and endpoint classification shared by the signer and the
// request pipeline.
package s3utils

import (
	"net"
	"regexp"
	"strings"
)

var (
	validBucketNameStrict = regexp.MustCompile(`^[a-z0-9][a-z0-9\.\-]{1,61}[a-z0-9]$`)
	ipAddress             = regexp.MustCompile(`^(\d+\.){3}\d+$`)
)

// CheckValidBucketNameStrict validates strictly against the DNS-compliant
// subset required for virtual-hosted addressing:
// ^[a-z0-9][a-z0-9.\-]+[a-z0-9]$, length 3..63, no consecutive dots. This
// is the one rule spec.md §8 testable property 1 names unconditionally,
// and the one enforced at every bucket-carrying request's construction.
func CheckValidBucketNameStrict(bucketName string) error {
	if strings.TrimSpace(bucketName) == "" {
		return ErrInvalidBucketName("Bucket name cannot be empty")
	}
	if len(bucketName) < 3 {
		return ErrInvalidBucketName("Bucket name cannot be shorter than 3 characters")
	}
	if len(bucketName) > 63 {
		return ErrInvalidBucketName("Bucket name cannot be longer than 63 characters")
	}
	if strings.Contains(bucketName, "..") {
		return ErrInvalidBucketName("Bucket name cannot have successive periods")
	}
	if !validBucketNameStrict.MatchString(bucketName) {
		return ErrInvalidBucketName("Bucket name contains invalid characters")
	}
	return nil
}

// CheckValidObjectName validates that an object key is non-empty and does
// not contain a NUL byte or a path segment equal to "." or "..".
func CheckValidObjectName(objectName string) error {
	if strings.TrimSpace(objectName) == "" {
		return ErrInvalidObjectName("Object name cannot be empty")
	}
	return CheckValidObjectNamePrefix(objectName)
}

// CheckValidObjectNamePrefix validates an object name/prefix, allowing
// empty strings (used for listing prefixes).
func CheckValidObjectNamePrefix(objectName string) error {
	if len(objectName) > 1024 {
		return ErrInvalidObjectName("Object name cannot be longer than 1024 characters")
	}
	if strings.Contains(objectName, "\x00") {
		return ErrInvalidObjectName("Object name cannot contain NUL bytes")
	}
	for _, seg := range strings.Split(objectName, "/") {
		if seg == "." || seg == ".." {
			return ErrInvalidObjectName("Object name cannot contain '.' or '..' path segments")
		}
	}
	return nil
}

// IsValidDomain returns true when host is a DNS-compliant name (not an IP
// literal).
func IsValidDomain(host string) bool {
	if ipAddress.MatchString(host) {
		return false
	}
	if net.ParseIP(host) != nil {
		return false
	}
	if len(host) == 0 || len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
	}
	return true
}

// IsValidIP returns true when host parses as an IPv4 or IPv6 literal.
func IsValidIP(host string) bool {
	return net.ParseIP(host) != nil
}
