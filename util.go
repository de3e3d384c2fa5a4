package s3core

import (
	"crypto/md5"
	"encoding/base64"
	"net/http"

	"github.com/cloudkit-io/s3core/internal/signer"
)

// signerSHA256Hex hashes body for the X-Amz-Content-Sha256 header.
func signerSHA256Hex(body []byte) string {
	if len(body) == 0 {
		return signer.EmptyPayloadHash
	}
	return signer.SHA256Hex(body)
}

// md5Base64 returns the base64-encoded MD5 digest of body, used for the
// Content-Md5 header on bodies small enough to buffer (spec.md §4.1).
func md5Base64(body []byte) string {
	sum := md5.Sum(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// putObjectHeaders builds the x-amz-meta-*/standard-header set for a
// PutObject/multipart-initiate call (spec.md §4.1's header-categorization
// rule: recognized standard headers pass through verbatim, everything
// else the caller supplies as metadata is rewritten to x-amz-meta-*).
func putObjectHeaders(opts PutObjectOptions) http.Header {
	h := make(http.Header)
	if opts.ContentType != "" {
		h.Set("Content-Type", opts.ContentType)
	} else {
		h.Set("Content-Type", "application/octet-stream")
	}
	if opts.ContentEncoding != "" {
		h.Set("Content-Encoding", opts.ContentEncoding)
	}
	if opts.ContentLanguage != "" {
		h.Set("Content-Language", opts.ContentLanguage)
	}
	if opts.ContentDisposition != "" {
		h.Set("Content-Disposition", opts.ContentDisposition)
	}
	if opts.CacheControl != "" {
		h.Set("Cache-Control", opts.CacheControl)
	}
	if opts.StorageClass != "" {
		h.Set("X-Amz-Storage-Class", opts.StorageClass)
	}
	for k, v := range opts.SSE.Headers() {
		h.Set(k, v)
	}
	for k, v := range opts.UserMetadata {
		h.Set("X-Amz-Meta-"+k, v)
	}
	return h
}
