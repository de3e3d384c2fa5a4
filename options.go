package s3core

import (
	"net/http"
	"strconv"

	"github.com/cloudkit-io/s3core/internal/credentials"
)

// Options collapses the teacher's many-arity New()/NewWithOptions()
// overloads into a single configuration record (spec.md §9).
type Options struct {
	// Region pins the client to a single region and disables bucket
	// location discovery (spec.md §2, §4.2). Empty means "resolve per
	// bucket".
	Region string

	Creds  *credentials.Credentials
	Secure bool

	// Transport is injected per spec.md §1 ("HTTP transport ... an
	// injectable dependency"); nil uses a sane default transport.
	Transport http.RoundTripper

	AppName    string
	AppVersion string

	// TraceSink, when non-nil, receives structured request/response
	// diagnostics (internal/trace.Sink). nil disables tracing.
	TraceSink interface {
		Request(requestID string, req *http.Request)
		Response(requestID string, statusCode int, headers http.Header)
	}

	// DisableTransparentDecompression, when true, skips the klauspost
	// gzip wrapping even if the server sent Content-Encoding: gzip.
	// GetObject requests sent in the signed-in-full payload mode (spec.md
	// §4.1 mode 3: credentialed V4 over plain HTTP) are never decompressed,
	// whatever this is set to: a signed payload's hash covers the wire
	// bytes, and decompressing in flight would change what the caller sees
	// without re-validating anything.
	DisableTransparentDecompression bool

	// BucketLookup overrides virtual-host-vs-path-style addressing
	// detection (spec.md §4.1 rule 2); zero value is auto-detect.
	BucketLookup BucketLookupType

	// AccelerateEndpoint, when set, routes every request against an
	// Amazon S3 Transfer Acceleration host instead of the regional
	// endpoint (SPEC_FULL.md §5). Only takes effect when the client's
	// endpoint is Amazon S3 itself; dotted bucket names are rejected
	// since transfer acceleration requires a DNS-compliant name.
	AccelerateEndpoint string
}

// BucketLookupType selects virtual-hosted vs path-style addressing.
type BucketLookupType int

const (
	BucketLookupAuto BucketLookupType = iota
	BucketLookupDNS
	BucketLookupPath
)

// PutObjectOptions configures a PutObject/multipart upload call.
type PutObjectOptions struct {
	ContentType     string
	ContentEncoding string
	ContentLanguage string
	ContentDisposition string
	CacheControl    string
	UserMetadata    map[string]string
	SSE             SSE
	StorageClass    string
	PartSize        uint64 // override the computed multipart part size; 0 = auto
	NumThreads      uint   // parallel part uploads; 0/1 = sequential
	SendContentMD5  bool   // force MD5 even when not required by the operation

	// DisableMultipart forces a single PUT even for payloads that would
	// otherwise be split (fails with ArgumentError if size > maxPartSize).
	DisableMultipart bool
}

// GetObjectOptions configures a GetObject/FGetObject call.
type GetObjectOptions struct {
	Headers map[string]string // raw passthrough, e.g. Range set via SetRange
	SSEC    SSE
}

// SetRange sets a byte-range request header; end == -1 means "to EOF".
func (o *GetObjectOptions) SetRange(start, end int64) {
	if o.Headers == nil {
		o.Headers = map[string]string{}
	}
	if end < 0 {
		o.Headers["Range"] = "bytes=" + itoa(start) + "-"
	} else {
		o.Headers["Range"] = "bytes=" + itoa(start) + "-" + itoa(end)
	}
}

// ListObjectsOptions configures ListObjects iteration (spec.md §4.5).
type ListObjectsOptions struct {
	Prefix       string
	Recursive    bool
	WithVersions bool
	MaxKeys      int
	UseV1        bool // force ListObjectsV1 wire protocol instead of V2
}

// ListMultipartUploadsOptions configures the uploads iterator.
type ListMultipartUploadsOptions struct {
	Prefix          string
	Recursive       bool
	WithAggregatedPartSize bool // sum part sizes per upload (spec.md §4.5)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
