package s3core

import "runtime"

// Multipart partitioning constants, bit-exact per spec.md §3.
const (
	minPartSize       = 5 * 1024 * 1024         // 5 MiB
	maxPartSize       = 5 * 1024 * 1024 * 1024  // 5 GiB
	maxObjectSize     = 5 * 1024 * 1024 * 1024 * 1024 // 5 TiB
	maxMultipartCount = 10000
)

const (
	libraryName    = "s3core"
	libraryVersion = "v1.0.0"

	libraryUserAgentPrefix = "s3core (" + runtime.GOOS + "; " + runtime.GOARCH + ") "
	libraryUserAgent       = libraryUserAgentPrefix + libraryName + "/" + libraryVersion
)

// defaultRegion is used whenever no region can be resolved from client
// configuration, bucket location discovery, or the endpoint hostname.
const defaultRegion = "us-east-1"

// resumableDownloadSuffix is the sidecar naming scheme for
// FGetObject resumable downloads (spec.md §5): "<dest>.<etag>.part.minio".
const resumableDownloadSuffix = ".part.minio"

// successStatus lists HTTP status codes the request pipeline treats as a
// successful exchange (spec.md §4.1).
var successStatus = map[int]bool{
	200: true,
	204: true,
	206: true,
}
