package s3core

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

type copyObjectResult struct {
	XMLName xml.Name `xml:"CopyObjectResult"`
	ETag    string   `xml:"ETag"`
}

// composeFragment is one server-side part-copy PUT the general path will
// issue: srcIndex identifies which ComposeSource it copies from, start/end
// the byte range within that source (end inclusive, -1 meaning "to EOF").
type composeFragment struct {
	srcIndex   int
	start, end int64
}

// statObjectHead HEAD-probes a source object, filling in its resolved size
// and ETag (spec.md §4.4's per-source validation step).
func (c *Client) statObjectHead(ctx context.Context, src *ComposeSource) error {
	headers := make(http.Header)
	for k, v := range src.SSE.Headers() {
		headers.Set(k, v)
	}
	resp, err := c.executeMethod(ctx, http.MethodHead, requestMetadata{
		bucketName:   src.Bucket,
		objectName:   src.Object,
		customHeader: headers,
	})
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	src.resolvedSize = parseContentLength(resp)
	src.resolvedETag = trimETag(resp.Header.Get("ETag"))
	return nil
}

// planCompose validates sources per spec.md §4.4 and builds the fragment
// list the general multipart-copy path will execute, or reports that the
// fast single-copy path applies (len(fragments) == 1 && fragments belongs
// to exactly one source with no split).
func planCompose(sources []*ComposeSource) ([]composeFragment, error) {
	if len(sources) == 0 {
		return nil, argumentError("compose requires at least one source")
	}

	var fragments []composeFragment
	var totalSize int64

	for i, src := range sources {
		contribution := src.contributedLength()
		isLast := i == len(sources)-1

		if !isLast && contribution < minPartSize {
			return nil, argumentError(fmt.Sprintf("source %d contributes %d bytes, below the 5 MiB minimum for a non-terminal compose source", i, contribution))
		}
		if i > 0 && src.SSE.Type != SSENone {
			return nil, argumentError("client-side-encryption metadata may only be carried on the first compose source")
		}

		totalSize += contribution
		if totalSize > maxObjectSize {
			return nil, argumentError("composed object size exceeds the maximum allowed 5 TiB")
		}

		start := max64(src.Start, 0)
		remaining := contribution
		for remaining > 0 {
			fragLen := remaining
			if fragLen > maxPartSize {
				fragLen = maxPartSize
				// The final fragment of a split source is kept at or
				// above the 5 MiB minimum, even when it is also the
				// overall last fragment of the whole compose: the
				// current fragment shrinks so the tail gets minPartSize.
				if remaining-fragLen < minPartSize && !(isLast && remaining-fragLen == 0) {
					fragLen = remaining - minPartSize
				}
			}
			fragments = append(fragments, composeFragment{
				srcIndex: i,
				start:    start,
				end:      start + fragLen - 1,
			})
			start += fragLen
			remaining -= fragLen
		}
	}

	if len(fragments) > maxMultipartCount {
		return nil, argumentError("composed object requires more than the maximum allowed 10000 parts")
	}
	return fragments, nil
}

// copySourceHeader builds the x-amz-copy-source[-range] header pair for
// one fragment of src.
func copySourceHeader(src *ComposeSource, start, end int64) (string, string) {
	copySource := "/" + src.Bucket + "/" + s3utils.EncodePath(src.Object)
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end)
	return copySource, rangeHeader
}

func copySourcePreconditionHeaders(src *ComposeSource) http.Header {
	h := make(http.Header)
	if src.MatchETag != "" {
		h.Set("X-Amz-Copy-Source-If-Match", src.MatchETag)
	}
	if src.NoneMatchETag != "" {
		h.Set("X-Amz-Copy-Source-If-None-Match", src.NoneMatchETag)
	}
	if !src.ModifiedSince.IsZero() {
		h.Set("X-Amz-Copy-Source-If-Modified-Since", src.ModifiedSince.UTC().Format(http.TimeFormat))
	}
	if !src.UnmodifiedSince.IsZero() {
		h.Set("X-Amz-Copy-Source-If-Unmodified-Since", src.UnmodifiedSince.UTC().Format(http.TimeFormat))
	}
	for k, v := range src.CopySrcSSEHeaders() {
		h.Set(k, v)
	}
	return h
}

// ComposeObject builds dstBucket/dstObject from sources using server-side
// part copies (spec.md §4.4): a single-fragment plan takes the fast
// CopyObject path, anything else drives a full multipart-copy.
func (c *Client) ComposeObject(ctx context.Context, dstBucket, dstObject string, opts PutObjectOptions, sources ...*ComposeSource) (UploadedObjectInfo, error) {
	if err := s3utils.CheckValidBucketNameStrict(dstBucket); err != nil {
		return UploadedObjectInfo{}, asArgumentError(err)
	}
	if err := s3utils.CheckValidObjectName(dstObject); err != nil {
		return UploadedObjectInfo{}, asArgumentError(err)
	}

	for _, src := range sources {
		if err := c.statObjectHead(ctx, src); err != nil {
			return UploadedObjectInfo{}, err
		}
		if src.End < 0 && src.Start == 0 {
			src.End = src.resolvedSize - 1
		}
	}

	fragments, err := planCompose(sources)
	if err != nil {
		return UploadedObjectInfo{}, err
	}

	if len(fragments) == 1 {
		f := fragments[0]
		return c.copyObjectFastPath(ctx, dstBucket, dstObject, sources[f.srcIndex], f.start, f.end, opts)
	}

	return c.composeMultipart(ctx, dstBucket, dstObject, sources, fragments, opts)
}

// copyObjectFastPath issues one PUT with x-amz-copy-source[-range]:
// spec.md §4.4's fast path for an aggregate part count of 1.
func (c *Client) copyObjectFastPath(ctx context.Context, dstBucket, dstObject string, src *ComposeSource, start, end int64, opts PutObjectOptions) (UploadedObjectInfo, error) {
	copySource, rangeHeader := copySourceHeader(src, start, end)
	headers := copySourcePreconditionHeaders(src)
	headers.Set("X-Amz-Copy-Source", copySource)
	if start != 0 || end != src.resolvedSize-1 {
		headers.Set("X-Amz-Copy-Source-Range", rangeHeader)
	}
	for k, v := range putObjectHeaders(opts) {
		headers[k] = v
	}

	resp, err := c.executeMethod(ctx, http.MethodPut, requestMetadata{
		bucketName:       dstBucket,
		objectName:       dstObject,
		customHeader:     headers,
		contentLength:    0,
		contentSHA256Hex: signerSHA256Hex(nil),
	})
	if err != nil {
		return UploadedObjectInfo{}, err
	}
	defer drainAndClose(resp.Body)

	var result copyObjectResult
	if err := xmlDecode(resp.Body, &result); err != nil {
		return UploadedObjectInfo{}, &Error{Kind: KindProtocol, Message: "malformed CopyObject response: " + err.Error()}
	}

	return UploadedObjectInfo{
		Bucket: dstBucket,
		Key:    dstObject,
		ETag:   trimETag(result.ETag),
		Size:   end - start + 1,
	}, nil
}

// composeMultipart drives the general path: initiate on the destination,
// issue one copy-part PUT per fragment, complete (spec.md §4.4).
func (c *Client) composeMultipart(ctx context.Context, dstBucket, dstObject string, sources []*ComposeSource, fragments []composeFragment, opts PutObjectOptions) (UploadedObjectInfo, error) {
	uploadID, err := c.initiateMultipartUpload(ctx, dstBucket, dstObject, opts)
	if err != nil {
		return UploadedObjectInfo{}, err
	}

	parts := make([]Part, 0, len(fragments))
	for i, frag := range fragments {
		src := sources[frag.srcIndex]
		copySource, rangeHeader := copySourceHeader(src, frag.start, frag.end)
		headers := copySourcePreconditionHeaders(src)
		headers.Set("X-Amz-Copy-Source", copySource)
		headers.Set("X-Amz-Copy-Source-Range", rangeHeader)
		for k, v := range opts.SSE.Headers() {
			headers.Set(k, v)
		}

		partNumber := i + 1
		resp, err := c.executeMethod(ctx, http.MethodPut, requestMetadata{
			bucketName:   dstBucket,
			objectName:   dstObject,
			queryValues:  buildQuery("partNumber", fmt.Sprintf("%d", partNumber), "uploadId", uploadID),
			customHeader: headers,
		})
		if err != nil {
			c.abortMultipartUpload(ctx, dstBucket, dstObject, uploadID)
			return UploadedObjectInfo{}, err
		}

		var result copyObjectResult
		decodeErr := xmlDecode(resp.Body, &result)
		drainAndClose(resp.Body)
		if decodeErr != nil {
			c.abortMultipartUpload(ctx, dstBucket, dstObject, uploadID)
			return UploadedObjectInfo{}, &Error{Kind: KindProtocol, Message: "malformed UploadPartCopy response: " + decodeErr.Error()}
		}

		parts = append(parts, Part{
			PartNumber:   partNumber,
			ETag:         trimETag(result.ETag),
			Size:         frag.end - frag.start + 1,
			LastModified: time.Time{},
		})
	}

	result, err := c.completeMultipartUpload(ctx, dstBucket, dstObject, uploadID, parts)
	if err != nil {
		c.abortMultipartUpload(ctx, dstBucket, dstObject, uploadID)
		return UploadedObjectInfo{}, err
	}
	return result, nil
}
