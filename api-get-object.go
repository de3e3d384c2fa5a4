package s3core

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/minio/highwayhash"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

// highwayHashKey is a fixed, non-secret key: the resumable-download tag
// only records which (etag, size) a sidecar temp file was written for,
// and does not need to resist a motivated adversary.
var highwayHashKey = make([]byte, 32)

// GetObject issues a GET for bucketName/objectName, applying any headers
// in opts (Range, SSE-C) and transparently gunzip-ing the body unless the
// client was built with DisableTransparentDecompression or the payload
// mode forced it off (spec.md §4.1 mode 3).
func (c *Client) GetObject(ctx context.Context, bucketName, objectName string, opts GetObjectOptions) (io.ReadCloser, ObjectInfo, error) {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return nil, ObjectInfo{}, asArgumentError(err)
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return nil, ObjectInfo{}, asArgumentError(err)
	}

	headers := make(http.Header)
	for k, v := range opts.Headers {
		headers.Set(k, v)
	}
	for k, v := range opts.SSEC.Headers() {
		headers.Set(k, v)
	}

	resp, err := c.executeMethod(ctx, http.MethodGet, requestMetadata{
		bucketName:   bucketName,
		objectName:   objectName,
		customHeader: headers,
	})
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	info := ObjectInfo{
		Key:          objectName,
		ETag:         trimETag(resp.Header.Get("ETag")),
		Size:         parseContentLength(resp),
		ContentType:  resp.Header.Get("Content-Type"),
		StorageClass: resp.Header.Get("X-Amz-Storage-Class"),
	}

	body := resp.Body
	decompress := !c.disableTransparentDecompression
	if creds, err := c.creds.Get(); err == nil && !creds.IsAnonymous() && !c.signerV2 && !c.secure {
		// Credentialed V4 GETs over plain HTTP use the signed-in-full
		// payload mode (applyPayloadMode), which never decompresses.
		decompress = false
	}
	if decompress && resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(body)
		if err != nil {
			drainAndClose(body)
			return nil, ObjectInfo{}, &Error{Kind: KindProtocol, Message: "malformed gzip response body: " + err.Error()}
		}
		body = &gzipReadCloser{Reader: gz, underlying: resp.Body}
	}
	return body, info, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	underlying io.ReadCloser
}

func (g *gzipReadCloser) Close() error {
	g.Reader.Close()
	return g.underlying.Close()
}

// FGetObject downloads bucketName/objectName to destPath, resuming from a
// pre-existing `<destPath>.<etag>.part.minio` sidecar if present and
// atomically renaming into place on success (spec.md §5).
func (c *Client) FGetObject(ctx context.Context, bucketName, objectName, destPath string, opts GetObjectOptions) error {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return asArgumentError(err)
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return asArgumentError(err)
	}

	headHeaders := make(http.Header)
	for k, v := range opts.SSEC.Headers() {
		headHeaders.Set(k, v)
	}
	headResp, err := c.executeMethod(ctx, http.MethodHead, requestMetadata{
		bucketName:   bucketName,
		objectName:   objectName,
		customHeader: headHeaders,
	})
	if err != nil {
		return err
	}
	etag := trimETag(headResp.Header.Get("ETag"))
	totalSize := parseContentLength(headResp)
	drainAndClose(headResp.Body)

	if st, err := os.Stat(destPath); err == nil {
		if st.Size() == totalSize {
			return nil
		}
		if st.Size() > totalSize {
			return argumentError(fmt.Sprintf("existing destination file %s (%d bytes) is larger than the remote object (%d bytes)", destPath, st.Size(), totalSize))
		}
	}

	sidecar := destPath + "." + etag + resumableDownloadSuffix
	tagPath := sidecar + ".tag"
	wantTag := fmt.Sprintf("%x", sidecarIntegrityTag(etag, totalSize))

	var offset int64
	if st, err := os.Stat(sidecar); err == nil {
		offset = st.Size()
		haveTag, _ := os.ReadFile(tagPath)
		if offset > totalSize || string(haveTag) != wantTag {
			// Stale or foreign sidecar (different etag/size than this
			// download expects, or the tag file is missing): discard and
			// restart from zero rather than trust it.
			os.Remove(sidecar)
			offset = 0
		}
	}

	f, err := os.OpenFile(sidecar, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return transportError(err)
	}
	if err := os.WriteFile(tagPath, []byte(wantTag), 0o644); err != nil {
		f.Close()
		return transportError(err)
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			f.Close()
			return transportError(err)
		}
		opts.SetRange(offset, -1)
	}

	body, _, err := c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		f.Close()
		return err
	}
	defer body.Close()

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return transportError(err)
	}
	if err := f.Close(); err != nil {
		return transportError(err)
	}

	if err := os.Rename(sidecar, destPath); err != nil {
		return transportError(err)
	}
	os.Remove(tagPath)
	return nil
}

// sidecarIntegrityTag computes the 64-bit HighwayHash tag that marks a
// resumable-download sidecar as belonging to this (etag, size). It is
// derived from (etag, size) rather than file content, so it does not
// detect a truncated or corrupted sidecar — a cheap local-only nicety,
// not a cryptographic guarantee (spec.md §2 ambient stack).
func sidecarIntegrityTag(etag string, size int64) uint64 {
	h, _ := highwayhash.New64(highwayHashKey)
	h.Write([]byte(etag))
	h.Write([]byte{byte(size), byte(size >> 8), byte(size >> 16), byte(size >> 24),
		byte(size >> 32), byte(size >> 40), byte(size >> 48), byte(size >> 56)})
	return h.Sum64()
}
