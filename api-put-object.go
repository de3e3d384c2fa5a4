package s3core

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

// PutObject uploads reader as bucketName/objectName, dispatching to a
// single PUT or the multipart orchestrator per spec.md §4.1/§4.3: known
// sizes above the single-put threshold, and any stream of unknown size,
// go through putObjectMultipart unless the caller forced DisableMultipart.
func (c *Client) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts PutObjectOptions) (UploadedObjectInfo, error) {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return UploadedObjectInfo{}, asArgumentError(err)
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return UploadedObjectInfo{}, asArgumentError(err)
	}

	partSize := int64(opts.PartSize)
	if partSize == 0 {
		partSize = optimalPartSize()
	}

	singlePutThreshold := partSize
	if objectSize >= 0 && objectSize <= singlePutThreshold {
		opts.DisableMultipart = true
	}

	if opts.DisableMultipart {
		if objectSize < 0 {
			return UploadedObjectInfo{}, argumentError("DisableMultipart requires a known object size")
		}
		if objectSize > maxPartSize {
			return UploadedObjectInfo{}, argumentError("object size exceeds the maximum single PUT size of 5 GiB")
		}
		body, err := io.ReadAll(io.LimitReader(reader, objectSize))
		if err != nil {
			return UploadedObjectInfo{}, transportError(err)
		}
		return c.putObjectSingle(ctx, bucketName, objectName, body, opts)
	}

	return c.putObjectMultipart(ctx, bucketName, objectName, reader, objectSize, opts)
}

// putObjectSingle performs one signed PUT of a fully-buffered body.
func (c *Client) putObjectSingle(ctx context.Context, bucketName, objectName string, body []byte, opts PutObjectOptions) (UploadedObjectInfo, error) {
	headers := putObjectHeaders(opts)

	md5b64 := ""
	if opts.SendContentMD5 {
		md5b64 = md5Base64(body)
	}

	resp, err := c.executeMethod(ctx, http.MethodPut, requestMetadata{
		bucketName:       bucketName,
		objectName:       objectName,
		customHeader:     headers,
		contentBody:      bytes.NewReader(body),
		contentLength:    int64(len(body)),
		contentMD5Base64: md5b64,
		contentSHA256Hex: signerSHA256Hex(body),
	})
	if err != nil {
		return UploadedObjectInfo{}, err
	}
	defer drainAndClose(resp.Body)

	return UploadedObjectInfo{
		Bucket: bucketName,
		Key:    objectName,
		ETag:   trimETag(resp.Header.Get("ETag")),
		Size:   int64(len(body)),
	}, nil
}

func trimETag(etag string) string {
	if len(etag) >= 2 && etag[0] == '"' && etag[len(etag)-1] == '"' {
		return etag[1 : len(etag)-1]
	}
	return etag
}
