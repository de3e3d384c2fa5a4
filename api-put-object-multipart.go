package s3core

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

type initiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	UploadID string   `xml:"UploadId"`
}

type completeMultipartUploadRequest struct {
	XMLName xml.Name             `xml:"CompleteMultipartUpload"`
	Parts   []completePartMember `xml:"Part"`
}

type completePartMember struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

type completeMultipartUploadResult struct {
	XMLName xml.Name `xml:"CompleteMultipartUploadResult"`
	ETag    string   `xml:"ETag"`
}

// initiateMultipartUpload issues POST ?uploads, returning the new upload
// id (spec.md §4.3 state machine's INIT→OPEN transition).
func (c *Client) initiateMultipartUpload(ctx context.Context, bucketName, objectName string, opts PutObjectOptions) (string, error) {
	headers := putObjectHeaders(opts)
	resp, err := c.executeMethod(ctx, http.MethodPost, requestMetadata{
		bucketName:       bucketName,
		objectName:       objectName,
		queryValues:      buildQuery("uploads", ""),
		customHeader:     headers,
		contentSHA256Hex: signerSHA256Hex(nil),
	})
	if err != nil {
		return "", err
	}
	defer drainAndClose(resp.Body)

	var result initiateMultipartUploadResult
	if err := xmlDecode(resp.Body, &result); err != nil {
		return "", &Error{Kind: KindProtocol, Message: "malformed InitiateMultipartUpload response: " + err.Error()}
	}
	return result.UploadID, nil
}

// uploadPart issues PUT ?partNumber=N&uploadId=U for one part, returning
// the ETag the service assigned it.
func (c *Client) uploadPart(ctx context.Context, bucketName, objectName, uploadID string, partNumber int, body []byte, sse SSE) (Part, error) {
	headers := make(http.Header)
	for k, v := range sse.Headers() {
		if k == "X-Amz-Server-Side-Encryption" {
			continue // only SSE-C headers are valid on UploadPart
		}
		headers.Set(k, v)
	}

	query := buildQuery("partNumber", fmt.Sprintf("%d", partNumber), "uploadId", uploadID)
	resp, err := c.executeMethod(ctx, http.MethodPut, requestMetadata{
		bucketName:       bucketName,
		objectName:       objectName,
		queryValues:      query,
		customHeader:     headers,
		contentBody:      bytes.NewReader(body),
		contentLength:    int64(len(body)),
		contentSHA256Hex: signerSHA256Hex(body),
	})
	if err != nil {
		return Part{}, err
	}
	defer drainAndClose(resp.Body)

	return Part{
		PartNumber: partNumber,
		ETag:       trimETag(resp.Header.Get("ETag")),
		Size:       int64(len(body)),
	}, nil
}

// completeMultipartUpload issues POST ?uploadId=U with the ascending-order
// part list (spec.md §4.3: "Complete call receives parts in ascending
// partNumber order" regardless of upload order).
func (c *Client) completeMultipartUpload(ctx context.Context, bucketName, objectName, uploadID string, parts []Part) (UploadedObjectInfo, error) {
	sort.Sort(partsByNumber(parts))

	body := completeMultipartUploadRequest{Parts: make([]completePartMember, len(parts))}
	var totalSize int64
	for i, p := range parts {
		body.Parts[i] = completePartMember{PartNumber: p.PartNumber, ETag: `"` + p.ETag + `"`}
		totalSize += p.Size
	}

	encoded, err := xml.Marshal(body)
	if err != nil {
		return UploadedObjectInfo{}, &Error{Kind: KindInternal, Message: err.Error(), Err: err}
	}

	resp, err := c.executeMethod(ctx, http.MethodPost, requestMetadata{
		bucketName:       bucketName,
		objectName:       objectName,
		queryValues:      buildQuery("uploadId", uploadID),
		contentBody:      bytes.NewReader(encoded),
		contentLength:    int64(len(encoded)),
		contentSHA256Hex: signerSHA256Hex(encoded),
	})
	if err != nil {
		return UploadedObjectInfo{}, err
	}
	defer drainAndClose(resp.Body)

	var result completeMultipartUploadResult
	if err := xmlDecode(resp.Body, &result); err != nil {
		return UploadedObjectInfo{}, &Error{Kind: KindProtocol, Message: "malformed CompleteMultipartUpload response: " + err.Error()}
	}

	return UploadedObjectInfo{
		Bucket: bucketName,
		Key:    objectName,
		ETag:   trimETag(result.ETag),
		Size:   totalSize,
	}, nil
}

// abortMultipartUpload issues DELETE ?uploadId=U; best-effort per spec.md
// §4.3's failure-handling rule ("abort is best-effort").
func (c *Client) abortMultipartUpload(ctx context.Context, bucketName, objectName, uploadID string) error {
	resp, err := c.executeMethod(ctx, http.MethodDelete, requestMetadata{
		bucketName:  bucketName,
		objectName:  objectName,
		queryValues: buildQuery("uploadId", uploadID),
	})
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)
	return nil
}

// putObjectMultipart drives the full INIT/OPEN/DONE state machine of
// spec.md §4.3, for both known-size objects (calculateMultipartSize) and
// unknown-size streams (probe partSize+1 bytes ahead of each part).
func (c *Client) putObjectMultipart(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts PutObjectOptions) (UploadedObjectInfo, error) {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return UploadedObjectInfo{}, asArgumentError(err)
	}

	partSize := int64(opts.PartSize)
	if partSize == 0 {
		if objectSize >= 0 {
			var err error
			partSize, _, _, err = calculateMultipartSize(objectSize)
			if err != nil {
				return UploadedObjectInfo{}, err
			}
		} else {
			partSize = optimalPartSize()
		}
	}

	uploadID, err := c.initiateMultipartUpload(ctx, bucketName, objectName, opts)
	if err != nil {
		return UploadedObjectInfo{}, err
	}

	parts, abortErr := c.uploadParts(ctx, bucketName, objectName, uploadID, reader, partSize, opts)
	if abortErr != nil {
		if abortErr.singlePartBody != nil {
			// The stream's first probe was also its last: spec.md §4.3
			// says to revert to a single PUT instead of completing a
			// one-part multipart upload.
			_ = c.abortMultipartUpload(ctx, bucketName, objectName, uploadID)
			return c.putObjectSingle(ctx, bucketName, objectName, abortErr.singlePartBody, opts)
		}
		c.abortMultipartUpload(ctx, bucketName, objectName, uploadID)
		return UploadedObjectInfo{}, abortErr.err
	}

	result, err := c.completeMultipartUpload(ctx, bucketName, objectName, uploadID, parts)
	if err != nil {
		c.abortMultipartUpload(ctx, bucketName, objectName, uploadID)
		return UploadedObjectInfo{}, err
	}
	return result, nil
}

// multipartFailure distinguishes the "revert to single PUT" case from a
// genuine failure requiring abort.
type multipartFailure struct {
	err            error
	singlePartBody []byte
}

// uploadParts reads reader in partSize-sized chunks, uploading each as a
// part, optionally in parallel across opts.NumThreads workers. It returns
// the uploaded parts in completion order (completeMultipartUpload sorts
// them); on failure it returns a *multipartFailure wrapping the original
// error, or (for the unknown-size single-part revert case) the lone
// buffered chunk.
func (c *Client) uploadParts(ctx context.Context, bucketName, objectName, uploadID string, reader io.Reader, partSize int64, opts PutObjectOptions) ([]Part, *multipartFailure) {
	threads := int(opts.NumThreads)
	if threads < 1 {
		threads = 1
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		sem      = make(chan struct{}, threads)
		parts    []Part
		firstErr error
	)

	// carry holds one byte already pulled from reader while probing
	// whether the previous part was the last one (spec.md §4.3: "probe
	// the stream for partSize+1 bytes"); it must be prepended to the
	// next part's body rather than read a second time.
	var carry []byte
	partNumber := 0
	for {
		mu.Lock()
		stop := firstErr != nil
		mu.Unlock()
		if stop {
			break
		}

		body := make([]byte, partSize)
		filled := copy(body, carry)
		carry = nil

		n, _ := io.ReadFull(reader, body[filled:])
		filled += n
		body = body[:filled]

		if filled == 0 {
			break
		}
		partNumber++

		isLast := int64(filled) < partSize
		if !isLast {
			probe := make([]byte, 1)
			pn, _ := io.ReadFull(reader, probe)
			if pn == 0 {
				isLast = true
			} else {
				carry = probe[:pn]
			}
		}

		if partNumber == 1 && isLast {
			// A single chunk that is also the last one: caller decides
			// (known-size vs unknown-size revert) what to do with it.
			return nil, &multipartFailure{singlePartBody: body}
		}

		wg.Add(1)
		sem <- struct{}{}
		pn, b := partNumber, body
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			part, err := c.uploadPart(ctx, bucketName, objectName, uploadID, pn, b, opts.SSE)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			parts = append(parts, part)
		}()

		if isLast {
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, &multipartFailure{err: firstErr}
	}
	return parts, nil
}
