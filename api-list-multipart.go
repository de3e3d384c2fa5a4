package s3core

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

type listMultipartUploadsResult struct {
	XMLName            xml.Name `xml:"ListMultipartUploadsResult"`
	IsTruncated        bool     `xml:"IsTruncated"`
	NextKeyMarker      string   `xml:"NextKeyMarker"`
	NextUploadIDMarker string   `xml:"NextUploadIdMarker"`
	Uploads            []struct {
		Key          string    `xml:"Key"`
		UploadID     string    `xml:"UploadId"`
		Initiated    time.Time `xml:"Initiated"`
		StorageClass string    `xml:"StorageClass"`
	} `xml:"Upload"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

type listPartsResult struct {
	XMLName     xml.Name `xml:"ListPartsResult"`
	IsTruncated bool     `xml:"IsTruncated"`
	NextPartNumberMarker int `xml:"NextPartNumberMarker"`
	Part        []struct {
		PartNumber   int       `xml:"PartNumber"`
		ETag         string    `xml:"ETag"`
		Size         int64     `xml:"Size"`
		LastModified time.Time `xml:"LastModified"`
	} `xml:"Part"`
}

// ListMultipartUploads returns a restartable lazy sequence of in-progress
// uploads on bucketName (spec.md §4.5). When opts.WithAggregatedPartSize is
// set, each UploadInfo's AggregatedPartSize is filled in by summing a
// ListParts pass over that upload before it is yielded.
func (c *Client) ListMultipartUploads(ctx context.Context, bucketName string, opts ListMultipartUploadsOptions) func() (UploadInfo, bool) {
	var (
		buffer       []UploadInfo
		keyMarker    string
		uploadMarker string
		done         bool
		fatal        error
		fetched      bool
	)

	fetch := func() {
		if done {
			return
		}
		if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
			fatal, done = asArgumentError(err), true
			return
		}

		query := buildQuery("uploads", "")
		if opts.Prefix != "" {
			query.Set("prefix", opts.Prefix)
		}
		if !opts.Recursive {
			query.Set("delimiter", "/")
		}
		if keyMarker != "" {
			query.Set("key-marker", keyMarker)
		}
		if uploadMarker != "" {
			query.Set("upload-id-marker", uploadMarker)
		}

		resp, err := c.executeMethod(ctx, http.MethodGet, requestMetadata{
			bucketName:  bucketName,
			queryValues: query,
		})
		if err != nil {
			fatal, done = err, true
			return
		}
		defer drainAndClose(resp.Body)

		var result listMultipartUploadsResult
		if err := xmlDecode(resp.Body, &result); err != nil {
			fatal, done = &Error{Kind: KindProtocol, Message: "malformed ListMultipartUploads response: " + err.Error()}, true
			return
		}

		for _, u := range result.Uploads {
			info := UploadInfo{Key: u.Key, UploadID: u.UploadID, Initiated: u.Initiated, StorageClass: u.StorageClass}
			if opts.WithAggregatedPartSize {
				total, err := c.sumPartSizes(ctx, bucketName, u.Key, u.UploadID)
				if err != nil {
					info.Err = err
				} else {
					info.AggregatedPartSize = total
				}
			}
			buffer = append(buffer, info)
		}
		for _, p := range result.CommonPrefixes {
			buffer = append(buffer, UploadInfo{Key: p.Prefix})
		}

		if result.IsTruncated {
			keyMarker = result.NextKeyMarker
			uploadMarker = result.NextUploadIDMarker
		} else {
			done = true
		}
	}

	return func() (UploadInfo, bool) {
		for len(buffer) == 0 && fatal == nil && !(done && fetched) {
			fetched = true
			fetch()
			if len(buffer) == 0 && done {
				break
			}
		}
		if fatal != nil {
			err := fatal
			fatal = nil
			done = true
			return UploadInfo{Err: err}, true
		}
		if len(buffer) == 0 {
			return UploadInfo{}, false
		}
		item := buffer[0]
		buffer = buffer[1:]
		return item, true
	}
}

// sumPartSizes drains a full ListParts pass to total an upload's bytes so
// far (spec.md §4.5's optional aggregated-part-size feature).
func (c *Client) sumPartSizes(ctx context.Context, bucketName, objectName, uploadID string) (int64, error) {
	next := c.ListParts(ctx, bucketName, objectName, uploadID)
	var total int64
	for {
		part, ok := next()
		if !ok {
			return total, nil
		}
		if part.Err != nil {
			return total, part.Err
		}
		total += part.Size
	}
}

// ListParts returns a restartable lazy sequence of the parts already
// uploaded for uploadID (spec.md §4.5).
func (c *Client) ListParts(ctx context.Context, bucketName, objectName, uploadID string) func() (Part, bool) {
	var (
		buffer      []Part
		partMarker  int
		done        bool
		fatal       error
		fetched     bool
	)

	fetch := func() {
		if done {
			return
		}
		if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
			fatal, done = asArgumentError(err), true
			return
		}
		if err := s3utils.CheckValidObjectName(objectName); err != nil {
			fatal, done = asArgumentError(err), true
			return
		}

		query := buildQuery("uploadId", uploadID)
		if partMarker > 0 {
			query.Set("part-number-marker", itoa(int64(partMarker)))
		}

		resp, err := c.executeMethod(ctx, http.MethodGet, requestMetadata{
			bucketName:  bucketName,
			objectName:  objectName,
			queryValues: query,
		})
		if err != nil {
			fatal, done = err, true
			return
		}
		defer drainAndClose(resp.Body)

		var result listPartsResult
		if err := xmlDecode(resp.Body, &result); err != nil {
			fatal, done = &Error{Kind: KindProtocol, Message: "malformed ListParts response: " + err.Error()}, true
			return
		}

		for _, p := range result.Part {
			buffer = append(buffer, Part{
				PartNumber: p.PartNumber, ETag: trimETag(p.ETag),
				Size: p.Size, LastModified: p.LastModified,
			})
		}

		if result.IsTruncated {
			partMarker = result.NextPartNumberMarker
		} else {
			done = true
		}
	}

	return func() (Part, bool) {
		for len(buffer) == 0 && fatal == nil && !(done && fetched) {
			fetched = true
			fetch()
			if len(buffer) == 0 && done {
				break
			}
		}
		if fatal != nil {
			err := fatal
			fatal = nil
			done = true
			return Part{Err: err}, true
		}
		if len(buffer) == 0 {
			return Part{}, false
		}
		item := buffer[0]
		buffer = buffer[1:]
		return item, true
	}
}
