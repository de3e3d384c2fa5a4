package s3core

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

type listBucketResultV2 struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	IsTruncated           bool     `xml:"IsTruncated"`
	NextContinuationToken string   `xml:"NextContinuationToken"`
	Contents              []struct {
		Key          string    `xml:"Key"`
		LastModified time.Time `xml:"LastModified"`
		ETag         string    `xml:"ETag"`
		Size         int64     `xml:"Size"`
		StorageClass string    `xml:"StorageClass"`
		Owner        struct {
			ID          string `xml:"ID"`
			DisplayName string `xml:"DisplayName"`
		} `xml:"Owner"`
	} `xml:"Contents"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

type listBucketResultV1 struct {
	XMLName        xml.Name `xml:"ListBucketResult"`
	IsTruncated    bool     `xml:"IsTruncated"`
	NextMarker     string   `xml:"NextMarker"`
	Contents       []struct {
		Key          string    `xml:"Key"`
		LastModified time.Time `xml:"LastModified"`
		ETag         string    `xml:"ETag"`
		Size         int64     `xml:"Size"`
		StorageClass string    `xml:"StorageClass"`
	} `xml:"Contents"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

// ListObjects returns a restartable lazy sequence of ObjectInfo for
// bucketName (spec.md §4.5): the returned function yields one element per
// call and a false second return once the sequence is exhausted. A
// terminal error is delivered as a single ObjectInfo.Err element before
// exhaustion, per the source's "manual iterator" re-architecting note.
func (c *Client) ListObjects(ctx context.Context, bucketName string, opts ListObjectsOptions) func() (ObjectInfo, bool) {
	if opts.UseV1 {
		return c.listObjectsV1(ctx, bucketName, opts)
	}
	return c.listObjectsV2(ctx, bucketName, opts)
}

func (c *Client) listObjectsV2(ctx context.Context, bucketName string, opts ListObjectsOptions) func() (ObjectInfo, bool) {
	var (
		buffer    []ObjectInfo
		token     string
		done      bool
		fatal     error
		fetched   bool
	)

	fetch := func() {
		if done {
			return
		}
		if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
			fatal, done = asArgumentError(err), true
			return
		}

		query := buildQuery("list-type", "2")
		if opts.Prefix != "" {
			query.Set("prefix", opts.Prefix)
		}
		if !opts.Recursive {
			query.Set("delimiter", "/")
		}
		if opts.MaxKeys > 0 {
			query.Set("max-keys", itoa(int64(opts.MaxKeys)))
		}
		if token != "" {
			query.Set("continuation-token", token)
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

		var result listBucketResultV2
		if err := xmlDecode(resp.Body, &result); err != nil {
			fatal, done = &Error{Kind: KindProtocol, Message: "malformed ListObjectsV2 response: " + err.Error()}, true
			return
		}

		for _, o := range result.Contents {
			buffer = append(buffer, ObjectInfo{
				Key: o.Key, LastModified: o.LastModified, ETag: trimETag(o.ETag),
				Size: o.Size, StorageClass: o.StorageClass,
				Owner: Owner{ID: o.Owner.ID, DisplayName: o.Owner.DisplayName},
			})
		}
		for _, p := range result.CommonPrefixes {
			buffer = append(buffer, ObjectInfo{Key: p.Prefix, IsDir: true})
		}

		if result.IsTruncated {
			token = result.NextContinuationToken
		} else {
			done = true
		}
	}

	return func() (ObjectInfo, bool) {
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
			return ObjectInfo{Err: err}, true
		}
		if len(buffer) == 0 {
			return ObjectInfo{}, false
		}
		item := buffer[0]
		buffer = buffer[1:]
		return item, true
	}
}

func (c *Client) listObjectsV1(ctx context.Context, bucketName string, opts ListObjectsOptions) func() (ObjectInfo, bool) {
	var (
		buffer  []ObjectInfo
		marker  string
		done    bool
		fatal   error
		fetched bool
	)

	fetch := func() {
		if done {
			return
		}
		if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
			fatal, done = asArgumentError(err), true
			return
		}

		query := buildQuery()
		if opts.Prefix != "" {
			query.Set("prefix", opts.Prefix)
		}
		if !opts.Recursive {
			query.Set("delimiter", "/")
		}
		if opts.MaxKeys > 0 {
			query.Set("max-keys", itoa(int64(opts.MaxKeys)))
		}
		if marker != "" {
			query.Set("marker", marker)
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

		var result listBucketResultV1
		if err := xmlDecode(resp.Body, &result); err != nil {
			fatal, done = &Error{Kind: KindProtocol, Message: "malformed ListObjects response: " + err.Error()}, true
			return
		}

		lastKey := ""
		for _, o := range result.Contents {
			buffer = append(buffer, ObjectInfo{
				Key: o.Key, LastModified: o.LastModified, ETag: trimETag(o.ETag),
				Size: o.Size, StorageClass: o.StorageClass,
			})
			lastKey = o.Key
		}
		for _, p := range result.CommonPrefixes {
			buffer = append(buffer, ObjectInfo{Key: p.Prefix, IsDir: true})
		}

		if result.IsTruncated {
			if result.NextMarker != "" {
				marker = result.NextMarker
			} else {
				marker = lastKey
			}
		} else {
			done = true
		}
	}

	return func() (ObjectInfo, bool) {
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
			return ObjectInfo{Err: err}, true
		}
		if len(buffer) == 0 {
			return ObjectInfo{}, false
		}
		item := buffer[0]
		buffer = buffer[1:]
		return item, true
	}
}
