package s3core

import (
	"bytes"
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

// createBucketConfiguration is the request body MakeBucket sends when the
// target region is not us-east-1 (spec.md §4.2): us-east-1 never wants a
// LocationConstraint element at all.
type createBucketConfiguration struct {
	XMLName  xml.Name `xml:"CreateBucketConfiguration"`
	Location string   `xml:"LocationConstraint"`
}

// listAllMyBucketsResult is ListBuckets' wire response.
type listAllMyBucketsResult struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	Owner   struct {
		ID          string `xml:"ID"`
		DisplayName string `xml:"DisplayName"`
	} `xml:"Owner"`
	Buckets struct {
		Bucket []struct {
			Name         string    `xml:"Name"`
			CreationDate time.Time `xml:"CreationDate"`
		} `xml:"Bucket"`
	} `xml:"Buckets"`
}

// MakeBucket creates bucketName in region, defaulting to the client's
// pinned region (or "us-east-1") when region is empty (spec.md §4.2).
func (c *Client) MakeBucket(ctx context.Context, bucketName, region string) error {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return asArgumentError(err)
	}
	if region == "" {
		region = c.region
	}
	if region == "" {
		region = defaultRegion
	}

	var body []byte
	if region != defaultRegion {
		cfg := createBucketConfiguration{Location: region}
		encoded, err := xml.Marshal(cfg)
		if err != nil {
			return &Error{Kind: KindInternal, Message: err.Error(), Err: err}
		}
		body = encoded
	}

	headers := make(http.Header)
	resp, err := c.executeMethod(ctx, http.MethodPut, requestMetadata{
		bucketName:       bucketName,
		bucketLocation:   region,
		contentBody:      bytes.NewReader(body),
		contentLength:    int64(len(body)),
		contentSHA256Hex: signerSHA256Hex(body),
		customHeader:     headers,
	})
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	c.regionMu.Set(bucketName, region)
	sharedRegionCache.Set(bucketName, region)
	return nil
}

// BucketExists reports whether bucketName exists and is accessible,
// translating a NotFound Error into (false, nil) rather than propagating
// it (spec.md §4.2).
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return false, asArgumentError(err)
	}
	resp, err := c.executeMethod(ctx, http.MethodHead, requestMetadata{bucketName: bucketName})
	if err != nil {
		if kind, ok := KindOf(err); ok && kind == KindNotFound {
			return false, nil
		}
		return false, err
	}
	defer drainAndClose(resp.Body)
	return true, nil
}

// RemoveBucket deletes an empty bucket.
func (c *Client) RemoveBucket(ctx context.Context, bucketName string) error {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return asArgumentError(err)
	}
	resp, err := c.executeMethod(ctx, http.MethodDelete, requestMetadata{bucketName: bucketName})
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	c.regionMu.Delete(bucketName)
	sharedRegionCache.Delete(bucketName)
	return nil
}

// ListBuckets lists every bucket owned by the signed-in identity.
func (c *Client) ListBuckets(ctx context.Context) ([]BucketInfo, error) {
	resp, err := c.executeMethod(ctx, http.MethodGet, requestMetadata{})
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)

	var result listAllMyBucketsResult
	if err := xmlDecode(resp.Body, &result); err != nil {
		return nil, &Error{Kind: KindProtocol, Message: "malformed ListBuckets response: " + err.Error()}
	}

	buckets := make([]BucketInfo, 0, len(result.Buckets.Bucket))
	for _, b := range result.Buckets.Bucket {
		buckets = append(buckets, BucketInfo{Name: b.Name, CreationDate: b.CreationDate})
	}
	return buckets, nil
}

// GetBucketLocation returns bucketName's region, resolving and caching it
// the same way the internal request pipeline does (spec.md §4.2).
func (c *Client) GetBucketLocation(ctx context.Context, bucketName string) (string, error) {
	return c.getBucketLocation(ctx, bucketName)
}
