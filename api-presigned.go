package s3core

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"time"

	"github.com/cloudkit-io/s3core/internal/s3utils"
	"github.com/cloudkit-io/s3core/internal/signer"
)

// Presign builds a canonical unsigned request for method against
// bucket/object, embeds X-Amz-Expires and the credential scope in its
// query, signs it, and returns the URL an unsigned client can execute
// (spec.md §4.6). expirySeconds must be between 1 and 604800 inclusive.
func (c *Client) Presign(ctx context.Context, method, bucketName, objectName string, expirySeconds int64, queryOverrides url.Values) (*url.URL, error) {
	if expirySeconds < 1 || expirySeconds > 604800 {
		return nil, argumentError("presign expiry must be between 1 and 604800 seconds")
	}
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return nil, asArgumentError(err)
	}
	if objectName != "" {
		if err := s3utils.CheckValidObjectName(objectName); err != nil {
			return nil, asArgumentError(err)
		}
	}

	query := url.Values{}
	for k, vs := range queryOverrides {
		query[k] = vs
	}

	req, err := c.newRequest(ctx, method, requestMetadata{
		bucketName:  bucketName,
		objectName:  objectName,
		queryValues: query,
		presignURL:  true,
		expires:     expirySeconds,
	})
	if err != nil {
		return nil, err
	}
	return req.URL, nil
}

// PostPolicy is the mutable condition set behind a presigned POST form
// (spec.md §4.6): SetBucket, SetKey, SetKeyStartsWith, SetContentType and
// SetUserMetadata each record a literal form field and append the matching
// "eq"/"starts-with" condition; SetContentLengthRange only appends a
// range condition, and SetExpires only sets the policy's expiration.
type PostPolicy struct {
	expiration time.Time
	conditions []interface{}
	formData   map[string]string
}

// NewPostPolicy returns an empty policy; the caller must still set a
// bucket, key, and expiration before presigning.
func NewPostPolicy() *PostPolicy {
	return &PostPolicy{formData: map[string]string{}}
}

func (p *PostPolicy) SetExpires(t time.Time) { p.expiration = t }

func (p *PostPolicy) SetBucket(bucket string) {
	p.conditions = append(p.conditions, []string{"eq", "$bucket", bucket})
	p.formData["bucket"] = bucket
}

func (p *PostPolicy) SetKey(key string) {
	p.conditions = append(p.conditions, []string{"eq", "$key", key})
	p.formData["key"] = key
}

// SetKeyStartsWith allows any key under prefix, for browser uploads that
// fill in the leaf name client-side.
func (p *PostPolicy) SetKeyStartsWith(prefix string) {
	p.conditions = append(p.conditions, []string{"starts-with", "$key", prefix})
	p.formData["key"] = prefix
}

func (p *PostPolicy) SetContentType(contentType string) {
	p.conditions = append(p.conditions, []string{"eq", "$Content-Type", contentType})
	p.formData["Content-Type"] = contentType
}

// SetContentLengthRange bounds the uploaded object's size in bytes.
func (p *PostPolicy) SetContentLengthRange(min, max int64) {
	p.conditions = append(p.conditions, []interface{}{"content-length-range", min, max})
}

func (p *PostPolicy) SetUserMetadata(key, value string) {
	field := "x-amz-meta-" + key
	p.conditions = append(p.conditions, []string{"eq", "$" + field, value})
	p.formData[field] = value
}

type postPolicyDocument struct {
	Expiration string        `json:"expiration"`
	Conditions []interface{} `json:"conditions"`
}

// PresignPostPolicy renders policy as a JSON document, base64-encodes it,
// signs it, and returns the full set of form fields (including the
// policy and signature themselves) a browser-style POST upload must
// submit alongside the file (spec.md §4.6).
func (c *Client) PresignPostPolicy(ctx context.Context, policy *PostPolicy) (postURL string, formData map[string]string, err error) {
	if policy.expiration.IsZero() {
		return "", nil, argumentError("post policy requires an expiration")
	}
	bucketName := policy.formData["bucket"]
	if bucketName == "" {
		return "", nil, argumentError("post policy requires a bucket")
	}

	location, err := c.getBucketLocation(ctx, bucketName)
	if err != nil {
		return "", nil, err
	}
	creds, err := c.creds.Get()
	if err != nil {
		return "", nil, err
	}
	if creds.IsAnonymous() {
		return "", nil, argumentError("post policy cannot be generated with anonymous credentials")
	}

	reqTime := time.Now().UTC()
	conditions := append([]interface{}{}, policy.conditions...)
	conditions = append(conditions,
		[]string{"eq", "$x-amz-date", signer.ISO8601(reqTime)},
		[]string{"eq", "$x-amz-algorithm", "AWS4-HMAC-SHA256"},
		[]string{"eq", "$x-amz-credential", signer.Credential(creds.AccessKeyID, location, reqTime)},
	)
	if creds.SessionToken != "" {
		conditions = append(conditions, []string{"eq", "$x-amz-security-token", creds.SessionToken})
	}

	doc := postPolicyDocument{
		Expiration: policy.expiration.UTC().Format(time.RFC3339),
		Conditions: conditions,
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", nil, &Error{Kind: KindInternal, Message: err.Error(), Err: err}
	}
	policyBase64 := base64.StdEncoding.EncodeToString(encoded)

	fields := make(map[string]string, len(policy.formData)+5)
	for k, v := range policy.formData {
		fields[k] = v
	}
	fields["policy"] = policyBase64
	fields["x-amz-algorithm"] = "AWS4-HMAC-SHA256"
	fields["x-amz-credential"] = signer.Credential(creds.AccessKeyID, location, reqTime)
	fields["x-amz-date"] = signer.ISO8601(reqTime)
	fields["x-amz-signature"] = signer.PostPresignSignatureV4(policyBase64, creds.SecretAccessKey, location, reqTime)
	if creds.SessionToken != "" {
		fields["x-amz-security-token"] = creds.SessionToken
	}

	isVirtualHost := c.isVirtualHostStyleRequest(bucketName)
	targetURL, err := c.makeTargetURL(bucketName, "", isVirtualHost, nil)
	if err != nil {
		return "", nil, err
	}
	return targetURL.String(), fields, nil
}
