// Package signer implements AWS Signature V4 request signing, its
// streaming-chunked variant for unsigned-length uploads, presigned URLs,
// and POST policy signing, per spec.md §4.1.
package signer

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	authHeader        = "AWS4-HMAC-SHA256"
	iso8601DateFormat  = "20060102T150405Z"
	yyyymmdd           = "20060102"
	serviceS3          = "s3"
	terminator         = "aws4_request"
	unsignedPayload    = "UNSIGNED-PAYLOAD"
	emptySHA256Hex     = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	streamingPayloadHdr = "STREAMING-AWS4-HMAC-SHA256-PAYLOAD"
)

// ignoredHeaders are excluded from the canonical header set: they are
// either mutated in flight (User-Agent, Content-Length by some proxies)
// or are the field the signature itself lives in.
var ignoredHeaders = map[string]bool{
	"Authorization": true,
	"User-Agent":    true,
}

func sumHMAC(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sum256(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

func sum256Hex(data []byte) string {
	return hex.EncodeToString(sum256(data))
}

// getSigningKey derives the per-request signing key:
// HMAC(HMAC(HMAC(HMAC("AWS4"+secret, date), region), "s3"), "aws4_request").
func getSigningKey(secret, region string, t time.Time) []byte {
	date := sumHMAC([]byte("AWS4"+secret), []byte(t.Format(yyyymmdd)))
	regionBytes := sumHMAC(date, []byte(region))
	service := sumHMAC(regionBytes, []byte(serviceS3))
	return sumHMAC(service, []byte(terminator))
}

func getSignature(signingKey []byte, stringToSign string) string {
	return hex.EncodeToString(sumHMAC(signingKey, []byte(stringToSign)))
}

func getScope(region string, t time.Time) string {
	return strings.Join([]string{t.Format(yyyymmdd), region, serviceS3, terminator}, "/")
}

func getCredential(accessKeyID, region string, t time.Time) string {
	return accessKeyID + "/" + getScope(region, t)
}

// getCanonicalHeaders returns the sorted "name:value\n" block and the
// semicolon-joined signed-header list, both derived from the same walk so
// they can never disagree on which headers were included.
func getCanonicalHeaders(req *http.Request) (canonical, signedHeaders string) {
	vals := make(map[string][]string)
	var names []string
	for k, vv := range req.Header {
		lk := strings.ToLower(k)
		if ignoredHeaders[http.CanonicalHeaderKey(k)] {
			continue
		}
		names = append(names, lk)
		vals[lk] = vv
	}
	names = append(names, "host")
	sort.Strings(names)

	var buf bytes.Buffer
	for _, k := range names {
		buf.WriteString(k)
		buf.WriteByte(':')
		if k == "host" {
			host := req.Host
			if host == "" {
				host = req.URL.Host
			}
			buf.WriteString(host)
		} else {
			trimmed := make([]string, len(vals[k]))
			for i, v := range vals[k] {
				trimmed[i] = strings.Join(strings.Fields(v), " ")
			}
			buf.WriteString(strings.Join(trimmed, ","))
		}
		buf.WriteByte('\n')
	}
	return buf.String(), strings.Join(names, ";")
}

func getHashedPayload(req *http.Request) string {
	hashedPayload := req.Header.Get("X-Amz-Content-Sha256")
	if hashedPayload == "" {
		hashedPayload = unsignedPayload
	}
	return hashedPayload
}

// getCanonicalRequest builds METHOD\nPATH\nQUERY\nHEADERS\nSIGNED\nPAYLOAD.
func getCanonicalRequest(req *http.Request) string {
	req.URL.RawQuery = strings.Replace(req.URL.Query().Encode(), "+", "%20", -1)
	canonicalHeaders, signedHeaders := getCanonicalHeaders(req)
	path := req.URL.EscapedPath()
	if path == "" {
		path = "/"
	}
	return strings.Join([]string{
		req.Method,
		path,
		req.URL.RawQuery,
		canonicalHeaders,
		signedHeaders,
		getHashedPayload(req),
	}, "\n")
}

func getStringToSignV4(canonicalRequest, region string, t time.Time) string {
	return authHeader + "\n" + t.Format(iso8601DateFormat) + "\n" +
		getScope(region, t) + "\n" + sum256Hex([]byte(canonicalRequest))
}

// SignV4 signs req in place for signature version 4 and returns it. The
// caller must have already set x-amz-date, x-amz-content-sha256 (or left
// it absent for UNSIGNED-PAYLOAD), and Host.
func SignV4(req *http.Request, accessKeyID, secretAccessKey, sessionToken, region string) *http.Request {
	if accessKeyID == "" || secretAccessKey == "" {
		return req
	}
	t := time.Now().UTC()
	if d := req.Header.Get("X-Amz-Date"); d != "" {
		if parsed, err := time.Parse(iso8601DateFormat, d); err == nil {
			t = parsed
		}
	} else {
		req.Header.Set("X-Amz-Date", t.Format(iso8601DateFormat))
	}
	if sessionToken != "" {
		req.Header.Set("X-Amz-Security-Token", sessionToken)
	}

	canonicalRequest := getCanonicalRequest(req)
	_, signedHeaders := getCanonicalHeaders(req)
	stringToSign := getStringToSignV4(canonicalRequest, region, t)
	signingKey := getSigningKey(secretAccessKey, region, t)
	signature := getSignature(signingKey, stringToSign)
	credential := getCredential(accessKeyID, region, t)

	auth := strings.Join([]string{
		authHeader + " Credential=" + credential,
		"SignedHeaders=" + signedHeaders,
		"Signature=" + signature,
	}, ",")
	req.Header.Set("Authorization", auth)
	return req
}

// PreSignV4 builds a canonical unsigned request, embeds X-Amz-Expires and
// the credential scope in the query string, signs it, and returns the
// request with the signed URL set. expires is in seconds, 1..604800 is
// validated by the caller (spec.md §4.6).
func PreSignV4(req *http.Request, accessKeyID, secretAccessKey, sessionToken, region string, expires int64) *http.Request {
	t := time.Now().UTC()
	credential := getCredential(accessKeyID, region, t)

	query := req.URL.Query()
	query.Set("X-Amz-Algorithm", authHeader)
	query.Set("X-Amz-Date", t.Format(iso8601DateFormat))
	query.Set("X-Amz-Expires", strconv.FormatInt(expires, 10))
	query.Set("X-Amz-Credential", credential)
	if sessionToken != "" {
		query.Set("X-Amz-Security-Token", sessionToken)
	}
	req.URL.RawQuery = strings.Replace(query.Encode(), "+", "%20", -1)

	_, signedHeaders := getCanonicalHeaders(req)
	req.URL.RawQuery += "&X-Amz-SignedHeaders=" + strings.Replace(signedHeaders, ";", "%3B", -1)

	canonicalRequest := getCanonicalRequest(req)
	stringToSign := getStringToSignV4(canonicalRequest, region, t)
	signingKey := getSigningKey(secretAccessKey, region, t)
	signature := getSignature(signingKey, stringToSign)

	req.URL.RawQuery += "&X-Amz-Signature=" + signature
	return req
}

// PostPresignSignatureV4 signs a base64-encoded POST policy document for
// use in PresignPostPolicy (spec.md §4.6).
func PostPresignSignatureV4(policyBase64, secretAccessKey, region string, t time.Time) string {
	signingKey := getSigningKey(secretAccessKey, region, t)
	return getSignature(signingKey, policyBase64)
}

// Scope exposes the credential scope string (date/region/s3/aws4_request)
// for callers building presigned POST policy documents.
func Scope(region string, t time.Time) string { return getScope(region, t) }

// Credential exposes the "accessKey/scope" credential string.
func Credential(accessKeyID, region string, t time.Time) string {
	return getCredential(accessKeyID, region, t)
}

// ISO8601 formats t the way x-amz-date and policy documents require.
func ISO8601(t time.Time) string { return t.Format(iso8601DateFormat) }

// EmptyPayloadHash is the SHA-256 hex digest of the empty string, used as
// the seed-signature payload hash and for zero-length requests.
const EmptyPayloadHash = emptySHA256Hex

// UnsignedPayload is the literal x-amz-content-sha256 value for requests
// whose body is not hashed into the signature (only safe over TLS).
const UnsignedPayload = unsignedPayload

// StreamingPayloadAlgorithm is the literal x-amz-content-sha256 value used
// by the chunked-streaming signing mode.
const StreamingPayloadAlgorithm = streamingPayloadHdr

// SHA256Hex hashes data and hex-encodes the digest; exported so callers
// outside the package (request pipeline) can compute payload hashes with
// the same primitive the signer uses.
func SHA256Hex(data []byte) string { return sum256Hex(data) }
