package signer

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

// subResources that participate in the SigV2 string-to-sign when present
// in the query string.
var subResources = []string{
	"acl", "lifecycle", "location", "logging", "notification", "partNumber",
	"policy", "requestPayment", "torrent", "uploadId", "uploads",
	"versionId", "versioning", "versions", "website",
}

// SignV2 signs req using the legacy Signature V2 scheme, kept for
// S3-compatible endpoints (e.g. Google Cloud Storage) that force it; not
// exercised by any spec.md operation directly but present for the
// endpoint-classification fallback documented in SPEC_FULL.md §5.
func SignV2(req *http.Request, accessKeyID, secretAccessKey string, virtualHost bool) *http.Request {
	if accessKeyID == "" || secretAccessKey == "" {
		return req
	}
	date := req.Header.Get("Date")
	if date == "" {
		date = time.Now().UTC().Format(http.TimeFormat)
		req.Header.Set("Date", date)
	}

	stringToSign := preStringToSignV2(req, virtualHost, date)
	mac := hmac.New(sha1.New, []byte(secretAccessKey))
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	req.Header.Set("Authorization", "AWS "+accessKeyID+":"+signature)
	return req
}

// PreSignV2 builds a query-string presigned URL under Signature V2.
func PreSignV2(req *http.Request, accessKeyID, secretAccessKey string, expires int64, virtualHost bool) *http.Request {
	epochExpires := time.Now().UTC().Add(time.Duration(expires) * time.Second).Unix()
	expiresStr := strconv.FormatInt(epochExpires, 10)

	stringToSign := preStringToSignV2(req, virtualHost, expiresStr)
	mac := hmac.New(sha1.New, []byte(secretAccessKey))
	mac.Write([]byte(stringToSign))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	query := req.URL.Query()
	query.Set("AWSAccessKeyId", accessKeyID)
	query.Set("Expires", expiresStr)
	query.Set("Signature", signature)
	req.URL.RawQuery = query.Encode()
	return req
}

func preStringToSignV2(req *http.Request, virtualHost bool, dateOrExpires string) string {
	var buf strings.Builder
	buf.WriteString(req.Method)
	buf.WriteByte('\n')
	buf.WriteString(req.Header.Get("Content-Md5"))
	buf.WriteByte('\n')
	buf.WriteString(req.Header.Get("Content-Type"))
	buf.WriteByte('\n')
	buf.WriteString(dateOrExpires)
	buf.WriteByte('\n')
	buf.WriteString(canonicalizedAmzHeadersV2(req))
	buf.WriteString(canonicalizedResourceV2(req, virtualHost))
	return buf.String()
}

func canonicalizedAmzHeadersV2(req *http.Request) string {
	var keys []string
	vals := make(map[string]string)
	for k, v := range req.Header {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "x-amz-") {
			keys = append(keys, lk)
			vals[lk] = strings.Join(v, ",")
		}
	}
	sort.Strings(keys)
	var buf strings.Builder
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte(':')
		buf.WriteString(vals[k])
		buf.WriteByte('\n')
	}
	return buf.String()
}

func canonicalizedResourceV2(req *http.Request, virtualHost bool) string {
	var buf strings.Builder
	if virtualHost {
		host := req.Host
		if idx := strings.Index(host, "."); idx > 0 {
			buf.WriteString("/" + host[:idx])
		}
	}
	buf.WriteString(req.URL.Path)

	query := req.URL.Query()
	var present []string
	for _, k := range subResources {
		if _, ok := query[k]; ok {
			present = append(present, k)
		}
	}
	sort.Strings(present)
	for i, k := range present {
		if i == 0 {
			buf.WriteByte('?')
		} else {
			buf.WriteByte('&')
		}
		buf.WriteString(k)
		if v := query.Get(k); v != "" {
			buf.WriteString("=" + v)
		}
	}
	return buf.String()
}
