package s3core

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

// Kind is the single discriminator spec.md §9 asks for in place of a
// checked-exception hierarchy: every error this package returns, other
// than bugs, carries one of these values.
type Kind string

const (
	KindArgument  Kind = "ArgumentError"
	KindAuth      Kind = "AuthError"
	KindNotFound  Kind = "NotFound"
	KindConflict  Kind = "Conflict"
	KindTransport Kind = "TransportError"
	KindProtocol  Kind = "ProtocolError"
	KindInternal  Kind = "InternalError"
)

// Error is the single typed error result every operation in this package
// returns (spec.md §7, §9). Code is the wire-level S3 error code when one
// was available (e.g. "NoSuchKey"); for non-XML responses it is a
// synthetic code the request pipeline assigns (spec.md §4.1).
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	RequestID  string
	HostID     string
	BucketName string
	Key        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	if e.BucketName != "" {
		msg += ", bucket=" + e.BucketName
	}
	if e.Key != "" {
		msg += ", key=" + e.Key
	}
	if e.RequestID != "" {
		msg += ", request-id=" + e.RequestID
	}
	return msg
}

// Unwrap exposes any underlying transport error for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// argumentError builds a KindArgument Error for a caller-side precondition
// violation, before any request was built.
func argumentError(msg string) *Error {
	return &Error{Kind: KindArgument, Code: "InvalidArgument", Message: msg}
}

// asArgumentError converts an s3utils.InvalidArgumentError (or any other
// error) raised during validation into the package's Error type.
func asArgumentError(err error) *Error {
	if err == nil {
		return nil
	}
	var invalid s3utils.InvalidArgumentError
	if errors.As(err, &invalid) {
		return argumentError(invalid.Message)
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return argumentError(err.Error())
}

// transportError wraps a lower-level network/transport failure.
func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}

// xmlErrorResponse is the wire shape of an S3 <Error> document, the
// document this package names but does not itself parse in the general
// case (spec.md §1 scope note); error documents are the one XML body
// this package always needs to understand to build typed errors, so
// parsing them is part of the error taxonomy rather than the generic
// body codec.
type xmlErrorResponse struct {
	XMLName    xml.Name `xml:"Error"`
	Code       string   `xml:"Code"`
	Message    string   `xml:"Message"`
	BucketName string   `xml:"BucketName"`
	Key        string   `xml:"Key"`
	Resource   string   `xml:"Resource"`
	RequestID  string   `xml:"RequestId"`
	HostID     string   `xml:"HostId"`
	Region     string   `xml:"Region"`
}

// kindForCode maps a wire-level S3 error code to this package's taxonomy.
func kindForCode(code string) Kind {
	switch code {
	case "NoSuchBucket", "NoSuchKey", "NoSuchUpload", "NoSuchLifecycleConfiguration", "NoSuchBucketPolicy":
		return KindNotFound
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou", "BucketNotEmpty":
		return KindConflict
	case "AccessDenied", "SignatureDoesNotMatch", "InvalidAccessKeyId", "AuthorizationHeaderMalformed", "RequestTimeTooSkewed":
		return KindAuth
	case "InvalidArgument", "InvalidBucketName", "InvalidObjectName", "EntityTooSmall", "EntityTooLarge", "InvalidPartOrder", "InvalidPart":
		return KindArgument
	case "MalformedXML", "BucketPolicyTooLargeException":
		return KindProtocol
	default:
		return KindInternal
	}
}

// httpRespToErrorResponse turns a non-2xx *http.Response into this
// package's typed Error, parsing an XML error document when the
// Content-Type promises one and otherwise synthesizing a code from the
// HTTP status per spec.md §4.1.
func httpRespToErrorResponse(resp *http.Response, bucketName, objectName string) error {
	if resp == nil {
		return &Error{Kind: KindInternal, Message: "nil response"}
	}
	defer drainAndClose(resp.Body)

	ct := resp.Header.Get("Content-Type")
	if isXMLContentType(ct) {
		var xerr xmlErrorResponse
		body, _ := io.ReadAll(resp.Body)
		if err := xml.Unmarshal(body, &xerr); err == nil && xerr.Code != "" {
			e := &Error{
				Kind:       kindForCode(xerr.Code),
				Code:       xerr.Code,
				Message:    xerr.Message,
				RequestID:  xerr.RequestID,
				HostID:     xerr.HostID,
				BucketName: firstNonEmpty(xerr.BucketName, bucketName),
				Key:        firstNonEmpty(xerr.Key, objectName),
				StatusCode: resp.StatusCode,
			}
			return e
		}
		return &Error{
			Kind:       KindProtocol,
			Code:       "MalformedXML",
			Message:    "error response Content-Type promised XML but body did not parse",
			StatusCode: resp.StatusCode,
			BucketName: bucketName,
			Key:        objectName,
		}
	}

	return syntheticStatusError(resp.StatusCode, bucketName, objectName, resp.Header.Get("x-amz-request-id"))
}

// syntheticStatusError maps an HTTP status code with no XML error body to
// a synthetic code and Kind, per spec.md §4.1's status table.
func syntheticStatusError(statusCode int, bucketName, objectName, requestID string) error {
	e := &Error{StatusCode: statusCode, BucketName: bucketName, Key: objectName, RequestID: requestID}
	switch statusCode {
	case http.StatusTemporaryRedirect:
		e.Kind, e.Code, e.Message = KindTransport, "Redirect", "request was redirected"
	case http.StatusBadRequest:
		e.Kind, e.Code, e.Message = KindArgument, "InvalidURI", "the request URI was invalid"
	case http.StatusForbidden:
		e.Kind, e.Code, e.Message = KindAuth, "AccessDenied", "access denied"
	case http.StatusNotFound:
		e.Kind = KindNotFound
		switch {
		case objectName != "":
			e.Code, e.Message = "NoSuchKey", "the specified key does not exist"
		case bucketName != "":
			e.Code, e.Message = "NoSuchBucket", "the specified bucket does not exist"
		default:
			e.Code, e.Message = "NoSuchResource", "the specified resource does not exist"
		}
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		e.Kind, e.Code, e.Message = KindProtocol, "MethodNotAllowed", "the specified method is not allowed against this resource"
	case http.StatusConflict:
		if bucketName != "" && objectName == "" {
			e.Kind, e.Code, e.Message = KindNotFound, "NoSuchBucket", "the specified bucket does not exist"
		} else {
			e.Kind, e.Code, e.Message = KindConflict, "ResourceConflict", "resource conflict"
		}
	default:
		e.Kind, e.Code, e.Message = KindInternal, "Fatal", fmt.Sprintf("unexpected HTTP status %d", statusCode)
	}
	return e
}

func isXMLContentType(ct string) bool {
	return ct == "application/xml" || ct == "text/xml" ||
		len(ct) >= 15 && ct[:15] == "application/xml"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	io.Copy(io.Discard, io.LimitReader(body, 1<<20))
	body.Close()
}

// IsCode reports whether err is an *Error carrying the given wire code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
