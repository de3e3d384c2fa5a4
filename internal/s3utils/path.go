package s3utils

import (
	"net/url"
	"strings"
)

// EncodePath percent-encodes an object key for use in a URL path,
// preserving literal '/' separators between segments. Each segment is
// encoded independently so a key containing a literal '%' or space is
// round-tripped correctly.
func EncodePath(pathName string) string {
	if pathName == "" {
		return pathName
	}
	segments := strings.Split(pathName, "/")
	encoded := make([]string, len(segments))
	for i, seg := range segments {
		encoded[i] = encodeSegment(seg)
	}
	return strings.Join(encoded, "/")
}

// encodeSegment percent-encodes a single path segment the way S3 expects:
// RFC 3986 unreserved characters (A-Z, a-z, 0-9, '-', '_', '.', '~') are
// left alone; everything else is escaped as %XX uppercase hex.
func encodeSegment(seg string) string {
	var b strings.Builder
	b.Grow(len(seg) * 3)
	for _, r := range []byte(seg) {
		switch {
		case 'A' <= r && r <= 'Z', 'a' <= r && r <= 'z', '0' <= r && r <= '9':
			b.WriteByte(r)
		case r == '-' || r == '_' || r == '.' || r == '~':
			b.WriteByte(r)
		default:
			b.WriteString("%")
			b.WriteString(strings.ToUpper(hexByte(r)))
		}
	}
	return b.String()
}

const hexDigits = "0123456789ABCDEF"

func hexByte(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0f]})
}

// QueryEncode percent-encodes query parameters (key and value) and joins
// them sorted by key, allowing empty-valued keys (url.Values.Encode does
// the same but this wrapper exists so callers have one symbol to depend
// on if S3-specific quirks are needed later).
func QueryEncode(v url.Values) string {
	if v == nil {
		return ""
	}
	return v.Encode()
}
