package s3core

import (
	"encoding/xml"
	"io"
)

// xmlDecode decodes one XML document from r into v. Callers wrap a
// non-nil error as a KindProtocol Error themselves, since only they know
// which operation's response body failed to parse.
func xmlDecode(r io.Reader, v interface{}) error {
	return xml.NewDecoder(r).Decode(v)
}

// locationConstraintXML is the <LocationConstraint> response body of
// GetBucketLocation (spec.md §4.2); S3 returns an empty element for
// "us-east-1" and otherwise the region name as the element's text.
type locationConstraintXML struct {
	XMLName xml.Name `xml:"LocationConstraint"`
	Value   string   `xml:",chardata"`
}
