package s3core

import (
	"bytes"
	"context"
	"encoding/binary"
	"hash/crc32"
	"io"
	"net/http"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

// SelectObjectContentOptions configures a SelectObjectContent call
// (spec.md §4.7): Expression is the SQL expression, InputSerialization
// and OutputSerialization carry the raw <InputSerialization>/
// <OutputSerialization> XML bodies the caller has already built for the
// source/target formats (CSV, JSON, Parquet) they need.
type SelectObjectContentOptions struct {
	Expression          string
	ExpressionType       string // defaults to "SQL"
	InputSerialization  []byte
	OutputSerialization []byte
	SSEC                SSE
}

// SelectObjectContent issues POST ?select&select-type=2 and returns a
// SelectResults the caller drains for record bytes (spec.md §4.7); the
// caller must Close it when done or the underlying connection leaks.
func (c *Client) SelectObjectContent(ctx context.Context, bucketName, objectName string, opts SelectObjectContentOptions) (*SelectResults, error) {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return nil, asArgumentError(err)
	}
	if err := s3utils.CheckValidObjectName(objectName); err != nil {
		return nil, asArgumentError(err)
	}
	if opts.ExpressionType == "" {
		opts.ExpressionType = "SQL"
	}

	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	body.WriteString(`<SelectObjectContentRequest>`)
	body.WriteString(`<Expression>` + xmlEscape(opts.Expression) + `</Expression>`)
	body.WriteString(`<ExpressionType>` + opts.ExpressionType + `</ExpressionType>`)
	body.WriteString(`<InputSerialization>`)
	body.Write(opts.InputSerialization)
	body.WriteString(`</InputSerialization>`)
	body.WriteString(`<OutputSerialization>`)
	body.Write(opts.OutputSerialization)
	body.WriteString(`</OutputSerialization>`)
	body.WriteString(`</SelectObjectContentRequest>`)
	payload := body.Bytes()

	headers := make(http.Header)
	for k, v := range opts.SSEC.Headers() {
		headers.Set(k, v)
	}

	resp, err := c.executeMethod(ctx, http.MethodPost, requestMetadata{
		bucketName:       bucketName,
		objectName:       objectName,
		queryValues:      buildQuery("select", "", "select-type", "2"),
		customHeader:     headers,
		contentBody:      bytes.NewReader(payload),
		contentLength:    int64(len(payload)),
		contentSHA256Hex: signerSHA256Hex(payload),
	})
	if err != nil {
		return nil, err
	}

	return &SelectResults{
		body:     resp.Body,
		progress: make(chan []byte, 16),
		stats:    make(chan []byte, 1),
	}, nil
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SelectResults exposes the framed SelectObjectContent response as a
// lazy byte stream of record payloads, with progress/stats surfaced
// through separate channels (spec.md §4.7).
type SelectResults struct {
	body     io.ReadCloser
	pending  []byte
	progress chan []byte
	stats    chan []byte
	closed   bool
	err      error
}

// Progress yields each <Progress> event's raw XML payload as it is
// decoded; the caller must range over it from a separate goroutine if it
// wants live updates, since events interleave with Read at the wire's
// pace. The channel is closed when the stream ends.
func (r *SelectResults) Progress() <-chan []byte { return r.progress }

// Stats yields the single final <Stats> event's raw XML payload, if one
// arrives before the stream ends.
func (r *SelectResults) Stats() <-chan []byte { return r.stats }

// Read implements io.Reader over the decoded record payloads: frames of
// type Records are concatenated in arrival order; Cont frames are
// skipped; Progress/Stats frames are forwarded to their channels; an End
// frame or error frame terminates the stream.
func (r *SelectResults) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		frame, err := decodeEventStreamFrame(r.body)
		if err != nil {
			r.err = err
			r.closeChannels()
			return 0, err
		}

		switch frame.eventType {
		case "Records":
			r.pending = frame.payload
		case "Cont":
			continue
		case "Progress":
			select {
			case r.progress <- frame.payload:
			default:
			}
		case "Stats":
			select {
			case r.stats <- frame.payload:
			default:
			}
		case "End":
			r.err = io.EOF
			r.closeChannels()
			return 0, io.EOF
		default:
			if frame.messageType == "error" {
				r.err = &Error{Kind: KindProtocol, Code: frame.errorCode, Message: frame.errorMessage}
				r.closeChannels()
				return 0, r.err
			}
		}
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *SelectResults) closeChannels() {
	if !r.closed {
		close(r.progress)
		close(r.stats)
		r.closed = true
	}
}

// Close releases the underlying HTTP connection; safe to call even if
// the stream was never fully drained.
func (r *SelectResults) Close() error {
	r.closeChannels()
	return r.body.Close()
}

// eventStreamFrame is one decoded AWS event-stream message: the
// :message-type/:event-type/:error-code/:error-message headers S3 Select
// uses, plus the raw payload.
type eventStreamFrame struct {
	messageType  string
	eventType    string
	errorCode    string
	errorMessage string
	payload      []byte
}

// decodeEventStreamFrame reads one length-prefixed, CRC-checked message
// off r per the AWS event-stream wire format: a 12-byte prelude (total
// length, headers length, prelude CRC), a headers block, the payload,
// and a trailing message CRC over everything preceding it.
func decodeEventStreamFrame(r io.Reader) (*eventStreamFrame, error) {
	var prelude [12]byte
	if _, err := io.ReadFull(r, prelude[:]); err != nil {
		return nil, err
	}
	totalLen := binary.BigEndian.Uint32(prelude[0:4])
	headersLen := binary.BigEndian.Uint32(prelude[4:8])
	preludeCRC := binary.BigEndian.Uint32(prelude[8:12])

	if crc32.ChecksumIEEE(prelude[0:8]) != preludeCRC {
		return nil, &Error{Kind: KindProtocol, Message: "select stream: prelude CRC mismatch"}
	}
	if totalLen < 16 || uint64(headersLen) > uint64(totalLen) {
		return nil, &Error{Kind: KindProtocol, Message: "select stream: invalid frame lengths"}
	}

	rest := make([]byte, totalLen-12)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, err
	}

	headerBytes := rest[:headersLen]
	payloadLen := uint32(len(rest)) - headersLen - 4
	payload := rest[headersLen : headersLen+payloadLen]
	messageCRC := binary.BigEndian.Uint32(rest[headersLen+payloadLen:])

	full := make([]byte, 0, len(prelude)+len(rest))
	full = append(full, prelude[:]...)
	full = append(full, rest[:len(rest)-4]...)
	if crc32.ChecksumIEEE(full) != messageCRC {
		return nil, &Error{Kind: KindProtocol, Message: "select stream: message CRC mismatch"}
	}

	headers, err := decodeEventStreamHeaders(headerBytes)
	if err != nil {
		return nil, err
	}

	frame := &eventStreamFrame{
		messageType:  headers[":message-type"],
		eventType:    headers[":event-type"],
		errorCode:    headers[":error-code"],
		errorMessage: headers[":error-message"],
		payload:      payload,
	}
	return frame, nil
}

// decodeEventStreamHeaders parses the repeated {name-len byte; name;
// value-type byte; value} header entries S3 Select frames carry. Only
// the string value type (7) appears in practice for this API's headers.
func decodeEventStreamHeaders(b []byte) (map[string]string, error) {
	headers := make(map[string]string)
	for len(b) > 0 {
		if len(b) < 1 {
			return nil, &Error{Kind: KindProtocol, Message: "select stream: truncated header"}
		}
		nameLen := int(b[0])
		b = b[1:]
		if len(b) < nameLen+1 {
			return nil, &Error{Kind: KindProtocol, Message: "select stream: truncated header name"}
		}
		name := string(b[:nameLen])
		b = b[nameLen:]
		valueType := b[0]
		b = b[1:]

		switch valueType {
		case 7: // string: uint16 length prefix
			if len(b) < 2 {
				return nil, &Error{Kind: KindProtocol, Message: "select stream: truncated header value length"}
			}
			valLen := int(binary.BigEndian.Uint16(b[:2]))
			b = b[2:]
			if len(b) < valLen {
				return nil, &Error{Kind: KindProtocol, Message: "select stream: truncated header value"}
			}
			headers[name] = string(b[:valLen])
			b = b[valLen:]
		default:
			return nil, &Error{Kind: KindProtocol, Message: "select stream: unsupported header value type"}
		}
	}
	return headers, nil
}
