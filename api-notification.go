package s3core

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloudkit-io/s3core/internal/s3utils"
)

// NotificationEvent is one parsed record from a ListenBucketNotification
// stream (spec.md §4.8): the service's JSON shape is a top-level
// "Records" array, so each yielded event is one element of that array.
type NotificationEvent struct {
	EventName string `json:"eventName"`
	EventTime string `json:"eventTime"`
	S3        struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key  string `json:"key"`
			Size int64  `json:"size"`
			ETag string `json:"eTag"`
		} `json:"object"`
	} `json:"s3"`

	Err error // terminal error element
}

type notificationBatch struct {
	Records []NotificationEvent `json:"Records"`
}

// ListenBucketNotificationOptions configures a notification long-poll.
type ListenBucketNotificationOptions struct {
	Prefix string
	Suffix string
	Events []string // e.g. "s3:ObjectCreated:*"
}

// NotificationStream is a cooperative producer over a long-poll
// notification connection: each call to Next blocks on I/O until a
// record, a heartbeat-skip, or a terminal error/EOF is available.
type NotificationStream struct {
	body    interface{ Close() error }
	scanner *bufio.Scanner
	pending []NotificationEvent
	done    bool
}

// Next returns the next parsed notification record, skipping blank
// keep-alive lines, or (zeroValue, false) once the stream is exhausted.
// A decode failure is delivered as one NotificationEvent with Err set,
// after which the stream is exhausted.
func (s *NotificationStream) Next() (NotificationEvent, bool) {
	for len(s.pending) == 0 {
		if s.done {
			return NotificationEvent{}, false
		}
		if !s.scanner.Scan() {
			s.done = true
			if err := s.scanner.Err(); err != nil {
				return NotificationEvent{Err: transportError(err)}, true
			}
			return NotificationEvent{}, false
		}

		line := s.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue // keep-alive heartbeat
		}

		var batch notificationBatch
		if err := json.Unmarshal(line, &batch); err != nil {
			s.done = true
			return NotificationEvent{Err: &Error{Kind: KindProtocol, Message: "malformed notification record: " + err.Error()}}, true
		}
		s.pending = batch.Records
	}

	item := s.pending[0]
	s.pending = s.pending[1:]
	return item, true
}

// Close releases the underlying long-poll connection.
func (s *NotificationStream) Close() error { return s.body.Close() }

// ListenBucketNotification opens a long-poll GET on
// ?notification&prefix=…&suffix=…&events=… and returns a stream the
// caller drains with Next and must eventually Close (spec.md §4.8).
func (c *Client) ListenBucketNotification(ctx context.Context, bucketName string, opts ListenBucketNotificationOptions) (*NotificationStream, error) {
	if err := s3utils.CheckValidBucketNameStrict(bucketName); err != nil {
		return nil, asArgumentError(err)
	}

	query := buildQuery("notification", "")
	if opts.Prefix != "" {
		query.Set("prefix", opts.Prefix)
	}
	if opts.Suffix != "" {
		query.Set("suffix", opts.Suffix)
	}
	for _, e := range opts.Events {
		query.Add("events", e)
	}

	resp, err := c.executeMethod(ctx, http.MethodGet, requestMetadata{
		bucketName:  bucketName,
		queryValues: query,
	})
	if err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	return &NotificationStream{body: resp.Body, scanner: scanner}, nil
}
