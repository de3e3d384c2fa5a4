package s3core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestUploadPartsSplitsAcrossPartBoundariesWithCarryByte matches spec.md
// §4.3: for an unknown-size stream, each part is probed one byte past
// partSize to decide whether it is the last part, and that carried byte is
// prepended to the next part's body rather than dropped or re-read.
func TestUploadPartsSplitsAcrossPartBoundariesWithCarryByte(t *testing.T) {
	input := make([]byte, 25)
	for i := range input {
		input[i] = byte(i)
	}

	var mu sync.Mutex
	bodies := map[string][]byte{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		partNumber := r.URL.Query().Get("partNumber")
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies[partNumber] = body
		mu.Unlock()
		w.Header().Set("ETag", fmt.Sprintf(`"etag-%s"`, partNumber))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	parts, failure := c.uploadParts(context.Background(), "my-bucket", "my-object", "upload-1", bytes.NewReader(input), 10, PutObjectOptions{})
	require.Nil(t, failure)
	require.Len(t, parts, 3)

	require.Equal(t, input[0:10], bodies["1"])
	require.Equal(t, input[10:20], bodies["2"])
	require.Equal(t, input[20:25], bodies["3"])

	var total int64
	for _, p := range parts {
		total += p.Size
	}
	require.Equal(t, int64(25), total)
}

// TestUploadPartsRevertsToSinglePartBody matches spec.md §4.3: when the
// very first probe already hits EOF, the caller gets the buffered bytes
// back to revert to a single PUT instead of completing a one-part
// multipart upload.
func TestUploadPartsRevertsToSinglePartBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("uploadPart must not be called for a single-chunk stream")
	}))
	defer server.Close()

	c := newTestClient(t, server)
	parts, failure := c.uploadParts(context.Background(), "my-bucket", "my-object", "upload-2", bytes.NewReader([]byte("hello")), 10, PutObjectOptions{})
	require.Nil(t, parts)
	require.NotNil(t, failure)
	require.Nil(t, failure.err)
	require.Equal(t, []byte("hello"), failure.singlePartBody)
}

// TestUploadPartsAbortsOnFirstFailure matches spec.md §4.3's failure
// handling: a failing part upload surfaces as a non-nil multipartFailure
// error, not a partial part list.
func TestUploadPartsAbortsOnFirstFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<Error><Code>InternalError</Code><Message>boom</Message></Error>`)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	input := make([]byte, 25)
	parts, failure := c.uploadParts(context.Background(), "my-bucket", "my-object", "upload-3", bytes.NewReader(input), 10, PutObjectOptions{})
	require.Nil(t, parts)
	require.NotNil(t, failure)
	require.Error(t, failure.err)
	require.Nil(t, failure.singlePartBody)
}
