package signer

import (
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var chunkFrameHeader = regexp.MustCompile(`^[0-9a-f]+;chunk-signature=[0-9a-f]{64}\r\n`)

func TestChunkedTotalLengthMatchesActualFramedOutput(t *testing.T) {
	reqTime := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	payload := strings.Repeat("x", 150*1024+37) // spans more than two 64 KiB chunks
	sr := NewStreamingReader(strings.NewReader(payload), "secret", "us-east-1", reqTime, "seed-signature", int64(len(payload)))

	framed, err := io.ReadAll(sr)
	require.NoError(t, err)
	require.Equal(t, ChunkedTotalLength(int64(len(payload))), int64(len(framed)))
}

func TestStreamingReaderFramesEachChunkWithASignatureHeader(t *testing.T) {
	reqTime := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	payload := "hello streaming world"
	sr := NewStreamingReader(strings.NewReader(payload), "secret", "us-east-1", reqTime, "seed-signature", int64(len(payload)))

	framed, err := io.ReadAll(sr)
	require.NoError(t, err)

	// One data chunk frame followed by the zero-length terminator frame.
	require.True(t, chunkFrameHeader.Match(framed))
	require.Contains(t, string(framed), payload)
	require.True(t, strings.HasSuffix(string(framed), "\r\n"))

	// The terminator frame's header starts with "0;chunk-signature=".
	require.Contains(t, string(framed), "0;chunk-signature=")
}

func TestStreamingSignV4SetsChunkedHeadersAndWrapsBody(t *testing.T) {
	reqTime := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	payload := "a small streamed body"
	req := httptest.NewRequest(http.MethodPut, "http://example.com/bucket/object", strings.NewReader(payload))
	req.Header.Set("Host", "example.com")

	StreamingSignV4(req, "AKID", "secret", "", "us-east-1", int64(len(payload)), reqTime)

	require.Equal(t, streamingPayloadHdr, req.Header.Get("X-Amz-Content-Sha256"))
	require.Equal(t, "aws-chunked", req.Header.Get("Content-Encoding"))
	require.Equal(t, "21", req.Header.Get("X-Amz-Decoded-Content-Length"))
	require.Contains(t, req.Header.Get("Authorization"), "Credential=AKID/")

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), payload)
	require.Equal(t, ChunkedTotalLength(int64(len(payload))), req.ContentLength)
}
