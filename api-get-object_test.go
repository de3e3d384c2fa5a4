package s3core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFGetObjectFreshDownload matches spec.md §5: a clean destination
// downloads the whole object through a sidecar and renames into place.
func TestFGetObjectFreshDownload(t *testing.T) {
	const content = "the quick brown fox"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-1"`)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(content))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")

	err := c.FGetObject(context.Background(), "my-bucket", "my-object", dest, GetObjectOptions{})
	require.NoError(t, err)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, content, string(got))

	sidecar := dest + ".etag-1" + resumableDownloadSuffix
	_, err = os.Stat(sidecar)
	require.True(t, os.IsNotExist(err))
}

// TestFGetObjectSkipsWhenDestinationAlreadyComplete matches spec.md §5: a
// destination file already matching the remote size is left untouched and
// no HTTP GET is issued for the body.
func TestFGetObjectSkipsWhenDestinationAlreadyComplete(t *testing.T) {
	const content = "already here"
	getCalled := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-2"`)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(content)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		getCalled = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(content))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(dest, []byte(content), 0o644))

	err := c.FGetObject(context.Background(), "my-bucket", "my-object", dest, GetObjectOptions{})
	require.NoError(t, err)
	require.False(t, getCalled)
}

// TestFGetObjectRejectsOversizedDestination matches spec.md §5's edge case:
// an existing destination larger than the remote object is a hard error,
// never silently truncated or overwritten.
func TestFGetObjectRejectsOversizedDestination(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-3"`)
		w.Header().Set("Content-Length", "4")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(dest, []byte("way too long"), 0o644))

	err := c.FGetObject(context.Background(), "my-bucket", "my-object", dest, GetObjectOptions{})
	require.Error(t, err)
}

// TestFGetObjectResumesFromSidecar matches spec.md §5: a sidecar whose tag
// matches the remote (etag, size) resumes with a byte-range GET instead of
// restarting from zero.
func TestFGetObjectResumesFromSidecar(t *testing.T) {
	const full = "0123456789ABCDEF"
	const already = "0123456789"
	var sawRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-4"`)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(full)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		sawRange = r.Header.Get("Range")
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(full)-len(already)))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(full[len(already):]))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	sidecar := dest + ".etag-4" + resumableDownloadSuffix
	require.NoError(t, os.WriteFile(sidecar, []byte(already), 0o644))
	wantTag := fmt.Sprintf("%x", sidecarIntegrityTag("etag-4", int64(len(full))))
	require.NoError(t, os.WriteFile(sidecar+".tag", []byte(wantTag), 0o644))

	err := c.FGetObject(context.Background(), "my-bucket", "my-object", dest, GetObjectOptions{})
	require.NoError(t, err)
	require.Equal(t, "bytes=10-", sawRange)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, full, string(got))
}

// TestFGetObjectDiscardsStaleSidecar matches spec.md §5: a sidecar whose
// integrity tag doesn't match the current remote object is discarded and
// the download restarts from zero rather than trusting stale bytes.
func TestFGetObjectDiscardsStaleSidecar(t *testing.T) {
	const full = "0123456789ABCDEF"
	var sawRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"etag-5"`)
		w.Header().Set("Content-Length", fmt.Sprintf("%d", len(full)))
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		sawRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(full))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.txt")
	sidecar := dest + ".etag-5" + resumableDownloadSuffix
	require.NoError(t, os.WriteFile(sidecar, []byte("0123456789"), 0o644))
	require.NoError(t, os.WriteFile(sidecar+".tag", []byte("not-the-real-tag"), 0o644))

	err := c.FGetObject(context.Background(), "my-bucket", "my-object", dest, GetObjectOptions{})
	require.NoError(t, err)
	require.Empty(t, sawRange)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, full, string(got))
}
