package s3core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestListMultipartUploadsPaginates matches spec.md §4.5: the iterator
// follows key-marker/upload-id-marker pagination until IsTruncated is
// false.
func TestListMultipartUploadsPaginates(t *testing.T) {
	page := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		w.Header().Set("Content-Type", "application/xml")
		if page == 1 {
			require.Empty(t, r.URL.Query().Get("key-marker"))
			fmt.Fprint(w, `<ListMultipartUploadsResult>
				<IsTruncated>true</IsTruncated>
				<NextKeyMarker>obj-1</NextKeyMarker>
				<NextUploadIdMarker>upload-1</NextUploadIdMarker>
				<Upload><Key>obj-1</Key><UploadId>upload-1</UploadId></Upload>
			</ListMultipartUploadsResult>`)
			return
		}
		require.Equal(t, "obj-1", r.URL.Query().Get("key-marker"))
		require.Equal(t, "upload-1", r.URL.Query().Get("upload-id-marker"))
		fmt.Fprint(w, `<ListMultipartUploadsResult>
			<IsTruncated>false</IsTruncated>
			<Upload><Key>obj-2</Key><UploadId>upload-2</UploadId></Upload>
		</ListMultipartUploadsResult>`)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	next := c.ListMultipartUploads(context.Background(), "my-bucket", ListMultipartUploadsOptions{Recursive: true})

	var uploadIDs []string
	for {
		u, ok := next()
		if !ok {
			break
		}
		require.NoError(t, u.Err)
		uploadIDs = append(uploadIDs, u.UploadID)
	}
	require.Equal(t, []string{"upload-1", "upload-2"}, uploadIDs)
	require.Equal(t, 2, page)
}

// TestListMultipartUploadsAggregatesPartSize matches spec.md §4.5's
// optional aggregated-part-size feature: each upload's AggregatedPartSize
// is filled by summing a ListParts pass before it is yielded.
func TestListMultipartUploadsAggregatesPartSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if r.URL.Query().Get("uploads") == "" && r.URL.Query().Has("uploads") {
			fmt.Fprint(w, `<ListMultipartUploadsResult>
				<IsTruncated>false</IsTruncated>
				<Upload><Key>obj-1</Key><UploadId>upload-1</UploadId></Upload>
			</ListMultipartUploadsResult>`)
			return
		}
		fmt.Fprint(w, `<ListPartsResult>
			<IsTruncated>false</IsTruncated>
			<Part><PartNumber>1</PartNumber><ETag>"e1"</ETag><Size>1000</Size></Part>
			<Part><PartNumber>2</PartNumber><ETag>"e2"</ETag><Size>2000</Size></Part>
		</ListPartsResult>`)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	next := c.ListMultipartUploads(context.Background(), "my-bucket", ListMultipartUploadsOptions{
		Recursive:              true,
		WithAggregatedPartSize: true,
	})

	u, ok := next()
	require.True(t, ok)
	require.NoError(t, u.Err)
	require.Equal(t, int64(3000), u.AggregatedPartSize)

	_, ok = next()
	require.False(t, ok)
}

// TestListPartsSurfacesTerminalError matches spec.md §4.5: a paging
// failure yields one terminal error element, then exhaustion.
func TestListPartsSurfacesTerminalError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `<Error><Code>InternalError</Code><Message>boom</Message></Error>`)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	next := c.ListParts(context.Background(), "my-bucket", "my-object", "upload-1")

	part, ok := next()
	require.True(t, ok)
	require.Error(t, part.Err)

	_, ok = next()
	require.False(t, ok)
}
