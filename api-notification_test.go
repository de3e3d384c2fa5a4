package s3core

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestListenBucketNotificationSkipsHeartbeats matches spec.md §4.8: blank
// keep-alive lines are skipped and records are parsed from the
// newline-delimited JSON body.
func TestListenBucketNotificationSkipsHeartbeats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "prefix/", r.URL.Query().Get("prefix"))
		fmt.Fprintln(w)
		fmt.Fprintln(w, `{"Records":[{"eventName":"s3:ObjectCreated:Put"}]}`)
		fmt.Fprintln(w)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	stream, err := c.ListenBucketNotification(context.Background(), "my-bucket", ListenBucketNotificationOptions{
		Prefix: "prefix/",
		Events: []string{"s3:ObjectCreated:*"},
	})
	require.NoError(t, err)
	defer stream.Close()

	event, ok := stream.Next()
	require.True(t, ok)
	require.NoError(t, event.Err)
	require.Equal(t, "s3:ObjectCreated:Put", event.EventName)

	_, ok = stream.Next()
	require.False(t, ok)
}
