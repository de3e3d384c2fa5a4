package s3core

import (
	"testing"

	"github.com/cloudkit-io/s3core/internal/signer"
	"github.com/stretchr/testify/require"
)

func TestSignerSHA256HexUsesEmptyPayloadHashForEmptyBody(t *testing.T) {
	require.Equal(t, signer.EmptyPayloadHash, signerSHA256Hex(nil))
	require.Equal(t, signer.EmptyPayloadHash, signerSHA256Hex([]byte{}))
}

func TestSignerSHA256HexMatchesSHA256HexForNonEmptyBody(t *testing.T) {
	body := []byte("hello world")
	require.Equal(t, signer.SHA256Hex(body), signerSHA256Hex(body))
	require.NotEqual(t, signer.EmptyPayloadHash, signerSHA256Hex(body))
}

func TestMD5Base64(t *testing.T) {
	// md5("") == d41d8cd98f00b204e9800998ecf8427e, base64 of those 16 bytes.
	require.Equal(t, "1B2M2Y8AsgTpgAmY7PhCfg==", md5Base64(nil))
}

func TestPutObjectHeadersDefaultsContentType(t *testing.T) {
	h := putObjectHeaders(PutObjectOptions{})
	require.Equal(t, "application/octet-stream", h.Get("Content-Type"))
}

func TestPutObjectHeadersRewritesUserMetadataToXAmzMeta(t *testing.T) {
	h := putObjectHeaders(PutObjectOptions{
		ContentType:  "text/plain",
		StorageClass: "STANDARD_IA",
		UserMetadata: map[string]string{"Owner": "team-a"},
	})
	require.Equal(t, "text/plain", h.Get("Content-Type"))
	require.Equal(t, "STANDARD_IA", h.Get("X-Amz-Storage-Class"))
	require.Equal(t, "team-a", h.Get("X-Amz-Meta-Owner"))
}
