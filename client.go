// Package s3core implements the request pipeline, AWS Signature V4
// signer, and multipart upload/compose orchestrators of an
// S3-compatible object-storage client (spec.md §1).
package s3core

import (
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/cloudkit-io/s3core/internal/credentials"
	"github.com/cloudkit-io/s3core/internal/s3utils"
	"github.com/cloudkit-io/s3core/internal/trace"
	"golang.org/x/net/publicsuffix"
)

// Client implements the S3-compatible operations of this package, bound
// to one endpoint, one credential set, and (optionally) one pinned
// region (spec.md §3, §5: credentials and region are immutable per
// client).
type Client struct {
	endpointURL *url.URL
	creds       *credentials.Credentials
	secure      bool
	region      string
	lookup      BucketLookupType

	// accelerateEndpoint, when non-empty, overrides the request host for
	// an Amazon S3 endpoint per SPEC_FULL.md §5's transfer-acceleration
	// supplement.
	accelerateEndpoint string

	httpClient *http.Client
	regionMu   *regionCache

	// signerV2 forces the legacy Signature V2 codec for every signed
	// request (spec.md §5 supplement): Google Cloud Storage's S3
	// compatibility layer never implemented V4, so it is the one
	// endpoint class this client auto-detects and pins to V2.
	signerV2 bool

	appName    string
	appVersion string

	traceSink interface {
		Request(requestID string, req *http.Request)
		Response(requestID string, statusCode int, headers http.Header)
	}

	disableTransparentDecompression bool
}

// New builds a Client for endpoint using access/secret keys; empty keys
// produce an anonymous (unauthenticated) client.
func New(endpoint, accessKeyID, secretAccessKey string, secure bool) (*Client, error) {
	return NewWithOptions(endpoint, Options{
		Creds:  credentials.NewStatic(accessKeyID, secretAccessKey, ""),
		Secure: secure,
	})
}

// NewWithOptions builds a Client from the collapsed Options record
// (spec.md §9).
func NewWithOptions(endpoint string, opts Options) (*Client, error) {
	endpointURL, err := parseEndpoint(endpoint, opts.Secure)
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, transportError(err)
	}

	creds := opts.Creds
	if creds == nil {
		creds = credentials.NewAnonymous()
	}

	c := &Client{
		endpointURL:                      endpointURL,
		creds:                            creds,
		secure:                           opts.Secure,
		region:                           opts.Region,
		lookup:                           opts.BucketLookup,
		appName:                          opts.AppName,
		appVersion:                       opts.AppVersion,
		traceSink:                        opts.TraceSink,
		disableTransparentDecompression: opts.DisableTransparentDecompression,
		accelerateEndpoint:              opts.AccelerateEndpoint,
		regionMu:                        newRegionCache(),
	}

	transport := opts.Transport
	if transport == nil {
		transport = defaultTransport(opts.Secure)
	}
	c.httpClient = &http.Client{
		Jar:           jar,
		Transport:     transport,
		CheckRedirect: c.checkRedirect,
	}

	if c.region == "" {
		if r := s3utils.GetRegionFromURL(*endpointURL); r != "" {
			c.region = r
		}
	}
	if s3utils.IsGoogleEndpoint(*endpointURL) {
		c.signerV2 = true
	}
	return c, nil
}

// defaultTransport mirrors the teacher's DefaultTransport: a pooled
// http.Transport with generous (spec.md §5: 15 minute default) timeouts,
// overridable via Options.Transport.
func defaultTransport(secure bool) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Minute,
			KeepAlive: 15 * time.Minute,
		}).DialContext,
		MaxIdleConnsPerHost:   256,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 15 * time.Minute,
		// Response decompression is handled explicitly by the request
		// pipeline (klauspost/compress) so the signed-payload mode can
		// disable it without fighting net/http's own transparent gzip.
		DisableCompression: true,
	}
}

// parseEndpoint accepts either "host[:port]" or a full URL with an empty
// path, per spec.md §3's Endpoint invariant.
func parseEndpoint(endpoint string, secure bool) (*url.URL, error) {
	if endpoint == "" {
		return nil, argumentError("endpoint cannot be empty")
	}
	if !strings.Contains(endpoint, "://") {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		endpoint = scheme + "://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, argumentError(fmt.Sprintf("invalid endpoint: %v", err))
	}
	if u.Path != "" && u.Path != "/" {
		return nil, argumentError("endpoint must not carry a path component")
	}
	if host, port, err := net.SplitHostPort(u.Host); err == nil {
		if !s3utils.IsValidDomain(host) && !s3utils.IsValidIP(host) {
			return nil, argumentError("endpoint host is not a valid DNS name or IP literal")
		}
		if p := parsePort(port); p < 1 || p > 65535 {
			return nil, argumentError("endpoint port must be in 1..65535")
		}
	} else if !s3utils.IsValidDomain(u.Host) && !s3utils.IsValidIP(u.Host) {
		return nil, argumentError("endpoint host is not a valid DNS name or IP literal")
	}
	u.Path = ""
	return u, nil
}

func parsePort(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// setUserAgent sets the fixed-prefix User-Agent header, with optional
// application name/version appended (spec.md §4.1).
func (c *Client) setUserAgent(req *http.Request) {
	ua := libraryUserAgent
	if c.appName != "" && c.appVersion != "" {
		ua += " " + c.appName + "/" + c.appVersion
	}
	req.Header.Set("User-Agent", ua)
}

// checkRedirect re-signs a redirected request, mirroring the teacher's
// redirectHeaders: credentials are re-applied only when the redirect
// crosses hosts.
func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 5 {
		return fmt.Errorf("stopped after 5 redirects")
	}
	if len(via) == 0 {
		return nil
	}
	last := via[len(via)-1]
	reAuth := false
	for k, v := range last.Header {
		if k == "Authorization" && req.Host != last.Host {
			reAuth = true
			continue
		}
		if _, ok := req.Header[k]; !ok {
			req.Header[k] = v
		}
	}
	if !reAuth {
		return nil
	}
	v, err := c.creds.Get()
	if err != nil {
		return err
	}
	if v.IsAnonymous() {
		return nil
	}
	region := c.region
	if region == "" {
		region = s3utils.GetRegionFromURL(*req.URL)
	}
	signRequest(req, v, region)
	return nil
}

// do executes req, tracing it when a TraceSink is configured.
func (c *Client) do(req *http.Request, requestID string) (*http.Response, error) {
	if c.traceSink != nil {
		c.traceSink.Request(requestID, req)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && strings.Contains(urlErr.Err.Error(), "EOF") {
			return nil, transportError(fmt.Errorf("connection closed by %s: %w", urlErr.URL, urlErr.Err))
		}
		return nil, transportError(err)
	}
	if resp == nil {
		return nil, &Error{Kind: KindInternal, Message: "http.Client.Do returned a nil response with a nil error"}
	}
	if c.traceSink != nil {
		c.traceSink.Response(requestID, resp.StatusCode, resp.Header)
	}
	return resp, nil
}

// TraceSink exposes the struct-based sink type tests/callers can build
// from internal/trace without importing the internal package directly
// from outside the module (re-exported for convenience).
type TraceSink = trace.Sink
