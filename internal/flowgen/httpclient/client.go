// Package httpclient provides the HTTP mechanics the HttpRequest step
// relies on: a pooled client with cookie handling, a configurable redirect
// cap, a deliberately relaxed TLS policy for exercising test environments,
// and a per-request timing breakdown captured via httptrace.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"time"
)

// Timing holds the phase durations of one request/response round trip, in
// wall-clock time. Every field maps directly onto an HttpMetric duration.
type Timing struct {
	NamelookupTime time.Duration
	ConnectTime    time.Duration
	TLSHandshake   time.Duration
	StartTransfer  time.Duration
	Elapsed        time.Duration
	Redirect       time.Duration
}

// Result is the outcome of one issued request that produced a response:
// status, headers, body, timing and byte counts. Transport-level errors
// (connection refused, DNS failure, timeout, ...) are returned by Do as an
// error with no Result.
type Result struct {
	StatusCode    int
	Headers       http.Header
	Body          []byte
	Timing        Timing
	UploadBytes   int64
	DownloadBytes int64
}

// Request describes one HTTP call to issue.
type Request struct {
	Method        string
	URL           string
	Headers       http.Header
	Body          []byte
	ContentType   string
	RedirectLimit int
}

// errRedirectLimit is returned by the stdlib redirect checker once the cap
// is exceeded; net/http surfaces it wrapped inside a *url.Error, which
// callers unwrap for classification.
var errRedirectLimit = errors.New("httpclient: redirect limit exceeded")

// Client issues HTTP requests against arbitrary targets, used by the
// HttpRequest step for every request a flow makes. It relaxes TLS
// verification and accepts redirects up to a per-request cap, the explicit
// load-testing policy the step's contract documents.
type Client struct {
	transport *http.Transport
}

// TransportOptions tunes the pooled transport's idle-connection behavior.
// The zero value reproduces net/http's own defaults (no idle-conn cap,
// DefaultMaxIdleConnsPerHost, no idle timeout).
type TransportOptions struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// New builds a Client with a relaxed TLS policy and connection pooling
// shared across every Do call. An optional TransportOptions tunes the idle
// connection pool; omitting it reproduces net/http's own defaults.
func New(opts ...TransportOptions) *Client {
	var o TransportOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	return &Client{
		transport: &http.Transport{
			TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
			MaxIdleConns:        o.MaxIdleConns,
			MaxIdleConnsPerHost: o.MaxIdleConnsPerHost,
			IdleConnTimeout:     o.IdleConnTimeout,
		},
	}
}

// Do issues req with the given overall timeout and redirect cap, returning a
// Result on any completed round trip (including non-2xx statuses) or an
// error for anything that never produced a response (DNS failure, refused
// connection, timeout, redirect-limit exceeded). When the response arrives
// but reading its body fails, Do returns both a Result (status and headers,
// nil Body) and the read error.
func (c *Client) Do(ctx context.Context, req Request, timeout time.Duration) (*Result, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: building cookie jar: %w", err)
	}

	redirectCount := 0
	var redirectStart time.Time
	var redirectTotal time.Duration

	client := &http.Client{
		Transport: c.transport,
		Jar:       jar,
		Timeout:   timeout,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) > req.RedirectLimit {
				return errRedirectLimit
			}
			if !redirectStart.IsZero() {
				redirectTotal += time.Since(redirectStart)
			}
			redirectStart = time.Now()
			return nil
		},
	}

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("httpclient: building request: %w", err)
	}
	for name, values := range req.Headers {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	if req.ContentType != "" && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}

	var timing Timing
	var dnsStart, connectStart, tlsStart, reqStart time.Time

	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) { dnsStart = time.Now() },
		DNSDone: func(httptrace.DNSDoneInfo) {
			if !dnsStart.IsZero() {
				timing.NamelookupTime += time.Since(dnsStart)
			}
		},
		ConnectStart: func(string, string) { connectStart = time.Now() },
		ConnectDone: func(string, string, error) {
			if !connectStart.IsZero() {
				timing.ConnectTime += time.Since(connectStart)
			}
		},
		TLSHandshakeStart: func() { tlsStart = time.Now() },
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			if !tlsStart.IsZero() {
				timing.TLSHandshake += time.Since(tlsStart)
			}
		},
		GotFirstResponseByte: func() {
			timing.StartTransfer = time.Since(reqStart)
		},
	}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), trace))

	reqStart = time.Now()
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, readErr := io.ReadAll(resp.Body)
	timing.Elapsed = time.Since(reqStart)
	timing.Redirect = redirectTotal

	if readErr != nil {
		return &Result{
			StatusCode:    resp.StatusCode,
			Headers:       resp.Header,
			Body:          nil,
			Timing:        timing,
			UploadBytes:   int64(len(req.Body)),
			DownloadBytes: int64(len(bodyBytes)),
		}, fmt.Errorf("httpclient: reading response body: %w", readErr)
	}

	return &Result{
		StatusCode:    resp.StatusCode,
		Headers:       resp.Header,
		Body:          bodyBytes,
		Timing:        timing,
		UploadBytes:   int64(len(req.Body)),
		DownloadBytes: int64(len(bodyBytes)),
	}, nil
}

// IsRedirectLimitExceeded reports whether err resulted from exceeding the
// request's redirect cap.
func IsRedirectLimitExceeded(err error) bool {
	return errors.Is(err, errRedirectLimit)
}

// Transport exposes the pooled transport backing Client.Do, for tests that
// verify TransportOptions were applied.
func (c *Client) Transport() *http.Transport {
	return c.transport
}
