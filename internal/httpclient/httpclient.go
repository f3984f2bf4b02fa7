// Package httpclient is the stateless HTTP primitive: issue one outbound
// request, read a bounded response body, and report status/body/elapsed or a
// closed-taxonomy error. Modeled on the shared, tuned http.Transport the
// teacher's worker pool and load tester both build for high-concurrency
// outbound traffic.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/rjpruitt16/ezworker/internal/job"
)

// MaxResponseBytes is the hard cap on buffered response bodies. A response
// larger than this fails with ErrReadFailed rather than growing unbounded.
const MaxResponseBytes = 10 * 1024 * 1024 // 10 MiB

// Client issues outbound requests through a shared, connection-pooled
// transport. A single Client is safe for concurrent use by every executor
// goroutine.
type Client struct {
	http *http.Client
}

// New builds a Client with a transport tuned for many concurrent, short-lived
// outbound requests, mirroring the transport settings the teacher's
// worker.Pool and loadtest.go both use (shared connections, HTTP/2 attempt,
// generous per-host connection limits).
func New(maxConns int) *Client {
	if maxConns <= 0 {
		maxConns = 512
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          maxConns * 2,
		MaxIdleConnsPerHost:   maxConns,
		MaxConnsPerHost:       maxConns * 2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{http: &http.Client{Transport: transport}}
}

// Error is a transport-level failure tagged with the closed error taxonomy
// from spec.md §4.1/§7: InvalidUrl, RequestFailed, SendFailed, ReceiveFailed,
// ReadFailed, Timeout.
type Error struct {
	Kind job.ErrorKind
	Err  error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func newErr(kind job.ErrorKind, err error) *Error { return &Error{Kind: kind, Err: err} }

// Request issues one HTTP request and returns (status, body, elapsed) on
// success, or a tagged *Error on failure. elapsed is measured around the
// full call, even on error, per spec.md §4.1.
func (c *Client) Request(ctx context.Context, method job.Method, rawURL string, headers http.Header, body []byte, timeout time.Duration) (status int, respBody []byte, elapsed time.Duration, err error) {
	start := time.Now()
	defer func() { elapsed = time.Since(start) }()

	u, perr := url.Parse(rawURL)
	if perr != nil {
		return 0, nil, 0, newErr(job.ErrInvalidURL, perr)
	}
	if !u.IsAbs() || u.Host == "" {
		return 0, nil, 0, newErr(job.ErrInvalidURL, errors.New("url is not absolute or has no host"))
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, rerr := http.NewRequestWithContext(reqCtx, string(method), rawURL, bodyReader)
	if rerr != nil {
		return 0, nil, 0, newErr(job.ErrRequestFailed, rerr)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, derr := c.http.Do(req)
	if derr != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return 0, nil, 0, newErr(job.ErrTimeout, derr)
		}
		return 0, nil, 0, newErr(job.ErrSendFailed, derr)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, MaxResponseBytes+1)
	buf, rerr2 := io.ReadAll(limited)
	if rerr2 != nil {
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return 0, nil, 0, newErr(job.ErrTimeout, rerr2)
		}
		return 0, nil, 0, newErr(job.ErrReceiveFailed, rerr2)
	}
	if len(buf) > MaxResponseBytes {
		return 0, nil, 0, newErr(job.ErrReadFailed, errors.New("response body exceeds 10 MiB cap"))
	}

	return resp.StatusCode, buf, 0, nil
}
