// Package inet executes HTTP requests against the vendor backend.
//
// A [Transport] owns a cookie jar and never follows redirects on its own. The login flow needs to
// inspect every hop, and the final redirect targets a custom URL scheme that cannot be fetched.
package inet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/connector"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
)

// DefaultTimeout bounds a single HTTP exchange.
var DefaultTimeout = 30 * time.Second

var ErrResponseTooLarge = protocol.NewError("response exceeds maximum length", true, false)

// HttpError is returned for responses with a 4xx or 5xx status.
type HttpError struct {
	Code       int
	Message    string
	RetryAfter time.Duration
}

func (e *HttpError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Code)
	}
	return fmt.Sprintf("%s: %s", http.StatusText(e.Code), e.Message)
}

func (e *HttpError) MayHaveSucceeded() bool {
	if e.Code >= 400 && e.Code < 500 {
		return false
	}
	return e.Code != http.StatusServiceUnavailable
}

func (e *HttpError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests ||
		e.Code == http.StatusRequestTimeout ||
		e.Code >= 500
}

// NetworkError wraps failures that prevented a response from being received.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// MayHaveSucceeded is true for requests that can change state, because the request may have
// reached the server before the connection failed.
func (e *NetworkError) MayHaveSucceeded() bool {
	return e.Method != http.MethodGet && e.Method != http.MethodHead
}

func (e *NetworkError) Temporary() bool {
	return true
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *http.Request
}

// IsRedirect returns true if the response carries a 3xx status.
func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

// Location returns the redirect target resolved against the request URL, or nil if the response
// has no Location header.
func (r *Response) Location() (*url.URL, error) {
	loc := r.Header.Get("Location")
	if loc == "" {
		return nil, nil
	}
	target, err := url.Parse(loc)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect location '%s': %w", loc, err)
	}
	if r.Request != nil && r.Request.URL != nil {
		target = r.Request.URL.ResolveReference(target)
	}
	return target, nil
}

// Err returns an *HttpError if the response status is 4xx or 5xx.
func (r *Response) Err() error {
	if r.StatusCode < 400 {
		return nil
	}
	msg := strings.TrimSpace(string(r.Body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &HttpError{Code: r.StatusCode, Message: msg, RetryAfter: RetryAfter(r.Header)}
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date. Returns zero if the
// header is absent or invalid.
func RetryAfter(h http.Header) time.Duration {
	value := h.Get("Retry-After")
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// Transport performs requests with a private cookie jar and manual redirect handling.
type Transport struct {
	UserAgent string

	jar    *resettableJar
	client *http.Client
}

func newJar() http.CookieJar {
	// cookiejar.New only fails if Options is invalid.
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		panic(err)
	}
	return jar
}

// resettableJar is installed on the client once. Reset swaps the underlying jar, so requests in
// flight never observe a change to http.Client.Jar.
type resettableJar struct {
	lock sync.RWMutex
	jar  http.CookieJar
}

func (j *resettableJar) current() http.CookieJar {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.jar
}

func (j *resettableJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.current().SetCookies(u, cookies)
}

func (j *resettableJar) Cookies(u *url.URL) []*http.Cookie {
	return j.current().Cookies(u)
}

func (j *resettableJar) Reset() {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.jar = newJar()
}

// NewTransport creates a Transport. If client is nil a new client is created; otherwise a copy of
// client is used, so the caller's client is left untouched. The client's cookie jar is used as the
// initial jar if present. Redirects are returned to the caller instead of being followed.
func NewTransport(client *http.Client, userAgent string) *Transport {
	var c http.Client
	if client != nil {
		c = *client
	} else {
		c.Timeout = DefaultTimeout
	}
	jar := &resettableJar{jar: c.Jar}
	if jar.jar == nil {
		jar.jar = newJar()
	}
	c.Jar = jar
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if userAgent == "" {
		userAgent = connector.AppUserAgent
	}
	return &Transport{UserAgent: userAgent, jar: jar, client: &c}
}

// ClearCookies discards all cookies. The login flow starts from an empty jar. It is safe to call
// while other requests are in flight.
func (t *Transport) ClearCookies() {
	t.jar.Reset()
}

// Cookies returns the cookies that would be sent to u.
func (t *Transport) Cookies(u *url.URL) []*http.Cookie {
	return t.jar.Cookies(u)
}

// Do sends req and reads the complete response body. Non-2xx responses are not converted to
// errors; use [Response.Err] to classify them.
func (t *Transport) Do(req *http.Request) (*Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	log.Debug("%s %s", req.Method, req.URL.Redacted())
	result, err := t.client.Do(req)
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	defer result.Body.Close()

	body, err := io.ReadAll(io.LimitReader(result.Body, connector.MaxResponseLength+1))
	if err != nil {
		return nil, &NetworkError{Method: req.Method, URL: req.URL.Redacted(), Err: err}
	}
	if len(body) == connector.MaxResponseLength+1 {
		return nil, ErrResponseTooLarge
	}
	log.Debug("Server returned %d: %s (%d bytes)", result.StatusCode, http.StatusText(result.StatusCode), len(body))
	return &Response{
		StatusCode: result.StatusCode,
		Header:     result.Header,
		Body:       body,
		Request:    req,
	}, nil
}

// Get fetches rawURL with the provided headers.
func (t *Transport) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error constructing request to %s: %w", rawURL, err)
	}
	copyHeader(req.Header, header)
	return t.Do(req)
}

// PostForm submits form to rawURL as application/x-www-form-urlencoded.
func (t *Transport) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("error constructing request to %s: %w", rawURL, err)
	}
	copyHeader(req.Header, header)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.Do(req)
}

// Send issues a request with an optional JSON body.
func (t *Transport) Send(ctx context.Context, method, rawURL string, body []byte, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("error constructing request to %s: %w", rawURL, err)
	}
	copyHeader(req.Header, header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return t.Do(req)
}

func copyHeader(dst, src http.Header) {
	for name, values := range src {
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// IsNetworkError returns true if err was caused by a failed exchange rather than an HTTP status.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
