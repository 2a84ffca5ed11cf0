package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/connector"
	"github.com/carnet-go/vehicle-command/pkg/connector/inet"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
	"github.com/carnet-go/vehicle-command/pkg/token"
)

// Retry and backoff constants.
const (
	maxAttempts    = 3
	baseBackoff    = 1 * time.Second
	maxBackoff     = 10 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
)

// tokenSource is satisfied by *session.Manager.
type tokenSource interface {
	Token(ctx context.Context) (*token.Set, error)
	Invalidate(stale *token.Set)
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// retryable reports whether a response with status code may be retried for method. Command
// submissions (POST) are only retried when the backend certainly did not execute them.
func retryable(method string, code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	case http.StatusRequestTimeout:
		return idempotent(method)
	}
	return code >= 500 && idempotent(method)
}

// calcBackoff computes exponential backoff with ±25% jitter. attempt is zero-based.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	return time.Duration(backoff + jitter)
}

// retryBackoff prefers the server's Retry-After hint, capped at maxBackoff.
func retryBackoff(rsp *inet.Response, attempt int) time.Duration {
	if hint := inet.RetryAfter(rsp.Header); hint > 0 {
		if hint > maxBackoff {
			return maxBackoff
		}
		return hint
	}
	return calcBackoff(attempt)
}

func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *Account) url(endpoint string) string {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		return endpoint
	}
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return a.BaseURL + endpoint
}

func errorMessage(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 256 {
		msg = msg[:256]
	}
	return msg
}

// do sends an authenticated request.
//
// A 401 response invalidates the session and the request is retried once with a renewed token.
// 429 and 503 responses are retried with exponential backoff, as are other 5xx responses to
// idempotent requests. A POST that fails with another 5xx may have been executed and is returned as
// *protocol.TransientApiError without retrying. Other 4xx responses are returned immediately as
// *protocol.PermanentApiError.
func (a *Account) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	target := a.url(endpoint)
	reauthenticated := false
	attempt := 0
	for {
		set, err := a.tokens.Token(ctx)
		if err != nil {
			a.status.recordAuthFailure(err)
			return nil, err
		}
		header := connector.APIHeaders(a.UserAgent)
		header.Set("Authorization", set.AuthorizationHeader())
		header.Set("x-request-id", uuid.NewString())

		attempt++
		rsp, err := a.transport.Send(ctx, method, target, body, header)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.status.record(endpoint, 0)
			if errors.Is(err, inet.ErrResponseTooLarge) {
				return nil, &protocol.ProtocolError{Endpoint: endpoint, Err: err, PossibleSuccess: method != http.MethodGet}
			}
			if idempotent(method) && attempt < maxAttempts {
				backoff := calcBackoff(attempt - 1)
				log.Warning("Retrying %s %s after network error in %s: %s", method, endpoint, backoff, err)
				if err := a.sleepFunc(ctx, backoff); err != nil {
					return nil, err
				}
				continue
			}
			return nil, &protocol.TransientApiError{Endpoint: endpoint, Attempts: attempt, Err: err}
		}
		a.status.record(endpoint, rsp.StatusCode)

		switch {
		case rsp.StatusCode >= 200 && rsp.StatusCode < 300:
			if rsp.StatusCode == http.StatusNoContent {
				return nil, nil
			}
			return rsp.Body, nil

		case rsp.StatusCode == http.StatusUnauthorized:
			if reauthenticated {
				return nil, &protocol.PermanentApiError{StatusCode: rsp.StatusCode, Endpoint: endpoint, Message: "rejected renewed token"}
			}
			log.Info("Backend rejected token for %s, renewing session", endpoint)
			a.tokens.Invalidate(set)
			reauthenticated = true
			attempt--

		case retryable(method, rsp.StatusCode):
			if attempt >= maxAttempts {
				return nil, &protocol.TransientApiError{
					StatusCode: rsp.StatusCode,
					Endpoint:   endpoint,
					Attempts:   attempt,
					Message:    errorMessage(rsp.Body),
				}
			}
			backoff := retryBackoff(rsp, attempt-1)
			log.Warning("Retrying %s %s after HTTP %d in %s", method, endpoint, rsp.StatusCode, backoff)
			if err := a.sleepFunc(ctx, backoff); err != nil {
				return nil, err
			}

		case rsp.StatusCode >= 500:
			return nil, &protocol.TransientApiError{
				StatusCode: rsp.StatusCode,
				Endpoint:   endpoint,
				Attempts:   attempt,
				Message:    errorMessage(rsp.Body),
			}

		default:
			return nil, &protocol.PermanentApiError{StatusCode: rsp.StatusCode, Endpoint: endpoint, Message: errorMessage(rsp.Body)}
		}
	}
}

// Get sends an HTTP GET request to endpoint.
//
// The endpoint should contain only the path (e.g., "/vehicle/v2/vehicles"); the host is determined
// by a.BaseURL. Returns nil for 204 responses.
func (a *Account) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return a.do(ctx, http.MethodGet, endpoint, nil)
}

// Post sends an HTTP POST request with a JSON body to endpoint.
func (a *Account) Post(ctx context.Context, endpoint string, data []byte) ([]byte, error) {
	return a.do(ctx, http.MethodPost, endpoint, data)
}

// Put sends an HTTP PUT request with a JSON body to endpoint.
func (a *Account) Put(ctx context.Context, endpoint string, data []byte) ([]byte, error) {
	return a.do(ctx, http.MethodPut, endpoint, data)
}

// Delete sends an HTTP DELETE request to endpoint.
func (a *Account) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return a.do(ctx, http.MethodDelete, endpoint, nil)
}

func (a *Account) sendJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return fmt.Errorf("error encoding request to %s: %w", endpoint, err)
		}
	}
	rsp, err := a.do(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if out == nil || len(rsp) == 0 {
		return nil
	}
	if err := json.Unmarshal(rsp, out); err != nil {
		return &protocol.ProtocolError{Endpoint: endpoint, Err: err, PossibleSuccess: method != http.MethodGet}
	}
	return nil
}

// GetJSON fetches endpoint and decodes the response into out.
func (a *Account) GetJSON(ctx context.Context, endpoint string, out interface{}) error {
	return a.sendJSON(ctx, http.MethodGet, endpoint, nil, out)
}

// PostJSON posts in as JSON and decodes the response into out, which may be nil.
func (a *Account) PostJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	return a.sendJSON(ctx, http.MethodPost, endpoint, in, out)
}

// PutJSON puts in as JSON and decodes the response into out, which may be nil.
func (a *Account) PutJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	return a.sendJSON(ctx, http.MethodPut, endpoint, in, out)
}
