package beacon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"
)

// Transport performs one HTTP exchange. It returns the status and body
// of the response, or an error when no status was observed.
type Transport interface {
	Do(ctx context.Context, method, url string, body []byte, header http.Header) (int, []byte, error)
}

// HTTPTransport is the default Transport, backed by net/http.
type HTTPTransport struct {
	httpClient *http.Client
}

// NewHTTPTransport constructs a transport whose requests time out after timeout.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do sends the request and reads the whole response body.
func (t *HTTPTransport) Do(ctx context.Context, method, url string, body []byte, header http.Header) (int, []byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	for k, values := range header {
		for _, v := range values {
			request.Header.Add(k, v)
		}
	}

	resp, err := t.httpClient.Do(request)
	if err != nil {
		return 0, nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, nil
	}
	return resp.StatusCode, respBody, nil
}

// OutcomeKind classifies the result of one delivery attempt.
type OutcomeKind int

const (
	// OutcomeSuccess is any status from 100 to 399.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeClientError is a 400: the batch is malformed and dropped.
	OutcomeClientError
	// OutcomeAuthError is a 403: the batch is dropped and the client disabled.
	OutcomeAuthError
	// OutcomeConflict is a 409: the collector already has the batch.
	OutcomeConflict
	// OutcomeServerError is any other status. The batch is retried.
	OutcomeServerError
	// OutcomeNetworkError means no status was observed. The batch is retried.
	OutcomeNetworkError
	// OutcomeTimeout means the request timed out. The batch is retried.
	OutcomeTimeout
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientError:
		return "client_error"
	case OutcomeAuthError:
		return "auth_error"
	case OutcomeConflict:
		return "conflict"
	case OutcomeServerError:
		return "server_error"
	case OutcomeNetworkError:
		return "network_error"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is a classified transport result.
type Outcome struct {
	Kind   OutcomeKind
	Status int
	Body   []byte
	Err    error
}

// Terminal reports whether the batch leaves the queue after this outcome.
func (o Outcome) Terminal() bool {
	switch o.Kind {
	case OutcomeSuccess, OutcomeClientError, OutcomeAuthError, OutcomeConflict:
		return true
	}
	return false
}

// legacyNoContent is the status some old stacks report for a 204.
const legacyNoContent = 1223

// classify maps a transport result onto an Outcome.
func classify(status int, body []byte, err error) Outcome {
	if err != nil {
		if isTimeout(err) {
			return Outcome{Kind: OutcomeTimeout, Err: err}
		}
		return Outcome{Kind: OutcomeNetworkError, Err: err}
	}

	if status == legacyNoContent {
		status = http.StatusNoContent
	}
	out := Outcome{Status: status, Body: body}
	switch {
	case status < 100 || status > 599:
		out.Kind = OutcomeServerError
	case status <= 399:
		out.Kind = OutcomeSuccess
	case status == http.StatusBadRequest:
		out.Kind = OutcomeClientError
	case status == http.StatusForbidden:
		out.Kind = OutcomeAuthError
	case status == http.StatusConflict:
		out.Kind = OutcomeConflict
	default:
		out.Kind = OutcomeServerError
	}
	return out
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
