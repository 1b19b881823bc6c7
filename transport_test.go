package beacon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		err      error
		want     OutcomeKind
		terminal bool
	}{
		{"ok", 200, nil, OutcomeSuccess, true},
		{"no content", 204, nil, OutcomeSuccess, true},
		{"legacy no content", 1223, nil, OutcomeSuccess, true},
		{"redirect", 302, nil, OutcomeSuccess, true},
		{"informational", 100, nil, OutcomeSuccess, true},
		{"bad request", 400, nil, OutcomeClientError, true},
		{"forbidden", 403, nil, OutcomeAuthError, true},
		{"conflict", 409, nil, OutcomeConflict, true},
		{"not found", 404, nil, OutcomeServerError, false},
		{"too many requests", 429, nil, OutcomeServerError, false},
		{"server error", 503, nil, OutcomeServerError, false},
		{"zero status", 0, nil, OutcomeServerError, false},
		{"out of range", 700, nil, OutcomeServerError, false},
		{"network", 0, errors.New("connection refused"), OutcomeNetworkError, false},
		{"explicit timeout", 0, ErrTimeout, OutcomeTimeout, false},
		{"deadline", 0, context.DeadlineExceeded, OutcomeTimeout, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classify(tt.status, nil, tt.err)
			assert.Equal(t, tt.want, out.Kind, "kind %s", out.Kind)
			assert.Equal(t, tt.terminal, out.Terminal())
		})
	}
}

func TestClassifyNormalizesLegacyStatus(t *testing.T) {
	out := classify(1223, nil, nil)
	assert.Equal(t, http.StatusNoContent, out.Status)
}

func TestHTTPTransportDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"events":[]}`, string(body))
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte("duplicate"))
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	status, body, err := NewHTTPTransport(time.Second).Do(context.Background(), http.MethodPost, srv.URL, []byte(`{"events":[]}`), header)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "duplicate", string(body))
}

func TestHTTPTransportTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	status, body, err := NewHTTPTransport(50*time.Millisecond).Do(context.Background(), http.MethodPost, srv.URL, nil, nil)
	require.Error(t, err)
	assert.Equal(t, OutcomeTimeout, classify(status, body, err).Kind)
}

func TestHTTPTransportNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	status, body, err := NewHTTPTransport(time.Second).Do(context.Background(), http.MethodPost, url, nil, nil)
	require.Error(t, err)
	assert.Equal(t, OutcomeNetworkError, classify(status, body, err).Kind)
}
