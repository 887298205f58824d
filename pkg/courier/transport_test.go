package courier_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasil/courierbridge/pkg/courier"
)

func newTestTransport(code string) *courier.RetryingClient {
	return courier.NewRetryingClient(courier.RetryingClientConfig{
		CourierCode: code,
		Timeout:     5 * time.Second,
		Interval:    time.Millisecond,
	})
}

func TestRetryingClient_RecoversFromServerErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestTransport("smsa")
	resp, err := client.Do(context.Background(), http.MethodPost, srv.URL, nil, []byte(`{}`))

	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts), "two 502s then 200 must take exactly 3 attempts")
}

func TestRetryingClient_ExhaustsBudget(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	defer srv.Close()

	client := newTestTransport("aramex")
	_, err := client.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)

	require.Error(t, err)
	assert.True(t, courier.IsAPIError(err))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestRetryingClient_ClientErrorNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestTransport("smsa")
	resp, err := client.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)

	// The 404 response is handed back after a single attempt; the adapter
	// converts it to an APIError.
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestRetryingClient_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	client := newTestTransport("smsa")
	_, err := client.Do(context.Background(), http.MethodGet, srv.URL, nil, nil)

	require.Error(t, err)
	assert.True(t, courier.IsAPIError(err))
}

func TestRetryingClient_SendsHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	header := http.Header{}
	header.Set("Content-Type", "application/json")

	client := newTestTransport("smsa")
	resp, err := client.Do(context.Background(), http.MethodPost, srv.URL, header, []byte(`{"refNo":"REF1"}`))

	require.NoError(t, err)
	resp.Body.Close()
}
