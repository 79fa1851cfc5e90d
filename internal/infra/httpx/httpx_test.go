package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_ProxyConfigured(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:8080")
	require.NoError(t, err)

	tr, ok := c.Transport.(*Transport)
	require.True(t, ok, "期望 *Transport，实际 %T", c.Transport)
	base := tr.Base.(*http.Transport)

	req, _ := http.NewRequest(http.MethodGet, "https://www.nasm.us/", nil)
	u, err := base.Proxy(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "127.0.0.1:8080", u.Host)
}

func TestNewClient_InvalidProxy(t *testing.T) {
	_, err := NewClient("127.0.0.1")
	assert.Error(t, err)
}

func TestTransport_RetriesGatewayErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := &http.Client{Transport: &Transport{Base: http.DefaultTransport, RetryMax: 2}}
	b, err := Get(context.Background(), c, srv.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(b))
	assert.Equal(t, int32(3), hits.Load())
}

func TestTransport_GivesUpAfterRetryMax(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := &http.Client{Transport: &Transport{Base: http.DefaultTransport, RetryMax: 1}}
	_, err := Get(context.Background(), c, srv.URL, 0)

	var se *StatusError
	require.True(t, errors.As(err, &se), "err=%v", err)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestGet_NotFoundNoRetry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := &http.Client{Transport: &Transport{Base: http.DefaultTransport, RetryMax: 2}}
	_, err := Get(context.Background(), c, srv.URL, 0)

	var se *StatusError
	require.True(t, errors.As(err, &se), "err=%v", err)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGet_Limit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	_, err := Get(context.Background(), srv.Client(), srv.URL, 10)
	assert.Error(t, err)

	b, err := Get(context.Background(), srv.Client(), srv.URL, 100)
	require.NoError(t, err)
	assert.Len(t, b, 100)
}
