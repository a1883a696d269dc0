package httpclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/flowgen/internal/flowgen/httpclient"
)

func TestClient_SimpleGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	c := httpclient.New()
	res, err := c.Do(context.Background(), httpclient.Request{
		Method:        http.MethodGet,
		URL:           srv.URL,
		RedirectLimit: 5,
	}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "hello", string(res.Body))
	assert.Equal(t, "yes", res.Headers.Get("X-Test"))
}

func TestClient_FollowsRedirectsWithinLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusFound)
			return
		}
		w.Write([]byte("arrived"))
	}))
	defer srv.Close()

	c := httpclient.New()
	res, err := c.Do(context.Background(), httpclient.Request{
		Method:        http.MethodGet,
		URL:           srv.URL + "/start",
		RedirectLimit: 5,
	}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "arrived", string(res.Body))
}

func TestClient_RedirectLimitExceeded(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/loop", http.StatusFound)
	}))
	defer srv.Close()

	c := httpclient.New()
	_, err := c.Do(context.Background(), httpclient.Request{
		Method:        http.MethodGet,
		URL:           srv.URL + "/loop",
		RedirectLimit: 1,
	}, 5*time.Second)
	require.Error(t, err)
	assert.True(t, httpclient.IsRedirectLimitExceeded(err))
}

func TestClient_TransportErrorOnUnreachableHost(t *testing.T) {
	c := httpclient.New()
	_, err := c.Do(context.Background(), httpclient.Request{
		Method:        http.MethodGet,
		URL:           "http://127.0.0.1:1",
		RedirectLimit: 5,
	}, 2*time.Second)
	assert.Error(t, err)
}

func TestClient_NonSuccessStatusStillReturnsResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	c := httpclient.New()
	res, err := c.Do(context.Background(), httpclient.Request{
		Method:        http.MethodGet,
		URL:           srv.URL,
		RedirectLimit: 5,
	}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "boom", string(res.Body))
}

func TestNew_TransportOptionsAreApplied(t *testing.T) {
	c := httpclient.New(httpclient.TransportOptions{
		MaxIdleConns:        7,
		MaxIdleConnsPerHost: 3,
		IdleConnTimeout:     9 * time.Second,
	})

	transport := c.Transport()
	assert.Equal(t, 7, transport.MaxIdleConns)
	assert.Equal(t, 3, transport.MaxIdleConnsPerHost)
	assert.Equal(t, 9*time.Second, transport.IdleConnTimeout)
}

func TestClient_PostBodyRecordsUploadBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := httpclient.New()
	res, err := c.Do(context.Background(), httpclient.Request{
		Method:        http.MethodPost,
		URL:           srv.URL,
		Body:          []byte("payload-bytes"),
		RedirectLimit: 5,
	}, 5*time.Second)
	require.NoError(t, err)
	assert.EqualValues(t, len("payload-bytes"), res.UploadBytes)
}
