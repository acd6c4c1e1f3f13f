package tracker

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = srv.URL
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Millisecond
	}
	c, err := New(cfg, nil)
	require.NoError(t, err)
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "jira.example.com", "ftp://x", "http://"} {
		_, err := New(Config{BaseURL: raw}, nil)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}
}

func TestGet_RetriesTransient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	status, body, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestGet_ExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{MaxRetries: 2})
	status, _, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, int32(3), hits.Load())
}

func TestGet_NoRetryOnClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	status, _, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGet_RetryDisabled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{MaxRetries: -1})
	_, _, err := c.Get(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestGet_CancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{Backoff: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := c.Get(ctx, "/x", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGet_Credentials(t *testing.T) {
	var got atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{Username: "alice", Password: "pw"})
	_, _, err := c.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "Basic YWxpY2U6cHc=", got.Load())

	c = newTestClient(t, srv, Config{Username: "alice", Token: "tok"})
	_, _, err = c.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", got.Load())
}

func TestGet_BasePathPrefix(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path + "?" + r.URL.RawQuery)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL + "/wiki/"}, nil)
	require.NoError(t, err)
	_, _, err = c.Get(context.Background(), "/rest/api/space", map[string][]string{"limit": {"5"}})
	require.NoError(t, err)
	assert.Equal(t, "/wiki/rest/api/space?limit=5", path.Load())
}

func TestGetJSON_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	var v map[string]any
	err := c.GetJSON(context.Background(), "/secret", nil, &v)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Code)
	assert.Equal(t, "/secret", se.Path)
}

func TestGetJSON_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{})
	var v map[string]any
	assert.Error(t, c.GetJSON(context.Background(), "/x", nil, &v))
}

func TestLogin_FallsBackToSecondPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wiki/rest/api/user/current" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"displayName":"Alice Martin"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{Username: "alice", Password: "pw"})
	name, err := NewConfluence(c).Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Alice Martin", name)
}

func TestLogin_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, Config{Username: "alice", Password: "bad"})
	_, err := NewJira(c).Login(context.Background())
	assert.ErrorIs(t, err, ErrLoginFailed)

	anon := newTestClient(t, srv, Config{})
	_, err = NewJira(anon).Login(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)

	name, err := NewConfluence(anon).Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anonymous", name)
}
