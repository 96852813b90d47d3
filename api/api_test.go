package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kkv/fridge"
)

func newTestServer(t *testing.T) (*httptest.Server, *fridge.Fridge) {
	t.Helper()

	f := fridge.New(fridge.Config{})
	a := &Api{Fridge: f, DataDir: t.TempDir()}
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return srv, f
}

func do(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrResponse {
	t.Helper()

	var e ErrResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, resp.StatusCode, e.HTTPStatusCode)
	return e
}

func TestApi_Lifecycle(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/destroy", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	e := decodeError(t, resp)
	assert.Equal(t, fridge.KindPermissionDenied, e.Kind)
	assert.Equal(t, 1, e.Errno)

	resp = do(t, http.MethodPost, srv.URL+"/init", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIdHeader))

	resp = do(t, http.MethodPost, srv.URL+"/init?flags=0", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, http.MethodPut, srv.URL+"/entries/1", []byte("TESTING"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/destroy", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d DestroyResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.Equal(t, 1, d.Removed)
}

func TestApi_PutGet(t *testing.T) {
	t.Parallel()

	srv, f := newTestServer(t)
	require.NoError(t, f.Init(0))

	resp := do(t, http.MethodPut, srv.URL+"/entries/-7", []byte("TESTINGLENGTH"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/entries/-7?length=3", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "TES", string(body))

	resp = do(t, http.MethodGet, srv.URL+"/entries/-7?length=30&flags=0", nil)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "TESTINGLENGTH", string(body))

	resp = do(t, http.MethodGet, srv.URL+"/entries/8?length=30", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, fridge.KindNotFound, decodeError(t, resp).Kind)
}

func TestApi_BadRequests(t *testing.T) {
	t.Parallel()

	srv, f := newTestServer(t)
	require.NoError(t, f.Init(0))

	tests := []struct {
		name   string
		method string
		path   string
		kind   fridge.Kind
	}{
		{"init unknown flag", http.MethodPost, "/init?flags=2", fridge.KindInvalidFlag},
		{"destroy negative flag", http.MethodPost, "/destroy?flags=-1", fridge.KindInvalidFlag},
		{"put flag not a number", http.MethodPut, "/entries/1?flags=block", fridge.KindInvalidFlag},
		{"get unknown flag", http.MethodGet, "/entries/1?length=0&flags=100", fridge.KindInvalidFlag},
		{"get flag checked before length", http.MethodGet, "/entries/1?flags=100", fridge.KindInvalidFlag},
		{"put flag checked before key", http.MethodPut, "/entries/notakey?flags=7", fridge.KindInvalidFlag},
		{"get flag checked before key", http.MethodGet, "/entries/notakey?length=1&flags=7", fridge.KindInvalidFlag},
		{"key not a number", http.MethodGet, "/entries/abc?length=1", fridge.KindInvalidArgument},
		{"key overflows", http.MethodPut, "/entries/99999999999999999999", fridge.KindInvalidArgument},
		{"missing length", http.MethodGet, "/entries/1", fridge.KindInvalidArgument},
		{"negative length", http.MethodGet, "/entries/1?length=-1", fridge.KindInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, tt.method, srv.URL+tt.path, nil)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.kind, decodeError(t, resp).Kind)
		})
	}

	assert.Equal(t, "active", f.Stats().State, "rejected requests must not change the state")
}

func TestApi_BlockingGet(t *testing.T) {
	t.Parallel()

	srv, f := newTestServer(t)
	require.NoError(t, f.Init(0))

	done := make(chan string, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/entries/48879?length=200&flags=1")
		if err != nil {
			done <- err.Error()
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		done <- string(body)
	}()

	require.Eventually(t, func() bool { return f.Stats().Waiters == 1 }, 5*time.Second, time.Millisecond)
	require.NoError(t, f.Put(48879, []byte("woken"), 0))

	select {
	case got := <-done:
		assert.Equal(t, "woken", got)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "blocking get was not released")
	}
}

func TestApi_ClientGoneInterruptsGet(t *testing.T) {
	t.Parallel()

	srv, f := newTestServer(t)
	require.NoError(t, f.Init(0))

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/entries/1?length=1&flags=1", nil)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
		}
		errCh <- err
	}()

	require.Eventually(t, func() bool { return f.Stats().Waiters == 1 }, 5*time.Second, time.Millisecond)
	cancel()
	require.Error(t, <-errCh)
	require.Eventually(t, func() bool { return f.Stats().Waiters == 0 }, 5*time.Second, time.Millisecond,
		"the server side get must be interrupted once the client is gone")
}

func TestApi_Metrics(t *testing.T) {
	t.Parallel()

	srv, f := newTestServer(t)
	require.NoError(t, f.Init(0))
	require.NoError(t, f.Put(1, []byte("abc"), 0))

	resp := do(t, http.MethodGet, srv.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))

	var m MetricsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Equal(t, "active", m.Store.State)
	assert.Equal(t, 1, m.Store.Entries)
	assert.Equal(t, int64(3), m.Store.Bytes)
	assert.NotNil(t, m.Host)
}

func TestApi_PutBodyBoundedByMaxBytes(t *testing.T) {
	t.Parallel()

	f := fridge.New(fridge.Config{MaxBytes: 8})
	srv := httptest.NewServer((&Api{Fridge: f, DataDir: t.TempDir()}).Handler())
	t.Cleanup(srv.Close)
	require.NoError(t, f.Init(0))

	resp := do(t, http.MethodPut, srv.URL+"/entries/1", bytes.Repeat([]byte("x"), 64))
	require.Equal(t, http.StatusInsufficientStorage, resp.StatusCode)
	assert.Equal(t, fridge.KindOutOfMemory, decodeError(t, resp).Kind)
	assert.Equal(t, 0, f.Stats().Entries)

	resp = do(t, http.MethodPut, srv.URL+"/entries/1", []byte("12345678"))
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int64(8), f.Stats().Bytes)
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusForbidden, StatusFor(fridge.KindPermissionDenied))
	assert.Equal(t, http.StatusInsufficientStorage, StatusFor(fridge.KindOutOfMemory))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(fridge.Kind("Other")))
}

func TestApi_ServeUnixSocket(t *testing.T) {
	t.Parallel()

	// Unix socket paths are limited in length, stay short
	dir, err := os.MkdirTemp("", "kkv")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	sock := filepath.Join(dir, "s")

	f := fridge.New(fridge.Config{})
	a := &Api{Network: "unix", Address: sock, Fridge: f, DataDir: dir}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Serve(ctx) }()

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", sock)
		},
	}}

	require.Eventually(t, func() bool {
		resp, err := client.Post("http://kkvd/init", "", nil)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 10*time.Millisecond)

	// A get blocked at shutdown must not hold the server up
	blocked := make(chan error, 1)
	go func() {
		resp, err := client.Get("http://kkvd/entries/1?length=1&flags=1")
		if err == nil {
			resp.Body.Close()
		}
		blocked <- err
	}()
	require.Eventually(t, func() bool { return f.Stats().Waiters == 1 }, 5*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		require.FailNow(t, "server did not shut down")
	}
	<-blocked
	assert.Equal(t, int64(0), f.Stats().Waiters)
}
