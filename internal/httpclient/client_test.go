package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PostJSON(t *testing.T) {
	signer, err := NewSigner(ModeHMAC, testSecret, Headers{})
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := signer.Verify(r, 0); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var in map[string]string
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"echo":"` + in["username"] + `"}`))
	}))
	defer srv.Close()

	c := New(signer, Options{
		Timeout:       5 * time.Second,
		MaxRetries:    2,
		RetryDelay:    time.Millisecond,
		RetryMaxDelay: time.Millisecond,
	})

	resp, err := c.PostJSON(context.Background(), srv.URL, map[string]string{"username": "alice"})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.JSONEq(t, `{"echo":"alice"}`, string(resp.Body))
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_PostJSON_Non2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(strings.Repeat("x", 300)))
	}))
	defer srv.Close()

	c := New(nil, Options{Timeout: 5 * time.Second})
	resp, err := c.PostJSON(context.Background(), srv.URL, struct{}{})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Len(t, resp.Preview(200), 203)
}

func TestClient_PostJSON_Unencodable(t *testing.T) {
	c := New(nil, Options{})
	_, err := c.PostJSON(context.Background(), "http://127.0.0.1:1", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encode request")
}
