package httpclient

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func fixedSigner(t *testing.T, mode Mode, headers Headers, at time.Time) *Signer {
	t.Helper()
	s, err := NewSigner(mode, testSecret, headers)
	require.NoError(t, err)
	s.now = func() time.Time { return at }
	s.nonce = func() string { return "nonce-1" }
	return s
}

func newRequest(t *testing.T, url, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	return req
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeNone, false},
		{"none", ModeNone, false},
		{" HMAC ", ModeHMAC, false},
		{"simple", ModeSimple, false},
		{"oauth", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewSigner_Validation(t *testing.T) {
	_, err := NewSigner(ModeSimple, "", Headers{})
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = NewSigner(ModeHMAC, "", Headers{})
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = NewSigner("digest", testSecret, Headers{})
	assert.ErrorIs(t, err, ErrUnsupportedMode)

	s, err := NewSigner("", "", Headers{})
	require.NoError(t, err)
	assert.Equal(t, ModeNone, s.Mode())
}

func TestSigner_None(t *testing.T) {
	s, err := NewSigner(ModeNone, "", Headers{})
	require.NoError(t, err)

	req := newRequest(t, "http://example.com/api", "body")
	require.NoError(t, s.Sign(req, []byte("body")))
	assert.Empty(t, req.Header)

	var nilSigner *Signer
	require.NoError(t, nilSigner.Sign(req, nil))
	assert.Empty(t, req.Header)
}

func TestSigner_Simple(t *testing.T) {
	tests := []struct {
		name    string
		headers Headers
		want    string
	}{
		{"default header", Headers{}, "X-API-Secret"},
		{"custom header", Headers{Secret: "X-Custom-Auth"}, "X-Custom-Auth"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := fixedSigner(t, ModeSimple, tt.headers, time.Now())
			req := newRequest(t, "http://example.com/api", "")
			require.NoError(t, s.Sign(req, nil))
			assert.Equal(t, testSecret, req.Header.Get(tt.want))
			assert.Empty(t, req.Header.Get("X-Signature"))
		})
	}
}

func TestSigner_HMACHeaders(t *testing.T) {
	at := time.Unix(1700000000, 0)
	s := fixedSigner(t, ModeHMAC, Headers{}, at)

	body := `{"username":"alice","password":"s3cret"}`
	req := newRequest(t, "http://example.com/api/auth?x=1", body)
	require.NoError(t, s.Sign(req, []byte(body)))

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("1700000000" + "POST" + "/api/auth?x=1" + body))

	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), req.Header.Get("X-Signature"))
	assert.Equal(t, "1700000000", req.Header.Get("X-Timestamp"))
	assert.Equal(t, "nonce-1", req.Header.Get("X-Nonce"))
}

func TestSigner_VerifyRoundTrip(t *testing.T) {
	at := time.Unix(1700000000, 0)
	s := fixedSigner(t, ModeHMAC, Headers{}, at)

	body := `{"username":"alice"}`
	req := newRequest(t, "http://example.com/api/auth", body)
	require.NoError(t, s.Sign(req, []byte(body)))

	require.NoError(t, s.Verify(req, 0))

	// body stays readable after verification
	got, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestSigner_VerifyFailures(t *testing.T) {
	at := time.Unix(1700000000, 0)

	signed := func(t *testing.T, body string) *http.Request {
		s := fixedSigner(t, ModeHMAC, Headers{}, at)
		req := newRequest(t, "http://example.com/api/auth", body)
		require.NoError(t, s.Sign(req, []byte(body)))
		return req
	}

	t.Run("missing headers", func(t *testing.T) {
		s := fixedSigner(t, ModeHMAC, Headers{}, at)
		assert.ErrorIs(t, s.Verify(newRequest(t, "http://example.com/", ""), 0), ErrMissingHeaders)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		s := fixedSigner(t, ModeHMAC, Headers{}, at)
		req := signed(t, "x")
		req.Header.Set("X-Timestamp", "yesterday")
		assert.ErrorIs(t, s.Verify(req, 0), ErrMissingHeaders)
	})

	t.Run("expired", func(t *testing.T) {
		s := fixedSigner(t, ModeHMAC, Headers{}, at.Add(10*time.Minute))
		assert.ErrorIs(t, s.Verify(signed(t, "x"), 0), ErrStaleRequest)
	})

	t.Run("custom max age", func(t *testing.T) {
		s := fixedSigner(t, ModeHMAC, Headers{}, at.Add(10*time.Minute))
		assert.NoError(t, s.Verify(signed(t, "x"), time.Hour))
	})

	t.Run("tampered body", func(t *testing.T) {
		s := fixedSigner(t, ModeHMAC, Headers{}, at)
		req := signed(t, "original")
		req.Body = io.NopCloser(bytes.NewBufferString("tampered"))
		assert.ErrorIs(t, s.Verify(req, 0), ErrSignatureMismatch)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other, err := NewSigner(ModeHMAC, "other-secret", Headers{})
		require.NoError(t, err)
		other.now = func() time.Time { return at }
		assert.ErrorIs(t, other.Verify(signed(t, "x"), 0), ErrSignatureMismatch)
	})

	t.Run("not hmac", func(t *testing.T) {
		s := fixedSigner(t, ModeSimple, Headers{}, at)
		assert.ErrorIs(t, s.Verify(signed(t, "x"), 0), ErrUnsupportedMode)
	})
}
