// Package httpclient signs and sends requests to HTTP identity back-ends.
package httpclient

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mode selects how outgoing requests are authenticated.
type Mode string

const (
	ModeNone   Mode = "none"   // no authentication headers
	ModeSimple Mode = "simple" // shared secret in a header
	ModeHMAC   Mode = "hmac"   // HMAC-SHA256 over timestamp, method, path and body
)

// DefaultMaxAge bounds the accepted age of an HMAC timestamp in Verify.
const DefaultMaxAge = 5 * time.Minute

var (
	ErrUnsupportedMode   = errors.New("httpclient: unsupported authentication mode")
	ErrMissingSecret     = errors.New("httpclient: secret is required")
	ErrMissingHeaders    = errors.New("httpclient: missing authentication headers")
	ErrStaleRequest      = errors.New("httpclient: request timestamp expired")
	ErrSignatureMismatch = errors.New("httpclient: signature verification failed")
)

// ParseMode maps a configuration value to a Mode. Empty means ModeNone.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeNone:
		return ModeNone, nil
	case ModeSimple, ModeHMAC:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMode, s)
	}
}

// Headers names the request headers a Signer writes.
type Headers struct {
	Secret    string
	Signature string
	Timestamp string
	Nonce     string
}

// DefaultHeaders are used for any Headers field left empty.
var DefaultHeaders = Headers{
	Secret:    "X-API-Secret",
	Signature: "X-Signature",
	Timestamp: "X-Timestamp",
	Nonce:     "X-Nonce",
}

func (h Headers) withDefaults() Headers {
	if h.Secret == "" {
		h.Secret = DefaultHeaders.Secret
	}
	if h.Signature == "" {
		h.Signature = DefaultHeaders.Signature
	}
	if h.Timestamp == "" {
		h.Timestamp = DefaultHeaders.Timestamp
	}
	if h.Nonce == "" {
		h.Nonce = DefaultHeaders.Nonce
	}
	return h
}

// Signer adds authentication headers to outgoing requests and verifies them
// on the receiving side.
type Signer struct {
	mode    Mode
	secret  string
	headers Headers

	now   func() time.Time
	nonce func() string
}

// NewSigner validates mode and secret. A zero Headers value uses DefaultHeaders.
func NewSigner(mode Mode, secret string, headers Headers) (*Signer, error) {
	switch mode {
	case "", ModeNone:
		mode = ModeNone
	case ModeSimple, ModeHMAC:
		if secret == "" {
			return nil, fmt.Errorf("%w for %s mode", ErrMissingSecret, mode)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}

	return &Signer{
		mode:    mode,
		secret:  secret,
		headers: headers.withDefaults(),
		now:     time.Now,
		nonce:   func() string { return uuid.New().String() },
	}, nil
}

func (s *Signer) Mode() Mode {
	if s == nil {
		return ModeNone
	}
	return s.mode
}

// Sign writes the authentication headers for req. body must be the exact
// bytes that will be sent. A nil Signer signs nothing.
func (s *Signer) Sign(req *http.Request, body []byte) error {
	switch s.Mode() {
	case ModeNone:
		return nil
	case ModeSimple:
		req.Header.Set(s.headers.Secret, s.secret)
		return nil
	default:
		ts := s.now().Unix()
		req.Header.Set(s.headers.Signature, s.signature(ts, req.Method, requestPath(req), body))
		req.Header.Set(s.headers.Timestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(s.headers.Nonce, s.nonce())
		return nil
	}
}

// Verify checks an HMAC-signed request. The body is restored afterwards so
// later handlers can read it. A maxAge of zero means DefaultMaxAge.
func (s *Signer) Verify(req *http.Request, maxAge time.Duration) error {
	if s.Mode() != ModeHMAC {
		return fmt.Errorf("%w: verify needs hmac mode", ErrUnsupportedMode)
	}
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}

	sig := req.Header.Get(s.headers.Signature)
	tsRaw := req.Header.Get(s.headers.Timestamp)
	if sig == "" || tsRaw == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp %q", ErrMissingHeaders, tsRaw)
	}
	if s.now().Sub(time.Unix(ts, 0)) > maxAge {
		return ErrStaleRequest
	}

	var body []byte
	if req.Body != nil {
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return fmt.Errorf("httpclient: read body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	want := s.signature(ts, req.Method, requestPath(req), body)
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return ErrSignatureMismatch
	}
	return nil
}

// signature is hex(HMAC-SHA256(secret, timestamp + method + path + body)).
func (s *Signer) signature(ts int64, method, path string, body []byte) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func requestPath(req *http.Request) string {
	if req.URL.RawQuery != "" {
		return req.URL.Path + "?" + req.URL.RawQuery
	}
	return req.URL.Path
}
