package passwordhash

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"github.com/go-authgate/idgate/internal/util"

	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 algorithm names, as written in the encoded hash.
const (
	PBKDF2WithHmacSHA224 = "PBKDF2WithHmacSHA224"
	PBKDF2WithHmacSHA256 = "PBKDF2WithHmacSHA256"
	PBKDF2WithHmacSHA384 = "PBKDF2WithHmacSHA384"
	PBKDF2WithHmacSHA512 = "PBKDF2WithHmacSHA512"
)

// Parameter keys understood by Pbkdf2.Initialize.
const (
	ParamAlgorithm     = "Pbkdf2PasswordHash.Algorithm"
	ParamIterations    = "Pbkdf2PasswordHash.Iterations"
	ParamSaltSizeBytes = "Pbkdf2PasswordHash.SaltSizeBytes"
	ParamKeySizeBytes  = "Pbkdf2PasswordHash.KeySizeBytes"
)

const (
	DefaultAlgorithm     = PBKDF2WithHmacSHA256
	DefaultIterations    = 2048
	DefaultSaltSizeBytes = 32
	DefaultKeySizeBytes  = 32

	MinIterations    = 1024
	MinSaltSizeBytes = 16
	MinKeySizeBytes  = 16

	// Upper bounds keep a tampered stored hash from making Verify arbitrarily slow.
	MaxIterations    = 10_000_000
	MaxSaltSizeBytes = 1024
	MaxKeySizeBytes  = 1024
)

var pbkdf2Digests = map[string]func() hash.Hash{
	PBKDF2WithHmacSHA224: sha256.New224,
	PBKDF2WithHmacSHA256: sha256.New,
	PBKDF2WithHmacSHA384: sha512.New384,
	PBKDF2WithHmacSHA512: sha512.New,
}

// Pbkdf2 produces self-describing hashes of the form
// algorithm:iterations:base64(salt):base64(hash).
type Pbkdf2 struct {
	Algorithm     string
	Iterations    int
	SaltSizeBytes int
	KeySizeBytes  int
}

var _ PasswordHash = (*Pbkdf2)(nil)

// NewPbkdf2 returns a Pbkdf2 with default parameters.
func NewPbkdf2() *Pbkdf2 {
	return &Pbkdf2{
		Algorithm:     DefaultAlgorithm,
		Iterations:    DefaultIterations,
		SaltSizeBytes: DefaultSaltSizeBytes,
		KeySizeBytes:  DefaultKeySizeBytes,
	}
}

// Initialize reads the Pbkdf2PasswordHash.* keys, keeping the current value
// for any key not present.
func (p *Pbkdf2) Initialize(params map[string]string) error {
	if v, ok := params[ParamAlgorithm]; ok {
		if _, known := pbkdf2Digests[v]; !known {
			return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, v)
		}
		p.Algorithm = v
	}

	ints := []struct {
		key      string
		min, max int
		dst      *int
	}{
		{ParamIterations, MinIterations, MaxIterations, &p.Iterations},
		{ParamSaltSizeBytes, MinSaltSizeBytes, MaxSaltSizeBytes, &p.SaltSizeBytes},
		{ParamKeySizeBytes, MinKeySizeBytes, MaxKeySizeBytes, &p.KeySizeBytes},
	}
	for _, f := range ints {
		v, ok := params[f.key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q", ErrInvalidParameter, f.key, v)
		}
		if n < f.min || n > f.max {
			return fmt.Errorf("%w: %s must be between %d and %d, got %d",
				ErrInvalidParameter, f.key, f.min, f.max, n)
		}
		*f.dst = n
	}

	return nil
}

// Generate hashes password with a fresh random salt.
func (p *Pbkdf2) Generate(password []byte) (string, error) {
	digest, ok := pbkdf2Digests[p.Algorithm]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, p.Algorithm)
	}

	salt, err := util.RandomBytes(p.SaltSizeBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key := pbkdf2.Key(password, salt, p.Iterations, p.KeySizeBytes, digest)

	return Encoded{
		Algorithm:  p.Algorithm,
		Iterations: p.Iterations,
		Salt:       salt,
		Hash:       key,
	}.String(), nil
}

// Verify re-derives the hash with the parameters embedded in hashed, not the
// configured ones, so hashes stay verifiable after a configuration change.
func (p *Pbkdf2) Verify(password []byte, hashed string) bool {
	enc, err := Parse(hashed)
	if err != nil {
		return false
	}

	key := pbkdf2.Key(password, enc.Salt, enc.Iterations, len(enc.Hash), pbkdf2Digests[enc.Algorithm])
	return subtle.ConstantTimeCompare(key, enc.Hash) == 1
}

// Encoded is a parsed PBKDF2 hash.
type Encoded struct {
	Algorithm  string
	Iterations int
	Salt       []byte
	Hash       []byte
}

func (e Encoded) String() string {
	return strings.Join([]string{
		e.Algorithm,
		strconv.Itoa(e.Iterations),
		base64.StdEncoding.EncodeToString(e.Salt),
		base64.StdEncoding.EncodeToString(e.Hash),
	}, ":")
}

// Parse splits an encoded PBKDF2 hash. It returns ErrMalformedHash for a bad
// layout or encoding and ErrUnsupportedAlgorithm for an unknown algorithm.
func Parse(hashed string) (*Encoded, error) {
	fields := strings.Split(hashed, ":")
	if len(fields) != 4 {
		return nil, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedHash, len(fields))
	}

	if _, ok := pbkdf2Digests[fields[0]]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, fields[0])
	}

	iterations, err := strconv.Atoi(fields[1])
	if err != nil || iterations <= 0 || iterations > MaxIterations {
		return nil, fmt.Errorf("%w: bad iteration count %q", ErrMalformedHash, fields[1])
	}

	salt, err := decodeBounded(fields[2], MaxSaltSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}

	key, err := decodeBounded(fields[3], MaxKeySizeBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: hash: %v", ErrMalformedHash, err)
	}

	return &Encoded{
		Algorithm:  fields[0],
		Iterations: iterations,
		Salt:       salt,
		Hash:       key,
	}, nil
}

// decodeBounded decodes a non-empty standard base64 field of at most maxBytes.
func decodeBounded(field string, maxBytes int) ([]byte, error) {
	if field == "" {
		return nil, errors.New("empty")
	}
	if len(field) > base64.StdEncoding.EncodedLen(maxBytes) {
		return nil, fmt.Errorf("longer than %d bytes", maxBytes)
	}
	b, err := base64.StdEncoding.DecodeString(field)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, errors.New("empty")
	}
	return b, nil
}
