// Package token implements the compact authenticated-encryption token used to
// transport event payloads and credentials to the collection endpoint.
//
// A token is three base64url segments joined by dots: a header naming the
// algorithms, a payload carrying the AES-256-GCM ciphertext with its nonce and
// tag split out, and an HMAC-SHA256 signature over the first two segments.
// Both the AEAD and the HMAC use the same shared 256-bit key, so only holders
// of that key can mint or open tokens.
package token

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTTL keeps tokens short-lived; a retry always re-encrypts.
	DefaultTTL = 5 * time.Minute

	nonceSize = 12
	tagSize   = 16
)

// Claims is the token payload. Ciphertext, nonce, and authentication tag are
// carried as separate base64url fields rather than relying on the AEAD's
// concatenation convention; issue and expiry ride as registered claims.
type Claims struct {
	EncData string `json:"encData"`
	IV      string `json:"iv"`
	Tag     string `json:"tag"`
	jwt.RegisteredClaims
}

// Clock is injected for expiry tests.
type Clock func() time.Time

// Codec encrypts and signs byte payloads into expiring tokens. It is stateless
// and safe for concurrent use.
type Codec struct {
	key   []byte
	aead  cipher.AEAD
	ttl   time.Duration
	clock Clock
}

// Option configures a Codec.
type Option func(*Codec)

// WithTTL overrides the default 5 minute token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(c *Codec) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New builds a Codec from the shared key as 64 hex characters. A missing or
// malformed key yields ErrUnsupportedEnvironment so callers can drop down the
// credential ladder instead of failing closed.
func New(hexKey string, opts ...Option) (*Codec, error) {
	if hexKey == "" {
		return nil, ErrUnsupportedEnvironment
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("%w: key must be 64 hex characters", ErrUnsupportedEnvironment)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEnvironment, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEnvironment, err)
	}
	c := &Codec{
		key:   key,
		aead:  aead,
		ttl:   DefaultTTL,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// Encode encrypts plaintext under a fresh 96-bit nonce and wraps the result in
// a signed, expiring token. Tokens are never re-transmitted; callers re-encode
// for every send.
func (c *Codec) Encode(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - tagSize
	now := c.clock()

	claims := Claims{
		EncData: base64.RawURLEncoding.EncodeToString(sealed[:split]),
		IV:      base64.RawURLEncoding.EncodeToString(nonce),
		Tag:     base64.RawURLEncoding.EncodeToString(sealed[split:]),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["enc"] = "A256GCM"

	signed, err := tok.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies the signature in constant time, rejects expired tokens, and
// decrypts the payload. Signature mismatch is a hard failure checked before
// expiry; both are renewable through DecodeWithRenewal.
func (c *Codec) Decode(tokenString string) ([]byte, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return c.key, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.clock() }))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrSignatureMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrPayloadMalformed, err)
		}
	}
	if !parsed.Valid {
		return nil, ErrSignatureMismatch
	}

	data, err := base64.RawURLEncoding.DecodeString(claims.EncData)
	if err != nil {
		return nil, fmt.Errorf("%w: bad encData", ErrPayloadMalformed)
	}
	nonce, err := base64.RawURLEncoding.DecodeString(claims.IV)
	if err != nil || len(nonce) != nonceSize {
		return nil, fmt.Errorf("%w: bad iv", ErrPayloadMalformed)
	}
	tag, err := base64.RawURLEncoding.DecodeString(claims.Tag)
	if err != nil || len(tag) != tagSize {
		return nil, fmt.Errorf("%w: bad tag", ErrPayloadMalformed)
	}

	plaintext, err := c.aead.Open(nil, nonce, append(data, tag...), nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// RenewFunc obtains a fresh token when the original outlived its window
// mid-flight.
type RenewFunc func(ctx context.Context) (string, error)

// DecodeWithRenewal decodes tokenString, and on expiry (or a signature
// mismatch that may indicate the far side rotated the token) invokes renew
// once and retries the decode exactly once.
func (c *Codec) DecodeWithRenewal(ctx context.Context, tokenString string, renew RenewFunc) ([]byte, error) {
	plaintext, err := c.Decode(tokenString)
	if err == nil {
		return plaintext, nil
	}
	if renew == nil || (!errors.Is(err, ErrTokenExpired) && !errors.Is(err, ErrSignatureMismatch)) {
		return nil, err
	}

	fresh, renewErr := renew(ctx)
	if renewErr != nil {
		return nil, errors.Join(err, renewErr)
	}
	return c.Decode(fresh)
}
