package token

import "errors"

// Codec failures are distinct so callers can choose between the credential
// ladder and renewal. None of these are user-recoverable.
var (
	// ErrSignatureMismatch means the HMAC over header.payload did not verify.
	ErrSignatureMismatch = errors.New("token signature mismatch")
	// ErrTokenExpired means the token's expiry has passed. Reported in
	// preference to a signature problem so renewal can be attempted.
	ErrTokenExpired = errors.New("token expired")
	// ErrPayloadMalformed means the token structure or payload fields could
	// not be decoded.
	ErrPayloadMalformed = errors.New("token payload malformed")
	// ErrDecryptionFailed means the AEAD open step rejected the ciphertext.
	ErrDecryptionFailed = errors.New("token decryption failed")
	// ErrUnsupportedEnvironment means no usable encryption key is configured,
	// so the codec cannot operate in this deployment.
	ErrUnsupportedEnvironment = errors.New("encryption unavailable")
)
