package token

import (
	"encoding/base64"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLadder_TokenRungPreferred(t *testing.T) {
	codec, err := New(testKey)
	require.NoError(t, err)
	ladder := NewLadder(codec, discardLogger(), nil)

	out, err := ladder.Deliver("api-credential-123")
	require.NoError(t, err)
	assert.Equal(t, "token", out.Rung)
	assert.True(t, out.Secure)

	// The top rung must round-trip through the codec.
	plaintext, err := codec.Decode(out.Value)
	require.NoError(t, err)
	assert.Equal(t, "api-credential-123", string(plaintext))
}

func TestLadder_DowngradesWithoutCodec(t *testing.T) {
	ladder := NewLadder(nil, discardLogger(), nil)

	out, err := ladder.Deliver("api-credential-123")
	require.NoError(t, err)
	assert.Equal(t, "base64", out.Rung)
	assert.False(t, out.Secure)

	decoded, err := base64.RawURLEncoding.DecodeString(out.Value)
	require.NoError(t, err)
	assert.Equal(t, "api-credential-123", string(decoded))
}

func TestLadder_PlainIsLastResort(t *testing.T) {
	// Only the plain rung remains.
	ladder := &Ladder{
		rungs:  []Encoder{NewTokenEncoder(nil), PlainEncoder{}},
		logger: discardLogger(),
	}

	out, err := ladder.Deliver("api-credential-123")
	require.NoError(t, err)
	assert.Equal(t, "plain", out.Rung)
	assert.Equal(t, "api-credential-123", out.Value)
}
