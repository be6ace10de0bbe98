package token

import (
	"encoding/base64"
	"log/slog"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/platform/metrics"
)

// Encoder is one rung of the credential delivery ladder.
type Encoder interface {
	// Rung names the rung for logging and metrics.
	Rung() string
	// Encode prepares the credential for the wire.
	Encode(credential string) (string, error)
	// Secure reports whether the encoding protects confidentiality.
	Secure() bool
}

// TokenEncoder wraps the credential in a full encrypted token.
type TokenEncoder struct {
	codec *Codec
}

func NewTokenEncoder(codec *Codec) TokenEncoder { return TokenEncoder{codec: codec} }

func (e TokenEncoder) Rung() string { return "token" }
func (e TokenEncoder) Secure() bool { return true }

func (e TokenEncoder) Encode(credential string) (string, error) {
	if e.codec == nil {
		return "", ErrUnsupportedEnvironment
	}
	return e.codec.Encode([]byte(credential))
}

// Base64Encoder is the reversible, non-confidential middle rung.
type Base64Encoder struct{}

func (Base64Encoder) Rung() string { return "base64" }
func (Base64Encoder) Secure() bool { return false }

func (Base64Encoder) Encode(credential string) (string, error) {
	return base64.RawURLEncoding.EncodeToString([]byte(credential)), nil
}

// PlainEncoder is the last resort: the credential crosses the wire untouched.
type PlainEncoder struct{}

func (PlainEncoder) Rung() string { return "plain" }
func (PlainEncoder) Secure() bool { return false }

func (PlainEncoder) Encode(credential string) (string, error) {
	return credential, nil
}

// Ladder tries each encoder in rank order. The system must keep functioning,
// visibly degraded, when the token rung is unavailable; every drop below the
// first rung is logged and counted.
type Ladder struct {
	rungs   []Encoder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewLadder builds the ranked ladder. codec may be nil when encryption is not
// configured, in which case the token rung fails immediately and delivery
// starts degrading from base64.
func NewLadder(codec *Codec, logger *slog.Logger, m *metrics.Metrics) *Ladder {
	return &Ladder{
		rungs:   []Encoder{NewTokenEncoder(codec), Base64Encoder{}, PlainEncoder{}},
		logger:  logger,
		metrics: m,
	}
}

// EncodedCredential is the ladder's outcome.
type EncodedCredential struct {
	Value  string
	Rung   string
	Secure bool
}

// Deliver encodes the credential with the highest rung that succeeds.
func (l *Ladder) Deliver(credential string) (EncodedCredential, error) {
	var lastErr error
	for i, rung := range l.rungs {
		value, err := rung.Encode(credential)
		if err != nil {
			lastErr = err
			continue
		}
		if i > 0 {
			l.logger.Warn("credential delivery downgraded",
				"rung", rung.Rung(),
				"secure", rung.Secure(),
			)
			if l.metrics != nil {
				l.metrics.LadderDowngrades.WithLabelValues(rung.Rung()).Inc()
			}
		}
		return EncodedCredential{Value: value, Rung: rung.Rung(), Secure: rung.Secure()}, nil
	}
	return EncodedCredential{}, lastErr
}
