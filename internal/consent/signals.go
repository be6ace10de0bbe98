package consent

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// SignalSource exposes raw consent hints left behind by unrelated consent
// tooling (cookie values, localStorage flags relayed by the client, CMP
// vendor endpoints). Values are opaque strings decoded by heuristics.
type SignalSource interface {
	// Name identifies the source in logs and in the decision's Source field.
	Name() string
	// Read returns the current raw signal value, or "" when none is set.
	Read(ctx context.Context) (string, error)
}

// Substring hints are words long enough not to appear inside unrelated vendor
// values. Short tokens like "1" or "no" must stand alone as a whole field of
// the value or they misfire on blobs that merely contain them ("no" inside
// "unknown").
var (
	grantSubstrings = []string{"accept", "granted"}
	denySubstrings  = []string{"deny", "denied"}
	grantTokens     = []string{"true", "1", "yes"}
	denyTokens      = []string{"false", "0", "no"}
)

func signalFields(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
}

func matchesToken(fields []string, tokens []string) bool {
	for _, field := range fields {
		for _, token := range tokens {
			if field == token {
				return true
			}
		}
	}
	return false
}

// DecodeSignal maps a raw signal value onto a consent status. Grant hints are
// checked first so a value like "accepted=1" lands on the affirmative side.
// Unrecognised values stay Pending.
func DecodeSignal(raw string) Status {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return StatusPending
	}
	fields := signalFields(v)
	for _, hint := range grantSubstrings {
		if strings.Contains(v, hint) {
			return StatusGranted
		}
	}
	if matchesToken(fields, grantTokens) {
		return StatusGranted
	}
	for _, hint := range denySubstrings {
		if strings.Contains(v, hint) {
			return StatusDenied
		}
	}
	if matchesToken(fields, denyTokens) {
		return StatusDenied
	}
	return StatusPending
}

// Scanner polls passive signal sources until one yields a conclusive status,
// the scan window elapses, or the context is cancelled. It is a safety net
// behind the explicit and platform resolution paths, not a primary one.
type Scanner struct {
	sources  []SignalSource
	interval time.Duration
	window   time.Duration
	logger   *slog.Logger
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScanInterval overrides the polling interval (default 1s).
func WithScanInterval(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithScanWindow bounds the total scan duration (default 30s).
func WithScanWindow(d time.Duration) ScannerOption {
	return func(s *Scanner) {
		if d > 0 {
			s.window = d
		}
	}
}

// NewScanner builds a scanner over the given sources.
func NewScanner(logger *slog.Logger, sources []SignalSource, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		sources:  sources,
		interval: time.Second,
		window:   30 * time.Second,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run polls until a conclusive signal appears and reports it through resolve.
// It returns once resolved, once the window closes, or once ctx is done.
// Source read errors are logged and skipped; they never block resolution by
// another source or by the timeout path.
func (s *Scanner) Run(ctx context.Context, resolve func(status Status, source string)) {
	if len(s.sources) == 0 {
		return
	}
	deadline := time.NewTimer(s.window)
	defer deadline.Stop()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		for _, src := range s.sources {
			raw, err := src.Read(ctx)
			if err != nil {
				s.logger.Warn("consent signal source read failed",
					slog.String("source", src.Name()), slog.Any("error", err))
				continue
			}
			if status := DecodeSignal(raw); status.Resolved() {
				resolve(status, src.Name())
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			s.logger.Debug("consent signal scan window elapsed without a conclusive signal")
			return
		case <-ticker.C:
		}
	}
}
