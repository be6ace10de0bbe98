package forwarder

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/queue"
	"github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/internal/token"
	domainerrors "github.com/RubenJachtDigital/ga4-server-side-tagging-sub000/pkg/domain-errors"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForwarder_PlainSend(t *testing.T) {
	var got Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	f := New(srv.URL, discardLogger())
	outcome, err := f.Send(context.Background(), "page_view", map[string]any{"page_location": "/pricing"})
	require.NoError(t, err)

	assert.Equal(t, ResultSent, outcome.Result)
	assert.Equal(t, "ok", outcome.Body["status"])
	assert.Equal(t, "page_view", got.Name)
	assert.Equal(t, "/pricing", got.Params["page_location"])
	assert.Empty(t, got.APICredential)
}

func TestForwarder_EncryptedSendRoundTrip(t *testing.T) {
	codec, err := token.New(testKey)
	require.NoError(t, err)

	var envelope Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var wrapped struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&wrapped))
		require.NotEmpty(t, wrapped.Token, "encrypted mode must not send plaintext")

		plaintext, err := codec.Decode(wrapped.Token)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(plaintext, &envelope))

		reply, err := codec.Encode([]byte(`{"status":"accepted"}`))
		require.NoError(t, err)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": reply})
	}))
	defer srv.Close()

	f := New(srv.URL, discardLogger(), WithCodec(codec))
	outcome, err := f.Send(context.Background(), "purchase", map[string]any{"value": 99.5})
	require.NoError(t, err)

	assert.Equal(t, ResultSent, outcome.Result)
	assert.Equal(t, "accepted", outcome.Body["status"])
	assert.Equal(t, "purchase", envelope.Name)
	assert.Equal(t, 99.5, envelope.Params["value"])
}

func TestForwarder_CredentialRidesTheLadder(t *testing.T) {
	codec, err := token.New(testKey)
	require.NoError(t, err)
	ladder := token.NewLadder(codec, discardLogger(), nil)

	var got Envelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := New(srv.URL, discardLogger(), WithCredential("api-secret", ladder))
	_, err = f.Send(context.Background(), "lead", nil)
	require.NoError(t, err)

	assert.Equal(t, "token", got.CredentialEncoding)
	plaintext, err := codec.Decode(got.APICredential)
	require.NoError(t, err)
	assert.Equal(t, "api-secret", string(plaintext))
}

func TestForwarder_RejectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad event", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	f := New(srv.URL, discardLogger())
	outcome, err := f.Send(context.Background(), "page_view", nil)

	require.Error(t, err)
	assert.Equal(t, ResultRejected, outcome.Result)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeBadRequest))
}

func TestForwarder_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	f := New(srv.URL, discardLogger())
	outcome, err := f.Send(context.Background(), "page_view", nil)

	require.Error(t, err)
	assert.Equal(t, ResultFailed, outcome.Result)
	assert.True(t, domainerrors.Is(err, domainerrors.CodeUnavailable))
}

func TestForwarder_ExpiredResponseTokenRenewedOnce(t *testing.T) {
	codec, err := token.New(testKey)
	require.NoError(t, err)
	past := time.Now().Add(-time.Hour)
	expiredCodec, err := token.New(testKey, token.WithClock(func() time.Time { return past }))
	require.NoError(t, err)

	expired, err := expiredCodec.Encode([]byte(`{"status":"stale"}`))
	require.NoError(t, err)
	fresh, err := codec.Encode([]byte(`{"status":"renewed"}`))
	require.NoError(t, err)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		reply := expired
		if calls.Add(1) > 1 {
			require.JSONEq(t, `{"renew":true}`, string(body), "second call must be the renewal fetch")
			reply = fresh
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": reply})
	}))
	defer srv.Close()

	f := New(srv.URL, discardLogger(), WithCodec(codec))
	outcome, err := f.Send(context.Background(), "page_view", nil)
	require.NoError(t, err)

	assert.Equal(t, "renewed", outcome.Body["status"])
	assert.Equal(t, int32(2), calls.Load())
}

func TestForwarder_OpaqueResponseStillCountsAsSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	f := New(srv.URL, discardLogger())
	outcome, err := f.Send(context.Background(), "page_view", nil)
	require.NoError(t, err)
	assert.Equal(t, ResultSent, outcome.Result)
	assert.Nil(t, outcome.Body)
}

func TestForwarder_DeliverQueuedSwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(srv.URL, discardLogger())
	f.DeliverQueued(context.Background(), queue.Event{Name: "add_to_cart", EnqueuedAt: time.Now()})
}
