package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playscope/playkit/internal/logging"
	"github.com/playscope/playkit/internal/telemetry"
	"github.com/playscope/playkit/pkg/models"
)

func errorEvent() telemetry.Event {
	return telemetry.Event{
		SessionID: "s1",
		Type:      telemetry.EventErrorSurfaced,
		SourceURL: "https://cdn.example.com/master.m3u8",
		Error:     &models.PlaybackError{Kind: models.ErrorKindNetwork, Message: "segment timeout"},
	}
}

func TestPublishDeliversSignedPayload(t *testing.T) {
	var body []byte
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotifier([]Endpoint{{URL: srv.URL, Secret: "topsecret"}}, logging.NewTestLogger())
	require.NoError(t, n.Publish(context.Background(), errorEvent()))

	assert.Equal(t, telemetry.EventErrorSurfaced, headers.Get("X-Playkit-Event"))
	assert.NotEmpty(t, headers.Get("X-Playkit-Delivery"))
	assert.Contains(t, string(body), "segment timeout")

	mac := hmac.New(sha256.New, []byte("topsecret"))
	mac.Write(body)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), headers.Get("X-Playkit-Signature"))
}

func TestPublishFiltersBySubscription(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier([]Endpoint{{URL: srv.URL, Events: []string{telemetry.EventErrorSurfaced}}}, logging.NewTestLogger())

	require.NoError(t, n.Publish(context.Background(), telemetry.Event{SessionID: "s1", Type: telemetry.EventQualitySwitched}))
	assert.Equal(t, int32(0), calls.Load())

	require.NoError(t, n.Publish(context.Background(), errorEvent()))
	assert.Equal(t, int32(1), calls.Load())
}

func TestPublishSurvivesUnreachableEndpoint(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier([]Endpoint{
		{URL: "http://127.0.0.1:1/unreachable"},
		{URL: srv.URL},
	}, logging.NewTestLogger())

	require.NoError(t, n.Publish(context.Background(), errorEvent()))
	assert.Equal(t, int32(1), calls.Load(), "healthy endpoint still receives the event")
}

func TestPublishTreatsServerErrorAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier([]Endpoint{{URL: srv.URL}}, logging.NewTestLogger())
	// delivery failure is logged, not returned
	assert.NoError(t, n.Publish(context.Background(), errorEvent()))
}
