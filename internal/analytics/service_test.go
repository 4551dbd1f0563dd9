package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playscope/playkit/internal/telemetry"
	"github.com/playscope/playkit/pkg/models"
)

func publish(t *testing.T, s *Service, event telemetry.Event) {
	t.Helper()
	require.NoError(t, s.Publish(context.Background(), event))
}

func TestSessionLifecycleAggregation(t *testing.T) {
	s := NewService(8)
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	publish(t, s, telemetry.Event{
		SessionID: "s1",
		Type:      telemetry.EventSessionOpened,
		SourceURL: "https://cdn.example.com/master.m3u8",
		Kind:      models.SourceKindHLS,
		Model:     models.QualityModelEngineManaged,
		Timestamp: start,
	})
	publish(t, s, telemetry.Event{SessionID: "s1", Type: telemetry.EventQualitySwitched, Timestamp: start})
	publish(t, s, telemetry.Event{SessionID: "s1", Type: telemetry.EventQualitySwitched, Timestamp: start})
	publish(t, s, telemetry.Event{SessionID: "s1", Type: telemetry.EventAudioSwitched, Timestamp: start})
	publish(t, s, telemetry.Event{SessionID: "s1", Type: telemetry.EventRecoveryAttempt, Timestamp: start})
	publish(t, s, telemetry.Event{
		SessionID: "s1",
		Type:      telemetry.EventErrorSurfaced,
		Error:     &models.PlaybackError{Kind: models.ErrorKindNetwork},
		Timestamp: start,
	})
	publish(t, s, telemetry.Event{SessionID: "s1", Type: telemetry.EventSessionClosed, Timestamp: start.Add(90 * time.Second)})

	stats, ok := s.Session("s1")
	require.True(t, ok)
	assert.Equal(t, models.SourceKindHLS, stats.Kind)
	assert.Equal(t, 2, stats.QualitySwitches)
	assert.Equal(t, 1, stats.AudioSwitches)
	assert.Equal(t, 1, stats.RecoveryAttempts)
	assert.Equal(t, 1, stats.ErrorsSurfaced)
	assert.Equal(t, models.ErrorKindNetwork, stats.LastErrorKind)
	assert.Equal(t, float64(90), stats.Duration)
	require.NotNil(t, stats.EndedAt)

	summary := s.Summary()
	assert.Equal(t, 1, summary.SessionsOpened)
	assert.Equal(t, 1, summary.SessionsClosed)
	assert.Equal(t, 2, summary.QualitySwitches)
}

func TestEventsForUnknownSessionIgnored(t *testing.T) {
	s := NewService(8)

	publish(t, s, telemetry.Event{SessionID: "ghost", Type: telemetry.EventQualitySwitched})

	_, ok := s.Session("ghost")
	assert.False(t, ok)
	assert.Zero(t, s.Summary().QualitySwitches)
}

func TestOldSessionsEvicted(t *testing.T) {
	s := NewService(2)

	for i := 0; i < 3; i++ {
		publish(t, s, telemetry.Event{
			SessionID: fmt.Sprintf("s%d", i),
			Type:      telemetry.EventSessionOpened,
			Timestamp: time.Now(),
		})
	}

	_, ok := s.Session("s0")
	assert.False(t, ok, "oldest session evicted")

	sessions := s.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "s1", sessions[0].SessionID)
	assert.Equal(t, 3, s.Summary().SessionsOpened, "summary outlives eviction")
}
