// Package telemetry distributes session lifecycle events to configured
// sinks: a message queue for downstream analytics, the session history
// database, or just the log.
package telemetry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/playscope/playkit/pkg/models"
)

// Event types published by the session controller
const (
	EventSessionOpened   = "session_opened"
	EventSessionClosed   = "session_closed"
	EventQualitySwitched = "quality_switched"
	EventAudioSwitched   = "audio_switched"
	EventSubtitleChanged = "subtitle_changed"
	EventRecoveryAttempt = "recovery_attempt"
	EventErrorSurfaced   = "error_surfaced"
	EventSessionRetried  = "session_retried"
)

// Event is one session lifecycle occurrence
type Event struct {
	SessionID string                `json:"session_id"`
	Type      string                `json:"type"`
	SourceURL string                `json:"source_url,omitempty"`
	Kind      models.SourceKind     `json:"kind,omitempty"`
	Model     models.QualityModel   `json:"model,omitempty"`
	Detail    string                `json:"detail,omitempty"`
	Error     *models.PlaybackError `json:"error,omitempty"`
	Timestamp time.Time             `json:"timestamp"`
}

// Publisher delivers session events to a sink. Publish must not block
// playback; failures are the sink's problem to log.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopPublisher discards events
type NopPublisher struct{}

// Publish discards the event
func (NopPublisher) Publish(ctx context.Context, event Event) error { return nil }

// Close is a no-op
func (NopPublisher) Close() error { return nil }

// LogPublisher writes events to the structured log
type LogPublisher struct {
	Log zerolog.Logger
}

// Publish logs the event
func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	evt := p.Log.Info().
		Str("session_id", event.SessionID).
		Str("type", event.Type)
	if event.SourceURL != "" {
		evt = evt.Str("source_url", event.SourceURL)
	}
	if event.Detail != "" {
		evt = evt.Str("detail", event.Detail)
	}
	if event.Error != nil {
		evt = evt.Str("error_kind", string(event.Error.Kind))
	}
	evt.Msg("Playback event")
	return nil
}

// Close is a no-op
func (p *LogPublisher) Close() error { return nil }

// Fanout delivers each event to every publisher, logging individual sink
// failures without short-circuiting
type Fanout struct {
	Sinks []Publisher
	Log   zerolog.Logger
}

// Publish fans the event out
func (f *Fanout) Publish(ctx context.Context, event Event) error {
	for _, sink := range f.Sinks {
		if err := sink.Publish(ctx, event); err != nil {
			f.Log.Warn().Err(err).Str("type", event.Type).Msg("Failed to publish event")
		}
	}
	return nil
}

// Close closes all sinks
func (f *Fanout) Close() error {
	var firstErr error
	for _, sink := range f.Sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
