// Package analytics aggregates playback session events into per-session and
// daemon-wide statistics. It consumes the same event stream the durable
// sinks do, so aggregation never adds a second instrumentation path.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/playscope/playkit/internal/telemetry"
	"github.com/playscope/playkit/pkg/models"
)

// SessionStats are the aggregated counters of one playback session
type SessionStats struct {
	SessionID        string              `json:"session_id"`
	SourceURL        string              `json:"source_url"`
	Kind             models.SourceKind   `json:"kind,omitempty"`
	Model            models.QualityModel `json:"model,omitempty"`
	StartedAt        time.Time           `json:"started_at"`
	EndedAt          *time.Time          `json:"ended_at,omitempty"`
	Duration         float64             `json:"duration_seconds"`
	QualitySwitches  int                 `json:"quality_switches"`
	AudioSwitches    int                 `json:"audio_switches"`
	SubtitleChanges  int                 `json:"subtitle_changes"`
	RecoveryAttempts int                 `json:"recovery_attempts"`
	Retries          int                 `json:"retries"`
	ErrorsSurfaced   int                 `json:"errors_surfaced"`
	LastErrorKind    models.ErrorKind    `json:"last_error_kind,omitempty"`
}

// Summary aggregates across every session the daemon has seen
type Summary struct {
	SessionsOpened   int `json:"sessions_opened"`
	SessionsClosed   int `json:"sessions_closed"`
	QualitySwitches  int `json:"quality_switches"`
	RecoveryAttempts int `json:"recovery_attempts"`
	ErrorsSurfaced   int `json:"errors_surfaced"`
}

// Service folds the session event stream into statistics. It implements the
// event publisher contract so it can sit in a fanout next to durable sinks.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*SessionStats
	order    []string
	summary  Summary
	keep     int
}

// NewService creates an aggregator retaining stats for the most recent keep
// sessions
func NewService(keep int) *Service {
	if keep <= 0 {
		keep = 256
	}
	return &Service{
		sessions: make(map[string]*SessionStats),
		keep:     keep,
	}
}

// Publish folds one session event into the aggregates
func (s *Service) Publish(ctx context.Context, event telemetry.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, ok := s.sessions[event.SessionID]
	if !ok {
		if event.Type != telemetry.EventSessionOpened {
			// events for sessions opened before the daemon restarted
			return nil
		}
		stats = &SessionStats{SessionID: event.SessionID}
		s.sessions[event.SessionID] = stats
		s.order = append(s.order, event.SessionID)
		s.evictLocked()
	}

	switch event.Type {
	case telemetry.EventSessionOpened:
		stats.SourceURL = event.SourceURL
		stats.Kind = event.Kind
		stats.Model = event.Model
		stats.StartedAt = event.Timestamp
		s.summary.SessionsOpened++
	case telemetry.EventSessionClosed:
		ended := event.Timestamp
		stats.EndedAt = &ended
		stats.Duration = ended.Sub(stats.StartedAt).Seconds()
		s.summary.SessionsClosed++
	case telemetry.EventQualitySwitched:
		stats.QualitySwitches++
		s.summary.QualitySwitches++
	case telemetry.EventAudioSwitched:
		stats.AudioSwitches++
	case telemetry.EventSubtitleChanged:
		stats.SubtitleChanges++
	case telemetry.EventRecoveryAttempt:
		stats.RecoveryAttempts++
		s.summary.RecoveryAttempts++
	case telemetry.EventSessionRetried:
		stats.Retries++
	case telemetry.EventErrorSurfaced:
		stats.ErrorsSurfaced++
		s.summary.ErrorsSurfaced++
		if event.Error != nil {
			stats.LastErrorKind = event.Error.Kind
		}
	}

	return nil
}

// Close implements the publisher contract; the aggregator holds no external
// resources
func (s *Service) Close() error { return nil }

// Session returns the aggregated stats for one session
func (s *Service) Session(sessionID string) (SessionStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats, ok := s.sessions[sessionID]
	if !ok {
		return SessionStats{}, false
	}
	return *stats, true
}

// Sessions returns stats for every retained session, oldest first
func (s *Service) Sessions() []SessionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]SessionStats, 0, len(s.order))
	for _, id := range s.order {
		if stats, ok := s.sessions[id]; ok {
			out = append(out, *stats)
		}
	}
	return out
}

// Summary returns the daemon-wide aggregates
func (s *Service) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summary
}

func (s *Service) evictLocked() {
	for len(s.order) > s.keep {
		delete(s.sessions, s.order[0])
		s.order = s.order[1:]
	}
}
