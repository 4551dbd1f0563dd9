package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session Metrics
	SessionsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_sessions_opened_total",
			Help: "Total number of playback sessions opened",
		},
		[]string{"kind", "model"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playkit_sessions_active",
			Help: "Number of live playback sessions",
		},
	)

	SessionOpenDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "playkit_session_open_duration_seconds",
			Help:    "Time from openSession to engine load issued",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// Switch Metrics
	QualitySwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_quality_switches_total",
			Help: "Total number of quality switches",
		},
		[]string{"model"},
	)

	AudioSwitchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playkit_audio_switches_total",
			Help: "Total number of audio track switches",
		},
	)

	SubtitleChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_subtitle_changes_total",
			Help: "Total number of subtitle selection changes",
		},
		[]string{"action"},
	)

	// Discovery Metrics
	DiscoveryEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_discovery_events_total",
			Help: "Discovery events republished into track state",
		},
		[]string{"track_type"},
	)

	StaleDiscoveryDropsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playkit_stale_discovery_drops_total",
			Help: "Discovery events ignored because their session was superseded",
		},
	)

	// Error Metrics
	EngineErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_engine_errors_total",
			Help: "Engine-reported errors",
		},
		[]string{"kind", "fatal"},
	)

	RecoveryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_recovery_attempts_total",
			Help: "Automatic in-controller recovery attempts",
		},
		[]string{"kind"},
	)

	PersistentErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_persistent_errors_total",
			Help: "Errors surfaced to the host after recovery was exhausted",
		},
		[]string{"kind"},
	)

	IdleSessionsReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playkit_idle_sessions_reaped_total",
			Help: "Playback sessions closed by the janitor after host abandonment",
		},
	)

	// Library Loading Metrics
	LibraryLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_library_loads_total",
			Help: "Engine library load attempts",
		},
		[]string{"library", "status"},
	)

	// Preference Store Metrics
	PreferenceOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playkit_preference_ops_total",
			Help: "Preference store operations",
		},
		[]string{"operation", "status"},
	)
)

// RecordEngineError increments the engine error counter
func RecordEngineError(kind string, fatal bool) {
	fatalLabel := "false"
	if fatal {
		fatalLabel = "true"
	}
	EngineErrorsTotal.WithLabelValues(kind, fatalLabel).Inc()
}
