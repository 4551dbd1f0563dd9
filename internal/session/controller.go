// Package session implements the adaptive playback session controller: it
// owns the lifecycle of one engine adapter bound to one media element,
// unifies engine-managed and source-swap quality models, executes the
// switch protocol without breaking playback, and recovers from
// engine-reported errors.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/playscope/playkit/internal/engine"
	"github.com/playscope/playkit/internal/loader"
	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/internal/metrics"
	"github.com/playscope/playkit/internal/state"
	"github.com/playscope/playkit/internal/telemetry"
	"github.com/playscope/playkit/pkg/models"
)

// PreferenceLoader restores the persisted selection blob for a profile
type PreferenceLoader interface {
	Load(ctx context.Context, profile string) (models.Preferences, error)
}

// Config holds the host-supplied inputs of a controller
type Config struct {
	Profile       string
	AutoPlay      bool
	Rewriter      models.URLRewriter
	PreferQuality models.PreferQualityFunc
	// Subtitles is the out-of-manifest subtitle list supplied by the host
	Subtitles []models.SubtitleTrack
}

// Handle is the read/command-only view of an open session returned to the
// host. The controller retains exclusive write access to the session.
type Handle struct {
	SessionID string              `json:"session_id"`
	Source    models.Source       `json:"source"`
	Model     models.QualityModel `json:"model"`
}

// liveSession is the state bound to one generation of the controller. Event
// closures capture it by value reference so a superseded session's callbacks
// can never touch the successor's adapter.
type liveSession struct {
	gen     uint64
	id      string
	model   models.QualityModel
	kind    models.SourceKind
	source  models.Source
	adapter engine.Adapter

	netRecovered   atomic.Bool
	mediaRecovered atomic.Bool
	playAttempted  atomic.Bool
}

// Controller drives exactly one playback session per media element
type Controller struct {
	mu sync.Mutex

	el       media.Element
	store    *state.Store
	registry *loader.Registry
	prefs    PreferenceLoader
	pub      telemetry.Publisher
	log      zerolog.Logger
	cfg      Config

	// generation is read lock-free by event closures to drop stale events
	generation atomic.Uint64

	live         *liveSession
	sources      []models.Source
	cancelResume func()
	closed       bool

	// events decouples sink delivery from the session lock; evMu guards the
	// channel against sends after Close
	evMu       sync.Mutex
	evClosed   bool
	events     chan telemetry.Event
	eventsDone chan struct{}
}

// NewController creates a controller bound to one media element. prefs and
// pub may be nil.
func NewController(el media.Element, store *state.Store, registry *loader.Registry, prefs PreferenceLoader, pub telemetry.Publisher, log zerolog.Logger, cfg Config) *Controller {
	if pub == nil {
		pub = telemetry.NopPublisher{}
	}
	c := &Controller{
		el:         el,
		store:      store,
		registry:   registry,
		prefs:      prefs,
		pub:        pub,
		log:        log.With().Str("component", "session").Logger(),
		cfg:        cfg,
		events:     make(chan telemetry.Event, 64),
		eventsDone: make(chan struct{}),
	}
	go c.publishLoop()
	return c
}

// OpenSession destroys any existing adapter, classifies the source list,
// seeds track state from persisted preferences, and loads the first
// eligible source on a freshly attached adapter.
func (c *Controller) OpenSession(ctx context.Context, sources []models.Source) (*Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, fmt.Errorf("session: controller closed")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("session: no sources supplied")
	}

	sources = models.NormalizeSources(sources)
	model := models.ClassifySources(sources)

	restored := models.Preferences{}
	if c.prefs != nil {
		prefs, err := c.prefs.Load(ctx, c.cfg.Profile)
		if err != nil {
			c.log.Warn().Err(err).Msg("Failed to restore preferences")
		} else {
			restored = prefs
		}
	}

	// quality labels come from the engine ladder only in the
	// engine-managed model; everywhere else the list seeds from labels
	var labels []string
	if model != models.QualityModelEngineManaged {
		labels = models.LabeledQualities(sources)
	}
	c.store.ResetSession(c.cfg.Subtitles, labels, restored)

	c.sources = sources
	src, _ := models.FindSourceByLabel(sources, c.store.Snapshot().CurrentQuality)

	handle, err := c.openLocked(ctx, src, model)
	if err != nil {
		return nil, err
	}

	return handle, nil
}

// openLocked supersedes the previous session and binds a new one for src.
// The previous adapter is fully destroyed before the new one is created.
func (c *Controller) openLocked(ctx context.Context, src models.Source, model models.QualityModel) (*Handle, error) {
	start := time.Now()

	c.teardownLocked()

	gen := c.generation.Add(1)
	s := &liveSession{
		gen:    gen,
		id:     uuid.New().String(),
		model:  model,
		kind:   src.Kind,
		source: src,
	}

	log := c.log.With().Str("session_id", s.id).Str("source_url", src.URL).Str("kind", string(src.Kind)).Logger()

	switch src.Kind {
	case models.SourceKindHLS, models.SourceKindDASH:
		adapter, err := c.buildAdapter(ctx, src.Kind)
		if err != nil {
			// no partial adapter may stay attached on load failure
			c.store.SetError(&models.PlaybackError{
				Kind:       models.ErrorKindEngineLoad,
				Message:    err.Error(),
				Persistent: true,
			})
			return nil, fmt.Errorf("failed to open session: %w", err)
		}
		// discovery may fire synchronously from Load, so the session
		// must reference its adapter before loading begins
		s.adapter = adapter
		if err := adapter.Attach(c.el, c.eventsFor(s)); err != nil {
			adapter.Destroy()
			return nil, fmt.Errorf("failed to attach adapter: %w", err)
		}
		if err := adapter.Load(ctx, src); err != nil {
			adapter.Destroy()
			return nil, fmt.Errorf("failed to load source: %w", err)
		}

	default:
		// direct playback: the controller drives the element itself
		if c.el.Source() != "" {
			c.el.Pause()
		}
		c.el.SetSource(src.URL)
		c.el.Load()
		if c.cfg.AutoPlay {
			c.tryAutoplay(s)
		}
	}

	c.live = s
	c.store.ClearError()

	metrics.SessionsOpenedTotal.WithLabelValues(string(src.Kind), string(model)).Inc()
	metrics.SessionsActive.Inc()
	metrics.SessionOpenDuration.WithLabelValues(string(src.Kind)).Observe(time.Since(start).Seconds())

	log.Info().Str("model", string(model)).Msg("Session opened")
	c.publish(telemetry.Event{
		SessionID: s.id,
		Type:      telemetry.EventSessionOpened,
		SourceURL: src.URL,
		Kind:      src.Kind,
		Model:     model,
	})

	return &Handle{SessionID: s.id, Source: src, Model: model}, nil
}

// buildAdapter resolves the engine library for a kind and wraps it. Library
// resolution failures surface as session-open failures.
func (c *Controller) buildAdapter(ctx context.Context, kind models.SourceKind) (engine.Adapter, error) {
	switch kind {
	case models.SourceKindHLS:
		handle, err := c.registry.Resolve(ctx, loader.LibraryHLS)
		if err != nil {
			metrics.LibraryLoadsTotal.WithLabelValues(loader.LibraryHLS, "error").Inc()
			return nil, err
		}
		lib, ok := handle.(engine.HLSLib)
		if !ok {
			metrics.LibraryLoadsTotal.WithLabelValues(loader.LibraryHLS, "error").Inc()
			return nil, fmt.Errorf("library %s has unexpected handle type %T", loader.LibraryHLS, handle)
		}
		metrics.LibraryLoadsTotal.WithLabelValues(loader.LibraryHLS, "ok").Inc()
		return engine.NewHLSAdapter(lib, c.cfg.Rewriter), nil

	case models.SourceKindDASH:
		handle, err := c.registry.Resolve(ctx, loader.LibraryDASH)
		if err != nil {
			metrics.LibraryLoadsTotal.WithLabelValues(loader.LibraryDASH, "error").Inc()
			return nil, err
		}
		lib, ok := handle.(engine.DASHLib)
		if !ok {
			metrics.LibraryLoadsTotal.WithLabelValues(loader.LibraryDASH, "error").Inc()
			return nil, fmt.Errorf("library %s has unexpected handle type %T", loader.LibraryDASH, handle)
		}
		metrics.LibraryLoadsTotal.WithLabelValues(loader.LibraryDASH, "ok").Inc()
		return engine.NewDASHAdapter(lib, c.cfg.Rewriter), nil
	}

	return nil, fmt.Errorf("no adapter for kind %s", kind)
}

// eventsFor builds the adapter event sinks for one session generation.
// Closures check the generation lock-free so they may be invoked from
// inside adapter calls without re-entering the controller lock.
func (c *Controller) eventsFor(s *liveSession) engine.Events {
	return engine.Events{
		OnQualityLevels: func(levels []engine.QualityLevel) {
			if c.stale(s) {
				return
			}
			metrics.DiscoveryEventsTotal.WithLabelValues("quality").Inc()

			if c.cfg.AutoPlay {
				c.tryAutoplay(s)
			}

			// in the source-swap model the label list owns quality;
			// the engine ladder is not republished
			if s.model != models.QualityModelEngineManaged {
				return
			}

			labels := engine.LevelLabels(levels)
			c.store.ApplyQualities(labels, c.cfg.PreferQuality)

			// DASH has in-engine switching disabled, so the selected
			// label is synced to the ladder once bitrate info exists
			if s.kind == models.SourceKindDASH {
				current := c.store.Snapshot().CurrentQuality
				if idx, ok := engine.FindLevelByLabel(levels, current); ok {
					if err := s.adapter.SetQualityLevel(idx); err != nil {
						c.log.Warn().Err(err).Msg("Failed to apply initial quality level")
					}
				}
			}
		},

		OnAudioTracks: func(tracks []models.AudioTrack) {
			if c.stale(s) {
				return
			}
			metrics.DiscoveryEventsTotal.WithLabelValues("audio").Inc()
			c.store.ApplyAudioTracks(tracks, 0)
		},

		OnSubtitleTracks: func(tracks []models.SubtitleTrack) {
			if c.stale(s) {
				return
			}
			metrics.DiscoveryEventsTotal.WithLabelValues("subtitle").Inc()
			c.store.ApplySubtitleTracks(tracks)
		},

		OnError: func(err engine.Error) {
			if c.stale(s) {
				return
			}
			c.handleEngineError(s, err)
		},
	}
}

// stale reports whether the session was superseded; events from stale
// sessions are dropped
func (c *Controller) stale(s *liveSession) bool {
	if c.generation.Load() != s.gen {
		metrics.StaleDiscoveryDropsTotal.Inc()
		return true
	}
	return false
}

// tryAutoplay attempts playback once per session; rejection is logged, never
// fatal
func (c *Controller) tryAutoplay(s *liveSession) {
	if !s.playAttempted.CompareAndSwap(false, true) {
		return
	}
	if err := c.el.Play(); err != nil {
		c.log.Info().Err(err).Str("session_id", s.id).Msg("Autoplay rejected, user interaction required")
	}
}

// handleEngineError implements the recovery policy: one automatic restart
// for the first fatal network error, one media recovery for the first fatal
// media error, then the error is surfaced as persistent.
func (c *Controller) handleEngineError(s *liveSession, engErr engine.Error) {
	metrics.RecordEngineError(string(engErr.Kind), engErr.Fatal)
	c.log.WithLevel(errLevel(engErr.Fatal)).
		Str("session_id", s.id).
		Str("kind", string(engErr.Kind)).
		Bool("fatal", engErr.Fatal).
		Err(engErr.Cause).
		Msg("Engine error")

	if !engErr.Fatal {
		return
	}

	switch engErr.Kind {
	case models.ErrorKindNetwork:
		if s.netRecovered.CompareAndSwap(false, true) {
			metrics.RecoveryAttemptsTotal.WithLabelValues("network").Inc()
			c.publish(telemetry.Event{
				SessionID: s.id,
				Type:      telemetry.EventRecoveryAttempt,
				Detail:    "restart",
			})
			if err := s.adapter.Restart(); err == nil {
				return
			}
		}
	case models.ErrorKindMedia:
		if s.mediaRecovered.CompareAndSwap(false, true) {
			metrics.RecoveryAttemptsTotal.WithLabelValues("media").Inc()
			c.publish(telemetry.Event{
				SessionID: s.id,
				Type:      telemetry.EventRecoveryAttempt,
				Detail:    "recover_media",
			})
			if err := s.adapter.RecoverMedia(); err == nil {
				return
			}
		}
	}

	c.surfaceError(s, engErr)
}

// surfaceError publishes a persistent playback error into track state
func (c *Controller) surfaceError(s *liveSession, engErr engine.Error) {
	msg := string(engErr.Kind) + " error"
	if engErr.Cause != nil {
		msg = engErr.Cause.Error()
	}
	pe := &models.PlaybackError{
		Kind:       engErr.Kind,
		Message:    msg,
		Persistent: true,
	}

	c.store.SetError(pe)
	metrics.PersistentErrorsTotal.WithLabelValues(string(engErr.Kind)).Inc()
	c.publish(telemetry.Event{
		SessionID: s.id,
		Type:      telemetry.EventErrorSurfaced,
		SourceURL: s.source.URL,
		Error:     pe,
	})
}

// SelectQuality executes the quality switch protocol. The engine-managed
// model delegates to the adapter's ladder; the source-swap model reopens the
// matching source and restores the playback position once the new source is
// ready to play.
func (c *Controller) SelectQuality(ctx context.Context, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.live == nil {
		return fmt.Errorf("session: no open session")
	}
	s := c.live

	if err := c.store.SelectQuality(label); err != nil {
		return err
	}

	if s.model == models.QualityModelEngineManaged {
		// no teardown on this path: position and play state are
		// preserved by the engine itself
		idx, ok := engine.FindLevelByLabel(s.adapter.Levels(), label)
		if ok {
			if err := s.adapter.SetQualityLevel(idx); err != nil {
				return fmt.Errorf("failed to switch level: %w", err)
			}
		}
		metrics.QualitySwitchesTotal.WithLabelValues(string(s.model)).Inc()
		c.publish(telemetry.Event{
			SessionID: s.id,
			Type:      telemetry.EventQualitySwitched,
			Model:     s.model,
			Detail:    label,
		})
		return nil
	}

	src, ok := findLabeledSource(c.sources, label)
	if !ok {
		return fmt.Errorf("session: no source labeled %q", label)
	}

	beforeSwitchTime := c.el.CurrentTime()
	wasPaused := c.el.Paused()

	if _, err := c.openLocked(ctx, src, s.model); err != nil {
		return err
	}
	next := c.live

	// one-shot: fires on the next ready-to-play signal, then detaches.
	// The generation guard keeps it from seeking a successor session.
	gen := next.gen
	c.cancelResume = c.el.OnceCanPlay(func() {
		if c.generation.Load() != gen {
			return
		}
		c.el.SeekTo(beforeSwitchTime)
		if !wasPaused {
			if err := c.el.Play(); err != nil {
				c.log.Info().Err(err).Msg("Resume after quality switch rejected")
			}
		}
	})

	metrics.QualitySwitchesTotal.WithLabelValues(string(s.model)).Inc()
	c.log.Info().
		Str("session_id", next.id).
		Str("label", label).
		Float64("resume_at", beforeSwitchTime).
		Msg("Source-swap quality switch")
	c.publish(telemetry.Event{
		SessionID: next.id,
		Type:      telemetry.EventQualitySwitched,
		Model:     s.model,
		Detail:    label,
	})

	return nil
}

// SelectAudio delegates to the adapter's audio-track switch; playback
// position is unaffected
func (c *Controller) SelectAudio(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.live == nil {
		return fmt.Errorf("session: no open session")
	}
	s := c.live

	if s.adapter == nil || !s.adapter.Capabilities().AudioTracks {
		return fmt.Errorf("session: active adapter has no audio track support")
	}

	idx, ok := c.store.AudioIndex(id)
	if !ok {
		return fmt.Errorf("session: unknown audio track %q", id)
	}
	if err := c.store.SelectAudio(id); err != nil {
		return err
	}
	if err := s.adapter.SetAudioTrack(idx); err != nil {
		return fmt.Errorf("failed to switch audio track: %w", err)
	}

	metrics.AudioSwitchesTotal.Inc()
	c.publish(telemetry.Event{
		SessionID: s.id,
		Type:      telemetry.EventAudioSwitched,
		Detail:    id,
	})
	return nil
}

// SelectSubtitle changes the subtitle selection in track state only; the
// adapter is never touched because native rendering is suppressed at attach
// time. An empty id disables subtitles.
func (c *Controller) SelectSubtitle(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("session: controller closed")
	}

	if err := c.store.SelectSubtitle(id); err != nil {
		return err
	}

	action := "select"
	if id == "" {
		action = "disable"
	}
	metrics.SubtitleChangesTotal.WithLabelValues(action).Inc()
	if c.live != nil {
		c.publish(telemetry.Event{
			SessionID: c.live.id,
			Type:      telemetry.EventSubtitleChanged,
			Detail:    id,
		})
	}
	return nil
}

// Retry re-invokes the last load step when the surfaced failure class is
// recoverable; otherwise it replays the full session open
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("session: no open session")
	}
	if c.live == nil {
		// a library-load failure tears the session down before it binds,
		// leaving only the held source list; replay the open from that
		if len(c.sources) == 0 {
			return fmt.Errorf("session: no open session")
		}
		c.store.ClearError()
		model := models.ClassifySources(c.sources)
		src, _ := models.FindSourceByLabel(c.sources, c.store.Snapshot().CurrentQuality)
		if _, err := c.openLocked(ctx, src, model); err != nil {
			return err
		}
		c.publish(telemetry.Event{
			SessionID: c.live.id,
			Type:      telemetry.EventSessionRetried,
			Detail:    "replay",
		})
		return nil
	}
	s := c.live

	lastErr := c.store.Snapshot().Error

	if lastErr != nil && lastErr.Recoverable() && s.adapter != nil {
		c.store.ClearError()
		s.netRecovered.Store(false)
		s.mediaRecovered.Store(false)

		if err := s.adapter.Load(ctx, s.source); err != nil {
			return fmt.Errorf("failed to reload source: %w", err)
		}

		c.log.Info().Str("session_id", s.id).Msg("Session load retried")
		c.publish(telemetry.Event{
			SessionID: s.id,
			Type:      telemetry.EventSessionRetried,
			Detail:    "reload",
		})
		return nil
	}

	c.store.ClearError()
	if _, err := c.openLocked(ctx, s.source, s.model); err != nil {
		return err
	}

	c.publish(telemetry.Event{
		SessionID: c.live.id,
		Type:      telemetry.EventSessionRetried,
		Detail:    "replay",
	})
	return nil
}

// Snapshot returns the current track state
func (c *Controller) Snapshot() models.TrackState {
	return c.store.Snapshot()
}

// Handle returns the read/command view of the current session, or nil
func (c *Controller) Handle() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live == nil {
		return nil
	}
	return &Handle{SessionID: c.live.id, Source: c.live.source, Model: c.live.model}
}

// Close tears the session down deterministically: pending one-shot
// listeners are cancelled, adapter listeners detach, and the adapter is
// destroyed. The controller is unusable afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.generation.Add(1)
	c.closed = true
	c.mu.Unlock()

	// stop accepting events, then wait for the buffered ones to drain
	c.evMu.Lock()
	c.evClosed = true
	close(c.events)
	c.evMu.Unlock()
	<-c.eventsDone

	c.store.Close()
}

// teardownLocked releases the live session's resources. It must complete
// before a new adapter may attach to the element.
func (c *Controller) teardownLocked() {
	if c.cancelResume != nil {
		c.cancelResume()
		c.cancelResume = nil
	}
	if c.live != nil {
		if c.live.adapter != nil {
			c.live.adapter.Destroy()
		}
		metrics.SessionsActive.Dec()
		c.publish(telemetry.Event{
			SessionID: c.live.id,
			Type:      telemetry.EventSessionClosed,
			SourceURL: c.live.source.URL,
		})
		c.live = nil
	}
}

// publish enqueues the event for ordered delivery off the session lock. A
// full buffer drops the event rather than stall a switch.
func (c *Controller) publish(event telemetry.Event) {
	event.Timestamp = time.Now()

	c.evMu.Lock()
	defer c.evMu.Unlock()
	if c.evClosed {
		return
	}
	select {
	case c.events <- event:
	default:
		c.log.Warn().Str("type", event.Type).Msg("Event buffer full, dropping session event")
	}
}

func (c *Controller) publishLoop() {
	for event := range c.events {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := c.pub.Publish(ctx, event); err != nil {
			c.log.Warn().Err(err).Str("type", event.Type).Msg("Failed to publish session event")
		}
		cancel()
	}
	close(c.eventsDone)
}

func findLabeledSource(sources []models.Source, label string) (models.Source, bool) {
	for _, src := range sources {
		if src.Label == label {
			return src, true
		}
	}
	return models.Source{}, false
}

func errLevel(fatal bool) zerolog.Level {
	if fatal {
		return zerolog.ErrorLevel
	}
	return zerolog.WarnLevel
}
