package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/pkg/models"
)

// HLSAdapter drives a segmented-manifest engine library. One instance is
// created per loaded source; Destroy tears down the live instance before a
// replacement may attach to the same element.
type HLSAdapter struct {
	mu sync.Mutex

	lib      HLSLib
	rewriter models.URLRewriter

	el        media.Element
	events    Events
	inst      HLSInstance
	levels    []QualityLevel
	destroyed bool
}

// NewHLSAdapter wraps a loaded segmented-manifest engine library
func NewHLSAdapter(lib HLSLib, rewriter models.URLRewriter) *HLSAdapter {
	return &HLSAdapter{lib: lib, rewriter: rewriter}
}

// Attach records the media element and event sinks. The engine instance is
// created lazily at Load because request rewriting is bound to the source.
func (a *HLSAdapter) Attach(el media.Element, events Events) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	a.el = el
	a.events = events
	return nil
}

// Load creates a fresh engine instance for the source, wires discovery and
// error callbacks, suppresses native subtitle rendering, and starts loading
// the manifest.
func (a *HLSAdapter) Load(ctx context.Context, src models.Source) error {
	a.mu.Lock()

	if a.destroyed {
		a.mu.Unlock()
		return ErrDestroyed
	}
	if a.el == nil {
		a.mu.Unlock()
		return fmt.Errorf("engine: hls adapter not attached")
	}
	if err := ctx.Err(); err != nil {
		a.mu.Unlock()
		return err
	}
	if !a.lib.Supported() {
		// native fallback: the element itself may know the container
		el := a.el
		a.mu.Unlock()
		el.SetSource(src.URL)
		el.Load()
		return nil
	}

	if a.inst != nil {
		a.inst.Destroy()
		a.inst = nil
	}

	cfg := Config{}
	if a.rewriter != nil {
		rw := a.rewriter
		cfg.Rewrite = func(requestURL string) string {
			if final := rw(requestURL, src); final != "" {
				return final
			}
			return requestURL
		}
	}

	inst := a.lib.New(cfg)

	// the textual overlay is the single source of truth for subtitles
	inst.SetSubtitleTrack(-1)
	inst.SetSubtitleDisplay(false)

	events := a.events
	inst.OnManifestParsed(func(levels []QualityLevel) {
		a.mu.Lock()
		a.levels = levels
		a.mu.Unlock()
		if events.OnQualityLevels != nil {
			events.OnQualityLevels(levels)
		}
	})
	inst.OnAudioTracksUpdated(func(raw []RawAudioTrack) {
		if events.OnAudioTracks != nil {
			events.OnAudioTracks(mapAudioTracks(raw))
		}
	})
	inst.OnSubtitleTracksUpdated(func(raw []RawSubtitleTrack) {
		if events.OnSubtitleTracks != nil {
			events.OnSubtitleTracks(mapSubtitleTracks(raw))
		}
	})
	inst.OnError(func(kind models.ErrorKind, fatal bool, cause error) {
		if events.OnError != nil {
			events.OnError(Error{Kind: kind, Fatal: fatal, Cause: cause})
		}
	})

	inst.AttachMedia(a.el)
	a.inst = inst
	a.mu.Unlock()

	// the manifest request may deliver discovery callbacks synchronously,
	// and those re-enter the adapter; the lock must be free by now
	inst.LoadSource(src.URL)

	return nil
}

// SetQualityLevel switches the engine-internal ladder level in place
func (a *HLSAdapter) SetQualityLevel(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	if a.inst == nil {
		return fmt.Errorf("engine: no hls instance loaded")
	}
	a.inst.SetCurrentLevel(index)
	return nil
}

// SetAudioTrack switches the in-manifest audio track
func (a *HLSAdapter) SetAudioTrack(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	if a.inst == nil {
		return fmt.Errorf("engine: no hls instance loaded")
	}
	a.inst.SetAudioTrack(index)
	return nil
}

// Restart re-issues loading of the current stream
func (a *HLSAdapter) Restart() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	if a.inst == nil {
		return fmt.Errorf("engine: no hls instance loaded")
	}
	a.inst.StartLoad()
	return nil
}

// RecoverMedia attempts decode-level recovery
func (a *HLSAdapter) RecoverMedia() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	if a.inst == nil {
		return fmt.Errorf("engine: no hls instance loaded")
	}
	a.inst.RecoverMediaError()
	return nil
}

// Levels returns the ladder discovered at manifest parse
func (a *HLSAdapter) Levels() []QualityLevel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.levels
}

// Capabilities reports the switch surface of segmented-manifest engines
func (a *HLSAdapter) Capabilities() Capabilities {
	return Capabilities{QualityLadder: true, AudioTracks: true}
}

// Destroy tears down the live instance and detaches everything
func (a *HLSAdapter) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.destroyed = true
	if a.inst != nil {
		a.inst.Destroy()
		a.inst = nil
	}
	a.el = nil
	a.events = Events{}
}

// trackID derives a stable per-track id. Language tags repeat in manifests
// that carry several renditions per language, so duplicates take an index
// suffix to stay addressable.
func trackID(lang string, index int, seen map[string]bool) string {
	id := lang
	if id == "" {
		id = strconv.Itoa(index)
	} else if seen[id] {
		id = id + "-" + strconv.Itoa(index)
	}
	seen[id] = true
	return id
}

func mapAudioTracks(raw []RawAudioTrack) []models.AudioTrack {
	tracks := make([]models.AudioTrack, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		tracks = append(tracks, models.AudioTrack{ID: trackID(r.Lang, i, seen), DisplayName: r.Name})
	}
	return tracks
}

func mapSubtitleTracks(raw []RawSubtitleTrack) []models.SubtitleTrack {
	tracks := make([]models.SubtitleTrack, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		tracks = append(tracks, models.SubtitleTrack{
			ID:          trackID(r.Lang, i, seen),
			DisplayName: r.Name,
			MediaRef:    r.URL,
		})
	}
	return tracks
}
