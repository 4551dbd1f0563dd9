package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/pkg/models"
)

// DASHAdapter drives a DASH engine library. Bitrate info only becomes
// available after the first decoded frame, so quality selections issued in
// that window are queued and applied once the ladder is known.
type DASHAdapter struct {
	mu sync.Mutex

	lib      DASHLib
	rewriter models.URLRewriter

	el         media.Element
	events     Events
	inst       DASHInstance
	src        models.Source
	levels     []QualityLevel
	ready      bool
	pending    int
	hasPending bool
	destroyed  bool
}

// NewDASHAdapter wraps a loaded DASH engine library
func NewDASHAdapter(lib DASHLib, rewriter models.URLRewriter) *DASHAdapter {
	return &DASHAdapter{lib: lib, rewriter: rewriter}
}

// Attach records the media element and event sinks
func (a *DASHAdapter) Attach(el media.Element, events Events) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	a.el = el
	a.events = events
	return nil
}

// Load creates a fresh engine instance, disables in-engine adaptive
// switching, and attaches the manifest. The ladder is published from the
// first-frame callback, not from manifest parse.
func (a *DASHAdapter) Load(ctx context.Context, src models.Source) error {
	a.mu.Lock()

	if a.destroyed {
		a.mu.Unlock()
		return ErrDestroyed
	}
	if a.el == nil {
		a.mu.Unlock()
		return fmt.Errorf("engine: dash adapter not attached")
	}
	if err := ctx.Err(); err != nil {
		a.mu.Unlock()
		return err
	}

	if a.inst != nil {
		a.inst.Reset()
		a.inst = nil
	}
	a.ready = false
	a.levels = nil

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

	events := a.events
	inst.OnFirstFrame(func(levels []QualityLevel) {
		a.mu.Lock()
		a.levels = levels
		a.ready = true
		applyPending := a.hasPending
		pending := a.pending
		a.hasPending = false
		a.mu.Unlock()

		if applyPending {
			inst.SetQualityFor(pending)
		}
		if events.OnQualityLevels != nil {
			events.OnQualityLevels(levels)
		}
	})
	inst.OnError(func(kind models.ErrorKind, fatal bool, cause error) {
		if events.OnError != nil {
			events.OnError(Error{Kind: kind, Fatal: fatal, Cause: cause})
		}
	})

	inst.SetAutoSwitchQuality(false)
	inst.AttachView(a.el)
	a.inst = inst
	a.src = src
	a.mu.Unlock()

	// attaching the manifest may deliver the first-frame callback
	// synchronously, and it re-enters the adapter; the lock must be free
	inst.AttachSource(src.URL)

	return nil
}

// SetQualityLevel switches the ladder level once bitrate info exists; before
// that the selection is queued and applied at first frame.
func (a *DASHAdapter) SetQualityLevel(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return ErrDestroyed
	}
	if a.inst == nil {
		return fmt.Errorf("engine: no dash instance loaded")
	}
	if !a.ready {
		a.pending = index
		a.hasPending = true
		return nil
	}
	a.inst.SetQualityFor(index)
	return nil
}

// SetAudioTrack is not part of the DASH engine surface here
func (a *DASHAdapter) SetAudioTrack(index int) error {
	return ErrUnsupported
}

// Restart re-attaches the current manifest. Like Load, the attach can
// deliver the first-frame callback synchronously, so it runs off the lock.
func (a *DASHAdapter) Restart() error {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return ErrDestroyed
	}
	if a.inst == nil {
		a.mu.Unlock()
		return fmt.Errorf("engine: no dash instance loaded")
	}
	a.ready = false
	inst := a.inst
	url := a.src.URL
	a.mu.Unlock()

	inst.AttachSource(url)
	return nil
}

// RecoverMedia has no DASH-side primitive
func (a *DASHAdapter) RecoverMedia() error {
	return ErrUnsupported
}

// Levels returns the ladder discovered at first frame
func (a *DASHAdapter) Levels() []QualityLevel {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.levels
}

// Capabilities reports the switch surface of DASH engines
func (a *DASHAdapter) Capabilities() Capabilities {
	return Capabilities{QualityLadder: true, AudioTracks: false}
}

// Destroy resets the live instance and detaches everything
func (a *DASHAdapter) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.destroyed = true
	if a.inst != nil {
		a.inst.Reset()
		a.inst = nil
	}
	a.el = nil
	a.events = Events{}
}
