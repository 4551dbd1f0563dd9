// Package sim provides scriptable in-process engines implementing the
// engine SDK contracts. They stand in for real streaming engines in tests
// and in the soak daemon, replaying a scripted manifest instead of fetching
// one over the network.
package sim

import (
	"sync"

	"github.com/playscope/playkit/internal/engine"
	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/pkg/models"
)

// Manifest is the scripted content a sim engine "discovers"
type Manifest struct {
	Levels    []engine.QualityLevel
	Audios    []engine.RawAudioTrack
	Subtitles []engine.RawSubtitleTrack
}

// HLSLib is a scriptable segmented-manifest engine library
type HLSLib struct {
	Manifest    Manifest
	Unsupported bool
	// AutoParse fires discovery callbacks synchronously on LoadSource
	AutoParse bool

	mu        sync.Mutex
	instances []*HLSInstance
}

// Supported reports engine availability
func (l *HLSLib) Supported() bool { return !l.Unsupported }

// New creates a scripted engine instance
func (l *HLSLib) New(cfg engine.Config) engine.HLSInstance {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst := &HLSInstance{lib: l, cfg: cfg, currentLevel: -1, audioTrack: -1}
	l.instances = append(l.instances, inst)
	return inst
}

// Instances returns every instance the library has created
func (l *HLSLib) Instances() []*HLSInstance {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*HLSInstance, len(l.instances))
	copy(out, l.instances)
	return out
}

// Last returns the most recently created instance, or nil
func (l *HLSLib) Last() *HLSInstance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.instances) == 0 {
		return nil
	}
	return l.instances[len(l.instances)-1]
}

// HLSInstance is one scripted segmented-manifest engine
type HLSInstance struct {
	mu  sync.Mutex
	lib *HLSLib
	cfg engine.Config

	el        media.Element
	loadedURL string

	currentLevel    int
	audioTrack      int
	subtitleTrack   int
	subtitleDisplay bool

	startLoads int
	recovers   int
	destroyed  bool

	onManifest  func([]engine.QualityLevel)
	onAudio     func([]engine.RawAudioTrack)
	onSubtitles func([]engine.RawSubtitleTrack)
	onError     func(models.ErrorKind, bool, error)

	// RequestLog records rewritten request URLs issued by the instance
	RequestLog []string
}

// AttachMedia binds the element
func (i *HLSInstance) AttachMedia(el media.Element) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.el = el
}

// LoadSource records the manifest request (through the rewriter, as every
// request must be) and fires discovery when AutoParse is on
func (i *HLSInstance) LoadSource(url string) {
	i.mu.Lock()
	final := url
	if i.cfg.Rewrite != nil {
		final = i.cfg.Rewrite(url)
	}
	i.loadedURL = final
	i.RequestLog = append(i.RequestLog, final)
	auto := i.lib.AutoParse
	i.mu.Unlock()

	if auto {
		i.FireManifestParsed()
	}
}

// FireManifestParsed replays the scripted manifest into the callbacks
func (i *HLSInstance) FireManifestParsed() {
	i.mu.Lock()
	m := i.lib.Manifest
	onManifest, onAudio, onSubtitles := i.onManifest, i.onAudio, i.onSubtitles
	i.mu.Unlock()

	if onManifest != nil {
		onManifest(m.Levels)
	}
	if onAudio != nil && len(m.Audios) > 0 {
		onAudio(m.Audios)
	}
	if onSubtitles != nil && len(m.Subtitles) > 0 {
		onSubtitles(m.Subtitles)
	}
}

// FireError injects an engine error
func (i *HLSInstance) FireError(kind models.ErrorKind, fatal bool, cause error) {
	i.mu.Lock()
	onError := i.onError
	i.mu.Unlock()
	if onError != nil {
		onError(kind, fatal, cause)
	}
}

// FetchSegment simulates a segment request going through the rewriter
func (i *HLSInstance) FetchSegment(url string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	final := url
	if i.cfg.Rewrite != nil {
		final = i.cfg.Rewrite(url)
	}
	i.RequestLog = append(i.RequestLog, final)
	return final
}

// Levels returns the scripted ladder
func (i *HLSInstance) Levels() []engine.QualityLevel {
	return i.lib.Manifest.Levels
}

// SetCurrentLevel records an in-engine level switch
func (i *HLSInstance) SetCurrentLevel(index int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.currentLevel = index
}

// CurrentLevel returns the last switched level index
func (i *HLSInstance) CurrentLevel() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.currentLevel
}

// SetAudioTrack records an audio switch
func (i *HLSInstance) SetAudioTrack(index int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.audioTrack = index
}

// AudioTrack returns the last switched audio index
func (i *HLSInstance) AudioTrack() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.audioTrack
}

// SetSubtitleTrack records native subtitle track selection
func (i *HLSInstance) SetSubtitleTrack(index int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.subtitleTrack = index
}

// SetSubtitleDisplay records native subtitle rendering state
func (i *HLSInstance) SetSubtitleDisplay(enabled bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.subtitleDisplay = enabled
}

// SubtitleSuppressed reports that native rendering is off
func (i *HLSInstance) SubtitleSuppressed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.subtitleTrack == -1 && !i.subtitleDisplay
}

// StartLoad counts restart attempts
func (i *HLSInstance) StartLoad() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.startLoads++
}

// StartLoadCount reports restart attempts
func (i *HLSInstance) StartLoadCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.startLoads
}

// RecoverMediaError counts decode recovery attempts
func (i *HLSInstance) RecoverMediaError() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.recovers++
}

// RecoverCount reports decode recovery attempts
func (i *HLSInstance) RecoverCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.recovers
}

// Destroy marks the instance dead
func (i *HLSInstance) Destroy() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.destroyed = true
}

// Destroyed reports teardown
func (i *HLSInstance) Destroyed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyed
}

// OnManifestParsed registers the manifest callback
func (i *HLSInstance) OnManifestParsed(fn func([]engine.QualityLevel)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onManifest = fn
}

// OnAudioTracksUpdated registers the audio discovery callback
func (i *HLSInstance) OnAudioTracksUpdated(fn func([]engine.RawAudioTrack)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onAudio = fn
}

// OnSubtitleTracksUpdated registers the subtitle discovery callback
func (i *HLSInstance) OnSubtitleTracksUpdated(fn func([]engine.RawSubtitleTrack)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onSubtitles = fn
}

// OnError registers the error callback
func (i *HLSInstance) OnError(fn func(models.ErrorKind, bool, error)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onError = fn
}
