package sim

import (
	"sync"

	"github.com/playscope/playkit/internal/engine"
	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/pkg/models"
)

// DASHLib is a scriptable DASH engine library
type DASHLib struct {
	Manifest Manifest
	// AutoFirstFrame fires the first-frame callback synchronously on
	// AttachSource
	AutoFirstFrame bool

	mu        sync.Mutex
	instances []*DASHInstance
}

// New creates a scripted DASH instance
func (l *DASHLib) New(cfg engine.Config) engine.DASHInstance {
	l.mu.Lock()
	defer l.mu.Unlock()
	inst := &DASHInstance{lib: l, cfg: cfg, quality: -1, autoSwitch: true}
	l.instances = append(l.instances, inst)
	return inst
}

// Last returns the most recently created instance, or nil
func (l *DASHLib) Last() *DASHInstance {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.instances) == 0 {
		return nil
	}
	return l.instances[len(l.instances)-1]
}

// DASHInstance is one scripted DASH engine
type DASHInstance struct {
	mu  sync.Mutex
	lib *DASHLib
	cfg engine.Config

	el         media.Element
	sourceURL  string
	attaches   int
	autoSwitch bool
	quality    int
	resets     int

	onFirstFrame func([]engine.QualityLevel)
	onError      func(models.ErrorKind, bool, error)

	// RequestLog records rewritten request URLs issued by the instance
	RequestLog []string
}

// AttachView binds the element
func (i *DASHInstance) AttachView(el media.Element) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.el = el
}

// AttachSource records the manifest request through the rewriter
func (i *DASHInstance) AttachSource(url string) {
	i.mu.Lock()
	final := url
	if i.cfg.Rewrite != nil {
		final = i.cfg.Rewrite(url)
	}
	i.sourceURL = final
	i.attaches++
	i.RequestLog = append(i.RequestLog, final)
	auto := i.lib.AutoFirstFrame
	i.mu.Unlock()

	if auto {
		i.FireFirstFrame()
	}
}

// AttachCount reports how many times a source was attached
func (i *DASHInstance) AttachCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.attaches
}

// SetAutoSwitchQuality records the in-engine ABR state
func (i *DASHInstance) SetAutoSwitchQuality(enabled bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.autoSwitch = enabled
}

// AutoSwitch reports the in-engine ABR state
func (i *DASHInstance) AutoSwitch() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.autoSwitch
}

// BitrateList returns the scripted ladder
func (i *DASHInstance) BitrateList() []engine.QualityLevel {
	return i.lib.Manifest.Levels
}

// SetQualityFor records a ladder switch
func (i *DASHInstance) SetQualityFor(index int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.quality = index
}

// Quality returns the last switched ladder index
func (i *DASHInstance) Quality() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.quality
}

// Reset counts teardown calls
func (i *DASHInstance) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.resets++
}

// ResetCount reports teardown calls
func (i *DASHInstance) ResetCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.resets
}

// FireFirstFrame delivers the first-frame-decoded signal with the ladder
func (i *DASHInstance) FireFirstFrame() {
	i.mu.Lock()
	fn := i.onFirstFrame
	levels := i.lib.Manifest.Levels
	i.mu.Unlock()
	if fn != nil {
		fn(levels)
	}
}

// FireError injects an engine error
func (i *DASHInstance) FireError(kind models.ErrorKind, fatal bool, cause error) {
	i.mu.Lock()
	fn := i.onError
	i.mu.Unlock()
	if fn != nil {
		fn(kind, fatal, cause)
	}
}

// OnFirstFrame registers the first-frame callback
func (i *DASHInstance) OnFirstFrame(fn func([]engine.QualityLevel)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onFirstFrame = fn
}

// OnError registers the error callback
func (i *DASHInstance) OnError(fn func(models.ErrorKind, bool, error)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.onError = fn
}
