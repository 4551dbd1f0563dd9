package media

import "sync"

// SimElement is an in-memory playback surface used by tests and the soak
// daemon. Ready-to-play is signalled explicitly via FireCanPlay.
type SimElement struct {
	mu sync.Mutex

	src     string
	time    float64
	volume  float64
	paused  bool
	loads   int
	canPlay []*canPlayListener

	// PlayErr, when set, is returned by Play (autoplay rejection)
	PlayErr error
}

type canPlayListener struct {
	fn        func()
	cancelled bool
}

// NewSimElement returns a paused element with no source
func NewSimElement() *SimElement {
	return &SimElement{paused: true, volume: 1.0}
}

// Play starts playback unless PlayErr is set
func (e *SimElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.PlayErr != nil {
		return e.PlayErr
	}
	e.paused = false
	return nil
}

// Pause stops playback
func (e *SimElement) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Paused reports whether playback is stopped
func (e *SimElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// CurrentTime returns the playhead position in seconds
func (e *SimElement) CurrentTime() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.time
}

// SeekTo moves the playhead
func (e *SimElement) SeekTo(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.time = seconds
}

// Advance moves the playhead forward while playing
func (e *SimElement) Advance(seconds float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.paused {
		e.time += seconds
	}
}

// Source returns the assigned source URL
func (e *SimElement) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// SetSource assigns a source URL without resetting the playhead
func (e *SimElement) SetSource(url string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = url
}

// Load counts load requests; a real surface would begin fetching here
func (e *SimElement) Load() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loads++
}

// LoadCount reports how many loads were issued
func (e *SimElement) LoadCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loads
}

// Volume returns the current volume
func (e *SimElement) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

// SetVolume sets the current volume
func (e *SimElement) SetVolume(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.volume = v
}

// OnceCanPlay registers a one-shot ready-to-play listener
func (e *SimElement) OnceCanPlay(fn func()) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	l := &canPlayListener{fn: fn}
	e.canPlay = append(e.canPlay, l)

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		l.cancelled = true
	}
}

// FireCanPlay delivers the ready-to-play signal to all pending one-shot
// listeners and detaches them
func (e *SimElement) FireCanPlay() {
	e.mu.Lock()
	pending := e.canPlay
	e.canPlay = nil
	e.mu.Unlock()

	for _, l := range pending {
		e.mu.Lock()
		cancelled := l.cancelled
		e.mu.Unlock()
		if !cancelled {
			l.fn()
		}
	}
}
