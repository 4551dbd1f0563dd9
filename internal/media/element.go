// Package media defines the handle through which the session controller and
// engine adapters drive the rendering surface. The surface itself is an
// external collaborator; only standard playback operations and events are
// consumed here.
package media

// Element is the playback surface handle. In direct mode the controller
// drives it itself; otherwise the attached engine adapter has exclusive use.
type Element interface {
	Play() error
	Pause()
	Paused() bool

	CurrentTime() float64
	SeekTo(seconds float64)

	Source() string
	SetSource(url string)
	Load()

	Volume() float64
	SetVolume(v float64)

	// OnceCanPlay registers a one-shot listener for the next ready-to-play
	// signal. The returned cancel detaches the listener if it has not fired.
	OnceCanPlay(fn func()) (cancel func())
}
