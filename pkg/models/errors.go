package models

import "time"

// ErrorKind classifies engine-reported playback failures
type ErrorKind string

// ErrorKind constants
const (
	ErrorKindNetwork    ErrorKind = "network"
	ErrorKindMedia      ErrorKind = "media"
	ErrorKindEngineLoad ErrorKind = "engine_load"
	ErrorKindAutoplay   ErrorKind = "autoplay"
	ErrorKindOther      ErrorKind = "other"
)

// PlaybackError is a fatal playback failure surfaced to the host after local
// recovery has been exhausted
type PlaybackError struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	Persistent bool      `json:"persistent"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Error implements the error interface
func (e *PlaybackError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Recoverable reports whether a retry may re-invoke the load step without a
// full session replay. Decode-level and library-load failures need a full
// session rebuild.
func (e *PlaybackError) Recoverable() bool {
	return e.Kind == ErrorKindNetwork
}
