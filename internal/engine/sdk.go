package engine

import (
	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/pkg/models"
)

// Config carries per-instance settings handed to an engine library when a
// new instance is created for a source
type Config struct {
	// Rewrite, when non-nil, is applied to every manifest and segment
	// request the engine issues, not only the initial manifest fetch
	Rewrite func(requestURL string) string
}

// RawAudioTrack is an in-manifest audio track as reported by an engine
type RawAudioTrack struct {
	Lang string
	Name string
}

// RawSubtitleTrack is an in-manifest subtitle track as reported by an engine
type RawSubtitleTrack struct {
	Lang string
	Name string
	URL  string
}

// HLSLib is the exported handle of a loaded segmented-manifest engine
// library. Instances are created per source.
type HLSLib interface {
	Supported() bool
	New(cfg Config) HLSInstance
}

// HLSInstance is one live segmented-manifest engine
type HLSInstance interface {
	AttachMedia(el media.Element)
	LoadSource(url string)

	Levels() []QualityLevel
	SetCurrentLevel(index int)
	SetAudioTrack(index int)
	SetSubtitleTrack(index int)
	SetSubtitleDisplay(enabled bool)

	StartLoad()
	RecoverMediaError()
	Destroy()

	OnManifestParsed(fn func(levels []QualityLevel))
	OnAudioTracksUpdated(fn func(tracks []RawAudioTrack))
	OnSubtitleTracksUpdated(fn func(tracks []RawSubtitleTrack))
	OnError(fn func(kind models.ErrorKind, fatal bool, cause error))
}

// DASHLib is the exported handle of a loaded DASH engine library
type DASHLib interface {
	New(cfg Config) DASHInstance
}

// DASHInstance is one live DASH engine. Bitrate info is only available after
// the first frame has been decoded.
type DASHInstance interface {
	AttachView(el media.Element)
	AttachSource(url string)
	SetAutoSwitchQuality(enabled bool)

	BitrateList() []QualityLevel
	SetQualityFor(index int)

	Reset()

	OnFirstFrame(fn func(levels []QualityLevel))
	OnError(fn func(kind models.ErrorKind, fatal bool, cause error))
}
