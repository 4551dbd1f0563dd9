package models

// AudioTrack represents a selectable audio track discovered by an engine
type AudioTrack struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	MediaRef    string `json:"media_ref,omitempty"`
}

// SubtitleTrack represents a selectable subtitle track. The controller only
// carries identity and selection; cue retrieval belongs to the host.
type SubtitleTrack struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	MediaRef    string `json:"media_ref,omitempty"`
}

// TrackState is the unified, derived view of available and selected tracks.
// Invariant: every non-empty Current* value references an id present in the
// corresponding list.
type TrackState struct {
	Qualities       []string        `json:"qualities"`
	CurrentQuality  string          `json:"current_quality,omitempty"`
	Audios          []AudioTrack    `json:"audios"`
	CurrentAudio    string          `json:"current_audio,omitempty"`
	Subtitles       []SubtitleTrack `json:"subtitles"`
	CurrentSubtitle string          `json:"current_subtitle,omitempty"`
	SubtitleEnabled bool            `json:"subtitle_enabled"`
	Error           *PlaybackError  `json:"error,omitempty"`
}

// Preferences is the persisted selection blob restored across sessions.
// Unknown fields in a stored blob are ignored, never rejected.
type Preferences struct {
	CurrentAudio    string `json:"current_audio,omitempty"`
	CurrentQuality  string `json:"current_quality,omitempty"`
	CurrentSubtitle string `json:"current_subtitle,omitempty"`
	SubtitleEnabled bool   `json:"subtitle_enabled"`
}

// URLRewriter lets the embedding application redirect every manifest and
// segment request issued for a source
type URLRewriter func(requestURL string, source Source) string

// PreferQualityFunc picks an initial quality from the available labels
type PreferQualityFunc func(available []string) string
