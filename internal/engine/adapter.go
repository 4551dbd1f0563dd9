// Package engine wraps concrete streaming engines behind one capability
// surface: attach to a media element, load a manifest, report discovered
// tracks and errors, switch levels, and be destroyed.
package engine

import (
	"context"
	"errors"

	"github.com/playscope/playkit/internal/media"
	"github.com/playscope/playkit/pkg/models"
)

// ErrDestroyed is returned by operations on an adapter after Destroy
var ErrDestroyed = errors.New("engine: adapter destroyed")

// ErrUnsupported is returned when a switch capability is absent
var ErrUnsupported = errors.New("engine: operation not supported")

// QualityLevel is one rung of an engine-internal bitrate ladder
type QualityLevel struct {
	Index   int   `json:"index"`
	Height  int   `json:"height"`
	Bitrate int64 `json:"bitrate"`
}

// Error is an engine-reported failure
type Error struct {
	Kind  models.ErrorKind
	Fatal bool
	Cause error
}

// Events are the discovery and failure callbacks an adapter fires after
// manifest parse (or first frame, for DASH). Nil callbacks are skipped.
type Events struct {
	OnQualityLevels  func(levels []QualityLevel)
	OnAudioTracks    func(tracks []models.AudioTrack)
	OnSubtitleTracks func(tracks []models.SubtitleTrack)
	OnError          func(err Error)
}

// Capabilities reports which switch operations an adapter supports
type Capabilities struct {
	QualityLadder bool
	AudioTracks   bool
}

// Adapter is the uniform surface over one concrete streaming engine bound to
// one media element. Adapters are not reentrant-safe: the previous instance
// must be destroyed before a new one is attached to the same element.
type Adapter interface {
	Attach(el media.Element, events Events) error
	Load(ctx context.Context, src models.Source) error

	// Levels is the discovered bitrate ladder; empty until discovery fires
	Levels() []QualityLevel
	SetQualityLevel(index int) error
	SetAudioTrack(index int) error

	// Restart re-issues loading of the current stream (network recovery)
	Restart() error
	// RecoverMedia attempts decode-level recovery
	RecoverMedia() error

	Capabilities() Capabilities
	Destroy()
}

// LevelLabels maps ladder levels to height labels, descending. Levels without
// a known height are excluded from the label list but stay playable as the
// lowest fallback entry.
func LevelLabels(levels []QualityLevel) []string {
	labels := make([]string, 0, len(levels))
	for _, lv := range sortLevelsByHeight(levels) {
		if lv.Height <= 0 {
			continue
		}
		labels = append(labels, models.FormatHeightLabel(lv.Height))
	}
	return models.SortQualityLabels(labels)
}

// FindLevelByLabel returns the ladder index matching a height label
func FindLevelByLabel(levels []QualityLevel, label string) (int, bool) {
	height := models.ParseQualityHeight(label)
	for _, lv := range levels {
		if lv.Height == height {
			return lv.Index, true
		}
	}
	return 0, false
}

func sortLevelsByHeight(levels []QualityLevel) []QualityLevel {
	sorted := make([]QualityLevel, len(levels))
	copy(sorted, levels)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Height > sorted[j-1].Height; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}
