package models

import (
	"strconv"
	"strings"

	"github.com/samber/lo"
)

// SourceKind identifies how a source URL must be played back
type SourceKind string

// SourceKind constants
const (
	SourceKindProgressive SourceKind = "progressive"
	SourceKindHLS         SourceKind = "hls"
	SourceKindDASH        SourceKind = "dash"
)

// Source describes one playable stream alternative
type Source struct {
	URL   string     `json:"url"`
	Label string     `json:"label,omitempty"`
	Kind  SourceKind `json:"kind,omitempty"`
}

// QualityModel identifies how quality switching works for a source list
type QualityModel string

// QualityModel constants
const (
	QualityModelSourceSwap    QualityModel = "source_swap"
	QualityModelEngineManaged QualityModel = "engine_managed"
	QualityModelDirect        QualityModel = "direct"
)

// DetectKind infers the playback kind from an explicit tag or the URL.
// The result is stored on the source at ingestion and never re-derived.
func DetectKind(src Source) SourceKind {
	if src.Kind != "" {
		return src.Kind
	}
	if strings.Contains(src.URL, "m3u8") {
		return SourceKindHLS
	}
	if strings.Contains(src.URL, "mpd") {
		return SourceKindDASH
	}
	return SourceKindProgressive
}

// NormalizeSources tags every source with its inferred kind
func NormalizeSources(sources []Source) []Source {
	return lo.Map(sources, func(src Source, _ int) Source {
		src.Kind = DetectKind(src)
		return src
	})
}

// ClassifySources decides the quality model for a source list. More than one
// entry always means whole-stream alternatives; a single manifest entry leaves
// quality to the engine's bitrate ladder.
func ClassifySources(sources []Source) QualityModel {
	if len(sources) > 1 {
		return QualityModelSourceSwap
	}
	if len(sources) == 1 && sources[0].Kind != SourceKindProgressive {
		return QualityModelEngineManaged
	}
	return QualityModelDirect
}

// ParseQualityHeight extracts the numeric height from a quality label
// (e.g. "1080p" -> 1080). Returns 0 when no digits are present.
func ParseQualityHeight(label string) int {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, label)

	if digits == "" {
		return 0
	}

	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}

// FormatHeightLabel renders a vertical resolution as a quality label
func FormatHeightLabel(height int) string {
	return strconv.Itoa(height) + "p"
}

// SortQualityLabels orders labels by numeric height descending and removes
// duplicates. Labels without a parsable height keep their relative order at
// the end of the list.
func SortQualityLabels(labels []string) []string {
	sorted := make([]string, len(labels))
	copy(sorted, labels)

	// stable insertion keeps list order for equal/unparsable heights
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && ParseQualityHeight(sorted[j]) > ParseQualityHeight(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	return lo.Uniq(sorted)
}

// LabeledQualities extracts the de-duplicated, sorted quality labels from a
// source-swap list
func LabeledQualities(sources []Source) []string {
	labels := lo.FilterMap(sources, func(src Source, _ int) (string, bool) {
		return src.Label, src.Label != ""
	})
	return SortQualityLabels(labels)
}

// FindSourceByLabel returns the source whose label matches, falling back to
// the first source when no label matches
func FindSourceByLabel(sources []Source, label string) (Source, bool) {
	if label != "" {
		for _, src := range sources {
			if src.Label == label {
				return src, true
			}
		}
	}
	if len(sources) > 0 {
		return sources[0], false
	}
	return Source{}, false
}
