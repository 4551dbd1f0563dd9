package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectKind(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		want SourceKind
	}{
		{"explicit tag wins", Source{URL: "https://cdn.example.com/a.mp4", Kind: SourceKindHLS}, SourceKindHLS},
		{"hls from url", Source{URL: "https://cdn.example.com/master.m3u8"}, SourceKindHLS},
		{"hls with query", Source{URL: "https://cdn.example.com/master.m3u8?token=x"}, SourceKindHLS},
		{"dash from url", Source{URL: "https://cdn.example.com/manifest.mpd"}, SourceKindDASH},
		{"progressive fallback", Source{URL: "https://cdn.example.com/movie.mp4"}, SourceKindProgressive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectKind(tt.src))
		})
	}
}

func TestClassifySources(t *testing.T) {
	tests := []struct {
		name    string
		sources []Source
		want    QualityModel
	}{
		{
			"multiple entries swap sources",
			[]Source{
				{URL: "a.mp4", Label: "1080p", Kind: SourceKindProgressive},
				{URL: "b.mp4", Label: "720p", Kind: SourceKindProgressive},
			},
			QualityModelSourceSwap,
		},
		{
			"multiple manifests still swap sources",
			[]Source{
				{URL: "a.m3u8", Label: "1080p", Kind: SourceKindHLS},
				{URL: "b.m3u8", Label: "720p", Kind: SourceKindHLS},
			},
			QualityModelSourceSwap,
		},
		{"single manifest", []Source{{URL: "a.m3u8", Kind: SourceKindHLS}}, QualityModelEngineManaged},
		{"single dash manifest", []Source{{URL: "a.mpd", Kind: SourceKindDASH}}, QualityModelEngineManaged},
		{"single progressive", []Source{{URL: "a.mp4", Kind: SourceKindProgressive}}, QualityModelDirect},
		{"empty", nil, QualityModelDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifySources(tt.sources))
		})
	}
}

func TestNormalizeSourcesTagsKinds(t *testing.T) {
	sources := NormalizeSources([]Source{
		{URL: "https://cdn.example.com/master.m3u8"},
		{URL: "https://cdn.example.com/movie.mp4", Label: "720p"},
	})

	assert.Equal(t, SourceKindHLS, sources[0].Kind)
	assert.Equal(t, SourceKindProgressive, sources[1].Kind)
	assert.Equal(t, "720p", sources[1].Label)
}

func TestParseQualityHeight(t *testing.T) {
	assert.Equal(t, 1080, ParseQualityHeight("1080p"))
	assert.Equal(t, 720, ParseQualityHeight("720P HD"))
	assert.Equal(t, 0, ParseQualityHeight("auto"))
	assert.Equal(t, 0, ParseQualityHeight(""))
}

func TestSortQualityLabels(t *testing.T) {
	got := SortQualityLabels([]string{"480p", "1080p", "720p", "480p"})
	assert.Equal(t, []string{"1080p", "720p", "480p"}, got)
}

func TestSortQualityLabelsKeepsUnparsableLast(t *testing.T) {
	got := SortQualityLabels([]string{"auto", "720p", "1080p"})
	assert.Equal(t, []string{"1080p", "720p", "auto"}, got)
}

func TestLabeledQualities(t *testing.T) {
	sources := []Source{
		{URL: "a.mp4", Label: "480p"},
		{URL: "b.mp4"},
		{URL: "c.mp4", Label: "1080p"},
	}
	assert.Equal(t, []string{"1080p", "480p"}, LabeledQualities(sources))
}

func TestFindSourceByLabel(t *testing.T) {
	sources := []Source{
		{URL: "a.mp4", Label: "1080p"},
		{URL: "b.mp4", Label: "720p"},
	}

	src, ok := FindSourceByLabel(sources, "720p")
	assert.True(t, ok)
	assert.Equal(t, "b.mp4", src.URL)

	src, ok = FindSourceByLabel(sources, "4320p")
	assert.False(t, ok)
	assert.Equal(t, "a.mp4", src.URL, "unknown label falls back to the first source")

	_, ok = FindSourceByLabel(nil, "1080p")
	assert.False(t, ok)
}
