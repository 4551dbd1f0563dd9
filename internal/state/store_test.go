package state

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playscope/playkit/internal/logging"
	"github.com/playscope/playkit/pkg/models"
)

type memPersister struct {
	mu    sync.Mutex
	saved []models.Preferences
	err   error
}

func (p *memPersister) Save(ctx context.Context, profile string, prefs models.Preferences) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.saved = append(p.saved, prefs)
	return nil
}

func (p *memPersister) last() (models.Preferences, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.saved) == 0 {
		return models.Preferences{}, false
	}
	return p.saved[len(p.saved)-1], true
}

func audioTracks() []models.AudioTrack {
	return []models.AudioTrack{
		{ID: "en", DisplayName: "English"},
		{ID: "fr", DisplayName: "French"},
	}
}

func subtitleTracks() []models.SubtitleTrack {
	return []models.SubtitleTrack{
		{ID: "en", DisplayName: "English", MediaRef: "en.vtt"},
		{ID: "fr", DisplayName: "French", MediaRef: "fr.vtt"},
	}
}

func TestResetSessionSeedsFromLists(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())

	s.ResetSession(subtitleTracks(), []string{"1080p", "720p"}, models.Preferences{})

	st := s.Snapshot()
	assert.Equal(t, "1080p", st.CurrentQuality)
	assert.Equal(t, "en", st.CurrentSubtitle)
	assert.True(t, st.SubtitleEnabled)
	assert.Nil(t, st.Error)
}

func TestResetSessionRestoresValidPreferences(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())

	s.ResetSession(subtitleTracks(), []string{"1080p", "720p"}, models.Preferences{
		CurrentQuality:  "720p",
		CurrentSubtitle: "fr",
		SubtitleEnabled: true,
	})

	st := s.Snapshot()
	assert.Equal(t, "720p", st.CurrentQuality)
	assert.Equal(t, "fr", st.CurrentSubtitle)
}

func TestResetSessionDropsUnknownPreferences(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())

	s.ResetSession(subtitleTracks(), []string{"1080p", "720p"}, models.Preferences{
		CurrentQuality:  "4320p",
		CurrentSubtitle: "de",
		SubtitleEnabled: true,
	})

	st := s.Snapshot()
	assert.Equal(t, "1080p", st.CurrentQuality, "unknown restored id falls back to the first entry")
	assert.Equal(t, "en", st.CurrentSubtitle)
}

func TestResetSessionRestoredSubtitleDisable(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())

	s.ResetSession(subtitleTracks(), nil, models.Preferences{CurrentSubtitle: "fr"})
	assert.False(t, s.Snapshot().SubtitleEnabled)

	// a zero-value blob means nothing was ever stored
	s.ResetSession(subtitleTracks(), nil, models.Preferences{})
	assert.True(t, s.Snapshot().SubtitleEnabled)
}

func TestApplyQualitiesPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		restored string
		prefer   models.PreferQualityFunc
		want     string
	}{
		{"current kept when still present", "720p", "480p", nil, "720p"},
		{"restored when current gone", "240p", "480p", nil, "480p"},
		{"prefer hook when nothing else matches", "", "", func([]string) string { return "480p" }, "480p"},
		{"prefer result outside list ignored", "", "", func([]string) string { return "4320p" }, "1080p"},
		{"first entry as last resort", "", "", nil, "1080p"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore("viewer", nil, logging.NewTestLogger())
			s.ResetSession(nil, nil, models.Preferences{CurrentQuality: tt.restored, SubtitleEnabled: true})
			if tt.current != "" {
				s.ApplyQualities([]string{tt.current}, nil)
			}

			s.ApplyQualities([]string{"1080p", "720p", "480p"}, tt.prefer)
			assert.Equal(t, tt.want, s.Snapshot().CurrentQuality)
		})
	}
}

func TestApplyQualitiesIsIdempotent(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())
	s.ResetSession(nil, nil, models.Preferences{})

	labels := []string{"1080p", "720p"}
	s.ApplyQualities(labels, nil)
	require.NoError(t, s.SelectQuality("720p"))
	first := s.Snapshot()

	// replaying the same discovery must not change anything
	s.ApplyQualities(labels, nil)
	assert.Equal(t, first, s.Snapshot())
}

func TestApplyQualitiesEmptyListClearsSelection(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())
	s.ApplyQualities([]string{"1080p"}, nil)
	s.ApplyQualities(nil, nil)

	st := s.Snapshot()
	assert.Empty(t, st.Qualities)
	assert.Empty(t, st.CurrentQuality)
}

func TestApplyAudioTracksEngineDefault(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())
	s.ResetSession(nil, nil, models.Preferences{})

	s.ApplyAudioTracks(audioTracks(), 1)
	assert.Equal(t, "fr", s.Snapshot().CurrentAudio)

	// out-of-range default clamps to the first track
	s.ApplyAudioTracks(audioTracks()[:1], 5)
	assert.Equal(t, "en", s.Snapshot().CurrentAudio)
}

func TestApplyAudioTracksRestoredPreference(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())
	s.ResetSession(nil, nil, models.Preferences{CurrentAudio: "fr", SubtitleEnabled: true})

	s.ApplyAudioTracks(audioTracks(), 0)
	assert.Equal(t, "fr", s.Snapshot().CurrentAudio)
}

func TestSelectionsValidateMembership(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())
	s.ResetSession(subtitleTracks(), []string{"1080p"}, models.Preferences{})
	s.ApplyAudioTracks(audioTracks(), 0)

	assert.Error(t, s.SelectQuality("720p"))
	assert.Error(t, s.SelectAudio("de"))
	assert.Error(t, s.SelectSubtitle("de"))

	assert.NoError(t, s.SelectQuality("1080p"))
	assert.NoError(t, s.SelectAudio("fr"))
	assert.NoError(t, s.SelectSubtitle("fr"))
}

func TestSelectSubtitleDisable(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())
	s.ResetSession(subtitleTracks(), nil, models.Preferences{})
	require.NoError(t, s.SelectSubtitle("fr"))

	require.NoError(t, s.SelectSubtitle(""))

	st := s.Snapshot()
	assert.False(t, st.SubtitleEnabled)
	assert.Equal(t, "fr", st.CurrentSubtitle, "disabling keeps the previous selection")

	require.NoError(t, s.SelectSubtitle("fr"))
	assert.True(t, s.Snapshot().SubtitleEnabled)
}

func TestSelectionsPersistPreferences(t *testing.T) {
	p := &memPersister{}
	s := NewStore("viewer", p, logging.NewTestLogger())
	s.ResetSession(subtitleTracks(), []string{"1080p", "720p"}, models.Preferences{})
	s.ApplyAudioTracks(audioTracks(), 0)

	require.NoError(t, s.SelectQuality("720p"))
	require.NoError(t, s.SelectAudio("fr"))
	require.NoError(t, s.SelectSubtitle(""))

	// Close flushes the pending save before the loop stops
	s.Close()

	prefs, ok := p.last()
	require.True(t, ok)
	assert.Equal(t, "720p", prefs.CurrentQuality)
	assert.Equal(t, "fr", prefs.CurrentAudio)
	assert.Equal(t, "en", prefs.CurrentSubtitle)
	assert.False(t, prefs.SubtitleEnabled)
}

func TestPersistFailureDoesNotBlockSelection(t *testing.T) {
	p := &memPersister{err: context.DeadlineExceeded}
	s := NewStore("viewer", p, logging.NewTestLogger())
	defer s.Close()
	s.ResetSession(nil, []string{"1080p", "720p"}, models.Preferences{})

	require.NoError(t, s.SelectQuality("720p"))
	assert.Equal(t, "720p", s.Snapshot().CurrentQuality)
}

// gatePersister holds every save until released, standing in for a stalled
// backend
type gatePersister struct {
	release chan struct{}
	mem     memPersister
}

func (p *gatePersister) Save(ctx context.Context, profile string, prefs models.Preferences) error {
	<-p.release
	return p.mem.Save(ctx, profile, prefs)
}

func TestSlowPersisterDoesNotBlockSelection(t *testing.T) {
	p := &gatePersister{release: make(chan struct{})}
	s := NewStore("viewer", p, logging.NewTestLogger())
	s.ResetSession(nil, []string{"1080p", "720p"}, models.Preferences{})

	// the backend has not accepted a single save yet
	require.NoError(t, s.SelectQuality("720p"))
	assert.Equal(t, "720p", s.Snapshot().CurrentQuality)
	_, saved := p.mem.last()
	assert.False(t, saved)

	close(p.release)
	s.Close()

	prefs, saved := p.mem.last()
	require.True(t, saved)
	assert.Equal(t, "720p", prefs.CurrentQuality)
}

func TestAudioIndex(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())
	s.ApplyAudioTracks(audioTracks(), 0)

	idx, ok := s.AudioIndex("fr")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)

	_, ok = s.AudioIndex("de")
	assert.False(t, ok)
}

func TestErrorLifecycle(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())

	s.SetError(&models.PlaybackError{Kind: models.ErrorKindNetwork, Message: "segment timeout", Persistent: true})
	st := s.Snapshot()
	require.NotNil(t, st.Error)
	assert.False(t, st.Error.OccurredAt.IsZero())

	s.ClearError()
	assert.Nil(t, s.Snapshot().Error)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore("viewer", nil, logging.NewTestLogger())
	s.ResetSession(subtitleTracks(), []string{"1080p", "720p"}, models.Preferences{})

	st := s.Snapshot()
	st.Qualities[0] = "mutated"
	st.Subtitles[0].ID = "mutated"

	assert.Equal(t, "1080p", s.Snapshot().Qualities[0])
	assert.Equal(t, "en", s.Snapshot().Subtitles[0].ID)
}
